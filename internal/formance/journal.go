package formance

import (
	"context"
	"fmt"
	"strings"

	"exchange-ledger-go/internal/models"

	"github.com/formancehq/formance-sdk-go/v3/pkg/models/operations"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/shared"
	"go.uber.org/zap"
)

// platformAccount absorbs every movement that enters or leaves user buckets: deposits,
// fees, conversions and trade settlement. It is the only account allowed to go negative.
const platformAccount = "platform:clearing"

// Publish records the event's bucket movements as one Formance transaction, referenced by
// the event id so a redelivered event is not posted twice
func (j *Journal) Publish(ctx context.Context, event models.LedgerEvent) error {
	plain, vars := j.buildScript(event.Deltas)
	if plain == "" {
		return nil
	}

	occurred := event.OccurredAt
	metadata := map[string]string{
		"kind":      event.Kind,
		"reference": event.Reference,
		"user_id":   event.UserId,
	}
	for k, v := range event.Metadata {
		metadata["meta_"+k] = v
	}

	_, err := j.client.Ledger.V2.CreateTransaction(ctx, operations.V2CreateTransactionRequest{
		Ledger: j.ledger,
		V2PostTransaction: shared.V2PostTransaction{
			Reference: &event.Id,
			Timestamp: &occurred,
			Metadata:  metadata,
			Script: &shared.V2PostTransactionScript{
				Plain: plain,
				Vars:  vars,
			},
		},
	})
	if err != nil {
		if isConflictError(err) {
			return nil
		}
		return fmt.Errorf("error posting %s event %s: %w", event.Kind, event.Id, err)
	}

	zap.L().Debug("Event journaled in Formance",
		zap.String("event_id", event.Id),
		zap.String("kind", event.Kind),
		zap.Int("postings", len(vars)/4))
	return nil
}

// buildScript renders one send statement per non-zero delta. Credits flow from the platform
// account into the bucket and debits flow back. Amounts are in the asset's smallest unit.
func (j *Journal) buildScript(deltas []models.BalanceDelta) (string, map[string]string) {
	var decl, body strings.Builder
	vars := make(map[string]string)

	n := 0
	for _, d := range deltas {
		if d.Amount.IsZero() {
			continue
		}
		units := d.Amount.Abs().Shift(int32(j.precisionFor(d.Currency))).BigInt()
		if units.Sign() == 0 {
			continue
		}

		src, dst := platformAccount, userAccount(d.UserId, d.Bucket)
		if d.Amount.IsNegative() {
			src, dst = dst, src
		}

		fmt.Fprintf(&decl, "  asset $asset_%d\n  number $amount_%d\n  account $src_%d\n  account $dst_%d\n", n, n, n, n)
		overdraft := ""
		if src == platformAccount {
			overdraft = " allowing unbounded overdraft"
		}
		fmt.Fprintf(&body, "send [$asset_%d $amount_%d] (\n  source = $src_%d%s\n  destination = $dst_%d\n)\n", n, n, n, overdraft, n)

		vars[fmt.Sprintf("asset_%d", n)] = j.formanceAsset(d.Currency)
		vars[fmt.Sprintf("amount_%d", n)] = units.String()
		vars[fmt.Sprintf("src_%d", n)] = src
		vars[fmt.Sprintf("dst_%d", n)] = dst
		n++
	}
	if n == 0 {
		return "", nil
	}
	return "vars {\n" + decl.String() + "}\n\n" + body.String(), vars
}
