// Package formance mirrors committed ledger movements into a Formance Stack ledger, giving
// operators an independent double-entry journal to reconcile the wallet tables against.
package formance

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"exchange-ledger-go/internal/models"

	v3 "github.com/formancehq/formance-sdk-go/v3"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/operations"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/sdkerrors"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/shared"
	"go.uber.org/zap"
)

const defaultPrecision = 8

// Journal posts ledger events to Formance
type Journal struct {
	client    *v3.Formance
	ledger    string
	precision map[string]int
}

// NewJournal connects to the stack and creates the ledger if it doesn't already exist
func NewJournal(ctx context.Context, cfg models.FormanceConfig, catalog models.CurrencyCatalog) (*Journal, error) {
	if cfg.StackURL == "" || cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("formance config requires StackURL, ClientID, and ClientSecret")
	}
	if cfg.LedgerName == "" {
		cfg.LedgerName = "exchange-ledger"
	}

	zap.L().Info("Connecting to Formance Stack",
		zap.String("stack_url", cfg.StackURL),
		zap.String("ledger", cfg.LedgerName))

	client := v3.New(
		v3.WithServerURL(cfg.StackURL),
		v3.WithSecurity(shared.Security{
			ClientID:     v3.Pointer(cfg.ClientID),
			ClientSecret: v3.Pointer(cfg.ClientSecret),
		}),
	)

	j := &Journal{client: client, ledger: cfg.LedgerName, precision: precisionMap(catalog)}
	if err := j.ensureLedger(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure ledger exists: %w", err)
	}

	zap.L().Info("Formance journal initialized", zap.String("ledger", cfg.LedgerName))
	return j, nil
}

func precisionMap(catalog models.CurrencyCatalog) map[string]int {
	out := make(map[string]int, len(catalog))
	for symbol, c := range catalog {
		if c.Precision > 0 {
			out[symbol] = int(c.Precision)
		}
	}
	return out
}

func (j *Journal) ensureLedger(ctx context.Context) error {
	_, err := j.client.Ledger.V2.CreateLedger(ctx, operations.V2CreateLedgerRequest{
		Ledger: j.ledger,
		V2CreateLedgerRequest: shared.V2CreateLedgerRequest{
			Metadata: map[string]string{
				"application": "exchange-ledger",
			},
		},
	})
	if err != nil {
		var apiErr *sdkerrors.V2ErrorResponse
		if errors.As(err, &apiErr) && apiErr.ErrorCode == shared.V2ErrorsEnumLedgerAlreadyExists {
			zap.L().Info("Ledger already exists", zap.String("ledger", j.ledger))
			return nil
		}
		return err
	}
	zap.L().Info("Ledger created", zap.String("ledger", j.ledger))
	return nil
}

func (j *Journal) precisionFor(symbol string) int {
	if p, ok := j.precision[strings.ToUpper(symbol)]; ok {
		return p
	}
	return defaultPrecision
}

// formanceAsset returns the Formance UMN notation, e.g. "USDT/6"
func (j *Journal) formanceAsset(symbol string) string {
	return fmt.Sprintf("%s/%d", strings.ToUpper(symbol), j.precisionFor(symbol))
}

// assetSymbol extracts the symbol from a Formance asset like "USDT/6"
func assetSymbol(fAsset string) string {
	if i := strings.IndexByte(fAsset, '/'); i >= 0 {
		return fAsset[:i]
	}
	return fAsset
}

// userAccount is the journal account for one wallet bucket
func userAccount(userId string, bucket models.Bucket) string {
	return fmt.Sprintf("users:%s:%s", userId, bucket)
}

func isConflictError(err error) bool {
	var apiErr *sdkerrors.V2ErrorResponse
	return errors.As(err, &apiErr) && apiErr.ErrorCode == shared.V2ErrorsEnumConflict
}
