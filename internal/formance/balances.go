package formance

import (
	"context"
	"fmt"
	"math/big"

	"exchange-ledger-go/internal/models"

	v3 "github.com/formancehq/formance-sdk-go/v3"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/operations"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/shared"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// BucketBalance returns the journaled balance of one wallet bucket
func (j *Journal) BucketBalance(ctx context.Context, userId, currency string, bucket models.Bucket) (decimal.Decimal, error) {
	address := userAccount(userId, bucket)
	vols, err := j.getAccountVolumes(ctx, address)
	if err != nil {
		return decimal.Zero, err
	}
	return j.bigIntToDecimal(volumeBalance(vols, j.formanceAsset(currency)), currency), nil
}

// CompareWallet checks the journaled buckets against a wallet row and returns the buckets
// that disagree
func (j *Journal) CompareWallet(ctx context.Context, w models.Wallet) ([]models.Bucket, error) {
	var mismatched []models.Bucket
	for _, bucket := range []models.Bucket{models.BucketSpot, models.BucketFunding, models.BucketFutures} {
		local := w.Balance(bucket)
		mirrored, err := j.BucketBalance(ctx, w.UserId, w.Currency, bucket)
		if err != nil {
			return nil, err
		}
		if !mirrored.Equal(local) {
			zap.L().Warn("Journal balance differs from wallet",
				zap.String("user_id", w.UserId),
				zap.String("currency", w.Currency),
				zap.String("bucket", string(bucket)),
				zap.String("wallet", local.String()),
				zap.String("journal", mirrored.String()))
			mismatched = append(mismatched, bucket)
		}
	}
	return mismatched, nil
}

func (j *Journal) getAccountVolumes(ctx context.Context, address string) (map[string]shared.V2Volume, error) {
	resp, err := j.client.Ledger.V2.GetAccount(ctx, operations.V2GetAccountRequest{
		Ledger:  j.ledger,
		Address: address,
		Expand:  v3.Pointer("volumes"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get account %s: %w", address, err)
	}
	return resp.V2AccountResponse.Data.Volumes, nil
}

// volumeBalance extracts the balance for a specific asset from volumes
func volumeBalance(vols map[string]shared.V2Volume, fAsset string) *big.Int {
	vol, ok := vols[fAsset]
	if !ok {
		return nil
	}
	if vol.Balance != nil {
		return vol.Balance
	}
	if vol.Input == nil {
		return nil
	}
	result := new(big.Int).Set(vol.Input)
	if vol.Output != nil {
		result.Sub(result, vol.Output)
	}
	return result
}

// bigIntToDecimal converts a *big.Int in smallest-unit to a human-readable decimal
func (j *Journal) bigIntToDecimal(raw *big.Int, symbol string) decimal.Decimal {
	if raw == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(raw, -int32(j.precisionFor(symbol)))
}
