package formance

import (
	"math/big"
	"strings"
	"testing"

	"exchange-ledger-go/internal/models"

	"github.com/formancehq/formance-sdk-go/v3/pkg/models/shared"
	"github.com/shopspring/decimal"
)

func testJournal() *Journal {
	return &Journal{
		ledger: "test",
		precision: precisionMap(models.NewCurrencyCatalog([]models.Currency{
			{Symbol: "USDT", Precision: 6},
			{Symbol: "btc", Precision: 8},
		})),
	}
}

func TestFormanceAsset(t *testing.T) {
	j := testJournal()
	tests := []struct {
		symbol string
		want   string
	}{
		{"USDT", "USDT/6"},
		{"btc", "BTC/8"},
		{"XRP", "XRP/8"},
	}
	for _, tt := range tests {
		if got := j.formanceAsset(tt.symbol); got != tt.want {
			t.Errorf("formanceAsset(%q) = %q, want %q", tt.symbol, got, tt.want)
		}
	}
}

func TestAssetSymbol(t *testing.T) {
	tests := map[string]string{
		"USDT/6": "USDT",
		"BTC/8":  "BTC",
		"PLAIN":  "PLAIN",
	}
	for in, want := range tests {
		if got := assetSymbol(in); got != want {
			t.Errorf("assetSymbol(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestBuildScript_Transfer(t *testing.T) {
	j := testJournal()
	plain, vars := j.buildScript([]models.BalanceDelta{
		{UserId: "u1", Currency: "USDT", Bucket: models.BucketSpot, Amount: decimal.RequireFromString("-12.5")},
		{UserId: "u1", Currency: "USDT", Bucket: models.BucketFunding, Amount: decimal.RequireFromString("12.5")},
		{UserId: "u1", Currency: "BTC", Bucket: models.BucketSpot, Amount: decimal.Zero},
	})

	if strings.Count(plain, "send [") != 2 {
		t.Fatalf("Expected two send statements, got:\n%s", plain)
	}
	if strings.Count(plain, "allowing unbounded overdraft") != 1 {
		t.Errorf("Expected only the platform source to overdraft, got:\n%s", plain)
	}

	want := map[string]string{
		"asset_0":  "USDT/6",
		"amount_0": "12500000",
		"src_0":    "users:u1:spot",
		"dst_0":    platformAccount,
		"src_1":    platformAccount,
		"dst_1":    "users:u1:funding",
	}
	for k, v := range want {
		if vars[k] != v {
			t.Errorf("var %s = %q, want %q", k, vars[k], v)
		}
	}
	if len(vars) != 8 {
		t.Errorf("Expected 8 vars, got %d", len(vars))
	}
}

func TestBuildScript_NoMovement(t *testing.T) {
	j := testJournal()
	plain, vars := j.buildScript([]models.BalanceDelta{
		{UserId: "u1", Currency: "USDT", Bucket: models.BucketSpot, Amount: decimal.Zero},
		{UserId: "u1", Currency: "USDT", Bucket: models.BucketSpot, Amount: decimal.RequireFromString("0.0000001")},
	})
	if plain != "" || vars != nil {
		t.Errorf("Expected no script for sub-unit movements, got %q %v", plain, vars)
	}
}

func TestVolumeBalance(t *testing.T) {
	vols := map[string]shared.V2Volume{
		"USDT/6": {Input: big.NewInt(5_000_000), Output: big.NewInt(1_500_000)},
		"BTC/8":  {Balance: big.NewInt(100_000_000)},
	}
	if got := volumeBalance(vols, "USDT/6"); got.Int64() != 3_500_000 {
		t.Errorf("Expected 3500000, got %s", got)
	}
	if got := volumeBalance(vols, "BTC/8"); got.Int64() != 100_000_000 {
		t.Errorf("Expected 100000000, got %s", got)
	}
	if got := volumeBalance(vols, "ETH/18"); got != nil {
		t.Errorf("Expected nil for missing asset, got %s", got)
	}

	j := testJournal()
	if d := j.bigIntToDecimal(big.NewInt(3_500_000), "USDT"); !d.Equal(decimal.RequireFromString("3.5")) {
		t.Errorf("Expected 3.5, got %s", d)
	}
	if d := j.bigIntToDecimal(nil, "USDT"); !d.IsZero() {
		t.Errorf("Expected 0, got %s", d)
	}
}
