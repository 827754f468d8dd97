package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"exchange-ledger-go/internal/api"
	"exchange-ledger-go/internal/database"
	"exchange-ledger-go/internal/ledger"
	"exchange-ledger-go/internal/models"
	"exchange-ledger-go/internal/oracle"
	"exchange-ledger-go/internal/store"

	"github.com/shopspring/decimal"
)

const testSecret = "test-secret"

type testServer struct {
	srv *Server
	svc *api.LedgerService
	db  *database.Service
}

func setupServer(t *testing.T) (*testServer, func()) {
	t.Helper()
	db, err := database.NewService(context.Background(), models.DatabaseConfig{
		Path:         ":memory:",
		MaxOpenConns: 1,
		MaxIdleConns: 1,
		PingTimeout:  time.Second,
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	prices := oracle.Func(func(ctx context.Context, pair string) (decimal.Decimal, error) {
		if pair == "BTC/USDT" {
			return decimal.NewFromInt(27000), nil
		}
		return decimal.Zero, oracle.ErrNoPrice
	})
	svc := api.NewLedgerService(ledger.NewService(db, prices, ledger.DefaultConfig()))
	srv := New(svc, models.HTTPConfig{Addr: ":0", JWTSecret: testSecret})

	return &testServer{srv: srv, svc: svc, db: db}, func() { db.Close() }
}

func (ts *testServer) register(t *testing.T, name string, admin bool) (*models.User, string) {
	t.Helper()
	result, err := ts.svc.RegisterUser(context.Background(), ledger.RegisterRequest{
		Username: name,
		Email:    name + "@example.com",
		IsAdmin:  admin,
	})
	if err != nil || !result.Success {
		t.Fatalf("RegisterUser failed: %v %+v", err, result)
	}
	user := result.Data.(*models.User)
	token, err := IssueToken(testSecret, user.Id, admin, time.Hour)
	if err != nil {
		t.Fatalf("IssueToken failed: %v", err)
	}
	return user, token
}

func (ts *testServer) fund(t *testing.T, userId, currency, amount string) {
	t.Helper()
	ctx := context.Background()
	err := ts.db.WithinTx(ctx, func(tx store.Tx) error {
		_, err := tx.Credit(ctx, userId, currency, decimal.RequireFromString(amount), models.BucketSpot)
		return err
	})
	if err != nil {
		t.Fatalf("Credit failed: %v", err)
	}
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) (*httptest.ResponseRecorder, models.OperationResult) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(rec, req)

	var result models.OperationResult
	if rec.Body.Len() > 0 {
		_ = json.Unmarshal(rec.Body.Bytes(), &result)
	}
	return rec, result
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{"", http.StatusOK},
		{models.CodeInvalidInput, http.StatusBadRequest},
		{models.CodeUnauthorized, http.StatusForbidden},
		{models.CodeNotFound, http.StatusNotFound},
		{models.CodeInsufficientFunds, http.StatusUnprocessableEntity},
		{models.CodeInvalidState, http.StatusConflict},
		{models.CodeDuplicate, http.StatusConflict},
		{models.CodeDuplicatePosition, http.StatusConflict},
		{models.CodeConflict, http.StatusConflict},
		{models.CodeRateUnavailable, http.StatusServiceUnavailable},
		{models.CodeInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.code); got != tt.want {
			t.Errorf("statusFor(%q): expected %d, got %d", tt.code, tt.want, got)
		}
	}
}

func TestAuthenticate(t *testing.T) {
	ts, cleanup := setupServer(t)
	defer cleanup()

	user, _ := ts.register(t, "alice", false)
	expired, err := IssueToken(testSecret, user.Id, false, -time.Minute)
	if err != nil {
		t.Fatalf("IssueToken failed: %v", err)
	}
	forged, err := IssueToken("other-secret", user.Id, false, time.Hour)
	if err != nil {
		t.Fatalf("IssueToken failed: %v", err)
	}

	tests := []struct {
		name  string
		token string
	}{
		{"missing", ""},
		{"expired", expired},
		{"wrong secret", forged},
		{"garbage", "not-a-jwt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, result := ts.do(t, http.MethodGet, "/v1/balances", tt.token, nil)
			if rec.Code != http.StatusUnauthorized {
				t.Errorf("Expected 401, got %d", rec.Code)
			}
			if result.Success || result.Code != models.CodeUnauthorized {
				t.Errorf("Expected unauthorized result, got %+v", result)
			}
		})
	}

	if _, err := IssueToken("", user.Id, false, time.Hour); err == nil {
		t.Error("Expected an error for an empty secret")
	}
}

func TestTransferEndpoint(t *testing.T) {
	ts, cleanup := setupServer(t)
	defer cleanup()

	user, token := ts.register(t, "alice", false)
	ts.fund(t, user.Id, "USDT", "100")

	rec, result := ts.do(t, http.MethodPost, "/v1/transfers", token, map[string]string{
		"currency": "USDT",
		"amount":   "40",
		"from":     "spot",
		"to":       "futures",
	})
	if rec.Code != http.StatusOK || !result.Success {
		t.Fatalf("Expected successful transfer, got %d %+v", rec.Code, result)
	}
	if !result.NewBalance.Equal(decimal.NewFromInt(60)) {
		t.Errorf("Expected spot balance 60, got %s", result.NewBalance)
	}

	rec, result = ts.do(t, http.MethodPost, "/v1/transfers", token, map[string]string{
		"currency": "USDT",
		"amount":   "61",
		"from":     "spot",
		"to":       "funding",
	})
	if rec.Code != http.StatusUnprocessableEntity || result.Code != models.CodeInsufficientFunds {
		t.Errorf("Expected 422 insufficient_funds, got %d %+v", rec.Code, result)
	}

	rec, _ = ts.do(t, http.MethodGet, "/v1/balances/USDT?bucket=futures", token, nil)
	var balance models.OperationResult
	if err := json.Unmarshal(rec.Body.Bytes(), &balance); err != nil {
		t.Fatalf("Failed to decode balance: %v", err)
	}
	if !balance.NewBalance.Equal(decimal.NewFromInt(40)) {
		t.Errorf("Expected futures balance 40, got %s", balance.NewBalance)
	}

	rec, _ = ts.do(t, http.MethodGet, "/v1/balances/USDT?bucket=margin", token, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for unknown bucket, got %d", rec.Code)
	}
}

func TestInvalidBody(t *testing.T) {
	ts, cleanup := setupServer(t)
	defer cleanup()

	_, token := ts.register(t, "alice", false)
	rec, result := ts.do(t, http.MethodPost, "/v1/payments", token, map[string]string{"unexpected": "field"})
	if rec.Code != http.StatusBadRequest || result.Code != models.CodeInvalidInput {
		t.Errorf("Expected 400 invalid_input, got %d %+v", rec.Code, result)
	}
}

func TestAdminRoutes(t *testing.T) {
	ts, cleanup := setupServer(t)
	defer cleanup()

	user, userToken := ts.register(t, "alice", false)
	_, adminToken := ts.register(t, "root", true)

	rec, result := ts.do(t, http.MethodPost, "/v1/deposits", userToken, map[string]string{
		"currency":        "USDT",
		"amount":          "50",
		"chain":           "TRC20",
		"blockchain_txid": "0xabc",
	})
	if rec.Code != http.StatusOK || !result.Success {
		t.Fatalf("Expected deposit to be submitted, got %d %+v", rec.Code, result)
	}
	depositId := result.Reference

	rec, _ = ts.do(t, http.MethodPost, "/v1/admin/deposits/"+depositId+"/approve", userToken, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("Expected 403 for non-admin, got %d", rec.Code)
	}

	rec, _ = ts.do(t, http.MethodGet, "/v1/admin/pending?type=deposit", adminToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected pending list, got %d", rec.Code)
	}
	var pending struct {
		Data []models.TransactionRecord `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &pending); err != nil {
		t.Fatalf("Failed to decode pending list: %v", err)
	}
	if len(pending.Data) != 1 || pending.Data[0].TransactionId != depositId {
		t.Errorf("Expected the submitted deposit in the queue, got %+v", pending.Data)
	}

	rec, result = ts.do(t, http.MethodPost, "/v1/admin/deposits/"+depositId+"/approve", adminToken, nil)
	if rec.Code != http.StatusOK || !result.Success {
		t.Fatalf("Expected approval, got %d %+v", rec.Code, result)
	}

	rec, result = ts.do(t, http.MethodPost, "/v1/admin/deposits/"+depositId+"/approve", adminToken, nil)
	if rec.Code != http.StatusConflict || result.Code != models.CodeInvalidState {
		t.Errorf("Expected 409 on second approval, got %d %+v", rec.Code, result)
	}

	balance, err := ts.svc.GetBalance(context.Background(), user.Id, "USDT", models.BucketSpot)
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	if !balance.Equal(decimal.NewFromInt(50)) {
		t.Errorf("Expected spot balance 50, got %s", balance)
	}
}

func TestPublicRoutes(t *testing.T) {
	ts, cleanup := setupServer(t)
	defer cleanup()

	rec, _ := ts.do(t, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("Expected healthy, got %d", rec.Code)
	}

	rec, result := ts.do(t, http.MethodPost, "/v1/users", "", map[string]string{
		"username": "carol",
		"email":    "carol@example.com",
	})
	if rec.Code != http.StatusOK || !result.Success || result.Reference == "" {
		t.Errorf("Expected registration, got %d %+v", rec.Code, result)
	}

	rec, _ = ts.do(t, http.MethodGet, "/metrics", "", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("Expected metrics endpoint, got %d", rec.Code)
	}
}
