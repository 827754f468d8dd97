package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"exchange-ledger-go/internal/ledger"
	"exchange-ledger-go/internal/models"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, models.CodeInvalidInput, fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	return true
}

func caller(r *http.Request) string {
	p, _ := principalFrom(r.Context())
	return p.UserId
}

// respond writes an operation result, or a 500 if the boundary itself failed
func respond(w http.ResponseWriter, result *models.OperationResult, err error) {
	if err != nil {
		zap.L().Error("Operation returned an error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, models.CodeInternal, "internal error")
		return
	}
	writeResult(w, result)
}

func ok(data any) *models.OperationResult {
	return &models.OperationResult{Success: true, Message: "OK", Data: data}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.HealthCheck(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, models.CodeInternal, "unhealthy")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type registerBody struct {
	Username     string `json:"username"`
	Email        string `json:"email"`
	ReferralCode string `json:"referral_code"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var body registerBody
	if !decode(w, r, &body) {
		return
	}
	result, err := s.svc.RegisterUser(r.Context(), ledger.RegisterRequest{
		Username:     body.Username,
		Email:        body.Email,
		ReferralCode: body.ReferralCode,
	})
	if err == nil && result.Success {
		result.Message = "User created, request a token from an operator"
	}
	respond(w, result, err)
}

func (s *Server) handleBalances(w http.ResponseWriter, r *http.Request) {
	balances, err := s.svc.GetBalances(r.Context(), caller(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, models.CodeInternal, "failed to load balances")
		return
	}
	writeResult(w, ok(balances))
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	bucket := models.BucketSpot
	if raw := r.URL.Query().Get("bucket"); raw != "" {
		b, err := models.ParseBucket(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, models.CodeInvalidInput, err.Error())
			return
		}
		bucket = b
	}
	currency := chi.URLParam(r, "currency")
	balance, err := s.svc.GetBalance(r.Context(), caller(r), currency, bucket)
	if err != nil {
		writeError(w, http.StatusInternalServerError, models.CodeInternal, "failed to load balance")
		return
	}
	writeResult(w, &models.OperationResult{
		Success:    true,
		Message:    "OK",
		Currency:   currency,
		NewBalance: balance,
	})
}

func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	portfolio, err := s.svc.GetPortfolio(r.Context(), caller(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, models.CodeInternal, "failed to value portfolio")
		return
	}
	writeResult(w, ok(portfolio))
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	if offset < 0 {
		offset = 0
	}
	history, err := s.svc.GetTransactionHistory(r.Context(), caller(r), q.Get("type"), limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, models.CodeInternal, "failed to load history")
		return
	}
	writeResult(w, ok(history))
}

type transferBody struct {
	Currency string          `json:"currency"`
	Amount   decimal.Decimal `json:"amount"`
	From     models.Bucket   `json:"from"`
	To       models.Bucket   `json:"to"`
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var body transferBody
	if !decode(w, r, &body) {
		return
	}
	result, err := s.svc.Transfer(r.Context(), caller(r), body.Currency, body.Amount, body.From, body.To)
	respond(w, result, err)
}

type convertBody struct {
	From   string          `json:"from"`
	To     string          `json:"to"`
	Amount decimal.Decimal `json:"amount"`
	Bucket models.Bucket   `json:"bucket"`
}

func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	var body convertBody
	if !decode(w, r, &body) {
		return
	}
	if body.Bucket == "" {
		body.Bucket = models.BucketSpot
	}
	result, err := s.svc.Convert(r.Context(), caller(r), body.From, body.To, body.Amount, body.Bucket)
	respond(w, result, err)
}

type payBody struct {
	Recipient string          `json:"recipient"`
	Currency  string          `json:"currency"`
	Amount    decimal.Decimal `json:"amount"`
}

func (s *Server) handlePay(w http.ResponseWriter, r *http.Request) {
	var body payBody
	if !decode(w, r, &body) {
		return
	}
	result, err := s.svc.Pay(r.Context(), caller(r), body.Recipient, body.Currency, body.Amount)
	respond(w, result, err)
}

func (s *Server) handleDepositAddress(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	result, err := s.svc.GetDepositAddress(r.Context(), caller(r), q.Get("currency"), q.Get("chain"))
	respond(w, result, err)
}

type depositBody struct {
	Currency       string          `json:"currency"`
	Amount         decimal.Decimal `json:"amount"`
	Chain          string          `json:"chain"`
	BlockchainTxid string          `json:"blockchain_txid"`
	Address        string          `json:"address"`
	Notes          string          `json:"notes"`
}

func (s *Server) handleSubmitDeposit(w http.ResponseWriter, r *http.Request) {
	var body depositBody
	if !decode(w, r, &body) {
		return
	}
	result, err := s.svc.SubmitDeposit(r.Context(), ledger.DepositRequest{
		UserId:         caller(r),
		Currency:       body.Currency,
		Amount:         body.Amount,
		Chain:          body.Chain,
		BlockchainTxid: body.BlockchainTxid,
		Address:        body.Address,
		Notes:          body.Notes,
	})
	respond(w, result, err)
}

type withdrawalBody struct {
	Currency string          `json:"currency"`
	Amount   decimal.Decimal `json:"amount"`
	Address  string          `json:"address"`
	Chain    string          `json:"chain"`
	Pin      string          `json:"pin"`
}

func (s *Server) handleRequestWithdrawal(w http.ResponseWriter, r *http.Request) {
	var body withdrawalBody
	if !decode(w, r, &body) {
		return
	}
	result, err := s.svc.RequestWithdrawal(r.Context(), ledger.WithdrawalRequest{
		UserId:   caller(r),
		Currency: body.Currency,
		Amount:   body.Amount,
		Address:  body.Address,
		Chain:    body.Chain,
		Pin:      body.Pin,
	})
	respond(w, result, err)
}

func (s *Server) handleSetPin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Pin string `json:"pin"`
	}
	if !decode(w, r, &body) {
		return
	}
	result, err := s.svc.SetWithdrawalPin(r.Context(), caller(r), body.Pin)
	respond(w, result, err)
}

type orderBody struct {
	Pair   string           `json:"pair"`
	Type   models.OrderType `json:"type"`
	Side   models.OrderSide `json:"side"`
	Price  decimal.Decimal  `json:"price"`
	Amount decimal.Decimal  `json:"amount"`
}

func (s *Server) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	var body orderBody
	if !decode(w, r, &body) {
		return
	}
	result, err := s.svc.PlaceOrder(r.Context(), ledger.PlaceOrderRequest{
		UserId: caller(r),
		Pair:   body.Pair,
		Type:   body.Type,
		Side:   body.Side,
		Price:  body.Price,
		Amount: body.Amount,
	})
	respond(w, result, err)
}

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	status := models.OrderStatus(r.URL.Query().Get("status"))
	orders, err := s.svc.Ledger().ListOrders(r.Context(), caller(r), status)
	if err != nil {
		writeError(w, http.StatusInternalServerError, models.CodeInternal, "failed to list orders")
		return
	}
	writeResult(w, ok(orders))
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	result, err := s.svc.CancelOrder(r.Context(), caller(r), chi.URLParam(r, "id"))
	respond(w, result, err)
}

func (s *Server) handleListSignals(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("all") != "true"
	signals, err := s.svc.Ledger().ListSignals(r.Context(), activeOnly)
	if err != nil {
		writeError(w, http.StatusInternalServerError, models.CodeInternal, "failed to list signals")
		return
	}
	writeResult(w, ok(signals))
}

func (s *Server) handleFollowSignal(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Amount decimal.Decimal `json:"amount"`
	}
	if !decode(w, r, &body) {
		return
	}
	result, err := s.svc.FollowSignal(r.Context(), caller(r), chi.URLParam(r, "id"), body.Amount)
	respond(w, result, err)
}

func (s *Server) handleListPositions(w http.ResponseWriter, r *http.Request) {
	status := models.PositionStatus(r.URL.Query().Get("status"))
	positions, err := s.svc.Ledger().ListPositions(r.Context(), caller(r), status)
	if err != nil {
		writeError(w, http.StatusInternalServerError, models.CodeInternal, "failed to list positions")
		return
	}
	writeResult(w, ok(positions))
}

func (s *Server) handleClosePosition(w http.ResponseWriter, r *http.Request) {
	result, err := s.svc.ClosePosition(r.Context(), caller(r), chi.URLParam(r, "id"))
	respond(w, result, err)
}

func (s *Server) handleListPending(w http.ResponseWriter, r *http.Request) {
	txType := models.TransactionType(r.URL.Query().Get("type"))
	if txType == "" {
		txType = models.TransactionWithdrawal
	}
	if txType != models.TransactionDeposit && txType != models.TransactionWithdrawal {
		writeError(w, http.StatusBadRequest, models.CodeInvalidInput, "type must be deposit or withdrawal")
		return
	}
	pending, err := s.svc.ListPending(r.Context(), txType)
	if err != nil {
		writeError(w, http.StatusInternalServerError, models.CodeInternal, err.Error())
		return
	}
	writeResult(w, ok(pending))
}

type reviewBody struct {
	BlockchainTxid string `json:"blockchain_txid"`
	Notes          string `json:"notes"`
}

// decodeReview accepts an empty body
func decodeReview(w http.ResponseWriter, r *http.Request) (reviewBody, bool) {
	var body reviewBody
	if r.ContentLength == 0 {
		return body, true
	}
	return body, decode(w, r, &body)
}

func (s *Server) handleApproveDeposit(w http.ResponseWriter, r *http.Request) {
	body, valid := decodeReview(w, r)
	if !valid {
		return
	}
	result, err := s.svc.ApproveDeposit(r.Context(), caller(r), chi.URLParam(r, "id"), body.Notes)
	respond(w, result, err)
}

func (s *Server) handleRejectDeposit(w http.ResponseWriter, r *http.Request) {
	body, valid := decodeReview(w, r)
	if !valid {
		return
	}
	result, err := s.svc.RejectDeposit(r.Context(), caller(r), chi.URLParam(r, "id"), body.Notes)
	respond(w, result, err)
}

func (s *Server) handleApproveWithdrawal(w http.ResponseWriter, r *http.Request) {
	body, valid := decodeReview(w, r)
	if !valid {
		return
	}
	result, err := s.svc.ApproveWithdrawal(r.Context(), caller(r), chi.URLParam(r, "id"), body.BlockchainTxid, body.Notes)
	respond(w, result, err)
}

func (s *Server) handleRejectWithdrawal(w http.ResponseWriter, r *http.Request) {
	body, valid := decodeReview(w, r)
	if !valid {
		return
	}
	result, err := s.svc.RejectWithdrawal(r.Context(), caller(r), chi.URLParam(r, "id"), body.Notes)
	respond(w, result, err)
}

type signalBody struct {
	Pair        string           `json:"pair"`
	SignalType  models.OrderSide `json:"signal_type"`
	EntryPrice  decimal.Decimal  `json:"entry_price"`
	TargetPrice decimal.Decimal  `json:"target_price"`
	StopLoss    decimal.Decimal  `json:"stop_loss"`
	Leverage    int              `json:"leverage"`
	Description string           `json:"description"`
	ExpiryHours int              `json:"expiry_hours"`
}

func (s *Server) handleCreateSignal(w http.ResponseWriter, r *http.Request) {
	var body signalBody
	if !decode(w, r, &body) {
		return
	}
	result, err := s.svc.CreateSignal(r.Context(), caller(r), ledger.CreateSignalRequest{
		Pair:        body.Pair,
		SignalType:  body.SignalType,
		EntryPrice:  body.EntryPrice,
		TargetPrice: body.TargetPrice,
		StopLoss:    body.StopLoss,
		Leverage:    body.Leverage,
		Description: body.Description,
		ExpiryHours: body.ExpiryHours,
	})
	respond(w, result, err)
}

func (s *Server) handleDeactivateSignal(w http.ResponseWriter, r *http.Request) {
	result, err := s.svc.DeactivateSignal(r.Context(), caller(r), chi.URLParam(r, "id"))
	respond(w, result, err)
}

func (s *Server) handleResolveSignal(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Result    models.SignalResult `json:"result"`
		ProfitPct decimal.Decimal     `json:"profit_pct"`
	}
	if !decode(w, r, &body) {
		return
	}
	result, err := s.svc.ResolveSignal(r.Context(), caller(r), chi.URLParam(r, "id"), body.Result, body.ProfitPct)
	respond(w, result, err)
}

func (s *Server) handleVerifyUser(w http.ResponseWriter, r *http.Request) {
	result, err := s.svc.VerifyUser(r.Context(), caller(r), chi.URLParam(r, "id"))
	respond(w, result, err)
}
