package store

import (
	"context"
	"errors"
	"time"

	"exchange-ledger-go/internal/models"

	"github.com/shopspring/decimal"
)

// Sentinel errors shared across the ledger. Wrap with fmt.Errorf("%w: ...") to add detail.
var (
	ErrInsufficientFunds      = errors.New("insufficient funds")
	ErrRateUnavailable        = errors.New("rate unavailable")
	ErrNotFound               = errors.New("not found")
	ErrInvalidState           = errors.New("invalid state")
	ErrDuplicatePosition      = errors.New("duplicate position")
	ErrDuplicateTransaction   = errors.New("duplicate transaction")
	ErrConcurrentModification = errors.New("concurrent modification detected")
	ErrInvalidInput           = errors.New("invalid input")
	ErrUnauthorized           = errors.New("not authorized")
)

// CreateUserParams contains the parameters for creating a user.
type CreateUserParams struct {
	Username          string
	Email             string
	ReferredBy        string // referrer user id
	IsAdmin           bool
	IsVerified        bool
	WithdrawalPinHash string
}

// StoreAddressParams contains the parameters for storing a deposit address.
type StoreAddressParams struct {
	UserId            string
	Currency          string
	Chain             string
	Address           string
	WalletId          string
	AccountIdentifier string
}

// TransactionFilter narrows a transaction history query.
type TransactionFilter struct {
	UserId   string
	Currency string
	Type     models.TransactionType
	Limit    int
	Offset   int
}

// ReviewParams describes an admin decision on a pending transaction.
type ReviewParams struct {
	TransactionId  string
	Type           models.TransactionType
	NewStatus      models.TransactionStatus
	BlockchainTxid string
	AdminNotes     string
}

// ClosePositionParams captures the settlement values written to a closed position.
type ClosePositionParams struct {
	PositionId           string
	ClosePrice           decimal.NullDecimal
	ProfitLoss           decimal.Decimal
	ProfitLossPercentage decimal.Decimal
	ClosedAt             time.Time
}

// Tx is a unit of work. Every read and write of one logical ledger operation goes through it
// and is committed or rolled back together.
type Tx interface {
	// --- Wallets ---
	GetWallet(ctx context.Context, userId, currency string) (*models.Wallet, error)
	Credit(ctx context.Context, userId, currency string, amount decimal.Decimal, bucket models.Bucket) (*models.Wallet, error)
	Debit(ctx context.Context, userId, currency string, amount decimal.Decimal, bucket models.Bucket) (*models.Wallet, error)
	Deltas() []models.BalanceDelta

	// --- Transactions ---
	InsertTransaction(ctx context.Context, t *models.Transaction) error
	GetTransaction(ctx context.Context, transactionId string) (*models.Transaction, error)
	ReviewTransaction(ctx context.Context, params ReviewParams) (*models.Transaction, error)
	ClaimPayout(ctx context.Context, transactionId string) error
	ReleasePayout(ctx context.Context, transactionId string) error
	SetChainStatus(ctx context.Context, transactionId, status string) error
	SumCompletedDeposits(ctx context.Context, userId, currency string) (decimal.Decimal, error)

	// --- Users ---
	GetUserById(ctx context.Context, userId string) (*models.User, error)
	GetUserByUniqueId(ctx context.Context, uniqueId string) (*models.User, error)
	SetUserVerified(ctx context.Context, userId string, verified bool) error

	// --- Orders ---
	InsertOrder(ctx context.Context, o *models.Order) error
	GetOrder(ctx context.Context, orderId string) (*models.Order, error)
	SetOrderStatus(ctx context.Context, orderId string, status models.OrderStatus, filledAmount decimal.Decimal) error

	// --- Signals and positions ---
	InsertSignal(ctx context.Context, s *models.TradeSignal) error
	GetSignal(ctx context.Context, signalId string) (*models.TradeSignal, error)
	DeactivateSignal(ctx context.Context, signalId string) error
	ResolveSignal(ctx context.Context, signalId string, result models.SignalResult, pct decimal.Decimal, at time.Time) error
	InsertPosition(ctx context.Context, p *models.TradePosition) error
	GetPosition(ctx context.Context, positionId string) (*models.TradePosition, error)
	HasOpenPosition(ctx context.Context, userId, signalId string) (bool, error)
	ListOpenPositionsForSignal(ctx context.Context, signalId string) ([]models.TradePosition, error)
	ClosePosition(ctx context.Context, params ClosePositionParams) error

	// --- Referrals ---
	HasReferralReward(ctx context.Context, referredId string) (bool, error)
	InsertReferralReward(ctx context.Context, r *models.ReferralReward) error
}

// LedgerStore defines the persistence contract of the exchange ledger.
type LedgerStore interface {
	// --- Unit of work ---
	WithinTx(ctx context.Context, fn func(tx Tx) error) error

	// --- Users ---
	CreateUser(ctx context.Context, params CreateUserParams) (*models.User, error)
	GetUsers(ctx context.Context) ([]models.User, error)
	GetUserById(ctx context.Context, userId string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByReferralCode(ctx context.Context, code string) (*models.User, error)
	SetWithdrawalPin(ctx context.Context, userId, pinHash string) error
	SetUserVerified(ctx context.Context, userId string, verified bool) error

	// --- Addresses ---
	StoreAddress(ctx context.Context, params StoreAddressParams) (*models.Address, error)
	GetAddress(ctx context.Context, userId, currency, chain string) (*models.Address, error)
	GetAllUserAddresses(ctx context.Context, userId string) ([]models.Address, error)
	FindUserByAddress(ctx context.Context, address string) (*models.User, *models.Address, error)

	// --- Wallets ---
	GetWallet(ctx context.Context, userId, currency string) (*models.Wallet, error)
	GetWallets(ctx context.Context, userId string) ([]models.Wallet, error)
	ReconcileWallet(ctx context.Context, userId, currency string) error

	// --- Transactions ---
	GetTransaction(ctx context.Context, transactionId string) (*models.Transaction, error)
	GetTransactionByBlockchainTxid(ctx context.Context, txid string) (*models.Transaction, error)
	GetTransactionHistory(ctx context.Context, filter TransactionFilter) ([]models.Transaction, error)
	ListPendingTransactions(ctx context.Context, txType models.TransactionType) ([]models.Transaction, error)
	SetChainStatus(ctx context.Context, transactionId, status string) error

	// --- Orders ---
	GetOrder(ctx context.Context, orderId string) (*models.Order, error)
	ListOpenOrders(ctx context.Context) ([]models.Order, error)
	ListUserOrders(ctx context.Context, userId string, status models.OrderStatus) ([]models.Order, error)

	// --- Signals and positions ---
	GetSignal(ctx context.Context, signalId string) (*models.TradeSignal, error)
	ListSignals(ctx context.Context, activeOnly bool) ([]models.TradeSignal, error)
	ListExpiredSignals(ctx context.Context, now time.Time) ([]models.TradeSignal, error)
	GetPosition(ctx context.Context, positionId string) (*models.TradePosition, error)
	ListUserPositions(ctx context.Context, userId string, status models.PositionStatus) ([]models.TradePosition, error)

	// --- Lifecycle ---
	Ping(ctx context.Context) error
	Close()
}
