package ledger

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity is missing from the store.
var ErrNotFound = errors.New("ledger: not found")

// ErrConflict names a retryable transaction conflict; callers retry the whole
// operation (spec.md §4.2). Neither MemoryStore nor PostgresStore returns it.
var ErrConflict = errors.New("ledger: conflict, retry")

// ErrAlreadyExists is returned on a unique-constraint violation (duplicate
// provider_ref, duplicate catalog name, duplicate wallet).
var ErrAlreadyExists = errors.New("ledger: already exists")

// Tx is a single database transaction handed to callers inside WithTx. All
// row-locking accessors below must be called through a Tx, never directly
// against the Store.
type Tx interface {
	// LockWallet row-locks (SELECT ... FOR UPDATE) and returns the wallet for user.
	// Creates a default wallet (kyc_level=1) on first access.
	LockWallet(ctx context.Context, userRef string) (Wallet, error)
	SaveWallet(ctx context.Context, w Wallet) error

	// DebitCoins atomically decrements coin_balance only if it is >= amount,
	// in a single conditional statement. Returns false (no error) if the
	// balance was insufficient; the transaction is left otherwise unchanged.
	DebitCoins(ctx context.Context, userRef string, amount uint64) (bool, error)

	LockWithdrawal(ctx context.Context, id string) (WithdrawalRequest, error)
	SaveWithdrawal(ctx context.Context, w WithdrawalRequest) error
	CreateWithdrawal(ctx context.Context, w WithdrawalRequest) error
	SumWithdrawalsSince(ctx context.Context, userRef string, since time.Time, excludeStatus WithdrawalStatus) (int64, error) // cents
	RecentWithdrawalDestinationCounts(ctx context.Context, userRef string, since time.Time) (map[string]int, error)

	GetPackage(ctx context.Context, packageRef string) (CoinPackage, error)
	GetGift(ctx context.Context, giftRef string) (Gift, error)

	CreatePayment(ctx context.Context, p Payment) error
	LockPaymentByProviderRef(ctx context.Context, providerRef string) (Payment, bool, error)
	LockPaymentByTxRef(ctx context.Context, txRef string) (Payment, bool, error)
	SavePayment(ctx context.Context, p Payment) error
	CountSuccessPaymentsSince(ctx context.Context, userRef string, since time.Time) (int, error)

	CreateReceipt(ctx context.Context, r Receipt) error
	HasReceipt(ctx context.Context, paymentID string) (bool, error)

	CreateGiftTransaction(ctx context.Context, g GiftTransaction) error
	SumReceivedGiftValueSince(ctx context.Context, userRef string, since time.Time) (int64, error) // cents

	GetKYCSubmission(ctx context.Context, id string) (KYCSubmission, error)
	GetPendingKYCSubmission(ctx context.Context, userRef string) (KYCSubmission, bool, error)
	CreateKYCSubmission(ctx context.Context, k KYCSubmission) error
	SaveKYCSubmission(ctx context.Context, k KYCSubmission) error

	CreateSubscriptionPurchase(ctx context.Context, s SubscriptionPurchase) error
	LockSubscriptionByTxRef(ctx context.Context, txRef string) (SubscriptionPurchase, bool, error)
	SaveSubscriptionPurchase(ctx context.Context, s SubscriptionPurchase) error
	LockPerks(ctx context.Context, userRef string) (Perks, error)
	SavePerks(ctx context.Context, p Perks) error

	AppendAudit(ctx context.Context, a AuditLog) error
}

// Store is the abstract ledger the rest of the system consumes (spec.md §4.2).
type Store interface {
	// WithTx runs fn inside a serializable (or repeatable-read with
	// select-for-update) transaction. On any error returned by fn, or a
	// serialization conflict, the transaction rolls back; the caller must
	// retry on ErrConflict.
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	// Read-only accessors usable outside a transaction (no lock needed).
	GetWallet(ctx context.Context, userRef string) (Wallet, error)
	ListActiveGifts(ctx context.Context) ([]Gift, error)
	ListPackages(ctx context.Context) ([]CoinPackage, error)
	GetPayment(ctx context.Context, id string) (Payment, error)
	GetReceiptByPayment(ctx context.Context, paymentID string) (Receipt, error)
	ListWithdrawals(ctx context.Context, status WithdrawalStatus) ([]WithdrawalRequest, error)
	GetWithdrawal(ctx context.Context, id string) (WithdrawalRequest, error)
	ListRecentGiftTransactions(ctx context.Context, userRef string, limit int) ([]GiftTransaction, error)
	ListAllUserRefs(ctx context.Context) ([]string, error)
	ListPerksPastExpiry(ctx context.Context, now time.Time) ([]Perks, error)

	Close() error
}
