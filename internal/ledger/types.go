// Package ledger implements the persistent entities and transactional store
// behind the wallet/payments core (spec.md §3, §4.2).
package ledger

import (
	"time"

	"github.com/addispay/wallet-server/internal/money"
)

// PaymentStatus is the lifecycle state of a top-up Payment.
type PaymentStatus string

const (
	PaymentInitiated PaymentStatus = "INITIATED"
	PaymentSuccess   PaymentStatus = "SUCCESS"
	PaymentFailed    PaymentStatus = "FAILED"
)

// Provider identifies the external mobile-money gateway used for a Payment.
type Provider string

const (
	ProviderChapa    Provider = "ChAPA"
	ProviderTelebirr Provider = "TELEBIRR"
)

// GiftTxStatus is the terminal outcome of a GiftTransaction.
type GiftTxStatus string

const (
	GiftTxSuccess GiftTxStatus = "SUCCESS"
	GiftTxFailed  GiftTxStatus = "FAILED"
)

// WithdrawalStatus is the lifecycle state of a WithdrawalRequest.
type WithdrawalStatus string

const (
	WithdrawalPending  WithdrawalStatus = "PENDING"
	WithdrawalApproved WithdrawalStatus = "APPROVED"
	WithdrawalRejected WithdrawalStatus = "REJECTED"
	WithdrawalPaid     WithdrawalStatus = "PAID"
)

// WithdrawalMethod is the payout rail a creator withdraws through.
type WithdrawalMethod string

const (
	WithdrawalMethodChapa    WithdrawalMethod = "CH"
	WithdrawalMethodTelebirr WithdrawalMethod = "TELEBIRR"
)

// KYCDocType is the document an identity submission carries.
type KYCDocType string

const (
	KYCDocNID      KYCDocType = "NID"
	KYCDocPassport KYCDocType = "PASSPORT"
)

// KYCStatus is the review outcome of a KYCSubmission.
type KYCStatus string

const (
	KYCPending  KYCStatus = "PENDING"
	KYCVerified KYCStatus = "VERIFIED"
	KYCRejected KYCStatus = "REJECTED"
)

// SubscriptionPlan is one of the three fixed perks (spec.md §4.7).
type SubscriptionPlan string

const (
	PlanBoost       SubscriptionPlan = "BOOST"
	PlanLikesReveal SubscriptionPlan = "LIKES_REVEAL"
	PlanAdFree      SubscriptionPlan = "AD_FREE"
)

// CoinPackage is a catalog row a user can top up against.
type CoinPackage struct {
	ID            string
	Name          string
	TargetNetETB  money.ETB
	Coins         uint64
	BaseETB       money.ETB
	VATETB        money.ETB
	PriceTotalETB money.ETB
}

// Gift is a catalog row that can be sent between users.
type Gift struct {
	ID       string
	Name     string
	Coins    uint64
	ValueETB money.ETB
	Active   bool
}

// Wallet is one per user and carries both the coin balance and creator earnings.
type Wallet struct {
	UserRef            string
	CoinBalance        uint64
	BalanceETB          money.ETB
	HoldETB             money.ETB
	KYCLevel            uint8
	WithdrawalsBlocked  bool
	IsBanned            bool
}

// AvailableETB is the withdrawable portion of a wallet's earnings.
func (w Wallet) AvailableETB() money.ETB {
	return w.BalanceETB - w.HoldETB
}

// Payment is one per initiated top-up.
type Payment struct {
	ID            string
	UserRef       string
	PackageRef    string
	Status        PaymentStatus
	Provider      Provider
	ProviderRef   string
	TxRef         string
	CheckoutURL   string
	PriceTotalETB money.ETB
	VATETB        money.ETB
	GwFeeETB      money.ETB
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Receipt is immutable and one-to-one with a SUCCESS Payment.
type Receipt struct {
	ID          string
	PaymentID   string
	ProviderRef string
	UserRef     string
	AmountETB   money.ETB
	IssuedAt    time.Time
}

// GiftTransaction is an immutable record of one gift send.
type GiftTransaction struct {
	ID               string
	SenderRef        string
	RecipientRef     string
	GiftRef          string
	CoinsSpent       uint64
	ValueETB         money.ETB
	CommissionGross  money.ETB
	VATOnCommission  money.ETB
	CommissionNet    money.ETB
	CreatorPayout    money.ETB
	Status           GiftTxStatus
	FailureReason    string
	OccurredAt       time.Time
}

// WithdrawalRequest tracks the hold/approve/reject/pay lifecycle of a creator payout.
type WithdrawalRequest struct {
	ID            string
	UserRef       string
	Method        WithdrawalMethod
	Destination   string
	AmountETB     money.ETB
	Status        WithdrawalStatus
	ProviderRef   string
	FailureReason string
	CreatedAt     time.Time
	ApprovedAt    *time.Time
	PaidAt        *time.Time
}

// KYCSubmission is one identity-verification attempt.
type KYCSubmission struct {
	ID              string
	UserRef         string
	DocType         KYCDocType
	DocumentCipher  []byte
	SelfieCipher    []byte
	Status          KYCStatus
	SubmittedAt     time.Time
	ReviewedAt      *time.Time
	ReviewerRef     string
}

// AuditLog is an append-only record of a money-moving event.
type AuditLog struct {
	ID         string
	UserRef    string
	ActorRef   string
	Event      string
	Metadata   map[string]any
	OccurredAt time.Time
}

// SubscriptionPurchase tracks one perk purchase through its payment flow.
type SubscriptionPurchase struct {
	ID           string
	UserRef      string
	Plan         SubscriptionPlan
	AmountETB    money.ETB
	DurationDays int
	Status       PaymentStatus
	TxRef        string
	ProviderRef  string
	ActivatedAt  *time.Time
	ExpiresAt    *time.Time
}

// Perks is the three time-bounded profile capabilities a user can hold.
type Perks struct {
	UserRef             string
	BoostExpiry         *time.Time
	LikesRevealExpiry   *time.Time
	AdFreeExpiry        *time.Time
}

// IsActive reports whether the named perk is enabled at time t (spec.md §4.7 invariant).
func (p Perks) IsActive(plan SubscriptionPlan, t time.Time) bool {
	var expiry *time.Time
	switch plan {
	case PlanBoost:
		expiry = p.BoostExpiry
	case PlanLikesReveal:
		expiry = p.LikesRevealExpiry
	case PlanAdFree:
		expiry = p.AdFreeExpiry
	}
	return expiry != nil && expiry.After(t)
}
