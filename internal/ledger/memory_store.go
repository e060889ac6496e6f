package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store implementation used by tests and local
// development, alongside PostgresStore for production deployments.
type MemoryStore struct {
	mu sync.Mutex

	wallets      map[string]Wallet
	packages     map[string]CoinPackage
	gifts        map[string]Gift
	payments     map[string]Payment
	paymentByRef map[string]string // provider_ref/tx_ref -> payment id
	receipts     map[string]Receipt // payment id -> receipt
	giftTxs      []GiftTransaction
	withdrawals  map[string]WithdrawalRequest
	kyc          map[string]KYCSubmission
	subs         map[string]SubscriptionPurchase
	perks        map[string]Perks
	audit        []AuditLog
}

// NewMemoryStore constructs an empty MemoryStore seeded with no catalog rows;
// callers add CoinPackages/Gifts via SeedCatalog.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		wallets:      make(map[string]Wallet),
		packages:     make(map[string]CoinPackage),
		gifts:        make(map[string]Gift),
		payments:     make(map[string]Payment),
		paymentByRef: make(map[string]string),
		receipts:     make(map[string]Receipt),
		withdrawals:  make(map[string]WithdrawalRequest),
		kyc:          make(map[string]KYCSubmission),
		subs:         make(map[string]SubscriptionPurchase),
		perks:        make(map[string]Perks),
	}
}

// SeedCatalog installs CoinPackage and Gift rows, as a test/dev fixture would.
func (s *MemoryStore) SeedCatalog(packages []CoinPackage, gifts []Gift) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range packages {
		s.packages[p.ID] = p
	}
	for _, g := range gifts {
		s.gifts[g.ID] = g
	}
}

func (s *MemoryStore) Close() error { return nil }

// WithTx holds the store's single mutex for the duration of fn, emulating a
// serializable transaction: at most one WithTx body runs at a time.
func (s *MemoryStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(ctx, s)
}

func (s *MemoryStore) defaultWallet(userRef string) Wallet {
	return Wallet{UserRef: userRef, KYCLevel: 1}
}

func (s *MemoryStore) LockWallet(ctx context.Context, userRef string) (Wallet, error) {
	w, ok := s.wallets[userRef]
	if !ok {
		w = s.defaultWallet(userRef)
		s.wallets[userRef] = w
	}
	return w, nil
}

func (s *MemoryStore) SaveWallet(ctx context.Context, w Wallet) error {
	s.wallets[w.UserRef] = w
	return nil
}

func (s *MemoryStore) DebitCoins(ctx context.Context, userRef string, amount uint64) (bool, error) {
	w, ok := s.wallets[userRef]
	if !ok {
		w = s.defaultWallet(userRef)
	}
	if w.CoinBalance < amount {
		return false, nil
	}
	w.CoinBalance -= amount
	s.wallets[userRef] = w
	return true, nil
}

func (s *MemoryStore) GetWallet(ctx context.Context, userRef string) (Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wallets[userRef]
	if !ok {
		return s.defaultWallet(userRef), nil
	}
	return w, nil
}

func (s *MemoryStore) LockWithdrawal(ctx context.Context, id string) (WithdrawalRequest, error) {
	w, ok := s.withdrawals[id]
	if !ok {
		return WithdrawalRequest{}, ErrNotFound
	}
	return w, nil
}

func (s *MemoryStore) SaveWithdrawal(ctx context.Context, w WithdrawalRequest) error {
	s.withdrawals[w.ID] = w
	return nil
}

func (s *MemoryStore) CreateWithdrawal(ctx context.Context, w WithdrawalRequest) error {
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	s.withdrawals[w.ID] = w
	return nil
}

func (s *MemoryStore) SumWithdrawalsSince(ctx context.Context, userRef string, since time.Time, excludeStatus WithdrawalStatus) (int64, error) {
	var sum int64
	for _, w := range s.withdrawals {
		if w.UserRef != userRef || w.Status == excludeStatus {
			continue
		}
		if w.CreatedAt.Before(since) {
			continue
		}
		sum += int64(w.AmountETB)
	}
	return sum, nil
}

func (s *MemoryStore) RecentWithdrawalDestinationCounts(ctx context.Context, userRef string, since time.Time) (map[string]int, error) {
	counts := make(map[string]int)
	for _, w := range s.withdrawals {
		if w.UserRef != userRef || w.CreatedAt.Before(since) {
			continue
		}
		counts[w.Destination]++
	}
	return counts, nil
}

func (s *MemoryStore) GetWithdrawal(ctx context.Context, id string) (WithdrawalRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.withdrawals[id]
	if !ok {
		return WithdrawalRequest{}, ErrNotFound
	}
	return w, nil
}

func (s *MemoryStore) ListWithdrawals(ctx context.Context, status WithdrawalStatus) ([]WithdrawalRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []WithdrawalRequest
	for _, w := range s.withdrawals {
		if status == "" || w.Status == status {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) GetPackage(ctx context.Context, packageRef string) (CoinPackage, error) {
	p, ok := s.packages[packageRef]
	if !ok {
		return CoinPackage{}, ErrNotFound
	}
	return p, nil
}

func (s *MemoryStore) ListPackages(ctx context.Context) ([]CoinPackage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []CoinPackage
	for _, p := range s.packages {
		out = append(out, p)
	}
	return out, nil
}

func (s *MemoryStore) GetGift(ctx context.Context, giftRef string) (Gift, error) {
	g, ok := s.gifts[giftRef]
	if !ok {
		return Gift{}, ErrNotFound
	}
	return g, nil
}

func (s *MemoryStore) ListActiveGifts(ctx context.Context) ([]Gift, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Gift
	for _, g := range s.gifts {
		if g.Active {
			out = append(out, g)
		}
	}
	return out, nil
}

func (s *MemoryStore) CreatePayment(ctx context.Context, p Payment) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	s.payments[p.ID] = p
	if p.ProviderRef != "" {
		s.paymentByRef[p.ProviderRef] = p.ID
	}
	s.paymentByRef[p.TxRef] = p.ID
	return nil
}

func (s *MemoryStore) LockPaymentByProviderRef(ctx context.Context, providerRef string) (Payment, bool, error) {
	id, ok := s.paymentByRef[providerRef]
	if !ok {
		return Payment{}, false, nil
	}
	return s.payments[id], true, nil
}

func (s *MemoryStore) LockPaymentByTxRef(ctx context.Context, txRef string) (Payment, bool, error) {
	id, ok := s.paymentByRef[txRef]
	if !ok {
		return Payment{}, false, nil
	}
	return s.payments[id], true, nil
}

func (s *MemoryStore) SavePayment(ctx context.Context, p Payment) error {
	s.payments[p.ID] = p
	if p.ProviderRef != "" {
		s.paymentByRef[p.ProviderRef] = p.ID
	}
	if p.TxRef != "" {
		s.paymentByRef[p.TxRef] = p.ID
	}
	return nil
}

func (s *MemoryStore) GetPayment(ctx context.Context, id string) (Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[id]
	if !ok {
		return Payment{}, ErrNotFound
	}
	return p, nil
}

func (s *MemoryStore) CountSuccessPaymentsSince(ctx context.Context, userRef string, since time.Time) (int, error) {
	count := 0
	for _, p := range s.payments {
		if p.UserRef == userRef && p.Status == PaymentSuccess && !p.UpdatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) CreateReceipt(ctx context.Context, r Receipt) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	s.receipts[r.PaymentID] = r
	return nil
}

func (s *MemoryStore) HasReceipt(ctx context.Context, paymentID string) (bool, error) {
	_, ok := s.receipts[paymentID]
	return ok, nil
}

func (s *MemoryStore) GetReceiptByPayment(ctx context.Context, paymentID string) (Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.receipts[paymentID]
	if !ok {
		return Receipt{}, ErrNotFound
	}
	return r, nil
}

func (s *MemoryStore) CreateGiftTransaction(ctx context.Context, g GiftTransaction) error {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	s.giftTxs = append(s.giftTxs, g)
	return nil
}

func (s *MemoryStore) SumReceivedGiftValueSince(ctx context.Context, userRef string, since time.Time) (int64, error) {
	var sum int64
	for _, g := range s.giftTxs {
		if g.RecipientRef == userRef && g.Status == GiftTxSuccess && !g.OccurredAt.Before(since) {
			sum += int64(g.ValueETB)
		}
	}
	return sum, nil
}

// ListRecentGiftTransactions returns the most recent gifts a user sent or
// received, newest first, for the GET /api/wallet/ "recent gifts" listing
// (spec.md §6.1).
func (s *MemoryStore) ListRecentGiftTransactions(ctx context.Context, userRef string, limit int) ([]GiftTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []GiftTransaction
	for _, g := range s.giftTxs {
		if g.SenderRef == userRef || g.RecipientRef == userRef {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OccurredAt.After(out[j].OccurredAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) GetKYCSubmission(ctx context.Context, id string) (KYCSubmission, error) {
	k, ok := s.kyc[id]
	if !ok {
		return KYCSubmission{}, ErrNotFound
	}
	return k, nil
}

func (s *MemoryStore) GetPendingKYCSubmission(ctx context.Context, userRef string) (KYCSubmission, bool, error) {
	for _, k := range s.kyc {
		if k.UserRef == userRef && k.Status == KYCPending {
			return k, true, nil
		}
	}
	return KYCSubmission{}, false, nil
}

func (s *MemoryStore) CreateKYCSubmission(ctx context.Context, k KYCSubmission) error {
	if k.ID == "" {
		k.ID = uuid.NewString()
	}
	s.kyc[k.ID] = k
	return nil
}

func (s *MemoryStore) SaveKYCSubmission(ctx context.Context, k KYCSubmission) error {
	s.kyc[k.ID] = k
	return nil
}

func (s *MemoryStore) CreateSubscriptionPurchase(ctx context.Context, sub SubscriptionPurchase) error {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	s.subs[sub.TxRef] = sub
	return nil
}

func (s *MemoryStore) LockSubscriptionByTxRef(ctx context.Context, txRef string) (SubscriptionPurchase, bool, error) {
	sub, ok := s.subs[txRef]
	return sub, ok, nil
}

func (s *MemoryStore) SaveSubscriptionPurchase(ctx context.Context, sub SubscriptionPurchase) error {
	s.subs[sub.TxRef] = sub
	return nil
}

func (s *MemoryStore) LockPerks(ctx context.Context, userRef string) (Perks, error) {
	p, ok := s.perks[userRef]
	if !ok {
		p = Perks{UserRef: userRef}
	}
	return p, nil
}

func (s *MemoryStore) SavePerks(ctx context.Context, p Perks) error {
	s.perks[p.UserRef] = p
	return nil
}

func (s *MemoryStore) ListAllUserRefs(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]bool)
	var out []string
	for ref := range s.wallets {
		if !seen[ref] {
			seen[ref] = true
			out = append(out, ref)
		}
	}
	return out, nil
}

func (s *MemoryStore) ListPerksPastExpiry(ctx context.Context, now time.Time) ([]Perks, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Perks
	for _, p := range s.perks {
		if (p.BoostExpiry != nil && !p.BoostExpiry.After(now) && p.BoostExpiry.Before(now)) ||
			(p.LikesRevealExpiry != nil && p.LikesRevealExpiry.Before(now)) ||
			(p.AdFreeExpiry != nil && p.AdFreeExpiry.Before(now)) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *MemoryStore) AppendAudit(ctx context.Context, a AuditLog) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	s.audit = append(s.audit, a)
	return nil
}

// Audit returns a copy of the audit log, for test assertions.
func (s *MemoryStore) Audit() []AuditLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]AuditLog, len(s.audit))
	copy(out, s.audit)
	return out
}
