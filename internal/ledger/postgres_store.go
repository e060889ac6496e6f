package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/addispay/wallet-server/internal/config"
	"github.com/addispay/wallet-server/internal/money"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
)

// PostgresStore implements Store against PostgreSQL, row-locking mutable
// entities with SELECT ... FOR UPDATE inside a single serializable-enough
// transaction per WithTx call.
type PostgresStore struct {
	db     *sql.DB
	ownsDB bool
}

// NewPostgresStore opens a new connection pool and creates the ledger schema
// if missing.
func NewPostgresStore(connectionString string, poolConfig config.DatabaseConfig) (*PostgresStore, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	config.ApplyPostgresPoolSettings(db, poolConfig)

	store := &PostgresStore{db: db, ownsDB: true}
	if err := store.createTables(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// NewPostgresStoreWithDB wraps an existing shared connection pool, for
// callers that already manage one *sql.DB across multiple stores.
func NewPostgresStoreWithDB(db *sql.DB) (*PostgresStore, error) {
	store := &PostgresStore{db: db, ownsDB: false}
	if err := store.createTables(); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *PostgresStore) Close() error {
	if !s.ownsDB {
		return nil
	}
	return s.db.Close()
}

func (s *PostgresStore) createTables() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS wallets (
			user_ref TEXT PRIMARY KEY,
			coin_balance BIGINT NOT NULL DEFAULT 0,
			balance_etb BIGINT NOT NULL DEFAULT 0,
			hold_etb BIGINT NOT NULL DEFAULT 0,
			kyc_level SMALLINT NOT NULL DEFAULT 1,
			withdrawals_blocked BOOLEAN NOT NULL DEFAULT FALSE,
			is_banned BOOLEAN NOT NULL DEFAULT FALSE
		);

		CREATE TABLE IF NOT EXISTS coin_packages (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			target_net_etb BIGINT NOT NULL,
			coins BIGINT NOT NULL,
			base_etb BIGINT NOT NULL,
			vat_etb BIGINT NOT NULL,
			price_total_etb BIGINT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS gifts (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			coins BIGINT NOT NULL,
			value_etb BIGINT NOT NULL,
			active BOOLEAN NOT NULL DEFAULT TRUE
		);

		CREATE TABLE IF NOT EXISTS payments (
			id TEXT PRIMARY KEY,
			user_ref TEXT NOT NULL,
			package_ref TEXT NOT NULL,
			status TEXT NOT NULL,
			provider TEXT NOT NULL,
			provider_ref TEXT NOT NULL DEFAULT '',
			tx_ref TEXT NOT NULL UNIQUE,
			checkout_url TEXT NOT NULL DEFAULT '',
			price_total_etb BIGINT NOT NULL,
			vat_etb BIGINT NOT NULL,
			gw_fee_etb BIGINT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);
		CREATE UNIQUE INDEX IF NOT EXISTS payments_provider_ref_idx ON payments (provider_ref) WHERE provider_ref <> '';

		CREATE TABLE IF NOT EXISTS receipts (
			id TEXT PRIMARY KEY,
			payment_id TEXT NOT NULL UNIQUE,
			provider_ref TEXT NOT NULL,
			user_ref TEXT NOT NULL,
			amount_etb BIGINT NOT NULL,
			issued_at TIMESTAMPTZ NOT NULL
		);

		CREATE TABLE IF NOT EXISTS gift_transactions (
			id TEXT PRIMARY KEY,
			sender_ref TEXT NOT NULL,
			recipient_ref TEXT NOT NULL,
			gift_ref TEXT NOT NULL,
			coins_spent BIGINT NOT NULL,
			value_etb BIGINT NOT NULL,
			commission_gross BIGINT NOT NULL,
			vat_on_commission BIGINT NOT NULL,
			commission_net BIGINT NOT NULL,
			creator_payout BIGINT NOT NULL,
			status TEXT NOT NULL,
			failure_reason TEXT NOT NULL DEFAULT '',
			occurred_at TIMESTAMPTZ NOT NULL
		);

		CREATE TABLE IF NOT EXISTS withdrawal_requests (
			id TEXT PRIMARY KEY,
			user_ref TEXT NOT NULL,
			method TEXT NOT NULL,
			destination TEXT NOT NULL,
			amount_etb BIGINT NOT NULL,
			status TEXT NOT NULL,
			provider_ref TEXT NOT NULL DEFAULT '',
			failure_reason TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL,
			approved_at TIMESTAMPTZ,
			paid_at TIMESTAMPTZ
		);

		CREATE TABLE IF NOT EXISTS kyc_submissions (
			id TEXT PRIMARY KEY,
			user_ref TEXT NOT NULL,
			doc_type TEXT NOT NULL,
			document_cipher BYTEA NOT NULL,
			selfie_cipher BYTEA NOT NULL,
			status TEXT NOT NULL,
			submitted_at TIMESTAMPTZ NOT NULL,
			reviewed_at TIMESTAMPTZ,
			reviewer_ref TEXT NOT NULL DEFAULT ''
		);

		CREATE TABLE IF NOT EXISTS audit_logs (
			id TEXT PRIMARY KEY,
			user_ref TEXT NOT NULL,
			actor_ref TEXT NOT NULL,
			event TEXT NOT NULL,
			metadata JSONB,
			occurred_at TIMESTAMPTZ NOT NULL
		);

		CREATE TABLE IF NOT EXISTS subscription_purchases (
			id TEXT PRIMARY KEY,
			user_ref TEXT NOT NULL,
			plan TEXT NOT NULL,
			amount_etb BIGINT NOT NULL,
			duration_days INT NOT NULL,
			status TEXT NOT NULL,
			tx_ref TEXT NOT NULL UNIQUE,
			provider_ref TEXT NOT NULL DEFAULT '',
			activated_at TIMESTAMPTZ,
			expires_at TIMESTAMPTZ
		);

		CREATE TABLE IF NOT EXISTS perks (
			user_ref TEXT PRIMARY KEY,
			boost_expiry TIMESTAMPTZ,
			likes_reveal_expiry TIMESTAMPTZ,
			ad_free_expiry TIMESTAMPTZ
		);
	`)
	return err
}

// postgresTx adapts a *sql.Tx to the Tx interface, row-locking through
// explicit SELECT ... FOR UPDATE statements.
type postgresTx struct {
	tx *sql.Tx
}

func (s *PostgresStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(ctx, &postgresTx{tx: sqlTx}); err != nil {
		_ = sqlTx.Rollback()
		return err
	}
	return sqlTx.Commit()
}

func (t *postgresTx) LockWallet(ctx context.Context, userRef string) (Wallet, error) {
	var w Wallet
	err := t.tx.QueryRowContext(ctx, `
		SELECT user_ref, coin_balance, balance_etb, hold_etb, kyc_level, withdrawals_blocked, is_banned
		FROM wallets WHERE user_ref = $1 FOR UPDATE`, userRef).Scan(
		&w.UserRef, &w.CoinBalance, &w.BalanceETB, &w.HoldETB, &w.KYCLevel, &w.WithdrawalsBlocked, &w.IsBanned)
	if errors.Is(err, sql.ErrNoRows) {
		w = Wallet{UserRef: userRef, KYCLevel: 1}
		_, err = t.tx.ExecContext(ctx, `
			INSERT INTO wallets (user_ref, kyc_level) VALUES ($1, 1)
			ON CONFLICT (user_ref) DO NOTHING`, userRef)
		if err != nil {
			return Wallet{}, fmt.Errorf("create default wallet: %w", err)
		}
		return w, nil
	}
	if err != nil {
		return Wallet{}, fmt.Errorf("lock wallet: %w", err)
	}
	return w, nil
}

func (t *postgresTx) SaveWallet(ctx context.Context, w Wallet) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO wallets (user_ref, coin_balance, balance_etb, hold_etb, kyc_level, withdrawals_blocked, is_banned)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_ref) DO UPDATE SET
			coin_balance = EXCLUDED.coin_balance,
			balance_etb = EXCLUDED.balance_etb,
			hold_etb = EXCLUDED.hold_etb,
			kyc_level = EXCLUDED.kyc_level,
			withdrawals_blocked = EXCLUDED.withdrawals_blocked,
			is_banned = EXCLUDED.is_banned`,
		w.UserRef, w.CoinBalance, int64(w.BalanceETB), int64(w.HoldETB), w.KYCLevel, w.WithdrawalsBlocked, w.IsBanned)
	return err
}

func (t *postgresTx) DebitCoins(ctx context.Context, userRef string, amount uint64) (bool, error) {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE wallets SET coin_balance = coin_balance - $2
		WHERE user_ref = $1 AND coin_balance >= $2`, userRef, int64(amount))
	if err != nil {
		return false, fmt.Errorf("debit coins: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (t *postgresTx) LockWithdrawal(ctx context.Context, id string) (WithdrawalRequest, error) {
	return scanWithdrawal(t.tx.QueryRowContext(ctx, withdrawalSelectSQL+` WHERE id = $1 FOR UPDATE`, id))
}

func (t *postgresTx) SaveWithdrawal(ctx context.Context, w WithdrawalRequest) error {
	_, err := t.tx.ExecContext(ctx, `
		UPDATE withdrawal_requests SET status=$2, provider_ref=$3, failure_reason=$4, approved_at=$5, paid_at=$6
		WHERE id = $1`, w.ID, w.Status, w.ProviderRef, w.FailureReason, w.ApprovedAt, w.PaidAt)
	return err
}

func (t *postgresTx) CreateWithdrawal(ctx context.Context, w WithdrawalRequest) error {
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO withdrawal_requests (id, user_ref, method, destination, amount_etb, status, provider_ref, failure_reason, created_at, approved_at, paid_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		w.ID, w.UserRef, w.Method, w.Destination, int64(w.AmountETB), w.Status, w.ProviderRef, w.FailureReason, w.CreatedAt, w.ApprovedAt, w.PaidAt)
	return err
}

func (t *postgresTx) SumWithdrawalsSince(ctx context.Context, userRef string, since time.Time, excludeStatus WithdrawalStatus) (int64, error) {
	var sum sql.NullInt64
	err := t.tx.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount_etb), 0) FROM withdrawal_requests
		WHERE user_ref = $1 AND created_at >= $2 AND status <> $3`, userRef, since, excludeStatus).Scan(&sum)
	return sum.Int64, err
}

func (t *postgresTx) RecentWithdrawalDestinationCounts(ctx context.Context, userRef string, since time.Time) (map[string]int, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT destination, COUNT(*) FROM withdrawal_requests
		WHERE user_ref = $1 AND created_at >= $2 GROUP BY destination`, userRef, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]int)
	for rows.Next() {
		var dest string
		var count int
		if err := rows.Scan(&dest, &count); err != nil {
			return nil, err
		}
		out[dest] = count
	}
	return out, rows.Err()
}

func (t *postgresTx) GetPackage(ctx context.Context, packageRef string) (CoinPackage, error) {
	var p CoinPackage
	err := t.tx.QueryRowContext(ctx, `
		SELECT id, name, target_net_etb, coins, base_etb, vat_etb, price_total_etb
		FROM coin_packages WHERE id = $1`, packageRef).Scan(
		&p.ID, &p.Name, &p.TargetNetETB, &p.Coins, &p.BaseETB, &p.VATETB, &p.PriceTotalETB)
	if errors.Is(err, sql.ErrNoRows) {
		return CoinPackage{}, ErrNotFound
	}
	return p, err
}

func (t *postgresTx) GetGift(ctx context.Context, giftRef string) (Gift, error) {
	var g Gift
	err := t.tx.QueryRowContext(ctx, `
		SELECT id, name, coins, value_etb, active FROM gifts WHERE id = $1`, giftRef).Scan(
		&g.ID, &g.Name, &g.Coins, &g.ValueETB, &g.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return Gift{}, ErrNotFound
	}
	return g, err
}

func (t *postgresTx) CreatePayment(ctx context.Context, p Payment) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO payments (id, user_ref, package_ref, status, provider, provider_ref, tx_ref, checkout_url, price_total_etb, vat_etb, gw_fee_etb, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		p.ID, p.UserRef, p.PackageRef, p.Status, p.Provider, p.ProviderRef, p.TxRef, p.CheckoutURL,
		int64(p.PriceTotalETB), int64(p.VATETB), int64(p.GwFeeETB), p.CreatedAt, p.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrAlreadyExists
	}
	return err
}

const paymentSelectSQL = `
	SELECT id, user_ref, package_ref, status, provider, provider_ref, tx_ref, checkout_url, price_total_etb, vat_etb, gw_fee_etb, created_at, updated_at
	FROM payments`

func scanPayment(row *sql.Row) (Payment, bool, error) {
	var p Payment
	err := row.Scan(&p.ID, &p.UserRef, &p.PackageRef, &p.Status, &p.Provider, &p.ProviderRef, &p.TxRef,
		&p.CheckoutURL, &p.PriceTotalETB, &p.VATETB, &p.GwFeeETB, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Payment{}, false, nil
	}
	if err != nil {
		return Payment{}, false, err
	}
	return p, true, nil
}

func (t *postgresTx) LockPaymentByProviderRef(ctx context.Context, providerRef string) (Payment, bool, error) {
	return scanPayment(t.tx.QueryRowContext(ctx, paymentSelectSQL+` WHERE provider_ref = $1 FOR UPDATE`, providerRef))
}

func (t *postgresTx) LockPaymentByTxRef(ctx context.Context, txRef string) (Payment, bool, error) {
	return scanPayment(t.tx.QueryRowContext(ctx, paymentSelectSQL+` WHERE tx_ref = $1 FOR UPDATE`, txRef))
}

func (t *postgresTx) SavePayment(ctx context.Context, p Payment) error {
	_, err := t.tx.ExecContext(ctx, `
		UPDATE payments SET status=$2, provider_ref=$3, checkout_url=$4, gw_fee_etb=$5, updated_at=$6
		WHERE id = $1`, p.ID, p.Status, p.ProviderRef, p.CheckoutURL, int64(p.GwFeeETB), p.UpdatedAt)
	return err
}

func (t *postgresTx) CountSuccessPaymentsSince(ctx context.Context, userRef string, since time.Time) (int, error) {
	var n int
	err := t.tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM payments WHERE user_ref = $1 AND status = $2 AND updated_at >= $3`,
		userRef, PaymentSuccess, since).Scan(&n)
	return n, err
}

func (t *postgresTx) CreateReceipt(ctx context.Context, r Receipt) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO receipts (id, payment_id, provider_ref, user_ref, amount_etb, issued_at)
		VALUES ($1,$2,$3,$4,$5,$6)`, r.ID, r.PaymentID, r.ProviderRef, r.UserRef, int64(r.AmountETB), r.IssuedAt)
	if isUniqueViolation(err) {
		return ErrAlreadyExists
	}
	return err
}

func (t *postgresTx) HasReceipt(ctx context.Context, paymentID string) (bool, error) {
	var exists bool
	err := t.tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM receipts WHERE payment_id = $1)`, paymentID).Scan(&exists)
	return exists, err
}

func (t *postgresTx) CreateGiftTransaction(ctx context.Context, g GiftTransaction) error {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO gift_transactions (id, sender_ref, recipient_ref, gift_ref, coins_spent, value_etb,
			commission_gross, vat_on_commission, commission_net, creator_payout, status, failure_reason, occurred_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		g.ID, g.SenderRef, g.RecipientRef, g.GiftRef, g.CoinsSpent, int64(g.ValueETB),
		int64(g.CommissionGross), int64(g.VATOnCommission), int64(g.CommissionNet), int64(g.CreatorPayout),
		g.Status, g.FailureReason, g.OccurredAt)
	return err
}

func (t *postgresTx) SumReceivedGiftValueSince(ctx context.Context, userRef string, since time.Time) (int64, error) {
	var sum sql.NullInt64
	err := t.tx.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(value_etb), 0) FROM gift_transactions
		WHERE recipient_ref = $1 AND status = $2 AND occurred_at >= $3`, userRef, GiftTxSuccess, since).Scan(&sum)
	return sum.Int64, err
}

func (t *postgresTx) GetKYCSubmission(ctx context.Context, id string) (KYCSubmission, error) {
	k, ok, err := scanKYC(t.tx.QueryRowContext(ctx, kycSelectSQL+` WHERE id = $1`, id))
	if err != nil {
		return KYCSubmission{}, err
	}
	if !ok {
		return KYCSubmission{}, ErrNotFound
	}
	return k, nil
}

func (t *postgresTx) GetPendingKYCSubmission(ctx context.Context, userRef string) (KYCSubmission, bool, error) {
	return scanKYC(t.tx.QueryRowContext(ctx, kycSelectSQL+` WHERE user_ref = $1 AND status = $2`, userRef, KYCPending))
}

func (t *postgresTx) CreateKYCSubmission(ctx context.Context, k KYCSubmission) error {
	if k.ID == "" {
		k.ID = uuid.NewString()
	}
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO kyc_submissions (id, user_ref, doc_type, document_cipher, selfie_cipher, status, submitted_at, reviewed_at, reviewer_ref)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		k.ID, k.UserRef, k.DocType, k.DocumentCipher, k.SelfieCipher, k.Status, k.SubmittedAt, k.ReviewedAt, k.ReviewerRef)
	return err
}

func (t *postgresTx) SaveKYCSubmission(ctx context.Context, k KYCSubmission) error {
	_, err := t.tx.ExecContext(ctx, `
		UPDATE kyc_submissions SET status=$2, reviewed_at=$3, reviewer_ref=$4 WHERE id = $1`,
		k.ID, k.Status, k.ReviewedAt, k.ReviewerRef)
	return err
}

func (t *postgresTx) CreateSubscriptionPurchase(ctx context.Context, sub SubscriptionPurchase) error {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO subscription_purchases (id, user_ref, plan, amount_etb, duration_days, status, tx_ref, provider_ref, activated_at, expires_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		sub.ID, sub.UserRef, sub.Plan, int64(sub.AmountETB), sub.DurationDays, sub.Status, sub.TxRef, sub.ProviderRef, sub.ActivatedAt, sub.ExpiresAt)
	if isUniqueViolation(err) {
		return ErrAlreadyExists
	}
	return err
}

const subSelectSQL = `
	SELECT id, user_ref, plan, amount_etb, duration_days, status, tx_ref, provider_ref, activated_at, expires_at
	FROM subscription_purchases`

func (t *postgresTx) LockSubscriptionByTxRef(ctx context.Context, txRef string) (SubscriptionPurchase, bool, error) {
	var s SubscriptionPurchase
	err := t.tx.QueryRowContext(ctx, subSelectSQL+` WHERE tx_ref = $1 FOR UPDATE`, txRef).Scan(
		&s.ID, &s.UserRef, &s.Plan, &s.AmountETB, &s.DurationDays, &s.Status, &s.TxRef, &s.ProviderRef, &s.ActivatedAt, &s.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return SubscriptionPurchase{}, false, nil
	}
	if err != nil {
		return SubscriptionPurchase{}, false, err
	}
	return s, true, nil
}

func (t *postgresTx) SaveSubscriptionPurchase(ctx context.Context, sub SubscriptionPurchase) error {
	_, err := t.tx.ExecContext(ctx, `
		UPDATE subscription_purchases SET status=$2, activated_at=$3, expires_at=$4 WHERE id = $1`,
		sub.ID, sub.Status, sub.ActivatedAt, sub.ExpiresAt)
	return err
}

func (t *postgresTx) LockPerks(ctx context.Context, userRef string) (Perks, error) {
	var p Perks
	err := t.tx.QueryRowContext(ctx, `
		SELECT user_ref, boost_expiry, likes_reveal_expiry, ad_free_expiry
		FROM perks WHERE user_ref = $1 FOR UPDATE`, userRef).Scan(
		&p.UserRef, &p.BoostExpiry, &p.LikesRevealExpiry, &p.AdFreeExpiry)
	if errors.Is(err, sql.ErrNoRows) {
		return Perks{UserRef: userRef}, nil
	}
	return p, err
}

func (t *postgresTx) SavePerks(ctx context.Context, p Perks) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO perks (user_ref, boost_expiry, likes_reveal_expiry, ad_free_expiry)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (user_ref) DO UPDATE SET
			boost_expiry = EXCLUDED.boost_expiry,
			likes_reveal_expiry = EXCLUDED.likes_reveal_expiry,
			ad_free_expiry = EXCLUDED.ad_free_expiry`,
		p.UserRef, p.BoostExpiry, p.LikesRevealExpiry, p.AdFreeExpiry)
	return err
}

func (t *postgresTx) AppendAudit(ctx context.Context, a AuditLog) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	metaJSON, err := json.Marshal(a.Metadata)
	if err != nil {
		return fmt.Errorf("marshal audit metadata: %w", err)
	}
	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO audit_logs (id, user_ref, actor_ref, event, metadata, occurred_at)
		VALUES ($1,$2,$3,$4,$5,$6)`, a.ID, a.UserRef, a.ActorRef, a.Event, metaJSON, a.OccurredAt)
	return err
}

// Read-only Store accessors, usable outside WithTx.

func (s *PostgresStore) GetWallet(ctx context.Context, userRef string) (Wallet, error) {
	var w Wallet
	err := s.db.QueryRowContext(ctx, `
		SELECT user_ref, coin_balance, balance_etb, hold_etb, kyc_level, withdrawals_blocked, is_banned
		FROM wallets WHERE user_ref = $1`, userRef).Scan(
		&w.UserRef, &w.CoinBalance, &w.BalanceETB, &w.HoldETB, &w.KYCLevel, &w.WithdrawalsBlocked, &w.IsBanned)
	if errors.Is(err, sql.ErrNoRows) {
		return Wallet{UserRef: userRef, KYCLevel: 1}, nil
	}
	return w, err
}

func (s *PostgresStore) ListActiveGifts(ctx context.Context) ([]Gift, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, coins, value_etb, active FROM gifts WHERE active = TRUE`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Gift
	for rows.Next() {
		var g Gift
		if err := rows.Scan(&g.ID, &g.Name, &g.Coins, &g.ValueETB, &g.Active); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ListPackages(ctx context.Context) ([]CoinPackage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, target_net_etb, coins, base_etb, vat_etb, price_total_etb FROM coin_packages`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []CoinPackage
	for rows.Next() {
		var p CoinPackage
		if err := rows.Scan(&p.ID, &p.Name, &p.TargetNetETB, &p.Coins, &p.BaseETB, &p.VATETB, &p.PriceTotalETB); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PostgresStore) GetPayment(ctx context.Context, id string) (Payment, error) {
	p, ok, err := scanPayment(s.db.QueryRowContext(ctx, paymentSelectSQL+` WHERE id = $1`, id))
	if err != nil {
		return Payment{}, err
	}
	if !ok {
		return Payment{}, ErrNotFound
	}
	return p, nil
}

func (s *PostgresStore) GetReceiptByPayment(ctx context.Context, paymentID string) (Receipt, error) {
	var r Receipt
	err := s.db.QueryRowContext(ctx, `
		SELECT id, payment_id, provider_ref, user_ref, amount_etb, issued_at FROM receipts WHERE payment_id = $1`,
		paymentID).Scan(&r.ID, &r.PaymentID, &r.ProviderRef, &r.UserRef, &r.AmountETB, &r.IssuedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Receipt{}, ErrNotFound
	}
	return r, err
}

const withdrawalSelectSQL = `
	SELECT id, user_ref, method, destination, amount_etb, status, provider_ref, failure_reason, created_at, approved_at, paid_at
	FROM withdrawal_requests`

func scanWithdrawal(row *sql.Row) (WithdrawalRequest, error) {
	var w WithdrawalRequest
	err := row.Scan(&w.ID, &w.UserRef, &w.Method, &w.Destination, &w.AmountETB, &w.Status, &w.ProviderRef,
		&w.FailureReason, &w.CreatedAt, &w.ApprovedAt, &w.PaidAt)
	if errors.Is(err, sql.ErrNoRows) {
		return WithdrawalRequest{}, ErrNotFound
	}
	return w, err
}

func (s *PostgresStore) GetWithdrawal(ctx context.Context, id string) (WithdrawalRequest, error) {
	return scanWithdrawal(s.db.QueryRowContext(ctx, withdrawalSelectSQL+` WHERE id = $1`, id))
}

func (s *PostgresStore) ListWithdrawals(ctx context.Context, status WithdrawalStatus) ([]WithdrawalRequest, error) {
	query := withdrawalSelectSQL
	args := []any{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, status)
	}
	query += ` ORDER BY created_at ASC`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []WithdrawalRequest
	for rows.Next() {
		var w WithdrawalRequest
		if err := rows.Scan(&w.ID, &w.UserRef, &w.Method, &w.Destination, &w.AmountETB, &w.Status, &w.ProviderRef,
			&w.FailureReason, &w.CreatedAt, &w.ApprovedAt, &w.PaidAt); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

const giftTransactionSelectSQL = `
	SELECT id, sender_ref, recipient_ref, gift_ref, coins_spent, value_etb,
		commission_gross, vat_on_commission, commission_net, creator_payout, status, failure_reason, occurred_at
	FROM gift_transactions`

// ListRecentGiftTransactions returns the most recent gifts a user sent or
// received, newest first, for the GET /api/wallet/ "recent gifts" listing
// (spec.md §6.1).
func (s *PostgresStore) ListRecentGiftTransactions(ctx context.Context, userRef string, limit int) ([]GiftTransaction, error) {
	rows, err := s.db.QueryContext(ctx, giftTransactionSelectSQL+`
		WHERE sender_ref = $1 OR recipient_ref = $1
		ORDER BY occurred_at DESC LIMIT $2`, userRef, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []GiftTransaction
	for rows.Next() {
		var g GiftTransaction
		if err := rows.Scan(&g.ID, &g.SenderRef, &g.RecipientRef, &g.GiftRef, &g.CoinsSpent, &g.ValueETB,
			&g.CommissionGross, &g.VATOnCommission, &g.CommissionNet, &g.CreatorPayout, &g.Status,
			&g.FailureReason, &g.OccurredAt); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ListAllUserRefs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT user_ref FROM wallets`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var ref string
		if err := rows.Scan(&ref); err != nil {
			return nil, err
		}
		out = append(out, ref)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ListPerksPastExpiry(ctx context.Context, now time.Time) ([]Perks, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_ref, boost_expiry, likes_reveal_expiry, ad_free_expiry FROM perks
		WHERE (boost_expiry IS NOT NULL AND boost_expiry < $1)
		   OR (likes_reveal_expiry IS NOT NULL AND likes_reveal_expiry < $1)
		   OR (ad_free_expiry IS NOT NULL AND ad_free_expiry < $1)`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Perks
	for rows.Next() {
		var p Perks
		if err := rows.Scan(&p.UserRef, &p.BoostExpiry, &p.LikesRevealExpiry, &p.AdFreeExpiry); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

const kycSelectSQL = `
	SELECT id, user_ref, doc_type, document_cipher, selfie_cipher, status, submitted_at, reviewed_at, reviewer_ref
	FROM kyc_submissions`

func scanKYC(row *sql.Row) (KYCSubmission, bool, error) {
	var k KYCSubmission
	err := row.Scan(&k.ID, &k.UserRef, &k.DocType, &k.DocumentCipher, &k.SelfieCipher, &k.Status,
		&k.SubmittedAt, &k.ReviewedAt, &k.ReviewerRef)
	if errors.Is(err, sql.ErrNoRows) {
		return KYCSubmission{}, false, nil
	}
	if err != nil {
		return KYCSubmission{}, false, err
	}
	return k, true, nil
}

// isUniqueViolation recognizes Postgres unique-constraint violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pqStr string
	if e, ok := err.(interface{ Error() string }); ok {
		pqStr = e.Error()
	}
	return pqStr != "" && (contains(pqStr, "23505") || contains(pqStr, "duplicate key value"))
}

func contains(s, substr string) bool {
	return len(s) >= len(substr) && (func() bool {
		for i := 0; i+len(substr) <= len(s); i++ {
			if s[i:i+len(substr)] == substr {
				return true
			}
		}
		return false
	})()
}

var _ = money.ETB(0)
