package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dsamarin/gatepay/internal/domain/transaction"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TransactionRepository implements transaction.Store using PostgreSQL.
type TransactionRepository struct {
	pool *pgxpool.Pool
}

// NewTransactionRepository creates a new TransactionRepository.
func NewTransactionRepository(pool *pgxpool.Pool) *TransactionRepository {
	return &TransactionRepository{pool: pool}
}

func (r *TransactionRepository) db(ctx context.Context) querier {
	return queryTarget(ctx, r.pool)
}

const txColumns = `id, user_id, email, order_id, currency, amount, description, status, options, created_at, updated_at`

// Create inserts a new transaction and assigns its ID.
func (r *TransactionRepository) Create(ctx context.Context, t *transaction.Transaction) error {
	options, err := json.Marshal(t.Options)
	if err != nil {
		return fmt.Errorf("marshal options: %w", err)
	}

	err = r.db(ctx).QueryRow(ctx,
		`INSERT INTO payment_transactions
		 (user_id, email, order_id, currency, amount, description, status, options, created_at, updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		 RETURNING id`,
		t.UserID, t.Email, t.OrderID, t.Currency, transaction.FormatCents(t.AmountCents),
		t.Description, string(t.Status), options, t.CreatedAt, t.UpdatedAt,
	).Scan(&t.ID)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// GetByID retrieves a transaction by ID; (nil, nil) when absent.
func (r *TransactionRepository) GetByID(ctx context.Context, id int64) (*transaction.Transaction, error) {
	return r.scanTransaction(r.db(ctx).QueryRow(ctx,
		`SELECT `+txColumns+` FROM payment_transactions WHERE id = $1`, id))
}

// FindRecentByID returns the last transaction with this ID created within the
// window, or (nil, nil).
func (r *TransactionRepository) FindRecentByID(ctx context.Context, id int64, window time.Duration) (*transaction.Transaction, error) {
	cutoff := time.Now().Add(-window)
	return r.scanTransaction(r.db(ctx).QueryRow(ctx,
		`SELECT `+txColumns+` FROM payment_transactions
		 WHERE id = $1 AND created_at >= $2
		 ORDER BY created_at DESC LIMIT 1`, id, cutoff))
}

// FindRecentByEmail returns the last transaction for this email created
// within the window, or (nil, nil).
func (r *TransactionRepository) FindRecentByEmail(ctx context.Context, email string, window time.Duration) (*transaction.Transaction, error) {
	cutoff := time.Now().Add(-window)
	return r.scanTransaction(r.db(ctx).QueryRow(ctx,
		`SELECT `+txColumns+` FROM payment_transactions
		 WHERE email = $1 AND created_at >= $2
		 ORDER BY created_at DESC LIMIT 1`, email, cutoff))
}

// UpdateStatusFrom atomically moves a transaction between statuses. The WHERE
// clause on the current status is what makes terminal transitions
// at-most-once across concurrent callbacks.
func (r *TransactionRepository) UpdateStatusFrom(ctx context.Context, id int64, from, to transaction.Status) (bool, error) {
	tag, err := r.db(ctx).Exec(ctx,
		`UPDATE payment_transactions SET status = $1, updated_at = $2
		 WHERE id = $3 AND status = $4`,
		string(to), time.Now(), id, string(from),
	)
	if err != nil {
		return false, fmt.Errorf("update transaction status: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// scanTransaction scans a transaction row, mapping pgx.ErrNoRows to (nil, nil).
func (r *TransactionRepository) scanTransaction(row pgx.Row) (*transaction.Transaction, error) {
	t := &transaction.Transaction{Options: make(map[string]string)}
	var (
		amountStr string
		status    string
		options   []byte
	)
	err := row.Scan(
		&t.ID, &t.UserID, &t.Email, &t.OrderID, &t.Currency, &amountStr,
		&t.Description, &status, &options, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan transaction: %w", err)
	}

	cents, err := transaction.ParseCents(amountStr)
	if err != nil {
		return nil, fmt.Errorf("parse amount: %w", err)
	}
	t.AmountCents = cents
	t.Status = transaction.Status(status)

	if len(options) > 0 {
		if err := json.Unmarshal(options, &t.Options); err != nil {
			return nil, fmt.Errorf("unmarshal transaction options: %w", err)
		}
	}
	return t, nil
}
