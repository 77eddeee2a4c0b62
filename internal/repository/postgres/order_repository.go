package postgres

import (
	"context"
	"errors"
	"fmt"

	domainerrors "github.com/dsamarin/gatepay/internal/domain/errors"
	"github.com/dsamarin/gatepay/internal/domain/order"
	"github.com/dsamarin/gatepay/internal/domain/transaction"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// OrderRepository implements order.Gateway using PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository creates a new OrderRepository.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

func (r *OrderRepository) db(ctx context.Context) querier {
	return queryTarget(ctx, r.pool)
}

const orderColumns = `id, user_id, email, price, currency, payment_method, is_paid`

// GetByID retrieves an order by ID; (nil, nil) when absent.
func (r *OrderRepository) GetByID(ctx context.Context, id int64) (*order.Order, error) {
	return r.scanOrder(r.db(ctx).QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
}

// FindOwned retrieves an order only when the given user or email owns it.
// Anonymous callers (userID 0) match on email alone.
func (r *OrderRepository) FindOwned(ctx context.Context, id, userID int64, email string) (*order.Order, error) {
	o, err := r.GetByID(ctx, id)
	if err != nil || o == nil {
		return o, err
	}
	if userID != 0 && o.UserID == userID {
		return o, nil
	}
	if email != "" && o.Email == email {
		return o, nil
	}
	return nil, domainerrors.ErrForbidden
}

// MarkPaid flags an order as paid and sets its status name.
func (r *OrderRepository) MarkPaid(ctx context.Context, id int64, statusName string) error {
	tag, err := r.db(ctx).Exec(ctx,
		`UPDATE orders SET is_paid = true, status = $1, updated_at = now() WHERE id = $2`,
		statusName, id)
	if err != nil {
		return fmt.Errorf("mark order paid: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domainerrors.ErrOrderNotFound
	}
	return nil
}

func (r *OrderRepository) scanOrder(row pgx.Row) (*order.Order, error) {
	o := &order.Order{}
	var priceStr string
	err := row.Scan(&o.ID, &o.UserID, &o.Email, &priceStr, &o.Currency, &o.PaymentMethod, &o.IsPaid)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan order: %w", err)
	}
	cents, err := transaction.ParseCents(priceStr)
	if err != nil {
		return nil, fmt.Errorf("parse order price: %w", err)
	}
	o.PriceCents = cents
	return o, nil
}
