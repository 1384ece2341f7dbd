package orders

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/chrischeks/order-management-API/internal/domain"
	"github.com/chrischeks/order-management-API/internal/sealer"
)

// Filter narrows List. Zero values match everything.
type Filter struct {
	Status     domain.OrderStatus
	ReferralID string
}

type OrderRepository struct {
	db     *sql.DB
	sealer *sealer.Sealer
}

func NewOrderRepository(db *sql.DB, s *sealer.Sealer) *OrderRepository {
	return &OrderRepository{db: db, sealer: s}
}

const selectOrders = `
	SELECT o.id, o.trx_ref, o.secret, o.referral_id, o.status, o.payment_verified_date,
	       o.created_at, o.last_updated_at, o.expected_payout_date, o.delivered_at,
	       o.expected_transition_at, r.id, r.first_name, r.last_name, r.email
	FROM orders.orders o
	LEFT JOIN orders.referrers r ON r.id = o.referral_id`

func (r *OrderRepository) Create(ctx context.Context, order *domain.Order) error {
	order.ID = uuid.New().String()

	secret, err := r.seal(order)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO orders.orders (id, trx_ref, secret, referral_id, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, order.ID, order.TrxRef, secret, order.ReferralID, order.Status, order.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

// GetByID returns nil, nil when no order has the id.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}
	return r.getOne(ctx, selectOrders+` WHERE o.id = $1`, id)
}

// GetByTrxRef returns the order with the reference and status, or nil, nil.
func (r *OrderRepository) GetByTrxRef(ctx context.Context, trxRef string, status domain.OrderStatus) (*domain.Order, error) {
	return r.getOne(ctx, selectOrders+` WHERE o.trx_ref = $1 AND o.status = $2`, trxRef, status)
}

func (r *OrderRepository) getOne(ctx context.Context, query string, args ...any) (*domain.Order, error) {
	order, err := r.scan(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return order, nil
}

// Save writes every mutable column of an existing order.
func (r *OrderRepository) Save(ctx context.Context, order *domain.Order) error {
	secret, err := r.seal(order)
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE orders.orders
		SET secret = $2, status = $3, payment_verified_date = $4, last_updated_at = $5,
		    expected_payout_date = $6, delivered_at = $7, expected_transition_at = $8
		WHERE id = $1
	`, order.ID, secret, order.Status, order.PaymentVerifiedDate, order.LastUpdatedAt,
		order.ExpectedPayoutDate, order.DeliveredAt, order.ExpectedTransitionAt)
	if err != nil {
		return fmt.Errorf("update order %s: %w", order.ID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns matching orders, newest first.
func (r *OrderRepository) List(ctx context.Context, filter Filter) ([]domain.Order, error) {
	var (
		where []string
		args  []any
	)
	if filter.Status != "" {
		args = append(args, filter.Status)
		where = append(where, "o.status = $"+strconv.Itoa(len(args)))
	}
	if filter.ReferralID != "" {
		args = append(args, filter.ReferralID)
		where = append(where, "o.referral_id = $"+strconv.Itoa(len(args)))
	}

	query := selectOrders
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY o.created_at DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer func() { _ = rows.Close() }()

	orders := []domain.Order{}
	for rows.Next() {
		order, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *order)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return orders, nil
}

// CompleteDue moves up to limit Delivered orders whose transition is due at now
// to Completed. Rows locked by a concurrent sweep are skipped, and the update
// only applies while the order is still Delivered.
func (r *OrderRepository) CompleteDue(ctx context.Context, now time.Time, limit int, payoutDate func(time.Time) time.Time) ([]domain.Order, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, selectOrders+`
		WHERE o.status = $1 AND o.expected_transition_at <= $2
		ORDER BY o.expected_transition_at
		LIMIT $3
		FOR UPDATE OF o SKIP LOCKED
	`, domain.OrderStatusDelivered, now, limit)
	if err != nil {
		return nil, fmt.Errorf("select due orders: %w", err)
	}

	var due []domain.Order
	for rows.Next() {
		order, err := r.scan(rows)
		if err != nil {
			_ = rows.Close()
			return nil, err
		}
		due = append(due, *order)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	completed := make([]domain.Order, 0, len(due))
	for _, order := range due {
		from := now
		if order.DeliveredAt != nil {
			from = *order.DeliveredAt
		}
		payout := payoutDate(from)

		result, err := tx.ExecContext(ctx, `
			UPDATE orders.orders
			SET status = $2, last_updated_at = $3, expected_payout_date = $4, expected_transition_at = NULL
			WHERE id = $1 AND status = $5
		`, order.ID, domain.OrderStatusCompleted, now, payout, domain.OrderStatusDelivered)
		if err != nil {
			return nil, fmt.Errorf("complete order %s: %w", order.ID, err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("complete order %s: %w", order.ID, err)
		}
		if n == 0 {
			continue
		}

		order.Status = domain.OrderStatusCompleted
		order.LastUpdatedAt = &now
		order.ExpectedPayoutDate = &payout
		order.ExpectedTransitionAt = nil
		completed = append(completed, order)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return completed, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *OrderRepository) scan(row rowScanner) (*domain.Order, error) {
	var (
		order        domain.Order
		sealed       []byte
		refID        sql.NullString
		refFirstName sql.NullString
		refLastName  sql.NullString
		refEmail     sql.NullString
	)

	err := row.Scan(&order.ID, &order.TrxRef, &sealed, &order.ReferralID, &order.Status,
		&order.PaymentVerifiedDate, &order.CreatedAt, &order.LastUpdatedAt, &order.ExpectedPayoutDate,
		&order.DeliveredAt, &order.ExpectedTransitionAt, &refID, &refFirstName, &refLastName, &refEmail)
	if err != nil {
		return nil, err
	}

	plain, err := r.sealer.Open(sealed, []byte(order.ID))
	if err != nil {
		return nil, fmt.Errorf("open secret of order %s: %w", order.ID, err)
	}
	if err := json.Unmarshal(plain, &order.Secret); err != nil {
		return nil, fmt.Errorf("decode secret of order %s: %w", order.ID, err)
	}

	if refID.Valid {
		order.Referrer = &domain.Referrer{
			ID:        refID.String,
			FirstName: refFirstName.String,
			LastName:  refLastName.String,
			Email:     refEmail.String,
		}
	}
	return &order, nil
}

func (r *OrderRepository) seal(order *domain.Order) ([]byte, error) {
	plain, err := json.Marshal(order.Secret)
	if err != nil {
		return nil, fmt.Errorf("encode secret: %w", err)
	}
	sealed, err := r.sealer.Seal(plain, []byte(order.ID))
	if err != nil {
		return nil, fmt.Errorf("seal secret: %w", err)
	}
	return sealed, nil
}
