package orders

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"ai-photo-kiosk/internal/models"
)

// Postgres is the durable Store used when the kiosk is configured with a
// DATABASE_URL, so the operator's order history survives restarts.
type Postgres struct {
	db *sql.DB
}

var _ Store = (*Postgres)(nil)

func NewPostgres(connectionString string) (*Postgres, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Postgres{db: db}, nil
}

func (p *Postgres) SaveOrder(ctx context.Context, order models.Order) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO kiosk_orders (id, session_id, order_type, amount, status, payment_ref, payment_time, download_url, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE
		SET status = EXCLUDED.status, payment_ref = EXCLUDED.payment_ref,
		    payment_time = EXCLUDED.payment_time, download_url = EXCLUDED.download_url
	`, order.ID, order.SessionID, order.OrderType, order.Amount, order.Status,
		order.PaymentRef, order.PaymentTime, order.DownloadURL, order.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save order: %w", err)
	}
	return nil
}

func (p *Postgres) GetOrder(ctx context.Context, id string) (models.Order, error) {
	var order models.Order
	err := p.db.QueryRowContext(ctx, `
		SELECT id, session_id, order_type, amount, status, payment_ref, payment_time, download_url, created_at
		FROM kiosk_orders
		WHERE id = $1
	`, id).Scan(
		&order.ID, &order.SessionID, &order.OrderType, &order.Amount, &order.Status,
		&order.PaymentRef, &order.PaymentTime, &order.DownloadURL, &order.CreatedAt,
	)
	if err != nil {
		return models.Order{}, fmt.Errorf("failed to get order: %w", err)
	}
	return order, nil
}

func (p *Postgres) ListOrders(ctx context.Context) ([]models.Order, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, session_id, order_type, amount, status, payment_ref, payment_time, download_url, created_at
		FROM kiosk_orders
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		var order models.Order
		err := rows.Scan(
			&order.ID, &order.SessionID, &order.OrderType, &order.Amount, &order.Status,
			&order.PaymentRef, &order.PaymentTime, &order.DownloadURL, &order.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, order)
	}

	return orders, nil
}

func (p *Postgres) Close() error {
	return p.db.Close()
}
