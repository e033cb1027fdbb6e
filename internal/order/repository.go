package order

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog/log"
)

const Table = "orders"

type Repository interface {
	// Create inserts the order unless one already exists for its payment intent.
	// created is false when the row was already there.
	Create(ctx context.Context, order *Order) (created bool, err error)
	ListByUser(ctx context.Context, userID string, limit int) ([]Order, error)
}

type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type postgresRepository struct {
	db DB
}

func NewRepository(db DB) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) Create(ctx context.Context, order *Order) (bool, error) {
	if order.ID == uuid.Nil {
		id, err := uuid.NewV4()
		if err != nil {
			log.Error().Err(err).Msg("repository: failed to generate order ID")
			return false, fmt.Errorf("repository: failed to generate order ID: %w", err)
		}
		order.ID = id
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now().UTC()
	}

	items, err := json.Marshal(order.Items)
	if err != nil {
		return false, fmt.Errorf("repository: failed to encode order items: %w", err)
	}
	var address any
	if order.ShippingAddress != nil {
		raw, err := json.Marshal(order.ShippingAddress)
		if err != nil {
			return false, fmt.Errorf("repository: failed to encode shipping address: %w", err)
		}
		address = raw
	}

	query := `
		INSERT INTO orders (id, user_id, payment_intent_id, amount, currency, status, shipping_address, items, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (payment_intent_id) DO NOTHING
	`
	tag, err := r.db.Exec(ctx, query,
		order.ID,
		order.UserID,
		order.PaymentIntentID,
		order.Amount,
		order.Currency,
		string(order.Status),
		address,
		items,
		order.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("repository: failed to insert order: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

func (r *postgresRepository) ListByUser(ctx context.Context, userID string, limit int) ([]Order, error) {
	query := `
		SELECT id, user_id::text, payment_intent_id, amount, currency, status, shipping_address, items, created_at
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query orders for user id %s: %w", userID, err)
	}
	defer rows.Close()

	orders := make([]Order, 0)
	for rows.Next() {
		var (
			o       Order
			status  string
			address []byte
			items   []byte
		)
		err := rows.Scan(&o.ID, &o.UserID, &o.PaymentIntentID, &o.Amount, &o.Currency, &status, &address, &items, &o.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan order for user id %s: %w", userID, err)
		}
		o.Status = Status(status)

		if err := json.Unmarshal(items, &o.Items); err != nil {
			return nil, fmt.Errorf("repository: failed to decode items of order %s: %w", o.ID, err)
		}
		if len(address) > 0 {
			o.ShippingAddress = &ShippingAddress{}
			if err := json.Unmarshal(address, o.ShippingAddress); err != nil {
				return nil, fmt.Errorf("repository: failed to decode shipping address of order %s: %w", o.ID, err)
			}
		}
		orders = append(orders, o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: failed iterating orders for user id %s: %w", userID, err)
	}

	return orders, nil
}
