package wishlist

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const Table = "wishlist_items"

type Repository interface {
	List(ctx context.Context, userID string) ([]string, error)
	Add(ctx context.Context, userID, productID string) error
	Remove(ctx context.Context, userID, productID string) error
	// Toggle removes the entry if present, inserts it otherwise, and reports whether it was added.
	Toggle(ctx context.Context, userID, productID string) (bool, error)
	DeleteAll(ctx context.Context, userID string) error
}

type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type postgresRepository struct {
	db DB
}

func NewRepository(db DB) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) List(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.Query(ctx,
		`SELECT product_id::text FROM wishlist_items WHERE user_id = $1 ORDER BY created_at, product_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query wishlist: %w", err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("repository: failed to collect wishlist: %w", err)
	}
	return ids, nil
}

func (r *postgresRepository) Add(ctx context.Context, userID, productID string) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO wishlist_items (user_id, product_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, userID, productID)
	if err != nil {
		return fmt.Errorf("repository: failed to add wishlist item: %w", err)
	}
	return nil
}

func (r *postgresRepository) Remove(ctx context.Context, userID, productID string) error {
	_, err := r.db.Exec(ctx,
		`DELETE FROM wishlist_items WHERE user_id = $1 AND product_id = $2`, userID, productID)
	if err != nil {
		return fmt.Errorf("repository: failed to remove wishlist item: %w", err)
	}
	return nil
}

func (r *postgresRepository) Toggle(ctx context.Context, userID, productID string) (bool, error) {
	query := `
		WITH removed AS (
			DELETE FROM wishlist_items WHERE user_id = $1 AND product_id = $2 RETURNING product_id
		)
		INSERT INTO wishlist_items (user_id, product_id)
		SELECT $1, $2 WHERE NOT EXISTS (SELECT 1 FROM removed)
		ON CONFLICT DO NOTHING
		RETURNING true
	`
	var added bool
	err := r.db.QueryRow(ctx, query, userID, productID).Scan(&added)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("repository: failed to toggle wishlist item: %w", err)
	}
	return added, nil
}

func (r *postgresRepository) DeleteAll(ctx context.Context, userID string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM wishlist_items WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("repository: failed to clear wishlist: %w", err)
	}
	return nil
}
