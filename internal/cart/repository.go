package cart

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/vasiliy-maslov/storefront/internal/catalog"
)

const Table = "cart_items"

type Repository interface {
	List(ctx context.Context, userID string) ([]Line, error)
	// AddOrIncrement inserts the line or adds quantity to the existing one in a single statement.
	AddOrIncrement(ctx context.Context, userID string, key Key, quantity int) error
	SetQuantity(ctx context.Context, userID string, key Key, quantity int) error
	Delete(ctx context.Context, userID string, key Key) error
	DeleteAll(ctx context.Context, userID string) error
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

func (r *postgresRepository) List(ctx context.Context, userID string) ([]Line, error) {
	query := `
		SELECT ci.quantity, ci.selected_size, ci.selected_color,
		       p.id::text, p.name, p.description, p.price::float8, p.original_price::float8,
		       p.image_url, p.images, COALESCE(c.name, 'Uncategorized'), p.brand,
		       p.rating::float8, p.review_count, p.in_stock, p.tags, p.sizes, p.colors
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		LEFT JOIN categories c ON c.id = p.category_id
		WHERE ci.user_id = $1
		ORDER BY ci.created_at, ci.id
	`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query cart items: %w", err)
	}
	defer rows.Close()

	lines := []Line{}
	for rows.Next() {
		var (
			l Line
			p catalog.Product
		)
		err := rows.Scan(
			&l.Quantity, &l.SelectedSize, &l.SelectedColor,
			&p.ID, &p.Name, &p.Description, &p.Price, &p.OriginalPrice,
			&p.Image, &p.Images, &p.Category, &p.Brand,
			&p.Rating, &p.ReviewCount, &p.InStock, &p.Tags, &p.Sizes, &p.Colors,
		)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan cart item: %w", err)
		}
		l.Product = p
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: failed to iterate cart items: %w", err)
	}

	return lines, nil
}

func (r *postgresRepository) AddOrIncrement(ctx context.Context, userID string, key Key, quantity int) error {
	query := `
		INSERT INTO cart_items (user_id, product_id, quantity, selected_size, selected_color)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, product_id, selected_size, selected_color)
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity, updated_at = now()
	`
	if _, err := r.db.Exec(ctx, query, userID, key.ProductID, quantity, key.Size, key.Color); err != nil {
		return fmt.Errorf("repository: failed to upsert cart item: %w", err)
	}
	return nil
}

func (r *postgresRepository) SetQuantity(ctx context.Context, userID string, key Key, quantity int) error {
	query := `
		UPDATE cart_items SET quantity = $5, updated_at = now()
		WHERE user_id = $1 AND product_id = $2 AND selected_size = $3 AND selected_color = $4
	`
	if _, err := r.db.Exec(ctx, query, userID, key.ProductID, key.Size, key.Color, quantity); err != nil {
		return fmt.Errorf("repository: failed to update cart item quantity: %w", err)
	}
	return nil
}

func (r *postgresRepository) Delete(ctx context.Context, userID string, key Key) error {
	query := `
		DELETE FROM cart_items
		WHERE user_id = $1 AND product_id = $2 AND selected_size = $3 AND selected_color = $4
	`
	if _, err := r.db.Exec(ctx, query, userID, key.ProductID, key.Size, key.Color); err != nil {
		return fmt.Errorf("repository: failed to delete cart item: %w", err)
	}
	return nil
}

func (r *postgresRepository) DeleteAll(ctx context.Context, userID string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM cart_items WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("repository: failed to clear cart: %w", err)
	}
	return nil
}
