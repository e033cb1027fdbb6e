package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

var ErrProductNotFound = errors.New("product not found")

type Repository interface {
	ListProducts(ctx context.Context, filter Filter) ([]Product, error)
	GetProduct(ctx context.Context, id string) (*Product, error)
	ListCategories(ctx context.Context) ([]Category, error)
}

type productRow struct {
	ID            string          `db:"id"`
	Name          string          `db:"name"`
	Description   string          `db:"description"`
	Price         float64         `db:"price"`
	OriginalPrice sql.NullFloat64 `db:"original_price"`
	ImageURL      string          `db:"image_url"`
	Images        pq.StringArray  `db:"images"`
	Category      string          `db:"category"`
	Brand         string          `db:"brand"`
	Rating        float64         `db:"rating"`
	ReviewCount   int             `db:"review_count"`
	InStock       bool            `db:"in_stock"`
	Tags          pq.StringArray  `db:"tags"`
	Sizes         pq.StringArray  `db:"sizes"`
	Colors        pq.StringArray  `db:"colors"`
}

func (r productRow) toProduct() Product {
	p := Product{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		Price:       r.Price,
		Image:       r.ImageURL,
		Images:      []string(r.Images),
		Category:    r.Category,
		Brand:       r.Brand,
		Rating:      r.Rating,
		ReviewCount: r.ReviewCount,
		InStock:     r.InStock,
		Tags:        []string(r.Tags),
		Sizes:       []string(r.Sizes),
		Colors:      []string(r.Colors),
	}
	if r.OriginalPrice.Valid {
		v := r.OriginalPrice.Float64
		p.OriginalPrice = &v
	}
	return p
}

const selectProducts = `
	SELECT p.id::text AS id, p.name, p.description, p.price::float8 AS price,
	       p.original_price::float8 AS original_price, p.image_url, p.images,
	       COALESCE(c.name, 'Uncategorized') AS category, p.brand, p.rating::float8 AS rating,
	       p.review_count, p.in_stock, p.tags, p.sizes, p.colors
	FROM products p
	LEFT JOIN categories c ON c.id = p.category_id`

type sqlxRepository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &sqlxRepository{db: db}
}

func (r *sqlxRepository) ListProducts(ctx context.Context, filter Filter) ([]Product, error) {
	var (
		conds []string
		args  []any
	)
	if filter.Category != "" {
		args = append(args, filter.Category)
		conds = append(conds, fmt.Sprintf("c.name = $%d", len(args)))
	}
	if filter.Tag != "" {
		args = append(args, filter.Tag)
		conds = append(conds, fmt.Sprintf("$%d = ANY(p.tags)", len(args)))
	}

	query := selectProducts
	if len(conds) > 0 {
		query += "\n\tWHERE " + strings.Join(conds, " AND ")
	}
	query += "\n\tORDER BY p.created_at DESC, p.id"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf("\n\tLIMIT $%d", len(args))
	}

	var rows []productRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("repository: failed to list products: %w", err)
	}

	products := make([]Product, 0, len(rows))
	for _, row := range rows {
		products = append(products, row.toProduct())
	}
	return products, nil
}

func (r *sqlxRepository) GetProduct(ctx context.Context, id string) (*Product, error) {
	var row productRow
	err := r.db.GetContext(ctx, &row, selectProducts+"\n\tWHERE p.id::text = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("repository: failed to get product %s: %w", id, err)
	}

	p := row.toProduct()
	return &p, nil
}

func (r *sqlxRepository) ListCategories(ctx context.Context) ([]Category, error) {
	var categories []Category
	err := r.db.SelectContext(ctx, &categories,
		`SELECT id::text AS id, name, slug, image_url, product_count FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to list categories: %w", err)
	}
	return categories, nil
}
