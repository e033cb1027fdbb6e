package catalog

const UncategorizedName = "Uncategorized"

type Product struct {
	ID            string   `json:"id" db:"id"`
	Name          string   `json:"name" db:"name"`
	Description   string   `json:"description" db:"description"`
	Price         float64  `json:"price" db:"price"`
	OriginalPrice *float64 `json:"originalPrice,omitempty" db:"original_price"`
	Image         string   `json:"image" db:"image_url"`
	Images        []string `json:"images,omitempty" db:"-"`
	Category      string   `json:"category" db:"category"`
	Brand         string   `json:"brand" db:"brand"`
	Rating        float64  `json:"rating" db:"rating"`
	ReviewCount   int      `json:"reviewCount" db:"review_count"`
	InStock       bool     `json:"inStock" db:"in_stock"`
	Tags          []string `json:"tags,omitempty" db:"-"`
	Sizes         []string `json:"sizes,omitempty" db:"-"`
	Colors        []string `json:"colors,omitempty" db:"-"`
}

// HasDiscount сообщает, показывать ли зачёркнутую цену.
func (p Product) HasDiscount() bool {
	return p.OriginalPrice != nil && *p.OriginalPrice > p.Price
}

type Category struct {
	ID           string `json:"id" db:"id"`
	Name         string `json:"name" db:"name"`
	Slug         string `json:"slug" db:"slug"`
	Image        string `json:"image" db:"image_url"`
	ProductCount int    `json:"productCount" db:"product_count"`
}

type Filter struct {
	Category string
	Tag      string
	Limit    int
}
