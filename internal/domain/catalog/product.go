package catalog

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Product is one catalog document as ingested from the crawler export.
type Product struct {
	Title        string    `json:"title" yaml:"title"`
	Promotion    string    `json:"product_promotion" yaml:"product_promotion"`
	Specs        string    `json:"product_specs" yaml:"product_specs"`
	Price        string    `json:"current_price" yaml:"current_price"`
	ColorOptions []string  `json:"color_options" yaml:"color_options"`
	URL          string    `json:"url" yaml:"url"`
	Embedding    []float32 `json:"embedding,omitempty" yaml:"-"`
}

// ProductHit is a search result: the product projection without its
// embedding, plus the similarity score.
type ProductHit struct {
	Title        string   `json:"title"`
	Promotion    string   `json:"product_promotion"`
	Specs        string   `json:"product_specs"`
	Price        string   `json:"current_price"`
	ColorOptions []string `json:"color_options"`
	URL          string   `json:"url"`
	Score        float64  `json:"score"`
}

func (p Product) Hit(score float64) ProductHit {
	return ProductHit{
		Title:        p.Title,
		Promotion:    p.Promotion,
		Specs:        p.Specs,
		Price:        p.Price,
		ColorOptions: append([]string(nil), p.ColorOptions...),
		URL:          p.URL,
		Score:        score,
	}
}

// CatalogProduct is the persisted row behind the local product index.
type CatalogProduct struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Title        string         `gorm:"type:text;not null;uniqueIndex" json:"title"`
	Promotion    string         `gorm:"type:text;not null;default:''" json:"product_promotion"`
	Specs        string         `gorm:"type:text;not null;default:''" json:"product_specs"`
	Price        string         `gorm:"type:text;not null;default:''" json:"current_price"`
	ColorOptions datatypes.JSON `gorm:"type:json" json:"color_options"`
	URL          string         `gorm:"type:text;not null;default:''" json:"url"`
	Embedding    datatypes.JSON `gorm:"type:json" json:"embedding"`
	CreatedAt    time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

func (CatalogProduct) TableName() string { return "catalog_product" }

func (p *CatalogProduct) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
