package catalog

import (
	"encoding/json"
	"fmt"
	"strings"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/hedspi/phone-assistant/internal/domain/catalog"
	"github.com/hedspi/phone-assistant/internal/pkg/dbctx"
	"github.com/hedspi/phone-assistant/internal/platform/logger"
)

type ProductRepo interface {
	Upsert(dbc dbctx.Context, products []types.Product) (int, error)
	ListAll(dbc dbctx.Context) ([]types.Product, error)
	Count(dbc dbctx.Context) (int64, error)
}

type productRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewProductRepo(db *gorm.DB, log *logger.Logger) ProductRepo {
	return &productRepo{db: db, log: log.With("repo", "ProductRepo")}
}

// Upsert inserts or refreshes products by title. Products without a title are skipped.
func (r *productRepo) Upsert(dbc dbctx.Context, products []types.Product) (int, error) {
	rows := make([]*types.CatalogProduct, 0, len(products))
	for _, p := range products {
		if strings.TrimSpace(p.Title) == "" {
			continue
		}
		row, err := toRow(p)
		if err != nil {
			return 0, err
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	err := dbc.Conn(r.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "title"}},
		DoUpdates: clause.AssignmentColumns([]string{"promotion", "specs", "price", "color_options", "url", "embedding", "updated_at"}),
	}).Create(&rows).Error
	if err != nil {
		return 0, fmt.Errorf("upsert products: %w", err)
	}
	return len(rows), nil
}

func (r *productRepo) ListAll(dbc dbctx.Context) ([]types.Product, error) {
	var rows []*types.CatalogProduct
	if err := dbc.Conn(r.db).Order("title ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	out := make([]types.Product, 0, len(rows))
	for _, row := range rows {
		p, err := fromRow(row)
		if err != nil {
			r.log.Warn("skipping undecodable product row", "title", row.Title, "error", err)
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (r *productRepo) Count(dbc dbctx.Context) (int64, error) {
	var n int64
	err := dbc.Conn(r.db).Model(&types.CatalogProduct{}).Count(&n).Error
	return n, err
}

func toRow(p types.Product) (*types.CatalogProduct, error) {
	colors := p.ColorOptions
	if colors == nil {
		colors = []string{}
	}
	colorsJSON, err := json.Marshal(colors)
	if err != nil {
		return nil, err
	}
	emb := p.Embedding
	if emb == nil {
		emb = []float32{}
	}
	embJSON, err := json.Marshal(emb)
	if err != nil {
		return nil, err
	}
	return &types.CatalogProduct{
		Title:        strings.TrimSpace(p.Title),
		Promotion:    p.Promotion,
		Specs:        p.Specs,
		Price:        p.Price,
		ColorOptions: datatypes.JSON(colorsJSON),
		URL:          p.URL,
		Embedding:    datatypes.JSON(embJSON),
	}, nil
}

func fromRow(row *types.CatalogProduct) (types.Product, error) {
	p := types.Product{
		Title:     row.Title,
		Promotion: row.Promotion,
		Specs:     row.Specs,
		Price:     row.Price,
		URL:       row.URL,
	}
	if len(row.ColorOptions) > 0 {
		if err := json.Unmarshal(row.ColorOptions, &p.ColorOptions); err != nil {
			return p, fmt.Errorf("decode color_options: %w", err)
		}
	}
	if len(row.Embedding) > 0 {
		if err := json.Unmarshal(row.Embedding, &p.Embedding); err != nil {
			return p, fmt.Errorf("decode embedding: %w", err)
		}
	}
	return p, nil
}
