package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/bidworks/ingest-pipeline/internal/core/domain"
)

type CatalogRepository struct {
	db *sql.DB
}

func NewCatalogRepository(db *sql.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

const catalogColumns = `item_code, description, work_category, price_low, price_median, price_high, weather_sensitive, lump_sum, subcontractor_dependent, critical_path_typical, risk_factors, spec_section`

func (r *CatalogRepository) GetByCode(ctx context.Context, itemCode string) (*domain.CatalogItem, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+catalogColumns+`
FROM catalog_items
WHERE item_code = $1
`, itemCode)
	return scanCatalogItem(row, "get catalog item")
}

// GetByPrefix finds the lowest-coded catalog entry whose item_code starts with
// the given prefix. Used for family matches on the first six digits.
func (r *CatalogRepository) GetByPrefix(ctx context.Context, prefix string) (*domain.CatalogItem, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+catalogColumns+`
FROM catalog_items
WHERE item_code LIKE $1 || '%'
ORDER BY item_code
LIMIT 1
`, prefix)
	return scanCatalogItem(row, "get catalog item by prefix")
}

func (r *CatalogRepository) Sample(ctx context.Context, limit int) ([]domain.CatalogItem, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+catalogColumns+`
FROM catalog_items
ORDER BY item_code
LIMIT $1
`, limit)
	if err != nil {
		return nil, fmt.Errorf("sample catalog: %w", err)
	}
	defer rows.Close()

	var items []domain.CatalogItem
	for rows.Next() {
		item, err := scanCatalogItem(rows, "sample catalog")
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

func scanCatalogItem(row rowScanner, op string) (*domain.CatalogItem, error) {
	var item domain.CatalogItem
	var category sql.NullString
	var factorsRaw []byte

	err := row.Scan(
		&item.ItemCode, &item.Description, &category,
		&item.PriceLow, &item.PriceMedian, &item.PriceHigh,
		&item.WeatherSensitive, &item.LumpSum, &item.SubcontractorDependent, &item.CriticalPathTypical,
		&factorsRaw, &item.SpecSection,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.WrapError(domain.ErrNotFound, op, err)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if len(factorsRaw) > 0 {
		if err := json.Unmarshal(factorsRaw, &item.RiskFactors); err != nil {
			return nil, fmt.Errorf("%s: unmarshal risk factors: %w", op, err)
		}
	}
	if category.Valid {
		c := domain.WorkCategory(category.String)
		item.WorkCategory = &c
	}
	return &item, nil
}
