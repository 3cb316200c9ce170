package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bidworks/ingest-pipeline/internal/core/domain"
)

type LineItemRepository struct {
	db *sql.DB
}

func NewLineItemRepository(db *sql.DB) *LineItemRepository {
	return &LineItemRepository{db: db}
}

const lineItemColumns = `id, project_id, line_number, item_code, alt_item_code, description, short_description, quantity, unit, document_id, work_category, risk_level, risk_notes, spec_sections, confidence, matched_catalog_code, suggested_unit_price, pricing_reviewed, created_at, updated_at`

func (r *LineItemRepository) Insert(ctx context.Context, item *domain.LineItem) error {
	sectionsJSON, err := json.Marshal(sectionsOrEmpty(item.SpecSections))
	if err != nil {
		return fmt.Errorf("marshal spec sections: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO line_items (`+lineItemColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)
`,
		item.ID, item.ProjectID, item.LineNumber, item.ItemCode, item.AltItemCode,
		item.Description, item.ShortDescription, item.Quantity, item.Unit, item.DocumentID,
		categoryOrNil(item.WorkCategory), riskOrNil(item.RiskLevel), item.RiskNotes, sectionsJSON,
		item.Confidence, item.MatchedCatalogCode, item.SuggestedUnitPrice, item.PricingReviewed,
		item.CreatedAt, item.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.WrapError(domain.ErrConflict, "insert line item", err)
		}
		return fmt.Errorf("insert line item: %w", err)
	}
	return nil
}

func (r *LineItemRepository) MaxLineNumber(ctx context.Context, projectID string) (int, error) {
	var maxLine int
	err := r.db.QueryRowContext(ctx, `
SELECT COALESCE(MAX(line_number), 0) FROM line_items WHERE project_id = $1
`, projectID).Scan(&maxLine)
	if err != nil {
		return 0, fmt.Errorf("max line number: %w", err)
	}
	return maxLine, nil
}

func (r *LineItemRepository) ExistingItemCodes(ctx context.Context, projectID string) (map[string]struct{}, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT item_code FROM line_items WHERE project_id = $1 AND item_code <> ''
`, projectID)
	if err != nil {
		return nil, fmt.Errorf("existing item codes: %w", err)
	}
	defer rows.Close()

	codes := make(map[string]struct{})
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, fmt.Errorf("scan item code: %w", err)
		}
		codes[code] = struct{}{}
	}
	return codes, rows.Err()
}

func (r *LineItemRepository) DeleteByDocument(ctx context.Context, projectID, documentID string) (int, error) {
	res, err := r.db.ExecContext(ctx, `
DELETE FROM line_items WHERE project_id = $1 AND document_id = $2
`, projectID, documentID)
	if err != nil {
		return 0, fmt.Errorf("delete line items by document: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete line items rows affected: %w", err)
	}
	return int(affected), nil
}

func (r *LineItemRepository) ListByProject(ctx context.Context, projectID string) ([]domain.LineItem, error) {
	return r.list(ctx, `
SELECT `+lineItemColumns+`
FROM line_items
WHERE project_id = $1
ORDER BY line_number
`, projectID)
}

func (r *LineItemRepository) ListUncategorized(ctx context.Context, projectID string, limit int) ([]domain.LineItem, error) {
	return r.list(ctx, `
SELECT `+lineItemColumns+`
FROM line_items
WHERE project_id = $1 AND work_category IS NULL
ORDER BY line_number
LIMIT $2
`, projectID, limit)
}

// CountUncategorized is a fresh count, deliberately not a running tally, so
// retried invocations pick up exactly the unfinished work.
func (r *LineItemRepository) CountUncategorized(ctx context.Context, projectID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
SELECT COUNT(*) FROM line_items WHERE project_id = $1 AND work_category IS NULL
`, projectID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count uncategorized: %w", err)
	}
	return count, nil
}

func (r *LineItemRepository) ApplyCategorization(ctx context.Context, update domain.CategorizationUpdate) error {
	sectionsJSON, err := json.Marshal(sectionsOrEmpty(update.SpecSections))
	if err != nil {
		return fmt.Errorf("marshal spec sections: %w", err)
	}

	res, err := r.db.ExecContext(ctx, `
UPDATE line_items
SET work_category = $2, risk_level = $3, risk_notes = $4, spec_sections = $5,
	confidence = $6, matched_catalog_code = $7, suggested_unit_price = $8, updated_at = $9
WHERE id = $1
`,
		update.LineItemID, string(update.WorkCategory), string(update.RiskLevel), update.RiskNotes,
		sectionsJSON, update.Confidence, update.MatchedCatalogCode, update.SuggestedUnitPrice,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("apply categorization: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("apply categorization rows affected: %w", err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrNotFound, "apply categorization", fmt.Errorf("line item %s", update.LineItemID))
	}
	return nil
}

func (r *LineItemRepository) list(ctx context.Context, query string, args ...any) ([]domain.LineItem, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list line items: %w", err)
	}
	defer rows.Close()

	var items []domain.LineItem
	for rows.Next() {
		var item domain.LineItem
		var category, risk sql.NullString
		var sectionsRaw []byte

		err := rows.Scan(
			&item.ID, &item.ProjectID, &item.LineNumber, &item.ItemCode, &item.AltItemCode,
			&item.Description, &item.ShortDescription, &item.Quantity, &item.Unit, &item.DocumentID,
			&category, &risk, &item.RiskNotes, &sectionsRaw,
			&item.Confidence, &item.MatchedCatalogCode, &item.SuggestedUnitPrice, &item.PricingReviewed,
			&item.CreatedAt, &item.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan line item: %w", err)
		}
		if err := json.Unmarshal(sectionsRaw, &item.SpecSections); err != nil {
			return nil, fmt.Errorf("unmarshal spec sections: %w", err)
		}
		if category.Valid {
			c := domain.WorkCategory(category.String)
			item.WorkCategory = &c
		}
		if risk.Valid {
			rl := domain.RiskLevel(risk.String)
			item.RiskLevel = &rl
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func categoryOrNil(c *domain.WorkCategory) any {
	if c == nil {
		return nil
	}
	return string(*c)
}

func riskOrNil(r *domain.RiskLevel) any {
	if r == nil {
		return nil
	}
	return string(*r)
}

func sectionsOrEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
