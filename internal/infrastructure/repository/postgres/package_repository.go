package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/bidworks/ingest-pipeline/internal/core/domain"
)

type WorkPackageRepository struct {
	db *sql.DB
}

func NewWorkPackageRepository(db *sql.DB) *WorkPackageRepository {
	return &WorkPackageRepository{db: db}
}

func (r *WorkPackageRepository) CountByProject(ctx context.Context, projectID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
SELECT COUNT(*) FROM work_packages WHERE project_id = $1
`, projectID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count work packages: %w", err)
	}
	return count, nil
}

// DeleteByProject removes packages and their item links. Links go first so a
// failure between the two statements never leaves orphaned links.
func (r *WorkPackageRepository) DeleteByProject(ctx context.Context, projectID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("delete work packages: begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
DELETE FROM work_package_items
WHERE package_id IN (SELECT id FROM work_packages WHERE project_id = $1)
`, projectID)
	if err != nil {
		return fmt.Errorf("delete work package items: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM work_packages WHERE project_id = $1`, projectID); err != nil {
		return fmt.Errorf("delete work packages: %w", err)
	}
	return tx.Commit()
}

func (r *WorkPackageRepository) CreatePackage(ctx context.Context, pkg *domain.WorkPackage) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO work_packages (id, project_id, package_number, name, code, description, work_category, status, item_count, sort_order, ai_generated, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
`,
		pkg.ID, pkg.ProjectID, pkg.PackageNumber, pkg.Name, pkg.Code, pkg.Description,
		string(pkg.WorkCategory), string(pkg.Status), pkg.ItemCount, pkg.SortOrder, pkg.AIGenerated, pkg.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.WrapError(domain.ErrConflict, "create work package", err)
		}
		return fmt.Errorf("create work package: %w", err)
	}
	return nil
}

func (r *WorkPackageRepository) LinkItem(ctx context.Context, link *domain.WorkPackageItem) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO work_package_items (package_id, line_item_id, position)
VALUES ($1,$2,$3)
`, link.PackageID, link.LineItemID, link.Position)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.WrapError(domain.ErrConflict, "link package item", err)
		}
		return fmt.Errorf("link package item: %w", err)
	}
	return nil
}

func (r *WorkPackageRepository) UpdateItemCount(ctx context.Context, packageID string, itemCount int) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE work_packages SET item_count = $2 WHERE id = $1
`, packageID, itemCount)
	if err != nil {
		return fmt.Errorf("update package item count: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update package item count rows affected: %w", err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrNotFound, "update package item count", sql.ErrNoRows)
	}
	return nil
}
