package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/bidworks/ingest-pipeline/internal/core/domain"
)

type ProjectRepository struct {
	db *sql.DB
}

func NewProjectRepository(db *sql.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

func (r *ProjectRepository) GetByID(ctx context.Context, id string) (*domain.Project, error) {
	var p domain.Project
	err := r.db.QueryRowContext(ctx, `
SELECT id, name, contract_number, county, route, letting_date
FROM projects
WHERE id = $1
`, id).Scan(&p.ID, &p.Name, &p.ContractNumber, &p.County, &p.Route, &p.LettingDate)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.WrapError(domain.ErrNotFound, "get project", err)
	}
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	return &p, nil
}

// BackfillMetadata fills only the project fields that are still blank.
// User-entered values always win over parser discoveries.
func (r *ProjectRepository) BackfillMetadata(ctx context.Context, projectID string, md domain.ProjectMetadata) (bool, error) {
	if md.Empty() {
		return false, nil
	}
	res, err := r.db.ExecContext(ctx, `
UPDATE projects
SET name            = CASE WHEN name = '' AND $2 <> '' THEN $2 ELSE name END,
	contract_number = CASE WHEN contract_number = '' AND $3 <> '' THEN $3 ELSE contract_number END,
	county          = CASE WHEN county = '' AND $4 <> '' THEN $4 ELSE county END,
	route           = CASE WHEN route = '' AND $5 <> '' THEN $5 ELSE route END,
	letting_date    = COALESCE(letting_date, $6)
WHERE id = $1
  AND ( (name = '' AND $2 <> '')
	 OR (contract_number = '' AND $3 <> '')
	 OR (county = '' AND $4 <> '')
	 OR (route = '' AND $5 <> '')
	 OR (letting_date IS NULL AND $6 IS NOT NULL) )
`, projectID, md.Name, md.ContractNumber, md.County, md.Route, md.LettingDate)
	if err != nil {
		return false, fmt.Errorf("backfill project metadata: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("backfill project metadata rows affected: %w", err)
	}
	return affected > 0, nil
}
