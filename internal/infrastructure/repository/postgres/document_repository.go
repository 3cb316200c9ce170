package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bidworks/ingest-pipeline/internal/core/domain"
)

type DocumentRepository struct {
	db *sql.DB
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

const documentColumns = `id, project_id, document_type, filename, mime_type, storage_path, status, error_message, metadata, processing_started_at, processing_completed_at, created_at, updated_at`

func (r *DocumentRepository) Create(ctx context.Context, doc *domain.Document) error {
	metadataJSON, err := json.Marshal(metadataOrEmpty(doc.Metadata))
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO documents (`+documentColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
`,
		doc.ID, doc.ProjectID, string(doc.DocumentType), doc.Filename, doc.MimeType, doc.StoragePath,
		string(doc.Status), doc.ErrorMessage, metadataJSON, doc.StartedAt, doc.CompletedAt,
		doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+documentColumns+`
FROM documents
WHERE id = $1
`, id)
	return scanDocument(row, id)
}

func (r *DocumentRepository) ListByProject(ctx context.Context, projectID string, status *domain.DocumentStatus) ([]domain.Document, error) {
	query := `
SELECT ` + documentColumns + `
FROM documents
WHERE project_id = $1`
	args := []any{projectID}
	if status != nil {
		query += ` AND status = $2`
		args = append(args, string(*status))
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document
	for rows.Next() {
		doc, err := scanDocument(rows, "")
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}

func (r *DocumentRepository) MarkProcessing(ctx context.Context, id string, startedAt time.Time) error {
	return r.exec(ctx, "mark document processing", id, `
UPDATE documents
SET status = $2, error_message = '', processing_started_at = $3, updated_at = $4
WHERE id = $1
`, string(domain.StatusProcessing), startedAt, time.Now().UTC())
}

func (r *DocumentRepository) MarkCompleted(ctx context.Context, id string, metadata map[string]string, completedAt time.Time) error {
	metadataJSON, err := json.Marshal(metadataOrEmpty(metadata))
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	return r.exec(ctx, "mark document completed", id, `
UPDATE documents
SET status = $2, metadata = $3, processing_completed_at = $4, updated_at = $5
WHERE id = $1
`, string(domain.StatusCompleted), metadataJSON, completedAt, time.Now().UTC())
}

func (r *DocumentRepository) MarkFailed(ctx context.Context, id string, errMessage string, completedAt time.Time) error {
	return r.exec(ctx, "mark document failed", id, `
UPDATE documents
SET status = $2, error_message = $3, processing_completed_at = $4, updated_at = $5
WHERE id = $1
`, string(domain.StatusFailed), errMessage, completedAt, time.Now().UTC())
}

// Requeue resets a failed document to pending for a fresh processing
// attempt. Only failed documents are eligible.
func (r *DocumentRepository) Requeue(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE documents
SET status = $2, error_message = '', processing_started_at = NULL, processing_completed_at = NULL, updated_at = $3
WHERE id = $1 AND status = $4
`, id, string(domain.StatusPending), time.Now().UTC(), string(domain.StatusFailed))
	if err != nil {
		return fmt.Errorf("requeue document: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("requeue document rows affected: %w", err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrConflict, "requeue document", fmt.Errorf("document %s is not in failed status", id))
	}
	return nil
}

func (r *DocumentRepository) exec(ctx context.Context, operation, id, query string, args ...any) error {
	allArgs := append([]any{id}, args...)
	res, err := r.db.ExecContext(ctx, query, allArgs...)
	if err != nil {
		return fmt.Errorf("%s: %w", operation, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", operation, err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrNotFound, operation, fmt.Errorf("document %s", id))
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner, id string) (*domain.Document, error) {
	var doc domain.Document
	var docType, status string
	var metadataRaw []byte

	err := row.Scan(
		&doc.ID, &doc.ProjectID, &docType, &doc.Filename, &doc.MimeType, &doc.StoragePath,
		&status, &doc.ErrorMessage, &metadataRaw, &doc.StartedAt, &doc.CompletedAt,
		&doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "get document", fmt.Errorf("document %s", id))
		}
		return nil, fmt.Errorf("scan document: %w", err)
	}

	if err := json.Unmarshal(metadataRaw, &doc.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshal metadata: %w", err)
	}
	doc.DocumentType = domain.DocumentType(docType)
	doc.Status = domain.DocumentStatus(status)
	return &doc, nil
}

func metadataOrEmpty(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}
