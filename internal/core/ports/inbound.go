package ports

import (
	"context"
	"io"

	"github.com/bidworks/ingest-pipeline/internal/core/domain"
)

// DocumentIngestor is the inbound contract for document upload orchestration.
type DocumentIngestor interface {
	Upload(ctx context.Context, projectID, filename, mimeType string, docType domain.DocumentType, replace bool, body io.Reader) (*domain.Document, error)
}

// DocumentProcessor is the inbound contract for pipeline processing of one
// uploaded document.
type DocumentProcessor interface {
	ProcessByID(ctx context.Context, documentID string) error
}

// DocumentReader is the inbound read model for document metadata/state.
type DocumentReader interface {
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	ListByProject(ctx context.Context, projectID string, status *domain.DocumentStatus) ([]domain.Document, error)
	Retry(ctx context.Context, id string) (*domain.Document, error)
}

// ProjectCategorizer runs the two-pass catalog categorization in bounded
// batches and reports partial-success counts.
type ProjectCategorizer interface {
	CategorizeProject(ctx context.Context, projectID string, batchSize int, force bool) (domain.CategorizationResult, error)
}

// PackageGenerator clusters a project's items into work packages.
type PackageGenerator interface {
	GeneratePackages(ctx context.Context, projectID string, regenerate bool) (domain.PackageGenerationResult, error)
}
