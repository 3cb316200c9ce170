package ports

import (
	"context"
	"io"
	"time"

	"github.com/bidworks/ingest-pipeline/internal/core/domain"
)

// DocumentRepository persists and reads document state.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	ListByProject(ctx context.Context, projectID string, status *domain.DocumentStatus) ([]domain.Document, error)
	MarkProcessing(ctx context.Context, id string, startedAt time.Time) error
	MarkCompleted(ctx context.Context, id string, metadata map[string]string, completedAt time.Time) error
	MarkFailed(ctx context.Context, id string, errMessage string, completedAt time.Time) error
	Requeue(ctx context.Context, id string) error
}

// LineItemRepository persists parsed line items and categorization updates.
// Each write is its own atomic operation; partial failure is expected.
type LineItemRepository interface {
	Insert(ctx context.Context, item *domain.LineItem) error
	MaxLineNumber(ctx context.Context, projectID string) (int, error)
	ExistingItemCodes(ctx context.Context, projectID string) (map[string]struct{}, error)
	DeleteByDocument(ctx context.Context, projectID, documentID string) (int, error)
	ListByProject(ctx context.Context, projectID string) ([]domain.LineItem, error)
	ListUncategorized(ctx context.Context, projectID string, limit int) ([]domain.LineItem, error)
	CountUncategorized(ctx context.Context, projectID string) (int, error)
	ApplyCategorization(ctx context.Context, update domain.CategorizationUpdate) error
}

// CatalogRepository reads the externally maintained reference catalog.
type CatalogRepository interface {
	GetByCode(ctx context.Context, itemCode string) (*domain.CatalogItem, error)
	GetByPrefix(ctx context.Context, prefix string) (*domain.CatalogItem, error)
	Sample(ctx context.Context, limit int) ([]domain.CatalogItem, error)
}

// WorkPackageRepository persists packages and their item links. LinkItem
// returns domain.ErrConflict when the item is already claimed by a package.
type WorkPackageRepository interface {
	CountByProject(ctx context.Context, projectID string) (int, error)
	DeleteByProject(ctx context.Context, projectID string) error
	CreatePackage(ctx context.Context, pkg *domain.WorkPackage) error
	LinkItem(ctx context.Context, link *domain.WorkPackageItem) error
	UpdateItemCount(ctx context.Context, packageID string, itemCount int) error
}

// ProjectRepository reads project rows and back-fills blank metadata fields.
type ProjectRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Project, error)
	BackfillMetadata(ctx context.Context, projectID string, md domain.ProjectMetadata) (bool, error)
}

// ObjectStorage stores source documents.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// MessageQueue publishes/consumes document-uploaded events.
type MessageQueue interface {
	PublishDocumentUploaded(ctx context.Context, documentID string) error
	SubscribeDocumentUploaded(ctx context.Context, handler func(context.Context, string) error) error
}

// ScheduleParser turns one raw document into the shared parse contract.
// A returned error means the input was structurally unreadable; OK=false with
// a Diagnostic means readable but not recognized.
type ScheduleParser interface {
	Parse(raw []byte) (domain.ParseResult, error)
}

// MetadataExtractor extracts structured metadata from an unstructured
// document. It never fails: malformed responses degrade to a zero-confidence
// record with explanatory notes.
type MetadataExtractor interface {
	ExtractMetadata(ctx context.Context, raw []byte, mimeType string, docType domain.DocumentType) domain.ExtractedDocumentFields
}

// DocumentAnalyzer runs full-document analysis. Malformed responses are hard
// errors because there is no safe default summary to substitute.
type DocumentAnalyzer interface {
	AnalyzeDocument(ctx context.Context, raw []byte, mimeType string, docType domain.DocumentType) (domain.DocumentAnalysis, error)
}

// ItemCategorizer asks the extraction capability to categorize items that had
// no direct catalog match, grounded on a sample of catalog entries.
type ItemCategorizer interface {
	CategorizeItems(ctx context.Context, items []domain.LineItem, catalogSample []domain.CatalogItem) ([]domain.AICategorization, error)
}

// PackageProposer asks the extraction capability for a named grouping of the
// project's items. Advisory only; callers must be able to proceed without it.
type PackageProposer interface {
	ProposePackages(ctx context.Context, items []domain.LineItem) ([]domain.ProposedPackage, error)
}
