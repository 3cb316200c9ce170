package usecase

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bidworks/ingest-pipeline/internal/core/domain"
	"github.com/bidworks/ingest-pipeline/internal/core/ports"
)

// metaReplaceExisting marks an upload as a replace-existing reimport. The
// dispatcher reads it back when persisting line items.
const metaReplaceExisting = "replace_existing"

type IngestDocumentUseCase struct {
	docs     ports.DocumentRepository
	projects ports.ProjectRepository
	storage  ports.ObjectStorage
	queue    ports.MessageQueue
}

func NewIngestDocumentUseCase(
	docs ports.DocumentRepository,
	projects ports.ProjectRepository,
	storage ports.ObjectStorage,
	queue ports.MessageQueue,
) *IngestDocumentUseCase {
	return &IngestDocumentUseCase{
		docs:     docs,
		projects: projects,
		storage:  storage,
		queue:    queue,
	}
}

func (uc *IngestDocumentUseCase) Upload(
	ctx context.Context,
	projectID, filename, mimeType string,
	docType domain.DocumentType,
	replace bool,
	body io.Reader,
) (*domain.Document, error) {
	if !validDocumentType(docType) {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload document",
			fmt.Errorf("unknown document type %q", docType))
	}
	if _, err := uc.projects.GetByID(ctx, projectID); err != nil {
		return nil, fmt.Errorf("resolve project: %w", err)
	}

	id := uuid.NewString()
	storageKey := fmt.Sprintf("%s/%s_%s", projectID, id, sanitizeFilename(filename))
	now := time.Now().UTC()

	if err := uc.storage.Save(ctx, storageKey, body); err != nil {
		return nil, fmt.Errorf("save to object storage: %w", err)
	}

	metadata := map[string]string{}
	if replace {
		metadata[metaReplaceExisting] = "true"
	}

	doc := &domain.Document{
		ID:           id,
		ProjectID:    projectID,
		DocumentType: docType,
		Filename:     filename,
		MimeType:     mimeType,
		StoragePath:  storageKey,
		Status:       domain.StatusPending,
		Metadata:     metadata,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := uc.docs.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("create document record: %w", err)
	}

	if err := uc.queue.PublishDocumentUploaded(ctx, doc.ID); err != nil {
		return nil, fmt.Errorf("publish upload event: %w", err)
	}

	return doc, nil
}

func validDocumentType(t domain.DocumentType) bool {
	switch t {
	case domain.DocTypeScheduleXML, domain.DocTypeSpreadsheet, domain.DocTypeProposalPDF,
		domain.DocTypeEnvironmental, domain.DocTypeHazardousMaterials,
		domain.DocTypeGeotechnical, domain.DocTypeOther:
		return true
	}
	return false
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" {
		return "document.bin"
	}
	return base
}
