package usecase

import (
	"context"
	"fmt"

	"github.com/bidworks/ingest-pipeline/internal/core/domain"
	"github.com/bidworks/ingest-pipeline/internal/core/ports"
)

type DocumentReaderUseCase struct {
	docs  ports.DocumentRepository
	queue ports.MessageQueue
}

func NewDocumentReaderUseCase(docs ports.DocumentRepository, queue ports.MessageQueue) *DocumentReaderUseCase {
	return &DocumentReaderUseCase{docs: docs, queue: queue}
}

func (uc *DocumentReaderUseCase) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	return uc.docs.GetByID(ctx, id)
}

func (uc *DocumentReaderUseCase) ListByProject(ctx context.Context, projectID string, status *domain.DocumentStatus) ([]domain.Document, error) {
	return uc.docs.ListByProject(ctx, projectID, status)
}

// Retry re-queues a failed document for a fresh processing attempt. Completed
// documents cannot be retried; replace-existing reimport is the path for those.
func (uc *DocumentReaderUseCase) Retry(ctx context.Context, id string) (*domain.Document, error) {
	if err := uc.docs.Requeue(ctx, id); err != nil {
		return nil, fmt.Errorf("requeue document: %w", err)
	}
	if err := uc.queue.PublishDocumentUploaded(ctx, id); err != nil {
		return nil, fmt.Errorf("publish retry event: %w", err)
	}
	return uc.docs.GetByID(ctx, id)
}
