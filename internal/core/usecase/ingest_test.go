package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/bidworks/ingest-pipeline/internal/core/domain"
)

func TestUploadStoresPublishesAndRecords(t *testing.T) {
	docs := &docRepoFake{}
	storage := &storageFake{}
	queue := &queueFake{}
	uc := NewIngestDocumentUseCase(docs, &projectRepoFake{}, storage, queue)

	doc, err := uc.Upload(context.Background(), "proj-1", "bid schedule.xlsx",
		"application/vnd.ms-excel", domain.DocTypeSpreadsheet, false,
		strings.NewReader("workbook bytes"))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}

	if doc.Status != domain.StatusPending {
		t.Fatalf("status = %s", doc.Status)
	}
	if len(storage.saved) != 1 {
		t.Fatalf("document not saved to storage")
	}
	for key := range storage.saved {
		if !strings.HasPrefix(key, "proj-1/") || !strings.HasSuffix(key, "bid_schedule.xlsx") {
			t.Fatalf("storage key = %q", key)
		}
		if strings.Contains(key, " ") {
			t.Fatalf("storage key must be sanitized: %q", key)
		}
	}
	if len(queue.published) != 1 || queue.published[0] != doc.ID {
		t.Fatalf("published = %v", queue.published)
	}
	if docs.created == nil || docs.created.Filename != "bid schedule.xlsx" {
		t.Fatalf("created = %#v", docs.created)
	}
}

func TestUploadMarksReplaceExistingReimport(t *testing.T) {
	docs := &docRepoFake{}
	uc := NewIngestDocumentUseCase(docs, &projectRepoFake{}, &storageFake{}, &queueFake{})

	doc, err := uc.Upload(context.Background(), "proj-1", "schedule.xml",
		"application/xml", domain.DocTypeScheduleXML, true, strings.NewReader("<x/>"))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if doc.Metadata[metaReplaceExisting] != "true" {
		t.Fatalf("metadata = %#v", doc.Metadata)
	}
}

func TestUploadRejectsUnknownDocumentType(t *testing.T) {
	uc := NewIngestDocumentUseCase(&docRepoFake{}, &projectRepoFake{}, &storageFake{}, &queueFake{})

	_, err := uc.Upload(context.Background(), "proj-1", "x.bin",
		"application/octet-stream", domain.DocumentType("mystery"), false, strings.NewReader("x"))
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestUploadRejectsUnknownProject(t *testing.T) {
	projects := &projectRepoFake{getErr: domain.WrapError(domain.ErrNotFound, "get project", errors.New("no row"))}
	storage := &storageFake{}
	uc := NewIngestDocumentUseCase(&docRepoFake{}, projects, storage, &queueFake{})

	_, err := uc.Upload(context.Background(), "missing", "x.xml",
		"application/xml", domain.DocTypeScheduleXML, false, strings.NewReader("<x/>"))
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if len(storage.saved) != 0 {
		t.Fatalf("nothing should be stored for an unknown project")
	}
}

func TestRetryRequeuesAndRepublishes(t *testing.T) {
	docs := &docRepoFake{doc: &domain.Document{ID: "doc-1", Status: domain.StatusPending}}
	queue := &queueFake{}
	uc := NewDocumentReaderUseCase(docs, queue)

	doc, err := uc.Retry(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("Retry() error = %v", err)
	}
	if len(docs.requeued) != 1 || len(queue.published) != 1 {
		t.Fatalf("requeued=%v published=%v", docs.requeued, queue.published)
	}
	if doc.ID != "doc-1" {
		t.Fatalf("doc = %#v", doc)
	}
}

func TestRetryPropagatesConflictForNonFailedDocument(t *testing.T) {
	docs := &docRepoFake{requeueErr: domain.WrapError(domain.ErrConflict, "requeue document", errors.New("not failed"))}
	queue := &queueFake{}
	uc := NewDocumentReaderUseCase(docs, queue)

	_, err := uc.Retry(context.Background(), "doc-1")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if len(queue.published) != 0 {
		t.Fatalf("must not publish when requeue is rejected")
	}
}
