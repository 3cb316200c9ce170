package extraction

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bidworks/ingest-pipeline/internal/core/domain"
)

// Adapter exposes the extraction capability through the core ports. Metadata
// extraction degrades to a zero-confidence default record on any failure;
// full-document analysis surfaces failures to the caller.
type Adapter struct {
	client *Client
	logger *slog.Logger
}

func NewAdapter(client *Client, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{client: client, logger: logger}
}

func (a *Adapter) ExtractMetadata(ctx context.Context, raw []byte, mimeType string, docType domain.DocumentType) domain.ExtractedDocumentFields {
	respText, err := a.submit(ctx, raw, mimeType, docType, schemaFor(docType))
	if err != nil {
		a.logger.Warn("metadata extraction call failed, using default record", "doc_type", docType, "error", err)
		return defaultFields("extraction call failed: " + err.Error())
	}

	var record domain.ExtractedDocumentFields
	notes, err := decodeLenient(respText, &record)
	if err != nil {
		a.logger.Warn("metadata extraction returned unusable JSON, using default record", "doc_type", docType, "error", err)
		return defaultFields("extraction response was not valid JSON; manual entry needed")
	}

	if clamped, changed := clampConfidence(record.ConfidenceScore); changed {
		record.ConfidenceScore = clamped
		notes = append(notes, "confidence score out of range, clamped")
	}
	record.ExtractionNotes = append(record.ExtractionNotes, notes...)
	return record
}

func (a *Adapter) AnalyzeDocument(ctx context.Context, raw []byte, mimeType string, docType domain.DocumentType) (domain.DocumentAnalysis, error) {
	respText, err := a.submit(ctx, raw, mimeType, docType, analysisSchema)
	if err != nil {
		return domain.DocumentAnalysis{}, fmt.Errorf("analyze document: %w", err)
	}

	var analysis domain.DocumentAnalysis
	if _, err := decodeLenient(respText, &analysis); err != nil {
		// No safe default summary exists, so this is a hard failure.
		return domain.DocumentAnalysis{}, domain.WrapError(domain.ErrParseFailed, "analyze document", err)
	}
	return analysis, nil
}

func (a *Adapter) CategorizeItems(ctx context.Context, items []domain.LineItem, catalogSample []domain.CatalogItem) ([]domain.AICategorization, error) {
	if len(items) == 0 {
		return nil, nil
	}

	respText, err := a.client.ExtractText(ctx, "", buildCategorizationInstructions(items, catalogSample))
	if err != nil {
		return nil, fmt.Errorf("categorize items: %w", err)
	}

	var payload struct {
		Items []domain.AICategorization `json:"items"`
	}
	if _, err := decodeLenient(respText, &payload); err != nil {
		return nil, domain.WrapError(domain.ErrParseFailed, "categorize items", err)
	}
	for i := range payload.Items {
		payload.Items[i].Confidence, _ = clampConfidence(payload.Items[i].Confidence)
	}
	return payload.Items, nil
}

func (a *Adapter) ProposePackages(ctx context.Context, items []domain.LineItem) ([]domain.ProposedPackage, error) {
	if len(items) == 0 {
		return nil, nil
	}

	respText, err := a.client.ExtractText(ctx, "", buildGroupingInstructions(items))
	if err != nil {
		return nil, fmt.Errorf("propose packages: %w", err)
	}

	var payload struct {
		Packages []domain.ProposedPackage `json:"packages"`
	}
	if _, err := decodeLenient(respText, &payload); err != nil {
		return nil, domain.WrapError(domain.ErrParseFailed, "propose packages", err)
	}
	return payload.Packages, nil
}

// submit chooses between text and binary submission. XML and textual inputs
// go as decoded text; binaries over the payload limit are pre-converted to
// extracted text rather than submitted raw.
func (a *Adapter) submit(ctx context.Context, raw []byte, mimeType string, docType domain.DocumentType, instructions string) (string, error) {
	if isTextual(mimeType, docType) {
		return a.client.ExtractText(ctx, string(raw), instructions)
	}
	if len(raw) > a.client.PayloadLimit() {
		if !isPDF(mimeType) {
			return "", domain.WrapError(domain.ErrInvalidInput, "submit document",
				fmt.Errorf("document of %d bytes exceeds payload limit %d and is not convertible to text", len(raw), a.client.PayloadLimit()))
		}
		text, err := pdfToText(raw)
		if err != nil {
			return "", fmt.Errorf("convert oversized pdf to text: %w", err)
		}
		return a.client.ExtractText(ctx, text, instructions)
	}
	return a.client.ExtractDocument(ctx, raw, mimeType, instructions)
}

func isTextual(mimeType string, docType domain.DocumentType) bool {
	if docType == domain.DocTypeScheduleXML {
		return true
	}
	return strings.HasPrefix(mimeType, "text/") || strings.Contains(mimeType, "xml") || strings.Contains(mimeType, "json")
}

func isPDF(mimeType string) bool {
	return strings.Contains(mimeType, "pdf")
}

func defaultFields(note string) domain.ExtractedDocumentFields {
	return domain.ExtractedDocumentFields{
		ConfidenceScore: 0,
		ExtractionNotes: []string{note},
	}
}
