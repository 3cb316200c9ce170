package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bidworks/ingest-pipeline/internal/core/domain"
	"github.com/bidworks/ingest-pipeline/internal/core/ports"
)

// ProcessDocumentUseCase is the format dispatcher: it classifies one uploaded
// document, routes it to the right parser or to metadata extraction, persists
// line items, and owns the document's status transitions. A document is never
// left stuck in processing on a synchronous failure.
type ProcessDocumentUseCase struct {
	docs      ports.DocumentRepository
	items     ports.LineItemRepository
	projects  ports.ProjectRepository
	storage   ports.ObjectStorage
	xmlParser ports.ScheduleParser
	wbParser  ports.ScheduleParser
	extractor ports.MetadataExtractor
	analyzer  ports.DocumentAnalyzer
	logger    *slog.Logger
}

func NewProcessDocumentUseCase(
	docs ports.DocumentRepository,
	items ports.LineItemRepository,
	projects ports.ProjectRepository,
	storage ports.ObjectStorage,
	xmlParser ports.ScheduleParser,
	wbParser ports.ScheduleParser,
	extractor ports.MetadataExtractor,
	analyzer ports.DocumentAnalyzer,
	logger *slog.Logger,
) *ProcessDocumentUseCase {
	return &ProcessDocumentUseCase{
		docs:      docs,
		items:     items,
		projects:  projects,
		storage:   storage,
		xmlParser: xmlParser,
		wbParser:  wbParser,
		extractor: extractor,
		analyzer:  analyzer,
		logger:    logger,
	}
}

func (uc *ProcessDocumentUseCase) ProcessByID(ctx context.Context, documentID string) error {
	doc, err := uc.docs.GetByID(ctx, documentID)
	if err != nil {
		return fmt.Errorf("fetch document by id: %w", err)
	}
	if doc.Terminal() {
		return domain.WrapError(domain.ErrConflict, "process document",
			fmt.Errorf("document %s already %s", doc.ID, doc.Status))
	}

	if err := uc.docs.MarkProcessing(ctx, doc.ID, time.Now().UTC()); err != nil {
		return fmt.Errorf("set status=processing: %w", err)
	}

	metadata, err := uc.runPipeline(ctx, doc)
	if err != nil {
		if failErr := uc.docs.MarkFailed(ctx, doc.ID, err.Error(), time.Now().UTC()); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}

	if err := uc.docs.MarkCompleted(ctx, doc.ID, metadata, time.Now().UTC()); err != nil {
		return fmt.Errorf("set status=completed: %w", err)
	}
	return nil
}

func (uc *ProcessDocumentUseCase) runPipeline(ctx context.Context, doc *domain.Document) (map[string]string, error) {
	raw, err := uc.download(ctx, doc.StoragePath)
	if err != nil {
		return nil, err
	}

	if parser := uc.parserFor(doc); parser != nil {
		return uc.runParser(ctx, doc, parser, raw)
	}
	return uc.runExtraction(ctx, doc, raw)
}

// parserFor picks the structural parser from the declared type cross-checked
// against the mime type. A schedule declared as XML but uploaded as a workbook
// (or vice versa) follows the mime type. Everything else goes to extraction.
func (uc *ProcessDocumentUseCase) parserFor(doc *domain.Document) ports.ScheduleParser {
	mime := strings.ToLower(doc.MimeType)
	// The xlsx mime type ("application/vnd.openxmlformats-officedocument.
	// spreadsheetml.sheet") contains "xml", so the workbook check must win.
	wbMime := strings.Contains(mime, "spreadsheet") || strings.Contains(mime, "ms-excel")
	xmlMime := !wbMime && strings.Contains(mime, "xml")

	switch doc.DocumentType {
	case domain.DocTypeScheduleXML:
		if wbMime {
			return uc.wbParser
		}
		return uc.xmlParser
	case domain.DocTypeSpreadsheet:
		if xmlMime {
			return uc.xmlParser
		}
		return uc.wbParser
	default:
		return nil
	}
}

func (uc *ProcessDocumentUseCase) runParser(ctx context.Context, doc *domain.Document, parser ports.ScheduleParser, raw []byte) (map[string]string, error) {
	result, err := parser.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	if !result.OK {
		return nil, domain.WrapError(domain.ErrParseFailed, "parse document", errors.New(result.Diagnostic))
	}

	imported, err := uc.persistItems(ctx, doc, result.Items)
	if err != nil {
		return nil, err
	}
	imported.SchemaName = result.SchemaName

	if !result.Metadata.Empty() {
		changed, err := uc.projects.BackfillMetadata(ctx, doc.ProjectID, result.Metadata)
		if err != nil {
			uc.logger.Warn("project metadata backfill failed",
				"document_id", doc.ID, "project_id", doc.ProjectID, "error", err)
		} else {
			imported.MetadataApplied = changed
		}
	}

	return importMetadata(imported), nil
}

func (uc *ProcessDocumentUseCase) persistItems(ctx context.Context, doc *domain.Document, parsed []domain.ParsedItem) (domain.ImportResult, error) {
	result := domain.ImportResult{ItemsParsed: len(parsed)}

	if doc.Metadata[metaReplaceExisting] == "true" {
		removed, err := uc.items.DeleteByDocument(ctx, doc.ProjectID, doc.ID)
		if err != nil {
			return result, fmt.Errorf("delete prior items: %w", err)
		}
		if removed > 0 {
			uc.logger.Info("replaced prior import",
				"document_id", doc.ID, "items_removed", removed)
		}
	}

	maxLine, err := uc.items.MaxLineNumber(ctx, doc.ProjectID)
	if err != nil {
		return result, fmt.Errorf("resolve line number offset: %w", err)
	}
	existing, err := uc.items.ExistingItemCodes(ctx, doc.ProjectID)
	if err != nil {
		return result, fmt.Errorf("resolve existing item codes: %w", err)
	}

	now := time.Now().UTC()
	for _, p := range parsed {
		if p.ItemCode != "" {
			if _, dup := existing[p.ItemCode]; dup {
				result.ItemsSkipped++
				continue
			}
		}

		item := &domain.LineItem{
			ID:               uuid.NewString(),
			ProjectID:        doc.ProjectID,
			LineNumber:       maxLine + result.ItemsPersisted + 1,
			ItemCode:         p.ItemCode,
			AltItemCode:      p.AltItemCode,
			Description:      p.Description,
			ShortDescription: p.ShortDescription,
			Quantity:         p.Quantity,
			Unit:             p.Unit,
			DocumentID:       doc.ID,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if p.SpecSection != "" {
			item.SpecSections = []string{p.SpecSection}
		}
		if p.UnitPrice != nil {
			item.RiskNotes = fmt.Sprintf("$%.2f engineer estimate", *p.UnitPrice)
		}

		if err := uc.items.Insert(ctx, item); err != nil {
			if domain.IsKind(err, domain.ErrConflict) {
				result.ItemsSkipped++
				continue
			}
			uc.logger.Warn("line item insert failed",
				"document_id", doc.ID, "item_code", p.ItemCode, "error", err)
			result.ItemsSkipped++
			continue
		}
		if p.ItemCode != "" {
			existing[p.ItemCode] = struct{}{}
		}
		result.ItemsPersisted++
	}

	return result, nil
}

func (uc *ProcessDocumentUseCase) runExtraction(ctx context.Context, doc *domain.Document, raw []byte) (map[string]string, error) {
	fields := uc.extractor.ExtractMetadata(ctx, raw, doc.MimeType, doc.DocumentType)

	md := domain.ProjectMetadata{
		Name:           fields.ProjectName,
		ContractNumber: fields.ContractNumber,
		County:         fields.County,
		Route:          fields.Route,
	}
	if !md.Empty() {
		if _, err := uc.projects.BackfillMetadata(ctx, doc.ProjectID, md); err != nil {
			uc.logger.Warn("project metadata backfill failed",
				"document_id", doc.ID, "project_id", doc.ProjectID, "error", err)
		}
	}

	out := map[string]string{
		"confidence_score": strconv.Itoa(fields.ConfidenceScore),
	}
	if fields.Title != "" {
		out["title"] = fields.Title
	}
	if fields.Summary != "" {
		out["summary"] = fields.Summary
	}
	if fields.DocumentDate != "" {
		out["document_date"] = fields.DocumentDate
	}
	if len(fields.KeyFindings) > 0 {
		out["key_findings"] = strings.Join(fields.KeyFindings, "; ")
	}
	if len(fields.ExtractionNotes) > 0 {
		out["extraction_notes"] = strings.Join(fields.ExtractionNotes, "; ")
	}

	// Proposal PDFs additionally get full-document analysis. Unlike metadata
	// extraction there is no safe default to substitute, so an analysis
	// failure fails the document.
	if doc.DocumentType == domain.DocTypeProposalPDF {
		analysis, err := uc.analyzer.AnalyzeDocument(ctx, raw, doc.MimeType, doc.DocumentType)
		if err != nil {
			return nil, fmt.Errorf("full-document analysis: %w", err)
		}
		if analysis.Summary != "" {
			out["analysis_summary"] = analysis.Summary
		}
		if len(analysis.KeyFindings) > 0 {
			out["analysis_findings"] = strings.Join(analysis.KeyFindings, "; ")
		}
		if len(analysis.RiskFlags) > 0 {
			out["risk_flags"] = strings.Join(analysis.RiskFlags, "; ")
		}
		if len(analysis.SpecSections) > 0 {
			out["spec_sections"] = strings.Join(analysis.SpecSections, "; ")
		}
	}
	return out, nil
}

func (uc *ProcessDocumentUseCase) download(ctx context.Context, path string) ([]byte, error) {
	rc, err := uc.storage.Open(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("open stored document: %w", err)
	}
	defer rc.Close()

	raw, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read stored document: %w", err)
	}
	return raw, nil
}

func importMetadata(r domain.ImportResult) map[string]string {
	out := map[string]string{
		"items_parsed":    strconv.Itoa(r.ItemsParsed),
		"items_persisted": strconv.Itoa(r.ItemsPersisted),
		"items_skipped":   strconv.Itoa(r.ItemsSkipped),
	}
	if r.SchemaName != "" {
		out["schema"] = r.SchemaName
	}
	if r.MetadataApplied {
		out["project_metadata_applied"] = "true"
	}
	return out
}
