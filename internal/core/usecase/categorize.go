package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bidworks/ingest-pipeline/internal/core/domain"
	"github.com/bidworks/ingest-pipeline/internal/core/ports"
)

const (
	defaultBatchSize  = 50
	catalogPrefixLen  = 6
	catalogSampleSize = 25

	// Reference data, not inference, drives a direct match.
	directMatchConfidence = 95
)

// CategorizeItemsUseCase assigns work category, risk, and governing specs to
// line items in two passes: a deterministic catalog match, then an AI batch
// for whatever the catalog could not resolve. Every write is independent, so
// a failing item never takes the batch down with it.
type CategorizeItemsUseCase struct {
	items       ports.LineItemRepository
	catalog     ports.CatalogRepository
	categorizer ports.ItemCategorizer
	logger      *slog.Logger
	aiEnabled   bool

	batchDefault int
	sampleSize   int
}

func NewCategorizeItemsUseCase(
	items ports.LineItemRepository,
	catalog ports.CatalogRepository,
	categorizer ports.ItemCategorizer,
	logger *slog.Logger,
	aiEnabled bool,
) *CategorizeItemsUseCase {
	return &CategorizeItemsUseCase{
		items:        items,
		catalog:      catalog,
		categorizer:  categorizer,
		logger:       logger,
		aiEnabled:    aiEnabled,
		batchDefault: defaultBatchSize,
		sampleSize:   catalogSampleSize,
	}
}

// SetTuning overrides the default batch size and the catalog sample size
// handed to the AI pass. Non-positive values keep the current setting.
func (uc *CategorizeItemsUseCase) SetTuning(batchDefault, sampleSize int) {
	if batchDefault > 0 {
		uc.batchDefault = batchDefault
	}
	if sampleSize > 0 {
		uc.sampleSize = sampleSize
	}
}

func (uc *CategorizeItemsUseCase) CategorizeProject(ctx context.Context, projectID string, batchSize int, force bool) (domain.CategorizationResult, error) {
	var result domain.CategorizationResult

	if batchSize <= 0 {
		batchSize = uc.batchDefault
	}

	batch, err := uc.loadBatch(ctx, projectID, batchSize, force)
	if err != nil {
		return result, err
	}

	var unmatched []domain.LineItem
	for _, item := range batch {
		entry := uc.directMatch(ctx, item.ItemCode)
		if entry == nil {
			unmatched = append(unmatched, item)
			continue
		}
		if err := uc.items.ApplyCategorization(ctx, directUpdate(item, entry)); err != nil {
			uc.logger.Warn("categorization update failed",
				"line_item_id", item.ID, "item_code", item.ItemCode, "error", err)
			result.ItemsFailed++
			continue
		}
		result.ItemsProcessed++
		result.DirectMatches++
	}

	if len(unmatched) > 0 && uc.aiEnabled {
		uc.categorizeByAI(ctx, unmatched, &result)
	}

	remaining, err := uc.items.CountUncategorized(ctx, projectID)
	if err != nil {
		return result, fmt.Errorf("count remaining items: %w", err)
	}
	result.ItemsRemaining = remaining
	return result, nil
}

func (uc *CategorizeItemsUseCase) loadBatch(ctx context.Context, projectID string, batchSize int, force bool) ([]domain.LineItem, error) {
	if !force {
		items, err := uc.items.ListUncategorized(ctx, projectID, batchSize)
		if err != nil {
			return nil, fmt.Errorf("load uncategorized items: %w", err)
		}
		return items, nil
	}
	items, err := uc.items.ListByProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("load project items: %w", err)
	}
	if len(items) > batchSize {
		items = items[:batchSize]
	}
	return items, nil
}

// directMatch tries the exact item code, then its leading-six-character
// family prefix. Lookup misses are expected and return nil.
func (uc *CategorizeItemsUseCase) directMatch(ctx context.Context, itemCode string) *domain.CatalogItem {
	if itemCode == "" {
		return nil
	}
	entry, err := uc.catalog.GetByCode(ctx, itemCode)
	if err == nil {
		return entry
	}
	if !domain.IsKind(err, domain.ErrNotFound) {
		uc.logger.Warn("catalog lookup failed", "item_code", itemCode, "error", err)
		return nil
	}
	if len(itemCode) <= catalogPrefixLen {
		return nil
	}
	entry, err = uc.catalog.GetByPrefix(ctx, itemCode[:catalogPrefixLen])
	if err != nil {
		if !domain.IsKind(err, domain.ErrNotFound) {
			uc.logger.Warn("catalog prefix lookup failed", "item_code", itemCode, "error", err)
		}
		return nil
	}
	return entry
}

func directUpdate(item domain.LineItem, entry *domain.CatalogItem) domain.CategorizationUpdate {
	category := domain.CategoryOther
	if entry.WorkCategory != nil && domain.ValidWorkCategory(*entry.WorkCategory) {
		category = *entry.WorkCategory
	}

	risk := domain.RiskLow
	var notes []string
	if item.RiskNotes != "" {
		notes = append(notes, item.RiskNotes)
	}
	if entry.WeatherSensitive {
		risk = risk.AtLeast(domain.RiskMedium)
		notes = append(notes, "weather-sensitive work")
	}
	if entry.LumpSum {
		risk = risk.Escalate()
		notes = append(notes, "lump-sum pricing")
	}
	if entry.SubcontractorDependent {
		notes = append(notes, "typically subcontracted")
	}
	if entry.CriticalPathTypical {
		risk = risk.AtLeast(domain.RiskMedium)
		notes = append(notes, "typically on the critical path")
	}
	if len(entry.RiskFactors) >= 3 {
		risk = risk.AtLeast(domain.RiskHigh)
		notes = append(notes, entry.RiskFactors...)
	}

	update := domain.CategorizationUpdate{
		LineItemID:         item.ID,
		WorkCategory:       category,
		RiskLevel:          risk,
		RiskNotes:          strings.Join(notes, "; "),
		Confidence:         directMatchConfidence,
		SuggestedUnitPrice: entry.PriceMedian,
	}
	code := entry.ItemCode
	update.MatchedCatalogCode = &code
	if entry.SpecSection != "" {
		update.SpecSections = []string{entry.SpecSection}
	}
	return update
}

// categorizeByAI submits the catalog misses as one batch. An adapter failure
// leaves the items uncategorized for the next invocation; it is never fatal.
func (uc *CategorizeItemsUseCase) categorizeByAI(ctx context.Context, unmatched []domain.LineItem, result *domain.CategorizationResult) {
	sample, err := uc.catalog.Sample(ctx, uc.sampleSize)
	if err != nil {
		uc.logger.Warn("catalog sample failed", "error", err)
		sample = nil
	}

	proposals, err := uc.categorizer.CategorizeItems(ctx, unmatched, sample)
	if err != nil {
		uc.logger.Warn("ai categorization failed", "items", len(unmatched), "error", err)
		return
	}

	byID := make(map[string]domain.LineItem, len(unmatched))
	for _, item := range unmatched {
		byID[item.ID] = item
	}

	for _, proposal := range proposals {
		item, ok := byID[proposal.LineItemID]
		if !ok {
			uc.logger.Warn("ai categorization for unknown item", "line_item_id", proposal.LineItemID)
			continue
		}

		category := domain.WorkCategory(proposal.WorkCategory)
		if !domain.ValidWorkCategory(category) {
			// Never write an invalid category; the item stays uncategorized.
			uc.logger.Warn("ai categorization dropped: invalid category",
				"line_item_id", proposal.LineItemID, "work_category", proposal.WorkCategory)
			continue
		}
		risk := domain.RiskLevel(proposal.RiskLevel)
		if !domain.ValidRiskLevel(risk) {
			risk = domain.RiskMedium
		}

		var notes []string
		if item.RiskNotes != "" {
			notes = append(notes, item.RiskNotes)
		}
		if proposal.RiskNotes != "" {
			notes = append(notes, proposal.RiskNotes)
		}
		if flag := domain.OpportunityFlag(proposal.Opportunity); proposal.Opportunity != "" && domain.ValidOpportunityFlag(flag) {
			notes = append(notes, "opportunity: "+string(flag))
		}

		update := domain.CategorizationUpdate{
			LineItemID:   item.ID,
			WorkCategory: category,
			RiskLevel:    risk,
			RiskNotes:    strings.Join(notes, "; "),
			Confidence:   proposal.Confidence,
		}
		if err := uc.items.ApplyCategorization(ctx, update); err != nil {
			uc.logger.Warn("categorization update failed",
				"line_item_id", item.ID, "item_code", item.ItemCode, "error", err)
			result.ItemsFailed++
			continue
		}
		result.ItemsProcessed++
		result.AICategorized++
	}
}
