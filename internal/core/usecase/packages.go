package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/bidworks/ingest-pipeline/internal/core/domain"
	"github.com/bidworks/ingest-pipeline/internal/core/ports"
)

const (
	strategyAI            = "ai"
	strategyDeterministic = "deterministic"

	// A category larger than the ceiling is split into parts of the target
	// size instead of one oversized package.
	chunkCeiling    = 50
	chunkTargetSize = 40
)

// GeneratePackagesUseCase clusters a project's line items into work packages.
// The AI grouping is advisory: any failure or empty result falls through to
// deterministic chunking by category.
type GeneratePackagesUseCase struct {
	items      ports.LineItemRepository
	packages   ports.WorkPackageRepository
	proposer   ports.PackageProposer
	logger     *slog.Logger
	aiEnabled  bool
	minAIItems int
}

func NewGeneratePackagesUseCase(
	items ports.LineItemRepository,
	packages ports.WorkPackageRepository,
	proposer ports.PackageProposer,
	logger *slog.Logger,
	aiEnabled bool,
	minAIItems int,
) *GeneratePackagesUseCase {
	return &GeneratePackagesUseCase{
		items:      items,
		packages:   packages,
		proposer:   proposer,
		logger:     logger,
		aiEnabled:  aiEnabled,
		minAIItems: minAIItems,
	}
}

// plannedPackage is a package with its members resolved, before persistence.
type plannedPackage struct {
	name        string
	code        string
	description string
	category    domain.WorkCategory
	aiGenerated bool
	itemIDs     []string
}

func (uc *GeneratePackagesUseCase) GeneratePackages(ctx context.Context, projectID string, regenerate bool) (domain.PackageGenerationResult, error) {
	var result domain.PackageGenerationResult

	existing, err := uc.packages.CountByProject(ctx, projectID)
	if err != nil {
		return result, fmt.Errorf("count existing packages: %w", err)
	}
	if existing > 0 {
		if !regenerate {
			return result, domain.WrapError(domain.ErrConflict, "generate packages",
				fmt.Errorf("%d packages already exist for project %s", existing, projectID))
		}
		if err := uc.packages.DeleteByProject(ctx, projectID); err != nil {
			return result, fmt.Errorf("delete existing packages: %w", err)
		}
	}

	items, err := uc.items.ListByProject(ctx, projectID)
	if err != nil {
		return result, fmt.Errorf("load project items: %w", err)
	}
	result.TotalItems = len(items)
	result.Strategy = strategyDeterministic
	if len(items) == 0 {
		return result, nil
	}

	var planned []plannedPackage
	if uc.aiEnabled && len(items) >= uc.minAIItems {
		planned = uc.proposeByAI(ctx, items)
	}
	if len(planned) > 0 {
		result.Strategy = strategyAI
	} else {
		planned = deterministicPlan(items)
	}

	uc.persistPlan(ctx, projectID, planned, &result)
	return result, nil
}

// proposeByAI asks for a named grouping and validates it: unknown member ids
// are dropped, an item is claimed by its first proposal only, invalid
// categories coerce to OTHER. Zero usable packages means the deterministic
// path takes over.
func (uc *GeneratePackagesUseCase) proposeByAI(ctx context.Context, items []domain.LineItem) []plannedPackage {
	proposals, err := uc.proposer.ProposePackages(ctx, items)
	if err != nil {
		uc.logger.Warn("ai package proposal failed", "items", len(items), "error", err)
		return nil
	}

	known := make(map[string]bool, len(items))
	for _, item := range items {
		known[item.ID] = true
	}

	claimed := make(map[string]bool)
	var planned []plannedPackage
	for _, p := range proposals {
		category := domain.WorkCategory(p.WorkCategory)
		if !domain.ValidWorkCategory(category) {
			category = domain.CategoryOther
		}

		var members []string
		for _, id := range p.ItemIDs {
			if !known[id] || claimed[id] {
				continue
			}
			claimed[id] = true
			members = append(members, id)
		}
		if len(members) == 0 || p.Name == "" {
			continue
		}

		planned = append(planned, plannedPackage{
			name:        p.Name,
			code:        p.Code,
			description: p.Description,
			category:    category,
			aiGenerated: true,
			itemIDs:     members,
		})
	}
	return planned
}

// deterministicPlan groups by category in the canonical order; uncategorized
// items fold into OTHER. Oversized categories split into numbered parts.
func deterministicPlan(items []domain.LineItem) []plannedPackage {
	byCategory := make(map[domain.WorkCategory][]string)
	for _, item := range items {
		category := domain.CategoryOther
		if item.WorkCategory != nil && domain.ValidWorkCategory(*item.WorkCategory) {
			category = *item.WorkCategory
		}
		byCategory[category] = append(byCategory[category], item.ID)
	}

	var planned []plannedPackage
	for _, category := range domain.CategoryOrder {
		ids := byCategory[category]
		if len(ids) == 0 {
			continue
		}
		if len(ids) <= chunkCeiling {
			planned = append(planned, plannedPackage{
				name:     category.DisplayName(),
				category: category,
				itemIDs:  ids,
			})
			continue
		}
		for part := 0; part*chunkTargetSize < len(ids); part++ {
			end := (part + 1) * chunkTargetSize
			if end > len(ids) {
				end = len(ids)
			}
			planned = append(planned, plannedPackage{
				name:     fmt.Sprintf("%s (Part %d)", category.DisplayName(), part+1),
				category: category,
				itemIDs:  ids[part*chunkTargetSize : end],
			})
		}
	}
	return planned
}

// persistPlan writes packages first, then links. A link rejected because the
// item is already claimed counts as failed-to-link; concurrent or partial
// prior runs make that an expected outcome, not an abort.
func (uc *GeneratePackagesUseCase) persistPlan(ctx context.Context, projectID string, planned []plannedPackage, result *domain.PackageGenerationResult) {
	now := time.Now().UTC()
	for i, plan := range planned {
		pkg := &domain.WorkPackage{
			ID:            uuid.NewString(),
			ProjectID:     projectID,
			PackageNumber: i + 1,
			Name:          plan.name,
			Code:          plan.code,
			Description:   plan.description,
			WorkCategory:  plan.category,
			Status:        domain.PackagePending,
			SortOrder:     i + 1,
			AIGenerated:   plan.aiGenerated,
			CreatedAt:     now,
		}
		if pkg.Code == "" {
			pkg.Code = fmt.Sprintf("PKG-%03d", pkg.PackageNumber)
		}

		if err := uc.packages.CreatePackage(ctx, pkg); err != nil {
			uc.logger.Warn("package create failed",
				"project_id", projectID, "package_number", pkg.PackageNumber, "error", err)
			result.ItemsFailed += len(plan.itemIDs)
			continue
		}
		result.PackagesCreated++

		linked := 0
		for pos, itemID := range plan.itemIDs {
			link := &domain.WorkPackageItem{
				PackageID:  pkg.ID,
				LineItemID: itemID,
				Position:   pos + 1,
			}
			if err := uc.packages.LinkItem(ctx, link); err != nil {
				if !domain.IsKind(err, domain.ErrConflict) {
					uc.logger.Warn("package link failed",
						"package_id", pkg.ID, "line_item_id", itemID, "error", err)
				}
				result.ItemsFailed++
				continue
			}
			linked++
		}
		result.ItemsLinked += linked

		if err := uc.packages.UpdateItemCount(ctx, pkg.ID, linked); err != nil {
			uc.logger.Warn("package item count update failed",
				"package_id", pkg.ID, "error", err)
		}
	}
}
