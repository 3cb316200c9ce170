package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/bidworks/ingest-pipeline/internal/core/domain"
)

func catalogEntry(code string, mutate func(*domain.CatalogItem)) *domain.CatalogItem {
	category := domain.CategoryEarthwork
	entry := &domain.CatalogItem{
		ItemCode:     code,
		Description:  "CLEARING AND GRUBBING",
		WorkCategory: &category,
		SpecSection:  "201",
	}
	if mutate != nil {
		mutate(entry)
	}
	return entry
}

func TestCategorizeProjectDirectMatchConfidenceIsAlways95(t *testing.T) {
	entries := map[string]*domain.CatalogItem{
		"201.001": catalogEntry("201.001", nil),
		"207.020": catalogEntry("207.020", func(e *domain.CatalogItem) {
			e.WeatherSensitive = true
			e.LumpSum = true
			e.CriticalPathTypical = true
			e.RiskFactors = []string{"a", "b", "c"}
		}),
	}
	items := &lineItemRepoFake{uncategorized: []domain.LineItem{
		{ID: "li-1", ItemCode: "201.001"},
		{ID: "li-2", ItemCode: "207.020"},
	}}

	uc := NewCategorizeItemsUseCase(items, &catalogRepoFake{byCode: entries}, &categorizerFake{}, testLogger(), false)
	result, err := uc.CategorizeProject(context.Background(), "proj-1", 50, false)
	if err != nil {
		t.Fatalf("CategorizeProject() error = %v", err)
	}

	if result.DirectMatches != 2 || result.ItemsProcessed != 2 {
		t.Fatalf("result = %+v", result)
	}
	for _, update := range items.applied {
		if update.Confidence != 95 {
			t.Fatalf("direct match confidence must be 95, got %d for %s", update.Confidence, update.LineItemID)
		}
	}
}

func TestCategorizeProjectRiskEscalationIsMonotonic(t *testing.T) {
	mutations := []func(*domain.CatalogItem){
		nil,
		func(e *domain.CatalogItem) { e.WeatherSensitive = true },
		func(e *domain.CatalogItem) { e.WeatherSensitive = true; e.LumpSum = true },
		func(e *domain.CatalogItem) {
			e.WeatherSensitive = true
			e.LumpSum = true
			e.RiskFactors = []string{"a", "b", "c"}
		},
	}

	rank := map[domain.RiskLevel]int{
		domain.RiskLow: 0, domain.RiskMedium: 1, domain.RiskHigh: 2, domain.RiskCritical: 3,
	}

	prev := -1
	for i, mutate := range mutations {
		items := &lineItemRepoFake{uncategorized: []domain.LineItem{{ID: "li-1", ItemCode: "201.001"}}}
		catalog := &catalogRepoFake{byCode: map[string]*domain.CatalogItem{"201.001": catalogEntry("201.001", mutate)}}

		uc := NewCategorizeItemsUseCase(items, catalog, &categorizerFake{}, testLogger(), false)
		if _, err := uc.CategorizeProject(context.Background(), "proj-1", 50, false); err != nil {
			t.Fatalf("CategorizeProject() error = %v", err)
		}
		got := rank[items.applied[0].RiskLevel]
		if got < prev {
			t.Fatalf("risk rank dropped from %d to %d at flag set %d", prev, got, i)
		}
		prev = got
	}
}

func TestCategorizeProjectPrefixMatchGroundsAssignment(t *testing.T) {
	items := &lineItemRepoFake{uncategorized: []domain.LineItem{{ID: "li-1", ItemCode: "201.099"}}}
	catalog := &catalogRepoFake{
		byPrefix: map[string]*domain.CatalogItem{"201.09": catalogEntry("201.090", nil)},
	}

	uc := NewCategorizeItemsUseCase(items, catalog, &categorizerFake{}, testLogger(), false)
	result, err := uc.CategorizeProject(context.Background(), "proj-1", 50, false)
	if err != nil {
		t.Fatalf("CategorizeProject() error = %v", err)
	}
	if result.DirectMatches != 1 {
		t.Fatalf("result = %+v", result)
	}
	if got := items.applied[0].MatchedCatalogCode; got == nil || *got != "201.090" {
		t.Fatalf("matched catalog code = %v", got)
	}
}

func TestCategorizeProjectValidatesAIResponse(t *testing.T) {
	items := &lineItemRepoFake{uncategorized: []domain.LineItem{
		{ID: "li-1", ItemCode: "SPECIAL-1", Description: "TEMP SHORING"},
		{ID: "li-2", ItemCode: "SPECIAL-2", Description: "FIELD OFFICE"},
		{ID: "li-3", ItemCode: "SPECIAL-3", Description: "MISC STEEL"},
	}}
	categorizer := &categorizerFake{proposals: []domain.AICategorization{
		{LineItemID: "li-1", WorkCategory: "NOT_A_CATEGORY", RiskLevel: "LOW"},
		{LineItemID: "li-2", WorkCategory: "GENERAL_CONDITIONS", RiskLevel: "SOMEWHAT_RISKY", Confidence: 60},
		{LineItemID: "li-3", WorkCategory: "SUPERSTRUCTURE", RiskLevel: "HIGH", Confidence: 70, Opportunity: "SELF_PERFORM"},
	}}

	uc := NewCategorizeItemsUseCase(items, &catalogRepoFake{}, categorizer, testLogger(), true)
	result, err := uc.CategorizeProject(context.Background(), "proj-1", 50, false)
	if err != nil {
		t.Fatalf("CategorizeProject() error = %v", err)
	}

	if result.AICategorized != 2 {
		t.Fatalf("invalid category must drop the item: %+v", result)
	}
	if len(items.applied) != 2 {
		t.Fatalf("applied = %#v", items.applied)
	}
	if items.applied[0].RiskLevel != domain.RiskMedium {
		t.Fatalf("invalid risk must default to MEDIUM, got %s", items.applied[0].RiskLevel)
	}
	if !strings.Contains(items.applied[1].RiskNotes, "SELF_PERFORM") {
		t.Fatalf("valid opportunity flag must be noted: %q", items.applied[1].RiskNotes)
	}
}

func TestCategorizeProjectAIFailureLeavesItemsForRetry(t *testing.T) {
	items := &lineItemRepoFake{
		uncategorized: []domain.LineItem{{ID: "li-1", ItemCode: "SPECIAL-1"}},
		remaining:     1,
	}
	categorizer := &categorizerFake{err: errors.New("extraction unavailable")}

	uc := NewCategorizeItemsUseCase(items, &catalogRepoFake{}, categorizer, testLogger(), true)
	result, err := uc.CategorizeProject(context.Background(), "proj-1", 50, false)
	if err != nil {
		t.Fatalf("adapter failure must not fail the batch: %v", err)
	}
	if result.ItemsRemaining != 1 {
		t.Fatalf("remaining must come from a fresh count: %+v", result)
	}
	if len(items.applied) != 0 {
		t.Fatalf("nothing should be written on adapter failure: %#v", items.applied)
	}
}

func TestCategorizeProjectCountsPerItemUpdateFailures(t *testing.T) {
	items := &lineItemRepoFake{
		uncategorized: []domain.LineItem{
			{ID: "li-1", ItemCode: "201.001"},
			{ID: "li-2", ItemCode: "201.001"},
		},
		applyErr: map[string]error{"li-1": errors.New("write failed")},
	}
	catalog := &catalogRepoFake{byCode: map[string]*domain.CatalogItem{"201.001": catalogEntry("201.001", nil)}}

	uc := NewCategorizeItemsUseCase(items, catalog, &categorizerFake{}, testLogger(), false)
	result, err := uc.CategorizeProject(context.Background(), "proj-1", 50, false)
	if err != nil {
		t.Fatalf("CategorizeProject() error = %v", err)
	}
	if result.ItemsFailed != 1 || result.ItemsProcessed != 1 {
		t.Fatalf("one failed write must not abort siblings: %+v", result)
	}
}

func TestCategorizeProjectPreservesEngineerEstimateNote(t *testing.T) {
	items := &lineItemRepoFake{uncategorized: []domain.LineItem{
		{ID: "li-1", ItemCode: "201.001", RiskNotes: "$1500.00 engineer estimate"},
	}}
	catalog := &catalogRepoFake{byCode: map[string]*domain.CatalogItem{
		"201.001": catalogEntry("201.001", func(e *domain.CatalogItem) { e.WeatherSensitive = true }),
	}}

	uc := NewCategorizeItemsUseCase(items, catalog, &categorizerFake{}, testLogger(), false)
	if _, err := uc.CategorizeProject(context.Background(), "proj-1", 50, false); err != nil {
		t.Fatalf("CategorizeProject() error = %v", err)
	}
	notes := items.applied[0].RiskNotes
	if !strings.Contains(notes, "$1500.00 engineer estimate") || !strings.Contains(notes, "weather-sensitive") {
		t.Fatalf("notes = %q", notes)
	}
}
