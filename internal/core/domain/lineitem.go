package domain

import "time"

// LineItem is one priced unit of work extracted from a bid document.
// Category and risk fields are written only by the categorizer.
type LineItem struct {
	ID                 string        `json:"id"`
	ProjectID          string        `json:"project_id"`
	LineNumber         int           `json:"line_number"`
	ItemCode           string        `json:"item_code"`
	AltItemCode        string        `json:"alt_item_code,omitempty"`
	Description        string        `json:"description"`
	ShortDescription   string        `json:"short_description,omitempty"`
	Quantity           float64       `json:"quantity"`
	Unit               string        `json:"unit,omitempty"`
	DocumentID         string        `json:"document_id,omitempty"`
	WorkCategory       *WorkCategory `json:"work_category,omitempty"`
	RiskLevel          *RiskLevel    `json:"risk_level,omitempty"`
	RiskNotes          string        `json:"risk_notes,omitempty"`
	SpecSections       []string      `json:"spec_sections,omitempty"`
	Confidence         int           `json:"confidence"`
	MatchedCatalogCode *string       `json:"matched_catalog_code,omitempty"`
	SuggestedUnitPrice *float64      `json:"suggested_unit_price,omitempty"`
	PricingReviewed    bool          `json:"pricing_reviewed"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
}

// ParsedItem is the canonical per-row output of every parser, before
// persistence assigns identity and project-scoped line numbers.
type ParsedItem struct {
	ItemCode         string
	AltItemCode      string
	Description      string
	ShortDescription string
	Quantity         float64
	Unit             string
	UnitPrice        *float64
	SpecSection      string
}

func (p ParsedItem) Blank() bool {
	return p.ItemCode == "" && p.Description == ""
}

// ParseResult is the shared contract all format parsers return. OK=false with
// a Diagnostic means the input was readable but not recognized; a structural
// failure is surfaced as an error instead.
type ParseResult struct {
	OK         bool
	Items      []ParsedItem
	Metadata   ProjectMetadata
	SchemaName string
	Diagnostic string
}

// CategorizationUpdate is the categorizer's per-item write.
type CategorizationUpdate struct {
	LineItemID         string
	WorkCategory       WorkCategory
	RiskLevel          RiskLevel
	RiskNotes          string
	SpecSections       []string
	Confidence         int
	MatchedCatalogCode *string
	SuggestedUnitPrice *float64
}

// CatalogItem is a reference record for a known item code. Read-only here.
type CatalogItem struct {
	ItemCode               string        `json:"item_code"`
	Description            string        `json:"description"`
	WorkCategory           *WorkCategory `json:"work_category,omitempty"`
	PriceLow               *float64      `json:"price_low,omitempty"`
	PriceMedian            *float64      `json:"price_median,omitempty"`
	PriceHigh              *float64      `json:"price_high,omitempty"`
	WeatherSensitive       bool          `json:"weather_sensitive"`
	LumpSum                bool          `json:"lump_sum"`
	SubcontractorDependent bool          `json:"subcontractor_dependent"`
	CriticalPathTypical    bool          `json:"critical_path_typical"`
	RiskFactors            []string      `json:"risk_factors,omitempty"`
	SpecSection            string        `json:"spec_section,omitempty"`
}
