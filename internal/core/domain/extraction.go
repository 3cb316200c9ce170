package domain

// ExtractedDocumentFields is the structured record the extraction capability
// returns for metadata extraction. A failed or malformed extraction yields a
// default record with ConfidenceScore 0 and explanatory notes, never an error.
type ExtractedDocumentFields struct {
	Title           string   `json:"title,omitempty"`
	DocumentDate    string   `json:"document_date,omitempty"`
	ProjectName     string   `json:"project_name,omitempty"`
	ContractNumber  string   `json:"contract_number,omitempty"`
	County          string   `json:"county,omitempty"`
	Route           string   `json:"route,omitempty"`
	Summary         string   `json:"summary,omitempty"`
	KeyFindings     []string `json:"key_findings,omitempty"`
	ConfidenceScore int      `json:"confidence_score"`
	ExtractionNotes []string `json:"extraction_notes,omitempty"`
}

// DocumentAnalysis is the full-document analysis record. There is no safe
// default for it, so malformed responses surface as errors.
type DocumentAnalysis struct {
	Summary      string   `json:"summary"`
	KeyFindings  []string `json:"key_findings,omitempty"`
	RiskFlags    []string `json:"risk_flags,omitempty"`
	SpecSections []string `json:"spec_sections,omitempty"`
}

// AICategorization is one item's categorization as proposed by the
// extraction capability. Enum fields arrive as raw strings and are validated
// by the categorizer before any write.
type AICategorization struct {
	LineItemID   string `json:"line_item_id"`
	WorkCategory string `json:"work_category"`
	RiskLevel    string `json:"risk_level"`
	RiskNotes    string `json:"risk_notes,omitempty"`
	Confidence   int    `json:"confidence"`
	Opportunity  string `json:"opportunity,omitempty"`
}

// ProposedPackage is one AI-proposed work package. Member IDs outside the
// project's item set are excluded during validation, not fatal.
type ProposedPackage struct {
	Name         string   `json:"name"`
	Code         string   `json:"code,omitempty"`
	Description  string   `json:"description,omitempty"`
	WorkCategory string   `json:"work_category"`
	ItemIDs      []string `json:"item_ids"`
}
