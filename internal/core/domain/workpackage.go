package domain

import "time"

type PackageStatus string

const (
	PackagePending PackageStatus = "pending"
)

// WorkPackage is a named cluster of line items for estimator assignment.
// ItemCount always equals the number of WorkPackageItem children.
type WorkPackage struct {
	ID            string        `json:"id"`
	ProjectID     string        `json:"project_id"`
	PackageNumber int           `json:"package_number"`
	Name          string        `json:"name"`
	Code          string        `json:"code"`
	Description   string        `json:"description,omitempty"`
	WorkCategory  WorkCategory  `json:"work_category"`
	Status        PackageStatus `json:"status"`
	ItemCount     int           `json:"item_count"`
	SortOrder     int           `json:"sort_order"`
	AIGenerated   bool          `json:"ai_generated"`
	CreatedAt     time.Time     `json:"created_at"`
}

// WorkPackageItem links one line item to exactly one package. Uniqueness on
// LineItemID is enforced by the datastore, not by convention.
type WorkPackageItem struct {
	PackageID  string `json:"package_id"`
	LineItemID string `json:"line_item_id"`
	Position   int    `json:"position"`
}

// PackageGenerationResult reports partial-success counts for a generation run.
type PackageGenerationResult struct {
	PackagesCreated int    `json:"packages_created"`
	ItemsLinked     int    `json:"items_linked"`
	ItemsFailed     int    `json:"items_failed_to_link"`
	TotalItems      int    `json:"total_items"`
	Strategy        string `json:"strategy"`
}

// CategorizationResult reports partial-success counts for a categorizer batch.
// ItemsRemaining comes from a fresh count so retries are self-correcting.
type CategorizationResult struct {
	ItemsProcessed int `json:"items_processed"`
	ItemsFailed    int `json:"items_failed"`
	DirectMatches  int `json:"direct_matches"`
	AICategorized  int `json:"ai_categorized"`
	ItemsRemaining int `json:"items_remaining"`
}

// ImportResult reports what a document processing run persisted.
type ImportResult struct {
	ItemsParsed     int    `json:"items_parsed"`
	ItemsPersisted  int    `json:"items_persisted"`
	ItemsSkipped    int    `json:"items_skipped"`
	SchemaName      string `json:"schema_name,omitempty"`
	MetadataApplied bool   `json:"metadata_applied"`
}
