package domain

import "time"

type DocumentStatus string

const (
	StatusPending    DocumentStatus = "pending"
	StatusProcessing DocumentStatus = "processing"
	StatusCompleted  DocumentStatus = "completed"
	StatusFailed     DocumentStatus = "failed"
)

type DocumentType string

const (
	DocTypeScheduleXML        DocumentType = "schedule_xml"
	DocTypeSpreadsheet        DocumentType = "spreadsheet"
	DocTypeProposalPDF        DocumentType = "proposal_pdf"
	DocTypeEnvironmental      DocumentType = "environmental"
	DocTypeHazardousMaterials DocumentType = "hazardous_materials"
	DocTypeGeotechnical       DocumentType = "geotechnical"
	DocTypeOther              DocumentType = "other"
)

// Document is one uploaded bid artifact. Status is the sole source of truth
// for the caller: terminal once completed or failed.
type Document struct {
	ID           string            `json:"id"`
	ProjectID    string            `json:"project_id"`
	DocumentType DocumentType      `json:"document_type"`
	Filename     string            `json:"filename"`
	MimeType     string            `json:"mime_type"`
	StoragePath  string            `json:"storage_path"`
	Status       DocumentStatus    `json:"status"`
	ErrorMessage string            `json:"error_message,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	StartedAt    *time.Time        `json:"processing_started_at,omitempty"`
	CompletedAt  *time.Time        `json:"processing_completed_at,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

func (d *Document) Terminal() bool {
	return d.Status == StatusCompleted || d.Status == StatusFailed
}

// Project carries the metadata fields the parsers can opportunistically
// back-fill. Fields the user already set are never overwritten.
type Project struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	ContractNumber string     `json:"contract_number,omitempty"`
	County         string     `json:"county,omitempty"`
	Route          string     `json:"route,omitempty"`
	LettingDate    *time.Time `json:"letting_date,omitempty"`
}

// ProjectMetadata is the subset of project fields a parser may discover
// inside a schedule file.
type ProjectMetadata struct {
	Name           string
	ContractNumber string
	County         string
	Route          string
	LettingDate    *time.Time
}

func (m ProjectMetadata) Empty() bool {
	return m.Name == "" && m.ContractNumber == "" && m.County == "" &&
		m.Route == "" && m.LettingDate == nil
}
