package extraction

import (
	"fmt"
	"strings"

	"github.com/bidworks/ingest-pipeline/internal/core/domain"
)

// Instruction schemas are selected per document type. Each one pins the exact
// JSON shape the capability must return; responses are still validated.

const metadataSchemaCommon = `Return strict JSON object with keys:
title (string), document_date (string, YYYY-MM-DD), project_name (string),
contract_number (string), county (string), route (string), summary (string),
key_findings (array of strings), confidence_score (integer 0-100).
No markdown, no extra keys. Use empty strings for unknown fields.`

const bidProposalSchema = `You are reading a construction bid proposal.
Identify the project, owner contract number, county, route, and letting date.
Summarize scope of work and notable bid conditions.
` + metadataSchemaCommon

const environmentalSchema = `You are reading an environmental permit or assessment
for a construction project. Capture permit conditions, in-stream work windows,
and species or habitat restrictions in key_findings.
` + metadataSchemaCommon

const hazardousMaterialsSchema = `You are reading a hazardous-materials survey
(asbestos, lead paint, contaminated soils) for a construction project. Capture
identified materials, locations, and abatement requirements in key_findings.
` + metadataSchemaCommon

const geotechnicalSchema = `You are reading a geotechnical report for a
construction project. Capture soil conditions, rock lines, groundwater, and
foundation recommendations in key_findings.
` + metadataSchemaCommon

const genericSchema = `You are reading a construction project document.
` + metadataSchemaCommon

const analysisSchema = `You are analyzing a construction bid document in full.
Return strict JSON object with keys:
summary (string), key_findings (array of strings), risk_flags (array of strings),
spec_sections (array of strings).
No markdown, no extra keys.`

// schemaFor returns the category-specific instruction schema for a document
// type. Unknown types get the generic default.
func schemaFor(docType domain.DocumentType) string {
	switch docType {
	case domain.DocTypeProposalPDF:
		return bidProposalSchema
	case domain.DocTypeEnvironmental:
		return environmentalSchema
	case domain.DocTypeHazardousMaterials:
		return hazardousMaterialsSchema
	case domain.DocTypeGeotechnical:
		return geotechnicalSchema
	default:
		return genericSchema
	}
}

func buildCategorizationInstructions(items []domain.LineItem, catalogSample []domain.CatalogItem) string {
	var b strings.Builder
	b.WriteString(`You are categorizing construction bid line items.
For every input item return one object in a JSON array "items", each with keys:
line_item_id (string, copied from input), work_category (one of: `)
	b.WriteString(categoryList())
	b.WriteString(`), risk_level (one of: LOW, MEDIUM, HIGH, CRITICAL),
risk_notes (string), confidence (integer 0-100),
opportunity (one of: EARLY_BUYOUT, VALUE_ENGINEERING, SELF_PERFORM, QUANTITY_REVIEW, or empty).
Return strict JSON: {"items": [...]}. No markdown, no extra keys.

Reference catalog sample:
`)
	for _, c := range catalogSample {
		category := ""
		if c.WorkCategory != nil {
			category = string(*c.WorkCategory)
		}
		fmt.Fprintf(&b, "- %s | %s | %s\n", c.ItemCode, c.Description, category)
	}
	b.WriteString("\nItems to categorize:\n")
	for _, item := range items {
		fmt.Fprintf(&b, "- id=%s code=%s desc=%s qty=%.2f unit=%s\n",
			item.ID, item.ItemCode, item.Description, item.Quantity, item.Unit)
	}
	return b.String()
}

func buildGroupingInstructions(items []domain.LineItem) string {
	var b strings.Builder
	b.WriteString(`You are grouping construction bid line items into estimator work packages.
Return strict JSON: {"packages": [...]} where each package has keys:
name (string), code (short string), description (string),
work_category (one of: `)
	b.WriteString(categoryList())
	b.WriteString(`), item_ids (array of input item ids).
Every item should appear in exactly one package. No markdown, no extra keys.

Items:
`)
	for _, item := range items {
		category := ""
		if item.WorkCategory != nil {
			category = string(*item.WorkCategory)
		}
		fmt.Fprintf(&b, "- id=%s code=%s desc=%s qty=%.2f unit=%s category=%s\n",
			item.ID, item.ItemCode, item.Description, item.Quantity, item.Unit, category)
	}
	return b.String()
}

func categoryList() string {
	names := make([]string, len(domain.CategoryOrder))
	for i, c := range domain.CategoryOrder {
		names[i] = string(c)
	}
	return strings.Join(names, ", ")
}
