// Package workbook extracts line items and project metadata from tabular
// spreadsheets of unknown column layout. Column discovery is driven by the
// shared header-synonym vocabulary.
package workbook

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/bidworks/ingest-pipeline/internal/core/domain"
	"github.com/bidworks/ingest-pipeline/internal/infrastructure/parser/fields"
)

const headerScanRows = 10

var logicalFields = []string{
	"line_number", "item_code", "description", "quantity", "unit", "unit_price", "extended_price",
}

type Parser struct {
	vocab *fields.Vocabulary
}

func New() (*Parser, error) {
	vocab, err := fields.LoadVocabulary()
	if err != nil {
		return nil, err
	}
	return &Parser{vocab: vocab}, nil
}

func (p *Parser) Parse(raw []byte) (domain.ParseResult, error) {
	f, err := excelize.OpenReader(bytes.NewReader(raw))
	if err != nil {
		return domain.ParseResult{}, domain.WrapError(domain.ErrParseFailed, "open workbook", err)
	}
	defer f.Close()

	sheet := p.selectSheet(f)
	rows, err := f.GetRows(sheet)
	if err != nil {
		return domain.ParseResult{}, domain.WrapError(domain.ErrParseFailed, "read sheet "+sheet, err)
	}
	if len(rows) < 2 {
		return domain.ParseResult{
			OK:         false,
			Diagnostic: fmt.Sprintf("sheet %q has %d row(s); need a header row and at least one data row", sheet, len(rows)),
		}, nil
	}

	headerIdx := findHeaderRow(rows)
	if headerIdx < 0 {
		return domain.ParseResult{
			OK:         false,
			Diagnostic: fmt.Sprintf("no header row with 3+ non-empty cells in the first %d rows of sheet %q", headerScanRows, sheet),
		}, nil
	}
	header := rows[headerIdx]
	columns := p.mapColumns(header)

	if _, hasCode := columns["item_code"]; !hasCode {
		if _, hasDesc := columns["description"]; !hasDesc {
			return domain.ParseResult{
				OK:         false,
				Diagnostic: fmt.Sprintf("no item-number or description column recognized; headers: %v", header),
			}, nil
		}
	}

	metadata := p.harvestMetadata(rows[:headerIdx])

	var items []domain.ParsedItem
	for _, row := range rows[headerIdx+1:] {
		if nonEmptyCells(row) < 2 {
			continue
		}
		item := p.extractRow(row, columns)
		if item.Blank() {
			continue
		}
		items = append(items, item)
	}

	if len(items) == 0 {
		return domain.ParseResult{
			OK:         false,
			Diagnostic: fmt.Sprintf("no data rows retained below header %v on sheet %q", header, sheet),
		}, nil
	}

	return domain.ParseResult{
		OK:         true,
		Items:      items,
		Metadata:   metadata,
		SchemaName: sheet,
	}, nil
}

// selectSheet picks the first sheet whose name matches the conventional list,
// falling back to the workbook's first sheet.
func (p *Parser) selectSheet(f *excelize.File) string {
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return ""
	}
	for _, want := range p.vocab.Sheets {
		for _, name := range sheets {
			if strings.EqualFold(strings.TrimSpace(name), want) {
				return name
			}
		}
	}
	return sheets[0]
}

// findHeaderRow returns the index of the first row within the scan window
// that has at least 3 non-empty cells.
func findHeaderRow(rows [][]string) int {
	limit := len(rows)
	if limit > headerScanRows {
		limit = headerScanRows
	}
	for i := 0; i < limit; i++ {
		if nonEmptyCells(rows[i]) >= 3 {
			return i
		}
	}
	return -1
}

// mapColumns resolves each logical field to a column index. The first header
// cell matching a field's patterns wins; a cell claimed by one field is not
// offered to later fields.
func (p *Parser) mapColumns(header []string) map[string]int {
	columns := make(map[string]int, len(logicalFields))
	claimed := make(map[int]bool, len(header))
	for _, field := range logicalFields {
		for idx, cell := range header {
			if claimed[idx] || strings.TrimSpace(cell) == "" {
				continue
			}
			if p.vocab.MatchHeader(field, cell) {
				columns[field] = idx
				claimed[idx] = true
				break
			}
		}
	}
	return columns
}

func (p *Parser) extractRow(row []string, columns map[string]int) domain.ParsedItem {
	rawCode := strings.TrimSpace(cellAt(row, columns, "item_code"))
	code := fields.NormalizeItemCode(rawCode)

	item := domain.ParsedItem{
		ItemCode:    code,
		Description: strings.TrimSpace(cellAt(row, columns, "description")),
		Quantity:    fields.ParseQuantity(cellAt(row, columns, "quantity")),
		Unit:        strings.TrimSpace(cellAt(row, columns, "unit")),
		UnitPrice:   fields.ParsePrice(cellAt(row, columns, "unit_price")),
	}
	if code != rawCode {
		item.AltItemCode = rawCode
	}
	return item
}

// harvestMetadata scans pre-header rows for keyword triggers and pulls the
// nearest value. An Excel date serial near a letting/bid-date trigger is
// converted to a calendar date.
func (p *Parser) harvestMetadata(rows [][]string) domain.ProjectMetadata {
	md := domain.ProjectMetadata{}
	for _, row := range rows {
		for key, triggers := range p.vocab.MetadataTriggers {
			value := triggerValue(row, triggers)
			if value == "" {
				continue
			}
			switch key {
			case "project":
				if md.Name == "" {
					md.Name = value
				}
			case "contract":
				if md.ContractNumber == "" {
					md.ContractNumber = value
				}
			case "county":
				if md.County == "" {
					md.County = value
				}
			case "letting_date":
				if md.LettingDate == nil {
					if t, ok := parseDateOrSerial(value); ok {
						md.LettingDate = &t
					}
				}
			}
		}
	}
	return md
}

// triggerValue finds a cell containing one of the triggers and returns the
// text after a colon in that cell, or the next non-empty cell in the row.
func triggerValue(row []string, triggers []string) string {
	for i, cell := range row {
		lower := strings.ToLower(cell)
		for _, trigger := range triggers {
			if !triggerMatches(lower, trigger) {
				continue
			}
			if _, after, found := strings.Cut(cell, ":"); found {
				if v := strings.TrimSpace(after); v != "" {
					return v
				}
			}
			for _, next := range row[i+1:] {
				if v := strings.TrimSpace(next); v != "" {
					return v
				}
			}
		}
	}
	return ""
}

// triggerMatches reports whether the trigger occurs in the cell on word
// boundaries. "contract no" contains "contract"; "contractor" does not,
// so a contractor name is never harvested as the contract number.
func triggerMatches(lower, trigger string) bool {
	for start := 0; ; {
		i := strings.Index(lower[start:], trigger)
		if i < 0 {
			return false
		}
		at := start + i
		end := at + len(trigger)
		beforeOK := at == 0 || !isLetterByte(lower[at-1])
		afterOK := end == len(lower) || !isLetterByte(lower[end])
		if beforeOK && afterOK {
			return true
		}
		start = at + 1
	}
}

func isLetterByte(b byte) bool {
	return b >= 'a' && b <= 'z'
}

// parseDateOrSerial accepts either a formatted calendar date or a raw Excel
// date serial in a plausible range (1954–2063).
func parseDateOrSerial(value string) (time.Time, bool) {
	if serial, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
		if serial >= 20000 && serial <= 60000 {
			return fields.ExcelSerialToDate(serial), true
		}
		return time.Time{}, false
	}
	return fields.ParseDate(value)
}

func cellAt(row []string, columns map[string]int, field string) string {
	idx, ok := columns[field]
	if !ok || idx >= len(row) {
		return ""
	}
	return row[idx]
}

func nonEmptyCells(row []string) int {
	n := 0
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			n++
		}
	}
	return n
}
