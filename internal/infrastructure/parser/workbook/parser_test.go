package workbook

import (
	"bytes"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

func newParser(t *testing.T) *Parser {
	t.Helper()
	p, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func buildWorkbook(t *testing.T, sheet string, rows [][]any) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	if sheet != "Sheet1" {
		if _, err := f.NewSheet(sheet); err != nil {
			t.Fatalf("NewSheet: %v", err)
		}
	}
	for i, row := range rows {
		for j, v := range row {
			cell, err := excelize.CoordinatesToCellName(j+1, i+1)
			if err != nil {
				t.Fatalf("cell name: %v", err)
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				t.Fatalf("set cell: %v", err)
			}
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	return buf.Bytes()
}

func TestParseExtractsItemsByHeaderSynonyms(t *testing.T) {
	p := newParser(t)
	raw := buildWorkbook(t, "Bid Items", [][]any{
		{"Item #", "Description", "Qty", "Unit", "Unit Price"},
		{"201.001", "Clearing & Grubbing", "12.5", "AC", "1500"},
	})

	res, err := p.Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !res.OK {
		t.Fatalf("expected OK, diagnostic: %s", res.Diagnostic)
	}
	if len(res.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(res.Items))
	}
	item := res.Items[0]
	if item.ItemCode != "201.001" {
		t.Fatalf("item code: %q", item.ItemCode)
	}
	if item.Quantity != 12.5 {
		t.Fatalf("quantity: %v", item.Quantity)
	}
	if item.Unit != "AC" {
		t.Fatalf("unit: %q", item.Unit)
	}
	if item.UnitPrice == nil || *item.UnitPrice != 1500 {
		t.Fatalf("unit price: %v", item.UnitPrice)
	}
	if res.SchemaName != "Bid Items" {
		t.Fatalf("schema: %q", res.SchemaName)
	}
}

func TestParseCanonicalizesWVDOHItemCodes(t *testing.T) {
	p := newParser(t)
	raw := buildWorkbook(t, "Sheet1", [][]any{
		{"Item No", "Description", "Quantity"},
		{"201001-000", "Clearing", "3"},
	})

	res, err := p.Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !res.OK || len(res.Items) != 1 {
		t.Fatalf("OK=%v n=%d (%s)", res.OK, len(res.Items), res.Diagnostic)
	}
	if res.Items[0].ItemCode != "201.001" {
		t.Fatalf("item code: %q", res.Items[0].ItemCode)
	}
	if res.Items[0].AltItemCode != "201001-000" {
		t.Fatalf("alternate code: %q", res.Items[0].AltItemCode)
	}
}

func TestParseHarvestsProjectMetadataAboveHeader(t *testing.T) {
	p := newParser(t)
	raw := buildWorkbook(t, "Schedule", [][]any{
		{"Project: Corridor H Widening"},
		{"Contract", "C-2024-09"},
		{"Letting Date", 45292},
		{"Item Number", "Description", "Qty", "Unit"},
		{"402.001", "Asphalt Base", "100", "TON"},
		{"402.002", "Asphalt Surface", "80", "TON"},
	})

	res, err := p.Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !res.OK {
		t.Fatalf("diagnostic: %s", res.Diagnostic)
	}
	md := res.Metadata
	if md.Name != "Corridor H Widening" {
		t.Fatalf("project name: %q", md.Name)
	}
	if md.ContractNumber != "C-2024-09" {
		t.Fatalf("contract: %q", md.ContractNumber)
	}
	if md.LettingDate == nil || md.LettingDate.Year() != 2024 {
		t.Fatalf("letting date: %v", md.LettingDate)
	}
	if len(res.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(res.Items))
	}
}

func TestParseIgnoresContractorCellsInMetadataHarvest(t *testing.T) {
	p := newParser(t)
	raw := buildWorkbook(t, "Schedule", [][]any{
		{"Contractor: Acme Paving LLC"},
		{"Contract No: C-2025-14"},
		{"Item Number", "Description", "Qty", "Unit"},
		{"402.001", "Asphalt Base", "100", "TON"},
		{"402.002", "Asphalt Surface", "80", "TON"},
	})

	res, err := p.Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !res.OK {
		t.Fatalf("diagnostic: %s", res.Diagnostic)
	}
	if res.Metadata.ContractNumber != "C-2025-14" {
		t.Fatalf("contract: %q (contractor name must not win)", res.Metadata.ContractNumber)
	}
}

func TestParseSkipsSparseRowsAndBlankItems(t *testing.T) {
	p := newParser(t)
	raw := buildWorkbook(t, "Items", [][]any{
		{"Item #", "Description", "Qty"},
		{"", "", ""},
		{"subtotal"},
		{"636.010", "Guardrail Type 1", "not a number"},
	})

	res, err := p.Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !res.OK || len(res.Items) != 1 {
		t.Fatalf("OK=%v n=%d (%s)", res.OK, len(res.Items), res.Diagnostic)
	}
	if res.Items[0].Quantity != 0 {
		t.Fatalf("unparsable quantity must default to 0, got %v", res.Items[0].Quantity)
	}
}

func TestParseReportsUnrecognizedHeadersInDiagnostic(t *testing.T) {
	p := newParser(t)
	raw := buildWorkbook(t, "Sheet1", [][]any{
		{"Alpha", "Beta", "Gamma"},
		{"1", "2", "3"},
	})

	res, err := p.Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if res.OK {
		t.Fatalf("expected OK=false")
	}
	if !strings.Contains(res.Diagnostic, "Alpha") {
		t.Fatalf("diagnostic should list offending headers: %s", res.Diagnostic)
	}
}

func TestParseRejectsUnreadableWorkbook(t *testing.T) {
	p := newParser(t)
	if _, err := p.Parse([]byte("not a workbook")); err == nil {
		t.Fatalf("expected structural error")
	}
}
