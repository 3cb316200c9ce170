package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/bidworks/ingest-pipeline/internal/core/domain"
)

func newLineItemRepoWithMock(t *testing.T) (*LineItemRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &LineItemRepository{db: db}, mock, func() { _ = db.Close() }
}

func TestInsertMapsUniqueViolationToConflict(t *testing.T) {
	repo, mock, done := newLineItemRepoWithMock(t)
	defer done()

	mock.ExpectExec("INSERT INTO line_items").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "uq_line_items_project_line"})

	now := time.Now()
	err := repo.Insert(context.Background(), &domain.LineItem{
		ID: "li-1", ProjectID: "proj-1", LineNumber: 1,
		ItemCode: "201.001", Description: "CLEARING", Quantity: 1,
		CreatedAt: now, UpdatedAt: now,
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestMaxLineNumberDefaultsToZero(t *testing.T) {
	repo, mock, done := newLineItemRepoWithMock(t)
	defer done()

	mock.ExpectQuery(`SELECT COALESCE\(MAX\(line_number\), 0\)`).
		WithArgs("proj-1").
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(0))

	maxLine, err := repo.MaxLineNumber(context.Background(), "proj-1")
	if err != nil {
		t.Fatalf("MaxLineNumber() error = %v", err)
	}
	if maxLine != 0 {
		t.Fatalf("expected 0, got %d", maxLine)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestExistingItemCodesBuildsSet(t *testing.T) {
	repo, mock, done := newLineItemRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT item_code FROM line_items").
		WithArgs("proj-1").
		WillReturnRows(sqlmock.NewRows([]string{"item_code"}).
			AddRow("201.001").
			AddRow("207.020"))

	codes, err := repo.ExistingItemCodes(context.Background(), "proj-1")
	if err != nil {
		t.Fatalf("ExistingItemCodes() error = %v", err)
	}
	if len(codes) != 2 {
		t.Fatalf("expected 2 codes, got %d", len(codes))
	}
	if _, ok := codes["201.001"]; !ok {
		t.Fatalf("missing 201.001 in %v", codes)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestApplyCategorizationReturnsNotFoundWhenNoRowsAffected(t *testing.T) {
	repo, mock, done := newLineItemRepoWithMock(t)
	defer done()

	mock.ExpectExec("UPDATE line_items").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.ApplyCategorization(context.Background(), domain.CategorizationUpdate{
		LineItemID:   "missing",
		WorkCategory: domain.CategoryEarthwork,
		RiskLevel:    domain.RiskLow,
		Confidence:   95,
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestListUncategorizedDecodesNullableColumns(t *testing.T) {
	repo, mock, done := newLineItemRepoWithMock(t)
	defer done()

	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "project_id", "line_number", "item_code", "alt_item_code",
		"description", "short_description", "quantity", "unit", "document_id",
		"work_category", "risk_level", "risk_notes", "spec_sections",
		"confidence", "matched_catalog_code", "suggested_unit_price", "pricing_reviewed",
		"created_at", "updated_at",
	}).AddRow(
		"li-1", "proj-1", 1, "201.001", "",
		"CLEARING AND GRUBBING", "", 1.0, "LS", "doc-1",
		nil, nil, "", []byte(`[]`),
		0, nil, nil, false,
		now, now,
	)

	mock.ExpectQuery("SELECT id, project_id, line_number").
		WithArgs("proj-1", 25).
		WillReturnRows(rows)

	items, err := repo.ListUncategorized(context.Background(), "proj-1", 25)
	if err != nil {
		t.Fatalf("ListUncategorized() error = %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	if items[0].WorkCategory != nil || items[0].RiskLevel != nil {
		t.Fatalf("expected nil category and risk for uncategorized item")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
