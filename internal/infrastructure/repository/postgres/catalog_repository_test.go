package postgres

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/bidworks/ingest-pipeline/internal/core/domain"
)

func newCatalogRepoWithMock(t *testing.T) (*CatalogRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &CatalogRepository{db: db}, mock, func() { _ = db.Close() }
}

func catalogRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"item_code", "description", "work_category",
		"price_low", "price_median", "price_high",
		"weather_sensitive", "lump_sum", "subcontractor_dependent", "critical_path_typical",
		"risk_factors", "spec_section",
	})
}

func TestGetByCodeDecodesRiskFlags(t *testing.T) {
	repo, mock, done := newCatalogRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT item_code, description").
		WithArgs("201.001").
		WillReturnRows(catalogRows().AddRow(
			"201.001", "CLEARING AND GRUBBING", string(domain.CategoryEarthwork),
			10000.0, 25000.0, 80000.0,
			true, true, false, true,
			[]byte(`["weather dependent"]`), "201",
		))

	item, err := repo.GetByCode(context.Background(), "201.001")
	if err != nil {
		t.Fatalf("GetByCode() error = %v", err)
	}
	if item.WorkCategory == nil || *item.WorkCategory != domain.CategoryEarthwork {
		t.Fatalf("work category not decoded: %#v", item.WorkCategory)
	}
	if !item.WeatherSensitive || !item.LumpSum || item.SubcontractorDependent {
		t.Fatalf("risk flags not decoded: %#v", item)
	}
	if len(item.RiskFactors) != 1 {
		t.Fatalf("risk factors not decoded: %#v", item.RiskFactors)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetByPrefixReturnsDomainNotFound(t *testing.T) {
	repo, mock, done := newCatalogRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT item_code, description").
		WithArgs("201.00").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByPrefix(context.Background(), "201.00")
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

func TestSampleReturnsOrderedSlice(t *testing.T) {
	repo, mock, done := newCatalogRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT item_code, description").
		WithArgs(2).
		WillReturnRows(catalogRows().
			AddRow("201.001", "CLEARING", nil, nil, nil, nil, false, false, false, false, []byte(`[]`), "").
			AddRow("207.020", "EXCAVATION", nil, nil, nil, nil, false, false, false, false, []byte(`[]`), ""))

	items, err := repo.Sample(context.Background(), 2)
	if err != nil {
		t.Fatalf("Sample() error = %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].WorkCategory != nil {
		t.Fatalf("expected nil work category for uncategorized catalog row")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
