package companies

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestPGRepoListMonitoredBuildsFilteredQuery(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}
	cutoff := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{
		"id", "name", "ticker_symbol", "description", "therapeutic_areas",
		"is_active", "monitoring_enabled", "priority_level", "last_analysis_at",
		"total_insights_count", "high_priority_insights_count", "created_at", "updated_at",
	}).AddRow(
		"c1", "Acme Bio", "ACME", nil, `["oncology"]`,
		true, true, TierHigh, nil,
		3, 1, time.Now(), time.Now(),
	)

	mock.ExpectQuery(`SELECT .+ FROM companies WHERE .*is_active.*monitoring_enabled.*ORDER BY priority_level DESC, last_analysis_at ASC NULLS FIRST`).
		WithArgs(true, true, cutoff).
		WillReturnRows(rows)

	got, err := repo.ListMonitored(context.Background(), ListFilter{AnalyzedBefore: cutoff})
	if err != nil {
		t.Fatalf("ListMonitored: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d companies, want 1", len(got))
	}
	if got[0].TickerSymbol != "ACME" || got[0].PriorityTier != TierHigh {
		t.Fatalf("unexpected company: %+v", got[0])
	}
	if len(got[0].TherapeuticAreas) != 1 || got[0].TherapeuticAreas[0] != "oncology" {
		t.Fatalf("therapeutic areas not decoded: %v", got[0].TherapeuticAreas)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoMarkAnalyzedIncrementsRollups(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}
	at := time.Now().UTC()

	mock.ExpectExec("UPDATE companies").
		WithArgs(at, 5, 2, "c1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.MarkAnalyzed(context.Background(), "c1", at, 5, 2); err != nil {
		t.Fatalf("MarkAnalyzed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoMarkAnalyzedMissingCompany(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}

	mock.ExpectExec("UPDATE companies").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.MarkAnalyzed(context.Background(), "ghost", time.Now(), 0, 0); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
