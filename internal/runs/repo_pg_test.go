package runs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func runColumns() []string {
	return []string{
		"id", "run_type", "status", "started_at", "completed_at", "duration_seconds",
		"total_companies", "processed_companies", "failed_companies",
		"insights_generated", "high_priority_insights", "error_count", "error_message",
		"configuration", "triggered_by", "created_at", "updated_at",
	}
}

func TestPGRunRepoMarkRunningGuardsPendingStatus(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRunRepo{DB: db}
	startedAt := time.Now().UTC()

	mock.ExpectExec("UPDATE analysis_runs").
		WithArgs(startedAt, 25, "r1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.MarkRunning(context.Background(), "r1", startedAt, 25); err != nil {
		t.Fatalf("MarkRunning: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRunRepoMarkRunningAlreadyStarted(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRunRepo{DB: db}

	mock.ExpectExec("UPDATE analysis_runs").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT .+ FROM analysis_runs").
		WillReturnRows(sqlmock.NewRows(runColumns()).AddRow(
			"r1", TypeManual, StatusRunning, nil, nil, nil,
			25, 0, 0, 0, 0, 0, nil,
			`{}`, "api", time.Now(), time.Now(),
		))

	err = repo.MarkRunning(context.Background(), "r1", time.Now(), 25)
	if !errors.Is(err, ErrAlreadyStarted) {
		t.Fatalf("expected ErrAlreadyStarted, got %v", err)
	}
}

func TestPGRunRepoAddProgressUsesAtomicIncrements(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRunRepo{DB: db}

	mock.ExpectExec(`processed_companies = processed_companies \+ \$1`).
		WithArgs(1, 1, 0, 0, 1, "r1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	delta := Progress{Processed: 1, Failed: 1, Errors: 1}
	if err := repo.AddProgress(context.Background(), "r1", delta); err != nil {
		t.Fatalf("AddProgress: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRunRepoFinishRejectsTerminalRun(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRunRepo{DB: db}
	completed := time.Now().UTC()

	mock.ExpectExec("UPDATE analysis_runs").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT .+ FROM analysis_runs").
		WillReturnRows(sqlmock.NewRows(runColumns()).AddRow(
			"r1", TypeManual, StatusCompleted, nil, completed, 60,
			25, 25, 0, 10, 2, 0, nil,
			`{}`, "api", time.Now(), time.Now(),
		))

	msg := CancelledByUser
	err = repo.Finish(context.Background(), "r1", StatusCancelled, completed, &msg)
	if !errors.Is(err, ErrNotCancellable) {
		t.Fatalf("expected ErrNotCancellable, got %v", err)
	}
}

func TestPGRunRepoGetByIDNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRunRepo{DB: db}

	mock.ExpectQuery("SELECT .+ FROM analysis_runs").
		WillReturnRows(sqlmock.NewRows(runColumns()))

	if _, err := repo.GetByID(context.Background(), "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPGRunRepoDeleteOlderThanRemovesResultsFirst(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRunRepo{DB: db}
	cutoff := time.Now().UTC().Add(-90 * 24 * time.Hour)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM analysis_results").
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 40))
	mock.ExpectExec("DELETE FROM analysis_runs").
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 4))
	mock.ExpectCommit()

	removed, err := repo.DeleteOlderThan(context.Background(), cutoff)
	if err != nil {
		t.Fatalf("DeleteOlderThan: %v", err)
	}
	if removed != 4 {
		t.Fatalf("removed = %d, want 4", removed)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGResultRepoFinalizeGuardsFinalizedRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGResultRepo{DB: db}

	mock.ExpectExec(`status NOT IN \('completed', 'failed'\)`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	result := AnalysisResult{RunID: "r1", CompanyID: "c1", Status: ResultCompleted}
	if err := repo.Finalize(context.Background(), result); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}
