package insights

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestPGRepoInsertIfAbsentReportsInsert(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}

	mock.ExpectExec(`INSERT INTO insights .*ON CONFLICT \(company_id, content_hash\) DO NOTHING`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	inserted, err := repo.InsertIfAbsent(context.Background(), Insight{
		ID:          "i1",
		CompanyID:   "c1",
		Category:    "clinical_trial",
		Title:       "Phase 3 readout",
		Summary:     "Primary endpoint met",
		Priority:    PriorityHigh,
		Status:      StatusNew,
		ContentHash: Fingerprint("Phase 3 readout", "Primary endpoint met"),
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("InsertIfAbsent: %v", err)
	}
	if !inserted {
		t.Fatal("expected inserted = true")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoInsertIfAbsentDuplicateIsNotAnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}

	mock.ExpectExec("INSERT INTO insights").
		WillReturnResult(sqlmock.NewResult(0, 0))

	inserted, err := repo.InsertIfAbsent(context.Background(), Insight{
		ID:          "i2",
		CompanyID:   "c1",
		ContentHash: "abc",
	})
	if err != nil {
		t.Fatalf("InsertIfAbsent: %v", err)
	}
	if inserted {
		t.Fatal("duplicate must report inserted = false")
	}
}
