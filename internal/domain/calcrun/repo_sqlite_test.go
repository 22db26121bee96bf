package calcrun

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/projecttacoma/fhir-bundle-calculator/internal/domain/calculation"
	"github.com/projecttacoma/fhir-bundle-calculator/internal/platform/db"
	"github.com/projecttacoma/fhir-bundle-calculator/migrations"
)

func newSQLiteRepo(t *testing.T) Repository {
	t.Helper()
	ctx := context.Background()
	sqlDB, err := db.OpenSQLite(ctx, filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })

	src, err := migrations.For("sqlite")
	if err != nil {
		t.Fatalf("migrations: %v", err)
	}
	if _, err := db.NewSQLiteMigrator(sqlDB, src).Up(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewRunRepoSQLite(sqlDB)
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	return NewService(newSQLiteRepo(t), zerolog.Nop())
}

func TestRunRepoSQLite_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	repo := newSQLiteRepo(t)
	run, results, err := FromCalculation(sampleRun())
	if err != nil {
		t.Fatalf("FromCalculation: %v", err)
	}
	if err := repo.Create(ctx, run, results); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := repo.GetByID(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.MeasureID != run.MeasureID || got.Counts != run.Counts {
		t.Errorf("unexpected run %+v", got)
	}
	if !got.StartedAt.Equal(run.StartedAt) || !got.FinishedAt.Equal(run.FinishedAt) {
		t.Errorf("timestamps did not round-trip: %v %v", got.StartedAt, got.FinishedAt)
	}
}

func TestRunRepoSQLite_GetByID_NotFound(t *testing.T) {
	_, err := newSQLiteRepo(t).GetByID(context.Background(), uuid.New())
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRunRepoSQLite_ListResults(t *testing.T) {
	ctx := context.Background()
	repo := newSQLiteRepo(t)
	run, results, _ := FromCalculation(sampleRun())
	if err := repo.Create(ctx, run, results); err != nil {
		t.Fatalf("Create: %v", err)
	}

	items, total, err := repo.ListResults(ctx, run.ID, "", 10, 0)
	if err != nil {
		t.Fatalf("ListResults: %v", err)
	}
	if total != 3 || len(items) != 3 {
		t.Fatalf("expected 3 results, got total=%d len=%d", total, len(items))
	}
	if items[0].Bundle != "patient-numer" || items[2].Bundle != "patient-bad" {
		t.Errorf("results not in batch order: %s, %s", items[0].Bundle, items[2].Bundle)
	}
	if items[0].MeasureScore == nil || *items[0].MeasureScore != 1 {
		t.Errorf("expected score 1, got %v", items[0].MeasureScore)
	}
	if items[0].Observation == nil || *items[0].Observation != "45.0 min" {
		t.Errorf("expected observation, got %v", items[0].Observation)
	}
	if len(items[0].Detail) == 0 {
		t.Error("expected detail document")
	}
	if items[1].MeasureScore != nil || items[1].Observation != nil || items[1].Detail != nil {
		t.Errorf("expected NULL columns for bare result, got %+v", items[1])
	}

	items, total, err = repo.ListResults(ctx, run.ID, "error", 10, 0)
	if err != nil {
		t.Fatalf("ListResults(error): %v", err)
	}
	if total != 1 || items[0].Bundle != "patient-bad" {
		t.Errorf("unexpected filtered results total=%d %+v", total, items)
	}

	items, total, err = repo.ListResults(ctx, run.ID, "", 1, 1)
	if err != nil {
		t.Fatalf("ListResults(page): %v", err)
	}
	if total != 3 || len(items) != 1 || items[0].Bundle != "patient-none" {
		t.Errorf("unexpected page total=%d %+v", total, items)
	}
}

func TestRunRepoSQLite_List(t *testing.T) {
	ctx := context.Background()
	repo := newSQLiteRepo(t)

	older := sampleRun()
	newer := sampleRun()
	newer.StartedAt = older.StartedAt.Add(24 * time.Hour)
	for _, src := range []*calculation.Run{older, newer} {
		run, results, _ := FromCalculation(src)
		if err := repo.Create(ctx, run, results); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	items, total, err := repo.List(ctx, 10, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 2 || len(items) != 2 {
		t.Fatalf("expected 2 runs, got total=%d len=%d", total, len(items))
	}
	if items[0].ID.String() != newer.ID {
		t.Errorf("expected newest run first")
	}
}

func TestRunRepoSQLite_CreateIsAtomic(t *testing.T) {
	ctx := context.Background()
	repo := newSQLiteRepo(t)
	run, results, _ := FromCalculation(sampleRun())
	results[2].ID = results[1].ID

	if err := repo.Create(ctx, run, results); err == nil {
		t.Fatal("expected duplicate result id to fail")
	}
	if _, err := repo.GetByID(ctx, run.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected run to be rolled back, got %v", err)
	}
}
