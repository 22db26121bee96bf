package calcrun

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("run not found")

// Repository stores finished runs and their subject results.
type Repository interface {
	// Create stores a run and all of its results atomically.
	Create(ctx context.Context, run *Run, results []*Result) error
	GetByID(ctx context.Context, id uuid.UUID) (*Run, error)
	List(ctx context.Context, limit, offset int) ([]*Run, int, error)
	// ListResults pages through a run's results in batch order. An empty
	// population returns every result.
	ListResults(ctx context.Context, runID uuid.UUID, population string, limit, offset int) ([]*Result, int, error)
}

const runCols = `id, mode, measure_id, directory, period_start, period_end, output_dir,
	numerator, denominator, measure_population, ipop, none_count, error_count, total,
	patient_list_error, started_at, finished_at`

const resultCols = `id, run_id, seq, bundle, patient_id, population,
	measure_score, observation, error, output_path, detail`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row scanner) (*Run, error) {
	var r Run
	err := row.Scan(&r.ID, &r.Mode, &r.MeasureID, &r.Directory, &r.PeriodStart, &r.PeriodEnd, &r.OutputDir,
		&r.Counts.Numerator, &r.Counts.Denominator, &r.Counts.MeasurePopulation, &r.Counts.IPOP,
		&r.Counts.None, &r.Counts.Error, &r.Counts.Total,
		&r.PatientListError, &r.StartedAt, &r.FinishedAt)
	return &r, err
}

func runArgs(r *Run) []interface{} {
	return []interface{}{r.ID, r.Mode, r.MeasureID, r.Directory, r.PeriodStart, r.PeriodEnd, r.OutputDir,
		r.Counts.Numerator, r.Counts.Denominator, r.Counts.MeasurePopulation, r.Counts.IPOP,
		r.Counts.None, r.Counts.Error, r.Counts.Total,
		r.PatientListError, r.StartedAt, r.FinishedAt}
}
