package calcrun

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/projecttacoma/fhir-bundle-calculator/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type runRepoPG struct{ pool *pgxpool.Pool }

func NewRunRepoPG(pool *pgxpool.Pool) Repository {
	return &runRepoPG{pool: pool}
}

func (r *runRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *runRepoPG) Create(ctx context.Context, run *Run, results []*Result) error {
	return db.WithTx(ctx, r.pool, func(ctx context.Context) error {
		if _, err := r.conn(ctx).Exec(ctx, `
			INSERT INTO calc_runs (`+runCols+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`,
			runArgs(run)...); err != nil {
			return fmt.Errorf("insert run: %w", err)
		}

		batch := &pgx.Batch{}
		for _, res := range results {
			batch.Queue(`
				INSERT INTO calc_results (`+resultCols+`)
				VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
				res.ID, res.RunID, res.Seq, res.Bundle, res.PatientID, res.Population,
				res.MeasureScore, res.Observation, res.Error, res.OutputPath, nullJSON(res.Detail))
		}
		if batch.Len() == 0 {
			return nil
		}
		br := db.TxFromContext(ctx).SendBatch(ctx, batch)
		for range results {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return fmt.Errorf("insert result: %w", err)
			}
		}
		return br.Close()
	})
}

func (r *runRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Run, error) {
	run, err := scanRun(r.conn(ctx).QueryRow(ctx, `SELECT `+runCols+` FROM calc_runs WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return run, err
}

func (r *runRepoPG) List(ctx context.Context, limit, offset int) ([]*Run, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM calc_runs`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+runCols+` FROM calc_runs ORDER BY started_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, run)
	}
	return items, total, rows.Err()
}

func (r *runRepoPG) ListResults(ctx context.Context, runID uuid.UUID, population string, limit, offset int) ([]*Result, int, error) {
	where := `WHERE run_id = $1`
	args := []interface{}{runID}
	if population != "" {
		where += ` AND population = $2`
		args = append(args, population)
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM calc_results `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	n := len(args)
	rows, err := r.conn(ctx).Query(ctx,
		fmt.Sprintf(`SELECT `+resultCols+` FROM calc_results %s ORDER BY seq LIMIT $%d OFFSET $%d`, where, n+1, n+2),
		append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Result
	for rows.Next() {
		var res Result
		var detail []byte
		if err := rows.Scan(&res.ID, &res.RunID, &res.Seq, &res.Bundle, &res.PatientID, &res.Population,
			&res.MeasureScore, &res.Observation, &res.Error, &res.OutputPath, &detail); err != nil {
			return nil, 0, err
		}
		if len(detail) > 0 {
			res.Detail = detail
		}
		items = append(items, &res)
	}
	return items, total, rows.Err()
}

// nullJSON maps an empty document to SQL NULL.
func nullJSON(doc []byte) interface{} {
	if len(doc) == 0 {
		return nil
	}
	return string(doc)
}
