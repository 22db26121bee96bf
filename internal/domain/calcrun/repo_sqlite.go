package calcrun

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

type runRepoSQLite struct{ db *sql.DB }

// NewRunRepoSQLite stores runs in a database opened with db.OpenSQLite.
func NewRunRepoSQLite(db *sql.DB) Repository {
	return &runRepoSQLite{db: db}
}

func (r *runRepoSQLite) Create(ctx context.Context, run *Run, results []*Result) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO calc_runs (`+runCols+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runArgs(run)...); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO calc_results (`+resultCols+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare result insert: %w", err)
	}
	defer stmt.Close()

	for _, res := range results {
		if _, err := stmt.ExecContext(ctx,
			res.ID, res.RunID, res.Seq, res.Bundle, res.PatientID, res.Population,
			res.MeasureScore, res.Observation, res.Error, res.OutputPath, nullJSON(res.Detail)); err != nil {
			return fmt.Errorf("insert result %s: %w", res.Bundle, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (r *runRepoSQLite) GetByID(ctx context.Context, id uuid.UUID) (*Run, error) {
	run, err := scanRun(r.db.QueryRowContext(ctx, `SELECT `+runCols+` FROM calc_runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return run, err
}

func (r *runRepoSQLite) List(ctx context.Context, limit, offset int) ([]*Run, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM calc_runs`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.db.QueryContext(ctx, `SELECT `+runCols+` FROM calc_runs ORDER BY started_at DESC LIMIT ? OFFSET ?`, limit, offset)
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

func (r *runRepoSQLite) ListResults(ctx context.Context, runID uuid.UUID, population string, limit, offset int) ([]*Result, int, error) {
	where := `WHERE run_id = ?`
	args := []interface{}{runID}
	if population != "" {
		where += ` AND population = ?`
		args = append(args, population)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM calc_results `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+resultCols+` FROM calc_results `+where+` ORDER BY seq LIMIT ? OFFSET ?`,
		append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Result
	for rows.Next() {
		var res Result
		var detail sql.NullString
		if err := rows.Scan(&res.ID, &res.RunID, &res.Seq, &res.Bundle, &res.PatientID, &res.Population,
			&res.MeasureScore, &res.Observation, &res.Error, &res.OutputPath, &detail); err != nil {
			return nil, 0, err
		}
		if detail.Valid && detail.String != "" {
			res.Detail = []byte(detail.String)
		}
		items = append(items, &res)
	}
	return items, total, rows.Err()
}
