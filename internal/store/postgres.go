package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"mdvrp/internal/model"
)

//go:embed schema.sql
var schema string

type Postgres struct {
	db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

func (p *Postgres) Close() error { return p.db.Close() }

// Migrate applies the embedded schema. Statements are idempotent.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

const runColumns = `id::text, name, status, instance, params, generations, seed, generation, best_score, feasible, routes, error, created_at, updated_at, started_at, finished_at`

func (p *Postgres) CreateRun(ctx context.Context, run model.Run) (model.Run, error) {
	now := time.Now().UTC()
	run.ID = uuid.New().String()
	run.CreatedAt, run.UpdatedAt = now, now
	if run.Status == "" {
		run.Status = model.RunQueued
	}
	inst, params, routes, err := runJSON(run)
	if err != nil {
		return model.Run{}, err
	}
	_, err = p.db.ExecContext(ctx, `INSERT INTO runs (id, name, status, instance, params, generations, seed, generation, best_score, feasible, routes, error, created_at, updated_at, started_at, finished_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`,
		run.ID, nullIfEmpty(run.Name), string(run.Status), inst, params, run.Generations, run.Seed, run.Generation,
		run.BestScore, run.Feasible, routes, nullIfEmpty(run.Error), run.CreatedAt, run.UpdatedAt, run.StartedAt, run.FinishedAt)
	if err != nil {
		return model.Run{}, err
	}
	return run, nil
}

func (p *Postgres) GetRun(ctx context.Context, id string) (model.Run, error) {
	if _, err := uuid.Parse(id); err != nil {
		return model.Run{}, ErrNotFound
	}
	row := p.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id=$1`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Run{}, ErrNotFound
	}
	return run, err
}

func (p *Postgres) ListRuns(ctx context.Context, status, cursor string, limit int) ([]model.Run, string, error) {
	limit = normalizeLimit(limit)
	rows, err := p.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs
        WHERE ($1::text = '' OR status = $1::text) AND id::text > $2 ORDER BY id::text LIMIT $3`, status, cursor, limit+1)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()
	out := []model.Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, "", err
		}
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}
	var next string
	if len(out) > limit {
		out = out[:limit]
		next = out[limit-1].ID
	}
	return out, next, nil
}

func (p *Postgres) UpdateRun(ctx context.Context, run model.Run) error {
	inst, params, routes, err := runJSON(run)
	if err != nil {
		return err
	}
	res, err := p.db.ExecContext(ctx, `UPDATE runs SET name=$2, status=$3, instance=$4, params=$5, generations=$6, seed=$7, generation=$8,
        best_score=$9, feasible=$10, routes=$11, error=$12, updated_at=$13, started_at=$14, finished_at=$15 WHERE id=$1`,
		run.ID, nullIfEmpty(run.Name), string(run.Status), inst, params, run.Generations, run.Seed, run.Generation,
		run.BestScore, run.Feasible, routes, nullIfEmpty(run.Error), time.Now().UTC(), run.StartedAt, run.FinishedAt)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) SaveSnapshots(ctx context.Context, runID string, snaps []model.Snapshot) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	for _, s := range snaps {
		_, err = tx.ExecContext(ctx, `INSERT INTO run_snapshots (run_id, generation, best, mean, worst, feasible, evaluations, elapsed_ms, at)
            VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
            ON CONFLICT (run_id, generation) DO UPDATE SET best=EXCLUDED.best, mean=EXCLUDED.mean, worst=EXCLUDED.worst,
                feasible=EXCLUDED.feasible, evaluations=EXCLUDED.evaluations, elapsed_ms=EXCLUDED.elapsed_ms, at=EXCLUDED.at`,
			runID, s.Generation, s.Best, s.Mean, s.Worst, s.Feasible, s.Evaluations, s.ElapsedMs, s.At)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (p *Postgres) ListSnapshots(ctx context.Context, runID string) ([]model.Snapshot, error) {
	if _, err := p.GetRun(ctx, runID); err != nil {
		return nil, err
	}
	rows, err := p.db.QueryContext(ctx, `SELECT generation, best, mean, worst, feasible, evaluations, elapsed_ms, at
        FROM run_snapshots WHERE run_id=$1 ORDER BY generation`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Snapshot{}
	for rows.Next() {
		s := model.Snapshot{RunID: runID}
		if err := rows.Scan(&s.Generation, &s.Best, &s.Mean, &s.Worst, &s.Feasible, &s.Evaluations, &s.ElapsedMs, &s.At); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (model.Run, error) {
	var (
		run                   model.Run
		name, status, errText sql.NullString
		inst, params, routes  []byte
		best                  sql.NullFloat64
		started, finished     sql.NullTime
	)
	err := row.Scan(&run.ID, &name, &status, &inst, &params, &run.Generations, &run.Seed, &run.Generation,
		&best, &run.Feasible, &routes, &errText, &run.CreatedAt, &run.UpdatedAt, &started, &finished)
	if err != nil {
		return model.Run{}, err
	}
	run.Name, run.Status, run.Error = name.String, model.RunStatus(status.String), errText.String
	if best.Valid {
		run.BestScore = &best.Float64
	}
	if started.Valid {
		run.StartedAt = &started.Time
	}
	if finished.Valid {
		run.FinishedAt = &finished.Time
	}
	if err := json.Unmarshal(inst, &run.Instance); err != nil {
		return model.Run{}, fmt.Errorf("run %s instance: %w", run.ID, err)
	}
	if err := json.Unmarshal(params, &run.Params); err != nil {
		return model.Run{}, fmt.Errorf("run %s params: %w", run.ID, err)
	}
	if len(routes) > 0 {
		if err := json.Unmarshal(routes, &run.Routes); err != nil {
			return model.Run{}, fmt.Errorf("run %s routes: %w", run.ID, err)
		}
	}
	return run, nil
}

func runJSON(run model.Run) (inst, params []byte, routes any, err error) {
	if inst, err = json.Marshal(run.Instance); err != nil {
		return nil, nil, nil, err
	}
	if params, err = json.Marshal(run.Params); err != nil {
		return nil, nil, nil, err
	}
	routes, err = toJSON(run.Routes)
	return inst, params, routes, err
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// toJSON encodes routes for a jsonb column, NULL when there are none.
func toJSON(routes [][]int) (any, error) {
	if len(routes) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(routes)
	if err != nil {
		return nil, err
	}
	return b, nil
}
