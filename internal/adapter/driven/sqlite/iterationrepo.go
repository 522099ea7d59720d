package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ericfisherdev/focal/internal/domain/model"
	"github.com/ericfisherdev/focal/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.IterationStore = (*IterationRepo)(nil)

const iterationColumns = `id, project_id, number, remote_iteration_id, start_at, finish_at, created_at`

// IterationRepo is the SQLite implementation of the IterationStore port interface.
type IterationRepo struct {
	db  *DB
	now func() time.Time
}

// NewIterationRepo creates a new IterationRepo backed by the given DB.
func NewIterationRepo(db *DB) *IterationRepo {
	return &IterationRepo{db: db, now: time.Now}
}

// FindByRemoteID returns the project's iteration with the given remote
// iteration ID. Returns nil, nil if none has been recorded.
func (r *IterationRepo) FindByRemoteID(ctx context.Context, projectID, remoteID int64) (*model.Iteration, error) {
	query := `SELECT ` + iterationColumns + ` FROM iterations WHERE project_id = ? AND remote_iteration_id = ?`

	return r.queryOne(ctx, fmt.Sprintf("find iteration %d for project %d", remoteID, projectID), query, projectID, remoteID)
}

// Create inserts an iteration. The unique indexes on (project_id,
// remote_iteration_id) and (project_id, number) turn a duplicate into an
// error wrapping ErrDuplicateKey.
func (r *IterationRepo) Create(ctx context.Context, it model.Iteration) (model.Iteration, error) {
	const query = `
		INSERT INTO iterations (project_id, number, remote_iteration_id, start_at, finish_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	createdAt := r.now().UTC()
	result, err := r.db.writer(ctx).ExecContext(ctx, query,
		it.ProjectID, it.Number, it.RemoteID, formatTime(it.StartAt), formatTime(it.FinishAt), formatTime(createdAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return model.Iteration{}, fmt.Errorf("create iteration %d (remote %d) for project %d: %w",
				it.Number, it.RemoteID, it.ProjectID, driven.ErrDuplicateKey)
		}
		return model.Iteration{}, fmt.Errorf("create iteration %d for project %d: %w", it.Number, it.ProjectID, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return model.Iteration{}, fmt.Errorf("read iteration id: %w", err)
	}

	it.ID = id
	it.StartAt = it.StartAt.UTC()
	it.FinishAt = it.FinishAt.UTC()
	it.CreatedAt = createdAt
	return it, nil
}

// ListByProject returns all iterations of a project ordered by number descending.
func (r *IterationRepo) ListByProject(ctx context.Context, projectID int64) ([]model.Iteration, error) {
	query := `SELECT ` + iterationColumns + ` FROM iterations WHERE project_id = ? ORDER BY number DESC`

	rows, err := r.db.reader(ctx).QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("list iterations for project %d: %w", projectID, err)
	}
	defer rows.Close()

	iterations := []model.Iteration{}
	for rows.Next() {
		it, err := scanIteration(rows)
		if err != nil {
			return nil, fmt.Errorf("scan iteration: %w", err)
		}
		iterations = append(iterations, *it)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate iterations: %w", err)
	}

	return iterations, nil
}

// GetByNumber returns the project's iteration with the given number.
// Returns nil, nil if it does not exist.
func (r *IterationRepo) GetByNumber(ctx context.Context, projectID int64, number int) (*model.Iteration, error) {
	query := `SELECT ` + iterationColumns + ` FROM iterations WHERE project_id = ? AND number = ?`

	return r.queryOne(ctx, fmt.Sprintf("get iteration %d for project %d", number, projectID), query, projectID, number)
}

// Current returns the project's highest-numbered iteration. Returns nil, nil
// if the project has no iterations yet.
func (r *IterationRepo) Current(ctx context.Context, projectID int64) (*model.Iteration, error) {
	query := `SELECT ` + iterationColumns + ` FROM iterations WHERE project_id = ? ORDER BY number DESC LIMIT 1`

	return r.queryOne(ctx, fmt.Sprintf("get current iteration for project %d", projectID), query, projectID)
}

func (r *IterationRepo) queryOne(ctx context.Context, op, query string, args ...any) (*model.Iteration, error) {
	it, err := scanIteration(r.db.reader(ctx).QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return it, nil
}

func scanIteration(s scanner) (*model.Iteration, error) {
	var it model.Iteration
	var startAt, finishAt, createdAt string

	err := s.Scan(&it.ID, &it.ProjectID, &it.Number, &it.RemoteID, &startAt, &finishAt, &createdAt)
	if err != nil {
		return nil, err
	}

	if it.StartAt, err = parseTime(startAt); err != nil {
		return nil, fmt.Errorf("parse start_at: %w", err)
	}
	if it.FinishAt, err = parseTime(finishAt); err != nil {
		return nil, fmt.Errorf("parse finish_at: %w", err)
	}
	if it.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}

	return &it, nil
}
