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
var _ driven.MetricStore = (*MetricRepo)(nil)

const metricColumns = `m.id, m.iteration_id, m.captured_on,
	m.unstarted, m.started, m.finished, m.delivered, m.accepted, m.rejected,
	m.created_at, m.updated_at`

// MetricRepo is the SQLite implementation of the MetricStore port interface.
type MetricRepo struct {
	db  *DB
	now func() time.Time
}

// NewMetricRepo creates a new MetricRepo backed by the given DB.
func NewMetricRepo(db *DB) *MetricRepo {
	return &MetricRepo{db: db, now: time.Now}
}

// FindByDate returns the iteration's metric captured on day. Returns nil, nil
// if none exists.
func (r *MetricRepo) FindByDate(ctx context.Context, iterationID int64, day model.Date) (*model.Metric, error) {
	query := `SELECT ` + metricColumns + ` FROM metrics m WHERE m.iteration_id = ? AND m.captured_on = ?`

	m, err := scanMetric(r.db.reader(ctx).QueryRowContext(ctx, query, iterationID, day.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find metric %s for iteration %d: %w", day, iterationID, err)
	}

	return m, nil
}

// CreateOrUpdate upserts the metric for (IterationID, CapturedOn). The lookup
// and the write share one transaction on the single writer connection, and the
// unique index turns any conflicting insert into an update of the same row.
func (r *MetricRepo) CreateOrUpdate(ctx context.Context, metric model.Metric) (model.Metric, bool, error) {
	if err := metric.Counters.Validate(); err != nil {
		return model.Metric{}, false, fmt.Errorf("upsert metric %s for iteration %d: %w", metric.CapturedOn, metric.IterationID, err)
	}

	var stored model.Metric
	var created bool

	err := r.db.InTx(ctx, func(ctx context.Context) error {
		existing, err := r.FindByDate(ctx, metric.IterationID, metric.CapturedOn)
		if err != nil {
			return err
		}

		now := r.now().UTC()
		if existing != nil {
			stored, err = r.update(ctx, *existing, metric.Counters, now)
			return err
		}

		stored, created, err = r.insert(ctx, metric, now)
		return err
	})
	if err != nil {
		return model.Metric{}, false, err
	}

	return stored, created, nil
}

func (r *MetricRepo) update(ctx context.Context, existing model.Metric, c model.Counters, now time.Time) (model.Metric, error) {
	const query = `
		UPDATE metrics SET
			unstarted = ?, started = ?, finished = ?, delivered = ?, accepted = ?, rejected = ?,
			updated_at = ?
		WHERE id = ?
	`

	_, err := r.db.writer(ctx).ExecContext(ctx, query,
		c.Unstarted, c.Started, c.Finished, c.Delivered, c.Accepted, c.Rejected,
		formatTime(now), existing.ID,
	)
	if err != nil {
		return model.Metric{}, fmt.Errorf("update metric %d: %w", existing.ID, err)
	}

	existing.Counters = c
	existing.UpdatedAt = now
	return existing, nil
}

func (r *MetricRepo) insert(ctx context.Context, m model.Metric, now time.Time) (model.Metric, bool, error) {
	const query = `
		INSERT INTO metrics (
			iteration_id, captured_on, unstarted, started, finished, delivered, accepted, rejected,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(iteration_id, captured_on) DO UPDATE SET
			unstarted = excluded.unstarted,
			started = excluded.started,
			finished = excluded.finished,
			delivered = excluded.delivered,
			accepted = excluded.accepted,
			rejected = excluded.rejected,
			updated_at = excluded.updated_at
		RETURNING id, created_at
	`

	c := m.Counters
	var createdAt string
	err := r.db.writer(ctx).QueryRowContext(ctx, query,
		m.IterationID, m.CapturedOn.String(),
		c.Unstarted, c.Started, c.Finished, c.Delivered, c.Accepted, c.Rejected,
		formatTime(now), formatTime(now),
	).Scan(&m.ID, &createdAt)
	if err != nil {
		return model.Metric{}, false, fmt.Errorf("insert metric %s for iteration %d: %w", m.CapturedOn, m.IterationID, err)
	}

	if m.CreatedAt, err = parseTime(createdAt); err != nil {
		return model.Metric{}, false, fmt.Errorf("parse created_at: %w", err)
	}
	m.UpdatedAt = now

	return m, m.CreatedAt.Equal(now), nil
}

// ListByIteration returns an iteration's metrics ordered by day, oldest first.
func (r *MetricRepo) ListByIteration(ctx context.Context, iterationID int64) ([]model.Metric, error) {
	query := `SELECT ` + metricColumns + ` FROM metrics m WHERE m.iteration_id = ? ORDER BY m.captured_on`

	return r.queryMetrics(ctx, query, iterationID)
}

// ListByProject returns the metrics of all of a project's iterations, ordered
// by iteration number then day.
func (r *MetricRepo) ListByProject(ctx context.Context, projectID int64) ([]model.Metric, error) {
	query := `SELECT ` + metricColumns + `
		FROM metrics m
		JOIN iterations i ON i.id = m.iteration_id
		WHERE i.project_id = ?
		ORDER BY i.number, m.captured_on`

	return r.queryMetrics(ctx, query, projectID)
}

// Latest returns the iteration's most recent metric. Returns nil, nil if the
// iteration has none.
func (r *MetricRepo) Latest(ctx context.Context, iterationID int64) (*model.Metric, error) {
	query := `SELECT ` + metricColumns + ` FROM metrics m WHERE m.iteration_id = ? ORDER BY m.captured_on DESC LIMIT 1`

	m, err := scanMetric(r.db.reader(ctx).QueryRowContext(ctx, query, iterationID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest metric for iteration %d: %w", iterationID, err)
	}

	return m, nil
}

func (r *MetricRepo) queryMetrics(ctx context.Context, query string, args ...any) ([]model.Metric, error) {
	rows, err := r.db.reader(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query metrics: %w", err)
	}
	defer rows.Close()

	metrics := []model.Metric{}
	for rows.Next() {
		m, err := scanMetric(rows)
		if err != nil {
			return nil, fmt.Errorf("scan metric: %w", err)
		}
		metrics = append(metrics, *m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate metrics: %w", err)
	}

	return metrics, nil
}

func scanMetric(s scanner) (*model.Metric, error) {
	var m model.Metric
	var capturedOn, createdAt, updatedAt string
	c := &m.Counters

	err := s.Scan(
		&m.ID, &m.IterationID, &capturedOn,
		&c.Unstarted, &c.Started, &c.Finished, &c.Delivered, &c.Accepted, &c.Rejected,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if m.CapturedOn, err = model.ParseDate(capturedOn); err != nil {
		return nil, err
	}
	if m.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if m.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}

	return &m, nil
}
