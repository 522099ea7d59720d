package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/ericfisherdev/focal/internal/domain/model"
)

// BatchImporter is the import surface driven by the Scheduler.
type BatchImporter interface {
	ImportAll(ctx context.Context) ([]model.ImportResult, error)
	ForceUpdate(ctx context.Context, projectID int64) (model.ImportOutcome, error)
}

// refreshRequest represents a manual import trigger. A zero projectID asks
// for the whole batch.
type refreshRequest struct {
	projectID int64
	done      chan refreshResult
}

type refreshResult struct {
	outcome model.ImportOutcome
	results []model.ImportResult
	err     error
}

// Scheduler runs ImportAll on a cron schedule and serializes manual imports
// with the scheduled ones.
type Scheduler struct {
	importer  BatchImporter
	schedule  cron.Schedule
	refreshCh chan refreshRequest
}

// NewScheduler parses expr (standard five-field cron or a descriptor such as
// "@hourly") and creates a Scheduler. Schedules are evaluated in UTC.
func NewScheduler(importer BatchImporter, expr string) (*Scheduler, error) {
	schedule, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, fmt.Errorf("parse import schedule %q: %w", expr, err)
	}

	return &Scheduler{
		importer:  importer,
		schedule:  schedule,
		refreshCh: make(chan refreshRequest),
	}, nil
}

// Start runs an immediate import of every project, then one on each scheduled
// tick. It also listens for manual requests. Start blocks until the context is
// canceled.
func (s *Scheduler) Start(ctx context.Context) {
	// Ticks that arrive while an import is running are coalesced into one.
	ticks := make(chan struct{}, 1)

	c := cron.New(cron.WithLocation(time.UTC))
	c.Schedule(s.schedule, cron.FuncJob(func() {
		select {
		case ticks <- struct{}{}:
		default:
		}
	}))
	c.Start()
	defer c.Stop()

	s.runAll(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("import scheduler stopped")
			return
		case <-ticks:
			s.runAll(ctx)
		case req := <-s.refreshCh:
			req.done <- s.handleRefresh(ctx, req)
		}
	}
}

// Next reports when the schedule fires after t.
func (s *Scheduler) Next(t time.Time) time.Time {
	return s.schedule.Next(t.UTC())
}

// RefreshAll triggers an immediate import of every project. It blocks until
// the batch completes or the context is canceled.
func (s *Scheduler) RefreshAll(ctx context.Context) ([]model.ImportResult, error) {
	res, err := s.request(ctx, 0)
	if err != nil {
		return nil, err
	}
	return res.results, res.err
}

// RefreshProject force-updates one project. It blocks until the import
// completes or the context is canceled.
func (s *Scheduler) RefreshProject(ctx context.Context, projectID int64) (model.ImportOutcome, error) {
	res, err := s.request(ctx, projectID)
	if err != nil {
		return model.ImportOutcome{}, err
	}
	return res.outcome, res.err
}

func (s *Scheduler) request(ctx context.Context, projectID int64) (refreshResult, error) {
	done := make(chan refreshResult, 1)
	req := refreshRequest{
		projectID: projectID,
		done:      done,
	}

	select {
	case s.refreshCh <- req:
	case <-ctx.Done():
		return refreshResult{}, ctx.Err()
	}

	select {
	case res := <-done:
		return res, nil
	case <-ctx.Done():
		return refreshResult{}, ctx.Err()
	}
}

func (s *Scheduler) handleRefresh(ctx context.Context, req refreshRequest) refreshResult {
	if req.projectID == 0 {
		slog.Info("manual import of all projects requested")
		results, err := s.importer.ImportAll(ctx)
		return refreshResult{results: results, err: err}
	}

	outcome, err := s.importer.ForceUpdate(ctx, req.projectID)
	return refreshResult{outcome: outcome, err: err}
}

func (s *Scheduler) runAll(ctx context.Context) {
	if _, err := s.importer.ImportAll(ctx); err != nil {
		slog.Error("import cycle failed", "error", err)
	}
}
