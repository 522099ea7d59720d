// Package application contains use-case orchestration services.
package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ericfisherdev/focal/internal/domain/model"
	"github.com/ericfisherdev/focal/internal/domain/port/driven"
	"github.com/ericfisherdev/focal/internal/telemetry"
)

// ImportOptions tunes an ImportService. Zero values fall back to defaults.
type ImportOptions struct {
	BaseURL       string
	FetchTimeout  time.Duration
	NotifyTimeout time.Duration
	Concurrency   int
	Instruments   *telemetry.ImportInstruments
	Now           func() time.Time
}

// ImportService reconciles a project's local burndown history with the
// remote tracker's current iteration.
type ImportService struct {
	projects   driven.ProjectStore
	iterations driven.IterationStore
	metrics    driven.MetricStore
	tx         driven.Transactor
	fetcher    driven.SnapshotFetcher
	notifier   driven.Notifier
	opts       ImportOptions
}

// NewImportService creates a new ImportService with all required dependencies.
func NewImportService(
	projects driven.ProjectStore,
	iterations driven.IterationStore,
	metrics driven.MetricStore,
	tx driven.Transactor,
	fetcher driven.SnapshotFetcher,
	notifier driven.Notifier,
	opts ImportOptions,
) *ImportService {
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 30 * time.Second
	}
	if opts.NotifyTimeout <= 0 {
		opts.NotifyTimeout = 10 * time.Second
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")

	return &ImportService{
		projects:   projects,
		iterations: iterations,
		metrics:    metrics,
		tx:         tx,
		fetcher:    fetcher,
		notifier:   notifier,
		opts:       opts,
	}
}

// Import fetches the project's current iteration and records today's metric.
// A fetch failure writes nothing. A notification failure is returned wrapped
// in driven.ErrNotify together with the complete outcome of the committed
// import.
func (s *ImportService) Import(ctx context.Context, project model.Project) (model.ImportOutcome, error) {
	start := time.Now()

	outcome, err := s.importProject(ctx, project)

	result := telemetry.ResultOK
	if err != nil && !errors.Is(err, driven.ErrNotify) {
		result = telemetry.ResultError
	}
	s.opts.Instruments.RecordImport(ctx, result, outcome.IterationCreated, outcome.MetricCreated, time.Since(start))

	return outcome, err
}

func (s *ImportService) importProject(ctx context.Context, project model.Project) (model.ImportOutcome, error) {
	snapshot, err := s.fetch(ctx, project)
	if err != nil {
		return model.ImportOutcome{ProjectID: project.ID}, err
	}

	today := model.LocalDate(s.opts.Now(), snapshot.UTCOffsetSeconds)

	var outcome model.ImportOutcome
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		outcome = model.ImportOutcome{ProjectID: project.ID, CapturedOn: today}

		if err := s.projects.UpdateUTCOffset(ctx, project.ID, snapshot.UTCOffsetSeconds); err != nil {
			return err
		}

		iteration, err := s.iterations.FindByRemoteID(ctx, project.ID, snapshot.RemoteIterationID)
		if err != nil {
			return err
		}
		if iteration == nil {
			created, err := s.iterations.Create(ctx, snapshot.Iteration(project.ID))
			if err != nil {
				return err
			}
			iteration = &created
			outcome.IterationCreated = true
		}
		outcome.IterationNumber = iteration.Number

		_, created, err := s.metrics.CreateOrUpdate(ctx, model.Metric{
			IterationID: iteration.ID,
			CapturedOn:  today,
			Counters:    snapshot.Counters,
		})
		if err != nil {
			return err
		}
		outcome.MetricCreated = created
		outcome.MetricUpdated = !created

		return nil
	})
	if err != nil {
		return model.ImportOutcome{ProjectID: project.ID}, fmt.Errorf("import project %d: %w", project.ID, err)
	}

	slog.Info("import recorded",
		"project_id", project.ID,
		"iteration", outcome.IterationNumber,
		"captured_on", today.String(),
		"utc_offset", snapshot.UTCOffsetSeconds,
		"iteration_created", outcome.IterationCreated,
		"metric_created", outcome.MetricCreated,
	)

	if !outcome.IterationCreated || !project.NotificationEnabled() {
		return outcome, nil
	}

	if err := s.notify(ctx, project); err != nil {
		slog.Warn("new burndown notification failed", "project_id", project.ID, "error", err)
		return outcome, fmt.Errorf("%w: project %d: %w", driven.ErrNotify, project.ID, err)
	}
	outcome.Notified = true

	return outcome, nil
}

func (s *ImportService) fetch(ctx context.Context, project model.Project) (model.Snapshot, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, s.opts.FetchTimeout)
	defer cancel()

	snapshot, err := s.fetcher.Fetch(fetchCtx, project.Tracker)
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("%w: project %d: %w", driven.ErrFetch, project.ID, err)
	}
	if err := snapshot.Validate(); err != nil {
		return model.Snapshot{}, fmt.Errorf("%w: project %d: %w", driven.ErrFetch, project.ID, err)
	}

	return snapshot, nil
}

func (s *ImportService) notify(ctx context.Context, project model.Project) error {
	notifyCtx, cancel := context.WithTimeout(ctx, s.opts.NotifyTimeout)
	defer cancel()

	err := s.notifier.Notify(notifyCtx, project.Chat, NewBurndownMessage(s.opts.BaseURL, project.ID))

	result := telemetry.ResultOK
	if err != nil {
		result = telemetry.ResultError
	}
	s.opts.Instruments.RecordNotify(ctx, result)

	return err
}

// NewBurndownMessage is the chat text announcing a project's new iteration.
func NewBurndownMessage(baseURL string, projectID int64) string {
	return fmt.Sprintf("A new burndown is available at %s/burndowns/%d", strings.TrimRight(baseURL, "/"), projectID)
}

// ForceUpdate loads a project and runs the same import as the scheduled path.
func (s *ImportService) ForceUpdate(ctx context.Context, projectID int64) (model.ImportOutcome, error) {
	project, err := s.load(ctx, projectID)
	if err != nil {
		return model.ImportOutcome{}, err
	}

	slog.Info("force update requested", "project_id", projectID)
	return s.Import(ctx, project)
}

func (s *ImportService) load(ctx context.Context, projectID int64) (model.Project, error) {
	project, err := s.projects.Get(ctx, projectID)
	if err != nil {
		return model.Project{}, fmt.Errorf("load project %d: %w", projectID, err)
	}
	if project == nil {
		return model.Project{}, fmt.Errorf("project %d: %w", projectID, driven.ErrProjectNotFound)
	}
	return *project, nil
}

// ImportAll imports every project. A failure in one project, including one
// whose stored credentials cannot be read, is recorded in its result and never
// affects the others. Results follow the store's project order. Only listing
// the projects can fail the batch as a whole.
func (s *ImportService) ImportAll(ctx context.Context) ([]model.ImportResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()

	refs, err := s.projects.ListRefs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}

	results := make([]model.ImportResult, len(refs))

	var g errgroup.Group
	g.SetLimit(s.opts.Concurrency)

	for i, ref := range refs {
		g.Go(func() error {
			outcome := model.ImportOutcome{ProjectID: ref.ID}
			project, err := s.load(ctx, ref.ID)
			if err == nil {
				outcome, err = s.Import(ctx, project)
			}
			if err != nil && !errors.Is(err, driven.ErrNotify) {
				slog.Error("project import failed", "project_id", ref.ID, "name", ref.Name, "error", err)
			}
			results[i] = model.ImportResult{
				ProjectID:   ref.ID,
				ProjectName: ref.Name,
				Outcome:     outcome,
				Err:         err,
			}
			return nil
		})
	}
	_ = g.Wait()

	var failed, notifyFailed int
	for _, r := range results {
		switch {
		case errors.Is(r.Err, driven.ErrNotify):
			notifyFailed++
		case r.Err != nil:
			failed++
		}
	}

	slog.Info("import cycle complete",
		"projects", len(refs),
		"errors", failed,
		"notify_errors", notifyFailed,
		"duration", time.Since(start).Round(time.Millisecond),
	)

	return results, nil
}
