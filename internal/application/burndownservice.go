package application

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ericfisherdev/focal/internal/domain/model"
	"github.com/ericfisherdev/focal/internal/domain/port/driven"
)

// ProjectSummary pairs a project with its current iteration and that
// iteration's most recent metric. Both are nil before the first import.
type ProjectSummary struct {
	Project model.Project
	Current *model.Iteration
	Latest  *model.Metric
}

// BurndownOverview is everything shown for one project: its current
// iteration with that iteration's metrics, and the earlier iterations.
type BurndownOverview struct {
	Project  model.Project
	Current  *model.Iteration
	Previous []model.Iteration
	Metrics  []model.Metric
}

// IterationFeed is one iteration's metric history, oldest first.
type IterationFeed struct {
	Iteration model.Iteration
	Metrics   []model.Metric
}

// BurndownService manages tracked projects and answers burndown queries.
type BurndownService struct {
	projects   driven.ProjectStore
	iterations driven.IterationStore
	metrics    driven.MetricStore
}

// NewBurndownService creates a new BurndownService.
func NewBurndownService(projects driven.ProjectStore, iterations driven.IterationStore, metrics driven.MetricStore) *BurndownService {
	return &BurndownService{
		projects:   projects,
		iterations: iterations,
		metrics:    metrics,
	}
}

// CreateProject validates params and stores a new project.
func (s *BurndownService) CreateProject(ctx context.Context, params model.ProjectParams) (model.Project, error) {
	project, err := model.NewProject(params)
	if err != nil {
		return model.Project{}, err
	}

	created, err := s.projects.Create(ctx, project)
	if err != nil {
		return model.Project{}, err
	}

	slog.Info("project created", "project_id", created.ID, "name", created.Name, "tracker_project", created.Tracker.ProjectID)
	return created, nil
}

// UpdateProject replaces a project's editable fields.
func (s *BurndownService) UpdateProject(ctx context.Context, id int64, params model.ProjectParams) (model.Project, error) {
	project, err := s.getProject(ctx, id)
	if err != nil {
		return model.Project{}, err
	}

	if err := project.Apply(params); err != nil {
		return model.Project{}, err
	}

	if err := s.projects.Update(ctx, project); err != nil {
		return model.Project{}, err
	}

	return project, nil
}

// DeleteProject removes a project with its whole history.
func (s *BurndownService) DeleteProject(ctx context.Context, id int64) error {
	if err := s.projects.Delete(ctx, id); err != nil {
		return err
	}

	slog.Info("project deleted", "project_id", id)
	return nil
}

// GetProject returns a project or an error wrapping driven.ErrProjectNotFound.
func (s *BurndownService) GetProject(ctx context.Context, id int64) (model.Project, error) {
	return s.getProject(ctx, id)
}

// ListProjects returns every project with its current iteration.
func (s *BurndownService) ListProjects(ctx context.Context) ([]ProjectSummary, error) {
	projects, err := s.projects.List(ctx)
	if err != nil {
		return nil, err
	}

	summaries := make([]ProjectSummary, 0, len(projects))
	for _, p := range projects {
		summary := ProjectSummary{Project: p}

		if summary.Current, err = s.iterations.Current(ctx, p.ID); err != nil {
			return nil, err
		}
		if summary.Current != nil {
			if summary.Latest, err = s.metrics.Latest(ctx, summary.Current.ID); err != nil {
				return nil, err
			}
		}

		summaries = append(summaries, summary)
	}

	return summaries, nil
}

// Overview returns the project, its current iteration's metrics and the
// previous iterations. Current is nil and the slices are empty when nothing
// has been imported yet.
func (s *BurndownService) Overview(ctx context.Context, id int64) (*BurndownOverview, error) {
	project, err := s.getProject(ctx, id)
	if err != nil {
		return nil, err
	}

	iterations, err := s.iterations.ListByProject(ctx, id)
	if err != nil {
		return nil, err
	}

	overview := &BurndownOverview{
		Project:  project,
		Previous: model.PreviousIterations(iterations),
		Metrics:  []model.Metric{},
	}

	current, ok := model.CurrentIteration(iterations)
	if !ok {
		return overview, nil
	}
	overview.Current = &current

	if overview.Metrics, err = s.metrics.ListByIteration(ctx, current.ID); err != nil {
		return nil, err
	}

	return overview, nil
}

// IterationMetrics returns the metric history of one iteration by number.
func (s *BurndownService) IterationMetrics(ctx context.Context, id int64, number int) (*IterationFeed, error) {
	if _, err := s.getProject(ctx, id); err != nil {
		return nil, err
	}

	iteration, err := s.iterations.GetByNumber(ctx, id, number)
	if err != nil {
		return nil, err
	}
	if iteration == nil {
		return nil, fmt.Errorf("iteration %d of project %d: %w", number, id, driven.ErrIterationNotFound)
	}

	metrics, err := s.metrics.ListByIteration(ctx, iteration.ID)
	if err != nil {
		return nil, err
	}

	return &IterationFeed{Iteration: *iteration, Metrics: metrics}, nil
}

// History returns every metric recorded for a project across all of its
// iterations, oldest first.
func (s *BurndownService) History(ctx context.Context, id int64) ([]model.Metric, error) {
	if _, err := s.getProject(ctx, id); err != nil {
		return nil, err
	}
	return s.metrics.ListByProject(ctx, id)
}

func (s *BurndownService) getProject(ctx context.Context, id int64) (model.Project, error) {
	project, err := s.projects.Get(ctx, id)
	if err != nil {
		return model.Project{}, err
	}
	if project == nil {
		return model.Project{}, fmt.Errorf("project %d: %w", id, driven.ErrProjectNotFound)
	}
	return *project, nil
}
