package driven

import (
	"context"

	"github.com/ericfisherdev/focal/internal/domain/model"
)

// MetricStore defines the driven port for daily metric persistence.
type MetricStore interface {
	// FindByDate returns the metric for the iteration and day, or (nil, nil).
	FindByDate(ctx context.Context, iterationID int64, day model.Date) (*model.Metric, error)

	// CreateOrUpdate inserts the metric for (IterationID, CapturedOn) or
	// overwrites the counters of the existing row. created reports which
	// happened.
	CreateOrUpdate(ctx context.Context, metric model.Metric) (stored model.Metric, created bool, err error)

	// ListByIteration returns an iteration's metrics oldest first.
	ListByIteration(ctx context.Context, iterationID int64) ([]model.Metric, error)

	// ListByProject returns the metrics of every iteration of a project,
	// oldest first.
	ListByProject(ctx context.Context, projectID int64) ([]model.Metric, error)

	// Latest returns the most recent metric of an iteration, or (nil, nil).
	Latest(ctx context.Context, iterationID int64) (*model.Metric, error)
}
