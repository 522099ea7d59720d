package driven

import (
	"context"

	"github.com/ericfisherdev/focal/internal/domain/model"
)

// IterationStore defines the driven port for iteration persistence.
// Lookups return (nil, nil) when nothing matches. Create returns an error
// wrapping ErrDuplicateKey when the project already has an iteration with the
// same remote id or number. Lists are ordered by number descending.
type IterationStore interface {
	FindByRemoteID(ctx context.Context, projectID, remoteID int64) (*model.Iteration, error)
	Create(ctx context.Context, iteration model.Iteration) (model.Iteration, error)
	ListByProject(ctx context.Context, projectID int64) ([]model.Iteration, error)
	GetByNumber(ctx context.Context, projectID int64, number int) (*model.Iteration, error)
	Current(ctx context.Context, projectID int64) (*model.Iteration, error)
}
