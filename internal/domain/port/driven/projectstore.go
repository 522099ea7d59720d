package driven

import (
	"context"

	"github.com/ericfisherdev/focal/internal/domain/model"
)

// ProjectStore defines the driven port for tracked project persistence.
// Get returns (nil, nil) when the project does not exist; Update, Delete and
// UpdateUTCOffset return ErrProjectNotFound instead. ListRefs never opens
// sealed tokens, so an unreadable row cannot fail it.
type ProjectStore interface {
	Create(ctx context.Context, project model.Project) (model.Project, error)
	Update(ctx context.Context, project model.Project) error
	Delete(ctx context.Context, id int64) error
	Get(ctx context.Context, id int64) (*model.Project, error)
	List(ctx context.Context) ([]model.Project, error)
	ListRefs(ctx context.Context) ([]model.ProjectRef, error)
	UpdateUTCOffset(ctx context.Context, id int64, offsetSeconds int) error
}
