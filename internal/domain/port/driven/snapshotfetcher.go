package driven

import (
	"context"

	"github.com/ericfisherdev/focal/internal/domain/model"
)

// SnapshotFetcher defines the driven port for reading the current iteration
// snapshot from the remote project tracker. Implementations hold no state
// between calls and do not retry.
type SnapshotFetcher interface {
	Fetch(ctx context.Context, creds model.TrackerCredentials) (model.Snapshot, error)
}
