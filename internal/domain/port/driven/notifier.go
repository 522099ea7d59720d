package driven

import (
	"context"

	"github.com/ericfisherdev/focal/internal/domain/model"
)

// Notifier defines the driven port for posting a message to a chat room.
type Notifier interface {
	Notify(ctx context.Context, chat model.ChatSettings, message string) error
}
