package command

import (
	"context"
	"time"

	"github.com/mattjoyce/slashgate/internal/interaction"
)

//go:generate mockgen -destination=mocks/mock_deps.go -package=mocks github.com/mattjoyce/slashgate/internal/command Appender,FollowUpScheduler

// Appender persists a record into a named collection and returns its id.
type Appender interface {
	Append(ctx context.Context, collection string, record map[string]any) (string, error)
}

// FollowUpScheduler queues a message to be delivered to the invoker after
// the synchronous response, once delay has elapsed.
type FollowUpScheduler interface {
	Schedule(ctx context.Context, inv interaction.Invoker, content string, ephemeral bool, delay time.Duration) (string, error)
}
