package adapter

import (
	"context"

	"media-transcoder/internal/domain/model"
)

// Notifier fans progress events out to live subscribers. Broadcast never
// fails from the caller's point of view.
type Notifier interface {
	Broadcast(ctx context.Context, event model.ProgressEvent)
}
