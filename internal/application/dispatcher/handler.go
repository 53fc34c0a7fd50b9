package dispatcher

import (
	"context"

	"github.com/rpma/ppf-workflow/internal/domain/event"
)

// Handler processes domain events
type Handler func(ctx context.Context, evt *event.Event) error

// HandlerInfo contains handler metadata for debugging.
// EventType is empty for handlers registered with SubscribeAll.
type HandlerInfo struct {
	Name        string
	EventType   event.Type
	Handler     Handler
	Description string
}
