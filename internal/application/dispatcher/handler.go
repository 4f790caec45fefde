package dispatcher

import (
	"context"

	"github.com/garyjia/tripflow/internal/domain/event"
)

// Handler reacts to a committed domain event
type Handler func(ctx context.Context, evt *event.Event) error

// HandlerInfo names a subscription
type HandlerInfo struct {
	Name      string
	EventType event.Type
	Handler   Handler
}
