package service

import (
	"context"

	"github.com/garyjia/tripflow/internal/application/port"
	"github.com/garyjia/tripflow/internal/domain/event"
)

type outboxKey struct{}

// outbox holds the events raised inside one transaction until it commits
type outbox struct {
	events []*event.Event
}

// begin clears events of an earlier, rolled back attempt and attaches the outbox to ctx
func (b *outbox) begin(ctx context.Context) context.Context {
	b.events = b.events[:0]
	return context.WithValue(ctx, outboxKey{}, b)
}

// flush hands the committed events to the publisher
func (b *outbox) flush(ctx context.Context, publisher port.EventPublisher) {
	if publisher == nil {
		return
	}
	for _, evt := range b.events {
		publisher.DispatchAsync(ctx, evt)
	}
	b.events = nil
}

// raise queues evt on the outbox carried by ctx; without one the event is dropped
func raise(ctx context.Context, evt *event.Event) {
	if b, ok := ctx.Value(outboxKey{}).(*outbox); ok {
		b.events = append(b.events, evt)
	}
}
