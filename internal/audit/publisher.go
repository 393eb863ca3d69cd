package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"resights/pkg/requestcontext"
)

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
	// ListRecent returns up to limit events, most recent first.
	ListRecent(ctx context.Context, limit int) ([]Event, error)
}

// Publisher captures structured audit events. It is append-only and uses the
// storage layer for persistence so tests can swap sinks easily.
type Publisher struct {
	store Store
	now   func() time.Time
}

type PublisherOption func(*Publisher)

// WithPublisherClock sets the clock used to stamp events. Without it events
// take the request time from the context.
func WithPublisherClock(now func() time.Time) PublisherOption {
	return func(p *Publisher) {
		if now != nil {
			p.now = now
		}
	}
}

func NewPublisher(store Store, opts ...PublisherOption) (*Publisher, error) {
	if store == nil {
		return nil, errors.New("audit store is required")
	}
	p := &Publisher{store: store}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Emit stamps the event with an id and timestamp when missing and appends it.
func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		if p.now != nil {
			event.Timestamp = p.now()
		} else {
			event.Timestamp = requestcontext.Now(ctx)
		}
	}
	return p.store.Append(ctx, event)
}

// Recent returns up to limit events, most recent first.
func (p *Publisher) Recent(ctx context.Context, limit int) ([]Event, error) {
	return p.store.ListRecent(ctx, limit)
}
