// Package notify dispatches job lifecycle events to external channels.
package notify

import (
	"context"

	"github.com/joshgermon/bksd/internal/interfaces"
	"github.com/joshgermon/bksd/internal/model"
)

// NoOp discards every event. It is the default when no notification
// channel is configured.
type NoOp struct{}

func (NoOp) Notify(ctx context.Context, event model.JobEvent) error { return nil }

var _ interfaces.Notifier = NoOp{}

// Multi fans one event out to several notifiers, collecting the first
// error but still attempting every channel.
type Multi struct {
	Notifiers []interfaces.Notifier
}

func (m Multi) Notify(ctx context.Context, event model.JobEvent) error {
	var firstErr error
	for _, n := range m.Notifiers {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, event); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

var _ interfaces.Notifier = Multi{}

// Logging wraps another notifier and records delivery failures without
// letting them propagate, per Notifier's contract that a delivery
// failure must never surface as a job failure.
type Logging struct {
	Next   interfaces.Notifier
	Logger interfaces.Logger
}

func (l Logging) Notify(ctx context.Context, event model.JobEvent) error {
	if l.Next == nil {
		return nil
	}
	if err := l.Next.Notify(ctx, event); err != nil {
		if l.Logger != nil {
			l.Logger.Printf("notify: delivery failed for job %s: %v", event.JobID, err)
		}
	}
	return nil
}

var _ interfaces.Notifier = Logging{}
