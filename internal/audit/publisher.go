package audit

import (
	"context"
	"time"
)

// Publisher captures structured audit events. Emit hands events to a buffered
// inbox consumed by the Worker; ingestion must never block on the audit trail,
// so a full inbox drops the event rather than stalling the pipeline.
type Publisher struct {
	inbox chan<- Event
}

func NewPublisher(inbox chan<- Event) *Publisher {
	return &Publisher{inbox: inbox}
}

func (p *Publisher) Emit(_ context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	select {
	case p.inbox <- event:
	default:
		// Inbox full: drop the event instead of stalling ingestion.
	}
	return nil
}
