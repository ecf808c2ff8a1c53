// Package notify defines the change events emitted after successful project
// and resource mutations, and the Publisher contract that delivers them.
//
// Delivery is best-effort. A failed publish never rolls back the mutation that
// produced the event; callers use Deliver to log and count the failure.
package notify

import (
	"context"
	"errors"
	"time"

	"github.com/slackmgr/types"
)

// EventType names the mutation an Event describes.
type EventType string

const (
	ProjectCreated        EventType = "project.created"
	ProjectUpdated        EventType = "project.updated"
	ProjectStateChanged   EventType = "project.state_changed"
	UserAssigned          EventType = "project.user_assigned"
	UserRevoked           EventType = "project.user_revoked"
	ResourceVersionStored EventType = "resource.version_stored"
	ResourceLocked        EventType = "resource.locked"
	ResourceUnlocked      EventType = "resource.unlocked"
)

// Event is a single change notification. Path is empty for project events and
// Version is zero for anything but resource events.
type Event struct {
	Type       EventType `json:"type"`
	ProjectID  string    `json:"projectId"`
	Path       string    `json:"path,omitempty"`
	State      string    `json:"state,omitempty"`
	Version    int       `json:"version,omitempty"`
	Actor      string    `json:"actor,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Publisher delivers events to some downstream system.
type Publisher interface {
	Publish(ctx context.Context, event *Event) error
}

// Multi publishes every event to each of its publishers in order. All
// publishers are attempted; their errors are joined.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, event *Event) error {
	var errs []error

	for _, p := range m {
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, *Event) error {
	return nil
}

// Deliver publishes event through p. A failure is logged as an error and
// counted in PublishFailures, and is not returned.
func Deliver(ctx context.Context, p Publisher, logger types.Logger, event *Event) {
	if p == nil || event == nil {
		return
	}

	if err := p.Publish(ctx, event); err != nil {
		PublishFailures.WithLabelValues(string(event.Type)).Inc()

		logger.
			WithField("event_type", string(event.Type)).
			WithField("project_id", event.ProjectID).
			Errorf("Failed to publish change event: %v", err)
	}
}
