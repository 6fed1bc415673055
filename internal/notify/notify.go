package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"emmo-data/internal/domain"
)

const EventStatusChanged = "maintenance.status_changed"

// Status change modes.
const (
	ModeManual  = "manual"
	ModeDerived = "derived"
)

// StatusChangedEvent is published after a record's status change has been committed.
type StatusChangedEvent struct {
	Type       string                   `json:"type"`
	RecordID   string                   `json:"record_id"`
	From       domain.MaintenanceStatus `json:"from"`
	To         domain.MaintenanceStatus `json:"to"`
	Mode       string                   `json:"mode"`
	Actor      string                   `json:"actor"`
	OccurredAt time.Time                `json:"occurred_at"`
}

// Notifier delivers one event to one sink.
type Notifier interface {
	Notify(ctx context.Context, ev StatusChangedEvent) error
}

// Multi fans an event out to every sink in order. A failing sink does not stop
// the others; all failures are joined into the returned error.
type Multi struct {
	sinks map[string]Notifier
	order []string
}

func NewMulti() *Multi {
	return &Multi{sinks: make(map[string]Notifier)}
}

// Add registers a sink under name; nil sinks are ignored.
func (m *Multi) Add(name string, n Notifier) *Multi {
	if n == nil {
		return m
	}
	if _, ok := m.sinks[name]; !ok {
		m.order = append(m.order, name)
	}
	m.sinks[name] = n
	return m
}

// Len returns the number of registered sinks.
func (m *Multi) Len() int { return len(m.order) }

func (m *Multi) Notify(ctx context.Context, ev StatusChangedEvent) error {
	var errs []error
	for _, name := range m.order {
		if err := m.sinks[name].Notify(ctx, ev); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
