// Package event carries the ledger's append-only domain event stream. Events
// exist for external consumers (audit, notification); the ledger core never
// reads them back.
package event

import (
	"context"
	"time"
)

// Type discriminates the event shapes on the stream.
type Type string

const (
	TypeUserRegistered   Type = "user_registered"
	TypeAttendanceMarked Type = "attendance_marked"
)

// Event is one entry on the stream. It is a flat record covering both shapes;
// consumers switch on Type. Keep it transport-agnostic so stores and sinks
// can fan out.
type Event struct {
	ID        string    `json:"id"`
	Type      Type      `json:"type"`
	Timestamp time.Time `json:"timestamp"`

	// user_registered fields.
	Address string `json:"address,omitempty"`
	Name    string `json:"name,omitempty"`
	Role    string `json:"role,omitempty"`

	// attendance_marked fields. Address doubles as the subject.
	Date        string    `json:"date,omitempty"`
	CheckInTime time.Time `json:"check_in_time,omitzero"`
	Present     bool      `json:"present,omitempty"`
	MarkedBy    string    `json:"marked_by,omitempty"`
}

// Store is the append-only log backing the stream.
type Store interface {
	Append(ctx context.Context, event Event) error
	List(ctx context.Context) ([]Event, error)
}

// Sink receives events for delivery outside the process. Delivery is best
// effort; the ledger's own log is the source of truth.
type Sink interface {
	Deliver(ctx context.Context, event Event) error
}

// NopSink discards events. Used when no external sink is configured.
type NopSink struct{}

func (NopSink) Deliver(context.Context, Event) error { return nil }
