// Package events publishes ledger changes to interested consumers.
package events

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Event types, also used as AMQP routing keys.
const (
	CaseCreated        = "case.created"
	DraftConverted     = "case.draft_converted"
	DraftsCombined     = "case.drafts_combined"
	DocumentSubmitted  = "document.submitted"
	DocumentsReviewed  = "document.reviewed"
	DocumentDeleted    = "document.deleted"
	IndexationApplied  = "indexation.applied"
	IndexationReversed = "indexation.reversed"
)

type Event struct {
	Type       string         `json:"type"`
	CaseID     string         `json:"caseId,omitempty"`
	ActorID    string         `json:"actorId"`
	Payload    map[string]any `json:"payload,omitempty"`
	OccurredAt time.Time      `json:"occurredAt"`
}

// Publisher delivers events after the change they describe has committed.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// LogPublisher writes events to the application log. It is used when no
// broker is configured.
type LogPublisher struct{}

func (LogPublisher) Publish(_ context.Context, e Event) error {
	log.Info().
		Str("event", e.Type).
		Str("case_id", e.CaseID).
		Str("actor_id", e.ActorID).
		Interface("payload", e.Payload).
		Msg("Ledger event")
	return nil
}

func (LogPublisher) Close() error { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	Events []Event
}

func (r *Recorder) Publish(_ context.Context, e Event) error {
	r.Events = append(r.Events, e)
	return nil
}

func (r *Recorder) Close() error { return nil }

// Types returns the recorded event types in order.
func (r *Recorder) Types() []string {
	types := make([]string, len(r.Events))
	for i, e := range r.Events {
		types[i] = e.Type
	}
	return types
}
