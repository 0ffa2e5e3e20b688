// Package audit records security-relevant account events. Sinks never fail
// the operation that produced the event.
package audit

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/medaccount/internal/logging"
)

type EventType string

const (
	EventRegistered      EventType = "account.registered"
	EventLoginSucceeded  EventType = "account.login_succeeded"
	EventLoginFailed     EventType = "account.login_failed"
	EventLoggedOut       EventType = "account.logged_out"
	EventTokenRefreshed  EventType = "account.token_refreshed"
	EventPasswordChanged EventType = "account.password_changed"
	EventSessionRevoked  EventType = "account.session_revoked"
	EventProfileUpdated  EventType = "account.profile_updated"
	EventUserVerified    EventType = "admin.user_verified"
	EventUserDeactivated EventType = "admin.user_deactivated"
	EventUserActivated   EventType = "admin.user_activated"
	EventRoleChanged     EventType = "admin.role_changed"
	EventUserDeleted     EventType = "admin.user_deleted"
	EventAccessDenied    EventType = "access.denied"
)

// Event is serialised as JSON when published.
type Event struct {
	Type       EventType         `json:"type"`
	OccurredAt time.Time         `json:"occurred_at"`
	ActorID    string            `json:"actor_id,omitempty"`
	SubjectID  string            `json:"subject_id,omitempty"`
	SessionID  string            `json:"session_id,omitempty"`
	IPAddress  string            `json:"ip_address,omitempty"`
	Details    map[string]string `json:"details,omitempty"`
}

type Sink interface {
	Record(ctx context.Context, e Event) error
}

// LogSink writes events to the service log.
type LogSink struct {
	log logging.Logger
}

func NewLogSink(log logging.Logger) *LogSink {
	return &LogSink{log: log.With("module", "audit")}
}

func (s *LogSink) Record(ctx context.Context, e Event) error {
	args := []any{"type", string(e.Type), "actor_id", e.ActorID, "subject_id", e.SubjectID}
	if e.SessionID != "" {
		args = append(args, "session_id", e.SessionID)
	}
	if e.IPAddress != "" {
		args = append(args, "ip", e.IPAddress)
	}
	for k, v := range e.Details {
		args = append(args, k, v)
	}
	s.log.Info(ctx, "audit event", args...)
	return nil
}

// MultiSink fans an event out to every sink and joins their errors.
type MultiSink []Sink

func (m MultiSink) Record(ctx context.Context, e Event) error {
	var errs []error
	for _, s := range m {
		if err := s.Record(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Recorder stamps events and logs sink failures instead of returning them.
type Recorder struct {
	sink Sink
	log  logging.Logger
	now  func() time.Time
}

func NewRecorder(sink Sink, log logging.Logger) *Recorder {
	return &Recorder{sink: sink, log: log.With("module", "audit"), now: time.Now}
}

func (r *Recorder) Record(ctx context.Context, e Event) {
	if r == nil || r.sink == nil {
		return
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = r.now().UTC()
	}
	if err := r.sink.Record(ctx, e); err != nil {
		r.log.Warn(ctx, "audit sink failed", "type", string(e.Type), "error", err)
	}
}
