// Package queue defines message payloads exchanged over the message broker.
package queue

import "time"

// Event types.
const (
    EventReportCreated       = "report.created"
    EventReportStatusChanged = "report.status_changed"
    EventUserRegistered      = "user.registered"
)

// Event is published after a change has been committed. It carries enough
// information for downstream consumers to log or notify without querying
// the primary database.
type Event struct {
    Type       string    `json:"type"`
    ReportID   string    `json:"report_id,omitempty"`
    Title      string    `json:"title,omitempty"`
    UserID     string    `json:"user_id,omitempty"`
    Email      string    `json:"email,omitempty"`
    Username   string    `json:"username,omitempty"`
    OldStatus  string    `json:"old_status,omitempty"`
    NewStatus  string    `json:"new_status,omitempty"`
    Comment    string    `json:"comment,omitempty"`
    ActorID    string    `json:"actor_id,omitempty"`
    OccurredAt time.Time `json:"occurred_at"`
}

// Describe renders a one-line human summary of the event.
func (e Event) Describe() string {
    switch e.Type {
    case EventReportStatusChanged:
        return "Report " + e.ReportID + " status changed: " + e.OldStatus + " -> " + e.NewStatus
    case EventReportCreated:
        return "New report " + e.ReportID + " submitted by " + e.UserID + ": " + e.Title
    case EventUserRegistered:
        return "Welcome email queued for " + e.Email + " (" + e.Username + ")"
    default:
        return e.Type
    }
}

// Logger is the subset of the application logger the queue package uses.
type Logger interface {
    Infof(format string, args ...interface{})
    Warnf(format string, args ...interface{})
    Errorf(format string, args ...interface{})
}
