package service

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/iliyamo/ajali/internal/access"
	"github.com/iliyamo/ajali/internal/apperr"
	"github.com/iliyamo/ajali/internal/model"
	"github.com/iliyamo/ajali/internal/queue"
)

// TransitionPolicy decides which status changes are allowed.
type TransitionPolicy interface {
	Allow(from, to model.ReportStatus) bool
}

// PermissivePolicy allows any status to follow any other, including itself.
type PermissivePolicy struct{}

func (PermissivePolicy) Allow(_, _ model.ReportStatus) bool { return true }

// StrictPolicy only allows the moves of a triage workflow. Re-opening a
// closed report sends it back under investigation.
type StrictPolicy struct{}

func (StrictPolicy) Allow(from, to model.ReportStatus) bool {
	switch from {
	case model.StatusPending:
		return to == model.StatusUnderInvestigation || to == model.StatusRejected
	case model.StatusUnderInvestigation:
		return to == model.StatusResolved || to == model.StatusRejected || to == model.StatusPending
	case model.StatusResolved, model.StatusRejected:
		return to == model.StatusUnderInvestigation
	default:
		return false
	}
}

// TransitionInput is an administrator's status change request.
type TransitionInput struct {
	Status  model.ReportStatus `json:"status"`
	Comment string             `json:"comment"`
}

// LifecycleEngine is the only writer of report status and of the status
// ledger. Each transition updates the report and appends exactly one
// ledger entry in the same transaction.
type LifecycleEngine struct {
	reports ReportStore
	history HistoryStore
	policy  TransitionPolicy
	notify  Notifier
	log     Logger
	now     func() time.Time
}

func NewLifecycleEngine(reports ReportStore, history HistoryStore, policy TransitionPolicy, notify Notifier, log Logger) *LifecycleEngine {
	if policy == nil {
		policy = PermissivePolicy{}
	}
	if notify == nil {
		notify = nopNotifier{}
	}
	if log == nil {
		log = nopLogger{}
	}
	return &LifecycleEngine{reports: reports, history: history, policy: policy, notify: notify, log: log, now: utcNow}
}

// Transition moves a report to in.Status on behalf of actor. Input is
// validated before storage is touched; access is checked against the locked
// row. Subscribers are told only after the commit.
func (e *LifecycleEngine) Transition(ctx context.Context, actor *access.Actor, reportID string, in TransitionInput) (model.Report, model.StatusHistory, error) {
	if err := access.RequireActor(actor); err != nil {
		return model.Report{}, model.StatusHistory{}, err
	}
	if !in.Status.IsValid() {
		return model.Report{}, model.StatusHistory{}, apperr.InvalidField(apperr.CodeInvalidStatus, "status",
			"must be one of "+joinEnum(model.Statuses))
	}
	if utf8.RuneCountInString(in.Comment) > model.MaxCommentLength {
		return model.Report{}, model.StatusHistory{}, apperr.InvalidField(apperr.CodeValidation, "comment",
			fmt.Sprintf("must be at most %d characters", model.MaxCommentLength))
	}

	r, entry, err := e.reports.TransitionTx(ctx, reportID, func(r model.Report) (model.StatusHistory, error) {
		if err := access.CanMutateStatus(actor, r); err != nil {
			return model.StatusHistory{}, err
		}
		if !e.policy.Allow(r.Status, in.Status) {
			return model.StatusHistory{}, apperr.Conflict(apperr.CodeInvalidTransition,
				fmt.Sprintf("cannot move report from %s to %s", r.Status, in.Status))
		}
		return model.StatusHistory{
			ID:          uuid.NewString(),
			ReportID:    r.ID,
			OldStatus:   r.Status,
			NewStatus:   in.Status,
			Comment:     in.Comment,
			ChangedByID: actor.ID,
			ChangedAt:   e.now(),
		}, nil
	})
	if err != nil {
		return model.Report{}, model.StatusHistory{}, storeErr("report", "transition report", err)
	}

	e.notify.Notify(ctx, queue.Event{
		Type:       queue.EventReportStatusChanged,
		ReportID:   r.ID,
		Title:      r.Title,
		UserID:     r.UserID,
		OldStatus:  string(entry.OldStatus),
		NewStatus:  string(entry.NewStatus),
		Comment:    entry.Comment,
		ActorID:    actor.ID,
		OccurredAt: entry.ChangedAt,
	})
	return r, entry, nil
}

// History returns a report's ledger newest first. Administrators only.
func (e *LifecycleEngine) History(ctx context.Context, actor *access.Actor, reportID string) ([]model.StatusHistory, error) {
	if err := access.RequireAdmin(actor); err != nil {
		return nil, err
	}
	if _, err := e.reports.GetByID(ctx, reportID); err != nil {
		return nil, storeErr("report", "load report", err)
	}
	entries, err := e.history.ListByReport(ctx, reportID)
	if err != nil {
		return nil, apperr.Internal("load history", err)
	}
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}
