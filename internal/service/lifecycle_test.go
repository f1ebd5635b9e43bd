package service

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/ajali/internal/access"
	"github.com/iliyamo/ajali/internal/apperr"
	"github.com/iliyamo/ajali/internal/model"
	"github.com/iliyamo/ajali/internal/queue"
)

func TestTransition_AdminMovesReport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, alice := f.register(t, "a@x.com", "alice")
	admin := f.admin(t)
	r := f.submit(t, alice)
	assert.Equal(t, model.StatusPending, r.Status)

	updated, entry, err := f.lifecycle.Transition(ctx, admin, r.ID, TransitionInput{
		Status: model.StatusUnderInvestigation, Comment: "dispatched",
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatusUnderInvestigation, updated.Status)
	assert.Equal(t, model.StatusPending, entry.OldStatus)
	assert.Equal(t, model.StatusUnderInvestigation, entry.NewStatus)
	assert.Equal(t, admin.ID, entry.ChangedByID)
	assert.Equal(t, "dispatched", entry.Comment)

	history, err := f.lifecycle.History(ctx, admin, r.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, entry.ID, history[0].ID)

	evs := f.notifier.ofType(queue.EventReportStatusChanged)
	require.Len(t, evs, 1)
	assert.Equal(t, "pending", evs[0].OldStatus)
	assert.Equal(t, "under_investigation", evs[0].NewStatus)
	assert.Equal(t, alice.ID, evs[0].UserID)
}

func TestTransition_NonAdminForbidden(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, alice := f.register(t, "a@x.com", "alice")
	r := f.submit(t, alice)

	_, _, err := f.lifecycle.Transition(ctx, alice, r.ID, TransitionInput{Status: model.StatusResolved})
	requireAppErr(t, err, apperr.KindForbidden, "")

	_, _, err = f.lifecycle.Transition(ctx, nil, r.ID, TransitionInput{Status: model.StatusResolved})
	requireAppErr(t, err, apperr.KindUnauthorized, "")

	got, err := f.reports.Get(ctx, nil, r.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, got.Status)
	assert.Empty(t, f.db.history)
	assert.Empty(t, f.notifier.ofType(queue.EventReportStatusChanged))
}

func TestTransition_RejectsBadInputBeforeStorage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, alice := f.register(t, "a@x.com", "alice")
	admin := f.admin(t)
	r := f.submit(t, alice)

	_, _, err := f.lifecycle.Transition(ctx, admin, r.ID, TransitionInput{Status: "closed"})
	ae := requireAppErr(t, err, apperr.KindValidation, apperr.CodeInvalidStatus)
	assert.Contains(t, ae.Fields, "status")

	_, _, err = f.lifecycle.Transition(ctx, admin, r.ID, TransitionInput{
		Status: model.StatusResolved, Comment: strings.Repeat("x", model.MaxCommentLength+1),
	})
	requireAppErr(t, err, apperr.KindValidation, apperr.CodeValidation)

	assert.Zero(t, f.db.transitionCalls)

	_, _, err = f.lifecycle.Transition(ctx, admin, r.ID, TransitionInput{
		Status: model.StatusResolved, Comment: strings.Repeat("ü", model.MaxCommentLength),
	})
	require.NoError(t, err)
}

func TestTransition_MissingReport(t *testing.T) {
	f := newFixture(t)
	admin := f.admin(t)
	_, _, err := f.lifecycle.Transition(context.Background(), admin, "nope", TransitionInput{Status: model.StatusResolved})
	requireAppErr(t, err, apperr.KindNotFound, "")

	_, err = f.lifecycle.History(context.Background(), admin, "nope")
	requireAppErr(t, err, apperr.KindNotFound, "")
}

func TestTransition_StorageFailureLeavesNoTrace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, alice := f.register(t, "a@x.com", "alice")
	admin := f.admin(t)
	r := f.submit(t, alice)

	f.db.failTransitionWrite = true
	_, _, err := f.lifecycle.Transition(ctx, admin, r.ID, TransitionInput{Status: model.StatusResolved})
	requireAppErr(t, err, apperr.KindInternal, "")

	got, err := f.reports.Get(ctx, nil, r.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, got.Status)
	assert.Empty(t, f.db.history)
	assert.Empty(t, f.notifier.ofType(queue.EventReportStatusChanged))
}

func TestTransition_StrictPolicy(t *testing.T) {
	f := newFixture(t)
	f.lifecycle.policy = StrictPolicy{}
	ctx := context.Background()
	_, alice := f.register(t, "a@x.com", "alice")
	admin := f.admin(t)
	r := f.submit(t, alice)

	_, _, err := f.lifecycle.Transition(ctx, admin, r.ID, TransitionInput{Status: model.StatusResolved})
	requireAppErr(t, err, apperr.KindConflict, apperr.CodeInvalidTransition)

	_, _, err = f.lifecycle.Transition(ctx, admin, r.ID, TransitionInput{Status: model.StatusPending})
	requireAppErr(t, err, apperr.KindConflict, apperr.CodeInvalidTransition)

	for _, to := range []model.ReportStatus{model.StatusUnderInvestigation, model.StatusResolved, model.StatusUnderInvestigation, model.StatusRejected} {
		_, _, err = f.lifecycle.Transition(ctx, admin, r.ID, TransitionInput{Status: to})
		require.NoError(t, err, "to %s", to)
	}
	assert.Len(t, f.db.history, 4)
}

func TestStrictPolicy_Table(t *testing.T) {
	p := StrictPolicy{}
	allowed := map[model.ReportStatus][]model.ReportStatus{
		model.StatusPending:            {model.StatusUnderInvestigation, model.StatusRejected},
		model.StatusUnderInvestigation: {model.StatusResolved, model.StatusRejected, model.StatusPending},
		model.StatusResolved:           {model.StatusUnderInvestigation},
		model.StatusRejected:           {model.StatusUnderInvestigation},
	}
	for _, from := range model.Statuses {
		for _, to := range model.Statuses {
			want := false
			for _, a := range allowed[from] {
				if a == to {
					want = true
				}
			}
			assert.Equal(t, want, p.Allow(from, to), "%s -> %s", from, to)
		}
	}
	assert.True(t, PermissivePolicy{}.Allow(model.StatusResolved, model.StatusResolved))
}

// Replaying the ledger from pending must land on the report's current status,
// and each entry must start where the previous one ended.
func TestTransition_LedgerReplaysToCurrentStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, alice := f.register(t, "a@x.com", "alice")
	admin := f.admin(t)
	r := f.submit(t, alice)

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 40; i++ {
		to := model.Statuses[rng.Intn(len(model.Statuses))]
		_, _, err := f.lifecycle.Transition(ctx, admin, r.ID, TransitionInput{Status: to})
		require.NoError(t, err)
	}

	history, err := f.lifecycle.History(ctx, admin, r.ID)
	require.NoError(t, err)
	require.Len(t, history, 40)

	state := model.StatusPending
	for i := len(history) - 1; i >= 0; i-- {
		assert.Equal(t, state, history[i].OldStatus)
		state = history[i].NewStatus
	}
	got, err := f.reports.Get(ctx, nil, r.ID)
	require.NoError(t, err)
	assert.Equal(t, got.Status, state)

	for i := 1; i < len(history); i++ {
		assert.False(t, history[i].ChangedAt.After(history[i-1].ChangedAt))
	}
}

// runConcurrentTransitions fires one transition per target from its own
// goroutine and returns how many committed.
func runConcurrentTransitions(t *testing.T, engine *LifecycleEngine, admin *access.Actor, reportID string, targets []model.ReportStatus) int {
	t.Helper()
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		committed int
	)
	for _, to := range targets {
		wg.Add(1)
		go func(to model.ReportStatus) {
			defer wg.Done()
			_, _, err := engine.Transition(context.Background(), admin, reportID, TransitionInput{Status: to, Comment: "race"})
			if err != nil {
				assert.Equal(t, apperr.KindConflict, apperr.KindOf(err), "unexpected error: %v", err)
				return
			}
			mu.Lock()
			committed++
			mu.Unlock()
		}(to)
	}
	wg.Wait()
	return committed
}

func requireReplay(t *testing.T, f *fixture, admin *access.Actor, reportID string, entries int) {
	t.Helper()
	ctx := context.Background()
	history, err := f.lifecycle.History(ctx, admin, reportID)
	require.NoError(t, err)
	require.Len(t, history, entries)

	seen := map[int64]bool{}
	state := model.StatusPending
	for i := len(history) - 1; i >= 0; i-- {
		assert.Equal(t, state, history[i].OldStatus, "entry %d", len(history)-1-i)
		assert.False(t, seen[history[i].Seq], "duplicate seq %d", history[i].Seq)
		seen[history[i].Seq] = true
		state = history[i].NewStatus
	}
	got, err := f.reports.Get(ctx, nil, reportID)
	require.NoError(t, err)
	assert.Equal(t, state, got.Status)
}

func TestTransition_ConcurrentCallsAllLedgered(t *testing.T) {
	f := newFixture(t)
	_, alice := f.register(t, "a@x.com", "alice")
	admin := f.admin(t)
	r := f.submit(t, alice)

	targets := make([]model.ReportStatus, 32)
	for i := range targets {
		targets[i] = model.Statuses[i%len(model.Statuses)]
	}
	committed := runConcurrentTransitions(t, f.lifecycle, admin, r.ID, targets)
	assert.Equal(t, len(targets), committed)
	requireReplay(t, f, admin, r.ID, committed)
	assert.Len(t, f.notifier.ofType(queue.EventReportStatusChanged), committed)
}

func TestTransition_ConcurrentStrictOnlyLegalMovesCommit(t *testing.T) {
	f := newFixture(t)
	_, alice := f.register(t, "a@x.com", "alice")
	admin := f.admin(t)
	r := f.submit(t, alice)

	strict := NewLifecycleEngine(memReports{f.db}, memHistory{f.db}, StrictPolicy{}, f.notifier, f.log)
	strict.now = f.clock.Now

	// Every goroutine tries to resolve straight from pending or to start an
	// investigation; only moves legal at commit time may land.
	targets := make([]model.ReportStatus, 24)
	for i := range targets {
		if i%2 == 0 {
			targets[i] = model.StatusUnderInvestigation
		} else {
			targets[i] = model.StatusResolved
		}
	}
	committed := runConcurrentTransitions(t, strict, admin, r.ID, targets)
	assert.GreaterOrEqual(t, committed, 1)
	requireReplay(t, f, admin, r.ID, committed)
}

func TestHistory_AdminOnly(t *testing.T) {
	f := newFixture(t)
	_, alice := f.register(t, "a@x.com", "alice")
	r := f.submit(t, alice)

	_, err := f.lifecycle.History(context.Background(), alice, r.ID)
	requireAppErr(t, err, apperr.KindForbidden, "")
	_, err = f.lifecycle.History(context.Background(), nil, r.ID)
	requireAppErr(t, err, apperr.KindUnauthorized, "")
}
