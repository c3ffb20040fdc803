package engine

import (
	"context"
	"log/slog"

	"github.com/tartampluch/go-contactsync/internal/config"
	"github.com/tartampluch/go-contactsync/internal/contact"
)

// task reconciles a single connection.
type task struct {
	engine *Engine
	ref    contact.ConnectionRef
	dryRun bool
	state  State
	log    *slog.Logger
}

func newTask(e *Engine, ref contact.ConnectionRef, dryRun bool) *task {
	return &task{
		engine: e,
		ref:    ref,
		dryRun: dryRun,
		log: slog.With(
			config.LogKeyComponent, config.CompTask,
			config.LogKeyConnection, ref.ID,
		),
	}
}

func (t *task) enter(s State) {
	t.state = s
	t.log.Debug(config.MsgTaskState, config.LogKeyState, s.String())
	if obs := t.engine.opts.observer; obs != nil {
		obs(t.ref.ID, s)
	}
}

// run walks the task through its states. The boolean is false when the task
// failed before a result could be planned.
func (t *task) run(ctx context.Context) (contact.Result, bool) {
	t.enter(StateFetching)
	detail, err := t.engine.source.FetchDetail(ctx, t.ref.ID)
	if err != nil {
		t.log.Warn(config.MsgFetchFailed, config.LogKeyError, err)
		t.enter(StateDone)
		return contact.Result{}, false
	}

	t.enter(StateMatching)
	existing, err := t.engine.matcher.Match(ctx, detail)
	if err != nil {
		t.log.Warn(config.MsgMatchFailed, config.LogKeyError, err)
		existing = nil
	}

	t.enter(StatePlanning)
	patch, audit := Plan(detail, existing)
	res := contact.Result{
		Connection: *detail,
		Changes:    contact.Effective(audit),
		Audit:      audit,
		IsNewEntry: existing == nil,
	}

	if res.IsNewEntry {
		t.enter(StateCreating)
	} else {
		t.enter(StateUpdating)
	}

	if t.dryRun {
		t.enter(StateSkipping)
		t.enter(StateDone)
		return res, true
	}

	t.enter(StatePersisting)
	res.Persisted = t.persist(ctx, existing, patch, len(res.Changes))

	t.enter(StateAcknowledging)
	if err := t.engine.source.AcknowledgeSynced(ctx, t.ref.ID); err != nil {
		t.log.Warn(config.MsgAckFailed, config.LogKeyError, err)
	} else {
		res.Acknowledged = true
	}

	t.enter(StateDone)
	return res, true
}

// persist creates or updates the local entry. An existing entry without
// effective changes is left untouched.
func (t *task) persist(ctx context.Context, existing *contact.LocalEntry, patch contact.Patch, effective int) bool {
	if existing == nil {
		entry, err := t.engine.dir.Create(ctx, patch)
		if err != nil {
			t.log.Error(config.MsgWriteFailed, config.LogKeyError, err)
			return false
		}
		t.log.Info(config.MsgEntryCreated, config.LogKeyEntry, entry.ID)
		return true
	}

	if effective == 0 {
		t.log.Debug(config.MsgEntryUnchanged, config.LogKeyEntry, existing.ID)
		return true
	}

	if err := t.engine.dir.Update(ctx, existing, patch); err != nil {
		t.log.Error(config.MsgWriteFailed, config.LogKeyEntry, existing.ID, config.LogKeyError, err)
		return false
	}
	t.log.Info(config.MsgEntryUpdated,
		config.LogKeyEntry, existing.ID,
		config.LogKeyChanges, effective,
	)
	return true
}
