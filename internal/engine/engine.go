// Package engine reconciles remote connections into the local contact directory.
//
// Each connection is handled by an independent task that fetches the detail,
// matches it to a local entry, plans the field writes and, unless the run is
// a dry run, persists them and acknowledges the sync. Tasks run concurrently;
// their results are gathered by a single collector and returned once the
// whole batch has finished.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"reflect"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tartampluch/go-contactsync/internal/config"
	"github.com/tartampluch/go-contactsync/internal/contact"
)

// Source is the remote side of a reconciliation.
type Source interface {
	FetchDetail(ctx context.Context, connectionID string) (*contact.ConnectionDetail, error)
	AcknowledgeSynced(ctx context.Context, connectionID string) error
}

// Directory is the local contact store.
type Directory interface {
	FindByPhone(ctx context.Context, phone string) ([]*contact.LocalEntry, error)
	FindByEmail(ctx context.Context, email string) ([]*contact.LocalEntry, error)
	FindByName(ctx context.Context, fullName string) ([]*contact.LocalEntry, error)
	Create(ctx context.Context, patch contact.Patch) (*contact.LocalEntry, error)
	Update(ctx context.Context, entry *contact.LocalEntry, patch contact.Patch) error
}

// ErrNotConfigured is returned when Reconcile is called on an Engine that
// was not built with New.
var ErrNotConfigured = errors.New(config.ErrEngineNotConfigured)

// Engine drives reconciliation batches.
type Engine struct {
	source  Source
	dir     Directory
	matcher *Matcher
	opts    *options
}

// New creates an Engine. Both collaborators are required; a typed nil
// pointer stored in either interface is rejected like a plain nil.
func New(source Source, dir Directory, opts ...Option) (*Engine, error) {
	if isNil(source) {
		return nil, &OptionError{Option: "source", Message: "cannot be nil"}
	}
	if isNil(dir) {
		return nil, &OptionError{Option: "directory", Message: "cannot be nil"}
	}
	o, err := newOptions(opts...)
	if err != nil {
		return nil, err
	}
	return &Engine{
		source:  source,
		dir:     dir,
		matcher: NewMatcher(dir),
		opts:    o,
	}, nil
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	switch rv := reflect.ValueOf(v); rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Interface, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

// Reconcile runs one task per distinct connection and returns once every
// task has finished. Per-connection failures are logged and never returned;
// a failed fetch contributes no result. Results are in completion order.
func (e *Engine) Reconcile(ctx context.Context, refs []contact.ConnectionRef, dryRun bool) (*contact.BatchSummary, error) {
	if e == nil || e.source == nil || e.dir == nil || e.opts == nil {
		return nil, ErrNotConfigured
	}

	start := time.Now()
	log := slog.With(
		config.LogKeyComponent, config.CompEngine,
		config.LogKeyDryRun, dryRun,
	)

	summary := &contact.BatchSummary{DryRun: dryRun, Results: []contact.Result{}}
	refs = uniqueRefs(refs)
	if len(refs) == 0 {
		log.DebugContext(ctx, config.MsgBatchEmpty)
		return summary, nil
	}

	log.InfoContext(ctx, config.MsgBatchStarted, config.LogKeyCount, len(refs))

	ctx, cancel := context.WithTimeout(ctx, e.opts.timeout)
	defer cancel()

	results := make(chan contact.Result)
	collected := make(chan []contact.Result, config.ChannelBufferSize)
	go func() {
		out := make([]contact.Result, 0, len(refs))
		for r := range results {
			out = append(out, r)
		}
		collected <- out
	}()

	g, gctx := errgroup.WithContext(ctx)
	if e.opts.concurrency > 0 {
		g.SetLimit(e.opts.concurrency)
	}
	for _, ref := range refs {
		g.Go(func() error {
			t := newTask(e, ref, dryRun)
			if res, ok := t.run(gctx); ok {
				results <- res
			}
			return nil
		})
	}
	_ = g.Wait()
	close(results)
	summary.Results = <-collected

	if err := ctx.Err(); err != nil {
		log.Warn(config.MsgBatchTimeout, config.LogKeyError, err)
	}
	log.Info(config.MsgBatchFinished,
		slog.Group(config.LogKeyStats,
			slog.Int(config.LogKeyTotal, len(refs)),
			slog.Int(config.LogKeyResults, len(summary.Results)),
			slog.Int(config.LogKeyChanges, summary.ChangeCount()),
		),
		config.LogKeyDuration, time.Since(start).Milliseconds(),
	)
	return summary, nil
}

// uniqueRefs drops empty and repeated ids so that no connection is written twice.
func uniqueRefs(refs []contact.ConnectionRef) []contact.ConnectionRef {
	seen := make(map[string]struct{}, len(refs))
	out := make([]contact.ConnectionRef, 0, len(refs))
	for _, r := range refs {
		if r.ID == "" {
			continue
		}
		if _, dup := seen[r.ID]; dup {
			continue
		}
		seen[r.ID] = struct{}{}
		out = append(out, r)
	}
	return out
}
