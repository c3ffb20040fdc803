package engine_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tartampluch/go-contactsync/internal/contact"
	"github.com/tartampluch/go-contactsync/internal/directory"
	"github.com/tartampluch/go-contactsync/internal/engine"
	"github.com/tartampluch/go-contactsync/internal/remote"
)

// -----------------------------------------------------------------------------
// Mocks
// -----------------------------------------------------------------------------

// MockSource is a mock implementation of engine.Source.
type MockSource struct {
	mock.Mock
}

func (m *MockSource) FetchDetail(ctx context.Context, connectionID string) (*contact.ConnectionDetail, error) {
	args := m.Called(ctx, connectionID)
	d, _ := args.Get(0).(*contact.ConnectionDetail)
	return d, args.Error(1)
}

func (m *MockSource) AcknowledgeSynced(ctx context.Context, connectionID string) error {
	args := m.Called(ctx, connectionID)
	return args.Error(0)
}

// recordingDirectory wraps an in-memory directory, counts writes and can
// inject failures.
type recordingDirectory struct {
	*directory.VCardDirectory
	lookupErr error
	writeErr  error
	writes    atomic.Int32
}

func newRecordingDirectory() *recordingDirectory {
	return &recordingDirectory{VCardDirectory: directory.NewMemory()}
}

func (r *recordingDirectory) FindByPhone(ctx context.Context, phone string) ([]*contact.LocalEntry, error) {
	if r.lookupErr != nil {
		return nil, r.lookupErr
	}
	return r.VCardDirectory.FindByPhone(ctx, phone)
}

func (r *recordingDirectory) Create(ctx context.Context, patch contact.Patch) (*contact.LocalEntry, error) {
	r.writes.Add(1)
	if r.writeErr != nil {
		return nil, r.writeErr
	}
	return r.VCardDirectory.Create(ctx, patch)
}

func (r *recordingDirectory) Update(ctx context.Context, entry *contact.LocalEntry, patch contact.Patch) error {
	r.writes.Add(1)
	if r.writeErr != nil {
		return r.writeErr
	}
	return r.VCardDirectory.Update(ctx, entry, patch)
}

func refs(ids ...string) []contact.ConnectionRef {
	out := make([]contact.ConnectionRef, 0, len(ids))
	for _, id := range ids {
		out = append(out, contact.ConnectionRef{ID: id})
	}
	return out
}

func newEngine(t *testing.T, src engine.Source, dir engine.Directory, opts ...engine.Option) *engine.Engine {
	t.Helper()
	e, err := engine.New(src, dir, opts...)
	require.NoError(t, err)
	return e
}

// -----------------------------------------------------------------------------
// Reconcile
// -----------------------------------------------------------------------------

func TestReconcile_CommitCreatesAndAcknowledges(t *testing.T) {
	src := new(MockSource)
	src.On("FetchDetail", mock.Anything, "c1").Return(amyLee(), nil)
	src.On("AcknowledgeSynced", mock.Anything, "c1").Return(nil)
	dir := newRecordingDirectory()

	summary, err := newEngine(t, src, dir).Reconcile(context.Background(), refs("c1"), false)
	require.NoError(t, err)

	assert.False(t, summary.DryRun)
	require.Len(t, summary.Results, 1)
	res := summary.Results[0]
	assert.True(t, res.IsNewEntry)
	assert.True(t, res.Persisted)
	assert.True(t, res.Acknowledged)
	assert.Len(t, res.Changes, 5)

	entries := dir.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "Amy Lee", entries[0].FullName())
	assert.Equal(t, "Engineer", entries[0].JobTitle)
	src.AssertExpectations(t)
}

func TestReconcile_DryRunIsPure(t *testing.T) {
	src := new(MockSource)
	src.On("FetchDetail", mock.Anything, "c1").Return(amyLee(), nil)
	src.On("AcknowledgeSynced", mock.Anything, "c1").Return(nil)
	dir := newRecordingDirectory()
	e := newEngine(t, src, dir)

	preview, err := e.Reconcile(context.Background(), refs("c1"), true)
	require.NoError(t, err)

	assert.True(t, preview.DryRun)
	assert.Zero(t, dir.writes.Load(), "dry runs must not write")
	assert.Zero(t, dir.Len())
	src.AssertNotCalled(t, "AcknowledgeSynced", mock.Anything, mock.Anything)
	require.Len(t, preview.Results, 1)
	assert.False(t, preview.Results[0].Persisted)
	assert.False(t, preview.Results[0].Acknowledged)

	commit, err := e.Reconcile(context.Background(), refs("c1"), false)
	require.NoError(t, err)
	require.Len(t, commit.Results, 1)
	assert.Equal(t, preview.Results[0].Changes, commit.Results[0].Changes, "preview and commit must plan the same diff")
	assert.Equal(t, preview.Results[0].IsNewEntry, commit.Results[0].IsNewEntry)
}

func TestReconcile_Idempotent(t *testing.T) {
	src := new(MockSource)
	src.On("FetchDetail", mock.Anything, "c1").Return(amyLee(), nil)
	src.On("AcknowledgeSynced", mock.Anything, "c1").Return(nil)
	dir := newRecordingDirectory()
	e := newEngine(t, src, dir)

	_, err := e.Reconcile(context.Background(), refs("c1"), false)
	require.NoError(t, err)
	require.EqualValues(t, 1, dir.writes.Load())

	again, err := e.Reconcile(context.Background(), refs("c1"), false)
	require.NoError(t, err)
	require.Len(t, again.Results, 1)

	res := again.Results[0]
	assert.False(t, res.IsNewEntry)
	assert.Empty(t, res.Changes, "a second run has nothing to change")
	assert.NotEmpty(t, res.Audit)
	assert.True(t, res.Persisted)
	assert.EqualValues(t, 1, dir.writes.Load(), "unchanged entries are not rewritten")
	assert.Equal(t, 1, dir.Len())
}

// TestReconcile_IdempotentAcrossReload runs every batch against a freshly
// reopened vCard file, as separate invocations of the CLI would.
func TestReconcile_IdempotentAcrossReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "contacts.vcf")
	ctx := context.Background()

	run := func(detail *contact.ConnectionDetail) *contact.BatchSummary {
		t.Helper()
		src := new(MockSource)
		src.On("FetchDetail", mock.Anything, "c1").Return(detail, nil)
		src.On("AcknowledgeSynced", mock.Anything, "c1").Return(nil)

		dir, err := directory.OpenVCard(path)
		require.NoError(t, err)
		summary, err := newEngine(t, src, dir).Reconcile(ctx, refs("c1"), false)
		require.NoError(t, err)
		require.Len(t, summary.Results, 1)
		require.True(t, summary.Results[0].Persisted)
		return summary
	}

	first := run(amyLee())
	assert.True(t, first.Results[0].IsNewEntry)

	again := run(amyLee())
	assert.False(t, again.Results[0].IsNewEntry)
	assert.Empty(t, again.Results[0].Changes, "nothing changes once the file holds the connection")

	moved := amyLee()
	moved.Address = &contact.Address{Street: "2 Elm St", City: "Shelbyville", State: "IL"}
	update := run(moved)
	require.Len(t, update.Results[0].Changes, 1)
	assert.Equal(t, contact.FieldAddress, update.Results[0].Changes[0].Field)

	reopened, err := directory.OpenVCard(path)
	require.NoError(t, err)
	require.Equal(t, 1, reopened.Len())
	home, ok := reopened.Entries()[0].Address(contact.LabelHome)
	require.True(t, ok)
	assert.Equal(t, contact.Postal{Street: "2 Elm St", City: "Shelbyville", State: "IL"}, home, "no part of the old address survives")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "Apt 2")

	last := run(moved)
	assert.Empty(t, last.Results[0].Changes)
}

func TestReconcile_UpdatesMatchedEntry(t *testing.T) {
	dir := newRecordingDirectory()
	mobile := "+1 (555) 0100"
	title := "Student"
	first, last := "Amelia", "Lee"
	_, err := dir.VCardDirectory.Create(context.Background(), contact.Patch{
		FirstName: &first, LastName: &last, MobilePhone: &mobile, JobTitle: &title,
	})
	require.NoError(t, err)

	src := new(MockSource)
	src.On("FetchDetail", mock.Anything, "c1").Return(amyLee(), nil)
	src.On("AcknowledgeSynced", mock.Anything, "c1").Return(nil)

	summary, err := newEngine(t, src, dir).Reconcile(context.Background(), refs("c1"), false)
	require.NoError(t, err)
	require.Len(t, summary.Results, 1)
	assert.False(t, summary.Results[0].IsNewEntry)
	assert.True(t, summary.Results[0].Persisted)

	entries := dir.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "Amelia Lee", entries[0].FullName(), "names of existing entries are kept")
	assert.Equal(t, "Engineer", entries[0].JobTitle)
	email, ok := entries[0].Email(contact.LabelHome)
	require.True(t, ok)
	assert.Equal(t, "amy@example.com", email)
}

func TestReconcile_FetchFailureDropsResult(t *testing.T) {
	src := new(MockSource)
	for _, id := range []string{"c1", "c3"} {
		src.On("FetchDetail", mock.Anything, id).Return(&contact.ConnectionDetail{ID: id, Email: id + "@example.com"}, nil)
		src.On("AcknowledgeSynced", mock.Anything, id).Return(nil)
	}
	src.On("FetchDetail", mock.Anything, "c2").Return(nil, remote.ErrNotFound)

	summary, err := newEngine(t, src, newRecordingDirectory()).Reconcile(context.Background(), refs("c1", "c2", "c3"), false)
	require.NoError(t, err, "per-connection failures are never returned")

	summary.SortByID()
	require.Len(t, summary.Results, 2)
	assert.Equal(t, "c1", summary.Results[0].Connection.ID)
	assert.Equal(t, "c3", summary.Results[1].Connection.ID)
	src.AssertNotCalled(t, "AcknowledgeSynced", mock.Anything, "c2")
}

func TestReconcile_WriteFailureStillReports(t *testing.T) {
	src := new(MockSource)
	src.On("FetchDetail", mock.Anything, "c1").Return(amyLee(), nil)
	src.On("AcknowledgeSynced", mock.Anything, "c1").Return(nil)
	dir := newRecordingDirectory()
	dir.writeErr = directory.ErrPermissionDenied

	summary, err := newEngine(t, src, dir).Reconcile(context.Background(), refs("c1"), false)
	require.NoError(t, err)

	require.Len(t, summary.Results, 1)
	res := summary.Results[0]
	assert.NotEmpty(t, res.Changes, "the planned diff is still reported")
	assert.False(t, res.Persisted)
	assert.True(t, res.Acknowledged)
	assert.Len(t, summary.Unpersisted(), 1)
}

func TestReconcile_AckFailureIsNotFatal(t *testing.T) {
	src := new(MockSource)
	src.On("FetchDetail", mock.Anything, "c1").Return(amyLee(), nil)
	src.On("AcknowledgeSynced", mock.Anything, "c1").Return(remote.ErrNetwork)
	dir := newRecordingDirectory()

	summary, err := newEngine(t, src, dir).Reconcile(context.Background(), refs("c1"), false)
	require.NoError(t, err)

	require.Len(t, summary.Results, 1)
	assert.True(t, summary.Results[0].Persisted)
	assert.False(t, summary.Results[0].Acknowledged)
	assert.Equal(t, 1, dir.Len(), "the local write is kept")
}

func TestReconcile_LookupErrorCreatesEntry(t *testing.T) {
	src := new(MockSource)
	src.On("FetchDetail", mock.Anything, "c1").Return(amyLee(), nil)
	src.On("AcknowledgeSynced", mock.Anything, "c1").Return(nil)
	dir := newRecordingDirectory()
	dir.lookupErr = errors.New("index unavailable")

	summary, err := newEngine(t, src, dir).Reconcile(context.Background(), refs("c1"), true)
	require.NoError(t, err)
	require.Len(t, summary.Results, 1)
	assert.True(t, summary.Results[0].IsNewEntry)
}

func TestReconcile_DuplicateRefs(t *testing.T) {
	src := new(MockSource)
	src.On("FetchDetail", mock.Anything, "c1").Return(amyLee(), nil)
	src.On("AcknowledgeSynced", mock.Anything, "c1").Return(nil)
	dir := newRecordingDirectory()

	summary, err := newEngine(t, src, dir).Reconcile(context.Background(), refs("c1", "", "c1"), false)
	require.NoError(t, err)

	assert.Len(t, summary.Results, 1)
	src.AssertNumberOfCalls(t, "FetchDetail", 1)
	assert.Equal(t, 1, dir.Len(), "a connection is written once per batch")
}

func TestReconcile_EmptyBatch(t *testing.T) {
	src := new(MockSource)

	summary, err := newEngine(t, src, newRecordingDirectory()).Reconcile(context.Background(), nil, false)
	require.NoError(t, err)
	assert.NotNil(t, summary.Results)
	assert.Empty(t, summary.Results)
	src.AssertNotCalled(t, "FetchDetail", mock.Anything, mock.Anything)
}

// TestReconcile_Timeout ensures a batch returns once its deadline expires.
func TestReconcile_Timeout(t *testing.T) {
	src := new(MockSource)
	src.On("FetchDetail", mock.Anything, "slow").
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return(nil, context.DeadlineExceeded)
	src.On("FetchDetail", mock.Anything, "fast").Return(&contact.ConnectionDetail{ID: "fast"}, nil)

	e := newEngine(t, src, newRecordingDirectory(), engine.WithTimeout(20*time.Millisecond))

	start := time.Now()
	summary, err := e.Reconcile(context.Background(), refs("slow", "fast"), true)
	require.NoError(t, err)

	assert.Less(t, time.Since(start), 2*time.Second)
	require.Len(t, summary.Results, 1)
	assert.Equal(t, "fast", summary.Results[0].Connection.ID)
}

func TestReconcile_ConcurrencyLimit(t *testing.T) {
	var inFlight, peak atomic.Int32
	src := new(MockSource)
	src.On("FetchDetail", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) {
			n := inFlight.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			inFlight.Add(-1)
		}).
		Return(&contact.ConnectionDetail{ID: "x"}, nil)

	ids := []string{"a", "b", "c", "d", "e", "f"}
	e := newEngine(t, src, newRecordingDirectory(), engine.WithConcurrency(2))
	_, err := e.Reconcile(context.Background(), refs(ids...), true)
	require.NoError(t, err)

	src.AssertNumberOfCalls(t, "FetchDetail", len(ids))
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestReconcile_ObserverStates(t *testing.T) {
	src := new(MockSource)
	src.On("FetchDetail", mock.Anything, "c1").Return(amyLee(), nil)
	src.On("FetchDetail", mock.Anything, "c2").Return(nil, remote.ErrUnauthorized)
	src.On("AcknowledgeSynced", mock.Anything, "c1").Return(nil)

	var mu sync.Mutex
	seen := map[string][]engine.State{}
	observe := engine.WithObserver(func(id string, s engine.State) {
		mu.Lock()
		defer mu.Unlock()
		seen[id] = append(seen[id], s)
	})

	e := newEngine(t, src, newRecordingDirectory(), observe)

	_, err := e.Reconcile(context.Background(), refs("c1", "c2"), true)
	require.NoError(t, err)
	assert.Equal(t, []engine.State{
		engine.StateFetching, engine.StateMatching, engine.StatePlanning,
		engine.StateCreating, engine.StateSkipping, engine.StateDone,
	}, seen["c1"])
	assert.Equal(t, []engine.State{engine.StateFetching, engine.StateDone}, seen["c2"])

	seen = map[string][]engine.State{}
	_, err = e.Reconcile(context.Background(), refs("c1"), false)
	require.NoError(t, err)
	assert.Equal(t, []engine.State{
		engine.StateFetching, engine.StateMatching, engine.StatePlanning,
		engine.StateCreating, engine.StatePersisting, engine.StateAcknowledging, engine.StateDone,
	}, seen["c1"])
}

func TestReconcile_NotConfigured(t *testing.T) {
	var nilEngine *engine.Engine
	_, err := nilEngine.Reconcile(context.Background(), refs("c1"), true)
	assert.ErrorIs(t, err, engine.ErrNotConfigured)

	_, err = (&engine.Engine{}).Reconcile(context.Background(), refs("c1"), true)
	assert.ErrorIs(t, err, engine.ErrNotConfigured)
}

// -----------------------------------------------------------------------------
// Construction
// -----------------------------------------------------------------------------

func TestNew_Validation(t *testing.T) {
	src := new(MockSource)
	dir := newRecordingDirectory()

	tests := []struct {
		name   string
		src    engine.Source
		dir    engine.Directory
		opts   []engine.Option
		option string
	}{
		{"nil source", nil, dir, nil, "source"},
		{"nil directory", src, nil, nil, "directory"},
		{"typed nil source", (*remote.HTTPSource)(nil), dir, nil, "source"},
		{"typed nil directory", src, (*directory.VCardDirectory)(nil), nil, "directory"},
		{"zero timeout", src, dir, []engine.Option{engine.WithTimeout(0)}, "timeout"},
		{"negative concurrency", src, dir, []engine.Option{engine.WithConcurrency(-1)}, "concurrency"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := engine.New(tt.src, tt.dir, tt.opts...)
			assert.Nil(t, e)

			var optErr *engine.OptionError
			require.ErrorAs(t, err, &optErr)
			assert.Equal(t, tt.option, optErr.Option)
		})
	}
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "fetching", engine.StateFetching.String())
	assert.Equal(t, "done", engine.StateDone.String())
	assert.Equal(t, "unknown", engine.State(99).String())
}
