package autosave

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smooshr/backend/internal/document"
)

const doc = `{"id":"wf-1","title":"Intake","owner":"u","created_date":"2024-05-01T10:00:00Z",
"schema":{"version":"0.1","operations":[],"fieldsetSchemas":[],"params":[]}}`

type fakeSaver struct {
	mu       sync.Mutex
	bodies   [][]byte
	fail     error
	response func(body []byte) []byte
	gate     chan struct{}
}

func (f *fakeSaver) SaveWorkflow(ctx context.Context, id string, body []byte) ([]byte, error) {
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bodies = append(f.bodies, body)
	if f.fail != nil {
		return nil, f.fail
	}
	if f.response != nil {
		return f.response(body), nil
	}
	return body, nil
}

func (f *fakeSaver) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.bodies)
}

func (f *fakeSaver) last() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bodies[len(f.bodies)-1]
}

func newStore(t *testing.T) *document.Store {
	t.Helper()
	s, err := document.Open([]byte(doc))
	require.NoError(t, err)
	return s
}

func title(t *testing.T, s *document.Store) string {
	t.Helper()
	v, err := s.GetValue("title")
	require.NoError(t, err)
	return v.(string)
}

func TestSyncer_DebouncesEdits(t *testing.T) {
	store := newStore(t)
	saver := &fakeSaver{}
	s := New(store, saver, "wf-1", Options{Delay: 30 * time.Millisecond})
	defer s.Close()

	require.NoError(t, store.SetTitle("A"))
	require.NoError(t, store.SetTitle("AB"))
	require.NoError(t, store.SetTitle("ABC"))
	assert.Equal(t, StateDirty, s.State())

	assert.Eventually(t, func() bool { return s.State() == StateClean }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, saver.calls())
	assert.Contains(t, string(saver.last()), `"title":"ABC"`)
}

func TestSyncer_RollsBackOnFailure(t *testing.T) {
	store := newStore(t)
	saveErr := errors.New("boom")
	saver := &fakeSaver{fail: saveErr}

	var notified error
	var mu sync.Mutex
	s := New(store, saver, "wf-1", Options{Delay: 10 * time.Millisecond, Notify: func(err error) {
		mu.Lock()
		notified = err
		mu.Unlock()
	}})
	defer s.Close()

	require.NoError(t, store.SetTitle("Broken"))
	assert.Eventually(t, func() bool { return s.State() == StateRolledBack }, time.Second, 5*time.Millisecond)

	assert.Equal(t, "Intake", title(t, store))
	mu.Lock()
	assert.ErrorIs(t, notified, saveErr)
	mu.Unlock()

	saver.mu.Lock()
	saver.fail = nil
	saver.mu.Unlock()
	require.NoError(t, store.SetTitle("Fixed"))
	require.NoError(t, s.Flush(context.Background()))
	assert.Equal(t, StateClean, s.State())
	assert.Equal(t, "Fixed", title(t, store))
}

func TestSyncer_ReconcilesServerResponse(t *testing.T) {
	store := newStore(t)
	saver := &fakeSaver{response: func(body []byte) []byte {
		return []byte(`{"id":"wf-1","title":"Server Title","owner":"u","created_date":"2024-05-01T10:00:00Z",
"schema":{"version":"0.1","operations":[],"fieldsetSchemas":[],"params":[]}}`)
	}}
	s := New(store, saver, "wf-1", Options{Delay: time.Hour})
	defer s.Close()

	require.NoError(t, store.SetTitle("Client Title"))
	require.NoError(t, s.Flush(context.Background()))

	assert.Equal(t, "Server Title", title(t, store))
	assert.Equal(t, StateClean, s.State())
	v, err := s.Saved().Value("title")
	require.NoError(t, err)
	assert.Equal(t, "Server Title", v)
}

func TestSyncer_EditDuringSaveStaysDirty(t *testing.T) {
	store := newStore(t)
	saver := &fakeSaver{gate: make(chan struct{})}
	s := New(store, saver, "wf-1", Options{Delay: 10 * time.Millisecond})
	defer s.Close()

	require.NoError(t, store.SetTitle("First"))
	assert.Eventually(t, func() bool { return s.State() == StateSaving }, time.Second, 2*time.Millisecond)

	require.NoError(t, store.SetTitle("Second"))
	saver.gate <- struct{}{}

	assert.Eventually(t, func() bool { return saver.calls() == 1 }, time.Second, 2*time.Millisecond)
	assert.Equal(t, "Second", title(t, store))

	close(saver.gate)
	assert.Eventually(t, func() bool { return s.State() == StateClean }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 2, saver.calls())
	assert.Contains(t, string(saver.last()), `"title":"Second"`)
	assert.Equal(t, "Second", title(t, store))
}

func TestSyncer_FlushReportsFailedTimerSave(t *testing.T) {
	store := newStore(t)
	saveErr := errors.New("rejected")
	saver := &fakeSaver{fail: saveErr, gate: make(chan struct{})}
	s := New(store, saver, "wf-1", Options{Delay: 10 * time.Millisecond})
	defer s.Close()

	require.NoError(t, store.SetTitle("Lost"))
	assert.Eventually(t, func() bool { return s.State() == StateSaving }, time.Second, 2*time.Millisecond)

	flushed := make(chan error, 1)
	go func() { flushed <- s.Flush(context.Background()) }()
	time.Sleep(20 * time.Millisecond)
	close(saver.gate)

	select {
	case err := <-flushed:
		assert.ErrorIs(t, err, saveErr)
	case <-time.After(time.Second):
		t.Fatal("flush did not return")
	}
	assert.Equal(t, StateRolledBack, s.State())
	assert.Equal(t, "Intake", title(t, store))
	assert.Equal(t, 1, saver.calls())

	// A later flush with no new edits still reports the rollback.
	assert.ErrorIs(t, s.Flush(context.Background()), saveErr)

	saver.mu.Lock()
	saver.fail = nil
	saver.mu.Unlock()
	require.NoError(t, store.SetTitle("Kept"))
	require.NoError(t, s.Flush(context.Background()))
	assert.Equal(t, StateClean, s.State())
}

func TestSyncer_CloseCancelsPendingSave(t *testing.T) {
	store := newStore(t)
	saver := &fakeSaver{}
	s := New(store, saver, "wf-1", Options{Delay: 20 * time.Millisecond})

	require.NoError(t, store.SetTitle("Never saved"))
	s.Close()

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 0, saver.calls())
	assert.ErrorIs(t, s.Flush(context.Background()), ErrClosed)
}

func TestSyncer_FlushWithoutEditsIsNoop(t *testing.T) {
	store := newStore(t)
	saver := &fakeSaver{}
	s := New(store, saver, "wf-1", Options{})
	defer s.Close()

	require.NoError(t, s.Flush(context.Background()))
	assert.Equal(t, 0, saver.calls())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "clean", StateClean.String())
	assert.Equal(t, "rolled back", StateRolledBack.String())
	assert.Equal(t, "State(9)", State(9).String())
}
