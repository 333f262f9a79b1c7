// Package autosave persists a document store to the server after a quiet
// period. Edits are applied locally first; a failed save rolls the store
// back to the last document the server accepted.
package autosave

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"smooshr/backend/internal/document"
)

// DefaultDelay is the quiet period after the last edit before a save starts.
const DefaultDelay = 3 * time.Second

// ErrClosed is returned by Flush after Close.
var ErrClosed = errors.New("autosave closed")

// State is the sync state of the document.
type State int

const (
	// StateClean means the store matches the last saved document.
	StateClean State = iota
	// StateDirty means edits are waiting for the quiet period to end.
	StateDirty
	// StateSaving means a save is in flight.
	StateSaving
	// StateRolledBack means the last save failed and the store was restored.
	StateRolledBack
)

func (s State) String() string {
	switch s {
	case StateClean:
		return "clean"
	case StateDirty:
		return "dirty"
	case StateSaving:
		return "saving"
	case StateRolledBack:
		return "rolled back"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Saver stores the full workflow document and returns the server's copy.
type Saver interface {
	SaveWorkflow(ctx context.Context, id string, body []byte) ([]byte, error)
}

// Notifier is told about failed saves.
type Notifier func(err error)

// Logger is the logging interface used by the syncer.
type Logger interface {
	Debug(msg string, args ...any)
	Error(msg string, args ...any)
}

// Options configures a Syncer.
type Options struct {
	Delay   time.Duration
	Notify  Notifier
	Logger  Logger
	Timeout time.Duration // per-save deadline, zero for none
}

// Syncer watches a store and saves it after edits.
type Syncer struct {
	store   *document.Store
	saver   Saver
	id      string
	delay   time.Duration
	timeout time.Duration
	notify  Notifier
	logger  Logger

	// saveMu serialises saves.
	saveMu sync.Mutex

	mu       sync.Mutex
	state    State
	saved    document.Snapshot
	timer    *time.Timer
	inFlight bool
	pending  bool
	closed   bool
	lastErr  error

	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	unsubscribe func()
}

// New starts watching store. The current content is taken as saved.
func New(store *document.Store, saver Saver, workflowID string, opts Options) *Syncer {
	if opts.Delay <= 0 {
		opts.Delay = DefaultDelay
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Syncer{
		store:   store,
		saver:   saver,
		id:      workflowID,
		delay:   opts.Delay,
		timeout: opts.Timeout,
		notify:  opts.Notify,
		logger:  opts.Logger,
		state:   StateClean,
		saved:   store.Snapshot(),
		ctx:     ctx,
		cancel:  cancel,
	}
	s.unsubscribe = store.Subscribe(s.onChange)
	return s
}

// State returns the current sync state.
func (s *Syncer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Saved returns the last document the server accepted.
func (s *Syncer) Saved() document.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saved
}

func (s *Syncer) onChange(c document.Change) {
	if c.Origin != document.OriginEdit {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if s.inFlight {
		s.pending = true
	} else {
		s.state = StateDirty
	}
	s.armLocked()
}

func (s *Syncer) armLocked() {
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.delay, s.fire)
}

func (s *Syncer) fire() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if s.inFlight {
		s.pending = true
		s.mu.Unlock()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	defer s.wg.Done()
	_ = s.save(s.ctx)
}

// Flush stops the quiet-period timer and saves now if there are unsaved
// edits. It waits for a save already in flight and reports that save's error
// if it rolled the store back.
func (s *Syncer) Flush(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.wg.Add(1)
	s.mu.Unlock()

	defer s.wg.Done()
	return s.save(ctx)
}

// Close abandons any pending save and stops watching the store. A save in
// flight is allowed to finish.
func (s *Syncer) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
	}
	s.mu.Unlock()

	s.unsubscribe()
	s.wg.Wait()
	s.cancel()
}

func (s *Syncer) save(ctx context.Context) error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.Lock()
	if s.state != StateDirty {
		var err error
		if s.state == StateRolledBack {
			err = s.lastErr
		}
		s.mu.Unlock()
		return err
	}
	s.state = StateSaving
	s.inFlight = true
	s.pending = false
	s.mu.Unlock()

	sent := s.store.Snapshot()
	resp, err := s.send(ctx, sent)

	s.mu.Lock()
	s.inFlight = false
	if err != nil {
		s.state = StateRolledBack
		s.pending = false
		s.lastErr = err
		saved := s.saved
		s.mu.Unlock()

		s.store.Replace(saved, document.OriginSync)
		s.log().Error("workflow save failed, changes rolled back", "workflow_id", s.id, "error", err)
		if s.notify != nil {
			s.notify(err)
		}
		return err
	}

	s.saved = sent
	s.lastErr = nil
	if s.pending {
		s.pending = false
		s.state = StateDirty
		if !s.closed {
			s.armLocked()
		}
		s.mu.Unlock()
		return nil
	}
	s.state = StateClean
	s.mu.Unlock()

	s.reconcile(sent, resp)
	s.log().Debug("workflow saved", "workflow_id", s.id)
	return nil
}

func (s *Syncer) send(ctx context.Context, snap document.Snapshot) ([]byte, error) {
	body, err := snap.Bytes()
	if err != nil {
		return nil, fmt.Errorf("encode workflow: %w", err)
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	return s.saver.SaveWorkflow(ctx, s.id, body)
}

// reconcile loads the server's copy unless the user edited in the meantime.
func (s *Syncer) reconcile(sent document.Snapshot, resp []byte) {
	if len(resp) == 0 {
		return
	}
	server, err := document.Open(resp)
	if err != nil {
		s.log().Error("could not decode saved workflow", "workflow_id", s.id, "error", err)
		return
	}
	committed, ok := s.store.CompareAndReplace(sent, server.Snapshot(), document.OriginSync)
	if !ok {
		return
	}
	s.mu.Lock()
	if s.saved.Version() == sent.Version() {
		s.saved = committed
	}
	s.mu.Unlock()
}

func (s *Syncer) log() Logger {
	if s.logger == nil {
		return nopLogger{}
	}
	return s.logger
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Error(string, ...any) {}
