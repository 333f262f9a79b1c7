// Package document holds the in-memory workflow being edited. The canonical
// state is the decoded JSON tree of the workflow, so content the editor does
// not understand survives a load and save untouched. Every change replaces
// the root with a structurally shared copy; snapshots are immutable.
package document

import (
	"errors"
	"fmt"
	"sync"

	"smooshr/backend/pkg/models"
)

// Origin says why the store content changed.
type Origin int

const (
	// OriginEdit is a user edit that should be persisted.
	OriginEdit Origin = iota
	// OriginLoad is the initial load of a document.
	OriginLoad
	// OriginSync is a reconcile with the server or a rollback after a failed save.
	OriginSync
)

// Snapshot is an immutable view of the document at one point in time.
type Snapshot struct {
	root    any
	version uint64
}

// Version increases with every commit to the store the snapshot came from.
func (s Snapshot) Version() uint64 {
	return s.version
}

// IsZero reports whether the snapshot holds no document.
func (s Snapshot) IsZero() bool {
	return s.root == nil
}

// Value returns the value at path. The result must not be modified.
func (s Snapshot) Value(path string) (any, error) {
	return lookup(s.root, splitPath(path))
}

// Bytes renders the snapshot as JSON.
func (s Snapshot) Bytes() ([]byte, error) {
	return encodeTree(s.root)
}

// Workflow decodes the snapshot into the typed model.
func (s Snapshot) Workflow() (models.Workflow, error) {
	var wf models.Workflow
	if err := fromTree(s.root, &wf); err != nil {
		return models.Workflow{}, fmt.Errorf("decode workflow: %w", err)
	}
	return wf, nil
}

// Change is delivered to subscribers after every commit.
type Change struct {
	Before Snapshot
	After  Snapshot
	Origin Origin
}

// Listener receives changes in commit order. It runs synchronously and must
// not edit the store.
type Listener func(Change)

// Store is a concurrency-safe holder for the workflow document.
type Store struct {
	mu       sync.RWMutex
	root     any
	version  uint64
	commitMu sync.Mutex

	subMu     sync.Mutex
	listeners map[int]Listener
	nextSub   int
}

// New returns an empty store.
func New() *Store {
	return &Store{listeners: make(map[int]Listener)}
}

// Open returns a store loaded with raw.
func Open(raw []byte) (*Store, error) {
	s := New()
	if err := s.Load(raw); err != nil {
		return nil, err
	}
	return s, nil
}

// Load replaces the document with raw JSON.
func (s *Store) Load(raw []byte) error {
	root, err := decodeTree(raw)
	if err != nil {
		return fmt.Errorf("load document: %w", err)
	}
	s.commit(root, OriginLoad)
	return nil
}

// Replace swaps in the content of a snapshot.
func (s *Store) Replace(snap Snapshot, origin Origin) {
	s.commit(snap.root, origin)
}

// CompareAndReplace swaps in next only if the store is still at expected.
// It returns the committed snapshot and whether the swap happened.
func (s *Store) CompareAndReplace(expected, next Snapshot, origin Origin) (Snapshot, bool) {
	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	cur := s.Snapshot()
	if cur.version != expected.version {
		return cur, false
	}
	return s.swap(cur.root, next.root, origin), true
}

// Snapshot returns the current document.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{root: s.root, version: s.version}
}

// Raw renders the current document as JSON.
func (s *Store) Raw() ([]byte, error) {
	return s.Snapshot().Bytes()
}

// Workflow decodes the current document.
func (s *Store) Workflow() (models.Workflow, error) {
	return s.Snapshot().Workflow()
}

// Schema decodes the schema of the current document.
func (s *Store) Schema() (models.WorkflowSchema, error) {
	wf, err := s.Workflow()
	if err != nil {
		return models.WorkflowSchema{}, err
	}
	return wf.Schema, nil
}

// GetValue returns the value at a dot path such as "schema.operations.0.title".
func (s *Store) GetValue(path string) (any, error) {
	return s.Snapshot().Value(path)
}

// SetValue stores value at path. value may be any JSON-encodable Go value.
func (s *Store) SetValue(path string, value any) error {
	return s.Update(func(tx *Tx) error {
		return tx.Set(path, value)
	})
}

// Update runs fn against a draft of the document and commits the draft as one
// change if fn succeeds. Nothing is committed when fn returns an error.
func (s *Store) Update(fn func(tx *Tx) error) error {
	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	before := s.Snapshot()
	tx := &Tx{root: before.root}
	if err := fn(tx); err != nil {
		return err
	}
	s.swap(before.root, tx.root, OriginEdit)
	return nil
}

// Subscribe registers l and returns a function that removes it.
func (s *Store) Subscribe(l Listener) (unsubscribe func()) {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.listeners[id] = l
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.listeners, id)
		s.subMu.Unlock()
	}
}

func (s *Store) commit(root any, origin Origin) {
	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	s.swap(s.Snapshot().root, root, origin)
}

// swap must be called with commitMu held.
func (s *Store) swap(before, after any, origin Origin) Snapshot {
	s.mu.Lock()
	prev := s.version
	s.version++
	s.root = after
	next := Snapshot{root: after, version: s.version}
	s.mu.Unlock()

	s.subMu.Lock()
	listeners := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.subMu.Unlock()

	change := Change{Before: Snapshot{root: before, version: prev}, After: next, Origin: origin}
	for _, l := range listeners {
		l(change)
	}
	return next
}

// Tx is a draft of the document inside Store.Update.
type Tx struct {
	root any
}

// Get returns the value at path in the draft.
func (tx *Tx) Get(path string) (any, error) {
	return lookup(tx.root, splitPath(path))
}

// Set stores value at path in the draft.
func (tx *Tx) Set(path string, value any) error {
	v, err := toTree(value)
	if err != nil {
		return fmt.Errorf("encode value for %s: %w", path, err)
	}
	root, err := assign(tx.root, splitPath(path), v)
	if err != nil {
		return err
	}
	tx.root = root
	return nil
}

// List returns the array at path. A missing or null value is an empty list.
func (tx *Tx) List(path string) ([]any, error) {
	v, err := tx.Get(path)
	if errors.Is(err, ErrPathNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	switch l := v.(type) {
	case nil:
		return nil, nil
	case []any:
		return l, nil
	}
	return nil, fmt.Errorf("%w: %s is not an array", ErrNotContainer, path)
}

// Append adds value to the end of the array at path.
func (tx *Tx) Append(path string, value any) error {
	l, err := tx.List(path)
	if err != nil {
		return err
	}
	v, err := toTree(value)
	if err != nil {
		return fmt.Errorf("encode value for %s: %w", path, err)
	}
	out := make([]any, len(l), len(l)+1)
	copy(out, l)
	return tx.setTree(path, append(out, v))
}

// RemoveAt deletes element i of the array at path, keeping the order of the rest.
func (tx *Tx) RemoveAt(path string, i int) error {
	l, err := tx.List(path)
	if err != nil {
		return err
	}
	if i < 0 || i >= len(l) {
		return fmt.Errorf("%w: %s.%d", ErrPathNotFound, path, i)
	}
	out := make([]any, 0, len(l)-1)
	out = append(out, l[:i]...)
	out = append(out, l[i+1:]...)
	return tx.setTree(path, out)
}

// Decode decodes the value at path into out.
func (tx *Tx) Decode(path string, out any) error {
	v, err := tx.Get(path)
	if err != nil {
		return err
	}
	if err := fromTree(v, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func (tx *Tx) setTree(path string, v any) error {
	root, err := assign(tx.root, splitPath(path), v)
	if err != nil {
		return err
	}
	tx.root = root
	return nil
}
