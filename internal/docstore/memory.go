package docstore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store used in tests and embedded setups.
// It mirrors the backing real-time database's semantics: shallow merges,
// store-maintained createdAt/updatedAt, and change notifications that
// include the local echo.
type MemoryStore struct {
	mu          sync.Mutex
	collections map[string]map[string]*memoryDoc
	subs        map[string][]*memorySub
	now         func() time.Time
}

type memoryDoc struct {
	version int64
	data    map[string]interface{}
}

type memorySub struct {
	ch     chan *Snapshot
	closed bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]map[string]*memoryDoc),
		subs:        make(map[string][]*memorySub),
		now:         time.Now,
	}
}

// SetClock overrides the store's clock. Test helper.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Create inserts a new document and returns its assigned id.
func (s *MemoryStore) Create(ctx context.Context, collection string, data map[string]interface{}) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.New().String()
	doc := &memoryDoc{version: 1, data: copyDoc(data)}
	now := s.now()
	doc.data["createdAt"] = now
	doc.data["updatedAt"] = now

	if s.collections[collection] == nil {
		s.collections[collection] = make(map[string]*memoryDoc)
	}
	s.collections[collection][id] = doc

	s.notifyLocked(collection, id, doc)
	return id, nil
}

// Set writes a full document under an explicit id.
func (s *MemoryStore) Set(ctx context.Context, collection, id string, data map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.collections[collection] == nil {
		s.collections[collection] = make(map[string]*memoryDoc)
	}

	doc := s.collections[collection][id]
	version := int64(1)
	createdAt := interface{}(s.now())
	if doc != nil {
		version = doc.version + 1
		if prev, ok := doc.data["createdAt"]; ok {
			createdAt = prev
		}
	}

	next := &memoryDoc{version: version, data: copyDoc(data)}
	next.data["createdAt"] = createdAt
	next.data["updatedAt"] = s.now()
	s.collections[collection][id] = next

	s.notifyLocked(collection, id, next)
	return nil
}

// Get returns the current snapshot, or ErrNotFound.
func (s *MemoryStore) Get(ctx context.Context, collection, id string) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.collections[collection][id]
	if doc == nil {
		return nil, ErrNotFound
	}
	return &Snapshot{ID: id, Version: doc.version, Data: copyDoc(doc.data)}, nil
}

// Update shallow-merges fields into the document if the precondition holds.
func (s *MemoryStore) Update(ctx context.Context, collection, id string, fields map[string]interface{}, pre Precondition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.collections[collection][id]
	if doc == nil {
		return ErrNotFound
	}
	if pre.ExpectedVersion != 0 && doc.version != pre.ExpectedVersion {
		return ErrConflict
	}
	if pre.ExpectedStatus != "" {
		status, _ := doc.data["status"].(string)
		if status != pre.ExpectedStatus {
			return ErrConflict
		}
	}

	for k, v := range copyDoc(fields) {
		doc.data[k] = v
	}
	doc.data["updatedAt"] = s.now()
	doc.version++

	s.notifyLocked(collection, id, doc)
	return nil
}

// AppendToSet atomically adds value to the array field, skipping duplicates.
func (s *MemoryStore) AppendToSet(ctx context.Context, collection, id, field string, value interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.collections[collection][id]
	if doc == nil {
		return ErrNotFound
	}

	existing, _ := doc.data[field].([]interface{})
	for _, v := range existing {
		if v == value {
			return nil
		}
	}
	doc.data[field] = append(existing, value)
	doc.data["updatedAt"] = s.now()
	doc.version++

	s.notifyLocked(collection, id, doc)
	return nil
}

// List returns a snapshot of every document in the collection.
func (s *MemoryStore) List(ctx context.Context, collection string) ([]*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs := s.collections[collection]
	snaps := make([]*Snapshot, 0, len(docs))
	for id, doc := range docs {
		snaps = append(snaps, &Snapshot{ID: id, Version: doc.version, Data: copyDoc(doc.data)})
	}
	return snaps, nil
}

// Subscribe registers fn for every change of the document. Notifications are
// delivered in write order on a dedicated goroutine; the callback must not
// block indefinitely.
func (s *MemoryStore) Subscribe(ctx context.Context, collection, id string, fn func(*Snapshot)) (func(), error) {
	sub := &memorySub{ch: make(chan *Snapshot, 32)}

	s.mu.Lock()
	key := collection + "/" + id
	s.subs[key] = append(s.subs[key], sub)
	// Emit the current state first so subscribers never miss the document
	// they attached to, mirroring the backing database's initial snapshot.
	if doc := s.collections[collection][id]; doc != nil {
		sub.ch <- &Snapshot{ID: id, Version: doc.version, Data: copyDoc(doc.data)}
	}
	s.mu.Unlock()

	go func() {
		for snap := range sub.ch {
			fn(snap)
		}
	}()

	unsubscribe := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if sub.closed {
			return
		}
		sub.closed = true
		close(sub.ch)
		remaining := s.subs[key][:0]
		for _, other := range s.subs[key] {
			if other != sub {
				remaining = append(remaining, other)
			}
		}
		s.subs[key] = remaining
	}
	return unsubscribe, nil
}

func (s *MemoryStore) notifyLocked(collection, id string, doc *memoryDoc) {
	key := collection + "/" + id
	for _, sub := range s.subs[key] {
		if sub.closed {
			continue
		}
		select {
		case sub.ch <- &Snapshot{ID: id, Version: doc.version, Data: copyDoc(doc.data)}:
		default:
			// Slow subscriber; drop rather than stall writers. The next
			// notification carries the full document anyway.
		}
	}
}

// copyDoc copies a document one level deep, cloning nested maps and slices
// so callers cannot mutate stored state through a snapshot.
func copyDoc(in map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		switch t := v.(type) {
		case map[string]interface{}:
			nested := make(map[string]interface{}, len(t))
			for nk, nv := range t {
				nested[nk] = nv
			}
			out[k] = nested
		case []interface{}:
			out[k] = append([]interface{}(nil), t...)
		default:
			out[k] = v
		}
	}
	return out
}
