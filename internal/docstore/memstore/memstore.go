package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Zhenya20062/comranet-server/internal/docstore"
	"github.com/google/uuid"
)

// Memstore is an in-memory docstore.Store used by tests and local runs.
// Writes are serialized under a single mutex, which also makes the
// store-assigned timestamps strictly monotonic.
type Memstore struct {
	mu       sync.RWMutex
	colls    map[string]map[string]docstore.Fields
	seq      map[string]map[string]uint64 // insertion order per collection
	nextSeq  uint64
	lastTime time.Time
	watchers map[string][]*subscription
}

func New() *Memstore {
	return &Memstore{
		colls:    make(map[string]map[string]docstore.Fields),
		seq:      make(map[string]map[string]uint64),
		watchers: make(map[string][]*subscription),
	}
}

// coll returns the named collection, creating it on first use. Callers must
// hold the write lock; read paths index s.colls directly (a nil map reads as
// empty) so they never mutate under the read lock.
func (s *Memstore) coll(name string) map[string]docstore.Fields {
	c, ok := s.colls[name]
	if !ok {
		c = make(map[string]docstore.Fields)
		s.colls[name] = c
		s.seq[name] = make(map[string]uint64)
	}
	return c
}

// serverNow returns a timestamp strictly greater than any previously issued
// one, quantized to milliseconds so the wire cursor (Unix milliseconds)
// round-trips losslessly. Callers must hold the write lock.
func (s *Memstore) serverNow() time.Time {
	now := time.Now().UTC().Truncate(time.Millisecond)
	if !now.After(s.lastTime) {
		now = s.lastTime.Add(time.Millisecond)
	}
	s.lastTime = now
	return now
}

func (s *Memstore) resolveTimestamps(fields docstore.Fields) docstore.Fields {
	out := make(docstore.Fields, len(fields))
	for k, v := range fields {
		if v == docstore.ServerTimestamp {
			out[k] = s.serverNow()
			continue
		}
		out[k] = v
	}
	return out
}

func (s *Memstore) Get(_ context.Context, collection, id string) (docstore.Doc, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fields, ok := s.colls[collection][id]
	if !ok {
		return docstore.Doc{}, docstore.ErrNotFound
	}
	return docstore.Doc{ID: id, Fields: copyFields(fields)}, nil
}

func (s *Memstore) Query(_ context.Context, collection string, q docstore.Query) ([]docstore.Doc, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var docs []docstore.Doc
	for id, fields := range s.colls[collection] {
		if matches(id, fields, q.Filters) {
			docs = append(docs, docstore.Doc{ID: id, Fields: copyFields(fields)})
		}
	}

	if q.OrderBy != "" {
		sort.Slice(docs, func(i, j int) bool {
			less := compareValues(docs[i].Fields[q.OrderBy], docs[j].Fields[q.OrderBy]) < 0
			if q.Descending {
				return !less
			}
			return less
		})
	} else {
		seqs := s.seq[collection]
		sort.Slice(docs, func(i, j int) bool {
			return seqs[docs[i].ID] < seqs[docs[j].ID]
		})
	}

	if q.Limit > 0 && len(docs) > q.Limit {
		docs = docs[:q.Limit]
	}
	return docs, nil
}

func (s *Memstore) Add(_ context.Context, collection string, fields docstore.Fields) (string, error) {
	id := uuid.NewString()
	s.put(collection, id, fields)
	return id, nil
}

func (s *Memstore) Set(_ context.Context, collection, id string, fields docstore.Fields) error {
	s.put(collection, id, fields)
	return nil
}

func (s *Memstore) put(collection, id string, fields docstore.Fields) {
	s.mu.Lock()
	old := s.coll(collection)[id]
	resolved := s.resolveTimestamps(fields)
	s.coll(collection)[id] = resolved
	if _, ok := s.seq[collection][id]; !ok {
		s.nextSeq++
		s.seq[collection][id] = s.nextSeq
	}
	s.mu.Unlock()
	s.notify(collection, id, old, resolved)
}

func (s *Memstore) Update(_ context.Context, collection, id string, fields docstore.Fields) error {
	s.mu.Lock()
	existing, ok := s.coll(collection)[id]
	if !ok {
		s.mu.Unlock()
		return docstore.ErrNotFound
	}
	old := copyFields(existing)
	for k, v := range s.resolveTimestamps(fields) {
		existing[k] = v
	}
	updated := copyFields(existing)
	s.mu.Unlock()
	s.notify(collection, id, old, updated)
	return nil
}

func (s *Memstore) Delete(_ context.Context, collection, id string) error {
	s.mu.Lock()
	old, ok := s.coll(collection)[id]
	if !ok {
		s.mu.Unlock()
		return docstore.ErrNotFound
	}
	delete(s.coll(collection), id)
	delete(s.seq[collection], id)
	s.mu.Unlock()
	s.notify(collection, id, old, nil)
	return nil
}

func (s *Memstore) Watch(ctx context.Context, collection string, q docstore.Query) (docstore.Subscription, error) {
	sub := &subscription{
		store:      s,
		collection: collection,
		query:      q,
		ch:         make(chan struct{}, 1),
	}

	s.mu.Lock()
	s.watchers[collection] = append(s.watchers[collection], sub)
	s.mu.Unlock()

	// Initial snapshot signal.
	sub.ch <- struct{}{}

	go func() {
		<-ctx.Done()
		sub.fail(ctx.Err())
	}()

	return sub, nil
}

// notify wakes every watcher whose query matched the document either before
// or after the change, so removals are observed too.
func (s *Memstore) notify(collection, id string, old, updated docstore.Fields) {
	s.mu.RLock()
	subs := make([]*subscription, len(s.watchers[collection]))
	copy(subs, s.watchers[collection])
	s.mu.RUnlock()

	for _, sub := range subs {
		if (old != nil && matches(id, old, sub.query.Filters)) ||
			(updated != nil && matches(id, updated, sub.query.Filters)) {
			sub.signal()
		}
	}
}

func (s *Memstore) unsubscribe(sub *subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	subs := s.watchers[sub.collection]
	for i, w := range subs {
		if w == sub {
			s.watchers[sub.collection] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
}

type subscription struct {
	store      *Memstore
	collection string
	query      docstore.Query

	mu     sync.Mutex
	ch     chan struct{}
	closed bool
	err    error
}

func (sub *subscription) Changes() <-chan struct{} { return sub.ch }

func (sub *subscription) Err() error {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	return sub.err
}

func (sub *subscription) signal() {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if sub.closed {
		return
	}
	select {
	case sub.ch <- struct{}{}:
	default: // a signal is already pending; coalesce
	}
}

func (sub *subscription) fail(err error) {
	sub.store.unsubscribe(sub)
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if sub.closed {
		return
	}
	sub.closed = true
	sub.err = err
	close(sub.ch)
}

func (sub *subscription) Close() {
	sub.store.unsubscribe(sub)
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if sub.closed {
		return
	}
	sub.closed = true
	close(sub.ch)
}

func matches(id string, fields docstore.Fields, filters []docstore.Filter) bool {
	for _, f := range filters {
		var v interface{}
		if f.Field == docstore.FieldDocID {
			v = id
		} else {
			v = fields[f.Field]
		}
		switch f.Op {
		case docstore.OpEq:
			if v != f.Value {
				return false
			}
		case docstore.OpLt:
			if compareValues(v, f.Value) >= 0 {
				return false
			}
		case docstore.OpIn:
			if !containsValue(f.Value, v) {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func containsValue(set, v interface{}) bool {
	switch s := set.(type) {
	case []string:
		str, ok := v.(string)
		if !ok {
			return false
		}
		for _, item := range s {
			if item == str {
				return true
			}
		}
	case []interface{}:
		for _, item := range s {
			if item == v {
				return true
			}
		}
	}
	return false
}

func compareValues(a, b interface{}) int {
	switch av := a.(type) {
	case time.Time:
		bv, ok := b.(time.Time)
		if !ok {
			return -1
		}
		switch {
		case av.Before(bv):
			return -1
		case av.After(bv):
			return 1
		}
		return 0
	case string:
		bv, _ := b.(string)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		}
		return 0
	case int64:
		bv, _ := b.(int64)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		}
		return 0
	case float64:
		bv, _ := b.(float64)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		}
		return 0
	}
	return 0
}

func copyFields(fields docstore.Fields) docstore.Fields {
	out := make(docstore.Fields, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}
