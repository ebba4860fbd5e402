package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"
)

type memDoc struct {
	data    json.RawMessage
	created time.Time
	updated time.Time
	seq     int64
}

// MemoryStore is an in-process Store used by tests and local runs.
type MemoryStore struct {
	mu          sync.Mutex
	collections map[string]map[string]*memDoc
	watchers    map[string][]chan struct{}
	seq         int64
	now         func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]map[string]*memDoc),
		watchers:    make(map[string][]chan struct{}),
		now:         time.Now,
	}
}

func (m *MemoryStore) snapshot(id string, d *memDoc) Snapshot {
	data := make(json.RawMessage, len(d.data))
	copy(data, d.data)
	return Snapshot{ID: id, Data: data, CreateTime: d.created, UpdateTime: d.updated}
}

// put must be called with mu held.
func (m *MemoryStore) put(collection, id string, doc []byte) {
	docs, ok := m.collections[collection]
	if !ok {
		docs = make(map[string]*memDoc)
		m.collections[collection] = docs
	}
	now := m.now()
	if existing, ok := docs[id]; ok {
		existing.data = append(json.RawMessage(nil), doc...)
		existing.updated = now
	} else {
		m.seq++
		docs[id] = &memDoc{data: append(json.RawMessage(nil), doc...), created: now, updated: now, seq: m.seq}
	}
	m.notify(collection)
}

// notify must be called with mu held.
func (m *MemoryStore) notify(collection string) {
	for _, ch := range m.watchers[collection] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (m *MemoryStore) Get(_ context.Context, collection, id string) (*Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.collections[collection][id]
	if !ok {
		return nil, ErrNotFound
	}
	snap := m.snapshot(id, d)
	return &snap, nil
}

func (m *MemoryStore) Set(_ context.Context, collection, id string, data any) error {
	doc, err := encode(data)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.put(collection, id, doc)
	return nil
}

func (m *MemoryStore) Update(_ context.Context, collection, id string, fields map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.collections[collection][id]
	if !ok {
		return ErrNotFound
	}
	var current map[string]any
	if err := json.Unmarshal(d.data, &current); err != nil {
		return fmt.Errorf("decode %s/%s: %w", collection, id, err)
	}
	for k, v := range fields {
		current[k] = v
	}
	doc, err := encode(current)
	if err != nil {
		return err
	}
	m.put(collection, id, doc)
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.collections[collection][id]; !ok {
		return ErrNotFound
	}
	delete(m.collections[collection], id)
	m.notify(collection)
	return nil
}

func (m *MemoryStore) Query(_ context.Context, collection string, filters ...Filter) ([]Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.query(collection, filters)
}

func (m *MemoryStore) query(collection string, filters []Filter) ([]Snapshot, error) {
	type entry struct {
		id  string
		doc *memDoc
	}
	var entries []entry
	for id, d := range m.collections[collection] {
		ok, err := matches(d.data, filters)
		if err != nil {
			return nil, err
		}
		if ok {
			entries = append(entries, entry{id, d})
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].doc.seq < entries[j].doc.seq })

	docs := make([]Snapshot, 0, len(entries))
	for _, e := range entries {
		docs = append(docs, m.snapshot(e.id, e.doc))
	}
	return docs, nil
}

// RunTransaction holds the store lock for the duration of fn, so fn must not
// call back into the store.
func (m *MemoryStore) RunTransaction(_ context.Context, collection, id string, fn TxFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var current *Snapshot
	if d, ok := m.collections[collection][id]; ok {
		snap := m.snapshot(id, d)
		current = &snap
	}

	next, err := fn(current)
	if err != nil {
		return err
	}
	if next == nil {
		return nil
	}
	doc, err := encode(next)
	if err != nil {
		return err
	}
	m.put(collection, id, doc)
	return nil
}

func (m *MemoryStore) Subscribe(ctx context.Context, collection string, fn SnapshotFunc) error {
	ch := make(chan struct{}, 1)
	m.mu.Lock()
	m.watchers[collection] = append(m.watchers[collection], ch)
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		watchers := m.watchers[collection]
		for i, w := range watchers {
			if w == ch {
				m.watchers[collection] = append(watchers[:i], watchers[i+1:]...)
				break
			}
		}
	}()

	deliver := func() error {
		docs, err := m.Query(ctx, collection)
		if err != nil {
			return err
		}
		fn(docs)
		return nil
	}
	if err := deliver(); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ch:
			if err := deliver(); err != nil {
				return err
			}
		}
	}
}

func matches(data json.RawMessage, filters []Filter) (bool, error) {
	if len(filters) == 0 {
		return true, nil
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return false, fmt.Errorf("decode document: %w", err)
	}
	for _, f := range filters {
		want, err := normalize(f.Value)
		if err != nil {
			return false, err
		}
		got, ok := lookup(doc, f.Field)
		if !ok {
			return false, nil
		}
		switch f.Op {
		case OpEq:
			if !reflect.DeepEqual(got, want) {
				return false, nil
			}
		case OpArrayContains:
			items, ok := got.([]any)
			if !ok {
				return false, nil
			}
			found := false
			for _, item := range items {
				if reflect.DeepEqual(item, want) {
					found = true
					break
				}
			}
			if !found {
				return false, nil
			}
		default:
			return false, fmt.Errorf("unsupported filter op %q", f.Op)
		}
	}
	return true, nil
}

func lookup(doc map[string]any, path string) (any, bool) {
	var cur any = doc
	for _, part := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = obj[part]; !ok {
			return nil, false
		}
	}
	return cur, true
}

// normalize gives v the shape encoding/json decodes into.
func normalize(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode filter value: %w", err)
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
