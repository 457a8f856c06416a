package docstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Memory is the in-process backend. It implements the full contract,
// including transaction serialization and whole-value subscriptions,
// and backs the package tests and local development.
type Memory struct {
	logger *slog.Logger

	mu   sync.Mutex
	data map[string]map[string]map[string]any

	txMu sync.Mutex

	subMu  sync.Mutex
	subs   map[string]map[*Subscription]struct{}
	closed bool
}

func NewMemory(logger *slog.Logger) *Memory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Memory{
		logger: logger.With("component", "docstore"),
		data:   make(map[string]map[string]map[string]any),
		subs:   make(map[string]map[*Subscription]struct{}),
	}
}

func (m *Memory) Get(ctx context.Context, path string) (Document, error) {
	collection, id, err := splitPath(path)
	if err != nil {
		return Document{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	fields, ok := m.data[collection][id]
	if !ok {
		return Document{}, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	return Document{Path: path, ID: id, Fields: deepCopy(fields)}, nil
}

func (m *Memory) Set(ctx context.Context, path string, fields map[string]any, merge bool) error {
	collection, id, err := splitPath(path)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.apply(collection, id, fields, merge, time.Now().UTC())
	snapshot := deepCopy(m.data[collection][id])
	m.mu.Unlock()

	m.notify(path, id, snapshot)
	return nil
}

func (m *Memory) RunTransaction(ctx context.Context, fn func(tx Tx) error) error {
	// Transactions serialize store-wide; per-document serialization is
	// all the contract promises, this is simply stricter.
	m.txMu.Lock()
	defer m.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &memoryTx{store: m}
	if err := fn(tx); err != nil {
		return err
	}

	now := time.Now().UTC()
	type notification struct {
		path, id string
		fields   map[string]any
	}
	var pending []notification

	m.mu.Lock()
	for _, w := range tx.writes {
		collection, id, err := splitPath(w.path)
		if err != nil {
			m.mu.Unlock()
			return err
		}
		m.apply(collection, id, w.fields, w.merge, now)
		pending = append(pending, notification{path: w.path, id: id, fields: deepCopy(m.data[collection][id])})
	}
	m.mu.Unlock()

	for _, n := range pending {
		m.notify(n.path, n.id, n.fields)
	}
	return nil
}

func (m *Memory) Query(ctx context.Context, collection string, preds []Predicate, limit int) ([]Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, len(m.data[collection]))
	for id := range m.data[collection] {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var out []Document
	for _, id := range ids {
		fields := m.data[collection][id]
		if !matchAll(fields, preds) {
			continue
		}
		out = append(out, Document{
			Path:   collection + "/" + id,
			ID:     id,
			Fields: deepCopy(fields),
		})
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *Memory) Subscribe(ctx context.Context, path string) (*Subscription, error) {
	if _, _, err := splitPath(path); err != nil {
		return nil, err
	}

	m.subMu.Lock()
	if m.closed {
		m.subMu.Unlock()
		return nil, ErrUnavailable
	}
	var sub *Subscription
	sub = newSubscription(func() {
		m.subMu.Lock()
		if set, ok := m.subs[path]; ok {
			delete(set, sub)
		}
		m.subMu.Unlock()
	})
	if m.subs[path] == nil {
		m.subs[path] = make(map[*Subscription]struct{})
	}
	m.subs[path][sub] = struct{}{}
	m.subMu.Unlock()

	// Initial snapshot, if the document already exists.
	if doc, err := m.Get(ctx, path); err == nil {
		sub.publish(Update{Doc: doc})
	}

	go func() {
		<-ctx.Done()
		sub.Cancel()
	}()

	return sub, nil
}

func (m *Memory) Ready(ctx context.Context) error {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	if m.closed {
		return errors.New("store closed")
	}
	return nil
}

func (m *Memory) Close(ctx context.Context) error {
	m.subMu.Lock()
	m.closed = true
	subs := make([]*Subscription, 0)
	for _, set := range m.subs {
		for sub := range set {
			subs = append(subs, sub)
		}
	}
	m.subs = make(map[string]map[*Subscription]struct{})
	m.subMu.Unlock()

	for _, sub := range subs {
		sub.Cancel()
	}
	return nil
}

// apply mutates the stored fields for collection/id. Caller holds mu.
func (m *Memory) apply(collection, id string, fields map[string]any, merge bool, now time.Time) {
	if m.data[collection] == nil {
		m.data[collection] = make(map[string]map[string]any)
	}
	existing, ok := m.data[collection][id]
	if !ok || !merge {
		existing = make(map[string]any)
		m.data[collection][id] = existing
	}
	applyMerge(existing, fields, now)
}

func (m *Memory) notify(path, id string, fields map[string]any) {
	m.subMu.Lock()
	targets := make([]*Subscription, 0, len(m.subs[path]))
	for sub := range m.subs[path] {
		targets = append(targets, sub)
	}
	m.subMu.Unlock()

	doc := Document{Path: path, ID: id, Fields: fields}
	for _, sub := range targets {
		sub.publish(Update{Doc: doc})
	}
}

type memoryWrite struct {
	path   string
	fields map[string]any
	merge  bool
}

type memoryTx struct {
	store  *Memory
	writes []memoryWrite
}

func (tx *memoryTx) Get(path string) (Document, error) {
	return tx.store.Get(context.Background(), path)
}

func (tx *memoryTx) Set(path string, fields map[string]any, merge bool) {
	tx.writes = append(tx.writes, memoryWrite{path: path, fields: fields, merge: merge})
}

func matchAll(fields map[string]any, preds []Predicate) bool {
	for _, p := range preds {
		if !match(fields, p) {
			return false
		}
	}
	return true
}

func match(fields map[string]any, p Predicate) bool {
	switch p.Op {
	case OpEqual:
		return fields[p.Field] == p.Value
	case OpArrayContains:
		return containsValue(anySlice(fields[p.Field]), p.Value)
	case OpIn:
		return containsValue(anySlice(p.Value), fields[p.Field])
	default:
		return false
	}
}

func deepCopy(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return deepCopy(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = copyValue(e)
		}
		return out
	default:
		return v
	}
}
