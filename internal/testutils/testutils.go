// Package testutils holds in-memory collaborators shared by package tests.
package testutils

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/Black-And-White-Club/reverse-chorus/internal/events"
	"github.com/Black-And-White-Club/reverse-chorus/internal/objectstore"
	"github.com/nats-io/nats.go/jetstream"
)

// DiscardLogger returns a logger that drops everything.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ErrBackend stands in for an unreachable NATS server.
var ErrBackend = errors.New("nats unavailable")

// ------------------------
// Fake KeyValue
// ------------------------

// FakeKeyValue is an in-memory bucket with per-key revisions, so
// conditional writes behave like JetStream's.
type FakeKeyValue struct {
	jetstream.KeyValue // Embed to satisfy interface
	mu                 sync.Mutex
	data               map[string]fakeEntry
	seq                uint64
	trace              []string

	PutErr    error
	GetErr    error
	DeleteErr error

	// BeforeWrite runs ahead of every Create and Update, outside the lock.
	// Tests use it to slip a competing write in after a read.
	BeforeWrite func(key string)
}

type fakeEntry struct {
	value    []byte
	revision uint64
}

func NewFakeKeyValue() *FakeKeyValue {
	return &FakeKeyValue{data: make(map[string]fakeEntry)}
}

func (f *FakeKeyValue) Trace() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.trace...)
}

// Set stores raw bytes, bypassing error injection.
func (f *FakeKeyValue) Set(key string, value []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.store(key, value)
}

// Has reports whether key is present.
func (f *FakeKeyValue) Has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.data[key]
	return ok
}

// store writes under the lock and returns the new revision.
func (f *FakeKeyValue) store(key string, value []byte) uint64 {
	f.seq++
	f.data[key] = fakeEntry{value: value, revision: f.seq}
	return f.seq
}

func (f *FakeKeyValue) Put(ctx context.Context, key string, value []byte) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trace = append(f.trace, "Put")
	if f.PutErr != nil {
		return 0, f.PutErr
	}
	return f.store(key, value), nil
}

func (f *FakeKeyValue) Create(ctx context.Context, key string, value []byte, opts ...jetstream.KVCreateOpt) (uint64, error) {
	if f.BeforeWrite != nil {
		f.BeforeWrite(key)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trace = append(f.trace, "Create")
	if f.PutErr != nil {
		return 0, f.PutErr
	}
	if _, ok := f.data[key]; ok {
		return 0, jetstream.ErrKeyExists
	}
	return f.store(key, value), nil
}

func (f *FakeKeyValue) Update(ctx context.Context, key string, value []byte, revision uint64) (uint64, error) {
	if f.BeforeWrite != nil {
		f.BeforeWrite(key)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trace = append(f.trace, "Update")
	if f.PutErr != nil {
		return 0, f.PutErr
	}
	if e, ok := f.data[key]; !ok || e.revision != revision {
		return 0, &jetstream.APIError{ErrorCode: jetstream.JSErrCodeStreamWrongLastSequence, Code: 400}
	}
	return f.store(key, value), nil
}

func (f *FakeKeyValue) Get(ctx context.Context, key string) (jetstream.KeyValueEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trace = append(f.trace, "Get")
	if f.GetErr != nil {
		return nil, f.GetErr
	}
	e, ok := f.data[key]
	if !ok {
		return nil, jetstream.ErrKeyNotFound
	}
	return &FakeKeyValueEntry{value: e.value, key: key, revision: e.revision}, nil
}

func (f *FakeKeyValue) Delete(ctx context.Context, key string, opts ...jetstream.KVDeleteOpt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trace = append(f.trace, "Delete")
	if f.DeleteErr != nil {
		return f.DeleteErr
	}
	if _, ok := f.data[key]; !ok {
		return jetstream.ErrKeyNotFound
	}
	delete(f.data, key)
	return nil
}

func (f *FakeKeyValue) Keys(ctx context.Context, opts ...jetstream.WatchOpt) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trace = append(f.trace, "Keys")
	if f.GetErr != nil {
		return nil, f.GetErr
	}
	if len(f.data) == 0 {
		return nil, jetstream.ErrNoKeysFound
	}
	keys := make([]string, 0, len(f.data))
	for k := range f.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// ListKeysFiltered matches keys against NATS subject filters, where "*"
// stands for one token and ">" for the rest.
func (f *FakeKeyValue) ListKeysFiltered(ctx context.Context, filters ...string) (jetstream.KeyLister, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trace = append(f.trace, "ListKeysFiltered")
	if f.GetErr != nil {
		return nil, f.GetErr
	}
	var keys []string
	for k := range f.data {
		for _, filter := range filters {
			if subjectMatches(filter, k) {
				keys = append(keys, k)
				break
			}
		}
	}
	sort.Strings(keys)
	ch := make(chan string, len(keys))
	for _, k := range keys {
		ch <- k
	}
	close(ch)
	return &fakeKeyLister{keys: ch}, nil
}

func subjectMatches(filter, key string) bool {
	ft := strings.Split(filter, ".")
	kt := strings.Split(key, ".")
	for i, tok := range ft {
		if tok == ">" {
			return len(kt) > i
		}
		if i >= len(kt) || (tok != "*" && tok != kt[i]) {
			return false
		}
	}
	return len(ft) == len(kt)
}

type fakeKeyLister struct {
	keys chan string
}

func (l *fakeKeyLister) Keys() <-chan string { return l.keys }
func (l *fakeKeyLister) Stop() error         { return nil }

type FakeKeyValueEntry struct {
	jetstream.KeyValueEntry
	value    []byte
	key      string
	revision uint64
}

func (f *FakeKeyValueEntry) Value() []byte    { return f.value }
func (f *FakeKeyValueEntry) Key() string      { return f.key }
func (f *FakeKeyValueEntry) Revision() uint64 { return f.revision }

// ------------------------
// Memory object store
// ------------------------

type MemoryObjectStore struct {
	mu   sync.Mutex
	data map[string][]byte

	PutErr error
}

func NewMemoryObjectStore() *MemoryObjectStore {
	return &MemoryObjectStore{data: make(map[string][]byte)}
}

func (m *MemoryObjectStore) Put(ctx context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PutErr != nil {
		return m.PutErr
	}
	m.data[key] = append([]byte(nil), data...)
	return nil
}

func (m *MemoryObjectStore) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.data[key]
	if !ok {
		return nil, objectstore.ErrObjectNotFound
	}
	return data, nil
}

func (m *MemoryObjectStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// Keys lists stored object names in order.
func (m *MemoryObjectStore) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ------------------------
// Recording notifier
// ------------------------

// Notification is one recorded Notify call.
type Notification struct {
	RoomCode string
	Kind     events.Kind
	Payload  any
}

type RecordingNotifier struct {
	mu   sync.Mutex
	sent []Notification

	NotifyErr error
}

func (r *RecordingNotifier) Notify(ctx context.Context, roomCode string, kind events.Kind, payload any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, Notification{RoomCode: roomCode, Kind: kind, Payload: payload})
	return r.NotifyErr
}

// Sent returns every recorded notification.
func (r *RecordingNotifier) Sent() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.sent...)
}

// Kinds returns the recorded kinds in order.
func (r *RecordingNotifier) Kinds() []events.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := make([]events.Kind, 0, len(r.sent))
	for _, n := range r.sent {
		kinds = append(kinds, n.Kind)
	}
	return kinds
}

// Count returns how many notifications of kind were recorded.
func (r *RecordingNotifier) Count(kind events.Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.sent {
		if s.Kind == kind {
			n++
		}
	}
	return n
}
