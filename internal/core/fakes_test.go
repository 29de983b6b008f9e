package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"
)

// ============================================================================
// Shared fixtures
// ============================================================================

var testFixed = FixedSchema{
	{Name: FieldIDType, Type: StorageText, Required: true},
	{Name: FieldIDValue, Type: StorageText, Required: true},
	{Name: FieldProduct, Type: StorageText, Default: DefaultProduct},
	{Name: FieldIsActive, Type: StorageText, Required: true},
	{Name: FieldValidFrom, Type: StorageDate, Required: true},
	{Name: FieldValidTo, Type: StorageDate, Required: true},
	{Name: "descriptive", Type: StorageJSONB},
	{Name: "version", Type: StorageTimestamptz},
	{Name: "author", Type: StorageText},
}

var testMapping = map[string]string{
	"Typ identyfikatora":    FieldIDType,
	"Identyfikator":         FieldIDValue,
	"Produkt":               FieldProduct,
	"Aktywny":               FieldIsActive,
	"Data obowiązywania od": FieldValidFrom,
	"Data obowiązywania do": FieldValidTo,
}

var canonicalHeader = []string{FieldIDType, FieldIDValue, FieldProduct, FieldIsActive, FieldValidFrom, FieldValidTo}

func taxiSchema() DescriptiveSchema {
	return MustDescriptiveSchema(map[string]string{
		"taxi":    "boolean",
		"seats":   "integer",
		"mileage": "float",
		"color":   "string",
		"checked": "date",
	})
}

// stepClock returns a clock that advances by step on every call.
func stepClock(start time.Time, step time.Duration) func() time.Time {
	var mu sync.Mutex
	now := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t := now
		now = now.Add(step)
		return t
	}
}

// frozenClock always returns the same instant.
func frozenClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// ============================================================================
// memStore: in-memory VersionStore
// ============================================================================

type memStore struct {
	mu       sync.Mutex
	chains   map[BusinessKey][]CanonicalRecord
	failNext error
	applies  int
}

func newMemStore() *memStore {
	return &memStore{chains: make(map[BusinessKey][]CanonicalRecord)}
}

func (m *memStore) Apply(_ context.Context, key BusinessKey, build func(*CanonicalRecord) (CanonicalRecord, error)) (CanonicalRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.applies++
	if err := m.failNext; err != nil {
		m.failNext = nil
		return CanonicalRecord{}, err
	}

	var latest *CanonicalRecord
	if rec, ok := PickLatest(m.chains[key]); ok {
		latest = &rec
	}
	rec, err := build(latest)
	if err != nil {
		return CanonicalRecord{}, err
	}
	m.chains[key] = append(m.chains[key], rec.Clone())
	return rec, nil
}

func (m *memStore) FindLatest(_ context.Context, key BusinessKey) (CanonicalRecord, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := PickLatest(m.chains[key])
	return rec.Clone(), ok, nil
}

func (m *memStore) History(_ context.Context, key BusinessKey) ([]CanonicalRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]CanonicalRecord, len(m.chains[key]))
	for i, r := range m.chains[key] {
		out[i] = r.Clone()
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Version.Before(out[j].Version) })
	return out, nil
}

// ============================================================================
// Capturing sinks
// ============================================================================

type captureSink struct {
	mu     sync.Mutex
	events []Event
}

func (c *captureSink) Emit(_ context.Context, ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func (c *captureSink) filter(action EventAction) []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Event
	for _, ev := range c.events {
		if ev.Action == action {
			out = append(out, ev)
		}
	}
	return out
}

type captureNotifier struct {
	mu      sync.Mutex
	reports []Report
	err     error
}

func (n *captureNotifier) NotifyRejected(_ context.Context, r Report) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reports = append(n.reports, r)
	return n.err
}

// ============================================================================
// fakeLibrary: in-memory document library
// ============================================================================

type fakeLibrary struct {
	mu      sync.Mutex
	files   []SourceFile
	content map[string]string
	moved   map[string]Disposition
	listErr error
}

func newFakeLibrary() *fakeLibrary {
	return &fakeLibrary{content: make(map[string]string), moved: make(map[string]Disposition)}
}

func (l *fakeLibrary) add(name, author, body string) {
	l.files = append(l.files, SourceFile{ID: name, Name: name, Author: author, Size: int64(len(body))})
	l.content[name] = body
}

func (l *fakeLibrary) List(context.Context) ([]SourceFile, error) {
	if l.listErr != nil {
		return nil, l.listErr
	}
	return append([]SourceFile(nil), l.files...), nil
}

func (l *fakeLibrary) Open(_ context.Context, f SourceFile) (io.ReadCloser, error) {
	body, ok := l.content[f.ID]
	if !ok {
		return nil, fmt.Errorf("open %s: not found", f.ID)
	}
	return io.NopCloser(strings.NewReader(body)), nil
}

func (l *fakeLibrary) Move(_ context.Context, f SourceFile, d Disposition) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, dup := l.moved[f.ID]; dup {
		return errors.New("file moved twice")
	}
	l.moved[f.ID] = d
	return nil
}

// pipeReader parses '|' separated test tables: first line is the header.
func pipeReader(_ string, data []byte) (Table, error) {
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) == 0 || len(bytes.TrimSpace(data)) == 0 {
		return Table{}, ErrEmptyFile
	}
	t := Table{Header: strings.Split(lines[0], "|"), HeaderLine: 1}
	for _, l := range lines[1:] {
		t.Rows = append(t.Rows, strings.Split(l, "|"))
	}
	return t, nil
}

// failingSchema is a SchemaProvider that always errors.
type failingSchema struct{ err error }

func (f failingSchema) FetchSchema(context.Context) (DescriptiveSchema, error) {
	return DescriptiveSchema{}, f.err
}

func newTestProcessor(store VersionStore, events EventSink, now func() time.Time) (*FileProcessor, *Engine) {
	engine := NewEngine(store, now)
	return NewFileProcessor(ProcessorConfig{
		Mapping: testMapping,
		Fixed:   testFixed,
		Engine:  engine,
		Events:  events,
		Now:     now,
	}), engine
}
