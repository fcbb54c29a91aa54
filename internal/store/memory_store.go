package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
)

type memoryCollection struct {
	order []string
	docs  map[string]map[string]interface{}
}

// MemoryStore keeps documents in process memory. It backs development runs and
// tests; documents keep insertion order.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]*memoryCollection
}

var _ RemoteStore = (*MemoryStore)(nil)

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]*memoryCollection)}
}

// FetchAll returns copies of every document in insertion order.
func (s *MemoryStore) FetchAll(ctx context.Context, collection string) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, unavailable(err, "fetch", collection)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	col, ok := s.collections[collection]
	if !ok {
		return []Record{}, nil
	}
	records := make([]Record, 0, len(col.order))
	for _, id := range col.order {
		records = append(records, Record{ID: id, Fields: cloneFields(col.docs[id])})
	}
	return records, nil
}

// WriteField sets a field, creating the document on first write.
func (s *MemoryStore) WriteField(ctx context.Context, collection, id, field string, value interface{}) error {
	if err := validateKey(collection, id, field); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return unavailable(err, "write", collection)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	col := s.collection(collection)
	doc, ok := col.docs[id]
	if !ok {
		doc = make(map[string]interface{})
		col.docs[id] = doc
		col.order = append(col.order, id)
	}
	doc[field] = value
	return nil
}

// Put replaces a whole document. Used for seeding.
func (s *MemoryStore) Put(collection string, record Record) {
	s.mu.Lock()
	defer s.mu.Unlock()

	col := s.collection(collection)
	if _, ok := col.docs[record.ID]; !ok {
		col.order = append(col.order, record.ID)
	}
	col.docs[record.ID] = cloneFields(record.Fields)
}

// Collections lists the collection names currently holding documents.
func (s *MemoryStore) Collections() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.collections))
	for name := range s.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *MemoryStore) collection(name string) *memoryCollection {
	col, ok := s.collections[name]
	if !ok {
		col = &memoryCollection{docs: make(map[string]map[string]interface{})}
		s.collections[name] = col
	}
	return col
}

// Fixture is the on-disk seed format: collection name to ordered documents.
type Fixture map[string][]Record

// LoadFixture reads a JSON fixture file.
func LoadFixture(path string) (Fixture, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var fixture Fixture
	if err := json.Unmarshal(raw, &fixture); err != nil {
		return nil, fmt.Errorf("decode fixture %s: %w", path, err)
	}
	return fixture, nil
}

// Seed writes every fixture document field by field through any RemoteStore,
// so the same fixture can prime memory, SQL and Redis backends. Collections are
// seeded in name order; fields in key order. A document only comes into being
// through a field write, so documents without fields are skipped and not
// counted in the returned total.
func Seed(ctx context.Context, s RemoteStore, fixture Fixture) (int, error) {
	names := make([]string, 0, len(fixture))
	for name := range fixture {
		names = append(names, name)
	}
	sort.Strings(names)

	written := 0
	for _, name := range names {
		for _, record := range fixture[name] {
			if len(record.Fields) == 0 {
				continue
			}
			keys := make([]string, 0, len(record.Fields))
			for key := range record.Fields {
				keys = append(keys, key)
			}
			sort.Strings(keys)
			for _, key := range keys {
				if err := s.WriteField(ctx, name, record.ID, key, record.Fields[key]); err != nil {
					return written, err
				}
			}
			written++
		}
	}
	return written, nil
}

func cloneFields(fields map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}
