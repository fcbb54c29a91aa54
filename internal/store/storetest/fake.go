// Package storetest provides a scriptable RemoteStore for tests that need to
// control failures and the completion order of store calls.
package storetest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/noah-isme/student-portal/internal/store"
)

// Call records one store invocation.
type Call struct {
	Op         string
	Collection string
	ID         string
	Field      string
	Value      interface{}
}

type fetchReply struct {
	records []store.Record
	err     error
}

// HeldFetch is a FetchAll call parked until the test responds.
type HeldFetch struct {
	Collection string
	reply      chan fetchReply
}

// Respond completes the held call.
func (h *HeldFetch) Respond(records []store.Record, err error) {
	h.reply <- fetchReply{records: records, err: err}
}

// HeldWrite is a WriteField call parked until the test responds.
type HeldWrite struct {
	Call
	reply chan error
}

// Respond completes the held call.
func (h *HeldWrite) Respond(err error) {
	h.reply <- err
}

// Fake serves data from a MemoryStore and lets tests inject errors or hold
// calls open.
type Fake struct {
	*store.MemoryStore

	mu          sync.Mutex
	fetchErr    map[string]error
	writeErr    map[string]error
	holdFetches bool
	holdWrites  bool
	calls       []Call

	heldFetches chan *HeldFetch
	heldWrites  chan *HeldWrite
}

var _ store.RemoteStore = (*Fake)(nil)

// New returns an empty fake.
func New() *Fake {
	return &Fake{
		MemoryStore: store.NewMemoryStore(),
		fetchErr:    make(map[string]error),
		writeErr:    make(map[string]error),
		heldFetches: make(chan *HeldFetch, 32),
		heldWrites:  make(chan *HeldWrite, 32),
	}
}

// Seed puts documents into a collection in order.
func (f *Fake) Seed(collection string, records ...store.Record) *Fake {
	for _, r := range records {
		f.Put(collection, r)
	}
	return f
}

// FailFetch makes FetchAll on collection return err (nil clears it).
func (f *Fake) FailFetch(collection string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchErr[collection] = err
}

// FailWrite makes WriteField on collection return err (nil clears it).
func (f *Fake) FailWrite(collection string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writeErr[collection] = err
}

// HoldFetches parks every subsequent FetchAll until responded to.
func (f *Fake) HoldFetches(hold bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.holdFetches = hold
}

// HoldWrites parks every subsequent WriteField until responded to.
func (f *Fake) HoldWrites(hold bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.holdWrites = hold
}

// NextFetch waits for the next held FetchAll.
func (f *Fake) NextFetch(t testing.TB) *HeldFetch {
	t.Helper()
	select {
	case h := <-f.heldFetches:
		return h
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for held fetch")
		return nil
	}
}

// NextWrite waits for the next held WriteField.
func (f *Fake) NextWrite(t testing.TB) *HeldWrite {
	t.Helper()
	select {
	case h := <-f.heldWrites:
		return h
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for held write")
		return nil
	}
}

// Calls returns a copy of the recorded calls.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// Writes returns only the recorded WriteField calls.
func (f *Fake) Writes() []Call {
	var writes []Call
	for _, c := range f.Calls() {
		if c.Op == "write" {
			writes = append(writes, c)
		}
	}
	return writes
}

// FetchAll implements store.RemoteStore.
func (f *Fake) FetchAll(ctx context.Context, collection string) ([]store.Record, error) {
	f.mu.Lock()
	f.calls = append(f.calls, Call{Op: "fetch", Collection: collection})
	err := f.fetchErr[collection]
	hold := f.holdFetches
	f.mu.Unlock()

	if hold {
		held := &HeldFetch{Collection: collection, reply: make(chan fetchReply, 1)}
		f.heldFetches <- held
		select {
		case r := <-held.reply:
			return r.records, r.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return f.MemoryStore.FetchAll(ctx, collection)
}

// WriteField implements store.RemoteStore. Successful writes land in the
// backing memory store.
func (f *Fake) WriteField(ctx context.Context, collection, id, field string, value interface{}) error {
	call := Call{Op: "write", Collection: collection, ID: id, Field: field, Value: value}
	f.mu.Lock()
	f.calls = append(f.calls, call)
	err := f.writeErr[collection]
	hold := f.holdWrites
	f.mu.Unlock()

	if hold {
		held := &HeldWrite{Call: call, reply: make(chan error, 1)}
		f.heldWrites <- held
		select {
		case err = <-held.reply:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err != nil {
		return err
	}
	return f.MemoryStore.WriteField(ctx, collection, id, field, value)
}
