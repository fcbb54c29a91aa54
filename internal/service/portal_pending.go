package service

import (
	"sync"
	"time"
)

// pendingValues remembers the local outcome of a session's mutations that a
// fresh load could otherwise lose: values still being written, and values
// whose write finished after that load began reading.
type pendingValues struct {
	mu      sync.Mutex
	entries map[string]pendingValue
}

type pendingValue struct {
	value     interface{}
	confirmed bool
	at        time.Time
}

func newPendingValues() *pendingValues {
	return &pendingValues{entries: make(map[string]pendingValue)}
}

// hold records value under key and returns the function restoring whatever
// was held before.
func (v *pendingValues) hold(key string, value interface{}) (restore func()) {
	v.mu.Lock()
	defer v.mu.Unlock()
	prev, had := v.entries[key]
	v.entries[key] = pendingValue{value: value}
	return func() {
		v.mu.Lock()
		defer v.mu.Unlock()
		if had {
			v.entries[key] = prev
			return
		}
		delete(v.entries, key)
	}
}

// confirm marks the value held under key as written now.
func (v *pendingValues) confirm(key string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if e, ok := v.entries[key]; ok {
		e.confirmed = true
		e.at = time.Now()
		v.entries[key] = e
	}
}

// lookup returns the value a load that began reading at started must show
// for key. A value confirmed before that instant is already in the store and
// is forgotten.
func (v *pendingValues) lookup(key string, started time.Time) (interface{}, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	e, ok := v.entries[key]
	if !ok {
		return nil, false
	}
	if e.confirmed && e.at.Before(started) {
		delete(v.entries, key)
		return nil, false
	}
	return e.value, true
}

// languageKey holds the profile language change.
const languageKey = "language"

func membershipKey(group string) string { return "membership:" + group }
