// Package screen implements the data lifecycle shared by every portal screen:
// a controller that loads one collection into a four-state view model, and a
// mutation queue that applies user changes optimistically and rolls them back
// when the store rejects them.
package screen

import (
	appErrors "github.com/noah-isme/student-portal/pkg/errors"
)

// Phase is the variant of a screen state.
type Phase string

const (
	PhaseUninitialized Phase = "UNINITIALIZED"
	PhaseLoading       Phase = "LOADING"
	PhaseLoaded        Phase = "LOADED"
	PhaseEmpty         Phase = "EMPTY"
	PhaseFailed        Phase = "FAILED"
)

// Terminal reports whether the phase ends a load.
func (p Phase) Terminal() bool {
	return p == PhaseLoaded || p == PhaseEmpty || p == PhaseFailed
}

// State is one immutable snapshot of a controller. Items is set only when
// Phase is PhaseLoaded and Reason only when Phase is PhaseFailed. Version
// increases with every published change.
type State[T any] struct {
	Phase   Phase
	Items   []T
	Reason  *appErrors.Error
	Version uint64
}

// Snapshot is the type-erased form of State used by transports.
type Snapshot struct {
	Phase   Phase            `json:"phase"`
	Items   interface{}      `json:"items,omitempty"`
	Error   *appErrors.Error `json:"error,omitempty"`
	Version uint64           `json:"version"`
}

// Snapshot erases the item type.
func (s State[T]) Snapshot() Snapshot {
	snap := Snapshot{Phase: s.Phase, Error: s.Reason, Version: s.Version}
	if s.Phase == PhaseLoaded {
		snap.Items = s.Items
	}
	return snap
}

func loading[T any]() State[T] {
	return State[T]{Phase: PhaseLoading}
}

func loaded[T any](items []T) State[T] {
	if len(items) == 0 {
		return State[T]{Phase: PhaseEmpty}
	}
	return State[T]{Phase: PhaseLoaded, Items: items}
}

func failed[T any](reason *appErrors.Error) State[T] {
	return State[T]{Phase: PhaseFailed, Reason: reason}
}
