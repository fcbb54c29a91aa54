package models

import "time"

// MutationKind enumerates user-triggered writes.
type MutationKind string

const (
	MutationKindLanguageChange   MutationKind = "LANGUAGE_CHANGE"
	MutationKindMembershipToggle MutationKind = "MEMBERSHIP_TOGGLE"
	MutationKindHelpSubmit       MutationKind = "HELP_SUBMIT"
)

// PendingMutation is one outstanding write.
type PendingMutation struct {
	ID          string       `json:"id"`
	TargetID    string       `json:"targetId"`
	Kind        MutationKind `json:"kind"`
	Payload     interface{}  `json:"payload,omitempty"`
	SubmittedAt time.Time    `json:"submittedAt"`
}
