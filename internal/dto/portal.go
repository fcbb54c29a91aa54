package dto

import (
	"time"

	"github.com/noah-isme/student-portal/internal/models"
	"github.com/noah-isme/student-portal/internal/navigation"
	"github.com/noah-isme/student-portal/internal/screen"
)

// SessionResponse describes a session and the screen it currently shows.
type SessionResponse struct {
	ID        string              `json:"id"`
	Screen    navigation.ScreenID `json:"screen"`
	Title     string              `json:"title"`
	State     screen.Snapshot     `json:"state"`
	ExpiresAt time.Time           `json:"expiresAt"`
}

// NavigateRequest moves a session to another screen.
type NavigateRequest struct {
	Screen string `json:"screen" binding:"required"`
}

// LanguageChangeRequest sets the profile's preferred language.
type LanguageChangeRequest struct {
	Language string `json:"language" validate:"required,portal_language"`
}

// MembershipRequest sets the joined flag explicitly; nil toggles it.
type MembershipRequest struct {
	Joined *bool `json:"joined"`
}

// MutationResponse reports an accepted mutation and the optimistic state.
type MutationResponse struct {
	Mutation models.PendingMutation `json:"mutation"`
	State    screen.Snapshot        `json:"state"`
	Settled  bool                   `json:"settled"`
}

// ExportResponse points at a rendered export.
type ExportResponse struct {
	ID        string    `json:"id"`
	Format    string    `json:"format"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// ScreenEvent is one state change pushed to a session watcher.
type ScreenEvent struct {
	Screen navigation.ScreenID `json:"screen"`
	State  screen.Snapshot     `json:"state"`
}
