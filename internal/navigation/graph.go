// Package navigation names the portal screens and validates moves between
// them.
package navigation

import (
	"fmt"
	"strings"

	"github.com/noah-isme/student-portal/internal/store"
	appErrors "github.com/noah-isme/student-portal/pkg/errors"
)

// ScreenID identifies one navigable screen.
type ScreenID string

const (
	ScreenMain          ScreenID = "main"
	ScreenProfile       ScreenID = "profile"
	ScreenApplications  ScreenID = "applications"
	ScreenNotifications ScreenID = "notifications"
	ScreenProgress      ScreenID = "progress"
	ScreenGroups        ScreenID = "groups"
	ScreenSchedule      ScreenID = "schedule"
	ScreenEvents        ScreenID = "events"
	ScreenHelp          ScreenID = "help"
)

// Screen describes one entry of the graph. Collection is empty for screens
// that render without a store read.
type Screen struct {
	ID         ScreenID `json:"id"`
	Title      string   `json:"title"`
	Collection string   `json:"collection,omitempty"`
}

var screens = []Screen{
	{ID: ScreenMain, Title: "Student Portal"},
	{ID: ScreenProfile, Title: "My Profile", Collection: store.CollectionStudents},
	{ID: ScreenApplications, Title: "Applications", Collection: store.CollectionApplications},
	{ID: ScreenNotifications, Title: "Notifications", Collection: store.CollectionNotifications},
	{ID: ScreenProgress, Title: "Progress", Collection: store.CollectionCourses},
	{ID: ScreenGroups, Title: "Groups", Collection: store.CollectionGroups},
	{ID: ScreenSchedule, Title: "My schedule"},
	{ID: ScreenEvents, Title: "Upcoming Events", Collection: store.CollectionEvents},
	{ID: ScreenHelp, Title: "Need help?"},
}

// Graph resolves screen ids. Every screen is reachable from every other one;
// the main menu lists all but itself.
type Graph struct {
	byID map[ScreenID]Screen
}

// NewGraph builds the portal graph.
func NewGraph() *Graph {
	g := &Graph{byID: make(map[ScreenID]Screen, len(screens))}
	for _, s := range screens {
		g.byID[s.ID] = s
	}
	return g
}

// Parse normalises raw into a known ScreenID.
func (g *Graph) Parse(raw string) (ScreenID, error) {
	id := ScreenID(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := g.byID[id]; !ok {
		return "", appErrors.Clone(appErrors.ErrUnknownScreen, fmt.Sprintf("unknown screen %q", raw))
	}
	return id, nil
}

// NavigateTo returns the target screen, or ErrUnknownScreen.
func (g *Graph) NavigateTo(id ScreenID) (Screen, error) {
	s, ok := g.byID[id]
	if !ok {
		return Screen{}, appErrors.Clone(appErrors.ErrUnknownScreen, fmt.Sprintf("unknown screen %q", id))
	}
	return s, nil
}

// Screen looks up a screen without error handling.
func (g *Graph) Screen(id ScreenID) (Screen, bool) {
	s, ok := g.byID[id]
	return s, ok
}

// Menu lists the main menu entries in display order.
func (g *Graph) Menu() []Screen {
	out := make([]Screen, 0, len(screens)-1)
	for _, s := range screens {
		if s.ID != ScreenMain {
			out = append(out, s)
		}
	}
	return out
}
