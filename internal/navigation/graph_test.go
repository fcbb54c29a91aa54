package navigation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/student-portal/internal/store"
	appErrors "github.com/noah-isme/student-portal/pkg/errors"
)

func TestGraphNavigateToKnownScreens(t *testing.T) {
	g := NewGraph()
	for _, id := range []ScreenID{ScreenMain, ScreenProfile, ScreenApplications, ScreenNotifications,
		ScreenProgress, ScreenGroups, ScreenSchedule, ScreenEvents, ScreenHelp} {
		s, err := g.NavigateTo(id)
		require.NoError(t, err, id)
		assert.Equal(t, id, s.ID)
	}

	progress, _ := g.NavigateTo(ScreenProgress)
	assert.Equal(t, store.CollectionCourses, progress.Collection)
	schedule, _ := g.NavigateTo(ScreenSchedule)
	assert.Empty(t, schedule.Collection)
}

func TestGraphRejectsUnknownScreen(t *testing.T) {
	g := NewGraph()
	_, err := g.NavigateTo("settings")
	assert.True(t, errors.Is(err, appErrors.ErrUnknownScreen))

	_, err = g.Parse("  ")
	assert.True(t, errors.Is(err, appErrors.ErrUnknownScreen))

	id, err := g.Parse(" Groups ")
	require.NoError(t, err)
	assert.Equal(t, ScreenGroups, id)
}

func TestGraphMenuOrder(t *testing.T) {
	menu := NewGraph().Menu()
	titles := make([]string, 0, len(menu))
	for _, s := range menu {
		titles = append(titles, s.Title)
	}
	assert.Equal(t, []string{"My Profile", "Applications", "Notifications", "Progress", "Groups",
		"My schedule", "Upcoming Events", "Need help?"}, titles)
}
