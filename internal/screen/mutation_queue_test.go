package screen

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/student-portal/internal/models"
	"github.com/noah-isme/student-portal/internal/store"
	"github.com/noah-isme/student-portal/internal/store/storetest"
	"github.com/noah-isme/student-portal/pkg/jobs"
	appErrors "github.com/noah-isme/student-portal/pkg/errors"
)

type mutationRecorder struct {
	mu        sync.Mutex
	submitted int
	failed    int
	succeeded int
}

func (r *mutationRecorder) MutationSubmitted(kind models.MutationKind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.submitted++
}

func (r *mutationRecorder) MutationSettled(kind models.MutationKind, err error, d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.failed++
		return
	}
	r.succeeded++
}

func settled(t *testing.T, ticket *Ticket) error {
	t.Helper()
	select {
	case <-ticket.Done():
		return ticket.Err()
	case <-time.After(2 * time.Second):
		t.Fatal("mutation did not settle")
		return nil
	}
}

func loadedGroups(t *testing.T, fake *storetest.Fake) *Controller[models.Group] {
	t.Helper()
	fake.Seed(store.CollectionGroups,
		rec("g1", map[string]interface{}{"name": "Chess Club", "members": 12}),
	)
	c := NewController[models.Group](fake)
	done, err := c.Initialize(store.CollectionGroups, models.DecodeGroup)
	require.NoError(t, err)
	wait(t, done)
	require.Equal(t, PhaseLoaded, c.State().Phase)
	return c
}

func setJoined(c *Controller[models.Group], name string, joined bool) {
	c.Update(func(items []models.Group) []models.Group {
		for i := range items {
			if items[i].Name == name {
				items[i].Joined = joined
			}
		}
		return items
	})
}

func toggleRequest(c *Controller[models.Group], name string, joined bool) Request {
	return Request{
		EntityID: name,
		Kind:     models.MutationKindMembershipToggle,
		Payload:  joined,
		Writes: []Write{{
			Collection: store.CollectionMemberships,
			ID:         models.MembershipID("current_user", name),
			Field:      models.FieldJoined,
			Value:      joined,
		}},
		Apply: func() func() {
			setJoined(c, name, joined)
			return func() { setJoined(c, name, !joined) }
		},
	}
}

func TestMutationQueueMembershipRollsBackOnFailure(t *testing.T) {
	fake := storetest.New()
	groups := loadedGroups(t, fake)
	fake.HoldWrites(true)
	obs := &mutationRecorder{}
	q := NewMutationQueue(fake, WithMutationObserver(obs))

	ticket, err := q.Submit(toggleRequest(groups, "Chess Club", true))
	require.NoError(t, err)

	state := groups.State()
	assert.True(t, state.Items[0].Joined)
	assert.Equal(t, 12, state.Items[0].Members)
	assert.True(t, q.InFlight("Chess Club", models.MutationKindMembershipToggle))

	fake.NextWrite(t).Respond(errors.New("permission denied"))
	err = settled(t, ticket)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrMutationFailed))

	state = groups.State()
	assert.False(t, state.Items[0].Joined)
	assert.Equal(t, 12, state.Items[0].Members)
	assert.False(t, q.InFlight("Chess Club", models.MutationKindMembershipToggle))
	assert.Empty(t, q.Pending())

	obs.mu.Lock()
	defer obs.mu.Unlock()
	assert.Equal(t, 1, obs.submitted)
	assert.Equal(t, 1, obs.failed)
}

func TestMutationQueueSuccessClearsPending(t *testing.T) {
	fake := storetest.New()
	groups := loadedGroups(t, fake)
	q := NewMutationQueue(fake)

	ticket, err := q.Submit(toggleRequest(groups, "Chess Club", true))
	require.NoError(t, err)
	require.NoError(t, settled(t, ticket))

	assert.True(t, groups.State().Items[0].Joined)
	assert.Empty(t, q.Pending())

	writes := fake.Writes()
	require.Len(t, writes, 1)
	assert.Equal(t, store.CollectionMemberships, writes[0].Collection)
	assert.Equal(t, "current_user:Chess Club", writes[0].ID)
	assert.Equal(t, true, writes[0].Value)
}

func TestMutationQueueRejectsDuplicateInFlight(t *testing.T) {
	fake := storetest.New()
	groups := loadedGroups(t, fake)
	fake.HoldWrites(true)
	q := NewMutationQueue(fake)

	first, err := q.Submit(toggleRequest(groups, "Chess Club", true))
	require.NoError(t, err)
	held := fake.NextWrite(t)

	_, err = q.Submit(toggleRequest(groups, "Chess Club", false))
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrAlreadyInFlight))
	assert.True(t, groups.State().Items[0].Joined, "rejected submission must not touch local state")
	require.Len(t, q.Pending(), 1)
	assert.Equal(t, first.Mutation.ID, q.Pending()[0].ID)

	held.Respond(nil)
	require.NoError(t, settled(t, first))

	again, err := q.Submit(toggleRequest(groups, "Chess Club", false))
	require.NoError(t, err)
	fake.NextWrite(t).Respond(nil)
	require.NoError(t, settled(t, again))
	assert.False(t, groups.State().Items[0].Joined)
}

func TestMutationQueueDifferentKeysRunConcurrently(t *testing.T) {
	fake := storetest.New()
	fake.HoldWrites(true)
	q := NewMutationQueue(fake)

	a, err := q.Submit(Request{EntityID: "Chess Club", Kind: models.MutationKindMembershipToggle,
		Writes: []Write{{Collection: store.CollectionMemberships, ID: "u:Chess Club", Field: "joined", Value: true}}})
	require.NoError(t, err)
	b, err := q.Submit(Request{EntityID: "Chess Club", Kind: models.MutationKindLanguageChange,
		Writes: []Write{{Collection: store.CollectionStudents, ID: "u", Field: "preferredLanguage", Value: "French"}}})
	require.NoError(t, err)
	assert.Len(t, q.Pending(), 2)

	fake.NextWrite(t).Respond(nil)
	fake.NextWrite(t).Respond(nil)
	require.NoError(t, settled(t, a))
	require.NoError(t, settled(t, b))
}

func TestMutationQueueTimeoutReverts(t *testing.T) {
	fake := storetest.New()
	groups := loadedGroups(t, fake)
	fake.HoldWrites(true)
	q := NewMutationQueue(fake, WithMutationTimeout(30*time.Millisecond))

	ticket, err := q.Submit(toggleRequest(groups, "Chess Club", true))
	require.NoError(t, err)
	fake.NextWrite(t)

	err = settled(t, ticket)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrMutationFailed))
	assert.True(t, errors.Is(err, appErrors.ErrTimeout))
	assert.False(t, groups.State().Items[0].Joined)
}

func TestMutationQueueStopsAtFirstFailedWrite(t *testing.T) {
	fake := storetest.New()
	fake.FailWrite(store.CollectionHelpRequests, errors.New("quota"))
	q := NewMutationQueue(fake)

	ticket, err := q.Submit(Request{
		EntityID: "help",
		Kind:     models.MutationKindHelpSubmit,
		Writes: []Write{
			{Collection: store.CollectionHelpRequests, ID: "r1", Field: "email", Value: "a@b.c"},
			{Collection: store.CollectionHelpRequests, ID: "r1", Field: "message", Value: "hi"},
		},
	})
	require.NoError(t, err)
	require.Error(t, settled(t, ticket))
	assert.Len(t, fake.Writes(), 1)
}

func TestMutationQueueLocalOnlyRequestSucceeds(t *testing.T) {
	q := NewMutationQueue(storetest.New())
	applied := false
	ticket, err := q.Submit(Request{
		EntityID: "help",
		Kind:     models.MutationKindHelpSubmit,
		Apply: func() func() {
			applied = true
			return nil
		},
	})
	require.NoError(t, err)
	require.NoError(t, settled(t, ticket))
	assert.True(t, applied)
}

func TestMutationQueueSurvivesCallerCancellation(t *testing.T) {
	fake := storetest.New()
	fake.HoldWrites(true)
	q := NewMutationQueue(fake)

	ticket, err := q.Submit(Request{EntityID: "current_user", Kind: models.MutationKindLanguageChange,
		Writes: []Write{{Collection: store.CollectionStudents, ID: "current_user", Field: models.FieldPreferredLanguage, Value: "German"}}})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, ticket.Wait(ctx), context.Canceled)

	fake.NextWrite(t).Respond(nil)
	require.NoError(t, settled(t, ticket))

	records, err := fake.MemoryStore.FetchAll(context.Background(), store.CollectionStudents)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "German", records[0].Fields[models.FieldPreferredLanguage])
}

func TestMutationQueueRunsOnDispatcher(t *testing.T) {
	fake := storetest.New()
	pool := jobs.NewQueue("mutations", jobs.RunFunc, jobs.QueueConfig{Workers: 2})
	pool.Start(context.Background())
	defer pool.Stop()
	q := NewMutationQueue(fake, WithDispatcher(pool))

	ticket, err := q.Submit(Request{EntityID: "current_user", Kind: models.MutationKindLanguageChange,
		Writes: []Write{{Collection: store.CollectionStudents, ID: "current_user", Field: models.FieldPreferredLanguage, Value: "Spanish"}}})
	require.NoError(t, err)
	require.NoError(t, settled(t, ticket))
	assert.Len(t, fake.Writes(), 1)
}

func TestMutationQueueRevertsWhenDispatcherRejects(t *testing.T) {
	fake := storetest.New()
	groups := loadedGroups(t, fake)
	pool := jobs.NewQueue("mutations", jobs.RunFunc, jobs.QueueConfig{})
	q := NewMutationQueue(fake, WithDispatcher(pool))

	ticket, err := q.Submit(toggleRequest(groups, "Chess Club", true))
	require.NoError(t, err)
	err = settled(t, ticket)
	assert.True(t, errors.Is(err, appErrors.ErrMutationFailed))
	assert.False(t, groups.State().Items[0].Joined)
	assert.Empty(t, fake.Writes())
}

func TestMutationQueueValidatesRequest(t *testing.T) {
	q := NewMutationQueue(storetest.New())
	_, err := q.Submit(Request{Kind: models.MutationKindHelpSubmit})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestMutationQueueSettlesOnceUnderRetryingDispatcher(t *testing.T) {
	fake := storetest.New()
	groups := loadedGroups(t, fake)
	fake.FailWrite(store.CollectionMemberships, errors.New("denied"))
	pool := jobs.NewQueue("mutations", jobs.RunFunc, jobs.QueueConfig{Workers: 1, MaxRetries: 3, RetryDelay: time.Millisecond})
	pool.Start(context.Background())
	defer pool.Stop()
	rec := &mutationRecorder{}
	q := NewMutationQueue(fake, WithDispatcher(pool), WithMutationObserver(rec))

	ticket, err := q.Submit(toggleRequest(groups, "Chess Club", true))
	require.NoError(t, err)
	err = settled(t, ticket)
	assert.True(t, errors.Is(err, appErrors.ErrMutationFailed))

	time.Sleep(50 * time.Millisecond)
	assert.Len(t, fake.Writes(), 1)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, 1, rec.failed)
	assert.False(t, groups.State().Items[0].Joined)
}

func TestMutationQueueConfirmRunsOnlyOnSuccess(t *testing.T) {
	fake := storetest.New()
	groups := loadedGroups(t, fake)
	q := NewMutationQueue(fake)

	confirmed := make(chan struct{}, 2)
	req := toggleRequest(groups, "Chess Club", true)
	req.Confirm = func() { confirmed <- struct{}{} }
	ticket, err := q.Submit(req)
	require.NoError(t, err)
	require.NoError(t, settled(t, ticket))
	assert.Len(t, confirmed, 1)

	fake.FailWrite(store.CollectionMemberships, errors.New("denied"))
	req = toggleRequest(groups, "Chess Club", false)
	req.Confirm = func() { confirmed <- struct{}{} }
	ticket, err = q.Submit(req)
	require.NoError(t, err)
	require.Error(t, settled(t, ticket))
	assert.Len(t, confirmed, 1)
}
