package screen

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/student-portal/internal/models"
	"github.com/noah-isme/student-portal/internal/store"
	"github.com/noah-isme/student-portal/pkg/jobs"
	appErrors "github.com/noah-isme/student-portal/pkg/errors"
)

// DefaultMutationTimeout bounds a mutation's writes when none is configured.
const DefaultMutationTimeout = 10 * time.Second

// Write is one field write issued for a mutation.
type Write struct {
	Collection string
	ID         string
	Field      string
	Value      interface{}
}

// Request describes a user-triggered change.
//
// Apply, when set, performs the optimistic local change and returns the
// function that restores the pre-submission value. Confirm, when set, runs
// once every write has succeeded, before the ticket settles. Writes run in
// order; a request without writes is local-only and succeeds as soon as it is
// applied.
type Request struct {
	EntityID string
	Kind     models.MutationKind
	Payload  interface{}
	Writes   []Write
	Apply    func() (revert func())
	Confirm  func()
}

// Ticket tracks one submitted mutation until it settles.
type Ticket struct {
	Mutation models.PendingMutation

	done    chan struct{}
	err     error
	settled sync.Once
}

// Done closes once the mutation has settled.
func (t *Ticket) Done() <-chan struct{} {
	return t.done
}

// Err is the settlement error; it is only meaningful after Done closes. A
// failure is always ErrMutationFailed wrapping the cause.
func (t *Ticket) Err() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}

// Wait blocks until the mutation settles or ctx ends. When ctx ends first the
// mutation keeps running and ctx.Err is returned.
func (t *Ticket) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Enqueuer hands work to a background dispatcher such as jobs.Queue.
type Enqueuer interface {
	Enqueue(job jobs.Job) error
}

// MutationObserver receives mutation lifecycle events.
type MutationObserver interface {
	MutationSubmitted(kind models.MutationKind)
	MutationSettled(kind models.MutationKind, err error, duration time.Duration)
}

type mutationKey struct {
	entityID string
	kind     models.MutationKind
}

// MutationQueue admits at most one in-flight mutation per (entity, kind),
// applies it optimistically, issues its writes in the background and rolls
// the local change back if any write fails.
type MutationQueue struct {
	store      store.RemoteStore
	dispatcher Enqueuer
	timeout    time.Duration
	logger     *zap.Logger
	observer   MutationObserver
	now        func() time.Time

	mu      sync.Mutex
	pending map[mutationKey]*Ticket
}

// MutationOption configures a MutationQueue.
type MutationOption func(*MutationQueue)

// WithDispatcher runs writes on a shared worker pool instead of a goroutine
// per mutation.
func WithDispatcher(d Enqueuer) MutationOption {
	return func(q *MutationQueue) {
		q.dispatcher = d
	}
}

// WithMutationTimeout bounds the total time of a mutation's writes.
func WithMutationTimeout(d time.Duration) MutationOption {
	return func(q *MutationQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

// WithMutationLogger sets the queue logger.
func WithMutationLogger(l *zap.Logger) MutationOption {
	return func(q *MutationQueue) {
		if l != nil {
			q.logger = l
		}
	}
}

// WithMutationObserver reports submissions and settlements.
func WithMutationObserver(obs MutationObserver) MutationOption {
	return func(q *MutationQueue) {
		q.observer = obs
	}
}

// NewMutationQueue constructs a queue writing through s.
func NewMutationQueue(s store.RemoteStore, opts ...MutationOption) *MutationQueue {
	q := &MutationQueue{
		store:   s,
		timeout: DefaultMutationTimeout,
		logger:  zap.NewNop(),
		now:     func() time.Time { return time.Now().UTC() },
		pending: make(map[mutationKey]*Ticket),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(q)
		}
	}
	return q
}

// Submit admits a mutation. It fails with ErrAlreadyInFlight, leaving the
// outstanding mutation untouched, when one with the same entity and kind has
// not settled yet. Otherwise the optimistic change is applied before Submit
// returns and the writes run in the background.
func (q *MutationQueue) Submit(req Request) (*Ticket, error) {
	if req.EntityID == "" || req.Kind == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "entity and kind are required")
	}
	key := mutationKey{entityID: req.EntityID, kind: req.Kind}

	q.mu.Lock()
	if _, busy := q.pending[key]; busy {
		q.mu.Unlock()
		return nil, appErrors.Clone(appErrors.ErrAlreadyInFlight,
			fmt.Sprintf("%s for %s is already in flight", req.Kind, req.EntityID))
	}
	ticket := &Ticket{
		Mutation: models.PendingMutation{
			ID:          uuid.NewString(),
			TargetID:    req.EntityID,
			Kind:        req.Kind,
			Payload:     req.Payload,
			SubmittedAt: q.now(),
		},
		done: make(chan struct{}),
	}
	q.pending[key] = ticket
	q.mu.Unlock()

	if q.observer != nil {
		q.observer.MutationSubmitted(req.Kind)
	}

	var revert func()
	if req.Apply != nil {
		revert = req.Apply()
	}

	// The outcome travels on the ticket, so run never reports failure to the
	// dispatcher and a retrying dispatcher cannot settle a ticket twice.
	run := func(ctx context.Context) error {
		q.settle(key, ticket, revert, req.Confirm, q.execute(ctx, req.Writes))
		return nil
	}

	if q.dispatcher == nil {
		go func() { _ = run(context.Background()) }()
		return ticket, nil
	}
	job := jobs.Job{ID: ticket.Mutation.ID, Type: string(req.Kind), Payload: jobs.Func(run)}
	if err := q.dispatcher.Enqueue(job); err != nil {
		q.settle(key, ticket, revert, nil, err)
	}
	return ticket, nil
}

// InFlight reports whether a mutation for (entityID, kind) is outstanding.
func (q *MutationQueue) InFlight(entityID string, kind models.MutationKind) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.pending[mutationKey{entityID: entityID, kind: kind}]
	return ok
}

// Pending lists outstanding mutations, oldest first.
func (q *MutationQueue) Pending() []models.PendingMutation {
	q.mu.Lock()
	out := make([]models.PendingMutation, 0, len(q.pending))
	for _, t := range q.pending {
		out = append(out, t.Mutation)
	}
	q.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		return out[i].SubmittedAt.Before(out[j].SubmittedAt)
	})
	return out
}

// execute issues writes in order under one deadline. The deadline holds even
// if the store ignores cancellation.
func (q *MutationQueue) execute(parent context.Context, writes []Write) error {
	if len(writes) == 0 {
		return nil
	}
	// The dispatcher's context only ends on shutdown; the writes get their own
	// deadline either way.
	ctx, cancel := context.WithTimeout(parent, q.timeout)
	defer cancel()

	for _, w := range writes {
		errCh := make(chan error, 1)
		go func(w Write) {
			errCh <- q.store.WriteField(ctx, w.Collection, w.ID, w.Field, w.Value)
		}(w)
		select {
		case err := <-errCh:
			if err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (q *MutationQueue) settle(key mutationKey, ticket *Ticket, revert, confirm func(), cause error) {
	ticket.settled.Do(func() { q.settleOnce(key, ticket, revert, confirm, cause) })
}

func (q *MutationQueue) settleOnce(key mutationKey, ticket *Ticket, revert, confirm func(), cause error) {
	var err error
	if cause == nil && confirm != nil {
		confirm()
	}
	if cause != nil {
		if revert != nil {
			revert()
		}
		err = mutationFailure(cause)
		q.logger.Warn("mutation failed, local change reverted",
			zap.String("mutation_id", ticket.Mutation.ID),
			zap.String("kind", string(key.kind)),
			zap.String("entity_id", key.entityID),
			zap.Error(cause),
		)
	}

	q.mu.Lock()
	if q.pending[key] == ticket {
		delete(q.pending, key)
	}
	q.mu.Unlock()

	ticket.err = err
	close(ticket.done)

	if q.observer != nil {
		q.observer.MutationSettled(key.kind, err, q.now().Sub(ticket.Mutation.SubmittedAt))
	}
}

func mutationFailure(cause error) *appErrors.Error {
	if errors.Is(cause, context.DeadlineExceeded) {
		cause = appErrors.WrapAs(appErrors.ErrTimeout, cause, "mutation timed out")
	}
	return appErrors.WrapAs(appErrors.ErrMutationFailed, cause, "")
}
