package screen

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/student-portal/internal/store"
	appErrors "github.com/noah-isme/student-portal/pkg/errors"
)

// DefaultLoadTimeout bounds a load when no timeout is configured.
const DefaultLoadTimeout = 10 * time.Second

// Decoder turns a store record into a screen item.
type Decoder[T any] func(store.Record) (T, error)

// LoadObserver receives the outcome of every load that was not superseded.
type LoadObserver interface {
	ScreenLoaded(collection string, phase Phase, duration time.Duration)
}

type options struct {
	timeout  time.Duration
	logger   *zap.Logger
	observer LoadObserver
	filter    func(store.Record) bool
	enrich    interface{}
	reconcile interface{}
}

// Option configures a Controller.
type Option func(*options)

// WithLoadTimeout bounds how long a load may stay in PhaseLoading.
func WithLoadTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithLogger sets the controller logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithLoadObserver reports load outcomes, typically to metrics.
func WithLoadObserver(obs LoadObserver) Option {
	return func(o *options) {
		o.observer = obs
	}
}

// WithFilter keeps only the records for which keep returns true. The profile
// screen uses it to select the session user's document.
func WithFilter(keep func(store.Record) bool) Option {
	return func(o *options) {
		o.filter = keep
	}
}

// WithEnricher post-processes decoded items inside the load, under the same
// deadline. An enricher error fails the load. The option is ignored by
// controllers whose item type is not T.
func WithEnricher[T any](fn func(ctx context.Context, items []T) ([]T, error)) Option {
	return func(o *options) {
		o.enrich = fn
	}
}

// WithReconciler adjusts the items of a load just before they are published,
// under the controller lock, so that local changes the store may not reflect
// yet survive a reload. started is when the load began reading. fn must not
// call back into the controller. The option is ignored by controllers whose
// item type is not T.
func WithReconciler[T any](fn func(items []T, started time.Time) []T) Option {
	return func(o *options) {
		o.reconcile = fn
	}
}

// Controller owns the read lifecycle of one collection-backed screen.
//
// Every Load bumps a request sequence number; a load's result is applied only
// if no later Load was issued in the meantime, so a slow stale response can
// never overwrite a newer one.
type Controller[T any] struct {
	store store.RemoteStore
	opts  options

	lifetime context.Context
	stop     context.CancelFunc

	enrich    func(context.Context, []T) ([]T, error)
	reconcile func([]T, time.Time) []T

	mu         sync.Mutex
	collection string
	decode     Decoder[T]
	bound      bool
	closed     bool
	seq        uint64
	state      State[T]
	hub        hub
}

var _ View = (*Controller[int])(nil)

// NewController returns an unbound controller in PhaseUninitialized.
func NewController[T any](s store.RemoteStore, opts ...Option) *Controller[T] {
	o := options{timeout: DefaultLoadTimeout, logger: zap.NewNop()}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller[T]{
		store:    s,
		opts:     o,
		lifetime: ctx,
		stop:     cancel,
		state:    State[T]{Phase: PhaseUninitialized},
	}
	if fn, ok := o.enrich.(func(context.Context, []T) ([]T, error)); ok {
		c.enrich = fn
	}
	if fn, ok := o.reconcile.(func([]T, time.Time) []T); ok {
		c.reconcile = fn
	}
	return c
}

// Initialize binds the controller to a collection and record shape and starts
// the first load. The returned channel closes when that load settles.
func (c *Controller[T]) Initialize(collection string, decode Decoder[T]) (<-chan struct{}, error) {
	if collection == "" || decode == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "collection and decoder are required")
	}
	c.mu.Lock()
	if c.bound {
		c.mu.Unlock()
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("controller already bound to %s", c.collection))
	}
	c.collection = collection
	c.decode = decode
	c.bound = true
	c.mu.Unlock()
	return c.Load(), nil
}

// Collection returns the bound collection name.
func (c *Controller[T]) Collection() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.collection
}

// Load moves the controller to PhaseLoading and fetches the collection in the
// background. The returned channel closes once this request has settled,
// whether its result was applied or discarded. Loading an unbound or closed
// controller is a no-op.
func (c *Controller[T]) Load() <-chan struct{} {
	c.mu.Lock()
	if !c.bound || c.closed {
		c.mu.Unlock()
		return settledChan()
	}
	c.seq++
	seq := c.seq
	collection := c.collection
	c.publishLocked(loading[T]())
	ctx, cancel := context.WithTimeout(c.lifetime, c.opts.timeout)
	c.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer cancel()
		start := time.Now()
		items, err := c.fetch(ctx, collection)
		c.settle(seq, collection, items, err, start)
	}()
	return done
}

// State returns the current snapshot without blocking on I/O.
func (c *Controller[T]) State() State[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.copyStateLocked()
}

// Snapshot returns the current state with the item type erased.
func (c *Controller[T]) Snapshot() Snapshot {
	return c.State().Snapshot()
}

// Update applies fn to a copy of the loaded items and publishes the result.
// It reports false, without calling fn, unless the controller is Loaded.
func (c *Controller[T]) Update(fn func(items []T) []T) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.state.Phase != PhaseLoaded {
		return false
	}
	items := fn(append([]T(nil), c.state.Items...))
	c.publishLocked(loaded(items))
	return true
}

// Subscribe streams every state change, starting with the current state. Slow
// readers only ever miss intermediate states, never the latest one. The
// channel closes when unsubscribe is called or the controller closes.
func (c *Controller[T]) Subscribe() (<-chan Snapshot, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return closedWatch(c.copyStateLocked().Snapshot())
	}
	id, ch := c.hub.add(c.copyStateLocked().Snapshot())

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			c.hub.remove(id)
		})
	}
}

// Close tears the controller down: the outstanding load is cancelled and its
// result dropped, watchers are released, and later Loads are no-ops.
func (c *Controller[T]) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.hub.closeAll()
	c.mu.Unlock()
	c.stop()
}

type fetchResult[T any] struct {
	items []T
	err   error
}

// fetch runs the store call on its own goroutine so the timeout holds even
// for stores that ignore context cancellation.
func (c *Controller[T]) fetch(ctx context.Context, collection string) ([]T, error) {
	out := make(chan fetchResult[T], 1)
	go func() {
		items, err := c.fetchAndDecode(ctx, collection)
		out <- fetchResult[T]{items: items, err: err}
	}()
	select {
	case r := <-out:
		return r.items, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Controller[T]) fetchAndDecode(ctx context.Context, collection string) ([]T, error) {
	records, err := c.store.FetchAll(ctx, collection)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	decode := c.decode
	c.mu.Unlock()

	items := make([]T, 0, len(records))
	for _, rec := range records {
		if c.opts.filter != nil && !c.opts.filter(rec) {
			continue
		}
		item, err := decode(rec)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if c.enrich != nil && len(items) > 0 {
		return c.enrich(ctx, items)
	}
	return items, nil
}

func (c *Controller[T]) settle(seq uint64, collection string, items []T, err error, started time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || seq != c.seq {
		c.opts.logger.Debug("discarding superseded load",
			zap.String("collection", collection),
			zap.Uint64("seq", seq),
			zap.Uint64("latest", c.seq),
		)
		return
	}

	var next State[T]
	if err != nil {
		reason := loadFailure(err)
		c.opts.logger.Warn("screen load failed",
			zap.String("collection", collection),
			zap.String("code", reason.Code),
			zap.Error(err),
		)
		next = failed[T](reason)
	} else {
		if c.reconcile != nil {
			items = c.reconcile(items, started)
		}
		next = loaded(items)
	}
	c.publishLocked(next)
	if c.opts.observer != nil {
		c.opts.observer.ScreenLoaded(collection, next.Phase, time.Since(started))
	}
}

func (c *Controller[T]) publishLocked(next State[T]) {
	next.Version = c.state.Version + 1
	c.state = next
	c.hub.broadcast(c.copyStateLocked().Snapshot())
}

func (c *Controller[T]) copyStateLocked() State[T] {
	s := c.state
	if s.Items != nil {
		s.Items = append([]T(nil), s.Items...)
	}
	return s
}

// loadFailure maps any load error onto the read error taxonomy.
func loadFailure(err error) *appErrors.Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return appErrors.WrapAs(appErrors.ErrTimeout, err, "screen load timed out")
	}
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return appErrors.WrapAs(appErrors.ErrStoreUnavailable, err, "")
}
