package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/student-portal/internal/dto"
	"github.com/noah-isme/student-portal/internal/models"
	"github.com/noah-isme/student-portal/internal/navigation"
	"github.com/noah-isme/student-portal/internal/screen"
	"github.com/noah-isme/student-portal/internal/store"
	appErrors "github.com/noah-isme/student-portal/pkg/errors"
)

type mutationSubmitter interface {
	Submit(req screen.Request) (*screen.Ticket, error)
}

// PortalObserver is told how many sessions are open after every change and
// about mutations refused at submission.
type PortalObserver interface {
	SessionsActive(n int)
	MutationRejected(kind models.MutationKind, err error)
}

// PortalConfig tunes sessions and screens.
type PortalConfig struct {
	UserID              string
	ScreenLoadTimeout   time.Duration
	PersistMembership   bool
	PersistHelpRequests bool
	SessionTTL          time.Duration
}

// PortalService owns client sessions. Each session shows exactly one screen
// at a time; navigating tears the previous screen down, cancelling its load,
// while mutations it submitted keep running to completion.
type PortalService struct {
	store     store.RemoteStore
	mutations mutationSubmitter
	graph     *navigation.Graph
	validator *validator.Validate
	loads     screen.LoadObserver
	observer  PortalObserver
	logger    *zap.Logger
	cfg       PortalConfig
	now       func() time.Time

	mu       sync.Mutex
	sessions map[string]*session
}

// PortalOption configures the service.
type PortalOption func(*PortalService)

// WithPortalLogger sets the service logger.
func WithPortalLogger(l *zap.Logger) PortalOption {
	return func(p *PortalService) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithScreenLoadObserver forwards every screen load outcome.
func WithScreenLoadObserver(obs screen.LoadObserver) PortalOption {
	return func(p *PortalService) {
		p.loads = obs
	}
}

// WithPortalObserver reports session counts and refused mutations.
func WithPortalObserver(obs PortalObserver) PortalOption {
	return func(p *PortalService) {
		p.observer = obs
	}
}

// WithPortalValidator overrides the request validator.
func WithPortalValidator(v *validator.Validate) PortalOption {
	return func(p *PortalService) {
		if v != nil {
			p.validator = v
		}
	}
}

// NewPortalService constructs the service.
func NewPortalService(s store.RemoteStore, mutations mutationSubmitter, cfg PortalConfig, opts ...PortalOption) *PortalService {
	if strings.TrimSpace(cfg.UserID) == "" {
		cfg.UserID = "current_user"
	}
	p := &PortalService{
		store:     s,
		mutations: mutations,
		graph:     navigation.NewGraph(),
		validator: validator.New(),
		logger:    zap.NewNop(),
		cfg:       cfg,
		now:       time.Now,
		sessions:  make(map[string]*session),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	p.validator.RegisterValidation("portal_language", func(fl validator.FieldLevel) bool { //nolint:errcheck
		return models.IsSupportedLanguage(fl.Field().String())
	})
	return p
}

type session struct {
	id      string
	expires atomic.Int64

	mu      sync.Mutex
	closed  bool
	current navigation.Screen
	view    screen.View
	pending <-chan struct{}

	// profile and groups point at the live controller of that screen, if
	// shown, so that settling mutations reach it after navigation.
	profile atomic.Pointer[screen.Controller[models.Profile]]
	groups  atomic.Pointer[screen.Controller[models.Group]]
	help    *screen.Static[models.HelpForm]
	values  *pendingValues

	flagsMu sync.Mutex
	joined  map[string]bool
}

func (s *session) expiresAt() time.Time {
	return time.Unix(0, s.expires.Load()).UTC()
}

func (s *session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if s.view != nil {
		s.view.Close()
	}
}

func (s *session) localJoined(group string) bool {
	s.flagsMu.Lock()
	defer s.flagsMu.Unlock()
	return s.joined[group]
}

func (s *session) setLocalJoined(group string, joined bool) {
	s.flagsMu.Lock()
	defer s.flagsMu.Unlock()
	s.joined[group] = joined
}

// CreateSession opens a session on the main menu.
func (p *PortalService) CreateSession(ctx context.Context) (*dto.SessionResponse, error) {
	sess := &session{id: uuid.NewString(), joined: make(map[string]bool), values: newPendingValues()}
	sess.expires.Store(p.now().Add(p.cfg.SessionTTL).UnixNano())
	main, err := p.graph.NavigateTo(navigation.ScreenMain)
	if err != nil {
		return nil, err
	}
	if err := p.show(sess, main); err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.sessions[sess.id] = sess
	n := len(p.sessions)
	p.mu.Unlock()
	p.reportSessions(n)

	p.logger.Info("session opened", zap.String("session_id", sess.id))
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return p.describe(sess), nil
}

// CloseSession tears a session and its screen down.
func (p *PortalService) CloseSession(ctx context.Context, id string) error {
	p.mu.Lock()
	sess, ok := p.sessions[id]
	delete(p.sessions, id)
	n := len(p.sessions)
	p.mu.Unlock()
	if !ok {
		return sessionNotFound(id)
	}
	sess.close()
	p.reportSessions(n)
	p.logger.Info("session closed", zap.String("session_id", id))
	return nil
}

// Navigate moves the session to raw, which must name a known screen.
func (p *PortalService) Navigate(ctx context.Context, id, raw string) (*dto.SessionResponse, error) {
	screenID, err := p.graph.Parse(raw)
	if err != nil {
		return nil, err
	}
	target, err := p.graph.NavigateTo(screenID)
	if err != nil {
		return nil, err
	}
	sess, err := p.lookup(id)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.closed {
		return nil, sessionNotFound(id)
	}
	from := sess.current.ID
	if err := p.show(sess, target); err != nil {
		return nil, err
	}
	p.logger.Debug("navigated",
		zap.String("session_id", id),
		zap.String("from", string(from)),
		zap.String("to", string(target.ID)),
	)
	return p.describe(sess), nil
}

// Screen returns the session's current screen. With wait set it first blocks
// until the latest load settles or ctx ends.
func (p *PortalService) Screen(ctx context.Context, id string, wait bool) (*dto.SessionResponse, error) {
	sess, err := p.lookup(id)
	if err != nil {
		return nil, err
	}
	if wait {
		sess.mu.Lock()
		pending := sess.pending
		sess.mu.Unlock()
		if pending != nil {
			select {
			case <-pending:
			case <-ctx.Done():
			}
		}
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.closed {
		return nil, sessionNotFound(id)
	}
	return p.describe(sess), nil
}

// Reload issues a fresh load of the current screen. Results of earlier loads
// still in flight are discarded when they arrive.
func (p *PortalService) Reload(ctx context.Context, id string) (*dto.SessionResponse, error) {
	sess, err := p.lookup(id)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.closed {
		return nil, sessionNotFound(id)
	}
	sess.pending = sess.view.Load()
	return p.describe(sess), nil
}

// Watch streams every state change of whatever screen the session shows,
// following it across navigation. The channel closes when stop is called or
// the session ends.
func (p *PortalService) Watch(ctx context.Context, id string) (<-chan dto.ScreenEvent, func(), error) {
	sess, err := p.lookup(id)
	if err != nil {
		return nil, nil, err
	}
	out := make(chan dto.ScreenEvent, 4)
	done := make(chan struct{})
	var once sync.Once
	stop := func() { once.Do(func() { close(done) }) }

	go func() {
		defer close(out)
		for {
			sess.mu.Lock()
			if sess.closed {
				sess.mu.Unlock()
				return
			}
			screenID := sess.current.ID
			updates, unsubscribe := sess.view.Subscribe()
			sess.mu.Unlock()

			if !forward(screenID, updates, out, done) {
				unsubscribe()
				return
			}
			unsubscribe()
		}
	}()
	return out, stop, nil
}

// forward relays updates until the view closes (true) or done fires (false).
func forward(id navigation.ScreenID, updates <-chan screen.Snapshot, out chan<- dto.ScreenEvent, done <-chan struct{}) bool {
	for {
		select {
		case snap, ok := <-updates:
			if !ok {
				return true
			}
			select {
			case out <- dto.ScreenEvent{Screen: id, State: snap}:
			case <-done:
				return false
			}
		case <-done:
			return false
		}
	}
}

// CurrentItems returns the title and items of the session's screen. The
// screen must be Loaded.
func (p *PortalService) CurrentItems(ctx context.Context, id string) (navigation.Screen, interface{}, error) {
	sess, err := p.lookup(id)
	if err != nil {
		return navigation.Screen{}, nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.closed {
		return navigation.Screen{}, nil, sessionNotFound(id)
	}
	snap := sess.view.Snapshot()
	if snap.Phase != screen.PhaseLoaded {
		return navigation.Screen{}, nil, appErrors.Clone(appErrors.ErrPreconditionFailed,
			fmt.Sprintf("screen %s is %s, not LOADED", sess.current.ID, snap.Phase))
	}
	return sess.current, snap.Items, nil
}

// ActiveSessions counts open sessions.
func (p *PortalService) ActiveSessions() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sessions)
}

// Sweep closes sessions idle past their TTL and returns how many it closed.
func (p *PortalService) Sweep() int {
	if p.cfg.SessionTTL <= 0 {
		return 0
	}
	now := p.now()
	var expired []*session
	p.mu.Lock()
	for id, sess := range p.sessions {
		if now.After(sess.expiresAt()) {
			delete(p.sessions, id)
			expired = append(expired, sess)
		}
	}
	n := len(p.sessions)
	p.mu.Unlock()

	for _, sess := range expired {
		sess.close()
		p.logger.Info("session expired", zap.String("session_id", sess.id))
	}
	if len(expired) > 0 {
		p.reportSessions(n)
	}
	return len(expired)
}

// RunJanitor sweeps expired sessions until ctx ends.
func (p *PortalService) RunJanitor(ctx context.Context) {
	if p.cfg.SessionTTL <= 0 {
		return
	}
	interval := p.cfg.SessionTTL / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Sweep()
		}
	}
}

// Close ends every session.
func (p *PortalService) Close() {
	p.mu.Lock()
	sessions := p.sessions
	p.sessions = make(map[string]*session)
	p.mu.Unlock()
	for _, sess := range sessions {
		sess.close()
	}
	p.reportSessions(0)
}

func (p *PortalService) lookup(id string) (*session, error) {
	now := p.now()
	p.mu.Lock()
	sess, ok := p.sessions[id]
	if ok && p.cfg.SessionTTL > 0 && now.After(sess.expiresAt()) {
		delete(p.sessions, id)
		ok = false
		defer sess.close()
	}
	p.mu.Unlock()
	if !ok {
		return nil, sessionNotFound(id)
	}
	if p.cfg.SessionTTL > 0 {
		sess.expires.Store(now.Add(p.cfg.SessionTTL).UnixNano())
	}
	return sess, nil
}

// show replaces the session's screen with target. Caller holds sess.mu.
func (p *PortalService) show(sess *session, target navigation.Screen) error {
	profile, groups, help := sess.profile.Load(), sess.groups.Load(), sess.help
	view, pending, err := p.open(sess, target)
	if err != nil {
		sess.profile.Store(profile)
		sess.groups.Store(groups)
		sess.help = help
		return err
	}
	if sess.view != nil {
		sess.view.Close()
	}
	sess.current = target
	sess.view = view
	sess.pending = pending
	return nil
}

// open builds the view for target. Caller holds sess.mu.
func (p *PortalService) open(sess *session, target navigation.Screen) (screen.View, <-chan struct{}, error) {
	sess.profile.Store(nil)
	sess.groups.Store(nil)
	sess.help = nil
	opts := p.controllerOptions(target)

	switch target.ID {
	case navigation.ScreenMain:
		v := screen.NewStatic(p.graph.Menu())
		return v, v.Load(), nil
	case navigation.ScreenSchedule:
		v := screen.NewStatic(models.WeeklySchedule())
		return v, v.Load(), nil
	case navigation.ScreenHelp:
		v := screen.NewStatic([]models.HelpForm{{}})
		sess.help = v
		return v, v.Load(), nil
	case navigation.ScreenProfile:
		userID := p.cfg.UserID
		opts = append(opts,
			screen.WithFilter(func(r store.Record) bool { return r.ID == userID }),
			screen.WithReconciler(reconcileProfile(sess.values)),
		)
		c, done, err := openController[models.Profile](p.store, target.Collection, models.DecodeProfile, opts)
		if err != nil {
			return nil, nil, err
		}
		sess.profile.Store(c)
		return c, done, nil
	case navigation.ScreenApplications:
		return openView[models.Application](p.store, target.Collection, models.DecodeApplication, opts)
	case navigation.ScreenNotifications:
		return openView[models.Notification](p.store, target.Collection, models.DecodeNotification, opts)
	case navigation.ScreenProgress:
		return openView[models.Course](p.store, target.Collection, models.DecodeCourse, opts)
	case navigation.ScreenEvents:
		return openView[models.Event](p.store, target.Collection, models.DecodeEvent, opts)
	case navigation.ScreenGroups:
		opts = append(opts,
			screen.WithEnricher(p.hydrateMembership(sess)),
			screen.WithReconciler(reconcileGroups(sess.values)),
		)
		c, done, err := openController[models.Group](p.store, target.Collection, models.DecodeGroup, opts)
		if err != nil {
			return nil, nil, err
		}
		sess.groups.Store(c)
		return c, done, nil
	default:
		return nil, nil, appErrors.Clone(appErrors.ErrUnknownScreen, fmt.Sprintf("unknown screen %q", target.ID))
	}
}

func openController[T any](s store.RemoteStore, collection string, decode screen.Decoder[T], opts []screen.Option) (*screen.Controller[T], <-chan struct{}, error) {
	c := screen.NewController[T](s, opts...)
	done, err := c.Initialize(collection, decode)
	if err != nil {
		c.Close()
		return nil, nil, err
	}
	return c, done, nil
}

func openView[T any](s store.RemoteStore, collection string, decode screen.Decoder[T], opts []screen.Option) (screen.View, <-chan struct{}, error) {
	c, done, err := openController(s, collection, decode, opts)
	if err != nil {
		return nil, nil, err
	}
	return c, done, nil
}

func (p *PortalService) controllerOptions(target navigation.Screen) []screen.Option {
	opts := []screen.Option{
		screen.WithLoadTimeout(p.cfg.ScreenLoadTimeout),
		screen.WithLogger(p.logger.With(zap.String("screen", string(target.ID)))),
	}
	if p.loads != nil {
		opts = append(opts, screen.WithLoadObserver(p.loads))
	}
	return opts
}

// hydrateMembership layers joined flags onto freshly loaded groups, from the
// memberships collection or, when membership is not persisted, from the
// session.
func (p *PortalService) hydrateMembership(sess *session) func(context.Context, []models.Group) ([]models.Group, error) {
	return func(ctx context.Context, groups []models.Group) ([]models.Group, error) {
		if !p.cfg.PersistMembership {
			for i := range groups {
				groups[i].Joined = sess.localJoined(groups[i].Name)
			}
			return groups, nil
		}
		records, err := p.store.FetchAll(ctx, store.CollectionMemberships)
		if err != nil {
			return nil, err
		}
		joined := make(map[string]bool, len(records))
		for _, rec := range records {
			m, err := models.DecodeMembership(rec)
			if err != nil {
				return nil, err
			}
			joined[m.ID] = m.Joined
		}
		for i := range groups {
			groups[i].Joined = joined[models.MembershipID(p.cfg.UserID, groups[i].Name)]
		}
		return groups, nil
	}
}

// reconcileProfile keeps a language change that is still being written, or
// was written after the load began reading, on the reloaded profile.
func reconcileProfile(values *pendingValues) func([]models.Profile, time.Time) []models.Profile {
	return func(items []models.Profile, started time.Time) []models.Profile {
		v, ok := values.lookup(languageKey, started)
		lang, isString := v.(string)
		if !ok || !isString {
			return items
		}
		for i := range items {
			items[i] = items[i].WithLanguage(lang)
		}
		return items
	}
}

// reconcileGroups does the same for membership toggles.
func reconcileGroups(values *pendingValues) func([]models.Group, time.Time) []models.Group {
	return func(items []models.Group, started time.Time) []models.Group {
		for i := range items {
			v, ok := values.lookup(membershipKey(items[i].Name), started)
			if joined, isBool := v.(bool); ok && isBool {
				items[i].Joined = joined
			}
		}
		return items
	}
}

// describe snapshots the session. Caller holds sess.mu.
func (p *PortalService) describe(sess *session) *dto.SessionResponse {
	return &dto.SessionResponse{
		ID:        sess.id,
		Screen:    sess.current.ID,
		Title:     sess.current.Title,
		State:     sess.view.Snapshot(),
		ExpiresAt: sess.expiresAt(),
	}
}

func (p *PortalService) reportSessions(n int) {
	if p.observer != nil {
		p.observer.SessionsActive(n)
	}
}

func (p *PortalService) submit(req screen.Request) (*screen.Ticket, error) {
	ticket, err := p.mutations.Submit(req)
	if err != nil {
		if p.observer != nil {
			p.observer.MutationRejected(req.Kind, err)
		}
		p.logger.Info("mutation rejected",
			zap.String("kind", string(req.Kind)),
			zap.String("entity_id", req.EntityID),
			zap.Error(err),
		)
		return nil, err
	}
	return ticket, nil
}

func sessionNotFound(id string) error {
	return appErrors.Clone(appErrors.ErrSessionNotFound, fmt.Sprintf("session %s not found", id))
}
