// Package participant holds one member's live view of one session: the
// session document, its countdowns and its roster, kept current by store
// subscriptions, plus the presence tracker that keeps the member listed.
package participant

import (
	"context"
	"errors"
	"sync"

	"github.com/eskrenkovic/fear-tracker-go/internal/docstore"
	"github.com/eskrenkovic/fear-tracker-go/internal/modules/core"
	sessiondomain "github.com/eskrenkovic/fear-tracker-go/internal/modules/game-session/domain"
	"github.com/eskrenkovic/fear-tracker-go/internal/modules/presence"
	presencedomain "github.com/eskrenkovic/fear-tracker-go/internal/modules/presence/domain"
	"github.com/eskrenkovic/fear-tracker-go/internal/modules/realtime"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

const scope = "session"

const (
	MessageSessionEnded     = "That session has ended."
	MessageSyncFailed       = "Unable to sync the session."
	MessageCountdownsFailed = "Unable to load countdowns."
	MessageMembersFailed    = "Unable to load session members."
)

var ErrMemberRequired = errors.New("member id is required")

// View is what a participant sees. Members carry liveness computed when the
// view is rendered.
type View struct {
	SessionID  string                          `json:"sessionId"`
	Session    *sessiondomain.Session          `json:"session"`
	Countdowns []sessiondomain.Countdown       `json:"countdowns"`
	Members    []presencedomain.MemberPresence `json:"members"`
	IsHost     bool                            `json:"isHost"`
	Loading    bool                            `json:"loading"`
	Ended      bool                            `json:"ended"`
	Error      string                          `json:"error,omitempty"`
}

type projection struct {
	sessionID  string
	session    *sessiondomain.Session
	countdowns []sessiondomain.Countdown
	members    []sessiondomain.Member
	loading    bool
	ended      bool
	err        string
}

// Context is owned by whoever serves the participant. Init opens every
// subscription and the tracker for a session; Dispose closes them. Each
// callback replaces whole projection fields.
type Context struct {
	memberID string

	store     docstore.Store
	heartbeat presence.HeartbeatHandler
	evict     presence.EvictionHandler
	settings  presencedomain.Settings

	clock  clock.Clock
	logger *zap.Logger
	sync   *realtime.Synchronizer

	lifecycle sync.Mutex

	mu         sync.Mutex
	generation uint64
	projection projection
	changes    chan struct{}
	closed     bool
}

type Option func(*Context)

func WithClock(c clock.Clock) Option {
	return func(ctx *Context) {
		ctx.clock = c
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(ctx *Context) {
		ctx.logger = logger
	}
}

func WithSettings(settings presencedomain.Settings) Option {
	return func(ctx *Context) {
		ctx.settings = settings
	}
}

func New(
	memberID string,
	store docstore.Store,
	heartbeat presence.HeartbeatHandler,
	evict presence.EvictionHandler,
	opts ...Option,
) *Context {
	c := &Context{
		memberID:  memberID,
		store:     store,
		heartbeat: heartbeat,
		evict:     evict,
		settings:  presencedomain.DefaultSettings(),
		clock:     clock.New(),
		logger:    zap.NewNop(),
		changes:   make(chan struct{}, 1),
	}

	for _, opt := range opts {
		opt(c)
	}

	c.logger = c.logger.With(zap.String("member_id", memberID))
	c.sync = realtime.NewSynchronizer(c.logger)

	return c
}

// Init switches the context to sessionID. Whatever was open for a previous
// session is closed first.
func (c *Context) Init(ctx context.Context, sessionID string) error {
	if c.memberID == "" {
		return ErrMemberRequired
	}

	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	c.mu.Lock()
	c.generation++
	generation := c.generation
	c.projection = projection{sessionID: sessionID, loading: true}
	c.mu.Unlock()
	c.notify()

	logger := c.logger.With(zap.String("session_id", sessionID))

	tracker := presence.NewTracker(
		sessionID,
		c.memberID,
		c.heartbeat,
		c.evict,
		c.IsHost,
		presence.WithClock(c.clock),
		presence.WithLogger(c.logger),
		presence.WithInterval(c.settings.HeartbeatInterval),
	)

	wasActive := c.sync.Active(scope)
	err := c.sync.Start(
		ctx,
		scope,
		realtime.Subscribe(
			func(ctx context.Context) (docstore.Subscription, error) {
				return c.store.SubscribeDoc(ctx, sessiondomain.SessionPath(sessionID))
			},
			decodeSession,
			func(session *sessiondomain.Session) { c.applySession(generation, session) },
			func(err error) { c.fail(generation, logger, MessageSyncFailed, err, true) },
		),
		realtime.Subscribe(
			func(ctx context.Context) (docstore.Subscription, error) {
				return c.store.SubscribeQuery(ctx, sessiondomain.CountdownsQuery(sessionID))
			},
			sessiondomain.DecodeCountdowns,
			func(countdowns []sessiondomain.Countdown) {
				c.update(generation, func(p *projection) { p.countdowns = countdowns })
			},
			func(err error) { c.fail(generation, logger, MessageCountdownsFailed, err, false) },
		),
		realtime.Subscribe(
			func(ctx context.Context) (docstore.Subscription, error) {
				return c.store.SubscribeQuery(ctx, sessiondomain.MembersQuery(sessionID))
			},
			sessiondomain.DecodeMembers,
			func(members []sessiondomain.Member) {
				c.update(generation, func(p *projection) { p.members = members })
			},
			func(err error) { c.fail(generation, logger, MessageMembersFailed, err, false) },
		),
		func(ctx context.Context) (realtime.Handle, error) {
			if err := tracker.Start(ctx); err != nil {
				return nil, err
			}
			return tracker, nil
		},
	)
	switch {
	case err != nil && wasActive:
		core.ActiveParticipants.Dec()
	case err == nil && !wasActive:
		core.ActiveParticipants.Inc()
	}

	return err
}

// Dispose closes the subscriptions and the tracker. The projection is kept
// so a final view can still be rendered.
func (c *Context) Dispose() error {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	c.mu.Lock()
	c.generation++
	c.mu.Unlock()

	return c.stop()
}

// Close disposes the context for good.
func (c *Context) Close() error {
	err := c.Dispose()

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.changes)
	}

	return err
}

// Changes signals after every projection change. Signals coalesce.
func (c *Context) Changes() <-chan struct{} {
	return c.changes
}

func (c *Context) IsHost() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.projection.session != nil && c.projection.session.IsHost(c.memberID)
}

func (c *Context) View() View {
	c.mu.Lock()
	p := c.projection
	c.mu.Unlock()

	countdowns := p.countdowns
	if countdowns == nil {
		countdowns = make([]sessiondomain.Countdown, 0)
	}

	return View{
		SessionID:  p.sessionID,
		Session:    p.session,
		Countdowns: countdowns,
		Members:    presencedomain.MembersWithPresence(p.members, c.clock.Now(), c.settings.StaleThreshold),
		IsHost:     p.session != nil && p.session.IsHost(c.memberID),
		Loading:    p.loading,
		Ended:      p.ended,
		Error:      p.err,
	}
}

func (c *Context) stop() error {
	wasActive := c.sync.Active(scope)
	err := c.sync.Stop(scope)
	if wasActive {
		core.ActiveParticipants.Dec()
	}
	return err
}

// applySession treats an absent or expired session as ended: the projection
// is cleared and everything is torn down.
func (c *Context) applySession(generation uint64, session *sessiondomain.Session) {
	if session != nil && !session.Expired(c.clock.Now()) {
		c.update(generation, func(p *projection) {
			p.session = session
			p.loading = false
			p.err = ""
		})
		return
	}

	ended := c.update(generation, func(p *projection) {
		*p = projection{ended: true, err: MessageSessionEnded}
	})
	if !ended {
		return
	}

	// The callback runs on a stream reader; closing that stream here would
	// wait on itself.
	go func() {
		c.lifecycle.Lock()
		defer c.lifecycle.Unlock()

		c.mu.Lock()
		current := c.generation == generation
		c.mu.Unlock()

		if !current {
			return
		}

		if err := c.stop(); err != nil {
			c.logger.Warn("failed to dispose ended session", zap.Error(err))
		}
	}()
}

func (c *Context) fail(generation uint64, logger *zap.Logger, message string, err error, sessionStream bool) {
	logger.Error(message, zap.Error(err))

	c.update(generation, func(p *projection) {
		p.err = message
		if sessionStream {
			p.loading = false
		}
	})
}

// update applies fn when generation is still current and reports whether it
// did.
func (c *Context) update(generation uint64, fn func(p *projection)) bool {
	c.mu.Lock()
	if c.generation != generation {
		c.mu.Unlock()
		return false
	}
	fn(&c.projection)
	c.mu.Unlock()

	c.notify()
	return true
}

func (c *Context) notify() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	select {
	case c.changes <- struct{}{}:
	default:
	}
}

func decodeSession(docs []docstore.Document) (*sessiondomain.Session, error) {
	if len(docs) == 0 {
		return nil, nil
	}

	session, err := sessiondomain.DecodeSession(docs[0])
	if err != nil {
		return nil, err
	}

	return &session, nil
}
