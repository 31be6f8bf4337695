// Package presence keeps a participant's heartbeat going and, while that
// participant is host, evicts members that stopped sending one.
package presence

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/eskrenkovic/fear-tracker-go/internal/modules/core"
	"github.com/eskrenkovic/fear-tracker-go/internal/modules/presence/commands"
	"github.com/eskrenkovic/fear-tracker-go/internal/modules/presence/domain"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

var (
	ErrAlreadyStarted = errors.New("tracker already started")
	ErrNotStarted     = errors.New("tracker not started")
)

type requestHandler[TRequest any, TResponse any] interface {
	Handle(ctx context.Context, request TRequest) (TResponse, error)
}

type (
	HeartbeatHandler = requestHandler[commands.HeartbeatCommand, core.Unit]
	EvictionHandler  = requestHandler[commands.RemoveStaleMembersCommand, commands.RemoveStaleMembersResponse]
)

// Tracker runs the heartbeat and eviction tickers for one member of one
// session. Tick failures are logged and counted; the next tick tries again.
type Tracker struct {
	sessionID string
	memberID  string
	interval  time.Duration

	heartbeat HeartbeatHandler
	evict     EvictionHandler
	isHost    func() bool

	clock  clock.Clock
	logger *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type Option func(*Tracker)

func WithClock(c clock.Clock) Option {
	return func(t *Tracker) {
		t.clock = c
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(t *Tracker) {
		t.logger = logger
	}
}

func WithInterval(interval time.Duration) Option {
	return func(t *Tracker) {
		if interval > 0 {
			t.interval = interval
		}
	}
}

// NewTracker returns a stopped tracker. isHost is asked before every
// eviction sweep.
func NewTracker(
	sessionID string,
	memberID string,
	heartbeat HeartbeatHandler,
	evict EvictionHandler,
	isHost func() bool,
	opts ...Option,
) *Tracker {
	t := &Tracker{
		sessionID: sessionID,
		memberID:  memberID,
		interval:  domain.DefaultHeartbeatInterval,
		heartbeat: heartbeat,
		evict:     evict,
		isHost:    isHost,
		clock:     clock.New(),
		logger:    zap.NewNop(),
	}

	for _, opt := range opts {
		opt(t)
	}

	t.logger = t.logger.With(
		zap.String("session_id", sessionID),
		zap.String("member_id", memberID),
	)

	return t
}

// Start launches both tickers. They keep the values of ctx but outlive its
// cancellation; Stop ends them.
func (t *Tracker) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cancel != nil {
		return ErrAlreadyStarted
	}

	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	t.cancel = cancel

	heartbeats := t.clock.Ticker(t.interval)
	sweeps := t.clock.Ticker(t.interval)

	t.wg.Add(2)
	go t.loop(ctx, heartbeats, t.beat)
	go t.loop(ctx, sweeps, t.sweep)

	return nil
}

func (t *Tracker) Stop() error {
	t.mu.Lock()
	cancel := t.cancel
	t.cancel = nil
	t.mu.Unlock()

	if cancel == nil {
		return ErrNotStarted
	}

	cancel()
	t.wg.Wait()

	return nil
}

// Close stops the tracker if it is running.
func (t *Tracker) Close() error {
	if err := t.Stop(); err != nil && !errors.Is(err, ErrNotStarted) {
		return err
	}
	return nil
}

func (t *Tracker) loop(ctx context.Context, ticker *clock.Ticker, tick func(context.Context)) {
	defer t.wg.Done()
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tick(ctx)
		}
	}
}

func (t *Tracker) beat(ctx context.Context) {
	command := commands.HeartbeatCommand{SessionID: t.sessionID, MemberID: t.memberID}
	if _, err := t.heartbeat.Handle(ctx, command); err != nil && ctx.Err() == nil {
		core.HeartbeatFailures.Inc()
		t.logger.Warn("failed to update heartbeat", zap.Error(err))
	}
}

func (t *Tracker) sweep(ctx context.Context) {
	if !t.isHost() {
		return
	}

	response, err := t.evict.Handle(ctx, commands.RemoveStaleMembersCommand{SessionID: t.sessionID})
	if err != nil && ctx.Err() == nil {
		core.EvictionFailures.Inc()
		t.logger.Warn("failed to clean up stale members", zap.Error(err))
	}

	if len(response.Removed) > 0 {
		t.logger.Info("removed stale members", zap.Strings("member_ids", response.Removed))
	}
}
