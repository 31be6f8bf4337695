// Package relationship serves the live friendship and invite lists of a
// signed-in account.
package relationship

import (
	"context"
	"net/http"
	"sync"

	"github.com/eskrenkovic/fear-tracker-go/internal/docstore"
	"github.com/eskrenkovic/fear-tracker-go/internal/modules/core"
	"github.com/eskrenkovic/fear-tracker-go/internal/modules/realtime"
	"github.com/eskrenkovic/fear-tracker-go/internal/modules/relationship/domain"

	"go.uber.org/zap"
)

const (
	MessageFriendsFailed = "Unable to load friends."
	MessageInvitesFailed = "Unable to load invites."
)

type FeedView[V any] struct {
	Loading bool   `json:"loading"`
	Error   string `json:"error,omitempty"`
	Data    V      `json:"data"`
}

// Feed keeps the latest projected list for one party.
type Feed[T any, V any] struct {
	engine  *domain.Engine[T]
	project func(list []T, party string) V
	failure string
	logger  *zap.Logger

	mu      sync.Mutex
	view    FeedView[V]
	handle  realtime.Handle
	changes chan struct{}
	closed  bool
}

func NewFeed[T any, V any](
	engine *domain.Engine[T],
	project func(list []T, party string) V,
	failure string,
	logger *zap.Logger,
) *Feed[T, V] {
	return &Feed[T, V]{
		engine:  engine,
		project: project,
		failure: failure,
		logger:  logger,
		view:    FeedView[V]{Loading: true},
		changes: make(chan struct{}, 1),
	}
}

func (f *Feed[T, V]) Open(ctx context.Context, party string) error {
	open := realtime.Subscribe(
		func(ctx context.Context) (docstore.Subscription, error) {
			return f.engine.Subscribe(ctx, party)
		},
		f.engine.DecodeAll,
		func(list []T) {
			f.set(FeedView[V]{Data: f.project(list, party)})
		},
		func(err error) {
			f.logger.Error(f.failure, zap.Error(err))

			f.mu.Lock()
			view := f.view
			f.mu.Unlock()

			view.Loading = false
			view.Error = f.failure
			f.set(view)
		},
	)

	handle, err := open(ctx)
	if err != nil {
		return err
	}

	f.mu.Lock()
	f.handle = handle
	f.mu.Unlock()

	return nil
}

func (f *Feed[T, V]) View() FeedView[V] {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.view
}

func (f *Feed[T, V]) Render() any {
	return f.View()
}

func (f *Feed[T, V]) Changes() <-chan struct{} {
	return f.changes
}

func (f *Feed[T, V]) Close() error {
	f.mu.Lock()
	handle := f.handle
	f.handle = nil
	f.mu.Unlock()

	var err error
	if handle != nil {
		err = handle.Close()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.changes)
	}

	return err
}

func (f *Feed[T, V]) set(view FeedView[V]) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return
	}

	f.view = view
	select {
	case f.changes <- struct{}{}:
	default:
	}
}

func NewFriendshipsFeed(engine *domain.Engine[domain.Friendship], logger *zap.Logger) *Feed[domain.Friendship, domain.FriendshipsView] {
	return NewFeed(engine, domain.NewFriendshipsView, MessageFriendsFailed, logger)
}

func NewInvitesFeed(engine *domain.Engine[domain.Invite], logger *zap.Logger) *Feed[domain.Invite, domain.InvitesView] {
	project := func(invites []domain.Invite, _ string) domain.InvitesView {
		return domain.NewInvitesView(invites)
	}
	return NewFeed(engine, project, MessageInvitesFailed, logger)
}

// LiveFeed is what a socket pushes.
type LiveFeed interface {
	Open(ctx context.Context, party string) error
	Changes() <-chan struct{}
	Render() any
	Close() error
}

// NewSocketHandler pushes a feed for the signed-in caller over a websocket.
func NewSocketHandler(newFeed func(logger *zap.Logger) LiveFeed) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		logger := core.Logger(ctx)

		caller := core.Session(ctx)
		if !caller.SignedIn() {
			core.WriteCommandError(w, r, domain.CommandError(domain.ErrSignInToAddFriends))
			return
		}

		conn, err := realtime.Upgrade(w, r)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}
		defer conn.Close()

		feed := newFeed(logger)
		defer feed.Close()

		if err := feed.Open(ctx, caller.AccountID); err != nil {
			logger.Error("failed to open feed", zap.Error(err))
			return
		}

		if err := realtime.Push(ctx, conn, feed.Changes(), feed.Render); err != nil {
			logger.Debug("feed socket closed", zap.Error(err))
		}
	}
}
