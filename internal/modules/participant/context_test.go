package participant

import (
	"context"
	"testing"
	"time"

	"github.com/eskrenkovic/fear-tracker-go/internal/docstore"
	"github.com/eskrenkovic/fear-tracker-go/internal/docstore/memstore"
	sessioncommands "github.com/eskrenkovic/fear-tracker-go/internal/modules/game-session/commands"
	sessiondomain "github.com/eskrenkovic/fear-tracker-go/internal/modules/game-session/domain"
	"github.com/eskrenkovic/fear-tracker-go/internal/modules/joincode"
	presencecommands "github.com/eskrenkovic/fear-tracker-go/internal/modules/presence/commands"
	presencedomain "github.com/eskrenkovic/fear-tracker-go/internal/modules/presence/domain"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"
)

const waitFor = 2 * time.Second

type fixture struct {
	clock *clock.Mock
	store *memstore.Store
	repo  *sessiondomain.Repository
}

func newFixture(t *testing.T) fixture {
	t.Helper()

	c := clock.NewMock()
	c.Set(time.Date(2024, 5, 1, 18, 0, 0, 0, time.UTC))

	store := memstore.New(memstore.WithClock(c))
	t.Cleanup(func() { _ = store.Close() })

	allocator := joincode.NewAllocator(store, joincode.WithClock(c))
	return fixture{clock: c, store: store, repo: sessiondomain.NewRepository(store, allocator, c)}
}

func (f fixture) createSession(t *testing.T, hostMemberID string) string {
	t.Helper()

	response, err := sessioncommands.NewCreateSessionCommandHandler(f.repo, sessiondomain.DefaultSettings()).Handle(
		context.Background(),
		sessioncommands.CreateSessionCommand{HostName: "Ana", HostMemberID: hostMemberID},
	)
	require.NoError(t, err)

	return response.ID
}

func (f fixture) participant(t *testing.T, memberID string) *Context {
	t.Helper()

	settings := presencedomain.DefaultSettings()
	c := New(
		memberID,
		f.store,
		presencecommands.NewHeartbeatCommandHandler(f.store),
		presencecommands.NewRemoveStaleMembersCommandHandler(f.repo, settings),
		WithClock(f.clock),
		WithSettings(settings),
	)
	t.Cleanup(func() { _ = c.Close() })

	return c
}

func Test_Init_Projects_Session_Countdowns_And_Members(t *testing.T) {
	// Arrange
	f := newFixture(t)
	ctx := context.Background()
	sessionID := f.createSession(t, "guest_ana")

	_, err := f.store.Add(ctx, sessiondomain.CountdownsCollection(sessionID), docstore.Fields{
		"name":      "Invader",
		"max":       6,
		"value":     0,
		"createdAt": docstore.ServerTimestamp,
	})
	require.NoError(t, err)

	host := f.participant(t, "guest_ana")

	// Act
	err = host.Init(ctx, sessionID)

	// Assert
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		view := host.View()
		return view.Session != nil && len(view.Countdowns) == 1 && len(view.Members) == 1
	}, waitFor, 10*time.Millisecond)

	view := host.View()
	require.Equal(t, sessionID, view.SessionID)
	require.False(t, view.Loading)
	require.True(t, view.IsHost)
	require.True(t, host.IsHost())
	require.True(t, view.Members[0].IsActive)
	require.Empty(t, view.Error)
}

func Test_Projection_Follows_Store_Changes(t *testing.T) {
	// Arrange
	f := newFixture(t)
	ctx := context.Background()
	sessionID := f.createSession(t, "guest_ana")

	player := f.participant(t, "guest_bree")
	require.NoError(t, player.Init(ctx, sessionID))
	require.Eventually(t, func() bool { return player.View().Session != nil }, waitFor, 10*time.Millisecond)

	// Act
	require.NoError(t, f.store.Update(ctx, sessiondomain.SessionPath(sessionID), docstore.Fields{"fear": 7}))

	// Assert
	require.Eventually(t, func() bool {
		view := player.View()
		return view.Session != nil && view.Session.Fear == 7
	}, waitFor, 10*time.Millisecond)
	require.False(t, player.IsHost())
}

func Test_Deleted_Session_Ends_Projection_And_Disposes(t *testing.T) {
	// Arrange
	f := newFixture(t)
	ctx := context.Background()
	sessionID := f.createSession(t, "guest_ana")

	player := f.participant(t, "guest_bree")
	require.NoError(t, player.Init(ctx, sessionID))
	require.Eventually(t, func() bool { return player.View().Session != nil }, waitFor, 10*time.Millisecond)

	// Act
	require.NoError(t, f.store.Delete(ctx, sessiondomain.SessionPath(sessionID)))

	// Assert
	require.Eventually(t, func() bool { return player.View().Ended }, waitFor, 10*time.Millisecond)

	view := player.View()
	require.Nil(t, view.Session)
	require.Empty(t, view.Countdowns)
	require.Empty(t, view.Members)
	require.Equal(t, MessageSessionEnded, view.Error)
	require.Eventually(t, func() bool { return !player.sync.Active(scope) }, waitFor, 10*time.Millisecond)
}

func Test_Expired_Session_Is_Treated_As_Ended(t *testing.T) {
	// Arrange
	f := newFixture(t)
	ctx := context.Background()
	sessionID := f.createSession(t, "guest_ana")
	f.clock.Add(sessiondomain.DefaultSessionTTL)

	player := f.participant(t, "guest_bree")

	// Act
	require.NoError(t, player.Init(ctx, sessionID))

	// Assert
	require.Eventually(t, func() bool { return player.View().Ended }, waitFor, 10*time.Millisecond)
	require.Equal(t, MessageSessionEnded, player.View().Error)
}

func Test_Init_Replaces_Previous_Session(t *testing.T) {
	// Arrange
	f := newFixture(t)
	ctx := context.Background()
	first := f.createSession(t, "guest_ana")
	second := f.createSession(t, "guest_cy")

	player := f.participant(t, "guest_bree")
	require.NoError(t, player.Init(ctx, first))

	// Act
	require.NoError(t, player.Init(ctx, second))

	// Assert
	require.Eventually(t, func() bool {
		view := player.View()
		return view.Session != nil && view.Session.ID == second
	}, waitFor, 10*time.Millisecond)

	require.NoError(t, f.store.Update(ctx, sessiondomain.SessionPath(first), docstore.Fields{"fear": 9}))
	require.Never(t, func() bool {
		view := player.View()
		return view.Session != nil && view.Session.ID == first
	}, 200*time.Millisecond, 10*time.Millisecond)
}

func Test_Dispose_Stops_Updates(t *testing.T) {
	// Arrange
	f := newFixture(t)
	ctx := context.Background()
	sessionID := f.createSession(t, "guest_ana")

	player := f.participant(t, "guest_bree")
	require.NoError(t, player.Init(ctx, sessionID))
	require.Eventually(t, func() bool { return player.View().Session != nil }, waitFor, 10*time.Millisecond)

	// Act
	require.NoError(t, player.Dispose())
	require.NoError(t, f.store.Update(ctx, sessiondomain.SessionPath(sessionID), docstore.Fields{"fear": 5}))

	// Assert
	require.Never(t, func() bool { return player.View().Session.Fear == 5 }, 200*time.Millisecond, 10*time.Millisecond)
	require.False(t, player.sync.Active(scope))
}

func Test_Init_Requires_Member(t *testing.T) {
	// Arrange
	f := newFixture(t)

	// Act
	err := f.participant(t, "").Init(context.Background(), "s1")

	// Assert
	require.ErrorIs(t, err, ErrMemberRequired)
}
