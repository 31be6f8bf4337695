package presence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/eskrenkovic/fear-tracker-go/internal/modules/core"
	"github.com/eskrenkovic/fear-tracker-go/internal/modules/presence/commands"
	"github.com/eskrenkovic/fear-tracker-go/internal/modules/presence/domain"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"
)

type fakeHeartbeats struct {
	calls chan commands.HeartbeatCommand
	err   error
}

func (f *fakeHeartbeats) Handle(ctx context.Context, request commands.HeartbeatCommand) (core.Unit, error) {
	f.calls <- request
	return core.Unit{}, f.err
}

type fakeEvictions struct {
	calls chan commands.RemoveStaleMembersCommand
}

func (f *fakeEvictions) Handle(
	ctx context.Context,
	request commands.RemoveStaleMembersCommand,
) (commands.RemoveStaleMembersResponse, error) {
	f.calls <- request
	return commands.RemoveStaleMembersResponse{Removed: []string{"gone"}}, nil
}

func receive[T any](t *testing.T, ch <-chan T) T {
	t.Helper()

	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		require.FailNow(t, "timed out waiting for tick")
		var zero T
		return zero
	}
}

func newFakes() (*fakeHeartbeats, *fakeEvictions) {
	return &fakeHeartbeats{calls: make(chan commands.HeartbeatCommand, 10)},
		&fakeEvictions{calls: make(chan commands.RemoveStaleMembersCommand, 10)}
}

func Test_Tracker_Host_Sends_Heartbeat_And_Evicts_On_Each_Tick(t *testing.T) {
	// Arrange
	c := clock.NewMock()
	heartbeats, evictions := newFakes()

	tracker := NewTracker("s1", "host", heartbeats, evictions, func() bool { return true }, WithClock(c))
	require.NoError(t, tracker.Start(context.Background()))
	defer tracker.Close()

	// Act
	c.Add(domain.DefaultHeartbeatInterval)

	// Assert
	beat := receive(t, heartbeats.calls)
	require.Equal(t, commands.HeartbeatCommand{SessionID: "s1", MemberID: "host"}, beat)

	sweep := receive(t, evictions.calls)
	require.Equal(t, "s1", sweep.SessionID)
}

func Test_Tracker_Player_Does_Not_Evict(t *testing.T) {
	// Arrange
	c := clock.NewMock()
	heartbeats, evictions := newFakes()
	asked := make(chan struct{}, 10)

	isHost := func() bool {
		asked <- struct{}{}
		return false
	}

	tracker := NewTracker("s1", "guest-2", heartbeats, evictions, isHost, WithClock(c))
	require.NoError(t, tracker.Start(context.Background()))

	// Act
	c.Add(domain.DefaultHeartbeatInterval)
	receive(t, heartbeats.calls)
	receive(t, asked)
	require.NoError(t, tracker.Stop())

	// Assert
	require.Empty(t, evictions.calls)
}

func Test_Tracker_Rechecks_Host_Status_Every_Tick(t *testing.T) {
	// Arrange
	c := clock.NewMock()
	heartbeats, evictions := newFakes()

	host := make(chan bool, 1)
	host <- false
	current := false
	isHost := func() bool {
		select {
		case current = <-host:
		default:
		}
		return current
	}

	tracker := NewTracker("s1", "m1", heartbeats, evictions, isHost, WithClock(c))
	require.NoError(t, tracker.Start(context.Background()))
	defer tracker.Close()

	c.Add(domain.DefaultHeartbeatInterval)
	receive(t, heartbeats.calls)

	// Act
	host <- true
	c.Add(domain.DefaultHeartbeatInterval)

	// Assert
	receive(t, evictions.calls)
}

func Test_Tracker_Keeps_Ticking_After_Heartbeat_Failure(t *testing.T) {
	// Arrange
	c := clock.NewMock()
	heartbeats, evictions := newFakes()
	heartbeats.err = errors.New("store unavailable")

	tracker := NewTracker("s1", "m1", heartbeats, evictions, func() bool { return false }, WithClock(c))
	require.NoError(t, tracker.Start(context.Background()))
	defer tracker.Close()

	c.Add(domain.DefaultHeartbeatInterval)
	receive(t, heartbeats.calls)

	// Act
	c.Add(domain.DefaultHeartbeatInterval)

	// Assert
	receive(t, heartbeats.calls)
}

func Test_Tracker_Start_Twice_Fails(t *testing.T) {
	// Arrange
	heartbeats, evictions := newFakes()
	tracker := NewTracker("s1", "m1", heartbeats, evictions, func() bool { return false }, WithClock(clock.NewMock()))
	require.NoError(t, tracker.Start(context.Background()))

	// Act
	err := tracker.Start(context.Background())

	// Assert
	require.ErrorIs(t, err, ErrAlreadyStarted)
	require.NoError(t, tracker.Stop())
	require.ErrorIs(t, tracker.Stop(), ErrNotStarted)
	require.NoError(t, tracker.Close())
}
