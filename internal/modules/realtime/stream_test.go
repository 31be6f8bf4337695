package realtime

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/eskrenkovic/fear-tracker-go/internal/docstore"
	"github.com/eskrenkovic/fear-tracker-go/internal/docstore/memstore"

	"github.com/stretchr/testify/require"
)

func countDocs(docs []docstore.Document) (int, error) {
	return len(docs), nil
}

func nextUpdate[T any](t *testing.T, updates <-chan Update[T]) Update[T] {
	t.Helper()

	select {
	case update, ok := <-updates:
		require.True(t, ok, "stream closed")
		return update
	case <-time.After(2 * time.Second):
		require.FailNow(t, "timed out waiting for update")
		return Update[T]{}
	}
}

type fakeSubscription struct {
	snapshots chan docstore.Snapshot
	closed    bool
}

func newFakeSubscription() *fakeSubscription {
	return &fakeSubscription{snapshots: make(chan docstore.Snapshot)}
}

func (s *fakeSubscription) Snapshots() <-chan docstore.Snapshot {
	return s.snapshots
}

func (s *fakeSubscription) Close() error {
	s.closed = true
	return nil
}

func Test_Stream_Decodes_Every_Snapshot(t *testing.T) {
	// Arrange
	store := memstore.New()
	t.Cleanup(func() { _ = store.Close() })
	ctx := context.Background()

	sub, err := store.SubscribeQuery(ctx, docstore.Query{Collection: "sessions/a/countdowns"})
	require.NoError(t, err)

	stream := Open(sub, countDocs)
	defer stream.Close()

	require.Equal(t, 0, nextUpdate(t, stream.Updates()).Value)

	// Act
	_, err = store.Add(ctx, "sessions/a/countdowns", docstore.Fields{"name": "Invader"})
	require.NoError(t, err)

	// Assert
	update := nextUpdate(t, stream.Updates())
	require.NoError(t, update.Err)
	require.Equal(t, 1, update.Value)
}

func Test_Stream_Keeps_Only_Latest_Update(t *testing.T) {
	// Arrange
	sub := newFakeSubscription()
	stream := Open(sub, countDocs)
	defer stream.Close()

	// Act
	sub.snapshots <- docstore.Snapshot{Docs: make([]docstore.Document, 1)}
	sub.snapshots <- docstore.Snapshot{Docs: make([]docstore.Document, 2)}
	sub.snapshots <- docstore.Snapshot{Docs: make([]docstore.Document, 3)}
	close(sub.snapshots)
	<-stream.exited

	// Assert
	require.Equal(t, 3, nextUpdate(t, stream.Updates()).Value)
	_, ok := <-stream.Updates()
	require.False(t, ok)
}

func Test_Stream_Forwards_Subscription_Errors(t *testing.T) {
	// Arrange
	sub := newFakeSubscription()
	stream := Open(sub, countDocs)
	defer stream.Close()
	failure := errors.New("permission denied")

	// Act
	sub.snapshots <- docstore.Snapshot{Err: failure}

	// Assert
	require.ErrorIs(t, nextUpdate(t, stream.Updates()).Err, failure)
}

func Test_Stream_Close_Closes_Subscription_And_Updates(t *testing.T) {
	// Arrange
	sub := newFakeSubscription()
	stream := Open(sub, countDocs)

	// Act
	require.NoError(t, stream.Close())
	require.NoError(t, stream.Close())

	// Assert
	require.True(t, sub.closed)
	_, ok := <-stream.Updates()
	require.False(t, ok)
}

func Test_Subscribe_Routes_Values_And_Errors(t *testing.T) {
	// Arrange
	sub := newFakeSubscription()
	values := make(chan int, 1)
	failures := make(chan error, 1)

	open := Subscribe(
		func(ctx context.Context) (docstore.Subscription, error) { return sub, nil },
		countDocs,
		func(v int) { values <- v },
		func(err error) { failures <- err },
	)

	handle, err := open(context.Background())
	require.NoError(t, err)
	defer handle.Close()

	// Act
	sub.snapshots <- docstore.Snapshot{Docs: make([]docstore.Document, 2)}
	require.Equal(t, 2, <-values)
	sub.snapshots <- docstore.Snapshot{Err: errors.New("offline")}

	// Assert
	require.EqualError(t, <-failures, "offline")
}
