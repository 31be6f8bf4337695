package relationship

import (
	"context"
	"testing"
	"time"

	"github.com/eskrenkovic/fear-tracker-go/internal/docstore"
	"github.com/eskrenkovic/fear-tracker-go/internal/docstore/memstore"
	"github.com/eskrenkovic/fear-tracker-go/internal/modules/relationship/domain"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func Test_FriendshipsFeed_Replaces_View_On_Every_Change(t *testing.T) {
	// Arrange
	store := memstore.New()
	t.Cleanup(func() { _ = store.Close() })
	ctx := context.Background()

	feed := NewFriendshipsFeed(domain.NewEngine(store, domain.Friendships()), zap.NewNop())
	defer feed.Close()

	require.True(t, feed.View().Loading)
	require.NoError(t, feed.Open(ctx, "ana"))
	require.Eventually(t, func() bool { return !feed.View().Loading }, 2*time.Second, 10*time.Millisecond)

	// Act
	require.NoError(t, store.Set(ctx, "friendships/ana_bob", docstore.Fields{
		"users":        []string{"ana", "bob"},
		"requesterUid": "bob",
		"addresseeUid": "ana",
		"status":       "pending",
		"updatedAt":    docstore.ServerTimestamp,
	}))

	// Assert
	require.Eventually(t, func() bool {
		return len(feed.View().Data.Incoming) == 1
	}, 2*time.Second, 10*time.Millisecond)
	require.Empty(t, feed.View().Error)
}

func Test_InvitesFeed_Close_Closes_Changes(t *testing.T) {
	// Arrange
	store := memstore.New()
	t.Cleanup(func() { _ = store.Close() })

	feed := NewInvitesFeed(domain.NewEngine(store, domain.Invites()), zap.NewNop())
	require.NoError(t, feed.Open(context.Background(), "bob"))

	// Act
	require.NoError(t, feed.Close())
	require.NoError(t, feed.Close())

	// Assert
	for range feed.Changes() {
	}
}
