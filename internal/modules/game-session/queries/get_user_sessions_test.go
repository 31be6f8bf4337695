package queries

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/eskrenkovic/fear-tracker-go/internal/docstore"
	"github.com/eskrenkovic/fear-tracker-go/internal/docstore/memstore"
	"github.com/eskrenkovic/fear-tracker-go/internal/modules/game-session/domain"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"
)

func Test_GetUserSessions_Returns_Most_Recent_Sessions_First(t *testing.T) {
	// Arrange
	c := clock.NewMock()
	store := memstore.New(memstore.WithClock(c))
	defer store.Close()
	ctx := context.Background()

	for i := 0; i < 7; i++ {
		c.Add(time.Minute)
		require.NoError(t, store.Set(ctx, domain.SavedSessionPath("acc-1", fmt.Sprintf("s%d", i)), docstore.Fields{
			"code":       "ABCDEF",
			"role":       "player",
			"lastSeenAt": docstore.ServerTimestamp,
		}))
	}

	// Act
	sessions, err := NewGetUserSessionsQueryHandler(store).Handle(ctx, GetUserSessionsQuery{AccountID: "acc-1"})

	// Assert
	require.NoError(t, err)
	require.Len(t, sessions, SavedSessionsLimit)
	require.Equal(t, "s6", sessions[0].ID)
	require.Equal(t, "s2", sessions[4].ID)
	require.Equal(t, domain.RolePlayer, sessions[0].Role)
}

func Test_GetUserSessions_Requires_Account(t *testing.T) {
	require.ErrorIs(t, GetUserSessionsQuery{}.Validate(), ErrAccountRequired)
}
