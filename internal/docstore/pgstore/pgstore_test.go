package pgstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/eskrenkovic/fear-tracker-go/internal/docstore"

	"github.com/docker/go-connections/nat"
	"github.com/eskrenkovic/migrate-go"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const migrationsPath = "../../../db/migrations"

func connectionString(host string, port nat.Port) string {
	return fmt.Sprintf(
		"postgres://postgres:postgres@%s:%s/fear_tracker?sslmode=disable",
		host,
		port.Port(),
	)
}

func newTestStore(t *testing.T) *Store {
	t.Helper()

	if testing.Short() || os.Getenv("SKIP_INFRASTRUCTURE") == "true" {
		t.Skip("skipping postgres integration test")
	}

	ctx := context.Background()
	pgPort := nat.Port("5432/tcp")

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{string(pgPort)},
			Env: map[string]string{
				"POSTGRES_USER":     "postgres",
				"POSTGRES_PASSWORD": "postgres",
				"POSTGRES_DB":       "fear_tracker",
			},
			WaitingFor: wait.ForSQL(pgPort, "postgres", connectionString).
				WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, container.Terminate(context.Background()))
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, pgPort)
	require.NoError(t, err)

	connStr := connectionString(host, port)

	db, err := sql.Open("postgres", connStr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, migrate.Run(ctx, db, migrationsPath))

	s, err := New(db, connStr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	return s
}

func Test_Postgres_Store_Round_Trips_Documents(t *testing.T) {
	// Arrange
	s := newTestStore(t)
	ctx := context.Background()

	// Act
	id, err := s.Add(ctx, "sessions", docstore.Fields{
		"name":      "Table",
		"fear":      3,
		"createdAt": docstore.ServerTimestamp,
	})
	require.NoError(t, err)

	doc, err := s.Get(ctx, docstore.Join("sessions", id))

	// Assert
	require.NoError(t, err)
	require.Equal(t, id, doc.ID)

	var decoded struct {
		Name      string    `doc:"name"`
		Fear      int       `doc:"fear"`
		CreatedAt time.Time `doc:"createdAt"`
	}
	require.NoError(t, doc.Decode(&decoded))
	require.Equal(t, "Table", decoded.Name)
	require.Equal(t, 3, decoded.Fear)
	require.False(t, decoded.CreatedAt.IsZero())
}

func Test_Postgres_Store_Update_Fails_For_Missing_Document(t *testing.T) {
	// Arrange
	s := newTestStore(t)

	// Act
	err := s.Update(context.Background(), "sessions/a/members/m1", docstore.Fields{"lastSeenAt": docstore.ServerTimestamp})

	// Assert
	require.ErrorIs(t, err, docstore.ErrNotFound)
}

func Test_Postgres_Store_Merge_Keeps_Existing_Fields(t *testing.T) {
	// Arrange
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "sessions/a/members/m1", docstore.Fields{"name": "Ana", "role": "host"}))

	// Act
	require.NoError(t, s.Set(ctx, "sessions/a/members/m1", docstore.Fields{"name": "Ana B"}, docstore.Merge()))

	// Assert
	doc, err := s.Get(ctx, "sessions/a/members/m1")
	require.NoError(t, err)
	require.Equal(t, "Ana B", doc.Fields["name"])
	require.Equal(t, "host", doc.Fields["role"])
}

func Test_Postgres_Store_Query_Filters_And_Orders(t *testing.T) {
	// Arrange
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"a_b", "a_c", "b_c"} {
		require.NoError(t, s.Set(ctx, docstore.Join("friendships", id), docstore.Fields{
			"users":     []string{id[:1], id[2:]},
			"status":    "pending",
			"updatedAt": base.Add(time.Duration(i) * time.Minute),
		}))
	}

	// Act
	docs, err := s.Query(ctx, docstore.Query{
		Collection: "friendships",
		Filters: []docstore.Filter{
			docstore.ArrayContains("users", "a"),
			docstore.Equal("status", "pending"),
		},
		OrderBy:   "updatedAt",
		Direction: docstore.Desc,
	})

	// Assert
	require.NoError(t, err)
	require.Len(t, docs, 2)
	require.Equal(t, "a_c", docs[0].ID)
	require.Equal(t, "a_b", docs[1].ID)
}

func Test_Postgres_Store_Subscription_Sees_Changes(t *testing.T) {
	// Arrange
	s := newTestStore(t)
	ctx := context.Background()

	sub, err := s.SubscribeQuery(ctx, docstore.Query{Collection: "sessions/a/countdowns"})
	require.NoError(t, err)
	defer sub.Close()

	initial := <-sub.Snapshots()
	require.NoError(t, initial.Err)
	require.Empty(t, initial.Docs)

	// Act
	_, err = s.Add(ctx, "sessions/a/countdowns", docstore.Fields{"name": "Invader"})
	require.NoError(t, err)

	// Assert
	select {
	case snap := <-sub.Snapshots():
		require.NoError(t, snap.Err)
		require.Len(t, snap.Docs, 1)
	case <-time.After(10 * time.Second):
		require.FailNow(t, "no snapshot after insert")
	}
}
