package joincode

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/eskrenkovic/fear-tracker-go/internal/docstore/memstore"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"
)

func sequence(codes ...string) func() (string, error) {
	i := 0
	return func() (string, error) {
		code := codes[i%len(codes)]
		i++
		return code, nil
	}
}

func Test_Generate_Returns_Code_From_Charset(t *testing.T) {
	for i := 0; i < 100; i++ {
		// Act
		code, err := Generate()

		// Assert
		require.NoError(t, err)
		require.Len(t, code, Length)
		for _, c := range code {
			require.True(t, strings.ContainsRune(Charset, c), "unexpected symbol %q", c)
		}
	}
}

func Test_Generate_Falls_Back_When_Secure_Source_Fails(t *testing.T) {
	// Act
	code, err := generate(bytes.NewReader(nil))

	// Assert
	require.NoError(t, err)
	require.Len(t, code, Length)
}

func Test_Normalize_Trims_And_Uppercases(t *testing.T) {
	require.Equal(t, "ABC234", Normalize("  abc234 "))
}

func Test_Reserve_Returns_Free_Code(t *testing.T) {
	// Arrange
	allocator := NewAllocator(memstore.New(), WithGenerator(sequence("ABCDEF")))

	// Act
	code, err := allocator.Reserve(context.Background())

	// Assert
	require.NoError(t, err)
	require.Equal(t, "ABCDEF", code)
}

func Test_Reserve_Skips_Codes_With_Live_Reservation(t *testing.T) {
	// Arrange
	c := clock.NewMock()
	c.Set(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC))
	store := memstore.New(memstore.WithClock(c))
	allocator := NewAllocator(store, WithClock(c), WithGenerator(sequence("AAAAAA", "BBBBBB")))

	require.NoError(t, allocator.Save(context.Background(), Reservation{
		Code:             "AAAAAA",
		SessionID:        "s1",
		CodeExpiresAt:    c.Now().Add(time.Hour),
		SessionExpiresAt: c.Now().Add(24 * time.Hour),
	}))

	// Act
	code, err := allocator.Reserve(context.Background())

	// Assert
	require.NoError(t, err)
	require.Equal(t, "BBBBBB", code)
}

func Test_Reserve_Reuses_Code_Whose_Reservation_Expired(t *testing.T) {
	// Arrange
	c := clock.NewMock()
	c.Set(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC))
	store := memstore.New(memstore.WithClock(c))
	allocator := NewAllocator(store, WithClock(c), WithGenerator(sequence("AAAAAA")))

	require.NoError(t, allocator.Save(context.Background(), Reservation{
		Code:             "AAAAAA",
		SessionID:        "s1",
		CodeExpiresAt:    c.Now().Add(time.Hour),
		SessionExpiresAt: c.Now().Add(24 * time.Hour),
	}))

	c.Add(time.Hour + time.Second)

	// Act
	code, err := allocator.Reserve(context.Background())

	// Assert
	require.NoError(t, err)
	require.Equal(t, "AAAAAA", code)
}

func Test_Reserve_Fails_After_Max_Attempts(t *testing.T) {
	// Arrange
	c := clock.NewMock()
	store := memstore.New(memstore.WithClock(c))

	attempts := 0
	generator := func() (string, error) {
		attempts++
		return "AAAAAA", nil
	}
	allocator := NewAllocator(store, WithClock(c), WithGenerator(generator))

	require.NoError(t, allocator.Save(context.Background(), Reservation{
		Code:             "AAAAAA",
		SessionID:        "s1",
		CodeExpiresAt:    c.Now().Add(time.Hour),
		SessionExpiresAt: c.Now().Add(24 * time.Hour),
	}))

	// Act
	_, err := allocator.Reserve(context.Background())

	// Assert
	require.ErrorIs(t, err, ErrAllocationExhausted)
	require.Equal(t, MaxAttempts, attempts)
}

func Test_Reserve_Propagates_Generator_Failure(t *testing.T) {
	// Arrange
	failure := errors.New("no entropy")
	allocator := NewAllocator(memstore.New(), WithGenerator(func() (string, error) { return "", failure }))

	// Act
	_, err := allocator.Reserve(context.Background())

	// Assert
	require.ErrorIs(t, err, failure)
}

func Test_Successive_Reservations_Never_Collide_While_Reserved(t *testing.T) {
	// Arrange
	store := memstore.New()
	allocator := NewAllocator(store)
	ctx := context.Background()
	now := time.Now()

	seen := make(map[string]struct{})

	for i := 0; i < 50; i++ {
		// Act
		code, err := allocator.Reserve(ctx)
		require.NoError(t, err)

		// Assert
		_, duplicate := seen[code]
		require.False(t, duplicate)
		seen[code] = struct{}{}

		require.NoError(t, allocator.Save(ctx, Reservation{
			Code:             code,
			SessionID:        code,
			CodeExpiresAt:    now.Add(time.Hour),
			SessionExpiresAt: now.Add(24 * time.Hour),
		}))
	}
}
