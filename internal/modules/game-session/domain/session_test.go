package domain

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func Test_ClampFear_Keeps_Value_In_Range(t *testing.T) {
	require.Equal(t, 0, ClampFear(-3))
	require.Equal(t, 7, ClampFear(7))
	require.Equal(t, 12, ClampFear(40))
}

func Test_NormalizeCountdownMax_Floors_To_At_Least_One(t *testing.T) {
	require.Equal(t, 1, NormalizeCountdownMax(0))
	require.Equal(t, 1, NormalizeCountdownMax(-5))
	require.Equal(t, 1, NormalizeCountdownMax(math.NaN()))
	require.Equal(t, 4, NormalizeCountdownMax(4.9))
}

func Test_ClampCountdownValue_Keeps_Value_Between_Zero_And_Max(t *testing.T) {
	require.Equal(t, 0, ClampCountdownValue(-1, 5))
	require.Equal(t, 3, ClampCountdownValue(3, 5))
	require.Equal(t, 5, ClampCountdownValue(9, 5))
}

func Test_ResolveRole_Host_Member_Is_Always_Host(t *testing.T) {
	// Arrange
	session := Session{Host: Participant{MemberID: "host-1"}}

	// Act & Assert
	require.Equal(t, RoleHost, session.ResolveRole("host-1", RolePlayer))
	require.Equal(t, RolePlayer, session.ResolveRole("guest-2", ""))
	require.Equal(t, RoleHost, session.ResolveRole("guest-2", RoleHost))
}

func Test_Session_Expiry_Is_Inclusive(t *testing.T) {
	// Arrange
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	session := Session{CodeExpiresAt: now, SessionExpiresAt: now.Add(time.Hour)}

	// Assert
	require.True(t, session.CodeExpired(now))
	require.False(t, session.Expired(now))
	require.True(t, session.Expired(now.Add(time.Hour)))
}

func Test_TrimmedName_Returns_Nil_For_Blank(t *testing.T) {
	blank := "   "
	named := "  Jagged Earth "

	require.Nil(t, TrimmedName(nil))
	require.Nil(t, TrimmedName(&blank))
	require.Equal(t, "Jagged Earth", *TrimmedName(&named))
}
