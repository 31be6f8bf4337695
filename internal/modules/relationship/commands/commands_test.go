package commands

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/eskrenkovic/fear-tracker-go/internal/docstore"
	"github.com/eskrenkovic/fear-tracker-go/internal/docstore/memstore"
	"github.com/eskrenkovic/fear-tracker-go/internal/modules/core"
	sessioncommands "github.com/eskrenkovic/fear-tracker-go/internal/modules/game-session/commands"
	sessiondomain "github.com/eskrenkovic/fear-tracker-go/internal/modules/game-session/domain"
	"github.com/eskrenkovic/fear-tracker-go/internal/modules/joincode"
	"github.com/eskrenkovic/fear-tracker-go/internal/modules/relationship/domain"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	clock       *clock.Mock
	store       *memstore.Store
	sessions    *sessiondomain.Repository
	friendships *domain.Engine[domain.Friendship]
	invites     *domain.Engine[domain.Invite]
}

func newFixture(t *testing.T) fixture {
	t.Helper()

	c := clock.NewMock()
	c.Set(time.Date(2024, 5, 1, 18, 0, 0, 0, time.UTC))

	store := memstore.New(memstore.WithClock(c))
	t.Cleanup(func() { _ = store.Close() })

	allocator := joincode.NewAllocator(store, joincode.WithClock(c))

	return fixture{
		clock:       c,
		store:       store,
		sessions:    sessiondomain.NewRepository(store, allocator, c),
		friendships: domain.NewEngine(store, domain.Friendships()),
		invites:     domain.NewEngine(store, domain.Invites()),
	}
}

func (f fixture) profile(t *testing.T, uid string, name string, inviteCode string) {
	t.Helper()

	require.NoError(t, f.store.Set(context.Background(), domain.PublicProfilePath(uid), docstore.Fields{
		"displayName": name,
		"photoURL":    nil,
		"inviteCode":  inviteCode,
		"updatedAt":   docstore.ServerTimestamp,
	}))
}

func (f fixture) hostSession(t *testing.T, accountID string) sessioncommands.CreateSessionResponse {
	t.Helper()

	name := "Thursday table"
	response, err := sessioncommands.NewCreateSessionCommandHandler(f.sessions, sessiondomain.DefaultSettings()).Handle(
		context.Background(),
		sessioncommands.CreateSessionCommand{
			HostName:      "Ana",
			SessionName:   &name,
			HostAccountID: accountID,
			HostMemberID:  accountID,
		},
	)
	require.NoError(t, err)

	return response
}

func statusOf(t *testing.T, err error) int {
	t.Helper()

	var commandErr core.CommandError
	require.ErrorAs(t, err, &commandErr)
	return commandErr.StatusCode
}

func Test_SendFriendRequest_Creates_Pending_Friendship_With_Pair_Id(t *testing.T) {
	// Arrange
	f := newFixture(t)
	f.profile(t, "bob", "Bob", "BOB234")
	handler := NewSendFriendRequestCommandHandler(f.friendships)

	// Act
	friendship, err := handler.Handle(context.Background(), SendFriendRequestCommand{
		InviteCode: " bob234 ",
		FromUID:    "zed",
		FromName:   "Zed",
	})

	// Assert
	require.NoError(t, err)
	require.Equal(t, "bob_zed", friendship.ID)

	stored, err := f.friendships.Get(context.Background(), "bob_zed")
	require.NoError(t, err)
	require.Equal(t, domain.StatusPending, stored.Status)
	require.Equal(t, []string{"bob", "zed"}, stored.Users)
	require.Equal(t, "zed", stored.RequesterUID)
	require.Equal(t, "Bob", stored.AddresseeName)
	require.Equal(t, f.clock.Now(), *stored.CreatedAt)
}

func Test_SendFriendRequest_Refuses_To_Overwrite_Existing_Friendship(t *testing.T) {
	tests := []struct {
		name     string
		status   domain.Status
		from     string
		expected error
	}{
		{name: "accepted", status: domain.StatusAccepted, from: "ana", expected: domain.ErrAlreadyFriends},
		{name: "pending from sender", status: domain.StatusPending, from: "ana", expected: domain.ErrRequestAlreadySent},
		{name: "pending from target", status: domain.StatusPending, from: "bob", expected: domain.ErrTheyAlreadyAsked},
		{name: "declined", status: domain.StatusDeclined, from: "bob", expected: domain.ErrRequestClosed},
		{name: "cancelled", status: domain.StatusCancelled, from: "ana", expected: domain.ErrRequestClosed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			f := newFixture(t)
			f.profile(t, "bob", "Bob", "BOB234")
			require.NoError(t, f.store.Set(context.Background(), "friendships/ana_bob", docstore.Fields{
				"users":        []string{"ana", "bob"},
				"requesterUid": tt.from,
				"addresseeUid": "bob",
				"status":       string(tt.status),
			}))

			// Act
			_, err := NewSendFriendRequestCommandHandler(f.friendships).Handle(
				context.Background(),
				SendFriendRequestCommand{InviteCode: "BOB234", FromUID: "ana", FromName: "Ana"},
			)

			// Assert
			require.ErrorIs(t, err, tt.expected)
			require.Equal(t, http.StatusConflict, statusOf(t, err))

			stored, err := f.friendships.Get(context.Background(), "ana_bob")
			require.NoError(t, err)
			require.Equal(t, tt.status, stored.Status)
		})
	}
}

func Test_SendFriendRequest_Rejects_Self_And_Unknown_Codes(t *testing.T) {
	// Arrange
	f := newFixture(t)
	f.profile(t, "ana", "Ana", "ANA234")
	handler := NewSendFriendRequestCommandHandler(f.friendships)

	// Act
	_, selfErr := handler.Handle(context.Background(), SendFriendRequestCommand{InviteCode: "ANA234", FromUID: "ana"})
	_, unknownErr := handler.Handle(context.Background(), SendFriendRequestCommand{InviteCode: "ZZZZZZ", FromUID: "ana"})
	_, emptyErr := handler.Handle(context.Background(), SendFriendRequestCommand{InviteCode: "  ", FromUID: "ana"})

	// Assert
	require.ErrorIs(t, selfErr, domain.ErrCannotAddSelf)
	require.Equal(t, http.StatusBadRequest, statusOf(t, selfErr))
	require.ErrorIs(t, unknownErr, domain.ErrProfileNotFound)
	require.Equal(t, http.StatusNotFound, statusOf(t, unknownErr))
	require.ErrorIs(t, emptyErr, domain.ErrInviteCodeRequired)
}

func Test_SendFriendRequest_Validate_Requires_Sign_In(t *testing.T) {
	// Act
	err := SendFriendRequestCommand{InviteCode: "BOB234"}.Validate()

	// Assert
	require.ErrorIs(t, err, domain.ErrSignInToAddFriends)
}

func Test_RespondToFriendRequest_Sets_Status_Without_Checking_Current_Status(t *testing.T) {
	// Arrange
	f := newFixture(t)
	require.NoError(t, f.store.Set(context.Background(), "friendships/ana_bob", docstore.Fields{
		"users":        []string{"ana", "bob"},
		"requesterUid": "ana",
		"addresseeUid": "bob",
		"status":       string(domain.StatusDeclined),
	}))
	f.clock.Add(time.Minute)

	// Act
	_, err := NewRespondToFriendRequestCommandHandler(f.friendships).Handle(
		context.Background(),
		RespondToFriendRequestCommand{FriendshipID: "ana_bob", Status: domain.StatusAccepted, AccountID: "bob"},
	)

	// Assert
	require.NoError(t, err)

	stored, err := f.friendships.Get(context.Background(), "ana_bob")
	require.NoError(t, err)
	require.Equal(t, domain.StatusAccepted, stored.Status)
	require.Equal(t, f.clock.Now(), *stored.UpdatedAt)
}

func Test_RespondToFriendRequest_Rejects_Outsiders_And_Missing_Requests(t *testing.T) {
	// Arrange
	f := newFixture(t)
	require.NoError(t, f.store.Set(context.Background(), "friendships/ana_bob", docstore.Fields{
		"users":  []string{"ana", "bob"},
		"status": string(domain.StatusPending),
	}))
	handler := NewRespondToFriendRequestCommandHandler(f.friendships)

	// Act
	_, outsiderErr := handler.Handle(
		context.Background(),
		RespondToFriendRequestCommand{FriendshipID: "ana_bob", Status: domain.StatusAccepted, AccountID: "cy"},
	)
	_, missingErr := handler.Handle(
		context.Background(),
		RespondToFriendRequestCommand{FriendshipID: "ana_cy", Status: domain.StatusAccepted, AccountID: "ana"},
	)

	// Assert
	require.Equal(t, http.StatusForbidden, statusOf(t, outsiderErr))
	require.ErrorIs(t, missingErr, domain.ErrRequestNotFound)
	require.Equal(t, http.StatusNotFound, statusOf(t, missingErr))
}

func Test_RespondToFriendRequest_Rejects_Invalid_Status(t *testing.T) {
	// Arrange
	f := newFixture(t)
	require.NoError(t, f.store.Set(context.Background(), "friendships/ana_bob", docstore.Fields{
		"users":  []string{"ana", "bob"},
		"status": string(domain.StatusPending),
	}))

	// Act
	_, err := NewRespondToFriendRequestCommandHandler(f.friendships).Handle(
		context.Background(),
		RespondToFriendRequestCommand{FriendshipID: "ana_bob", Status: domain.StatusRevoked, AccountID: "ana"},
	)

	// Assert
	require.Equal(t, http.StatusBadRequest, statusOf(t, err))
}

func Test_SendInvite_Appends_Invite_For_Hosted_Session(t *testing.T) {
	// Arrange
	f := newFixture(t)
	f.profile(t, "bob", "Bob", "BOB234")
	session := f.hostSession(t, "ana")
	handler := NewSendInviteCommandHandler(f.invites, f.sessions)
	message := "  come play  "

	command := SendInviteCommand{
		SessionID:    session.ID,
		InviteCode:   "bob234",
		Message:      &message,
		FromUID:      "ana",
		FromName:     "Ana",
		FromMemberID: "ana",
	}

	// Act
	first, err := handler.Handle(context.Background(), command)
	require.NoError(t, err)
	second, err := handler.Handle(context.Background(), command)
	require.NoError(t, err)

	// Assert
	require.NotEqual(t, first.ID, second.ID)

	stored, err := f.invites.Get(context.Background(), first.ID)
	require.NoError(t, err)
	require.Equal(t, "bob", stored.ToUID)
	require.Equal(t, session.Code, stored.SessionCode)
	require.Equal(t, "Thursday table", *stored.SessionName)
	require.Equal(t, "come play", *stored.Message)
	require.Equal(t, domain.StatusPending, stored.Status)
	require.Equal(t, session.SessionExpiresAt, *stored.SessionExpiresAt)
}

func Test_SendInvite_Requires_Hosting_The_Session(t *testing.T) {
	// Arrange
	f := newFixture(t)
	f.profile(t, "bob", "Bob", "BOB234")
	session := f.hostSession(t, "ana")
	handler := NewSendInviteCommandHandler(f.invites, f.sessions)

	// Act
	_, notHostErr := handler.Handle(context.Background(), SendInviteCommand{
		SessionID:    session.ID,
		InviteCode:   "BOB234",
		FromUID:      "cy",
		FromMemberID: "cy",
	})
	f.clock.Add(25 * time.Hour)
	_, expiredErr := handler.Handle(context.Background(), SendInviteCommand{
		SessionID:    session.ID,
		InviteCode:   "BOB234",
		FromUID:      "ana",
		FromMemberID: "ana",
	})

	// Assert
	require.ErrorIs(t, notHostErr, domain.ErrMustHostToInvite)
	require.Equal(t, http.StatusForbidden, statusOf(t, notHostErr))
	require.ErrorIs(t, expiredErr, domain.ErrMustHostToInvite)
}

func Test_SendInvite_Rejects_Inviting_Self(t *testing.T) {
	// Arrange
	f := newFixture(t)
	session := f.hostSession(t, "ana")

	// Act
	_, err := NewSendInviteCommandHandler(f.invites, f.sessions).Handle(context.Background(), SendInviteCommand{
		SessionID:    session.ID,
		ToUID:        "ana",
		FromUID:      "ana",
		FromMemberID: "ana",
	})

	// Assert
	require.ErrorIs(t, err, domain.ErrCannotInviteSelf)
}

func Test_AcceptInvite_Joins_As_Player_And_Marks_Accepted(t *testing.T) {
	// Arrange
	f := newFixture(t)
	f.profile(t, "bob", "Bob", "BOB234")
	session := f.hostSession(t, "ana")

	invite, err := NewSendInviteCommandHandler(f.invites, f.sessions).Handle(context.Background(), SendInviteCommand{
		SessionID:    session.ID,
		InviteCode:   "BOB234",
		FromUID:      "ana",
		FromMemberID: "ana",
	})
	require.NoError(t, err)

	handler := NewAcceptInviteCommandHandler(f.invites, sessioncommands.NewResumeSessionCommandHandler(f.sessions))

	// Act
	joined, err := handler.Handle(context.Background(), AcceptInviteCommand{
		InviteID:     invite.ID,
		FallbackName: "Bob",
		AccountID:    "bob",
		MemberID:     "bob",
	})

	// Assert
	require.NoError(t, err)
	require.Equal(t, session.ID, joined.SessionID)
	require.Equal(t, sessiondomain.RolePlayer, joined.Role)

	members, err := f.sessions.Members(context.Background(), session.ID)
	require.NoError(t, err)
	require.Len(t, members, 2)

	stored, err := f.invites.Get(context.Background(), invite.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusAccepted, stored.Status)
}

func Test_AcceptInvite_Leaves_Invite_Pending_When_Session_Expired(t *testing.T) {
	// Arrange
	f := newFixture(t)
	session := f.hostSession(t, "ana")

	invite, err := NewSendInviteCommandHandler(f.invites, f.sessions).Handle(context.Background(), SendInviteCommand{
		SessionID:    session.ID,
		ToUID:        "bob",
		FromUID:      "ana",
		FromMemberID: "ana",
	})
	require.NoError(t, err)
	f.clock.Add(24 * time.Hour)

	handler := NewAcceptInviteCommandHandler(f.invites, sessioncommands.NewResumeSessionCommandHandler(f.sessions))

	// Act
	_, err = handler.Handle(context.Background(), AcceptInviteCommand{
		InviteID:     invite.ID,
		FallbackName: "Bob",
		AccountID:    "bob",
		MemberID:     "bob",
	})

	// Assert
	require.ErrorIs(t, err, sessiondomain.ErrSessionExpired)

	stored, err := f.invites.Get(context.Background(), invite.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusPending, stored.Status)
}

func Test_Invite_Can_Only_Be_Answered_By_Its_Target(t *testing.T) {
	// Arrange
	f := newFixture(t)
	session := f.hostSession(t, "ana")

	invite, err := NewSendInviteCommandHandler(f.invites, f.sessions).Handle(context.Background(), SendInviteCommand{
		SessionID:    session.ID,
		ToUID:        "bob",
		FromUID:      "ana",
		FromMemberID: "ana",
	})
	require.NoError(t, err)

	accept := NewAcceptInviteCommandHandler(f.invites, sessioncommands.NewResumeSessionCommandHandler(f.sessions))
	decline := NewDeclineInviteCommandHandler(f.invites)

	// Act
	_, acceptErr := accept.Handle(context.Background(), AcceptInviteCommand{
		InviteID:     invite.ID,
		FallbackName: "Cy",
		AccountID:    "cy",
		MemberID:     "cy",
	})
	_, declineErr := decline.Handle(context.Background(), DeclineInviteCommand{InviteID: invite.ID, AccountID: "cy"})

	// Assert
	require.ErrorIs(t, acceptErr, domain.ErrNotInviteTarget)
	require.ErrorIs(t, declineErr, domain.ErrNotInviteTarget)
	require.Equal(t, http.StatusForbidden, statusOf(t, declineErr))
}

func Test_DeclineInvite_Marks_Declined(t *testing.T) {
	// Arrange
	f := newFixture(t)
	session := f.hostSession(t, "ana")

	invite, err := NewSendInviteCommandHandler(f.invites, f.sessions).Handle(context.Background(), SendInviteCommand{
		SessionID:    session.ID,
		ToUID:        "bob",
		FromUID:      "ana",
		FromMemberID: "ana",
	})
	require.NoError(t, err)

	// Act
	_, err = NewDeclineInviteCommandHandler(f.invites).Handle(
		context.Background(),
		DeclineInviteCommand{InviteID: invite.ID, AccountID: "bob"},
	)

	// Assert
	require.NoError(t, err)

	stored, err := f.invites.Get(context.Background(), invite.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusDeclined, stored.Status)
}

func Test_EnsureUserProfile_Assigns_Invite_Code_Once(t *testing.T) {
	// Arrange
	f := newFixture(t)
	handler := NewEnsureUserProfileCommandHandler(f.store)
	codes := []string{"ANA234", "XYZ789"}
	handler.generateCode = func() (string, error) {
		code := codes[0]
		codes = codes[1:]
		return code, nil
	}

	// Act
	first, err := handler.Handle(context.Background(), EnsureUserProfileCommand{
		AccountID:   "ana",
		DisplayName: "Ana",
		Email:       "Ana@Example.com",
	})
	require.NoError(t, err)

	f.clock.Add(time.Hour)
	second, err := handler.Handle(context.Background(), EnsureUserProfileCommand{
		AccountID:   "ana",
		DisplayName: "Ana B",
		Email:       "Ana@Example.com",
	})
	require.NoError(t, err)

	// Assert
	require.Equal(t, "ANA234", first.InviteCode)
	require.Equal(t, "ANA234", second.InviteCode)
	require.Equal(t, "Ana B", *second.DisplayName)

	user, err := f.store.Get(context.Background(), domain.UserPath("ana"))
	require.NoError(t, err)
	require.Equal(t, "ana@example.com", user.Fields["emailLower"])
	require.Equal(t, time.Date(2024, 5, 1, 18, 0, 0, 0, time.UTC), user.Fields["createdAt"])
	require.Equal(t, f.clock.Now(), user.Fields["updatedAt"])

	profile, err := domain.FindProfileByInviteCode(context.Background(), f.store, "ana234")
	require.NoError(t, err)
	require.Equal(t, "ana", profile.UID)
}
