package commands

import (
	"context"
	"errors"
	"net/http"

	"github.com/eskrenkovic/fear-tracker-go/internal/docstore"
	"github.com/eskrenkovic/fear-tracker-go/internal/modules/core"
	"github.com/eskrenkovic/fear-tracker-go/internal/modules/identity"
	"github.com/eskrenkovic/fear-tracker-go/internal/modules/relationship/domain"

	"github.com/eskrenkovic/mediator-go"
)

type SendFriendRequestCommand struct {
	InviteCode string `json:"inviteCode"`

	FromUID      string  `json:"-"`
	FromName     string  `json:"-"`
	FromPhotoURL *string `json:"-"`
}

func (c SendFriendRequestCommand) Validate() error {
	if c.FromUID == "" {
		return domain.ErrSignInToAddFriends
	}

	return nil
}

func HandleSendFriendRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	caller := core.Session(ctx)
	if !caller.SignedIn() {
		core.WriteCommandError(w, r, domain.CommandError(domain.ErrSignInToAddFriends))
		return
	}

	command, err := core.RequestBody[SendFriendRequestCommand](r)
	if err != nil {
		core.WriteBadRequest(w, r, err)
		return
	}
	command.FromUID = caller.AccountID
	command.FromName = caller.DisplayName
	command.FromPhotoURL = optional(caller.PhotoURL)

	response, err := mediator.Send[SendFriendRequestCommand, domain.Friendship](ctx, command)
	if err != nil {
		core.WriteCommandError(w, r, err)
		return
	}

	core.WriteCreated(w, r, "/friendships/"+response.ID, response)
}

type SendFriendRequestCommandHandler struct {
	friendships *domain.Engine[domain.Friendship]
}

func NewSendFriendRequestCommandHandler(friendships *domain.Engine[domain.Friendship]) *SendFriendRequestCommandHandler {
	return &SendFriendRequestCommandHandler{friendships: friendships}
}

// Handle reads the pair's friendship first and refuses to overwrite it,
// whatever its status.
func (h *SendFriendRequestCommandHandler) Handle(
	ctx context.Context,
	request SendFriendRequestCommand,
) (domain.Friendship, error) {
	store := h.friendships.Store()

	target, err := domain.FindProfileByInviteCode(ctx, store, request.InviteCode)
	if err != nil {
		return domain.Friendship{}, domain.CommandError(err)
	}

	if target.UID == request.FromUID {
		return domain.Friendship{}, domain.CommandError(domain.ErrCannotAddSelf)
	}

	id := domain.FriendshipID(request.FromUID, target.UID)

	existing, err := h.friendships.Get(ctx, id)
	switch {
	case err == nil:
		return domain.Friendship{}, domain.CommandError(domain.ExistingFriendshipError(existing, request.FromUID))
	case !errors.Is(err, domain.ErrRequestNotFound):
		return domain.Friendship{}, domain.CommandError(err)
	}

	fromName := request.FromName
	if fromName == "" {
		fromName = identity.DefaultDisplayName
	}

	friendship := domain.Friendship{
		ID:                id,
		Users:             sortedPair(request.FromUID, target.UID),
		RequesterUID:      request.FromUID,
		RequesterName:     fromName,
		RequesterPhotoURL: request.FromPhotoURL,
		AddresseeUID:      target.UID,
		AddresseeName:     target.NameOr(identity.DefaultDisplayName),
		AddresseePhotoURL: target.PhotoURL,
		Status:            domain.StatusPending,
	}

	err = store.Set(ctx, h.friendships.Path(id), docstore.Fields{
		"users":             friendship.Users,
		"requesterUid":      friendship.RequesterUID,
		"requesterName":     friendship.RequesterName,
		"requesterPhotoURL": stringOrNil(friendship.RequesterPhotoURL),
		"addresseeUid":      friendship.AddresseeUID,
		"addresseeName":     friendship.AddresseeName,
		"addresseePhotoURL": stringOrNil(friendship.AddresseePhotoURL),
		"status":            string(domain.StatusPending),
		"createdAt":         docstore.ServerTimestamp,
		"updatedAt":         docstore.ServerTimestamp,
	})
	if err != nil {
		return domain.Friendship{}, domain.CommandError(err)
	}

	return friendship, nil
}

func sortedPair(a string, b string) []string {
	if b < a {
		a, b = b, a
	}
	return []string{a, b}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func stringOrNil(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
