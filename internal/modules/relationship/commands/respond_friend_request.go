package commands

import (
	"context"
	"net/http"

	"github.com/eskrenkovic/fear-tracker-go/internal/modules/core"
	"github.com/eskrenkovic/fear-tracker-go/internal/modules/relationship/domain"

	"github.com/eskrenkovic/mediator-go"
	"github.com/go-chi/chi"
)

// RespondToFriendRequestCommand accepts, declines or cancels a friendship.
// Either party may respond; the current status is not checked.
type RespondToFriendRequestCommand struct {
	FriendshipID string        `json:"-"`
	Status       domain.Status `json:"status"`
	AccountID    string        `json:"-"`
}

func (c RespondToFriendRequestCommand) Validate() error {
	if c.AccountID == "" {
		return domain.ErrSignInToAddFriends
	}

	if c.FriendshipID == "" {
		return domain.ErrRequestNotFound
	}

	return nil
}

func HandleRespondToFriendRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	command, err := core.RequestBody[RespondToFriendRequestCommand](r)
	if err != nil {
		core.WriteBadRequest(w, r, err)
		return
	}
	command.FriendshipID = chi.URLParam(r, "id")
	command.AccountID = core.Session(ctx).AccountID

	if _, err := mediator.Send[RespondToFriendRequestCommand, core.Unit](ctx, command); err != nil {
		core.WriteCommandError(w, r, err)
		return
	}

	core.WriteNoContent(w, r)
}

type RespondToFriendRequestCommandHandler struct {
	friendships *domain.Engine[domain.Friendship]
}

func NewRespondToFriendRequestCommandHandler(
	friendships *domain.Engine[domain.Friendship],
) *RespondToFriendRequestCommandHandler {
	return &RespondToFriendRequestCommandHandler{friendships: friendships}
}

func (h *RespondToFriendRequestCommandHandler) Handle(
	ctx context.Context,
	request RespondToFriendRequestCommand,
) (core.Unit, error) {
	if !h.friendships.ValidStatus(request.Status) || request.Status == domain.StatusPending {
		return core.Unit{}, domain.CommandError(domain.ErrInvalidStatus)
	}

	friendship, err := h.friendships.Get(ctx, request.FriendshipID)
	if err != nil {
		return core.Unit{}, domain.CommandError(err)
	}

	if !friendship.Involves(request.AccountID) {
		return core.Unit{}, domain.CommandError(domain.ErrNotFriendshipParty)
	}

	if err := h.friendships.Respond(ctx, request.FriendshipID, request.Status); err != nil {
		return core.Unit{}, domain.CommandError(err)
	}

	return core.Unit{}, nil
}
