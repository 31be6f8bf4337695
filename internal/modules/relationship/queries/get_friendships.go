package queries

import (
	"context"
	"net/http"

	"github.com/eskrenkovic/fear-tracker-go/internal/modules/core"
	"github.com/eskrenkovic/fear-tracker-go/internal/modules/relationship/domain"

	"github.com/eskrenkovic/mediator-go"
)

type GetFriendshipsQuery struct {
	AccountID string
}

func (q GetFriendshipsQuery) Validate() error {
	if q.AccountID == "" {
		return domain.ErrSignInToAddFriends
	}

	return nil
}

func HandleGetFriendships(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	caller := core.Session(ctx)
	if !caller.SignedIn() {
		core.WriteCommandError(w, r, domain.CommandError(domain.ErrSignInToAddFriends))
		return
	}

	response, err := mediator.Send[GetFriendshipsQuery, domain.FriendshipsView](
		ctx,
		GetFriendshipsQuery{AccountID: caller.AccountID},
	)
	if err != nil {
		core.WriteCommandError(w, r, err)
		return
	}

	core.WriteOK(w, r, response)
}

type GetFriendshipsQueryHandler struct {
	friendships *domain.Engine[domain.Friendship]
}

func NewGetFriendshipsQueryHandler(friendships *domain.Engine[domain.Friendship]) *GetFriendshipsQueryHandler {
	return &GetFriendshipsQueryHandler{friendships: friendships}
}

func (h *GetFriendshipsQueryHandler) Handle(
	ctx context.Context,
	request GetFriendshipsQuery,
) (domain.FriendshipsView, error) {
	list, err := h.friendships.List(ctx, request.AccountID)
	if err != nil {
		return domain.FriendshipsView{}, domain.CommandError(err)
	}

	return domain.NewFriendshipsView(list, request.AccountID), nil
}
