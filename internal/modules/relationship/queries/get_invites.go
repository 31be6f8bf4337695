package queries

import (
	"context"
	"net/http"

	"github.com/eskrenkovic/fear-tracker-go/internal/modules/core"
	"github.com/eskrenkovic/fear-tracker-go/internal/modules/relationship/domain"

	"github.com/eskrenkovic/mediator-go"
)

// GetInvitesQuery lists the invites addressed to an account. Invites the
// account sent are not included.
type GetInvitesQuery struct {
	AccountID string
}

func (q GetInvitesQuery) Validate() error {
	if q.AccountID == "" {
		return domain.ErrSignInToAccept
	}

	return nil
}

func HandleGetInvites(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	caller := core.Session(ctx)
	if !caller.SignedIn() {
		core.WriteCommandError(w, r, domain.CommandError(domain.ErrSignInToAccept))
		return
	}

	response, err := mediator.Send[GetInvitesQuery, domain.InvitesView](
		ctx,
		GetInvitesQuery{AccountID: caller.AccountID},
	)
	if err != nil {
		core.WriteCommandError(w, r, err)
		return
	}

	core.WriteOK(w, r, response)
}

type GetInvitesQueryHandler struct {
	invites *domain.Engine[domain.Invite]
}

func NewGetInvitesQueryHandler(invites *domain.Engine[domain.Invite]) *GetInvitesQueryHandler {
	return &GetInvitesQueryHandler{invites: invites}
}

func (h *GetInvitesQueryHandler) Handle(ctx context.Context, request GetInvitesQuery) (domain.InvitesView, error) {
	list, err := h.invites.List(ctx, request.AccountID)
	if err != nil {
		return domain.InvitesView{}, domain.CommandError(err)
	}

	return domain.NewInvitesView(list), nil
}
