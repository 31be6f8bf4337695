package queries

import (
	"context"
	"net/http"

	"github.com/eskrenkovic/fear-tracker-go/internal/docstore"
	"github.com/eskrenkovic/fear-tracker-go/internal/modules/core"
	"github.com/eskrenkovic/fear-tracker-go/internal/modules/relationship/domain"

	"github.com/eskrenkovic/mediator-go"
	"github.com/go-chi/chi"
)

type GetProfileByInviteCodeQuery struct {
	InviteCode string
}

func (q GetProfileByInviteCodeQuery) Validate() error {
	if q.InviteCode == "" {
		return domain.ErrInviteCodeRequired
	}

	return nil
}

func HandleGetProfileByInviteCode(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	query := GetProfileByInviteCodeQuery{InviteCode: chi.URLParam(r, "code")}

	response, err := mediator.Send[GetProfileByInviteCodeQuery, domain.PublicProfile](ctx, query)
	if err != nil {
		core.WriteCommandError(w, r, err)
		return
	}

	core.WriteOK(w, r, response)
}

type GetProfileByInviteCodeQueryHandler struct {
	store docstore.Store
}

func NewGetProfileByInviteCodeQueryHandler(store docstore.Store) *GetProfileByInviteCodeQueryHandler {
	return &GetProfileByInviteCodeQueryHandler{store: store}
}

func (h *GetProfileByInviteCodeQueryHandler) Handle(
	ctx context.Context,
	request GetProfileByInviteCodeQuery,
) (domain.PublicProfile, error) {
	profile, err := domain.FindProfileByInviteCode(ctx, h.store, request.InviteCode)
	if err != nil {
		return domain.PublicProfile{}, domain.CommandError(err)
	}

	return profile, nil
}
