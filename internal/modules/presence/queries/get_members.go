package queries

import (
	"context"
	"net/http"
	"time"

	"github.com/eskrenkovic/fear-tracker-go/internal/modules/core"
	sessiondomain "github.com/eskrenkovic/fear-tracker-go/internal/modules/game-session/domain"
	"github.com/eskrenkovic/fear-tracker-go/internal/modules/presence/domain"

	"github.com/eskrenkovic/mediator-go"
	"github.com/go-chi/chi"
)

type GetMembersQuery struct {
	SessionID string
}

func (q GetMembersQuery) Validate() error {
	if q.SessionID == "" {
		return sessiondomain.ErrSessionNotFound
	}

	return nil
}

func HandleGetMembers(w http.ResponseWriter, r *http.Request) {
	query := GetMembersQuery{SessionID: chi.URLParam(r, "id")}

	response, err := mediator.Send[GetMembersQuery, []domain.MemberPresence](r.Context(), query)
	if err != nil {
		core.WriteCommandError(w, r, err)
		return
	}

	core.WriteOK(w, r, response)
}

type GetMembersQueryHandler struct {
	repository *sessiondomain.Repository
	threshold  time.Duration
}

func NewGetMembersQueryHandler(repository *sessiondomain.Repository, settings domain.Settings) *GetMembersQueryHandler {
	return &GetMembersQueryHandler{repository: repository, threshold: settings.StaleThreshold}
}

// Handle lists the members of a live session in join order with liveness
// computed at read time.
func (h *GetMembersQueryHandler) Handle(ctx context.Context, request GetMembersQuery) ([]domain.MemberPresence, error) {
	if _, err := h.repository.FetchByID(ctx, request.SessionID); err != nil {
		return nil, sessiondomain.CommandError(err)
	}

	members, err := h.repository.Members(ctx, request.SessionID)
	if err != nil {
		return nil, sessiondomain.CommandError(err)
	}

	return domain.MembersWithPresence(members, h.repository.Now(), h.threshold), nil
}
