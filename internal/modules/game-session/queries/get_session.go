package queries

import (
	"context"
	"net/http"
	"strings"

	"github.com/eskrenkovic/fear-tracker-go/internal/modules/core"
	"github.com/eskrenkovic/fear-tracker-go/internal/modules/game-session/domain"

	"github.com/eskrenkovic/mediator-go"
	"github.com/go-chi/chi"
)

type GetSessionQuery struct {
	ID string
}

func (q GetSessionQuery) Validate() error {
	if strings.TrimSpace(q.ID) == "" {
		return domain.ErrSessionNotFound
	}

	return nil
}

func HandleGetSession(w http.ResponseWriter, r *http.Request) {
	query := GetSessionQuery{ID: chi.URLParam(r, "id")}

	response, err := mediator.Send[GetSessionQuery, domain.Session](r.Context(), query)
	if err != nil {
		core.WriteCommandError(w, r, err)
		return
	}

	core.WriteOK(w, r, response)
}

type GetSessionQueryHandler struct {
	repository *domain.Repository
}

func NewGetSessionQueryHandler(repository *domain.Repository) *GetSessionQueryHandler {
	return &GetSessionQueryHandler{repository: repository}
}

func (h *GetSessionQueryHandler) Handle(ctx context.Context, request GetSessionQuery) (domain.Session, error) {
	session, err := h.repository.FetchByID(ctx, request.ID)
	if err != nil {
		return domain.Session{}, domain.CommandError(err)
	}

	return session, nil
}

// FindSessionByCodeQuery resolves a join code to a live session. A session
// whose code or session lifetime has passed is reported as not found.
type FindSessionByCodeQuery struct {
	Code string
}

func (q FindSessionByCodeQuery) Validate() error {
	if strings.TrimSpace(q.Code) == "" {
		return domain.ErrJoinCodeRequired
	}

	return nil
}

func HandleFindSessionByCode(w http.ResponseWriter, r *http.Request) {
	query := FindSessionByCodeQuery{Code: chi.URLParam(r, "code")}

	response, err := mediator.Send[FindSessionByCodeQuery, domain.Session](r.Context(), query)
	if err != nil {
		core.WriteCommandError(w, r, err)
		return
	}

	core.WriteOK(w, r, response)
}

type FindSessionByCodeQueryHandler struct {
	repository *domain.Repository
}

func NewFindSessionByCodeQueryHandler(repository *domain.Repository) *FindSessionByCodeQueryHandler {
	return &FindSessionByCodeQueryHandler{repository: repository}
}

func (h *FindSessionByCodeQueryHandler) Handle(
	ctx context.Context,
	request FindSessionByCodeQuery,
) (domain.Session, error) {
	session, err := h.repository.FindByCode(ctx, request.Code)
	if err != nil {
		return domain.Session{}, domain.CommandError(err)
	}

	return session, nil
}

// RequireHost writes the error response and returns false unless the caller
// is the host of the live session.
func RequireHost(w http.ResponseWriter, r *http.Request, sessionID string) bool {
	ctx := r.Context()

	session, err := mediator.Send[GetSessionQuery, domain.Session](ctx, GetSessionQuery{ID: sessionID})
	if err != nil {
		core.WriteCommandError(w, r, err)
		return false
	}

	if !session.IsHost(core.Session(ctx).MemberID) {
		core.WriteCommandError(w, r, domain.CommandError(domain.ErrNotHost))
		return false
	}

	return true
}
