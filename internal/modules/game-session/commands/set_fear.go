package commands

import (
	"context"
	"net/http"

	"github.com/eskrenkovic/fear-tracker-go/internal/docstore"
	"github.com/eskrenkovic/fear-tracker-go/internal/modules/core"
	"github.com/eskrenkovic/fear-tracker-go/internal/modules/game-session/domain"
	"github.com/eskrenkovic/fear-tracker-go/internal/modules/game-session/queries"

	"github.com/eskrenkovic/mediator-go"
	"github.com/go-chi/chi"
)

type SetFearCommand struct {
	SessionID string `json:"-"`
	Value     int    `json:"value"`
}

func (c SetFearCommand) Validate() error {
	if c.SessionID == "" {
		return domain.ErrSessionNotFound
	}

	return nil
}

type SetFearResponse struct {
	Fear int `json:"fear"`
}

func HandleSetFear(w http.ResponseWriter, r *http.Request) {
	command, err := core.RequestBody[SetFearCommand](r)
	if err != nil {
		core.WriteBadRequest(w, r, err)
		return
	}
	command.SessionID = chi.URLParam(r, "id")

	if !queries.RequireHost(w, r, command.SessionID) {
		return
	}

	response, err := mediator.Send[SetFearCommand, SetFearResponse](r.Context(), command)
	if err != nil {
		core.WriteCommandError(w, r, err)
		return
	}

	core.WriteOK(w, r, response)
}

type SetFearCommandHandler struct {
	repository *domain.Repository
}

func NewSetFearCommandHandler(repository *domain.Repository) *SetFearCommandHandler {
	return &SetFearCommandHandler{repository: repository}
}

// Handle clamps the value into the fear range before writing. It does not
// check who is asking.
func (h *SetFearCommandHandler) Handle(ctx context.Context, request SetFearCommand) (SetFearResponse, error) {
	fear := domain.ClampFear(request.Value)

	err := h.repository.Store().Update(ctx, domain.SessionPath(request.SessionID), docstore.Fields{
		"fear":      fear,
		"updatedAt": docstore.ServerTimestamp,
	})
	if docstore.IsNotFound(err) {
		return SetFearResponse{}, domain.CommandError(domain.ErrSessionNotFound)
	}
	if err != nil {
		return SetFearResponse{}, domain.CommandError(err)
	}

	return SetFearResponse{Fear: fear}, nil
}
