package commands

import (
	"context"
	"net/http"

	"github.com/eskrenkovic/fear-tracker-go/internal/docstore"
	"github.com/eskrenkovic/fear-tracker-go/internal/modules/core"
	sessiondomain "github.com/eskrenkovic/fear-tracker-go/internal/modules/game-session/domain"
	"github.com/eskrenkovic/fear-tracker-go/internal/modules/presence/domain"

	"github.com/eskrenkovic/mediator-go"
	"github.com/go-chi/chi"
)

// HeartbeatCommand stamps the member's lastSeenAt with the store clock.
type HeartbeatCommand struct {
	SessionID string
	MemberID  string
}

func (c HeartbeatCommand) Validate() error {
	if c.SessionID == "" {
		return sessiondomain.ErrSessionNotFound
	}

	if c.MemberID == "" {
		return domain.ErrMemberNotFound
	}

	return nil
}

func HandleHeartbeat(w http.ResponseWriter, r *http.Request) {
	command := HeartbeatCommand{
		SessionID: chi.URLParam(r, "id"),
		MemberID:  core.Session(r.Context()).MemberID,
	}

	if _, err := mediator.Send[HeartbeatCommand, core.Unit](r.Context(), command); err != nil {
		core.WriteCommandError(w, r, err)
		return
	}

	core.WriteNoContent(w, r)
}

type HeartbeatCommandHandler struct {
	store docstore.Store
}

func NewHeartbeatCommandHandler(store docstore.Store) *HeartbeatCommandHandler {
	return &HeartbeatCommandHandler{store: store}
}

func (h *HeartbeatCommandHandler) Handle(ctx context.Context, request HeartbeatCommand) (core.Unit, error) {
	err := h.store.Update(ctx, sessiondomain.MemberPath(request.SessionID, request.MemberID), docstore.Fields{
		"lastSeenAt": docstore.ServerTimestamp,
	})
	if docstore.IsNotFound(err) {
		return core.Unit{}, core.NewCommandError(http.StatusNotFound, domain.ErrMemberNotFound)
	}
	if err != nil {
		return core.Unit{}, core.NewCommandError(http.StatusInternalServerError, err)
	}

	return core.Unit{}, nil
}
