package commands

import (
	"context"
	"net/http"
	"time"

	"github.com/eskrenkovic/fear-tracker-go/internal/modules/core"
	sessiondomain "github.com/eskrenkovic/fear-tracker-go/internal/modules/game-session/domain"
	"github.com/eskrenkovic/fear-tracker-go/internal/modules/game-session/queries"
	"github.com/eskrenkovic/fear-tracker-go/internal/modules/presence/domain"

	"github.com/eskrenkovic/mediator-go"
	"github.com/go-chi/chi"
	"go.uber.org/multierr"
)

// RemoveStaleMembersCommand deletes every member whose last heartbeat is at
// or past the stale threshold. It does not check who is asking.
type RemoveStaleMembersCommand struct {
	SessionID string
}

func (c RemoveStaleMembersCommand) Validate() error {
	if c.SessionID == "" {
		return sessiondomain.ErrSessionNotFound
	}

	return nil
}

type RemoveStaleMembersResponse struct {
	Removed []string `json:"removed"`
}

func HandleRemoveStaleMembers(w http.ResponseWriter, r *http.Request) {
	command := RemoveStaleMembersCommand{SessionID: chi.URLParam(r, "id")}

	if !queries.RequireHost(w, r, command.SessionID) {
		return
	}

	response, err := mediator.Send[RemoveStaleMembersCommand, RemoveStaleMembersResponse](r.Context(), command)
	if err != nil {
		core.WriteCommandError(w, r, err)
		return
	}

	core.WriteOK(w, r, response)
}

type RemoveStaleMembersCommandHandler struct {
	repository *sessiondomain.Repository
	threshold  time.Duration
}

func NewRemoveStaleMembersCommandHandler(
	repository *sessiondomain.Repository,
	settings domain.Settings,
) *RemoveStaleMembersCommandHandler {
	return &RemoveStaleMembersCommandHandler{repository: repository, threshold: settings.StaleThreshold}
}

// Handle keeps deleting after a failed delete and reports every failure.
func (h *RemoveStaleMembersCommandHandler) Handle(
	ctx context.Context,
	request RemoveStaleMembersCommand,
) (RemoveStaleMembersResponse, error) {
	members, err := h.repository.Members(ctx, request.SessionID)
	if err != nil {
		return RemoveStaleMembersResponse{}, core.NewCommandError(http.StatusInternalServerError, err)
	}

	response := RemoveStaleMembersResponse{Removed: make([]string, 0)}

	var errs error
	for _, member := range domain.Stale(members, h.repository.Now(), h.threshold) {
		if err := h.repository.Store().Delete(ctx, sessiondomain.MemberPath(request.SessionID, member.ID)); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}

		response.Removed = append(response.Removed, member.ID)
	}

	core.StaleMembersEvicted.Add(float64(len(response.Removed)))

	if errs != nil {
		return response, core.NewCommandError(http.StatusInternalServerError, errs)
	}

	return response, nil
}
