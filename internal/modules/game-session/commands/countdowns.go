package commands

import (
	"context"
	"net/http"
	"strings"

	"github.com/eskrenkovic/fear-tracker-go/internal/docstore"
	"github.com/eskrenkovic/fear-tracker-go/internal/modules/core"
	"github.com/eskrenkovic/fear-tracker-go/internal/modules/game-session/domain"
	"github.com/eskrenkovic/fear-tracker-go/internal/modules/game-session/queries"

	"github.com/eskrenkovic/mediator-go"
	"github.com/go-chi/chi"
)

type AddCountdownCommand struct {
	SessionID string             `json:"-"`
	Name      string             `json:"name"`
	Max       float64            `json:"max"`
	CreatedBy domain.Participant `json:"-"`
}

func (c AddCountdownCommand) Validate() error {
	if c.SessionID == "" {
		return domain.ErrSessionNotFound
	}

	if strings.TrimSpace(c.Name) == "" {
		return domain.ErrCountdownName
	}

	return nil
}

type AddCountdownResponse struct {
	ID  string `json:"id"`
	Max int    `json:"max"`
}

func HandleAddCountdown(w http.ResponseWriter, r *http.Request) {
	command, err := core.RequestBody[AddCountdownCommand](r)
	if err != nil {
		core.WriteBadRequest(w, r, err)
		return
	}
	command.SessionID = chi.URLParam(r, "id")
	command.CreatedBy = callerParticipant(core.Session(r.Context()))

	if !queries.RequireHost(w, r, command.SessionID) {
		return
	}

	response, err := mediator.Send[AddCountdownCommand, AddCountdownResponse](r.Context(), command)
	if err != nil {
		core.WriteCommandError(w, r, err)
		return
	}

	core.WriteCreated(w, r, "/sessions/"+command.SessionID+"/countdowns/"+response.ID, response)
}

type AddCountdownCommandHandler struct {
	repository *domain.Repository
}

func NewAddCountdownCommandHandler(repository *domain.Repository) *AddCountdownCommandHandler {
	return &AddCountdownCommandHandler{repository: repository}
}

func (h *AddCountdownCommandHandler) Handle(ctx context.Context, request AddCountdownCommand) (AddCountdownResponse, error) {
	maxValue := domain.NormalizeCountdownMax(request.Max)

	id, err := h.repository.Store().Add(ctx, domain.CountdownsCollection(request.SessionID), docstore.Fields{
		"name":      strings.TrimSpace(request.Name),
		"max":       maxValue,
		"value":     0,
		"createdBy": request.CreatedBy.Fields(),
		"createdAt": docstore.ServerTimestamp,
		"updatedAt": docstore.ServerTimestamp,
	})
	if err != nil {
		return AddCountdownResponse{}, domain.CommandError(err)
	}

	return AddCountdownResponse{ID: id, Max: maxValue}, nil
}

// UpdateCountdownCommand changes any of the name, max and value. The stored
// value is always clamped against the max in effect after the update.
type UpdateCountdownCommand struct {
	SessionID   string   `json:"-"`
	CountdownID string   `json:"-"`
	Name        *string  `json:"name"`
	Max         *float64 `json:"max"`
	Value       *int     `json:"value"`
}

func (c UpdateCountdownCommand) Validate() error {
	if c.SessionID == "" {
		return domain.ErrSessionNotFound
	}

	if c.CountdownID == "" {
		return domain.ErrCountdownNotFound
	}

	if c.Name != nil && strings.TrimSpace(*c.Name) == "" {
		return domain.ErrCountdownName
	}

	return nil
}

func HandleUpdateCountdown(w http.ResponseWriter, r *http.Request) {
	command, err := core.RequestBody[UpdateCountdownCommand](r)
	if err != nil {
		core.WriteBadRequest(w, r, err)
		return
	}
	command.SessionID = chi.URLParam(r, "id")
	command.CountdownID = chi.URLParam(r, "countdownId")

	if !queries.RequireHost(w, r, command.SessionID) {
		return
	}

	response, err := mediator.Send[UpdateCountdownCommand, domain.Countdown](r.Context(), command)
	if err != nil {
		core.WriteCommandError(w, r, err)
		return
	}

	core.WriteOK(w, r, response)
}

type UpdateCountdownCommandHandler struct {
	repository *domain.Repository
}

func NewUpdateCountdownCommandHandler(repository *domain.Repository) *UpdateCountdownCommandHandler {
	return &UpdateCountdownCommandHandler{repository: repository}
}

func (h *UpdateCountdownCommandHandler) Handle(
	ctx context.Context,
	request UpdateCountdownCommand,
) (domain.Countdown, error) {
	countdown, err := h.repository.Countdown(ctx, request.SessionID, request.CountdownID)
	if err != nil {
		return domain.Countdown{}, domain.CommandError(err)
	}

	fields := docstore.Fields{"updatedAt": docstore.ServerTimestamp}

	if request.Name != nil {
		name := strings.TrimSpace(*request.Name)
		countdown.Name = &name
		fields["name"] = name
	}

	if request.Max != nil {
		countdown.Max = domain.NormalizeCountdownMax(*request.Max)
		fields["max"] = countdown.Max
	}

	value := countdown.Value
	if request.Value != nil {
		value = *request.Value
	}
	countdown.Value = domain.ClampCountdownValue(value, countdown.Max)
	fields["value"] = countdown.Value

	err = h.repository.Store().Update(ctx, domain.CountdownPath(request.SessionID, request.CountdownID), fields)
	if docstore.IsNotFound(err) {
		return domain.Countdown{}, domain.CommandError(domain.ErrCountdownNotFound)
	}
	if err != nil {
		return domain.Countdown{}, domain.CommandError(err)
	}

	return countdown, nil
}

type RemoveCountdownCommand struct {
	SessionID   string
	CountdownID string
}

func (c RemoveCountdownCommand) Validate() error {
	if c.SessionID == "" {
		return domain.ErrSessionNotFound
	}

	if c.CountdownID == "" {
		return domain.ErrCountdownNotFound
	}

	return nil
}

func HandleRemoveCountdown(w http.ResponseWriter, r *http.Request) {
	command := RemoveCountdownCommand{
		SessionID:   chi.URLParam(r, "id"),
		CountdownID: chi.URLParam(r, "countdownId"),
	}

	if !queries.RequireHost(w, r, command.SessionID) {
		return
	}

	if _, err := mediator.Send[RemoveCountdownCommand, core.Unit](r.Context(), command); err != nil {
		core.WriteCommandError(w, r, err)
		return
	}

	core.WriteNoContent(w, r)
}

type RemoveCountdownCommandHandler struct {
	repository *domain.Repository
}

func NewRemoveCountdownCommandHandler(repository *domain.Repository) *RemoveCountdownCommandHandler {
	return &RemoveCountdownCommandHandler{repository: repository}
}

func (h *RemoveCountdownCommandHandler) Handle(ctx context.Context, request RemoveCountdownCommand) (core.Unit, error) {
	path := domain.CountdownPath(request.SessionID, request.CountdownID)
	if err := h.repository.Store().Delete(ctx, path); err != nil {
		return core.Unit{}, domain.CommandError(err)
	}

	return core.Unit{}, nil
}
