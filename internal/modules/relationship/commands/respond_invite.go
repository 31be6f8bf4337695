package commands

import (
	"context"
	"net/http"

	"github.com/eskrenkovic/fear-tracker-go/internal/modules/core"
	sessioncommands "github.com/eskrenkovic/fear-tracker-go/internal/modules/game-session/commands"
	sessiondomain "github.com/eskrenkovic/fear-tracker-go/internal/modules/game-session/domain"
	"github.com/eskrenkovic/fear-tracker-go/internal/modules/relationship/domain"

	"github.com/eskrenkovic/mediator-go"
	"github.com/go-chi/chi"
)

type sessionResumer interface {
	Handle(ctx context.Context, request sessioncommands.ResumeSessionCommand) (sessioncommands.JoinSessionResponse, error)
}

// AcceptInviteCommand joins the invited session as a player and then marks
// the invite accepted. A failed join leaves the invite pending.
type AcceptInviteCommand struct {
	InviteID     string `json:"-"`
	FallbackName string `json:"name"`

	AccountID string `json:"-"`
	MemberID  string `json:"-"`
}

func (c AcceptInviteCommand) Validate() error {
	if c.AccountID == "" {
		return domain.ErrSignInToAccept
	}

	if c.InviteID == "" {
		return domain.ErrRequestNotFound
	}

	return nil
}

func HandleAcceptInvite(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	caller := core.Session(ctx)
	command := AcceptInviteCommand{
		InviteID:     chi.URLParam(r, "id"),
		FallbackName: caller.DisplayName,
		AccountID:    caller.AccountID,
		MemberID:     caller.MemberID,
	}

	response, err := mediator.Send[AcceptInviteCommand, sessioncommands.JoinSessionResponse](ctx, command)
	if err != nil {
		core.WriteCommandError(w, r, err)
		return
	}

	core.WriteOK(w, r, response)
}

type AcceptInviteCommandHandler struct {
	invites *domain.Engine[domain.Invite]
	resume  sessionResumer
}

func NewAcceptInviteCommandHandler(
	invites *domain.Engine[domain.Invite],
	resume sessionResumer,
) *AcceptInviteCommandHandler {
	return &AcceptInviteCommandHandler{invites: invites, resume: resume}
}

func (h *AcceptInviteCommandHandler) Handle(
	ctx context.Context,
	request AcceptInviteCommand,
) (sessioncommands.JoinSessionResponse, error) {
	invite, err := h.invites.Get(ctx, request.InviteID)
	if err != nil {
		return sessioncommands.JoinSessionResponse{}, domain.CommandError(err)
	}

	if invite.ToUID != request.AccountID {
		return sessioncommands.JoinSessionResponse{}, domain.CommandError(domain.ErrNotInviteTarget)
	}

	joined, err := h.resume.Handle(ctx, sessioncommands.ResumeSessionCommand{
		SessionID:    invite.SessionID,
		Role:         sessiondomain.RolePlayer,
		FallbackName: request.FallbackName,
		MemberID:     request.MemberID,
		AccountID:    request.AccountID,
	})
	if err != nil {
		return sessioncommands.JoinSessionResponse{}, domain.CommandError(err)
	}

	if err := h.invites.Respond(ctx, invite.ID, domain.StatusAccepted); err != nil {
		return sessioncommands.JoinSessionResponse{}, domain.CommandError(err)
	}

	return joined, nil
}

type DeclineInviteCommand struct {
	InviteID  string
	AccountID string
}

func (c DeclineInviteCommand) Validate() error {
	if c.AccountID == "" {
		return domain.ErrSignInToAccept
	}

	if c.InviteID == "" {
		return domain.ErrRequestNotFound
	}

	return nil
}

func HandleDeclineInvite(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	command := DeclineInviteCommand{
		InviteID:  chi.URLParam(r, "id"),
		AccountID: core.Session(ctx).AccountID,
	}

	if _, err := mediator.Send[DeclineInviteCommand, core.Unit](ctx, command); err != nil {
		core.WriteCommandError(w, r, err)
		return
	}

	core.WriteNoContent(w, r)
}

type DeclineInviteCommandHandler struct {
	invites *domain.Engine[domain.Invite]
}

func NewDeclineInviteCommandHandler(invites *domain.Engine[domain.Invite]) *DeclineInviteCommandHandler {
	return &DeclineInviteCommandHandler{invites: invites}
}

func (h *DeclineInviteCommandHandler) Handle(ctx context.Context, request DeclineInviteCommand) (core.Unit, error) {
	invite, err := h.invites.Get(ctx, request.InviteID)
	if err != nil {
		return core.Unit{}, domain.CommandError(err)
	}

	if invite.ToUID != request.AccountID {
		return core.Unit{}, domain.CommandError(domain.ErrNotInviteTarget)
	}

	if err := h.invites.Respond(ctx, invite.ID, domain.StatusDeclined); err != nil {
		return core.Unit{}, domain.CommandError(err)
	}

	return core.Unit{}, nil
}
