package commands

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/eskrenkovic/fear-tracker-go/internal/modules/core"
	sessiondomain "github.com/eskrenkovic/fear-tracker-go/internal/modules/game-session/domain"
	"github.com/eskrenkovic/fear-tracker-go/internal/modules/identity"
	"github.com/eskrenkovic/fear-tracker-go/internal/modules/relationship/domain"

	"github.com/eskrenkovic/mediator-go"
)

// SendInviteCommand invites an account to the session the sender is hosting.
// The target is addressed either by profile invite code or by account id.
type SendInviteCommand struct {
	SessionID  string  `json:"sessionId"`
	InviteCode string  `json:"inviteCode"`
	ToUID      string  `json:"toUid"`
	Message    *string `json:"message"`

	FromUID      string `json:"-"`
	FromName     string `json:"-"`
	FromMemberID string `json:"-"`
}

func (c SendInviteCommand) Validate() error {
	if c.FromUID == "" {
		return domain.ErrSignInToInvite
	}

	if c.SessionID == "" {
		return domain.ErrMustHostToInvite
	}

	if strings.TrimSpace(c.InviteCode) == "" && c.ToUID == "" {
		return domain.ErrInviteTargetEmpty
	}

	return nil
}

func HandleSendInvite(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	caller := core.Session(ctx)
	if !caller.SignedIn() {
		core.WriteCommandError(w, r, domain.CommandError(domain.ErrSignInToInvite))
		return
	}

	command, err := core.RequestBody[SendInviteCommand](r)
	if err != nil {
		core.WriteBadRequest(w, r, err)
		return
	}
	command.FromUID = caller.AccountID
	command.FromName = caller.DisplayName
	command.FromMemberID = caller.MemberID

	response, err := mediator.Send[SendInviteCommand, domain.Invite](ctx, command)
	if err != nil {
		core.WriteCommandError(w, r, err)
		return
	}

	core.WriteCreated(w, r, "/invites/"+response.ID, response)
}

type SendInviteCommandHandler struct {
	invites  *domain.Engine[domain.Invite]
	sessions *sessiondomain.Repository
}

func NewSendInviteCommandHandler(
	invites *domain.Engine[domain.Invite],
	sessions *sessiondomain.Repository,
) *SendInviteCommandHandler {
	return &SendInviteCommandHandler{invites: invites, sessions: sessions}
}

// Handle always appends a new invite; the same pair may hold any number of
// them.
func (h *SendInviteCommandHandler) Handle(ctx context.Context, request SendInviteCommand) (domain.Invite, error) {
	session, err := h.sessions.FetchByID(ctx, request.SessionID)
	if errors.Is(err, sessiondomain.ErrSessionNotFound) {
		return domain.Invite{}, domain.CommandError(domain.ErrMustHostToInvite)
	}
	if err != nil {
		return domain.Invite{}, domain.CommandError(err)
	}

	if !session.IsHost(request.FromMemberID) {
		return domain.Invite{}, domain.CommandError(domain.ErrMustHostToInvite)
	}

	toUID := request.ToUID
	if strings.TrimSpace(request.InviteCode) != "" {
		profile, err := domain.FindProfileByInviteCode(ctx, h.invites.Store(), request.InviteCode)
		if err != nil {
			return domain.Invite{}, domain.CommandError(err)
		}
		toUID = profile.UID
	}

	if toUID == request.FromUID {
		return domain.Invite{}, domain.CommandError(domain.ErrCannotInviteSelf)
	}

	fromName := request.FromName
	if fromName == "" {
		fromName = identity.DefaultDisplayName
	}

	var message *string
	if request.Message != nil {
		message = optional(strings.TrimSpace(*request.Message))
	}

	expiresAt := session.SessionExpiresAt

	invite := domain.Invite{
		ToUID:            toUID,
		FromUID:          request.FromUID,
		FromName:         fromName,
		SessionID:        session.ID,
		SessionName:      session.Name,
		SessionCode:      session.Code,
		SessionExpiresAt: &expiresAt,
		Message:          message,
		Status:           domain.StatusPending,
	}

	invite.ID, err = h.invites.Store().Add(ctx, domain.InvitesCollection, invite.Fields())
	if err != nil {
		return domain.Invite{}, domain.CommandError(err)
	}

	return invite, nil
}
