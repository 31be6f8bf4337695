package commands

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/eskrenkovic/fear-tracker-go/internal/modules/core"
	"github.com/eskrenkovic/fear-tracker-go/internal/modules/game-session/domain"
	"github.com/eskrenkovic/fear-tracker-go/internal/modules/identity"
	"github.com/eskrenkovic/fear-tracker-go/internal/modules/joincode"

	"github.com/eskrenkovic/mediator-go"
	"go.uber.org/zap"
)

type CreateSessionCommand struct {
	HostName    string  `json:"hostName"`
	SessionName *string `json:"sessionName"`

	HostAccountID string `json:"-"`
	HostMemberID  string `json:"-"`
	HostIsGuest   bool   `json:"-"`
}

func (c CreateSessionCommand) Validate() error {
	if strings.TrimSpace(c.HostName) == "" {
		return domain.ErrHostNameRequired
	}

	if strings.TrimSpace(c.HostMemberID) == "" {
		return domain.ErrHostMemberRequired
	}

	return nil
}

type CreateSessionResponse struct {
	ID               string    `json:"id"`
	Code             string    `json:"code"`
	CodeExpiresAt    time.Time `json:"codeExpiresAt"`
	SessionExpiresAt time.Time `json:"sessionExpiresAt"`
}

func HandleCreateSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	command, err := core.RequestBody[CreateSessionCommand](r)
	if err != nil {
		core.WriteBadRequest(w, r, err)
		return
	}

	caller := core.Session(ctx)
	command.HostAccountID = caller.AccountID
	command.HostMemberID = caller.MemberID
	command.HostIsGuest = !caller.SignedIn()

	response, err := mediator.Send[CreateSessionCommand, CreateSessionResponse](ctx, command)
	if err != nil {
		core.WriteCommandError(w, r, err)
		return
	}

	if command.HostIsGuest {
		_ = identity.NewResolver(identity.NewCookieGuestStorage(w, r)).SetGuestName(command.HostName)
	}

	core.WriteCreated(w, r, "/sessions/"+response.ID, response)
}

type CreateSessionCommandHandler struct {
	repository *domain.Repository
	settings   domain.Settings
}

func NewCreateSessionCommandHandler(repository *domain.Repository, settings domain.Settings) *CreateSessionCommandHandler {
	return &CreateSessionCommandHandler{repository: repository, settings: settings}
}

// Handle writes the session, the host member and the code reservation as
// three separate writes. A failure between them leaves a session that
// cannot be found by code.
func (h *CreateSessionCommandHandler) Handle(
	ctx context.Context,
	request CreateSessionCommand,
) (CreateSessionResponse, error) {
	hostName := strings.TrimSpace(request.HostName)
	hostMemberID := strings.TrimSpace(request.HostMemberID)

	code, err := h.repository.Codes().Reserve(ctx)
	if err != nil {
		return CreateSessionResponse{}, domain.CommandError(err)
	}

	now := h.repository.Now()
	accountID := domain.Optional(request.HostAccountID)

	session := domain.Session{
		Code: code,
		Name: domain.TrimmedName(request.SessionName),
		Host: domain.Participant{
			Name:     hostName,
			UID:      accountID,
			MemberID: hostMemberID,
			IsGuest:  request.HostIsGuest || accountID == nil,
		},
		Fear:             domain.MinFear,
		CodeExpiresAt:    now.Add(h.settings.CodeTTL),
		SessionExpiresAt: now.Add(h.settings.SessionTTL),
	}

	session.ID, err = h.repository.Insert(ctx, session)
	if err != nil {
		return CreateSessionResponse{}, domain.CommandError(err)
	}

	host := domain.Member{
		ID:      hostMemberID,
		Name:    hostName,
		UID:     accountID,
		IsGuest: session.Host.IsGuest,
		Role:    domain.RoleHost,
	}
	if err := h.repository.UpsertMember(ctx, session.ID, host); err != nil {
		return CreateSessionResponse{}, domain.CommandError(err)
	}

	reservation := joincode.Reservation{
		Code:             code,
		SessionID:        session.ID,
		CodeExpiresAt:    session.CodeExpiresAt,
		SessionExpiresAt: session.SessionExpiresAt,
	}
	if err := h.repository.Codes().Save(ctx, reservation); err != nil {
		return CreateSessionResponse{}, domain.CommandError(err)
	}

	if accountID != nil {
		recordSession(ctx, h.repository, *accountID, session, domain.RoleHost)
	}

	return CreateSessionResponse{
		ID:               session.ID,
		Code:             session.Code,
		CodeExpiresAt:    session.CodeExpiresAt,
		SessionExpiresAt: session.SessionExpiresAt,
	}, nil
}

// recordSession adds the session to the account's saved list. Failures are
// logged and dropped.
func recordSession(ctx context.Context, repository *domain.Repository, accountID string, session domain.Session, role domain.Role) {
	if err := repository.SaveForAccount(ctx, accountID, session, role); err != nil {
		core.LogWarn(
			ctx,
			"failed to record session for account",
			zap.String("session_id", session.ID),
			zap.String("account_id", accountID),
			zap.Error(err),
		)
	}
}
