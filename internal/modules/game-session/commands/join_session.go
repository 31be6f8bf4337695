package commands

import (
	"context"
	"net/http"
	"strings"

	"github.com/eskrenkovic/fear-tracker-go/internal/modules/core"
	"github.com/eskrenkovic/fear-tracker-go/internal/modules/game-session/domain"
	"github.com/eskrenkovic/fear-tracker-go/internal/modules/identity"

	"github.com/eskrenkovic/mediator-go"
	"github.com/go-chi/chi"
)

type JoinSessionResponse struct {
	SessionID string      `json:"sessionId"`
	Role      domain.Role `json:"role"`
}

// JoinSessionCommand merges a member record into a session.
type JoinSessionCommand struct {
	SessionID string      `json:"-"`
	MemberID  string      `json:"-"`
	Name      string      `json:"name"`
	AccountID string      `json:"-"`
	Role      domain.Role `json:"role"`
	IsGuest   *bool       `json:"-"`
}

func (c JoinSessionCommand) Validate() error {
	if c.SessionID == "" {
		return domain.ErrSessionNotFound
	}

	if strings.TrimSpace(c.Name) == "" {
		return domain.ErrDisplayNameRequired
	}

	if c.MemberID == "" {
		return domain.ErrHostMemberRequired
	}

	return nil
}

type JoinSessionCommandHandler struct {
	repository *domain.Repository
}

func NewJoinSessionCommandHandler(repository *domain.Repository) *JoinSessionCommandHandler {
	return &JoinSessionCommandHandler{repository: repository}
}

func (h *JoinSessionCommandHandler) Handle(
	ctx context.Context,
	request JoinSessionCommand,
) (JoinSessionResponse, error) {
	session, err := h.repository.FetchByID(ctx, request.SessionID)
	if err != nil {
		return JoinSessionResponse{}, domain.CommandError(err)
	}

	isGuest := request.AccountID == ""
	if request.IsGuest != nil {
		isGuest = *request.IsGuest
	}

	role, err := join(ctx, h.repository, session, request.MemberID, request.Name, request.AccountID, isGuest, request.Role)
	if err != nil {
		return JoinSessionResponse{}, domain.CommandError(err)
	}

	return JoinSessionResponse{SessionID: session.ID, Role: role}, nil
}

// JoinSessionByCodeCommand is the player facing join: resolve the code, check
// both expiries, join as a player and record the session for accounts.
type JoinSessionByCodeCommand struct {
	Code string `json:"code"`
	Name string `json:"name"`

	MemberID  string `json:"-"`
	AccountID string `json:"-"`
}

func (c JoinSessionByCodeCommand) Validate() error {
	if strings.TrimSpace(c.Code) == "" {
		return domain.ErrJoinCodeRequired
	}

	if c.MemberID == "" {
		return domain.ErrHostMemberRequired
	}

	return nil
}

func HandleJoinSessionByCode(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	command, err := core.RequestBody[JoinSessionByCodeCommand](r)
	if err != nil {
		core.WriteBadRequest(w, r, err)
		return
	}

	caller := core.Session(ctx)
	command.MemberID = caller.MemberID
	command.AccountID = caller.AccountID

	response, err := mediator.Send[JoinSessionByCodeCommand, JoinSessionResponse](ctx, command)
	if err != nil {
		core.WriteCommandError(w, r, err)
		return
	}

	if !caller.SignedIn() {
		_ = identity.NewResolver(identity.NewCookieGuestStorage(w, r)).SetGuestName(command.Name)
	}

	core.WriteOK(w, r, response)
}

type JoinSessionByCodeCommandHandler struct {
	repository *domain.Repository
}

func NewJoinSessionByCodeCommandHandler(repository *domain.Repository) *JoinSessionByCodeCommandHandler {
	return &JoinSessionByCodeCommandHandler{repository: repository}
}

func (h *JoinSessionByCodeCommandHandler) Handle(
	ctx context.Context,
	request JoinSessionByCodeCommand,
) (JoinSessionResponse, error) {
	session, err := h.repository.LoadByCode(ctx, request.Code)
	if err != nil {
		return JoinSessionResponse{}, domain.CommandError(err)
	}

	now := h.repository.Now()
	if session.Expired(now) {
		return JoinSessionResponse{}, domain.CommandError(domain.ErrSessionExpired)
	}

	if session.CodeExpired(now) {
		return JoinSessionResponse{}, domain.CommandError(domain.ErrCodeExpired)
	}

	role, err := join(
		ctx,
		h.repository,
		session,
		request.MemberID,
		request.Name,
		request.AccountID,
		request.AccountID == "",
		domain.RolePlayer,
	)
	if err != nil {
		return JoinSessionResponse{}, domain.CommandError(err)
	}

	if request.AccountID != "" {
		recordSession(ctx, h.repository, request.AccountID, session, role)
	}

	return JoinSessionResponse{SessionID: session.ID, Role: role}, nil
}

// ResumeSessionCommand rejoins a session by id, typically from the saved
// session list or an accepted invite.
type ResumeSessionCommand struct {
	SessionID    string      `json:"-"`
	Role         domain.Role `json:"role"`
	FallbackName string      `json:"name"`

	MemberID  string `json:"-"`
	AccountID string `json:"-"`
}

func (c ResumeSessionCommand) Validate() error {
	if c.SessionID == "" {
		return domain.ErrSessionNotFound
	}

	if c.MemberID == "" {
		return domain.ErrHostMemberRequired
	}

	return nil
}

func HandleResumeSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	command, err := core.RequestBody[ResumeSessionCommand](r)
	if err != nil {
		core.WriteBadRequest(w, r, err)
		return
	}

	caller := core.Session(ctx)
	command.SessionID = chi.URLParam(r, "id")
	command.MemberID = caller.MemberID
	command.AccountID = caller.AccountID
	if strings.TrimSpace(command.FallbackName) == "" {
		command.FallbackName = caller.DisplayName
	}

	response, err := mediator.Send[ResumeSessionCommand, JoinSessionResponse](ctx, command)
	if err != nil {
		core.WriteCommandError(w, r, err)
		return
	}

	core.WriteOK(w, r, response)
}

type ResumeSessionCommandHandler struct {
	repository *domain.Repository
}

func NewResumeSessionCommandHandler(repository *domain.Repository) *ResumeSessionCommandHandler {
	return &ResumeSessionCommandHandler{repository: repository}
}

func (h *ResumeSessionCommandHandler) Handle(
	ctx context.Context,
	request ResumeSessionCommand,
) (JoinSessionResponse, error) {
	session, err := h.repository.Load(ctx, request.SessionID)
	if err != nil {
		return JoinSessionResponse{}, domain.CommandError(err)
	}

	if session.Expired(h.repository.Now()) {
		return JoinSessionResponse{}, domain.CommandError(domain.ErrSessionExpired)
	}

	if strings.TrimSpace(request.FallbackName) == "" {
		return JoinSessionResponse{}, domain.CommandError(domain.ErrResumeNameRequired)
	}

	role, err := join(
		ctx,
		h.repository,
		session,
		request.MemberID,
		request.FallbackName,
		request.AccountID,
		request.AccountID == "",
		request.Role,
	)
	if err != nil {
		return JoinSessionResponse{}, domain.CommandError(err)
	}

	if request.AccountID != "" {
		recordSession(ctx, h.repository, request.AccountID, session, role)
	}

	return JoinSessionResponse{SessionID: session.ID, Role: role}, nil
}

func join(
	ctx context.Context,
	repository *domain.Repository,
	session domain.Session,
	memberID string,
	name string,
	accountID string,
	isGuest bool,
	requested domain.Role,
) (domain.Role, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", domain.ErrDisplayNameRequired
	}

	role := session.ResolveRole(memberID, requested)

	member := domain.Member{
		ID:      memberID,
		Name:    trimmed,
		UID:     domain.Optional(accountID),
		IsGuest: isGuest,
		Role:    role,
	}

	if err := repository.UpsertMember(ctx, session.ID, member); err != nil {
		return "", err
	}

	return role, nil
}
