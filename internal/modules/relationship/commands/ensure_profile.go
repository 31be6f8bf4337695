package commands

import (
	"context"
	"net/http"
	"strings"

	"github.com/eskrenkovic/fear-tracker-go/internal/docstore"
	"github.com/eskrenkovic/fear-tracker-go/internal/modules/core"
	"github.com/eskrenkovic/fear-tracker-go/internal/modules/joincode"
	"github.com/eskrenkovic/fear-tracker-go/internal/modules/relationship/domain"

	"github.com/eskrenkovic/mediator-go"
)

// EnsureUserProfileCommand runs on every sign-in. It writes the private user
// document and the public profile, keeping an invite code once assigned.
type EnsureUserProfileCommand struct {
	AccountID   string
	DisplayName string
	Email       string
	PhotoURL    string
}

func (c EnsureUserProfileCommand) Validate() error {
	if c.AccountID == "" {
		return domain.ErrSignInToAddFriends
	}

	return nil
}

func HandleEnsureUserProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	caller := core.Session(ctx)
	command := EnsureUserProfileCommand{
		AccountID:   caller.AccountID,
		DisplayName: caller.DisplayName,
		Email:       caller.Email,
		PhotoURL:    caller.PhotoURL,
	}

	response, err := mediator.Send[EnsureUserProfileCommand, domain.PublicProfile](ctx, command)
	if err != nil {
		core.WriteCommandError(w, r, err)
		return
	}

	core.WriteOK(w, r, response)
}

type EnsureUserProfileCommandHandler struct {
	store        docstore.Store
	generateCode func() (string, error)
}

func NewEnsureUserProfileCommandHandler(store docstore.Store) *EnsureUserProfileCommandHandler {
	return &EnsureUserProfileCommandHandler{store: store, generateCode: joincode.Generate}
}

func (h *EnsureUserProfileCommandHandler) Handle(
	ctx context.Context,
	request EnsureUserProfileCommand,
) (domain.PublicProfile, error) {
	userPath := domain.UserPath(request.AccountID)

	existing, err := h.store.Get(ctx, userPath)
	exists := err == nil
	if err != nil && !docstore.IsNotFound(err) {
		return domain.PublicProfile{}, domain.CommandError(err)
	}

	inviteCode := ""
	if exists {
		inviteCode, _ = existing.Fields["inviteCode"].(string)
	}
	if inviteCode == "" {
		inviteCode, err = h.generateCode()
		if err != nil {
			return domain.PublicProfile{}, domain.CommandError(err)
		}
	}

	var emailLower any
	if request.Email != "" {
		emailLower = strings.ToLower(request.Email)
	}

	user := docstore.Fields{
		"displayName": orNil(request.DisplayName),
		"email":       orNil(request.Email),
		"emailLower":  emailLower,
		"photoURL":    orNil(request.PhotoURL),
		"inviteCode":  inviteCode,
		"updatedAt":   docstore.ServerTimestamp,
	}

	profile := docstore.Fields{
		"displayName": orNil(request.DisplayName),
		"photoURL":    orNil(request.PhotoURL),
		"inviteCode":  inviteCode,
		"updatedAt":   docstore.ServerTimestamp,
	}

	var opts []docstore.SetOption
	if exists {
		opts = append(opts, docstore.Merge())
	} else {
		user["createdAt"] = docstore.ServerTimestamp
	}

	if err := h.store.Set(ctx, userPath, user, opts...); err != nil {
		return domain.PublicProfile{}, domain.CommandError(err)
	}

	profilePath := domain.PublicProfilePath(request.AccountID)
	if err := h.store.Set(ctx, profilePath, profile, opts...); err != nil {
		return domain.PublicProfile{}, domain.CommandError(err)
	}

	doc, err := h.store.Get(ctx, profilePath)
	if err != nil {
		return domain.PublicProfile{}, domain.CommandError(err)
	}

	stored, err := domain.DecodeProfile(doc)
	if err != nil {
		return domain.PublicProfile{}, domain.CommandError(err)
	}

	return stored, nil
}

func orNil(s string) any {
	if s == "" {
		return nil
	}
	return s
}
