package domain

import (
	"errors"
	"net/http"

	"github.com/eskrenkovic/fear-tracker-go/internal/modules/core"
	sessiondomain "github.com/eskrenkovic/fear-tracker-go/internal/modules/game-session/domain"
)

func CommandError(err error) error {
	var commandErr core.CommandError
	if errors.As(err, &commandErr) {
		return err
	}

	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, ErrAlreadyFriends),
		errors.Is(err, ErrRequestAlreadySent),
		errors.Is(err, ErrTheyAlreadyAsked),
		errors.Is(err, ErrRequestClosed):
		status = http.StatusConflict

	case errors.Is(err, ErrRequestNotFound),
		errors.Is(err, ErrProfileNotFound):
		status = http.StatusNotFound

	case errors.Is(err, ErrInvalidStatus),
		errors.Is(err, ErrInviteCodeRequired),
		errors.Is(err, ErrInviteTargetEmpty),
		errors.Is(err, ErrCannotAddSelf),
		errors.Is(err, ErrCannotInviteSelf):
		status = http.StatusBadRequest

	case errors.Is(err, ErrSignInToAddFriends),
		errors.Is(err, ErrSignInToInvite),
		errors.Is(err, ErrSignInToAccept):
		status = http.StatusUnauthorized

	case errors.Is(err, ErrMustHostToInvite),
		errors.Is(err, ErrNotFriendshipParty),
		errors.Is(err, ErrNotInviteTarget):
		status = http.StatusForbidden

	default:
		return sessiondomain.CommandError(err)
	}

	return core.NewCommandError(status, err)
}
