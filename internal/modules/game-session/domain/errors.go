package domain

import (
	"errors"
	"net/http"

	"github.com/eskrenkovic/fear-tracker-go/internal/modules/core"
	"github.com/eskrenkovic/fear-tracker-go/internal/modules/joincode"
)

// CommandError maps a session error onto the status it is reported with.
func CommandError(err error) error {
	var commandErr core.CommandError
	if errors.As(err, &commandErr) {
		return err
	}

	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, ErrSessionNotFound),
		errors.Is(err, ErrSessionEnded),
		errors.Is(err, ErrSessionExpired),
		errors.Is(err, ErrCodeNotFound),
		errors.Is(err, ErrCodeExpired),
		errors.Is(err, ErrCountdownNotFound):
		status = http.StatusNotFound

	case errors.Is(err, ErrJoinCodeRequired),
		errors.Is(err, ErrDisplayNameRequired),
		errors.Is(err, ErrResumeNameRequired),
		errors.Is(err, ErrHostNameRequired),
		errors.Is(err, ErrHostMemberRequired),
		errors.Is(err, ErrCountdownName):
		status = http.StatusBadRequest

	case errors.Is(err, ErrNotHost):
		status = http.StatusForbidden

	case errors.Is(err, joincode.ErrAllocationExhausted):
		status = http.StatusServiceUnavailable
	}

	return core.NewCommandError(status, err)
}
