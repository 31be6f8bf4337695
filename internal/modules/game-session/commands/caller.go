package commands

import (
	"github.com/eskrenkovic/fear-tracker-go/internal/modules/core"
	"github.com/eskrenkovic/fear-tracker-go/internal/modules/game-session/domain"
)

func callerParticipant(caller core.ContextSession) domain.Participant {
	return domain.Participant{
		Name:     caller.DisplayName,
		UID:      domain.Optional(caller.AccountID),
		MemberID: caller.MemberID,
		IsGuest:  !caller.SignedIn(),
	}
}
