package queries

import (
	"context"
	"errors"
	"net/http"

	"github.com/eskrenkovic/fear-tracker-go/internal/docstore"
	"github.com/eskrenkovic/fear-tracker-go/internal/modules/core"
	"github.com/eskrenkovic/fear-tracker-go/internal/modules/game-session/domain"

	"github.com/eskrenkovic/mediator-go"
)

const SavedSessionsLimit = 5

var ErrAccountRequired = errors.New("Sign in to see your sessions.")

// GetUserSessionsQuery lists the sessions an account most recently hosted or
// joined.
type GetUserSessionsQuery struct {
	AccountID string
}

func (q GetUserSessionsQuery) Validate() error {
	if q.AccountID == "" {
		return ErrAccountRequired
	}

	return nil
}

func HandleGetUserSessions(w http.ResponseWriter, r *http.Request) {
	caller := core.Session(r.Context())
	if !caller.SignedIn() {
		core.WriteUnauthorized(w, r, ErrAccountRequired)
		return
	}

	response, err := mediator.Send[GetUserSessionsQuery, []domain.SavedSession](
		r.Context(),
		GetUserSessionsQuery{AccountID: caller.AccountID},
	)
	if err != nil {
		core.WriteCommandError(w, r, err)
		return
	}

	core.WriteOK(w, r, response)
}

type GetUserSessionsQueryHandler struct {
	store docstore.Store
}

func NewGetUserSessionsQueryHandler(store docstore.Store) *GetUserSessionsQueryHandler {
	return &GetUserSessionsQueryHandler{store: store}
}

func (h *GetUserSessionsQueryHandler) Handle(
	ctx context.Context,
	request GetUserSessionsQuery,
) ([]domain.SavedSession, error) {
	docs, err := h.store.Query(ctx, docstore.Query{
		Collection: domain.SavedSessionsCollection(request.AccountID),
		OrderBy:    "lastSeenAt",
		Direction:  docstore.Desc,
		Limit:      SavedSessionsLimit,
	})
	if err != nil {
		return nil, err
	}

	sessions := make([]domain.SavedSession, 0, len(docs))
	for _, doc := range docs {
		var saved domain.SavedSession
		if err := doc.Decode(&saved); err != nil {
			return nil, err
		}
		saved.ID = doc.ID
		sessions = append(sessions, saved)
	}

	return sessions, nil
}
