package participant

import (
	"net/http"

	"github.com/eskrenkovic/fear-tracker-go/internal/docstore"
	"github.com/eskrenkovic/fear-tracker-go/internal/modules/core"
	"github.com/eskrenkovic/fear-tracker-go/internal/modules/presence"
	"github.com/eskrenkovic/fear-tracker-go/internal/modules/realtime"

	"github.com/go-chi/chi"
	"go.uber.org/zap"
)

// NewSocketHandler serves a session's live view over a websocket. Each
// connection gets its own Context for the caller's member id, so the
// heartbeat runs for as long as the socket is open.
func NewSocketHandler(
	store docstore.Store,
	heartbeat presence.HeartbeatHandler,
	evict presence.EvictionHandler,
	opts ...Option,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		logger := core.Logger(ctx)

		caller := core.Session(ctx)
		if caller.MemberID == "" {
			core.WriteUnauthorized(w, r, ErrMemberRequired.Error())
			return
		}

		conn, err := realtime.Upgrade(w, r)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}
		defer conn.Close()

		options := append([]Option{WithLogger(logger)}, opts...)
		participant := New(caller.MemberID, store, heartbeat, evict, options...)
		defer func() {
			if err := participant.Close(); err != nil {
				logger.Warn("failed to dispose participant", zap.Error(err))
			}
		}()

		sessionID := chi.URLParam(r, "id")
		if err := participant.Init(ctx, sessionID); err != nil {
			logger.Error("failed to open session", zap.String("session_id", sessionID), zap.Error(err))
			_ = conn.WriteJSON(View{SessionID: sessionID, Error: MessageSyncFailed})
			return
		}

		render := func() any { return participant.View() }
		if err := realtime.Push(ctx, conn, participant.Changes(), render); err != nil {
			logger.Debug("session socket closed", zap.String("session_id", sessionID), zap.Error(err))
		}
	}
}
