package queries

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/eskrenkovic/fear-tracker-go/internal/modules/core"
	"github.com/eskrenkovic/fear-tracker-go/internal/modules/game-session/domain"

	"github.com/eskrenkovic/mediator-go"
	"github.com/go-chi/chi"
	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"
)

const qrSize = 320

// JoinLink is the page a player opens to join with code.
func JoinLink(baseURL string, code string) string {
	return strings.TrimSuffix(baseURL, "/") + "/join?code=" + url.QueryEscape(code)
}

// NewSessionQRCodeHandler renders the session's join link as a PNG.
func NewSessionQRCodeHandler(publicBaseURL string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		session, err := mediator.Send[GetSessionQuery, domain.Session](ctx, GetSessionQuery{ID: chi.URLParam(r, "id")})
		if err != nil {
			core.WriteCommandError(w, r, err)
			return
		}

		png, err := qrcode.Encode(JoinLink(publicBaseURL, session.Code), qrcode.Medium, qrSize)
		if err != nil {
			core.LogError(ctx, "qr generation failed", zap.Error(err))
			core.WriteInternalServerError(w, r, err)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(png)
	}
}
