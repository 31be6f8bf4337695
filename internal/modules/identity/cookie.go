package identity

import (
	"net/http"
	"net/url"
	"time"
)

const guestCookieMaxAge = 365 * 24 * time.Hour

var _ GuestStorage = (*CookieGuestStorage)(nil)

// CookieGuestStorage persists guest values as cookies on the response of a
// single request.
type CookieGuestStorage struct {
	w       http.ResponseWriter
	r       *http.Request
	written map[string]string
}

func NewCookieGuestStorage(w http.ResponseWriter, r *http.Request) *CookieGuestStorage {
	return &CookieGuestStorage{w: w, r: r, written: make(map[string]string)}
}

func (s *CookieGuestStorage) Load(key string) (string, bool) {
	if v, ok := s.written[key]; ok {
		return v, true
	}

	c, err := s.r.Cookie(key)
	if err != nil {
		return "", false
	}

	v, err := url.QueryUnescape(c.Value)
	if err != nil {
		return "", false
	}

	return v, true
}

func (s *CookieGuestStorage) Store(key string, value string) error {
	s.written[key] = value

	http.SetCookie(s.w, &http.Cookie{
		Name:     key,
		Value:    url.QueryEscape(value),
		Path:     "/",
		MaxAge:   int(guestCookieMaxAge.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	return nil
}
