package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"testing"

	"github.com/eskrenkovic/fear-tracker-go/internal/modules/auth"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

// client is one browser: its own cookie jar, so its own guest identity, and
// optionally an account token.
type client struct {
	http  *http.Client
	token string
}

func newGuestClient(t *testing.T) *client {
	t.Helper()

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	return &client{http: &http.Client{Jar: jar}}
}

func newAccountClient(t *testing.T, subject string, name string, email string) *client {
	t.Helper()

	c := newGuestClient(t)

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{
		Name:             name,
		Email:            email,
		RegisteredClaims: jwt.RegisteredClaims{Subject: subject},
	}).SignedString(fixture.secret)
	require.NoError(t, err)

	c.token = token
	return c
}

func (c *client) do(t *testing.T, method string, path string, body any) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, fixture.baseURL+path, reader)
	require.NoError(t, err)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	return resp
}

func sendRequest[TResp any](t *testing.T, c *client, method string, path string, body any, status int) TResp {
	t.Helper()

	resp := c.do(t, method, path, body)
	require.Equal(t, status, resp.StatusCode)

	var out TResp
	payload, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	if len(payload) > 0 {
		require.NoError(t, json.Unmarshal(payload, &out))
	}

	return out
}
