package core

import (
	"context"
)

type ContextKey string

const SessionContextKey ContextKey = "session"

// ContextSession is the caller identity attached to a request. AccountID is
// empty for guests.
type ContextSession struct {
	AccountID   string
	Email       string
	MemberID    string
	DisplayName string
	PhotoURL    string
	GuestID     string
	IsGuest     bool
}

func (s ContextSession) SignedIn() bool {
	return s.AccountID != ""
}

func WithSession(ctx context.Context, session ContextSession) context.Context {
	return context.WithValue(ctx, SessionContextKey, session)
}

func Session(ctx context.Context) ContextSession {
	rawVal := ctx.Value(SessionContextKey)

	if rawVal == nil {
		return ContextSession{}
	}

	session, ok := rawVal.(ContextSession)
	if !ok {
		return ContextSession{}
	}

	return session
}
