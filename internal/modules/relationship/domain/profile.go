package domain

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/eskrenkovic/fear-tracker-go/internal/docstore"
	"github.com/eskrenkovic/fear-tracker-go/internal/modules/joincode"
)

const (
	UsersCollection          = "users"
	PublicProfilesCollection = "publicProfiles"
)

var (
	ErrInviteCodeRequired = errors.New("Invite code is required.")
	ErrProfileNotFound    = errors.New("No player found with that invite code.")
)

// PublicProfile is the part of an account other players can look up. The
// invite code addresses friend requests and invites to the account.
type PublicProfile struct {
	UID         string     `doc:"-" json:"uid"`
	DisplayName *string    `doc:"displayName" json:"displayName"`
	PhotoURL    *string    `doc:"photoURL" json:"photoURL"`
	InviteCode  string     `doc:"inviteCode" json:"inviteCode"`
	UpdatedAt   *time.Time `doc:"updatedAt" json:"updatedAt"`
}

// NameOr returns the display name, or fallback when the profile has none.
func (p PublicProfile) NameOr(fallback string) string {
	if p.DisplayName == nil || strings.TrimSpace(*p.DisplayName) == "" {
		return fallback
	}
	return *p.DisplayName
}

func UserPath(uid string) string {
	return docstore.Join(UsersCollection, uid)
}

func PublicProfilePath(uid string) string {
	return docstore.Join(PublicProfilesCollection, uid)
}

func DecodeProfile(doc docstore.Document) (PublicProfile, error) {
	var p PublicProfile
	if err := doc.Decode(&p); err != nil {
		return PublicProfile{}, err
	}
	p.UID = doc.ID

	return p, nil
}

// FindProfileByInviteCode looks the code up case-insensitively.
func FindProfileByInviteCode(ctx context.Context, store docstore.Store, inviteCode string) (PublicProfile, error) {
	normalized := joincode.Normalize(inviteCode)
	if normalized == "" {
		return PublicProfile{}, ErrInviteCodeRequired
	}

	docs, err := store.Query(ctx, docstore.Query{
		Collection: PublicProfilesCollection,
		Filters:    []docstore.Filter{docstore.Equal("inviteCode", normalized)},
		Limit:      1,
	})
	if err != nil {
		return PublicProfile{}, err
	}

	if len(docs) == 0 {
		return PublicProfile{}, ErrProfileNotFound
	}

	return DecodeProfile(docs[0])
}
