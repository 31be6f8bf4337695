package domain

import (
	"errors"
	"slices"
	"time"

	"github.com/eskrenkovic/fear-tracker-go/internal/docstore"
)

const (
	FriendshipsCollection = "friendships"
	FriendshipsWindow     = 50
)

var (
	ErrAlreadyFriends     = errors.New("You're already friends.")
	ErrRequestAlreadySent = errors.New("Friend request already sent.")
	ErrTheyAlreadyAsked   = errors.New("They already sent you a friend request.")
	ErrRequestClosed      = errors.New("That request was closed. Ask them to send a new one.")
	ErrCannotAddSelf      = errors.New("You can't add yourself.")
	ErrSignInToAddFriends = errors.New("Sign in to add friends.")
	ErrNotFriendshipParty = errors.New("That request is not yours to answer.")
)

type Friendship struct {
	ID                string     `doc:"-" json:"id"`
	Users             []string   `doc:"users" json:"users"`
	RequesterUID      string     `doc:"requesterUid" json:"requesterUid"`
	RequesterName     string     `doc:"requesterName" json:"requesterName"`
	RequesterPhotoURL *string    `doc:"requesterPhotoURL" json:"requesterPhotoURL"`
	AddresseeUID      string     `doc:"addresseeUid" json:"addresseeUid"`
	AddresseeName     string     `doc:"addresseeName" json:"addresseeName"`
	AddresseePhotoURL *string    `doc:"addresseePhotoURL" json:"addresseePhotoURL"`
	Status            Status     `doc:"status" json:"status"`
	CreatedAt         *time.Time `doc:"createdAt" json:"createdAt"`
	UpdatedAt         *time.Time `doc:"updatedAt" json:"updatedAt"`
}

func (f Friendship) Involves(uid string) bool {
	return slices.Contains(f.Users, uid)
}

// Friend is an accepted friendship seen from one side.
type Friend struct {
	ID       string     `json:"id"`
	UID      string     `json:"uid"`
	Name     string     `json:"name"`
	PhotoURL *string    `json:"photoURL"`
	Since    *time.Time `json:"since"`
}

// FriendshipID is the same for both orderings of the pair.
func FriendshipID(a string, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + "_" + b
}

func Friendships() Variant[Friendship] {
	return Variant[Friendship]{
		Collection: FriendshipsCollection,
		Window:     FriendshipsWindow,
		Statuses:   []Status{StatusPending, StatusAccepted, StatusDeclined, StatusCancelled},
		Party: func(uid string) docstore.Filter {
			return docstore.ArrayContains("users", uid)
		},
		Decode: decodeFriendship,
	}
}

func decodeFriendship(doc docstore.Document) (Friendship, error) {
	var f Friendship
	if err := doc.Decode(&f); err != nil {
		return Friendship{}, err
	}
	f.ID = doc.ID

	return f, nil
}

// ExistingFriendshipError explains why a new request cannot replace the
// friendship already stored for the pair.
func ExistingFriendshipError(existing Friendship, fromUID string) error {
	switch existing.Status {
	case StatusAccepted:
		return ErrAlreadyFriends
	case StatusPending:
		if existing.RequesterUID == fromUID {
			return ErrRequestAlreadySent
		}
		return ErrTheyAlreadyAsked
	default:
		return ErrRequestClosed
	}
}

type FriendshipsView struct {
	Incoming []Friendship `json:"incoming"`
	Outgoing []Friendship `json:"outgoing"`
	Friends  []Friend     `json:"friends"`
}

func NewFriendshipsView(friendships []Friendship, self string) FriendshipsView {
	view := FriendshipsView{
		Incoming: make([]Friendship, 0),
		Outgoing: make([]Friendship, 0),
		Friends:  make([]Friend, 0),
	}

	for _, f := range friendships {
		switch {
		case f.Status == StatusPending && f.AddresseeUID == self:
			view.Incoming = append(view.Incoming, f)
		case f.Status == StatusPending && f.RequesterUID == self:
			view.Outgoing = append(view.Outgoing, f)
		case f.Status == StatusAccepted:
			view.Friends = append(view.Friends, otherParty(f, self))
		}
	}

	return view
}

func otherParty(f Friendship, self string) Friend {
	since := f.UpdatedAt
	if since == nil {
		since = f.CreatedAt
	}

	if f.RequesterUID == self {
		return Friend{ID: f.ID, UID: f.AddresseeUID, Name: f.AddresseeName, PhotoURL: f.AddresseePhotoURL, Since: since}
	}

	return Friend{ID: f.ID, UID: f.RequesterUID, Name: f.RequesterName, PhotoURL: f.RequesterPhotoURL, Since: since}
}
