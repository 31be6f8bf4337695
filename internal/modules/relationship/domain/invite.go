package domain

import (
	"errors"
	"time"

	"github.com/eskrenkovic/fear-tracker-go/internal/docstore"
)

const (
	InvitesCollection = "invites"
	InvitesWindow     = 25
)

var (
	ErrSignInToInvite    = errors.New("Sign in to send invites.")
	ErrSignInToAccept    = errors.New("Sign in to accept invites.")
	ErrMustHostToInvite  = errors.New("You must be hosting an active session to invite.")
	ErrCannotInviteSelf  = errors.New("You can't invite yourself.")
	ErrInviteTargetEmpty = errors.New("Choose a player to invite.")
	ErrNotInviteTarget   = errors.New("That invite is not yours to answer.")
)

// Invite is addressed to one account and carries enough of the session to
// show and join it.
type Invite struct {
	ID               string     `doc:"-" json:"id"`
	ToUID            string     `doc:"toUid" json:"toUid"`
	FromUID          string     `doc:"fromUid" json:"fromUid"`
	FromName         string     `doc:"fromName" json:"fromName"`
	SessionID        string     `doc:"sessionId" json:"sessionId"`
	SessionName      *string    `doc:"sessionName" json:"sessionName"`
	SessionCode      string     `doc:"sessionCode" json:"sessionCode"`
	SessionExpiresAt *time.Time `doc:"sessionExpiresAt" json:"sessionExpiresAt"`
	Message          *string    `doc:"message" json:"message"`
	Status           Status     `doc:"status" json:"status"`
	CreatedAt        *time.Time `doc:"createdAt" json:"createdAt"`
	UpdatedAt        *time.Time `doc:"updatedAt" json:"updatedAt"`
}

// Fields is the document written when the invite is sent.
func (i Invite) Fields() docstore.Fields {
	return docstore.Fields{
		"toUid":            i.ToUID,
		"fromUid":          i.FromUID,
		"fromName":         i.FromName,
		"sessionId":        i.SessionID,
		"sessionName":      stringOrNil(i.SessionName),
		"sessionCode":      i.SessionCode,
		"sessionExpiresAt": timeOrNil(i.SessionExpiresAt),
		"message":          stringOrNil(i.Message),
		"status":           string(StatusPending),
		"createdAt":        docstore.ServerTimestamp,
		"updatedAt":        docstore.ServerTimestamp,
	}
}

func Invites() Variant[Invite] {
	return Variant[Invite]{
		Collection: InvitesCollection,
		Window:     InvitesWindow,
		Statuses:   []Status{StatusPending, StatusAccepted, StatusDeclined, StatusRevoked},
		Party: func(uid string) docstore.Filter {
			return docstore.Equal("toUid", uid)
		},
		Decode: decodeInvite,
	}
}

func decodeInvite(doc docstore.Document) (Invite, error) {
	var i Invite
	if err := doc.Decode(&i); err != nil {
		return Invite{}, err
	}
	i.ID = doc.ID

	return i, nil
}

type InvitesView struct {
	Pending []Invite `json:"pending"`
	Recent  []Invite `json:"recent"`
}

func NewInvitesView(invites []Invite) InvitesView {
	view := InvitesView{Pending: make([]Invite, 0), Recent: make([]Invite, 0)}
	for _, invite := range invites {
		if invite.Status == StatusPending {
			view.Pending = append(view.Pending, invite)
		} else {
			view.Recent = append(view.Recent, invite)
		}
	}

	return view
}

func stringOrNil(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func timeOrNil(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
