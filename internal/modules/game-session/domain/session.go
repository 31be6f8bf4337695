package domain

import (
	"errors"
	"math"
	"strings"
	"time"

	"github.com/eskrenkovic/fear-tracker-go/internal/docstore"
)

const (
	CollectionName           = "sessions"
	MembersCollectionName    = "members"
	CountdownsCollectionName = "countdowns"

	MinFear = 0
	MaxFear = 12

	DefaultCodeTTL    = time.Hour
	DefaultSessionTTL = 24 * time.Hour
)

var (
	ErrSessionNotFound     = errors.New("That session is no longer available.")
	ErrSessionEnded        = errors.New("That session has ended.")
	ErrSessionExpired      = errors.New("That session has expired.")
	ErrCodeNotFound        = errors.New("That join code does not match an active session.")
	ErrCodeExpired         = errors.New("That join code has expired.")
	ErrJoinCodeRequired    = errors.New("Join code is required.")
	ErrDisplayNameRequired = errors.New("Display name is required.")
	ErrResumeNameRequired  = errors.New("Enter a display name before resuming.")
	ErrHostNameRequired    = errors.New("Host name is required.")
	ErrHostMemberRequired  = errors.New("Host member id is required.")
	ErrCountdownName       = errors.New("Countdown name is required.")
	ErrCountdownNotFound   = errors.New("That countdown no longer exists.")
	ErrNotHost             = errors.New("Only the host can change the session.")
)

type Role string

const (
	RoleHost   Role = "host"
	RolePlayer Role = "player"
)

func (r Role) Valid() bool {
	return r == RoleHost || r == RolePlayer
}

// Participant describes a person acting on a session: the host descriptor
// and countdown creators share this shape.
type Participant struct {
	Name     string  `doc:"name" json:"name"`
	UID      *string `doc:"uid" json:"uid"`
	MemberID string  `doc:"memberId" json:"memberId"`
	IsGuest  bool    `doc:"isGuest" json:"isGuest"`
}

func (p Participant) Fields() docstore.Fields {
	return docstore.Fields{
		"name":     p.Name,
		"uid":      optional(p.UID),
		"memberId": p.MemberID,
		"isGuest":  p.IsGuest,
	}
}

type Session struct {
	ID               string      `doc:"-" json:"id"`
	Code             string      `doc:"code" json:"code"`
	Name             *string     `doc:"name" json:"name"`
	Host             Participant `doc:"host" json:"host"`
	Fear             int         `doc:"fear" json:"fear"`
	CodeExpiresAt    time.Time   `doc:"codeExpiresAt" json:"codeExpiresAt"`
	SessionExpiresAt time.Time   `doc:"sessionExpiresAt" json:"sessionExpiresAt"`
	CreatedAt        *time.Time  `doc:"createdAt" json:"createdAt,omitempty"`
	UpdatedAt        *time.Time  `doc:"updatedAt" json:"updatedAt,omitempty"`
}

// Expired reports whether the session is logically dead at now.
func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.SessionExpiresAt)
}

func (s Session) CodeExpired(now time.Time) bool {
	return !now.Before(s.CodeExpiresAt)
}

// IsHost compares against the host descriptor, which is authoritative over
// any stored member role.
func (s Session) IsHost(memberID string) bool {
	return memberID != "" && s.Host.MemberID == memberID
}

// ResolveRole returns host for the session's host member regardless of the
// requested role, otherwise the requested role (player by default).
func (s Session) ResolveRole(memberID string, requested Role) Role {
	if s.IsHost(memberID) {
		return RoleHost
	}

	if requested.Valid() {
		return requested
	}

	return RolePlayer
}

type Member struct {
	ID         string     `doc:"-" json:"id"`
	Name       string     `doc:"name" json:"name"`
	UID        *string    `doc:"uid" json:"uid"`
	IsGuest    bool       `doc:"isGuest" json:"isGuest"`
	Role       Role       `doc:"role" json:"role"`
	JoinedAt   *time.Time `doc:"joinedAt" json:"joinedAt"`
	LastSeenAt *time.Time `doc:"lastSeenAt" json:"lastSeenAt"`
}

type Countdown struct {
	ID        string       `doc:"-" json:"id"`
	Name      *string      `doc:"name" json:"name"`
	Max       int          `doc:"max" json:"max"`
	Value     int          `doc:"value" json:"value"`
	CreatedBy *Participant `doc:"createdBy" json:"createdBy,omitempty"`
	CreatedAt *time.Time   `doc:"createdAt" json:"createdAt"`
	UpdatedAt *time.Time   `doc:"updatedAt" json:"updatedAt"`
}

// SavedSession is the per-account record of a session the account hosted or
// joined.
type SavedSession struct {
	ID               string     `doc:"-" json:"id"`
	Code             string     `doc:"code" json:"code"`
	Name             *string    `doc:"name" json:"name"`
	Role             Role       `doc:"role" json:"role"`
	LastSeenAt       *time.Time `doc:"lastSeenAt" json:"lastSeenAt"`
	CodeExpiresAt    *time.Time `doc:"codeExpiresAt" json:"codeExpiresAt"`
	SessionExpiresAt *time.Time `doc:"sessionExpiresAt" json:"sessionExpiresAt"`
}

func ClampFear(value int) int {
	return min(max(value, MinFear), MaxFear)
}

// NormalizeCountdownMax floors max to an integer of at least 1.
func NormalizeCountdownMax(value float64) int {
	if math.IsNaN(value) || value < 1 {
		return 1
	}

	if value > math.MaxInt32 {
		return math.MaxInt32
	}

	return int(math.Floor(value))
}

func ClampCountdownValue(value int, maxValue int) int {
	return min(max(value, 0), max(maxValue, 1))
}

// TrimmedName returns nil for blank names.
func TrimmedName(name *string) *string {
	if name == nil {
		return nil
	}

	trimmed := strings.TrimSpace(*name)
	if trimmed == "" {
		return nil
	}

	return &trimmed
}

func SessionPath(sessionID string) string {
	return docstore.Join(CollectionName, sessionID)
}

func MembersCollection(sessionID string) string {
	return docstore.Join(CollectionName, sessionID, MembersCollectionName)
}

func MemberPath(sessionID string, memberID string) string {
	return docstore.Join(MembersCollection(sessionID), memberID)
}

func CountdownsCollection(sessionID string) string {
	return docstore.Join(CollectionName, sessionID, CountdownsCollectionName)
}

func CountdownPath(sessionID string, countdownID string) string {
	return docstore.Join(CountdownsCollection(sessionID), countdownID)
}

func SavedSessionsCollection(accountID string) string {
	return docstore.Join("users", accountID, "sessions")
}

func SavedSessionPath(accountID string, sessionID string) string {
	return docstore.Join(SavedSessionsCollection(accountID), sessionID)
}

func optional(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func Optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
