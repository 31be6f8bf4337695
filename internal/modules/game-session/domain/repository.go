package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/eskrenkovic/fear-tracker-go/internal/docstore"
	"github.com/eskrenkovic/fear-tracker-go/internal/modules/joincode"

	"github.com/benbjohnson/clock"
)

// Settings holds the lifetimes stamped onto new sessions.
type Settings struct {
	CodeTTL    time.Duration
	SessionTTL time.Duration
}

func DefaultSettings() Settings {
	return Settings{CodeTTL: DefaultCodeTTL, SessionTTL: DefaultSessionTTL}
}

// Repository reads and writes session documents. It applies no
// authorization.
type Repository struct {
	store docstore.Store
	codes *joincode.Allocator
	clock clock.Clock
}

func NewRepository(store docstore.Store, codes *joincode.Allocator, c clock.Clock) *Repository {
	return &Repository{store: store, codes: codes, clock: c}
}

func (r *Repository) Store() docstore.Store {
	return r.store
}

func (r *Repository) Codes() *joincode.Allocator {
	return r.codes
}

func (r *Repository) Now() time.Time {
	return r.clock.Now()
}

// Load reads the session document without checking expiry.
func (r *Repository) Load(ctx context.Context, sessionID string) (Session, error) {
	doc, err := r.store.Get(ctx, SessionPath(sessionID))
	if docstore.IsNotFound(err) {
		return Session{}, ErrSessionNotFound
	}
	if err != nil {
		return Session{}, err
	}

	return DecodeSession(doc)
}

// FetchByID treats an expired session the same as a missing one.
func (r *Repository) FetchByID(ctx context.Context, sessionID string) (Session, error) {
	session, err := r.Load(ctx, sessionID)
	if err != nil {
		return Session{}, err
	}

	if session.Expired(r.Now()) {
		return Session{}, ErrSessionNotFound
	}

	return session, nil
}

// LoadByCode resolves code through its reservation without checking either
// expiry.
func (r *Repository) LoadByCode(ctx context.Context, code string) (Session, error) {
	normalized := joincode.Normalize(code)
	if normalized == "" {
		return Session{}, ErrJoinCodeRequired
	}

	reservation, err := r.codes.Lookup(ctx, normalized)
	if docstore.IsNotFound(err) {
		return Session{}, ErrCodeNotFound
	}
	if err != nil {
		return Session{}, err
	}

	session, err := r.Load(ctx, reservation.SessionID)
	if errors.Is(err, ErrSessionNotFound) {
		return Session{}, ErrCodeNotFound
	}
	if err != nil {
		return Session{}, err
	}

	// A reservation left over from an earlier session holding the same code.
	if session.Code != normalized {
		return Session{}, ErrCodeNotFound
	}

	return session, nil
}

// FindByCode re-checks both expiries at read time.
func (r *Repository) FindByCode(ctx context.Context, code string) (Session, error) {
	session, err := r.LoadByCode(ctx, code)
	if err != nil {
		return Session{}, err
	}

	now := r.Now()
	if session.Expired(now) || session.CodeExpired(now) {
		return Session{}, ErrCodeNotFound
	}

	return session, nil
}

func (r *Repository) Insert(ctx context.Context, session Session) (string, error) {
	return r.store.Add(ctx, CollectionName, docstore.Fields{
		"code":             session.Code,
		"name":             optional(session.Name),
		"host":             session.Host.Fields(),
		"fear":             session.Fear,
		"createdAt":        docstore.ServerTimestamp,
		"updatedAt":        docstore.ServerTimestamp,
		"codeExpiresAt":    session.CodeExpiresAt,
		"sessionExpiresAt": session.SessionExpiresAt,
	})
}

// UpsertMember merges the member record. Joining again with the same member
// id updates the existing record.
func (r *Repository) UpsertMember(ctx context.Context, sessionID string, member Member) error {
	return r.store.Set(ctx, MemberPath(sessionID, member.ID), docstore.Fields{
		"name":       member.Name,
		"uid":        optional(member.UID),
		"isGuest":    member.IsGuest,
		"role":       string(member.Role),
		"joinedAt":   docstore.ServerTimestamp,
		"lastSeenAt": docstore.ServerTimestamp,
	}, docstore.Merge())
}

func (r *Repository) Members(ctx context.Context, sessionID string) ([]Member, error) {
	docs, err := r.store.Query(ctx, MembersQuery(sessionID))
	if err != nil {
		return nil, err
	}

	return DecodeMembers(docs)
}

func (r *Repository) Countdown(ctx context.Context, sessionID string, countdownID string) (Countdown, error) {
	doc, err := r.store.Get(ctx, CountdownPath(sessionID, countdownID))
	if docstore.IsNotFound(err) {
		return Countdown{}, ErrCountdownNotFound
	}
	if err != nil {
		return Countdown{}, err
	}

	return DecodeCountdown(doc)
}

func (r *Repository) Countdowns(ctx context.Context, sessionID string) ([]Countdown, error) {
	docs, err := r.store.Query(ctx, CountdownsQuery(sessionID))
	if err != nil {
		return nil, err
	}

	return DecodeCountdowns(docs)
}

// SaveForAccount records the session on the account's saved session list.
func (r *Repository) SaveForAccount(ctx context.Context, accountID string, session Session, role Role) error {
	return r.store.Set(ctx, SavedSessionPath(accountID, session.ID), docstore.Fields{
		"code":             session.Code,
		"name":             optional(session.Name),
		"role":             string(role),
		"lastSeenAt":       docstore.ServerTimestamp,
		"codeExpiresAt":    session.CodeExpiresAt,
		"sessionExpiresAt": session.SessionExpiresAt,
	}, docstore.Merge())
}

func MembersQuery(sessionID string) docstore.Query {
	return docstore.Query{
		Collection: MembersCollection(sessionID),
		OrderBy:    "joinedAt",
		Direction:  docstore.Asc,
	}
}

func CountdownsQuery(sessionID string) docstore.Query {
	return docstore.Query{
		Collection: CountdownsCollection(sessionID),
		OrderBy:    "createdAt",
		Direction:  docstore.Asc,
	}
}

func DecodeSession(doc docstore.Document) (Session, error) {
	var session Session
	if err := doc.Decode(&session); err != nil {
		return Session{}, err
	}
	session.ID = doc.ID
	session.Fear = ClampFear(session.Fear)

	return session, nil
}

func DecodeMembers(docs []docstore.Document) ([]Member, error) {
	members := make([]Member, 0, len(docs))
	for _, doc := range docs {
		var member Member
		if err := doc.Decode(&member); err != nil {
			return nil, fmt.Errorf("member %s: %w", doc.ID, err)
		}
		member.ID = doc.ID
		members = append(members, member)
	}

	return members, nil
}

func DecodeCountdown(doc docstore.Document) (Countdown, error) {
	var countdown Countdown
	if err := doc.Decode(&countdown); err != nil {
		return Countdown{}, err
	}
	countdown.ID = doc.ID

	return countdown, nil
}

func DecodeCountdowns(docs []docstore.Document) ([]Countdown, error) {
	countdowns := make([]Countdown, 0, len(docs))
	for _, doc := range docs {
		countdown, err := DecodeCountdown(doc)
		if err != nil {
			return nil, fmt.Errorf("countdown %s: %w", doc.ID, err)
		}
		countdowns = append(countdowns, countdown)
	}

	return countdowns, nil
}
