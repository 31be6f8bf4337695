// Package identity resolves who is acting: a signed-in account or a guest
// identified by a locally persisted id.
package identity

import (
	"encoding/hex"
	"errors"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	GuestIDKey   = "dh_guest_id"
	GuestNameKey = "dh_guest_name"

	GuestMemberPrefix  = "guest-"
	DefaultDisplayName = "Player"
)

var ErrEmptyName = errors.New("name is empty")

// GuestStorage persists guest identity values on the caller's side.
type GuestStorage interface {
	Load(key string) (string, bool)
	Store(key string, value string) error
}

type Guest struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Resolver struct {
	storage GuestStorage
}

func NewResolver(storage GuestStorage) *Resolver {
	return &Resolver{storage: storage}
}

// GuestIdentity returns the persisted guest, creating and storing a new id on
// first use.
func (r *Resolver) GuestIdentity() (Guest, error) {
	id, found := r.storage.Load(GuestIDKey)
	if !found || id == "" {
		id = NewGuestID()
		if err := r.storage.Store(GuestIDKey, id); err != nil {
			return Guest{}, err
		}
	}

	name, _ := r.storage.Load(GuestNameKey)

	return Guest{ID: id, Name: name}, nil
}

// SetGuestName stores the trimmed name. Blank names are ignored.
func (r *Resolver) SetGuestName(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return ErrEmptyName
	}

	return r.storage.Store(GuestNameKey, trimmed)
}

func MemberID(accountID string, guestID string) string {
	if accountID != "" {
		return accountID
	}
	return GuestMemberPrefix + guestID
}

func IsGuestMemberID(memberID string) bool {
	return strings.HasPrefix(memberID, GuestMemberPrefix)
}

// DisplayName picks the account name, then the email local part, then the
// guest name, then DefaultDisplayName.
func DisplayName(accountName string, email string, guestName string) string {
	if name := strings.TrimSpace(accountName); name != "" {
		return accountName
	}

	if strings.Contains(email, "@") {
		if local := strings.SplitN(email, "@", 2)[0]; local != "" {
			return local
		}
		return email
	}

	if name := strings.TrimSpace(guestName); name != "" {
		return name
	}

	return DefaultDisplayName
}

// NewGuestID returns a random v4 uuid. If the secure source fails it falls
// back to hex of a time seeded ChaCha8 stream.
func NewGuestID() string {
	id, err := uuid.NewRandom()
	if err == nil {
		return id.String()
	}

	var seed [32]byte
	now := uint64(time.Now().UnixNano())
	for i := range seed {
		seed[i] = byte(now >> (8 * (i % 8)))
		now = now*6364136223846793005 + 1442695040888963407
	}

	b := make([]byte, 16)
	_, _ = rand.NewChaCha8(seed).Read(b)
	return hex.EncodeToString(b)
}

// MemoryGuestStorage keeps guest values in memory.
type MemoryGuestStorage struct {
	mu     sync.Mutex
	values map[string]string
}

func NewMemoryGuestStorage() *MemoryGuestStorage {
	return &MemoryGuestStorage{values: make(map[string]string)}
}

func (s *MemoryGuestStorage) Load(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.values[key]
	return v, ok
}

func (s *MemoryGuestStorage) Store(key string, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[key] = value
	return nil
}
