package domain

import (
	"errors"
	"time"

	sessiondomain "github.com/eskrenkovic/fear-tracker-go/internal/modules/game-session/domain"
)

const (
	DefaultHeartbeatInterval = 30 * time.Second
	DefaultStaleThreshold    = 120 * time.Second
)

var ErrMemberNotFound = errors.New("That member is no longer in the session.")

type Settings struct {
	HeartbeatInterval time.Duration
	StaleThreshold    time.Duration
}

func DefaultSettings() Settings {
	return Settings{
		HeartbeatInterval: DefaultHeartbeatInterval,
		StaleThreshold:    DefaultStaleThreshold,
	}
}

type MemberPresence struct {
	sessiondomain.Member
	IsActive bool `json:"isActive"`
}

// IsActive reports liveness from the last heartbeat. A member that has not
// sent one yet counts as active.
func IsActive(member sessiondomain.Member, now time.Time, threshold time.Duration) bool {
	if member.LastSeenAt == nil {
		return true
	}

	return now.Sub(*member.LastSeenAt) < threshold
}

func MembersWithPresence(members []sessiondomain.Member, now time.Time, threshold time.Duration) []MemberPresence {
	out := make([]MemberPresence, 0, len(members))
	for _, member := range members {
		out = append(out, MemberPresence{Member: member, IsActive: IsActive(member, now, threshold)})
	}
	return out
}

// Stale returns the members eligible for eviction. Members without a
// heartbeat are never stale.
func Stale(members []sessiondomain.Member, now time.Time, threshold time.Duration) []sessiondomain.Member {
	stale := make([]sessiondomain.Member, 0)
	for _, member := range members {
		if member.LastSeenAt != nil && !IsActive(member, now, threshold) {
			stale = append(stale, member)
		}
	}
	return stale
}
