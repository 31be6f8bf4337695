// Package joincode allocates the short codes players type to find a session.
package joincode

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	mathrand "math/rand/v2"
	"strings"
	"time"

	"github.com/eskrenkovic/fear-tracker-go/internal/docstore"
	"github.com/eskrenkovic/fear-tracker-go/internal/modules/core"

	"github.com/benbjohnson/clock"
)

const (
	// Charset leaves out 0/O and 1/I. Its length divides 256, so reducing a
	// random byte modulo len(Charset) is uniform.
	Charset = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	Length  = 6

	MaxAttempts = 5

	CollectionName = "sessionCodes"
)

var ErrAllocationExhausted = errors.New("unable to reserve a unique join code")

// Reservation maps a join code to its session until either expiry passes.
type Reservation struct {
	Code             string    `doc:"-"`
	SessionID        string    `doc:"sessionId"`
	CodeExpiresAt    time.Time `doc:"codeExpiresAt"`
	SessionExpiresAt time.Time `doc:"sessionExpiresAt"`
}

// Live reports whether the reservation still holds its code at now.
func (r Reservation) Live(now time.Time) bool {
	return now.Before(r.CodeExpiresAt) && now.Before(r.SessionExpiresAt)
}

func Path(code string) string {
	return docstore.Join(CollectionName, code)
}

// Normalize trims and upper-cases user input.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Generate draws Length symbols from Charset using the secure source.
func Generate() (string, error) {
	return generate(rand.Reader)
}

func generate(source io.Reader) (string, error) {
	buf := make([]byte, Length)
	if _, err := io.ReadFull(source, buf); err != nil {
		return generateFallback()
	}

	return encode(buf), nil
}

func generateFallback() (string, error) {
	var seed [32]byte
	binarySeed := uint64(time.Now().UnixNano())
	for i := range seed {
		seed[i] = byte(binarySeed >> (8 * (i % 8)))
		binarySeed = binarySeed*2862933555777941757 + 3037000493
	}

	buf := make([]byte, Length)
	if _, err := mathrand.NewChaCha8(seed).Read(buf); err != nil {
		return "", fmt.Errorf("fallback random source failed: %w", err)
	}

	return encode(buf), nil
}

func encode(buf []byte) string {
	out := make([]byte, len(buf))
	for i := range buf {
		out[i] = Charset[int(buf[i])%len(Charset)]
	}
	return string(out)
}

type Allocator struct {
	store       docstore.Store
	clock       clock.Clock
	generate    func() (string, error)
	maxAttempts int
}

type Option func(*Allocator)

func WithClock(c clock.Clock) Option {
	return func(a *Allocator) {
		a.clock = c
	}
}

func WithGenerator(generate func() (string, error)) Option {
	return func(a *Allocator) {
		a.generate = generate
	}
}

func NewAllocator(store docstore.Store, opts ...Option) *Allocator {
	a := &Allocator{
		store:       store,
		clock:       clock.New(),
		generate:    Generate,
		maxAttempts: MaxAttempts,
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Reserve returns the first generated code without a live reservation.
// Attempts run one after another.
func (a *Allocator) Reserve(ctx context.Context) (string, error) {
	for attempt := 0; attempt < a.maxAttempts; attempt++ {
		code, err := a.generate()
		if err != nil {
			return "", err
		}

		taken, err := a.taken(ctx, code)
		if err != nil {
			return "", err
		}

		if !taken {
			core.JoinCodesReserved.Inc()
			return code, nil
		}

		core.JoinCodeCollisions.Inc()
	}

	core.JoinCodeAllocationsExhausted.Inc()
	return "", ErrAllocationExhausted
}

func (a *Allocator) taken(ctx context.Context, code string) (bool, error) {
	reservation, err := a.Lookup(ctx, code)
	switch {
	case docstore.IsNotFound(err):
		return false, nil
	case err != nil:
		return false, err
	}

	return reservation.Live(a.clock.Now()), nil
}

// Lookup reads the reservation for code without checking expiry.
func (a *Allocator) Lookup(ctx context.Context, code string) (Reservation, error) {
	doc, err := a.store.Get(ctx, Path(code))
	if err != nil {
		return Reservation{}, err
	}

	var reservation Reservation
	if err := doc.Decode(&reservation); err != nil {
		return Reservation{}, err
	}
	reservation.Code = doc.ID

	return reservation, nil
}

// Save writes the reservation, replacing any expired one for the same code.
func (a *Allocator) Save(ctx context.Context, r Reservation) error {
	return a.store.Set(ctx, Path(r.Code), docstore.Fields{
		"sessionId":        r.SessionID,
		"codeExpiresAt":    r.CodeExpiresAt,
		"sessionExpiresAt": r.SessionExpiresAt,
		"createdAt":        docstore.ServerTimestamp,
	})
}
