package domain

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/eskrenkovic/fear-tracker-go/internal/docstore"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusAccepted  Status = "accepted"
	StatusDeclined  Status = "declined"
	StatusCancelled Status = "cancelled"
	StatusRevoked   Status = "revoked"
)

var (
	ErrRequestNotFound = errors.New("That request no longer exists.")
	ErrInvalidStatus   = errors.New("invalid status")
)

// Variant describes one kind of relationship request: where its documents
// live, which of them belong to a party and how many a party sees.
type Variant[T any] struct {
	Collection string
	Window     int
	Statuses   []Status
	Party      func(party string) docstore.Filter
	Decode     func(doc docstore.Document) (T, error)
}

// Engine implements the operations friendships and invites share.
type Engine[T any] struct {
	store   docstore.Store
	variant Variant[T]
}

func NewEngine[T any](store docstore.Store, variant Variant[T]) *Engine[T] {
	return &Engine[T]{store: store, variant: variant}
}

func (e *Engine[T]) Store() docstore.Store {
	return e.store
}

func (e *Engine[T]) Path(id string) string {
	return docstore.Join(e.variant.Collection, id)
}

func (e *Engine[T]) ValidStatus(status Status) bool {
	return slices.Contains(e.variant.Statuses, status)
}

func (e *Engine[T]) Get(ctx context.Context, id string) (T, error) {
	var zero T

	doc, err := e.store.Get(ctx, e.Path(id))
	if docstore.IsNotFound(err) {
		return zero, ErrRequestNotFound
	}
	if err != nil {
		return zero, err
	}

	return e.variant.Decode(doc)
}

// Respond overwrites the status whatever it currently is. Two parties
// responding at once is last writer wins.
func (e *Engine[T]) Respond(ctx context.Context, id string, status Status) error {
	if !e.ValidStatus(status) {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	err := e.store.Update(ctx, e.Path(id), docstore.Fields{
		"status":    string(status),
		"updatedAt": docstore.ServerTimestamp,
	})
	if docstore.IsNotFound(err) {
		return ErrRequestNotFound
	}

	return err
}

// Query selects every document involving party regardless of status, most
// recently updated first.
func (e *Engine[T]) Query(party string) docstore.Query {
	return docstore.Query{
		Collection: e.variant.Collection,
		Filters:    []docstore.Filter{e.variant.Party(party)},
		OrderBy:    "updatedAt",
		Direction:  docstore.Desc,
		Limit:      e.variant.Window,
	}
}

func (e *Engine[T]) List(ctx context.Context, party string) ([]T, error) {
	docs, err := e.store.Query(ctx, e.Query(party))
	if err != nil {
		return nil, err
	}

	return e.DecodeAll(docs)
}

// Subscribe delivers the full windowed list on every change.
func (e *Engine[T]) Subscribe(ctx context.Context, party string) (docstore.Subscription, error) {
	return e.store.SubscribeQuery(ctx, e.Query(party))
}

func (e *Engine[T]) DecodeAll(docs []docstore.Document) ([]T, error) {
	out := make([]T, 0, len(docs))
	for _, doc := range docs {
		v, err := e.variant.Decode(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}

	return out, nil
}
