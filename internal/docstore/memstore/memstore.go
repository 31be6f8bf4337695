// Package memstore is an in-process document store used for local runs and
// tests.
package memstore

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"sync"

	"github.com/eskrenkovic/fear-tracker-go/internal/docstore"

	"github.com/benbjohnson/clock"
	"github.com/oklog/ulid/v2"
)

var _ docstore.Store = (*Store)(nil)

type Store struct {
	mu      sync.RWMutex
	docs    map[string]docstore.Fields
	closed  bool
	entropy io.Reader

	clock   clock.Clock
	watcher *docstore.Watcher
}

type Option func(*Store)

func WithClock(c clock.Clock) Option {
	return func(s *Store) {
		s.clock = c
	}
}

func New(opts ...Option) *Store {
	s := &Store{
		docs:    make(map[string]docstore.Fields),
		entropy: ulid.Monotonic(rand.Reader, 0),
		clock:   clock.New(),
		watcher: docstore.NewWatcher(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *Store) Get(ctx context.Context, path string) (docstore.Document, error) {
	_, id, err := docstore.SplitPath(path)
	if err != nil {
		return docstore.Document{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return docstore.Document{}, docstore.ErrClosed
	}

	fields, ok := s.docs[path]
	if !ok {
		return docstore.Document{}, fmt.Errorf("%s: %w", path, docstore.ErrNotFound)
	}

	return docstore.Document{ID: id, Path: path, Fields: docstore.Clone(fields)}, nil
}

func (s *Store) Query(ctx context.Context, q docstore.Query) ([]docstore.Document, error) {
	if !docstore.ValidCollection(q.Collection) {
		return nil, fmt.Errorf("%w: %q", docstore.ErrInvalidPath, q.Collection)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, docstore.ErrClosed
	}

	docs := make([]docstore.Document, 0)
	for path, fields := range s.docs {
		collection, id, err := docstore.SplitPath(path)
		if err != nil || collection != q.Collection {
			continue
		}

		if !docstore.Matches(fields, q.Filters) {
			continue
		}

		docs = append(docs, docstore.Document{ID: id, Path: path, Fields: docstore.Clone(fields)})
	}

	return docstore.SortDocuments(docs, q), nil
}

func (s *Store) Add(ctx context.Context, collection string, fields docstore.Fields) (string, error) {
	if !docstore.ValidCollection(collection) {
		return "", fmt.Errorf("%w: %q", docstore.ErrInvalidPath, collection)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", docstore.ErrClosed
	}

	now := s.clock.Now()
	id := ulid.MustNew(ulid.Timestamp(now), s.entropy).String()
	path := docstore.Join(collection, id)
	s.docs[path] = docstore.ResolveTimestamps(fields, now)
	s.mu.Unlock()

	s.watcher.Notify(path)
	return id, nil
}

func (s *Store) Set(ctx context.Context, path string, fields docstore.Fields, opts ...docstore.SetOption) error {
	if _, _, err := docstore.SplitPath(path); err != nil {
		return err
	}

	options := docstore.ApplySetOptions(opts...)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return docstore.ErrClosed
	}

	resolved := docstore.ResolveTimestamps(fields, s.clock.Now())
	if existing, ok := s.docs[path]; ok && options.Merge {
		for k, v := range resolved {
			existing[k] = v
		}
	} else {
		s.docs[path] = resolved
	}
	s.mu.Unlock()

	s.watcher.Notify(path)
	return nil
}

func (s *Store) Update(ctx context.Context, path string, fields docstore.Fields) error {
	if _, _, err := docstore.SplitPath(path); err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return docstore.ErrClosed
	}

	existing, ok := s.docs[path]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%s: %w", path, docstore.ErrNotFound)
	}

	for k, v := range docstore.ResolveTimestamps(fields, s.clock.Now()) {
		existing[k] = v
	}
	s.mu.Unlock()

	s.watcher.Notify(path)
	return nil
}

// Delete removes the document at path. Deleting an absent document is not an
// error. Documents in nested collections are left in place.
func (s *Store) Delete(ctx context.Context, path string) error {
	if _, _, err := docstore.SplitPath(path); err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return docstore.ErrClosed
	}

	_, existed := s.docs[path]
	delete(s.docs, path)
	s.mu.Unlock()

	if existed {
		s.watcher.Notify(path)
	}
	return nil
}

func (s *Store) SubscribeDoc(ctx context.Context, path string) (docstore.Subscription, error) {
	if _, _, err := docstore.SplitPath(path); err != nil {
		return nil, err
	}

	match := func(changed string) bool {
		return changed == path
	}

	load := func(ctx context.Context) ([]docstore.Document, error) {
		doc, err := s.Get(ctx, path)
		switch {
		case err == nil:
			return []docstore.Document{doc}, nil
		case docstore.IsNotFound(err):
			return []docstore.Document{}, nil
		default:
			return nil, err
		}
	}

	return s.watcher.Watch(match, load)
}

func (s *Store) SubscribeQuery(ctx context.Context, q docstore.Query) (docstore.Subscription, error) {
	if !docstore.ValidCollection(q.Collection) {
		return nil, fmt.Errorf("%w: %q", docstore.ErrInvalidPath, q.Collection)
	}

	match := func(changed string) bool {
		collection, _, err := docstore.SplitPath(changed)
		return err == nil && collection == q.Collection
	}

	load := func(ctx context.Context) ([]docstore.Document, error) {
		return s.Query(ctx, q)
	}

	return s.watcher.Watch(match, load)
}

func (s *Store) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	return s.watcher.Close()
}
