package realtime

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

var ErrClosed = errors.New("synchronizer closed")

// Handle is anything a scope holds open: a stream, a ticker, a tracker.
type Handle interface {
	Close() error
}

type HandleFunc func() error

func (f HandleFunc) Close() error {
	return f()
}

type Opener func(ctx context.Context) (Handle, error)

// Synchronizer owns the handles opened for each scope. Starting a scope
// closes whatever the scope held before, so there is never more than one
// live set per scope.
type Synchronizer struct {
	mu      sync.Mutex
	handles map[string][]Handle
	closed  bool
	logger  *zap.Logger
}

func NewSynchronizer(logger *zap.Logger) *Synchronizer {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Synchronizer{handles: make(map[string][]Handle), logger: logger}
}

// Start opens every handle for scope. If any opener fails the handles opened
// so far are closed and the scope is left empty.
func (s *Synchronizer) Start(ctx context.Context, scope string, openers ...Opener) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	if err := s.stopLocked(scope); err != nil {
		s.logger.Warn("failed to close previous handles", zap.String("scope", scope), zap.Error(err))
	}

	opened := make([]Handle, 0, len(openers))
	for _, open := range openers {
		handle, err := open(ctx)
		if err != nil {
			return multierr.Append(err, closeAll(opened))
		}
		opened = append(opened, handle)
	}

	s.handles[scope] = opened
	return nil
}

func (s *Synchronizer) Stop(scope string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.stopLocked(scope)
}

func (s *Synchronizer) Active(scope string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.handles[scope]
	return ok
}

// Close stops every scope. Later calls to Start fail with ErrClosed.
func (s *Synchronizer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true

	var err error
	for scope := range s.handles {
		err = multierr.Append(err, s.stopLocked(scope))
	}

	return err
}

func (s *Synchronizer) stopLocked(scope string) error {
	handles, ok := s.handles[scope]
	if !ok {
		return nil
	}
	delete(s.handles, scope)

	return closeAll(handles)
}

// closeAll closes in reverse opening order.
func closeAll(handles []Handle) error {
	var err error
	for i := len(handles) - 1; i >= 0; i-- {
		err = multierr.Append(err, handles[i].Close())
	}
	return err
}
