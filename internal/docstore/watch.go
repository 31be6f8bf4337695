package docstore

import (
	"context"
	"sync"
)

// Loader produces the full current result set of a subscription.
type Loader func(ctx context.Context) ([]Document, error)

// Watcher fans change notifications out to subscriptions. Each subscription
// re-runs its loader on its own goroutine and keeps only the newest snapshot
// buffered, so a slow consumer never blocks writers.
type Watcher struct {
	mu     sync.Mutex
	subs   map[*watch]struct{}
	closed bool
}

func NewWatcher() *Watcher {
	return &Watcher{subs: make(map[*watch]struct{})}
}

// Watch registers a subscription. match decides which changed paths affect
// it. An initial snapshot is always delivered.
func (w *Watcher) Watch(match func(path string) bool, load Loader) (Subscription, error) {
	ctx, cancel := context.WithCancel(context.Background())

	s := &watch{
		watcher:   w,
		match:     match,
		load:      load,
		snapshots: make(chan Snapshot, 1),
		dirty:     make(chan struct{}, 1),
		ctx:       ctx,
		cancel:    cancel,
		exited:    make(chan struct{}),
	}

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		cancel()
		return nil, ErrClosed
	}
	w.subs[s] = struct{}{}
	w.mu.Unlock()

	s.markDirty()
	go s.run()

	return s, nil
}

// Notify marks every subscription affected by a change at path.
func (w *Watcher) Notify(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for s := range w.subs {
		if s.match(path) {
			s.markDirty()
		}
	}
}

// NotifyAll marks every subscription, used when changes may have been missed.
func (w *Watcher) NotifyAll() {
	w.mu.Lock()
	defer w.mu.Unlock()

	for s := range w.subs {
		s.markDirty()
	}
}

// Len returns the number of open subscriptions.
func (w *Watcher) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.subs)
}

func (w *Watcher) Close() error {
	w.mu.Lock()
	w.closed = true
	subs := make([]*watch, 0, len(w.subs))
	for s := range w.subs {
		subs = append(subs, s)
	}
	w.mu.Unlock()

	for _, s := range subs {
		_ = s.Close()
	}
	return nil
}

func (w *Watcher) remove(s *watch) {
	w.mu.Lock()
	delete(w.subs, s)
	w.mu.Unlock()
}

var _ Subscription = (*watch)(nil)

type watch struct {
	watcher *Watcher
	match   func(string) bool
	load    Loader

	snapshots chan Snapshot
	dirty     chan struct{}

	ctx    context.Context
	cancel context.CancelFunc

	closeOnce sync.Once
	exited    chan struct{}
}

func (s *watch) Snapshots() <-chan Snapshot {
	return s.snapshots
}

func (s *watch) Close() error {
	s.closeOnce.Do(func() {
		s.watcher.remove(s)
		s.cancel()
		<-s.exited
	})
	return nil
}

func (s *watch) markDirty() {
	select {
	case s.dirty <- struct{}{}:
	default:
	}
}

func (s *watch) run() {
	defer close(s.exited)
	defer close(s.snapshots)

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-s.dirty:
		}

		docs, err := s.load(s.ctx)
		if s.ctx.Err() != nil {
			return
		}

		s.publish(Snapshot{Docs: docs, Err: err})
	}
}

// publish replaces any undelivered snapshot with snap.
func (s *watch) publish(snap Snapshot) {
	select {
	case <-s.snapshots:
	default:
	}
	s.snapshots <- snap
}
