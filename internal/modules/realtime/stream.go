// Package realtime turns store subscriptions into typed streams and keeps
// track of the handles a consumer holds open, so a scope can be torn down
// and reopened as a unit.
package realtime

import (
	"context"
	"sync"

	"github.com/eskrenkovic/fear-tracker-go/internal/docstore"
	"github.com/eskrenkovic/fear-tracker-go/internal/modules/core"
)

type Decoder[T any] func(docs []docstore.Document) (T, error)

type Update[T any] struct {
	Value T
	Err   error
}

// Stream decodes the snapshots of one subscription. Only the newest update
// is buffered; a reader that falls behind skips to the latest state.
type Stream[T any] struct {
	sub     docstore.Subscription
	updates chan Update[T]

	done      chan struct{}
	exited    chan struct{}
	closeOnce sync.Once
	closeErr  error
}

func Open[T any](sub docstore.Subscription, decode Decoder[T]) *Stream[T] {
	s := &Stream[T]{
		sub:     sub,
		updates: make(chan Update[T], 1),
		done:    make(chan struct{}),
		exited:  make(chan struct{}),
	}

	core.OpenStreams.Inc()
	go s.run(decode)

	return s
}

// Updates is closed once the stream is closed or the subscription ends.
func (s *Stream[T]) Updates() <-chan Update[T] {
	return s.updates
}

func (s *Stream[T]) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.closeErr = s.sub.Close()
		<-s.exited
		core.OpenStreams.Dec()
	})

	return s.closeErr
}

func (s *Stream[T]) run(decode Decoder[T]) {
	defer close(s.exited)
	defer close(s.updates)

	for {
		select {
		case <-s.done:
			return

		case snap, ok := <-s.sub.Snapshots():
			if !ok {
				return
			}

			var update Update[T]
			if snap.Err != nil {
				update.Err = snap.Err
			} else {
				update.Value, update.Err = decode(snap.Docs)
			}

			s.publish(update)
		}
	}
}

func (s *Stream[T]) publish(update Update[T]) {
	select {
	case <-s.updates:
	default:
	}

	select {
	case s.updates <- update:
	case <-s.done:
	}
}

// Subscribe returns an opener that subscribes, decodes and hands every value
// to onValue and every failure to onError, each on the stream's reader
// goroutine.
func Subscribe[T any](
	subscribe func(ctx context.Context) (docstore.Subscription, error),
	decode Decoder[T],
	onValue func(T),
	onError func(error),
) Opener {
	return func(ctx context.Context) (Handle, error) {
		sub, err := subscribe(ctx)
		if err != nil {
			return nil, err
		}

		stream := Open(sub, decode)
		go func() {
			for update := range stream.Updates() {
				if update.Err != nil {
					onError(update.Err)
					continue
				}
				onValue(update.Value)
			}
		}()

		return stream, nil
	}
}
