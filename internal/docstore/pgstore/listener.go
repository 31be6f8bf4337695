package pgstore

import (
	"time"

	"github.com/eskrenkovic/fear-tracker-go/internal/docstore"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

const (
	changeChannel = "document_changes"

	minReconnectInterval = 100 * time.Millisecond
	maxReconnectInterval = 10 * time.Second
	pingInterval         = 90 * time.Second
)

type changeListener struct {
	listener *pq.Listener
	done     chan struct{}
	exited   chan struct{}
}

func listen(connectionString string, watcher *docstore.Watcher, logger *zap.Logger) (*changeListener, error) {
	onEvent := func(event pq.ListenerEventType, err error) {
		if err != nil {
			logger.Warn("document change listener event", zap.Int("event", int(event)), zap.Error(err))
		}
	}

	l := pq.NewListener(connectionString, minReconnectInterval, maxReconnectInterval, onEvent)
	if err := l.Listen(changeChannel); err != nil {
		_ = l.Close()
		return nil, err
	}

	cl := &changeListener{
		listener: l,
		done:     make(chan struct{}),
		exited:   make(chan struct{}),
	}

	go cl.run(watcher, logger)

	return cl, nil
}

func (l *changeListener) run(watcher *docstore.Watcher, logger *zap.Logger) {
	defer close(l.exited)

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.done:
			return

		case n, ok := <-l.listener.Notify:
			if !ok {
				return
			}

			// A nil notification follows a reconnect; anything could have
			// changed in between.
			if n == nil {
				watcher.NotifyAll()
				continue
			}

			watcher.Notify(n.Extra)

		case <-ticker.C:
			if err := l.listener.Ping(); err != nil {
				logger.Warn("document change listener ping failed", zap.Error(err))
			}
		}
	}
}

func (l *changeListener) Close() error {
	close(l.done)
	err := l.listener.Close()
	<-l.exited
	return err
}
