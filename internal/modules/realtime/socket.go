package realtime

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const writeTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func Upgrade(w http.ResponseWriter, r *http.Request) (*websocket.Conn, error) {
	return upgrader.Upgrade(w, r, nil)
}

// Push writes render() to conn once and again after every signal on
// changes. It returns when ctx ends, the peer goes away or a write fails.
// Messages from the peer are read and discarded.
func Push(ctx context.Context, conn *websocket.Conn, changes <-chan struct{}, render func() any) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	write := func() error {
		if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
			return err
		}
		return conn.WriteJSON(render())
	}

	if err := write(); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeTimeout),
			)
			return nil

		case _, ok := <-changes:
			if !ok {
				return nil
			}
			if err := write(); err != nil {
				return err
			}
		}
	}
}
