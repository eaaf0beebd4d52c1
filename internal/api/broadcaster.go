package api

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"dex-wallet-tracker/internal/domain"
)

// Broadcaster pushes job progress snapshots to connected websocket
// clients. It implements orchestrator.ProgressSink.
type Broadcaster struct {
	mu       sync.Mutex
	clients  map[*websocket.Conn]struct{}
	upgrader websocket.Upgrader
	logger   logrus.FieldLogger
}

// NewBroadcaster creates a broadcaster with no connected clients.
func NewBroadcaster(logger logrus.FieldLogger) *Broadcaster {
	return &Broadcaster{
		clients:  make(map[*websocket.Conn]struct{}),
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		logger:   logger,
	}
}

// NotifyJob sends the job snapshot to every connected client. Clients
// that fail the write are dropped.
func (b *Broadcaster) NotifyJob(job *domain.CollectionJob) {
	b.mu.Lock()
	defer b.mu.Unlock()

	msg, err := json.Marshal(jobToJSON(job))
	if err != nil {
		b.logger.WithError(err).Warn("marshal job snapshot")
		return
	}

	for conn := range b.clients {
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			b.logger.WithError(err).Debug("drop websocket client")
			conn.Close()
			delete(b.clients, conn)
		}
	}
}

// Handler upgrades the request and registers the client until it
// disconnects.
func (b *Broadcaster) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := b.upgrader.Upgrade(w, r, nil)
		if err != nil {
			b.logger.WithError(err).Warn("websocket upgrade failed")
			return
		}

		b.mu.Lock()
		b.clients[conn] = struct{}{}
		b.mu.Unlock()

		go func() {
			defer func() {
				b.mu.Lock()
				delete(b.clients, conn)
				b.mu.Unlock()
				conn.Close()
			}()
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
	}
}

// ClientCount returns the number of connected clients.
func (b *Broadcaster) ClientCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}
