// Package stream pushes newly seen flows to websocket clients.
package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/navid-fn/flowradar/internal/models"
	"github.com/navid-fn/flowradar/internal/watcher"
)

const (
	writeTimeout = 10 * time.Second
	pongTimeout  = 60 * time.Second
	pingInterval = 30 * time.Second
)

type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) write(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteMessage(messageType, data)
}

// Hub polls the flow service and broadcasts every flow it has not sent
// before, oldest first, as one JSON message per flow.
type Hub struct {
	reader   watcher.FlowReader
	tracker  *watcher.SeenTracker
	interval time.Duration
	logger   logrus.FieldLogger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
}

func NewHub(reader watcher.FlowReader, interval time.Duration, logger logrus.FieldLogger) *Hub {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Hub{
		reader:   reader,
		tracker:  watcher.NewSeenTracker(5000),
		interval: interval,
		logger:   logger,
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		clients:  make(map[*client]struct{}),
	}
}

// Run polls until ctx is cancelled and then closes every client.
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		h.Tick(ctx)
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case <-ticker.C:
		}
	}
}

// Tick broadcasts the unseen flows of the last hour and returns how many.
func (h *Hub) Tick(ctx context.Context) int {
	hour := models.Range1h
	events := h.reader.RecentFlows(ctx, models.CapitalFlowFilters{TimeRange: &hour})

	sent := 0
	for i := len(events) - 1; i >= 0; i-- {
		if !h.tracker.Mark(events[i].ID) {
			continue
		}
		data, err := json.Marshal(events[i])
		if err != nil {
			continue
		}
		h.broadcast(data)
		sent++
	}
	return sent
}

func (h *Hub) broadcast(data []byte) {
	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		if err := c.write(websocket.TextMessage, data); err != nil {
			h.logger.WithError(err).Debug("dropping websocket client")
			h.remove(c)
		}
	}
}

func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Handle upgrades the request and keeps the connection until the client
// goes away.
func (h *Hub) Handle(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.WithError(err).Warn("websocket upgrade failed")
		return
	}

	cl := &client{conn: conn}
	h.mu.Lock()
	h.clients[cl] = struct{}{}
	h.mu.Unlock()

	go h.keepAlive(cl)
}

func (h *Hub) keepAlive(cl *client) {
	defer h.remove(cl)

	_ = cl.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	cl.conn.SetPongHandler(func(string) error {
		return cl.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := cl.write(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	for {
		if _, _, err := cl.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) remove(cl *client) {
	h.mu.Lock()
	_, ok := h.clients[cl]
	delete(h.clients, cl)
	h.mu.Unlock()
	if ok {
		_ = cl.conn.Close()
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*client]struct{})
	h.mu.Unlock()

	for cl := range clients {
		_ = cl.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
		_ = cl.conn.Close()
	}
}
