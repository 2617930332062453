package notification

import (
	"context"
	"net/http"
	"sync"
	"time"

	"atelier/internal/model"
	"atelier/pkg/constants"
	"atelier/pkg/logger"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 32

	// AllProjects subscribes to the effects of every project (admin consoles)
	AllProjects = "*"
)

type subscriber struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (s *subscriber) close() {
	s.once.Do(func() { close(s.send) })
}

// Hub pushes side effects to websocket subscribers of a project
type Hub struct {
	mu       sync.RWMutex
	subs     map[string]map[*subscriber]struct{}
	upgrader websocket.Upgrader
}

// NewHub creates a hub. checkOrigin may be nil to accept every origin.
func NewHub(checkOrigin func(r *http.Request) bool) *Hub {
	if checkOrigin == nil {
		checkOrigin = func(r *http.Request) bool { return true }
	}
	return &Hub{
		subs: make(map[string]map[*subscriber]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
	}
}

func (h *Hub) Name() string { return "websocket" }

func (h *Hub) Accepts(t constants.EffectType) bool {
	return t != constants.EffectWorkerStats
}

// Deliver fans the effect out to the project's subscribers. Slow subscribers
// whose buffer is full miss the message rather than block delivery.
func (h *Hub) Deliver(ctx context.Context, e *model.Effect) error {
	msg, err := e.ToJSON()
	if err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, key := range []string{e.ProjectID, AllProjects} {
		for s := range h.subs[key] {
			select {
			case s.send <- msg:
			default:
				logger.WarnCtx(ctx, "websocket subscriber of project %s is lagging, dropping effect %s", key, e.ID)
			}
		}
	}
	return nil
}

// Subscribers returns the number of live connections for a project
func (h *Hub) Subscribers(projectID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[projectID])
}

// ServeWS upgrades the request and streams effects of projectID until the client goes away
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, projectID string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.ErrorCtx(r.Context(), "Failed to upgrade to websocket: %v", err)
		return
	}

	s := &subscriber{conn: conn, send: make(chan []byte, sendBuffer)}
	h.register(projectID, s)

	go h.writePump(s)
	h.readPump(projectID, s)
}

// Close drops every subscriber
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for key, set := range h.subs {
		for s := range set {
			s.close()
		}
		delete(h.subs, key)
	}
}

func (h *Hub) register(projectID string, s *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subs[projectID]
	if !ok {
		set = make(map[*subscriber]struct{})
		h.subs[projectID] = set
	}
	set[s] = struct{}{}
}

func (h *Hub) unregister(projectID string, s *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.subs[projectID]; ok {
		delete(set, s)
		if len(set) == 0 {
			delete(h.subs, projectID)
		}
	}
	s.close()
}

// readPump only services control frames; subscribers never send data
func (h *Hub) readPump(projectID string, s *subscriber) {
	defer func() {
		h.unregister(projectID, s)
		s.conn.Close()
	}()

	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(s *subscriber) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
