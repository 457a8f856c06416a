// Package ws pushes live document state to connected clients. A client
// subscribes to a document path and receives the complete current value
// on every change; deliveries are never diffs, so the client replaces
// its local state wholesale.
package ws

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"log/slog"

	"gatherly-backend/internal/docstore"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxMessage = 1 << 16
)

const sendBuffer = 32

type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (userID string, err error)
}

// Subscriber is the slice of the document store the hub needs.
type Subscriber interface {
	Subscribe(ctx context.Context, path string) (*docstore.Subscription, error)
}

type Envelope struct {
	Type    string `json:"type"`
	Doc     string `json:"doc,omitempty"`
	Payload any    `json:"payload,omitempty"`
	Error   string `json:"error,omitempty"`
}

type clientRequest struct {
	Type string `json:"type"`
	Doc  string `json:"doc"`
}

type client struct {
	conn      *websocket.Conn
	userID    string
	send      chan []byte
	closeOnce sync.Once

	mu   sync.Mutex
	subs map[string]context.CancelFunc
}

func (c *client) close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		for _, cancel := range c.subs {
			cancel()
		}
		c.subs = nil
		c.mu.Unlock()
		close(c.send)
		_ = c.conn.Close()
	})
}

type Hub struct {
	logger         *slog.Logger
	tokenValidator TokenValidator
	store          Subscriber

	mu      sync.Mutex
	clients map[*client]struct{}
}

func NewHub(logger *slog.Logger, tokenValidator TokenValidator, store Subscriber) *Hub {
	return &Hub{
		logger:         logger.With("component", "ws"),
		tokenValidator: tokenValidator,
		store:          store,
		clients:        make(map[*client]struct{}),
	}
}

func (h *Hub) Handler() http.Handler {
	return http.HandlerFunc(h.handle)
}

func (h *Hub) CloseAll() {
	clients := h.snapshotClients()
	for _, c := range clients {
		_ = c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "server shutdown"),
			time.Now().Add(writeWait),
		)
		c.close()
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func (h *Hub) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	token := extractToken(r)
	if token == "" {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	userID, err := h.tokenValidator.ValidateToken(r.Context(), token)
	if err != nil {
		http.Error(w, "invalid or expired token", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", "error", err)
		return
	}

	c := &client{
		conn:   conn,
		userID: userID,
		send:   make(chan []byte, sendBuffer),
		subs:   make(map[string]context.CancelFunc),
	}
	h.track(c)
	defer h.untrack(c)
	defer c.close()

	h.logger.Info("ws connected", "remoteAddr", r.RemoteAddr, "userID", userID)

	conn.SetReadLimit(maxMessage)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go h.writePump(c, r.RemoteAddr)

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			h.logger.Info("ws disconnected", "remoteAddr", r.RemoteAddr, "userID", userID, "error", err)
			return
		}
		h.handleClientRequest(c, msg)
	}
}

func (h *Hub) handleClientRequest(c *client, msg []byte) {
	var req clientRequest
	if err := json.Unmarshal(msg, &req); err != nil {
		return
	}

	switch req.Type {
	case "subscribe":
		h.subscribe(c, req.Doc)
	case "unsubscribe":
		h.unsubscribe(c, req.Doc)
	}
}

func (h *Hub) subscribe(c *client, doc string) {
	if !allowedPath(doc, c.userID) {
		h.deliver(c, Envelope{Type: "error", Doc: doc, Error: "PERMISSION_DENIED"})
		return
	}

	c.mu.Lock()
	if c.subs == nil {
		c.mu.Unlock()
		return
	}
	if _, exists := c.subs[doc]; exists {
		c.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.subs[doc] = cancel
	c.mu.Unlock()

	sub, err := h.store.Subscribe(ctx, doc)
	if err != nil {
		cancel()
		c.mu.Lock()
		delete(c.subs, doc)
		c.mu.Unlock()
		h.deliver(c, Envelope{Type: "error", Doc: doc, Error: errorCode(err)})
		return
	}

	go h.forward(ctx, c, doc, sub)
}

func (h *Hub) unsubscribe(c *client, doc string) {
	c.mu.Lock()
	cancel, ok := c.subs[doc]
	if ok {
		delete(c.subs, doc)
	}
	c.mu.Unlock()
	if ok {
		cancel()
	}
}

func (h *Hub) forward(ctx context.Context, c *client, doc string, sub *docstore.Subscription) {
	defer sub.Cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case u := <-sub.Updates():
			if u.Err != nil {
				h.deliver(c, Envelope{Type: "error", Doc: doc, Error: errorCode(u.Err)})
				continue
			}
			h.deliver(c, Envelope{Type: "doc", Doc: doc, Payload: u.Doc.Fields})
		}
	}
}

func (h *Hub) deliver(c *client, env Envelope) {
	b, err := encodeJSON(env)
	if err != nil {
		h.logger.Error("ws marshal failed", "error", err, "type", env.Type)
		return
	}
	select {
	case c.send <- b:
	default:
		h.logger.Warn("ws slow client dropped", "userID", c.userID)
		h.untrack(c)
		c.close()
	}
}

// allowedPath restricts subscriptions to shared event/chat state and
// the client's own user document.
func allowedPath(path, userID string) bool {
	switch {
	case strings.HasPrefix(path, "events/"):
		return len(path) > len("events/")
	case strings.HasPrefix(path, "chats/"):
		return len(path) > len("chats/")
	case path == "users/"+userID:
		return true
	default:
		return false
	}
}

func extractToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}

	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}

	return ""
}

func (h *Hub) writePump(c *client, remoteAddr string) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.logger.Info("ws write failed", "remoteAddr", remoteAddr, "error", err)
				c.close()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		}
	}
}

func (h *Hub) snapshotClients() []*client {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	return clients
}

func (h *Hub) track(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
}

func (h *Hub) untrack(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c)
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, docstore.ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, docstore.ErrUnavailable):
		return "UNAVAILABLE"
	case errors.Is(err, docstore.ErrPermissionDenied):
		return "PERMISSION_DENIED"
	default:
		return "INTERNAL"
	}
}

func encodeJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
