// Package notify доставляет всплывающие уведомления браузерной сессии:
// через WebSocket, если вкладка подключена, иначе через очередь, которую
// страница забирает при следующей отрисовке.
package notify

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/photocore/photoadmin/internal/cache"
	"github.com/photocore/photoadmin/internal/logger"
)

// Kind вид уведомления
type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
	KindInfo    Kind = "info"
)

// Toast одно уведомление
type Toast struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	Message   string    `json:"message"`
	Details   []string  `json:"details,omitempty"`
	Refresh   bool      `json:"refresh,omitempty"` // страницу нужно перечитать
	CreatedAt time.Time `json:"createdAt"`
}

// Success уведомление об успехе
func Success(msg string) Toast { return Toast{Kind: KindSuccess, Message: msg} }

// Error уведомление об ошибке
func Error(msg string, details ...string) Toast {
	return Toast{Kind: KindError, Message: msg, Details: details}
}

// Info информационное уведомление
func Info(msg string) Toast { return Toast{Kind: KindInfo, Message: msg} }

const (
	// сколько уведомлений хранить для сессии без подключения
	maxQueued = 20
	// очередь сессии, которая не вернулась за это время, выбрасывается
	defaultQueueTTL = time.Hour
)

// Hub хранит подключения и очереди уведомлений по сессиям
type Hub struct {
	mu       sync.RWMutex
	clients  map[string]map[*Client]bool
	queues   *cache.Cache[[]Toast]
	upgrader websocket.Upgrader
}

// NewHub создает хаб. Подключаться можно только со своего origin.
// Очередь сессии живет queueTTL после последнего уведомления.
func NewHub(queueTTL time.Duration) *Hub {
	if queueTTL <= 0 {
		queueTTL = defaultQueueTTL
	}
	return &Hub{
		clients: make(map[string]map[*Client]bool),
		queues: cache.New(cache.Config[[]Toast]{
			DefaultExpiration: queueTTL,
			CleanupInterval:   queueTTL / 4,
		}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// Push отправляет уведомление сессии
func (h *Hub) Push(sessionID string, t Toast) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	clients := h.clients[sessionID]
	if len(clients) == 0 {
		h.enqueueLocked(sessionID, t)
		return
	}

	msg := mustMarshal(t)
	for c := range clients {
		select {
		case c.send <- msg:
		default:
			// клиент не успевает читать
			h.removeLocked(c)
		}
	}
}

// Queue откладывает уведомление до следующей отрисовки страницы, даже если
// вкладка подключена. Нужно перед переходом на другую страницу.
func (h *Hub) Queue(sessionID string, t Toast) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.enqueueLocked(sessionID, t)
}

func (h *Hub) enqueueLocked(sessionID string, t Toast) {
	q, _ := h.queues.Get(sessionID)
	q = append(append([]Toast(nil), q...), t)
	if len(q) > maxQueued {
		q = q[len(q)-maxQueued:]
	}
	h.queues.Set(sessionID, q)
}

// Drain забирает накопленные уведомления сессии
func (h *Hub) Drain(sessionID string) []Toast {
	h.mu.Lock()
	defer h.mu.Unlock()
	q, _ := h.queues.Take(sessionID)
	return q
}

// Queued число сессий с неполученными уведомлениями
func (h *Hub) Queued() int {
	return h.queues.Count()
}

// Connected число подключенных вкладок сессии
func (h *Hub) Connected(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[sessionID])
}

// Forget удаляет очередь сессии
func (h *Hub) Forget(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.queues.Delete(sessionID)
}

// ServeWS подключает вкладку сессии. Накопленные уведомления отправляются сразу.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, sessionID string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.L.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &Client{
		hub:       h,
		conn:      conn,
		send:      make(chan []byte, 64),
		sessionID: sessionID,
	}
	h.register(c)

	go c.writePump()
	go c.readPump()
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[c.sessionID] == nil {
		h.clients[c.sessionID] = make(map[*Client]bool)
	}
	h.clients[c.sessionID][c] = true

	queued, _ := h.queues.Take(c.sessionID)
	for _, t := range queued {
		select {
		case c.send <- mustMarshal(t):
		default:
		}
	}

	logger.L.Debug("websocket connected",
		zap.String("session", c.sessionID),
		zap.Int("conns", len(h.clients[c.sessionID])))
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

func (h *Hub) removeLocked(c *Client) {
	clients, ok := h.clients[c.sessionID]
	if !ok || !clients[c] {
		return
	}
	delete(clients, c)
	close(c.send)
	if len(clients) == 0 {
		delete(h.clients, c.sessionID)
	}
}

// Close отключает все вкладки
func (h *Hub) Close() {
	h.queues.Stop()

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, clients := range h.clients {
		for c := range clients {
			h.removeLocked(c)
		}
	}
}

func mustMarshal(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		logger.L.Error("failed to marshal toast", zap.Error(err))
		return []byte("{}")
	}
	return b
}
