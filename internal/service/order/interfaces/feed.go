package interfaces

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"storefront/internal/pkg/logger"
	"storefront/internal/service/order/domain"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// OrderEvent 是推送给后台页面的消息。
type OrderEvent struct {
	Type  string        `json:"type"`
	Order *domain.Order `json:"order"`
}

// Hub 维护所有后台 WebSocket 连接并广播订单变化，实现 port.OrderEventPublisher。
// 推送尽力而为：客户端来不及消费时丢弃消息，不阻塞业务流程。
type Hub struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	lock       sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run 处理注册和注销，ctx 结束时关闭所有连接。
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case client := <-h.register:
			h.lock.Lock()
			h.clients[client.id] = client
			h.lock.Unlock()
			logger.Ctx(ctx).Info().Str("client", client.id).Msg("admin feed client registered")
		case client := <-h.unregister:
			h.remove(client)
			logger.Ctx(ctx).Info().Str("client", client.id).Msg("admin feed client unregistered")
		case <-ctx.Done():
			close(h.done)
			h.lock.Lock()
			for id, c := range h.clients {
				delete(h.clients, id)
				close(c.send)
			}
			h.lock.Unlock()
			return
		}
	}
}

func (h *Hub) remove(c *Client) {
	h.lock.Lock()
	defer h.lock.Unlock()
	if _, ok := h.clients[c.id]; ok {
		delete(h.clients, c.id)
		close(c.send)
	}
}

func (h *Hub) ClientCount() int {
	h.lock.RLock()
	defer h.lock.RUnlock()
	return len(h.clients)
}

func (h *Hub) PublishOrderChanged(ctx context.Context, order *domain.Order) {
	msg, err := json.Marshal(OrderEvent{Type: "order.changed", Order: order})
	if err != nil {
		logger.Ctx(ctx).Error().Err(err).Msg("failed to encode order event")
		return
	}

	h.lock.RLock()
	defer h.lock.RUnlock()
	for _, c := range h.clients {
		select {
		case c.send <- msg:
		default:
			logger.Ctx(ctx).Warn().Str("client", c.id).Msg("admin feed client too slow, dropping event")
		}
	}
}

// Client 是一个WebSocket连接的代表
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	id   string
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump 只处理心跳，读失败即注销。
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Ctx(r.Context()).Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := &Client{hub: h, conn: conn, send: make(chan []byte, sendBuffer), id: uuid.NewString()}
	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}
