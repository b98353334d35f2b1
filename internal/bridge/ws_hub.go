package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"

	"landform/internal/protocol"
)

// WSHub fans state events out to every connected renderer and answers
// request messages through handle.
type WSHub struct {
	mu      sync.RWMutex
	clients map[*websocket.Conn]struct{}
	seq     atomic.Uint64
	logger  *slog.Logger

	handle  func(context.Context, protocol.Message) protocol.Message
	initial func() any
}

func NewWSHub(logger *slog.Logger, handle func(context.Context, protocol.Message) protocol.Message, initial func() any) *WSHub {
	return &WSHub{
		clients: map[*websocket.Conn]struct{}{},
		logger:  logger,
		handle:  handle,
		initial: initial,
	}
}

func (h *WSHub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket accept failed", "err", err)
		return
	}
	h.mu.Lock()
	h.clients[conn] = struct{}{}
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
		_ = conn.Close(websocket.StatusNormalClosure, "")
	}()

	ctx := r.Context()
	if h.initial != nil {
		h.write(conn, h.event(protocol.OpState, h.initial()))
	}
	for {
		_, raw, err := conn.Read(ctx)
		if err != nil {
			return
		}
		var msg protocol.Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			h.write(conn, protocol.ReplyError(protocol.Message{Type: protocol.TypeRequest}, "BAD_MESSAGE", err.Error()))
			continue
		}
		if msg.Type != protocol.TypeRequest || h.handle == nil {
			continue
		}
		h.write(conn, h.handle(ctx, msg))
	}
}

func (h *WSHub) Publish(op string, payload any) {
	evt := h.event(op, payload)

	h.mu.RLock()
	clients := make([]*websocket.Conn, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		h.write(c, evt)
	}
}

func (h *WSHub) event(op string, payload any) protocol.Message {
	return protocol.Message{
		ID:      fmt.Sprintf("evt_%d", h.seq.Add(1)),
		Type:    protocol.TypeEvent,
		Op:      op,
		Payload: protocol.MustRaw(payload),
	}
}

func (h *WSHub) write(c *websocket.Conn, msg protocol.Message) {
	raw, err := json.Marshal(msg)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	if err := c.Write(ctx, websocket.MessageText, raw); err != nil {
		h.logger.Debug("websocket write failed", "op", msg.Op, "err", err)
	}
}
