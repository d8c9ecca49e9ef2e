package chat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	chatService "github.com/cropsentinel/advisor/backend/internal/service/chat"
)

const (
	readTimeout  = 60 * time.Second
	pingInterval = 54 * time.Second
	writeTimeout = 10 * time.Second
)

type inboundMessage struct {
	Type           string          `json:"type"`
	ConversationID string          `json:"conversationId"`
	Data           json.RawMessage `json:"data"`
}

type textMessage struct {
	Text string `json:"text"`
}

type outgoingMessage struct {
	Type           string      `json:"type"`
	ConversationID string      `json:"conversationId,omitempty"`
	Data           interface{} `json:"data,omitempty"`
	Timestamp      int64       `json:"timestamp"`
}

// wsConn serialises writes; gorilla allows one concurrent writer.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsConn) writeJSON(msg outgoingMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(msg)
}

func (c *wsConn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
}

func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "conversationID")

	messages, events, unsubscribe, err := h.chatSvc.Follow(id)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	defer unsubscribe()

	raw, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer raw.Close()
	conn := &wsConn{conn: raw}

	h.logger.Debug("websocket connected", zap.String("conversation", id))

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	_ = raw.SetReadDeadline(time.Now().Add(readTimeout))
	raw.SetPongHandler(func(string) error {
		return raw.SetReadDeadline(time.Now().Add(readTimeout))
	})

	if err := conn.writeJSON(outgoingMessage{Type: "transcript", ConversationID: id, Data: messages, Timestamp: time.Now().Unix()}); err != nil {
		return
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		h.pingLoop(ctx, conn)
	}()
	go func() {
		defer wg.Done()
		h.forwardEvents(ctx, conn, id, events)
		// Unblocks readLoop once the conversation is gone.
		_ = raw.Close()
	}()

	h.readLoop(ctx, conn, id)
	cancel()
	wg.Wait()
}

func (h *Handler) readLoop(ctx context.Context, conn *wsConn, id string) {
	for {
		var msg inboundMessage
		if err := conn.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("websocket read error", zap.String("conversation", id), zap.Error(err))
			}
			return
		}
		if ctx.Err() != nil {
			return
		}
		_ = conn.conn.SetReadDeadline(time.Now().Add(readTimeout))

		if msg.ConversationID != "" && msg.ConversationID != id {
			h.sendError(conn, id, "conversation mismatch")
			continue
		}

		switch msg.Type {
		case "text":
			var text textMessage
			if err := json.Unmarshal(msg.Data, &text); err != nil {
				h.sendError(conn, id, "invalid text payload")
				continue
			}
			if _, err := h.chatSvc.Submit(ctx, id, text.Text); err != nil {
				h.sendError(conn, id, err.Error())
				if errors.Is(err, chatService.ErrConversationNotFound) {
					return
				}
			}
		default:
			h.sendError(conn, id, "unsupported message type: "+msg.Type)
		}
	}
}

func (h *Handler) forwardEvents(ctx context.Context, conn *wsConn, id string, events <-chan chatService.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, open := <-events:
			if !open {
				_ = conn.writeJSON(outgoingMessage{Type: "closed", ConversationID: id, Timestamp: time.Now().Unix()})
				return
			}
			if err := conn.writeJSON(outgoingMessage{Type: string(evt.Type), ConversationID: id, Data: evt, Timestamp: time.Now().Unix()}); err != nil {
				h.logger.Debug("websocket write failed", zap.String("conversation", id), zap.Error(err))
				return
			}
		}
	}
}

func (h *Handler) sendError(conn *wsConn, id, message string) {
	msg := outgoingMessage{
		Type:           "error",
		ConversationID: id,
		Data:           map[string]string{"message": message},
		Timestamp:      time.Now().Unix(),
	}
	if err := conn.writeJSON(msg); err != nil {
		h.logger.Debug("write websocket error failed", zap.Error(err))
	}
}

func (h *Handler) pingLoop(ctx context.Context, conn *wsConn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.ping(); err != nil {
				return
			}
		}
	}
}
