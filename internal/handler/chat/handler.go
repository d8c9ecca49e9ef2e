package chat

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	chatModel "github.com/cropsentinel/advisor/backend/internal/model/chat"
	chatService "github.com/cropsentinel/advisor/backend/internal/service/chat"
	"github.com/cropsentinel/advisor/backend/pkg/utils"
)

const keepAliveInterval = 15 * time.Second

// Handler exposes conversation logs over REST, SSE and websocket.
type Handler struct {
	chatSvc  *chatService.Service
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

// New creates a conversation handler.
func New(chatSvc *chatService.Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		chatSvc: chatSvc,
		logger:  logger.Named("chat-http"),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes mounts the conversation routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/conversations", func(r chi.Router) {
		r.Post("/", h.handleOpen)
		r.Route("/{conversationID}", func(r chi.Router) {
			r.Delete("/", h.handleClose)
			r.Get("/messages", h.handleTranscript)
			r.Post("/messages", h.handleSubmit)
			r.Get("/events", h.handleEvents)
			r.Get("/ws", h.handleWebSocket)
		})
	})
}

type submitRequest struct {
	Content string `json:"content" validate:"required"`
}

type transcriptResponse struct {
	ConversationID string              `json:"conversationId"`
	Typing         bool                `json:"typing"`
	Messages       []chatModel.Message `json:"messages"`
}

func (h *Handler) handleOpen(w http.ResponseWriter, r *http.Request) {
	conv, err := h.chatSvc.Open(r.Context())
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	messages, err := h.chatSvc.Transcript(r.Context(), conv.ID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusCreated, map[string]interface{}{
		"id":        conv.ID,
		"createdAt": conv.CreatedAt,
		"messages":  messages,
	})
}

func (h *Handler) handleTranscript(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "conversationID")

	messages, err := h.chatSvc.Transcript(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	typing, err := h.chatSvc.Typing(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, transcriptResponse{
		ConversationID: id,
		Typing:         typing,
		Messages:       messages,
	})
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "conversationID")

	var payload submitRequest
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	msg, err := h.chatSvc.Submit(r.Context(), id, payload.Content)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusAccepted, msg)
}

func (h *Handler) handleClose(w http.ResponseWriter, r *http.Request) {
	if err := h.chatSvc.Close(r.Context(), chi.URLParam(r, "conversationID")); err != nil {
		h.respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleEvents streams the transcript followed by live message and typing events.
func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "conversationID")

	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	messages, events, cancel, err := h.chatSvc.Follow(id)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	defer cancel()

	utils.SetupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)
	if err := utils.SendSSEEvent(w, flusher, "transcript", messages); err != nil {
		return
	}

	ctx := r.Context()
	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.logger.Debug("event stream closed by client", zap.String("conversation", id))
			return
		case evt, open := <-events:
			if !open {
				_ = utils.SendSSEEvent(w, flusher, "closed", map[string]string{"conversationId": id})
				return
			}
			if err := utils.SendSSEEvent(w, flusher, string(evt.Type), evt); err != nil {
				return
			}
		case <-ticker.C:
			if err := utils.SendSSEComment(w, flusher, "keep-alive"); err != nil {
				return
			}
		}
	}
}

func (h *Handler) respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, chatService.ErrConversationNotFound):
		utils.RespondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, chatService.ErrEmptyMessage):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error("conversation request failed", zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "internal error")
	}
}
