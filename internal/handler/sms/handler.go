package sms

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	smsModel "github.com/cropsentinel/advisor/backend/internal/model/sms"
	smsService "github.com/cropsentinel/advisor/backend/internal/service/sms"
	"github.com/cropsentinel/advisor/backend/pkg/utils"
)

const keepAliveInterval = 15 * time.Second

// Handler serves the SMS dashboard.
type Handler struct {
	inbox  *smsService.Inbox
	logger *zap.Logger
}

func New(inbox *smsService.Inbox, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{inbox: inbox, logger: logger.Named("sms-http")}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/sms", func(r chi.Router) {
		r.Get("/messages", h.handleList)
		r.Post("/messages/{sid}/respond", h.handleRespond)
		r.Post("/refresh", h.handleRefresh)
		r.Get("/stream", h.handleStream)
		r.Get("/debug", h.handleDebug)
	})
}

type inboxResponse struct {
	Messages []smsModel.Message `json:"messages"`
	Counts   smsModel.Counts    `json:"counts"`
}

func newInboxResponse(messages []smsModel.Message) inboxResponse {
	return inboxResponse{Messages: messages, Counts: smsModel.Tally(messages)}
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, newInboxResponse(h.inbox.Messages()))
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, newInboxResponse(h.inbox.Refresh(r.Context())))
}

func (h *Handler) handleRespond(w http.ResponseWriter, r *http.Request) {
	sid := chi.URLParam(r, "sid")

	msg, err := h.inbox.GenerateResponse(r.Context(), sid)
	if err != nil {
		if errors.Is(err, smsService.ErrMessageNotFound) {
			utils.RespondError(w, http.StatusNotFound, err.Error())
			return
		}
		h.logger.Error("generate sms response", zap.String("sid", sid), zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	status := http.StatusOK
	if msg.Status == smsModel.StatusFailed {
		status = http.StatusBadGateway
	}
	utils.RespondJSON(w, status, msg)
}

func (h *Handler) handleDebug(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.inbox.Diagnostics(r.Context()))
}

// handleStream pushes the inbox snapshot on connect and after every change.
func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	updates, cancel := h.inbox.Subscribe()
	defer cancel()

	utils.SetupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)
	if err := utils.SendSSEEvent(w, flusher, "inbox", newInboxResponse(h.inbox.Messages())); err != nil {
		return
	}

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case snapshot, open := <-updates:
			if !open {
				return
			}
			if err := utils.SendSSEEvent(w, flusher, "inbox", newInboxResponse(snapshot)); err != nil {
				return
			}
		case <-ticker.C:
			if err := utils.SendSSEComment(w, flusher, "keep-alive"); err != nil {
				return
			}
		}
	}
}
