package ai

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	langdetect "github.com/cropsentinel/advisor/backend/internal/analysis/language"
	"github.com/cropsentinel/advisor/backend/internal/model/language"
	aiService "github.com/cropsentinel/advisor/backend/internal/service/ai"
	"github.com/cropsentinel/advisor/backend/pkg/utils"
)

const generationTimeout = 45 * time.Second

// Handler serves the text advisory endpoint and language detection.
type Handler struct {
	aiSvc    *aiService.Service
	detector *langdetect.Heuristic
	fallback string
	logger   *zap.Logger
}

// New creates the handler. aiSvc may be nil when no provider is configured.
func New(aiSvc *aiService.Service, detector *langdetect.Heuristic, logger *zap.Logger) *Handler {
	if detector == nil {
		detector = langdetect.NewHeuristic()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	fallback := aiService.DefaultPromptBook().Fallback
	if aiSvc != nil {
		fallback = aiSvc.Fallback()
	}
	return &Handler{aiSvc: aiSvc, detector: detector, fallback: fallback, logger: logger.Named("ai-http")}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/ai/respond", h.handleRespond)
	r.Post("/language/detect", h.handleDetect)
}

type respondRequest struct {
	Message  string `json:"message" validate:"required"`
	Language string `json:"language"`
}

type respondResponse struct {
	AIResponse string `json:"aiResponse"`
	Error      string `json:"error,omitempty"`
}

func (h *Handler) handleRespond(w http.ResponseWriter, r *http.Request) {
	var payload respondRequest
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if h.aiSvc == nil {
		utils.RespondJSON(w, http.StatusServiceUnavailable, respondResponse{
			AIResponse: h.fallback,
			Error:      "ai provider not configured",
		})
		return
	}

	code := language.Parse(payload.Language)
	ctx, cancel := context.WithTimeout(r.Context(), generationTimeout)
	defer cancel()

	text, err := h.aiSvc.Respond(ctx, payload.Message, code, aiService.ChatChannel())
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, aiService.ErrEmptyResponse) {
			h.logger.Warn("empty generation", zap.String("language", code.String()))
		} else {
			h.logger.Error("generation failed", zap.String("language", code.String()), zap.Error(err))
		}
		utils.RespondJSON(w, status, respondResponse{AIResponse: h.fallback})
		return
	}

	utils.RespondJSON(w, http.StatusOK, respondResponse{AIResponse: text})
}

type detectRequest struct {
	Text string `json:"text"`
}

type detectResponse struct {
	Language         language.Code     `json:"language"`
	NativeName       string            `json:"nativeName"`
	Branch           langdetect.Branch `json:"branch"`
	OromoTokens      int               `json:"oromoTokens"`
	OromoPatterns    int               `json:"oromoPatterns"`
	TigrinyaShadowed bool              `json:"tigrinyaShadowed"`
}

func (h *Handler) handleDetect(w http.ResponseWriter, r *http.Request) {
	var payload detectRequest
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	result := h.detector.Analyze(payload.Text)
	utils.RespondJSON(w, http.StatusOK, detectResponse{
		Language:         result.Language,
		NativeName:       result.Language.NativeName(),
		Branch:           result.Branch,
		OromoTokens:      result.OromoTokens,
		OromoPatterns:    result.OromoPatterns,
		TigrinyaShadowed: result.TigrinyaShadowed,
	})
}
