package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	langdetect "github.com/cropsentinel/advisor/backend/internal/analysis/language"
	"github.com/cropsentinel/advisor/backend/internal/handler/account"
	aiHandler "github.com/cropsentinel/advisor/backend/internal/handler/ai"
	"github.com/cropsentinel/advisor/backend/internal/handler/chat"
	i18nHandler "github.com/cropsentinel/advisor/backend/internal/handler/i18n"
	smsHandler "github.com/cropsentinel/advisor/backend/internal/handler/sms"
	"github.com/cropsentinel/advisor/backend/internal/i18n"
	middlewarePkg "github.com/cropsentinel/advisor/backend/internal/middleware"
	aiService "github.com/cropsentinel/advisor/backend/internal/service/ai"
	chatService "github.com/cropsentinel/advisor/backend/internal/service/chat"
	smsService "github.com/cropsentinel/advisor/backend/internal/service/sms"
	"github.com/cropsentinel/advisor/backend/internal/session"
	"github.com/cropsentinel/advisor/backend/internal/store"
	"github.com/cropsentinel/advisor/backend/pkg/utils"
)

// Dependencies are the services the HTTP layer serves. AI and Inbox may be nil.
type Dependencies struct {
	AI          *aiService.Service
	Detector    *langdetect.Heuristic
	Chat        *chatService.Service
	Inbox       *smsService.Inbox
	Backend     account.Backend
	Sessions    *session.Decoder
	Preferences store.PreferenceStore
	Catalog     *i18n.Catalog
	Logger      *zap.Logger
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Dependencies) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
			"status": "ok",
			"ai":     deps.AI != nil,
			"sms":    deps.Inbox != nil,
		})
	})

	r.Route("/api", func(api chi.Router) {
		aiHandler.New(deps.AI, deps.Detector, logger).RegisterRoutes(api)
		chat.New(deps.Chat, logger).RegisterRoutes(api)
		i18nHandler.New(deps.Catalog).RegisterRoutes(api)

		if deps.Backend != nil {
			account.New(deps.Backend, deps.Sessions, deps.Preferences, logger).RegisterRoutes(api)
		}

		if deps.Inbox != nil {
			smsHandler.New(deps.Inbox, logger).RegisterRoutes(api)
		} else {
			api.HandleFunc("/sms/*", func(w http.ResponseWriter, _ *http.Request) {
				utils.RespondError(w, http.StatusServiceUnavailable, "sms proxy not configured")
			})
		}
	})

	return r
}
