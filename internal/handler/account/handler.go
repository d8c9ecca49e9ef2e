package account

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/cropsentinel/advisor/backend/internal/client/backend"
	"github.com/cropsentinel/advisor/backend/internal/model/language"
	"github.com/cropsentinel/advisor/backend/internal/session"
	"github.com/cropsentinel/advisor/backend/internal/store"
	"github.com/cropsentinel/advisor/backend/pkg/utils"
)

const maxSignupBytes = 10 << 20

// Backend is the farmer API surface used by the account routes.
type Backend interface {
	Login(ctx context.Context, identifier, password string) (string, error)
	GetUser(ctx context.Context, token, id string) (backend.User, error)
	CreateUser(ctx context.Context, form backend.SignupForm) error
	ListChallenges(ctx context.Context, token string) ([]backend.Challenge, error)
	ListReports(ctx context.Context, token string) ([]backend.Report, error)
}

// Handler serves sign-in, profile, feed and preference routes.
type Handler struct {
	backend Backend
	decoder *session.Decoder
	prefs   store.PreferenceStore
	logger  *zap.Logger
}

func New(b Backend, decoder *session.Decoder, prefs store.PreferenceStore, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{backend: b, decoder: decoder, prefs: prefs, logger: logger.Named("account")}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/auth/login", h.handleLogin)
	r.Post("/auth/signup", h.handleSignup)
	r.Delete("/auth/session", h.handleSignOut)

	r.Group(func(r chi.Router) {
		r.Use(session.Middleware(h.decoder, h.prefs, h.logger))
		r.Get("/me", h.handleMe)
		r.Get("/feed", h.handleFeed)
		r.Get("/reports", h.handleReports)
		r.Get("/preferences/language", h.handleGetLanguage)
		r.Put("/preferences/language", h.handleSetLanguage)
	})
}

type loginRequest struct {
	Identifier string `json:"identifier" validate:"required"`
	Password   string `json:"password" validate:"required"`
}

type loginResponse struct {
	Token    string `json:"token"`
	UserID   string `json:"userId"`
	Username string `json:"username,omitempty"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var payload loginRequest
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	token, err := h.backend.Login(r.Context(), payload.Identifier, payload.Password)
	if err != nil {
		h.respondBackendError(w, "login", err)
		return
	}

	s, err := h.decoder.FromToken(token)
	if err != nil {
		h.logger.Warn("backend issued an unusable token", zap.Error(err))
		utils.RespondError(w, http.StatusBadGateway, "invalid token received")
		return
	}

	utils.RespondJSON(w, http.StatusOK, loginResponse{Token: token, UserID: s.UserID, Username: s.Username})
}

func (h *Handler) handleSignup(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxSignupBytes)
	if err := r.ParseMultipartForm(maxSignupBytes); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	form := backend.SignupForm{
		Name:     r.FormValue("name"),
		Email:    r.FormValue("email"),
		Phone:    r.FormValue("phone"),
		Password: r.FormValue("password"),
		Location: r.FormValue("location"),
	}
	if err := utils.Validate(form.Normalized()); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	file, header, err := r.FormFile("profilePic")
	switch {
	case err == nil:
		defer file.Close()
		form.ProfilePic = file
		form.ProfilePicName = header.Filename
	case !errors.Is(err, http.ErrMissingFile):
		utils.RespondError(w, http.StatusBadRequest, "invalid profile picture")
		return
	}

	if err := h.backend.CreateUser(r.Context(), form); err != nil {
		h.respondBackendError(w, "signup", err)
		return
	}

	utils.RespondJSON(w, http.StatusCreated, map[string]string{"status": "created"})
}

// Sessions are bearer tokens held by the client, so sign-out has no server state.
func (h *Handler) handleSignOut(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

type meResponse struct {
	User     backend.User  `json:"user"`
	Language language.Code `json:"language"`
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	s, err := session.FromContext(r.Context())
	if err != nil {
		utils.RespondError(w, http.StatusUnauthorized, err.Error())
		return
	}

	user, err := h.backend.GetUser(r.Context(), s.Token, s.UserID)
	if err != nil {
		h.respondBackendError(w, "load profile", err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, meResponse{User: user, Language: s.Language})
}

func (h *Handler) handleFeed(w http.ResponseWriter, r *http.Request) {
	s, err := session.FromContext(r.Context())
	if err != nil {
		utils.RespondError(w, http.StatusUnauthorized, err.Error())
		return
	}

	posts, err := h.backend.ListChallenges(r.Context(), s.Token)
	if err != nil {
		h.logger.Error("fetch feed", zap.String("user", s.UserID), zap.Error(err))
		posts = []backend.Challenge{}
	}
	utils.RespondJSON(w, http.StatusOK, map[string]interface{}{"posts": posts})
}

func (h *Handler) handleReports(w http.ResponseWriter, r *http.Request) {
	s, err := session.FromContext(r.Context())
	if err != nil {
		utils.RespondError(w, http.StatusUnauthorized, err.Error())
		return
	}

	reports, err := h.backend.ListReports(r.Context(), s.Token)
	if err != nil {
		h.logger.Error("fetch reports", zap.String("user", s.UserID), zap.Error(err))
		reports = []backend.Report{}
	}
	utils.RespondJSON(w, http.StatusOK, map[string]interface{}{"reports": reports})
}

type languagePreference struct {
	Language   language.Code `json:"language"`
	NativeName string        `json:"nativeName"`
}

func (h *Handler) handleGetLanguage(w http.ResponseWriter, r *http.Request) {
	s, err := session.FromContext(r.Context())
	if err != nil {
		utils.RespondError(w, http.StatusUnauthorized, err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusOK, languagePreference{Language: s.Language, NativeName: s.Language.NativeName()})
}

type setLanguageRequest struct {
	Language string `json:"language" validate:"required"`
}

func (h *Handler) handleSetLanguage(w http.ResponseWriter, r *http.Request) {
	s, err := session.FromContext(r.Context())
	if err != nil {
		utils.RespondError(w, http.StatusUnauthorized, err.Error())
		return
	}

	// Unverified tokens carry whatever id the caller wrote into them.
	if !h.decoder.Verifies() {
		utils.RespondError(w, http.StatusForbidden, "language preference changes require JWT_SECRET")
		return
	}

	var payload setLanguageRequest
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	code, ok := language.Lookup(payload.Language)
	if !ok {
		utils.RespondError(w, http.StatusBadRequest, "unsupported language "+payload.Language)
		return
	}

	if err := h.prefs.SetLanguage(r.Context(), s.UserID, code); err != nil {
		h.logger.Error("save language preference", zap.String("user", s.UserID), zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "failed to save preference")
		return
	}

	utils.RespondJSON(w, http.StatusOK, languagePreference{Language: code, NativeName: code.NativeName()})
}

func (h *Handler) respondBackendError(w http.ResponseWriter, action string, err error) {
	var statusErr *backend.StatusError
	switch {
	case errors.Is(err, backend.ErrUnauthorized):
		utils.RespondError(w, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, backend.ErrNotFound):
		utils.RespondError(w, http.StatusNotFound, "not found")
	case errors.Is(err, backend.ErrEmptyToken):
		utils.RespondError(w, http.StatusBadGateway, "invalid token received")
	case errors.As(err, &statusErr) && statusErr.StatusCode < http.StatusInternalServerError:
		utils.RespondError(w, statusErr.StatusCode, action+" rejected")
	default:
		h.logger.Error("backend call failed", zap.String("action", action), zap.Error(err))
		utils.RespondError(w, http.StatusBadGateway, action+" failed")
	}
}
