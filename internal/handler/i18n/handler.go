package i18n

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cropsentinel/advisor/backend/internal/i18n"
	"github.com/cropsentinel/advisor/backend/internal/model/language"
	"github.com/cropsentinel/advisor/backend/pkg/utils"
)

type Handler struct {
	catalog *i18n.Catalog
}

func New(catalog *i18n.Catalog) *Handler {
	if catalog == nil {
		catalog = i18n.Default()
	}
	return &Handler{catalog: catalog}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/i18n", h.handleLanguages)
	r.Get("/i18n/{lang}", h.handleDictionary)
}

type languageInfo struct {
	Code        language.Code `json:"code"`
	EnglishName string        `json:"englishName"`
	NativeName  string        `json:"nativeName"`
}

func (h *Handler) handleLanguages(w http.ResponseWriter, _ *http.Request) {
	all := language.All()
	out := make([]languageInfo, 0, len(all))
	for _, code := range all {
		out = append(out, languageInfo{Code: code, EnglishName: code.EnglishName(), NativeName: code.NativeName()})
	}
	utils.RespondJSON(w, http.StatusOK, map[string]interface{}{"languages": out})
}

func (h *Handler) handleDictionary(w http.ResponseWriter, r *http.Request) {
	code := language.Parse(chi.URLParam(r, "lang"))
	utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"language": code,
		"messages": h.catalog.Dictionary(code),
	})
}
