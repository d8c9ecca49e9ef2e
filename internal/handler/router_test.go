package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cropsentinel/advisor/backend/internal/client/advisor"
	"github.com/cropsentinel/advisor/backend/internal/client/backend"
	"github.com/cropsentinel/advisor/backend/internal/model/language"
	chatService "github.com/cropsentinel/advisor/backend/internal/service/chat"
	"github.com/cropsentinel/advisor/backend/internal/session"
	"github.com/cropsentinel/advisor/backend/internal/store"
)

type nopResponder struct{}

func (nopResponder) Respond(_ context.Context, _ string, code language.Code) advisor.Reply {
	return advisor.Reply{Text: "ok", Language: code, Outcome: advisor.Generated}
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	chatSvc := chatService.NewService(nil, nopResponder{}, chatService.Options{})
	t.Cleanup(func() { _ = chatSvc.Shutdown(context.Background()) })

	return NewRouter(Dependencies{
		Chat:        chatSvc,
		Backend:     backend.NewClient("http://127.0.0.1:0", 0),
		Sessions:    session.NewDecoder(""),
		Preferences: store.NewMemory(),
	})
}

func TestRoutes(t *testing.T) {
	r := newTestRouter(t)

	cases := []struct {
		method, path string
		want         int
	}{
		{http.MethodGet, "/healthz", http.StatusOK},
		{http.MethodPost, "/api/conversations", http.StatusCreated},
		{http.MethodGet, "/api/i18n/am", http.StatusOK},
		{http.MethodGet, "/api/me", http.StatusUnauthorized},
		{http.MethodGet, "/api/sms/messages", http.StatusServiceUnavailable},
		{http.MethodDelete, "/api/auth/session", http.StatusNoContent},
	}
	for _, tc := range cases {
		resp := httptest.NewRecorder()
		r.ServeHTTP(resp, httptest.NewRequest(tc.method, tc.path, nil))
		if resp.Code != tc.want {
			t.Fatalf("%s %s: expected %d, got %d", tc.method, tc.path, tc.want, resp.Code)
		}
	}
}

func TestAIRespondWithoutProvider(t *testing.T) {
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/ai/respond", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty body, got %d", resp.Code)
	}
}
