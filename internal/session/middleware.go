package session

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/cropsentinel/advisor/backend/internal/model/language"
	"github.com/cropsentinel/advisor/backend/internal/store"
	"github.com/cropsentinel/advisor/backend/pkg/utils"
)

var (
	errMissingAuthHeader = errors.New("authorization header missing")
	errInvalidAuthHeader = errors.New("authorization header is malformed")
)

// LanguageLookup resolves a stored language preference.
type LanguageLookup interface {
	GetLanguage(ctx context.Context, userID string) (language.Code, error)
}

// Middleware requires a bearer token and puts the decoded Session in the
// request context. The session language comes from the stored preference,
// then Accept-Language.
func Middleware(decoder *Decoder, prefs LanguageLookup, logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := tokenFromRequest(r)
			if err != nil {
				utils.RespondError(w, http.StatusUnauthorized, err.Error())
				return
			}

			s, err := decoder.FromToken(token)
			if err != nil {
				logger.Debug("rejecting session token", zap.Error(err))
				utils.RespondError(w, http.StatusUnauthorized, ErrInvalidToken.Error())
				return
			}

			s.Language = resolveLanguage(r, prefs, s.UserID, logger)
			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), s)))
		})
	}
}

func resolveLanguage(r *http.Request, prefs LanguageLookup, userID string, logger *zap.Logger) language.Code {
	if prefs != nil {
		code, err := prefs.GetLanguage(r.Context(), userID)
		switch {
		case err == nil && code.Valid():
			return code
		case err != nil && !errors.Is(err, store.ErrNotFound):
			logger.Warn("load language preference", zap.String("user", userID), zap.Error(err))
		}
	}
	if header := r.Header.Get("Accept-Language"); header != "" {
		first := strings.TrimSpace(strings.SplitN(header, ",", 2)[0])
		first = strings.SplitN(first, ";", 2)[0]
		return language.Parse(first)
	}
	return language.Default
}

func tokenFromRequest(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", errMissingAuthHeader
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", errInvalidAuthHeader
	}

	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errInvalidAuthHeader
	}
	return token, nil
}
