package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/cropsentinel/advisor/backend/internal/model/language"
)

var (
	ErrInvalidToken = errors.New("invalid session token")
	ErrNoSession    = errors.New("no session in context")
)

// Session is the signed-in farmer, carried explicitly through request handling.
type Session struct {
	Token     string
	UserID    string
	Username  string
	Language  language.Code
	ExpiresAt time.Time
}

// Decoder turns backend-issued tokens into sessions. Without a secret the
// signature is not checked and the backend remains the authority.
type Decoder struct {
	secret []byte
	parser *jwt.Parser
}

func NewDecoder(secret string) *Decoder {
	d := &Decoder{
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
			jwt.WithLeeway(5*time.Second),
		),
	}
	if secret != "" {
		d.secret = []byte(secret)
	}
	return d
}

// Verifies reports whether signatures are checked.
func (d *Decoder) Verifies() bool {
	return len(d.secret) > 0
}

// FromToken decodes the id and username claims.
func (d *Decoder) FromToken(token string) (Session, error) {
	if token == "" {
		return Session{}, ErrInvalidToken
	}

	claims := jwt.MapClaims{}
	if d.Verifies() {
		if _, err := d.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
			return d.secret, nil
		}); err != nil {
			return Session{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
		}
	} else {
		if _, _, err := d.parser.ParseUnverified(token, claims); err != nil {
			return Session{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
		}
	}

	userID := claimString(claims["id"])
	if userID == "" {
		return Session{}, fmt.Errorf("%w: missing user id", ErrInvalidToken)
	}

	s := Session{
		Token:    token,
		UserID:   userID,
		Username: claimString(claims["username"]),
		Language: language.Default,
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		s.ExpiresAt = exp.Time
		if !d.Verifies() && time.Now().After(exp.Time) {
			return Session{}, fmt.Errorf("%w: token expired", ErrInvalidToken)
		}
	}
	return s, nil
}

func claimString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return ""
	}
}

type ctxKey struct{}

// WithSession stores s in ctx.
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext returns the session placed by Middleware.
func FromContext(ctx context.Context) (Session, error) {
	s, ok := ctx.Value(ctxKey{}).(Session)
	if !ok {
		return Session{}, ErrNoSession
	}
	return s, nil
}
