package store

import (
	"context"
	"errors"

	"github.com/cropsentinel/advisor/backend/internal/model/language"
	"github.com/cropsentinel/advisor/backend/internal/model/sms"
)

var ErrNotFound = errors.New("record not found")

// ResponseStore is the ledger of SMS replies keyed by provider SID.
type ResponseStore interface {
	GetResponse(ctx context.Context, sid string) (sms.ResponseRecord, error)
	PutResponse(ctx context.Context, record sms.ResponseRecord) error
	ListResponses(ctx context.Context) ([]sms.ResponseRecord, error)
}

// PreferenceStore keeps each user's chosen language.
type PreferenceStore interface {
	GetLanguage(ctx context.Context, userID string) (language.Code, error)
	SetLanguage(ctx context.Context, userID string, code language.Code) error
}
