package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cropsentinel/advisor/backend/internal/model/language"
	"github.com/cropsentinel/advisor/backend/internal/model/sms"
)

type combined interface {
	ResponseStore
	PreferenceStore
}

func backends(t *testing.T) map[string]combined {
	t.Helper()
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "data", "sentinel.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return map[string]combined{
		"sqlite": db,
		"memory": NewMemory(),
	}
}

func TestResponseLedger(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := s.GetResponse(ctx, "SM1")
			require.ErrorIs(t, err, ErrNotFound)

			first := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
			require.NoError(t, s.PutResponse(ctx, sms.ResponseRecord{
				SID: "SM1", To: "+251911000000", Language: language.Amharic,
				Status: sms.StatusFailed, Error: "send failed", CreatedAt: first,
			}))
			require.NoError(t, s.PutResponse(ctx, sms.ResponseRecord{
				SID: "SM1", To: "+251911000000", Language: language.Amharic,
				Status: sms.StatusResponded, Response: "ቅጠሎቹን ያስወግዱ", CreatedAt: first.Add(time.Minute),
			}))
			require.NoError(t, s.PutResponse(ctx, sms.ResponseRecord{
				SID: "SM2", To: "+251922000000", Language: language.English,
				Status: sms.StatusResponded, Response: "ok", CreatedAt: first.Add(time.Hour),
			}))

			got, err := s.GetResponse(ctx, "SM1")
			require.NoError(t, err)
			assert.Equal(t, sms.StatusResponded, got.Status)
			assert.Equal(t, "ቅጠሎቹን ያስወግዱ", got.Response)
			assert.Empty(t, got.Error)
			assert.Equal(t, language.Amharic, got.Language)
			assert.True(t, got.CreatedAt.Equal(first.Add(time.Minute)))

			all, err := s.ListResponses(ctx)
			require.NoError(t, err)
			require.Len(t, all, 2)
			assert.Equal(t, "SM2", all[0].SID)
		})
	}
}

func TestLanguagePreferences(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := s.GetLanguage(ctx, "user-1")
			require.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, s.SetLanguage(ctx, "user-1", language.Oromo))
			require.NoError(t, s.SetLanguage(ctx, "user-1", language.Tigrinya))

			got, err := s.GetLanguage(ctx, "user-1")
			require.NoError(t, err)
			assert.Equal(t, language.Tigrinya, got)
		})
	}
}
