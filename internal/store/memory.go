package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cropsentinel/advisor/backend/internal/model/language"
	"github.com/cropsentinel/advisor/backend/internal/model/sms"
)

// Memory is an in-process ResponseStore and PreferenceStore.
type Memory struct {
	mu          sync.RWMutex
	responses   map[string]sms.ResponseRecord
	preferences map[string]language.Code
}

func NewMemory() *Memory {
	return &Memory{
		responses:   make(map[string]sms.ResponseRecord),
		preferences: make(map[string]language.Code),
	}
}

func (m *Memory) GetResponse(_ context.Context, sid string) (sms.ResponseRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.responses[sid]
	if !ok {
		return sms.ResponseRecord{}, ErrNotFound
	}
	return rec, nil
}

func (m *Memory) PutResponse(_ context.Context, rec sms.ResponseRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	m.mu.Lock()
	m.responses[rec.SID] = rec
	m.mu.Unlock()
	return nil
}

func (m *Memory) ListResponses(_ context.Context) ([]sms.ResponseRecord, error) {
	m.mu.RLock()
	out := make([]sms.ResponseRecord, 0, len(m.responses))
	for _, rec := range m.responses {
		out = append(out, rec)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (m *Memory) GetLanguage(_ context.Context, userID string) (language.Code, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	code, ok := m.preferences[userID]
	if !ok {
		return "", ErrNotFound
	}
	return code, nil
}

func (m *Memory) SetLanguage(_ context.Context, userID string, code language.Code) error {
	m.mu.Lock()
	m.preferences[userID] = code
	m.mu.Unlock()
	return nil
}
