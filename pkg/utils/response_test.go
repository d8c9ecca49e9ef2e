package utils

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Message string `json:"message" validate:"required"`
}

func TestDecodeJSON(t *testing.T) {
	var got sample
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"message":"hi"}`))
	require.NoError(t, DecodeJSON(req, &got))
	assert.Equal(t, "hi", got.Message)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`))
	err := DecodeJSON(req, &sample{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Message")

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(``))
	require.EqualError(t, DecodeJSON(req, &sample{}), "request body is empty")
}

func TestRespondError(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondError(rec, http.StatusTeapot, "short and stout")
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"error":"short and stout"}`, rec.Body.String())
}

func TestSendSSEEvent(t *testing.T) {
	rec := httptest.NewRecorder()
	require.NoError(t, SendSSEEvent(rec, rec, "typing", map[string]bool{"typing": true}))
	assert.Equal(t, "event: typing\ndata: {\"typing\":true}\n\n", rec.Body.String())
	assert.True(t, rec.Flushed)
}
