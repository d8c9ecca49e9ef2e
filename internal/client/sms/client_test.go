package sms

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/messages", r.URL.Path)
		_, _ = w.Write([]byte(`{"success":true,"messages":[
			{"sid":"SM1","from":"+251911000000","body":"akkam","dateCreated":"2025-03-01T08:00:00Z","hasResponse":false},
			{"sid":"SM2","from":"+251922000000","body":"hello","dateCreated":"2025-03-01T09:00:00Z","hasResponse":true,"aiResponse":"hi"}
		]}`))
	}))
	defer srv.Close()

	msgs, err := NewClient(srv.URL+"/", time.Second).List(context.Background())
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "SM1", msgs[0].SID)
	assert.True(t, msgs[1].HasResponse)
	assert.Equal(t, "hi", msgs[1].AIResponse)
	assert.Equal(t, 9, msgs[1].DateCreated.Hour())
}

func TestListProxyFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"success":false,"error":"twilio unavailable"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second).List(context.Background())
	require.ErrorIs(t, err, ErrProxy)
	assert.Contains(t, err.Error(), "twilio unavailable")
}

func TestSend(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/send", r.URL.Path)
		var body sendRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "+251911000000", body.To)
		assert.Equal(t, "Rotate your crops.", body.Body)
		_, _ = w.Write([]byte(`{"success":true,"sid":"SMout"}`))
	}))
	defer srv.Close()

	sid, err := NewClient(srv.URL, time.Second).Send(context.Background(), "+251911000000", "Rotate your crops.")
	require.NoError(t, err)
	assert.Equal(t, "SMout", sid)
}

func TestSendRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"success":false,"error":"invalid number"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second).Send(context.Background(), "x", "y")
	require.ErrorIs(t, err, ErrProxy)
	assert.Contains(t, err.Error(), "invalid number")
}

func TestDebug(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/debug":
			_, _ = w.Write([]byte(`{"accountSid":"AC1","phoneNumber":"+15550001111"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	raw, err := NewClient(srv.URL, time.Second).Debug(context.Background())
	require.NoError(t, err)
	assert.JSONEq(t, `{"accountSid":"AC1","phoneNumber":"+15550001111"}`, string(raw))

	_, err = NewClient(srv.URL+"/missing", time.Second).Debug(context.Background())
	require.ErrorIs(t, err, ErrProxy)
}
