package advisor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cropsentinel/advisor/backend/internal/model/language"
	"github.com/cropsentinel/advisor/backend/internal/service/ai"
)

type respondRequest struct {
	Message  string        `json:"message"`
	Language language.Code `json:"language"`
}

type respondResponse struct {
	AIResponse *string `json:"aiResponse"`
}

// Client calls the AI text endpoint over HTTP. One attempt per call.
type Client struct {
	endpoint   string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient returns a Client posting to endpoint.
func NewClient(endpoint string, timeout time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.Named("advisor"),
	}
}

// Respond implements Responder. Failures come back as fallback replies.
func (c *Client) Respond(ctx context.Context, message string, code language.Code) Reply {
	payload, err := json.Marshal(respondRequest{Message: message, Language: code})
	if err != nil {
		return c.fail(code, FailureMalformed, 0, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return c.fail(code, FailureTransport, 0, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.fail(code, FailureTransport, 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.fail(code, FailureStatus, resp.StatusCode, fmt.Errorf("ai endpoint status %d", resp.StatusCode))
	}

	var body respondResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return c.fail(code, FailureMalformed, resp.StatusCode, fmt.Errorf("decode ai response: %w", err))
	}
	if body.AIResponse == nil {
		return c.fail(code, FailureMalformed, resp.StatusCode, errors.New("aiResponse field missing"))
	}
	if strings.TrimSpace(*body.AIResponse) == "" {
		return c.fail(code, FailureEmpty, resp.StatusCode, ai.ErrEmptyResponse)
	}

	return Reply{Text: *body.AIResponse, Language: code, Outcome: Generated, StatusCode: resp.StatusCode}
}

func (c *Client) fail(code language.Code, failure Failure, status int, err error) Reply {
	c.logger.Warn("ai response failed",
		zap.String("language", code.String()),
		zap.String("failure", string(failure)),
		zap.Int("status", status),
		zap.Error(err),
	)
	return fallback(code, failure, status, err)
}

// Local answers in-process through an ai.Service with the same fallback
// policy as Client.
type Local struct {
	service *ai.Service
	channel ai.Postprocess
	logger  *zap.Logger
}

// NewLocal wraps service for the given delivery channel.
func NewLocal(service *ai.Service, channel ai.Postprocess, logger *zap.Logger) *Local {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Local{service: service, channel: channel, logger: logger.Named("advisor")}
}

// Respond implements Responder.
func (l *Local) Respond(ctx context.Context, message string, code language.Code) Reply {
	if l.service == nil {
		return fallback(code, FailureStatus, http.StatusServiceUnavailable, errors.New("ai service unavailable"))
	}

	text, err := l.service.Respond(ctx, message, code, l.channel)
	switch {
	case errors.Is(err, ai.ErrEmptyResponse):
		l.logger.Warn("empty ai response", zap.String("language", code.String()))
		return fallback(code, FailureEmpty, http.StatusOK, err)
	case err != nil:
		l.logger.Warn("ai response failed", zap.String("language", code.String()), zap.Error(err))
		return fallback(code, FailureTransport, 0, err)
	}
	return Reply{Text: text, Language: code, Outcome: Generated, StatusCode: http.StatusOK}
}
