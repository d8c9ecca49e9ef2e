package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var ErrProxy = errors.New("sms proxy error")

// InboundMessage is a message as reported by the provider proxy.
type InboundMessage struct {
	SID         string    `json:"sid"`
	From        string    `json:"from"`
	Body        string    `json:"body"`
	DateCreated time.Time `json:"dateCreated"`
	HasResponse bool      `json:"hasResponse"`
	AIResponse  string    `json:"aiResponse,omitempty"`
}

type listResponse struct {
	Success  bool             `json:"success"`
	Messages []InboundMessage `json:"messages"`
	Error    string           `json:"error,omitempty"`
}

type sendRequest struct {
	To   string `json:"to"`
	Body string `json:"body"`
}

type sendResponse struct {
	Success bool   `json:"success"`
	SID     string `json:"sid,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Client talks to the SMS provider proxy.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// List fetches inbound messages.
func (c *Client) List(ctx context.Context) ([]InboundMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/messages", nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list sms: %w", err)
	}
	defer resp.Body.Close()

	var body listResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode sms list (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK || !body.Success {
		return nil, fmt.Errorf("%w: list status %d: %s", ErrProxy, resp.StatusCode, body.Error)
	}
	return body.Messages, nil
}

// Send delivers body to the given number and returns the outbound SID when the
// proxy reports one.
func (c *Client) Send(ctx context.Context, to, body string) (string, error) {
	payload, err := json.Marshal(sendRequest{To: to, Body: body})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/send", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send sms: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read send response: %w", err)
	}

	raw = bytes.TrimSpace(raw)
	var out sendResponse
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil && resp.StatusCode == http.StatusOK {
			return "", fmt.Errorf("decode send response: %w", err)
		}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: send status %d: %s", ErrProxy, resp.StatusCode, out.Error)
	}
	if len(raw) > 0 && !out.Success {
		return "", fmt.Errorf("%w: send rejected: %s", ErrProxy, out.Error)
	}
	return out.SID, nil
}

// Debug fetches the proxy's diagnostic document. The body is passed through
// untouched since its shape belongs to the proxy.
func (c *Client) Debug(ctx context.Context) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/debug", nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sms debug: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read sms debug: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: debug status %d", ErrProxy, resp.StatusCode)
	}
	if !json.Valid(raw) {
		return nil, fmt.Errorf("%w: debug response is not json", ErrProxy)
	}
	return json.RawMessage(raw), nil
}
