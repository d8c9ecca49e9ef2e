package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrEmptyToken   = errors.New("backend returned no token")
	ErrNotFound     = errors.New("not found")
)

// StatusError reports an unexpected backend status.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend %s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// Client calls the farmer backend REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	validate   *validator.Validate
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		validate:   validator.New(),
	}
}

type loginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

type loginResponse struct {
	Token any `json:"token"`
}

// Login exchanges credentials for a session token.
func (c *Client) Login(ctx context.Context, identifier, password string) (string, error) {
	payload, err := json.Marshal(loginRequest{Identifier: strings.TrimSpace(identifier), Password: password})
	if err != nil {
		return "", err
	}

	var out loginResponse
	if err := c.do(ctx, http.MethodPost, "/auth/login", "", "application/json", bytes.NewReader(payload), &out); err != nil {
		return "", err
	}

	token, ok := out.Token.(string)
	if !ok || token == "" {
		return "", ErrEmptyToken
	}
	return token, nil
}

// GetUser loads a profile with the caller's bearer token.
func (c *Client) GetUser(ctx context.Context, token, id string) (User, error) {
	var user User
	err := c.do(ctx, http.MethodGet, "/user/"+url.PathEscape(id), token, "", nil, &user)
	return user, err
}

// CreateUser registers an account through the multipart endpoint.
func (c *Client) CreateUser(ctx context.Context, form SignupForm) error {
	form = form.Normalized()
	if err := c.validate.Struct(form); err != nil {
		return fmt.Errorf("invalid signup form: %w", err)
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fields := [][2]string{
		{"name", form.Name},
		{"username", form.Username()},
		{"email", form.Email},
		{"phone", form.Phone},
		{"password", form.Password},
	}
	if form.Location != "" {
		fields = append(fields, [2]string{"location", form.Location})
	}
	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return err
		}
	}
	if form.ProfilePic != nil {
		name := form.ProfilePicName
		if name == "" {
			name = "profile.jpg"
		}
		part, err := w.CreateFormFile("profilePic", name)
		if err != nil {
			return err
		}
		if _, err := io.Copy(part, form.ProfilePic); err != nil {
			return fmt.Errorf("attach profile picture: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return err
	}

	return c.do(ctx, http.MethodPost, "/user/create", "", w.FormDataContentType(), &buf, nil)
}

// ListChallenges returns the community feed.
func (c *Client) ListChallenges(ctx context.Context, token string) ([]Challenge, error) {
	var out []Challenge
	if err := c.do(ctx, http.MethodGet, "/challenge/all", token, "", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListReports returns disease reports for the outbreak map.
func (c *Client) ListReports(ctx context.Context, token string) ([]Report, error) {
	var out []Report
	if err := c.do(ctx, http.MethodGet, "/reports", token, "", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path, token, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("backend %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ErrUnauthorized
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return &StatusError{Method: method, Path: path, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode backend %s %s: %w", method, path, err)
	}
	return nil
}
