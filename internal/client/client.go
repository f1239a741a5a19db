// Package client is the stateless REST wrapper over the session
// lifecycle API. No protocol logic lives here: each call is a single
// request, never retried, with failures mapped to typed errors the
// caller can branch on. Retry policy belongs to the caller.
package client

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

	"github.com/studyduo/pairquiz/internal/session"
)

var (
	ErrInvalidCode     = errors.New("invalid session code")
	ErrSessionExpired  = errors.New("session has expired")
	ErrSessionFull     = errors.New("session is already full")
	ErrSessionNotFound = errors.New("session not found")
	ErrServer          = errors.New("server error")
)

type Client struct {
	baseURL string
	http    *http.Client
	log     *zap.Logger
}

func New(baseURL string, log *zap.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
		log:     log,
	}
}

func (c *Client) CreateSession(ctx context.Context, userID string, cfg session.QuizConfig) (session.State, error) {
	body := struct {
		UserID     string             `json:"userId"`
		QuizConfig session.QuizConfig `json:"quizConfig"`
	}{UserID: userID, QuizConfig: cfg}

	return c.postSession(ctx, "/pair-quiz/create/", body, func(status int) error {
		return ErrServer
	})
}

func (c *Client) JoinSession(ctx context.Context, userID, code string) (session.State, error) {
	normalized, err := session.NormalizeCode(code)
	if err != nil {
		return session.State{}, fmt.Errorf("%w: %q", ErrInvalidCode, code)
	}

	body := struct {
		UserID      string `json:"userId"`
		SessionCode string `json:"sessionCode"`
	}{UserID: userID, SessionCode: normalized}

	return c.postSession(ctx, "/pair-quiz/join/", body, func(status int) error {
		switch status {
		case http.StatusNotFound:
			return ErrInvalidCode
		case http.StatusGone:
			return ErrSessionExpired
		case http.StatusConflict:
			return ErrSessionFull
		default:
			return ErrServer
		}
	})
}

func (c *Client) GetSession(ctx context.Context, sessionID string) (session.State, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/pair-quiz/"+sessionID+"/", nil)
	if err != nil {
		return session.State{}, err
	}
	return c.do(req, func(status int) error {
		if status == http.StatusNotFound {
			return ErrSessionNotFound
		}
		return ErrServer
	})
}

func (c *Client) CancelSession(ctx context.Context, sessionID, userID, reason string) error {
	body := struct {
		UserID string `json:"userId"`
		Reason string `json:"reason"`
	}{UserID: userID, Reason: reason}

	_, err := c.postSession(ctx, "/pair-quiz/"+sessionID+"/cancel/", body, func(status int) error {
		if status == http.StatusNotFound {
			return ErrSessionNotFound
		}
		return ErrServer
	})
	return err
}

func (c *Client) postSession(ctx context.Context, path string, body any, classify func(status int) error) (session.State, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return session.State{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return session.State{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, classify)
}

func (c *Client) do(req *http.Request, classify func(status int) error) (session.State, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return session.State{}, fmt.Errorf("request %s: %w", req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		class := classify(resp.StatusCode)
		c.log.Debug("api error",
			zap.String("path", req.URL.Path),
			zap.Int("status", resp.StatusCode),
			zap.String("message", apiErr.Error))
		if apiErr.Error != "" {
			return session.State{}, fmt.Errorf("%w: %s", class, apiErr.Error)
		}
		return session.State{}, fmt.Errorf("%w: status %d", class, resp.StatusCode)
	}

	var s session.State
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return session.State{}, fmt.Errorf("decode %s response: %w", req.URL.Path, err)
	}
	return s, nil
}
