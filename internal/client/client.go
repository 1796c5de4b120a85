// Package client talks to the remote tender REST API. Every request is
// built by one function that attaches the bearer token and the trace
// context; nothing is retried.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"tender_dashboard/internal/lib/errors"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// TokenSource yields the bearer token to use for one request. It is asked
// right before every authenticated call.
type TokenSource interface {
	Token(ctx context.Context) string
}

type Config struct {
	BaseURL string
	Timeout time.Duration
	Debug   bool
}

type Client struct {
	rc  *resty.Client
	log *slog.Logger

	mu             sync.RWMutex
	tokens         TokenSource
	onUnauthorized func(ctx context.Context)
}

func New(log *slog.Logger, cfg Config) *Client {
	rc := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetRetryCount(0).
		SetHeader("Accept", "application/json").
		SetLogger(restyLogger{log: log}).
		SetDebug(cfg.Debug)

	return &Client{
		rc:  rc,
		log: log.With(slog.String("component", "client")),
	}
}

// Bind wires the session the client reads tokens from and the callback run
// when the API answers 401.
func (c *Client) Bind(tokens TokenSource, onUnauthorized func(ctx context.Context)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens = tokens
	c.onUnauthorized = onUnauthorized
}

// BearerHeader renders the Authorization header value. A token that already
// carries the scheme is not prefixed twice.
func BearerHeader(token string) string {
	token = strings.TrimSpace(token)
	const scheme = "bearer"
	if len(token) > len(scheme) && strings.EqualFold(token[:len(scheme)], scheme) {
		token = strings.TrimSpace(token[len(scheme):])
	}
	return "Bearer " + token
}

type call struct {
	method string
	path   string
	auth   bool
	token  string // overrides the bound TokenSource
	query  url.Values
	body   any
}

func (c *Client) newRequest(ctx context.Context, cl call) *resty.Request {
	req := c.rc.R().SetContext(ctx)

	if cl.auth {
		token := cl.token
		if token == "" {
			c.mu.RLock()
			tokens := c.tokens
			c.mu.RUnlock()
			if tokens != nil {
				token = tokens.Token(ctx)
			}
		}
		if token != "" {
			req.SetHeader("Authorization", BearerHeader(token))
		}
	}

	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))
	return req
}

func (c *Client) send(ctx context.Context, op string, cl call) ([]byte, error) {
	req := c.newRequest(ctx, cl)
	if cl.query != nil {
		req.SetQueryParamsFromValues(cl.query)
	}
	if cl.body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(cl.body)
	}

	resp, err := req.Execute(cl.method, cl.path)
	if err != nil {
		c.log.Debug("request failed", slog.String("op", op), slog.String("path", cl.path), slog.String("error", err.Error()))
		return nil, &errors.NetworkError{Op: op, Err: err}
	}

	status := resp.StatusCode()
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		if status == http.StatusUnauthorized && cl.auth && cl.token == "" {
			c.mu.RLock()
			hook := c.onUnauthorized
			c.mu.RUnlock()
			if hook != nil {
				hook(ctx)
			}
		}
		return nil, &errors.AuthError{Op: op, Status: status, Message: messageOf(resp.Body())}
	case !resp.IsSuccess():
		return nil, &errors.ServerError{Op: op, Status: status, Message: messageOf(resp.Body())}
	}

	return resp.Body(), nil
}

// messageOf pulls a human readable reason out of an error body.
func messageOf(body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Reason  string `json:"reason"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		for _, s := range []string{payload.Message, payload.Reason, payload.Error} {
			if s != "" {
				return s
			}
		}
	}
	text := strings.TrimSpace(string(body))
	if len(text) > 200 {
		text = text[:200]
	}
	return text
}

// unwrap returns the payload of a `{"data": ...}` envelope, or body itself
// when there is no envelope.
func unwrap(body []byte) []byte {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return trimmed
	}
	var env map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return trimmed
	}
	data, ok := env["data"]
	if !ok || len(data) == 0 || string(data) == "null" {
		return trimmed
	}
	return data
}

func decodeData(op string, body []byte, out any) error {
	payload := unwrap(body)
	if len(payload) == 0 || string(payload) == "null" {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return &errors.ServerError{Op: op, Status: http.StatusOK, Message: fmt.Sprintf("malformed response: %v", err)}
	}
	return nil
}

// decodeList accepts a JSON array, an enveloped array, or an object whose
// values are the items (ordered by key).
func decodeList[T any](op string, body []byte) ([]T, error) {
	payload := unwrap(body)
	out := make([]T, 0)
	if len(payload) == 0 || string(payload) == "null" {
		return out, nil
	}

	if payload[0] == '[' {
		if err := json.Unmarshal(payload, &out); err != nil {
			return nil, &errors.ServerError{Op: op, Status: http.StatusOK, Message: fmt.Sprintf("malformed response: %v", err)}
		}
		return out, nil
	}

	var byKey map[string]json.RawMessage
	if err := json.Unmarshal(payload, &byKey); err != nil {
		return nil, &errors.ServerError{Op: op, Status: http.StatusOK, Message: fmt.Sprintf("malformed response: %v", err)}
	}
	keys := make([]string, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		var item T
		if err := json.Unmarshal(byKey[k], &item); err != nil {
			return nil, &errors.ServerError{Op: op, Status: http.StatusOK, Message: fmt.Sprintf("malformed item %q: %v", k, err)}
		}
		out = append(out, item)
	}
	return out, nil
}

type restyLogger struct {
	log *slog.Logger
}

func (l restyLogger) Errorf(format string, v ...interface{}) {
	l.log.Error(fmt.Sprintf(format, v...), slog.String("component", "resty"))
}

func (l restyLogger) Warnf(format string, v ...interface{}) {
	l.log.Warn(fmt.Sprintf(format, v...), slog.String("component", "resty"))
}

func (l restyLogger) Debugf(format string, v ...interface{}) {
	l.log.Debug(fmt.Sprintf(format, v...), slog.String("component", "resty"))
}
