package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/photocore/photoadmin/internal/logger"
)

const (
	loginPath   = "user/login"
	refreshPath = "user/refresh"

	// верхняя граница общего запроса обновления токена
	refreshTimeout = 30 * time.Second
)

var errNoRefreshToken = errors.New("no refresh token")

// TokenStore хранит токены одной браузерной сессии
type TokenStore interface {
	Token() (string, error)
	RefreshToken() (string, error)
	SaveTokens(t *Tokens) error
	ClearTokens() error
}

// Client обращается к REST API. Токены подставляются автоматически,
// на 401 выполняется одно тихое обновление токена и повтор запроса.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	tokens  TokenStore
	refresh *singleflight.Group
}

// NewClient создает клиента без привязки к сессии
func NewClient(baseURL string, httpClient *http.Client) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid api base url: %w", err)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{
		baseURL: u,
		http:    httpClient,
		refresh: &singleflight.Group{},
	}, nil
}

// WithTokens возвращает клиента, работающего от имени сессии
func (c *Client) WithTokens(tokens TokenStore) *Client {
	cc := *c
	cc.tokens = tokens
	return &cc
}

type request struct {
	method      string
	path        string
	query       url.Values
	body        []byte
	contentType string
	public      bool // без авторизации и обновления токена
}

func jsonRequest(method, path string, in any) (*request, error) {
	req := &request{method: method, path: path}
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s body: %w", path, err)
		}
		req.body = data
		req.contentType = "application/json"
	}
	return req, nil
}

// do выполняет JSON-запрос и декодирует ответ в out
func (c *Client) do(ctx context.Context, req *request, out any) error {
	resp, err := c.send(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", req.path, err)
	}
	return nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	req, err := jsonRequest(method, path, in)
	if err != nil {
		return err
	}
	return c.do(ctx, req, out)
}

func (c *Client) doPublic(ctx context.Context, method, path string, in, out any) error {
	req, err := jsonRequest(method, path, in)
	if err != nil {
		return err
	}
	req.public = true
	return c.do(ctx, req, out)
}

// send выполняет запрос. Вызывающий закрывает тело успешного ответа.
func (c *Client) send(ctx context.Context, req *request) (*http.Response, error) {
	resp, usedToken, err := c.roundTrip(ctx, req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized && c.canRefresh(req) {
		drain(resp)

		if err := c.refreshTokens(ctx, usedToken); err != nil {
			return nil, err
		}

		// Повторяем исходный запрос ровно один раз
		resp, _, err = c.roundTrip(ctx, req)
		if err != nil {
			return nil, err
		}
	}

	if resp.StatusCode >= http.StatusBadRequest {
		defer resp.Body.Close()
		return nil, parseError(resp)
	}
	return resp, nil
}

func (c *Client) canRefresh(req *request) bool {
	return !req.public && c.tokens != nil && req.path != loginPath
}

func (c *Client) roundTrip(ctx context.Context, req *request) (*http.Response, string, error) {
	ref, err := url.Parse(req.path)
	if err != nil {
		return nil, "", fmt.Errorf("invalid path %q: %w", req.path, err)
	}
	u := c.baseURL.ResolveReference(ref)
	if len(req.query) > 0 {
		u.RawQuery = req.query.Encode()
	}

	var body io.Reader
	if req.body != nil {
		body = bytes.NewReader(req.body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, u.String(), body)
	if err != nil {
		return nil, "", err
	}
	httpReq.Header.Set("Accept", "application/json")
	if req.contentType != "" {
		httpReq.Header.Set("Content-Type", req.contentType)
	}

	var token string
	if !req.public && c.tokens != nil {
		token, err = c.tokens.Token()
		if err != nil {
			return nil, "", fmt.Errorf("failed to read token: %w", err)
		}
		if token != "" {
			httpReq.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, "", fmt.Errorf("%s %s: %w", req.method, req.path, err)
	}
	return resp, token, nil
}

// refreshTokens обновляет токены один раз на все параллельные запросы сессии.
// Если токен уже обновил другой запрос, просто повторяем свой.
// Токены очищаются только когда сервер отклонил обновление.
func (c *Client) refreshTokens(ctx context.Context, usedToken string) error {
	current, err := c.tokens.Token()
	if err != nil {
		return fmt.Errorf("failed to read token: %w", err)
	}
	if current != "" && current != usedToken {
		return nil
	}

	refreshToken, err := c.tokens.RefreshToken()
	if err != nil {
		return fmt.Errorf("failed to read refresh token: %w", err)
	}

	// Общий запрос не должен зависеть от отмены первого из ожидающих
	ch := c.refresh.DoChan(refreshToken, func() (any, error) {
		if refreshToken == "" {
			return nil, errNoRefreshToken
		}

		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()

		var tokens Tokens
		req, err := jsonRequest(http.MethodPost, refreshPath, map[string]string{"refreshToken": refreshToken})
		if err != nil {
			return nil, err
		}
		req.public = true
		if err := c.do(rctx, req, &tokens); err != nil {
			return nil, err
		}
		if err := c.tokens.SaveTokens(&tokens); err != nil {
			return nil, fmt.Errorf("failed to save tokens: %w", err)
		}
		return nil, nil
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return ctx.Err()
	case res = <-ch:
	}
	if res.Err == nil {
		return nil
	}

	if !refreshRejected(res.Err) {
		logger.L.Warn("token refresh failed", zap.Error(res.Err))
		return fmt.Errorf("failed to refresh token: %w", res.Err)
	}

	logger.L.Info("token refresh rejected, clearing session", zap.Error(res.Err))
	if clearErr := c.tokens.ClearTokens(); clearErr != nil {
		logger.L.Error("failed to clear tokens", zap.Error(clearErr))
	}
	return fmt.Errorf("%w: %v", ErrSessionExpired, res.Err)
}

// refreshRejected сообщает, что сервер отказал в обновлении токена
func refreshRejected(err error) bool {
	if errors.Is(err, errNoRefreshToken) {
		return true
	}
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Status >= http.StatusBadRequest && apiErr.Status < http.StatusInternalServerError
}

// path собирает путь запроса, экранируя параметры
func path(format string, params ...string) string {
	args := make([]any, len(params))
	for i, p := range params {
		args[i] = url.PathEscape(p)
	}
	return fmt.Sprintf(format, args...)
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	resp.Body.Close()
}
