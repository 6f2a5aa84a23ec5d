package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"slackscribe/internal/services"
)

const (
	defaultBaseURL          = "https://slack.com/api"
	defaultHTTPTimeout      = 30 * time.Second
	defaultMaxDownloadBytes = 512 << 20
	errorBodyLimit          = 4096
)

// Config describes the Slack client configuration.
type Config struct {
	BotToken         string
	BaseURL          string
	MaxDownloadBytes int64
	HTTPClient       *http.Client
}

// Client calls the Slack Web API.
type Client struct {
	botToken    string
	baseURL     *url.URL
	maxDownload int64
	http        *http.Client
}

// New creates a Client from the supplied configuration. The bot token is
// optional: every call also accepts a per-request token.
func New(cfg Config) (*Client, error) {
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		base = defaultBaseURL
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("slack: parse base url: %w", err)
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	limit := cfg.MaxDownloadBytes
	if limit <= 0 {
		limit = defaultMaxDownloadBytes
	}
	return &Client{
		botToken:    strings.TrimSpace(cfg.BotToken),
		baseURL:     baseURL,
		maxDownload: limit,
		http:        client,
	}, nil
}

// File is the subset of Slack file metadata the pipeline consumes.
type File struct {
	ID                 string   `json:"id"`
	Name               string   `json:"name"`
	Title              string   `json:"title"`
	Filetype           string   `json:"filetype"`
	Mimetype           string   `json:"mimetype"`
	PrettyType         string   `json:"pretty_type"`
	URLPrivate         string   `json:"url_private"`
	URLPrivateDownload string   `json:"url_private_download"`
	Size               int64    `json:"size"`
	User               string   `json:"user"`
	Channels           []string `json:"channels"`
	Created            int64    `json:"created"`
}

// DownloadURL returns the best URL for fetching the file body.
func (f File) DownloadURL() string {
	if f.URLPrivateDownload != "" {
		return f.URLPrivateDownload
	}
	return f.URLPrivate
}

type envelope struct {
	OK      bool   `json:"ok"`
	Error   string `json:"error"`
	Warning string `json:"warning"`
}

func (c *Client) token(override string) string {
	if t := strings.TrimSpace(override); t != "" {
		return t
	}
	return c.botToken
}

// FileInfo looks up metadata for a file via files.info.
func (c *Client) FileInfo(ctx context.Context, fileID, token string) (File, error) {
	if strings.TrimSpace(fileID) == "" {
		return File{}, services.Wrap(services.ErrNotFound, "slack", "files.info", "file id is empty", nil)
	}
	params := url.Values{}
	params.Set("file", fileID)
	body, err := c.call(ctx, http.MethodGet, "files.info", params, nil, token)
	if err != nil {
		return File{}, err
	}
	var payload struct {
		File File `json:"file"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return File{}, services.Wrap(services.ErrUpstream, "slack", "files.info", "decode response", err)
	}
	return payload.File, nil
}

// CanvasBlocks returns the raw canvas.info response. The body carries the
// block list under canvas.blocks.
func (c *Client) CanvasBlocks(ctx context.Context, canvasID, token string) ([]byte, error) {
	if strings.TrimSpace(canvasID) == "" {
		return nil, services.Wrap(services.ErrNotFound, "slack", "canvas.info", "canvas id is empty", nil)
	}
	params := url.Values{}
	params.Set("canvas_id", canvasID)
	return c.call(ctx, http.MethodGet, "canvas.info", params, nil, token)
}

// Message is a chat.postMessage request.
type Message struct {
	Channel  string `json:"channel"`
	Text     string `json:"text"`
	ThreadTS string `json:"thread_ts,omitempty"`
}

// PostMessage sends a message, threading it under ThreadTS when set.
func (c *Client) PostMessage(ctx context.Context, msg Message) error {
	if strings.TrimSpace(msg.Channel) == "" {
		return services.Wrap(services.ErrUpstream, "slack", "chat.postMessage", "channel is empty", nil)
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("slack: encode message: %w", err)
	}
	_, err = c.call(ctx, http.MethodPost, "chat.postMessage", nil, payload, "")
	return err
}

// Identity is the auth.test response.
type Identity struct {
	Team   string `json:"team"`
	TeamID string `json:"team_id"`
	User   string `json:"user"`
	UserID string `json:"user_id"`
	BotID  string `json:"bot_id"`
}

// AuthTest confirms the token is accepted and reports who it belongs to.
func (c *Client) AuthTest(ctx context.Context, token string) (Identity, error) {
	body, err := c.call(ctx, http.MethodPost, "auth.test", nil, nil, token)
	if err != nil {
		return Identity{}, err
	}
	var id Identity
	if err := json.Unmarshal(body, &id); err != nil {
		return Identity{}, services.Wrap(services.ErrUpstream, "slack", "auth.test", "decode response", err)
	}
	return id, nil
}

// Download streams a private file URL into dst and returns the bytes written.
// Slack answers unauthorised file requests with an HTML login page and a 200
// status; that case is reported as an auth failure. URLs outside Slack are
// fetched without credentials.
func (c *Client) Download(ctx context.Context, rawURL, token string, dst io.Writer) (int64, error) {
	resp, err := c.get(ctx, rawURL, token, "download")
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type")); mediaType == "text/html" {
		return 0, services.Wrap(services.ErrAuth, "slack", "download", "received HTML instead of file content; check the token's files:read scope", nil)
	}

	n, err := io.Copy(dst, io.LimitReader(resp.Body, c.maxDownload+1))
	if err != nil {
		return n, services.ClassifyNetworkError("slack", "download", err)
	}
	if n > c.maxDownload {
		return n, services.Wrap(services.ErrUpstream, "slack", "download", fmt.Sprintf("file exceeds %d byte limit", c.maxDownload), nil)
	}
	return n, nil
}

// FetchBody reads a private URL fully, up to limit bytes. Unlike Download it
// accepts HTML, which is how canvas bodies are served.
func (c *Client) FetchBody(ctx context.Context, rawURL, token string, limit int64) ([]byte, error) {
	resp, err := c.get(ctx, rawURL, token, "fetch")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if limit <= 0 {
		limit = c.maxDownload
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return nil, services.ClassifyNetworkError("slack", "fetch", err)
	}
	return data, nil
}

func (c *Client) get(ctx context.Context, rawURL, token, op string) (*http.Response, error) {
	if strings.TrimSpace(rawURL) == "" {
		return nil, services.Wrap(services.ErrNotFound, "slack", op, "url is empty", nil)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, services.Wrap(services.ErrUpstream, "slack", op, "build request", err)
	}
	if t := c.token(token); t != "" && c.trustedHost(req.URL) {
		req.Header.Set("Authorization", "Bearer "+t)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, services.ClassifyNetworkError("slack", op, err)
	}
	if marker := services.ClassifyHTTPStatus(resp.StatusCode); marker != nil {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		resp.Body.Close()
		return nil, services.Wrap(marker, "slack", op,
			fmt.Sprintf("status %s: %s", resp.Status, strings.TrimSpace(string(body))), nil)
	}
	return resp, nil
}

// trustedHost reports whether u may receive the bot token: slack.com, its
// subdomains, or the configured API host. Canvas links can point anywhere.
func (c *Client) trustedHost(u *url.URL) bool {
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return false
	}
	if host == "slack.com" || strings.HasSuffix(host, ".slack.com") {
		return true
	}
	return strings.EqualFold(host, c.baseURL.Hostname()) && u.Port() == c.baseURL.Port()
}

func (c *Client) call(ctx context.Context, method, apiMethod string, params url.Values, jsonBody []byte, token string) ([]byte, error) {
	endpoint := c.baseURL.JoinPath(apiMethod)
	if len(params) > 0 {
		endpoint.RawQuery = params.Encode()
	}

	var reader io.Reader
	if jsonBody != nil {
		reader = bytes.NewReader(jsonBody)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), reader)
	if err != nil {
		return nil, services.Wrap(services.ErrUpstream, "slack", apiMethod, "build request", err)
	}
	if jsonBody != nil {
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
	}
	if t := c.token(token); t != "" {
		req.Header.Set("Authorization", "Bearer "+t)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, services.ClassifyNetworkError("slack", apiMethod, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, services.ClassifyNetworkError("slack", apiMethod, err)
	}
	if marker := services.ClassifyHTTPStatus(resp.StatusCode); marker != nil {
		return nil, services.Wrap(marker, "slack", apiMethod,
			fmt.Sprintf("status %s: %s", resp.Status, truncate(body)), nil)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, services.Wrap(services.ErrUpstream, "slack", apiMethod, "decode response", err)
	}
	if !env.OK {
		return nil, &APIError{Method: apiMethod, Code: env.Error}
	}
	return body, nil
}

func truncate(body []byte) string {
	if len(body) > errorBodyLimit {
		body = body[:errorBodyLimit]
	}
	return strings.TrimSpace(string(body))
}

// APIError is a Slack `ok:false` response.
type APIError struct {
	Method string
	Code   string
}

func (e *APIError) Error() string {
	code := e.Code
	if code == "" {
		code = "unknown_error"
	}
	return fmt.Sprintf("slack %s: %s", e.Method, code)
}

// Unwrap exposes the services marker matching the Slack error code.
func (e *APIError) Unwrap() error {
	return classifyCode(e.Code)
}

func classifyCode(code string) error {
	switch code {
	case "not_authed", "invalid_auth", "account_inactive", "token_revoked", "token_expired",
		"no_permission", "missing_scope", "not_allowed_token_type", "access_denied":
		return services.ErrAuth
	case "file_not_found", "file_deleted", "canvas_not_found", "channel_not_found",
		"thread_not_found", "not_found":
		return services.ErrNotFound
	case "ratelimited", "rate_limited", "internal_error", "fatal_error",
		"service_unavailable", "request_timeout":
		return services.ErrTransport
	default:
		return services.ErrUpstream
	}
}

// IsAPIError reports whether err carries a Slack error code and returns it.
func IsAPIError(err error) (string, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code, true
	}
	return "", false
}
