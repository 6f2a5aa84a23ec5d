package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"slackscribe/internal/canvas"
	"slackscribe/internal/config"
	"slackscribe/internal/logging"
	"slackscribe/internal/services"
)

const (
	defaultZohoTimeout = 30 * time.Second
	searchLimit        = 10
)

// ZohoConfig describes a Zoho Desk publisher.
type ZohoConfig struct {
	Domain          string
	AccountsURL     string
	OrgID           string
	DepartmentID    string
	ContactID       string
	ClientID        string
	ClientSecret    string
	RefreshToken    string
	AccessToken     string
	DescriptionSize int
}

// ZohoConfigFrom maps the ticketing section of the configuration.
func ZohoConfigFrom(cfg config.Ticketing) ZohoConfig {
	return ZohoConfig{
		Domain:          cfg.Domain,
		AccountsURL:     cfg.AccountsURL,
		OrgID:           cfg.OrgID,
		DepartmentID:    cfg.DepartmentID,
		ContactID:       cfg.ContactID,
		ClientID:        cfg.ClientID,
		ClientSecret:    cfg.ClientSecret,
		RefreshToken:    cfg.RefreshToken,
		AccessToken:     cfg.AccessToken,
		DescriptionSize: cfg.DescriptionSize,
	}
}

// ZohoOption customises Zoho construction.
type ZohoOption func(*Zoho)

// WithZohoHTTPClient overrides the HTTP client.
func WithZohoHTTPClient(client HTTPDoer) ZohoOption {
	return func(z *Zoho) {
		z.client = client
	}
}

// WithZohoBaseURL overrides the API origin (used in tests).
func WithZohoBaseURL(base string) ZohoOption {
	return func(z *Zoho) {
		z.baseURL = strings.TrimRight(base, "/")
	}
}

// WithZohoClock overrides the clock used for token expiry.
func WithZohoClock(now func() time.Time) ZohoOption {
	return func(z *Zoho) {
		z.now = now
	}
}

// WithZohoLogger attaches a logger.
func WithZohoLogger(logger *slog.Logger) ZohoOption {
	return func(z *Zoho) {
		z.logger = logger
	}
}

// Zoho files transcripts as Zoho Desk tickets. When the transcript names a
// caller whose email or phone already has a ticket, the transcript is added as
// a comment on that ticket instead of opening a new one.
type Zoho struct {
	cfg     ZohoConfig
	baseURL string
	client  HTTPDoer
	tokens  *tokenManager
	now     func() time.Time
	logger  *slog.Logger
}

// NewZoho builds a Zoho Desk publisher.
func NewZoho(cfg ZohoConfig, opts ...ZohoOption) (*Zoho, error) {
	if strings.TrimSpace(cfg.OrgID) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "zoho", "init", "org id is required", nil)
	}
	if strings.TrimSpace(cfg.AccessToken) == "" && strings.TrimSpace(cfg.RefreshToken) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "zoho", "init", "access token or refresh token is required", nil)
	}
	if cfg.Domain == "" {
		cfg.Domain = "desk.zoho.com"
	}
	if cfg.AccountsURL == "" {
		cfg.AccountsURL = "https://accounts.zoho.com"
	}
	if cfg.DescriptionSize <= 0 {
		cfg.DescriptionSize = canvas.DefaultTextLimit
	}

	z := &Zoho{
		cfg:     cfg,
		baseURL: "https://" + strings.TrimRight(cfg.Domain, "/"),
		client:  &http.Client{Timeout: defaultZohoTimeout},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(z)
	}
	if z.client == nil {
		z.client = &http.Client{Timeout: defaultZohoTimeout}
	}
	if z.now == nil {
		z.now = time.Now
	}
	if z.logger == nil {
		z.logger = logging.NewNop()
	}
	z.tokens = &tokenManager{
		accountsURL:  cfg.AccountsURL,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		refreshToken: cfg.RefreshToken,
		client:       z.client,
		now:          z.now,
		token:        strings.TrimSpace(cfg.AccessToken),
	}
	return z, nil
}

// Name implements Publisher.
func (z *Zoho) Name() string { return "zoho" }

// ticket is the subset of a Zoho Desk ticket used for matching.
type ticket struct {
	ID           flexID `json:"id"`
	TicketNumber flexID `json:"ticketNumber"`
	Subject      string `json:"subject"`
	Status       string `json:"status"`
}

// Publish files the run. Runs with no usable transcript or canvas text are
// skipped.
func (z *Zoho) Publish(ctx context.Context, req Request) (Receipt, error) {
	transcript := req.Result.JoinedTranscript()
	if strings.TrimSpace(transcript) == "" && strings.TrimSpace(req.Result.CanvasText) == "" {
		z.logger.Info("zoho publish skipped",
			logging.String(logging.FieldEventType, "zoho_skipped"),
			logging.String("reason", "no transcript"),
		)
		return Receipt{}, nil
	}

	contact := ExtractContact(transcript)
	existing, err := z.findExisting(ctx, contact)
	if err != nil {
		return Receipt{}, err
	}
	if existing != nil {
		id := string(existing.ID)
		if err := z.comment(ctx, id, transcript); err != nil {
			return Receipt{}, err
		}
		z.logger.Info("zoho ticket updated",
			logging.String(logging.FieldEventType, "zoho_ticket_commented"),
			logging.String("ticket_id", id),
		)
		return Receipt{TicketID: id}, nil
	}

	id, err := z.create(ctx, req, contact, transcript)
	if err != nil {
		return Receipt{}, err
	}
	z.logger.Info("zoho ticket created",
		logging.String(logging.FieldEventType, "zoho_ticket_created"),
		logging.String("ticket_id", id),
		logging.Bool("has_email", contact.Email != ""),
		logging.Bool("has_phone", contact.Phone != ""),
	)
	return Receipt{TicketID: id, TicketCreated: true}, nil
}

func (z *Zoho) findExisting(ctx context.Context, contact Contact) (*ticket, error) {
	if contact.Email != "" {
		tickets, err := z.search(ctx, "email", contact.Email)
		if err != nil {
			return nil, err
		}
		if len(tickets) > 0 {
			return &tickets[0], nil
		}
	}
	if contact.Phone != "" {
		tickets, err := z.search(ctx, "phone", contact.Phone)
		if err != nil {
			return nil, err
		}
		if len(tickets) > 0 {
			return &tickets[0], nil
		}
	}
	return nil, nil
}

// search returns up to ten tickets matching field=value.
func (z *Zoho) search(ctx context.Context, field, value string) ([]ticket, error) {
	query := url.Values{}
	query.Set(field, value)
	query.Set("limit", fmt.Sprint(searchLimit))

	var out struct {
		Data []ticket `json:"data"`
	}
	status, err := z.do(ctx, http.MethodGet, "/api/v1/tickets/search", query, nil, &out)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNoContent {
		return nil, nil
	}
	return out.Data, nil
}

func (z *Zoho) comment(ctx context.Context, ticketID, transcript string) error {
	body := map[string]any{
		"content":  "New voice message transcription from Slack:\n\n" + transcript,
		"isPublic": true,
	}
	_, err := z.do(ctx, http.MethodPost, "/api/v1/tickets/"+url.PathEscape(ticketID)+"/comments", nil, body, nil)
	return err
}

func (z *Zoho) create(ctx context.Context, req Request, contact Contact, transcript string) (string, error) {
	payload := z.ticketPayload(req, contact, transcript)

	var out struct {
		ID   flexID `json:"id"`
		Data struct {
			ID flexID `json:"id"`
		} `json:"data"`
	}
	if _, err := z.do(ctx, http.MethodPost, "/api/v1/tickets", nil, payload, &out); err != nil {
		return "", err
	}
	id := string(out.ID)
	if id == "" {
		id = string(out.Data.ID)
	}
	if id == "" {
		return "", services.Wrap(services.ErrUpstream, "zoho", "create_ticket", "response carried no ticket id", nil)
	}
	return id, nil
}

func (z *Zoho) ticketPayload(req Request, contact Contact, transcript string) map[string]any {
	name := req.FileName
	if name == "" {
		name = req.SourceID
	}

	payload := map[string]any{
		"status":   "Open",
		"priority": "Medium",
	}
	if req.Result.CanvasID != "" {
		payload["subject"] = "Canvas File with Audio - " + name
		payload["channel"] = "Slack Canvas"
		payload["description"] = z.canvasDescription(req, name, transcript)
	} else {
		payload["subject"] = "Voice Message from Slack - " + name
		payload["channel"] = "Slack"
		payload["description"] = "Transcription from Slack voice message:\n\n" + transcript
	}
	if z.cfg.DepartmentID != "" {
		payload["departmentId"] = z.cfg.DepartmentID
	}
	if z.cfg.ContactID != "" {
		payload["contactId"] = z.cfg.ContactID
	}
	if contact.Email != "" {
		payload["email"] = contact.Email
	}
	if contact.Phone != "" {
		payload["phone"] = contact.Phone
	}
	return payload
}

func (z *Zoho) canvasDescription(req Request, name, transcript string) string {
	text, truncated := canvas.Truncate(req.Result.CanvasText, z.cfg.DescriptionSize)
	if truncated || req.Result.CanvasTruncated {
		text += "..."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Canvas File: %s\n\n", name)
	fmt.Fprintf(&b, "Canvas Content:\n%s\n\n", text)
	fmt.Fprintf(&b, "Audio Transcripts (%d audio files):\n%s\n\n", len(req.Result.Transcripts), transcript)
	b.WriteString("Source: Slack Canvas File\n")
	fmt.Fprintf(&b, "Channel: %s\n", req.ChannelID)
	fmt.Fprintf(&b, "User: %s\n", req.UserID)
	fmt.Fprintf(&b, "Timestamp: %s\n", req.Timestamp)
	return b.String()
}

// do performs an authenticated request, refreshing the access token once on
// 401.
func (z *Zoho) do(ctx context.Context, method, path string, query url.Values, body any, out any) (int, error) {
	var payload []byte
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("zoho: encode request: %w", err)
		}
		payload = encoded
	}

	for attempt := 0; ; attempt++ {
		token, err := z.tokens.Token(ctx)
		if err != nil {
			return 0, err
		}
		status, respBody, err := z.send(ctx, method, path, query, payload, token)
		if err != nil {
			return 0, err
		}
		if status == http.StatusUnauthorized && attempt == 0 && z.cfg.RefreshToken != "" {
			z.tokens.Invalidate(token)
			continue
		}
		if marker := services.ClassifyHTTPStatus(status); marker != nil {
			return status, services.Wrap(marker, "zoho", strings.ToLower(method)+" "+path,
				fmt.Sprintf("status %d: %s", status, truncateBody(respBody)), nil)
		}
		if out != nil && len(bytes.TrimSpace(respBody)) > 0 {
			if err := json.Unmarshal(respBody, out); err != nil {
				return status, services.Wrap(services.ErrUpstream, "zoho", path, "decode response", err)
			}
		}
		return status, nil
	}
}

func (z *Zoho) send(ctx context.Context, method, path string, query url.Values, payload []byte, token string) (int, []byte, error) {
	endpoint := z.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return 0, nil, services.Wrap(services.ErrUpstream, "zoho", path, "build request", err)
	}
	req.Header.Set("Authorization", "Zoho-oauthtoken "+token)
	req.Header.Set("orgId", z.cfg.OrgID)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := z.client.Do(req)
	if err != nil {
		return 0, nil, services.ClassifyNetworkError("zoho", path, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, nil, services.ClassifyNetworkError("zoho", path, err)
	}
	return resp.StatusCode, body, nil
}

func truncateBody(body []byte) string {
	const limit = 512
	s := strings.TrimSpace(string(body))
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}

// flexID accepts Zoho identifiers encoded as either JSON strings or numbers.
type flexID string

func (f *flexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexID(n.String())
	return nil
}
