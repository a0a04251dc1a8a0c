// Package mail sends password reset links through the Mailgun HTTP API.
package mail

import (
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nerrad567/doorkeeper-core/internal/infrastructure/config"
)

// ResetSubject is the subject line of password reset emails.
const ResetSubject = "Change your password here"

const defaultSendTimeout = 10 * time.Second

// ErrSendFailed is returned when Mailgun rejects or cannot accept a message.
var ErrSendFailed = errors.New("mail: send failed")

// Mailer delivers password reset links.
type Mailer interface {
	SendResetLink(ctx context.Context, to, name, token string) error
}

// Client is a Mailgun Mailer.
type Client struct {
	baseURL      string
	domain       string
	apiKey       string
	from         string
	resetBaseURL string
	httpClient   *http.Client
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// NewClient creates a Mailgun client from the mail config section.
func NewClient(cfg config.MailConfig, opts ...Option) *Client {
	c := &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		domain:       cfg.Domain,
		apiKey:       cfg.APIKey,
		from:         cfg.From,
		resetBaseURL: strings.TrimRight(cfg.ResetBaseURL, "/"),
		httpClient:   &http.Client{Timeout: defaultSendTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ResetLink returns the front-end URL that carries token.
func (c *Client) ResetLink(token string) string {
	return c.resetBaseURL + "/email?token=" + url.QueryEscape(token)
}

// SendResetLink emails the reset link to a single recipient.
func (c *Client) SendResetLink(ctx context.Context, to, name, token string) error {
	link := c.ResetLink(token)

	form := url.Values{}
	form.Set("from", c.from)
	form.Set("to", recipient(name, to))
	form.Set("subject", ResetSubject)
	form.Set("html", fmt.Sprintf(`<p><a href="%s">click to reset password</a></p>`, html.EscapeString(link)))
	form.Set("text", "Reset your password: "+link)

	endpoint := fmt.Sprintf("%s/v3/%s/messages", c.baseURL, url.PathEscape(c.domain))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth("api", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSendFailed, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body) //nolint:errcheck // drain for connection reuse

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("%w: mailgun status %d", ErrSendFailed, resp.StatusCode)
	}
	return nil
}

func recipient(name, email string) string {
	if name == "" {
		return email
	}
	return fmt.Sprintf("%q <%s>", name, email)
}

// LogMailer stands in for Mailgun when mail is disabled. It records that a
// reset was requested but never logs the link itself.
type LogMailer struct {
	logger *slog.Logger
}

// NewLogMailer creates a LogMailer.
func NewLogMailer(logger *slog.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

// SendResetLink logs the request.
func (m *LogMailer) SendResetLink(_ context.Context, to, _, _ string) error {
	m.logger.Warn("mail disabled, reset link not sent", "to", to)
	return nil
}
