package followup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mattjoyce/slashgate/internal/interaction"
)

//go:generate mockgen -destination=mocks/mock_notifier.go -package=mocks github.com/mattjoyce/slashgate/internal/followup Notifier

// Notifier posts a follow-up message for an interaction.
type Notifier interface {
	SendFollowUp(ctx context.Context, inv interaction.Invoker, content string, ephemeral bool) error
}

// DefaultAPIBase is the public Discord REST endpoint.
const DefaultAPIBase = "https://discord.com/api/v10"

const maxErrorBody = 4 * 1024

// StatusError is returned when the platform answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	RetryAfter time.Duration
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("follow-up rejected: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("follow-up rejected: HTTP %d: %s", e.StatusCode, e.Body)
}

// Temporary reports whether the request may succeed if retried.
func (e *StatusError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// IsPermanent reports whether err means retrying is pointless.
func IsPermanent(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return !se.Temporary()
	}
	return false
}

// WebhookNotifier delivers follow-ups through the interaction webhook,
// POST {base}/webhooks/{application_id}/{token}.
type WebhookNotifier struct {
	baseURL   string
	client    *http.Client
	userAgent string
}

func NewWebhookNotifier(baseURL string, client *http.Client, userAgent string) *WebhookNotifier {
	if baseURL == "" {
		baseURL = DefaultAPIBase
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &WebhookNotifier{
		baseURL:   strings.TrimRight(baseURL, "/"),
		client:    client,
		userAgent: userAgent,
	}
}

type followUpBody struct {
	Content         string          `json:"content"`
	Flags           int             `json:"flags,omitempty"`
	AllowedMentions allowedMentions `json:"allowed_mentions"`
}

// allowedMentions with an empty parse list keeps user text from pinging anyone.
type allowedMentions struct {
	Parse []string `json:"parse"`
}

func (n *WebhookNotifier) SendFollowUp(ctx context.Context, inv interaction.Invoker, content string, ephemeral bool) error {
	if inv.ApplicationID == "" || inv.Token == "" {
		return errors.New("follow-up needs application id and token")
	}

	body := followUpBody{Content: content, AllowedMentions: allowedMentions{Parse: []string{}}}
	if ephemeral {
		body.Flags = interaction.FlagEphemeral
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal follow-up: %w", err)
	}

	endpoint := n.baseURL + "/webhooks/" + url.PathEscape(inv.ApplicationID) + "/" + url.PathEscape(inv.Token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build follow-up request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if n.userAgent != "" {
		req.Header.Set("User-Agent", n.userAgent)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		// The URL carries the token; keep it out of the error.
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return fmt.Errorf("send follow-up: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{
		StatusCode: resp.StatusCode,
		RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		Body:       strings.TrimSpace(string(snippet)),
	}
}

// parseRetryAfter accepts the seconds form, fractional or not.
func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	secs, err := strconv.ParseFloat(v, 64)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs * float64(time.Second))
}
