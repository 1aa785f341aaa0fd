// ABOUTME: Webhook relay client that forwards classified messages to an external endpoint.
// ABOUTME: Signs requests with optional HMAC and parses an optional reply instruction.

package relay

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// relayAction is the action discriminator sent with every webhook call.
const relayAction = "incoming_message"

// Event is the normalized payload relayed for one inbound message.
type Event struct {
	From      string `json:"from"`
	Type      string `json:"type"` // "text" or "audio"
	Message   string `json:"message"`
	Audio     []byte `json:"audio,omitempty"` // base64 in the JSON encoding
	MimeType  string `json:"mimeType,omitempty"`
	Timestamp string `json:"timestamp"`
}

// request is the webhook request body.
type request struct {
	Action    string `json:"action"`
	SessionID string `json:"sessionId"`
	Data      *Event `json:"data"`
}

// response is the webhook response body. All fields are optional.
type response struct {
	Reply string `json:"reply"`
}

// Client posts events to one statically configured webhook endpoint.
// Transport failures and malformed responses are errors for the caller to
// log and swallow; they must never disrupt message processing.
type Client struct {
	url        string
	secret     string
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates a relay client for the given endpoint. An empty url produces
// an unconfigured client whose Configured method reports false. A non-empty
// secret enables HMAC-SHA256 request signing. A zero timeout means no
// client-side deadline: a hung endpoint stalls only the one message whose
// relay is in flight.
func New(url, secret string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		url:        url,
		secret:     secret,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Configured reports whether a webhook endpoint is set.
func (c *Client) Configured() bool {
	return c.url != ""
}

// Relay posts one event and returns the reply text from the response, or ""
// when the webhook has none.
func (c *Client) Relay(ctx context.Context, sessionID string, ev *Event) (string, error) {
	body, err := json.Marshal(request{
		Action:    relayAction,
		SessionID: sessionID,
		Data:      ev,
	})
	if err != nil {
		return "", fmt.Errorf("encoding webhook body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-Id", uuid.New().String())
	if c.secret != "" {
		now := strconv.FormatInt(time.Now().Unix(), 10)
		req.Header.Set("X-Gateway-Timestamp", now)
		req.Header.Set("X-Gateway-Signature", "sha256="+sign(c.secret, body))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return "", fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	var parsed response
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decoding webhook response: %w", err)
	}

	c.logger.Debug("event relayed",
		"session_id", sessionID,
		"from", ev.From,
		"type", ev.Type,
		"has_reply", parsed.Reply != "",
	)
	return parsed.Reply, nil
}

// sign computes the hex HMAC-SHA256 of body under secret.
func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
