package keyapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	userAgent    = "TelegramKeyBot/1.0"
	apiKeyHeader = "x-api-key"
	// Responses larger than this are treated as malformed.
	maxBodyBytes = 1 << 20
)

// Client talks to the remote key service. It is the only place that knows
// the wire shapes; callers get a KeyInfo or an *Error with a Kind.
type Client struct {
	httpClient *http.Client
	baseURL    string
	healthURL  string
}

// NewClient creates a client for the service rooted at baseURL.
func NewClient(baseURL, healthURL string, timeout time.Duration) *Client {
	return NewClientWithHTTPClient(&http.Client{Timeout: timeout}, baseURL, healthURL)
}

// NewClientWithHTTPClient is NewClient with a caller-supplied http.Client.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL, healthURL string) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	if healthURL == "" {
		healthURL = baseURL + "/health"
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		healthURL:  healthURL,
	}
}

// KeyInfo is the normalized key record. Zero timestamps mean the service did
// not send (or sent an unparseable) value.
type KeyInfo struct {
	Key        string
	CreatedAt  time.Time
	UpdatedAt  time.Time
	LastUsedAt time.Time
}

// HealthStatus is what the health endpoint reported plus the measured round
// trip of the probe itself. A numeric latency lands in LatencyMillis; a
// textual one is kept verbatim in Latency.
type HealthStatus struct {
	Status        string
	Latency       string
	LatencyMillis *float64
	Timestamp     time.Time
	RoundTrip     time.Duration
}

// envelope is the {success, data} wrapper every endpoint uses.
type envelope struct {
	Success *bool           `json:"success"`
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Error   json.RawMessage `json:"error"`
	Data    json.RawMessage `json:"data"`
}

func (e *envelope) remoteMessage() string {
	if e.Message != "" {
		return e.Message
	}
	var s string
	if len(e.Error) > 0 && json.Unmarshal(e.Error, &s) == nil {
		return s
	}
	return ""
}

// keyPayload accepts both spellings the service has used for the key field.
type keyPayload struct {
	Key        string `json:"key"`
	APIKey     string `json:"apiKey"`
	CreatedAt  string `json:"createdAt"`
	UpdatedAt  string `json:"updatedAt"`
	LastUsedAt string `json:"lastUsedAt"`
}

func (p keyPayload) info() *KeyInfo {
	key := p.Key
	if key == "" {
		key = p.APIKey
	}
	return &KeyInfo{
		Key:        key,
		CreatedAt:  parseTime(p.CreatedAt),
		UpdatedAt:  parseTime(p.UpdatedAt),
		LastUsedAt: parseTime(p.LastUsedAt),
	}
}

type registerRequest struct {
	Username   string `json:"username"`
	TelegramID int64  `json:"telegramId"`
}

// Register creates an account for the Telegram user. Only an explicit
// success:true counts as registered; such a response without a key yields a
// KeyInfo with an empty Key, not an error.
func (c *Client) Register(ctx context.Context, username string, telegramID int64) (*KeyInfo, error) {
	const op = "register"

	env, err := c.do(ctx, op, http.MethodPost, c.baseURL+"/user/register", registerRequest{
		Username:   username,
		TelegramID: telegramID,
	}, "")
	if err != nil {
		return nil, err
	}
	if env.Success == nil {
		return nil, &Error{Op: op, Kind: KindMalformed, Message: "response carries no success flag"}
	}

	payload, err := decodeKeyPayload(env.Data)
	if err != nil {
		log.Warn().Err(err).Str("op", op).Msg("Registration succeeded but data has unexpected shape")
		return &KeyInfo{}, nil
	}
	return payload.info(), nil
}

// LookupKey fetches the current key record for a Telegram user. No
// credential is needed; the service trusts the bot for this route.
func (c *Client) LookupKey(ctx context.Context, telegramID int64) (*KeyInfo, error) {
	const op = "lookup"

	reqURL := fmt.Sprintf("%s/user/telegram/%d/key", c.baseURL, telegramID)
	env, err := c.do(ctx, op, http.MethodGet, reqURL, nil, "")
	if err != nil {
		return nil, err
	}
	return keyFromData(op, env.Data)
}

// RotateKey asks the service to replace the user's key, authenticating with
// the current one.
func (c *Client) RotateKey(ctx context.Context, username, currentKey string) (*KeyInfo, error) {
	const op = "rotate"

	if currentKey == "" {
		return nil, &Error{Op: op, Kind: KindUnauthorized, Message: "no current key"}
	}

	reqURL := fmt.Sprintf("%s/user/me/keys/%s/recreate", c.baseURL, url.PathEscape(username))
	env, err := c.do(ctx, op, http.MethodPut, reqURL, struct{}{}, currentKey)
	if err != nil {
		return nil, err
	}
	return keyFromData(op, env.Data)
}

type healthPayload struct {
	Status    string          `json:"status"`
	Latency   json.RawMessage `json:"latency"`
	Timestamp json.RawMessage `json:"timestamp"`
}

// Health probes the health endpoint.
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	const op = "health"

	start := time.Now()
	env, err := c.do(ctx, op, http.MethodGet, c.healthURL, nil, "")
	roundTrip := time.Since(start)
	if err != nil {
		return nil, err
	}

	var p healthPayload
	if len(env.Data) == 0 || json.Unmarshal(env.Data, &p) != nil || p.Status == "" {
		return nil, &Error{Op: op, Kind: KindMalformed, Message: "missing health data"}
	}

	status := &HealthStatus{
		Status:    p.Status,
		Timestamp: parseRawTime(p.Timestamp),
		RoundTrip: roundTrip,
	}
	status.Latency, status.LatencyMillis = parseLatency(p.Latency)
	return status, nil
}

func (c *Client) do(ctx context.Context, op, method, reqURL string, body any, apiKey string) (*envelope, error) {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, &Error{Op: op, Kind: KindTransport, Err: fmt.Errorf("encode request: %w", err)}
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		return nil, &Error{Op: op, Kind: KindTransport, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if apiKey != "" {
		req.Header.Set(apiKeyHeader, apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &Error{Op: op, Kind: KindTransport, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &Error{Op: op, Kind: KindTransport, Status: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Error{
			Op:      op,
			Kind:    kindForStatus(resp.StatusCode),
			Status:  resp.StatusCode,
			Message: env.remoteMessage(),
		}
	}

	if decodeErr != nil {
		return nil, &Error{Op: op, Kind: KindMalformed, Status: resp.StatusCode, Err: decodeErr}
	}

	// Some routes answer 200 with {success:false, code:N} instead of a status.
	if env.Success != nil && !*env.Success {
		kind := KindRemote
		if env.Code != 0 {
			kind = kindForStatus(env.Code)
		}
		return nil, &Error{Op: op, Kind: kind, Status: resp.StatusCode, Message: env.remoteMessage()}
	}

	return &env, nil
}

func kindForStatus(status int) Kind {
	switch status {
	case http.StatusConflict:
		return KindConflict
	case http.StatusNotFound:
		return KindNotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		return KindUnauthorized
	default:
		return KindRemote
	}
}

// keyFromData decodes data and insists on a non-empty key.
func keyFromData(op string, data json.RawMessage) (*KeyInfo, error) {
	payload, err := decodeKeyPayload(data)
	if err != nil {
		return nil, &Error{Op: op, Kind: KindMalformed, Err: err}
	}
	info := payload.info()
	if info.Key == "" {
		return nil, &Error{Op: op, Kind: KindMalformed, Message: "response carries no key"}
	}
	return info, nil
}

// decodeKeyPayload accepts either an object or a list whose first element is
// the active key.
func decodeKeyPayload(data json.RawMessage) (keyPayload, error) {
	var p keyPayload
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return p, fmt.Errorf("no data")
	}

	if trimmed[0] == '[' {
		var list []keyPayload
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return p, fmt.Errorf("decode key list: %w", err)
		}
		if len(list) == 0 {
			return p, fmt.Errorf("empty key list")
		}
		return list[0], nil
	}

	if err := json.Unmarshal(trimmed, &p); err != nil {
		return p, fmt.Errorf("decode key: %w", err)
	}
	return p, nil
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// parseRawTime handles timestamps sent either as strings or as epoch numbers
// (seconds or milliseconds).
func parseRawTime(raw json.RawMessage) time.Time {
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return parseTime(s)
	}
	var n int64
	if json.Unmarshal(raw, &n) == nil && n > 0 {
		if n > 1e12 {
			return time.UnixMilli(n)
		}
		return time.Unix(n, 0)
	}
	return time.Time{}
}

// parseLatency splits the service's latency field into its text or numeric
// form. Bare numbers are milliseconds.
func parseLatency(raw json.RawMessage) (string, *float64) {
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s, nil
	}
	var f float64
	if json.Unmarshal(raw, &f) == nil {
		return "", &f
	}
	return "", nil
}
