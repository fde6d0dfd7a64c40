package monobank

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/Dan9191/bank-sync/internal/config"
	"github.com/Dan9191/bank-sync/internal/models"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	// PageSize is the maximum number of items the statement endpoint returns per call
	PageSize = 500

	tokenHeader  = "X-Token"
	maxErrorBody = 512
)

// Limiter blocks until the next provider request is allowed
type Limiter interface {
	Wait(ctx context.Context) error
}

// LimiterFactory creates the limiter guarding a single credential
type LimiterFactory func() Limiter

// Client handles integration with the bank statement API
type Client struct {
	baseURL    string
	client     *http.Client
	log        *logrus.Logger
	newLimiter LimiterFactory

	mu sync.Mutex
	// one entry per credential ever used, never pruned; credentials are set once
	// per user, so the map is bounded by the number of users
	limiters map[string]Limiter
}

// Option customizes a Client
type Option func(*Client)

// WithHTTPClient replaces the HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// WithLimiterFactory replaces the per-credential rate limiter
func WithLimiterFactory(f LimiterFactory) Option {
	return func(c *Client) { c.newLimiter = f }
}

// NewClient initializes a new statement API client
func NewClient(cfg *config.Config, log *logrus.Logger, opts ...Option) *Client {
	cooldown := cfg.ProviderCooldown
	c := &Client{
		baseURL: cfg.ProviderURL,
		client: &http.Client{
			Timeout: cfg.ProviderTimeout,
		},
		log: log,
		newLimiter: func() Limiter {
			if cooldown <= 0 {
				return rate.NewLimiter(rate.Inf, 1)
			}
			return rate.NewLimiter(rate.Every(cooldown), 1)
		},
		limiters: make(map[string]Limiter),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// limiterFor returns the limiter shared by every request made with credential.
// The map is keyed by a fingerprint so the secret is not retained.
func (c *Client) limiterFor(credential string) Limiter {
	sum := sha256.Sum256([]byte(credential))
	key := hex.EncodeToString(sum[:])

	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.limiters[key]
	if !ok {
		l = c.newLimiter()
		c.limiters[key] = l
	}
	return l
}

// Statement fetches the raw statement records of an account within [from, to].
// Every request waits for the credential's cooldown; full pages are followed by
// another request ending at the oldest returned record.
func (c *Client) Statement(ctx context.Context, credential, accountID string, from, to int64) ([]json.RawMessage, error) {
	limiter := c.limiterFor(credential)
	var records []json.RawMessage

	for {
		if err := limiter.Wait(ctx); err != nil {
			return records, &TransportError{Op: "wait for rate limit", Err: err}
		}

		url := fmt.Sprintf("%s/statement/%s/%d/%d", c.baseURL, accountID, from, to)
		body, err := c.get(ctx, url, credential)
		if err != nil {
			return records, err
		}

		var page []json.RawMessage
		if err := json.Unmarshal(body, &page); err != nil {
			return records, &ProviderError{Status: http.StatusOK, Body: truncate(body)}
		}
		records = append(records, page...)

		c.log.WithFields(logrus.Fields{
			"account_id": accountID,
			"from":       from,
			"to":         to,
			"items":      len(page),
		}).Debug("Fetched statement page")

		if len(page) < PageSize {
			return records, nil
		}
		oldest, ok := oldestTime(page)
		if !ok || oldest >= to || oldest < from {
			return records, nil
		}
		to = oldest
	}
}

// ClientInfo fetches the client's accounts. It is a single call and does not
// consume the statement cooldown.
func (c *Client) ClientInfo(ctx context.Context, credential string) (models.ClientInfo, error) {
	body, err := c.get(ctx, c.baseURL+"/client-info", credential)
	if err != nil {
		return models.ClientInfo{}, err
	}

	var info models.ClientInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return models.ClientInfo{}, &ProviderError{Status: http.StatusOK, Body: truncate(body)}
	}

	c.log.WithField("accounts", len(info.Accounts)).Debug("Fetched client info")
	return info, nil
}

// get sends an authenticated GET request. The credential only travels in the
// header and never reaches errors or logs.
func (c *Client) get(ctx context.Context, url, credential string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set(tokenHeader, credential)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &TransportError{Op: "request failed", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: "failed to read response", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &ProviderError{Status: resp.StatusCode, Body: truncate(body)}
	}
	return body, nil
}

func oldestTime(page []json.RawMessage) (int64, bool) {
	var oldest int64
	found := false
	for _, raw := range page {
		var item struct {
			Time int64 `json:"time"`
		}
		if err := json.Unmarshal(raw, &item); err != nil || item.Time <= 0 {
			continue
		}
		if !found || item.Time < oldest {
			oldest = item.Time
			found = true
		}
	}
	return oldest, found
}

func truncate(body []byte) string {
	if len(body) > maxErrorBody {
		return string(body[:maxErrorBody])
	}
	return string(body)
}

// Ensure rate.Limiter satisfies Limiter at compile time.
var _ Limiter = (*rate.Limiter)(nil)
