package monobank

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Dan9191/bank-sync/internal/config"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testToken = "super-secret-token"

type countingLimiter struct {
	mu    sync.Mutex
	waits int
}

func (l *countingLimiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.waits++
	return ctx.Err()
}

func (l *countingLimiter) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.waits
}

func newTestClient(t *testing.T, srv *httptest.Server, opts ...Option) *Client {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)
	cfg := &config.Config{
		ProviderURL:      srv.URL + "/personal",
		ProviderTimeout:  time.Second,
		ProviderCooldown: 0,
	}
	return NewClient(cfg, log, opts...)
}

func TestStatement(t *testing.T) {
	var gotPath, gotToken string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotToken = r.Header.Get("X-Token")
		fmt.Fprint(w, `[{"id":"a","amount":-15000,"time":1700000000,"mcc":5411,"currencyCode":980},{"amount":5000,"time":1700000100,"currencyCode":980}]`)
	}))
	defer srv.Close()

	limiter := &countingLimiter{}
	c := newTestClient(t, srv, WithLimiterFactory(func() Limiter { return limiter }))

	records, err := c.Statement(context.Background(), testToken, "acc1", 1699990000, 1700001000)
	require.NoError(t, err)

	assert.Len(t, records, 2)
	assert.Equal(t, "/personal/statement/acc1/1699990000/1700001000", gotPath)
	assert.Equal(t, testToken, gotToken)
	assert.Equal(t, 1, limiter.count())
}

func TestStatementSharesLimiterPerCredential(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[]`)
	}))
	defer srv.Close()

	var created []*countingLimiter
	c := newTestClient(t, srv, WithLimiterFactory(func() Limiter {
		l := &countingLimiter{}
		created = append(created, l)
		return l
	}))

	ctx := context.Background()
	for _, acc := range []string{"a", "b", "c"} {
		_, err := c.Statement(ctx, testToken, acc, 1, 2)
		require.NoError(t, err)
	}
	_, err := c.Statement(ctx, "other-token", "d", 1, 2)
	require.NoError(t, err)

	require.Len(t, created, 2)
	assert.Equal(t, 3, created[0].count())
	assert.Equal(t, 1, created[1].count())
}

func TestStatementCooldownBetweenRequests(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[]`)
	}))
	defer srv.Close()

	log := logrus.New()
	log.SetOutput(io.Discard)
	c := NewClient(&config.Config{
		ProviderURL:      srv.URL,
		ProviderTimeout:  time.Second,
		ProviderCooldown: 80 * time.Millisecond,
	}, log)

	ctx := context.Background()
	start := time.Now()
	_, err := c.Statement(ctx, testToken, "a", 1, 2)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 60*time.Millisecond, "first request must not wait")

	_, err = c.Statement(ctx, testToken, "b", 1, 2)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 70*time.Millisecond, "second request must wait for the cooldown")
}

func TestStatementPagination(t *testing.T) {
	var mu sync.Mutex
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.Path)
		call := len(paths)
		mu.Unlock()

		var items []map[string]any
		if call == 1 {
			for i := 0; i < PageSize; i++ {
				items = append(items, map[string]any{"amount": -1, "time": 2000 - i, "currencyCode": 980})
			}
		} else {
			items = append(items, map[string]any{"amount": -1, "time": 1500, "currencyCode": 980})
		}
		assert.NoError(t, json.NewEncoder(w).Encode(items))
	}))
	defer srv.Close()

	limiter := &countingLimiter{}
	c := newTestClient(t, srv, WithLimiterFactory(func() Limiter { return limiter }))

	records, err := c.Statement(context.Background(), testToken, "acc", 1000, 3000)
	require.NoError(t, err)

	assert.Len(t, records, PageSize+1)
	require.Len(t, paths, 2)
	assert.Equal(t, "/personal/statement/acc/1000/3000", paths[0])
	assert.Equal(t, "/personal/statement/acc/1000/1501", paths[1])
	assert.Equal(t, 2, limiter.count())
}

func TestStatementProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"errorDescription":"Too many requests"}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := c.Statement(context.Background(), testToken, "acc", 1, 2)

	var perr *ProviderError
	require.True(t, errors.As(err, &perr), "got %v", err)
	assert.Equal(t, http.StatusTooManyRequests, perr.Status)
	assert.Contains(t, perr.Body, "Too many requests")
	assert.False(t, perr.Unauthorized())
	assert.NotContains(t, err.Error(), testToken)
}

func TestStatementUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := c.Statement(context.Background(), testToken, "acc", 1, 2)

	assert.True(t, IsUnauthorized(err))
}

func TestStatementMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"not":"an array"}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := c.Statement(context.Background(), testToken, "acc", 1, 2)

	var perr *ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, http.StatusOK, perr.Status)
}

func TestStatementTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()
	defer close(release)

	c := newTestClient(t, srv, WithHTTPClient(&http.Client{Timeout: 50 * time.Millisecond}))
	_, err := c.Statement(context.Background(), testToken, "acc", 1, 2)

	var terr *TransportError
	require.True(t, errors.As(err, &terr), "got %v", err)
	assert.NotContains(t, err.Error(), testToken)
}

func TestStatementConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	c := newTestClient(t, srv)
	srv.Close()

	_, err := c.Statement(context.Background(), testToken, "acc", 1, 2)

	var terr *TransportError
	assert.True(t, errors.As(err, &terr), "got %v", err)
}

func TestClientInfo(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		fmt.Fprint(w, `{"clientId":"c1","name":"Test","accounts":[{"id":"acc1","maskedPan":["537541******1234","444111******9999"],"iban":"UA213223130000026007233566001","currencyCode":980,"balance":1234567,"type":"black"}]}`)
	}))
	defer srv.Close()

	limiter := &countingLimiter{}
	c := newTestClient(t, srv, WithLimiterFactory(func() Limiter { return limiter }))

	info, err := c.ClientInfo(context.Background(), testToken)
	require.NoError(t, err)

	assert.Equal(t, "/personal/client-info", gotPath)
	require.Len(t, info.Accounts, 1)
	acc := info.Accounts[0]
	assert.Equal(t, "acc1", acc.ID)
	assert.Equal(t, []string{"537541******1234", "444111******9999"}, acc.MaskedPan)
	assert.Equal(t, int64(1234567), acc.Balance)
	assert.Equal(t, 980, acc.CurrencyCode)
	assert.Zero(t, limiter.count(), "client info is not rate limited")
}

func TestClientInfoErrorDoesNotLeakCredential(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unknown token", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := c.ClientInfo(context.Background(), testToken)

	require.Error(t, err)
	assert.True(t, IsUnauthorized(err))
	assert.False(t, strings.Contains(err.Error(), testToken))
}
