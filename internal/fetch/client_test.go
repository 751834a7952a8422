package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/catalogwatch/internal/config"
	"github.com/jonesrussell/catalogwatch/internal/logger"
	"github.com/jonesrussell/catalogwatch/internal/models"
)

func newTestClient(baseURL string, timeout time.Duration) *Client {
	return NewClient(config.UpstreamConfig{
		BaseURL:      baseURL,
		FetchTimeout: timeout,
		UserAgent:    "catalogwatch-test",
	}, logger.NewNop())
}

func TestClient_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/models", r.URL.Path)
		assert.Equal(t, "catalogwatch-test", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"id":"acme/gpt-1"}]}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, 5*time.Second)
	payload, err := client.Fetch(context.Background(), models.KindModels)
	require.NoError(t, err)
	assert.JSONEq(t, `{"data":[{"id":"acme/gpt-1"}]}`, string(payload))
}

func TestClient_Fetch_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, 5*time.Second)
	_, err := client.Fetch(context.Background(), models.KindProviders)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 502")
}

func TestClient_Fetch_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, 5*time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := client.Fetch(ctx, models.KindApps)
	require.Error(t, err)
}

func TestClient_Fetch_UnknownKind(t *testing.T) {
	client := newTestClient("http://localhost:0", time.Second)
	_, err := client.Fetch(context.Background(), models.PayloadKind("bogus"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown payload kind")
}
