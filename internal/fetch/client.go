// Package fetch retrieves raw catalog payloads from the upstream API.
package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/jonesrussell/catalogwatch/internal/config"
	"github.com/jonesrussell/catalogwatch/internal/logger"
	"github.com/jonesrussell/catalogwatch/internal/models"
)

// maxPayloadBytes bounds one upstream response body.
const maxPayloadBytes = 32 << 20

// kindPaths maps each payload kind to its upstream endpoint.
var kindPaths = map[models.PayloadKind]string{
	models.KindModels:    "/api/v1/models",
	models.KindEndpoints: "/api/v1/endpoints",
	models.KindProviders: "/api/v1/providers",
	models.KindAuthors:   "/api/v1/authors",
	models.KindApps:      "/api/v1/apps",
	models.KindUptimes:   "/api/v1/uptimes",
}

// Client fetches catalog payloads over HTTP. The fetch is the only blocking
// I/O in a crawl; the configured timeout bounds it per request.
type Client struct {
	baseURL   string
	userAgent string
	http      *http.Client
	logger    logger.Logger
}

func NewClient(cfg config.UpstreamConfig, log logger.Logger) *Client {
	return &Client{
		baseURL:   cfg.BaseURL,
		userAgent: cfg.UserAgent,
		http:      &http.Client{Timeout: cfg.FetchTimeout},
		logger:    log,
	}
}

// Fetch retrieves the raw payload for one kind. Non-2xx responses and
// timeouts are returned as errors; the caller treats them as a failed crawl
// for that category.
func (c *Client) Fetch(ctx context.Context, kind models.PayloadKind) (json.RawMessage, error) {
	path, ok := kindPaths[kind]
	if !ok {
		return nil, fmt.Errorf("unknown payload kind %q", kind)
	}

	url := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", kind, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", kind, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("fetch %s: unexpected status %d", kind, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s payload: %w", kind, err)
	}

	c.logger.Debug("Fetched payload",
		logger.String("kind", string(kind)),
		logger.Int("bytes", len(body)),
	)

	return body, nil
}
