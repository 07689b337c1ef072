package source

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"painel-pcm-backend/config"
	"painel-pcm-backend/internal/model"
	"painel-pcm-backend/internal/parse"
)

// Result is the adapted content of one upstream response.
type Result struct {
	Records         []model.Record
	SourceUpdatedAt *time.Time
}

// Fetcher retrieves the current record collection.
type Fetcher interface {
	Fetch(ctx context.Context) (Result, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context) (Result, error)

// Fetch implements Fetcher.
func (f FetcherFunc) Fetch(ctx context.Context) (Result, error) { return f(ctx) }

// HTTPFetcher reads the activity endpoint over HTTP.
type HTTPFetcher struct {
	cfg     config.SourceConfig
	client  *http.Client
	adapter parse.Adapter
}

// NewHTTPFetcher builds a fetcher for the configured endpoint.
func NewHTTPFetcher(cfg config.SourceConfig) *HTTPFetcher {
	var transport http.RoundTripper = &http.Transport{}
	if cfg.HTTPProxy != "" {
		proxyURL, err := url.Parse(cfg.HTTPProxy)
		if err != nil {
			log.Printf("Warning: Invalid proxy URL %q: %v. Source will not use a proxy.", cfg.HTTPProxy, err)
		} else {
			transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
		}
	}

	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &HTTPFetcher{
		cfg: cfg,
		client: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
		adapter: parse.Adapter{Location: cfg.Location()},
	}
}

// Fetch implements Fetcher.
func (f *HTTPFetcher) Fetch(ctx context.Context) (Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.cfg.URL, nil)
	if err != nil {
		return Result{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	for key, value := range f.cfg.Headers {
		req.Header.Set(key, value)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("received non-200 status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("failed to read response body: %w", err)
	}

	payload, err := parse.Decode(body)
	if err != nil {
		return Result{}, fmt.Errorf("failed to decode api response: %w", err)
	}

	return Result{
		Records:         f.adapter.Records(payload.Rows),
		SourceUpdatedAt: parse.ParseTimestamp(payload.LastUpdated, f.adapter.Location),
	}, nil
}
