package knowledge

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// DefaultContext7URL is the Context7 documentation API.
const DefaultContext7URL = "https://context7.com/api"

// maxDocBytes bounds a documentation response.
const maxDocBytes = 1 << 20

// Context7Config configures a Context7Fetcher.
type Context7Config struct {
	BaseURL           string
	APIKey            string
	Timeout           time.Duration
	RequestsPerMinute int
	HTTPClient        *http.Client
}

// Context7Fetcher fetches library documentation from the Context7 API.
type Context7Fetcher struct {
	baseURL string
	apiKey  string
	client  *http.Client
	limiter *rate.Limiter
}

// NewContext7Fetcher creates a fetcher with defaults for unset fields.
func NewContext7Fetcher(cfg Context7Config) *Context7Fetcher {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultContext7URL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = 30
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &Context7Fetcher{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		client:  client,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1),
	}
}

// Fetch returns the plain-text documentation for topic. A library or
// topic without documentation yields "" and no error.
func (f *Context7Fetcher) Fetch(ctx context.Context, libraryID, topic string, tokens int) (string, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return "", err
	}

	q := url.Values{}
	q.Set("type", "txt")
	q.Set("topic", topic)
	q.Set("tokens", strconv.Itoa(tokens))
	endpoint := fmt.Sprintf("%s/v1/%s?%s", f.baseURL, strings.TrimPrefix(libraryID, "/"), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "text/plain")
	if f.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+f.apiKey)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("context7 request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read context7 response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return "", nil
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("context7 returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	text := strings.TrimSpace(string(body))
	if text == "No content available" {
		return "", nil
	}
	return text, nil
}
