package adapters

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/brettbedarf/termfs/internal/util"
)

type HTTPMethod = string

const (
	HTTPMethodGet  HTTPMethod = "GET"
	HTTPMethodPost HTTPMethod = "POST"
)

// MaxContentSize is the largest body accepted from a source
const MaxContentSize = 1 << 20

var ErrContentTooLarge = errors.New("source content too large")

// HTTPClient is the subset of *http.Client used by HTTP sources
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

var defaultClient HTTPClient = &http.Client{Timeout: 30 * time.Second}

// HTTPSource fetches content with a single request
type HTTPSource struct {
	URL     string            `json:"url"`
	Method  *HTTPMethod       `json:"method,omitempty"` // Default is GET
	Headers map[string]string `json:"headers,omitempty"`

	client HTTPClient
}

// NewHTTPFactory returns a factory whose sources share client
func NewHTTPFactory(client HTTPClient) Factory {
	return func(raw []byte) (Source, error) {
		var src HTTPSource
		if err := json.Unmarshal(raw, &src); err != nil {
			return nil, err
		}
		src.URL = strings.TrimSpace(src.URL)
		if err := validateURL(src.URL); err != nil {
			return nil, err
		}
		src.client = client
		return &src, nil
	}
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid source url %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid source url %q: scheme must be http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid source url %q: missing host", raw)
	}
	if u.User != nil {
		return fmt.Errorf("invalid source url %q: user info not allowed", raw)
	}
	return nil
}

func (h *HTTPSource) newRequest(ctx context.Context) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, h.getMethod(), h.URL, nil)
	if err != nil {
		return nil, err
	}

	// Add custom headers
	for k, v := range h.Headers {
		req.Header.Set(k, v)
	}

	return req, nil
}

func (h *HTTPSource) Fetch(ctx context.Context) (string, error) {
	logger := util.GetLogger("HTTPSource.Fetch")

	req, err := h.newRequest(ctx)
	if err != nil {
		return "", err
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%s %s: unexpected status %s", req.Method, h.URL, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxContentSize+1))
	if err != nil {
		return "", err
	}
	if len(body) > MaxContentSize {
		return "", fmt.Errorf("%w: %s", ErrContentTooLarge, h.URL)
	}
	logger.Debug().Str("url", h.URL).Int("bytes", len(body)).Msg("Fetched source")
	return string(body), nil
}

func (h *HTTPSource) getMethod() HTTPMethod {
	if h.Method != nil {
		return *h.Method
	}
	return HTTPMethodGet
}
