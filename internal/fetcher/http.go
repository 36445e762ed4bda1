package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"promo-scheduler/internal/promotion"
)

// Compile-time interface check.
var _ ConfigFetcher = (*HTTPFetcher)(nil)

const maxConfigBytes = 4 << 20

// HTTPFetcher GETs a JSON configuration from a URL.
type HTTPFetcher struct {
	url      string
	required string
	client   *http.Client
	maxBytes int64
}

func NewHTTPFetcher(url, requiredSchemaVersion string, timeout time.Duration) *HTTPFetcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPFetcher{
		url:      url,
		required: requiredSchemaVersion,
		client:   &http.Client{Timeout: timeout},
		maxBytes: maxConfigBytes,
	}
}

func (f *HTTPFetcher) FetchConfig(ctx context.Context) (promotion.Configuration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return promotion.Configuration{}, &NetworkError{Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return promotion.Configuration{}, &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return promotion.Configuration{}, fmt.Errorf("%w: status %d", ErrInvalidResponse, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return promotion.Configuration{}, &NetworkError{Err: err}
	}
	if int64(len(data)) > f.maxBytes {
		return promotion.Configuration{}, fmt.Errorf("%w: response too large (over %d bytes)", ErrInvalidResponse, f.maxBytes)
	}
	return decode(data, formatJSON, f.required)
}
