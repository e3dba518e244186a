package quote

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"tickbar/internal/util"
)

// Compile-time interface check.
var _ Source = (*HTTPSource)(nil)

// HTTPSource fetches quotes from a plain-text HTTP endpoint that returns a
// delimited record, e.g.
//
//	var hq_str_hf_GC="2391.5,0.35,2391.3,2391.7,2395.1,2383.2,...";
//
// The payload is scanned field by field and the first value that parses as
// a finite float inside the configured bounds is taken as the price. This
// tolerates vendor prefixes, non-UTF-8 name fields, and trailing noise.
type HTTPSource struct {
	url       string
	delimiter string
	bounds    Bounds
	client    *http.Client
	limiter   *util.RateLimiter
}

// NewHTTPSource creates an HTTPSource for the given endpoint. A
// ratePerMin of 0 disables rate limiting.
func NewHTTPSource(url, delimiter string, timeout time.Duration, bounds Bounds, ratePerMin int) *HTTPSource {
	if delimiter == "" {
		delimiter = ","
	}
	s := &HTTPSource{
		url:       url,
		delimiter: delimiter,
		bounds:    bounds,
		client:    &http.Client{Timeout: timeout},
	}
	if ratePerMin > 0 {
		s.limiter = util.NewRateLimiter(ratePerMin)
	}
	return s
}

// Fetch performs one GET against the quote endpoint and extracts the price.
func (s *HTTPSource) Fetch(ctx context.Context) (Quote, error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return Quote{}, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return Quote{}, fmt.Errorf("building quote request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return Quote{}, fmt.Errorf("fetching quote: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Quote{}, fmt.Errorf("quote endpoint returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return Quote{}, fmt.Errorf("reading quote response: %w", err)
	}

	price, ok := s.extractPrice(string(body))
	if !ok {
		return Quote{}, fmt.Errorf("no plausible price in quote response (%d bytes)", len(body))
	}
	return Quote{Price: price}, nil
}

// extractPrice scans the delimited payload for the first field that parses
// as a plausible price.
func (s *HTTPSource) extractPrice(body string) (float64, bool) {
	payload := unwrapQuoted(body)

	for _, field := range strings.Split(payload, s.delimiter) {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			continue
		}
		if s.bounds.Plausible(v) {
			return v, true
		}
	}
	return 0, false
}

// unwrapQuoted strips a `var x="...";` wrapper when present, returning the
// content between the outermost double quotes. Bodies without a quoted
// section are returned unchanged.
func unwrapQuoted(body string) string {
	first := strings.IndexByte(body, '"')
	last := strings.LastIndexByte(body, '"')
	if first >= 0 && last > first {
		return body[first+1 : last]
	}
	return body
}
