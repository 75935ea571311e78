package importer

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/nonsonwune/censo_db/errors"
	"golang.org/x/time/rate"
)

const (
	DefaultIBGEBaseURL  = "https://servicodados.ibge.gov.br/api/v1/localidades"
	DefaultIBGETimeout  = 30 * time.Second
	DefaultIBGEAttempts = 3
)

// IBGEOptions configures an IBGEClient. Zero values take the defaults.
type IBGEOptions struct {
	BaseURL  string
	Timeout  time.Duration
	Attempts int
	// RetryWaitMin and RetryWaitMax bound the exponential backoff.
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	// RateLimit caps requests per second; zero disables pacing.
	RateLimit float64
	Logger    *slog.Logger
}

// IBGEClient fetches the IBGE "localidades" reference collections.
type IBGEClient struct {
	base    *url.URL
	client  *retryablehttp.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewIBGEClient builds a client with bounded retries and a per-attempt
// timeout.
func NewIBGEClient(opts IBGEOptions) (*IBGEClient, error) {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultIBGEBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultIBGETimeout
	}
	if opts.Attempts <= 0 {
		opts.Attempts = DefaultIBGEAttempts
	}
	if opts.RetryWaitMin <= 0 {
		opts.RetryWaitMin = time.Second
	}
	if opts.RetryWaitMax <= 0 {
		opts.RetryWaitMax = 10 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	base, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, errors.WithCodef(err, errors.ErrNetwork, "parsing IBGE base url %q", opts.BaseURL)
	}

	client := retryablehttp.NewClient()
	client.RetryMax = opts.Attempts - 1
	client.RetryWaitMin = opts.RetryWaitMin
	client.RetryWaitMax = opts.RetryWaitMax
	client.HTTPClient.Timeout = opts.Timeout
	client.Logger = opts.Logger

	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}

	return &IBGEClient{
		base:    base,
		client:  client,
		limiter: rate.NewLimiter(limit, 1),
		logger:  opts.Logger,
	}, nil
}

// URL returns the request URL of endpoint.
func (c *IBGEClient) URL(endpoint string) string {
	u := c.base.JoinPath(endpoint)
	q := u.Query()
	q.Set("orderBy", "nome")
	u.RawQuery = q.Encode()
	return u.String()
}

// Fetch downloads one collection and flattens every object into a Record
// keyed by dotted path. Transport failures, timeouts and non-2xx answers
// surviving the retries are NetworkError; a body that is not a JSON array
// of objects is DecodeError.
func (c *IBGEClient) Fetch(ctx context.Context, endpoint string) ([]Record, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, errors.WithCodef(err, errors.ErrNetwork, "waiting to fetch %s", endpoint)
	}

	target := c.URL(endpoint)
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, errors.WithCodef(err, errors.ErrNetwork, "building request for %s", endpoint)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.WithCodef(err, errors.ErrNetwork, "fetching %s", target)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drained so the connection can be reused.
		if _, err := io.Copy(io.Discard, io.LimitReader(resp.Body, 4096)); err != nil {
			c.logger.Debug("discarding error body", "endpoint", endpoint, "err", err)
		}
		return nil, errors.Newf(errors.ErrNetwork, "fetching %s: unexpected status %s", target, resp.Status)
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	var items []map[string]interface{}
	if err := dec.Decode(&items); err != nil {
		return nil, errors.WithCodef(err, errors.ErrDecode, "decoding %s", target)
	}

	records := make([]Record, len(items))
	for i, item := range items {
		records[i] = Flatten(item)
	}
	c.logger.Info("reference collection fetched",
		"endpoint", endpoint,
		"records", len(records),
		"duration", time.Since(start))
	return records, nil
}
