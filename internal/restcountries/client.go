package restcountries

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/five82/atlas/internal/metrics"
)

// Source defines the lookups atlas issues against the country API.
// This interface is implemented by *Client and can be used for testing.
type Source interface {
	FetchAll(ctx context.Context) ([]Country, error)
	FetchByName(ctx context.Context, name string) ([]Country, error)
	FetchByRegion(ctx context.Context, region string) ([]Country, error)
	FetchBySubregion(ctx context.Context, subregion string) ([]Country, error)
	FetchByLanguage(ctx context.Context, language string) ([]Country, error)
	FetchByCurrency(ctx context.Context, currency string) ([]Country, error)
	FetchByCapital(ctx context.Context, capital string) ([]Country, error)
	FetchByCode(ctx context.Context, code string) (Country, error)
}

// Ensure Client implements Source at compile time.
var _ Source = (*Client)(nil)

// Field selections sent with each query to keep payloads small.
const (
	CatalogFields = "name,capital,population,region,subregion,flags,cca3,borders,currencies,languages,tld"
	ListFields    = "name,capital,population,region,subregion,flags,cca3"
)

const (
	DefaultBaseURL        = "https://restcountries.com/v3.1"
	defaultUserAgent      = "atlas/0.1"
	defaultRequestTimeout = 10 * time.Second
	defaultRatePerSecond  = 5
)

// Options configure a Client. Zero values select defaults.
type Options struct {
	BaseURL           string
	Timeout           time.Duration
	RequestsPerSecond float64
	HTTPClient        *http.Client
	Metrics           metrics.Recorder
	Logger            *zap.Logger
}

// Client talks to the REST Countries HTTP API.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	userAgent string
	limiter   *rate.Limiter
	byCode    singleflight.Group
	metrics   metrics.Recorder
	logger    *zap.Logger
}

// NewClient builds a Client from opts.
func NewClient(opts Options) (*Client, error) {
	base, err := parseBaseURL(opts.BaseURL)
	if err != nil {
		return nil, err
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultRequestTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	perSecond := opts.RequestsPerSecond
	if perSecond <= 0 {
		perSecond = defaultRatePerSecond
	}
	burst := int(perSecond)
	if burst < 1 {
		burst = 1
	}

	recorder := opts.Metrics
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		baseURL:   base,
		http:      httpClient,
		userAgent: defaultUserAgent,
		limiter:   rate.NewLimiter(rate.Limit(perSecond), burst),
		metrics:   recorder,
		logger:    logger,
	}, nil
}

// FetchAll retrieves every country with the catalog field set.
func (c *Client) FetchAll(ctx context.Context) ([]Country, error) {
	return c.list(ctx, "all", "", CatalogFields)
}

// FetchByName retrieves countries whose name contains name.
func (c *Client) FetchByName(ctx context.Context, name string) ([]Country, error) {
	return c.list(ctx, "name", name, ListFields)
}

// FetchByRegion retrieves the countries of a region.
func (c *Client) FetchByRegion(ctx context.Context, region string) ([]Country, error) {
	return c.list(ctx, "region", region, ListFields)
}

// FetchBySubregion retrieves the countries of a subregion.
func (c *Client) FetchBySubregion(ctx context.Context, subregion string) ([]Country, error) {
	return c.list(ctx, "subregion", subregion, ListFields)
}

// FetchByLanguage retrieves the countries speaking a language.
func (c *Client) FetchByLanguage(ctx context.Context, language string) ([]Country, error) {
	return c.list(ctx, "lang", language, ListFields)
}

// FetchByCurrency retrieves the countries using a currency.
func (c *Client) FetchByCurrency(ctx context.Context, currency string) ([]Country, error) {
	return c.list(ctx, "currency", currency, ListFields)
}

// FetchByCapital retrieves the countries with a matching capital.
func (c *Client) FetchByCapital(ctx context.Context, capital string) ([]Country, error) {
	return c.list(ctx, "capital", capital, ListFields)
}

// FetchByCode retrieves the full record for a three-letter code. Concurrent
// calls for the same code share one request. The shared request is detached
// from any single caller's cancellation and bounded by the HTTP timeout; each
// caller stops waiting when its own ctx is done.
func (c *Client) FetchByCode(ctx context.Context, code string) (Country, error) {
	if c == nil {
		return Country{}, fmt.Errorf("client is nil")
	}
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return Country{}, fmt.Errorf("country code required")
	}
	shared := context.WithoutCancel(ctx)
	ch := c.byCode.DoChan(code, func() (any, error) {
		countries, err := c.fetch(shared, "code", "alpha", code, "")
		if err != nil {
			return Country{}, err
		}
		for _, country := range countries {
			if country.Code == code {
				return country, nil
			}
		}
		if len(countries) > 0 {
			return countries[0], nil
		}
		return Country{}, &APIError{Status: http.StatusNotFound, Path: "/alpha/" + code, Message: "Not Found"}
	})
	select {
	case <-ctx.Done():
		return Country{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Country{}, res.Err
		}
		return res.Val.(Country), nil
	}
}

func (c *Client) list(ctx context.Context, segment, value, fields string) ([]Country, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	kind := segment
	if segment == "lang" {
		kind = "language"
	}
	if segment != "all" && strings.TrimSpace(value) == "" {
		return nil, fmt.Errorf("%s lookup requires a value", kind)
	}
	return c.fetch(ctx, kind, segment, strings.TrimSpace(value), fields)
}

func (c *Client) fetch(ctx context.Context, kind, segment, value, fields string) ([]Country, error) {
	start := time.Now()
	countries, err := c.doFetch(ctx, segment, value, fields)
	c.metrics.RecordLookup(kind, time.Since(start), err)
	if err != nil {
		c.logger.Warn("country lookup failed",
			zap.String("kind", kind),
			zap.String("value", value),
			zap.Error(err),
		)
		return nil, err
	}
	c.logger.Debug("country lookup",
		zap.String("kind", kind),
		zap.String("value", value),
		zap.Int("results", len(countries)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return countries, nil
}

func (c *Client) doFetch(ctx context.Context, segment, value, fields string) ([]Country, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	path := "/" + segment
	if value != "" {
		path += "/" + url.PathEscape(value)
	}
	reqURL := *c.baseURL
	reqURL.RawPath = c.baseURL.EscapedPath() + path
	reqURL.Path, _ = url.PathUnescape(reqURL.RawPath)
	if fields != "" {
		reqURL.RawQuery = url.Values{"fields": []string{fields}}.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	c.metrics.RecordHTTPStatus(resp.StatusCode)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newAPIError(resp, path)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	countries, err := decodeCountries(body)
	if err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return countries, nil
}

// decodeCountries accepts either an array of records or a single record.
func decodeCountries(body []byte) ([]Country, error) {
	trimmed := bytes.TrimSpace(body)
	var payloads []countryPayload
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var single countryPayload
		if err := json.Unmarshal(trimmed, &single); err != nil {
			return nil, err
		}
		payloads = []countryPayload{single}
	} else if err := json.Unmarshal(trimmed, &payloads); err != nil {
		return nil, err
	}

	countries := make([]Country, 0, len(payloads))
	for _, p := range payloads {
		if country, ok := p.normalize(); ok {
			countries = append(countries, country)
		}
	}
	return countries, nil
}

func parseBaseURL(raw string) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		trimmed = DefaultBaseURL
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "https://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse api base url %q: %w", raw, err)
	}
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawPath = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
