// Package detail resolves one country and its bordering countries, preferring
// the already loaded collection over network lookups.
package detail

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/five82/atlas/internal/restcountries"
)

// LoadFailedMessage is shown when the country itself cannot be resolved.
const LoadFailedMessage = "Failed to load country details. Please try again."

// Detail is a resolved country with its borders in border-list order.
// Missing holds border codes that could not be resolved.
type Detail struct {
	Country restcountries.Country
	Borders []restcountries.Country
	Missing []string
}

// Error wraps a failure to resolve the requested country.
type Error struct {
	Code string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (%s): %v", LoadFailedMessage, e.Code, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Resolver looks up countries through a CodeFetcher.
type Resolver struct {
	source CodeFetcher
	logger *zap.Logger
}

// CodeFetcher is the single lookup the resolver needs.
type CodeFetcher interface {
	FetchByCode(ctx context.Context, code string) (restcountries.Country, error)
}

// NewResolver returns a Resolver. A nil logger disables logging.
func NewResolver(source CodeFetcher, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{source: source, logger: logger}
}

// Resolve returns the country for code together with its borders.
//
// The country comes from loaded when present, else from one lookup. Borders
// are matched against loaded in a single pass; only codes missing from
// loaded are looked up, one at a time. A failed border lookup is logged and
// skipped.
func (r *Resolver) Resolve(ctx context.Context, code string, loaded []restcountries.Country) (Detail, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return Detail{}, &Error{Code: code, Err: fmt.Errorf("country code required")}
	}

	index := make(map[string]restcountries.Country, len(loaded))
	for _, c := range loaded {
		index[c.Code] = c
	}

	country, ok := index[code]
	if !ok {
		fetched, err := r.source.FetchByCode(ctx, code)
		if err != nil {
			r.logger.Warn("country detail lookup failed", zap.String("code", code), zap.Error(err))
			return Detail{}, &Error{Code: code, Err: err}
		}
		country = fetched
	}

	d := Detail{Country: country}
	if len(country.Borders) == 0 {
		return d, nil
	}

	resolved := make(map[string]restcountries.Country, len(country.Borders))
	for _, b := range country.Borders {
		if c, ok := index[b]; ok {
			resolved[b] = c
		}
	}

	for _, b := range country.Borders {
		if _, ok := resolved[b]; ok {
			continue
		}
		if err := ctx.Err(); err != nil {
			d.Missing = append(d.Missing, b)
			continue
		}
		c, err := r.source.FetchByCode(ctx, b)
		if err != nil {
			r.logger.Warn("border lookup failed",
				zap.String("country", code),
				zap.String("border", b),
				zap.Error(err),
			)
			d.Missing = append(d.Missing, b)
			continue
		}
		resolved[b] = c
	}

	d.Borders = make([]restcountries.Country, 0, len(resolved))
	for _, b := range country.Borders {
		if c, ok := resolved[b]; ok {
			d.Borders = append(d.Borders, c)
		}
	}
	return d, nil
}
