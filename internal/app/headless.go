package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/five82/atlas/internal/detail"
	"github.com/five82/atlas/internal/listing"
	"github.com/five82/atlas/internal/restcountries"
	"github.com/five82/atlas/internal/session"
)

// SearchError carries the user-facing message of a failed listing lookup.
type SearchError struct {
	Message string
	Err     error
}

func (e *SearchError) Error() string { return e.Message }

func (e *SearchError) Unwrap() error { return e.Err }

// LoadCatalog fetches the full collection once into the catalog store.
func (a *App) LoadCatalog(ctx context.Context) error {
	return refresh(ctx, a.Catalog, a.Source, a.Logger.Named("refresher"))
}

// Search runs the listing reconciler to completion for term and filter.
// With neither set it returns the full catalog.
func (a *App) Search(ctx context.Context, term string, filter listing.Filter) ([]restcountries.Country, error) {
	r := a.NewReconciler()

	if strings.TrimSpace(term) == "" && !filter.Active() {
		if err := a.LoadCatalog(ctx); err != nil {
			return nil, fmt.Errorf("load catalog: %w", err)
		}
		r.SetCatalog(a.Catalog.Countries())
		return r.Results(), nil
	}

	if filter.Active() {
		if err := listing.Drive(ctx, r, a.Source, r.SetFilter(filter)); err != nil {
			return nil, &SearchError{Message: r.Message(), Err: err}
		}
	}
	if strings.TrimSpace(term) != "" {
		if err := listing.Drive(ctx, r, a.Source, r.SetSearchTerm(term)); err != nil {
			return nil, &SearchError{Message: r.Message(), Err: err}
		}
	}
	return r.Results(), nil
}

// SearchCapital looks countries up by capital city, sorted by name.
func (a *App) SearchCapital(ctx context.Context, capital string) ([]restcountries.Country, error) {
	countries, err := a.Source.FetchByCapital(ctx, capital)
	if err != nil {
		return nil, &SearchError{Message: "No countries found matching that capital.", Err: err}
	}
	restcountries.SortByName(countries)
	return countries, nil
}

// Show resolves one country with its borders against whatever is loaded.
func (a *App) Show(ctx context.Context, code string) (detail.Detail, error) {
	return a.Resolver.Resolve(ctx, code, a.Catalog.Countries())
}

// Login starts a session for email.
func (a *App) Login(email, name string) (session.User, error) {
	return a.Session.Login(email, name)
}

// Logout ends the current session.
func (a *App) Logout() error {
	return a.Session.Logout()
}

// Favorites returns the signed-in user's favorites, or ErrLoginRequired.
func (a *App) Favorites() ([]restcountries.Country, error) {
	if !a.Session.LoggedIn() {
		return nil, session.ErrLoginRequired
	}
	return a.Session.Favorites(), nil
}

// AddFavorite resolves code and adds it to the favorites list.
func (a *App) AddFavorite(ctx context.Context, code string) (restcountries.Country, error) {
	if !a.Session.LoggedIn() {
		return restcountries.Country{}, session.ErrLoginRequired
	}
	code = strings.ToUpper(strings.TrimSpace(code))
	country, ok := a.Catalog.Lookup(code)
	if !ok {
		fetched, err := a.Source.FetchByCode(ctx, code)
		if err != nil {
			if restcountries.IsNotFound(err) {
				return restcountries.Country{}, fmt.Errorf("unknown country code %q", code)
			}
			return restcountries.Country{}, fmt.Errorf("lookup %s: %w", code, err)
		}
		country = fetched
	}
	if err := a.Session.AddFavorite(country); err != nil {
		return restcountries.Country{}, err
	}
	return country, nil
}

// RemoveFavorite drops code from the favorites list.
func (a *App) RemoveFavorite(code string) (restcountries.Country, bool, error) {
	return a.Session.RemoveFavorite(strings.ToUpper(strings.TrimSpace(code)))
}

// IsLoginRequired reports whether err is a permission failure.
func IsLoginRequired(err error) bool {
	return errors.Is(err, session.ErrLoginRequired)
}
