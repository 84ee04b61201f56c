package app

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/five82/atlas/internal/kv"
	"github.com/five82/atlas/internal/listing"
	"github.com/five82/atlas/internal/restcountries"
	"github.com/five82/atlas/internal/session"
)

var notFound = &restcountries.APIError{Status: 404, Message: "Not Found"}

func country(code, name, region string, borders ...string) restcountries.Country {
	return restcountries.Country{
		Code:    code,
		Name:    restcountries.Name{Common: name},
		Region:  region,
		Borders: borders,
	}
}

// fakeSource serves a small fixed world.
type fakeSource struct {
	mu      sync.Mutex
	catalog []restcountries.Country
	calls   []string
}

func newFakeSource() *fakeSource {
	return &fakeSource{catalog: []restcountries.Country{
		country("FRA", "France", "Europe", "BEL", "DEU"),
		country("BEL", "Belgium", "Europe", "FRA", "DEU"),
		country("DEU", "Germany", "Europe", "FRA", "BEL"),
		country("GBR", "United Kingdom", "Europe"),
		country("USA", "United States", "Americas"),
		country("JPN", "Japan", "Asia"),
	}}
}

func (f *fakeSource) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeSource) filter(match func(restcountries.Country) bool) ([]restcountries.Country, error) {
	var out []restcountries.Country
	for _, c := range f.catalog {
		if match(c) {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		return nil, notFound
	}
	return out, nil
}

func (f *fakeSource) FetchAll(ctx context.Context) ([]restcountries.Country, error) {
	f.record("all")
	out := make([]restcountries.Country, len(f.catalog))
	copy(out, f.catalog)
	return out, nil
}

func (f *fakeSource) FetchByName(ctx context.Context, name string) ([]restcountries.Country, error) {
	f.record("name:" + name)
	return f.filter(func(c restcountries.Country) bool {
		return strings.Contains(strings.ToLower(c.Name.Common), strings.ToLower(name))
	})
}

func (f *fakeSource) FetchByRegion(ctx context.Context, region string) ([]restcountries.Country, error) {
	f.record("region:" + region)
	return f.filter(func(c restcountries.Country) bool { return strings.EqualFold(c.Region, region) })
}

func (f *fakeSource) FetchBySubregion(ctx context.Context, subregion string) ([]restcountries.Country, error) {
	f.record("subregion:" + subregion)
	return nil, notFound
}

func (f *fakeSource) FetchByLanguage(ctx context.Context, language string) ([]restcountries.Country, error) {
	f.record("language:" + language)
	return nil, notFound
}

func (f *fakeSource) FetchByCurrency(ctx context.Context, currency string) ([]restcountries.Country, error) {
	f.record("currency:" + currency)
	return nil, notFound
}

func (f *fakeSource) FetchByCapital(ctx context.Context, capital string) ([]restcountries.Country, error) {
	f.record("capital:" + capital)
	return nil, notFound
}

func (f *fakeSource) FetchByCode(ctx context.Context, code string) (restcountries.Country, error) {
	f.record("code:" + code)
	for _, c := range f.catalog {
		if c.Code == code {
			return c, nil
		}
	}
	return restcountries.Country{}, notFound
}

func (f *fakeSource) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func openTestApp(t *testing.T, store kv.Store) (*App, *fakeSource) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())

	src := newFakeSource()
	a, err := Open(context.Background(), Options{
		ConfigPath: filepath.Join(t.TempDir(), "missing.toml"),
		PrefsPath:  filepath.Join(t.TempDir(), "prefs.toml"),
		Source:     src,
		Store:      store,
		Logger:     zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })
	return a, src
}

func names(list []restcountries.Country) string {
	out := make([]string, 0, len(list))
	for _, c := range list {
		out = append(out, c.Name.Common)
	}
	return strings.Join(out, ",")
}

func TestSearch_TermAndFilterCompose(t *testing.T) {
	a, _ := openTestApp(t, kv.NewMemory())
	ctx := context.Background()

	got, err := a.Search(ctx, "united", listing.Filter{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if names(got) != "United Kingdom,United States" {
		t.Fatalf("term only = %s", names(got))
	}

	got, err = a.Search(ctx, "united", listing.Filter{Type: listing.FilterRegion, Value: "Europe"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if names(got) != "United Kingdom" {
		t.Fatalf("term and region = %s", names(got))
	}

	got, err = a.Search(ctx, "", listing.Filter{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 6 || got[0].Name.Common != "Belgium" {
		t.Fatalf("catalog = %s", names(got))
	}
}

func TestSearch_FailureCarriesMessage(t *testing.T) {
	a, _ := openTestApp(t, kv.NewMemory())

	_, err := a.Search(context.Background(), "", listing.Filter{Type: listing.FilterCurrency, Value: "xyz"})
	var serr *SearchError
	if !errors.As(err, &serr) {
		t.Fatalf("err = %v, want SearchError", err)
	}
	if serr.Message != "No countries found matching the selected currency." {
		t.Fatalf("message = %q", serr.Message)
	}
	if !restcountries.IsNotFound(err) {
		t.Fatalf("not-found cause lost")
	}
}

func TestShow_UsesLoadedCatalog(t *testing.T) {
	a, src := openTestApp(t, kv.NewMemory())
	ctx := context.Background()

	if err := a.LoadCatalog(ctx); err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}
	d, err := a.Show(ctx, "fra")
	if err != nil {
		t.Fatalf("Show: %v", err)
	}
	if names(d.Borders) != "Belgium,Germany" {
		t.Fatalf("borders = %s", names(d.Borders))
	}
	if calls := src.Calls(); len(calls) != 1 || calls[0] != "all" {
		t.Fatalf("calls = %v, want only the catalog load", calls)
	}
}

func TestFavorites_RequireLoginThenPersist(t *testing.T) {
	store := kv.NewMemory()
	a, _ := openTestApp(t, store)
	ctx := context.Background()

	if _, err := a.AddFavorite(ctx, "FRA"); !IsLoginRequired(err) {
		t.Fatalf("AddFavorite without login err = %v", err)
	}
	if _, err := a.Favorites(); !errors.Is(err, session.ErrLoginRequired) {
		t.Fatalf("Favorites without login err = %v", err)
	}

	if _, err := a.Login("me@example.com", "Me"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	added, err := a.AddFavorite(ctx, " jpn ")
	if err != nil || added.Code != "JPN" {
		t.Fatalf("AddFavorite = %#v, %v", added, err)
	}
	if _, err := a.AddFavorite(ctx, "ZZZ"); err == nil || !strings.Contains(err.Error(), "unknown country code") {
		t.Fatalf("AddFavorite(ZZZ) err = %v", err)
	}

	// A second app over the same store restores the session.
	b, _ := openTestApp(t, store)
	favs, err := b.Favorites()
	if err != nil {
		t.Fatalf("Favorites: %v", err)
	}
	if names(favs) != "Japan" {
		t.Fatalf("favorites = %s", names(favs))
	}

	removed, ok, err := b.RemoveFavorite("jpn")
	if err != nil || !ok || removed.Code != "JPN" {
		t.Fatalf("RemoveFavorite = %#v, %v, %v", removed, ok, err)
	}
	if err := b.Logout(); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if _, err := b.Favorites(); !IsLoginRequired(err) {
		t.Fatalf("Favorites after logout err = %v", err)
	}
}

func TestOpen_EphemeralUsesMemoryStore(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	a, err := Open(context.Background(), Options{
		ConfigPath: filepath.Join(t.TempDir(), "missing.toml"),
		Ephemeral:  true,
		Source:     newFakeSource(),
		Logger:     zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = a.Close() }()

	if a.Session.LoggedIn() {
		t.Fatalf("fresh ephemeral app has a session")
	}
	if a.NewReconciler().Debounce() != a.Config.SearchDebounce {
		t.Fatalf("reconciler debounce not taken from config")
	}
}
