package session

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/five82/atlas/internal/kv"
	"github.com/five82/atlas/internal/restcountries"
)

func country(code, name string) restcountries.Country {
	return restcountries.Country{Code: code, Name: restcountries.Name{Common: name}}
}

func codes(list []restcountries.Country) []string {
	out := make([]string, 0, len(list))
	for _, c := range list {
		out = append(out, c.Code)
	}
	return out
}

func equalCodes(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

type failingKV struct {
	kv.Memory
	failSet bool
}

func (f *failingKV) Set(key, value string) error {
	if f.failSet {
		return errors.New("disk full")
	}
	return f.Memory.Set(key, value)
}

func TestNormalizeEmail(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"  Alice@Example.COM ", "alice@example.com", false},
		{"", "", true},
		{"not-an-email", "", true},
		{"Bob <bob@example.com>", "", true},
	}
	for _, tc := range cases {
		got, err := NormalizeEmail(tc.in)
		if (err != nil) != tc.wantErr {
			t.Fatalf("NormalizeEmail(%q) err = %v, wantErr %v", tc.in, err, tc.wantErr)
		}
		if got != tc.want {
			t.Fatalf("NormalizeEmail(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestLogin_PersistsSessionAndStartsEmpty(t *testing.T) {
	store := kv.NewMemory()
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s := New(store, WithClock(func() time.Time { return at }))

	user, err := s.Login("A@Example.com", "")
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	if user.Email != "a@example.com" || user.Name != "a" || user.SessionID == "" || !user.LoggedInAt.Equal(at) {
		t.Fatalf("unexpected user: %#v", user)
	}
	if !s.LoggedIn() || len(s.Favorites()) != 0 {
		t.Fatalf("expected logged in with empty favorites")
	}

	raw, ok, _ := store.Get("currentUser")
	if !ok {
		t.Fatalf("session not persisted")
	}
	var persisted User
	if err := json.Unmarshal([]byte(raw), &persisted); err != nil {
		t.Fatalf("decode persisted session: %v", err)
	}
	if persisted.Email != "a@example.com" || persisted.SessionID != user.SessionID {
		t.Fatalf("persisted = %#v", persisted)
	}
}

func TestLogin_RejectsInvalidEmail(t *testing.T) {
	store := kv.NewMemory()
	s := New(store)
	if _, err := s.Login("nope", "x"); err == nil {
		t.Fatalf("expected error")
	}
	if s.LoggedIn() {
		t.Fatalf("invalid login established a session")
	}
	if _, ok, _ := store.Get("currentUser"); ok {
		t.Fatalf("invalid login persisted a session")
	}
}

func TestAddFavorite_NoDuplicates(t *testing.T) {
	s := New(kv.NewMemory())
	if _, err := s.Login("a@example.com", "A"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := s.AddFavorite(country("FRA", "France")); err != nil {
			t.Fatalf("AddFavorite: %v", err)
		}
	}
	if err := s.AddFavorite(country("DEU", "Germany")); err != nil {
		t.Fatalf("AddFavorite: %v", err)
	}

	if got := codes(s.Favorites()); !equalCodes(got, []string{"FRA", "DEU"}) {
		t.Fatalf("favorites = %v", got)
	}
	if !s.IsFavorite("FRA") || s.IsFavorite("ESP") {
		t.Fatalf("IsFavorite mismatch")
	}
}

func TestMutations_WithoutSessionFailAndDoNotMutate(t *testing.T) {
	store := kv.NewMemory()
	if err := store.Set(FavoritesKey("a@example.com"), `[{"cca3":"FRA","name":{"common":"France"}}]`); err != nil {
		t.Fatalf("seed: %v", err)
	}
	s := New(store)

	if err := s.AddFavorite(country("DEU", "Germany")); !errors.Is(err, ErrLoginRequired) {
		t.Fatalf("AddFavorite err = %v, want ErrLoginRequired", err)
	}
	if _, _, err := s.RemoveFavorite("FRA"); !errors.Is(err, ErrLoginRequired) {
		t.Fatalf("RemoveFavorite err = %v, want ErrLoginRequired", err)
	}
	if len(s.Favorites()) != 0 {
		t.Fatalf("in-memory favorites mutated")
	}
	raw, _, _ := store.Get(FavoritesKey("a@example.com"))
	if raw != `[{"cca3":"FRA","name":{"common":"France"}}]` {
		t.Fatalf("persisted favorites mutated: %s", raw)
	}
	if len(store.Keys()) != 1 {
		t.Fatalf("unexpected keys written: %v", store.Keys())
	}
}

func TestFavorites_ScopedPerUserAcrossLogins(t *testing.T) {
	store := kv.NewMemory()
	s := New(store)

	if _, err := s.Login("a@example.com", "A"); err != nil {
		t.Fatalf("Login A: %v", err)
	}
	_ = s.AddFavorite(country("FRA", "France"))
	_ = s.AddFavorite(country("JPN", "Japan"))

	if _, err := s.Login("b@example.com", "B"); err != nil {
		t.Fatalf("Login B: %v", err)
	}
	if len(s.Favorites()) != 0 {
		t.Fatalf("B sees A's favorites: %v", codes(s.Favorites()))
	}
	_ = s.AddFavorite(country("BRA", "Brazil"))

	if err := s.Logout(); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if s.LoggedIn() || len(s.Favorites()) != 0 {
		t.Fatalf("logout left state behind")
	}
	if _, ok, _ := store.Get("currentUser"); ok {
		t.Fatalf("logout kept the session key")
	}

	if _, err := s.Login("a@example.com", "A"); err != nil {
		t.Fatalf("Login A again: %v", err)
	}
	if got := codes(s.Favorites()); !equalCodes(got, []string{"FRA", "JPN"}) {
		t.Fatalf("A favorites after round trip = %v", got)
	}
}

func TestRemoveFavorite(t *testing.T) {
	s := New(kv.NewMemory())
	if _, err := s.Login("a@example.com", "A"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	_ = s.AddFavorite(country("FRA", "France"))
	_ = s.AddFavorite(country("DEU", "Germany"))

	removed, ok, err := s.RemoveFavorite("FRA")
	if err != nil || !ok || removed.Name.Common != "France" {
		t.Fatalf("RemoveFavorite = %#v, %v, %v", removed, ok, err)
	}
	_, ok, err = s.RemoveFavorite("FRA")
	if err != nil || ok {
		t.Fatalf("second remove = %v, %v", ok, err)
	}
	if got := codes(s.Favorites()); !equalCodes(got, []string{"DEU"}) {
		t.Fatalf("favorites = %v", got)
	}
}

func TestRestore(t *testing.T) {
	store := kv.NewMemory()
	first := New(store)
	user, err := first.Login("a@example.com", "Alice")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	_ = first.AddFavorite(country("FRA", "France"))

	second := New(store)
	if err := second.Restore(); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	got, ok := second.User()
	if !ok || got.Email != user.Email || got.Name != "Alice" || got.SessionID != user.SessionID {
		t.Fatalf("restored user = %#v", got)
	}
	if !second.IsFavorite("FRA") {
		t.Fatalf("restored favorites missing FRA")
	}
}

func TestRestore_IgnoresCorruptSession(t *testing.T) {
	store := kv.NewMemory()
	_ = store.Set("currentUser", "{not json")
	s := New(store)
	if err := s.Restore(); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if s.LoggedIn() {
		t.Fatalf("corrupt session restored")
	}
}

func TestAddFavorite_StorageFailureLeavesListUnchanged(t *testing.T) {
	store := &failingKV{}
	s := New(store)
	if _, err := s.Login("a@example.com", "A"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	store.failSet = true

	err := s.AddFavorite(country("FRA", "France"))
	if err == nil || errors.Is(err, ErrLoginRequired) {
		t.Fatalf("err = %v, want storage error", err)
	}
	if s.IsFavorite("FRA") {
		t.Fatalf("favorite added despite storage failure")
	}
}
