// Package session tracks the signed-in user and that user's favorite
// countries, persisting both to a kv.Store.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/five82/atlas/internal/kv"
	"github.com/five82/atlas/internal/metrics"
	"github.com/five82/atlas/internal/restcountries"
)

// ErrLoginRequired is returned by favorite mutations without a session.
var ErrLoginRequired = errors.New("please log in to manage favorites")

const sessionKey = "currentUser"

// FavoritesKey returns the storage key holding email's favorites.
func FavoritesKey(email string) string {
	return "favorites_" + email
}

// User is the signed-in identity.
type User struct {
	Email      string    `json:"email"`
	Name       string    `json:"name"`
	SessionID  string    `json:"sessionId"`
	LoggedInAt time.Time `json:"loggedInAt"`
}

// Store owns the current session and the in-memory favorites list.
type Store struct {
	kv      kv.Store
	metrics metrics.Recorder
	logger  *zap.Logger
	now     func() time.Time

	mu        sync.RWMutex
	user      *User
	favorites []restcountries.Country
}

// Option customizes a Store.
type Option func(*Store)

// WithMetrics reports favorite mutations to r.
func WithMetrics(r metrics.Recorder) Option {
	return func(s *Store) {
		if r != nil {
			s.metrics = r
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the login timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New returns a logged-out Store persisting to store.
func New(store kv.Store, opts ...Option) *Store {
	s := &Store{
		kv:      store,
		metrics: metrics.Nop{},
		logger:  zap.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NormalizeEmail trims and lower-cases email and checks it is a bare address.
func NormalizeEmail(email string) (string, error) {
	trimmed := strings.ToLower(strings.TrimSpace(email))
	if trimmed == "" {
		return "", errors.New("email required")
	}
	addr, err := mail.ParseAddress(trimmed)
	if err != nil || addr.Address != trimmed {
		return "", fmt.Errorf("invalid email %q", email)
	}
	return trimmed, nil
}

// Restore reloads a persisted session and its favorites. A missing or
// unreadable session leaves the store logged out.
func (s *Store) Restore() error {
	raw, ok, err := s.kv.Get(sessionKey)
	if err != nil {
		return fmt.Errorf("restore session: %w", err)
	}
	if !ok {
		return nil
	}
	var user User
	if err := json.Unmarshal([]byte(raw), &user); err != nil || user.Email == "" {
		s.logger.Warn("discarding unreadable session", zap.Error(err))
		return nil
	}
	favorites, err := s.loadFavorites(user.Email)
	if err != nil {
		return fmt.Errorf("restore session: %w", err)
	}

	s.mu.Lock()
	s.user = &user
	s.favorites = favorites
	s.mu.Unlock()

	s.logger.Info("session restored",
		zap.String("email", user.Email),
		zap.String("session_id", user.SessionID),
		zap.Int("favorites", len(favorites)),
	)
	return nil
}

// Login establishes a session for email, persists it, and loads that
// user's favorites (or starts empty). Any previous in-memory list is replaced.
func (s *Store) Login(email, name string) (User, error) {
	normalized, err := NormalizeEmail(email)
	if err != nil {
		return User{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = strings.SplitN(normalized, "@", 2)[0]
	}
	user := User{
		Email:      normalized,
		Name:       name,
		SessionID:  uuid.NewString(),
		LoggedInAt: s.now().UTC(),
	}

	payload, err := json.Marshal(user)
	if err != nil {
		return User{}, fmt.Errorf("encode session: %w", err)
	}
	if err := s.kv.Set(sessionKey, string(payload)); err != nil {
		return User{}, fmt.Errorf("persist session: %w", err)
	}
	favorites, err := s.loadFavorites(normalized)
	if err != nil {
		return User{}, err
	}

	s.mu.Lock()
	s.user = &user
	s.favorites = favorites
	s.mu.Unlock()

	s.logger.Info("logged in",
		zap.String("email", user.Email),
		zap.String("session_id", user.SessionID),
		zap.Int("favorites", len(favorites)),
	)
	return user, nil
}

// Logout clears the session. Persisted favorites are kept for the next login.
func (s *Store) Logout() error {
	s.mu.Lock()
	prev := s.user
	s.user = nil
	s.favorites = nil
	s.mu.Unlock()

	if err := s.kv.Remove(sessionKey); err != nil {
		return fmt.Errorf("remove session: %w", err)
	}
	if prev != nil {
		s.logger.Info("logged out", zap.String("email", prev.Email), zap.String("session_id", prev.SessionID))
	}
	return nil
}

// AddFavorite appends country when its code is not yet present and persists
// the list. Without a session it returns ErrLoginRequired and changes nothing.
func (s *Store) AddFavorite(country restcountries.Country) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.user == nil {
		return ErrLoginRequired
	}
	if indexOf(s.favorites, country.Code) >= 0 {
		return nil
	}
	next := append(cloneCountries(s.favorites), country)
	if err := s.persist(s.user.Email, next); err != nil {
		return err
	}
	s.favorites = next
	s.metrics.RecordFavoriteChange("add")
	s.logger.Debug("favorite added", zap.String("code", country.Code), zap.String("session_id", s.user.SessionID))
	return nil
}

// RemoveFavorite drops code from the list and persists it. It returns the
// removed record and whether one was present.
func (s *Store) RemoveFavorite(code string) (restcountries.Country, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.user == nil {
		return restcountries.Country{}, false, ErrLoginRequired
	}
	idx := indexOf(s.favorites, code)
	next := make([]restcountries.Country, 0, len(s.favorites))
	for _, c := range s.favorites {
		if c.Code != code {
			next = append(next, c)
		}
	}
	if err := s.persist(s.user.Email, next); err != nil {
		return restcountries.Country{}, false, err
	}
	if idx < 0 {
		s.favorites = next
		return restcountries.Country{}, false, nil
	}
	removed := s.favorites[idx]
	s.favorites = next
	s.metrics.RecordFavoriteChange("remove")
	s.logger.Debug("favorite removed", zap.String("code", code), zap.String("session_id", s.user.SessionID))
	return removed, true, nil
}

// IsFavorite reports whether code is in the current list.
func (s *Store) IsFavorite(code string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return indexOf(s.favorites, code) >= 0
}

// Favorites returns a copy of the current list in insertion order.
func (s *Store) Favorites() []restcountries.Country {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneCountries(s.favorites)
}

// User returns the signed-in user, if any.
func (s *Store) User() (User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return User{}, false
	}
	return *s.user, true
}

// LoggedIn reports whether a session is active.
func (s *Store) LoggedIn() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user != nil
}

func (s *Store) loadFavorites(email string) ([]restcountries.Country, error) {
	raw, ok, err := s.kv.Get(FavoritesKey(email))
	if err != nil {
		return nil, fmt.Errorf("load favorites: %w", err)
	}
	if !ok {
		return []restcountries.Country{}, nil
	}
	var favorites []restcountries.Country
	if err := json.Unmarshal([]byte(raw), &favorites); err != nil {
		s.logger.Warn("discarding unreadable favorites", zap.String("email", email), zap.Error(err))
		return []restcountries.Country{}, nil
	}
	return dedupe(favorites), nil
}

func (s *Store) persist(email string, favorites []restcountries.Country) error {
	payload, err := json.Marshal(favorites)
	if err != nil {
		return fmt.Errorf("encode favorites: %w", err)
	}
	if err := s.kv.Set(FavoritesKey(email), string(payload)); err != nil {
		return fmt.Errorf("persist favorites: %w", err)
	}
	return nil
}

func indexOf(list []restcountries.Country, code string) int {
	for i, c := range list {
		if c.Code == code {
			return i
		}
	}
	return -1
}

func dedupe(list []restcountries.Country) []restcountries.Country {
	out := make([]restcountries.Country, 0, len(list))
	for _, c := range list {
		if indexOf(out, c.Code) < 0 {
			out = append(out, c)
		}
	}
	return out
}

func cloneCountries(list []restcountries.Country) []restcountries.Country {
	out := make([]restcountries.Country, len(list))
	copy(out, list)
	return out
}
