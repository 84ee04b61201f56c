package state

import (
	"fmt"
	"sync"
	"time"

	"github.com/five82/atlas/internal/restcountries"
)

// Snapshot is the loaded country collection as seen by the UI.
type Snapshot struct {
	Countries           []restcountries.Country
	Loaded              bool
	LastUpdated         time.Time
	LastError           error
	ConsecutiveFailures int // Number of consecutive failed catalog loads
}

// IsOffline returns true when the API has been unreachable for multiple loads.
func (s Snapshot) IsOffline() bool {
	return s.ConsecutiveFailures >= 2
}

// Store coordinates concurrent access to the catalog.
type Store struct {
	mu       sync.RWMutex
	snapshot Snapshot
	byCode   map[string]int
}

// Update replaces the catalog. When err is non-nil the previous collection is
// kept but the error is recorded for visibility.
func (s *Store) Update(countries []restcountries.Country, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.snapshot.LastError = err
		s.snapshot.LastUpdated = time.Now()
		s.snapshot.ConsecutiveFailures++
		return
	}

	s.snapshot.Countries = cloneCountries(countries)
	restcountries.SortByName(s.snapshot.Countries)
	s.byCode = make(map[string]int, len(s.snapshot.Countries))
	for i, c := range s.snapshot.Countries {
		s.byCode[c.Code] = i
	}
	s.snapshot.Loaded = true
	s.snapshot.LastError = nil
	s.snapshot.LastUpdated = time.Now()
	s.snapshot.ConsecutiveFailures = 0
}

// Snapshot returns a copy of the current snapshot.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := s.snapshot
	snap.Countries = cloneCountries(s.snapshot.Countries)
	if s.snapshot.LastError != nil {
		snap.LastError = fmt.Errorf("%w", s.snapshot.LastError)
	}
	return snap
}

// Countries returns a copy of the loaded collection.
func (s *Store) Countries() []restcountries.Country {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneCountries(s.snapshot.Countries)
}

// Lookup finds a loaded country by code.
func (s *Store) Lookup(code string) (restcountries.Country, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.byCode[code]
	if !ok {
		return restcountries.Country{}, false
	}
	return s.snapshot.Countries[i], true
}

func cloneCountries(items []restcountries.Country) []restcountries.Country {
	if len(items) == 0 {
		return nil
	}
	dup := make([]restcountries.Country, len(items))
	copy(dup, items)
	return dup
}
