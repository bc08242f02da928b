// Package refdata holds the static per-location reference data consumed by
// the risk and impact engines: geography profiles and demographic model
// parameters. Entries are seeded from TOML and are read-only afterwards.
package refdata

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/pelletier/go-toml/v2"

	"github.com/couchcryptid/storm-parametric-settlement/internal/domain"
)

//go:embed locations.toml
var defaultLocations []byte

type entry struct {
	name    string
	profile *domain.LocationProfile
	model   *domain.ModelParameters
}

// Store is the location reference table, keyed by the canonical location key.
type Store struct {
	mu      sync.RWMutex
	entries map[domain.LocationKey]entry
}

// New returns an empty store.
func New() *Store {
	return &Store{entries: make(map[domain.LocationKey]entry)}
}

// SetProfile registers or replaces the geography profile for location.
func (s *Store) SetProfile(location string, p domain.LocationProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := domain.KeyOf(location)
	e := s.entries[k]
	e.name = location
	e.profile = &p
	s.entries[k] = e
}

// SetModel registers or replaces the impact model parameters for location.
func (s *Store) SetModel(location string, m domain.ModelParameters) {
	m.CriticalInfrastructure = append([]string(nil), m.CriticalInfrastructure...)
	s.mu.Lock()
	defer s.mu.Unlock()
	k := domain.KeyOf(location)
	e := s.entries[k]
	e.name = location
	e.model = &m
	s.entries[k] = e
}

// Profile returns the geography profile for location.
func (s *Store) Profile(location string) (domain.LocationProfile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[domain.KeyOf(location)]
	if !ok || e.profile == nil {
		return domain.LocationProfile{}, false
	}
	return *e.profile, true
}

// Model returns the impact model parameters for location.
func (s *Store) Model(location string) (domain.ModelParameters, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[domain.KeyOf(location)]
	if !ok || e.model == nil {
		return domain.ModelParameters{}, false
	}
	m := *e.model
	m.CriticalInfrastructure = append([]string(nil), m.CriticalInfrastructure...)
	return m, true
}

// Locations lists every seeded location name in sorted order.
func (s *Store) Locations() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.entries))
	for _, e := range s.entries {
		names = append(names, e.name)
	}
	sort.Strings(names)
	return names
}

type file struct {
	Locations []struct {
		Name    string                  `toml:"name"`
		Profile *domain.LocationProfile `toml:"profile"`
		Model   *domain.ModelParameters `toml:"model"`
	} `toml:"location"`
}

// Parse builds a store from TOML reference data:
//
//	[[location]]
//	name = "San Francisco"
//	[location.profile]
//	latitude = 37774900
//	...
//	[location.model]
//	population_density = 7000
//	...
func Parse(data []byte) (*Store, error) {
	var f file
	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse reference data: %w", err)
	}
	s := New()
	for i, loc := range f.Locations {
		if loc.Name == "" {
			return nil, fmt.Errorf("reference data: location %d has no name", i)
		}
		if loc.Profile != nil {
			s.SetProfile(loc.Name, *loc.Profile)
		}
		if loc.Model != nil {
			if loc.Model.InfrastructureScore > 100 {
				return nil, fmt.Errorf("reference data: %s infrastructure_score %d out of range", loc.Name, loc.Model.InfrastructureScore)
			}
			s.SetModel(loc.Name, *loc.Model)
		}
	}
	return s, nil
}

// Load reads reference data from path, or the embedded defaults when path
// is empty.
func Load(path string) (*Store, error) {
	if path == "" {
		return Parse(defaultLocations)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read reference data: %w", err)
	}
	return Parse(data)
}
