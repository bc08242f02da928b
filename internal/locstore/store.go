// Package locstore is a location-keyed map split into independently locked
// stripes, so writers for different locations rarely contend.
package locstore

import (
	"sort"
	"sync"

	"github.com/couchcryptid/storm-parametric-settlement/internal/domain"
)

const stripes = 32

type stripe[V any] struct {
	mu    sync.RWMutex
	names map[domain.LocationKey]string
	vals  map[domain.LocationKey]V
}

// Store maps canonical location keys to values of type V.
type Store[V any] struct {
	stripes [stripes]stripe[V]
}

// New returns an empty store.
func New[V any]() *Store[V] {
	s := &Store[V]{}
	for i := range s.stripes {
		s.stripes[i].names = make(map[domain.LocationKey]string)
		s.stripes[i].vals = make(map[domain.LocationKey]V)
	}
	return s
}

func (s *Store[V]) stripe(k domain.LocationKey) *stripe[V] {
	return &s.stripes[int(k[0])%stripes]
}

// Get returns the value stored for location.
func (s *Store[V]) Get(location string) (V, bool) {
	k := domain.KeyOf(location)
	st := s.stripe(k)
	st.mu.RLock()
	defer st.mu.RUnlock()
	v, ok := st.vals[k]
	return v, ok
}

// Put overwrites the value for location.
func (s *Store[V]) Put(location string, v V) {
	s.Update(location, func(V, bool) V { return v })
}

// Update replaces the value for location with fn(current, found) while
// holding the location's stripe lock.
func (s *Store[V]) Update(location string, fn func(cur V, ok bool) V) V {
	k := domain.KeyOf(location)
	st := s.stripe(k)
	st.mu.Lock()
	defer st.mu.Unlock()
	cur, ok := st.vals[k]
	next := fn(cur, ok)
	st.vals[k] = next
	st.names[k] = location
	return next
}

// Locations lists every stored location name, sorted.
func (s *Store[V]) Locations() []string {
	var out []string
	for i := range s.stripes {
		st := &s.stripes[i]
		st.mu.RLock()
		for _, name := range st.names {
			out = append(out, name)
		}
		st.mu.RUnlock()
	}
	sort.Strings(out)
	return out
}
