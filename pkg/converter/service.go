// Package converter translates attribute values between their document form
// (what a resource serializes to) and their store form (what a database driver
// accepts and returns).
package converter

import (
	"reflect"
	"sync"
)

// ValueConverter converts values of the data types it handles.
type ValueConverter interface {
	// Handles reports whether the converter is responsible for dt.
	Handles(dt DataType) bool
	// ToStore converts a document value into the form handed to the store.
	ToStore(dt DataType, v interface{}) (interface{}, error)
	// FromStore converts a value read from the store back into document form.
	FromStore(dt DataType, v interface{}) (interface{}, error)
}

// Service is an ordered chain of converters. Newer converters take priority;
// the default converter is always consulted last and cannot be removed.
//
// Mutations copy the chain, so a snapshot returned by Converters never changes
// under the caller.
type Service struct {
	mu         sync.RWMutex
	converters []ValueConverter
	fallback   ValueConverter
}

// NewService creates a chain ending in DefaultConverter. The given converters
// are added in order, so the last one ends up first.
func NewService(converters ...ValueConverter) *Service {
	s := &Service{fallback: NewDefaultConverter()}
	for _, c := range converters {
		s.AddConverter(c)
	}
	return s
}

// AddConverter puts c at the front of the chain.
func (s *Service) AddConverter(c ValueConverter) {
	if c == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make([]ValueConverter, 0, len(s.converters)+1)
	next = append(next, c)
	next = append(next, s.converters...)
	s.converters = next
}

// RemoveConverter removes the first occurrence of c and reports whether it was found.
func (s *Service) RemoveConverter(c ValueConverter) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, existing := range s.converters {
		if same(existing, c) {
			next := make([]ValueConverter, 0, len(s.converters)-1)
			next = append(next, s.converters[:i]...)
			next = append(next, s.converters[i+1:]...)
			s.converters = next
			return true
		}
	}
	return false
}

// Converters returns the chain in evaluation order, default converter last.
func (s *Service) Converters() []ValueConverter {
	s.mu.RLock()
	current := s.converters
	s.mu.RUnlock()

	out := make([]ValueConverter, 0, len(current)+1)
	out = append(out, current...)
	return append(out, s.fallback)
}

// Default returns the converter evaluated last.
func (s *Service) Default() ValueConverter { return s.fallback }

// ConverterFor returns the first converter that handles dt.
func (s *Service) ConverterFor(dt DataType) ValueConverter {
	s.mu.RLock()
	current := s.converters
	s.mu.RUnlock()

	for _, c := range current {
		if c.Handles(dt) {
			return c
		}
	}
	return s.fallback
}

// ToStore converts v with the converter responsible for dt.
func (s *Service) ToStore(dt DataType, v interface{}) (interface{}, error) {
	return s.ConverterFor(dt).ToStore(dt, v)
}

// FromStore converts v with the converter responsible for dt.
func (s *Service) FromStore(dt DataType, v interface{}) (interface{}, error) {
	return s.ConverterFor(dt).FromStore(dt, v)
}

// same compares converters by identity without panicking on uncomparable types.
func same(a, b ValueConverter) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || !ta.Comparable() {
		return false
	}
	return a == b
}
