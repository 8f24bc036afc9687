package strategy

import (
	"errors"
	"fmt"
	"sync"
)

var ErrStrategyNotFound = errors.New("strategy not registered")

// Registry maps a variant to the implementation handling it.
type Registry[V comparable, S any] struct {
	mu         sync.RWMutex
	strategies map[V]S
}

func NewRegistry[V comparable, S any]() *Registry[V, S] {
	return &Registry[V, S]{strategies: make(map[V]S)}
}

func (r *Registry[V, S]) Register(variant V, s S) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strategies[variant] = s
}

func (r *Registry[V, S]) Get(variant V) (S, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.strategies[variant]
	if !ok {
		var zero S
		return zero, fmt.Errorf("%w: %v", ErrStrategyNotFound, variant)
	}
	return s, nil
}
