// Package backend holds the interchangeable fetch implementations used to
// send the test request through a proxy.
package backend

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/August26/proxytest-go/internal/model"
)

var (
	ErrUnknownBackend    = errors.New("unknown backend")
	ErrAlreadyRegistered = errors.New("backend already registered")
)

// Request describes one fetch. A nil Proxy fetches the URL directly.
type Request struct {
	URL       string
	Proxy     *model.ProxyTarget
	Timeout   time.Duration
	UserAgent string
}

// Backend performs one HTTP GET through a proxy. Failures are returned as
// data in the FetchResult; Fetch must not panic for network errors.
type Backend interface {
	Name() string
	Fetch(ctx context.Context, req Request) model.FetchResult
}

// Factory builds a fresh backend instance.
type Factory func() (Backend, error)

// Registry maps backend names to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory under name.
func (r *Registry) Register(name string, f Factory) error {
	if name == "" {
		return fmt.Errorf("backend name is required")
	}
	if f == nil {
		return fmt.Errorf("backend %q: nil factory", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.factories[name]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, name)
	}
	r.factories[name] = f
	return nil
}

// New builds the backend registered under name.
func (r *Registry) New(name string) (Backend, error) {
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w %q (available: %s)", ErrUnknownBackend, name, strings.Join(r.Names(), ", "))
	}
	b, err := f()
	if err != nil {
		return nil, fmt.Errorf("init backend %q: %w", name, err)
	}
	return b, nil
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var builtin = newBuiltin()

func newBuiltin() *Registry {
	r := NewRegistry()
	for name, f := range map[string]Factory{
		"http":        func() (Backend, error) { return NewHTTP(), nil },
		"simple":      func() (Backend, error) { return NewSimple(), nil },
		"dummy":       func() (Backend, error) { return &Dummy{}, nil },
		"dummy-error": func() (Backend, error) { return &Dummy{Fail: true}, nil },
	} {
		if err := r.Register(name, f); err != nil {
			panic(err)
		}
	}
	return r
}

// Register adds a backend to the built-in registry.
func Register(name string, f Factory) error { return builtin.Register(name, f) }

// New builds a backend from the built-in registry.
func New(name string) (Backend, error) { return builtin.New(name) }

// Names lists the built-in registry.
func Names() []string { return builtin.Names() }
