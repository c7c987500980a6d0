package adapter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
)

// Properties are the passthrough options handed to a connection factory.
type Properties map[string]string

// Get returns the value stored under key.
func (p Properties) Get(key string) (string, bool) {
	v, ok := p[key]
	return v, ok
}

// Clone returns a copy of the properties.
func (p Properties) Clone() Properties {
	out := make(Properties, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// ConnectionFactory opens connections for a per-operation connection URL of the
// form <dialect>:<database>;create=true. Pooling, if any, is the factory's business.
type ConnectionFactory interface {
	Connect(ctx context.Context, url string, props Properties) (Connection, error)
}

// DialectProvider is implemented by factories bound to a single dialect. The
// handler uses it when an operation names no dialect of its own.
type DialectProvider interface {
	Dialect() string
}

// ConnectionFactoryFunc adapts a function to ConnectionFactory.
type ConnectionFactoryFunc func(ctx context.Context, url string, props Properties) (Connection, error)

// Connect calls f.
func (f ConnectionFactoryFunc) Connect(ctx context.Context, url string, props Properties) (Connection, error) {
	return f(ctx, url, props)
}

// ConnectionRegistry maps connection names to factories. It is immutable after
// construction and safe for concurrent use.
type ConnectionRegistry struct {
	factories map[string]ConnectionFactory
}

// NewConnectionRegistry copies factories into a new registry.
func NewConnectionRegistry(factories map[string]ConnectionFactory) *ConnectionRegistry {
	r := &ConnectionRegistry{factories: make(map[string]ConnectionFactory, len(factories))}
	for name, f := range factories {
		r.factories[name] = f
	}
	return r
}

// Lookup returns the factory registered under name.
func (r *ConnectionRegistry) Lookup(name string) (ConnectionFactory, bool) {
	f, ok := r.factories[name]
	return f, ok
}

// Get is like Lookup but returns ErrUnknownConnection for a missing name.
func (r *ConnectionRegistry) Get(name string) (ConnectionFactory, error) {
	f, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownConnection, name)
	}
	return f, nil
}

// Names returns the registered connection names in sorted order.
func (r *ConnectionRegistry) Names() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered connections.
func (r *ConnectionRegistry) Len() int { return len(r.factories) }

// Close closes every factory that holds resources.
func (r *ConnectionRegistry) Close() error {
	var errs []error
	for _, name := range r.Names() {
		if c, ok := r.factories[name].(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("closing connection %s: %w", name, err))
			}
		}
	}
	return errors.Join(errs...)
}
