// Package source provides the byte-source capability behind the extraction
// engine: one provider per protocol scheme, each able to enumerate objects
// for glob expansion and to open a forward-only byte stream for a locator.
package source

import (
	"context"
	"fmt"
	"io"

	"go-stream-extract/internal/model"
)

// Provider yields byte streams for one protocol scheme. Open returns a
// forward-only reader; resumption is re-open-from-start, true seeking is
// never required. Open failures must be distinguishable via errors.Is
// against model.ErrAuth, model.ErrNotFound and model.ErrTransientIO.
type Provider interface {
	Scheme() string

	// Open returns a sequential reader over the object at path.
	Open(ctx context.Context, path string) (io.ReadCloser, error)

	// List enumerates object paths under a non-glob prefix, recursively.
	// Used by the resolver to expand glob patterns without downloading content.
	List(ctx context.Context, prefix string) ([]string, error)
}

// Registry dispatches locators to providers by scheme.
type Registry struct {
	providers map[string]Provider
}

// NewRegistry builds a registry from the given providers.
func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider)}
	for _, p := range providers {
		r.providers[p.Scheme()] = p
	}
	return r
}

// Provider returns the provider registered for a scheme.
func (r *Registry) Provider(scheme string) (Provider, error) {
	p, ok := r.providers[scheme]
	if !ok {
		return nil, fmt.Errorf("%w: %q", model.ErrUnsupportedProtocol, scheme)
	}
	return p, nil
}

// Open opens a byte stream for a resolved locator.
func (r *Registry) Open(ctx context.Context, loc model.SourceLocator) (io.ReadCloser, error) {
	p, err := r.Provider(loc.Scheme)
	if err != nil {
		return nil, err
	}
	return p.Open(ctx, loc.Path)
}
