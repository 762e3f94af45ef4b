// Package resolver expands a stream's URI set, including glob wildcards,
// into an ordered sequence of concrete source locators.
package resolver

import (
	"context"
	"fmt"
	"os"
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"go-stream-extract/internal/model"
	"go-stream-extract/internal/source"
)

// Resolver turns stream URIs into locator sequences using the provider
// registry to enumerate objects. It never downloads content.
type Resolver struct {
	registry *source.Registry
}

// New builds a resolver over the given provider registry.
func New(registry *source.Registry) *Resolver {
	return &Resolver{registry: registry}
}

// Resolve expands every URI of the stream, preserving declaration order for
// explicit URIs and sorting glob expansions lexicographically so re-runs
// revisit sources in the same order. It returns model.ErrNoMatch only when
// the entire resolved set is empty and at least one pattern matched nothing;
// the orchestrator decides whether that is fatal.
func (r *Resolver) Resolve(ctx context.Context, stream *model.StreamDef) ([]model.SourceLocator, error) {
	var nameFilter *regexp.Regexp
	if stream.Pattern != "" {
		re, err := regexp.Compile(stream.Pattern)
		if err != nil {
			return nil, fmt.Errorf("%w: stream %q pattern %q: %v", model.ErrConfig, stream.Name, stream.Pattern, err)
		}
		nameFilter = re
	}

	var locators []model.SourceLocator
	unmatched := 0
	for _, uri := range stream.SourceURIs() {
		scheme, p, err := splitURI(uri)
		if err != nil {
			return nil, err
		}
		if _, err := r.registry.Provider(scheme); err != nil {
			return nil, err
		}

		expanded, err := r.expand(ctx, scheme, p)
		if err != nil {
			return nil, err
		}
		if len(expanded) == 0 {
			unmatched++
			fmt.Fprintf(os.Stderr, "⚠️ Resolver: pattern %s matched no objects\n", uri)
			continue
		}
		for _, ep := range expanded {
			if nameFilter != nil && !nameFilter.MatchString(path.Base(ep)) {
				continue
			}
			locators = append(locators, model.SourceLocator{Scheme: scheme, Path: ep})
		}
	}

	if len(locators) == 0 && unmatched > 0 {
		return nil, fmt.Errorf("%w: stream %q resolved zero objects", model.ErrNoMatch, stream.Name)
	}
	return locators, nil
}

// expand returns the object paths for one URI path, enumerating the
// provider only when the path carries glob metacharacters.
func (r *Resolver) expand(ctx context.Context, scheme, p string) ([]string, error) {
	if !isGlob(p) {
		return []string{p}, nil
	}
	pattern := p
	provider, err := r.registry.Provider(scheme)
	if err != nil {
		return nil, err
	}
	candidates, err := provider.List(ctx, staticPrefix(pattern))
	if err != nil {
		return nil, err
	}
	var matched []string
	for _, c := range candidates {
		ok, err := doublestar.Match(pattern, c)
		if err != nil {
			return nil, fmt.Errorf("%w: bad glob %q: %v", model.ErrConfig, pattern, err)
		}
		if ok {
			matched = append(matched, c)
		}
	}
	sort.Strings(matched)
	return matched, nil
}

// isGlob reports whether a path contains glob metacharacters.
func isGlob(p string) bool {
	return strings.ContainsAny(p, "*?[{")
}

// staticPrefix returns the longest directory prefix of a pattern that holds
// no metacharacters, the listing root for enumeration.
func staticPrefix(pattern string) string {
	i := strings.IndexAny(pattern, "*?[{")
	if i < 0 {
		return pattern
	}
	cut := strings.LastIndex(pattern[:i], "/")
	if cut < 0 {
		return "."
	}
	return pattern[:cut]
}

// splitURI separates the protocol scheme from the scheme-local path.
// Bare paths default to the local filesystem.
func splitURI(uri string) (scheme, p string, err error) {
	if uri == "" {
		return "", "", fmt.Errorf("%w: empty uri", model.ErrConfig)
	}
	idx := strings.Index(uri, "://")
	if idx < 0 {
		return "file", uri, nil
	}
	scheme = strings.ToLower(uri[:idx])
	p = uri[idx+3:]
	if scheme == "file" {
		// file:///abs/path keeps its leading slash
		return scheme, p, nil
	}
	return scheme, p, nil
}
