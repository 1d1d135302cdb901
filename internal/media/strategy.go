package media

import (
	"context"
	"sort"
)

// Strategy is one concrete extraction technique. Each strategy performs
// its own network calls and its own materialization into the staging
// area, normalizes every failure to *Error, and removes any partial
// file it created before returning one.
type Strategy interface {
	Descriptor() Descriptor
	Attempt(ctx context.Context, req Request) (Artifact, error)
}

// Descriptor is the static registration record of a strategy.
type Descriptor struct {
	Name         string
	Platforms    []Platform
	ContentTypes []ContentType
	// Priority orders the chain, highest first. Ties keep
	// registration order.
	Priority int
}

// Supports reports whether the descriptor covers the platform and
// content type pair.
func (d Descriptor) Supports(p Platform, ct ContentType) bool {
	return containsPlatform(d.Platforms, p) && containsContentType(d.ContentTypes, ct)
}

// Registry holds the process-wide strategy table. It is built once at
// startup and read-only afterwards, so concurrent Resolve calls need
// no synchronization.
type Registry struct {
	strategies []Strategy
}

// NewRegistry builds the immutable strategy table in registration order.
func NewRegistry(strategies ...Strategy) *Registry {
	return &Registry{strategies: strategies}
}

// Resolve returns the strategies supporting the pair, sorted by
// descending priority with registration order breaking ties. The result
// is deterministic for identical inputs.
func (r *Registry) Resolve(p Platform, ct ContentType) []Strategy {
	var matched []Strategy
	for _, s := range r.strategies {
		if s.Descriptor().Supports(p, ct) {
			matched = append(matched, s)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Descriptor().Priority > matched[j].Descriptor().Priority
	})
	return matched
}

// List returns all registered strategies in registration order.
func (r *Registry) List() []Strategy {
	return r.strategies
}

func containsPlatform(items []Platform, p Platform) bool {
	for _, item := range items {
		if item == p {
			return true
		}
	}
	return false
}

func containsContentType(items []ContentType, ct ContentType) bool {
	for _, item := range items {
		if item == ct {
			return true
		}
	}
	return false
}
