package sso

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/platinummonkey/multipass/pkg/observability"
)

// Registry enumerates the configured remote providers. It is built once
// at startup and only read afterwards.
type Registry struct {
	adapters []Adapter
	byName   map[string]Adapter
	allowed  map[string]bool
	logger   *observability.Logger
}

// NewRegistry creates a registry. Only providers named in allowList are
// offered to users; adapters keep their registration order.
func NewRegistry(allowList []string, logger *observability.Logger, adapters ...Adapter) *Registry {
	r := &Registry{
		byName:  make(map[string]Adapter, len(adapters)),
		allowed: make(map[string]bool, len(allowList)),
		logger:  logger,
	}
	for _, name := range allowList {
		if name = strings.TrimSpace(name); name != "" {
			r.allowed[strings.ToLower(name)] = true
		}
	}
	for _, a := range adapters {
		if a == nil {
			continue
		}
		key := strings.ToLower(a.Name())
		if _, dup := r.byName[key]; dup {
			if logger != nil {
				logger.WithField("provider", a.Name()).Warn("Duplicate provider ignored")
			}
			continue
		}
		r.byName[key] = a
		r.adapters = append(r.adapters, a)
	}
	return r
}

// Get returns the adapter registered under name
func (r *Registry) Get(name string) (Adapter, bool) {
	a, ok := r.byName[strings.ToLower(name)]
	return a, ok
}

// Allowed reports whether name is on the deployment allow-list
func (r *Registry) Allowed(name string) bool {
	return r.allowed[strings.ToLower(name)]
}

// ListActive returns the allow-listed providers that are active and log
// in through a remote redirect
func (r *Registry) ListActive() []Descriptor {
	out := make([]Descriptor, 0, len(r.adapters))
	for _, a := range r.adapters {
		if r.offered(a) {
			out = append(out, Describe(a))
		}
	}
	return out
}

// ReturnCallback returns the offered provider claiming req as its
// callback. When more than one claims it the first registered wins and the
// overlap is logged as a configuration error.
func (r *Registry) ReturnCallback(req Request) (Adapter, bool) {
	var match Adapter
	for _, a := range r.adapters {
		if !r.offered(a) || !a.IsReturnCallback(req) {
			continue
		}
		if match == nil {
			match = a
			continue
		}
		if r.logger != nil {
			r.logger.WithFields(map[string]interface{}{
				"provider": match.Name(),
				"also":     a.Name(),
			}).Error("More than one provider claims the same callback")
		}
	}
	return match, match != nil
}

// BuildRedirectURI asks the named provider for the URL that starts its
// flow. Every failure is reported as ErrNoRemoteURL.
func (r *Registry) BuildRedirectURI(ctx context.Context, name string, req Request) (*url.URL, error) {
	a, ok := r.Get(name)
	if !ok || !r.offered(a) {
		return nil, fmt.Errorf("%w: %s", ErrNoRemoteURL, name)
	}

	u, err := a.BuildLoginURI(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNoRemoteURL, name, err)
	}
	if u == nil || u.String() == "" {
		return nil, fmt.Errorf("%w: %s", ErrNoRemoteURL, name)
	}
	return u, nil
}

func (r *Registry) offered(a Adapter) bool {
	return r.Allowed(a.Name()) && a.IsActive() && a.RequiresRemoteRedirect()
}
