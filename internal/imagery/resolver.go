package imagery

import (
	"context"

	"go.uber.org/zap"

	"github.com/ToobaSh/urbanviz-cli/internal/geomath"
)

// Selection is the resolved imagery for a point. Candidate is set for
// the crowd-sourced provider, EmbedURL for the commercial one.
type Selection struct {
	Provider  string     `json:"provider"`
	Candidate *Candidate `json:"candidate,omitempty"`
	EmbedURL  string     `json:"embed_url,omitempty"`
	DeepLink  string     `json:"deep_link,omitempty"`
}

// Provider is a single street-imagery backend.
type Provider interface {
	Name() string

	// Available reports whether the provider's credential passes the
	// cheap shape check. Unavailable providers are skipped, never errors.
	Available() bool

	// Resolve finds imagery for the point, or nil when the provider has
	// nothing. Providers absorb their own transport failures.
	Resolve(ctx context.Context, pt geomath.Point, preferPano bool) *Selection
}

// Resolver iterates an ordered provider list until one yields a result.
type Resolver struct {
	providers []Provider
}

// NewResolver creates a resolver over providers in fallback order.
func NewResolver(providers ...Provider) *Resolver {
	return &Resolver{providers: providers}
}

// ModeAuto tries every provider in order; any other mode pins the
// provider with that name.
const ModeAuto = "auto"

// Resolve returns the first provider's selection, or nil when every
// configured provider is exhausted — a normal terminal state the caller
// renders as "no imagery", not an error.
func (r *Resolver) Resolve(ctx context.Context, pt geomath.Point, preferPano bool, mode string) *Selection {
	for _, p := range r.providers {
		if mode != "" && mode != ModeAuto && p.Name() != mode {
			continue
		}
		if !p.Available() {
			zap.L().Debug("imagery: provider not configured", zap.String("provider", p.Name()))
			continue
		}
		if sel := p.Resolve(ctx, pt, preferPano); sel != nil {
			return sel
		}
		zap.L().Debug("imagery: provider yielded nothing", zap.String("provider", p.Name()))
	}
	return nil
}
