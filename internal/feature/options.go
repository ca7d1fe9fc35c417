package feature

import (
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/spatial-features/internal/spatial"
)

// KPolicy decides what happens when k exceeds the reference set size.
type KPolicy string

const (
	// KPolicyStrict fails with model.ErrInsufficientReference.
	KPolicyStrict KPolicy = "strict"
	// KPolicyAvailable averages over every available reference point.
	KPolicyAvailable KPolicy = "available"
)

// ParseKPolicy validates a policy name. The empty string selects strict.
func ParseKPolicy(s string) (KPolicy, error) {
	switch p := KPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return KPolicyStrict, nil
	case KPolicyStrict, KPolicyAvailable:
		return p, nil
	default:
		return "", eris.Errorf("feature: unknown k policy %q", s)
	}
}

// Options configures a Generator.
type Options struct {
	Backend spatial.Backend
	KPolicy KPolicy
}

// Option mutates Options.
type Option func(*Options)

// WithBackend selects the spatial index implementation.
func WithBackend(b spatial.Backend) Option {
	return func(o *Options) { o.Backend = b }
}

// WithKPolicy selects the k > |references| policy.
func WithKPolicy(p KPolicy) Option {
	return func(o *Options) { o.KPolicy = p }
}

func buildOptions(opts []Option) Options {
	o := Options{Backend: spatial.DefaultBackend, KPolicy: KPolicyStrict}
	for _, opt := range opts {
		opt(&o)
	}
	if o.Backend == "" {
		o.Backend = spatial.DefaultBackend
	}
	if o.KPolicy == "" {
		o.KPolicy = KPolicyStrict
	}
	return o
}
