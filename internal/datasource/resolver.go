package datasource

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/Bottswana/BullyBot/internal/domain"
)

// Constructor validates settings and builds an adapter.
type Constructor func(cfg Config, deps Deps) (Adapter, error)

// constructors is the full set of adapters this binary knows about.
// The legacy class names keep existing user configs working.
var constructors = map[string]Constructor{
	"s3":              NewS3,
	"aws":             NewS3,
	"awsfiledownload": NewS3,
	"fitbit":          NewFitbit,
	"fitbitdownload":  NewFitbit,
}

// Resolver maps adapter identifiers to constructed adapters.
type Resolver struct {
	deps  Deps
	table map[string]Constructor
}

// NewResolver returns a resolver over the built-in adapter table.
func NewResolver(deps Deps) *Resolver {
	return &Resolver{deps: deps.withDefaults(), table: constructors}
}

// Build constructs the adapter named by cfg.AdapterID, returning why it failed.
func (r *Resolver) Build(cfg Config) (Adapter, error) {
	ctor, ok := r.table[lookupKey(cfg.AdapterID)]
	if !ok {
		return nil, fmt.Errorf("%w: unknown data source %q", domain.ErrConfiguration, cfg.AdapterID)
	}
	a, err := ctor(cfg, r.deps)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Resolve is Build for callers that treat "not configured" and "misconfigured" alike.
// Failures are logged and reported as nil.
func (r *Resolver) Resolve(cfg Config) Adapter {
	a, err := r.Build(cfg)
	if err != nil {
		r.deps.Log.Warn("data source unavailable",
			zap.String("user", cfg.User),
			zap.String("datasource", cfg.AdapterID),
			zap.Error(err),
		)
		return nil
	}
	return a
}

// Known lists the accepted identifiers.
func (r *Resolver) Known() []string {
	out := make([]string, 0, len(r.table))
	for k := range r.table {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// lookupKey lower-cases id and drops any namespace, so
// "BullyBot.ExerciseDataSources.FitBitDownload" resolves like "fitbitdownload".
func lookupKey(id string) string {
	id = strings.TrimSpace(id)
	if i := strings.LastIndex(id, "."); i >= 0 {
		id = id[i+1:]
	}
	return strings.ToLower(id)
}
