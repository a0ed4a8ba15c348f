// Package locator resolves a field's locator through the fallback chain:
// primary, then backups in order, then a predicted replacement.
package locator

import (
	"context"
	"errors"
	"time"

	"selfheal/internal/healing"
	"selfheal/internal/logging"
	"selfheal/internal/predictor"
)

// Spec describes how to find one field on a page.
type Spec struct {
	Primary  string   `yaml:"primary"`
	Backups  []string `yaml:"backups,omitempty"`
	PageName string   `yaml:"-"`
	Field    string   `yaml:"-"`
}

// Provenance records which step of the chain produced a locator.
type Provenance int

const (
	ProvenancePrimary Provenance = iota
	ProvenanceBackup
	ProvenanceHealed
)

func (p Provenance) String() string {
	switch p {
	case ProvenancePrimary:
		return "primary"
	case ProvenanceBackup:
		return "backup"
	case ProvenanceHealed:
		return "healed"
	default:
		return "unknown"
	}
}

// Outcome is a validated locator and where it came from.
type Outcome struct {
	Locator    string
	Provenance Provenance
}

// Config controls candidate validation.
type Config struct {
	ValidationTimeoutMs int `yaml:"validation_timeout_ms"`
}

// DefaultConfig returns a 2s per-candidate validation timeout.
func DefaultConfig() Config {
	return Config{ValidationTimeoutMs: 2000}
}

// ValidationTimeout returns the per-candidate wait.
func (c Config) ValidationTimeout() time.Duration {
	if c.ValidationTimeoutMs <= 0 {
		return 2 * time.Second
	}
	return time.Duration(c.ValidationTimeoutMs) * time.Millisecond
}

// Resolver walks the fallback chain for one page. It writes to the healing
// log only when a predicted locator validates.
type Resolver struct {
	page      Prober
	predictor Predictor
	log       *healing.Log
	timeout   time.Duration
}

// NewResolver creates a resolver bound to a page, predictor and session log.
func NewResolver(page Prober, pred Predictor, log *healing.Log, cfg Config) *Resolver {
	return &Resolver{
		page:      page,
		predictor: pred,
		log:       log,
		timeout:   cfg.ValidationTimeout(),
	}
}

// Resolve returns the first candidate that exists on the page. At most
// 2+len(spec.Backups) probes are made and the predictor is called at most
// once. ctx is checked between candidates.
func (r *Resolver) Resolve(ctx context.Context, spec Spec) (Outcome, error) {
	timer := logging.StartTimer(logging.CategoryResolver, "Resolve")
	defer timer.Stop()

	tried := make([]string, 0, len(spec.Backups)+2)

	tried = append(tried, spec.Primary)
	if r.page.Exists(ctx, spec.Primary, r.timeout) {
		logging.ResolverDebug("%s: primary %q", spec.Field, spec.Primary)
		return Outcome{Locator: spec.Primary, Provenance: ProvenancePrimary}, nil
	}

	for _, backup := range spec.Backups {
		if err := ctx.Err(); err != nil {
			return Outcome{}, err
		}
		tried = append(tried, backup)
		if r.page.Exists(ctx, backup, r.timeout) {
			logging.Resolver("%s: primary %q missing, using backup %q", spec.Field, spec.Primary, backup)
			return Outcome{Locator: backup, Provenance: ProvenanceBackup}, nil
		}
	}

	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}
	if r.predictor == nil {
		return Outcome{}, &NotFoundError{Field: spec.Field, Tried: tried}
	}

	candidate, err := r.predictor.Predict(ctx, spec.Primary)
	if err != nil {
		if errors.Is(err, predictor.ErrModelNotLoaded) {
			return Outcome{}, err
		}
		logging.Get(logging.CategoryResolver).Warn("%s: prediction failed: %v", spec.Field, err)
		return Outcome{}, &NotFoundError{Field: spec.Field, Tried: tried, Cause: err}
	}
	if candidate == "" {
		logging.ResolverDebug("%s: predictor had no candidate for %q", spec.Field, spec.Primary)
		return Outcome{}, &NotFoundError{Field: spec.Field, Tried: tried}
	}

	tried = append(tried, candidate)
	if !r.page.Exists(ctx, candidate, r.timeout) {
		logging.Get(logging.CategoryResolver).Warn("%s: predicted locator %q did not validate", spec.Field, candidate)
		return Outcome{}, &NotFoundError{Field: spec.Field, Tried: tried}
	}

	if r.log != nil {
		r.log.Add(healing.Record{
			Original: spec.Primary,
			Healed:   candidate,
			PageName: spec.PageName,
			Field:    spec.Field,
		})
	}
	logging.Resolver("Healed locator for %s on %s: %q -> %q", spec.Field, spec.PageName, spec.Primary, candidate)
	return Outcome{Locator: candidate, Provenance: ProvenanceHealed}, nil
}
