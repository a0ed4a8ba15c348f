package locator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"selfheal/internal/healing"
	"selfheal/internal/predictor"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePage answers Exists from a fixed set and records every probe.
type fakePage struct {
	mu       sync.Mutex
	present  map[string]bool
	probed   []string
	timeouts []time.Duration
}

func newFakePage(present ...string) *fakePage {
	p := &fakePage{present: make(map[string]bool)}
	for _, loc := range present {
		p.present[loc] = true
	}
	return p
}

func (p *fakePage) Exists(ctx context.Context, locator string, timeout time.Duration) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.probed = append(p.probed, locator)
	p.timeouts = append(p.timeouts, timeout)
	return p.present[locator]
}

// fakePredictor returns a canned reply and counts calls.
type fakePredictor struct {
	reply string
	err   error
	calls []string
}

func (f *fakePredictor) Predict(ctx context.Context, locator string) (string, error) {
	f.calls = append(f.calls, locator)
	return f.reply, f.err
}

func usernameSpec() Spec {
	return Spec{
		Primary:  "#user",
		Backups:  []string{"#u1", "#u2"},
		PageName: "login page",
		Field:    "username input",
	}
}

func TestResolve_PrimaryExists(t *testing.T) {
	page := newFakePage("#user")
	pred := &fakePredictor{reply: "#healed"}
	log := healing.NewLog()

	out, err := NewResolver(page, pred, log, DefaultConfig()).Resolve(context.Background(), usernameSpec())

	require.NoError(t, err)
	assert.Equal(t, Outcome{Locator: "#user", Provenance: ProvenancePrimary}, out)
	assert.Empty(t, pred.calls, "predictor must not be consulted")
	assert.Zero(t, log.Len())
	assert.Equal(t, []string{"#user"}, page.probed)
}

func TestResolve_BackupShortCircuits(t *testing.T) {
	page := newFakePage("#u2", "#u3")
	pred := &fakePredictor{reply: "#healed"}
	log := healing.NewLog()

	spec := usernameSpec()
	spec.Backups = append(spec.Backups, "#u3")
	out, err := NewResolver(page, pred, log, DefaultConfig()).Resolve(context.Background(), spec)

	require.NoError(t, err)
	assert.Equal(t, Outcome{Locator: "#u2", Provenance: ProvenanceBackup}, out)
	assert.Equal(t, []string{"#user", "#u1", "#u2"}, page.probed, "earlier backups probed, later ones skipped")
	assert.Empty(t, pred.calls)
	assert.Zero(t, log.Len())
}

func TestResolve_Healed(t *testing.T) {
	page := newFakePage("#healed")
	pred := &fakePredictor{reply: "#healed"}
	log := healing.NewLog()

	out, err := NewResolver(page, pred, log, DefaultConfig()).Resolve(context.Background(), usernameSpec())

	require.NoError(t, err)
	assert.Equal(t, Outcome{Locator: "#healed", Provenance: ProvenanceHealed}, out)
	assert.Equal(t, []string{"#user"}, pred.calls, "predictor sees the primary locator")

	records := log.All()
	require.Len(t, records, 1)
	assert.Equal(t, "#user", records[0].Original)
	assert.Equal(t, "#healed", records[0].Healed)
	assert.Equal(t, "login page", records[0].PageName)
	assert.Equal(t, "username input", records[0].Field)
	assert.False(t, records[0].HealedAt.IsZero())
}

func TestResolve_AllCandidatesFail(t *testing.T) {
	page := newFakePage()
	pred := &fakePredictor{reply: "#healed"}
	log := healing.NewLog()

	_, err := NewResolver(page, pred, log, DefaultConfig()).Resolve(context.Background(), usernameSpec())

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLocatorNotFound)
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "username input", nf.Field)
	assert.Equal(t, []string{"#user", "#u1", "#u2", "#healed"}, nf.Tried)
	assert.Contains(t, err.Error(), "username input")
	assert.Zero(t, log.Len())
	assert.Len(t, pred.calls, 1)
}

func TestResolve_ProbeBound(t *testing.T) {
	page := newFakePage()
	pred := &fakePredictor{reply: "#healed"}

	cfg := Config{ValidationTimeoutMs: 150}
	_, err := NewResolver(page, pred, healing.NewLog(), cfg).Resolve(context.Background(), usernameSpec())
	require.Error(t, err)

	assert.Len(t, page.probed, 2+len(usernameSpec().Backups))
	for _, timeout := range page.timeouts {
		assert.Equal(t, 150*time.Millisecond, timeout)
	}
}

func TestResolve_EmptyPrediction(t *testing.T) {
	page := newFakePage("")
	pred := &fakePredictor{reply: ""}

	_, err := NewResolver(page, pred, healing.NewLog(), DefaultConfig()).Resolve(context.Background(), usernameSpec())

	assert.ErrorIs(t, err, ErrLocatorNotFound)
	assert.NotContains(t, page.probed, "", "empty candidate is never probed")
}

func TestResolve_PredictionError(t *testing.T) {
	boom := errors.New("inference exploded")
	pred := &fakePredictor{err: boom}
	log := healing.NewLog()

	_, err := NewResolver(newFakePage(), pred, log, DefaultConfig()).Resolve(context.Background(), usernameSpec())

	assert.ErrorIs(t, err, ErrLocatorNotFound)
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, log.Len())
}

func TestResolve_ModelNotLoadedPropagates(t *testing.T) {
	pred := &fakePredictor{err: predictor.ErrModelNotLoaded}

	_, err := NewResolver(newFakePage(), pred, healing.NewLog(), DefaultConfig()).Resolve(context.Background(), usernameSpec())

	assert.ErrorIs(t, err, predictor.ErrModelNotLoaded)
	assert.NotErrorIs(t, err, ErrLocatorNotFound)
}

func TestResolve_CancelledBetweenCandidates(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	page := &cancellingPage{fakePage: newFakePage(), cancel: cancel}
	pred := &fakePredictor{reply: "#healed"}

	_, err := NewResolver(page, pred, healing.NewLog(), DefaultConfig()).Resolve(ctx, usernameSpec())

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"#user"}, page.probed)
	assert.Empty(t, pred.calls)
}

// cancellingPage cancels the resolution after the first probe.
type cancellingPage struct {
	*fakePage
	cancel context.CancelFunc
}

func (p *cancellingPage) Exists(ctx context.Context, locator string, timeout time.Duration) bool {
	ok := p.fakePage.Exists(ctx, locator, timeout)
	p.cancel()
	return ok
}

func TestResolve_NoPredictor(t *testing.T) {
	_, err := NewResolver(newFakePage(), nil, healing.NewLog(), DefaultConfig()).Resolve(context.Background(), usernameSpec())
	assert.ErrorIs(t, err, ErrLocatorNotFound)
}

func TestProvenanceString(t *testing.T) {
	assert.Equal(t, "primary", ProvenancePrimary.String())
	assert.Equal(t, "backup", ProvenanceBackup.String())
	assert.Equal(t, "healed", ProvenanceHealed.String())
	assert.Equal(t, "unknown", Provenance(9).String())
}

func TestConfigValidationTimeout(t *testing.T) {
	assert.Equal(t, 2*time.Second, DefaultConfig().ValidationTimeout())
	assert.Equal(t, 2*time.Second, Config{}.ValidationTimeout())
	assert.Equal(t, 500*time.Millisecond, Config{ValidationTimeoutMs: 500}.ValidationTimeout())
}
