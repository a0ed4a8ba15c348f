package scenario

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"selfheal/internal/locator"
	"selfheal/internal/pages"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// fakePage renders a fixed DOM: locator -> text.
type fakePage struct {
	dom     map[string]string
	delay   time.Duration
	mu      sync.Mutex
	filled  map[string]string
	closed  bool
	onClose func()
}

func (p *fakePage) Exists(ctx context.Context, loc string, timeout time.Duration) bool {
	_, ok := p.dom[loc]
	return ok
}

func (p *fakePage) Fill(ctx context.Context, loc, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.filled[loc] = value
	return nil
}

func (p *fakePage) Click(ctx context.Context, loc string) error { return nil }

func (p *fakePage) ReadText(ctx context.Context, loc string) (string, error) {
	return p.dom[loc], nil
}

func (p *fakePage) Navigate(ctx context.Context, url string) error {
	select {
	case <-time.After(p.delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *fakePage) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	if p.onClose != nil {
		p.onClose()
	}
	return nil
}

// pageFarm hands out fake pages and tracks how many are open at once.
type pageFarm struct {
	dom     map[string]string
	delay   time.Duration
	open    atomic.Int32
	maxOpen atomic.Int32
	opened  atomic.Int32
	fail    error
}

func (f *pageFarm) factory(ctx context.Context) (Page, error) {
	if f.fail != nil {
		return nil, f.fail
	}
	f.opened.Add(1)
	n := f.open.Add(1)
	for {
		cur := f.maxOpen.Load()
		if n <= cur || f.maxOpen.CompareAndSwap(cur, n) {
			break
		}
	}
	return &fakePage{
		dom:     f.dom,
		delay:   f.delay,
		filled:  make(map[string]string),
		onClose: func() { f.open.Add(-1) },
	}, nil
}

type fakePredictor struct {
	reply  string
	loads  atomic.Int32
	mu     sync.Mutex
	stored [][2]string
}

func (f *fakePredictor) Load(ctx context.Context) error {
	f.loads.Add(1)
	return nil
}

func (f *fakePredictor) Predict(ctx context.Context, loc string) (string, error) {
	return f.reply, nil
}

func (f *fakePredictor) StoreTrainingData(ctx context.Context, original, healed string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stored = append(f.stored, [2]string{original, healed})
	return nil
}

// healedLoginDOM has the login page with a renamed login button.
func healedLoginDOM() map[string]string {
	return map[string]string{
		`input[name="username"]`: "",
		"#password":              "",
		"#login-button":          "",
		"#loginSuccess":          "Welcome standard_user",
	}
}

func TestRunner_SampleSuiteHeals(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))

	farm := &pageFarm{dom: healedLoginDOM()}
	pred := &fakePredictor{reply: "#login-button"}
	r := NewRunner(pred, farm.factory, DefaultConfig(), locator.DefaultConfig())

	results, err := r.Run(context.Background(), SampleSuite())
	require.NoError(t, err)
	require.Len(t, results, 1)

	res := results[0]
	require.NoError(t, res.Err)
	assert.True(t, res.Passed)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, 1, res.Healed)
	assert.Equal(t, 1, res.Persisted)
	assert.NotEmpty(t, res.SessionID)
	assert.Equal(t, [][2]string{{`button[name="login"]`, "#login-button"}}, pred.stored)
	assert.Zero(t, farm.open.Load(), "page closed")
}

func TestRunner_FailureIsAResult(t *testing.T) {
	farm := &pageFarm{dom: map[string]string{}}
	pred := &fakePredictor{}
	r := NewRunner(pred, farm.factory, Config{Parallel: 1, Retry: 1}, locator.Config{ValidationTimeoutMs: 10})

	results, err := r.Run(context.Background(), SampleSuite())
	require.NoError(t, err)
	require.Len(t, results, 1)

	res := results[0]
	assert.False(t, res.Passed)
	assert.ErrorIs(t, res.Err, locator.ErrLocatorNotFound)
	assert.Equal(t, 2, res.FailedStep, "goto passes, username fill fails")
	assert.Equal(t, 2, res.Attempts)
	assert.Equal(t, int32(2), farm.opened.Load(), "each attempt gets a fresh page")
	assert.Empty(t, pred.stored)
}

func TestRunner_ExpectTextMismatch(t *testing.T) {
	dom := healedLoginDOM()
	dom["#loginSuccess"] = "Epic sadface"
	farm := &pageFarm{dom: dom}
	r := NewRunner(&fakePredictor{reply: "#login-button"}, farm.factory, DefaultConfig(), locator.DefaultConfig())

	results, err := r.Run(context.Background(), SampleSuite())
	require.NoError(t, err)
	assert.False(t, results[0].Passed)
	assert.Equal(t, 5, results[0].FailedStep)
	assert.Equal(t, 1, results[0].Healed, "healing still harvested on a failed scenario")
}

func TestRunner_ParallelLimit(t *testing.T) {
	suite := &Suite{}
	for _, name := range []string{"a", "b", "c", "d", "e", "f"} {
		suite.Scenarios = append(suite.Scenarios, Scenario{
			Name:  name,
			Steps: []Step{{Action: ActionGoto, Page: "login page"}},
		})
	}
	farm := &pageFarm{dom: healedLoginDOM(), delay: 30 * time.Millisecond}
	pred := &fakePredictor{}
	r := NewRunner(pred, farm.factory, Config{Parallel: 2}, locator.DefaultConfig())

	results, err := r.Run(context.Background(), suite)
	require.NoError(t, err)
	require.Len(t, results, 6)
	for i, res := range results {
		assert.Equal(t, suite.Scenarios[i].Name, res.Scenario, "results keep suite order")
		assert.True(t, res.Passed)
	}
	assert.LessOrEqual(t, farm.maxOpen.Load(), int32(2))
	assert.Equal(t, int32(6), pred.loads.Load())
}

func TestRunner_PageOpenFailure(t *testing.T) {
	farm := &pageFarm{fail: errors.New("chrome crashed")}
	r := NewRunner(&fakePredictor{}, farm.factory, DefaultConfig(), locator.DefaultConfig())

	results, err := r.Run(context.Background(), SampleSuite())
	require.NoError(t, err)
	assert.False(t, results[0].Passed)
	assert.ErrorContains(t, results[0].Err, "chrome crashed")
}

func TestRunner_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	farm := &pageFarm{dom: healedLoginDOM()}
	r := NewRunner(&fakePredictor{}, farm.factory, DefaultConfig(), locator.DefaultConfig())

	_, err := r.Run(ctx, SampleSuite())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewRunner_NormalizesConfig(t *testing.T) {
	r := NewRunner(nil, nil, Config{Parallel: 0, Retry: -3}, locator.DefaultConfig())
	assert.Equal(t, 1, r.cfg.Parallel)
	assert.Equal(t, 0, r.cfg.Retry)
}

var _ pages.Driver = (*fakePage)(nil)
