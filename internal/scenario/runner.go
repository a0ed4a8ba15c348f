package scenario

import (
	"context"
	"fmt"
	"strings"
	"time"

	"selfheal/internal/locator"
	"selfheal/internal/logging"
	"selfheal/internal/pages"
	"selfheal/internal/session"

	"golang.org/x/sync/errgroup"
)

// Page is a browser page a scenario runs on.
type Page interface {
	pages.Driver
	Close() error
}

// PageFactory opens a blank page for one scenario attempt.
type PageFactory func(ctx context.Context) (Page, error)

// Config controls scenario scheduling.
type Config struct {
	Parallel int `yaml:"parallel"`
	Retry    int `yaml:"retry"`
}

// DefaultConfig runs scenarios one at a time without retries.
func DefaultConfig() Config {
	return Config{Parallel: 1, Retry: 0}
}

// Result is the outcome of one scenario.
type Result struct {
	Scenario  string
	SessionID string
	Passed    bool
	Err       error
	// FailedStep is the 1-based index of the failing step, or 0.
	FailedStep int
	Attempts   int
	Healed     int
	Persisted  int
	Duration   time.Duration
}

// Runner executes suites. Scenarios are independent sessions sharing one
// predictor.
type Runner struct {
	pred   session.Predictor
	open   PageFactory
	cfg    Config
	locCfg locator.Config
}

// NewRunner creates a runner.
func NewRunner(pred session.Predictor, open PageFactory, cfg Config, locCfg locator.Config) *Runner {
	if cfg.Parallel <= 0 {
		cfg.Parallel = 1
	}
	if cfg.Retry < 0 {
		cfg.Retry = 0
	}
	return &Runner{pred: pred, open: open, cfg: cfg, locCfg: locCfg}
}

// Run executes every scenario and returns results in suite order. A failing
// scenario is reported in its Result; the returned error is only set when
// ctx ends before all scenarios ran.
func (r *Runner) Run(ctx context.Context, suite *Suite) ([]Result, error) {
	timer := logging.StartTimer(logging.CategoryRunner, "Run")
	defer timer.Stop()

	defs := suite.PageDefinitions()
	results := make([]Result, len(suite.Scenarios))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Parallel)
	for i, sc := range suite.Scenarios {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				results[i] = Result{Scenario: sc.Name, Err: err}
				return err
			}
			results[i] = r.runWithRetry(gctx, sc, defs)
			return nil
		})
	}
	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}

	passed := 0
	for _, res := range results {
		if res.Passed {
			passed++
		}
	}
	logging.Runner("Suite finished: %d/%d scenarios passed", passed, len(results))
	return results, err
}

func (r *Runner) runWithRetry(ctx context.Context, sc Scenario, defs map[string]pages.Definition) Result {
	var res Result
	for attempt := 1; attempt <= r.cfg.Retry+1; attempt++ {
		res = r.runOnce(ctx, sc, defs)
		res.Attempts = attempt
		if res.Passed || ctx.Err() != nil {
			break
		}
		if attempt <= r.cfg.Retry {
			logging.Get(logging.CategoryRunner).Warn("Scenario %q failed (attempt %d): %v; retrying", sc.Name, attempt, res.Err)
		}
	}
	return res
}

func (r *Runner) runOnce(ctx context.Context, sc Scenario, defs map[string]pages.Definition) (res Result) {
	start := time.Now()
	res = Result{Scenario: sc.Name}
	defer func() { res.Duration = time.Since(start) }()

	page, err := r.open(ctx)
	if err != nil {
		res.Err = fmt.Errorf("open page: %w", err)
		return res
	}
	defer func() {
		if err := page.Close(); err != nil {
			logging.Get(logging.CategoryRunner).Warn("Scenario %q: close page: %v", sc.Name, err)
		}
	}()

	sess := session.New(r.pred, page, r.locCfg)
	res.SessionID = sess.ID()
	if err := sess.Begin(ctx); err != nil {
		res.Err = fmt.Errorf("begin session: %w", err)
		return res
	}
	defer func() {
		sum := sess.End(context.WithoutCancel(ctx))
		res.Healed = sum.Healed
		res.Persisted = sum.Persisted
	}()

	objects := make(map[string]*pages.Object)
	for i, st := range sc.Steps {
		obj, ok := objects[st.Page]
		if !ok {
			def, known := defs[st.Page]
			if !known {
				res.Err = fmt.Errorf("unknown page %q", st.Page)
				res.FailedStep = i + 1
				return res
			}
			obj = pages.Bind(def, page, sess.Resolver())
			objects[st.Page] = obj
		}
		if err := runStep(ctx, obj, st); err != nil {
			res.Err = fmt.Errorf("step %d (%s): %w", i+1, st, err)
			res.FailedStep = i + 1
			logging.Get(logging.CategoryRunner).Error("Scenario %q failed: %v", sc.Name, res.Err)
			return res
		}
		logging.RunnerDebug("Scenario %q: step %d ok (%s)", sc.Name, i+1, st)
	}

	res.Passed = true
	logging.Runner("Scenario %q passed", sc.Name)
	return res
}

func runStep(ctx context.Context, obj *pages.Object, st Step) error {
	switch st.Action {
	case ActionGoto:
		return obj.Open(ctx)
	case ActionFill:
		return obj.Fill(ctx, st.Field, st.Value)
	case ActionClick:
		return obj.Click(ctx, st.Field)
	case ActionExpectText:
		text, err := obj.Text(ctx, st.Field)
		if err != nil {
			return err
		}
		if !strings.Contains(text, st.Value) {
			return fmt.Errorf("expected %q in %q", st.Value, text)
		}
		return nil
	default:
		return fmt.Errorf("unknown action %q", st.Action)
	}
}
