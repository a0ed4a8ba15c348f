package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"selfheal/internal/browser"
	"selfheal/internal/scenario"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	runParallel int
	runRetry    int
)

// runCmd runs scenario suites in Chrome
var runCmd = &cobra.Command{
	Use:   "run [suite.yaml...]",
	Short: "Run scenario suites with self-healing locators",
	Long: `Runs every scenario in the given suite files. Each scenario gets its own
browser page and healing session; healed locators are appended to the
training corpus when the scenario ends, whether it passed or not.

Example:
  selfheal run suites/login.yaml --parallel 4`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSuites,
}

func init() {
	runCmd.Flags().IntVarP(&runParallel, "parallel", "p", 0, "Scenarios to run at once (default from config)")
	runCmd.Flags().IntVar(&runRetry, "retry", -1, "Retries per failed scenario (default from config)")
}

func runSuites(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd.Context())
	defer cancel()

	suites := make([]*scenario.Suite, 0, len(args))
	for _, path := range args {
		s, err := scenario.Load(path)
		if err != nil {
			return err
		}
		suites = append(suites, s)
	}

	runnerCfg := cfg.Runner
	if runParallel > 0 {
		runnerCfg.Parallel = runParallel
	}
	if runRetry >= 0 {
		runnerCfg.Retry = runRetry
	}

	pred, corpus, err := openPredictor(ctx)
	if err != nil {
		return err
	}
	defer corpus.Close()
	defer pred.Close()

	mgr := browser.NewSessionManager(cfg.Browser)
	if err := mgr.Start(ctx); err != nil {
		return fmt.Errorf("failed to start browser: %w", err)
	}
	defer func() {
		if err := mgr.Shutdown(context.Background()); err != nil {
			logger.Warn("Browser shutdown failed", zap.Error(err))
		}
	}()

	open := func(ctx context.Context) (scenario.Page, error) {
		page, err := mgr.NewPage(ctx, "")
		if err != nil {
			return nil, err
		}
		return page, nil
	}
	runner := scenario.NewRunner(pred, open, runnerCfg, cfg.Locator)

	failed := 0
	for i, s := range suites {
		logger.Info("Running suite", zap.String("path", args[i]), zap.Int("scenarios", len(s.Scenarios)))
		results, err := runner.Run(ctx, s)
		printResults(cmd.OutOrStdout(), args[i], results)
		for _, r := range results {
			if !r.Passed {
				failed++
			}
		}
		if err != nil {
			return err
		}
	}

	if failed > 0 {
		return errors.New(failureStyle.Render(fmt.Sprintf("%d scenario(s) failed", failed)))
	}
	return nil
}

func printResults(w io.Writer, suite string, results []scenario.Result) {
	rows := make([][]string, 0, len(results))
	passed := 0
	for _, r := range results {
		status := failureStyle.Render("FAIL")
		if r.Passed {
			status = successStyle.Render("PASS")
			passed++
		}
		detail := ""
		if r.Err != nil {
			detail = r.Err.Error()
		}
		rows = append(rows, []string{
			status,
			r.Scenario,
			strconv.Itoa(r.Healed),
			strconv.Itoa(r.Attempts),
			r.Duration.Round(time.Millisecond).String(),
			detail,
		})
	}

	fmt.Fprintln(w, titleStyle.Render(suite))
	fmt.Fprintln(w, renderTable([]string{"Status", "Scenario", "Healed", "Attempts", "Time", "Error"}, rows))
	fmt.Fprintln(w, mutedStyle.Render(fmt.Sprintf("%d/%d passed", passed, len(results))))
}
