package main

import (
	"context"
	"fmt"

	"selfheal/internal/browser"
	"selfheal/internal/locator"
	"selfheal/internal/session"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	resolvePrimary string
	resolveBackups []string
	resolveField   string
	resolvePage    string
)

// resolveCmd resolves one locator on a live page
var resolveCmd = &cobra.Command{
	Use:   "resolve [url]",
	Short: "Resolve one element through the fallback chain",
	Long: `Opens url and resolves a single element: primary locator, then backups,
then the model's prediction. A healed result is added to the training corpus.

Example:
  selfheal resolve https://www.saucedemo.com/ \
    --primary 'input[name="username"]' --backup '#username' --field "username input"`,
	Args: cobra.ExactArgs(1),
	RunE: resolveLocator,
}

func init() {
	resolveCmd.Flags().StringVar(&resolvePrimary, "primary", "", "Primary locator (required)")
	resolveCmd.Flags().StringArrayVar(&resolveBackups, "backup", nil, "Backup locator, tried in the order given (repeatable)")
	resolveCmd.Flags().StringVar(&resolveField, "field", "element", "Field name used in errors and healing records")
	resolveCmd.Flags().StringVar(&resolvePage, "page", "", "Page name recorded with healed locators (default: url)")
	_ = resolveCmd.MarkFlagRequired("primary")
}

func resolveLocator(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd.Context())
	defer cancel()

	url := args[0]
	pageName := resolvePage
	if pageName == "" {
		pageName = url
	}

	pred, corpus, err := openPredictor(ctx)
	if err != nil {
		return err
	}
	defer corpus.Close()
	defer pred.Close()

	mgr := browser.NewSessionManager(cfg.Browser)
	defer func() {
		if err := mgr.Shutdown(context.Background()); err != nil {
			logger.Warn("Browser shutdown failed", zap.Error(err))
		}
	}()

	page, err := mgr.NewPage(ctx, url)
	if err != nil {
		return err
	}
	defer page.Close()

	sess := session.New(pred, page, cfg.Locator)
	if err := sess.Begin(ctx); err != nil {
		return err
	}
	defer sess.End(context.WithoutCancel(ctx))

	out, err := sess.Resolver().Resolve(ctx, locator.Spec{
		Primary:  resolvePrimary,
		Backups:  resolveBackups,
		PageName: pageName,
		Field:    resolveField,
	})
	if err != nil {
		return err
	}

	label := out.Provenance.String()
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", provenanceStyle(label).Render(label), out.Locator)
	return nil
}
