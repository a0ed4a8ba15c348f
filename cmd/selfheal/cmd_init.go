package main

import (
	"fmt"
	"os"
	"path/filepath"

	"selfheal/internal/scenario"

	"github.com/spf13/cobra"
)

var (
	initForce bool
	initDir   string
)

// initCmd writes a starter config and suite
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter selfheal.yaml and login suite",
	Long: `Creates selfheal.yaml with the default configuration and suites/login.yaml
with a sample login scenario. Existing files are left alone unless --force
is given.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite existing files")
	initCmd.Flags().StringVar(&initDir, "dir", ".", "Directory to initialize")
}

func runInit(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	configFile := filepath.Join(initDir, filepath.Base(configPath))
	if written, err := writeUnlessExists(configFile, func(path string) error {
		return cfg.Save(path)
	}); err != nil {
		return err
	} else if written {
		fmt.Fprintf(out, "%s %s\n", successStyle.Render("created"), configFile)
	} else {
		fmt.Fprintf(out, "%s %s (exists)\n", mutedStyle.Render("skipped"), configFile)
	}

	suiteFile := filepath.Join(initDir, "suites", "login.yaml")
	if written, err := writeUnlessExists(suiteFile, scenario.SampleSuite().Save); err != nil {
		return err
	} else if written {
		fmt.Fprintf(out, "%s %s\n", successStyle.Render("created"), suiteFile)
	} else {
		fmt.Fprintf(out, "%s %s (exists)\n", mutedStyle.Render("skipped"), suiteFile)
	}
	return nil
}

func writeUnlessExists(path string, write func(string) error) (bool, error) {
	if !initForce {
		if _, err := os.Stat(path); err == nil {
			return false, nil
		}
	}
	if err := write(path); err != nil {
		return false, fmt.Errorf("failed to write %s: %w", path, err)
	}
	return true, nil
}
