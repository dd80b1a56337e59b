// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/jeranaias/seven/internal/config"
	"github.com/jeranaias/seven/internal/logging"
	"github.com/jeranaias/seven/internal/offline"
)

// Version information (overridden at build time via main)
var (
	Version   = "0.3.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// app holds the state shared by every subcommand: persistent flag values
// and the configuration loaded before the command runs.
type app struct {
	configPath string
	logLevel   string
	offline    bool

	cfg       *config.Config
	logCloser io.Closer
}

// NewRootCmd builds the seven command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "seven",
		Short: "Energy-aware LLM router",
		Long: `seven answers prompts on a local model first and escalates to a cloud
model only when the local answer is uncertain or the local server fails.
Every answer is annotated with the energy it used and the energy saved
against an all-cloud baseline.

Ask a question:      seven ask "What is the capital of France?"
See the decision:    seven classify "Write a Python function"
Energy saved:        seven stats
Run the HTTP API:    seven serve`,
		Version:            fmt.Sprintf("%s (commit %s, built %s)", Version, GitCommit, BuildDate),
		SilenceUsage:       true,
		SilenceErrors:      true,
		PersistentPreRunE:  a.setup,
		PersistentPostRunE: a.teardown,
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default ~/.seven/config.toml)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error, disabled")
	root.PersistentFlags().BoolVar(&a.offline, "offline", false, "block every non-loopback network call")

	root.AddCommand(
		askCmd(a),
		classifyCmd(a),
		profilesCmd(a),
		statsCmd(a),
		serveCmd(a),
		configCmd(a),
	)
	return root
}

// Execute runs the command line and returns the process exit code.
func Execute() int {
	root := NewRootCmd()
	err := root.Execute()
	if err != nil {
		fmt.Fprintln(root.ErrOrStderr(), ErrorStyle.Render("Error:"), err)
	}
	return ExitCode(err)
}

// setup loads configuration, applies flag overrides, installs the logger
// and sets offline mode.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := a.loadConfig(cmd)
	if err != nil {
		return configError(cmd.Name(), err)
	}
	if a.offline {
		cfg.Routing.OfflineMode = true
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}

	closer, err := logging.Setup(&logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		File:   cfg.Logging.File,
		Out:    cmd.ErrOrStderr(),
	})
	if err != nil {
		return configError(cmd.Name(), err)
	}
	a.logCloser = closer

	offline.SetOfflineMode(cfg.Routing.OfflineMode)
	a.cfg = cfg
	return nil
}

func (a *app) teardown(*cobra.Command, []string) error {
	if a.logCloser != nil {
		return a.logCloser.Close()
	}
	return nil
}

// annotationConfigOptional marks commands that run without a config file
// even when --config names one that does not exist yet.
const annotationConfigOptional = "seven/config-optional"

// loadConfig reads --config when given. Otherwise the default locations
// are tried; a broken default file is reported and defaults are used.
func (a *app) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	if a.configPath != "" {
		if _, optional := cmd.Annotations[annotationConfigOptional]; optional && !exists(a.configPath) {
			cfg := config.Default()
			cfg.SetDefaults()
			return cfg, nil
		}
		return config.LoadFromPath(a.configPath)
	}
	cfg, err := config.Load()
	if err != nil {
		if cfg == nil {
			return nil, err
		}
		fmt.Fprintln(cmd.ErrOrStderr(), WarningStyle.Render("Warning:"), err, "(using defaults)")
	}
	return cfg, nil
}

// resolvedConfigPath is the file `seven serve` watches and `seven config`
// reports: --config when set, otherwise the default TOML path.
func (a *app) resolvedConfigPath() (string, error) {
	if a.configPath != "" {
		return a.configPath, nil
	}
	return config.ConfigPathTOML()
}

// exists reports whether path names an existing file.
func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
