/*
Copyright © 2026 Fariba Mohammaditabar

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU Affero General Public License as
	published by the Free Software Foundation, either version 3 of the
	License, or (at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU Affero General Public License for more details.

	You should have received a copy of the GNU Affero General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/frbmohammaditabar/security-rule-converter/internal/config"
	"github.com/frbmohammaditabar/security-rule-converter/internal/logging"
	"github.com/frbmohammaditabar/security-rule-converter/internal/pipeline"
	"github.com/frbmohammaditabar/security-rule-converter/internal/watch"
)

// Version is stamped at build time with -ldflags.
var Version = "dev"

const defaultConfigFile = "ruleconv.yaml"

type rootFlags struct {
	configFile string
	verbose    bool
	debug      bool
}

// Execute runs the CLI and returns the process exit code: 0 on full
// success, 1 on any fatal pipeline failure. Per-scanner failures are
// visible only in logs and do not change the exit code.
func Execute(ctx context.Context) int {
	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

func newRootCommand() *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:   "ruleconv",
		Short: "Convert threat indicator tables into scanner-native rule artifacts",
		Long: `ruleconv compiles a CSV table of threat indicators into YARA rules,
gitleaks rules and a ripgrep pattern list, then optionally runs each
artifact against a target file with the corresponding scanner.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			// A bare invocation is one conversion pass over the
			// conventionally named input in the working directory.
			return runPipeline(cmd.Context(), flags)
		},
	}
	root.PersistentFlags().StringVar(&flags.configFile, "config", "", "path to the YAML configuration file")
	root.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "log progress to the console")
	root.PersistentFlags().BoolVar(&flags.debug, "debug", false, "enable debug logging")

	root.AddCommand(newRunCommand(flags))
	root.AddCommand(newWatchCommand(flags))
	root.AddCommand(newVersionCommand())
	return root
}

// setup loads the configuration and builds the logger shared by the run
// and watch commands. With no --config flag, a ruleconv.yaml in the
// working directory is used when present; otherwise the conventional
// defaults apply.
func setup(flags *rootFlags) (config.Config, zerolog.Logger, error) {
	var cfg config.Config
	var err error

	switch {
	case flags.configFile != "":
		cfg, err = config.Load(flags.configFile)
	default:
		if _, statErr := os.Stat(defaultConfigFile); statErr == nil {
			cfg, err = config.Load(defaultConfigFile)
		} else {
			cfg = config.Default()
		}
	}
	if err != nil {
		return config.Config{}, zerolog.Nop(), err
	}

	if flags.debug {
		cfg.Logging.EnableConsole = true
		cfg.Logging.LogLevel = "debug"
	} else if flags.verbose {
		cfg.Logging.EnableConsole = true
	}

	return cfg, logging.New(cfg.Logging), nil
}

func runPipeline(ctx context.Context, flags *rootFlags) error {
	cfg, log, err := setup(flags)
	if err != nil {
		return err
	}
	p := pipeline.New(pipeline.Options{Config: cfg, Log: log})
	return p.Run(ctx)
}

func newRunCommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Execute one conversion pass",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd.Context(), flags)
		},
	}
}

func newWatchCommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Re-run the pipeline whenever the input table or metadata changes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup(flags)
			if err != nil {
				return err
			}
			p := pipeline.New(pipeline.Options{Config: cfg, Log: log})

			err = watch.Watch(cmd.Context(), log, p.Run, cfg.Paths.InputFile, cfg.Paths.MetadataFile)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the ruleconv version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "ruleconv %s\n", Version)
		},
	}
}
