package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/utkarsh5026/rowpipe/internal/config"
	"github.com/utkarsh5026/rowpipe/internal/logger"
)

var version = "0.1.0"

// app carries what every subcommand needs once flags are parsed.
type app struct {
	configFile string
	envFile    string

	cfg *config.Config
	log zerolog.Logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = color.New(color.FgRed, color.Bold).Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "rowpipe",
		Short: "Convert CSV records to JSON objects and back, in parallel",
		Long: `rowpipe converts tabular records to structured objects and back with a
parallel, order-preserving pipeline.

Bad rows either stop the run (the default) or, with --capture, are reported
with their line numbers while the remaining rows are converted.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd)
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true

	pf := root.PersistentFlags()
	pf.StringVar(&a.configFile, "config", "", "config file (default ./rowpipe.yml if present)")
	pf.StringVar(&a.envFile, "env-file", "", "env file (default ./.env if present)")
	pf.Int("workers", 0, "number of conversion workers (default GOMAXPROCS)")
	pf.Int("task-buffer", -1, "submission buffer size (default: number of workers)")
	pf.Bool("ordered", true, "keep input order")
	pf.Bool("capture", false, "capture bad rows instead of aborting")
	pf.Int("capture-limit", 0, "abort after this many captured rows (0 = unlimited)")
	pf.Float64("rate-limit", 0, "maximum conversions per second (0 = unlimited)")
	pf.Int("rate-burst", 0, "rate limit burst size")
	pf.Duration("await-timeout", 0, "how long to wait for workers after input ends (0 = forever)")
	pf.String("separator", ",", "CSV field separator")
	pf.String("log-level", "info", "log level (trace, debug, info, warn, error, disabled)")
	pf.String("log-format", "console", "log format (console, json)")
	pf.Bool("no-color", false, "disable colored output")

	root.AddCommand(newReadCmd(a))
	root.AddCommand(newWriteCmd(a))
	root.AddCommand(newVersionCmd())
	return root
}

func (a *app) load(cmd *cobra.Command) error {
	cfg, err := config.Load(
		config.WithConfigFile(a.configFile),
		config.WithEnvFile(a.envFile),
		config.WithFlags(cmd.Flags()),
	)
	if err != nil {
		return err
	}

	if cfg.Logging.NoColor {
		color.NoColor = true
	}

	a.cfg = cfg
	a.log = logger.WithComponent(logger.New(cfg.Logging), "cli")
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the rowpipe version",
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "rowpipe %s\n", version)
		},
	}
}
