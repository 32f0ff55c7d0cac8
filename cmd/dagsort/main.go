package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/dimitar-ivanov-93/dag-sorting/internal/config"
	"github.com/dimitar-ivanov-93/dag-sorting/internal/log"
	loglogrus "github.com/dimitar-ivanov-93/dag-sorting/internal/log/logrus"
	"github.com/dimitar-ivanov-93/dag-sorting/internal/ui"
)

// Version is set at build time.
var Version = "dev"

var (
	flagConfig    string
	flagStateDir  string
	flagLogLevel  string
	flagLogFormat string
	flagLogFile   string
	flagNoColor   bool

	flagPipeline         string
	flagCores            int
	flagPool             string
	flagJSON             bool
	flagSave             bool
	flagWatch            bool
	flagAllowUnknownDeps bool
	flagFormat           string
	flagFrom             int
	flagTo               int
	flagClean            bool
)

// app is what every command gets after the root pre-run.
type app struct {
	cfg     *config.Config
	logger  log.Logger
	logFile io.Closer
}

var rt app

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if rt.logFile != nil {
		rt.logFile.Close()
	}
	if err != nil {
		if rt.logger != nil {
			rt.logger.Errorf("%s", err)
		} else {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "dagsort",
		Short: "Simulate a group-serialized task pipeline on a fixed number of cores",
		Long: `dagsort reads a pipeline of tasks with durations, groups and dependencies,
orders every group by its dependencies and simulates its execution minute by
minute on a fixed number of CPU cores. All tasks of a group finish before the
next group starts; tasks without a group fill idle cores.`,
		Version:           Version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: setup,
	}

	// Accept the snake_case spelling of flags, e.g. --cpu_cores.
	rootCmd.SetGlobalNormalizationFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		if name == "cpu_cores" {
			name = "cpu-cores"
		}
		return pflag.NormalizedName(name)
	})

	// Global flags
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagConfig, "config", "", "Config file (default .dagsort.yaml in the working directory)")
	pf.StringVar(&flagStateDir, "state-dir", "", "Directory for saved runs (default .dagsort)")
	pf.StringVar(&flagLogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	pf.StringVar(&flagLogFormat, "log-format", "", "Log format (text, json)")
	pf.StringVar(&flagLogFile, "log-file", "", "Also append errors to this file")
	pf.BoolVar(&flagNoColor, "no-color", false, "Disable colored output")

	rootCmd.AddCommand(simulateCmd())
	rootCmd.AddCommand(orderCmd())
	rootCmd.AddCommand(sweepCmd())
	rootCmd.AddCommand(historyCmd())
	rootCmd.AddCommand(showCmd())

	return rootCmd
}

// setup resolves the configuration and builds the logger.
func setup(cmd *cobra.Command, _ []string) error {
	v := config.New()
	bindings := map[string]string{
		config.KeyStateDir:  "state-dir",
		config.KeyLogLevel:  "log-level",
		config.KeyLogFormat: "log-format",
		config.KeyLogFile:   "log-file",
		config.KeyNoColor:   "no-color",
		config.KeyCores:     "cpu-cores",
		config.KeyPool:      "pool",
	}
	for key, name := range bindings {
		if f := cmd.Flags().Lookup(name); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return err
			}
		}
	}

	cfg, err := config.Load(v, config.Options{File: flagConfig})
	if err != nil {
		return err
	}

	logger, closer, err := getLogger(cmd.ErrOrStderr(), cfg)
	if err != nil {
		return err
	}

	ui.SetNoColor(cfg.NoColor || os.Getenv("NO_COLOR") != "")
	rt = app{cfg: cfg, logger: logger, logFile: closer}
	return nil
}

func getLogger(stderr io.Writer, cfg *config.Config) (log.Logger, io.Closer, error) {
	logrusLog := logrus.New()
	logrusLog.Out = stderr // Keep stdout for the trace.

	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid log level: %w", err)
	}
	logrusLog.SetLevel(level)

	switch cfg.Log.Format {
	case "json":
		logrusLog.SetFormatter(&logrus.JSONFormatter{})
	default:
		logrusLog.SetFormatter(&logrus.TextFormatter{
			DisableColors: cfg.NoColor,
		})
	}

	var closer io.Closer
	if cfg.Log.File != "" {
		f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		logrusLog.AddHook(&errorFileHook{w: f, formatter: &logrus.TextFormatter{DisableColors: true, FullTimestamp: true}})
		closer = f
	}

	logger := loglogrus.NewLogrus(logrus.NewEntry(logrusLog)).WithValues(log.Kv{
		"version": Version,
	})
	logger.Debugf("Debug level is enabled")

	return logger, closer, nil
}

// errorFileHook appends error level entries to a file.
type errorFileHook struct {
	w         io.Writer
	formatter logrus.Formatter
}

func (h *errorFileHook) Levels() []logrus.Level {
	return []logrus.Level{logrus.PanicLevel, logrus.FatalLevel, logrus.ErrorLevel}
}

func (h *errorFileHook) Fire(entry *logrus.Entry) error {
	line, err := h.formatter.Format(entry)
	if err != nil {
		return err
	}
	_, err = h.w.Write(line)
	return err
}

// requireCores returns the configured core count or an error when unset.
func requireCores() (int, error) {
	if rt.cfg.Cores < 1 {
		return 0, errors.New("--cpu-cores must be an integer of 1 or above")
	}
	return rt.cfg.Cores, nil
}
