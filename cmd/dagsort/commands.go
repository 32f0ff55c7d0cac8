package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/dimitar-ivanov-93/dag-sorting/internal/cpm"
	"github.com/dimitar-ivanov-93/dag-sorting/internal/graph"
	"github.com/dimitar-ivanov-93/dag-sorting/internal/loader"
	"github.com/dimitar-ivanov-93/dag-sorting/internal/pipeline"
	"github.com/dimitar-ivanov-93/dag-sorting/internal/planner"
	"github.com/dimitar-ivanov-93/dag-sorting/internal/reporter"
	"github.com/dimitar-ivanov-93/dag-sorting/internal/state"
	"github.com/dimitar-ivanov-93/dag-sorting/internal/ui"
	"github.com/dimitar-ivanov-93/dag-sorting/internal/watch"
)

// loadPipeline reads the --pipeline file.
func loadPipeline(ctx context.Context) (*pipeline.Pipeline, error) {
	if flagPipeline == "" {
		return nil, errors.New("--pipeline is required")
	}
	l, name := loader.New(flagPipeline, rt.logger)
	p, err := l.Load(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("load pipeline: %w", err)
	}
	return p, nil
}

func planConfig(cores int) planner.PlanConfig {
	return planner.PlanConfig{
		Cores:            cores,
		Pool:             rt.cfg.PoolPolicy(),
		AllowUnknownDeps: flagAllowUnknownDeps,
		Source:           flagPipeline,
		Logger:           rt.logger,
	}
}

func simulateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Simulate the pipeline and print the execution trace",
		RunE: func(cmd *cobra.Command, args []string) error {
			cores, err := requireCores()
			if err != nil {
				return err
			}

			run := func(ctx context.Context) error {
				p, err := loadPipeline(ctx)
				if err != nil {
					return err
				}
				plan, err := planner.Generate(p, planConfig(cores))
				if plan == nil {
					return err
				}

				rpt := reporter.New(plan)
				if flagJSON {
					if err := outputJSON(cmd.OutOrStdout(), plan); err != nil {
						return err
					}
				} else {
					rpt.PrintTable(cmd.OutOrStdout())
				}

				if flagSave {
					store := state.NewStore(rt.cfg.StateDir)
					if err := store.Save(plan); err != nil {
						return fmt.Errorf("save run: %w", err)
					}
					rt.logger.Infof("saved run %s", plan.ID)
				}
				return err
			}

			if !flagWatch {
				return run(cmd.Context())
			}

			if err := run(cmd.Context()); err != nil {
				rt.logger.Errorf("%s", err)
			}
			w := &watch.Watcher{Path: flagPipeline, Logger: rt.logger}
			rt.logger.Infof("watching %s for changes", flagPipeline)
			return w.Run(cmd.Context(), func() {
				fmt.Fprintln(cmd.OutOrStdout())
				if err := run(cmd.Context()); err != nil {
					rt.logger.Errorf("%s", err)
				}
			})
		},
	}

	cmd.Flags().StringVar(&flagPipeline, "pipeline", "", "Path to the pipeline file (flat, .yaml or .json)")
	cmd.Flags().IntVar(&flagCores, "cpu-cores", 0, "Number of CPU cores available for executing tasks in parallel (1 or above)")
	cmd.Flags().StringVar(&flagPool, "pool", "", "How no_group tasks fill idle cores (single, fill)")
	cmd.Flags().BoolVar(&flagJSON, "json", false, "Machine-readable JSON output")
	cmd.Flags().BoolVar(&flagSave, "save", false, "Save the run to the state dir")
	cmd.Flags().BoolVar(&flagWatch, "watch", false, "Simulate again every time the pipeline file changes")
	cmd.Flags().BoolVar(&flagAllowUnknownDeps, "allow-unknown-deps", false, "Accept dependencies on unknown tasks (such tasks never start)")

	return cmd
}

func orderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "order",
		Short: "Print every group's tasks in dependency order",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadPipeline(cmd.Context())
			if err != nil {
				return err
			}
			if !flagAllowUnknownDeps {
				if err := p.Validate(); err != nil {
					return fmt.Errorf("invalid pipeline: %w", err)
				}
			}
			if err := graph.OrderPipeline(p); err != nil {
				return err
			}

			switch flagFormat {
			case "dot":
				analysis, err := cpm.Analyze(p)
				if err != nil {
					rt.logger.Warningf("critical path analysis failed: %s", err)
				}
				reporter.PrintDOT(cmd.OutOrStdout(), p, analysis)
			case "json":
				return outputJSON(cmd.OutOrStdout(), p)
			default:
				reporter.PrintOrder(cmd.OutOrStdout(), p)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&flagPipeline, "pipeline", "", "Path to the pipeline file (flat, .yaml or .json)")
	cmd.Flags().StringVar(&flagFormat, "format", "text", "Output format (text, dot, json)")
	cmd.Flags().BoolVar(&flagAllowUnknownDeps, "allow-unknown-deps", false, "Accept dependencies on unknown tasks")

	return cmd
}

func sweepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Simulate the pipeline for a range of core counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadPipeline(cmd.Context())
			if err != nil {
				return err
			}

			points, err := planner.Sweep(cmd.Context(), p, planConfig(0), flagFrom, flagTo)
			if err != nil {
				return err
			}

			if flagJSON {
				return outputJSON(cmd.OutOrStdout(), points)
			}
			reporter.PrintSweep(cmd.OutOrStdout(), points)
			return nil
		},
	}

	cmd.Flags().StringVar(&flagPipeline, "pipeline", "", "Path to the pipeline file (flat, .yaml or .json)")
	cmd.Flags().StringVar(&flagPool, "pool", "", "How no_group tasks fill idle cores (single, fill)")
	cmd.Flags().IntVar(&flagFrom, "from", 1, "Smallest core count")
	cmd.Flags().IntVar(&flagTo, "to", 8, "Largest core count")
	cmd.Flags().BoolVar(&flagJSON, "json", false, "Machine-readable JSON output")
	cmd.Flags().BoolVar(&flagAllowUnknownDeps, "allow-unknown-deps", false, "Accept dependencies on unknown tasks")

	return cmd
}

func historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List saved runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			store := state.NewStore(rt.cfg.StateDir)

			if flagClean {
				if err := store.Clean(); err != nil {
					return fmt.Errorf("clean state dir: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s removed %s\n", ui.Green("✓"), store.Dir)
				return nil
			}

			plans, err := store.List()
			if err != nil {
				return err
			}
			if flagJSON {
				return outputJSON(cmd.OutOrStdout(), plans)
			}
			reporter.PrintHistory(cmd.OutOrStdout(), plans)
			return nil
		},
	}

	cmd.Flags().BoolVar(&flagJSON, "json", false, "Machine-readable JSON output")
	cmd.Flags().BoolVar(&flagClean, "clean", false, "Delete every saved run")

	return cmd
}

func showCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show [ID]",
		Short: "Show a saved run (the latest when no ID is given)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store := state.NewStore(rt.cfg.StateDir)

			var plan *planner.ExecutionPlan
			var err error
			if len(args) == 1 {
				plan, err = store.Load(args[0])
			} else {
				plan, err = store.Latest()
			}
			if err != nil {
				return err
			}

			rpt := reporter.New(plan)
			if flagJSON {
				return outputJSON(cmd.OutOrStdout(), plan)
			}
			rpt.PrintSummary(cmd.OutOrStdout())
			fmt.Fprintln(cmd.OutOrStdout())
			rpt.PrintTable(cmd.OutOrStdout())
			return nil
		},
	}

	cmd.Flags().BoolVar(&flagJSON, "json", false, "Machine-readable JSON output")

	return cmd
}

func outputJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(w, string(data))
	return nil
}
