package main

import (
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/rivervm/stm"
)

var (
	scenarioFlag   string
	configPathFlag string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one named scenario",
	RunE:  runRun,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List available scenario names",
	RunE:  runList,
}

func init() {
	runCmd.Flags().StringVar(&scenarioFlag, "scenario", "", "scenario to run (see 'stmrun list')")
	runCmd.Flags().StringVar(&configPathFlag, "config", "", "path to a TOML config file (defaults to stm.DefaultConfig())")
	runCmd.MarkFlagRequired("scenario")
}

func runRun(cmd *cobra.Command, args []string) error {
	run, ok := scenarios[scenarioFlag]
	if !ok {
		return fmt.Errorf("unknown scenario %q (run 'stmrun list' for valid names)", scenarioFlag)
	}

	cfg := stm.DefaultConfig()
	if configPathFlag != "" {
		loaded, err := stm.LoadConfig(configPathFlag)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	logger.Info("running scenario", "scenario", scenarioFlag, "thread_count", cfg.ThreadCount, "abort_every_other_commit", cfg.AbortEveryOtherCommit)

	summary, err := run(cfg)
	if err != nil {
		logger.Error("scenario failed", "scenario", scenarioFlag, "error", err)
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), summary)
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	names := make([]string, 0, len(scenarios))
	for name := range scenarios {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintln(cmd.OutOrStdout(), name)
	}
	return nil
}
