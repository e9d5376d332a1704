package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"benchmatrix/internal/benchmark"
	"benchmatrix/internal/config"
	"benchmatrix/internal/db"
	"benchmatrix/internal/docker"
	"benchmatrix/internal/harness"
	"benchmatrix/internal/metrics"
	"benchmatrix/internal/notify"
	"benchmatrix/internal/plan"
	"benchmatrix/internal/telemetry"

	"github.com/spf13/cobra"
)

var (
	runPlanFile    string
	runTrials      int
	runBinDir      string
	runSave        bool
	runCompare     bool
	runThreshold   float64
	runHistoryFile string
)

// Injection points for tests.
var (
	newRunnerFunc   = newRunner
	newHistoryFunc  = newHistory
	newNotifierFunc = func(s config.Settings) sweepNotifier {
		return notify.NewManager(s.SlackWebhookURL, s.DiscordWebhookURL, slog.Default())
	}
	gitCommitFunc = gitCommit
)

type sweepNotifier interface {
	Enabled() bool
	Notify(ctx context.Context, s notify.Summary) error
}

var runCmd = &cobra.Command{
	Use:   "run [preset...]",
	Short: "Run one or more benchmark matrices",
	Long: `Runs the named presets (default: sorting) and/or the matrices of a plan file
in order, streaming "finished N" after each input size, then prints the
GRAPH DATA and AVERAGES sections to stdout.

Available presets: ` + strings.Join(harness.PresetNames(), ", "),
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVarP(&runPlanFile, "plan", "p", "", "YAML plan file describing matrices to run")
	runCmd.Flags().IntVarP(&runTrials, "trials", "t", 0, "Trials per configuration point for presets (default from config)")
	runCmd.Flags().StringVar(&runBinDir, "bin-dir", "", "Directory holding preset executables (default from config)")
	runCmd.Flags().BoolVar(&runSave, "save", false, "Archive the sweep")
	runCmd.Flags().BoolVar(&runCompare, "compare", false, "Compare averages with the latest archived sweep")
	runCmd.Flags().Float64Var(&runThreshold, "fail-threshold", 0, "Exit non-zero when a point is slower than this percentage (requires --compare)")
	runCmd.Flags().StringVar(&runHistoryFile, "history-file", "", "Keep history in a JSON file instead of the database")
}

func runRun(cmd *cobra.Command, args []string) error {
	s := config.Current()
	if runTrials > 0 {
		s.Trials = runTrials
	}
	if runBinDir != "" {
		s.BinDir = runBinDir
	}

	plans, err := selectPlans(args, runPlanFile, s.BinDir, s.Trials)
	if err != nil {
		return err
	}
	if err := harness.Validate(plans); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.NewMetrics(nil)
	if s.MetricsAddr != "" {
		srv, err := telemetry.StartMetricsServer(s.MetricsAddr, m.Handler())
		if err != nil {
			return err
		}
		slog.Info("Serving metrics", "addr", srv.Addr())
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	runner, closeRunner, err := newRunnerFunc(ctx, s)
	if err != nil {
		return fmt.Errorf("failed to prepare runner: %w", err)
	}
	defer func() {
		if err := closeRunner(); err != nil {
			slog.Warn("Failed to release runner", "error", err)
		}
	}()

	h := &harness.Harness{
		Runner:   runner,
		Out:      cmd.OutOrStdout(),
		Logger:   slog.Default(),
		Metrics:  m,
		Deadline: s.SweepTimeout,
	}
	outcome, err := h.Run(ctx, plans)
	if err != nil {
		return err
	}
	if outcome.State == harness.Aborted {
		slog.Warn("Sweep ended early; results are partial", "reason", outcome.Reason)
	}

	notifyOutcome(ctx, newNotifierFunc(s), outcome)

	if !runSave && !runCompare {
		return nil
	}
	return archive(cmd, s, outcome)
}

// selectPlans resolves presets and plan-file matrices in command-line order:
// presets first, then the plan file.
func selectPlans(presets []string, planFile, binDir string, trials int) ([]harness.Plan, error) {
	if len(presets) == 0 && planFile == "" {
		presets = []string{"sorting"}
	}
	var plans []harness.Plan
	for _, name := range presets {
		p, err := harness.Preset(name, binDir, trials)
		if err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}
	if planFile != "" {
		filePlans, err := plan.Load(planFile)
		if err != nil {
			return nil, err
		}
		plans = append(plans, filePlans...)
	}
	return plans, nil
}

func notifyOutcome(ctx context.Context, n sweepNotifier, o *harness.Outcome) {
	if n == nil || !n.Enabled() {
		return
	}
	sum := notify.Summary{
		ID:      o.ID,
		State:   notify.StateCompleted,
		Plans:   o.Plans,
		Runs:    o.Runs,
		Failed:  len(o.Failures),
		Gaps:    len(o.Store.Gaps()),
		Elapsed: time.Since(o.Started),
	}
	if o.State == harness.Aborted {
		sum.State = notify.StateAborted
		if o.Reason != nil {
			sum.Reason = o.Reason.Error()
		}
	}
	// The sweep context may already be done after a deadline abort.
	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
	defer cancel()
	if err := n.Notify(notifyCtx, sum); err != nil {
		slog.Warn("Sweep notification incomplete", "error", err)
	}
}

// RegressionError reports points slower than the --fail-threshold.
type RegressionError struct {
	Threshold   float64
	Regressions []benchmark.Comparison
}

func (e *RegressionError) Error() string {
	return fmt.Sprintf("%d point(s) regressed by more than %.2f%%", len(e.Regressions), e.Threshold)
}

func archive(cmd *cobra.Command, s config.Settings, o *harness.Outcome) error {
	history, closer, err := newHistoryFunc(s, runHistoryFile)
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}
	defer closer.Close()

	run := o.Run()
	run.Commit = gitCommitFunc()
	errOut := cmd.ErrOrStderr()

	var regErr error
	if runCompare {
		prev, err := history.LoadLatest(run.Plans)
		if err != nil {
			return fmt.Errorf("failed to load previous sweep: %w", err)
		}
		if prev == nil {
			fmt.Fprintln(errOut, "No previous sweep to compare against.")
		} else {
			comps := benchmark.Compare(*prev, run)
			fmt.Fprintf(errOut, "Comparison with previous sweep %s (%s):\n", prev.ID, prev.Timestamp.Local().Format(time.RFC3339))
			for _, c := range comps {
				fmt.Fprintf(errOut, "  %s\n", c)
			}
			if runThreshold > 0 {
				if regs := benchmark.Regressions(comps, runThreshold); len(regs) > 0 {
					regErr = &RegressionError{Threshold: runThreshold, Regressions: regs}
				}
			}
		}
	}

	if runSave {
		if err := history.Save(run); err != nil {
			return fmt.Errorf("failed to save sweep: %w", err)
		}
		fmt.Fprintf(errOut, "Sweep %s saved.\n", run.ID)
	}
	return regErr
}

func newRunner(ctx context.Context, s config.Settings) (benchmark.Runner, func() error, error) {
	if s.DockerImage == "" {
		return benchmark.NewExecRunner(s.RunTimeout, s.IgnoreExitCode), func() error { return nil }, nil
	}

	cli, err := docker.NewClient()
	if err != nil {
		return nil, nil, err
	}
	r, err := docker.NewContainerRunner(ctx, cli, s.DockerImage, ".", s.DockerWorkdir)
	if err != nil {
		cli.Close()
		return nil, nil, err
	}
	r.Timeout = s.RunTimeout
	r.IgnoreExitCode = s.IgnoreExitCode
	return r, func() error {
		defer cli.Close()
		return r.Close()
	}, nil
}

func newHistory(s config.Settings, historyFile string) (benchmark.History, io.Closer, error) {
	if historyFile != "" {
		fs, err := benchmark.NewFileStore(historyFile)
		if err != nil {
			return nil, nil, err
		}
		return fs, nopCloser{}, nil
	}
	store, err := openArchive(s)
	if err != nil {
		return nil, nil, err
	}
	return store, store, nil
}

var openArchiveFunc = func(s config.Settings) (db.Store, error) {
	return db.NewStore(db.StoreConfig{Type: s.DBType, ConnectionString: s.DBDSN})
}

func openArchive(s config.Settings) (db.Store, error) {
	store, err := openArchiveFunc(s)
	if err != nil {
		return nil, fmt.Errorf("failed to open sweep archive: %w", err)
	}
	return store, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func gitCommit() string {
	out, err := exec.Command("git", "rev-parse", "--short", "HEAD").Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}
