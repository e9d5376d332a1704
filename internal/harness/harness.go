package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"benchmatrix/internal/benchmark"
	"benchmatrix/internal/metrics"

	"github.com/google/uuid"
)

// State is the lifecycle state of a Harness.
type State int

const (
	Idle State = iota
	Running
	Completed
	Aborted
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Completed:
		return "completed"
	case Aborted:
		return "aborted"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Harness runs plans in a fixed sequence and writes the result stream.
type Harness struct {
	Runner   benchmark.Runner
	Out      io.Writer
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
	Deadline time.Duration // overall wall-clock bound; 0 means none

	mu      sync.Mutex
	state   State
	current int
}

// Outcome is the result of one harness invocation.
type Outcome struct {
	ID       string
	Started  time.Time
	Plans    []string
	Store    *benchmark.Store
	Tables   []benchmark.TableLayout
	Runs     int
	Failures []benchmark.Failure
	State    State
	Reason   error // why the sweep was aborted, nil when completed
}

// Run converts the outcome into an archivable sweep record.
func (o *Outcome) Run() benchmark.Run {
	return benchmark.Run{
		ID:        o.ID,
		Timestamp: o.Started,
		Plans:     o.Plans,
		Points:    o.Store.Points(),
		Tables:    o.Tables,
	}
}

// Summary is a one-line description of the outcome.
func (o *Outcome) Summary() string {
	return fmt.Sprintf("sweep %s %s: plans=%v runs=%d failed=%d gaps=%d",
		o.ID, o.State, o.Plans, o.Runs, len(o.Failures), len(o.Store.Gaps()))
}

// State returns the current state and the index of the RunSpec in progress.
func (h *Harness) State() (State, int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state, h.current
}

func (h *Harness) setState(s State) {
	h.mu.Lock()
	h.state = s
	h.mu.Unlock()
	if h.Metrics != nil {
		h.Metrics.SetState(int(s))
	}
}

func (h *Harness) logger() *slog.Logger {
	if h.Logger == nil {
		return slog.Default()
	}
	return h.Logger
}

// Validate checks every plan before anything is spawned. Result labels must
// be unique across plans since all plans share one result store.
func Validate(plans []Plan) error {
	if len(plans) == 0 {
		return &benchmark.ConfigurationError{Reason: "no plans selected"}
	}
	owners := make(map[string]string)
	for _, p := range plans {
		if p.Matrix == nil {
			return &benchmark.ConfigurationError{Reason: "plan without a matrix"}
		}
		if err := p.Matrix.Validate(); err != nil {
			return err
		}
		for _, label := range p.Matrix.Labels() {
			if owner, ok := owners[label]; ok {
				return &benchmark.ConfigurationError{
					Reason: fmt.Sprintf("result label %q produced by plans %q and %q", label, owner, p.Name()),
				}
			}
			owners[label] = p.Name()
		}
	}
	return nil
}

// Run executes plans in order and writes progress, GRAPH DATA and AVERAGES to Out.
//
// A configuration error aborts before any process starts and is returned. When
// the deadline expires, remaining RunSpecs are skipped, the collected results
// are still rendered and the outcome reports the Aborted state.
func (h *Harness) Run(ctx context.Context, plans []Plan) (*Outcome, error) {
	outcome := &Outcome{
		ID:      uuid.NewString(),
		Started: time.Now().UTC(),
		Store:   benchmark.NewStore(),
	}
	for _, p := range plans {
		if p.Matrix != nil {
			outcome.Plans = append(outcome.Plans, p.Name())
		}
	}

	h.setState(Idle)
	if err := Validate(plans); err != nil {
		h.setState(Aborted)
		outcome.State, outcome.Reason = Aborted, err
		return outcome, err
	}

	if h.Deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.Deadline)
		defer cancel()
	}

	out := NewReportWriter(h.Out, h.logger())
	h.setState(Running)
	h.logger().Info("Starting sweep", "id", outcome.ID, "plans", outcome.Plans)

	offset := 0
	for i, p := range plans {
		obs := &observer{h: h, out: out, offset: offset}
		report, err := p.Matrix.Execute(ctx, h.Runner, outcome.Store, obs)
		outcome.Runs += report.Runs
		outcome.Failures = append(outcome.Failures, report.Failures...)
		offset += report.Runs
		if err != nil {
			if !errors.Is(err, benchmark.ErrAborted) {
				h.setState(Aborted)
				outcome.State, outcome.Reason = Aborted, err
				return outcome, err
			}
			outcome.State, outcome.Reason = Aborted, err
			h.logger().Warn("Sweep aborted, rendering partial results", "plan", p.Name(), "error", err)
			// Plans that never started still render as gaps.
			for _, skipped := range plans[i+1:] {
				skipped.Matrix.Register(outcome.Store)
			}
			break
		}
	}

	sections := make([]Section, 0, len(plans))
	for _, p := range plans {
		sections = append(sections, Section{Name: p.Name(), Series: p.Series(), Tables: p.TablesOrDefault()})
	}
	outcome.Tables = Layouts(sections)
	if err := out.Write(outcome.Store, sections); err != nil {
		return outcome, fmt.Errorf("failed to write results: %w", err)
	}

	if outcome.Reason != nil {
		h.setState(Aborted)
	} else {
		outcome.State = Completed
		h.setState(Completed)
	}
	h.logger().Info("Sweep finished", "id", outcome.ID, "state", outcome.State, "runs", outcome.Runs, "failures", len(outcome.Failures))
	return outcome, nil
}

// observer reports per-RunSpec events to the log, the metrics and Out.
type observer struct {
	h      *Harness
	out    *ReportWriter
	offset int
}

func (o *observer) RunStarted(index int, spec benchmark.RunSpec) {
	o.h.mu.Lock()
	o.h.current = o.offset + index
	o.h.mu.Unlock()
	if o.h.Metrics != nil {
		o.h.Metrics.CurrentSize.Set(float64(spec.Size))
	}
	o.h.logger().Debug("Running", "spec", spec.String(), "args", spec.Args())
}

func (o *observer) RunFinished(spec benchmark.RunSpec, m benchmark.Measurement) {
	if o.h.Metrics != nil {
		o.h.Metrics.ObserveRun(spec.Label, float64(m))
	}
}

func (o *observer) RunFailed(spec benchmark.RunSpec, err error) {
	o.h.logger().Warn("Benchmark run failed",
		"target", spec.Target.Name,
		"kind", spec.Kind,
		"label", spec.Label,
		"size", spec.Size,
		"variant", spec.Variant.Name,
		"trial", spec.Trial,
		"error", err,
	)
	if o.h.Metrics != nil {
		o.h.Metrics.ObserveFailure(spec.Label, failureReason(err))
	}
}

func (o *observer) SizeFinished(size int) {
	if o.h.Metrics != nil {
		o.h.Metrics.SizesCompleted.Inc()
	}
	if err := o.out.Progress("finished %d", size); err != nil {
		o.h.logger().Error("Failed to write progress", "error", err)
	}
}

func failureReason(err error) string {
	var execErr *benchmark.ExecutionError
	var timeoutErr *benchmark.TimeoutError
	var parseErr *benchmark.ParseError
	switch {
	case errors.As(err, &timeoutErr):
		return "timeout"
	case errors.As(err, &parseErr):
		return "parse"
	case errors.As(err, &execErr):
		if execErr.ExitCode < 0 {
			return "start"
		}
		return "exit"
	default:
		return "other"
	}
}
