package optimize

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/skadi/skadi/pkg/circuit"
	"github.com/skadi/skadi/pkg/engine"
	"github.com/skadi/skadi/pkg/telemetry"
	"github.com/skadi/skadi/pkg/transform"
)

// Built-in optimization levels.
const (
	LevelBasic      = "basic"
	LevelDefault    = "default"
	LevelAggressive = "aggressive"

	// LevelCustom names optimizations run from an ad-hoc transform list.
	LevelCustom = "custom"

	// RecordPrefix starts the name of every optimization record.
	RecordPrefix = "optimize_"
)

// BuiltinLevels returns the pipelines of the built-in levels.
func BuiltinLevels() map[string][]string {
	return map[string][]string{
		LevelBasic: {transform.CancelInverses},
		LevelDefault: {
			transform.CommuteControlled,
			transform.CancelInverses,
			transform.MergeRotations,
		},
		LevelAggressive: {
			transform.CommuteControlled,
			transform.CancelInverses,
			transform.MergeRotations,
			transform.Simplify,
		},
	}
}

// Options tune a single Optimize call.
type Options struct {
	// Passes is how many times the pipeline runs. Zero means one pass.
	Passes int

	// Custom replaces the level pipeline with these transform names.
	Custom []string

	// GateSet, when set, decomposes the result into these gates after
	// the passes.
	GateSet []string
}

// Optimizer runs named pipelines of transforms over circuits.
type Optimizer struct {
	transforms *transform.Engine
	levels     map[string][]string
	tel        *telemetry.Telemetry
}

// NewOptimizer returns an optimizer over the transforms of eng. Extra levels
// are added next to the built-in ones; they cannot replace a built-in level
// and may only name registered transforms.
func NewOptimizer(eng *transform.Engine, tel *telemetry.Telemetry, extra map[string][]string) (*Optimizer, error) {
	if eng == nil {
		eng = transform.NewEngine(tel)
	}
	o := &Optimizer{
		transforms: eng,
		levels:     BuiltinLevels(),
		tel:        tel.Component("optimize"),
	}
	for name, pipeline := range extra {
		if _, builtin := o.levels[name]; builtin || name == LevelCustom {
			return nil, fmt.Errorf("optimization level %q is reserved", name)
		}
		if len(pipeline) == 0 {
			return nil, fmt.Errorf("optimization level %q has an empty pipeline", name)
		}
		for _, step := range pipeline {
			if _, err := eng.Info(step); err != nil {
				return nil, fmt.Errorf("optimization level %q: %w", name, err)
			}
		}
		o.levels[name] = append([]string(nil), pipeline...)
	}
	return o, nil
}

// Levels returns the known level names in sorted order.
func (o *Optimizer) Levels() []string {
	names := make([]string, 0, len(o.levels))
	for name := range o.levels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Pipeline returns the transform names a level runs.
func (o *Optimizer) Pipeline(level string) ([]string, error) {
	pipeline, ok := o.levels[level]
	if !ok {
		return nil, engine.NewUnknownLevelError(level, o.Levels())
	}
	return append([]string(nil), pipeline...), nil
}

// Optimize runs the pipeline of level over rep and returns a new
// representation with exactly one optimization record appended. rep is
// left unchanged.
func (o *Optimizer) Optimize(ctx context.Context, rep *circuit.Representation, level string, opts Options) (*circuit.Representation, error) {
	var pipeline []string
	if len(opts.Custom) > 0 {
		level = LevelCustom
		pipeline = opts.Custom
	} else {
		p, ok := o.levels[level]
		if !ok {
			err := engine.NewUnknownLevelError(level, o.Levels())
			o.tel.Metrics.RecordError(err.Code)
			return nil, err
		}
		pipeline = p
	}

	passes := opts.Passes
	if passes == 0 {
		passes = 1
	}
	if passes < 0 {
		return nil, engine.NewInvalidInputError(fmt.Sprintf("number of passes must be positive, got %d", passes))
	}
	if !rep.HasProgram() {
		return nil, engine.NewMissingProgramError(RecordPrefix + level)
	}

	ctx, span := o.tel.Tracer.StartTransformSpan(ctx, RecordPrefix+level)
	defer span.End()
	logger := o.tel.Logger.WithCircuitID(rep.ID()).WithField("level", level)

	program := rep.Program()
	for pass := 0; pass < passes; pass++ {
		for _, name := range pipeline {
			fn, err := o.transforms.Build(name, nil)
			if err != nil {
				telemetry.RecordError(span, err)
				return nil, err
			}
			program = circuit.Transform(program, name, fn)
		}
	}
	if len(opts.GateSet) > 0 {
		fn, err := o.transforms.Build(transform.Decompose, transform.Params{"gate_set": opts.GateSet})
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		}
		program = circuit.Transform(program, transform.Decompose, fn)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	before, err := rep.Statistics(false)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	out := rep.Clone(program, "")
	after, err := out.Statistics(false)
	if err != nil {
		terr := engine.NewTransformError(RecordPrefix+level, err)
		telemetry.RecordError(span, terr)
		logger.WithError(err).Warn("optimization failed")
		return nil, terr
	}

	improvement := circuit.CompareSummaries(before, after)
	var gateSet interface{}
	if len(opts.GateSet) > 0 {
		gateSet = append([]string(nil), opts.GateSet...)
	}
	params := map[string]interface{}{
		"level":      level,
		"num_passes": passes,
		"pipeline":   append([]string(nil), pipeline...),
		"gate_set":   gateSet,
	}
	out.AddTransform(RecordPrefix+level, params, &before, &after, circuit.WithImprovement(improvement))

	telemetry.RecordSuccess(span)
	span.SetAttributes(telemetry.AttrOperations.Int(after.NumOperations), telemetry.AttrDepth.Int(after.Depth))
	o.tel.Metrics.RecordOptimization(level, improvement.OperationsReduced)
	o.tel.Events.PublishOptimizationApplied(out.ID(), level, improvement.OperationsReduced)
	logger.WithFields(map[string]interface{}{
		"passes":             passes,
		"operations_reduced": improvement.OperationsReduced,
		"depth_reduced":      improvement.DepthReduced,
	}).Info("circuit optimized")

	return out, nil
}

// CompareLevels optimizes rep once with every built-in level, each from the
// same starting circuit. Levels run concurrently on at most maxParallel
// workers; the first failure is returned.
func (o *Optimizer) CompareLevels(ctx context.Context, rep *circuit.Representation) (map[string]*circuit.Representation, error) {
	return o.compare(ctx, rep, []string{LevelBasic, LevelDefault, LevelAggressive}, defaultParallel)
}

// defaultParallel bounds the workers of CompareLevels.
const defaultParallel = 3

func (o *Optimizer) compare(ctx context.Context, rep *circuit.Representation, levels []string, maxParallel int) (map[string]*circuit.Representation, error) {
	// Fill the statistics cache so workers only read rep.
	if rep.HasProgram() {
		if _, err := rep.Statistics(false); err != nil {
			return nil, err
		}
	}

	workerCount := maxParallel
	if workerCount <= 0 || len(levels) < workerCount {
		workerCount = len(levels)
	}

	workQueue := make(chan string, len(levels))
	for _, level := range levels {
		workQueue <- level
	}
	close(workQueue)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results = make(map[string]*circuit.Representation, len(levels))
		errChan = make(chan error, len(levels))
	)
	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for level := range workQueue {
				if err := ctx.Err(); err != nil {
					errChan <- err
					return
				}
				out, err := o.Optimize(ctx, rep, level, Options{})
				if err != nil {
					errChan <- fmt.Errorf("level %s: %w", level, err)
					continue
				}
				mu.Lock()
				results[level] = out
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	close(errChan)

	for err := range errChan {
		return nil, err
	}
	return results, nil
}

// Summary strings for circuits without optimization records.
const (
	SummaryNone      = "No optimizations applied"
	SummaryNoRecords = "No optimizations in transform history"
)

// HistoryEntry describes one optimization record.
type HistoryEntry struct {
	Level       string              `json:"level"`
	Passes      int                 `json:"passes"`
	Improvement circuit.Improvement `json:"improvement"`
	Timestamp   time.Time           `json:"timestamp"`
}

// CurrentStats are the resource counts of the reported circuit.
type CurrentStats struct {
	Operations int `json:"operations"`
	Depth      int `json:"depth"`
	Wires      int `json:"wires"`
}

// Report aggregates the optimization records of a circuit.
type Report struct {
	Applied           int            `json:"optimizations_applied"`
	OperationsReduced int            `json:"total_operations_reduced"`
	DepthReduced      int            `json:"total_depth_reduced"`
	Current           *CurrentStats  `json:"current_stats,omitempty"`
	History           []HistoryEntry `json:"optimization_history,omitempty"`
	Summary           string         `json:"summary"`
}

// Report summarizes every optimization record in rep's log. A circuit with
// no optimization records yields Applied == 0 and one of the Summary
// constants. Current stats come from the circuit itself, or from the last
// record when the circuit has no program.
func (o *Optimizer) Report(rep *circuit.Representation) (Report, error) {
	log := rep.Log()
	if len(log) == 0 {
		return Report{Summary: SummaryNone}, nil
	}

	var report Report
	var last circuit.TransformRecord
	for _, rec := range log {
		if !strings.HasPrefix(rec.Name, RecordPrefix) {
			continue
		}
		entry := HistoryEntry{
			Level:     strings.TrimPrefix(rec.Name, RecordPrefix),
			Passes:    1,
			Timestamp: rec.Timestamp,
		}
		if lvl, ok := rec.Params["level"].(string); ok {
			entry.Level = lvl
		}
		if n, ok := rec.Params["num_passes"].(int); ok {
			entry.Passes = n
		}
		if rec.Improvement != nil {
			entry.Improvement = *rec.Improvement
			report.OperationsReduced += rec.Improvement.OperationsReduced
			report.DepthReduced += rec.Improvement.DepthReduced
		}
		report.History = append(report.History, entry)
		last = rec
	}
	report.Applied = len(report.History)
	if report.Applied == 0 {
		return Report{Summary: SummaryNoRecords}, nil
	}

	switch {
	case rep.HasProgram():
		stats, err := rep.Statistics(false)
		if err != nil {
			return Report{}, err
		}
		report.Current = &CurrentStats{Operations: stats.NumOperations, Depth: stats.Depth, Wires: stats.NumWires}
	case last.After != nil:
		report.Current = &CurrentStats{Operations: last.After.NumOperations, Depth: last.After.Depth, Wires: last.After.NumWires}
	default:
		report.Current = &CurrentStats{}
	}

	report.Summary = fmt.Sprintf("Applied %d optimization(s). Reduced operations by %d. Reduced depth by %d. Current: %d operations, depth %d.",
		report.Applied, report.OperationsReduced, report.DepthReduced, report.Current.Operations, report.Current.Depth)
	return report, nil
}
