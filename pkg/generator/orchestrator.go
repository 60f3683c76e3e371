package generator

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/skadi/skadi/pkg/circuit"
	"github.com/skadi/skadi/pkg/engine"
	"github.com/skadi/skadi/pkg/interpreter"
	"github.com/skadi/skadi/pkg/knowledge"
	"github.com/skadi/skadi/pkg/synthesis"
	"github.com/skadi/skadi/pkg/telemetry"
)

// DefaultMaxRetries is the attempt budget of a generation request.
const DefaultMaxRetries = 3

// Metadata keys set on generated circuits.
const (
	MetaModel     = "model"
	MetaKnowledge = "knowledge"
	MetaAttempts  = "attempts"
)

// Options configures an Orchestrator.
type Options struct {
	// MaxRetries is the number of synthesis attempts per request. Zero
	// selects DefaultMaxRetries.
	MaxRetries int

	// Knowledge, when set, is consulted once per request and its context is
	// embedded in every attempt's prompt.
	Knowledge *knowledge.Builder

	// Interpreter loads candidate source. Nil selects a default interpreter.
	Interpreter *interpreter.Interpreter

	// Model is recorded in circuit metadata. When empty it is taken from
	// the synthesizer if that exposes a Model method.
	Model string
}

// Result is a verified generation.
type Result struct {
	Circuit   *circuit.Representation
	Program   *interpreter.QNode
	Source    string
	Summary   circuit.ResourceSummary
	Attempts  []engine.Attempt
	Knowledge knowledge.Context
}

// Orchestrator drives the drafting and verification loop that turns a
// description into a verified circuit program.
type Orchestrator struct {
	synth      synthesis.Synthesizer
	interp     *interpreter.Interpreter
	knowledge  *knowledge.Builder
	maxRetries int
	model      string
	tel        *telemetry.Telemetry
}

// NewOrchestrator creates an orchestrator around synth.
func NewOrchestrator(synth synthesis.Synthesizer, opts Options, tel *telemetry.Telemetry) (*Orchestrator, error) {
	if synth == nil {
		return nil, engine.NewInvalidInputError("synthesizer is required")
	}
	if opts.MaxRetries < 0 {
		return nil, engine.NewInvalidInputError("max retries must not be negative")
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	if opts.Interpreter == nil {
		opts.Interpreter = interpreter.New(interpreter.Options{})
	}
	if opts.Model == "" {
		if m, ok := synth.(interface{ Model() string }); ok {
			opts.Model = m.Model()
		}
	}
	return &Orchestrator{
		synth:      synth,
		interp:     opts.Interpreter,
		knowledge:  opts.Knowledge,
		maxRetries: opts.MaxRetries,
		model:      opts.Model,
		tel:        tel.Component("generator"),
	}, nil
}

// MaxRetries returns the attempt budget.
func (o *Orchestrator) MaxRetries() int {
	return o.maxRetries
}

// Generate returns a verified program for description.
func (o *Orchestrator) Generate(ctx context.Context, description string) (*interpreter.QNode, error) {
	res, err := o.Run(ctx, description)
	if err != nil {
		return nil, err
	}
	return res.Program, nil
}

// GenerateWithSource returns a verified program and the source it was
// loaded from.
func (o *Orchestrator) GenerateWithSource(ctx context.Context, description string) (*interpreter.QNode, string, error) {
	res, err := o.Run(ctx, description)
	if err != nil {
		return nil, "", err
	}
	return res.Program, res.Source, nil
}

// GenerateCircuit returns a representation of a verified program with the
// model, knowledge use and attempt count recorded in its metadata.
func (o *Orchestrator) GenerateCircuit(ctx context.Context, description string) (*circuit.Representation, error) {
	res, err := o.Run(ctx, description)
	if err != nil {
		return nil, err
	}
	return res.Circuit, nil
}

// Run executes the generation loop. Each attempt makes exactly one
// synthesis call. A rejected attempt feeds its reason and code back into
// the next one; once the budget is spent the last failure is returned
// wrapped in a synthesis exhausted error. Context errors are returned
// unchanged and never retried.
func (o *Orchestrator) Run(ctx context.Context, description string) (*Result, error) {
	if strings.TrimSpace(description) == "" {
		return nil, engine.NewInvalidInputError("circuit description is required")
	}

	timer := telemetry.NewTimer()
	ctx, span := o.tel.Tracer.StartGenerationSpan(ctx, description, o.maxRetries)
	defer span.End()
	o.tel.Events.PublishGenerationStarted(description, o.maxRetries)

	prompt, kc, err := o.prompt(ctx, description)
	if err != nil {
		telemetry.RecordError(span, err)
		o.tel.Metrics.RecordGeneration("canceled", timer.Duration())
		return nil, err
	}

	res := &Result{Knowledge: kc, Attempts: make([]engine.Attempt, 0, o.maxRetries)}
	var (
		feedback string
		last     error
	)
	for n := 1; n <= o.maxRetries; n++ {
		if err := ctx.Err(); err != nil {
			telemetry.RecordError(span, err)
			o.tel.Metrics.RecordGeneration("canceled", timer.Duration())
			return nil, err
		}

		log := o.tel.Logger.WithAttempt(n, o.maxRetries)
		q, source, summary, err := o.attempt(ctx, n, prompt, feedback)
		if err == nil {
			res.Attempts = append(res.Attempts, engine.Attempt{Number: n, Stage: engine.StageSuccess})
			res.Program = q
			res.Source = source
			res.Summary = summary
			res.Circuit = circuit.New(q, source, description, map[string]string{
				MetaModel:     o.model,
				MetaKnowledge: strconv.FormatBool(!kc.Empty()),
				MetaAttempts:  strconv.Itoa(n),
			})

			telemetry.RecordSuccess(span)
			o.tel.Metrics.RecordGeneration("success", timer.Duration())
			o.tel.Events.PublishGenerationSucceeded(res.Circuit.ID(), n)
			log.WithCircuitID(res.Circuit.ID()).WithFields(map[string]interface{}{
				"operations": summary.NumOperations,
				"depth":      summary.Depth,
				"wires":      summary.NumWires,
			}).Info("Circuit generated")
			return res, nil
		}

		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			telemetry.RecordError(span, err)
			o.tel.Metrics.RecordGeneration("canceled", timer.Duration())
			return nil, err
		}
		if !engine.IsRetryable(err) {
			telemetry.RecordError(span, err)
			o.tel.Metrics.RecordGeneration("error", timer.Duration())
			return nil, err
		}

		stage := stageOf(err)
		feedback = synthesis.Feedback(err.Error(), source)
		res.Attempts = append(res.Attempts, engine.Attempt{Number: n, Stage: stage, Err: err, Feedback: feedback})
		last = err

		o.tel.Metrics.RecordStageFailure(string(stage))
		o.tel.Events.PublishAttemptFailed(n, string(stage), err)
		log.WithError(err).WithField("stage", string(stage)).Warn("Attempt rejected")
	}

	exhausted := engine.NewSynthesisExhaustedError(o.maxRetries, last)
	telemetry.RecordError(span, exhausted)
	o.tel.Metrics.RecordGeneration("exhausted", timer.Duration())
	o.tel.Metrics.RecordError(exhausted.Code)
	o.tel.Events.PublishGenerationExhausted(o.maxRetries, last)
	o.tel.Logger.WithError(last).Error("Generation attempts exhausted")
	return nil, exhausted
}

// prompt builds the generation prompt, consulting the knowledge builder
// once when one is configured.
func (o *Orchestrator) prompt(ctx context.Context, description string) (string, knowledge.Context, error) {
	if o.knowledge == nil {
		return synthesis.CircuitPrompt(description, ""), knowledge.Context{Query: description}, nil
	}
	kc, err := o.knowledge.Build(ctx, description)
	if err != nil {
		return "", knowledge.Context{}, err
	}
	o.tel.Logger.WithFields(map[string]interface{}{
		"parts":     len(kc.Parts),
		"tokens":    kc.Tokens(),
		"truncated": kc.Truncated,
	}).Debug("Knowledge context built")
	return synthesis.CircuitPrompt(description, kc.Text()), kc, nil
}

// attempt drafts source once and verifies it. The returned source is set
// whenever drafting succeeded so it can be fed back on rejection.
func (o *Orchestrator) attempt(ctx context.Context, n int, prompt, feedback string) (*interpreter.QNode, string, circuit.ResourceSummary, error) {
	ctx, span := o.tel.Tracer.StartAttemptSpan(ctx, n)
	defer span.End()

	source, err := o.synth.Generate(ctx, prompt, feedback)
	if err != nil {
		o.tel.Metrics.RecordAttempt(string(engine.StageDrafting))
		telemetry.RecordError(span, err)
		if ctx.Err() != nil {
			return nil, "", circuit.ResourceSummary{}, ctx.Err()
		}
		var pe *engine.PipelineError
		if !errors.As(err, &pe) {
			err = engine.NewSynthesisError(err)
		}
		return nil, "", circuit.ResourceSummary{}, err
	}
	source = interpreter.StripFences(source)
	telemetry.AddStageEvent(span, string(engine.StageDrafting), "source drafted")

	q, summary, err := o.verify(ctx, source)
	if err != nil {
		o.tel.Metrics.RecordAttempt(string(stageOf(err)))
		telemetry.RecordError(span, err)
		return nil, source, circuit.ResourceSummary{}, err
	}
	o.tel.Metrics.RecordAttempt(string(engine.StageSuccess))
	telemetry.RecordSuccess(span)
	return q, source, summary, nil
}

// Verify runs validation, execution and compilation against source once,
// without synthesis.
func (o *Orchestrator) Verify(ctx context.Context, source string) (*interpreter.QNode, error) {
	q, _, err := o.verify(ctx, source)
	return q, err
}

func (o *Orchestrator) verify(ctx context.Context, source string) (*interpreter.QNode, circuit.ResourceSummary, error) {
	if err := Validate(source); err != nil {
		return nil, circuit.ResourceSummary{}, err
	}

	q, err := o.interp.Load(ctx, source)
	if err != nil {
		return nil, circuit.ResourceSummary{}, err
	}

	tape, err := q.Trace()
	if err != nil {
		if ctx.Err() != nil {
			return nil, circuit.ResourceSummary{}, ctx.Err()
		}
		return nil, circuit.ResourceSummary{}, engine.NewCompilationError("Circuit compilation failed", err)
	}
	return q, circuit.Summarize(tape), nil
}

// stageOf returns the stage recorded on a pipeline error, defaulting to
// drafting.
func stageOf(err error) engine.Stage {
	var pe *engine.PipelineError
	if errors.As(err, &pe) && pe.Stage != "" {
		if s := engine.Stage(pe.Stage); s.Validate() == nil {
			return s
		}
	}
	return engine.StageDrafting
}
