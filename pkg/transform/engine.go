package transform

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/skadi/skadi/pkg/circuit"
	"github.com/skadi/skadi/pkg/engine"
	"github.com/skadi/skadi/pkg/telemetry"
)

// Params are the keyword arguments of a parameterized transform.
type Params map[string]interface{}

// Definition describes a registered transform.
type Definition struct {
	// Name is the stable registry name.
	Name string

	// Description is a one-line summary shown by List and the CLI.
	Description string

	// Params lists the accepted parameter names. A transform without
	// parameters rejects any.
	Params []string

	// Required lists the parameters that must be supplied.
	Required []string

	// Build turns call-time parameters into a tape transform.
	Build func(Params) (circuit.TapeTransform, error)
}

// Parameterized reports whether the transform accepts parameters.
func (d Definition) Parameterized() bool {
	return len(d.Params) > 0
}

// Info is the public description of a registered transform.
type Info struct {
	Name          string   `json:"name"`
	Description   string   `json:"description"`
	Parameterized bool     `json:"parameterized"`
	Params        []string `json:"params,omitempty"`
}

// Step is one entry of a transform sequence.
type Step struct {
	Name   string
	Params Params
}

// Engine is a registry of named transforms over circuit representations.
type Engine struct {
	defs map[string]Definition
	tel  *telemetry.Telemetry
}

// NewEngine returns an engine with the built-in transforms registered.
func NewEngine(tel *telemetry.Telemetry) *Engine {
	e := &Engine{
		defs: make(map[string]Definition),
		tel:  tel.Component("transform"),
	}
	for _, def := range builtins() {
		if err := e.Register(def); err != nil {
			panic(err)
		}
	}
	return e
}

// Register adds a transform definition.
func (e *Engine) Register(def Definition) error {
	if def.Name == "" {
		return fmt.Errorf("transform name is required")
	}
	if def.Build == nil {
		return fmt.Errorf("transform %s has no build function", def.Name)
	}
	if _, exists := e.defs[def.Name]; exists {
		return fmt.Errorf("transform %s already registered", def.Name)
	}
	e.defs[def.Name] = def
	return nil
}

// List returns the registered transform names in sorted order.
func (e *Engine) List() []string {
	names := make([]string, 0, len(e.defs))
	for name := range e.defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Info describes a registered transform.
func (e *Engine) Info(name string) (Info, error) {
	def, ok := e.defs[name]
	if !ok {
		return Info{}, engine.NewUnknownTransformError(name, e.List())
	}
	return Info{
		Name:          def.Name,
		Description:   def.Description,
		Parameterized: def.Parameterized(),
		Params:        append([]string(nil), def.Params...),
	}, nil
}

// Build resolves a transform and its parameters to a tape transform
// without applying it.
func (e *Engine) Build(name string, params Params) (circuit.TapeTransform, error) {
	def, ok := e.defs[name]
	if !ok {
		return nil, engine.NewUnknownTransformError(name, e.List())
	}
	if err := checkParams(def, params); err != nil {
		return nil, err
	}
	fn, err := def.Build(params)
	if err != nil {
		return nil, engine.NewInvalidInputError(fmt.Sprintf("%s: %v", name, err))
	}
	return fn, nil
}

func checkParams(def Definition, params Params) error {
	accepted := make(map[string]bool, len(def.Params))
	for _, p := range def.Params {
		accepted[p] = true
	}
	for key := range params {
		if !accepted[key] {
			if len(def.Params) == 0 {
				return engine.NewInvalidInputError(fmt.Sprintf("transform %s takes no parameters, got %q", def.Name, key))
			}
			return engine.NewInvalidInputError(fmt.Sprintf("transform %s does not accept parameter %q", def.Name, key))
		}
	}
	for _, req := range def.Required {
		if _, ok := params[req]; !ok {
			return engine.NewInvalidInputError(fmt.Sprintf("transform %s requires parameter %q", def.Name, req))
		}
	}
	return nil
}

// Apply runs one transform on rep and returns a new representation with a
// record appended. rep is left unchanged.
func (e *Engine) Apply(ctx context.Context, rep *circuit.Representation, name string, params Params) (*circuit.Representation, error) {
	fn, err := e.Build(name, params)
	if err != nil {
		e.tel.Metrics.RecordError(errorCode(err))
		return nil, err
	}
	if !rep.HasProgram() {
		return nil, engine.NewMissingProgramError(name)
	}

	_, span := e.tel.Tracer.StartTransformSpan(ctx, name)
	defer span.End()
	logger := e.tel.Logger.WithCircuitID(rep.ID()).WithTransform(name)

	before, err := rep.Statistics(false)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	out := rep.Clone(circuit.Transform(rep.Program(), name, fn), "")
	after, err := out.Statistics(false)
	e.tel.Metrics.RecordTransform(name, err)
	if err != nil {
		terr := engine.NewTransformError(name, err)
		telemetry.RecordError(span, terr)
		logger.WithError(err).Warn("transform failed")
		return nil, terr
	}

	out.AddTransform(name, recordParams(params), &before, &after)
	telemetry.RecordSuccess(span)
	span.SetAttributes(telemetry.AttrOperations.Int(after.NumOperations), telemetry.AttrDepth.Int(after.Depth))
	logger.WithFields(map[string]interface{}{
		"operations_before": before.NumOperations,
		"operations_after":  after.NumOperations,
	}).Debug("transform applied")
	e.tel.Events.PublishTransformApplied(out.ID(), name, before.NumOperations, after.NumOperations)

	return out, nil
}

// ApplySequence folds Apply over steps. The first failure aborts the
// sequence and no partial result is returned.
func (e *Engine) ApplySequence(ctx context.Context, rep *circuit.Representation, steps []Step) (*circuit.Representation, error) {
	if len(steps) == 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return rep.Clone(nil, ""), nil
	}
	current := rep
	for i, step := range steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		next, err := e.Apply(ctx, current, step.Name, step.Params)
		if err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i+1, step.Name, err)
		}
		current = next
	}
	return current, nil
}

func recordParams(params Params) map[string]interface{} {
	if len(params) == 0 {
		return map[string]interface{}{}
	}
	out := make(map[string]interface{}, len(params))
	for k, v := range params {
		out[k] = v
	}
	return out
}

func errorCode(err error) string {
	var pe *engine.PipelineError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}
