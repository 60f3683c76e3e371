package generator

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/skadi/skadi/pkg/circuit"
	"github.com/skadi/skadi/pkg/engine"
	"github.com/skadi/skadi/pkg/interpreter"
	"github.com/skadi/skadi/pkg/knowledge"
	"github.com/skadi/skadi/pkg/telemetry"
)

// RewriteTransform is the log name of a rewrite.
const RewriteTransform = "rewrite"

// MetaRewrites counts the rewrites a circuit has been through.
const MetaRewrites = "rewrites"

// SimplifyRequest is the request sent by Simplify.
const SimplifyRequest = "Simplify this circuit by removing redundant operations and " +
	"replacing complex gate sequences with simpler equivalents. " +
	"Maintain the same quantum functionality."

const rewriteKnowledgeBase = "Modify quantum circuit based on user request. " +
	"Ensure the code is valid PennyLane code."

const (
	preserveInstruction    = "Preserve the overall structure and intent of the original circuit while making the requested modifications."
	restructureInstruction = "Make the requested modifications. You can restructure the circuit as needed."
)

// RewriteOptions controls a rewrite.
type RewriteOptions struct {
	UseKnowledge      bool `json:"use_knowledge"`
	PreserveStructure bool `json:"preserve_structure"`
}

// DefaultRewriteOptions uses knowledge and preserves structure.
func DefaultRewriteOptions() RewriteOptions {
	return RewriteOptions{UseKnowledge: true, PreserveStructure: true}
}

// Replacement swaps every From gate for To.
type Replacement struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// OperationChanges describes targeted edits. Replacements are applied in
// order.
type OperationChanges struct {
	Replace                []Replacement `json:"replace,omitempty"`
	Remove                 []string      `json:"remove,omitempty"`
	AddBeforeMeasurement   string        `json:"add_before_measurement,omitempty"`
	AddAfterInitialization string        `json:"add_after_initialization,omitempty"`
}

// Request renders the changes as a natural-language modification request.
func (c OperationChanges) Request() string {
	var parts []string
	for _, r := range c.Replace {
		parts = append(parts, fmt.Sprintf("Replace all %s gates with %s", r.From, r.To))
	}
	for _, op := range c.Remove {
		parts = append(parts, fmt.Sprintf("Remove all %s gates", op))
	}
	if c.AddBeforeMeasurement != "" {
		parts = append(parts, fmt.Sprintf("Add %s before measurement", c.AddBeforeMeasurement))
	}
	if c.AddAfterInitialization != "" {
		parts = append(parts, fmt.Sprintf("Add %s at the beginning of the circuit", c.AddAfterInitialization))
	}
	return strings.Join(parts, ". ")
}

// Rewriter modifies existing circuits from natural-language requests. It
// drafts with the orchestrator's synthesizer and verifies with its
// pipeline, without retries.
type Rewriter struct {
	orch      *Orchestrator
	knowledge *knowledge.Builder
	tel       *telemetry.Telemetry
}

// NewRewriter creates a rewriter sharing orch's synthesizer, interpreter
// and knowledge builder.
func NewRewriter(orch *Orchestrator, tel *telemetry.Telemetry) *Rewriter {
	return &Rewriter{
		orch:      orch,
		knowledge: orch.knowledge,
		tel:       tel.Component("rewriter"),
	}
}

// Rewrite asks the synthesizer to apply request to rep and returns a new
// representation. rep is not modified. The result carries rep's metadata
// and log plus a rewrite record.
func (r *Rewriter) Rewrite(ctx context.Context, rep *circuit.Representation, request string, opts RewriteOptions) (*circuit.Representation, error) {
	if strings.TrimSpace(rep.Source()) == "" {
		return nil, engine.NewInvalidInputError("circuit must have source code to rewrite")
	}
	if strings.TrimSpace(request) == "" {
		return nil, engine.NewInvalidInputError("modification request is required")
	}

	log := r.tel.Logger.WithCircuitID(rep.ID()).WithTransform(RewriteTransform)
	ctx, span := r.tel.Tracer.StartTransformSpan(ctx, RewriteTransform)
	defer span.End()

	var (
		before  *circuit.ResourceSummary
		diagram string
	)
	if rep.HasProgram() {
		if stats, err := rep.Statistics(false); err == nil {
			before = &stats
		} else {
			log.WithError(err).Debug("Original circuit has no statistics")
		}
		if d, err := rep.Diagram(circuit.DefaultDrawOptions()); err == nil {
			diagram = d
		}
	}

	prompt := RewritePrompt(rep.Description(), rep.Source(), diagram, request, opts.PreserveStructure)
	if opts.UseKnowledge && r.knowledge != nil {
		augmented, err := r.knowledge.AugmentPrompt(ctx, request, rewriteKnowledgeBase)
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		}
		prompt = augmented + "\n\n" + prompt
	}

	source, err := r.orch.synth.Generate(ctx, prompt, "")
	if err != nil {
		telemetry.RecordError(span, err)
		r.tel.Metrics.RecordTransform(RewriteTransform, err)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	source = interpreter.StripFences(source)

	q, after, err := r.orch.verify(ctx, source)
	if err != nil {
		telemetry.RecordError(span, err)
		r.tel.Metrics.RecordTransform(RewriteTransform, err)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.WithError(err).Warn("Rewritten code rejected")
		return nil, verifyFailure(err)
	}

	description := rep.Description()
	if description == "" {
		description = "Original circuit"
	}
	rewrites, _ := strconv.Atoi(rep.Metadata()[MetaRewrites])
	next := rep.Clone(q, source).
		WithDescription(description+" - "+request).
		WithMetadata(MetaRewrites, strconv.Itoa(rewrites+1))
	next.AddTransform(RewriteTransform, map[string]interface{}{
		"modification_request": request,
		"use_knowledge":        opts.UseKnowledge,
		"preserve_structure":   opts.PreserveStructure,
	}, before, &after)

	telemetry.RecordSuccess(span)
	r.tel.Metrics.RecordTransform(RewriteTransform, nil)
	opsBefore := 0
	if before != nil {
		opsBefore = before.NumOperations
	}
	r.tel.Events.PublishTransformApplied(next.ID(), RewriteTransform, opsBefore, after.NumOperations)
	log.WithField("operations", after.NumOperations).Info("Circuit rewritten")
	return next, nil
}

// ModifyOperations rewrites rep with a request built from changes.
func (r *Rewriter) ModifyOperations(ctx context.Context, rep *circuit.Representation, changes OperationChanges) (*circuit.Representation, error) {
	request := changes.Request()
	if request == "" {
		return nil, engine.NewInvalidInputError("no operation changes given")
	}
	return r.Rewrite(ctx, rep, request, DefaultRewriteOptions())
}

// Simplify asks for a functionally equivalent circuit with fewer or
// simpler operations. Structure is not preserved.
func (r *Rewriter) Simplify(ctx context.Context, rep *circuit.Representation) (*circuit.Representation, error) {
	return r.Rewrite(ctx, rep, SimplifyRequest, RewriteOptions{UseKnowledge: true, PreserveStructure: false})
}

// RewritePrompt builds the synthesis prompt of a rewrite.
func RewritePrompt(description, source, diagram, request string, preserveStructure bool) string {
	if description == "" {
		description = "Not provided"
	}
	instruction := restructureInstruction
	if preserveStructure {
		instruction = preserveInstruction
	}

	var b strings.Builder
	b.WriteString("You are modifying an existing PennyLane quantum circuit.\n\n")
	fmt.Fprintf(&b, "Original Circuit Description: %s\n\n", description)
	fmt.Fprintf(&b, "Current Circuit Code:\n```python\n%s\n```\n\n", source)
	fmt.Fprintf(&b, "Current Circuit Diagram:\n%s\n\n", diagram)
	fmt.Fprintf(&b, "Modification Request: %s\n\n", request)
	b.WriteString("Instructions:\n")
	fmt.Fprintf(&b, "1. %s\n", instruction)
	b.WriteString("2. Ensure the modified code is valid PennyLane code\n")
	b.WriteString("3. Include all necessary imports\n")
	b.WriteString("4. Define the device and use @qml.qnode decorator\n")
	b.WriteString("5. Maintain a function named 'circuit'\n")
	b.WriteString("6. Add comments explaining the modifications\n\n")
	b.WriteString("Generate the complete modified circuit code below:")
	return b.String()
}

// verifyFailure prefixes a verification error with the stage that
// rejected it.
func verifyFailure(err error) error {
	switch {
	case engine.IsValidation(err):
		return fmt.Errorf("code validation failed: %w", err)
	case engine.IsExecution(err):
		return fmt.Errorf("code execution failed: %w", err)
	case engine.IsCompilation(err):
		return fmt.Errorf("circuit compilation failed: %w", err)
	default:
		return err
	}
}
