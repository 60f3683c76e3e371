package circuit

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/skadi/skadi/pkg/engine"
)

// TransformRecord is one entry of a circuit's transform log. Records are
// immutable once appended.
type TransformRecord struct {
	Name        string                 `json:"name"`
	Params      map[string]interface{} `json:"params,omitempty"`
	Before      *ResourceSummary       `json:"before,omitempty"`
	After       *ResourceSummary       `json:"after,omitempty"`
	Improvement *Improvement           `json:"improvement,omitempty"`
	Timestamp   time.Time              `json:"timestamp"`
}

// Copy returns a deep copy of the record.
func (r TransformRecord) Copy() TransformRecord {
	c := r
	if r.Params != nil {
		c.Params = make(map[string]interface{}, len(r.Params))
		for k, v := range r.Params {
			c.Params[k] = v
		}
	}
	if r.Before != nil {
		b := r.Before.Copy()
		c.Before = &b
	}
	if r.After != nil {
		a := r.After.Copy()
		c.After = &a
	}
	if r.Improvement != nil {
		imp := *r.Improvement
		c.Improvement = &imp
	}
	return c
}

// RecordOption customizes a transform record before it is appended.
type RecordOption func(*TransformRecord)

// WithImprovement attaches an improvement to the record.
func WithImprovement(imp Improvement) RecordOption {
	return func(r *TransformRecord) {
		r.Improvement = &imp
	}
}

// WithTimestamp overrides the record timestamp.
func WithTimestamp(ts time.Time) RecordOption {
	return func(r *TransformRecord) {
		r.Timestamp = ts
	}
}

// Representation is the central circuit value: an executable program, its
// source text, a description, metadata and the ordered log of transforms
// that produced it. Statistics and traces are cached until the next
// AddTransform call. A Representation has a single owner; share it by
// cloning.
type Representation struct {
	id          string
	createdAt   time.Time
	program     Program
	source      string
	description string
	metadata    map[string]string
	log         []TransformRecord

	stats *ResourceSummary
	tape  *Tape
}

// New creates a representation. program may be nil for a circuit that only
// carries source or metadata.
func New(program Program, source, description string, metadata map[string]string) *Representation {
	r := &Representation{
		id:          uuid.New().String(),
		createdAt:   time.Now().UTC(),
		program:     program,
		source:      source,
		description: description,
		metadata:    make(map[string]string, len(metadata)),
		log:         make([]TransformRecord, 0),
	}
	for k, v := range metadata {
		r.metadata[k] = v
	}
	return r
}

// ID returns the unique identifier of this representation.
func (r *Representation) ID() string { return r.id }

// CreatedAt returns when the representation was created.
func (r *Representation) CreatedAt() time.Time { return r.createdAt }

// Program returns the executable program, or nil.
func (r *Representation) Program() Program { return r.program }

// HasProgram reports whether an executable program is attached.
func (r *Representation) HasProgram() bool { return r.program != nil }

// Source returns the source text, possibly empty.
func (r *Representation) Source() string { return r.source }

// Description returns the natural-language description.
func (r *Representation) Description() string { return r.description }

// Metadata returns a copy of the metadata map.
func (r *Representation) Metadata() map[string]string {
	m := make(map[string]string, len(r.metadata))
	for k, v := range r.metadata {
		m[k] = v
	}
	return m
}

// Log returns a copy of the transform log, oldest first.
func (r *Representation) Log() []TransformRecord {
	log := make([]TransformRecord, len(r.log))
	for i, rec := range r.log {
		log[i] = rec.Copy()
	}
	return log
}

// Trace returns the program's tape, traced once and cached. refresh forces
// a new trace.
func (r *Representation) Trace(refresh bool) (*Tape, error) {
	if r.program == nil {
		return nil, engine.NewMissingProgramError("trace")
	}
	if r.tape != nil && !refresh {
		return r.tape, nil
	}
	tape, err := r.program.Trace()
	if err != nil {
		return nil, fmt.Errorf("tracing circuit: %w", err)
	}
	r.tape = tape
	return tape, nil
}

// Statistics returns the cached resource summary, computing it on first
// use. refresh forces recomputation. Callers must treat the returned maps
// as read-only.
func (r *Representation) Statistics(refresh bool) (ResourceSummary, error) {
	if r.program == nil {
		return ResourceSummary{}, engine.NewMissingProgramError("statistics")
	}
	if r.stats != nil && !refresh {
		return *r.stats, nil
	}
	tape, err := r.Trace(refresh)
	if err != nil {
		return ResourceSummary{}, err
	}
	s := Summarize(tape)
	r.stats = &s
	return s, nil
}

// Diagram renders the program as a text diagram. Diagrams are never cached.
func (r *Representation) Diagram(opts DrawOptions) (string, error) {
	if r.program == nil {
		return "", engine.NewMissingProgramError("diagram")
	}
	tape, err := r.program.Trace()
	if err != nil {
		return "", fmt.Errorf("tracing circuit: %w", err)
	}
	return Draw(tape, opts), nil
}

// AddTransform appends a record to the transform log and invalidates the
// cached statistics and trace.
func (r *Representation) AddTransform(name string, params map[string]interface{}, before, after *ResourceSummary, opts ...RecordOption) {
	rec := TransformRecord{
		Name:      name,
		Params:    params,
		Before:    before,
		After:     after,
		Timestamp: time.Now().UTC(),
	}
	for _, opt := range opts {
		opt(&rec)
	}
	r.log = append(r.log, rec.Copy())
	r.invalidate()
}

func (r *Representation) invalidate() {
	r.stats = nil
	r.tape = nil
}

// Clone returns a new representation with copied description, metadata and
// log, and empty caches. A nil program or empty source keeps the current one.
func (r *Representation) Clone(program Program, source string) *Representation {
	if program == nil {
		program = r.program
	}
	if source == "" {
		source = r.source
	}
	c := New(program, source, r.description, r.metadata)
	c.log = r.Log()
	return c
}

// WithDescription returns a clone carrying a different description.
func (r *Representation) WithDescription(description string) *Representation {
	c := r.Clone(nil, "")
	c.description = description
	return c
}

// WithMetadata returns a clone with an extra metadata entry.
func (r *Representation) WithMetadata(key, value string) *Representation {
	c := r.Clone(nil, "")
	c.metadata[key] = value
	return c
}

// String returns a one-line summary.
func (r *Representation) String() string {
	if r.stats != nil {
		return fmt.Sprintf("Circuit(%q, ops=%d, depth=%d, wires=%d, transforms=%d)",
			r.description, r.stats.NumOperations, r.stats.Depth, r.stats.NumWires, len(r.log))
	}
	return fmt.Sprintf("Circuit(%q, transforms=%d)", r.description, len(r.log))
}
