package circuit

import "fmt"

// Program is an executable circuit. Tracing records the operations and
// measurements the program applies without simulating any quantum state.
type Program interface {
	// Trace runs the program once and returns its tape.
	Trace() (*Tape, error)

	// Device returns the execution target the program was declared against.
	Device() Device
}

// TapeTransform maps a tape to a new tape. Implementations must not
// mutate their input.
type TapeTransform func(*Tape) (*Tape, error)

// TransformedProgram is a program composed with a tape transform. It is
// evaluated lazily: the base program is re-traced and the transform
// re-applied on every Trace call.
type TransformedProgram struct {
	base Program
	name string
	fn   TapeTransform
}

// Transform wraps p so that its traces pass through fn.
func Transform(p Program, name string, fn TapeTransform) *TransformedProgram {
	return &TransformedProgram{base: p, name: name, fn: fn}
}

// Trace implements Program.
func (p *TransformedProgram) Trace() (*Tape, error) {
	tape, err := p.base.Trace()
	if err != nil {
		return nil, err
	}
	out, err := p.fn(tape.Copy())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p.name, err)
	}
	return out, nil
}

// Device implements Program.
func (p *TransformedProgram) Device() Device {
	return p.base.Device()
}

// Name returns the name of the outermost transform.
func (p *TransformedProgram) Name() string {
	return p.name
}

// Base returns the wrapped program.
func (p *TransformedProgram) Base() Program {
	return p.base
}

// TapeProgram is a program that always yields a fixed tape.
type TapeProgram struct {
	tape *Tape
}

// FromTape returns a program whose trace is a copy of tape.
func FromTape(tape *Tape) *TapeProgram {
	return &TapeProgram{tape: tape.Copy()}
}

// Trace implements Program.
func (p *TapeProgram) Trace() (*Tape, error) {
	return p.tape.Copy(), nil
}

// Device implements Program.
func (p *TapeProgram) Device() Device {
	return p.tape.Device
}

// Builder assembles tapes operation by operation.
type Builder struct {
	tape *Tape
}

// NewBuilder starts a tape on a device with the given number of wires.
func NewBuilder(wires int) *Builder {
	return &Builder{tape: &Tape{
		NumWires: wires,
		Device:   Device{Name: "default.qubit", Wires: wires},
	}}
}

// Op appends a gate application.
func (b *Builder) Op(name string, wires []int, params ...float64) *Builder {
	op := Operation{Name: CanonicalName(name), Wires: append([]int(nil), wires...)}
	if len(params) > 0 {
		op.Params = append([]float64(nil), params...)
	}
	b.tape.Operations = append(b.tape.Operations, op)
	return b
}

// Measure appends a terminal measurement.
func (b *Builder) Measure(kind MeasurementKind, wires ...int) *Builder {
	b.tape.Measurements = append(b.tape.Measurements, Measurement{Kind: kind, Wires: wires})
	return b
}

// Tape returns a copy of the assembled tape.
func (b *Builder) Tape() *Tape {
	return b.tape.Copy()
}

// Program returns a program yielding the assembled tape.
func (b *Builder) Program() *TapeProgram {
	return FromTape(b.tape)
}
