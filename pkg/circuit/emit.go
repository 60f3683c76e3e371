package circuit

import (
	"fmt"
	"strconv"
	"strings"
)

// DefaultDeviceName is the device emitted for tapes that declare none.
const DefaultDeviceName = "default.qubit"

// EmitSource renders a tape as program source that traces back to the same
// operations and measurements. Comments and helper functions of the
// original source are not preserved.
func EmitSource(t *Tape) string {
	var sb strings.Builder

	device := t.Device.Name
	if device == "" {
		device = DefaultDeviceName
	}
	wires := t.NumWires
	if wires == 0 {
		wires = t.WireCount()
	}

	sb.WriteString("import pennylane as qml\n\n")
	fmt.Fprintf(&sb, "dev = qml.device(%q, wires=%d", device, wires)
	if t.Device.Shots > 0 {
		fmt.Fprintf(&sb, ", shots=%d", t.Device.Shots)
	}
	sb.WriteString(")\n\n@qml.qnode(dev)\ndef circuit():\n")

	for _, op := range t.Operations {
		sb.WriteString("    ")
		sb.WriteString(emitOperation(op))
		sb.WriteString("\n")
	}

	measurements := make([]string, len(t.Measurements))
	for i, m := range t.Measurements {
		measurements[i] = emitMeasurement(m)
	}
	if len(measurements) == 0 {
		measurements = []string{"qml.state()"}
	}
	sb.WriteString("    return ")
	sb.WriteString(strings.Join(measurements, ", "))
	sb.WriteString("\n")
	return sb.String()
}

func emitOperation(op Operation) string {
	base, adjoint := BaseName(op.Name)
	args := emitArgs(op)
	if adjoint {
		return "qml.adjoint(qml." + base + ")(" + args + ")"
	}
	return "qml." + base + "(" + args + ")"
}

func emitArgs(op Operation) string {
	parts := make([]string, 0, len(op.Params)+1)
	for _, p := range op.Params {
		parts = append(parts, formatParam(p))
	}
	parts = append(parts, "wires="+formatWires(op.Wires))
	return strings.Join(parts, ", ")
}

// formatParam keeps a decimal point so the value stays a float literal.
func formatParam(p float64) string {
	s := strconv.FormatFloat(p, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eEn") {
		s += ".0"
	}
	return s
}

func emitMeasurement(m Measurement) string {
	name := "qml." + string(m.Kind)
	switch {
	case m.Kind == MeasureState:
		return name + "()"
	case m.Observable != nil:
		return name + "(" + emitOperation(*m.Observable) + ")"
	case len(m.Wires) > 0:
		return name + "(wires=" + formatWires(m.Wires) + ")"
	default:
		return name + "()"
	}
}
