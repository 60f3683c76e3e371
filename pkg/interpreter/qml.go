package interpreter

import (
	"fmt"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"

	"github.com/skadi/skadi/pkg/circuit"
)

const recorderKey = "skadi.recorder"

// recordedOp is one tape entry. Entries claimed as observables are dropped
// from the recorded operations.
type recordedOp struct {
	op      circuit.Operation
	claimed bool
}

// recorder collects operations and measurements while a circuit function runs.
type recorder struct {
	ops          []*recordedOp
	measurements []circuit.Measurement
}

func newRecorder() *recorder {
	return &recorder{ops: make([]*recordedOp, 0), measurements: make([]circuit.Measurement, 0)}
}

func (r *recorder) record(op circuit.Operation) *recordedOp {
	entry := &recordedOp{op: op}
	r.ops = append(r.ops, entry)
	return entry
}

func (r *recorder) operations() []circuit.Operation {
	ops := make([]circuit.Operation, 0, len(r.ops))
	for _, e := range r.ops {
		if !e.claimed {
			ops = append(ops, e.op)
		}
	}
	return ops
}

func currentRecorder(thread *starlark.Thread) *recorder {
	rec, _ := thread.Local(recorderKey).(*recorder)
	return rec
}

// paramNames lists the keyword names accepted for gate parameters.
var paramNames = map[string][]string{
	"RX": {"phi"}, "RY": {"phi"}, "RZ": {"phi"}, "PhaseShift": {"phi"},
	"CRX": {"phi"}, "CRY": {"phi"}, "CRZ": {"phi"}, "ControlledPhaseShift": {"phi"},
	"MultiRZ": {"theta"},
	"Rot":     {"phi", "theta", "omega"}, "CRot": {"phi", "theta", "omega"},
}

// newQMLModule builds the circuit module exposed to generated source as
// qml and pennylane.
func newQMLModule() *starlarkstruct.Module {
	members := starlark.StringDict{
		"device":  starlark.NewBuiltin("device", builtinDevice),
		"qnode":   starlark.NewBuiltin("qnode", builtinQNode),
		"adjoint": starlark.NewBuiltin("adjoint", builtinAdjoint),
		"Barrier": starlark.NewBuiltin("Barrier", builtinBarrier),
		"state":   starlark.NewBuiltin("state", builtinState),
		"probs":   measurementBuiltin(circuit.MeasureProbs),
		"expval":  measurementBuiltin(circuit.MeasureExpval),
		"var":     measurementBuiltin(circuit.MeasureVar),
		"sample":  measurementBuiltin(circuit.MeasureSample),
		"counts":  measurementBuiltin(circuit.MeasureCounts),
	}
	for _, name := range circuit.GateNames() {
		g, _ := circuit.LookupGate(name)
		members[name] = gateBuiltin(g, name)
		for _, alias := range g.Aliases {
			members[alias] = gateBuiltin(g, alias)
		}
	}
	return &starlarkstruct.Module{Name: "qml", Members: members}
}

func builtinDevice(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var name string
	var wires, shots starlark.Value = starlark.None, starlark.None
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "name", &name, "wires?", &wires, "shots?", &shots); err != nil {
		return nil, err
	}

	dev := circuit.Device{Name: name}
	switch w := wires.(type) {
	case starlark.NoneType:
	case starlark.Int:
		n, ok := w.Int64()
		if !ok || n < 0 {
			return nil, fmt.Errorf("%s: invalid wire count %s", b.Name(), w)
		}
		dev.Wires = int(n)
	case starlark.Indexable:
		dev.Wires = w.Len()
	default:
		return nil, fmt.Errorf("%s: wires must be an int or a sequence, got %s", b.Name(), wires.Type())
	}
	if s, ok := shots.(starlark.Int); ok {
		n, _ := s.Int64()
		dev.Shots = int(n)
	}
	return &deviceValue{device: dev}, nil
}

func builtinQNode(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("%s: missing device argument", b.Name())
	}
	dev, ok := args[0].(*deviceValue)
	if !ok {
		return nil, fmt.Errorf("%s: first argument must be a device, got %s", b.Name(), args[0].Type())
	}
	// Keyword options such as interface or diff_method do not affect tracing.
	decorator := func(_ *starlark.Thread, db *starlark.Builtin, dargs starlark.Tuple, _ []starlark.Tuple) (starlark.Value, error) {
		if len(dargs) != 1 {
			return nil, fmt.Errorf("%s: expected one function", db.Name())
		}
		fn, ok := dargs[0].(starlark.Callable)
		if !ok {
			return nil, fmt.Errorf("%s: %s is not callable", db.Name(), dargs[0].Type())
		}
		return &qnodeValue{fn: fn, device: dev.device}, nil
	}
	return starlark.NewBuiltin("qnode", decorator), nil
}

// builtinAdjoint wraps a gate or a function so that the operations it
// records are replaced by their inverses in reverse order.
func builtinAdjoint(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, _ []starlark.Tuple) (starlark.Value, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("%s: expected one argument", b.Name())
	}

	if opv, ok := args[0].(*operationValue); ok {
		// qml.adjoint(qml.S(wires=0)) inverts an already recorded operation.
		inv := circuit.Inverse(opv.op)
		if opv.ref != nil {
			opv.ref.op = inv
		}
		return &operationValue{op: inv, ref: opv.ref}, nil
	}

	fn, ok := args[0].(starlark.Callable)
	if !ok {
		return nil, fmt.Errorf("%s: %s is not callable", b.Name(), args[0].Type())
	}
	wrapped := func(thread *starlark.Thread, _ *starlark.Builtin, fargs starlark.Tuple, fkwargs []starlark.Tuple) (starlark.Value, error) {
		rec := currentRecorder(thread)
		mark := 0
		if rec != nil {
			mark = len(rec.ops)
		}
		result, err := starlark.Call(thread, fn, fargs, fkwargs)
		if err != nil {
			return nil, err
		}
		if rec == nil {
			return result, nil
		}
		recorded := rec.ops[mark:]
		inverted := make([]*recordedOp, 0, len(recorded))
		for i := len(recorded) - 1; i >= 0; i-- {
			recorded[i].op = circuit.Inverse(recorded[i].op)
			inverted = append(inverted, recorded[i])
		}
		rec.ops = append(rec.ops[:mark], inverted...)
		if len(inverted) == 1 {
			return &operationValue{op: inverted[0].op, ref: inverted[0]}, nil
		}
		return starlark.None, nil
	}
	return starlark.NewBuiltin("adjoint("+fn.Name()+")", wrapped), nil
}

func builtinBarrier(_ *starlark.Thread, _ *starlark.Builtin, _ starlark.Tuple, _ []starlark.Tuple) (starlark.Value, error) {
	return starlark.None, nil
}

func builtinState(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackArgs(b.Name(), args, kwargs); err != nil {
		return nil, err
	}
	m := circuit.Measurement{Kind: circuit.MeasureState}
	if rec := currentRecorder(thread); rec != nil {
		rec.measurements = append(rec.measurements, m)
	}
	return &measurementValue{m: m}, nil
}

// measurementBuiltin handles measurements that take either an observable
// (an operation value, claimed off the tape) or wires.
func measurementBuiltin(kind circuit.MeasurementKind) *starlark.Builtin {
	fn := func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var op, wires starlark.Value = starlark.None, starlark.None
		if err := starlark.UnpackArgs(b.Name(), args, kwargs, "op?", &op, "wires?", &wires); err != nil {
			return nil, err
		}

		m := circuit.Measurement{Kind: kind}
		switch v := op.(type) {
		case starlark.NoneType:
		case *operationValue:
			obs := v.op.Copy()
			m.Observable = &obs
			m.Wires = append([]int(nil), obs.Wires...)
			if v.ref != nil {
				v.ref.claimed = true
			}
		default:
			// probs(0) and sample([0, 1]) pass wires positionally.
			if wires != starlark.None {
				return nil, fmt.Errorf("%s: unexpected argument %s", b.Name(), op.Type())
			}
			wires = op
		}
		if wires != starlark.None {
			w, err := toWires(b.Name(), wires)
			if err != nil {
				return nil, err
			}
			m.Wires = w
		}
		if (kind == circuit.MeasureExpval || kind == circuit.MeasureVar) && m.Observable == nil {
			return nil, fmt.Errorf("%s: an observable is required", b.Name())
		}

		if rec := currentRecorder(thread); rec != nil {
			rec.measurements = append(rec.measurements, m)
		}
		return &measurementValue{m: m}, nil
	}
	return starlark.NewBuiltin(string(kind), fn)
}

// gateBuiltin returns the builtin for one catalogue gate. Parameters come
// first positionally or by keyword; wires come last positionally or as
// the wires keyword.
func gateBuiltin(g circuit.GateSpec, exposed string) *starlark.Builtin {
	fn := func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		params := make([]float64, 0, g.NumParams)
		var wires starlark.Value

		positional := args
		for len(params) < g.NumParams && len(positional) > 0 {
			f, ok := starlark.AsFloat(positional[0])
			if !ok {
				break
			}
			params = append(params, f)
			positional = positional[1:]
		}
		if len(positional) > 1 {
			return nil, fmt.Errorf("%s: too many positional arguments", b.Name())
		}
		if len(positional) == 1 {
			wires = positional[0]
		}

		keyed := make(map[string]float64)
		for _, kv := range kwargs {
			key := string(kv[0].(starlark.String))
			switch key {
			case "wires":
				if wires != nil {
					return nil, fmt.Errorf("%s: wires given twice", b.Name())
				}
				wires = kv[1]
			case "id":
			default:
				f, ok := starlark.AsFloat(kv[1])
				if !ok {
					return nil, fmt.Errorf("%s: parameter %s must be a number, got %s", b.Name(), key, kv[1].Type())
				}
				keyed[key] = f
			}
		}
		for _, name := range paramNames[g.Name][len(params):min(len(paramNames[g.Name]), g.NumParams)] {
			if f, ok := keyed[name]; ok {
				params = append(params, f)
				delete(keyed, name)
			}
		}
		for name := range keyed {
			return nil, fmt.Errorf("%s: unexpected keyword argument %s", b.Name(), name)
		}
		if len(params) != g.NumParams {
			return nil, fmt.Errorf("%s: expected %d parameters, got %d", b.Name(), g.NumParams, len(params))
		}
		if wires == nil {
			return nil, fmt.Errorf("%s: missing wires", b.Name())
		}

		w, err := toWires(b.Name(), wires)
		if err != nil {
			return nil, err
		}
		if g.NumWires > 0 && len(w) != g.NumWires {
			return nil, fmt.Errorf("%s: expected %d wires, got %d", b.Name(), g.NumWires, len(w))
		}

		op := circuit.Operation{Name: g.Name, Wires: w}
		if len(params) > 0 {
			op.Params = params
		}
		var ref *recordedOp
		if rec := currentRecorder(thread); rec != nil {
			ref = rec.record(op)
		}
		return &operationValue{op: op, ref: ref}, nil
	}
	return starlark.NewBuiltin(exposed, fn)
}

func toWires(fname string, v starlark.Value) ([]int, error) {
	switch x := v.(type) {
	case starlark.Int:
		n, ok := x.Int64()
		if !ok {
			return nil, fmt.Errorf("%s: wire %s out of range", fname, x)
		}
		return []int{int(n)}, nil
	case starlark.Iterable:
		wires := make([]int, 0)
		iter := x.Iterate()
		defer iter.Done()
		var item starlark.Value
		for iter.Next(&item) {
			i, ok := item.(starlark.Int)
			if !ok {
				return nil, fmt.Errorf("%s: wire labels must be integers, got %s", fname, item.Type())
			}
			n, _ := i.Int64()
			wires = append(wires, int(n))
		}
		return wires, nil
	}
	return nil, fmt.Errorf("%s: wires must be an int or a sequence, got %s", fname, v.Type())
}
