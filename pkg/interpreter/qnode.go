package interpreter

import (
	"errors"
	"fmt"
	"time"

	"go.starlark.net/starlark"

	"github.com/skadi/skadi/pkg/circuit"
)

// QNode is a circuit program loaded from source. Each Trace runs the
// circuit function on a fresh thread and records the operations it applies.
type QNode struct {
	fn     starlark.Callable
	device circuit.Device
	source string
	interp *Interpreter
}

var _ circuit.Program = (*QNode)(nil)

// Device implements circuit.Program.
func (q *QNode) Device() circuit.Device {
	return q.device
}

// Source returns the source text the program was loaded from.
func (q *QNode) Source() string {
	return q.source
}

// Trace implements circuit.Program. The circuit function is called without
// arguments.
func (q *QNode) Trace() (*circuit.Tape, error) {
	thread := q.interp.newThread("trace")
	rec := newRecorder()
	thread.SetLocal(recorderKey, rec)

	timer := time.AfterFunc(q.interp.timeout, func() {
		thread.Cancel(fmt.Sprintf("trace timeout after %v", q.interp.timeout))
	})
	defer timer.Stop()

	if _, err := starlark.Call(thread, q.fn, nil, nil); err != nil {
		var evalErr *starlark.EvalError
		if errors.As(err, &evalErr) {
			return nil, errors.New(evalErr.Msg)
		}
		return nil, err
	}
	if len(rec.measurements) == 0 {
		return nil, fmt.Errorf("%s must return at least one measurement", EntryPoint)
	}

	tape := &circuit.Tape{
		Operations:   rec.operations(),
		Measurements: rec.measurements,
		NumWires:     q.device.Wires,
		Device:       q.device,
	}
	if err := tape.Validate(); err != nil {
		return nil, err
	}
	return tape, nil
}
