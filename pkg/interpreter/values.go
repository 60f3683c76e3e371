package interpreter

import (
	"fmt"

	"go.starlark.net/starlark"

	"github.com/skadi/skadi/pkg/circuit"
)

// deviceValue is the Starlark value returned by qml.device.
type deviceValue struct {
	device circuit.Device
}

var _ starlark.HasAttrs = (*deviceValue)(nil)

func (d *deviceValue) String() string {
	return fmt.Sprintf("<Device name=%s wires=%d>", d.device.Name, d.device.Wires)
}
func (d *deviceValue) Type() string          { return "Device" }
func (d *deviceValue) Freeze()               {}
func (d *deviceValue) Truth() starlark.Bool  { return starlark.True }
func (d *deviceValue) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable: Device") }

func (d *deviceValue) Attr(name string) (starlark.Value, error) {
	switch name {
	case "name":
		return starlark.String(d.device.Name), nil
	case "num_wires":
		return starlark.MakeInt(d.device.Wires), nil
	case "shots":
		if d.device.Shots == 0 {
			return starlark.None, nil
		}
		return starlark.MakeInt(d.device.Shots), nil
	}
	return nil, nil
}

func (d *deviceValue) AttrNames() []string { return []string{"name", "num_wires", "shots"} }

// operationValue is the Starlark value returned by a gate call. It refers
// to the recorded entry so that measurements can claim it as an observable.
type operationValue struct {
	op  circuit.Operation
	ref *recordedOp
}

func (o *operationValue) String() string        { return o.op.String() }
func (o *operationValue) Type() string          { return "Operation" }
func (o *operationValue) Freeze()               {}
func (o *operationValue) Truth() starlark.Bool  { return starlark.True }
func (o *operationValue) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable: Operation") }

// measurementValue is the Starlark value returned by a measurement call.
type measurementValue struct {
	m circuit.Measurement
}

func (m *measurementValue) String() string {
	return fmt.Sprintf("%s(wires=%v)", m.m.Kind, m.m.Wires)
}
func (m *measurementValue) Type() string         { return "MeasurementProcess" }
func (m *measurementValue) Freeze()              {}
func (m *measurementValue) Truth() starlark.Bool { return starlark.True }

func (m *measurementValue) Hash() (uint32, error) {
	return 0, fmt.Errorf("unhashable: MeasurementProcess")
}

// qnodeValue binds a circuit function to a device. Calling it from source
// traces the function and returns its measurements.
type qnodeValue struct {
	fn     starlark.Callable
	device circuit.Device
}

var _ starlark.Callable = (*qnodeValue)(nil)

func (q *qnodeValue) String() string        { return fmt.Sprintf("<QNode: device=%s>", q.device.Name) }
func (q *qnodeValue) Type() string          { return "QNode" }
func (q *qnodeValue) Freeze()               { q.fn.Freeze() }
func (q *qnodeValue) Truth() starlark.Bool  { return starlark.True }
func (q *qnodeValue) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable: QNode") }
func (q *qnodeValue) Name() string          { return q.fn.Name() }

func (q *qnodeValue) CallInternal(thread *starlark.Thread, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	outer := thread.Local(recorderKey)
	rec := newRecorder()
	thread.SetLocal(recorderKey, rec)
	defer thread.SetLocal(recorderKey, outer)

	return starlark.Call(thread, q.fn, args, kwargs)
}
