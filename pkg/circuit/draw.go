package circuit

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// DrawOptions controls the text diagram.
type DrawOptions struct {
	// ShowParams renders gate parameters next to gate labels.
	ShowParams bool

	// Decimals is the number of decimals used for parameters.
	Decimals int

	// MaxLength wraps the diagram into blocks no wider than this many
	// characters. Zero disables wrapping.
	MaxLength int
}

// DefaultDrawOptions returns the options used when none are given.
func DefaultDrawOptions() DrawOptions {
	return DrawOptions{ShowParams: true, Decimals: 2, MaxLength: 100}
}

// Draw renders the tape as a text diagram, one line per wire.
func Draw(t *Tape, opts DrawOptions) string {
	numWires := t.WireCount()
	if numWires == 0 {
		return ""
	}

	dag := buildDAG(t.Operations, true)
	columns := make([][]string, 0, len(dag.Layers))
	for _, layer := range dag.Layers {
		columns = append(columns, drawLayer(dag, layer, numWires, opts))
	}

	prefixes := make([]string, numWires)
	width := len(strconv.Itoa(numWires - 1))
	for w := range prefixes {
		prefixes[w] = fmt.Sprintf("%*d: ", width, w)
	}

	final := drawMeasurements(t, numWires)
	limit := 0
	if opts.MaxLength > 0 {
		limit = max(1, opts.MaxLength-utf8.RuneCountInString(prefixes[0])-1-max(columnWidth(final), 3))
	}
	blocks := packColumns(columns, limit)

	var sb strings.Builder
	for b, block := range blocks {
		if b > 0 {
			sb.WriteString("\n\n")
		}
		for w := 0; w < numWires; w++ {
			sb.WriteString(prefixes[w])
			sb.WriteString("─")
			for _, col := range block {
				sb.WriteString(col[w])
			}
			if b == len(blocks)-1 {
				sb.WriteString(final[w])
			} else {
				sb.WriteString("···")
			}
			if w < numWires-1 {
				sb.WriteString("\n")
			}
		}
	}
	return sb.String()
}

func drawLayer(dag *DAG, layer []int, numWires int, opts DrawOptions) []string {
	labels := make([]string, numWires)
	prefix := make([]string, numWires)
	for w := range prefix {
		prefix[w] = "─"
	}

	for _, i := range layer {
		op := dag.Nodes[i].Op
		opLabels := operationLabels(op, opts)
		for k, w := range op.Wires {
			labels[w] = opLabels[k]
		}
		if len(op.Wires) < 2 {
			continue
		}
		span := occupiedWires(op, true)
		lo, hi := span[0], span[len(span)-1]
		for _, w := range span {
			switch {
			case w == lo:
				prefix[w] = "╭"
			case w == hi:
				prefix[w] = "╰"
			case op.ActsOn(w):
				prefix[w] = "├"
			default:
				prefix[w] = "│"
			}
		}
	}

	width := 0
	for _, l := range labels {
		if n := utf8.RuneCountInString(l); n > width {
			width = n
		}
	}

	cells := make([]string, numWires)
	for w := range cells {
		l := labels[w]
		pad := width - utf8.RuneCountInString(l)
		cells[w] = prefix[w] + l + strings.Repeat("─", pad+1)
	}
	return cells
}

func operationLabels(op Operation, opts DrawOptions) []string {
	base, adjoint := BaseName(op.Name)
	g, known := LookupGate(base)

	label := base
	controls := 0
	if known {
		label = g.Label
		controls = g.NumControls
	}
	if adjoint {
		label += "†"
	}
	if opts.ShowParams && len(op.Params) > 0 {
		parts := make([]string, len(op.Params))
		for i, p := range op.Params {
			parts[i] = strconv.FormatFloat(p, 'f', opts.Decimals, 64)
		}
		label += "(" + strings.Join(parts, ",") + ")"
	}

	labels := make([]string, len(op.Wires))
	for i := range labels {
		if i < controls {
			labels[i] = "●"
		} else {
			labels[i] = label
		}
	}
	return labels
}

func drawMeasurements(t *Tape, numWires int) []string {
	labels := make([]string, numWires)
	for _, m := range t.Measurements {
		wires := m.Wires
		if len(wires) == 0 && m.Observable != nil {
			wires = m.Observable.Wires
		}
		if len(wires) == 0 {
			for w := 0; w < numWires; w++ {
				labels[w] = m.Label()
			}
			continue
		}
		for _, w := range wires {
			if w >= 0 && w < numWires {
				labels[w] = m.Label()
			}
		}
	}

	cells := make([]string, numWires)
	for w, l := range labels {
		if l == "" {
			cells[w] = "┤"
		} else {
			cells[w] = "┤  " + l
		}
	}
	return cells
}

func columnWidth(col []string) int {
	width := 0
	for _, c := range col {
		if n := utf8.RuneCountInString(c); n > width {
			width = n
		}
	}
	return width
}

// packColumns splits columns into blocks whose total width fits limit.
// Every block holds at least one column.
func packColumns(columns [][]string, limit int) [][][]string {
	if len(columns) == 0 {
		return [][][]string{nil}
	}
	blocks := make([][][]string, 0, 1)
	current := make([][]string, 0)
	used := 0
	for _, col := range columns {
		w := columnWidth(col)
		if limit > 0 && len(current) > 0 && used+w > limit {
			blocks = append(blocks, current)
			current = make([][]string, 0)
			used = 0
		}
		current = append(current, col)
		used += w
	}
	return append(blocks, current)
}
