package interpreter

import (
	"strings"
)

// Preprocess rewrites generated source into the Starlark dialect used by the
// interpreter. Import statements are dropped because the numeric and
// circuit modules are predeclared, and decorators are turned into explicit
// assignments after the decorated function body. Line numbers of the
// remaining statements are preserved.
func Preprocess(source string) string {
	lines := strings.Split(strings.ReplaceAll(source, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(lines)+4)

	type pending struct {
		indent     string
		name       string
		decorators []string
	}
	var decorators []string
	var open *pending

	closeFunction := func() {
		if open == nil {
			return
		}
		// The decorator closest to the def is applied first.
		for i := len(open.decorators) - 1; i >= 0; i-- {
			out = append(out, open.indent+open.name+" = "+open.decorators[i]+"("+open.name+")")
		}
		open = nil
	}

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		indent := line[:len(line)-len(strings.TrimLeft(line, " \t"))]

		if open != nil && trimmed != "" && !strings.HasPrefix(trimmed, "#") && len(indent) <= len(open.indent) {
			closeFunction()
		}

		switch {
		case isImport(trimmed):
			if indent == "" {
				out = append(out, "")
			} else {
				out = append(out, indent+"pass")
			}
		case strings.HasPrefix(trimmed, "@"):
			decorators = append(decorators, strings.TrimSpace(trimmed[1:]))
			out = append(out, "")
		case strings.HasPrefix(trimmed, "def ") && len(decorators) > 0:
			closeFunction()
			open = &pending{indent: indent, name: functionName(trimmed), decorators: decorators}
			decorators = nil
			out = append(out, line)
		default:
			out = append(out, line)
		}
	}
	closeFunction()

	return strings.Join(out, "\n")
}

func isImport(trimmed string) bool {
	return strings.HasPrefix(trimmed, "import ") ||
		(strings.HasPrefix(trimmed, "from ") && strings.Contains(trimmed, " import "))
}

func functionName(def string) string {
	name := strings.TrimPrefix(def, "def ")
	if i := strings.IndexByte(name, '('); i >= 0 {
		name = name[:i]
	}
	return strings.TrimSpace(name)
}

// StripFences removes a surrounding markdown code fence from model output.
func StripFences(text string) string {
	text = strings.TrimSpace(text)
	for _, fence := range []string{"```python", "```py", "```"} {
		if strings.HasPrefix(text, fence) {
			text = strings.TrimPrefix(text, fence)
			break
		}
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}
