package generator

import (
	"strings"

	"github.com/skadi/skadi/pkg/engine"
)

// structuralCheck rejects source that lacks a required construct.
type structuralCheck struct {
	missing func(source string) bool
	reason  string
}

// checks run in order; the first failing check is reported.
var checks = []structuralCheck{
	{
		missing: func(s string) bool { return strings.TrimSpace(s) == "" },
		reason:  "Generated code is empty",
	},
	{
		missing: func(s string) bool {
			return !strings.Contains(s, "import pennylane") && !strings.Contains(s, "from pennylane")
		},
		reason: "Generated code must import pennylane",
	},
	{
		missing: lacks("qml.device"),
		reason:  "Generated code must create a quantum device",
	},
	{
		missing: lacks("def circuit"),
		reason:  "Generated code must define a 'circuit' function",
	},
	{
		missing: lacks("@qml.qnode"),
		reason:  "Generated code must use @qml.qnode decorator",
	},
	{
		missing: lacks("return"),
		reason:  "Circuit function must have a return statement",
	},
}

func lacks(substr string) func(string) bool {
	return func(s string) bool { return !strings.Contains(s, substr) }
}

// Validate runs the structural checks against source and returns a
// validation error naming the first missing construct.
func Validate(source string) error {
	for _, c := range checks {
		if c.missing(source) {
			return engine.NewValidationError(c.reason)
		}
	}
	return nil
}
