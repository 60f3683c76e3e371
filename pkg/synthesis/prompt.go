package synthesis

import (
	"fmt"
	"strings"
)

// BasePrompt is the circuit generation template. %s is the description.
const BasePrompt = `You are an expert quantum computing assistant specialized in PennyLane.
Generate valid PennyLane circuit code from this description: %s

Guidelines:
- Generate complete, runnable Python code
- Use proper PennyLane syntax and decorators
- The function should be named 'circuit' and use @qml.qnode decorator
- Include appropriate parameters based on the description
- Add brief comments explaining the circuit structure
- Return only the Python code, no explanations
- Use 'dev = qml.device("default.qubit", wires=N)' where N is the number of qubits needed
- Ensure the circuit returns measurements using qml.state() or qml.probs()

Example format:
import pennylane as qml

dev = qml.device("default.qubit", wires=2)

@qml.qnode(dev)
def circuit():
    # Circuit operations here
    qml.Hadamard(wires=0)
    qml.CNOT(wires=[0, 1])
    return qml.state()`

// CircuitPrompt builds the generation prompt for description, embedding
// the knowledge context when it is not empty.
func CircuitPrompt(description, knowledge string) string {
	base := fmt.Sprintf(BasePrompt, description)
	if strings.TrimSpace(knowledge) == "" {
		return base + "\n\nNow generate the code for: " + description
	}
	return KnowledgeSection(base, description, knowledge)
}

// KnowledgeSection appends a knowledge context block to prompt.
func KnowledgeSection(prompt, query, knowledge string) string {
	var b strings.Builder
	b.WriteString(prompt)
	b.WriteString("\n\n---\n\n**KNOWLEDGE CONTEXT:**\n")
	b.WriteString("The following information may help you generate the circuit:\n\n")
	b.WriteString(knowledge)
	b.WriteString("\n\n---\n\nNow generate the code for: ")
	b.WriteString(query)
	return b.String()
}

// Feedback formats the reason an attempt was rejected, with the rejected
// code when there is any.
func Feedback(reason, previousCode string) string {
	msg := "Previous attempt failed with error: " + reason
	if strings.TrimSpace(previousCode) != "" {
		msg += "\n\nPrevious code:\n" + previousCode
	}
	return msg
}

// WithFeedback appends error feedback to a prompt.
func WithFeedback(prompt, errorFeedback string) string {
	if strings.TrimSpace(errorFeedback) == "" {
		return prompt
	}
	return prompt + "\n\n" + errorFeedback + "\n\nPlease fix the error and generate corrected code."
}
