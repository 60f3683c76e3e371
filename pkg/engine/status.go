package engine

import (
	"encoding/json"
	"fmt"
)

// Stage represents a state of the generation state machine.
type Stage string

const (
	// StageDrafting indicates the synthesis client is producing source text.
	StageDrafting Stage = "drafting"

	// StageValidating indicates structural checks run against the source text.
	StageValidating Stage = "validating"

	// StageExecuting indicates the source is loaded into an isolated namespace.
	StageExecuting Stage = "executing"

	// StageCompiling indicates the program is traced once without simulation.
	StageCompiling Stage = "compiling"

	// StageSuccess indicates a verified program was produced.
	StageSuccess Stage = "success"

	// StageFailed indicates the attempt budget ran out.
	StageFailed Stage = "failed"
)

// IsTerminal returns true if the stage ends the state machine.
func (s Stage) IsTerminal() bool {
	return s == StageSuccess || s == StageFailed
}

// IsVerification returns true for the stages whose failures are fed back
// into a new drafting attempt.
func (s Stage) IsVerification() bool {
	return s == StageValidating || s == StageExecuting || s == StageCompiling
}

// Next returns the stage that follows s on success.
func (s Stage) Next() Stage {
	switch s {
	case StageDrafting:
		return StageValidating
	case StageValidating:
		return StageExecuting
	case StageExecuting:
		return StageCompiling
	case StageCompiling:
		return StageSuccess
	default:
		return s
	}
}

// Validate checks if the stage is valid.
func (s Stage) Validate() error {
	switch s {
	case StageDrafting, StageValidating, StageExecuting,
		StageCompiling, StageSuccess, StageFailed:
		return nil
	default:
		return fmt.Errorf("invalid stage: %s", s)
	}
}

// MarshalJSON implements json.Marshaler.
func (s Stage) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(s))
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *Stage) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	stage := Stage(str)
	if err := stage.Validate(); err != nil {
		return err
	}
	*s = stage
	return nil
}

// Attempt records the outcome of one drafting round.
type Attempt struct {
	// Number is the 1-based attempt index.
	Number int `json:"number"`

	// Stage is the last stage reached by the attempt.
	Stage Stage `json:"stage"`

	// Err is the stage failure, nil on success.
	Err error `json:"-"`

	// Feedback is the text handed to the next drafting round.
	Feedback string `json:"feedback,omitempty"`
}

// Failed returns true if the attempt did not reach StageSuccess.
func (a Attempt) Failed() bool {
	return a.Stage != StageSuccess
}
