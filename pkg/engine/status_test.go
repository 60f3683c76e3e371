package engine

import (
	"encoding/json"
	"testing"
)

func TestStage_Next(t *testing.T) {
	order := []Stage{StageDrafting, StageValidating, StageExecuting, StageCompiling, StageSuccess}
	for i := 0; i < len(order)-1; i++ {
		if got := order[i].Next(); got != order[i+1] {
			t.Errorf("%s.Next() = %s, want %s", order[i], got, order[i+1])
		}
	}
	if StageFailed.Next() != StageFailed {
		t.Error("terminal stages do not advance")
	}
}

func TestStage_Predicates(t *testing.T) {
	if !StageSuccess.IsTerminal() || !StageFailed.IsTerminal() {
		t.Error("success and failed are terminal")
	}
	if StageDrafting.IsTerminal() {
		t.Error("drafting is not terminal")
	}
	for _, s := range []Stage{StageValidating, StageExecuting, StageCompiling} {
		if !s.IsVerification() {
			t.Errorf("%s should be a verification stage", s)
		}
	}
	if StageDrafting.IsVerification() {
		t.Error("drafting is not a verification stage")
	}
}

func TestStage_JSON(t *testing.T) {
	data, err := json.Marshal(StageCompiling)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `"compiling"` {
		t.Errorf("unexpected json %s", data)
	}

	var s Stage
	if err := json.Unmarshal([]byte(`"executing"`), &s); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if s != StageExecuting {
		t.Errorf("got %s", s)
	}

	if err := json.Unmarshal([]byte(`"bogus"`), &s); err == nil {
		t.Error("expected error for invalid stage")
	}
}
