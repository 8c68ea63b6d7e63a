package models

import (
	"encoding/json"
	"testing"
)

func TestPayloadMerge_EmptyIdentity(t *testing.T) {
	result := ResultPayload(map[string]any{"url": "https://example.com"})

	merged, err := Payload{}.Merge(result)
	if err != nil {
		t.Fatalf("merge into empty failed: %v", err)
	}
	if merged.Kind != PayloadResult || merged.Result["url"] != "https://example.com" {
		t.Errorf("empty + result should yield result, got %+v", merged)
	}

	merged, err = result.Merge(Payload{})
	if err != nil {
		t.Fatalf("merge of empty failed: %v", err)
	}
	if merged.Result["url"] != "https://example.com" {
		t.Errorf("result + empty should keep result, got %+v", merged)
	}
}

func TestPayloadMerge_ResultKeysNeverClobbered(t *testing.T) {
	existing := ResultPayload(map[string]any{"draft": "v1", "words": 900})
	incoming := ResultPayload(map[string]any{"draft": "v2"})

	merged, err := existing.Merge(incoming)
	if err != nil {
		t.Fatalf("merge failed: %v", err)
	}
	if merged.Result["draft"] != "v2" {
		t.Errorf("incoming key should win, got %v", merged.Result["draft"])
	}
	if merged.Result["words"] != 900 {
		t.Errorf("unrelated key should survive, got %v", merged.Result["words"])
	}
	// The inputs must not be mutated.
	if existing.Result["draft"] != "v1" {
		t.Error("merge mutated the receiver")
	}
}

func TestPayloadMerge_PlanReplaces(t *testing.T) {
	old := PlanPayload(&StoredPlan{PatternKey: "a|b|1", Cursor: 0})
	next := PlanPayload(&StoredPlan{PatternKey: "a|b|1", Cursor: 1})

	merged, err := old.Merge(next)
	if err != nil {
		t.Fatalf("merge failed: %v", err)
	}
	if merged.Plan.Cursor != 1 {
		t.Errorf("cursor = %d, want 1", merged.Plan.Cursor)
	}
}

func TestPayloadMerge_KindMismatch(t *testing.T) {
	plan := PlanPayload(&StoredPlan{})
	result := ResultPayload(map[string]any{"ok": true})

	if _, err := plan.Merge(result); err == nil {
		t.Error("plan + result should fail")
	}
	if _, err := result.Merge(plan); err == nil {
		t.Error("result + plan should fail")
	}
}

func TestPayloadJSONRoundTrip(t *testing.T) {
	idx := 0
	p := PlanPayload(&StoredPlan{
		Steps: []PlanStep{
			{Title: "Research", AgentID: "a1", AgentType: "researcher"},
			{Title: "Write", AgentID: "a2", AgentType: "content-writer", DependsOnIndex: &idx},
		},
		ExecutionMode: ModeAuto,
		PatternKey:    "content-writer,researcher||2",
		Cursor:        0,
	})

	data, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var back Payload
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.Kind != PayloadPlan {
		t.Fatalf("kind = %s, want plan", back.Kind)
	}
	if len(back.Plan.Steps) != 2 {
		t.Fatalf("steps = %d, want 2", len(back.Plan.Steps))
	}
	if back.Plan.Steps[1].DependsOnIndex == nil || *back.Plan.Steps[1].DependsOnIndex != 0 {
		t.Error("depends_on_index lost in round trip")
	}

	// Empty payload serializes as null and comes back empty.
	data, err = json.Marshal(Payload{})
	if err != nil {
		t.Fatalf("marshal empty: %v", err)
	}
	if string(data) != "null" {
		t.Errorf("empty payload = %s, want null", data)
	}
	var empty Payload
	if err := json.Unmarshal([]byte("null"), &empty); err != nil {
		t.Fatalf("unmarshal null: %v", err)
	}
	if !empty.IsEmpty() {
		t.Error("null should decode as empty payload")
	}
}
