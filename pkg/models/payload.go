package models

import (
	"encoding/json"
	"fmt"
)

// PayloadKind discriminates the variants of a task payload.
type PayloadKind string

const (
	// PayloadEmpty is the zero payload.
	PayloadEmpty PayloadKind = "empty"
	// PayloadPlan holds a persisted execution plan and its step cursor.
	PayloadPlan PayloadKind = "plan"
	// PayloadResult holds opaque structured output.
	PayloadResult PayloadKind = "result"
)

// StoredPlan is an execution plan persisted onto a task, with the cursor
// tracking the next step to materialize in step-by-step mode.
type StoredPlan struct {
	Steps         []PlanStep       `json:"steps"`
	Confidence    ConfidenceResult `json:"confidence"`
	ExecutionMode ExecutionMode    `json:"execution_mode"`
	PatternKey    string           `json:"pattern_key"`
	Reasoning     string           `json:"reasoning,omitempty"`
	// Cursor is the index of the next step to materialize.
	Cursor int `json:"cursor"`
}

// Payload is the tagged union stored in a task's input and output fields.
// Exactly one variant is populated. The source system stored these as
// untyped nested objects merged in place; the explicit variants here make
// the merge rules visible and keep plan state from clobbering results.
type Payload struct {
	Kind   PayloadKind    `json:"kind"`
	Plan   *StoredPlan    `json:"plan,omitempty"`
	Result map[string]any `json:"result,omitempty"`
}

// IsEmpty reports whether the payload carries nothing.
func (p Payload) IsEmpty() bool {
	return p.Kind == "" || p.Kind == PayloadEmpty
}

// PlanPayload wraps a stored plan as a payload.
func PlanPayload(plan *StoredPlan) Payload {
	return Payload{Kind: PayloadPlan, Plan: plan}
}

// ResultPayload wraps structured output as a payload.
func ResultPayload(result map[string]any) Payload {
	return Payload{Kind: PayloadResult, Result: result}
}

// Merge combines an incoming payload into p and returns the result.
// Rules per variant:
//   - empty + x        = x
//   - x + empty        = x
//   - result + result  = shallow key merge, incoming keys win
//   - plan + plan      = incoming plan replaces the stored plan
//   - plan + result or result + plan = error; a task field holds one variant
func (p Payload) Merge(in Payload) (Payload, error) {
	if in.IsEmpty() {
		return p, nil
	}
	if p.IsEmpty() {
		return in, nil
	}
	if p.Kind != in.Kind {
		return Payload{}, fmt.Errorf("cannot merge %s payload into %s payload", in.Kind, p.Kind)
	}
	switch p.Kind {
	case PayloadPlan:
		return in, nil
	case PayloadResult:
		merged := make(map[string]any, len(p.Result)+len(in.Result))
		for k, v := range p.Result {
			merged[k] = v
		}
		for k, v := range in.Result {
			merged[k] = v
		}
		return ResultPayload(merged), nil
	default:
		return Payload{}, fmt.Errorf("unknown payload kind %q", p.Kind)
	}
}

// MarshalJSON emits null for empty payloads so tasks without orchestration
// state serialize compactly.
func (p Payload) MarshalJSON() ([]byte, error) {
	if p.IsEmpty() {
		return []byte("null"), nil
	}
	type alias Payload
	return json.Marshal(alias(p))
}

// UnmarshalJSON accepts null as the empty payload.
func (p *Payload) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*p = Payload{Kind: PayloadEmpty}
		return nil
	}
	type alias Payload
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*p = Payload(a)
	if p.Kind == "" {
		p.Kind = PayloadEmpty
	}
	return nil
}
