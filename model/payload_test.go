package model

import "testing"

func TestNormalizeKindFallsBackToUnknownForUnrecognizedKind(t *testing.T) {
	if got := NormalizeKind("made_up_kind"); got != PayloadUnknown {
		t.Fatalf("expected unknown fallback, got %s", got)
	}
	if got := NormalizeKind("llm_call"); got != PayloadLLMCall {
		t.Fatalf("expected llm_call to round-trip, got %s", got)
	}
}

func TestMissingDataFieldsReportsAbsentRequiredFields(t *testing.T) {
	missing := MissingDataFields(PayloadLLMCall, map[string]any{"model": "gpt-4o"})

	if len(missing) != 2 {
		t.Fatalf("expected 2 missing fields, got %v", missing)
	}
}

func TestMissingDataFieldsNilForUnknownKind(t *testing.T) {
	if missing := MissingDataFields(PayloadUnknown, map[string]any{}); missing != nil {
		t.Fatalf("expected no required fields tracked for unknown kind, got %v", missing)
	}
}

func TestPayloadDataAccessors(t *testing.T) {
	p := Payload{Data: map[string]any{
		"model":    "gpt-4o",
		"cost_usd": 1.5,
	}}

	if v, ok := p.DataString("model"); !ok || v != "gpt-4o" {
		t.Fatalf("expected model=gpt-4o, got %v ok=%v", v, ok)
	}
	if v, ok := p.DataFloat("cost_usd"); !ok || v != 1.5 {
		t.Fatalf("expected cost_usd=1.5, got %v ok=%v", v, ok)
	}
	if _, ok := p.DataString("missing"); ok {
		t.Fatal("expected missing key to return ok=false")
	}
	if _, ok := p.DataFloat("model"); ok {
		t.Fatal("expected type-mismatched field to return ok=false")
	}
}

func TestPayloadDataIntTruncates(t *testing.T) {
	p := Payload{Data: map[string]any{"tokens_in": 100.9}}

	v, ok := p.DataInt("tokens_in")
	if !ok || v != 100 {
		t.Fatalf("expected tokens_in truncated to 100, got %v ok=%v", v, ok)
	}
}
