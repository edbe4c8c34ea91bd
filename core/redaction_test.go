package core

import "testing"

func TestRedactSensitiveMapPreservesTraceabilityMetadata(t *testing.T) {
	redacted := RedactSensitiveMap(map[string]any{
		"trace_id":        "trace_1",
		"grant_id":        "grant_1",
		"auth_server_url": "https://auth.example",
		"access_token":    "secret-token",
		"authorization":   "GNAP secret-token",
		"nested":          map[string]any{"continue_token": "c", "trace_id": "trace_nested"},
		"events":          []any{map[string]any{"client_secret": "s"}},
	})

	if redacted["trace_id"] != "trace_1" || redacted["grant_id"] != "grant_1" {
		t.Fatalf("expected traceability keys to remain visible, got %#v", redacted)
	}
	if redacted["auth_server_url"] != "https://auth.example" {
		t.Fatalf("expected auth_server_url to remain visible, got %#v", redacted["auth_server_url"])
	}
	if redacted["access_token"] != RedactedValue || redacted["authorization"] != RedactedValue {
		t.Fatalf("expected credentials to be redacted, got %#v", redacted)
	}
	nested, ok := redacted["nested"].(map[string]any)
	if !ok {
		t.Fatalf("expected nested redacted map")
	}
	if nested["continue_token"] != RedactedValue || nested["trace_id"] != "trace_nested" {
		t.Fatalf("unexpected nested redaction %#v", nested)
	}
	events, ok := redacted["events"].([]any)
	if !ok || events[0].(map[string]any)["client_secret"] != RedactedValue {
		t.Fatalf("expected list entries to be redacted, got %#v", redacted["events"])
	}
}
