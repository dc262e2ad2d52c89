package apierr

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestWriteEncodesErrorEnvelope(t *testing.T) {
	rw := httptest.NewRecorder()
	Write(rw, NotFound("agent not found"))

	if rw.Result().StatusCode != 404 {
		t.Fatalf("expected 404, got %d", rw.Result().StatusCode)
	}
	body := rw.Body.String()
	if !strings.Contains(body, `"error":"not_found"`) {
		t.Fatalf("expected error code in body, got %s", body)
	}
	if !strings.Contains(body, "agent not found") {
		t.Fatalf("expected message in body, got %s", body)
	}
}

func TestRateLimitedAttachesRetryAfterDetail(t *testing.T) {
	err := RateLimited(30)

	if err.Status != 429 {
		t.Fatalf("expected status 429, got %d", err.Status)
	}
	if err.Details["retry_after_seconds"] != 30 {
		t.Fatalf("expected retry_after_seconds detail of 30, got %v", err.Details["retry_after_seconds"])
	}
}

func TestWithDetailsOverwritesPreviousDetails(t *testing.T) {
	err := BadRequest("bad").
		WithDetails(map[string]any{"old": 1}).
		WithDetails(map[string]any{"field": "name"})

	if err.Details["field"] != "name" {
		t.Fatalf("expected field detail, got %v", err.Details)
	}
	if _, ok := err.Details["old"]; ok {
		t.Fatalf("expected earlier details to be replaced, got %v", err.Details)
	}
}
