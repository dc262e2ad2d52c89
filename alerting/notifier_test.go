package alerting

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestNotifierSendPostsToEachChannel(t *testing.T) {
	var mu sync.Mutex
	var received []Notification

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var n Notification
		if err := json.NewDecoder(r.Body).Decode(&n); err != nil {
			t.Errorf("decode notification body: %v", err)
		}
		mu.Lock()
		received = append(received, n)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n := NewNotifier(zerolog.Nop())
	n.Send([]string{server.URL, server.URL}, Notification{
		RuleID:   "rule-1",
		RuleName: "test rule",
		TenantID: "acme",
		Severity: "critical",
		FiredAt:  time.Now().UTC(),
	})

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 2 {
		t.Fatalf("expected 2 webhook deliveries, got %d", len(received))
	}
	if received[0].RuleID != "rule-1" {
		t.Fatalf("expected rule_id rule-1, got %s", received[0].RuleID)
	}
}

func TestNotifierSendToleratesDeadChannel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n := NewNotifier(zerolog.Nop())
	// http://127.0.0.1:0 is never a live listener; Send must not panic or block.
	n.Send([]string{"http://127.0.0.1:0", server.URL}, Notification{RuleID: "rule-1"})
}
