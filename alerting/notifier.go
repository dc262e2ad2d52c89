package alerting

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Notifier posts a firing to an arbitrary webhook URL (Slack incoming
// webhook, a generic ops endpoint, etc.) — unlike a dedicated paging
// service's fixed API, channels here are just URLs configured per rule.
type Notifier struct {
	client *http.Client
	logger zerolog.Logger
}

// NewNotifier creates a webhook notifier with a bounded per-call timeout.
func NewNotifier(logger zerolog.Logger) *Notifier {
	return &Notifier{
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger.With().Str("component", "alert-notifier").Logger(),
	}
}

// Notification is the JSON body posted to a channel webhook.
type Notification struct {
	RuleID             string    `json:"rule_id"`
	RuleName           string    `json:"rule_name"`
	TenantID           string    `json:"tenant_id"`
	Severity           string    `json:"severity"`
	FiredAt            time.Time `json:"fired_at"`
	TriggeringEventIDs []string  `json:"triggering_event_ids"`
}

// Send posts notification to every channel URL, logging but not returning per-channel
// failures — one dead webhook must not block the others or the ingest
// response.
func (n *Notifier) Send(channels []string, notification Notification) {
	body, err := json.Marshal(notification)
	if err != nil {
		n.logger.Error().Err(err).Msg("marshal alert notification")
		return
	}

	for _, url := range channels {
		if err := n.post(url, body); err != nil {
			n.logger.Error().Err(err).Str("channel", url).Str("rule_id", notification.RuleID).Msg("alert channel delivery failed")
		}
	}
}

func (n *Notifier) post(url string, body []byte) error {
	resp, err := n.client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("alerting: webhook post failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		return fmt.Errorf("alerting: webhook returned HTTP %d", resp.StatusCode)
	}
	return nil
}
