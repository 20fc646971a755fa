package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// SlackChannel posts events to an incoming webhook. The execution payload
// is rendered as a fenced block under the message so PnL numbers survive
// Slack's formatting untouched.
type SlackChannel struct {
	webhookURL string
	client     *http.Client
}

func NewSlackChannel(webhookURL string) *SlackChannel {
	return &SlackChannel{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 5 * time.Second},
	}
}

func (s *SlackChannel) Name() string {
	return "slack"
}

func severityColor(sev Severity) string {
	switch sev {
	case Warning:
		return "#ffcc00"
	case Error:
		return "#ff0000"
	case Critical:
		return "#8b0000"
	default:
		return "#36a64f"
	}
}

func (s *SlackChannel) Notify(ctx context.Context, event Event) error {
	if s.webhookURL == "" {
		return nil
	}

	text := event.Message
	if lines := event.executionLines(); len(lines) != 0 {
		text += "\n```" + strings.Join(lines, "\n") + "```"
	}

	var fields []map[string]interface{}
	for _, line := range event.sortedFields() {
		k, v, _ := strings.Cut(line, "=")
		fields = append(fields, map[string]interface{}{
			"title": k,
			"value": v,
			"short": true,
		})
	}

	payload := map[string]interface{}{
		"attachments": []map[string]interface{}{
			{
				"color":   severityColor(event.Severity),
				"pretext": fmt.Sprintf("[%s] %s", event.Severity, event.Title),
				"text":    text,
				"fields":  fields,
				"ts":      event.At.Unix(),
				"footer":  "btcfloat reserve manager",
			},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack webhook returned status %d", resp.StatusCode)
	}
	return nil
}
