package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"deedwatch/internal/storage"
)

// SlackNotifier posts alerts to an incoming webhook.
type SlackNotifier struct {
	webhookURL string
	channel    string
	client     *http.Client
	logger     zerolog.Logger
}

// NewSlackNotifier builds a Slack dispatcher.
func NewSlackNotifier(webhookURL, channel string, timeout time.Duration, logger zerolog.Logger) *SlackNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &SlackNotifier{
		webhookURL: webhookURL,
		channel:    channel,
		client:     &http.Client{Timeout: timeout},
		logger:     logger.With().Str("component", "alert_slack").Logger(),
	}
}

// Name identifies the channel.
func (n *SlackNotifier) Name() string { return "slack" }

// Dispatch posts the rendered alert. Slack answers a plain "ok".
func (n *SlackNotifier) Dispatch(ctx context.Context, alert storage.SaleAlert) (Delivery, error) {
	payload := map[string]string{"text": RenderMessage(alert)}
	if n.channel != "" {
		payload["channel"] = n.channel
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return Delivery{}, fmt.Errorf("marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return Delivery{}, fmt.Errorf("create slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return Delivery{}, fmt.Errorf("send slack request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return Delivery{}, fmt.Errorf("slack unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	n.logger.Info().Str("alert_id", alert.ID.String()).
		Str("priority", string(alert.Priority)).
		Msg("alert sent (slack)")
	return Delivery{Channel: n.Name(), SentAt: time.Now().UTC()}, nil
}

var _ Dispatcher = (*SlackNotifier)(nil)
