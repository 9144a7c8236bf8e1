package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"deedwatch/internal/storage"
)

// TelegramNotifier sends alerts through the Telegram Bot API.
type TelegramNotifier struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewTelegramNotifier builds a Telegram dispatcher.
func NewTelegramNotifier(botToken, chatID, baseURL string, timeout time.Duration, logger zerolog.Logger) *TelegramNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "alert_telegram").Logger(),
	}
}

// Name identifies the channel.
func (n *TelegramNotifier) Name() string { return "telegram" }

// Dispatch calls sendMessage with the rendered alert.
func (n *TelegramNotifier) Dispatch(ctx context.Context, alert storage.SaleAlert) (Delivery, error) {
	// plain text: recorder names carry characters Telegram markup rejects
	payload := map[string]string{
		"chat_id": n.chatID,
		"text":    RenderMessage(alert),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return Delivery{}, fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Delivery{}, fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return Delivery{}, fmt.Errorf("send telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Delivery{}, fmt.Errorf("telegram unexpected status: %d", resp.StatusCode)
	}

	var result struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil {
		if !result.OK {
			return Delivery{}, fmt.Errorf("telegram returned ok=false")
		}
	}

	n.logger.Info().Str("alert_id", alert.ID.String()).
		Str("priority", string(alert.Priority)).
		Msg("alert sent (telegram)")
	return Delivery{Channel: n.Name(), SentAt: time.Now().UTC()}, nil
}

var _ Dispatcher = (*TelegramNotifier)(nil)
