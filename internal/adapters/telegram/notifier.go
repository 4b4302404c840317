// Package telegram delivers events to users via the Telegram Bot API. The
// bot user ID doubles as the Telegram chat ID.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/Drknessheo/lunara-bot/internal/domain"
	"github.com/Drknessheo/lunara-bot/internal/ports"
)

// Notifier implements ports.Notifier over the Telegram sendMessage API.
type Notifier struct {
	token  string
	client *http.Client
	logger ports.Logger
}

// NewNotifier creates a Notifier for the given bot token. It uses a default
// HTTP client with a 10-second timeout.
func NewNotifier(token string, logger ports.Logger) (*Notifier, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: telegram bot token is required", ports.ErrConfiguration)
	}
	return &Notifier{
		token:  token,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}, nil
}

// Notify posts the event to the user's chat. Delivery is best-effort; the
// caller decides whether a failure matters.
func (n *Notifier) Notify(ctx context.Context, userID int64, event domain.Event) error {
	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", n.token)

	payload := map[string]string{
		"chat_id":    strconv.FormatInt(userID, 10),
		"text":       renderEvent(event),
		"parse_mode": "Markdown",
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("telegram: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram: send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("telegram: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

// renderEvent formats an event as a bold-titled Telegram message.
func renderEvent(event domain.Event) string {
	title := eventTitle(event.Kind)
	if event.Message != "" {
		return fmt.Sprintf("*%s*\n%s", title, event.Message)
	}
	return fmt.Sprintf("*%s*\n%s", title, event.Symbol)
}

func eventTitle(kind domain.EventKind) string {
	switch kind {
	case domain.EventPositionOpened:
		return "Position Opened"
	case domain.EventPositionClosed:
		return "Position Closed"
	case domain.EventTrailingArmed:
		return "Trailing Stop Armed"
	case domain.EventWatchExpired:
		return "Watchlist Expired"
	case domain.EventNearStopLoss:
		return "Near Stop-Loss"
	case domain.EventNearTakeProfit:
		return "Near Take-Profit"
	case domain.EventOrderRejected:
		return "Order Rejected"
	default:
		return string(kind)
	}
}
