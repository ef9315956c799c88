package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/room-reservations/internal/application"
)

// DefaultCourierURL is the Courier send endpoint.
const DefaultCourierURL = "https://api.courier.com/send"

// maxErrorBody caps how much of a failed response is kept in the error.
const maxErrorBody = 512

// ErrCourierRejected is returned when Courier answers with a non-2xx status.
var ErrCourierRejected = errors.New("notify: courier rejected message")

// CourierConfig configures a CourierNotifier.
type CourierConfig struct {
	URL       string
	AuthToken string
	Timeout   time.Duration
}

// CourierNotifier sends notifications as email through the Courier HTTP API.
type CourierNotifier struct {
	hc     *http.Client
	url    string
	token  string
	logger *slog.Logger
}

// NewCourierNotifier returns a CourierNotifier. A nil client gets a default
// one bounded by cfg.Timeout.
func NewCourierNotifier(cfg CourierConfig, hc *http.Client, logger *slog.Logger) (*CourierNotifier, error) {
	if strings.TrimSpace(cfg.AuthToken) == "" {
		return nil, errors.New("notify: courier auth token is required")
	}
	if cfg.URL == "" {
		cfg.URL = DefaultCourierURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CourierNotifier{hc: hc, url: cfg.URL, token: cfg.AuthToken, logger: logger}, nil
}

type courierRequest struct {
	Message courierMessage `json:"message"`
}

type courierMessage struct {
	To      courierRecipient  `json:"to"`
	Content courierContent    `json:"content"`
	Data    map[string]string `json:"data,omitempty"`
}

type courierRecipient struct {
	Email string `json:"email"`
}

type courierContent struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type courierResponse struct {
	RequestID string `json:"requestId"`
}

// Send implements application.Notifier.
func (n *CourierNotifier) Send(ctx context.Context, notification application.Notification) error {
	payload, err := json.Marshal(courierRequest{Message: courierMessage{
		To:      courierRecipient{Email: notification.To},
		Content: courierContent{Title: notification.Subject, Body: notification.Body},
		Data:    notification.Data,
	}})
	if err != nil {
		return fmt.Errorf("notify: encode courier message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("notify: build courier request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+n.token)

	resp, err := n.hc.Do(req)
	if err != nil {
		return fmt.Errorf("notify: courier request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		return fmt.Errorf("%w: status=%d body=%s", ErrCourierRejected, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var accepted courierResponse
	_ = json.Unmarshal(body, &accepted)
	n.logger.DebugContext(ctx, "courier accepted message",
		"component", "notify",
		"to", notification.To,
		"request_id", accepted.RequestID,
	)
	return nil
}
