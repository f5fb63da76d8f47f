package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"driver-settlement-engine/internal/core/domain"
	"driver-settlement-engine/internal/core/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// alertRetryIntervals is the wait before each retry of an alert delivery.
var alertRetryIntervals = []time.Duration{
	5 * time.Second,
	30 * time.Second,
	2 * time.Minute,
}

// EventAuditAlert is the event type of alert webhook payloads.
const EventAuditAlert = "AUDIT_ALERT"

// AlertPayload is the JSON body posted to the admin webhook.
type AlertPayload struct {
	EventType string            `json:"event_type"`
	Data      domain.AuditAlert `json:"data"`
	Timestamp int64             `json:"timestamp"`
}

// HTTPClient interface for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// AlertNotifierConfig configures the admin webhook.
type AlertNotifierConfig struct {
	WebhookURL string
	Secret     string
}

// alertNotifier implements ports.AlertNotifier over a signed webhook.
type alertNotifier struct {
	cfg        AlertNotifierConfig
	sigSvc     ports.SignatureService
	repo       ports.AlertDeliveryRepository
	httpClient HTTPClient
	metrics    ports.MetricsRecorder
	log        zerolog.Logger
	intervals  []time.Duration
}

// NewAlertNotifier creates the notifier. With an empty webhook URL alerts are only logged.
func NewAlertNotifier(
	cfg AlertNotifierConfig,
	sigSvc ports.SignatureService,
	repo ports.AlertDeliveryRepository,
	httpClient HTTPClient,
	metrics ports.MetricsRecorder,
	log zerolog.Logger,
) ports.AlertNotifier {
	return &alertNotifier{
		cfg:        cfg,
		sigSvc:     sigSvc,
		repo:       repo,
		httpClient: httpClient,
		metrics:    metricsOrNop(metrics),
		log:        log,
		intervals:  alertRetryIntervals,
	}
}

// Notify delivers the alert, retrying on transport errors and non-2xx responses.
// Every attempt is recorded in the delivery log.
func (n *alertNotifier) Notify(ctx context.Context, alert domain.AuditAlert) error {
	n.log.Warn().
		Str("order_id", alert.OrderID).
		Str("discrepancy", alert.Discrepancy.StringFixed(2)).
		Str("recommendation", alert.Recommendation).
		Msg("audit alert raised")

	if n.cfg.WebhookURL == "" {
		return nil
	}

	body, err := json.Marshal(AlertPayload{
		EventType: EventAuditAlert,
		Data:      alert,
		Timestamp: time.Now().Unix(),
	})
	if err != nil {
		return fmt.Errorf("marshal alert payload: %w", err)
	}

	now := time.Now().UTC()
	delivery := &domain.AlertDeliveryLog{
		ID:         uuid.New(),
		OrderID:    alert.OrderID,
		WebhookURL: n.cfg.WebhookURL,
		Payload:    string(body),
		Status:     domain.AlertDeliveryPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := n.repo.Create(ctx, delivery); err != nil {
		n.log.Warn().Err(err).Str("order_id", alert.OrderID).Msg("alert: failed to record delivery")
	}

	signature := n.sigSvc.Sign(n.cfg.Secret, string(body))

	for attempt := 0; attempt <= len(n.intervals); attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(n.intervals[attempt-1]):
			case <-ctx.Done():
				n.finish(ctx, delivery, domain.AlertDeliveryFailed)
				n.metrics.AlertDelivered(false)
				return fmt.Errorf("alert delivery aborted: %w", ctx.Err())
			}
		}
		delivery.Attempt = attempt + 1

		status, err := n.send(ctx, body, signature)
		if status != 0 {
			delivery.HTTPStatus = &status
		}
		if err == nil {
			delivery.LastError = nil
			n.finish(ctx, delivery, domain.AlertDeliveryDelivered)
			n.metrics.AlertDelivered(true)
			n.log.Info().Str("order_id", alert.OrderID).Int("attempt", attempt+1).Msg("alert: delivered")
			return nil
		}

		msg := err.Error()
		delivery.LastError = &msg
		n.finish(ctx, delivery, domain.AlertDeliveryPending)
		n.log.Warn().Err(err).Str("order_id", alert.OrderID).Int("attempt", attempt+1).Msg("alert: delivery failed")
	}

	n.finish(ctx, delivery, domain.AlertDeliveryFailed)
	n.metrics.AlertDelivered(false)
	return fmt.Errorf("alert for order %s: all %d attempts failed", alert.OrderID, delivery.Attempt)
}

func (n *alertNotifier) send(ctx context.Context, body []byte, signature string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Signature", signature)
	req.Header.Set("X-Timestamp", strconv.FormatInt(time.Now().Unix(), 10))

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("webhook responded %d", resp.StatusCode)
	}
	return resp.StatusCode, nil
}

func (n *alertNotifier) finish(ctx context.Context, delivery *domain.AlertDeliveryLog, status domain.AlertDeliveryStatus) {
	delivery.Status = status
	delivery.UpdatedAt = time.Now().UTC()
	if err := n.repo.Update(context.WithoutCancel(ctx), delivery); err != nil {
		n.log.Warn().Err(err).Str("order_id", delivery.OrderID).Msg("alert: failed to update delivery log")
	}
}
