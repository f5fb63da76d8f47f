package service

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"driver-settlement-engine/internal/core/domain"
	"driver-settlement-engine/internal/core/ports/mocks"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type alertTestDeps struct {
	sigSvc  *mocks.MockSignatureService
	repo    *mocks.MockAlertDeliveryRepository
	metrics *mocks.MockMetricsRecorder
}

func newTestNotifier(t *testing.T, url string) (*alertNotifier, *alertTestDeps) {
	ctrl := gomock.NewController(t)
	d := &alertTestDeps{
		sigSvc:  mocks.NewMockSignatureService(ctrl),
		repo:    mocks.NewMockAlertDeliveryRepository(ctrl),
		metrics: mocks.NewMockMetricsRecorder(ctrl),
	}
	n := NewAlertNotifier(
		AlertNotifierConfig{WebhookURL: url, Secret: "ops-secret"},
		d.sigSvc, d.repo, http.DefaultClient, d.metrics, zerolog.Nop(),
	).(*alertNotifier)
	n.intervals = []time.Duration{time.Millisecond, time.Millisecond, time.Millisecond}
	return n, d
}

func testAlert() domain.AuditAlert {
	return domain.AuditAlert{
		OrderID:        "ord-1",
		Discrepancy:    money("6.00"),
		Recommendation: "Review settlement: system 161.00 vs reconciled 155.00",
		RaisedAt:       fixedNow,
	}
}

func TestAlertNotifier_Notify_Delivered(t *testing.T) {
	var gotSig, gotTS string
	var payload AlertPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get("X-Signature")
		gotTS = r.Header.Get("X-Timestamp")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &payload)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n, d := newTestNotifier(t, srv.URL)
	d.repo.EXPECT().Create(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, l *domain.AlertDeliveryLog) error {
			assert.Equal(t, "ord-1", l.OrderID)
			assert.Equal(t, domain.AlertDeliveryPending, l.Status)
			return nil
		})
	d.sigSvc.EXPECT().Sign("ops-secret", gomock.Any()).Return("deadbeef")
	d.repo.EXPECT().Update(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, l *domain.AlertDeliveryLog) error {
			assert.Equal(t, domain.AlertDeliveryDelivered, l.Status)
			assert.Equal(t, 1, l.Attempt)
			require.NotNil(t, l.HTTPStatus)
			assert.Equal(t, http.StatusOK, *l.HTTPStatus)
			return nil
		})
	d.metrics.EXPECT().AlertDelivered(true)

	require.NoError(t, n.Notify(context.Background(), testAlert()))
	assert.Equal(t, "deadbeef", gotSig)
	assert.NotEmpty(t, gotTS)
	assert.Equal(t, EventAuditAlert, payload.EventType)
	assert.Equal(t, "ord-1", payload.Data.OrderID)
}

func TestAlertNotifier_Notify_RetriesThenSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	n, d := newTestNotifier(t, srv.URL)
	d.repo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)
	d.sigSvc.EXPECT().Sign(gomock.Any(), gomock.Any()).Return("sig")
	var statuses []domain.AlertDeliveryStatus
	d.repo.EXPECT().Update(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, l *domain.AlertDeliveryLog) error {
			statuses = append(statuses, l.Status)
			return nil
		}).Times(3)
	d.metrics.EXPECT().AlertDelivered(true)

	require.NoError(t, n.Notify(context.Background(), testAlert()))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Equal(t, []domain.AlertDeliveryStatus{
		domain.AlertDeliveryPending, domain.AlertDeliveryPending, domain.AlertDeliveryDelivered,
	}, statuses)
}

func TestAlertNotifier_Notify_AllAttemptsFail(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	n, d := newTestNotifier(t, srv.URL)
	d.repo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)
	d.sigSvc.EXPECT().Sign(gomock.Any(), gomock.Any()).Return("sig")
	var last domain.AlertDeliveryLog
	d.repo.EXPECT().Update(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, l *domain.AlertDeliveryLog) error {
			last = *l
			return nil
		}).Times(5)
	d.metrics.EXPECT().AlertDelivered(false)

	err := n.Notify(context.Background(), testAlert())
	require.Error(t, err)
	assert.Equal(t, int32(4), atomic.LoadInt32(&calls))
	assert.Equal(t, domain.AlertDeliveryFailed, last.Status)
	assert.Equal(t, 4, last.Attempt)
	require.NotNil(t, last.LastError)
	assert.Contains(t, *last.LastError, "500")
}

func TestAlertNotifier_Notify_ContextCancelledDuringBackoff(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	n, d := newTestNotifier(t, srv.URL)
	n.intervals = []time.Duration{time.Hour}
	d.repo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)
	d.sigSvc.EXPECT().Sign(gomock.Any(), gomock.Any()).Return("sig")
	d.repo.EXPECT().Update(gomock.Any(), gomock.Any()).Return(nil).Times(2)
	d.metrics.EXPECT().AlertDelivered(false)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := n.Notify(ctx, testAlert())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestAlertNotifier_Notify_NoWebhookLogsOnly(t *testing.T) {
	n, _ := newTestNotifier(t, "")
	assert.NoError(t, n.Notify(context.Background(), testAlert()))
}
