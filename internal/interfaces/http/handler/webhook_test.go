package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/ketchup/backend/internal/application/status"
	webhookapp "github.com/ketchup/backend/internal/application/webhookingest"
	"github.com/ketchup/backend/internal/domain/beneficiary"
	"github.com/ketchup/backend/internal/domain/shared"
	"github.com/ketchup/backend/internal/domain/voucher"
	"github.com/ketchup/backend/internal/domain/webhook"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// Minimal in-memory stores backing a real ingestion service. The handler is
// a thin pass-through; these tests pin the HTTP surface around it.

type fakeVoucherStore struct {
	mu       sync.Mutex
	vouchers map[uuid.UUID]*voucher.Voucher
}

func (s *fakeVoucherStore) FindByID(_ context.Context, id uuid.UUID) (*voucher.Voucher, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.vouchers[id]
	if !ok {
		return nil, nil
	}
	copied := *v
	return &copied, nil
}

func (s *fakeVoucherStore) FindByCode(_ context.Context, _ string) (*voucher.Voucher, error) {
	return nil, nil
}

func (s *fakeVoucherStore) FindByBeneficiary(_ context.Context, _ uuid.UUID, _ shared.Filter) ([]voucher.Voucher, error) {
	return nil, nil
}

func (s *fakeVoucherStore) FindExpired(_ context.Context, _ time.Time) ([]voucher.Voucher, error) {
	return nil, nil
}

func (s *fakeVoucherStore) FindExpiringWithin(_ context.Context, _ time.Time, _ time.Duration) ([]voucher.Voucher, error) {
	return nil, nil
}

func (s *fakeVoucherStore) FindTouchedOn(_ context.Context, _ time.Time) ([]voucher.Voucher, error) {
	return nil, nil
}

func (s *fakeVoucherStore) Save(_ context.Context, v *voucher.Voucher) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *v
	s.vouchers[v.ID] = &copied
	return nil
}

func (s *fakeVoucherStore) TransitionStatus(_ context.Context, id uuid.UUID, from, to voucher.Status, _ *voucher.StatusEvent) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.vouchers[id]
	if !ok || v.Status != from {
		return false, nil
	}
	v.Status = to
	return true, nil
}

func (s *fakeVoucherStore) setStatus(id uuid.UUID, st voucher.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vouchers[id].Status = st
}

type fakeEventStore struct{}

func (fakeEventStore) Append(_ context.Context, _ *voucher.StatusEvent) error { return nil }

func (fakeEventStore) FindByVoucher(_ context.Context, _ uuid.UUID) ([]voucher.StatusEvent, error) {
	return nil, nil
}

func (fakeEventStore) FindRecent(_ context.Context, _ int) ([]voucher.StatusEvent, error) {
	return nil, nil
}

func (fakeEventStore) CountByVoucherAndStatus(_ context.Context, _ uuid.UUID, _ voucher.Status) (int64, error) {
	return 0, nil
}

type fakeBeneficiaryStore struct{}

func (fakeBeneficiaryStore) FindByID(_ context.Context, _ uuid.UUID) (*beneficiary.Beneficiary, error) {
	return nil, nil
}

func (fakeBeneficiaryStore) FindByNationalID(_ context.Context, _ string) (*beneficiary.Beneficiary, error) {
	return nil, nil
}

type fakeWebhookStore struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*webhook.Event
}

func (s *fakeWebhookStore) Create(_ context.Context, event *webhook.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *event
	s.rows[event.ID] = &copied
	return nil
}

func (s *fakeWebhookStore) FindByID(_ context.Context, id uuid.UUID) (*webhook.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[id]
	if !ok {
		return nil, nil
	}
	copied := *row
	return &copied, nil
}

func (s *fakeWebhookStore) FindByVoucher(_ context.Context, _ uuid.UUID, _ shared.Filter) ([]webhook.Event, error) {
	return nil, nil
}

func (s *fakeWebhookStore) FindByStatus(_ context.Context, _ webhook.DeliveryStatus, _ shared.Filter) ([]webhook.Event, error) {
	return nil, nil
}

func (s *fakeWebhookStore) Save(ctx context.Context, event *webhook.Event) error {
	return s.Create(ctx, event)
}

type fakeResponseCache struct {
	mu        sync.Mutex
	responses map[string]*shared.CachedResponse
}

func (s *fakeResponseCache) GetCachedResponse(_ context.Context, key, namespace string) (*shared.CachedResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.responses[namespace+"/"+key], nil
}

func (s *fakeResponseCache) SetCachedResponse(_ context.Context, key, namespace string, statusCode int, body string, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	full := namespace + "/" + key
	if _, exists := s.responses[full]; exists {
		return nil
	}
	s.responses[full] = &shared.CachedResponse{StatusCode: statusCode, Body: body}
	return nil
}

func (s *fakeResponseCache) DeleteExpired(_ context.Context) (int64, error) { return 0, nil }

func newWebhookTestRouter(t *testing.T, vouchers *fakeVoucherStore) (*gin.Engine, *fakeWebhookStore) {
	t.Helper()
	rows := &fakeWebhookStore{rows: make(map[uuid.UUID]*webhook.Event)}
	monitor := status.NewService(status.Config{
		Vouchers:      vouchers,
		Events:        fakeEventStore{},
		Beneficiaries: fakeBeneficiaryStore{},
		Logger:        zap.NewNop(),
	})
	ingest := webhookapp.NewService(webhookapp.Config{
		Events:        rows,
		StatusMonitor: monitor,
		Idempotency:   &fakeResponseCache{responses: make(map[string]*shared.CachedResponse)},
		Logger:        zap.NewNop(),
	})
	h := NewWebhookHandler(ingest)

	r := gin.New()
	r.POST("/webhooks/buffr", h.HandleBuffrWebhook)
	r.POST("/webhooks/:id/retry", h.HandleRetry)
	return r, rows
}

func seededVoucherStore(t *testing.T) (*fakeVoucherStore, *voucher.Voucher) {
	t.Helper()
	v, err := voucher.NewVoucher(uuid.New(), decimal.NewFromInt(400), voucher.GrantTypeChild,
		time.Now().Add(30*24*time.Hour), "Erongo")
	require.NoError(t, err)
	store := &fakeVoucherStore{vouchers: map[uuid.UUID]*voucher.Voucher{v.ID: v}}
	return store, v
}

func buffrEventBody(voucherID uuid.UUID, eventType string) []byte {
	return []byte(`{"event":"` + eventType + `","data":{"voucher_id":"` + voucherID.String() + `"},"timestamp":"2025-06-01T12:00:00Z"}`)
}

func TestWebhookHandler_HandleBuffrWebhook(t *testing.T) {
	t.Run("acknowledges a delivery callback", func(t *testing.T) {
		store, v := seededVoucherStore(t)
		r, _ := newWebhookTestRouter(t, store)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/webhooks/buffr",
			bytes.NewReader(buffrEventBody(v.ID, "voucher.delivered")))
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

		var resp webhookapp.Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.True(t, resp.Success)

		stored, err := store.FindByID(context.Background(), v.ID)
		require.NoError(t, err)
		assert.Equal(t, voucher.StatusDelivered, stored.Status)
	})

	t.Run("replays the identical body for a duplicate idempotency key", func(t *testing.T) {
		store, v := seededVoucherStore(t)
		r, _ := newWebhookTestRouter(t, store)
		body := buffrEventBody(v.ID, "voucher.delivered")

		send := func() *httptest.ResponseRecorder {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/webhooks/buffr", bytes.NewReader(body))
			req.Header.Set("Idempotency-Key", "buffr-key-9")
			r.ServeHTTP(w, req)
			return w
		}

		first := send()
		second := send()

		assert.Equal(t, http.StatusOK, second.Code)
		assert.Equal(t, first.Body.String(), second.Body.String())
	})

	t.Run("maps an out-of-order conflict to 409", func(t *testing.T) {
		store, v := seededVoucherStore(t)
		store.setStatus(v.ID, voucher.StatusRedeemed)
		r, _ := newWebhookTestRouter(t, store)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/webhooks/buffr",
			bytes.NewReader(buffrEventBody(v.ID, "voucher.delivered")))
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("rejects malformed JSON with 400", func(t *testing.T) {
		store, _ := seededVoucherStore(t)
		r, _ := newWebhookTestRouter(t, store)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/webhooks/buffr",
			bytes.NewReader([]byte(`{"event":`)))
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestWebhookHandler_HandleRetry(t *testing.T) {
	t.Run("invalid event id", func(t *testing.T) {
		store, _ := seededVoucherStore(t)
		r, _ := newWebhookTestRouter(t, store)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/webhooks/not-a-uuid/retry", nil)
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown event id", func(t *testing.T) {
		store, _ := seededVoucherStore(t)
		r, _ := newWebhookTestRouter(t, store)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/webhooks/"+uuid.NewString()+"/retry", nil)
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("successful retry returns the delivered row", func(t *testing.T) {
		store, v := seededVoucherStore(t)
		r, rows := newWebhookTestRouter(t, store)

		// Seed a failed audit row whose payload now resolves
		row := webhook.NewEvent("voucher.delivered", &v.ID, string(buffrEventBody(v.ID, "voucher.delivered")),
			false, webhook.DeliveryStatusFailed, "voucher not found")
		require.NoError(t, rows.Create(context.Background(), row))

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/webhooks/"+row.ID.String()+"/retry", nil)
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		stored, err := store.FindByID(context.Background(), v.ID)
		require.NoError(t, err)
		assert.Equal(t, voucher.StatusDelivered, stored.Status)
	})
}
