package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	dto "digimy/dto/http"
	"digimy/dto/model"
	"digimy/engine"
	"digimy/helper"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testServerKey = "test-server-key"

// stubStore keeps transactions in memory so webhook handling can run without
// a database.
type stubStore struct {
	mu   sync.Mutex
	trx  map[string]*model.Transactions
	logs map[string][]model.TransitionRecord
}

func newStubStore() *stubStore {
	return &stubStore{
		trx:  make(map[string]*model.Transactions),
		logs: make(map[string][]model.TransitionRecord),
	}
}

func (s *stubStore) add(code string, status engine.Status) {
	s.trx[code] = &model.Transactions{
		ID:     "id-" + code,
		Code:   code,
		Status: string(status),
	}
}

func (s *stubStore) FindByCode(ctx context.Context, code string) (*model.Transactions, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.trx[code]
	if !ok {
		return nil, engine.ErrNotFound
	}
	return t, nil
}

func (s *stubStore) Locked(ctx context.Context, code string, fn func(tx engine.LockedTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.trx[code]
	if !ok {
		return engine.ErrNotFound
	}
	return fn(&stubTx{store: s, trx: t})
}

type stubTx struct {
	store *stubStore
	trx   *model.Transactions
}

func (m *stubTx) Transaction() *model.Transactions { return m.trx }

func (m *stubTx) HasAcceptedFingerprint(fingerprint string) (bool, error) {
	for _, rec := range m.store.logs[m.trx.Code] {
		if rec.Fingerprint == fingerprint && rec.Decision == string(engine.DecisionAccepted) {
			return true, nil
		}
	}
	return false, nil
}

func (m *stubTx) NextSeq() (uint64, error) {
	return uint64(len(m.store.logs[m.trx.Code]) + 1), nil
}

func (m *stubTx) SetStatus(status engine.Status, failReason string, at time.Time) error {
	m.trx.Status = string(status)
	m.trx.FailReason = failReason
	m.trx.LastTransitionAt = at
	return nil
}

func (m *stubTx) AppendTransition(rec *model.TransitionRecord) error {
	m.store.logs[m.trx.Code] = append(m.store.logs[m.trx.Code], *rec)
	return nil
}

func newWebhookApp(t *testing.T, store *stubStore) *fiber.App {
	t.Setenv("MIDTRANS_SERVER_KEY", testServerKey)

	Setup(engine.NewAuthority(store, nil), nil, nil, nil)

	app := fiber.New()
	app.Post("/api/webhook/midtrans", PaymentNotification)
	return app
}

func notificationBody(orderID, status, eventID string) []byte {
	payload := dto.MidtransNotification{
		OrderID:           orderID,
		TransactionID:     eventID,
		TransactionStatus: status,
		TransactionTime:   "2024-03-05 14:30:00",
		StatusCode:        "200",
		GrossAmount:       "150000.00",
		PaymentType:       "qris",
		SignatureKey:      helper.MidtransSignature(orderID, "200", "150000.00", testServerKey),
	}
	body, _ := json.Marshal(payload)
	return body
}

func postNotification(t *testing.T, app *fiber.App, body []byte) (int, map[string]interface{}) {
	req := httptest.NewRequest(fiber.MethodPost, "/api/webhook/midtrans", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var decoded map[string]interface{}
	_ = json.Unmarshal(raw, &decoded)
	return resp.StatusCode, decoded
}

func TestPaymentNotificationAccepted(t *testing.T) {
	store := newStubStore()
	store.add("TRX-1", engine.StatusPending)
	app := newWebhookApp(t, store)

	status, body := postNotification(t, app, notificationBody("TRX-1", "settlement", "ev-1"))

	assert.Equal(t, fiber.StatusOK, status)
	data := body["data"].(map[string]interface{})
	assert.Equal(t, string(engine.DecisionAccepted), data["decision"])
	assert.Equal(t, string(engine.StatusSettled), data["to_status"])
	assert.Equal(t, string(engine.StatusSettled), store.trx["TRX-1"].Status)
}

func TestPaymentNotificationDuplicateStillOK(t *testing.T) {
	store := newStubStore()
	store.add("TRX-1", engine.StatusPending)
	app := newWebhookApp(t, store)

	body := notificationBody("TRX-1", "settlement", "ev-1")

	status, _ := postNotification(t, app, body)
	require.Equal(t, fiber.StatusOK, status)

	// Gateway retry of the same event must get a 200 to stop the retry loop.
	status, decoded := postNotification(t, app, body)
	assert.Equal(t, fiber.StatusOK, status)
	data := decoded["data"].(map[string]interface{})
	assert.Equal(t, string(engine.DecisionSuperseded), data["decision"])
	assert.Equal(t, engine.ReasonDuplicateEvent, data["reason"])
}

func TestPaymentNotificationStaleStillOK(t *testing.T) {
	store := newStubStore()
	store.add("TRX-1", engine.StatusSettled)
	app := newWebhookApp(t, store)

	status, decoded := postNotification(t, app, notificationBody("TRX-1", "pending", "ev-2"))

	assert.Equal(t, fiber.StatusOK, status)
	data := decoded["data"].(map[string]interface{})
	assert.Equal(t, string(engine.DecisionRejected), data["decision"])
	assert.Equal(t, string(engine.StatusSettled), store.trx["TRX-1"].Status)
}

func TestPaymentNotificationBadSignature(t *testing.T) {
	store := newStubStore()
	store.add("TRX-1", engine.StatusPending)
	app := newWebhookApp(t, store)

	payload := dto.MidtransNotification{
		OrderID:           "TRX-1",
		TransactionID:     "ev-1",
		TransactionStatus: "settlement",
		StatusCode:        "200",
		GrossAmount:       "150000.00",
		SignatureKey:      "deadbeef",
	}
	body, _ := json.Marshal(payload)

	status, _ := postNotification(t, app, body)
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, string(engine.StatusPending), store.trx["TRX-1"].Status)
}

func TestPaymentNotificationUnknownOrder(t *testing.T) {
	app := newWebhookApp(t, newStubStore())

	status, decoded := postNotification(t, app, notificationBody("TRX-missing", "settlement", "ev-1"))
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, engine.ReasonNotFound, decoded["reason"])
}

func TestPaymentNotificationMalformedBody(t *testing.T) {
	app := newWebhookApp(t, newStubStore())

	status, _ := postNotification(t, app, []byte("{not-json"))
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, _ = postNotification(t, app, []byte(`{"transaction_status":"settlement"}`))
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestPaymentNotificationUnknownGatewayStatus(t *testing.T) {
	store := newStubStore()
	store.add("TRX-1", engine.StatusPending)
	app := newWebhookApp(t, store)

	payload := dto.MidtransNotification{
		OrderID:           "TRX-1",
		TransactionID:     "ev-1",
		TransactionStatus: "authorize",
		StatusCode:        "200",
		GrossAmount:       "150000.00",
		SignatureKey:      helper.MidtransSignature("TRX-1", "200", "150000.00", testServerKey),
	}
	body, _ := json.Marshal(payload)

	status, _ := postNotification(t, app, body)
	assert.Equal(t, fiber.StatusBadRequest, status)
}
