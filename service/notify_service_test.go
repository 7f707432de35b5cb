package service

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"digimy/helper"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendStatusNotification(t *testing.T) {
	var gotSign string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSign = r.Header.Get("X-Body-Sign")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	t.Setenv("NOTIFY_URL", srv.URL)
	t.Setenv("NOTIFY_SECRET", "collab-secret")

	err := SendStatusNotification(context.Background(), StatusNotification{
		TransactionCode: "TRX-1",
		BuyerID:         "buyer-1",
		FromStatus:      "pending",
		ToStatus:        "settled",
		Source:          "webhook",
		Amount:          150000,
		Currency:        "IDR",
	})
	require.NoError(t, err)

	// Receiver must be able to re-derive the signature from the raw body.
	wantSign, err := helper.GenerateBodySign(string(gotBody), "collab-secret")
	require.NoError(t, err)
	assert.Equal(t, wantSign, gotSign)

	var decoded StatusNotification
	require.NoError(t, json.Unmarshal(gotBody, &decoded))
	assert.Equal(t, "TRX-1", decoded.TransactionCode)
	assert.Equal(t, "settled", decoded.ToStatus)
	assert.NotEmpty(t, decoded.OccurredAt)
}

func TestSendStatusNotificationRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	t.Setenv("NOTIFY_URL", srv.URL)

	err := SendStatusNotification(context.Background(), StatusNotification{TransactionCode: "TRX-1"})
	assert.Error(t, err)
}

func TestSendStatusNotificationNoopWithoutURL(t *testing.T) {
	t.Setenv("NOTIFY_URL", "")

	err := SendStatusNotification(context.Background(), StatusNotification{TransactionCode: "TRX-1"})
	assert.NoError(t, err)
}

func TestNotifyFulfillment(t *testing.T) {
	var gotAction string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]string
		_ = json.NewDecoder(r.Body).Decode(&payload)
		gotAction = payload["action"]
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	t.Setenv("FULFILLMENT_URL", srv.URL)

	err := NotifyFulfillment(context.Background(), "TRX-1", "unlock_delivery")
	require.NoError(t, err)
	assert.Equal(t, "unlock_delivery", gotAction)
}
