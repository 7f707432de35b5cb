package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"digimy/config"
	"digimy/helper"
)

// StatusNotification is the message posted to the notification-dispatch
// collaborator on every accepted transition. Best effort only.
type StatusNotification struct {
	TransactionCode string `json:"transaction_code"`
	BuyerID         string `json:"buyer_id"`
	FromStatus      string `json:"from_status"`
	ToStatus        string `json:"to_status"`
	Source          string `json:"source"`
	Override        bool   `json:"override,omitempty"`
	Amount          uint   `json:"amount"`
	Currency        string `json:"currency"`
	OccurredAt      string `json:"occurred_at"`
}

var notifyClient = &http.Client{Timeout: 5 * time.Second}

// SendStatusNotification posts the notification, signed with the shared
// collaborator secret. Errors are returned for logging but never retried
// here; the notification channel is explicitly fire-and-forget.
func SendStatusNotification(ctx context.Context, n StatusNotification) error {
	notifyURL := config.Config("NOTIFY_URL", "")
	if notifyURL == "" {
		return nil
	}

	n.OccurredAt = time.Now().Format(time.RFC3339)
	jsonData, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	bodysign, err := helper.GenerateBodySign(string(jsonData), config.Config("NOTIFY_SECRET", ""))
	if err != nil {
		return fmt.Errorf("failed to sign notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, notifyURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to build notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Body-Sign", bodysign)

	resp, err := notifyClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("notification rejected with status: %s", resp.Status)
	}
	return nil
}

// NotifyFulfillment tells the catalog/fulfillment collaborator about a
// fulfillment-relevant transition (release reserved stock, unlock delivery).
func NotifyFulfillment(ctx context.Context, transactionCode, action string) error {
	fulfillmentURL := config.Config("FULFILLMENT_URL", "")
	if fulfillmentURL == "" {
		return nil
	}

	payload := map[string]string{
		"transaction_code": transactionCode,
		"action":           action,
	}
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal fulfillment call: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fulfillmentURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to build fulfillment request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := notifyClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call fulfillment service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("fulfillment call rejected with status: %s", resp.Status)
	}
	return nil
}
