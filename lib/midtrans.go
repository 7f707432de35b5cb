package lib

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"digimy/config"
	"digimy/engine"
)

// httpClient is shared by every gateway call. Gateway I/O always happens
// before any transaction lock is taken, never inside it.
var httpClient = &http.Client{Timeout: 10 * time.Second}

// MidtransStatusResponse is the gateway's status-lookup / notification body.
type MidtransStatusResponse struct {
	OrderID           string `json:"order_id"`
	TransactionID     string `json:"transaction_id"`
	TransactionStatus string `json:"transaction_status"`
	TransactionTime   string `json:"transaction_time"`
	SettlementTime    string `json:"settlement_time,omitempty"`
	StatusCode        string `json:"status_code"`
	StatusMessage     string `json:"status_message"`
	GrossAmount       string `json:"gross_amount"`
	PaymentType       string `json:"payment_type"`
	FraudStatus       string `json:"fraud_status,omitempty"`
	SignatureKey      string `json:"signature_key,omitempty"`
}

type SnapRequest struct {
	TransactionDetails struct {
		OrderID     string `json:"order_id"`
		GrossAmount uint   `json:"gross_amount"`
	} `json:"transaction_details"`
	ItemDetails []SnapItem `json:"item_details,omitempty"`
}

type SnapItem struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Price    uint   `json:"price"`
	Quantity int    `json:"quantity"`
}

type SnapResponse struct {
	Token         string   `json:"token"`
	RedirectURL   string   `json:"redirect_url"`
	ErrorMessages []string `json:"error_messages,omitempty"`
}

func serverKey() string {
	return config.Config("MIDTRANS_SERVER_KEY", "")
}

func authHeader() string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(serverKey()+":"))
}

// CheckTransactionStatus queries the gateway's status-lookup endpoint for
// one order reference. Used by the poller and manual recheck.
func CheckTransactionStatus(ctx context.Context, gatewayOrderID string) (*MidtransStatusResponse, error) {
	baseURL := config.Config("MIDTRANS_BASE_URL", "https://api.midtrans.com")
	url := fmt.Sprintf("%s/v2/%s/status", baseURL, gatewayOrderID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", authHeader())

	start := time.Now()
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error sending status request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response body: %w", err)
	}

	config.AuditInfo(config.AUDIT_GATEWAY, "status lookup", config.AuditEntry{
		GatewayOrderID: gatewayOrderID,
		Data: map[string]interface{}{
			"http_status": resp.StatusCode,
			"duration_ms": float64(time.Since(start).Nanoseconds()) / 1e6,
		},
	})

	var statusResp MidtransStatusResponse
	if err := json.Unmarshal(body, &statusResp); err != nil {
		return nil, fmt.Errorf("error decoding status response: %w", err)
	}

	if statusResp.StatusCode == "404" {
		return nil, fmt.Errorf("gateway does not know order %s: %s", gatewayOrderID, statusResp.StatusMessage)
	}

	return &statusResp, nil
}

// RequestSnapToken asks the gateway for a checkout token for a new order.
func RequestSnapToken(ctx context.Context, gatewayOrderID string, amount uint, items []SnapItem) (*SnapResponse, error) {
	snapURL := config.Config("MIDTRANS_SNAP_URL", "https://app.midtrans.com/snap/v1/transactions")

	snapReq := SnapRequest{ItemDetails: items}
	snapReq.TransactionDetails.OrderID = gatewayOrderID
	snapReq.TransactionDetails.GrossAmount = amount

	jsonBody, err := json.Marshal(snapReq)
	if err != nil {
		return nil, fmt.Errorf("error marshalling snap request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, snapURL, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", authHeader())

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error sending snap request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading snap response: %w", err)
	}

	var snapResp SnapResponse
	if err := json.Unmarshal(body, &snapResp); err != nil {
		return nil, fmt.Errorf("error decoding snap response: %w", err)
	}
	if len(snapResp.ErrorMessages) > 0 {
		return &snapResp, fmt.Errorf("error response from gateway: %v", snapResp.ErrorMessages)
	}
	if snapResp.Token == "" {
		return &snapResp, fmt.Errorf("gateway returned no snap token for %s", gatewayOrderID)
	}

	return &snapResp, nil
}

// MapGatewayStatus translates the gateway's status vocabulary into the
// engine's closed status set.
func MapGatewayStatus(transactionStatus, fraudStatus string) (engine.Status, error) {
	switch transactionStatus {
	case "capture":
		if fraudStatus == "challenge" {
			return engine.StatusPending, nil
		}
		return engine.StatusSettled, nil
	case "settlement":
		return engine.StatusSettled, nil
	case "pending":
		return engine.StatusPending, nil
	case "deny", "cancel", "failure":
		return engine.StatusFailed, nil
	case "expire":
		return engine.StatusExpired, nil
	case "refund", "partial_refund", "chargeback", "partial_chargeback":
		return engine.StatusRefunded, nil
	default:
		return "", fmt.Errorf("unknown gateway transaction status %q", transactionStatus)
	}
}

// ParseGatewayTime parses the gateway's local-time timestamp format.
func ParseGatewayTime(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	t, err := time.Parse("2006-01-02 15:04:05", raw)
	if err != nil {
		return time.Time{}
	}
	return t
}
