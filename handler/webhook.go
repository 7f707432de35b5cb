package handler

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"digimy/config"
	dto "digimy/dto/http"
	"digimy/engine"
	"digimy/helper"
	"digimy/lib"
	"digimy/pkg/response"
	"digimy/repository"

	"github.com/gofiber/fiber/v2"
	"go.elastic.co/apm"
)

// webhookApplyTimeout bounds how long a callback may spend in the engine.
// The gateway retries on timeout, and retries are exactly what the
// idempotency guard absorbs, so a bounded ACK beats a slow one.
const webhookApplyTimeout = 8 * time.Second

// PaymentNotification terminates gateway payment callbacks.
func PaymentNotification(c *fiber.Ctx) error {
	return handleGatewayNotification(c, "payment")
}

// RecurringNotification terminates the alternate-channel notification
// variant (recurring / pay account callbacks). Same body shape, same rules.
func RecurringNotification(c *fiber.Ctx) error {
	return handleGatewayNotification(c, "recurring")
}

func handleGatewayNotification(c *fiber.Ctx, channel string) error {
	span, spanCtx := apm.StartSpan(c.Context(), "GatewayNotification", "handler")
	defer span.End()

	rawBody := c.Body()

	var payload dto.MidtransNotification
	if err := json.Unmarshal(rawBody, &payload); err != nil {
		log.Printf("Malformed %s notification: %v", channel, err)
		return response.Response(c, fiber.StatusBadRequest, "Invalid notification body")
	}
	if payload.OrderID == "" || payload.TransactionStatus == "" {
		return response.Response(c, fiber.StatusBadRequest, "Missing order_id or transaction_status")
	}

	serverKey := config.Config("MIDTRANS_SERVER_KEY", "")
	signatureOK := helper.VerifyMidtransSignature(
		payload.OrderID, payload.StatusCode, payload.GrossAmount, serverKey, payload.SignatureKey)

	// Raw event audit keeps every delivery, valid or not.
	repository.AuditGatewayEvent(repository.GatewayEvent{
		OrderID:     payload.OrderID,
		EventID:     payload.TransactionID,
		Source:      "webhook-" + channel,
		Status:      payload.TransactionStatus,
		SignatureOK: signatureOK,
		RawBody:     string(rawBody),
	})

	if !signatureOK {
		config.AuditWarn(config.AUDIT_WEBHOOK, "invalid signature", config.AuditEntry{
			GatewayOrderID: payload.OrderID,
			ObservedStatus: payload.TransactionStatus,
		})
		return response.Response(c, fiber.StatusUnauthorized, "Invalid signature")
	}

	observed, err := lib.MapGatewayStatus(payload.TransactionStatus, payload.FraudStatus)
	if err != nil {
		log.Printf("Unmapped gateway status on %s notification for %s: %v", channel, payload.OrderID, err)
		return response.Response(c, fiber.StatusBadRequest, "Unknown transaction status")
	}

	// Order references are the transaction code we issued at checkout.
	ctx, cancel := context.WithTimeout(spanCtx, webhookApplyTimeout)
	defer cancel()

	verdict, err := authority.Apply(ctx, engine.Input{
		Code:           payload.OrderID,
		Source:         engine.SourceWebhook,
		Observed:       observed,
		GatewayEventID: payload.TransactionID,
		OccurredAt:     lib.ParseGatewayTime(payload.TransactionTime),
		RawPayload:     rawBody,
	})
	if err != nil {
		// Transient store/lock trouble: 5xx so the gateway retries, the
		// idempotency guard makes the retry safe.
		log.Printf("Engine error on %s notification for %s: %v", channel, payload.OrderID, err)
		return response.Response(c, fiber.StatusInternalServerError, "Temporary processing error")
	}

	config.AuditInfo(config.AUDIT_WEBHOOK, "notification decision", config.AuditEntry{
		TransactionCode: verdict.Code,
		GatewayOrderID:  payload.OrderID,
		ObservedStatus:  string(observed),
		ResultStatus:    string(verdict.To),
		Decision:        string(verdict.Decision),
		Reason:          verdict.Reason,
	})

	if verdict.Decision == engine.DecisionRejected && verdict.Reason == engine.ReasonNotFound {
		return response.ResponseReason(c, fiber.StatusNotFound, "Unknown transaction", verdict.Reason)
	}

	// Duplicates and stale reports are fine from the gateway's point of
	// view: a 200 stops the retry loop.
	return response.ResponseSuccess(c, fiber.StatusOK, dto.VerdictResponse{
		TransactionCode: verdict.Code,
		Decision:        string(verdict.Decision),
		Reason:          verdict.Reason,
		FromStatus:      string(verdict.From),
		ToStatus:        string(verdict.To),
	})
}
