package handler

import (
	"errors"

	dto "digimy/dto/http"
	"digimy/engine"
	"digimy/pkg/response"

	"github.com/gofiber/fiber/v2"
	"go.elastic.co/apm"
)

// GetTransactionStatus is the buyer-visible read API. It reflects the
// store's committed state only; reconciliation internals never leak here.
func GetTransactionStatus(c *fiber.Ctx) error {
	span, spanCtx := apm.StartSpan(c.Context(), "GetTransactionStatus", "handler")
	defer span.End()

	code := c.Params("code")
	if code == "" {
		return response.Response(c, fiber.StatusBadRequest, "Missing transaction code")
	}

	trx, err := repo.FindByCode(spanCtx, code)
	if err != nil {
		if errors.Is(err, engine.ErrNotFound) {
			return response.Response(c, fiber.StatusNotFound, "Transaction not found")
		}
		return response.Response(c, fiber.StatusInternalServerError, "Failed to get transaction")
	}

	resp := dto.TransactionStatusResponse{
		Code:             trx.Code,
		BuyerID:          trx.BuyerID,
		Amount:           trx.Amount,
		Currency:         trx.Currency,
		Status:           trx.Status,
		FailReason:       trx.FailReason,
		PaymentType:      trx.PaymentType,
		CreatedAt:        trx.CreatedAt,
		LastTransitionAt: trx.LastTransitionAt,
	}
	for _, item := range trx.Items {
		resp.Items = append(resp.Items, dto.TransactionItemStatus{
			Name:              item.Name,
			Price:             item.Price,
			FulfillmentStatus: item.FulfillmentStatus,
		})
	}

	return response.ResponseSuccess(c, fiber.StatusOK, resp)
}

// GetInvoice returns the structured receipt for a settled transaction.
func GetInvoice(c *fiber.Ctx) error {
	code := c.Params("code")

	trx, err := repo.FindByCode(c.Context(), code)
	if err != nil {
		if errors.Is(err, engine.ErrNotFound) {
			return response.Response(c, fiber.StatusNotFound, "Transaction not found")
		}
		return response.Response(c, fiber.StatusInternalServerError, "Failed to get transaction")
	}

	status, _ := engine.ParseStatus(trx.Status)
	if status != engine.StatusSettled && status != engine.StatusRefunded {
		return response.Response(c, fiber.StatusConflict, "Transaction is not settled")
	}

	invoice, err := fulfill.InvoiceByTransactionID(c.Context(), trx.ID)
	if err != nil {
		return response.Response(c, fiber.StatusNotFound, "Invoice not materialized yet")
	}

	return response.ResponseSuccess(c, fiber.StatusOK, fiber.Map{
		"invoice":     invoice,
		"transaction": trx,
	})
}

// GetInvoiceView renders the human-readable receipt page.
func GetInvoiceView(c *fiber.Ctx) error {
	code := c.Params("code")

	trx, err := repo.FindByCode(c.Context(), code)
	if err != nil {
		return response.Response(c, fiber.StatusNotFound, "Transaction not found")
	}

	status, _ := engine.ParseStatus(trx.Status)
	if status != engine.StatusSettled && status != engine.StatusRefunded {
		return response.Response(c, fiber.StatusConflict, "Transaction is not settled")
	}

	invoice, err := fulfill.InvoiceByTransactionID(c.Context(), trx.ID)
	if err != nil {
		return response.Response(c, fiber.StatusNotFound, "Invoice not materialized yet")
	}

	return c.Render("invoice", fiber.Map{
		"Invoice":     invoice,
		"Transaction": trx,
		"Items":       trx.Items,
	})
}
