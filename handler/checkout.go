package handler

import (
	"fmt"
	"log"
	"strings"
	"time"

	dto "digimy/dto/http"
	"digimy/dto/model"
	"digimy/lib"
	"digimy/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// Checkout is the order-creation boundary: it persists a new transaction in
// initiated with its items and asks the gateway for a Snap token. From here
// on the reconciliation engine owns the status.
func Checkout(c *fiber.Ctx) error {
	var req dto.CheckoutRequest
	if err := c.BodyParser(&req); err != nil {
		return response.Response(c, fiber.StatusBadRequest, "Invalid request body: "+err.Error())
	}
	if err := validate.Struct(req); err != nil {
		return response.Response(c, fiber.StatusBadRequest, "Validation failed: "+err.Error())
	}

	uniqueID, err := uuid.NewV7()
	if err != nil {
		return response.Response(c, fiber.StatusInternalServerError, "Failed to generate transaction id")
	}

	code := fmt.Sprintf("TRX-%s-%s", time.Now().Format("20060102"),
		strings.ToUpper(uniqueID.String()[24:]))

	var amount uint
	items := make([]model.TransactionItem, 0, len(req.Items))
	snapItems := make([]lib.SnapItem, 0, len(req.Items))
	for _, item := range req.Items {
		amount += item.Price
		items = append(items, model.TransactionItem{
			ProductID: item.ProductID,
			Name:      item.Name,
			Price:     item.Price,
		})
		snapItems = append(snapItems, lib.SnapItem{
			ID:       item.ProductID,
			Name:     item.Name,
			Price:    item.Price,
			Quantity: 1,
		})
	}

	trx := model.Transactions{
		ID:             uniqueID.String(),
		Code:           code,
		GatewayOrderID: code,
		BuyerID:        req.BuyerID,
		Amount:         amount,
		Currency:       strings.ToUpper(req.Currency),
		Items:          items,
	}

	if err := repo.CreateInitiated(c.Context(), &trx); err != nil {
		return response.Response(c, fiber.StatusInternalServerError, "Failed to create transaction: "+err.Error())
	}

	resp := dto.CheckoutResponse{
		Code:           trx.Code,
		GatewayOrderID: trx.GatewayOrderID,
		Amount:         trx.Amount,
		Currency:       trx.Currency,
		Status:         trx.Status,
	}

	snapResp, err := lib.RequestSnapToken(c.Context(), trx.GatewayOrderID, trx.Amount, snapItems)
	if err != nil {
		// The transaction exists either way; the poller will reconcile it
		// once the buyer retries checkout or the order expires.
		log.Printf("Snap token request failed for %s: %v", trx.Code, err)
		return response.ResponseSuccess(c, fiber.StatusCreated, resp)
	}

	if err := repo.SaveSnapToken(c.Context(), trx.ID, snapResp.Token); err != nil {
		log.Printf("Failed to persist snap token for %s: %v", trx.Code, err)
	}
	resp.SnapToken = snapResp.Token
	resp.RedirectURL = snapResp.RedirectURL

	return response.ResponseSuccess(c, fiber.StatusCreated, resp)
}
