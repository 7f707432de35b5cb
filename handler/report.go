package handler

import (
	"fmt"
	"time"

	"digimy/pkg/response"
	"digimy/service"

	"github.com/gofiber/fiber/v2"
)

// ExportReport streams an xlsx transactions report for a date range.
func ExportReport(c *fiber.Ctx) error {
	fromStr := c.Query("from")
	toStr := c.Query("to")
	if fromStr == "" || toStr == "" {
		return response.Response(c, fiber.StatusBadRequest, "Missing from/to query parameters (YYYY-MM-DD)")
	}

	from, err := time.Parse("2006-01-02", fromStr)
	if err != nil {
		return response.Response(c, fiber.StatusBadRequest, "Invalid from date: "+err.Error())
	}
	to, err := time.Parse("2006-01-02", toStr)
	if err != nil {
		return response.Response(c, fiber.StatusBadRequest, "Invalid to date: "+err.Error())
	}
	// Include the whole "to" day
	to = to.AddDate(0, 0, 1)

	transactions, err := repo.ListByDateRange(c.Context(), from, to)
	if err != nil {
		return response.Response(c, fiber.StatusInternalServerError, "Failed to fetch transactions")
	}

	data, err := service.GenerateExcelReport(transactions)
	if err != nil {
		return response.Response(c, fiber.StatusInternalServerError, "Failed to generate report")
	}

	fileName := fmt.Sprintf("transactions-%s-%s.xlsx", fromStr, toStr)
	c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+fileName+`"`)
	return c.Send(data)
}
