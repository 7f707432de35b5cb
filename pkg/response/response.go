package response

import "github.com/gofiber/fiber/v2"

func Response(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"error": message,
	})
}

// ResponseReason is used for reconciliation rejections where the caller
// needs the machine-readable reason alongside the message.
func ResponseReason(c *fiber.Ctx, status int, message, reason string) error {
	return c.Status(status).JSON(fiber.Map{
		"error":  message,
		"reason": reason,
	})
}

func ResponseSuccess(c *fiber.Ctx, status int, data interface{}) error {
	if data != nil {
		return c.Status(status).JSON(fiber.Map{
			"success": true,
			"data":    data,
		})
	}

	return c.Status(status).JSON(fiber.Map{
		"success": true,
	})
}
