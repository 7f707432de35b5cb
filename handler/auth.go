package handler

import (
	"time"

	"digimy/config"
	dto "digimy/dto/http"
	"digimy/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// Login issues an operator JWT. Operator credentials come from the
// environment; this service has no user management of its own.
func Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return response.Response(c, fiber.StatusBadRequest, "Invalid request body: "+err.Error())
	}
	if err := validate.Struct(req); err != nil {
		return response.Response(c, fiber.StatusBadRequest, "Validation failed: "+err.Error())
	}

	operatorEmail := config.Config("OPERATOR_EMAIL", "")
	operatorHash := config.Config("OPERATOR_PASSWORD_HASH", "")
	if operatorEmail == "" || operatorHash == "" {
		return response.Response(c, fiber.StatusServiceUnavailable, "Operator login not configured")
	}

	if req.Email != operatorEmail {
		return response.Response(c, fiber.StatusUnauthorized, "Invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(operatorHash), []byte(req.Password)); err != nil {
		return response.Response(c, fiber.StatusUnauthorized, "Invalid credentials")
	}

	claims := jwt.MapClaims{
		"sub":  req.Email,
		"role": "operator",
		"exp":  time.Now().Add(12 * time.Hour).Unix(),
		"iat":  time.Now().Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString([]byte(config.Config("JWT_SECRET", "digimy-dev-secret")))
	if err != nil {
		return response.Response(c, fiber.StatusInternalServerError, "Failed to sign token")
	}

	return response.ResponseSuccess(c, fiber.StatusOK, fiber.Map{
		"token": signed,
	})
}
