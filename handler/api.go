package handler

import (
	"digimy/engine"
	"digimy/repository"
	"digimy/scheduler"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

var (
	authority *engine.Authority
	repo      *repository.TransactionRepo
	fulfill   *repository.FulfillmentRepo
	sweeper   *scheduler.Sweeper
	validate  = validator.New()
)

// Setup wires the handler package's collaborators. Called once from main
// before the routes are registered.
func Setup(a *engine.Authority, r *repository.TransactionRepo, f *repository.FulfillmentRepo, s *scheduler.Sweeper) {
	authority = a
	repo = r
	fulfill = f
	sweeper = s
}

func Hello(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"service": "digimy-payments",
		"status":  "ok",
	})
}
