package router

import (
	"digimy/handler"
	"digimy/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.elastic.co/apm/module/apmfiber"
)

// SetupRoutes setup router api
func SetupRoutes(app *fiber.App) {
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api", logger.New())
	api.Use(apmfiber.Middleware())
	api.Use(middleware.TrackMetrics())

	api.Get("/", handler.Hello)

	// Gateway callbacks; signature-checked in the handler, never behind JWT
	api.Post("/webhook/midtrans", handler.PaymentNotification)
	api.Post("/webhook/midtrans/recurring", handler.RecurringNotification)

	// Checkout / buyer-facing reads
	api.Post("/checkout", handler.Checkout)
	api.Get("/transaction/:code", handler.GetTransactionStatus)
	api.Get("/invoice/:code", handler.GetInvoice)
	api.Get("/invoice/:code/view", handler.GetInvoiceView)

	// Operator surface
	admin := api.Group("/admin")
	admin.Post("/login", handler.Login)

	reconcile := admin.Group("/reconcile", middleware.Protected(), middleware.OperatorOnly())
	reconcile.Post("/:code/recheck", handler.Recheck)
	reconcile.Post("/:code/force", handler.ForceStatus)
	reconcile.Get("/pending", handler.ListPending)
	reconcile.Get("/:code/log", handler.TransitionLog)
	reconcile.Post("/sweep", handler.RunSweep)

	admin.Get("/report/export", middleware.Protected(), middleware.OperatorOnly(), handler.ExportReport)
}
