package handler

import (
	"errors"
	"fmt"
	"log"
	"time"

	"digimy/config"
	dto "digimy/dto/http"
	"digimy/engine"
	"digimy/pkg/response"
	"digimy/scheduler"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.elastic.co/apm"
)

// Recheck performs an immediate single-transaction gateway lookup. It goes
// through the authority with source=poll: an operator recheck has no more
// authority over the state machine than the sweep does.
func Recheck(c *fiber.Ctx) error {
	span, spanCtx := apm.StartSpan(c.Context(), "Recheck", "handler")
	defer span.End()

	code := c.Params("code")
	trx, err := repo.FindByCode(spanCtx, code)
	if err != nil {
		if errors.Is(err, engine.ErrNotFound) {
			return response.Response(c, fiber.StatusNotFound, "Transaction not found")
		}
		return response.Response(c, fiber.StatusInternalServerError, "Failed to get transaction")
	}

	verdict, err := sweeper.CheckTransaction(spanCtx, trx)
	if err != nil {
		return response.Response(c, fiber.StatusBadGateway, "Gateway recheck failed: "+err.Error())
	}

	return response.ResponseSuccess(c, fiber.StatusOK, dto.VerdictResponse{
		TransactionCode: code,
		Decision:        string(verdict.Decision),
		Reason:          verdict.Reason,
		FromStatus:      string(verdict.From),
		ToStatus:        string(verdict.To),
	})
}

// ForceStatus applies an operator override. It deliberately bypasses the
// rank rules; the reason string is mandatory and lands in the transition
// record for audit.
func ForceStatus(c *fiber.Ctx) error {
	span, spanCtx := apm.StartSpan(c.Context(), "ForceStatus", "handler")
	defer span.End()

	code := c.Params("code")

	var req dto.ForceStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return response.Response(c, fiber.StatusBadRequest, "Invalid request body: "+err.Error())
	}
	if err := validate.Struct(req); err != nil {
		return response.Response(c, fiber.StatusBadRequest, "Validation failed: "+err.Error())
	}

	target, err := engine.ParseStatus(req.Status)
	if err != nil {
		return response.Response(c, fiber.StatusBadRequest, err.Error())
	}

	operator, _ := c.Locals("operator").(string)
	verdict, err := authority.Apply(spanCtx, engine.Input{
		Code:           code,
		Source:         engine.SourceManual,
		Observed:       target,
		GatewayEventID: "manual-" + uuid.NewString(),
		OccurredAt:     time.Now(),
		Override:       true,
		OverrideReason: fmt.Sprintf("%s (operator: %s)", req.Reason, operator),
	})
	if err != nil {
		return response.Response(c, fiber.StatusInternalServerError, "Failed to apply override")
	}
	if verdict.Decision == engine.DecisionRejected && verdict.Reason == engine.ReasonNotFound {
		return response.ResponseReason(c, fiber.StatusNotFound, "Transaction not found", verdict.Reason)
	}

	log.Printf("Manual override on %s by %s: %s -> %s (%s)", code, operator, verdict.From, verdict.To, req.Reason)
	config.AuditInfo(config.AUDIT_MANUAL, "forced status", config.AuditEntry{
		TransactionCode: code,
		ObservedStatus:  string(target),
		ResultStatus:    string(verdict.To),
		Decision:        string(verdict.Decision),
		Override:        true,
		Data:            map[string]interface{}{"operator": operator, "reason": req.Reason},
	})

	return response.ResponseSuccess(c, fiber.StatusOK, dto.VerdictResponse{
		TransactionCode: code,
		Decision:        string(verdict.Decision),
		FromStatus:      string(verdict.From),
		ToStatus:        string(verdict.To),
		Override:        true,
	})
}

// ListPending is the stuck-transaction diagnostic: everything non-terminal
// past the staleness threshold, oldest first.
func ListPending(c *fiber.Ctx) error {
	threshold := config.ConfigDuration("SWEEP_STALE_THRESHOLD", 5*time.Minute)
	limit := c.QueryInt("limit", 100)

	stale, err := repo.ListStale(c.Context(), threshold, limit)
	if err != nil {
		return response.Response(c, fiber.StatusInternalServerError, "Failed to list pending transactions")
	}

	now := time.Now()
	out := make([]dto.PendingTransactionResponse, 0, len(stale))
	for _, trx := range stale {
		out = append(out, dto.PendingTransactionResponse{
			Code:             trx.Code,
			GatewayOrderID:   trx.GatewayOrderID,
			Status:           trx.Status,
			Amount:           trx.Amount,
			StuckFor:         now.Sub(trx.LastTransitionAt).Round(time.Second).String(),
			LastTransitionAt: trx.LastTransitionAt,
		})
	}

	return response.ResponseSuccess(c, fiber.StatusOK, out)
}

// RunSweep triggers the pending sweep outside its schedule. The sweeper
// refuses to overlap itself, so hammering this endpoint is harmless.
func RunSweep(c *fiber.Ctx) error {
	go func() {
		if err := sweeper.Sweep(); err != nil {
			if errors.Is(err, scheduler.ErrSweepRunning) {
				log.Println("Manual sweep skipped: already running")
				return
			}
			log.Printf("Manual sweep failed: %v", err)
		}
	}()

	return response.ResponseSuccess(c, fiber.StatusAccepted, fiber.Map{
		"message": "sweep triggered",
	})
}

// TransitionLog returns a transaction's full decision history plus a replay
// of the accepted records, so an operator can confirm the stored status
// matches what the log derives.
func TransitionLog(c *fiber.Ctx) error {
	code := c.Params("code")
	trx, err := repo.FindByCode(c.Context(), code)
	if err != nil {
		if errors.Is(err, engine.ErrNotFound) {
			return response.Response(c, fiber.StatusNotFound, "Transaction not found")
		}
		return response.Response(c, fiber.StatusInternalServerError, "Failed to get transaction")
	}

	records, err := repo.Transitions(c.Context(), trx.ID)
	if err != nil {
		return response.Response(c, fiber.StatusInternalServerError, "Failed to load transition records")
	}

	replayed := engine.Replay(records)
	return response.ResponseSuccess(c, fiber.StatusOK, fiber.Map{
		"code":            trx.Code,
		"status":          trx.Status,
		"replayed_status": string(replayed),
		"consistent":      trx.Status == string(replayed),
		"transitions":     records,
	})
}
