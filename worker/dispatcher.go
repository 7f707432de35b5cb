package worker

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"digimy/config"
	"digimy/dto/model"
	"digimy/engine"
	"digimy/service"

	"github.com/go-redis/redis/v8"
)

// transactionStore is the dispatcher's read view of the transaction store.
type transactionStore interface {
	FindByCode(ctx context.Context, code string) (*model.Transactions, error)
}

// fulfillmentStore holds the dispatcher's idempotent writes.
type fulfillmentStore interface {
	DeliverItems(ctx context.Context, transactionID string) (int64, error)
	RefundItems(ctx context.Context, transactionID string) (int64, error)
	CreateInvoice(ctx context.Context, trx *model.Transactions) (*model.Invoice, error)
	CreatePayoutAdjustment(ctx context.Context, trx *model.Transactions, note string) error
}

// Dispatcher consumes accepted verdicts and performs the downstream effects:
// delivery unlock and invoice on settled, refund bookkeeping on refunded,
// reservation release on failed/expired, buyer notification on everything.
// The authority guarantees at most one accepted transition per event; the
// dispatcher guarantees its own effects are safe to re-run after a crash.
type Dispatcher struct {
	queue   chan engine.Verdict
	repo    transactionStore
	fulfill fulfillmentStore
	rdb     *redis.Client
	wg      sync.WaitGroup
	stopped chan bool
}

func NewDispatcher(repo transactionStore, fulfill fulfillmentStore, rdb *redis.Client) *Dispatcher {
	return &Dispatcher{
		queue:   make(chan engine.Verdict, 100),
		repo:    repo,
		fulfill: fulfill,
		rdb:     rdb,
		stopped: make(chan bool),
	}
}

// Dispatch enqueues a verdict without blocking the authority. If the queue
// is full the effect runs on its own goroutine instead of being dropped.
func (d *Dispatcher) Dispatch(v engine.Verdict) {
	if !v.Accepted() {
		return
	}
	select {
	case d.queue <- v:
	default:
		log.Printf("Dispatcher queue full, processing %s -> %s for %s inline", v.From, v.To, v.Code)
		go d.processWithRetry(v)
	}
}

// Run starts the consumer loop. Call once from main.
func (d *Dispatcher) Run() {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for {
			select {
			case v := <-d.queue:
				d.processWithRetry(v)
			case <-d.stopped:
				for len(d.queue) > 0 {
					d.processWithRetry(<-d.queue)
				}
				return
			}
		}
	}()
}

func (d *Dispatcher) Stop() {
	close(d.stopped)
	d.wg.Wait()
}

func (d *Dispatcher) processWithRetry(v engine.Verdict) {
	var err error
	for attempt := 1; attempt <= 3; attempt++ {
		err = d.process(v)
		if err == nil {
			return
		}
		log.Printf("Failed to run side effects for %s (%s -> %s), attempt %d: %v", v.Code, v.From, v.To, attempt, err)
		time.Sleep(time.Duration(attempt) * 2 * time.Second)
	}

	config.AuditError(config.AUDIT_DISPATCHER, "side effects exhausted retries", config.AuditEntry{
		TransactionCode: v.Code,
		ResultStatus:    string(v.To),
		Error:           err.Error(),
	})
}

func (d *Dispatcher) process(v engine.Verdict) error {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	// Fast skip when this acceptance was already fully processed. The
	// marker is written after the effects, so a crash mid-effect retries;
	// each effect below is individually idempotent.
	markerKey := fmt.Sprintf("effect:%s:%s", v.Code, v.To)
	if d.alreadyDone(ctx, markerKey) {
		return nil
	}

	trx, err := d.repo.FindByCode(ctx, v.Code)
	if err != nil {
		return fmt.Errorf("load transaction: %w", err)
	}

	switch v.To {
	case engine.StatusSettled:
		if err := d.onSettled(ctx, trx); err != nil {
			return err
		}
	case engine.StatusRefunded:
		if err := d.onRefunded(ctx, trx); err != nil {
			return err
		}
	case engine.StatusFailed, engine.StatusExpired:
		if err := service.NotifyFulfillment(ctx, trx.Code, "release_reservation"); err != nil {
			return fmt.Errorf("release reservation: %w", err)
		}
	}

	// Buyer-facing messaging is best effort on every accepted transition.
	go func(trx model.Transactions, v engine.Verdict) {
		nctx, ncancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer ncancel()
		err := service.SendStatusNotification(nctx, service.StatusNotification{
			TransactionCode: trx.Code,
			BuyerID:         trx.BuyerID,
			FromStatus:      string(v.From),
			ToStatus:        string(v.To),
			Source:          string(v.Source),
			Override:        v.Override,
			Amount:          trx.Amount,
			Currency:        trx.Currency,
		})
		if err != nil {
			log.Printf("Notification for %s failed (best effort): %v", trx.Code, err)
		}
	}(*trx, v)

	d.markDone(ctx, markerKey)

	config.AuditInfo(config.AUDIT_DISPATCHER, "side effects completed", config.AuditEntry{
		TransactionCode: v.Code,
		ObservedStatus:  string(v.From),
		ResultStatus:    string(v.To),
		Override:        v.Override,
	})
	return nil
}

func (d *Dispatcher) onSettled(ctx context.Context, trx *model.Transactions) error {
	if _, err := d.fulfill.DeliverItems(ctx, trx.ID); err != nil {
		return fmt.Errorf("deliver items: %w", err)
	}
	// Unconditional even when DeliverItems touched no rows: on a retry the
	// items are already delivered, but the collaborator call may be the very
	// step that failed last time. The receiver dedups on transaction code.
	if err := service.NotifyFulfillment(ctx, trx.Code, "unlock_delivery"); err != nil {
		return fmt.Errorf("unlock delivery: %w", err)
	}
	if _, err := d.fulfill.CreateInvoice(ctx, trx); err != nil {
		return fmt.Errorf("materialize invoice: %w", err)
	}
	return nil
}

func (d *Dispatcher) onRefunded(ctx context.Context, trx *model.Transactions) error {
	if _, err := d.fulfill.RefundItems(ctx, trx.ID); err != nil {
		return fmt.Errorf("refund items: %w", err)
	}
	if err := d.fulfill.CreatePayoutAdjustment(ctx, trx, "gateway refund"); err != nil {
		return fmt.Errorf("payout adjustment: %w", err)
	}
	if err := service.NotifyFulfillment(ctx, trx.Code, "refund"); err != nil {
		return fmt.Errorf("notify refund: %w", err)
	}
	return nil
}

func (d *Dispatcher) alreadyDone(ctx context.Context, key string) bool {
	if d.rdb == nil {
		return false
	}
	val, err := d.rdb.Get(ctx, key).Result()
	return err == nil && val == "done"
}

func (d *Dispatcher) markDone(ctx context.Context, key string) {
	if d.rdb == nil {
		return
	}
	if err := d.rdb.Set(ctx, key, "done", 24*time.Hour).Err(); err != nil {
		log.Printf("Failed to write effect marker %s: %v", key, err)
	}
}
