package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"digimy/config"
	"digimy/dto/model"
	"digimy/engine"
	"digimy/lib"
	"digimy/repository"

	"github.com/robfig/cron/v3"
)

// ErrSweepRunning is returned when a manual sweep trigger finds a sweep
// already in flight.
var ErrSweepRunning = errors.New("sweep already running")

// Sweeper is the backfill compensation for lost webhooks: every interval it
// rechecks transactions stuck in a non-terminal status past the staleness
// threshold against the gateway. Correctness under concurrent webhook
// delivery is entirely the authority's job; the sweeper just feeds it.
type Sweeper struct {
	cron      *cron.Cron
	repo      *repository.TransactionRepo
	authority *engine.Authority

	threshold time.Duration
	batchSize int
	workers   int

	mu sync.Mutex // guards: one sweep in flight at a time
}

func NewSweeper(repo *repository.TransactionRepo, authority *engine.Authority) *Sweeper {
	return &Sweeper{
		cron:      cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger))),
		repo:      repo,
		authority: authority,
		threshold: config.ConfigDuration("SWEEP_STALE_THRESHOLD", 5*time.Minute),
		batchSize: config.ConfigInt("SWEEP_BATCH_SIZE", 200),
		workers:   config.ConfigInt("SWEEP_WORKERS", 8),
	}
}

func (s *Sweeper) Start() {
	interval := config.ConfigInt("SWEEP_INTERVAL_MINUTES", 2)
	spec := fmt.Sprintf("@every %dm", interval)

	entryID, err := s.cron.AddFunc(spec, func() {
		if err := s.Sweep(); err != nil && !errors.Is(err, ErrSweepRunning) {
			log.Printf("Error running pending sweep: %v", err)
		}
	})
	if err != nil {
		log.Printf("Error scheduling pending sweep: %v", err)
		return
	}

	log.Printf("Pending sweep scheduled with entry ID %d, interval %dm, staleness threshold %s",
		entryID, interval, s.threshold)
	s.cron.Start()
}

func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// Sweep runs one full pass. Also invoked directly by the admin bulk
// endpoint; the mutex keeps manual and scheduled runs from overlapping.
func (s *Sweeper) Sweep() error {
	if !s.mu.TryLock() {
		return ErrSweepRunning
	}
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	stale, err := s.repo.ListStale(ctx, s.threshold, s.batchSize)
	if err != nil {
		return fmt.Errorf("listing stale transactions: %w", err)
	}
	if len(stale) == 0 {
		return nil
	}

	log.Printf("Pending sweep checking %d stale transactions", len(stale))

	// Bounded fan-out. Each transaction's outcome is independent; a failed
	// lookup is retried on the next sweep, never aborts the batch.
	jobs := make(chan model.Transactions)
	var wg sync.WaitGroup
	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for trx := range jobs {
				s.checkOne(trx)
			}
		}()
	}
	for _, trx := range stale {
		jobs <- trx
	}
	close(jobs)
	wg.Wait()

	return nil
}

// CheckTransaction performs a single-transaction gateway recheck through the
// authority. Shared by the sweep and the operator "re-check now" endpoint;
// neither is privileged over a live webhook.
func (s *Sweeper) CheckTransaction(ctx context.Context, trx *model.Transactions) (engine.Verdict, error) {
	// Gateway I/O strictly before the authority takes the row lock.
	statusResp, err := lib.CheckTransactionStatus(ctx, trx.GatewayOrderID)
	if err != nil {
		return engine.Verdict{}, fmt.Errorf("gateway lookup for %s: %w", trx.Code, err)
	}

	observed, err := lib.MapGatewayStatus(statusResp.TransactionStatus, statusResp.FraudStatus)
	if err != nil {
		return engine.Verdict{}, fmt.Errorf("mapping gateway status for %s: %w", trx.Code, err)
	}

	verdict, err := s.authority.Apply(ctx, engine.Input{
		Code:           trx.Code,
		Source:         engine.SourcePoll,
		Observed:       observed,
		GatewayEventID: statusResp.TransactionID,
		OccurredAt:     lib.ParseGatewayTime(statusResp.TransactionTime),
	})
	if err != nil {
		return engine.Verdict{}, err
	}

	config.AuditInfo(config.AUDIT_POLL, "recheck decision", config.AuditEntry{
		TransactionCode: trx.Code,
		GatewayOrderID:  trx.GatewayOrderID,
		ObservedStatus:  string(observed),
		ResultStatus:    string(verdict.To),
		Decision:        string(verdict.Decision),
		Reason:          verdict.Reason,
	})
	return verdict, nil
}

func (s *Sweeper) checkOne(trx model.Transactions) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if _, err := s.CheckTransaction(ctx, &trx); err != nil {
		log.Printf("Sweep check failed for %s: %v", trx.Code, err)
		config.AuditError(config.AUDIT_POLL, "recheck failed", config.AuditEntry{
			TransactionCode: trx.Code,
			GatewayOrderID:  trx.GatewayOrderID,
			Error:           err.Error(),
		})
	}
}
