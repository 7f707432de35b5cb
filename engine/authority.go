package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"digimy/dto/model"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"gorm.io/datatypes"
)

// ErrNotFound is returned by Store implementations when no transaction
// exists for the given code.
var ErrNotFound = errors.New("transaction not found")

// Store is the engine's view of the transaction store. The authority is the
// only component that mutates status, and it only does so through Locked.
type Store interface {
	FindByCode(ctx context.Context, code string) (*model.Transactions, error)
	// Locked loads the transaction row under an exclusive per-transaction
	// lock and runs fn inside the same database transaction. The row lock
	// is released when fn returns.
	Locked(ctx context.Context, code string, fn func(tx LockedTx) error) error
}

// LockedTx is the write surface available while holding a transaction's
// exclusive lock.
type LockedTx interface {
	Transaction() *model.Transactions
	HasAcceptedFingerprint(fingerprint string) (bool, error)
	NextSeq() (uint64, error)
	SetStatus(status Status, failReason string, at time.Time) error
	AppendTransition(rec *model.TransitionRecord) error
}

// EffectSink receives accepted verdicts. Implemented by the side-effect
// dispatcher; the authority never blocks on it.
type EffectSink interface {
	Dispatch(v Verdict)
}

// Input is one observed status event from any of the three sources.
type Input struct {
	Code           string
	Source         Source
	Observed       Status
	GatewayEventID string
	OccurredAt     time.Time
	Override       bool
	OverrideReason string
	RawPayload     []byte
}

// Fingerprint derives the idempotency key for this event: no two transition
// records may share it with an accepted decision.
func (in Input) Fingerprint() string {
	return in.Code + "|" + string(in.Observed) + "|" + in.GatewayEventID
}

// Verdict is the outcome of one Apply call.
type Verdict struct {
	Decision Decision
	Reason   string
	From     Status
	To       Status
	Code     string
	Source   Source
	Override bool
	Record   *model.TransitionRecord
}

func (v Verdict) Accepted() bool {
	return v.Decision == DecisionAccepted
}

// Authority is the single arbiter of transaction status.
type Authority struct {
	store Store
	sink  EffectSink

	// conflicts tracks repeated terminal-state conflicts per transaction so
	// a recurring gateway-side inconsistency gets flagged for manual review.
	conflicts *gocache.Cache
}

func NewAuthority(store Store, sink EffectSink) *Authority {
	return &Authority{
		store:     store,
		sink:      sink,
		conflicts: gocache.New(24*time.Hour, 1*time.Hour),
	}
}

// Apply runs one observation through the state machine and records the
// decision. Every decision except not-found appends a transition record;
// only accepted decisions reach the side-effect dispatcher.
func (a *Authority) Apply(ctx context.Context, in Input) (Verdict, error) {
	if !in.Observed.Valid() {
		return Verdict{Decision: DecisionRejected, Reason: ReasonUnknownStatus, Code: in.Code, Source: in.Source}, nil
	}
	if in.Override && in.Source != SourceManual {
		return Verdict{}, fmt.Errorf("override flag requires manual source, got %s", in.Source)
	}

	var verdict Verdict
	err := a.store.Locked(ctx, in.Code, func(tx LockedTx) error {
		trx := tx.Transaction()
		current, parseErr := ParseStatus(trx.Status)
		if parseErr != nil {
			return fmt.Errorf("stored status corrupt for %s: %w", in.Code, parseErr)
		}

		fingerprint := in.Fingerprint()
		dup, dupErr := tx.HasAcceptedFingerprint(fingerprint)
		if dupErr != nil {
			return fmt.Errorf("idempotency check: %w", dupErr)
		}

		verdict = a.decide(current, in, dup)
		verdict.Code = in.Code
		verdict.Source = in.Source
		verdict.From = current

		now := time.Now()
		seq, seqErr := tx.NextSeq()
		if seqErr != nil {
			return fmt.Errorf("next seq: %w", seqErr)
		}

		rec := &model.TransitionRecord{
			ID:             uuid.NewString(),
			TransactionID:  trx.ID,
			Seq:            seq,
			Source:         string(in.Source),
			Fingerprint:    fingerprint,
			ObservedStatus: string(in.Observed),
			ResultStatus:   string(verdict.To),
			Decision:       string(verdict.Decision),
			Reason:         verdict.Reason,
			Override:       verdict.Override,
			OverrideReason: in.OverrideReason,
		}
		if !in.OccurredAt.IsZero() {
			occurred := in.OccurredAt
			rec.OccurredAt = &occurred
		}
		if len(in.RawPayload) > 0 {
			rec.RawPayload = datatypes.JSON(in.RawPayload)
		}

		if verdict.Accepted() && verdict.To != current {
			failReason := ""
			if verdict.To == StatusFailed || verdict.To == StatusExpired {
				failReason = string(in.Source) + " reported " + string(in.Observed)
			}
			if err := tx.SetStatus(verdict.To, failReason, now); err != nil {
				return fmt.Errorf("set status: %w", err)
			}
		}

		if err := tx.AppendTransition(rec); err != nil {
			return fmt.Errorf("append transition: %w", err)
		}
		verdict.Record = rec
		return nil
	})
	if errors.Is(err, ErrNotFound) {
		countVerdict(in.Source, DecisionRejected)
		return Verdict{Decision: DecisionRejected, Reason: ReasonNotFound, Code: in.Code, Source: in.Source}, nil
	}
	if err != nil {
		return Verdict{}, err
	}

	countVerdict(in.Source, verdict.Decision)
	a.trackTerminalConflict(in, verdict)

	if verdict.Accepted() && a.sink != nil {
		a.sink.Dispatch(verdict)
	}
	return verdict, nil
}

// decide applies the precedence rules to a single observation. Pure with
// respect to the store: all inputs are already loaded.
func (a *Authority) decide(current Status, in Input, duplicate bool) Verdict {
	// Duplicate delivery of an already-accepted event is always a safe no-op.
	if duplicate {
		return Verdict{Decision: DecisionSuperseded, Reason: ReasonDuplicateEvent, To: current}
	}

	// Operator override skips every rank rule on purpose.
	if in.Source == SourceManual && in.Override {
		return Verdict{Decision: DecisionAccepted, Reason: ReasonOverride, To: in.Observed, Override: true}
	}

	// Re-reporting the current status carries no new information, terminal
	// or not. Scenario: poller and webhook both report pending.
	if in.Observed == current {
		return Verdict{Decision: DecisionSuperseded, Reason: ReasonSameStatus, To: current}
	}

	// Refunds are only reachable from settled.
	if in.Observed == StatusRefunded {
		if current == StatusSettled {
			return Verdict{Decision: DecisionAccepted, To: StatusRefunded}
		}
		if current.Terminal() {
			return Verdict{Decision: DecisionRejected, Reason: ReasonAlreadyTerminal, To: current}
		}
		return Verdict{Decision: DecisionRejected, Reason: ReasonUnreachable, To: current}
	}

	// A different value against a terminal status would flap; reject.
	if current.Terminal() {
		return Verdict{Decision: DecisionRejected, Reason: ReasonAlreadyTerminal, To: current}
	}

	if in.Observed.Rank() >= current.Rank() {
		return Verdict{Decision: DecisionAccepted, To: in.Observed}
	}

	// Late, lower-rank observation, e.g. pending arriving after settled.
	return Verdict{Decision: DecisionRejected, Reason: ReasonStale, To: current}
}

// trackTerminalConflict counts rejected terminal-vs-terminal conflicts per
// transaction. A repeat within the cache window usually means the gateway
// disagrees with us about a finished transaction.
func (a *Authority) trackTerminalConflict(in Input, v Verdict) {
	if v.Decision != DecisionRejected || v.Reason != ReasonAlreadyTerminal || !in.Observed.Terminal() {
		return
	}
	key := "terminal-conflict:" + in.Code
	count, err := a.conflicts.IncrementInt(key, 1)
	if err != nil {
		a.conflicts.Set(key, 1, gocache.DefaultExpiration)
		count = 1
	}
	if count >= 2 {
		terminalConflictCount.Inc()
		log.Printf("FLAG: transaction %s has %d terminal-state conflicts (%s reported %s over %s), needs manual review",
			in.Code, count, in.Source, in.Observed, v.From)
	}
}
