package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"digimy/dto/model"
	"digimy/engine"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TransactionRepo is the gorm-backed transaction store. It is the only
// shared mutable resource in the engine; everything else is stateless with
// respect to transaction status.
type TransactionRepo struct {
	db *gorm.DB
}

func NewTransactionRepo(db *gorm.DB) *TransactionRepo {
	return &TransactionRepo{db: db}
}

func (r *TransactionRepo) FindByCode(ctx context.Context, code string) (*model.Transactions, error) {
	var trx model.Transactions
	err := r.db.WithContext(ctx).Preload("Items").Where("code = ?", code).First(&trx).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, engine.ErrNotFound
		}
		return nil, fmt.Errorf("error fetching transaction: %w", err)
	}
	return &trx, nil
}

// Locked implements the per-transaction exclusive lock with a row-level
// SELECT ... FOR UPDATE inside one database transaction. Lock granularity is
// the single transaction row, so different transactions never contend.
func (r *TransactionRepo) Locked(ctx context.Context, code string, fn func(tx engine.LockedTx) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var trx model.Transactions
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("code = ?", code).First(&trx).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return engine.ErrNotFound
			}
			return fmt.Errorf("error locking transaction: %w", err)
		}
		return fn(&lockedTx{db: tx, trx: &trx})
	})
}

type lockedTx struct {
	db  *gorm.DB
	trx *model.Transactions
}

func (l *lockedTx) Transaction() *model.Transactions {
	return l.trx
}

func (l *lockedTx) HasAcceptedFingerprint(fingerprint string) (bool, error) {
	var count int64
	err := l.db.Model(&model.TransitionRecord{}).
		Where("fingerprint = ? AND decision = ?", fingerprint, string(engine.DecisionAccepted)).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// NextSeq hands out the next per-transaction sequence number. The parent row
// lock serializes callers, so max+1 cannot race.
func (l *lockedTx) NextSeq() (uint64, error) {
	var maxSeq uint64
	err := l.db.Model(&model.TransitionRecord{}).
		Where("transaction_id = ?", l.trx.ID).
		Select("COALESCE(MAX(seq), 0)").Scan(&maxSeq).Error
	if err != nil {
		return 0, err
	}
	return maxSeq + 1, nil
}

func (l *lockedTx) SetStatus(status engine.Status, failReason string, at time.Time) error {
	updates := map[string]interface{}{
		"status":             string(status),
		"last_transition_at": at,
	}
	if failReason != "" {
		updates["fail_reason"] = failReason
	}
	if err := l.db.Model(&model.Transactions{}).Where("id = ?", l.trx.ID).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to update transaction status: %w", err)
	}
	l.trx.Status = string(status)
	l.trx.LastTransitionAt = at
	return nil
}

func (l *lockedTx) AppendTransition(rec *model.TransitionRecord) error {
	if err := l.db.Create(rec).Error; err != nil {
		return fmt.Errorf("failed to append transition record: %w", err)
	}
	return nil
}

// CreateInitiated persists a new transaction with its items in the initiated
// status. Called from the checkout boundary.
func (r *TransactionRepo) CreateInitiated(ctx context.Context, trx *model.Transactions) error {
	now := time.Now()
	trx.Status = string(engine.StatusInitiated)
	trx.LastTransitionAt = now
	for i := range trx.Items {
		if trx.Items[i].ID == "" {
			trx.Items[i].ID = uuid.NewString()
		}
		trx.Items[i].TransactionID = trx.ID
		trx.Items[i].FulfillmentStatus = model.ItemPendingDelivery
	}
	if err := r.db.WithContext(ctx).Create(trx).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("duplicate transaction code or gateway order id: %w", err)
		}
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}

func (r *TransactionRepo) SaveSnapToken(ctx context.Context, id, token string) error {
	return r.db.WithContext(ctx).Model(&model.Transactions{}).
		Where("id = ?", id).Update("snap_token", token).Error
}

// ListStale returns non-terminal transactions whose last transition is older
// than the threshold. These are the webhook-loss suspects the sweep rechecks.
func (r *TransactionRepo) ListStale(ctx context.Context, olderThan time.Duration, limit int) ([]model.Transactions, error) {
	cutoff := time.Now().Add(-olderThan)
	var transactions []model.Transactions
	err := r.db.WithContext(ctx).
		Where("status IN ? AND last_transition_at < ?",
			[]string{string(engine.StatusInitiated), string(engine.StatusPending)}, cutoff).
		Order("last_transition_at ASC").
		Limit(limit).
		Find(&transactions).Error
	if err != nil {
		return nil, fmt.Errorf("unable to fetch stale transactions: %w", err)
	}
	return transactions, nil
}

func (r *TransactionRepo) ListByDateRange(ctx context.Context, from, to time.Time) ([]model.Transactions, error) {
	var transactions []model.Transactions
	err := r.db.WithContext(ctx).
		Where("created_at >= ? AND created_at < ?", from, to).
		Order("created_at ASC").
		Find(&transactions).Error
	if err != nil {
		return nil, fmt.Errorf("unable to fetch transactions: %w", err)
	}
	return transactions, nil
}

func (r *TransactionRepo) Transitions(ctx context.Context, transactionID string) ([]model.TransitionRecord, error) {
	var records []model.TransitionRecord
	err := r.db.WithContext(ctx).
		Where("transaction_id = ?", transactionID).
		Order("seq ASC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("unable to fetch transition records: %w", err)
	}
	return records, nil
}
