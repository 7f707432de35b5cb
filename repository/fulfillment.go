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
)

// FulfillmentRepo holds the dispatcher-side writes: item sub-status moves,
// invoice materialization and payout adjustments. Every write here is
// idempotent so the dispatcher can be retried after a crash.
type FulfillmentRepo struct {
	db *gorm.DB
}

func NewFulfillmentRepo(db *gorm.DB) *FulfillmentRepo {
	return &FulfillmentRepo{db: db}
}

// DeliverItems marks pending items delivered. The parent status is checked
// inside the same statement so a racing refund cannot slip a delivery in.
func (r *FulfillmentRepo) DeliverItems(ctx context.Context, transactionID string) (int64, error) {
	now := time.Now()
	res := r.db.WithContext(ctx).Model(&model.TransactionItem{}).
		Where("transaction_id = ? AND fulfillment_status = ?", transactionID, model.ItemPendingDelivery).
		Where("EXISTS (SELECT 1 FROM transactions WHERE transactions.id = transaction_items.transaction_id AND transactions.status = ?)",
			string(engine.StatusSettled)).
		Updates(map[string]interface{}{
			"fulfillment_status": model.ItemDelivered,
			"delivered_at":       now,
		})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to deliver items: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// RefundItems moves delivered items to refunded. Items never delivered stay
// where they are; there is nothing to claw back.
func (r *FulfillmentRepo) RefundItems(ctx context.Context, transactionID string) (int64, error) {
	now := time.Now()
	res := r.db.WithContext(ctx).Model(&model.TransactionItem{}).
		Where("transaction_id = ? AND fulfillment_status = ?", transactionID, model.ItemDelivered).
		Updates(map[string]interface{}{
			"fulfillment_status": model.ItemRefunded,
			"refunded_at":        now,
		})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to refund items: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// CreateInvoice materializes the invoice for a settled transaction. The
// unique index on transaction_id makes re-runs a no-op.
func (r *FulfillmentRepo) CreateInvoice(ctx context.Context, trx *model.Transactions) (*model.Invoice, error) {
	invoice := model.Invoice{
		ID:            uuid.NewString(),
		TransactionID: trx.ID,
		Number:        fmt.Sprintf("INV/%s/%s", time.Now().Format("20060102"), trx.Code),
		BuyerID:       trx.BuyerID,
		Amount:        trx.Amount,
		Currency:      trx.Currency,
		IssuedAt:      time.Now(),
	}
	err := r.db.WithContext(ctx).Create(&invoice).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return r.InvoiceByTransactionID(ctx, trx.ID)
		}
		return nil, fmt.Errorf("failed to create invoice: %w", err)
	}
	return &invoice, nil
}

func (r *FulfillmentRepo) InvoiceByTransactionID(ctx context.Context, transactionID string) (*model.Invoice, error) {
	var invoice model.Invoice
	err := r.db.WithContext(ctx).Where("transaction_id = ?", transactionID).First(&invoice).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("invoice not found: %w", err)
		}
		return nil, fmt.Errorf("error fetching invoice: %w", err)
	}
	return &invoice, nil
}

// CreatePayoutAdjustment writes the refund ledger row, once.
func (r *FulfillmentRepo) CreatePayoutAdjustment(ctx context.Context, trx *model.Transactions, note string) error {
	adj := model.PayoutAdjustment{
		ID:            uuid.NewString(),
		TransactionID: trx.ID,
		Amount:        trx.Amount,
		Currency:      trx.Currency,
		Direction:     "debit",
		Note:          note,
	}
	err := r.db.WithContext(ctx).Create(&adj).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil
		}
		return fmt.Errorf("failed to create payout adjustment: %w", err)
	}
	return nil
}
