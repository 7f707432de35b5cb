package model

import (
	"time"
)

// Invoice is materialized by the side-effect dispatcher exactly once per
// settled transaction; the unique index on TransactionID is the database
// guard behind that guarantee.
type Invoice struct {
	ID            string    `gorm:"size:50;primaryKey" json:"id"`
	TransactionID string    `gorm:"size:50;uniqueIndex;not null" json:"transaction_id"`
	Number        string    `gorm:"type:VARCHAR(100);uniqueIndex;not null" json:"number"`
	BuyerID       string    `gorm:"type:VARCHAR(100);not null" json:"buyer_id"`
	Amount        uint      `gorm:"type:BIGINT;not null" json:"amount"`
	Currency      string    `gorm:"type:VARCHAR(10);not null" json:"currency"`
	IssuedAt      time.Time `gorm:"not null" json:"issued_at"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// PayoutAdjustment is the refund ledger row written when a transaction
// reaches refunded. Same dedup discipline as Invoice.
type PayoutAdjustment struct {
	ID            string    `gorm:"size:50;primaryKey" json:"id"`
	TransactionID string    `gorm:"size:50;uniqueIndex;not null" json:"transaction_id"`
	Amount        uint      `gorm:"type:BIGINT;not null" json:"amount"`
	Currency      string    `gorm:"type:VARCHAR(10);not null" json:"currency"`
	Direction     string    `gorm:"type:VARCHAR(10);not null;default:debit" json:"direction"`
	Note          string    `gorm:"type:VARCHAR(255)" json:"note,omitempty"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
}
