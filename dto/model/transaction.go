package model

import (
	"time"
)

// Transactions is the durable record of a purchase and the single source of
// truth for its payment status. Status values are defined in the engine
// package; the column stores the string form.
type Transactions struct {
	ID               string     `gorm:"size:50;primaryKey" json:"id"`
	Code             string     `gorm:"type:VARCHAR(50);uniqueIndex;not null" json:"code"`
	GatewayOrderID   string     `gorm:"type:VARCHAR(100);uniqueIndex;not null" json:"gateway_order_id"`
	BuyerID          string     `gorm:"type:VARCHAR(100);index;not null" json:"buyer_id"`
	Amount           uint       `gorm:"type:BIGINT;not null" json:"amount"`
	Currency         string     `gorm:"type:VARCHAR(10);not null" json:"currency"`
	Status           string     `gorm:"type:VARCHAR(20);index;not null" json:"status"`
	FailReason       string     `gorm:"type:VARCHAR(255)" json:"fail_reason,omitempty"`
	SnapToken        string     `gorm:"type:VARCHAR(100)" json:"snap_token,omitempty"`
	PaymentType      string     `gorm:"type:VARCHAR(50)" json:"payment_type,omitempty"`
	LastTransitionAt time.Time  `gorm:"index;not null" json:"last_transition_at"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updated_at"`

	Items       []TransactionItem  `gorm:"foreignKey:TransactionID" json:"items,omitempty"`
	Transitions []TransitionRecord `gorm:"foreignKey:TransactionID" json:"-"`
}

// Item fulfillment sub-statuses. These are independent of the parent payment
// status but constrained by it: delivery requires a settled parent, refund
// requires prior delivery.
const (
	ItemPendingDelivery = "pending_delivery"
	ItemDelivered       = "delivered"
	ItemRefunded        = "refunded"
)

type TransactionItem struct {
	ID                string     `gorm:"size:50;primaryKey" json:"id"`
	TransactionID     string     `gorm:"size:50;index;not null" json:"transaction_id"`
	ProductID         string     `gorm:"type:VARCHAR(100)" json:"product_id,omitempty"`
	Name              string     `gorm:"type:VARCHAR(255);not null" json:"name"`
	Price             uint       `gorm:"type:BIGINT;not null" json:"price"`
	FulfillmentStatus string     `gorm:"type:VARCHAR(20);not null;default:pending_delivery" json:"fulfillment_status"`
	DeliveredAt       *time.Time `json:"delivered_at,omitempty"`
	RefundedAt        *time.Time `json:"refunded_at,omitempty"`
	CreatedAt         time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
