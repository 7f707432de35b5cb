package http

import "time"

type ForceStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=initiated pending settled failed expired refunded"`
	Reason string `json:"reason" validate:"required,min=5,max=255"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type VerdictResponse struct {
	TransactionCode string `json:"transaction_code"`
	Decision        string `json:"decision"`
	Reason          string `json:"reason,omitempty"`
	FromStatus      string `json:"from_status,omitempty"`
	ToStatus        string `json:"to_status,omitempty"`
	Override        bool   `json:"override,omitempty"`
}

type TransactionStatusResponse struct {
	Code             string                  `json:"code"`
	BuyerID          string                  `json:"buyer_id"`
	Amount           uint                    `json:"amount"`
	Currency         string                  `json:"currency"`
	Status           string                  `json:"status"`
	FailReason       string                  `json:"fail_reason,omitempty"`
	PaymentType      string                  `json:"payment_type,omitempty"`
	CreatedAt        time.Time               `json:"created_at"`
	LastTransitionAt time.Time               `json:"last_transition_at"`
	Items            []TransactionItemStatus `json:"items,omitempty"`
}

type TransactionItemStatus struct {
	Name              string `json:"name"`
	Price             uint   `json:"price"`
	FulfillmentStatus string `json:"fulfillment_status"`
}

type PendingTransactionResponse struct {
	Code             string    `json:"code"`
	GatewayOrderID   string    `json:"gateway_order_id"`
	Status           string    `json:"status"`
	Amount           uint      `json:"amount"`
	StuckFor         string    `json:"stuck_for"`
	LastTransitionAt time.Time `json:"last_transition_at"`
}
