package repository

import (
	"context"
	"log"
	"time"

	"digimy/database"

	"go.mongodb.org/mongo-driver/bson"
)

// GatewayEvent is the raw inbound callback as received, kept for debugging
// and replay. One document per delivery, duplicates included.
type GatewayEvent struct {
	OrderID     string    `bson:"order_id"`
	EventID     string    `bson:"event_id"`
	Source      string    `bson:"source"`
	Status      string    `bson:"status"`
	SignatureOK bool      `bson:"signature_ok"`
	Payload     bson.Raw  `bson:"payload,omitempty"`
	RawBody     string    `bson:"raw_body,omitempty"`
	ReceivedAt  time.Time `bson:"received_at"`
}

// AuditGatewayEvent stores the raw event, fire and forget. Reconciliation
// never depends on this write succeeding.
func AuditGatewayEvent(event GatewayEvent) {
	collection := database.GetCollection("digimy", "gateway_events")
	if collection == nil {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()

		event.ReceivedAt = time.Now()
		if _, err := collection.InsertOne(ctx, event); err != nil {
			log.Printf("Error auditing gateway event for %s: %v", event.OrderID, err)
		}
	}()
}
