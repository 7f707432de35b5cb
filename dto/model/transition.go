package model

import (
	"time"

	"gorm.io/datatypes"
)

// TransitionRecord is an immutable, append-only log entry for one observed
// status event and the decision the engine made about it. Seq is a
// per-transaction monotonic sequence number assigned under the row lock, so
// replaying accepted records in seq order reconstructs the current status.
type TransitionRecord struct {
	ID             string         `gorm:"size:50;primaryKey" json:"id"`
	TransactionID  string         `gorm:"size:50;not null;uniqueIndex:idx_transition_seq,priority:1" json:"transaction_id"`
	Seq            uint64         `gorm:"not null;uniqueIndex:idx_transition_seq,priority:2" json:"seq"`
	Source         string         `gorm:"type:VARCHAR(10);not null" json:"source"`
	Fingerprint    string         `gorm:"type:VARCHAR(255);index;not null" json:"fingerprint"`
	ObservedStatus string         `gorm:"type:VARCHAR(20);not null" json:"observed_status"`
	ResultStatus   string         `gorm:"type:VARCHAR(20);not null" json:"result_status"`
	Decision       string         `gorm:"type:VARCHAR(12);not null" json:"decision"`
	Reason         string         `gorm:"type:VARCHAR(50)" json:"reason,omitempty"`
	Override       bool           `gorm:"not null;default:false" json:"override"`
	OverrideReason string         `gorm:"type:VARCHAR(255)" json:"override_reason,omitempty"`
	RawPayload     datatypes.JSON `gorm:"type:jsonb" json:"raw_payload,omitempty"`
	OccurredAt     *time.Time     `json:"occurred_at,omitempty"`
	CreatedAt      time.Time      `gorm:"autoCreateTime" json:"created_at"`
}
