package engine

import "fmt"

// Status is the closed set of engine-side payment statuses. Conflicting
// concurrent reports are resolved by Rank, never by arrival order.
type Status string

const (
	StatusInitiated Status = "initiated"
	StatusPending   Status = "pending"
	StatusSettled   Status = "settled"
	StatusFailed    Status = "failed"
	StatusExpired   Status = "expired"
	StatusRefunded  Status = "refunded"
)

// Rank returns the total order used to resolve conflicting reports. A lower
// rank observation never overwrites a higher rank status except through a
// manual override.
func (s Status) Rank() int {
	switch s {
	case StatusInitiated:
		return 0
	case StatusPending:
		return 1
	case StatusSettled, StatusFailed, StatusExpired:
		return 2
	case StatusRefunded:
		return 3
	default:
		return -1
	}
}

// Terminal reports whether no further automatic transition is accepted.
func (s Status) Terminal() bool {
	return s.Rank() >= 2
}

func (s Status) Valid() bool {
	return s.Rank() >= 0
}

// ParseStatus converts a stored or submitted status string into the closed
// status type.
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if !s.Valid() {
		return "", fmt.Errorf("unknown status %q", raw)
	}
	return s, nil
}

// Source identifies which inbound channel produced an observation.
type Source string

const (
	SourceWebhook Source = "webhook"
	SourcePoll    Source = "poll"
	SourceManual  Source = "manual"
)

// Decision is the verdict of one Apply call.
type Decision string

const (
	DecisionAccepted   Decision = "accepted"
	DecisionSuperseded Decision = "superseded"
	DecisionRejected   Decision = "rejected"
)

// Decision reasons recorded on transition records and returned to callers.
const (
	ReasonNotFound        = "not-found"
	ReasonStale           = "stale"
	ReasonAlreadyTerminal = "already-terminal"
	ReasonUnknownStatus   = "unknown-status"
	ReasonUnreachable     = "unreachable-status"
	ReasonDuplicateEvent  = "duplicate-event"
	ReasonSameStatus      = "same-status"
	ReasonOverride        = "manual-override"
)
