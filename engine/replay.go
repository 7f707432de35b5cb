package engine

import (
	"sort"

	"digimy/dto/model"
)

// Replay reconstructs the status a transaction should hold from its
// transition log: accepted records applied in seq order. Used by tests and
// the admin diagnostic to verify the stored status against the log.
func Replay(records []model.TransitionRecord) Status {
	sorted := make([]model.TransitionRecord, len(records))
	copy(sorted, records)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Seq < sorted[j].Seq })

	status := StatusInitiated
	for _, rec := range sorted {
		if rec.Decision != string(DecisionAccepted) {
			continue
		}
		if s, err := ParseStatus(rec.ResultStatus); err == nil {
			status = s
		}
	}
	return status
}
