package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"digimy/dto/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore is an in-memory Store backed by a single mutex, enough to give
// Apply the same exclusivity guarantee the database row lock provides.
type memStore struct {
	mu   sync.Mutex
	trx  map[string]*model.Transactions
	logs map[string][]model.TransitionRecord
}

func newMemStore() *memStore {
	return &memStore{
		trx:  make(map[string]*model.Transactions),
		logs: make(map[string][]model.TransitionRecord),
	}
}

func (s *memStore) add(code string, status Status) *model.Transactions {
	t := &model.Transactions{
		ID:               "id-" + code,
		Code:             code,
		GatewayOrderID:   code,
		BuyerID:          "buyer-1",
		Amount:           150000,
		Currency:         "IDR",
		Status:           string(status),
		LastTransitionAt: time.Now(),
	}
	s.trx[code] = t
	return t
}

func (s *memStore) FindByCode(ctx context.Context, code string) (*model.Transactions, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.trx[code]
	if !ok {
		return nil, ErrNotFound
	}
	return t, nil
}

func (s *memStore) Locked(ctx context.Context, code string, fn func(tx LockedTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.trx[code]
	if !ok {
		return ErrNotFound
	}
	return fn(&memTx{store: s, trx: t})
}

type memTx struct {
	store *memStore
	trx   *model.Transactions
}

func (m *memTx) Transaction() *model.Transactions { return m.trx }

func (m *memTx) HasAcceptedFingerprint(fingerprint string) (bool, error) {
	for _, rec := range m.store.logs[m.trx.Code] {
		if rec.Fingerprint == fingerprint && rec.Decision == string(DecisionAccepted) {
			return true, nil
		}
	}
	return false, nil
}

func (m *memTx) NextSeq() (uint64, error) {
	var max uint64
	for _, rec := range m.store.logs[m.trx.Code] {
		if rec.Seq > max {
			max = rec.Seq
		}
	}
	return max + 1, nil
}

func (m *memTx) SetStatus(status Status, failReason string, at time.Time) error {
	m.trx.Status = string(status)
	m.trx.FailReason = failReason
	m.trx.LastTransitionAt = at
	return nil
}

func (m *memTx) AppendTransition(rec *model.TransitionRecord) error {
	m.store.logs[m.trx.Code] = append(m.store.logs[m.trx.Code], *rec)
	return nil
}

// memSink collects dispatched verdicts.
type memSink struct {
	mu       sync.Mutex
	verdicts []Verdict
}

func (s *memSink) Dispatch(v Verdict) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.verdicts = append(s.verdicts, v)
}

func (s *memSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.verdicts)
}

func webhookInput(code string, observed Status, eventID string) Input {
	return Input{
		Code:           code,
		Source:         SourceWebhook,
		Observed:       observed,
		GatewayEventID: eventID,
	}
}

func TestApplyForwardTransitions(t *testing.T) {
	store := newMemStore()
	sink := &memSink{}
	store.add("TRX-1", StatusInitiated)
	auth := NewAuthority(store, sink)

	v, err := auth.Apply(context.Background(), webhookInput("TRX-1", StatusPending, "ev-1"))
	require.NoError(t, err)
	assert.Equal(t, DecisionAccepted, v.Decision)
	assert.Equal(t, StatusInitiated, v.From)
	assert.Equal(t, StatusPending, v.To)

	v, err = auth.Apply(context.Background(), webhookInput("TRX-1", StatusSettled, "ev-2"))
	require.NoError(t, err)
	assert.Equal(t, DecisionAccepted, v.Decision)
	assert.Equal(t, StatusSettled, v.To)

	assert.Equal(t, string(StatusSettled), store.trx["TRX-1"].Status)
	assert.Equal(t, 2, sink.count())
}

func TestApplySameStatusSuperseded(t *testing.T) {
	store := newMemStore()
	store.add("TRX-1", StatusInitiated)
	auth := NewAuthority(store, &memSink{})

	v, err := auth.Apply(context.Background(), webhookInput("TRX-1", StatusPending, "ev-1"))
	require.NoError(t, err)
	require.Equal(t, DecisionAccepted, v.Decision)

	// Poller reports the same pending moments later with its own event id.
	v, err = auth.Apply(context.Background(), Input{
		Code: "TRX-1", Source: SourcePoll, Observed: StatusPending, GatewayEventID: "poll-1",
	})
	require.NoError(t, err)
	assert.Equal(t, DecisionSuperseded, v.Decision)
	assert.Equal(t, ReasonSameStatus, v.Reason)
	assert.Equal(t, StatusPending, v.To)
}

func TestApplyStaleRejected(t *testing.T) {
	store := newMemStore()
	store.add("TRX-1", StatusSettled)
	auth := NewAuthority(store, &memSink{})

	v, err := auth.Apply(context.Background(), webhookInput("TRX-1", StatusPending, "ev-late"))
	require.NoError(t, err)
	assert.Equal(t, DecisionRejected, v.Decision)
	assert.Equal(t, ReasonAlreadyTerminal, v.Reason)
	assert.Equal(t, string(StatusSettled), store.trx["TRX-1"].Status)
}

func TestApplyStaleBeforeTerminal(t *testing.T) {
	store := newMemStore()
	store.add("TRX-1", StatusPending)
	auth := NewAuthority(store, &memSink{})

	v, err := auth.Apply(context.Background(), webhookInput("TRX-1", StatusInitiated, "ev-old"))
	require.NoError(t, err)
	assert.Equal(t, DecisionRejected, v.Decision)
	assert.Equal(t, ReasonStale, v.Reason)
}

func TestApplyDuplicateEventSingleAccept(t *testing.T) {
	store := newMemStore()
	sink := &memSink{}
	store.add("TRX-1", StatusPending)
	auth := NewAuthority(store, sink)

	in := webhookInput("TRX-1", StatusSettled, "ev-42")

	v, err := auth.Apply(context.Background(), in)
	require.NoError(t, err)
	require.Equal(t, DecisionAccepted, v.Decision)

	// Gateway retries the exact same notification.
	v, err = auth.Apply(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, DecisionSuperseded, v.Decision)
	assert.Equal(t, ReasonDuplicateEvent, v.Reason)

	accepted := 0
	for _, rec := range store.logs["TRX-1"] {
		if rec.Fingerprint == in.Fingerprint() && rec.Decision == string(DecisionAccepted) {
			accepted++
		}
	}
	assert.Equal(t, 1, accepted)
	assert.Equal(t, 1, sink.count())
}

func TestApplyRefundReachability(t *testing.T) {
	auth := NewAuthority(newMemStore(), &memSink{})

	cases := []struct {
		current  Status
		decision Decision
		reason   string
	}{
		{StatusSettled, DecisionAccepted, ""},
		{StatusPending, DecisionRejected, ReasonUnreachable},
		{StatusInitiated, DecisionRejected, ReasonUnreachable},
		{StatusFailed, DecisionRejected, ReasonAlreadyTerminal},
		{StatusExpired, DecisionRejected, ReasonAlreadyTerminal},
	}
	for _, tc := range cases {
		store := newMemStore()
		store.add("TRX-1", tc.current)
		auth.store = store

		v, err := auth.Apply(context.Background(), webhookInput("TRX-1", StatusRefunded, "ev-rf"))
		require.NoError(t, err)
		assert.Equal(t, tc.decision, v.Decision, "from %s", tc.current)
		if tc.reason != "" {
			assert.Equal(t, tc.reason, v.Reason, "from %s", tc.current)
		}
	}
}

func TestApplyTerminalConflictRejected(t *testing.T) {
	store := newMemStore()
	store.add("TRX-1", StatusSettled)
	auth := NewAuthority(store, &memSink{})

	v, err := auth.Apply(context.Background(), webhookInput("TRX-1", StatusFailed, "ev-x"))
	require.NoError(t, err)
	assert.Equal(t, DecisionRejected, v.Decision)
	assert.Equal(t, ReasonAlreadyTerminal, v.Reason)
	assert.Equal(t, string(StatusSettled), store.trx["TRX-1"].Status)
}

func TestApplyManualOverride(t *testing.T) {
	store := newMemStore()
	sink := &memSink{}
	store.add("TRX-1", StatusFailed)
	auth := NewAuthority(store, sink)

	v, err := auth.Apply(context.Background(), Input{
		Code:           "TRX-1",
		Source:         SourceManual,
		Observed:       StatusSettled,
		GatewayEventID: "manual-1",
		Override:       true,
		OverrideReason: "ops@digimy: bank mutation confirms payment",
	})
	require.NoError(t, err)
	assert.Equal(t, DecisionAccepted, v.Decision)
	assert.Equal(t, ReasonOverride, v.Reason)
	assert.True(t, v.Override)
	assert.Equal(t, string(StatusSettled), store.trx["TRX-1"].Status)
	assert.Equal(t, 1, sink.count())

	rec := store.logs["TRX-1"][len(store.logs["TRX-1"])-1]
	assert.True(t, rec.Override)
	assert.Equal(t, "ops@digimy: bank mutation confirms payment", rec.OverrideReason)
}

func TestApplyOverrideRequiresManualSource(t *testing.T) {
	store := newMemStore()
	store.add("TRX-1", StatusFailed)
	auth := NewAuthority(store, &memSink{})

	_, err := auth.Apply(context.Background(), Input{
		Code: "TRX-1", Source: SourceWebhook, Observed: StatusSettled, GatewayEventID: "ev-1", Override: true,
	})
	assert.Error(t, err)
}

func TestApplyUnknownStatusRejected(t *testing.T) {
	store := newMemStore()
	store.add("TRX-1", StatusPending)
	auth := NewAuthority(store, &memSink{})

	v, err := auth.Apply(context.Background(), webhookInput("TRX-1", Status("paid"), "ev-1"))
	require.NoError(t, err)
	assert.Equal(t, DecisionRejected, v.Decision)
	assert.Equal(t, ReasonUnknownStatus, v.Reason)
	assert.Empty(t, store.logs["TRX-1"])
}

func TestApplyNotFound(t *testing.T) {
	auth := NewAuthority(newMemStore(), &memSink{})

	v, err := auth.Apply(context.Background(), webhookInput("TRX-missing", StatusSettled, "ev-1"))
	require.NoError(t, err)
	assert.Equal(t, DecisionRejected, v.Decision)
	assert.Equal(t, ReasonNotFound, v.Reason)
}

func TestApplySeqMonotonicAndReplay(t *testing.T) {
	store := newMemStore()
	store.add("TRX-1", StatusInitiated)
	auth := NewAuthority(store, &memSink{})

	inputs := []Input{
		webhookInput("TRX-1", StatusPending, "ev-1"),
		{Code: "TRX-1", Source: SourcePoll, Observed: StatusPending, GatewayEventID: "poll-1"},
		webhookInput("TRX-1", StatusSettled, "ev-2"),
		webhookInput("TRX-1", StatusPending, "ev-3"),
		webhookInput("TRX-1", StatusRefunded, "ev-4"),
	}
	for _, in := range inputs {
		_, err := auth.Apply(context.Background(), in)
		require.NoError(t, err)
	}

	records := store.logs["TRX-1"]
	require.Len(t, records, len(inputs))
	for i, rec := range records {
		assert.Equal(t, uint64(i+1), rec.Seq)
	}

	assert.Equal(t, string(StatusRefunded), store.trx["TRX-1"].Status)
	assert.Equal(t, StatusRefunded, Replay(records))
}

func TestApplyConcurrentSameEventSingleWinner(t *testing.T) {
	store := newMemStore()
	sink := &memSink{}
	store.add("TRX-1", StatusPending)
	auth := NewAuthority(store, sink)

	in := webhookInput("TRX-1", StatusSettled, "ev-42")

	const n = 16
	var wg sync.WaitGroup
	accepted := make(chan Verdict, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := auth.Apply(context.Background(), in)
			if !assert.NoError(t, err) {
				return
			}
			if v.Accepted() {
				accepted <- v
			}
		}()
	}
	wg.Wait()
	close(accepted)

	assert.Len(t, accepted, 1)
	assert.Equal(t, 1, sink.count())
	assert.Equal(t, string(StatusSettled), store.trx["TRX-1"].Status)
	assert.Equal(t, StatusSettled, Replay(store.logs["TRX-1"]))
}

func TestReplayUnordered(t *testing.T) {
	records := []model.TransitionRecord{
		{Seq: 3, Decision: string(DecisionRejected), ResultStatus: string(StatusSettled)},
		{Seq: 1, Decision: string(DecisionAccepted), ResultStatus: string(StatusPending)},
		{Seq: 2, Decision: string(DecisionAccepted), ResultStatus: string(StatusSettled)},
	}
	assert.Equal(t, StatusSettled, Replay(records))
}
