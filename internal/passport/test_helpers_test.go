package passport

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/roach88/healthpass/internal/ledger"
	"github.com/roach88/healthpass/internal/testutil"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func sampleRecord(id string) Record {
	return Record{
		ID:              id,
		FirstName:       "Ana",
		LastName:        "Lopez",
		DOB:             "1990-01-01",
		SourceReference: "https://docs.example/" + id,
		SubjectNumber:   "S-1",
		Country:         "MX",
		ExternalHash:    "abc",
	}
}

func newTestLedger(t *testing.T) *ledger.Ledger {
	t.Helper()
	l := ledger.New(ledger.NewMemory(),
		ledger.WithTxIDSource(testutil.NewTxIDSequence("").Next),
		ledger.WithClock(testutil.NewDeterministicClock().Now),
		ledger.WithLogger(discardLogger),
	)
	t.Cleanup(func() { l.Close() })
	return l
}

// inTx runs fn against a store over a fresh transaction. The transaction
// commits when fn succeeds and aborts otherwise.
func inTx(t *testing.T, l *ledger.Ledger, fn func(s *Store) error) error {
	t.Helper()
	tx := l.Begin()
	if err := fn(NewStore(tx, WithLogger(discardLogger))); err != nil {
		tx.Abort()
		return err
	}
	require.NoError(t, tx.Commit(t.Context()))
	return nil
}

func mustCreate(t *testing.T, l *ledger.Ledger, r Record) {
	t.Helper()
	require.NoError(t, inTx(t, l, func(s *Store) error { return s.Create(t.Context(), r) }))
}

func readRaw(t *testing.T, l *ledger.Ledger, key string) []byte {
	t.Helper()
	data, err := l.Begin().GetState(t.Context(), key)
	require.NoError(t, err)
	return data
}

// mockState is a ledger.State double. Composite key helpers are the real
// pure functions; everything that touches the ledger goes through the mock.
type mockState struct {
	mock.Mock
}

var _ ledger.State = (*mockState)(nil)

func (m *mockState) GetState(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	data, _ := args.Get(0).([]byte)
	return data, args.Error(1)
}

func (m *mockState) PutState(ctx context.Context, key string, value []byte) error {
	return m.Called(ctx, key, value).Error(0)
}

func (m *mockState) DelState(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

func (m *mockState) CreateCompositeKey(objectType string, attributes []string) (string, error) {
	return ledger.CreateCompositeKey(objectType, attributes)
}

func (m *mockState) SplitCompositeKey(key string) (string, []string, error) {
	return ledger.SplitCompositeKey(key)
}

func (m *mockState) GetHistoryForKey(ctx context.Context, key string) (ledger.HistoryIterator, error) {
	args := m.Called(ctx, key)
	it, _ := args.Get(0).(ledger.HistoryIterator)
	return it, args.Error(1)
}

func (m *mockState) GetStateByPartialCompositeKey(ctx context.Context, objectType string, attributes []string) (ledger.StateIterator, error) {
	args := m.Called(ctx, objectType, attributes)
	it, _ := args.Get(0).(ledger.StateIterator)
	return it, args.Error(1)
}

func (m *mockState) TxID() string { return "mock-tx" }

func (m *mockState) TxTimestamp() time.Time { return testutil.Epoch }

// fakeHistory is a scripted HistoryIterator.
type fakeHistory struct {
	items  []ledger.KeyModification
	failAt int // index whose Next returns err; -1 for never
	err    error
	pos    int
	closed int
}

func newFakeHistory(items ...ledger.KeyModification) *fakeHistory {
	return &fakeHistory{items: items, failAt: -1}
}

func (f *fakeHistory) HasNext() bool { return f.pos < len(f.items) }

func (f *fakeHistory) Next() (*ledger.KeyModification, error) {
	if f.pos >= len(f.items) {
		return nil, ledger.ErrIteratorExhausted
	}
	i := f.pos
	f.pos++
	if i == f.failAt {
		return nil, f.err
	}
	km := f.items[i]
	return &km, nil
}

func (f *fakeHistory) Close() error {
	f.closed++
	return nil
}
