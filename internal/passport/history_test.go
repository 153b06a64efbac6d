package passport

import (
	"errors"
	"testing"
	"time"

	"github.com/roach88/healthpass/internal/ledger"
	"github.com/roach88/healthpass/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistory_CreateThenMutate(t *testing.T) {
	l := newTestLedger(t)
	mustCreate(t, l, sampleRecord("p1"))
	require.NoError(t, inTx(t, l, func(s *Store) error {
		return s.SetValidationState(t.Context(), "p1", Valid)
	}))

	entries, err := NewStore(l.Begin()).History(t.Context(), "p1")
	require.NoError(t, err)
	require.Len(t, entries, 2)

	require.NotNil(t, entries[0].Record)
	require.NotNil(t, entries[1].Record)
	assert.Equal(t, NotValidated, entries[0].Record.ValidationState)
	assert.Equal(t, Valid, entries[1].Record.ValidationState)
	assert.NotEqual(t, entries[0].TxID, entries[1].TxID)
	assert.True(t, entries[1].Timestamp.After(entries[0].Timestamp))
	assert.False(t, entries[0].IsDelete)
}

func TestHistory_MalformedVersionKept(t *testing.T) {
	l := newTestLedger(t)
	ctx := t.Context()
	mustCreate(t, l, sampleRecord("p1"))

	tx := l.Begin()
	require.NoError(t, tx.PutState(ctx, "p1", []byte("{corrupt")))
	require.NoError(t, tx.Commit(ctx))

	fixed := sampleRecord("p1")
	fixed.ValidationState = Valid
	fixed.VaccinationState = FirstDose
	data, err := Encode(fixed)
	require.NoError(t, err)
	tx = l.Begin()
	require.NoError(t, tx.PutState(ctx, "p1", data))
	require.NoError(t, tx.Commit(ctx))

	entries, err := NewStore(l.Begin()).History(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.NotNil(t, entries[0].Record)
	assert.Nil(t, entries[1].Record)
	assert.Equal(t, []byte("{corrupt"), entries[1].Raw)
	require.NotNil(t, entries[2].Record)
	assert.Equal(t, fixed, *entries[2].Record)
}

func TestHistory_NeverWritten(t *testing.T) {
	l := newTestLedger(t)
	entries, err := NewStore(l.Begin()).History(t.Context(), "ghost")
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
}

func TestHistory_EmptyID(t *testing.T) {
	state := new(mockState)
	_, err := NewStore(state).History(t.Context(), "")
	assert.True(t, IsInvalidArgument(err))
	assert.Empty(t, state.Calls)
}

func TestReplay_SkipsEmptyValues(t *testing.T) {
	encoded := []byte(sampleEncoded)
	it := newFakeHistory(
		ledger.KeyModification{TxID: "tx-1", Value: encoded},
		ledger.KeyModification{TxID: "tx-2", IsDelete: true},
		ledger.KeyModification{TxID: "tx-3", Value: []byte{}},
		ledger.KeyModification{TxID: "tx-4", Value: encoded},
	)

	entries, err := Replay(it)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "tx-1", entries[0].TxID)
	assert.Equal(t, "tx-4", entries[1].TxID)
	assert.Equal(t, 1, it.closed)
}

func TestReplay_ClosesEmptyIterator(t *testing.T) {
	it := newFakeHistory()
	entries, err := Replay(it)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Equal(t, 1, it.closed)
}

func TestReplay_ClosesAfterOnlySkippedEntries(t *testing.T) {
	it := newFakeHistory(ledger.KeyModification{TxID: "tx-1"})
	entries, err := Replay(it)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Equal(t, 1, it.closed)
}

func TestReplay_IteratorErrorAborts(t *testing.T) {
	boom := errors.New("peer went away")
	it := newFakeHistory(
		ledger.KeyModification{TxID: "tx-1", Value: []byte(sampleEncoded)},
		ledger.KeyModification{TxID: "tx-2", Value: []byte(sampleEncoded)},
	)
	it.failAt = 1
	it.err = boom

	entries, err := Replay(it)
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, entries)
	assert.Equal(t, 1, it.closed)
}

func TestMarshalHistory(t *testing.T) {
	r, err := Decode([]byte(sampleEncoded))
	require.NoError(t, err)

	entries := []HistoryEntry{
		{TxID: "tx-1", Timestamp: testutil.Epoch, Record: &r},
		{TxID: "tx-2", Timestamp: testutil.Epoch.Add(1500 * time.Millisecond), Raw: []byte(`{corrupt "x"`)},
	}

	data, err := MarshalHistory(entries)
	require.NoError(t, err)
	assert.Equal(t,
		`[{"isDelete":false,"timestamp":"2021-03-01T12:00:00Z","txId":"tx-1","value":`+sampleEncoded+`},`+
			`{"isDelete":false,"timestamp":"2021-03-01T12:00:01.5Z","txId":"tx-2","value":"{corrupt \"x\""}]`,
		string(data))
}

func TestMarshalHistory_Empty(t *testing.T) {
	data, err := MarshalHistory([]HistoryEntry{})
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))
}

func TestMarshalHistory_InvalidUTF8Raw(t *testing.T) {
	data, err := MarshalHistory([]HistoryEntry{{TxID: "tx-1", Timestamp: testutil.Epoch, Raw: []byte{'a', 0xff}}})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"value":"a`+"\uFFFD"+`"`)
	assert.Contains(t, string(data), `"rawBase64":"Yf8="`)
}

func TestMarshalHistory_ValidRawHasNoBase64(t *testing.T) {
	data, err := MarshalHistory([]HistoryEntry{{TxID: "tx-1", Timestamp: testutil.Epoch, Raw: []byte("not json")}})
	require.NoError(t, err)
	assert.NotContains(t, string(data), "rawBase64")
}

func TestHistoryEntry_MarshalJSON(t *testing.T) {
	data, err := HistoryEntry{TxID: "tx-1", Timestamp: testutil.Epoch, Raw: []byte("x")}.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `{"isDelete":false,"timestamp":"2021-03-01T12:00:00Z","txId":"tx-1","value":"x"}`, string(data))
}
