package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Every backend must satisfy the same observable contract.
func TestBackends(t *testing.T) {
	for name, open := range backendFactories {
		t.Run(name, func(t *testing.T) {
			t.Run("GetMissing", func(t *testing.T) {
				l := newTestLedger(t, open(t))
				got, err := l.Begin().GetState(t.Context(), "missing")
				require.NoError(t, err)
				assert.Nil(t, got)
			})

			t.Run("HistoryOrder", func(t *testing.T) {
				l := newTestLedger(t, open(t))
				ctx := t.Context()

				tx1 := commit(t, l, func(tx *Tx) { require.NoError(t, tx.PutState(ctx, "p1", []byte("v1"))) })
				tx2 := commit(t, l, func(tx *Tx) { require.NoError(t, tx.PutState(ctx, "p1", []byte("v2"))) })
				tx3 := commit(t, l, func(tx *Tx) { require.NoError(t, tx.DelState(ctx, "p1")) })

				history := drainHistory(t, mustHistory(t, l, "p1"))
				require.Len(t, history, 3)

				assert.Equal(t, tx1, history[0].TxID)
				assert.Equal(t, []byte("v1"), history[0].Value)
				assert.False(t, history[0].IsDelete)

				assert.Equal(t, tx2, history[1].TxID)
				assert.Equal(t, []byte("v2"), history[1].Value)
				assert.True(t, history[1].Timestamp.After(history[0].Timestamp))

				assert.Equal(t, tx3, history[2].TxID)
				assert.True(t, history[2].IsDelete)
				assert.Empty(t, history[2].Value)

				got, err := l.Begin().GetState(ctx, "p1")
				require.NoError(t, err)
				assert.Nil(t, got, "deleted key reads as absent")
			})

			t.Run("HistoryEmpty", func(t *testing.T) {
				l := newTestLedger(t, open(t))
				assert.Empty(t, drainHistory(t, mustHistory(t, l, "nope")))
			})

			t.Run("HistoryIsolatedPerKey", func(t *testing.T) {
				l := newTestLedger(t, open(t))
				ctx := t.Context()
				commit(t, l, func(tx *Tx) {
					require.NoError(t, tx.PutState(ctx, "p1", []byte("a")))
					require.NoError(t, tx.PutState(ctx, "p10", []byte("b")))
				})
				history := drainHistory(t, mustHistory(t, l, "p1"))
				require.Len(t, history, 1)
				assert.Equal(t, []byte("a"), history[0].Value)
			})

			t.Run("PartialCompositeKeyScan", func(t *testing.T) {
				l := newTestLedger(t, open(t))
				ctx := t.Context()

				commit(t, l, func(tx *Tx) {
					for _, attrs := range [][]string{
						{"MX", "p2"}, {"MX", "p1"}, {"MXA", "p3"}, {"CA", "p4"},
					} {
						key, err := tx.CreateCompositeKey("country~id", attrs)
						require.NoError(t, err)
						require.NoError(t, tx.PutState(ctx, key, []byte{0x00}))
					}
					require.NoError(t, tx.PutState(ctx, "p1", []byte("{}")))
				})

				it, err := l.Begin().GetStateByPartialCompositeKey(ctx, "country~id", []string{"MX"})
				require.NoError(t, err)
				kvs := drainState(t, it)
				require.Len(t, kvs, 2)

				var ids []string
				for _, kv := range kvs {
					objectType, attrs, err := SplitCompositeKey(kv.Key)
					require.NoError(t, err)
					assert.Equal(t, "country~id", objectType)
					assert.Equal(t, []byte{0x00}, kv.Value)
					ids = append(ids, attrs[1])
				}
				assert.Equal(t, []string{"p1", "p2"}, ids)
			})

			t.Run("BatchAtomicAcrossKeys", func(t *testing.T) {
				l := newTestLedger(t, open(t))
				ctx := t.Context()
				txID := commit(t, l, func(tx *Tx) {
					require.NoError(t, tx.PutState(ctx, "a", []byte("1")))
					require.NoError(t, tx.PutState(ctx, "b", []byte("2")))
				})
				for _, key := range []string{"a", "b"} {
					history := drainHistory(t, mustHistory(t, l, key))
					require.Len(t, history, 1)
					assert.Equal(t, txID, history[0].TxID)
				}
			})
		})
	}
}
