package ledger

import (
	"path/filepath"
	"testing"

	"github.com/roach88/healthpass/internal/testutil"
	"github.com/stretchr/testify/require"
)

// backendFactories opens each backend on fresh storage.
var backendFactories = map[string]func(t *testing.T) Backend{
	"memory": func(t *testing.T) Backend {
		return NewMemory()
	},
	"sqlite": func(t *testing.T) Backend {
		t.Helper()
		b, err := OpenSQLite(filepath.Join(t.TempDir(), "ledger.db"))
		require.NoError(t, err)
		return b
	},
	"leveldb": func(t *testing.T) Backend {
		t.Helper()
		b, err := OpenLevelDB(filepath.Join(t.TempDir(), "ledger"))
		require.NoError(t, err)
		return b
	},
}

func newTestLedger(t *testing.T, backend Backend) *Ledger {
	t.Helper()
	l := New(backend,
		WithTxIDSource(testutil.NewTxIDSequence("").Next),
		WithClock(testutil.NewDeterministicClock().Now),
	)
	t.Cleanup(func() { l.Close() })
	return l
}

// commit runs fn inside a fresh transaction and commits it.
func commit(t *testing.T, l *Ledger, fn func(tx *Tx)) string {
	t.Helper()
	tx := l.Begin()
	fn(tx)
	require.NoError(t, tx.Commit(t.Context()))
	return tx.TxID()
}

func drainHistory(t *testing.T, it HistoryIterator) []KeyModification {
	t.Helper()
	defer it.Close()
	out := []KeyModification{}
	for it.HasNext() {
		km, err := it.Next()
		require.NoError(t, err)
		out = append(out, *km)
	}
	return out
}

func drainState(t *testing.T, it StateIterator) []KV {
	t.Helper()
	defer it.Close()
	out := []KV{}
	for it.HasNext() {
		kv, err := it.Next()
		require.NoError(t, err)
		out = append(out, *kv)
	}
	return out
}
