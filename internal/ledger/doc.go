// Package ledger implements the append-only, key-versioned storage substrate
// that the passport record store runs on.
//
// The package exposes the narrow surface a chaincode-style core needs:
//   - State: the per-transaction view (get, put, composite keys, history,
//     partial composite key range scans)
//   - HistoryIterator / StateIterator: pull iterators that must be closed
//   - Ledger / Tx: transactions with a buffered write set committed atomically
//   - Backend: the persistence engine behind a Ledger
//
// # Transactions
//
// Every invocation runs inside one Tx. Reads observe the last committed
// state only; a Tx never reads its own uncommitted writes. Writes are kept
// in a write set (last write to a key wins) and applied by Commit in a
// single backend batch, so a Tx either lands completely or not at all.
// Abort drops the write set.
//
// # Versions
//
// Each committed write appends one version to the key's history, stamped
// with the transaction id and timestamp. Histories are returned oldest
// first, in commit order. Nothing is ever rewritten in place.
//
// # Backends
//
//   - SQLite (mattn/go-sqlite3): versions table ordered by an autoincrement
//     seq, plus a state table holding the latest version per key
//   - LevelDB (syndtr/goleveldb): state and history under separate key
//     prefixes, written through a leveldb.Batch
//   - Memory: mutex-guarded maps for tests and scenario runs
//
// # Composite Keys
//
// Composite keys follow the Fabric encoding: 0x00, the object type, 0x00,
// then each attribute followed by 0x00. Attributes may not contain 0x00 or
// U+10FFFF, which keeps the encoding lossless and makes every key sharing
// leading attributes a contiguous range.
package ledger
