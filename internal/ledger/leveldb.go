package ledger

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// Key layout:
//
//	s<key>                          latest value
//	h<len(key) u32><key><seq u64>   one version, big-endian so seq sorts
//	m:seq                           last assigned seq
const (
	statePrefix   = 's'
	historyPrefix = 'h'
)

var seqKey = []byte("m:seq")

// LevelDB is a Backend stored in a goleveldb database.
type LevelDB struct {
	db *leveldb.DB

	mu  sync.Mutex // serializes Apply
	seq uint64
}

var _ Backend = (*LevelDB)(nil)

// versionRecord is the on-disk form of a history entry.
type versionRecord struct {
	TxID        string `json:"tx_id"`
	TimestampNS int64  `json:"ts"`
	Value       []byte `json:"value,omitempty"`
	IsDelete    bool   `json:"is_delete,omitempty"`
}

// OpenLevelDB creates or opens a ledger database in directory path.
func OpenLevelDB(path string) (*LevelDB, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open leveldb: %w", err)
	}
	return newLevelDB(db)
}

// OpenLevelDBMemory opens a LevelDB backend on in-memory storage.
func OpenLevelDBMemory() (*LevelDB, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open leveldb: %w", err)
	}
	return newLevelDB(db)
}

func newLevelDB(db *leveldb.DB) (*LevelDB, error) {
	l := &LevelDB{db: db}
	raw, err := db.Get(seqKey, nil)
	switch {
	case errors.Is(err, leveldb.ErrNotFound):
	case err != nil:
		db.Close()
		return nil, fmt.Errorf("failed to read sequence: %w", err)
	case len(raw) != 8:
		db.Close()
		return nil, fmt.Errorf("corrupt sequence: %d bytes", len(raw))
	default:
		l.seq = binary.BigEndian.Uint64(raw)
	}
	return l, nil
}

// Close implements Backend.
func (l *LevelDB) Close() error {
	return l.db.Close()
}

// Get implements Backend.
func (l *LevelDB) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := l.db.Get(stateKey(key), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read state: %w", err)
	}
	return value, nil
}

// History implements Backend.
func (l *LevelDB) History(ctx context.Context, key string) (HistoryIterator, error) {
	iter := l.db.NewIterator(util.BytesPrefix(historyKeyPrefix(key)), nil)
	return newCursor(func() (KeyModification, bool, error) {
		if !iter.Next() {
			return KeyModification{}, false, iter.Error()
		}
		var rec versionRecord
		if err := json.Unmarshal(iter.Value(), &rec); err != nil {
			return KeyModification{}, false, fmt.Errorf("decode version of %q: %w", key, err)
		}
		return KeyModification{
			TxID:      rec.TxID,
			Value:     rec.Value,
			Timestamp: time.Unix(0, rec.TimestampNS).UTC(),
			IsDelete:  rec.IsDelete,
		}, true, nil
	}, releaser(iter)), nil
}

// Scan implements Backend.
func (l *LevelDB) Scan(ctx context.Context, start, end string) (StateIterator, error) {
	iter := l.db.NewIterator(&util.Range{Start: stateKey(start), Limit: stateKey(end)}, nil)
	return newCursor(func() (KV, bool, error) {
		if !iter.Next() {
			return KV{}, false, iter.Error()
		}
		return KV{
			Key:   string(iter.Key()[1:]),
			Value: slices.Clone(iter.Value()),
		}, true, nil
	}, releaser(iter)), nil
}

// Apply implements Backend. The batch and the advanced sequence are written
// with a single leveldb.Batch.
func (l *LevelDB) Apply(ctx context.Context, batch Batch) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	seq := l.seq
	b := new(leveldb.Batch)
	for _, w := range batch.Writes {
		seq++
		rec, err := json.Marshal(versionRecord{
			TxID:        batch.TxID,
			TimestampNS: batch.Timestamp.UnixNano(),
			Value:       w.Value,
			IsDelete:    w.IsDelete,
		})
		if err != nil {
			return fmt.Errorf("apply batch: encode version: %w", err)
		}
		b.Put(historyKey(w.Key, seq), rec)
		if w.IsDelete {
			b.Delete(stateKey(w.Key))
		} else {
			b.Put(stateKey(w.Key), w.Value)
		}
	}
	b.Put(seqKey, binary.BigEndian.AppendUint64(nil, seq))

	if err := l.db.Write(b, nil); err != nil {
		return fmt.Errorf("apply batch: %w", err)
	}
	l.seq = seq
	return nil
}

func releaser(iter iterator.Iterator) func() error {
	return func() error {
		iter.Release()
		return iter.Error()
	}
}

func stateKey(key string) []byte {
	out := make([]byte, 0, 1+len(key))
	out = append(out, statePrefix)
	return append(out, key...)
}

func historyKeyPrefix(key string) []byte {
	out := make([]byte, 0, 5+len(key)+8)
	out = append(out, historyPrefix)
	out = binary.BigEndian.AppendUint32(out, uint32(len(key)))
	return append(out, key...)
}

func historyKey(key string, seq uint64) []byte {
	return binary.BigEndian.AppendUint64(historyKeyPrefix(key), seq)
}
