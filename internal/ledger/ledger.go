package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Backend persists committed versions.
//
// Implementations must apply a Batch atomically and must return history in
// the order batches were applied.
type Backend interface {
	// Get returns the latest value of key, or nil if it has none.
	Get(ctx context.Context, key string) ([]byte, error)

	// History returns every version of key, oldest first.
	History(ctx context.Context, key string) (HistoryIterator, error)

	// Scan returns the latest values of keys in [start, end), in key order.
	Scan(ctx context.Context, start, end string) (StateIterator, error)

	// Apply commits a batch of writes as one transaction.
	Apply(ctx context.Context, batch Batch) error

	// Close releases the backend.
	Close() error
}

// Write is one entry of a transaction's write set.
type Write struct {
	Key      string
	Value    []byte
	IsDelete bool
}

// Batch is the committed write set of one transaction.
type Batch struct {
	TxID      string
	Timestamp time.Time
	Writes    []Write
}

// Ledger hands out transactions over a Backend.
type Ledger struct {
	backend Backend
	newTxID func() string
	now     func() time.Time
	logger  *slog.Logger
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithTxIDSource overrides how transaction ids are generated.
func WithTxIDSource(f func() string) Option {
	return func(l *Ledger) { l.newTxID = f }
}

// WithClock overrides the transaction timestamp source.
func WithClock(f func() time.Time) Option {
	return func(l *Ledger) { l.now = f }
}

// WithLogger sets the logger used for commit diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) { l.logger = logger }
}

// New creates a Ledger over backend. Transaction ids default to UUIDv7 and
// timestamps to the wall clock in UTC.
func New(backend Backend, opts ...Option) *Ledger {
	l := &Ledger{
		backend: backend,
		newTxID: NewTxID,
		now:     func() time.Time { return time.Now().UTC() },
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// NewTxID returns a UUIDv7 transaction id. UUIDv7 ids sort by creation time,
// which keeps ids roughly aligned with commit order when read by humans.
func NewTxID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Begin starts a transaction.
func (l *Ledger) Begin() *Tx {
	return &Tx{
		ledger: l,
		id:     l.newTxID(),
		ts:     l.now(),
		pos:    make(map[string]int),
	}
}

// Close closes the backend.
func (l *Ledger) Close() error {
	return l.backend.Close()
}

// Tx is a single ledger transaction. It implements State.
// A Tx is not safe for concurrent use.
type Tx struct {
	ledger *Ledger
	id     string
	ts     time.Time
	writes []Write
	pos    map[string]int
	closed bool
}

var _ State = (*Tx)(nil)

// TxID implements State.
func (tx *Tx) TxID() string { return tx.id }

// TxTimestamp implements State.
func (tx *Tx) TxTimestamp() time.Time { return tx.ts }

// GetState implements State. Uncommitted writes of tx are not visible.
func (tx *Tx) GetState(ctx context.Context, key string) ([]byte, error) {
	if tx.closed {
		return nil, ErrTxClosed
	}
	value, err := tx.ledger.backend.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("get state %q: %w", key, err)
	}
	return value, nil
}

// PutState implements State.
func (tx *Tx) PutState(ctx context.Context, key string, value []byte) error {
	if len(value) == 0 {
		return ErrEmptyValue
	}
	stored := make([]byte, len(value))
	copy(stored, value)
	return tx.record(Write{Key: key, Value: stored})
}

// DelState implements State.
func (tx *Tx) DelState(ctx context.Context, key string) error {
	return tx.record(Write{Key: key, IsDelete: true})
}

func (tx *Tx) record(w Write) error {
	if tx.closed {
		return ErrTxClosed
	}
	if w.Key == "" {
		return ErrEmptyKey
	}
	if i, ok := tx.pos[w.Key]; ok {
		tx.writes[i] = w
		return nil
	}
	tx.pos[w.Key] = len(tx.writes)
	tx.writes = append(tx.writes, w)
	return nil
}

// CreateCompositeKey implements State.
func (tx *Tx) CreateCompositeKey(objectType string, attributes []string) (string, error) {
	return CreateCompositeKey(objectType, attributes)
}

// SplitCompositeKey implements State.
func (tx *Tx) SplitCompositeKey(key string) (string, []string, error) {
	return SplitCompositeKey(key)
}

// GetHistoryForKey implements State.
func (tx *Tx) GetHistoryForKey(ctx context.Context, key string) (HistoryIterator, error) {
	if tx.closed {
		return nil, ErrTxClosed
	}
	it, err := tx.ledger.backend.History(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("get history %q: %w", key, err)
	}
	return it, nil
}

// GetStateByPartialCompositeKey implements State.
func (tx *Tx) GetStateByPartialCompositeKey(ctx context.Context, objectType string, attributes []string) (StateIterator, error) {
	if tx.closed {
		return nil, ErrTxClosed
	}
	start, end, err := partialCompositeKeyRange(objectType, attributes)
	if err != nil {
		return nil, err
	}
	it, err := tx.ledger.backend.Scan(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("scan %q: %w", objectType, err)
	}
	return it, nil
}

// Writes returns a copy of the pending write set, in first-write order.
func (tx *Tx) Writes() []Write {
	out := make([]Write, len(tx.writes))
	copy(out, tx.writes)
	return out
}

// Commit applies the write set atomically. A transaction without writes
// commits without touching the backend.
func (tx *Tx) Commit(ctx context.Context) error {
	if tx.closed {
		return ErrTxClosed
	}
	tx.closed = true
	if len(tx.writes) == 0 {
		return nil
	}
	batch := Batch{TxID: tx.id, Timestamp: tx.ts, Writes: tx.writes}
	if err := tx.ledger.backend.Apply(ctx, batch); err != nil {
		return fmt.Errorf("commit %s: %w", tx.id, err)
	}
	tx.ledger.logger.Debug("transaction committed",
		"tx_id", tx.id,
		"writes", len(tx.writes),
	)
	return nil
}

// Abort discards the write set.
func (tx *Tx) Abort() {
	if tx.closed {
		return
	}
	tx.closed = true
	tx.ledger.logger.Debug("transaction aborted",
		"tx_id", tx.id,
		"writes", len(tx.writes),
	)
	tx.writes = nil
}
