package ledger

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrTxClosed is returned when a committed or aborted Tx is used again.
	ErrTxClosed = errors.New("transaction already closed")

	// ErrIteratorExhausted is returned by Next when HasNext would be false.
	ErrIteratorExhausted = errors.New("iterator exhausted")

	// ErrEmptyKey is returned when writing under an empty key.
	ErrEmptyKey = errors.New("key must not be empty")

	// ErrEmptyValue is returned by PutState for a nil or empty value.
	ErrEmptyValue = errors.New("value must not be empty")
)

// State is the view of the ledger available to a single transaction.
type State interface {
	// GetState returns the latest committed value of key, or nil if the
	// key has no value.
	GetState(ctx context.Context, key string) ([]byte, error)

	// PutState records a write of value under key. The write becomes
	// visible when the enclosing transaction commits.
	PutState(ctx context.Context, key string, value []byte) error

	// DelState records a deletion of key.
	DelState(ctx context.Context, key string) error

	// CreateCompositeKey encodes objectType and attributes into one key.
	CreateCompositeKey(objectType string, attributes []string) (string, error)

	// SplitCompositeKey reverses CreateCompositeKey.
	SplitCompositeKey(key string) (string, []string, error)

	// GetHistoryForKey returns every committed version of key, oldest first.
	GetHistoryForKey(ctx context.Context, key string) (HistoryIterator, error)

	// GetStateByPartialCompositeKey returns the latest values of all keys
	// whose composite prefix matches objectType and attributes, in key order.
	GetStateByPartialCompositeKey(ctx context.Context, objectType string, attributes []string) (StateIterator, error)

	// TxID returns the id of the enclosing transaction.
	TxID() string

	// TxTimestamp returns the timestamp of the enclosing transaction.
	TxTimestamp() time.Time
}

// KeyModification is one committed version of a key.
type KeyModification struct {
	TxID      string
	Value     []byte
	Timestamp time.Time
	IsDelete  bool
}

// KV is a key with its latest committed value.
type KV struct {
	Key   string
	Value []byte
}

// HistoryIterator yields the versions of a key in commit order.
// Callers must Close it, including after it is exhausted.
type HistoryIterator interface {
	HasNext() bool
	Next() (*KeyModification, error)
	Close() error
}

// StateIterator yields key/value pairs of a range scan.
// Callers must Close it, including after it is exhausted.
type StateIterator interface {
	HasNext() bool
	Next() (*KV, error)
	Close() error
}
