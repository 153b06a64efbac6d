package testutil

import (
	"fmt"
	"sync"
)

// TxIDSequence generates predictable transaction ids: prefix-000001,
// prefix-000002, ...
//
// Thread-safety: Next is safe for concurrent use.
type TxIDSequence struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewTxIDSequence creates a sequence. If prefix is empty, "tx" is used.
func NewTxIDSequence(prefix string) *TxIDSequence {
	if prefix == "" {
		prefix = "tx"
	}
	return &TxIDSequence{prefix: prefix}
}

// Next returns the next id.
func (s *TxIDSequence) Next() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("%s-%06d", s.prefix, s.n)
}
