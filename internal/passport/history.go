package passport

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/roach88/healthpass/internal/canonical"
	"github.com/roach88/healthpass/internal/ledger"
)

// HistoryEntry is one committed version of a passport. Record is set when
// the stored value decoded; otherwise Raw holds the payload as stored.
type HistoryEntry struct {
	TxID      string
	Timestamp time.Time
	IsDelete  bool
	Record    *Record
	Raw       []byte
}

// Replay drains it into history entries, in the order the iterator yields
// them. Versions with an empty value are skipped. A value that does not
// decode becomes an entry carrying the raw payload. The iterator is closed
// before Replay returns, whatever the outcome.
func Replay(it ledger.HistoryIterator) (entries []HistoryEntry, err error) {
	defer func() {
		if cerr := it.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close history iterator: %w", cerr)
		}
	}()

	entries = []HistoryEntry{}
	for it.HasNext() {
		km, err := it.Next()
		if err != nil {
			return nil, fmt.Errorf("replay history: %w", err)
		}
		if len(km.Value) == 0 {
			continue
		}
		entry := HistoryEntry{
			TxID:      km.TxID,
			Timestamp: km.Timestamp,
			IsDelete:  km.IsDelete,
		}
		if r, err := Decode(km.Value); err == nil {
			entry.Record = &r
		} else {
			entry.Raw = km.Value
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (e HistoryEntry) fields() map[string]any {
	m := map[string]any{
		"txId":      e.TxID,
		"timestamp": e.Timestamp.UTC().Format(time.RFC3339Nano),
		"isDelete":  e.IsDelete,
	}
	if e.Record != nil {
		m["value"] = e.Record.fields()
	} else {
		m["value"] = rawString(e.Raw)
		if !utf8.Valid(e.Raw) {
			m["rawBase64"] = base64.StdEncoding.EncodeToString(e.Raw)
		}
	}
	return m
}

// MarshalJSON implements json.Marshaler with the canonical encoding.
func (e HistoryEntry) MarshalJSON() ([]byte, error) {
	return canonical.Marshal(e.fields())
}

// MarshalHistory encodes entries as a canonical JSON array.
func MarshalHistory(entries []HistoryEntry) ([]byte, error) {
	list := make([]any, len(entries))
	for i, e := range entries {
		list[i] = e.fields()
	}
	data, err := canonical.Marshal(list)
	if err != nil {
		return nil, fmt.Errorf("encode history: %w", err)
	}
	return data, nil
}

// MarshalRecords encodes records as a canonical JSON array.
func MarshalRecords(records []Record) ([]byte, error) {
	list := make([]any, len(records))
	for i, r := range records {
		list[i] = r.fields()
	}
	data, err := canonical.Marshal(list)
	if err != nil {
		return nil, fmt.Errorf("encode records: %w", err)
	}
	return data, nil
}

// rawString renders an undecodable payload as a JSON string. Invalid UTF-8
// sequences become U+FFFD; fields adds the exact bytes as rawBase64.
func rawString(raw []byte) string {
	if utf8.Valid(raw) {
		return string(raw)
	}
	return strings.ToValidUTF8(string(raw), "\uFFFD")
}
