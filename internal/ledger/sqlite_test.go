package ledger

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestOpenSQLite_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpenSQLite_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		s, err := OpenSQLite(path)
		if err != nil {
			t.Fatalf("OpenSQLite() iteration %d failed: %v", i, err)
		}
		s.Close()
	}

	s, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("final OpenSQLite() failed: %v", err)
	}
	defer s.Close()

	for _, table := range []string{"versions", "state"} {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found after idempotent opens: %v", table, err)
		}
	}
}

func TestOpenSQLite_Pragmas(t *testing.T) {
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("OpenSQLite() failed: %v", err)
	}
	defer s.Close()

	checks := map[string]string{
		"journal_mode": "wal",
		"synchronous":  "1",
		"busy_timeout": "5000",
		"foreign_keys": "1",
		"user_version": "1",
	}
	for name, want := range checks {
		if err := s.verifyPragma(name, want); err != nil {
			t.Error(err)
		}
	}
}

func TestSQLite_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	ctx := t.Context()
	ts := time.Date(2021, 3, 1, 12, 0, 0, 123, time.UTC)

	s, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite() failed: %v", err)
	}
	err = s.Apply(ctx, Batch{TxID: "tx-1", Timestamp: ts, Writes: []Write{
		{Key: "\x00country~id\x00MX\x00p1\x00", Value: []byte{0x00}},
		{Key: "p1", Value: []byte(`{"id":"p1"}`)},
	}})
	if err != nil {
		t.Fatalf("Apply() failed: %v", err)
	}
	s.Close()

	s, err = OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s.Close()

	got, err := s.Get(ctx, "p1")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if string(got) != `{"id":"p1"}` {
		t.Errorf("Get() = %q", got)
	}

	it, err := s.History(ctx, "p1")
	if err != nil {
		t.Fatalf("History() failed: %v", err)
	}
	defer it.Close()
	km, err := it.Next()
	if err != nil {
		t.Fatalf("Next() failed: %v", err)
	}
	if !km.Timestamp.Equal(ts) {
		t.Errorf("timestamp = %v, want %v", km.Timestamp, ts)
	}

	keys, err := s.TxWrites(ctx, "tx-1")
	if err != nil {
		t.Fatalf("TxWrites() failed: %v", err)
	}
	if len(keys) != 2 || keys[1] != "p1" {
		t.Errorf("TxWrites() = %q", keys)
	}
}
