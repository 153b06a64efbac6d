package cli

import (
	"fmt"
	"log/slog"

	"github.com/roach88/healthpass/internal/config"
	"github.com/roach88/healthpass/internal/ledger"
)

// openBackend opens the ledger backend named by cfg.
func openBackend(cfg *config.Config) (ledger.Backend, error) {
	switch cfg.Backend {
	case config.BackendSQLite:
		return ledger.OpenSQLite(cfg.DBPath())
	case config.BackendLevelDB:
		return ledger.OpenLevelDB(cfg.DBPath())
	case config.BackendMemory:
		return ledger.NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

// openLedger opens the configured backend and wraps it in a Ledger.
func openLedger(cfg *config.Config) (*ledger.Ledger, error) {
	backend, err := openBackend(cfg)
	if err != nil {
		return nil, err
	}
	slog.Debug("ledger opened", "backend", cfg.Backend, "path", cfg.DBPath())
	return ledger.New(backend, ledger.WithLogger(slog.Default())), nil
}
