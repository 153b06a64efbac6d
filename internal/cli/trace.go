package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/healthpass/internal/config"
	"github.com/roach88/healthpass/internal/ledger"
)

// TraceWrite is one key written by a transaction.
type TraceWrite struct {
	Key        string   `json:"key"`
	ObjectType string   `json:"object_type,omitempty"`
	Attributes []string `json:"attributes,omitempty"`
}

// TraceResult lists the write set of a committed transaction.
type TraceResult struct {
	TxID   string       `json:"tx_id"`
	Writes []TraceWrite `json:"writes"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "trace <tx-id>",
		Short: "Show the keys a committed transaction wrote",
		Long: `Show the keys a committed transaction wrote, in commit order.

Composite index keys are split into their object type and attributes.
Only the sqlite backend keeps a tx id index.

Examples:
  healthpass trace 0192f3c4-7b1e-7c6a-9a52-3d0f1e2a4b5c
  healthpass trace 0192f3c4-7b1e-7c6a-9a52-3d0f1e2a4b5c --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(rootOpts, cmd, args[0])
		},
	}
}

func runTrace(opts *RootOptions, cmd *cobra.Command, txID string) error {
	if opts.Config.Backend != config.BackendSQLite {
		return NewExitError(ExitCommandError,
			fmt.Sprintf("trace requires the %s backend, got %s", config.BackendSQLite, opts.Config.Backend))
	}
	db, err := ledger.OpenSQLite(opts.Config.DBPath())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open ledger", err)
	}
	defer db.Close()

	keys, err := db.TxWrites(cmd.Context(), txID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read transaction", err)
	}

	result := TraceResult{TxID: txID, Writes: make([]TraceWrite, 0, len(keys))}
	for _, key := range keys {
		w := TraceWrite{Key: key}
		if ledger.IsCompositeKey(key) {
			if objectType, attrs, err := ledger.SplitCompositeKey(key); err == nil {
				w.ObjectType, w.Attributes = objectType, attrs
			}
		}
		result.Writes = append(result.Writes, w)
	}

	out := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
	if len(result.Writes) == 0 {
		msg := fmt.Sprintf("no writes recorded for %s", txID)
		if err := out.Error(CodeNotFound, msg, nil); err != nil {
			return WrapExitError(ExitCommandError, "failed to write output", err)
		}
		return NewExitError(ExitFailure, msg)
	}
	if opts.Format == "json" {
		return out.SuccessWithTrace(result, txID)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Transaction %s (%d write(s))\n", txID, len(result.Writes))
	for i, tw := range result.Writes {
		if tw.ObjectType != "" {
			fmt.Fprintf(w, "  %d. %s %q\n", i+1, tw.ObjectType, tw.Attributes)
			continue
		}
		fmt.Fprintf(w, "  %d. %s\n", i+1, tw.Key)
	}
	return nil
}
