package cli

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/healthpass/internal/chaincode"
)

// NewInvokeCommand creates the invoke command.
func NewInvokeCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "invoke <operation> [args...]",
		Short: "Run one operation in one ledger transaction",
		Long: `Run one operation in one ledger transaction.

The transaction commits when the operation succeeds and is discarded
otherwise. Arguments are positional; use "" for an empty argument and
-- before arguments that start with a dash.

Exit codes:
  0 - Operation succeeded
  1 - Operation failed (the error code is printed)
  2 - Command error (bad config, ledger could not be opened)

Examples:
  healthpass invoke create p1 Ana Lopez 1990-01-01 https://docs.example/p1 S-1 MX abc
  healthpass invoke setValidationState p1 "" VALID
  healthpass invoke read p1 --format json
  healthpass invoke queryByCountry MX --backend leveldb --db ./passports.ldb`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInvoke(rootOpts, cmd, args[0], args[1:])
		},
	}
	return cmd
}

func runInvoke(opts *RootOptions, cmd *cobra.Command, operation string, args []string) error {
	l, err := openLedger(opts.Config)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open ledger", err)
	}
	defer l.Close()

	out := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
	out.VerboseLog("invoking %s with %d argument(s) on %s", operation, len(args), opts.Config.Backend)

	cc := chaincode.New(slog.Default())
	res, err := cc.Execute(cmd.Context(), l, operation, args)
	if err != nil {
		if outErr := out.Error(ErrorCode(err), err.Error(), map[string]string{"tx_id": res.TxID}); outErr != nil {
			return WrapExitError(ExitCommandError, "failed to write output", outErr)
		}
		return WrapExitError(ExitFailure, fmt.Sprintf("%s failed", operation), err)
	}

	if err := out.SuccessWithTrace(payloadData(opts.Format, res), res.TxID); err != nil {
		return WrapExitError(ExitCommandError, "failed to write output", err)
	}
	return nil
}

// payloadData shapes a payload for output. JSON output embeds JSON payloads
// as-is; text output prints the payload, or the tx id when there is none.
func payloadData(format string, res chaincode.Result) any {
	if format == "json" {
		switch {
		case len(res.Payload) == 0:
			return nil
		case json.Valid(res.Payload):
			return json.RawMessage(res.Payload)
		default:
			return string(res.Payload)
		}
	}
	if len(res.Payload) == 0 {
		return fmt.Sprintf("committed %s", res.TxID)
	}
	return string(res.Payload)
}
