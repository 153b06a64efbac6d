package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/healthpass/internal/chaincode"
)

// NewOperationsCommand creates the operations command.
func NewOperationsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "operations",
		Short: "List the operations accepted by invoke",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ops := chaincode.Operations()
			if rootOpts.Format == "json" {
				out := newFormatter(rootOpts, cmd.OutOrStdout(), cmd.ErrOrStderr())
				return out.Success(ops)
			}
			w := cmd.OutOrStdout()
			for _, op := range ops {
				fmt.Fprintf(w, "%-22s %s\n", op.Name, strings.Join(op.Args, " "))
			}
			return nil
		},
	}
}
