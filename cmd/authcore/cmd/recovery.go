package cmd

import (
	"strconv"

	"github.com/MrEthical07/authcore/cmd/authcore/internal/format"
	"github.com/spf13/cobra"
)

func newRecoveryCommand(a *app) *cobra.Command {
	recovery := &cobra.Command{
		Use:   "recovery",
		Short: "Recovery code utilities",
	}

	var count int
	generate := &cobra.Command{
		Use:   "generate",
		Short: "Print a batch of recovery codes in the configured format",
		Long: `Print a batch of recovery codes in the configured format.

The codes are not stored anywhere; use this to preview the format or to
seed fixtures. Users get their codes from Engine.GenerateRecoveryCodes.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			engine, store, err := a.toolEngine()
			if err != nil {
				return err
			}
			defer engine.Close()

			user, err := scratchUser(cmd.Context(), store, "recovery@localhost")
			if err != nil {
				return err
			}
			codes, err := engine.GenerateRecoveryCodes(cmd.Context(), user.ID, count)
			if err != nil {
				return err
			}

			table := format.Table{Header: []string{"#", "code"}}
			for i, code := range codes {
				table.Rows = append(table.Rows, []string{strconv.Itoa(i + 1), code})
			}
			return a.print(cmd, table)
		},
	}
	generate.Flags().IntVar(&count, "count", 0, "number of codes (defaults to recovery_codes.count)")

	recovery.AddCommand(generate)
	return recovery
}
