package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/scrypster/companion/internal/adventure"
)

func newRollCmd() *cobra.Command {
	var seed uint64
	cmd := &cobra.Command{
		Use:   "roll [notation]",
		Short: "Roll dice, e.g. 2d6+3 (default 1d20)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			notation := adventure.DefaultDice
			if len(args) == 1 {
				notation = args[0]
			}
			roll, err := adventure.RollDice(newRand(seed), notation)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), roll.Description)
			return err
		},
	}
	cmd.Flags().Uint64Var(&seed, "seed", 0, "fix the random seed (0 uses the clock)")
	return cmd
}
