package cli

import (
	"github.com/spf13/cobra"
)

func newMemoryCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "memory",
		Short: "Print recent conversations and emotional patterns",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			eng, store, err := openEngine(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			view, err := eng.Memory(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), view)
		},
	}
}
