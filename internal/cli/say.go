package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/scrypster/companion/internal/notify"
)

func newSayCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "say <message>",
		Short: "Run one conversational turn and print the result",
		Long: `Send a message to the companion, record the turn, and print it as JSON.
A running "companion serve" picks the turn up and shows it to connected browsers.`,
		Args: cobra.MinimumNArgs(1),
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

			eng.SetOnTurn(notify.NewEventWriter(cfg.Storage.DataPath).Publish)

			result, err := eng.Chat(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}
}
