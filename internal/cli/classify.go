package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/scrypster/companion/internal/emotion"
)

func newClassifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classify <text>",
		Short: "Detect the emotion in a piece of text",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return printJSON(cmd.OutOrStdout(), emotion.Analyze(strings.Join(args, " ")))
		},
	}
}
