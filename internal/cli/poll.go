package cli

import (
	"github.com/spf13/cobra"
)

func newPollCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "poll",
		Short: "Show the active poll and its tally",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result PollResult
			if err := client.Get("/api/poll", &result); err != nil {
				return err
			}
			NewOutput(cfg.Output).Print(result)
			return nil
		},
	}
}
