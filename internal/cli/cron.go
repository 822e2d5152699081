package cli

import (
	"strconv"

	"github.com/spf13/cobra"
)

// NewCronCmd создаёт группу команд для работы с cron-выражениями.
func NewCronCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cron",
		Short: "Cron expression helpers",
	}

	cmd.AddCommand(newCronPreviewCmd(clientFn, outputFn))

	return cmd
}

func newCronPreviewCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var count int

	cmd := &cobra.Command{
		Use:   "preview EXPR",
		Short: "Show next fire times of a cron expression (UTC)",
		Example: `  regwatch cron preview "0 9 * * 1-5"
  regwatch cron preview "0 */4 * * *" --count 10`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			preview, err := clientFn().PreviewCron(args[0], count)
			if err != nil {
				return err
			}

			rows := make([][]string, len(preview.FireTimes))
			for i, t := range preview.FireTimes {
				rows[i] = []string{strconv.Itoa(i + 1), t}
			}
			outputFn().Print([]string{"#", "FIRE_TIME"}, rows, preview)
			return nil
		},
	}

	cmd.Flags().IntVar(&count, "count", 5, "Number of fire times (1-20)")

	return cmd
}
