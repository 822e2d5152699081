// Regwatch CLI — управление расписаниями исследований и jobs
// через HTTP API.
//
// Использование:
//
//	regwatch [--api-url URL] [--json] <command> <subcommand> [flags]
//
// Команды:
//
//	schedule  Управление расписаниями
//	job       Просмотр и ручной запуск jobs
//	cron      Предпросмотр cron-выражений
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shaiso/Regwatch/internal/cli"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var apiURL string
	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:           "regwatch",
		Short:         "Regwatch CLI — scheduled regulatory research",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	defaultURL := os.Getenv("REGWATCH_API_URL")
	if defaultURL == "" {
		defaultURL = "http://localhost:8080"
	}
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", defaultURL, "API server URL")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	clientFn := func() *cli.Client { return cli.NewClient(apiURL) }
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }

	rootCmd.AddCommand(
		cli.NewScheduleCmd(clientFn, outputFn),
		cli.NewJobCmd(clientFn, outputFn),
		cli.NewCronCmd(clientFn, outputFn),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
