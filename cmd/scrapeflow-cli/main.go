// Scrapeflow CLI — инструмент командной строки для управления
// scraping jobs и campaigns через HTTP API.
//
// Использование:
//
//	scrapeflow [--api-url URL] [--json] <command> <subcommand> [flags]
//
// Команды:
//
//	job       Управление jobs
//	campaign  Управление campaigns
//	validate  Проверка конфигурации сценария
//	stats     Счётчики jobs по статусам
//	inspect   Локальный осмотр страницы (без API)
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shaiso/scrapeflow/internal/cli"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var apiURL string
	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:           "scrapeflow",
		Short:         "Scrapeflow CLI — declarative web scraping tool",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "http://localhost:8080", "API server URL")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	clientFn := func() *cli.Client { return cli.NewClient(apiURL) }
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }

	rootCmd.AddCommand(
		cli.NewJobCmd(clientFn, outputFn),
		cli.NewCampaignCmd(clientFn, outputFn),
		cli.NewValidateCmd(clientFn, outputFn),
		cli.NewStatsCmd(clientFn, outputFn),
		cli.NewInspectCmd(outputFn),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
