// Conveyor CLI — инструмент командной строки для отправки задач
// и запроса их результатов через HTTP API воркера.
//
//	conveyor [--api-url URL] [--json] <command> [flags]
//
//	submit    поставить задачу в очередь
//	result    узнать результат задачи по id
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ashmetov/conveyor/internal/cli"
)

// version подставляется через ldflags при сборке релиза.
var version = "dev"

func main() {
	var (
		apiURL  string
		jsonOut bool
	)

	root := &cobra.Command{
		Use:           "conveyor",
		Short:         "Conveyor CLI — task queue tool",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&apiURL, "api-url", "http://localhost:8082", "base URL of the worker API")
	root.PersistentFlags().BoolVar(&jsonOut, "json", false, "machine-readable JSON output")

	// Флаги разбираются только внутри Execute, поэтому клиент и вывод
	// создаются лениво, уже с разобранными значениями.
	newClient := func() *cli.Client { return cli.NewClient(apiURL) }
	newOutput := func() *cli.Output { return cli.NewOutput(jsonOut) }

	root.AddCommand(
		cli.NewSubmitCmd(newClient, newOutput),
		cli.NewResultCmd(newClient, newOutput),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
