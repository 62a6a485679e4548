package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/daveminay/cohoscrape/internal/app"
	"github.com/daveminay/cohoscrape/internal/components/chrono"
	"github.com/daveminay/cohoscrape/internal/components/telemetry"
	"github.com/daveminay/cohoscrape/internal/config"
	libtelemetry "github.com/daveminay/cohoscrape/lib/telemetry"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	configPath *string
	verbose    *bool
	dumpDir    *string
)

func init() {
	configPath = rootCmd.PersistentFlags().String("config", "config.json5", "The configuration file to read.")
	verbose = rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging.")
	dumpDir = rootCmd.PersistentFlags().String("dump", "", "Write every http exchange to this directory.")
}

var rootCmd = &cobra.Command{
	Use:          "cohoscrape-cli",
	Short:        "cohoscrape-cli searches Companies House and extracts company archives.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		libtelemetry.InitSlog(*verbose)
		return nil
	},
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load(*configPath)
	if err != nil {
		return config.Config{}, err
	}
	if *dumpDir != "" {
		cfg.HttpDumpDir = *dumpDir
	}
	return cfg, nil
}

// setup loads the config and builds the pipeline, every command but
// `session` needs both.
func setup() (config.Config, app.App, telemetry.API, error) {
	cfg, err := loadConfig()
	if err != nil {
		return config.Config{}, app.App{}, nil, err
	}
	tel := telemetry.SlogAPI{}
	a, err := app.New(cfg, chrono.NewStandardImpl(), tel)
	if err != nil {
		return config.Config{}, app.App{}, nil, err
	}
	return cfg, a, tel, nil
}

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(os.Stdout)
	return t
}
