package commands

import (
	"context"
	"fmt"
	"os"

	"gradeport-backend/lib/browser/webdriver"
	"gradeport-backend/lib/configutil"
	"gradeport-backend/lib/restyutil"
	"gradeport-backend/lib/serviceutil"
	"gradeport-backend/services/exporter"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "gradeport-cli",
	Short: "gradeport-cli drives portal gradebook exports and catalog collection.",
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type Config struct {
	Webdriver webdriver.Options `json:"webdriver"`
	Exporter  exporter.Options  `json:"exporter"`
	// DebugHttpDir dumps the raw webdriver wire traffic into this
	// directory when set.
	DebugHttpDir string `json:"debug_http_dir"`
}

func newExporterService() exporter.Service {
	cfg, err := configutil.ReadConfig[Config]("config.json5")
	if err != nil {
		serviceutil.Fatal("failed to read config", err)
	}

	if cfg.DebugHttpDir != "" {
		webdriver.SetRestyInstrumentOutput(restyutil.NewFilesystemOutput(cfg.DebugHttpDir))
	}

	factory, err := webdriver.NewClient(cfg.Webdriver)
	if err != nil {
		serviceutil.Fatal("failed to initialize webdriver client", err)
	}
	return exporter.NewService(factory, cfg.Exporter)
}
