package commands

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gradeport-backend/lib/serviceutil"
	"gradeport-backend/lib/tabular"

	"github.com/spf13/cobra"
)

var compileDir *string

func init() {
	compileDir = compileCmd.Flags().String("dir", ".", "The directory of csv exports to compile.")
	rootCmd.AddCommand(compileCmd)
}

var compileCmd = &cobra.Command{
	Use:   "compile [--dir <path>]",
	Short: "Renders a markdown summary next to every csv export in a directory.",
	Run: func(cmd *cobra.Command, args []string) {
		entries, err := os.ReadDir(*compileDir)
		if err != nil {
			serviceutil.Fatal("failed to read directory", err)
		}

		compiled := 0
		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".csv") {
				continue
			}
			csvPath := filepath.Join(*compileDir, entry.Name())

			t, err := tabular.ParseCSVFile(csvPath)
			if err != nil {
				slog.Warn("skipping unparsable csv", "file", entry.Name(), "err", err)
				continue
			}

			var doc strings.Builder
			fmt.Fprintf(&doc, "# %s\n\n", strings.TrimSuffix(entry.Name(), ".csv"))
			stats := t.NumericSummary("COURSE_ID", "COURSE_NAME")
			if len(stats) > 0 {
				doc.WriteString("| Column | Mean | Min | Max | Std Dev | Count |\n")
				doc.WriteString("| --- | --- | --- | --- | --- | --- |\n")
				for _, s := range stats {
					fmt.Fprintf(
						&doc, "| %s | %.2f | %.2f | %.2f | %.2f | %d |\n",
						s.Column, s.Mean, s.Min, s.Max, s.StdDev, s.Count,
					)
				}
				doc.WriteString("\n")
			}
			doc.WriteString(t.RenderMarkdown())
			doc.WriteString("\n")

			mdPath := strings.TrimSuffix(csvPath, ".csv") + ".md"
			err = os.WriteFile(mdPath, []byte(doc.String()), 0644)
			if err != nil {
				serviceutil.Fatal("failed to write markdown", err)
			}
			compiled++
		}

		slog.Info("compiled markdown summaries", "count", compiled)
	},
}
