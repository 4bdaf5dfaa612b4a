package commands

import (
	"os"
	"time"

	"gradeport-backend/lib/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(collectCmd)
}

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Logs into the portal and prints every visible course.",
	Run: func(cmd *cobra.Command, args []string) {
		service := newExporterService()
		ctx := cmd.Context()

		err := service.Preflight(ctx)
		if err != nil {
			serviceutil.Fatal("portal preflight failed", err)
		}

		courses, err := service.CollectCatalog(ctx)
		if err != nil {
			serviceutil.Fatal("failed to collect courses", err)
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"ID", "Name", "URL", "Start", "End"})
		for _, c := range courses {
			t.AppendRow(table.Row{
				c.CourseId, c.CourseName, c.CourseUrl,
				formatDate(c.StartDate), formatDate(c.EndDate),
			})
		}
		t.Render()
	},
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}
