package commands

import (
	"fmt"
	"os"
	"time"

	"gradeport-backend/lib/serviceutil"
	"gradeport-backend/services/exporter"

	"github.com/spf13/cobra"
)

var batchWorkers *int

func init() {
	batchWorkers = batchCmd.Flags().Int("workers", 0, "Override the configured worker count.")
	rootCmd.AddCommand(batchCmd)
}

var batchCmd = &cobra.Command{
	Use:   "batch [--workers <n>]",
	Short: "Collects every visible course and exports all of their gradebooks.",
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

		tasks := make([]exporter.CourseTask, len(courses))
		for i, c := range courses {
			tasks[i] = exporter.CourseTask{
				CourseId:   c.CourseId,
				CourseName: c.CourseName,
				CourseUrl:  c.CourseUrl,
			}
		}

		t1 := time.Now()
		report := service.StartBatchExport(ctx, tasks, *batchWorkers)
		t2 := time.Now()

		fmt.Print(exporter.RenderSummaryText(report))
		fmt.Printf("Took %.1f seconds\n", t2.Sub(t1).Seconds())

		if report.Failed > 0 {
			os.Exit(1)
		}
	},
}
