package commands

import (
	"fmt"
	"os"

	"gradeport-backend/services/exporter"

	"github.com/spf13/cobra"
)

var exportId *string
var exportName *string

func init() {
	exportId = exportCmd.Flags().String("id", "", "The course id to stamp into the output.")
	exportName = exportCmd.Flags().String("name", "", "The course name to stamp into the output.")
	rootCmd.AddCommand(exportCmd)
}

var exportCmd = &cobra.Command{
	Use:   "export <course-url>",
	Short: "Exports the gradebook of a single course.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		service := newExporterService()

		outcome := service.StartExport(cmd.Context(), exporter.CourseTask{
			CourseId:   *exportId,
			CourseName: *exportName,
			CourseUrl:  args[0],
		})
		if !outcome.Success {
			fmt.Fprintln(os.Stderr, outcome.Error)
			os.Exit(1)
		}

		fmt.Println(outcome.CsvPath)
		if outcome.MarkdownPath != "" {
			fmt.Println(outcome.MarkdownPath)
		}
	},
}
