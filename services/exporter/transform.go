package exporter

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gradeport-backend/lib/tabular"
	"gradeport-backend/lib/textutil"
)

// transformDownload converts a raw gradebook download into the two
// durable artifacts: a machine-readable CSV with the course identity
// prepended and a narrative markdown document. The raw download is
// deleted on success and preserved for inspection on failure. The
// tri-state return (false, "", "") is the only failure signal; nothing
// panics past this boundary.
func transformDownload(downloadDir, filename string, task CourseTask, outputDir string) (ok bool, csvPath, mdPath string) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("gradebook transform panicked", "file", filename, "cause", r)
			ok, csvPath, mdPath = false, "", ""
		}
	}()

	rawPath := filepath.Join(downloadDir, filename)

	table, err := tabular.ParseCSVFile(rawPath)
	if err != nil {
		slog.Error("failed to parse gradebook download", "file", filename, "err", err)
		return false, "", ""
	}

	table.InsertColumn(0, "COURSE_ID", task.CourseId)
	table.InsertColumn(1, "COURSE_NAME", task.CourseName)

	err = os.MkdirAll(outputDir, 0755)
	if err != nil {
		slog.Error("failed to create output directory", "dir", outputDir, "err", err)
		return false, "", ""
	}

	// unique per run so repeated exports of the same course never
	// collide
	stem := fmt.Sprintf(
		"%s_%s",
		textutil.Slugify(task.CourseName),
		time.Now().Format("20060102_150405"),
	)

	csvPath = filepath.Join(outputDir, stem+".csv")
	err = table.WriteCSVFile(csvPath)
	if err != nil {
		slog.Error("failed to write gradebook csv", "path", csvPath, "err", err)
		return false, "", ""
	}

	mdPath = filepath.Join(outputDir, stem+".md")
	err = os.WriteFile(mdPath, []byte(renderNarrative(table, task)), 0644)
	if err != nil {
		// both artifacts or neither; a half-written pair would report
		// success for a course missing its narrative
		slog.Error("failed to write narrative document", "path", mdPath, "err", err)
		os.Remove(csvPath)
		return false, "", ""
	}

	err = os.Remove(rawPath)
	if err != nil {
		slog.Warn("failed to delete raw download", "path", rawPath, "err", err)
	}

	return true, csvPath, mdPath
}

// renderNarrative produces the human/LLM-readable report: course
// identity, per-numeric-column summary statistics and the full table
// as a markdown grid.
func renderNarrative(table tabular.Table, task CourseTask) string {
	var doc strings.Builder

	fmt.Fprintf(&doc, "# Gradebook Export: %s\n\n", task.CourseName)
	fmt.Fprintf(&doc, "- **Course ID**: %s\n", task.CourseId)
	fmt.Fprintf(&doc, "- **Course Name**: %s\n", task.CourseName)
	fmt.Fprintf(&doc, "- **Exported**: %s\n", time.Now().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&doc, "- **Rows**: %d\n\n", len(table.Rows))

	doc.WriteString("## Summary Statistics\n\n")
	stats := table.NumericSummary("COURSE_ID", "COURSE_NAME")
	if len(stats) == 0 {
		doc.WriteString("No numeric columns were found.\n\n")
	} else {
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

	doc.WriteString("## Full Gradebook\n\n")
	doc.WriteString(table.RenderMarkdown())
	doc.WriteString("\n")

	return doc.String()
}
