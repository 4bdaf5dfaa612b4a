package exporter

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

type FailedCourseDetail struct {
	CourseId   string `json:"course_id"`
	CourseName string `json:"course_name"`
	Error      string `json:"error"`
}

type ReportSummary struct {
	Total       int       `json:"total"`
	Successful  int       `json:"successful"`
	Failed      int       `json:"failed"`
	GeneratedAt time.Time `json:"generated_at"`
}

// ReportDocument is the persisted, operator-facing form of an
// ExportReport with a dedicated failure triage list.
type ReportDocument struct {
	Summary             ReportSummary        `json:"summary"`
	Courses             []ExportOutcome      `json:"courses"`
	FailedCourseDetails []FailedCourseDetail `json:"failed_course_details"`
}

func BuildReportDocument(report ExportReport) ReportDocument {
	doc := ReportDocument{
		Summary: ReportSummary{
			Total:       report.Total,
			Successful:  report.Successful,
			Failed:      report.Failed,
			GeneratedAt: report.GeneratedAt,
		},
		Courses:             report.Courses,
		FailedCourseDetails: []FailedCourseDetail{},
	}
	for _, o := range report.Courses {
		if o.Success {
			continue
		}
		doc.FailedCourseDetails = append(doc.FailedCourseDetails, FailedCourseDetail{
			CourseId:   o.CourseId,
			CourseName: o.CourseName,
			Error:      o.Error,
		})
	}
	return doc
}

// WriteReport persists the batch report as a timestamped JSON document
// and returns its path.
func WriteReport(dir string, report ExportReport) (string, error) {
	err := os.MkdirAll(dir, 0755)
	if err != nil {
		return "", err
	}

	doc := BuildReportDocument(report)
	encoded, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", err
	}

	path := filepath.Join(dir, fmt.Sprintf(
		"export_report_%s.json",
		report.GeneratedAt.Format("20060102_150405"),
	))
	err = os.WriteFile(path, encoded, 0644)
	if err != nil {
		return "", err
	}
	return path, nil
}

// RenderSummaryText renders the plain-text run summary included in the
// archive and in report mail.
func RenderSummaryText(report ExportReport) string {
	var b strings.Builder
	b.WriteString("GRADEBOOK DOWNLOAD SUMMARY\n")
	fmt.Fprintf(&b, "Generated: %s\n\n", report.GeneratedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Total courses: %d\n", report.Total)
	fmt.Fprintf(&b, "Successful: %d\n", report.Successful)
	fmt.Fprintf(&b, "Failed: %d\n\n", report.Failed)

	for _, o := range report.Courses {
		if o.Success {
			fmt.Fprintf(&b, "[OK] %s (%s)\n", o.CourseName, o.CourseId)
		} else {
			fmt.Fprintf(&b, "[FAILED] %s (%s): %s\n", o.CourseName, o.CourseId, o.Error)
		}
	}
	return b.String()
}

// ArchiveRun zips every artifact the run produced together with a
// plain-text summary, for one-file delivery to operators.
func ArchiveRun(dir string, report ExportReport) (string, error) {
	err := os.MkdirAll(dir, 0755)
	if err != nil {
		return "", err
	}

	path := filepath.Join(dir, fmt.Sprintf(
		"gradebook_exports_%s.zip",
		report.GeneratedAt.Format("20060102_150405"),
	))
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	w := zip.NewWriter(f)
	defer w.Close()

	summary, err := w.Create("_DOWNLOAD_SUMMARY.txt")
	if err != nil {
		return "", err
	}
	_, err = summary.Write([]byte(RenderSummaryText(report)))
	if err != nil {
		return "", err
	}

	for _, o := range report.Courses {
		for _, artifact := range []string{o.CsvPath, o.MarkdownPath} {
			if artifact == "" {
				continue
			}
			err = addFileToZip(w, artifact)
			if err != nil {
				return "", err
			}
		}
	}

	return path, nil
}

func addFileToZip(w *zip.Writer, path string) error {
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := w.Create(filepath.Base(path))
	if err != nil {
		return err
	}
	_, err = io.Copy(dst, src)
	return err
}
