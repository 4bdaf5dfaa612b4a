package exporter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPartitionTasks(t *testing.T) {
	tasks := func(n int) []CourseTask {
		out := make([]CourseTask, n)
		for i := range out {
			out[i] = CourseTask{CourseId: fmt.Sprintf("%d", i)}
		}
		return out
	}
	sizes := func(batches [][]CourseTask) []int {
		out := []int{}
		for _, b := range batches {
			out = append(out, len(b))
		}
		return out
	}

	require.Nil(t, partitionTasks(nil, 4))
	require.Equal(t, []int{1, 1, 1, 2}, sizes(partitionTasks(tasks(5), 4)))
	require.Equal(t, []int{3, 3, 4}, sizes(partitionTasks(tasks(10), 3)))
	require.Equal(t, []int{2, 2, 3}, sizes(partitionTasks(tasks(7), 3)))
	// never more workers than tasks
	require.Equal(t, []int{1, 1, 1}, sizes(partitionTasks(tasks(3), 5)))
	require.Equal(t, []int{4}, sizes(partitionTasks(tasks(4), 1)))

	// every task appears exactly once, in order
	batches := partitionTasks(tasks(10), 3)
	seen := []string{}
	for _, b := range batches {
		for _, task := range b {
			seen = append(seen, task.CourseId)
		}
	}
	require.Len(t, seen, 10)
	for i, id := range seen {
		require.Equal(t, fmt.Sprintf("%d", i), id)
	}
}

// scripts per-course portal behavior keyed by the course url.
func mixedBehaviorFactory() *fakeFactory {
	exportSelectors := []string{
		selGradebookTab, selExportMenu, selExportAll,
		selRefreshExports, selExportList, selExportLinks,
	}
	return &fakeFactory{
		setup: func(fs *fakeSession) {
			fs.showLoginFlow()
			fs.onNavigate = func(fs *fakeSession, url string) {
				id := ""
				if parts := strings.SplitN(url, "id=", 2); len(parts) == 2 {
					id = parts[1]
				}
				fs.hide(exportSelectors...)
				switch {
				case strings.HasPrefix(id, "ok"):
					fs.showExportFlow()
					fs.onClick[selExportLinks] = func(fs *fakeSession) {
						fs.writeDownload("GRADEBOOK_DATA_"+id+".csv", fakeGradebookCSV)
					}
				case strings.HasPrefix(id, "notab"):
					// nothing renders on the course page
				case strings.HasPrefix(id, "nolist"):
					fs.showExportFlow()
					fs.hide(selExportLinks)
				case strings.HasPrefix(id, "badfile"):
					fs.showExportFlow()
					fs.onClick[selExportLinks] = func(fs *fakeSession) {
						fs.writeDownload("GRADEBOOK_DATA_"+id+".csv", "Student,Email\n")
					}
				}
			}
		},
	}
}

func mixedTasks() []CourseTask {
	ids := []string{"ok1", "notab1", "ok2", "nolist1", "badfile1"}
	tasks := make([]CourseTask, len(ids))
	for i, id := range ids {
		tasks[i] = CourseTask{
			CourseId:   id,
			CourseName: "Course " + id,
			CourseUrl:  "https://portal.example.com/launch?id=" + id,
		}
	}
	return tasks
}

func TestBatchMixedResults(t *testing.T) {
	service := testService(t, mixedBehaviorFactory())
	tasks := mixedTasks()

	report := service.StartBatchExport(context.Background(), tasks, 2)

	require.Equal(t, 5, report.Total)
	require.Equal(t, 2, report.Successful)
	require.Equal(t, 3, report.Failed)
	require.Len(t, report.Courses, 5)
	require.Equal(t, report.Total, report.Successful+report.Failed)

	doc := BuildReportDocument(report)
	require.Len(t, doc.FailedCourseDetails, 3)
	errorsSeen := map[string]string{}
	for _, d := range doc.FailedCourseDetails {
		require.NotEmpty(t, d.Error)
		errorsSeen[d.CourseId] = d.Error
	}
	require.Equal(t, "Failed to click on the gradebook tab", errorsSeen["notab1"])
	require.Contains(t, errorsSeen["nolist1"], "dropdown")
	require.Equal(t, "Failed to process downloaded CSV file", errorsSeen["badfile1"])
}

func TestBatchOutcomeCompleteness(t *testing.T) {
	// the second slot's browser refuses to start; its tasks must still
	// produce outcomes
	factory := mixedBehaviorFactory()
	factory.errDirs = []string{"worker_1_downloads"}
	service := testService(t, factory)

	tasks := []CourseTask{}
	for i := 0; i < 6; i++ {
		id := fmt.Sprintf("ok%d", i)
		tasks = append(tasks, CourseTask{
			CourseId:   id,
			CourseName: "Course " + id,
			CourseUrl:  "https://portal.example.com/launch?id=" + id,
		})
	}

	report := service.StartBatchExport(context.Background(), tasks, 2)

	require.Equal(t, 6, report.Total)
	require.Len(t, report.Courses, 6)
	require.Equal(t, report.Total, report.Successful+report.Failed)
	require.Equal(t, 3, report.Failed)

	// every submitted course id appears exactly once
	counts := map[string]int{}
	for _, o := range report.Courses {
		counts[o.CourseId]++
	}
	for _, task := range tasks {
		require.Equal(t, 1, counts[task.CourseId], task.CourseId)
	}
}

func TestBatchLoginFailureMarksWholeSlot(t *testing.T) {
	factory := &fakeFactory{
		setup: func(fs *fakeSession) {
			// login controls never render on any session
		},
	}
	service := testService(t, factory)

	report := service.StartBatchExport(context.Background(), mixedTasks(), 2)

	require.Equal(t, 5, report.Total)
	require.Equal(t, 5, report.Failed)
	for _, o := range report.Courses {
		require.Equal(t, "Login failed", o.Error)
	}
}

func TestBatchCancellationKeepsReportConsistent(t *testing.T) {
	service := testService(t, mixedBehaviorFactory())
	tasks := mixedTasks()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report := service.StartBatchExport(ctx, tasks, 2)

	require.Equal(t, 5, report.Total)
	require.Len(t, report.Courses, 5)
	require.Equal(t, report.Total, report.Successful+report.Failed)
	for _, o := range report.Courses {
		require.False(t, o.Success)
		require.Equal(t, "Export cancelled before completion", o.Error)
	}

	// the partial report was still persisted
	entries, err := os.ReadDir(service.opts.OutputDir)
	require.NoError(t, err)
	found := false
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "export_report_") {
			found = true
		}
	}
	require.True(t, found)
}

func TestBatchDownloadDirIsolation(t *testing.T) {
	factory := mixedBehaviorFactory()
	service := testService(t, factory)

	tasks := []CourseTask{}
	for i := 0; i < 4; i++ {
		id := fmt.Sprintf("ok%d", i)
		tasks = append(tasks, CourseTask{
			CourseId:   id,
			CourseName: "Course " + id,
			CourseUrl:  "https://portal.example.com/launch?id=" + id,
		})
	}

	report := service.StartBatchExport(context.Background(), tasks, 2)
	require.Equal(t, 4, report.Successful)

	require.Len(t, factory.sessions, 2)
	dirA := factory.sessions[0].downloadDir
	dirB := factory.sessions[1].downloadDir
	require.NotEqual(t, dirA, dirB)
	require.Equal(t, filepath.Dir(dirA), filepath.Dir(dirB))

	// each course's artifact carries only its own identity; no
	// download was misattributed across slots
	for _, o := range report.Courses {
		contents, err := os.ReadFile(o.CsvPath)
		require.NoError(t, err)
		for _, other := range report.Courses {
			if other.CourseId == o.CourseId {
				require.Contains(t, string(contents), o.CourseId)
			} else {
				require.NotContains(t, string(contents), other.CourseId)
			}
		}
	}
}
