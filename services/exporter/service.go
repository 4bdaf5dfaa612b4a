package exporter

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gradeport-backend/lib/browser"

	"github.com/mazen160/go-random"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("gradeport.services.exporter")

type Options struct {
	// BaseUrl is the portal landing page, also used to resolve
	// relative course links.
	BaseUrl     string      `json:"base_url"`
	Credentials Credentials `json:"credentials"`
	// WorkDir holds per-run worker download directories.
	WorkDir string `json:"work_dir"`
	// OutputDir receives the derived csv/markdown artifacts and batch
	// reports.
	OutputDir string `json:"output_dir"`
	// MaxWorkers bounds slot concurrency; each slot is a full browser
	// process. Defaults to 4.
	MaxWorkers int `json:"max_workers"`
	// CleanupOrphans kills browser processes left behind by crashed
	// slots after a batch finishes.
	CleanupOrphans   bool       `json:"cleanup_orphans"`
	Smtp             SmtpConfig `json:"smtp"`
	ReportRecipients []string   `json:"report_recipients"`

	Timeouts Timeouts `json:"-"`
}

type Service struct {
	factory browser.Factory
	opts    Options
}

func NewService(factory browser.Factory, opts Options) Service {
	if opts.MaxWorkers <= 0 {
		opts.MaxWorkers = 4
	}
	if opts.WorkDir == "" {
		opts.WorkDir = "data"
	}
	if opts.OutputDir == "" {
		opts.OutputDir = filepath.Join(opts.WorkDir, "exports")
	}
	if opts.Timeouts == (Timeouts{}) {
		opts.Timeouts = DefaultTimeouts()
	}
	return Service{factory: factory, opts: opts}
}

func (s Service) newRunDir() (string, error) {
	runId, err := random.String(8)
	if err != nil {
		return "", err
	}
	runDir := filepath.Join(s.opts.WorkDir, "run_"+runId)
	err = os.MkdirAll(runDir, 0755)
	if err != nil {
		return "", err
	}
	return runDir, nil
}

// StartExport runs the export sequence for a single course on a
// dedicated slot. The outcome is always well-formed; failures are
// reported inside it, never raised.
func (s Service) StartExport(ctx context.Context, task CourseTask) ExportOutcome {
	ctx, span := tracer.Start(ctx, "StartExport")
	defer span.End()
	span.SetAttributes(attribute.String("course_id", task.CourseId))

	runDir, err := s.newRunDir()
	if err != nil {
		return failedOutcome(task, err)
	}
	defer os.RemoveAll(runDir)

	agg := NewAggregator()
	s.runSlot(ctx, runDir, 0, []CourseTask{task}, agg)
	return agg.Snapshot().Courses[0]
}

// StartBatchExport fans tasks out across isolated worker slots and
// returns one report covering every task. The report is persisted (and
// archived) even when the run is interrupted; outcomes collected
// before cancellation are never lost.
func (s Service) StartBatchExport(ctx context.Context, tasks []CourseTask, maxWorkers int) ExportReport {
	ctx, span := tracer.Start(ctx, "StartBatchExport")
	defer span.End()
	span.SetAttributes(
		attribute.Int("tasks", len(tasks)),
		attribute.Int("max_workers", maxWorkers),
	)

	start := time.Now()
	if maxWorkers <= 0 {
		maxWorkers = s.opts.MaxWorkers
	}

	agg := NewAggregator()

	runDir, err := s.newRunDir()
	if err != nil {
		for _, task := range tasks {
			agg.Append(failedOutcome(task, err))
		}
		return agg.Snapshot()
	}
	defer os.RemoveAll(runDir)

	batches := partitionTasks(tasks, maxWorkers)
	slog.Info(
		"starting batch export",
		"tasks", len(tasks),
		"workers", len(batches),
		"run_dir", runDir,
	)

	var wg sync.WaitGroup
	for i, batch := range batches {
		wg.Add(1)
		go func(index int, batch []CourseTask) {
			defer wg.Done()
			s.runSlot(ctx, runDir, index, batch, agg)
		}(i, batch)
	}
	wg.Wait()

	report := agg.Snapshot()
	s.persistReport(report)

	if s.opts.CleanupOrphans {
		killed := KillOrphanedBrowsers(context.WithoutCancel(ctx), start)
		if killed > 0 {
			slog.Info("cleaned up orphaned browser processes", "count", killed)
		}
	}

	return report
}

func (s Service) persistReport(report ExportReport) {
	reportPath, err := WriteReport(s.opts.OutputDir, report)
	if err != nil {
		slog.Error("failed to persist batch report", "err", err)
		return
	}
	slog.Info("wrote batch report", "path", reportPath)

	archivePath, err := ArchiveRun(s.opts.OutputDir, report)
	if err != nil {
		slog.Error("failed to archive batch artifacts", "err", err)
	} else {
		slog.Info("archived batch artifacts", "path", archivePath)
	}

	if s.opts.Smtp.Server != "" && len(s.opts.ReportRecipients) > 0 {
		err = MailReport(s.opts.Smtp, s.opts.ReportRecipients, report, reportPath)
		if err != nil {
			slog.Error("failed to mail batch report", "err", err)
		}
	}
}
