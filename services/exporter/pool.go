package exporter

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// partitionTasks splits tasks into min(maxWorkers, len(tasks)) batches
// of roughly equal size. Remainder tasks are folded into the last
// batches instead of spawning extra workers.
func partitionTasks(tasks []CourseTask, maxWorkers int) [][]CourseTask {
	n := len(tasks)
	if n == 0 {
		return nil
	}
	workers := maxWorkers
	if workers < 1 {
		workers = 1
	}
	if workers > n {
		workers = n
	}

	base := n / workers
	rem := n % workers

	batches := make([][]CourseTask, 0, workers)
	idx := 0
	for i := 0; i < workers; i++ {
		size := base
		if i >= workers-rem {
			size++
		}
		batches = append(batches, tasks[idx:idx+size])
		idx += size
	}
	return batches
}

// runSlot owns one WorkerSlot for its whole lifetime: an exclusive
// download directory and one browser session, both released on every
// exit path. Every task of the batch produces exactly one outcome even
// when the slot fails catastrophically.
func (s Service) runSlot(ctx context.Context, runDir string, index int, batch []CourseTask, agg *Aggregator) {
	ctx, span := tracer.Start(ctx, "runSlot")
	defer span.End()
	span.SetAttributes(
		attribute.Int("slot", index),
		attribute.Int("batch_size", len(batch)),
	)

	failFrom := func(from int, err error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "slot failed")
		for _, task := range batch[from:] {
			agg.Append(failedOutcome(task, err))
		}
	}

	if ctx.Err() != nil {
		failFrom(0, ErrCancelled)
		return
	}

	downloadDir := filepath.Join(runDir, fmt.Sprintf("worker_%d_downloads", index))
	err := os.MkdirAll(downloadDir, 0755)
	if err != nil {
		failFrom(0, fmt.Errorf("failed to create download directory: %w", err))
		return
	}
	defer os.RemoveAll(downloadDir)

	session, err := s.factory.NewSession(ctx, downloadDir)
	if err != nil {
		failFrom(0, fmt.Errorf("failed to start browser session: %w", err))
		return
	}
	// release the session even when ctx was already cancelled
	defer session.Close(context.WithoutCancel(ctx))

	sl := &slot{
		session:     session,
		creds:       s.opts.Credentials,
		baseUrl:     s.opts.BaseUrl,
		downloadDir: downloadDir,
		outputDir:   s.opts.OutputDir,
		timeouts:    s.opts.Timeouts,
	}

	// one login per slot; a slot that cannot log in fails its whole
	// batch rather than dropping tasks
	err = sl.ensureLoggedIn(ctx)
	if err != nil {
		slog.Error("slot login failed", "slot", index, "err", err)
		failFrom(0, ErrLoginFailed)
		return
	}

	for i, task := range batch {
		if ctx.Err() != nil {
			failFrom(i, ErrCancelled)
			return
		}
		outcome := sl.export(ctx, task)
		agg.Append(outcome)
		slog.Info(
			"course export finished",
			"slot", index,
			"course", task.CourseName,
			"success", outcome.Success,
			"err", outcome.Error,
		)
	}
}
