package catalog

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"sync"
	"time"

	"gradeport-backend/lib/textutil"
	"gradeport-backend/services/exporter"

	"github.com/antzucaro/matchr"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("gradeport.services.catalog")

var ErrSyncInProgress = errors.New("a catalog sync is already in progress")

// renames with a normalized-name edit distance at or under this are
// treated as the same course
const renameDistanceThreshold = 2

// Collector enumerates the courses currently visible on the portal.
type Collector interface {
	CollectCatalog(ctx context.Context) ([]exporter.CollectedCourse, error)
}

type Service struct {
	store     Store
	collector Collector

	mu     sync.Mutex
	active bool
}

func NewService(database *sql.DB, collector Collector) *Service {
	return &Service{
		store:     NewStore(database),
		collector: collector,
	}
}

func (s *Service) Store() Store {
	return s.store
}

// StartSync kicks off a catalog sync in the background and returns its
// history record id. Only one sync may run at a time.
func (s *Service) StartSync(ctx context.Context) (int64, error) {
	s.mu.Lock()
	if s.active {
		s.mu.Unlock()
		return 0, ErrSyncInProgress
	}
	s.active = true
	s.mu.Unlock()

	syncId, err := s.store.CreateSyncRecord(ctx)
	if err != nil {
		s.mu.Lock()
		s.active = false
		s.mu.Unlock()
		return 0, err
	}

	go func() {
		// the sync must outlive the request that triggered it
		ctx := context.WithoutCancel(ctx)
		defer func() {
			s.mu.Lock()
			s.active = false
			s.mu.Unlock()
		}()
		s.runSync(ctx, syncId)
	}()

	return syncId, nil
}

// RunSync performs a catalog sync synchronously. The CLI uses this;
// the HTTP API goes through StartSync.
func (s *Service) RunSync(ctx context.Context) (SyncRecord, error) {
	s.mu.Lock()
	if s.active {
		s.mu.Unlock()
		return SyncRecord{}, ErrSyncInProgress
	}
	s.active = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.active = false
		s.mu.Unlock()
	}()

	syncId, err := s.store.CreateSyncRecord(ctx)
	if err != nil {
		return SyncRecord{}, err
	}
	s.runSync(ctx, syncId)

	record, _, err := s.store.LatestSyncRecord(ctx)
	return record, err
}

func (s *Service) runSync(ctx context.Context, syncId int64) {
	ctx, span := tracer.Start(ctx, "runSync")
	defer span.End()

	collected, err := s.collector.CollectCatalog(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "collection failed")
		slog.Error("catalog collection failed", "sync", syncId, "err", err)
		finishErr := s.store.FinishSyncRecord(ctx, syncId, SyncFailed, SyncStats{}, err.Error())
		if finishErr != nil {
			slog.Error("failed to record sync failure", "sync", syncId, "err", finishErr)
		}
		return
	}

	stats, err := s.applyCatalog(ctx, collected)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "apply failed")
		slog.Error("failed to apply collected catalog", "sync", syncId, "err", err)
		finishErr := s.store.FinishSyncRecord(ctx, syncId, SyncFailed, stats, err.Error())
		if finishErr != nil {
			slog.Error("failed to record sync failure", "sync", syncId, "err", finishErr)
		}
		return
	}

	span.SetAttributes(
		attribute.Int("collected", stats.TotalCollected),
		attribute.Int("inserted", stats.Inserted),
		attribute.Int("updated", stats.Updated),
		attribute.Int("renamed", stats.Renamed),
	)
	slog.Info("catalog sync completed",
		"sync", syncId,
		"collected", stats.TotalCollected,
		"inserted", stats.Inserted,
		"updated", stats.Updated,
		"renamed", stats.Renamed,
		"deactivated", stats.Deactivated,
	)
	err = s.store.FinishSyncRecord(ctx, syncId, SyncCompleted, stats, "")
	if err != nil {
		slog.Error("failed to record sync completion", "sync", syncId, "err", err)
	}
}

// applyCatalog reconciles the collected course list with the stored
// catalog: known course ids are refreshed in place, unknown ids are
// first fuzzy-matched by name against rows the portal no longer lists
// (a renamed course keeps its history), and everything else is
// inserted. Stored courses the portal stopped listing are deactivated.
func (s *Service) applyCatalog(ctx context.Context, collected []exporter.CollectedCourse) (SyncStats, error) {
	stats := SyncStats{}

	existing, err := s.store.AllCourses(ctx)
	if err != nil {
		return stats, err
	}
	byCourseId := map[string]Course{}
	for _, c := range existing {
		byCourseId[c.CourseId] = c
	}

	collectedIds := map[string]bool{}
	for _, c := range collected {
		if c.CourseId != "" {
			collectedIds[c.CourseId] = true
		}
	}

	claimed := map[int64]bool{}
	seen := map[string]bool{}
	for _, c := range collected {
		if c.CourseId == "" || seen[c.CourseId] {
			continue
		}
		seen[c.CourseId] = true
		stats.TotalCollected++

		incoming := Course{
			CourseId:  c.CourseId,
			Name:      c.CourseName,
			Url:       c.CourseUrl,
			StartDate: c.StartDate,
			EndDate:   c.EndDate,
		}

		if current, ok := byCourseId[c.CourseId]; ok {
			claimed[current.Id] = true
			if courseChanged(current, incoming) {
				err := s.store.UpdateCourse(ctx, current.Id, incoming)
				if err != nil {
					return stats, err
				}
				stats.Updated++
			}
			continue
		}

		if renamed, ok := findRenamed(incoming.Name, existing, collectedIds, claimed); ok {
			claimed[renamed.Id] = true
			err := s.store.UpdateCourse(ctx, renamed.Id, incoming)
			if err != nil {
				return stats, err
			}
			slog.Info("matched renamed course",
				"old", renamed.Name, "new", incoming.Name,
				"old_id", renamed.CourseId, "new_id", incoming.CourseId,
			)
			stats.Renamed++
			continue
		}

		err := s.store.InsertCourse(ctx, incoming)
		if err != nil {
			return stats, err
		}
		stats.Inserted++
	}

	for _, c := range existing {
		if claimed[c.Id] || collectedIds[c.CourseId] || c.Status != StatusActive {
			continue
		}
		err := s.store.DeactivateCourse(ctx, c.Id)
		if err != nil {
			return stats, err
		}
		stats.Deactivated++
	}

	return stats, nil
}

func courseChanged(current, incoming Course) bool {
	return current.Name != incoming.Name ||
		current.Url != incoming.Url ||
		current.Status != StatusActive ||
		!timeEqual(current.StartDate, incoming.StartDate) ||
		!timeEqual(current.EndDate, incoming.EndDate)
}

func timeEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

// findRenamed looks for a stored course the portal no longer lists
// whose normalized name is within a small edit distance of the
// incoming one.
func findRenamed(name string, existing []Course, collectedIds map[string]bool, claimed map[int64]bool) (Course, bool) {
	normalized := textutil.NormalizeName(name)

	best := Course{}
	bestDistance := renameDistanceThreshold + 1
	for _, c := range existing {
		if collectedIds[c.CourseId] || claimed[c.Id] {
			continue
		}
		distance := matchr.DamerauLevenshtein(normalized, textutil.NormalizeName(c.Name))
		if distance < bestDistance {
			best = c
			bestDistance = distance
		}
	}
	if bestDistance <= renameDistanceThreshold {
		return best, true
	}
	return Course{}, false
}
