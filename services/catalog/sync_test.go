package catalog

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"gradeport-backend/lib/testutil"
	"gradeport-backend/services/catalog/db"
	"gradeport-backend/services/exporter"

	"github.com/stretchr/testify/require"
)

type fakeCollector struct {
	mu      sync.Mutex
	courses []exporter.CollectedCourse
	err     error
	// when non-nil, CollectCatalog blocks until this channel closes
	block chan struct{}
}

func (f *fakeCollector) CollectCatalog(ctx context.Context) ([]exporter.CollectedCourse, error) {
	f.mu.Lock()
	block := f.block
	courses := f.courses
	err := f.err
	f.mu.Unlock()

	if block != nil {
		<-block
	}
	return courses, err
}

func (f *fakeCollector) set(courses []exporter.CollectedCourse) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.courses = courses
}

func setupSync(t *testing.T) (*Service, *fakeCollector) {
	setup, cleanup := testutil.SetupService(t, testutil.ServiceParams{
		Name:     "services/catalog",
		DbSchema: db.Schema,
	})
	t.Cleanup(cleanup)

	collector := &fakeCollector{}
	return NewService(setup.DB, collector), collector
}

func portalCourse(id, name string) exporter.CollectedCourse {
	return exporter.CollectedCourse{
		CourseId:   id,
		CourseName: name,
		CourseUrl:  "https://portal.example.com/launch?id=" + id,
	}
}

func TestSyncInsertsNewCourses(t *testing.T) {
	service, collector := setupSync(t)
	collector.set([]exporter.CollectedCourse{
		portalCourse("101", "Algebra I"),
		portalCourse("102", "Biology"),
		portalCourse("102", "Biology"), // portal pages can repeat entries
	})

	record, err := service.RunSync(context.Background())
	require.NoError(t, err)
	require.Equal(t, SyncCompleted, record.Status)
	require.Equal(t, SyncStats{TotalCollected: 2, Inserted: 2}, record.Stats)

	// a second identical sync changes nothing
	record, err = service.RunSync(context.Background())
	require.NoError(t, err)
	require.Equal(t, SyncCompleted, record.Status)
	require.Equal(t, SyncStats{TotalCollected: 2}, record.Stats)

	courses, err := service.Store().AllCourses(context.Background())
	require.NoError(t, err)
	require.Len(t, courses, 2)
}

func TestSyncUpdatesChangedCourse(t *testing.T) {
	service, collector := setupSync(t)
	collector.set([]exporter.CollectedCourse{portalCourse("101", "Algebra I")})
	_, err := service.RunSync(context.Background())
	require.NoError(t, err)

	collector.set([]exporter.CollectedCourse{portalCourse("101", "Algebra I (Honors)")})
	record, err := service.RunSync(context.Background())
	require.NoError(t, err)
	require.Equal(t, SyncStats{TotalCollected: 1, Updated: 1}, record.Stats)

	courses, err := service.Store().AllCourses(context.Background())
	require.NoError(t, err)
	require.Len(t, courses, 1)
	require.Equal(t, "Algebra I (Honors)", courses[0].Name)
}

func TestSyncMatchesRenamedCourse(t *testing.T) {
	service, collector := setupSync(t)
	collector.set([]exporter.CollectedCourse{portalCourse("101", "Intro to Networking")})
	_, err := service.RunSync(context.Background())
	require.NoError(t, err)

	// the portal reissued the course under a new id with a near-identical
	// name
	collector.set([]exporter.CollectedCourse{portalCourse("201", "Intro to Networking II")})
	record, err := service.RunSync(context.Background())
	require.NoError(t, err)
	require.Equal(t, SyncStats{TotalCollected: 1, Renamed: 1}, record.Stats)

	courses, err := service.Store().AllCourses(context.Background())
	require.NoError(t, err)
	require.Len(t, courses, 1)
	require.Equal(t, "201", courses[0].CourseId)
	require.Equal(t, "Intro to Networking II", courses[0].Name)
	require.Equal(t, StatusActive, courses[0].Status)
}

func TestSyncDeactivatesMissingCourses(t *testing.T) {
	service, collector := setupSync(t)
	collector.set([]exporter.CollectedCourse{
		portalCourse("101", "Algebra I"),
		portalCourse("102", "Quantum Chromodynamics"),
	})
	_, err := service.RunSync(context.Background())
	require.NoError(t, err)

	collector.set([]exporter.CollectedCourse{portalCourse("101", "Algebra I")})
	record, err := service.RunSync(context.Background())
	require.NoError(t, err)
	require.Equal(t, SyncStats{TotalCollected: 1, Deactivated: 1}, record.Stats)

	inactive, _, err := service.Store().ListCourses(context.Background(), ListCoursesParams{
		Limit: 10, Status: StatusInactive,
	})
	require.NoError(t, err)
	require.Len(t, inactive, 1)
	require.Equal(t, "102", inactive[0].CourseId)
}

func TestSyncRecordsCollectionFailure(t *testing.T) {
	service, collector := setupSync(t)
	collector.err = fmt.Errorf("no courses rendered on the first listing page")

	record, err := service.RunSync(context.Background())
	require.NoError(t, err)
	require.Equal(t, SyncFailed, record.Status)
	require.Contains(t, record.Error, "first listing page")
}

func TestSyncSingleFlight(t *testing.T) {
	service, collector := setupSync(t)
	collector.block = make(chan struct{})
	collector.set([]exporter.CollectedCourse{portalCourse("101", "Algebra I")})

	syncId, err := service.StartSync(context.Background())
	require.NoError(t, err)

	_, err = service.StartSync(context.Background())
	require.ErrorIs(t, err, ErrSyncInProgress)
	_, err = service.RunSync(context.Background())
	require.ErrorIs(t, err, ErrSyncInProgress)

	close(collector.block)

	require.Eventually(t, func() bool {
		record, ok, err := service.Store().LatestSyncRecord(context.Background())
		return err == nil && ok && record.Id == syncId && record.Status == SyncCompleted
	}, time.Second*5, time.Millisecond*10)

	// once finished, a new sync may start
	_, err = service.RunSync(context.Background())
	require.NoError(t, err)
}
