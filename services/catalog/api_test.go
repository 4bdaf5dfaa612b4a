package catalog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"gradeport-backend/services/exporter"

	"github.com/stretchr/testify/require"
)

func setupApi(t *testing.T) (*http.ServeMux, *Service, *fakeCollector) {
	service, collector := setupSync(t)
	mux := http.NewServeMux()
	service.RegisterRoutes(mux)
	return mux, service, collector
}

func doRequest(t *testing.T, mux *http.ServeMux, method, target string) (*httptest.ResponseRecorder, map[string]json.RawMessage) {
	t.Helper()
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(method, target, nil))

	body := map[string]json.RawMessage{}
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func TestApiListCourses(t *testing.T) {
	mux, service, _ := setupApi(t)
	ctx := context.Background()

	for _, c := range []Course{
		{CourseId: "101", Name: "Algebra I", Url: "u"},
		{CourseId: "102", Name: "Biology", Url: "u"},
		{CourseId: "103", Name: "Chemistry", Url: "u"},
	} {
		require.NoError(t, service.Store().InsertCourse(ctx, c))
	}

	rec, body := doRequest(t, mux, "GET", "/courses?limit=2")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var courses []Course
	require.NoError(t, json.Unmarshal(body["courses"], &courses))
	require.Len(t, courses, 2)
	require.JSONEq(t, "true", string(body["has_more"]))

	rec, body = doRequest(t, mux, "GET", "/courses?limit=2&skip=2")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(body["courses"], &courses))
	require.Len(t, courses, 1)
	require.JSONEq(t, "false", string(body["has_more"]))
}

func TestApiListCoursesEmpty(t *testing.T) {
	mux, _, _ := setupApi(t)

	rec, body := doRequest(t, mux, "GET", "/courses")
	require.Equal(t, http.StatusOK, rec.Code)
	// an empty catalog serializes as [], not null
	require.JSONEq(t, "[]", string(body["courses"]))
}

func TestApiSyncLifecycle(t *testing.T) {
	mux, service, collector := setupApi(t)
	collector.set([]exporter.CollectedCourse{portalCourse("101", "Algebra I")})

	rec, _ := doRequest(t, mux, "GET", "/sync/status")
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec, body := doRequest(t, mux, "POST", "/sync")
	require.Equal(t, http.StatusAccepted, rec.Code)
	var syncId int64
	require.NoError(t, json.Unmarshal(body["sync_id"], &syncId))

	require.Eventually(t, func() bool {
		record, ok, err := service.Store().LatestSyncRecord(context.Background())
		return err == nil && ok && record.Status == SyncCompleted
	}, time.Second*5, time.Millisecond*10)

	rec, body = doRequest(t, mux, "GET", "/sync/status")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `"completed"`, string(body["status"]))

	rec, body = doRequest(t, mux, "GET", "/sync/history")
	require.Equal(t, http.StatusOK, rec.Code)
	var history []SyncRecord
	require.NoError(t, json.Unmarshal(body["history"], &history))
	require.Len(t, history, 1)
	require.Equal(t, syncId, history[0].Id)
}

func TestApiSyncConflict(t *testing.T) {
	mux, _, collector := setupApi(t)
	collector.block = make(chan struct{})
	defer close(collector.block)

	rec, _ := doRequest(t, mux, "POST", "/sync")
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec, body := doRequest(t, mux, "POST", "/sync")
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Contains(t, string(body["error"]), "already in progress")
}
