package catalog

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
)

const (
	defaultPageLimit  = 50
	maxPageLimit      = 500
	defaultHistoryLen = 20
)

// RegisterRoutes attaches the catalog API to a mux. All responses are
// JSON.
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /courses", s.handleListCourses)
	mux.HandleFunc("POST /sync", s.handleStartSync)
	mux.HandleFunc("GET /sync/status", s.handleSyncStatus)
	mux.HandleFunc("GET /sync/history", s.handleSyncHistory)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	err := json.NewEncoder(w).Encode(body)
	if err != nil {
		slog.Warn("failed to encode response body", "err", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return fallback
	}
	return v
}

func (s *Service) handleListCourses(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", defaultPageLimit)
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	params := ListCoursesParams{
		Skip:   queryInt(r, "skip", 0),
		Limit:  limit,
		Status: r.URL.Query().Get("status"),
	}

	courses, hasMore, err := s.store.ListCourses(r.Context(), params)
	if err != nil {
		slog.Error("failed to list courses", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to list courses")
		return
	}
	if courses == nil {
		courses = []Course{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"courses":  courses,
		"skip":     params.Skip,
		"limit":    params.Limit,
		"has_more": hasMore,
	})
}

func (s *Service) handleStartSync(w http.ResponseWriter, r *http.Request) {
	syncId, err := s.StartSync(r.Context())
	if err == ErrSyncInProgress {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		slog.Error("failed to start catalog sync", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to start sync")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"sync_id": syncId,
		"status":  SyncProcessing,
	})
}

func (s *Service) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	record, ok, err := s.store.LatestSyncRecord(r.Context())
	if err != nil {
		slog.Error("failed to read sync status", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to read sync status")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "no sync has run yet")
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (s *Service) handleSyncHistory(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", defaultHistoryLen)
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	records, err := s.store.ListSyncHistory(r.Context(), limit)
	if err != nil {
		slog.Error("failed to list sync history", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to list sync history")
		return
	}
	if records == nil {
		records = []SyncRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": records})
}
