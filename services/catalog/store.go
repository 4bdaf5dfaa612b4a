package catalog

import (
	"context"
	"database/sql"
	"time"
)

const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// Course is one row of the local course catalog. CourseId is the
// portal's identifier; Id is ours.
type Course struct {
	Id        int64      `json:"id"`
	CourseId  string     `json:"course_id"`
	Name      string     `json:"name"`
	Url       string     `json:"url"`
	Status    string     `json:"status"`
	StartDate *time.Time `json:"start_date,omitempty"`
	EndDate   *time.Time `json:"end_date,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

type Store struct {
	db *sql.DB
}

func NewStore(database *sql.DB) Store {
	return Store{db: database}
}

func unixPtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Unix()
}

func timePtr(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(v.Int64, 0)
	return &t
}

const courseColumns = "id, course_id, name, url, status, start_date, end_date, created_at, updated_at"

func scanCourse(row interface{ Scan(...any) error }) (Course, error) {
	var c Course
	var start, end sql.NullInt64
	var created, updated int64
	err := row.Scan(
		&c.Id, &c.CourseId, &c.Name, &c.Url, &c.Status,
		&start, &end, &created, &updated,
	)
	if err != nil {
		return Course{}, err
	}
	c.StartDate = timePtr(start)
	c.EndDate = timePtr(end)
	c.CreatedAt = time.Unix(created, 0)
	c.UpdatedAt = time.Unix(updated, 0)
	return c, nil
}

type ListCoursesParams struct {
	Skip   int
	Limit  int
	Status string
}

// ListCourses pages through the catalog ordered by name. The returned
// bool reports whether more rows exist past the requested page.
func (s Store) ListCourses(ctx context.Context, params ListCoursesParams) ([]Course, bool, error) {
	query := "SELECT " + courseColumns + " FROM courses"
	args := []any{}
	if params.Status != "" {
		query += " WHERE status = ?"
		args = append(args, params.Status)
	}
	// fetch one extra row to learn whether this is the last page
	query += " ORDER BY name LIMIT ? OFFSET ?"
	args = append(args, params.Limit+1, params.Skip)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, false, err
	}
	defer rows.Close()

	var courses []Course
	for rows.Next() {
		c, err := scanCourse(rows)
		if err != nil {
			return nil, false, err
		}
		courses = append(courses, c)
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}

	hasMore := len(courses) > params.Limit
	if hasMore {
		courses = courses[:params.Limit]
	}
	return courses, hasMore, nil
}

func (s Store) AllCourses(ctx context.Context) ([]Course, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+courseColumns+" FROM courses ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var courses []Course
	for rows.Next() {
		c, err := scanCourse(rows)
		if err != nil {
			return nil, err
		}
		courses = append(courses, c)
	}
	return courses, rows.Err()
}

func (s Store) InsertCourse(ctx context.Context, c Course) error {
	now := time.Now().Unix()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO courses (course_id, name, url, status, start_date, end_date, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.CourseId, c.Name, c.Url, StatusActive,
		unixPtr(c.StartDate), unixPtr(c.EndDate), now, now,
	)
	return err
}

// UpdateCourse refreshes everything the portal may change about an
// existing row, including its course_id in the rename case.
func (s Store) UpdateCourse(ctx context.Context, id int64, c Course) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE courses
		 SET course_id = ?, name = ?, url = ?, status = ?, start_date = ?, end_date = ?, updated_at = ?
		 WHERE id = ?`,
		c.CourseId, c.Name, c.Url, StatusActive,
		unixPtr(c.StartDate), unixPtr(c.EndDate), time.Now().Unix(), id,
	)
	return err
}

func (s Store) DeactivateCourse(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE courses SET status = ?, updated_at = ? WHERE id = ?",
		StatusInactive, time.Now().Unix(), id,
	)
	return err
}

// SyncStats counts what one catalog sync changed.
type SyncStats struct {
	TotalCollected int `json:"total_collected"`
	Inserted       int `json:"inserted"`
	Updated        int `json:"updated"`
	Renamed        int `json:"renamed"`
	Deactivated    int `json:"deactivated"`
}

const (
	SyncProcessing = "processing"
	SyncCompleted  = "completed"
	SyncFailed     = "failed"
)

type SyncRecord struct {
	Id          int64      `json:"id"`
	Status      string     `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Stats       SyncStats  `json:"stats"`
	Error       string     `json:"error,omitempty"`
}

func (s Store) CreateSyncRecord(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO sync_history (status, started_at) VALUES (?, ?)",
		SyncProcessing, time.Now().Unix(),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s Store) FinishSyncRecord(ctx context.Context, id int64, status string, stats SyncStats, errMsg string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sync_history
		 SET status = ?, completed_at = ?, total_collected = ?, inserted = ?, updated = ?, renamed = ?, deactivated = ?, error = ?
		 WHERE id = ?`,
		status, time.Now().Unix(),
		stats.TotalCollected, stats.Inserted, stats.Updated, stats.Renamed, stats.Deactivated,
		errMsg, id,
	)
	return err
}

const syncColumns = "id, status, started_at, completed_at, total_collected, inserted, updated, renamed, deactivated, error"

func scanSyncRecord(row interface{ Scan(...any) error }) (SyncRecord, error) {
	var r SyncRecord
	var started int64
	var completed sql.NullInt64
	err := row.Scan(
		&r.Id, &r.Status, &started, &completed,
		&r.Stats.TotalCollected, &r.Stats.Inserted, &r.Stats.Updated,
		&r.Stats.Renamed, &r.Stats.Deactivated, &r.Error,
	)
	if err != nil {
		return SyncRecord{}, err
	}
	r.StartedAt = time.Unix(started, 0)
	r.CompletedAt = timePtr(completed)
	return r, nil
}

// LatestSyncRecord returns the most recent sync, or ok=false when no
// sync has ever run.
func (s Store) LatestSyncRecord(ctx context.Context) (SyncRecord, bool, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+syncColumns+" FROM sync_history ORDER BY id DESC LIMIT 1",
	)
	r, err := scanSyncRecord(row)
	if err == sql.ErrNoRows {
		return SyncRecord{}, false, nil
	}
	if err != nil {
		return SyncRecord{}, false, err
	}
	return r, true, nil
}

func (s Store) ListSyncHistory(ctx context.Context, limit int) ([]SyncRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+syncColumns+" FROM sync_history ORDER BY id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []SyncRecord
	for rows.Next() {
		r, err := scanSyncRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}
