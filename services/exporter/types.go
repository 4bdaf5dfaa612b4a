package exporter

import (
	"errors"
	"time"
)

// CourseTask identifies one course to export. It is immutable and safe
// to retry with a fresh browser session.
type CourseTask struct {
	CourseId   string `json:"course_id"`
	CourseName string `json:"course_name"`
	CourseUrl  string `json:"course_url"`
}

// ExportOutcome is the terminal result of attempting one CourseTask.
// Exactly one of {CsvPath set, Error empty} or {CsvPath empty, Error
// set} holds.
type ExportOutcome struct {
	CourseId     string `json:"course_id"`
	CourseName   string `json:"course_name"`
	CourseUrl    string `json:"course_url"`
	Success      bool   `json:"success"`
	CsvPath      string `json:"csv_path,omitempty"`
	MarkdownPath string `json:"markdown_path,omitempty"`
	Error        string `json:"error,omitempty"`
}

// ExportReport aggregates a batch run. Counts are always derived from
// Courses; len(Courses) == Total holds even for a partial run cut
// short by cancellation.
type ExportReport struct {
	Total       int             `json:"total"`
	Successful  int             `json:"successful"`
	Failed      int             `json:"failed"`
	Courses     []ExportOutcome `json:"courses"`
	GeneratedAt time.Time       `json:"generated_at"`
}

// CollectedCourse is one entry of the paginated course listing.
type CollectedCourse struct {
	CourseId   string     `json:"course_id"`
	CourseName string     `json:"course_name"`
	CourseUrl  string     `json:"course_url"`
	StartDate  *time.Time `json:"start_date,omitempty"`
	EndDate    *time.Time `json:"end_date,omitempty"`
}

// Credentials is the operator identity used to log into the portal,
// read once from configuration at pipeline start.
type Credentials struct {
	LoginId string `json:"login_id"`
	Secret  string `json:"secret"`
}

// Timeouts bounds every wait in the export sequence so a stuck course
// can never stall a worker indefinitely.
type Timeouts struct {
	PageLoad      time.Duration
	ElementWait   time.Duration
	DownloadWait  time.Duration
	ModalWait     time.Duration
	AnimationWait time.Duration
	LoginWait     time.Duration
}

func DefaultTimeouts() Timeouts {
	return Timeouts{
		PageLoad:      time.Second * 30,
		ElementWait:   time.Second * 15,
		DownloadWait:  time.Second * 30,
		ModalWait:     time.Second * 3,
		AnimationWait: time.Second * 2,
		LoginWait:     time.Second * 5,
	}
}

// operator-facing failure classifications. The report consumers rely
// on these exact strings to tell "login broken" apart from "this
// course has no gradebook".
var (
	ErrLoginFailed        = errors.New("Login failed")
	ErrGradebookTab       = errors.New("Failed to click on the gradebook tab")
	ErrOpenDropdown       = errors.New("Failed to open dropdown")
	ErrOpenExportDropdown = errors.New("Failed to open export dropdown")
	ErrDownloadMissing    = errors.New("Download failed - CSV file not found after export")
	ErrTransformFailed    = errors.New("Failed to process downloaded CSV file")
	ErrCancelled          = errors.New("Export cancelled before completion")
)

func failedOutcome(task CourseTask, err error) ExportOutcome {
	return ExportOutcome{
		CourseId:   task.CourseId,
		CourseName: task.CourseName,
		CourseUrl:  task.CourseUrl,
		Error:      err.Error(),
	}
}
