package exporter

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"gradeport-backend/lib/browser"
	"gradeport-backend/lib/retry"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// portal controls driven by the export sequence
const (
	selLoginButton    = ".loginBtn--lfDa2"
	selUsername       = "#username"
	selPassword       = "#password"
	selCourseCard     = "a.instance_name--dioD1"
	selPagination     = ".pageItem--BNJmT"
	selMainContent    = "#main-content"
	selGradebookTab   = "#Launch-tab-gradebook"
	selExportMenu     = ".RBDropdown--ATEd3.dropdown > button"
	selExportAll      = ".dropdownButton--whS7t:first-of-type"
	selModalContent   = ".modal__content"
	selModalPrimary   = ".exportCsvModal--XL37A button.btn-primary"
	selModalCloseX    = ".modal__close"
	selRefreshExports = "#refreshExportList"
	selExportList     = "#dropdown-basic"
	selExportLinks    = ".dropdown__menu.show a"
)

var downloadNameRegex = regexp.MustCompile(`^GRADEBOOK_DATA_.+\.csv$`)

// slot is the per-worker execution context: one browser session, one
// exclusive download directory, one login. It runs the export sequence
// for one course at a time, never concurrently.
type slot struct {
	session     browser.Session
	creds       Credentials
	baseUrl     string
	downloadDir string
	outputDir   string
	timeouts    Timeouts
	loggedIn    bool
}

// clickAvailable waits for the control to become clickable then clicks
// it, falling back to a scroll-into-view script click when an overlay
// intercepts the regular one.
func (s *slot) clickAvailable(ctx context.Context, selector string, timeout time.Duration) error {
	if !s.session.WaitFor(ctx, selector, browser.StateClickable, timeout) {
		return fmt.Errorf("control %q never became clickable", selector)
	}
	err := s.session.Click(ctx, selector)
	if errors.Is(err, browser.ErrClickIntercepted) {
		return s.session.ForceClick(ctx, selector)
	}
	return err
}

func (s *slot) waitForAny(ctx context.Context, selectors []string, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		for _, sel := range selectors {
			if s.session.WaitFor(ctx, sel, browser.StateVisible, time.Millisecond*250) {
				return true
			}
		}
		if time.Now().After(deadline) || ctx.Err() != nil {
			return false
		}
	}
}

// ensureLoggedIn performs the portal's two-step login: the username
// must be submitted before the password field is presented. A login
// failure is terminal for the slot; recovery is a fresh slot, not an
// in-place retry.
func (s *slot) ensureLoggedIn(ctx context.Context) error {
	if s.loggedIn {
		return nil
	}
	ctx, span := tracer.Start(ctx, "ensureLoggedIn")
	defer span.End()

	err := s.session.Navigate(ctx, s.baseUrl)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to reach the portal")
		return err
	}

	err = s.clickAvailable(ctx, selLoginButton, s.timeouts.ElementWait)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "login button never appeared")
		return err
	}

	if !s.session.WaitFor(ctx, selUsername, browser.StateVisible, s.timeouts.LoginWait) {
		span.SetStatus(codes.Error, "username field never appeared")
		return fmt.Errorf("username field never appeared")
	}
	err = s.session.Fill(ctx, selUsername, s.creds.LoginId+browser.KeyEnter)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to submit username")
		return err
	}

	if !s.session.WaitFor(ctx, selPassword, browser.StateVisible, s.timeouts.LoginWait) {
		span.SetStatus(codes.Error, "password field never appeared")
		return fmt.Errorf("password field never appeared")
	}
	err = s.session.Fill(ctx, selPassword, s.creds.Secret+browser.KeyEnter)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to submit password")
		return err
	}

	loggedIn := s.waitForAny(ctx, []string{
		selCourseCard,
		selPagination,
		selMainContent,
	}, s.timeouts.PageLoad)
	if !loggedIn {
		span.SetStatus(codes.Error, "no post-login state was reached")
		return fmt.Errorf("no post-login state was reached")
	}

	s.loggedIn = true
	return nil
}

// export drives the full sequence for one course and always returns an
// outcome; no failure escapes past this boundary.
func (s *slot) export(ctx context.Context, task CourseTask) (outcome ExportOutcome) {
	ctx, span := tracer.Start(ctx, "export")
	defer span.End()
	span.SetAttributes(
		attribute.String("course_id", task.CourseId),
		attribute.String("course_name", task.CourseName),
	)

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("unexpected fault: %v", r)
			span.RecordError(err)
			span.SetStatus(codes.Error, "export sequence panicked")
			outcome = failedOutcome(task, err)
		}
	}()

	fail := func(err error) ExportOutcome {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return failedOutcome(task, err)
	}

	err := s.ensureLoggedIn(ctx)
	if err != nil {
		return fail(ErrLoginFailed)
	}

	err = s.session.Navigate(ctx, task.CourseUrl)
	if err != nil {
		return fail(fmt.Errorf("failed to open course page: %w", err))
	}

	// a course without a gradebook tab never has exportable data, so
	// this is the single fastest fail-fast check in the sequence.
	err = s.clickAvailable(ctx, selGradebookTab, s.timeouts.ElementWait)
	if err != nil {
		return fail(ErrGradebookTab)
	}

	err = s.clickAvailable(ctx, selExportMenu, s.timeouts.ElementWait)
	if err != nil {
		return fail(ErrOpenExportDropdown)
	}
	err = s.clickAvailable(ctx, selExportAll, s.timeouts.ElementWait)
	if err != nil {
		return fail(ErrOpenExportDropdown)
	}

	// the confirmation modal may legitimately never show up; export
	// generation is asynchronous server-side.
	s.dismissModal(ctx)

	watcher := browser.NewDownloadWatcher(s.downloadDir)
	preexisting := watcher.Snapshot()

	err = s.openExportList(ctx)
	if err != nil {
		return fail(err)
	}

	err = s.clickFirstExport(ctx)
	if err != nil {
		return fail(err)
	}

	filename, err := watcher.Wait(ctx, s.timeouts.DownloadWait, func(name string) bool {
		return downloadNameRegex.MatchString(name) && !preexisting[name]
	})
	if err != nil {
		return fail(ErrDownloadMissing)
	}

	ok, csvPath, mdPath := transformDownload(s.downloadDir, filename, task, s.outputDir)
	if !ok {
		return fail(ErrTransformFailed)
	}

	return ExportOutcome{
		CourseId:     task.CourseId,
		CourseName:   task.CourseName,
		CourseUrl:    task.CourseUrl,
		Success:      true,
		CsvPath:      csvPath,
		MarkdownPath: mdPath,
	}
}

// dismissModal closes the post-trigger confirmation modal if one is
// shown. Three tiers: primary action button, explicit close control,
// escape key. Absence of the modal is not an error.
func (s *slot) dismissModal(ctx context.Context) {
	if !s.session.WaitFor(ctx, selModalContent, browser.StateVisible, s.timeouts.ModalWait) {
		return
	}

	err := s.clickAvailable(ctx, selModalPrimary, s.timeouts.ModalWait)
	if err == nil {
		return
	}
	err = s.clickAvailable(ctx, selModalCloseX, s.timeouts.ModalWait)
	if err == nil {
		return
	}
	s.session.PressEscape(ctx)
}

// openExportList refreshes the export list and opens it, retrying the
// refresh+open pair while the asynchronous export is still being
// generated server-side.
func (s *slot) openExportList(ctx context.Context) error {
	return retry.Do(ctx, retry.Constant(3, s.timeouts.AnimationWait), func(ctx context.Context) error {
		err := s.clickAvailable(ctx, selRefreshExports, s.timeouts.ElementWait)
		if err != nil {
			return ErrOpenDropdown
		}
		err = s.clickAvailable(ctx, selExportList, s.timeouts.ElementWait)
		if err != nil {
			return ErrOpenDropdown
		}
		if !s.session.WaitFor(ctx, selExportLinks, browser.StateVisible, s.timeouts.AnimationWait) {
			return ErrOpenExportDropdown
		}
		return nil
	})
}

// clickFirstExport clicks the most recent entry in the export list,
// with one overlay-dismiss-and-retry attempt on interception.
func (s *slot) clickFirstExport(ctx context.Context) error {
	err := s.session.Click(ctx, selExportLinks)
	if errors.Is(err, browser.ErrClickIntercepted) {
		s.session.PressEscape(ctx)
		return s.session.ForceClick(ctx, selExportLinks)
	}
	return err
}
