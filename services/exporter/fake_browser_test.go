package exporter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gradeport-backend/lib/browser"
)

// fakeSession is a scripted browser.Session: selectors listed in
// present behave as rendered and clickable, hooks simulate portal side
// effects like download files appearing.
type fakeSession struct {
	mu          sync.Mutex
	downloadDir string

	present  map[string]bool
	clickErr map[string]error
	clicks   map[string]int
	filled   map[string]string

	onClick    map[string]func(fs *fakeSession)
	onNavigate func(fs *fakeSession, url string)
	onEscape   func(fs *fakeSession)

	sources   []string
	sourceIdx int

	location string
	escapes  int
	closed   bool
}

func newFakeSession(downloadDir string) *fakeSession {
	return &fakeSession{
		downloadDir: downloadDir,
		present:     map[string]bool{},
		clickErr:    map[string]error{},
		clicks:      map[string]int{},
		filled:      map[string]string{},
		onClick:     map[string]func(fs *fakeSession){},
	}
}

// show marks selectors as rendered and clickable.
func (fs *fakeSession) show(selectors ...string) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	for _, sel := range selectors {
		fs.present[sel] = true
	}
}

func (fs *fakeSession) hide(selectors ...string) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	for _, sel := range selectors {
		delete(fs.present, sel)
	}
}

// showLoginFlow scripts a portal whose login always succeeds.
func (fs *fakeSession) showLoginFlow() {
	fs.show(selLoginButton, selUsername, selPassword, selMainContent)
}

// showExportFlow scripts a course page where every export control is
// available.
func (fs *fakeSession) showExportFlow() {
	fs.show(
		selGradebookTab,
		selExportMenu,
		selExportAll,
		selRefreshExports,
		selExportList,
		selExportLinks,
	)
}

// writeDownload drops a finished download into the session's
// directory, the way the portal would after the export link is
// clicked.
func (fs *fakeSession) writeDownload(name, contents string) {
	err := os.WriteFile(filepath.Join(fs.downloadDir, name), []byte(contents), 0644)
	if err != nil {
		panic(err)
	}
}

func (fs *fakeSession) Navigate(ctx context.Context, url string) error {
	fs.mu.Lock()
	fs.location = url
	hook := fs.onNavigate
	fs.mu.Unlock()
	if hook != nil {
		hook(fs, url)
	}
	return nil
}

func (fs *fakeSession) Click(ctx context.Context, selector string) error {
	fs.mu.Lock()
	fs.clicks[selector]++
	err := fs.clickErr[selector]
	ok := fs.present[selector]
	hook := fs.onClick[selector]
	fs.mu.Unlock()

	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no element matches %q", selector)
	}
	if hook != nil {
		hook(fs)
	}
	return nil
}

// ForceClick bypasses scripted interception but still requires the
// element to exist.
func (fs *fakeSession) ForceClick(ctx context.Context, selector string) error {
	fs.mu.Lock()
	fs.clicks[selector]++
	ok := fs.present[selector]
	hook := fs.onClick[selector]
	fs.mu.Unlock()

	if !ok {
		return fmt.Errorf("no element matches %q", selector)
	}
	if hook != nil {
		hook(fs)
	}
	return nil
}

func (fs *fakeSession) Fill(ctx context.Context, selector, text string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if !fs.present[selector] {
		return fmt.Errorf("no element matches %q", selector)
	}
	fs.filled[selector] = text
	return nil
}

func (fs *fakeSession) PressEscape(ctx context.Context) error {
	fs.mu.Lock()
	fs.escapes++
	hook := fs.onEscape
	fs.mu.Unlock()
	if hook != nil {
		hook(fs)
	}
	return nil
}

func (fs *fakeSession) WaitFor(ctx context.Context, selector string, state browser.State, timeout time.Duration) bool {
	fs.mu.Lock()
	ok := fs.present[selector]
	fs.mu.Unlock()
	if state == browser.StateHidden {
		return !ok
	}
	return ok
}

func (fs *fakeSession) CurrentLocation(ctx context.Context) (string, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.location, nil
}

func (fs *fakeSession) PageSource(ctx context.Context) (string, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if len(fs.sources) == 0 {
		return "", nil
	}
	idx := fs.sourceIdx
	if idx >= len(fs.sources) {
		idx = len(fs.sources) - 1
	}
	fs.sourceIdx++
	return fs.sources[idx], nil
}

func (fs *fakeSession) Close(ctx context.Context) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.closed = true
	return nil
}

// fakeFactory scripts sessions per slot. The setup hook configures
// each new session; sessions and their directories are recorded so
// tests can assert on isolation and cleanup.
type fakeFactory struct {
	mu       sync.Mutex
	setup    func(fs *fakeSession)
	err      error
	errDirs  []string
	sessions []*fakeSession
}

func (f *fakeFactory) NewSession(ctx context.Context, downloadDir string) (browser.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}
	for _, fragment := range f.errDirs {
		if filepath.Base(downloadDir) == fragment {
			return nil, fmt.Errorf("browser process refused to start")
		}
	}

	fs := newFakeSession(downloadDir)
	if f.setup != nil {
		f.setup(fs)
	}
	f.sessions = append(f.sessions, fs)
	return fs, nil
}

const fakeDownloadName = "GRADEBOOK_DATA_2025_07_01T12_00_00Z_export.csv"

const fakeGradebookCSV = `Student , Email ,Quiz 1, Final Exam,
"Points Possible","","10","100",
Alice Zhang , alice@example.com ,8,91,
Bob Ruiz,bob@example.com," ",,
Carol Wu,carol@example.com,10,77.5,
`

func testTimeouts() Timeouts {
	return Timeouts{
		PageLoad:      time.Millisecond * 50,
		ElementWait:   time.Millisecond * 40,
		DownloadWait:  time.Second * 3,
		ModalWait:     time.Millisecond * 10,
		AnimationWait: time.Millisecond * 5,
		LoginWait:     time.Millisecond * 20,
	}
}

func testService(t interface{ TempDir() string }, factory browser.Factory) Service {
	dir := t.TempDir()
	return NewService(factory, Options{
		BaseUrl:     "https://portal.example.com",
		Credentials: Credentials{LoginId: "operator@example.com", Secret: "hunter2"},
		WorkDir:     filepath.Join(dir, "work"),
		OutputDir:   filepath.Join(dir, "exports"),
		Timeouts:    testTimeouts(),
	})
}
