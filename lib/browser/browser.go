package browser

import (
	"context"
	"errors"
	"time"
)

// State names the element condition WaitFor blocks on.
type State string

const (
	StateVisible   State = "visible"
	StateClickable State = "clickable"
	StateHidden    State = "hidden"
)

// key codepoints understood by automation backends, usable inside
// Fill input.
const (
	KeyEnter  = "\uE007"
	KeyEscape = "\uE00C"
)

// ErrClickIntercepted reports that a click landed on an overlapping
// element (overlays, cookie banners) instead of the target.
var ErrClickIntercepted = errors.New("click intercepted by an overlapping element")

// Session is one isolated automation context: its own cookies, login
// state, UI focus and download directory. A Session must never be
// shared between goroutines.
type Session interface {
	Navigate(ctx context.Context, url string) error
	Click(ctx context.Context, selector string) error
	// ForceClick scrolls the element into view and clicks it through
	// script, bypassing overlay interception.
	ForceClick(ctx context.Context, selector string) error
	Fill(ctx context.Context, selector, text string) error
	PressEscape(ctx context.Context) error
	// WaitFor blocks until the first element matching selector reaches
	// the given state, or the timeout passes. It reports whether the
	// state was reached.
	WaitFor(ctx context.Context, selector string, state State, timeout time.Duration) bool
	CurrentLocation(ctx context.Context) (string, error)
	PageSource(ctx context.Context) (string, error)
	Close(ctx context.Context) error
}

// Factory creates Sessions bound to an exclusive download directory.
type Factory interface {
	NewSession(ctx context.Context, downloadDir string) (Session, error)
}
