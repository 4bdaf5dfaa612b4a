// Package webdriver drives a browser over the W3C WebDriver wire
// protocol (chromedriver, geckodriver or a remote grid). It is the
// production implementation of browser.Session.
package webdriver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http/cookiejar"
	"strings"
	"time"

	"gradeport-backend/lib/browser"
	"gradeport-backend/lib/restyutil"
	"gradeport-backend/lib/telemetry"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("gradeport.lib.browser.webdriver")

const elementKey = "element-6066-11e4-a52e-4f735466cecf"

type Options struct {
	// Endpoint is the WebDriver server base url, e.g. http://localhost:9515
	Endpoint string `json:"endpoint"`
	// BrowserName defaults to "chrome"
	BrowserName string `json:"browser_name"`
	Headless    bool   `json:"headless"`
	// extra browser arguments appended to the session capabilities
	Args []string `json:"args"`
}

type Client struct {
	http *resty.Client
	opts Options
}

func NewClient(opts Options) (*Client, error) {
	if opts.Endpoint == "" {
		return nil, fmt.Errorf("a webdriver endpoint was not specified")
	}
	if opts.BrowserName == "" {
		opts.BrowserName = "chrome"
	}

	client := resty.New()
	client.SetBaseURL(opts.Endpoint)
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client.SetCookieJar(jar)
	client.SetHeader("content-type", "application/json")
	client.SetTimeout(time.Second * 30)

	telemetry.InstrumentResty(client, "gradeport.lib.browser.webdriver.http")
	restyutil.InstrumentClient(client, restyInstrumentOutput)

	return &Client{http: client, opts: opts}, nil
}

type wireError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type wireResponse struct {
	Value json.RawMessage `json:"value"`
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	req := c.http.R().SetContext(ctx)
	if body != nil {
		req.SetBody(body)
	}

	res, err := req.Execute(method, path)
	if err != nil {
		return err
	}

	var wrapped wireResponse
	err = json.Unmarshal(res.Body(), &wrapped)
	if err != nil {
		return fmt.Errorf("malformed webdriver response: %w", err)
	}

	if res.IsError() {
		var werr wireError
		if json.Unmarshal(wrapped.Value, &werr) == nil && werr.Error != "" {
			if werr.Error == "element click intercepted" {
				return browser.ErrClickIntercepted
			}
			return fmt.Errorf("webdriver: %s: %s", werr.Error, werr.Message)
		}
		return fmt.Errorf("webdriver: unexpected status %d", res.StatusCode())
	}

	if out != nil {
		return json.Unmarshal(wrapped.Value, out)
	}
	return nil
}

// NewSession starts a fresh browser instance downloading into
// downloadDir. The directory must be exclusive to this session.
func (c *Client) NewSession(ctx context.Context, downloadDir string) (browser.Session, error) {
	ctx, span := tracer.Start(ctx, "NewSession")
	defer span.End()

	args := append([]string{}, c.opts.Args...)
	if c.opts.Headless {
		args = append(args, "--headless=new")
	}

	body := map[string]any{
		"capabilities": map[string]any{
			"alwaysMatch": map[string]any{
				"browserName": c.opts.BrowserName,
				"goog:chromeOptions": map[string]any{
					"args": args,
					"prefs": map[string]any{
						"download.default_directory":   downloadDir,
						"download.prompt_for_download": false,
					},
				},
			},
		},
	}

	var value struct {
		SessionId string `json:"sessionId"`
	}
	err := c.do(ctx, resty.MethodPost, "/session", body, &value)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to create webdriver session")
		return nil, err
	}
	if value.SessionId == "" {
		err = fmt.Errorf("webdriver did not return a session id")
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to create webdriver session")
		return nil, err
	}

	return &Session{client: c, id: value.SessionId}, nil
}

type Session struct {
	client *Client
	id     string
}

var _ browser.Session = (*Session)(nil)

func (s *Session) path(parts ...string) string {
	return "/session/" + s.id + "/" + strings.Join(parts, "/")
}

func (s *Session) Navigate(ctx context.Context, url string) error {
	return s.client.do(ctx, resty.MethodPost, s.path("url"), map[string]string{"url": url}, nil)
}

func (s *Session) CurrentLocation(ctx context.Context) (string, error) {
	var url string
	err := s.client.do(ctx, resty.MethodGet, s.path("url"), nil, &url)
	return url, err
}

func (s *Session) PageSource(ctx context.Context) (string, error) {
	var source string
	err := s.client.do(ctx, resty.MethodGet, s.path("source"), nil, &source)
	return source, err
}

func (s *Session) findElement(ctx context.Context, selector string) (string, error) {
	var value map[string]string
	err := s.client.do(ctx, resty.MethodPost, s.path("element"), map[string]string{
		"using": "css selector",
		"value": selector,
	}, &value)
	if err != nil {
		return "", err
	}
	id := value[elementKey]
	if id == "" {
		return "", fmt.Errorf("no element matches %q", selector)
	}
	return id, nil
}

func (s *Session) Click(ctx context.Context, selector string) error {
	id, err := s.findElement(ctx, selector)
	if err != nil {
		return err
	}
	return s.client.do(ctx, resty.MethodPost, s.path("element", id, "click"), map[string]any{}, nil)
}

func (s *Session) ForceClick(ctx context.Context, selector string) error {
	id, err := s.findElement(ctx, selector)
	if err != nil {
		return err
	}
	return s.client.do(ctx, resty.MethodPost, s.path("execute", "sync"), map[string]any{
		"script": "arguments[0].scrollIntoView({block: 'center'}); arguments[0].click();",
		"args":   []any{map[string]string{elementKey: id}},
	}, nil)
}

func (s *Session) Fill(ctx context.Context, selector, text string) error {
	id, err := s.findElement(ctx, selector)
	if err != nil {
		return err
	}
	err = s.client.do(ctx, resty.MethodPost, s.path("element", id, "clear"), map[string]any{}, nil)
	if err != nil {
		return err
	}
	return s.client.do(ctx, resty.MethodPost, s.path("element", id, "value"), map[string]string{
		"text": text,
	}, nil)
}

func (s *Session) PressEscape(ctx context.Context) error {
	return s.client.do(ctx, resty.MethodPost, s.path("actions"), map[string]any{
		"actions": []any{
			map[string]any{
				"type": "key",
				"id":   "keyboard",
				"actions": []any{
					map[string]string{"type": "keyDown", "value": browser.KeyEscape},
					map[string]string{"type": "keyUp", "value": browser.KeyEscape},
				},
			},
		},
	}, nil)
}

func (s *Session) checkState(ctx context.Context, selector string, state browser.State) bool {
	id, err := s.findElement(ctx, selector)
	if err != nil {
		return state == browser.StateHidden
	}

	var displayed bool
	err = s.client.do(ctx, resty.MethodGet, s.path("element", id, "displayed"), nil, &displayed)
	if err != nil {
		return state == browser.StateHidden
	}

	switch state {
	case browser.StateHidden:
		return !displayed
	case browser.StateVisible:
		return displayed
	case browser.StateClickable:
		if !displayed {
			return false
		}
		var enabled bool
		err = s.client.do(ctx, resty.MethodGet, s.path("element", id, "enabled"), nil, &enabled)
		return err == nil && enabled
	}
	return false
}

func (s *Session) WaitFor(ctx context.Context, selector string, state browser.State, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		if s.checkState(ctx, selector, state) {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		timer := time.NewTimer(time.Millisecond * 250)
		select {
		case <-ctx.Done():
			timer.Stop()
			return false
		case <-timer.C:
		}
	}
}

func (s *Session) Close(ctx context.Context) error {
	return s.client.do(ctx, resty.MethodDelete, "/session/"+s.id, nil, nil)
}
