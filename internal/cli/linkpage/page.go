// Package linkpage serves the local page that hosts the Plaid Link widget.
//
// The CLI has no document of its own, so the page plays that role: scripts
// are injected into it and the widget runs in the user's browser, reporting
// its callbacks back to this server.
package linkpage

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/thrivebase/thrivebase/internal/cli/banklink"
)

const (
	loopbackAddr = "127.0.0.1:0"
	eventBuffer  = 32
)

// Opener shows a URL to the user, usually in the system browser
type Opener func(url string) error

// Option configures a Page
type Option func(*Page)

// WithHTTPClient sets the client used to fetch injected scripts
func WithHTTPClient(c *http.Client) Option {
	return func(p *Page) {
		p.fetch = c
	}
}

// WithAddr sets the listen address
func WithAddr(addr string) Option {
	return func(p *Page) {
		p.addr = addr
	}
}

// Page is a loopback web page that implements scriptloader.Document and
// banklink.Widget
type Page struct {
	router *gin.Engine
	srv    *http.Server
	addr   string
	url    string
	fetch  *http.Client
	open   Opener
	log    zerolog.Logger

	mu       sync.Mutex
	scripts  []string
	sessions map[string]*handle
}

// New creates a page. Call Start before opening the widget.
func New(open Opener, log zerolog.Logger, opts ...Option) *Page {
	p := &Page{
		addr:     loopbackAddr,
		fetch:    &http.Client{Timeout: 30 * time.Second},
		open:     open,
		log:      log,
		sessions: make(map[string]*handle),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.setupRouter()
	return p
}

func (p *Page) setupRouter() {
	gin.SetMode(gin.ReleaseMode)

	p.router = gin.New()
	p.router.Use(gin.Recovery())
	p.router.Use(p.loggingMiddleware())
	p.router.SetHTMLTemplate(pageTemplate)

	link := p.router.Group("/link/:id")
	{
		link.GET("", p.renderLink)
		link.POST("/event", p.handleEvent)
		link.POST("/success", p.handleSuccess)
		link.POST("/exit", p.handleExit)
	}
}

func (p *Page) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		p.log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Msg("Link page request")
	}
}

// Start listens on the loopback interface and serves in the background
func (p *Page) Start() error {
	ln, err := net.Listen("tcp", p.addr)
	if err != nil {
		return fmt.Errorf("failed to start link page: %w", err)
	}

	p.url = "http://" + ln.Addr().String()
	p.srv = &http.Server{
		Handler:           p.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := p.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			p.log.Error().Err(err).Msg("Link page server error")
		}
	}()

	p.log.Debug().Str("url", p.url).Msg("Link page started")
	return nil
}

// Shutdown stops the server and ends any open widget sessions
func (p *Page) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	for id, h := range p.sessions {
		h.close()
		delete(p.sessions, id)
	}
	p.mu.Unlock()

	if p.srv == nil {
		return nil
	}
	return p.srv.Shutdown(ctx)
}

// URL is the page's base URL, empty before Start
func (p *Page) URL() string {
	return p.url
}

// HasScript implements scriptloader.Document
func (p *Page) HasScript(src string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, s := range p.scripts {
		if s == src {
			return true
		}
	}
	return false
}

// InjectScript implements scriptloader.Document. The script is fetched once
// to make sure it loads before it is added to the page.
func (p *Page) InjectScript(ctx context.Context, src string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := p.fetch.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for _, s := range p.scripts {
		if s == src {
			return nil
		}
	}
	p.scripts = append(p.scripts, src)
	return nil
}

// Open implements banklink.Widget by showing the page for a new session
func (p *Page) Open(ctx context.Context, linkToken string) (banklink.Handle, error) {
	if p.url == "" {
		return nil, errors.New("link page is not running")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	id := uuid.NewString()
	h := newHandle(linkToken)

	p.mu.Lock()
	p.sessions[id] = h
	p.mu.Unlock()

	target := fmt.Sprintf("%s/link/%s", p.url, id)
	if err := p.open(target); err != nil {
		p.mu.Lock()
		delete(p.sessions, id)
		p.mu.Unlock()
		return nil, fmt.Errorf("failed to open %s: %w", target, err)
	}

	p.log.Debug().Str("session_id", id).Msg("Plaid Link opened")
	return h, nil
}

func (p *Page) session(id string) (*handle, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	h, ok := p.sessions[id]
	return h, ok
}

// finish removes the session and delivers its outcome
func (p *Page) finish(id string, outcome banklink.Outcome) bool {
	p.mu.Lock()
	h, ok := p.sessions[id]
	delete(p.sessions, id)
	p.mu.Unlock()

	if !ok {
		return false
	}
	h.finish(outcome)
	return true
}

func (p *Page) renderLink(c *gin.Context) {
	h, ok := p.session(c.Param("id"))
	if !ok {
		c.String(http.StatusNotFound, "Link session not found or already finished")
		return
	}

	p.mu.Lock()
	scripts := append([]string(nil), p.scripts...)
	p.mu.Unlock()

	c.HTML(http.StatusOK, "link", gin.H{
		"Scripts":   scripts,
		"LinkToken": h.linkToken,
	})
}

func (p *Page) handleEvent(c *gin.Context) {
	h, ok := p.session(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}

	var ev banklink.Event
	if err := c.ShouldBindJSON(&ev); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.send(ev)
	c.Status(http.StatusNoContent)
}

func (p *Page) handleSuccess(c *gin.Context) {
	var success banklink.Success
	if err := c.ShouldBindJSON(&success); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !p.finish(c.Param("id"), banklink.Outcome{Success: &success}) {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (p *Page) handleExit(c *gin.Context) {
	var exit banklink.Exit
	if err := c.ShouldBindJSON(&exit); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !p.finish(c.Param("id"), banklink.Outcome{Exit: &exit}) {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

// handle is one open widget session
type handle struct {
	linkToken string
	events    chan banklink.Event
	done      chan banklink.Outcome

	mu     sync.Mutex
	closed bool
}

func newHandle(linkToken string) *handle {
	return &handle{
		linkToken: linkToken,
		events:    make(chan banklink.Event, eventBuffer),
		done:      make(chan banklink.Outcome, 1),
	}
}

func (h *handle) Events() <-chan banklink.Event {
	return h.events
}

func (h *handle) Done() <-chan banklink.Outcome {
	return h.done
}

// send drops the event when nobody keeps up; events are informational
func (h *handle) send(ev banklink.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	select {
	case h.events <- ev:
	default:
	}
}

func (h *handle) finish(outcome banklink.Outcome) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	h.done <- outcome
	close(h.events)
	close(h.done)
}

// close ends the session without an outcome
func (h *handle) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	close(h.events)
	close(h.done)
}

var pageTemplate = template.Must(template.New("link").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>ThriveBase - Link a bank account</title>
{{range .Scripts}}<script src="{{.}}"></script>
{{end}}</head>
<body>
<p id="status">Opening Plaid Link...</p>
<script>
(function () {
  const base = window.location.pathname;
  const status = document.getElementById("status");
  const post = (path, body) => fetch(base + "/" + path, {
    method: "POST",
    headers: {"Content-Type": "application/json"},
    body: JSON.stringify(body)
  });

  const handler = Plaid.create({
    token: {{.LinkToken}},
    onSuccess: (publicToken, metadata) => {
      status.textContent = "Bank account linked. You can close this window.";
      post("success", {
        public_token: publicToken,
        institution: {
          institution_id: metadata.institution.institution_id,
          name: metadata.institution.name,
          accounts: metadata.accounts.map(acc => ({
            id: acc.id,
            name: acc.name,
            type: acc.type,
            subtype: acc.subtype
          }))
        }
      });
    },
    onExit: (err, metadata) => {
      status.textContent = "Plaid Link closed. You can close this window.";
      post("exit", {
        error: err,
        status: metadata.status || "",
        link_session_id: metadata.link_session_id || ""
      });
    },
    onEvent: (eventName, metadata) => {
      post("event", {event_name: eventName, metadata: metadata});
    }
  });

  handler.open();
})();
</script>
</body>
</html>
`))
