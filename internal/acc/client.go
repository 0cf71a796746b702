// Package acc implements the document gateway against the ACC model
// coordination service's session API. One HTTP session per open document:
// POST /v1/sessions opens, DELETE closes, and link/options/sync operations
// address the session by id.
package acc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"modelsync/internal/gateway"
	"modelsync/internal/model"
)

const DefaultBaseURL = "https://developer.api.autodesk.com/modelsync"

type Client struct {
	http    *http.Client
	baseURL string

	mu     sync.Mutex
	closed map[string]bool // session ids already closed, for idempotent Close
}

type options struct {
	baseURL string
	httpc   *http.Client
	verbose bool
	// writer controls where verbose HTTP logs are written (typically stderr) so
	// structured output on stdout stays clean and tests can capture logs.
	writer io.Writer
}

type Option func(*options)

func WithBaseURL(u string) Option {
	return func(o *options) { o.baseURL = u }
}

func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpc = c }
}

func WithVerbose(enabled bool, writer io.Writer) Option {
	return func(o *options) {
		o.verbose = enabled
		o.writer = writer
	}
}

// loggingRoundTripper wraps an underlying transport and emits one line per
// request and response (including latency) when verbose logging is enabled.
type loggingRoundTripper struct {
	base http.RoundTripper
	w    io.Writer
}

func (t *loggingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	if t.w != nil {
		_, _ = fmt.Fprintf(t.w, "[verbose] acc api: %s %s\n", req.Method, req.URL.String())
	}
	resp, err := t.base.RoundTrip(req)
	dur := time.Since(start)
	if t.w != nil {
		if err != nil {
			_, _ = fmt.Fprintf(t.w, "[verbose] acc api: error after %s: %v\n", dur.Truncate(time.Millisecond), err)
		} else {
			_, _ = fmt.Fprintf(t.w, "[verbose] acc api: %d %s (%s)\n", resp.StatusCode, http.StatusText(resp.StatusCode), dur.Truncate(time.Millisecond))
		}
	}
	return resp, err
}

// NewClient builds a gateway over the session API. source may be nil for
// unauthenticated (test) endpoints.
func NewClient(ctx context.Context, source oauth2.TokenSource, opts ...Option) (*Client, error) {
	if ctx == nil {
		return nil, fmt.Errorf("acc client: ctx is nil")
	}

	o := &options{baseURL: DefaultBaseURL}
	for _, apply := range opts {
		if apply != nil {
			apply(o)
		}
	}
	if o.verbose && o.writer == nil {
		o.writer = os.Stderr
	}
	if _, err := url.Parse(o.baseURL); err != nil {
		return nil, fmt.Errorf("acc client: invalid base URL %q: %w", o.baseURL, err)
	}

	httpc := o.httpc
	if httpc == nil {
		transport := http.DefaultTransport
		if o.verbose {
			transport = &loggingRoundTripper{base: transport, w: o.writer}
		}
		if source != nil {
			transport = &oauth2.Transport{Source: source, Base: transport}
		}
		httpc = &http.Client{Transport: transport, Timeout: 5 * time.Minute}
	}

	return &Client{
		http:    httpc,
		baseURL: strings.TrimRight(o.baseURL, "/"),
		closed:  make(map[string]bool),
	}, nil
}

// handle is the session-backed gateway.Handle.
type handle struct {
	id      model.Identity
	mode    gateway.OpenMode
	session string
	name    string
}

func (h *handle) Identity() model.Identity { return h.id }
func (h *handle) Mode() gateway.OpenMode   { return h.mode }

type openRequest struct {
	Region  string `json:"region"`
	Project string `json:"projectId"`
	Model   string `json:"modelId"`
	Mode    string `json:"mode"`
}

type openResponse struct {
	Session string `json:"sessionId"`
	Name    string `json:"name"`
}

type linkResponse struct {
	Links []struct {
		Region  string `json:"region"`
		Project string `json:"projectId"`
		Model   string `json:"modelId"`
		Name    string `json:"name"`
	} `json:"links"`
}

type optionsRequest struct {
	WorksetMode string   `json:"worksetMode"`
	Worksets    []string `json:"worksets,omitempty"`
}

func (c *Client) OpenDetached(ctx context.Context, id model.Identity) (gateway.Handle, error) {
	return c.open(ctx, id, gateway.OpenDetached)
}

func (c *Client) OpenFull(ctx context.Context, id model.Identity) (gateway.Handle, error) {
	return c.open(ctx, id, gateway.OpenFull)
}

func (c *Client) open(ctx context.Context, id model.Identity, mode gateway.OpenMode) (gateway.Handle, error) {
	if id.IsZero() {
		return nil, fmt.Errorf("acc open: identity is zero")
	}
	body := openRequest{
		Region:  string(id.Region),
		Project: id.ProjectID.String(),
		Model:   id.ModelID.String(),
		Mode:    string(mode),
	}
	var out openResponse
	if err := c.do(ctx, http.MethodPost, "/v1/sessions", id, body, &out); err != nil {
		return nil, err
	}
	if out.Session == "" {
		return nil, gateway.NewError(gateway.KindTransientIO, id, fmt.Errorf("host returned no session id"))
	}
	return &handle{id: id, mode: mode, session: out.Session, name: out.Name}, nil
}

func (c *Client) ReadDirectLinks(ctx context.Context, h gateway.Handle) ([]gateway.Link, error) {
	sh, err := c.own(h)
	if err != nil {
		return nil, err
	}
	var out linkResponse
	if err := c.do(ctx, http.MethodGet, "/v1/sessions/"+sh.session+"/links", sh.id, nil, &out); err != nil {
		return nil, err
	}
	links := make([]gateway.Link, 0, len(out.Links))
	for _, l := range out.Links {
		lid, err := model.NewIdentity(l.Region, l.Project, l.Model)
		if err != nil {
			return nil, gateway.NewError(gateway.KindCorruptModel, sh.id, fmt.Errorf("malformed link reference: %w", err))
		}
		links = append(links, gateway.Link{Identity: lid, Name: l.Name})
	}
	return links, nil
}

func (c *Client) ApplyOptions(ctx context.Context, h gateway.Handle, opts gateway.Options) error {
	sh, err := c.own(h)
	if err != nil {
		return err
	}
	if sh.mode != gateway.OpenFull {
		return fmt.Errorf("acc apply options: %s is open detached", sh.id)
	}
	body := optionsRequest{WorksetMode: string(opts.WorksetMode), Worksets: opts.Worksets}
	return c.do(ctx, http.MethodPost, "/v1/sessions/"+sh.session+"/options", sh.id, body, nil)
}

func (c *Client) Sync(ctx context.Context, h gateway.Handle) error {
	sh, err := c.own(h)
	if err != nil {
		return err
	}
	if sh.mode != gateway.OpenFull {
		return fmt.Errorf("acc sync: %s is open detached", sh.id)
	}
	return c.do(ctx, http.MethodPost, "/v1/sessions/"+sh.session+"/sync", sh.id, nil, nil)
}

// Close releases the session. Repeat closes of the same handle are no-ops,
// and close failures are swallowed: the session expires server-side anyway.
func (c *Client) Close(ctx context.Context, h gateway.Handle) {
	sh, err := c.own(h)
	if err != nil {
		return
	}
	c.mu.Lock()
	if c.closed[sh.session] {
		c.mu.Unlock()
		return
	}
	c.closed[sh.session] = true
	c.mu.Unlock()

	_ = c.do(ctx, http.MethodDelete, "/v1/sessions/"+sh.session, sh.id, nil, nil)
}

func (c *Client) own(h gateway.Handle) (*handle, error) {
	sh, ok := h.(*handle)
	if !ok || sh == nil {
		return nil, fmt.Errorf("acc: foreign handle %T", h)
	}
	return sh, nil
}

type apiError struct {
	Message string `json:"message"`
}

func (c *Client) do(ctx context.Context, method, path string, id model.Identity, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("acc: encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("acc: build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		// Transport-level failures are indistinguishable from a host outage
		// only when the host never answered at all; treat them as transient
		// so the retry policy gets a say.
		return gateway.NewError(gateway.KindTransientIO, id, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return gateway.NewError(gateway.KindTransientIO, id, fmt.Errorf("decode response: %w", err))
		}
		return nil
	}

	msg := readAPIError(resp.Body)
	return statusError(resp.StatusCode, id, msg)
}

func readAPIError(r io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil || len(raw) == 0 {
		return ""
	}
	var ae apiError
	if json.Unmarshal(raw, &ae) == nil && ae.Message != "" {
		return ae.Message
	}
	return strings.TrimSpace(string(raw))
}

// statusError maps an HTTP status to the engine's failure taxonomy.
func statusError(status int, id model.Identity, msg string) error {
	underlying := fmt.Errorf("%d %s", status, http.StatusText(status))
	if msg != "" {
		underlying = fmt.Errorf("%d %s: %s", status, http.StatusText(status), msg)
	}

	switch {
	case status == http.StatusNotFound:
		return gateway.NewError(gateway.KindNotFound, id, underlying)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return gateway.NewError(gateway.KindAccessDenied, id, underlying)
	case status == http.StatusLocked:
		return gateway.NewError(gateway.KindLocked, id, underlying)
	case status == http.StatusConflict:
		return gateway.NewError(gateway.KindSyncConflict, id, underlying)
	case status == http.StatusUnprocessableEntity:
		return gateway.NewError(gateway.KindCorruptModel, id, underlying)
	case status == http.StatusServiceUnavailable || status == http.StatusBadGateway:
		// The whole host is down, not just this model.
		return fmt.Errorf("%w: %v", gateway.ErrUnavailable, underlying)
	case status >= 500:
		return gateway.NewError(gateway.KindTransientIO, id, underlying)
	default:
		return gateway.NewError(gateway.KindTransientIO, id, underlying)
	}
}
