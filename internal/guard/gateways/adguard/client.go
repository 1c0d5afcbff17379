package adguard

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/guardhome/guardhome/internal/guard/common/log"
	"github.com/guardhome/guardhome/internal/guard/domain"
	"github.com/guardhome/guardhome/internal/guard/metrics"
	"github.com/guardhome/guardhome/internal/guard/services/unblock"
)

// Error message constants for consistent error handling
const (
	errBaseURLRequired  = "upstream base URL is required"
	errBaseURLInvalid   = "invalid upstream base URL %q: %w"
	errRequestBuild     = "building request: %w"
	errRequestFailed    = "%s %s: %w"
	errUnexpectedStatus = "%s %s: unexpected status %d"
	errDecodeFailed     = "%s %s: decoding response: %w"
	errLoginNoCookie    = "login succeeded but no %s cookie in response"
)

const (
	defaultTimeout = 10 * time.Second
	sessionCookie  = "agh_session"

	loginPath     = "/control/login"
	checkHostPath = "/control/filtering/check_host"
	statusPath    = "/control/filtering/status"
	setRulesPath  = "/control/filtering/set_rules"
)

// Client wraps the AdGuard Home control API. It owns no state between
// calls other than the cached session cookie; every domain-level
// operation is a single authenticated HTTP round trip, with one
// transparent re-login retry when the session has expired.
type Client struct {
	baseURL  string
	username string
	password string
	timeout  time.Duration
	httpc    *http.Client
	logger   log.Logger

	mu      sync.Mutex
	session string
}

// Options defines configuration parameters for the upstream client.
type Options struct {
	// required parameters
	BaseURL string
	// optional credentials; both must be set for session auth to engage
	Username string
	Password string
	Timeout  time.Duration
	Logger   log.Logger
	// options to inject for testing purposes
	HTTPClient *http.Client
}

// New creates an upstream filtering API client with the specified options.
// Returns an error if the base URL is missing or malformed. Defaults the
// timeout to 10 seconds and the HTTP client to one honoring that timeout.
func New(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, errors.New(errBaseURLRequired)
	}
	u, err := url.Parse(opts.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		if err == nil {
			err = errors.New("missing scheme or host")
		}
		return nil, fmt.Errorf(errBaseURLInvalid, opts.BaseURL, err)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}
	if opts.Logger == nil {
		opts.Logger = log.GetLogger()
	}
	return &Client{
		baseURL:  strings.TrimSuffix(opts.BaseURL, "/"),
		username: opts.Username,
		password: opts.Password,
		timeout:  opts.Timeout,
		httpc:    opts.HTTPClient,
		logger:   opts.Logger,
	}, nil
}

// CheckHost asks the filtering service whether name is blocked and why.
// The name must already be validated; the client does not re-validate.
func (c *Client) CheckHost(ctx context.Context, name domain.Name) (domain.CheckResult, error) {
	var wire struct {
		Reason      string   `json:"reason"`
		FilterID    *int64   `json:"filter_id"`
		Rule        string   `json:"rule"`
		ServiceName string   `json:"service_name"`
		CName       string   `json:"cname"`
		IPAddrs     []string `json:"ip_addrs"`
	}
	q := url.Values{"name": []string{name.String()}}
	if err := c.call(ctx, "check_host", http.MethodGet, checkHostPath, q, nil, &wire); err != nil {
		return domain.CheckResult{}, err
	}

	reason, err := domain.ParseReason(wire.Reason)
	if err != nil {
		return domain.CheckResult{}, err
	}
	return domain.CheckResult{
		Reason:      reason,
		Rule:        wire.Rule,
		FilterID:    wire.FilterID,
		ServiceName: wire.ServiceName,
		CName:       wire.CName,
		IPAddrs:     wire.IPAddrs,
	}, nil
}

// Status fetches the current filtering configuration snapshot.
func (c *Client) Status(ctx context.Context) (domain.FilterStatus, error) {
	var st domain.FilterStatus
	if err := c.call(ctx, "status", http.MethodGet, statusPath, nil, nil, &st); err != nil {
		return domain.FilterStatus{}, err
	}
	return st, nil
}

// UserRules returns the current ordered list of user rules. The control
// API exposes user rules only as part of the filtering status payload,
// so this is a status fetch narrowed to its user_rules field.
func (c *Client) UserRules(ctx context.Context) ([]string, error) {
	st, err := c.Status(ctx)
	if err != nil {
		return nil, err
	}
	rules := make([]string, len(st.UserRules))
	copy(rules, st.UserRules)
	return rules, nil
}

// SetRules replaces the complete user rule list upstream. The control API
// replaces, never appends; callers own snapshotting. No retries.
func (c *Client) SetRules(ctx context.Context, rules []string) error {
	body := map[string][]string{"rules": rules}
	return c.call(ctx, "set_rules", http.MethodPost, setRulesPath, nil, body, nil)
}

// call runs one authenticated request and maps the outcome onto the
// shared error taxonomy, recording metrics along the way.
func (c *Client) call(ctx context.Context, op, method, path string, query url.Values, body, out any) error {
	start := time.Now()
	err := c.do(ctx, method, path, query, body, out)
	metrics.Get().ObserveUpstream(op, err, time.Since(start))
	if err != nil {
		c.logger.Error(map[string]any{
			"op":    op,
			"error": err.Error(),
		}, "Upstream filtering call failed")
	}
	return err
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	ctx, cancel := c.ensureContextDeadline(ctx)
	if cancel != nil {
		defer cancel()
	}

	if err := c.ensureAuthenticated(ctx); err != nil {
		return err
	}

	resp, err := c.send(ctx, method, path, query, body)
	if err != nil {
		return err
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		drain(resp)
		// Session may have expired: re-login once and retry this one call.
		// A second authentication failure propagates.
		if !c.hasCredentials() {
			return fmt.Errorf("%w: status %d and no credentials configured", domain.ErrUpstreamAuth, resp.StatusCode)
		}
		c.logger.Info(map[string]any{"path": path}, "Session rejected, re-authenticating")
		if err := c.login(ctx); err != nil {
			return err
		}
		resp, err = c.send(ctx, method, path, query, body)
		if err != nil {
			return err
		}
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			drain(resp)
			return fmt.Errorf("%w: status %d after re-authentication", domain.ErrUpstreamAuth, resp.StatusCode)
		}
	}
	defer drain(resp)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: "+errUnexpectedStatus, domain.ErrUpstreamProtocol, method, path, resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%w: "+errDecodeFailed, domain.ErrUpstreamProtocol, method, path, err)
		}
	}
	return nil
}

// send builds and executes a single HTTP request with the current session
// cookie attached. Transport-level failures map to ErrUpstreamUnavailable.
func (c *Client) send(ctx context.Context, method, path string, query url.Values, body any) (*http.Response, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf(errRequestBuild, err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, fmt.Errorf(errRequestBuild, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s := c.currentSession(); s != "" {
		req.AddCookie(&http.Cookie{Name: sessionCookie, Value: s})
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, c.mapTransportError(method, path, err)
	}
	return resp, nil
}

// login authenticates against the control API and caches the session
// cookie. Called lazily before the first request and once more when a
// request comes back 401/403.
func (c *Client) login(ctx context.Context) error {
	creds := map[string]string{"name": c.username, "password": c.password}
	buf, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf(errRequestBuild, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+loginPath, bytes.NewReader(buf))
	if err != nil {
		return fmt.Errorf(errRequestBuild, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return c.mapTransportError(http.MethodPost, loginPath, err)
	}
	defer drain(resp)

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("%w: login rejected with status %d", domain.ErrUpstreamAuth, resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: "+errUnexpectedStatus, domain.ErrUpstreamProtocol, http.MethodPost, loginPath, resp.StatusCode)
	}

	for _, ck := range resp.Cookies() {
		if ck.Name == sessionCookie && ck.Value != "" {
			c.mu.Lock()
			c.session = ck.Value
			c.mu.Unlock()
			c.logger.Debug(nil, "Authenticated with upstream filtering service")
			return nil
		}
	}
	return fmt.Errorf("%w: "+errLoginNoCookie, domain.ErrUpstreamProtocol, sessionCookie)
}

// ensureAuthenticated logs in when credentials are configured and no
// session is cached yet. Without credentials requests go out anonymous.
func (c *Client) ensureAuthenticated(ctx context.Context) error {
	if !c.hasCredentials() || c.currentSession() != "" {
		return nil
	}
	return c.login(ctx)
}

func (c *Client) hasCredentials() bool {
	return c.username != "" && c.password != ""
}

func (c *Client) currentSession() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// ensureContextDeadline ensures the context has a deadline, adding the
// client's default timeout if needed. Returns the context (potentially
// with added timeout) and a cancel function if one was created.
func (c *Client) ensureContextDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); !ok {
		return context.WithTimeout(ctx, c.timeout)
	}
	return ctx, nil
}

// mapTransportError folds connection and deadline failures into
// ErrUpstreamUnavailable. Timeout and connection-refused differ only in
// the logged detail, not in the contract.
func (c *Client) mapTransportError(method, path string, err error) error {
	kind := "connection"
	var nerr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &nerr) && nerr.Timeout()) {
		kind = "timeout"
	}
	c.logger.Warn(map[string]any{
		"method": method,
		"path":   path,
		"kind":   kind,
		"error":  err.Error(),
	}, "Upstream filtering service unreachable")
	return fmt.Errorf("%w: "+errRequestFailed, domain.ErrUpstreamUnavailable, method, path, err)
}

// drain discards and closes a response body so the connection can be reused.
func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}

var _ unblock.FilteringClient = (*Client)(nil)
