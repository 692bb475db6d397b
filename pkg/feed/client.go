package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/umputun/bilifeed/pkg/domain"
)

// Auth carries the cookie authentication material for feed requests
type Auth struct {
	Cookie     string // full cookie string, "k=v; k2=v2"
	SESSDATA   string
	DedeUserID string
	BiliJCT    string
}

// Cookies merges the cookie string with the discrete fields, discrete
// fields only fill gaps and never override the cookie string
func (a Auth) Cookies() map[string]string {
	cookies := parseCookieString(a.Cookie)
	setDefault := func(k, v string) {
		if v != "" {
			if _, ok := cookies[k]; !ok {
				cookies[k] = v
			}
		}
	}
	setDefault("SESSDATA", a.SESSDATA)
	setDefault("DedeUserID", a.DedeUserID)
	setDefault("bili_jct", a.BiliJCT)
	return cookies
}

// Principal returns a stable identifier of the authenticated user for
// cache keying, the session cookie value serves as the principal
func (a Auth) Principal() string {
	cookies := a.Cookies()
	if v := cookies["SESSDATA"]; v != "" {
		return v
	}
	return a.Cookie
}

// Empty reports whether no credential material is present
func (a Auth) Empty() bool {
	return len(a.Cookies()) == 0
}

func parseCookieString(cookie string) map[string]string {
	cookies := map[string]string{}
	for _, part := range strings.Split(cookie, ";") {
		part = strings.TrimSpace(part)
		if part == "" || !strings.Contains(part, "=") {
			continue
		}
		k, v, _ := strings.Cut(part, "=")
		if k = strings.TrimSpace(k); k != "" {
			cookies[k] = strings.TrimSpace(v)
		}
	}
	return cookies
}

// Mask hides the middle of a credential for logging
func Mask(value string) string {
	if value == "" {
		return "-"
	}
	if len(value) <= 6 {
		return strings.Repeat("*", len(value))
	}
	return value[:2] + strings.Repeat("*", len(value)-4) + value[len(value)-2:]
}

// Client talks to the upstream dynamic feed API, one page at a time
type Client struct {
	http        *http.Client
	endpoint    string
	features    string
	webLocation string
	cookieHdr   string
}

// ClientParams configures the feed client
type ClientParams struct {
	Endpoint    string
	Features    string
	WebLocation string
	Timeout     time.Duration
	Auth        Auth
}

// NewClient creates a feed API client for the authenticated principal
func NewClient(p ClientParams) *Client {
	return &Client{
		http:        &http.Client{Timeout: p.Timeout},
		endpoint:    p.Endpoint,
		features:    p.Features,
		webLocation: p.WebLocation,
		cookieHdr:   cookieHeader(p.Auth.Cookies()),
	}
}

func cookieHeader(cookies map[string]string) string {
	keys := make([]string, 0, len(cookies))
	for k := range cookies {
		keys = append(keys, k)
	}
	sort.Strings(keys) // deterministic header, map order is not
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+cookies[k])
	}
	return strings.Join(pairs, "; ")
}

// addBrowserHeaders adds browser-like headers, the upstream API rejects
// requests that don't look like its own web client
func addBrowserHeaders(req *http.Request) {
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 "+
		"(KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36")
	req.Header.Set("Referer", "https://t.bilibili.com/")
	req.Header.Set("Origin", "https://www.bilibili.com")
	req.Header.Set("Accept", "application/json, text/plain, */*")
}

// FetchPage retrieves one feed page. Typed errors: auth failures come back
// as domain.ErrAuth, transport and HTTP failures as domain.ErrNetwork, an
// undecodable envelope as domain.ErrParse.
func (c *Client) FetchPage(ctx context.Context, dynType, offset, baseline string) (*pageResponse, error) {
	op := "fetch feed page"

	u, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, domain.NewError(domain.ErrConfig, op, fmt.Errorf("bad endpoint %q: %w", c.endpoint, err))
	}
	q := u.Query()
	q.Set("type", dynType)
	q.Set("offset", offset)
	q.Set("update_baseline", baseline)
	q.Set("features", c.features)
	q.Set("web_location", c.webLocation)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), http.NoBody)
	if err != nil {
		return nil, domain.NewError(domain.ErrNetwork, op, err)
	}
	addBrowserHeaders(req)
	if c.cookieHdr != "" {
		req.Header.Set("Cookie", c.cookieHdr)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, domain.NewError(domain.ErrNetwork, op, err)
	}
	defer resp.Body.Close() //nolint:errcheck // nothing to do with close error

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusPreconditionFailed {
		return nil, domain.NewError(domain.ErrAuth, op, fmt.Errorf("upstream rejected credential: HTTP %d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, domain.NewError(domain.ErrNetwork, op, fmt.Errorf("unexpected status: HTTP %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10*1024*1024))
	if err != nil {
		return nil, domain.NewError(domain.ErrNetwork, op, err)
	}

	page, err := decodePage(body)
	if err != nil {
		return nil, domain.NewError(domain.ErrParse, op, fmt.Errorf("decode page envelope: %w", err))
	}

	if page.Code != 0 {
		msg := page.Message
		if msg == "" {
			msg = "unknown error"
		}
		if isAuthCode(page.Code) {
			return nil, domain.NewError(domain.ErrAuth, op, fmt.Errorf("upstream code %d: %s", page.Code, msg))
		}
		return nil, domain.NewError(domain.ErrNetwork, op, fmt.Errorf("upstream code %d: %s", page.Code, msg))
	}

	return page, nil
}
