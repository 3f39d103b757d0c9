// Package safeurl guards outbound fetches of user-influenced URLs: only
// http and https, no private or loopback targets, bounded bodies.
package safeurl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// MaxResponseBody is the default cap for response bodies (1 MiB).
const MaxResponseBody int64 = 1 << 20

var (
	// ErrSSRF is returned when a URL targets a private or loopback address.
	ErrSSRF = errors.New("safeurl: URL targets a private or loopback address")
	// ErrUnsafeScheme is returned for schemes other than http and https.
	ErrUnsafeScheme = errors.New("safeurl: only http and https schemes are allowed")
	// ErrTooLarge is returned when a body exceeds its limit.
	ErrTooLarge = errors.New("safeurl: response too large")
)

// StatusError is a non-2xx response.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("safeurl: GET %s: status %d", e.URL, e.Code)
}

// Validate checks that rawURL uses http or https, names a host, and does
// not resolve to a private address. A DNS failure is let through; the
// connection attempt will fail on its own.
func Validate(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("safeurl: invalid URL: %w", err)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return ErrUnsafeScheme
	}
	host := u.Hostname()
	if host == "" {
		return fmt.Errorf("safeurl: URL has no host")
	}
	if ip := net.ParseIP(host); ip != nil {
		if IsPrivateIP(ip) {
			return ErrSSRF
		}
		return nil
	}
	addrs, err := net.LookupHost(host)
	if err != nil {
		return nil
	}
	for _, a := range addrs {
		if ip := net.ParseIP(a); ip != nil && IsPrivateIP(ip) {
			return ErrSSRF
		}
	}
	return nil
}

// LimitedReadAll reads at most maxBytes from r.
func LimitedReadAll(r io.Reader, maxBytes int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, maxBytes)
	}
	return data, nil
}

var privateRanges = func() []*net.IPNet {
	var out []*net.IPNet
	for _, c := range []string{"10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16", "fc00::/7", "169.254.0.0/16", "100.64.0.0/10"} {
		_, n, err := net.ParseCIDR(c)
		if err == nil {
			out = append(out, n)
		}
	}
	return out
}()

// IsPrivateIP reports loopback, link-local, unspecified and private
// ranges.
func IsPrivateIP(ip net.IP) bool {
	if ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsUnspecified() {
		return true
	}
	for _, n := range privateRanges {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// Fetcher performs validated GETs.
type Fetcher struct {
	// Client defaults to an http.Client with Timeout.
	Client *http.Client
	// Timeout applies when Client is nil. Default: 10s.
	Timeout time.Duration
	// MaxBody caps the body. Default: MaxResponseBody.
	MaxBody int64
	// AllowPrivate disables the address check (tests, intranet deployments).
	AllowPrivate bool
	// UserAgent is sent when set.
	UserAgent string
}

// Get fetches rawURL and returns its body.
func (f *Fetcher) Get(ctx context.Context, rawURL string) ([]byte, error) {
	if !f.AllowPrivate {
		if err := Validate(rawURL); err != nil {
			return nil, err
		}
	} else if u, err := url.Parse(rawURL); err != nil {
		return nil, fmt.Errorf("safeurl: invalid URL: %w", err)
	} else if s := strings.ToLower(u.Scheme); s != "http" && s != "https" {
		return nil, ErrUnsafeScheme
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("safeurl: request: %w", err)
	}
	if f.UserAgent != "" {
		req.Header.Set("User-Agent", f.UserAgent)
	}
	resp, err := f.client().Do(req)
	if err != nil {
		return nil, fmt.Errorf("safeurl: GET %s: %w", rawURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{URL: rawURL, Code: resp.StatusCode}
	}
	limit := f.MaxBody
	if limit <= 0 {
		limit = MaxResponseBody
	}
	return LimitedReadAll(resp.Body, limit)
}

func (f *Fetcher) client() *http.Client {
	if f.Client != nil {
		return f.Client
	}
	t := f.Timeout
	if t <= 0 {
		t = 10 * time.Second
	}
	c := &http.Client{Timeout: t}
	if !f.AllowPrivate {
		// Refuse redirects into private space.
		c.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return errors.New("safeurl: too many redirects")
			}
			return Validate(req.URL.String())
		}
	}
	return c
}
