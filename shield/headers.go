package shield

import (
	"net/http"
	"strings"
)

// Header is one response header written by Headers.
type Header struct {
	Name  string
	Value string
}

// Policy is an ordered list of response headers. Later entries win.
type Policy []Header

var common = Policy{
	{"X-Content-Type-Options", "nosniff"},
	{"X-Frame-Options", "DENY"},
	{"Referrer-Policy", "no-referrer"},
	{"Permissions-Policy", "camera=(), microphone=(), geolocation=()"},
}

// APIPolicy is applied to every route: JSON bodies load nothing and may
// not be framed.
func APIPolicy() Policy {
	return common.With("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
}

// PagePolicy covers retrofitted pages. They are third-party markup, so
// they keep the styles, images and fonts they reference but run no script,
// submit no form and cannot rebase relative URLs.
func PagePolicy() Policy {
	return common.With("Content-Security-Policy",
		"default-src 'none'; script-src 'none'; style-src 'unsafe-inline' https:; "+
			"img-src https: data:; font-src https: data:; form-action 'none'; "+
			"base-uri 'none'; frame-ancestors 'none'")
}

// With returns a copy of p where name carries value. An empty value drops
// the header.
func (p Policy) With(name, value string) Policy {
	out := make(Policy, 0, len(p)+1)
	for _, h := range p {
		if !strings.EqualFold(h.Name, name) {
			out = append(out, h)
		}
	}
	if value != "" {
		out = append(out, Header{name, value})
	}
	return out
}

// Headers writes p on every response, replacing values set by an outer
// Headers so that a route can narrow the stack's policy.
func Headers(p Policy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			for _, x := range p {
				h.Set(x.Name, x.Value)
			}
			next.ServeHTTP(w, r)
		})
	}
}
