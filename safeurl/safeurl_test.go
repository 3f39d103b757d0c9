package safeurl

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		url     string
		wantErr error
	}{
		{"http://127.0.0.1/x", ErrSSRF},
		{"http://10.1.2.3/", ErrSSRF},
		{"http://[::1]:8080/", ErrSSRF},
		{"http://169.254.169.254/latest/meta-data", ErrSSRF},
		{"ftp://example.com/", ErrUnsafeScheme},
		{"file:///etc/passwd", ErrUnsafeScheme},
		{"https://93.184.216.34/", nil},
	}
	for _, tt := range tests {
		err := Validate(tt.url)
		if !errors.Is(err, tt.wantErr) {
			t.Errorf("Validate(%q) = %v, want %v", tt.url, err, tt.wantErr)
		}
	}
	if err := Validate("http:///nohost"); err == nil {
		t.Error("expected error for missing host")
	}
}

func TestIsPrivateIP(t *testing.T) {
	for _, s := range []string{"192.168.1.1", "172.20.0.1", "fd00::1", "0.0.0.0"} {
		if !IsPrivateIP(net.ParseIP(s)) {
			t.Errorf("%s should be private", s)
		}
	}
	if IsPrivateIP(net.ParseIP("8.8.8.8")) {
		t.Error("8.8.8.8 is public")
	}
}

func TestLimitedReadAll(t *testing.T) {
	if _, err := LimitedReadAll(strings.NewReader("12345"), 4); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("err = %v, want ErrTooLarge", err)
	}
	b, err := LimitedReadAll(strings.NewReader("1234"), 4)
	if err != nil || string(b) != "1234" {
		t.Fatalf("got %q, %v", b, err)
	}
}

func TestFetcherBlocksLoopback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("secret"))
	}))
	defer srv.Close()

	f := &Fetcher{}
	if _, err := f.Get(context.Background(), srv.URL); !errors.Is(err, ErrSSRF) {
		t.Fatalf("err = %v, want ErrSSRF", err)
	}
}

func TestFetcherAllowPrivate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(r.Header.Get("User-Agent")))
	}))
	defer srv.Close()

	f := &Fetcher{AllowPrivate: true, UserAgent: "elderly-test", MaxBody: 64}
	body, err := f.Get(context.Background(), srv.URL+"/ok")
	if err != nil {
		t.Fatal(err)
	}
	if string(body) != "elderly-test" {
		t.Fatalf("body = %q", body)
	}

	_, err = f.Get(context.Background(), srv.URL+"/missing")
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusNotFound {
		t.Fatalf("err = %v, want 404 StatusError", err)
	}
}
