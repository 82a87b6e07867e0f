package proxy

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestStripHostSuffixHostPortForm(t *testing.T) {
	prefix, ok := stripHostSuffix("v1.echo.example.test:8080", "example.test")
	if !ok || prefix != "v1.echo" {
		t.Errorf("stripHostSuffix(host:port) = (%q, %v), want (v1.echo, true)", prefix, ok)
	}
}

func TestStripHostSuffixBareForm(t *testing.T) {
	prefix, ok := stripHostSuffix("v1.echo.example.test", "example.test")
	if !ok || prefix != "v1.echo" {
		t.Errorf("stripHostSuffix(bare) = (%q, %v), want (v1.echo, true)", prefix, ok)
	}
}

func TestStripHostSuffixNoMatch(t *testing.T) {
	if _, ok := stripHostSuffix("unrelated.example.org", "example.test"); ok {
		t.Error("stripHostSuffix matched an unrelated host")
	}
}

func TestServeHTTPFallsThroughToNextOnMiss(t *testing.T) {
	var nextCalled bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nextCalled = true
		w.WriteHeader(http.StatusOK)
	})
	p := New("example.test", NewTable(), next, nil)

	req := httptest.NewRequest(http.MethodGet, "http://control.other.org/api/whatever", nil)
	rec := httptest.NewRecorder()
	p.ServeHTTP(rec, req)

	if !nextCalled {
		t.Error("control-API Next handler was not invoked for a non-matching host")
	}
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestServeHTTPFunctionNotRunning(t *testing.T) {
	p := New("example.test", NewTable(), http.NotFoundHandler(), nil)
	req := httptest.NewRequest(http.MethodGet, "http://v1.echo.example.test/", nil)
	rec := httptest.NewRecorder()
	p.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403 (FunctionNotRunning)", rec.Code)
	}
}

func TestServeHTTPForwardsToRunningFunction(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Upstream", "yes")
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("hi"))
	}))
	defer upstream.Close()

	table := NewTable()
	table.Set("v1.echo", upstream.Listener.Addr().String())
	p := New("example.test", table, http.NotFoundHandler(), nil)

	req := httptest.NewRequest(http.MethodGet, "http://v1.echo.example.test/", nil)
	rec := httptest.NewRecorder()
	p.ServeHTTP(rec, req)

	if rec.Code != http.StatusTeapot {
		t.Errorf("status = %d, want 418", rec.Code)
	}
	if rec.Header().Get("X-Upstream") != "yes" {
		t.Error("upstream response header was not relayed")
	}
	body, _ := io.ReadAll(rec.Body)
	if string(body) != "hi" {
		t.Errorf("body = %q, want %q", body, "hi")
	}
}

func TestServeHTTPMissingHost(t *testing.T) {
	p := New("example.test", NewTable(), http.NotFoundHandler(), nil)
	req := httptest.NewRequest(http.MethodGet, "http://example.test/", nil)
	req.Host = ""
	rec := httptest.NewRecorder()
	p.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 (MissingHost)", rec.Code)
	}
}
