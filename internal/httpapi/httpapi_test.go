package httpapi

import (
	"archive/tar"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nextlevelbuilder/fnhost/internal/deploy"
	"github.com/nextlevelbuilder/fnhost/internal/proxy"
	"github.com/nextlevelbuilder/fnhost/internal/registry"
	"github.com/nextlevelbuilder/fnhost/internal/sandbox"
	"github.com/nextlevelbuilder/fnhost/internal/users"
)

type fakeHandle struct{ running bool }

func (h *fakeHandle) Kill(ctx context.Context) error { h.running = false; return nil }
func (h *fakeHandle) IsRunning() bool                { return h.running }

type fakeSandbox struct{}

func (fakeSandbox) Spawn(ctx context.Context, cfg registry.SandboxConfig, contentsPath string, port int) (sandbox.Handle, error) {
	return &fakeHandle{running: true}, nil
}

type testHarness struct {
	srv   *Server
	mux   *http.ServeMux
	reg   *registry.Manager
	um    *users.Manager
	table *proxy.Table
}

func newHarness(t *testing.T) *testHarness {
	t.Helper()
	reg, err := registry.NewManager(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("registry.NewManager: %v", err)
	}
	um, err := users.NewManager(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("users.NewManager: %v", err)
	}
	table := proxy.NewTable()
	coord := deploy.New(reg, fakeSandbox{}, table, nil)
	srv := New(reg, um, coord, nil, nil)
	return &testHarness{srv: srv, mux: srv.BuildMux(), reg: reg, um: um, table: table}
}

func emptyTar(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	if err := tw.Close(); err != nil {
		t.Fatalf("closing empty tar: %v", err)
	}
	return &buf
}

func (h *testHarness) do(t *testing.T, method, path, token string, body []byte, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	h.mux.ServeHTTP(rec, req)
	return rec
}

// TestUploadDeployThenProxyReachesFunction covers spec scenario 1: upload a
// function, deploy it, and confirm the proxy table now routes to it.
func TestUploadDeployThenProxyReachesFunction(t *testing.T) {
	h := newHarness(t)
	root := h.um.RootToken()

	rec := h.do(t, http.MethodPost, "/api/upload/echo@v1", root, emptyTar(t).Bytes(), "application/x-tar")
	if rec.Code != http.StatusOK {
		t.Fatalf("upload status = %d, body=%s", rec.Code, rec.Body.String())
	}

	rec = h.do(t, http.MethodPost, "/api/deploy/echo@v1", root, nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("deploy status = %d, body=%s", rec.Code, rec.Body.String())
	}

	rec = h.do(t, http.MethodGet, "/api/status/echo@v1", root, nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status status = %d", rec.Code)
	}
	var status map[string]bool
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("decoding status: %v", err)
	}
	if !status["running"] {
		t.Error("status.running = false after deploy")
	}
	if _, ok := h.table.Lookup("v1.echo"); !ok {
		t.Error("proxy table has no entry for the deployed function")
	}
}

// TestAliasOverwriteViaHTTP covers spec scenario 2 through the HTTP layer:
// aliasing a second version to an already-claimed alias silently displaces
// the first version's claim.
func TestAliasOverwriteViaHTTP(t *testing.T) {
	h := newHarness(t)
	root := h.um.RootToken()

	for _, v := range []string{"v1", "v2"} {
		rec := h.do(t, http.MethodPost, "/api/upload/fn@"+v, root, emptyTar(t).Bytes(), "application/x-tar")
		if rec.Code != http.StatusOK {
			t.Fatalf("upload fn@%s status = %d", v, rec.Code)
		}
	}

	body, _ := json.Marshal(map[string]string{"alias": "latest"})
	for _, v := range []string{"v1", "v2"} {
		rec := h.do(t, http.MethodPatch, "/api/alias/fn@"+v, root, body, "application/json")
		if rec.Code != http.StatusOK {
			t.Fatalf("alias fn@%s status = %d, body=%s", v, rec.Code, rec.Body.String())
		}
	}

	rec := h.do(t, http.MethodGet, "/api/get/fn@latest", root, nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get fn@latest status = %d", rec.Code)
	}
	var fn registry.Function
	if err := json.Unmarshal(rec.Body.Bytes(), &fn); err != nil {
		t.Fatalf("decoding function: %v", err)
	}
	if fn.Meta.Version != "v2" {
		t.Errorf("fn@latest resolves to version %q, want v2", fn.Meta.Version)
	}
}

// TestUserGetRootSpecialCase covers spec scenario 4: requesting
// /api/user/get/root never touches the user manager's file-backed store
// and always returns the synthetic root descriptor.
func TestUserGetRootSpecialCase(t *testing.T) {
	h := newHarness(t)
	root := h.um.RootToken()

	rec := h.do(t, http.MethodGet, "/api/user/get/root", root, nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body=%s", rec.Code, rec.Body.String())
	}
	var got clientUser
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if got.Name != "root" {
		t.Errorf("Name = %q, want root", got.Name)
	}
}

func TestUserGetSelfWithoutPathSegment(t *testing.T) {
	h := newHarness(t)
	_ = h.um.Add(users.NewUser("alice", []users.Group{users.PermissionGroup(users.PermissionRead)}))
	token, err := h.um.AddToken("alice", time.Hour)
	if err != nil {
		t.Fatalf("AddToken: %v", err)
	}

	rec := h.do(t, http.MethodGet, "/api/user/get", token, nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body=%s", rec.Code, rec.Body.String())
	}
	var got clientUser
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if got.Name != "alice" {
		t.Errorf("Name = %q, want alice", got.Name)
	}
}

func TestUploadRejectsMissingContentType(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, http.MethodPost, "/api/upload/echo@v1", h.um.RootToken(), emptyTar(t).Bytes(), "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 (MissingContentType)", rec.Code)
	}
}

func TestUploadRejectsMissingAuth(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, http.MethodPost, "/api/upload/echo@v1", "", emptyTar(t).Bytes(), "application/x-tar")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}
