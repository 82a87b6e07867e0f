package registry

import (
	"archive/tar"
	"bytes"
	"testing"

	"github.com/nextlevelbuilder/fnhost/internal/funckey"
)

func mustKey(t *testing.T, s string) funckey.Key {
	t.Helper()
	k, err := funckey.Parse(s)
	if err != nil {
		t.Fatalf("Parse(%q): %v", s, err)
	}
	return k
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

func TestAddAndGet(t *testing.T) {
	m, err := NewManager(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	key := mustKey(t, "echo@v1")
	if err := m.Add(key, nil, emptyTar(t)); err != nil {
		t.Fatalf("Add: %v", err)
	}
	cell, ok := m.Get(key)
	if !ok {
		t.Fatal("Get after Add: not found")
	}
	fn := cell.Snapshot()
	if fn.Meta.Name != "echo" || fn.Meta.Version != "v1" {
		t.Errorf("unexpected metadata: %+v", fn.Meta)
	}
}

func TestAddRejectsDuplicate(t *testing.T) {
	m, _ := NewManager(t.TempDir(), nil)
	key := mustKey(t, "echo@v1")
	if err := m.Add(key, nil, emptyTar(t)); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := m.Add(key, nil, emptyTar(t)); !IsDuplicated(err) {
		t.Errorf("second Add error = %v, want duplicated", err)
	}
}

func TestAliasRoundTripAndIdempotence(t *testing.T) {
	m, _ := NewManager(t.TempDir(), nil)
	key := mustKey(t, "echo@v1")
	_ = m.Add(key, nil, emptyTar(t))

	alias := "latest"
	if err := m.ModifyAlias(key, &alias); err != nil {
		t.Fatalf("ModifyAlias: %v", err)
	}
	aliasKey := mustKey(t, "echo@latest")
	aliasCell, ok := m.Get(aliasKey)
	if !ok {
		t.Fatal("alias entry not found after ModifyAlias")
	}
	canonicalCell, _ := m.Get(key)
	if aliasCell != canonicalCell {
		t.Error("alias cell is not the same cell as the canonical entry")
	}

	// Idempotent: calling again with the same alias is a no-op.
	if err := m.ModifyAlias(key, &alias); err != nil {
		t.Fatalf("ModifyAlias (idempotent call): %v", err)
	}
	if _, ok := m.Get(aliasKey); !ok {
		t.Error("alias entry disappeared after idempotent ModifyAlias")
	}
}

func TestAliasOverwriteClearsPriorCanonicalAlias(t *testing.T) {
	m, _ := NewManager(t.TempDir(), nil)
	v1 := mustKey(t, "fn@v1")
	v2 := mustKey(t, "fn@v2")
	_ = m.Add(v1, nil, emptyTar(t))
	_ = m.Add(v2, nil, emptyTar(t))

	latest := "latest"
	if err := m.ModifyAlias(v1, &latest); err != nil {
		t.Fatalf("ModifyAlias(v1): %v", err)
	}
	if err := m.ModifyAlias(v2, &latest); err != nil {
		t.Fatalf("ModifyAlias(v2): %v", err)
	}

	cell, ok := m.Get(mustKey(t, "fn@latest"))
	if !ok {
		t.Fatal("fn@latest not found")
	}
	if fn := cell.Snapshot(); fn.Meta.Version != "v2" {
		t.Errorf("fn@latest resolves to version %q, want v2", fn.Meta.Version)
	}

	v1Cell, _ := m.Get(v1)
	if alias := v1Cell.Snapshot().Meta.VersionAlias; alias != nil {
		t.Errorf("v1's VersionAlias = %v, want nil after being displaced", *alias)
	}
}

func TestRemove(t *testing.T) {
	m, _ := NewManager(t.TempDir(), nil)
	key := mustKey(t, "echo@v1")
	_ = m.Add(key, nil, emptyTar(t))
	if err := m.Remove(key); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, ok := m.Get(key); ok {
		t.Error("function still present after Remove")
	}
	if err := m.Remove(key); !IsNotFound(err) {
		t.Errorf("second Remove error = %v, want not found", err)
	}
}

func TestWriteAllToFSRoundTrip(t *testing.T) {
	dir := t.TempDir()
	m, err := NewManager(dir, nil)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	key := mustKey(t, "echo@v1")
	_ = m.Add(key, nil, emptyTar(t))
	alias := "latest"
	_ = m.ModifyAlias(key, &alias)

	if err := m.WriteAllToFS(); err != nil {
		t.Fatalf("WriteAllToFS: %v", err)
	}
	if m.Dirty() {
		t.Error("Dirty() = true after a successful flush")
	}

	reloaded, err := NewManager(dir, nil)
	if err != nil {
		t.Fatalf("NewManager (reload): %v", err)
	}
	cell, ok := reloaded.Get(key)
	if !ok {
		t.Fatal("reloaded registry missing the canonical entry")
	}
	if got := cell.Snapshot().Meta.VersionAlias; got == nil || *got != "latest" {
		t.Errorf("reloaded VersionAlias = %v, want \"latest\"", got)
	}
	if _, ok := reloaded.Get(mustKey(t, "echo@latest")); !ok {
		t.Error("reloaded registry missing the alias entry")
	}
}
