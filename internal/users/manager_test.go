package users

import (
	"path/filepath"
	"testing"
	"time"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m
}

func TestAddAndAuth(t *testing.T) {
	m := newTestManager(t)
	u := NewUser("alice", []Group{PermissionGroup(PermissionAdmin)})
	if err := m.Add(u); err != nil {
		t.Fatalf("Add: %v", err)
	}
	token, err := m.AddToken("alice", time.Hour)
	if err != nil {
		t.Fatalf("AddToken: %v", err)
	}
	if !m.Auth(token, nil) {
		t.Error("Auth(token, nil) = false, want true")
	}
	if !m.Auth(token, []Group{PermissionGroup(PermissionAdmin)}) {
		t.Error("Auth(token, [Admin]) = false, want true")
	}
	if m.Auth(token, []Group{PermissionGroup(PermissionRoot)}) {
		t.Error("Auth(token, [Root]) = true, want false")
	}
}

func TestAddRejectsDuplicateAndRoot(t *testing.T) {
	m := newTestManager(t)
	if err := m.Add(NewUser("root", nil)); !IsDuplicate(err) {
		t.Errorf("Add(root) error = %v, want duplicate", err)
	}
	if err := m.Add(NewUser("bob", nil)); err != nil {
		t.Fatalf("Add(bob): %v", err)
	}
	if err := m.Add(NewUser("bob", nil)); !IsDuplicate(err) {
		t.Errorf("Add(bob) twice error = %v, want duplicate", err)
	}
}

func TestRootTokenBypassesEverything(t *testing.T) {
	m := newTestManager(t)
	if !m.Auth(m.RootToken(), []Group{PermissionGroup(PermissionRoot), CustomGroup("anything")}) {
		t.Error("root token must satisfy every required group")
	}
	name, ok := m.UserName(m.RootToken())
	if !ok || name != "root" {
		t.Errorf("UserName(root token) = (%q, %v), want (root, true)", name, ok)
	}
}

func TestTokenExpiry(t *testing.T) {
	m := newTestManager(t)
	_ = m.Add(NewUser("alice", nil))
	token, err := m.AddToken("alice", time.Second)
	if err != nil {
		t.Fatalf("AddToken: %v", err)
	}
	if !m.Auth(token, nil) {
		t.Error("token should be valid immediately after issuance")
	}
	time.Sleep(2 * time.Second)
	if m.Auth(token, nil) {
		t.Error("token should be expired after its duration elapses")
	}
}

func TestRemovePurgesTokens(t *testing.T) {
	m := newTestManager(t)
	_ = m.Add(NewUser("alice", nil))
	token, _ := m.AddToken("alice", time.Hour)
	if err := m.Remove("alice"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if m.Auth(token, nil) {
		t.Error("token must stop resolving once its user is removed")
	}
}

func TestSaveAndReload(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "root")
	m, err := NewManager(dir, nil)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	_ = m.Add(NewUser("alice", []Group{PermissionGroup(PermissionWrite)}))
	if _, err := m.AddToken("alice", time.Hour); err != nil {
		t.Fatalf("AddToken: %v", err)
	}
	if err := m.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	reloaded, err := NewManager(dir, nil)
	if err != nil {
		t.Fatalf("NewManager (reload): %v", err)
	}
	found, err := Peek(reloaded, "alice", func(u *User) bool { return true })
	if err != nil || !found {
		t.Fatalf("Peek(alice) after reload = (%v, %v)", found, err)
	}
}
