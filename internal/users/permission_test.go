package users

import "testing"

var allPermissions = []Permission{
	PermissionRead, PermissionWrite, PermissionExecute, PermissionRemove, PermissionAdmin, PermissionRoot,
}

func TestPermissionReflexive(t *testing.T) {
	for _, p := range allPermissions {
		if !p.Contains(p) {
			t.Errorf("%v.Contains(%v) = false, want true (reflexivity)", p, p)
		}
	}
}

func TestRootContainsEverything(t *testing.T) {
	for _, p := range allPermissions {
		if !PermissionRoot.Contains(p) {
			t.Errorf("Root.Contains(%v) = false, want true", p)
		}
	}
}

func TestAdminImpliesReadWriteRemoveExecute(t *testing.T) {
	for _, p := range []Permission{PermissionRead, PermissionWrite, PermissionRemove, PermissionExecute} {
		if !PermissionAdmin.Contains(p) {
			t.Errorf("Admin.Contains(%v) = false, want true", p)
		}
	}
	if PermissionAdmin.Contains(PermissionRoot) {
		t.Error("Admin.Contains(Root) = true, want false")
	}
}

func TestWriteAndRemoveGrantReadButNotAdminOrRoot(t *testing.T) {
	if PermissionWrite.Contains(PermissionAdmin) || PermissionWrite.Contains(PermissionRoot) {
		t.Error("Write must not imply Admin or Root")
	}
	// Write and Remove both grant Read — matching the grounding
	// source's exact branch structure, not just the spec's informal
	// "Write ⇒ Read" prose (see DESIGN.md).
	if !PermissionWrite.Contains(PermissionRead) {
		t.Error("Write.Contains(Read) = false, want true")
	}
	if !PermissionRemove.Contains(PermissionRead) {
		t.Error("Remove.Contains(Read) = false, want true")
	}
	// But Read does not grant Write or Remove back.
	if PermissionRead.Contains(PermissionWrite) || PermissionRead.Contains(PermissionRemove) {
		t.Error("Read must not imply Write or Remove")
	}
}

func TestContainsAntisymmetricBetweenDistinctNonRoot(t *testing.T) {
	for _, a := range allPermissions {
		for _, b := range allPermissions {
			if a == b || a == PermissionRoot || b == PermissionRoot {
				continue
			}
			if a.Contains(b) && b.Contains(a) {
				t.Errorf("%v and %v both imply each other; lattice must be antisymmetric between distinct non-Root permissions", a, b)
			}
		}
	}
}

func TestGroupStringRoundTrip(t *testing.T) {
	groups := []Group{
		PermissionGroup(PermissionAdmin),
		SingularGroup("alice"),
		CustomGroup("beta-testers"),
	}
	for _, g := range groups {
		var got Group
		if err := got.UnmarshalText([]byte(g.String())); err != nil {
			t.Fatalf("UnmarshalText(%q): %v", g.String(), err)
		}
		if !got.Equal(g) {
			t.Errorf("round trip of %q produced %q", g.String(), got.String())
		}
	}
}
