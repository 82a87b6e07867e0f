package users

import (
	"fmt"
	"strings"
)

// Permission is a single permission bit in the implication lattice.
// The numeric values match the bitmask used by the request
// authenticator (internal/auth) and the control API's mask constants
// (internal/httpapi): READ=1, WRITE=2, EXECUTE=4, REMOVE=8, ADMIN=16, ROOT=32.
type Permission int

const (
	PermissionRead    Permission = 1
	PermissionWrite   Permission = 2
	PermissionExecute Permission = 4
	PermissionRemove  Permission = 8
	PermissionAdmin   Permission = 16
	PermissionRoot    Permission = 32
)

// Contains reports whether the receiver grants the other permission.
// Root grants everything; Admin grants Read, Write, Remove and
// Execute; Write and Remove each grant Read; every permission grants
// itself. Nothing else is implied.
func (p Permission) Contains(other Permission) bool {
	if p == PermissionRoot {
		return true
	}
	switch other {
	case PermissionRead:
		return p == PermissionRead || p == PermissionWrite || p == PermissionRemove || p == PermissionAdmin
	case PermissionWrite:
		return p == PermissionWrite || p == PermissionAdmin
	case PermissionRemove:
		return p == PermissionRemove || p == PermissionAdmin
	case PermissionAdmin:
		return p == PermissionAdmin
	case PermissionExecute:
		return p == PermissionExecute || p == PermissionAdmin
	case PermissionRoot:
		return false
	default:
		return false
	}
}

// String renders the lowercase snake_case wire form.
func (p Permission) String() string {
	switch p {
	case PermissionRead:
		return "read"
	case PermissionWrite:
		return "write"
	case PermissionExecute:
		return "execute"
	case PermissionRemove:
		return "remove"
	case PermissionAdmin:
		return "admin"
	case PermissionRoot:
		return "root"
	default:
		return "unknown"
	}
}

// ParsePermission parses the lowercase snake_case wire form.
func ParsePermission(s string) (Permission, error) {
	switch s {
	case "read":
		return PermissionRead, nil
	case "write":
		return PermissionWrite, nil
	case "execute":
		return PermissionExecute, nil
	case "remove":
		return PermissionRemove, nil
	case "admin":
		return PermissionAdmin, nil
	case "root":
		return PermissionRoot, nil
	default:
		return 0, fmt.Errorf("unknown permission %q", s)
	}
}

// BitsToPermissions expands a compile-time permission bitmask (as used
// by the request authenticator) into the set of literal Permission
// groups it names. This enumerates only the literal bits requested —
// it does not expand through the implication lattice.
func BitsToPermissions(mask uint32) []Permission {
	all := []Permission{PermissionRead, PermissionWrite, PermissionExecute, PermissionRemove, PermissionAdmin, PermissionRoot}
	var out []Permission
	for _, p := range all {
		if mask&uint32(p) != 0 {
			out = append(out, p)
		}
	}
	return out
}

// GroupKind tags which variant a Group holds.
type GroupKind int

const (
	GroupKindPermission GroupKind = iota
	GroupKindSingular
	GroupKindCustom
)

// Group is a tagged union over the three ways a user can be grouped:
// by permission level, by being exactly one named user (Singular), or
// by an arbitrary custom label with no built-in meaning.
type Group struct {
	Kind       GroupKind
	Permission Permission // valid iff Kind == GroupKindPermission
	Name       string     // valid iff Kind == GroupKindSingular
	Label      string     // valid iff Kind == GroupKindCustom
}

func PermissionGroup(p Permission) Group { return Group{Kind: GroupKindPermission, Permission: p} }
func SingularGroup(name string) Group    { return Group{Kind: GroupKindSingular, Name: name} }
func CustomGroup(label string) Group     { return Group{Kind: GroupKindCustom, Label: label} }

// Equal reports structural equality between two groups.
func (g Group) Equal(o Group) bool {
	if g.Kind != o.Kind {
		return false
	}
	switch g.Kind {
	case GroupKindPermission:
		return g.Permission == o.Permission
	case GroupKindSingular:
		return g.Name == o.Name
	case GroupKindCustom:
		return g.Label == o.Label
	default:
		return false
	}
}

// String renders the "prefix:payload" wire form.
func (g Group) String() string {
	switch g.Kind {
	case GroupKindPermission:
		return "permission:" + g.Permission.String()
	case GroupKindSingular:
		return "singular:" + g.Name
	case GroupKindCustom:
		return "custom:" + g.Label
	default:
		return ""
	}
}

// MarshalText implements encoding.TextMarshaler so Group serializes as
// a bare JSON string.
func (g Group) MarshalText() ([]byte, error) {
	return []byte(g.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler, parsing the
// "prefix:payload" wire form.
func (g *Group) UnmarshalText(b []byte) error {
	s := string(b)
	prefix, payload, ok := strings.Cut(s, ":")
	if !ok {
		return fmt.Errorf("invalid group %q: missing ':' separator", s)
	}
	switch prefix {
	case "permission":
		p, err := ParsePermission(payload)
		if err != nil {
			return fmt.Errorf("invalid group %q: %w", s, err)
		}
		*g = PermissionGroup(p)
	case "singular":
		*g = SingularGroup(payload)
	case "custom":
		*g = CustomGroup(payload)
	default:
		return fmt.Errorf("invalid group %q: unknown prefix %q", s, prefix)
	}
	return nil
}
