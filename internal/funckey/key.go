// Package funckey implements the canonical (name, version) key that
// addresses a function in the registry, and its string encoding.
package funckey

import (
	"fmt"
	"regexp"
	"strings"
)

var charsetRe = regexp.MustCompile(`^[a-z0-9-]+$`)

// Key identifies a function by name and version (or version alias).
// Both halves must be non-empty and match [a-z0-9-]+.
type Key struct {
	Name    string
	Version string
}

// ParseError reports why a string failed to parse as a Key.
type ParseError struct {
	Input  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid function key %q: %s", e.Input, e.Reason)
}

// Parse splits "name@version" into a Key, validating the charset of
// both halves.
func Parse(s string) (Key, error) {
	name, version, ok := strings.Cut(s, "@")
	if !ok {
		return Key{}, &ParseError{Input: s, Reason: "missing '@' separator"}
	}
	if name == "" || version == "" {
		return Key{}, &ParseError{Input: s, Reason: "name and version must be non-empty"}
	}
	if !charsetRe.MatchString(name) || !charsetRe.MatchString(version) {
		return Key{}, &ParseError{Input: s, Reason: "name and version must match [a-z0-9-]+"}
	}
	return Key{Name: name, Version: version}, nil
}

// Valid reports whether name and version would parse successfully if
// joined with "@".
func Valid(name, version string) bool {
	return name != "" && version != "" && charsetRe.MatchString(name) && charsetRe.MatchString(version)
}

// String renders the key back to its "name@version" wire form.
func (k Key) String() string {
	return k.Name + "@" + k.Version
}

// HostPrefix renders the subdomain routing prefix "<version>.<name>"
// used to match the Host header in the reverse proxy.
func (k Key) HostPrefix() string {
	return k.Version + "." + k.Name
}

// WithVersion returns a copy of k addressing a different version (or
// alias) of the same function name.
func (k Key) WithVersion(version string) Key {
	return Key{Name: k.Name, Version: version}
}
