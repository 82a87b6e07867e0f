// Package registry implements the persistent function catalog: the
// canonical/alias keyed mapping from internal/funckey.Key to a shared
// mutable Function cell, and its filesystem layout.
package registry

import (
	"github.com/nextlevelbuilder/fnhost/internal/users"
)

// Metadata identifies a function and its optional version alias.
type Metadata struct {
	Name         string  `json:"name"`
	Version      string  `json:"version"`
	VersionAlias *string `json:"version_alias,omitempty"`
}

// SandboxConfig describes how a function's process is launched and
// isolated. platform_ext fields are flattened onto this struct; on
// non-Linux backends they are accepted but ignored.
type SandboxConfig struct {
	Command          string            `json:"command"`
	Args             []string          `json:"args,omitempty"`
	ROEntries        map[string]string `json:"ro_entries,omitempty"` // host path -> sandbox path (empty value means "same as host path")
	Envs             map[string]*string `json:"envs,omitempty"`       // name -> value, nil means "unset"
	InheritStdout    bool              `json:"inherit_stdout"`
	SyscallFilterMode string           `json:"syscall_filter_mode,omitempty"` // "allow" | "deny", default "deny"
	SyscallFilter     []string         `json:"syscall_filter,omitempty"`
	MountProcfs       bool             `json:"mount_procfs"`
	MountDevtmpfs     bool             `json:"mount_devtmpfs"`
	MountTmpfs        bool             `json:"mount_tmpfs"`
}

// DefaultSandboxConfig returns the spec-mandated defaults: deny-mode
// syscall filtering, procfs and devtmpfs mounted, tmpfs not mounted.
func DefaultSandboxConfig() SandboxConfig {
	return SandboxConfig{
		SyscallFilterMode: "deny",
		MountProcfs:       true,
		MountDevtmpfs:     true,
		MountTmpfs:        false,
	}
}

// Config is the per-function runtime configuration.
type Config struct {
	Group   *users.Group  `json:"group,omitempty"`
	Addr    string        `json:"addr"`
	Sandbox SandboxConfig `json:"sandbox"`
}

// DefaultAddr is the spec-mandated default bind address: the sandboxed
// process reads its assigned port back from the environment.
const DefaultAddr = "127.0.0.1:0"

// Function pairs metadata with runtime configuration. Canonical and
// alias registry entries for the same logical function reference the
// *Cell holding one Function value (the "shared mutable cell" of spec.md §3).
type Function struct {
	Meta   Metadata
	Config Config
}
