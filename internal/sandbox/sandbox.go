// Package sandbox provides the capability-typed abstraction over
// OS-level process isolation: spawn a function's process inside a
// sandbox and track/kill it once running.
package sandbox

import (
	"context"

	"github.com/nextlevelbuilder/fnhost/internal/registry"
)

// Handle is a live sandboxed process. Implementations are polymorphic
// over exactly this capability set.
type Handle interface {
	Kill(ctx context.Context) error
	IsRunning() bool
}

// Sandbox spawns isolated processes from a SandboxConfig and a host
// contents directory.
type Sandbox interface {
	Spawn(ctx context.Context, cfg registry.SandboxConfig, contentsPath string, port int) (Handle, error)
}
