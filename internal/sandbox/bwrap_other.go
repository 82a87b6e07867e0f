//go:build !linux

package sandbox

import (
	"context"

	"github.com/nextlevelbuilder/fnhost/internal/registry"
)

// Bubblewrap is unimplemented on non-Linux platforms. This is a
// deliberate build-time choice: every operation panics, and there is
// no runtime probe.
type Bubblewrap struct{}

func (Bubblewrap) Spawn(context.Context, registry.SandboxConfig, string, int) (Handle, error) {
	panic("sandbox: unsupported platform")
}

func (Bubblewrap) Kill(context.Context) error { panic("sandbox: unsupported platform") }
func (Bubblewrap) IsRunning() bool            { panic("sandbox: unsupported platform") }
