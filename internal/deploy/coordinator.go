// Package deploy implements the deployment coordinator: the glue
// between the function registry, the sandbox driver, and the proxy's
// routing table.
package deploy

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"

	"github.com/nextlevelbuilder/fnhost/internal/funckey"
	"github.com/nextlevelbuilder/fnhost/internal/proxy"
	"github.com/nextlevelbuilder/fnhost/internal/registry"
	"github.com/nextlevelbuilder/fnhost/internal/sandbox"
)

type coordError struct {
	kind errKind
	msg  string
}

type errKind int

const (
	errNotFound errKind = iota
	errAlreadyRunning
)

func (e *coordError) Error() string { return e.msg }

func IsNotFound(err error) bool        { e, ok := err.(*coordError); return ok && e.kind == errNotFound }
func IsAlreadyRunning(err error) bool  { e, ok := err.(*coordError); return ok && e.kind == errAlreadyRunning }

// Coordinator owns the exclusive mapping from function key to live
// sandbox handle. Removing a key from handles is the trigger to kill
// and release its process.
type Coordinator struct {
	mu       sync.Mutex
	handles  map[funckey.Key]sandbox.Handle
	registry *registry.Manager
	sandbox  sandbox.Sandbox
	table    *proxy.Table
	log      *slog.Logger
}

func New(reg *registry.Manager, sb sandbox.Sandbox, table *proxy.Table, log *slog.Logger) *Coordinator {
	if log == nil {
		log = slog.Default()
	}
	return &Coordinator{
		handles:  make(map[funckey.Key]sandbox.Handle),
		registry: reg,
		sandbox:  sb,
		table:    table,
		log:      log,
	}
}

// Start spawns key's sandboxed process and registers it in the proxy
// table. If a concurrent Start already installed a handle for key,
// the just-spawned duplicate is killed and InstanceAlreadyRunning is
// returned — the proxy-table entry is only ever inserted strictly
// after handle insertion succeeds.
func (c *Coordinator) Start(ctx context.Context, key funckey.Key) error {
	cell, ok := c.registry.Get(key)
	if !ok {
		return notFoundErr(key)
	}
	fn := cell.Snapshot()

	host, portStr, err := net.SplitHostPort(fn.Config.Addr)
	if err != nil {
		return fmt.Errorf("parsing function address %q: %w", fn.Config.Addr, err)
	}
	port, _ := strconv.Atoi(portStr)
	if port == 0 {
		port = allocateEphemeralPort()
	}

	handle, err := c.sandbox.Spawn(ctx, fn.Config.Sandbox, c.registry.ContentsPath(key), port)
	if err != nil {
		return fmt.Errorf("spawning sandbox: %w", err)
	}

	c.mu.Lock()
	if _, exists := c.handles[key]; exists {
		c.mu.Unlock()
		_ = handle.Kill(ctx)
		return alreadyRunningErr(key)
	}
	c.handles[key] = handle
	c.mu.Unlock()

	authority := net.JoinHostPort(host, strconv.Itoa(port))
	c.table.Set(key.HostPrefix(), authority)
	c.log.Info("function deployed", slog.String("key", key.String()), slog.String("authority", authority))
	return nil
}

// Stop removes key's handle, kills it, and removes its proxy-table
// entry. Fails NotFound if no handle is registered.
func (c *Coordinator) Stop(ctx context.Context, key funckey.Key) error {
	c.mu.Lock()
	handle, ok := c.handles[key]
	if !ok {
		c.mu.Unlock()
		return notFoundErr(key)
	}
	delete(c.handles, key)
	c.mu.Unlock()

	c.table.Delete(key.HostPrefix())
	if err := handle.Kill(ctx); err != nil {
		return fmt.Errorf("killing sandbox: %w", err)
	}
	c.log.Info("function stopped", slog.String("key", key.String()))
	return nil
}

// IsRunning delegates to the handle's liveness probe. A key with no
// handle is not running.
func (c *Coordinator) IsRunning(key funckey.Key) bool {
	c.mu.Lock()
	handle, ok := c.handles[key]
	c.mu.Unlock()
	if !ok {
		return false
	}
	return handle.IsRunning()
}

func notFoundErr(key funckey.Key) error {
	return &coordError{kind: errNotFound, msg: fmt.Sprintf("function %q has no running instance", key)}
}

func alreadyRunningErr(key funckey.Key) error {
	return &coordError{kind: errAlreadyRunning, msg: fmt.Sprintf("function %q is already running", key)}
}

// allocateEphemeralPort asks the kernel for a free loopback port when
// a function's configured address uses the ":0" wildcard, the same
// way the sandboxed process is expected to bind one itself — the
// coordinator picks it up front so it can pass it through the
// FNHOST_PORT contract and register the proxy-table authority before
// spawning returns.
func allocateEphemeralPort() int {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}
