//go:build linux

package sandbox

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"sync"

	"github.com/nextlevelbuilder/fnhost/internal/registry"
)

const privateContentsMount = "/.__private_fnhost_contents"

// portEnvVar is the environment variable convention a sandboxed
// function process reads its assigned listen port from.
const portEnvVar = "FNHOST_PORT"

// Bubblewrap drives process isolation via the bwrap(1) tool. Argument
// construction is a pure function of (config, assigned port, optional
// seccomp fd); contentsPath becomes the bwrap process's working
// directory.
type Bubblewrap struct {
	BwrapPath string // defaults to "bwrap" resolved via PATH
	Log       *slog.Logger
}

func (b *Bubblewrap) bwrapPath() string {
	if b.BwrapPath != "" {
		return b.BwrapPath
	}
	return "bwrap"
}

func (b *Bubblewrap) logger() *slog.Logger {
	if b.Log != nil {
		return b.Log
	}
	return slog.Default()
}

// Spawn launches config.Command inside a bwrap sandbox rooted at
// contentsPath, with the assigned port exposed via FNHOST_PORT.
func (b *Bubblewrap) Spawn(ctx context.Context, cfg registry.SandboxConfig, contentsPath string, port int) (Handle, error) {
	args, wantSeccomp, err := buildArgs(cfg, port)
	if err != nil {
		return nil, err
	}

	var extraFiles []*os.File
	if wantSeccomp {
		prog, err := compileSeccomp(cfg.SyscallFilterMode, cfg.SyscallFilter)
		if err != nil {
			b.logger().Warn("seccomp compilation failed, running without a filter", slog.Any("error", err))
		} else {
			r, w, perr := os.Pipe()
			if perr != nil {
				return nil, fmt.Errorf("creating seccomp pipe: %w", perr)
			}
			go func() {
				defer w.Close()
				_, _ = w.Write(prog)
			}()
			fd := 3 + len(extraFiles)
			extraFiles = append(extraFiles, r)
			args = append(args, "--seccomp", strconv.Itoa(fd))
		}
	}

	args = append(args, "--")
	args = append(args, cfg.Command)
	args = append(args, cfg.Args...)

	cmd := exec.CommandContext(ctx, b.bwrapPath(), args...)
	cmd.Dir = contentsPath
	cmd.ExtraFiles = extraFiles
	if cfg.InheritStdout {
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
	} else {
		cmd.Stdout = io.Discard
		cmd.Stderr = io.Discard
	}

	if err := cmd.Start(); err != nil {
		for _, f := range extraFiles {
			f.Close()
		}
		return nil, fmt.Errorf("starting bwrap: %w", err)
	}
	for _, f := range extraFiles {
		f.Close()
	}

	h := &bubblewrapHandle{cmd: cmd, log: b.logger()}
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		err := cmd.Wait()
		h.mu.Lock()
		h.exited = true
		h.waitErr = err
		h.mu.Unlock()
	}()
	return h, nil
}

// buildArgs constructs the bwrap argument list in the exact order the
// control plane's sandbox contract requires. The bool return reports
// whether seccomp is requested (caller compiles the filter and wires
// the --seccomp fd itself, since this function is side-effect free).
func buildArgs(cfg registry.SandboxConfig, port int) (args []string, wantSeccomp bool, err error) {
	args = append(args, "--unshare-all", "--share-net")
	args = append(args, "--new-session")
	args = append(args, "--ro-bind", "./", privateContentsMount)
	args = append(args, "--chdir", privateContentsMount)
	args = append(args, "--die-with-parent")

	if cfg.MountProcfs {
		args = append(args, "--proc", "/proc")
	}
	if cfg.MountDevtmpfs {
		args = append(args, "--dev", "/dev")
	}
	if cfg.MountTmpfs {
		args = append(args, "--tmpfs", "/tmp")
	}

	for src, dst := range cfg.ROEntries {
		if dst == "" {
			dst = src
		}
		args = append(args, "--ro-bind-try", src, dst)
	}

	envs := make(map[string]*string, len(cfg.Envs)+1)
	for k, v := range cfg.Envs {
		envs[k] = v
	}
	portStr := strconv.Itoa(port)
	envs[portEnvVar] = &portStr
	for k, v := range envs {
		if v != nil {
			args = append(args, "--setenv", k, *v)
		} else {
			args = append(args, "--unsetenv", k)
		}
	}

	mode := cfg.SyscallFilterMode
	if mode == "" {
		mode = "deny"
	}
	wantSeccomp = true
	_ = mode

	return args, wantSeccomp, nil
}

type bubblewrapHandle struct {
	cmd     *exec.Cmd
	log     *slog.Logger
	mu      sync.Mutex
	exited  bool
	waitErr error
	wg      sync.WaitGroup
}

func (h *bubblewrapHandle) Kill(ctx context.Context) error {
	h.mu.Lock()
	already := h.exited
	h.mu.Unlock()
	if already {
		return nil
	}
	if h.cmd.Process == nil {
		return nil
	}
	if err := h.cmd.Process.Kill(); err != nil {
		return fmt.Errorf("killing sandbox process: %w", err)
	}
	h.wg.Wait()
	return nil
}

func (h *bubblewrapHandle) IsRunning() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return !h.exited
}
