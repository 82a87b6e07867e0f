//go:build linux

package sandbox

import (
	"runtime"

	"golang.org/x/sys/unix"
)

var buildArch = runtime.GOARCH

// syscallNumbers maps syscall names accepted in SandboxConfig's
// SyscallFilter list to their kernel numbers on the build's native
// architecture. golang.org/x/sys/unix already resolves each SYS_*
// constant per-GOARCH, so this table needs no per-arch duplication.
// It intentionally covers the syscalls a typical function process
// needs rather than the kernel's entire surface; an unlisted name
// fails compilation, which is logged and downgrades to "no filter"
// rather than aborting the spawn.
var syscallNumbers = map[string]uintptr{
	"read":            uintptr(unix.SYS_READ),
	"write":           uintptr(unix.SYS_WRITE),
	"open":            uintptr(unix.SYS_OPENAT),
	"openat":          uintptr(unix.SYS_OPENAT),
	"close":           uintptr(unix.SYS_CLOSE),
	"stat":            uintptr(unix.SYS_NEWFSTATAT),
	"fstat":           uintptr(unix.SYS_FSTAT),
	"lstat":           uintptr(unix.SYS_NEWFSTATAT),
	"poll":            uintptr(unix.SYS_PPOLL),
	"mmap":            uintptr(unix.SYS_MMAP),
	"mprotect":        uintptr(unix.SYS_MPROTECT),
	"munmap":          uintptr(unix.SYS_MUNMAP),
	"brk":             uintptr(unix.SYS_BRK),
	"rt_sigaction":    uintptr(unix.SYS_RT_SIGACTION),
	"rt_sigprocmask":  uintptr(unix.SYS_RT_SIGPROCMASK),
	"rt_sigreturn":    uintptr(unix.SYS_RT_SIGRETURN),
	"ioctl":           uintptr(unix.SYS_IOCTL),
	"pread64":         uintptr(unix.SYS_PREAD64),
	"pwrite64":        uintptr(unix.SYS_PWRITE64),
	"readv":           uintptr(unix.SYS_READV),
	"writev":          uintptr(unix.SYS_WRITEV),
	"access":          uintptr(unix.SYS_FACCESSAT),
	"pipe":            uintptr(unix.SYS_PIPE2),
	"select":          uintptr(unix.SYS_PSELECT6),
	"sched_yield":     uintptr(unix.SYS_SCHED_YIELD),
	"mremap":          uintptr(unix.SYS_MREMAP),
	"msync":           uintptr(unix.SYS_MSYNC),
	"mincore":         uintptr(unix.SYS_MINCORE),
	"madvise":         uintptr(unix.SYS_MADVISE),
	"dup":             uintptr(unix.SYS_DUP),
	"dup2":            uintptr(unix.SYS_DUP3),
	"pause":           uintptr(unix.SYS_PPOLL),
	"nanosleep":       uintptr(unix.SYS_CLOCK_NANOSLEEP),
	"getpid":          uintptr(unix.SYS_GETPID),
	"socket":          uintptr(unix.SYS_SOCKET),
	"connect":         uintptr(unix.SYS_CONNECT),
	"accept":          uintptr(unix.SYS_ACCEPT4),
	"accept4":         uintptr(unix.SYS_ACCEPT4),
	"sendto":          uintptr(unix.SYS_SENDTO),
	"recvfrom":        uintptr(unix.SYS_RECVFROM),
	"bind":            uintptr(unix.SYS_BIND),
	"listen":          uintptr(unix.SYS_LISTEN),
	"setsockopt":      uintptr(unix.SYS_SETSOCKOPT),
	"getsockopt":      uintptr(unix.SYS_GETSOCKOPT),
	"clone":           uintptr(unix.SYS_CLONE),
	"fork":            uintptr(unix.SYS_CLONE),
	"execve":          uintptr(unix.SYS_EXECVE),
	"exit":            uintptr(unix.SYS_EXIT),
	"exit_group":      uintptr(unix.SYS_EXIT_GROUP),
	"wait4":           uintptr(unix.SYS_WAIT4),
	"kill":            uintptr(unix.SYS_KILL),
	"uname":           uintptr(unix.SYS_UNAME),
	"fcntl":           uintptr(unix.SYS_FCNTL),
	"flock":           uintptr(unix.SYS_FLOCK),
	"fsync":           uintptr(unix.SYS_FSYNC),
	"getdents64":      uintptr(unix.SYS_GETDENTS64),
	"getcwd":          uintptr(unix.SYS_GETCWD),
	"chdir":           uintptr(unix.SYS_CHDIR),
	"mkdir":           uintptr(unix.SYS_MKDIRAT),
	"unlink":          uintptr(unix.SYS_UNLINKAT),
	"readlink":        uintptr(unix.SYS_READLINKAT),
	"chmod":           uintptr(unix.SYS_FCHMODAT),
	"getuid":          uintptr(unix.SYS_GETUID),
	"getgid":          uintptr(unix.SYS_GETGID),
	"geteuid":         uintptr(unix.SYS_GETEUID),
	"getegid":         uintptr(unix.SYS_GETEGID),
	"arch_prctl":      uintptr(unix.SYS_ARCH_PRCTL),
	"gettimeofday":    uintptr(unix.SYS_GETTIMEOFDAY),
	"clock_gettime":   uintptr(unix.SYS_CLOCK_GETTIME),
	"futex":           uintptr(unix.SYS_FUTEX),
	"set_tid_address": uintptr(unix.SYS_SET_TID_ADDRESS),
	"set_robust_list": uintptr(unix.SYS_SET_ROBUST_LIST),
	"prlimit64":       uintptr(unix.SYS_PRLIMIT64),
	"sysinfo":         uintptr(unix.SYS_SYSINFO),
	"getrandom":       uintptr(unix.SYS_GETRANDOM),
	"epoll_create1":   uintptr(unix.SYS_EPOLL_CREATE1),
	"epoll_ctl":       uintptr(unix.SYS_EPOLL_CTL),
	"epoll_wait":      uintptr(unix.SYS_EPOLL_PWAIT),
	"eventfd2":        uintptr(unix.SYS_EVENTFD2),
	"pipe2":           uintptr(unix.SYS_PIPE2),
	"prctl":           uintptr(unix.SYS_PRCTL),
	"sigaltstack":     uintptr(unix.SYS_SIGALTSTACK),
	"tgkill":          uintptr(unix.SYS_TGKILL),
	"restart_syscall": uintptr(unix.SYS_RESTART_SYSCALL),
}
