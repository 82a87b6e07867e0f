//go:build linux

package sandbox

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"golang.org/x/sys/unix"
)

// sockFilter mirrors the kernel's struct sock_filter (classic BPF
// instruction): { u16 code; u8 jt; u8 jf; u32 k; }.
type sockFilter struct {
	Code uint16
	Jt   uint8
	Jf   uint8
	K    uint32
}

const (
	seccompRetAllow = 0x7fff0000
	seccompRetErrno = 0x00050001 // SECCOMP_RET_ERRNO | EPERM
)

// auditArchNative is the seccomp AUDIT_ARCH value for the build's
// native architecture. Only amd64 and arm64 are populated; other
// architectures fall back to "no filter" (logged, not fatal).
func auditArchNative() (uint32, bool) {
	switch buildArch {
	case "amd64":
		return 0xc000003e, true // AUDIT_ARCH_X86_64
	case "arm64":
		return 0xc00000b7, true // AUDIT_ARCH_AARCH64
	default:
		return 0, false
	}
}

// compileSeccomp builds a classic-BPF program implementing mode/names
// and serializes it to raw sock_filter bytes. Default action is Allow
// in deny mode and Errno(EPERM) in allow mode; every explicit rule
// takes the opposite action. Compilation failure (unsupported arch,
// unknown syscall name) is returned to the caller to log and
// downgrade to "run without seccomp" — it is never fatal.
func compileSeccomp(mode string, names []string) ([]byte, error) {
	arch, ok := auditArchNative()
	if !ok {
		return nil, fmt.Errorf("seccomp: unsupported architecture %q", buildArch)
	}

	deny := mode != "allow"
	var defaultAction, ruleAction uint32
	if deny {
		defaultAction, ruleAction = seccompRetAllow, seccompRetErrno
	} else {
		defaultAction, ruleAction = seccompRetErrno, seccompRetAllow
	}

	nums := make([]uint32, 0, len(names))
	for _, name := range names {
		nr, ok := syscallNumbers[name]
		if !ok {
			return nil, fmt.Errorf("seccomp: unknown syscall name %q", name)
		}
		nums = append(nums, uint32(nr))
	}

	// Offsets into struct seccomp_data: arch at 4, nr at 0.
	var prog []sockFilter
	prog = append(prog,
		sockFilter{Code: unix.BPF_LD | unix.BPF_W | unix.BPF_ABS, K: 4},
		sockFilter{Code: unix.BPF_JMP | unix.BPF_JEQ | unix.BPF_K, K: arch, Jt: 1, Jf: 0},
		sockFilter{Code: unix.BPF_RET | unix.BPF_K, K: seccompRetErrno},
		sockFilter{Code: unix.BPF_LD | unix.BPF_W | unix.BPF_ABS, K: 0},
	)
	for _, nr := range nums {
		// On a match fall through to the rule's RET; otherwise skip that
		// RET and test the next rule (or reach the default RET).
		prog = append(prog, sockFilter{
			Code: unix.BPF_JMP | unix.BPF_JEQ | unix.BPF_K,
			K:    nr,
			Jt:   0,
			Jf:   1,
		})
		prog = append(prog, sockFilter{Code: unix.BPF_RET | unix.BPF_K, K: ruleAction})
	}
	prog = append(prog, sockFilter{Code: unix.BPF_RET | unix.BPF_K, K: defaultAction})

	var buf bytes.Buffer
	for _, instr := range prog {
		if err := binary.Write(&buf, binary.LittleEndian, instr); err != nil {
			return nil, fmt.Errorf("serializing seccomp program: %w", err)
		}
	}
	return buf.Bytes(), nil
}
