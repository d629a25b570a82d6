// Copyright 2025 The ProtonOS Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package linux

import "fmt"

// Options for waitpid(2), wait4(2), and/or waitid(2), from
// include/uapi/linux/wait.h.
const (
	WNOHANG    = 0x00000001
	WUNTRACED  = 0x00000002
	WSTOPPED   = WUNTRACED
	WEXITED    = 0x00000004
	WCONTINUED = 0x00000008
	WNOWAIT    = 0x01000000
)

// WaitStatus is the wait status reported by wait4(2): a 16-bit-equivalent
// status word. Bits 8-15 hold the exit code for a normal exit; bits 0-6 hold
// the signal number for a signal death, with bit 7 set if a core dump
// occurred; (signum << 8) | 0x7f denotes "stopped by signum"; 0xffff denotes
// "continued".
type WaitStatus uint32

// WaitStatusExit returns a WaitStatus representing exit with the given
// (masked) exit code.
func WaitStatusExit(code int32) WaitStatus {
	return WaitStatus(uint32(code&0xff) << 8)
}

// WaitStatusTerminationSignal returns a WaitStatus representing termination
// by the given signal.
func WaitStatusTerminationSignal(sig Signal) WaitStatus {
	return WaitStatus(uint32(sig) & 0x7f)
}

// WaitStatusStopped returns a WaitStatus representing stoppage by the given
// signal.
func WaitStatusStopped(sig Signal) WaitStatus {
	return WaitStatus(uint32(sig)<<8 | 0x7f)
}

// WaitStatusContinued returns a WaitStatus representing continuation by
// SIGCONT.
func WaitStatusContinued() WaitStatus {
	return WaitStatus(0xffff)
}

// WithCoreDump returns a copy of ws that additionally indicates that a core
// dump was generated.
//
// Preconditions: ws represents termination by a signal.
func (ws WaitStatus) WithCoreDump() WaitStatus {
	return ws | 0x80
}

// Exited returns true if ws represents an exit status, i.e. whether the low
// 7 bits are zero.
func (ws WaitStatus) Exited() bool {
	return ws&0x7f == 0
}

// Signaled returns true if ws represents a termination by a signal.
func (ws WaitStatus) Signaled() bool {
	return ws&0x7f != 0x7f && ws&0x7f != 0
}

// CoreDumped returns true if ws indicates that a core dump was produced.
//
// Preconditions: Signaled() is true.
func (ws WaitStatus) CoreDumped() bool {
	return ws&0x80 != 0
}

// Stopped returns true if ws represents a stoppage, i.e. whether the low 8
// bits equal 0x7f.
func (ws WaitStatus) Stopped() bool {
	return ws&0xff == 0x7f
}

// Continued returns true if ws represents a continuation, i.e. whether the
// whole word equals 0xffff.
func (ws WaitStatus) Continued() bool {
	return ws == 0xffff
}

// ExitStatus returns the lower 8 bits of the exit code.
//
// Preconditions: Exited() is true.
func (ws WaitStatus) ExitStatus() int32 {
	return int32((ws >> 8) & 0xff)
}

// TerminationSignal returns the terminating signal.
//
// Preconditions: Signaled() is true.
func (ws WaitStatus) TerminationSignal() Signal {
	return Signal(ws & 0x7f)
}

// StopSignal returns the stop signal.
//
// Preconditions: Stopped() is true.
func (ws WaitStatus) StopSignal() Signal {
	return Signal((ws >> 8) & 0xff)
}

// String implements fmt.Stringer.
func (ws WaitStatus) String() string {
	switch {
	case ws.Exited():
		return fmt.Sprintf("exit status %d", ws.ExitStatus())
	case ws.Signaled():
		if ws.CoreDumped() {
			return fmt.Sprintf("killed by signal %d (core dumped)", ws.TerminationSignal())
		}
		return fmt.Sprintf("killed by signal %d", ws.TerminationSignal())
	case ws.Stopped():
		return fmt.Sprintf("stopped by signal %d", ws.StopSignal())
	case ws.Continued():
		return "continued"
	default:
		return fmt.Sprintf("unknown status %#x", uint32(ws))
	}
}
