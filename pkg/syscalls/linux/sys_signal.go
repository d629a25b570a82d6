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

import (
	"bytes"
	"encoding/binary"

	"protonos.dev/protonos/pkg/abi/linux"
	"protonos.dev/protonos/pkg/arch"
	"protonos.dev/protonos/pkg/errors/linuxerr"
	"protonos.dev/protonos/pkg/kernel"
)

// RtSigaction implements linux syscall rt_sigaction(2).
func RtSigaction(t *kernel.Task, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	sig := linux.Signal(args[0].Int())
	newActAddr := args[1].Pointer()
	oldActAddr := args[2].Pointer()
	sigsetSize := args[3].SizeT()

	if sigsetSize != 8 {
		return 0, nil, linuxerr.EINVAL
	}
	if !sig.IsValid() || sig == linux.SIGKILL || sig == linux.SIGSTOP {
		if newActAddr != 0 {
			return 0, nil, linuxerr.EINVAL
		}
	}
	if !sig.IsValid() {
		return 0, nil, linuxerr.EINVAL
	}

	var old linux.SigAction
	if newActAddr != 0 {
		buf := make([]byte, linux.SizeOfSigAction)
		if _, err := t.MemoryManager().CopyIn(newActAddr, buf); err != nil {
			return 0, nil, err
		}
		var act linux.SigAction
		if err := binary.Read(bytes.NewReader(buf), binary.LittleEndian, &act); err != nil {
			return 0, nil, err
		}
		old = t.SignalHandlers().SetAction(sig, act)
	} else {
		old = t.SignalHandlers().GetAction(sig)
	}

	if oldActAddr != 0 {
		var buf bytes.Buffer
		if err := binary.Write(&buf, binary.LittleEndian, &old); err != nil {
			return 0, nil, err
		}
		if _, err := t.MemoryManager().CopyOut(oldActAddr, buf.Bytes()); err != nil {
			return 0, nil, err
		}
	}
	return 0, nil, nil
}

// RtSigprocmask implements linux syscall rt_sigprocmask(2).
func RtSigprocmask(t *kernel.Task, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	how := args[0].Int()
	setAddr := args[1].Pointer()
	oldSetAddr := args[2].Pointer()
	sigsetSize := args[3].SizeT()

	if sigsetSize != 8 {
		return 0, nil, linuxerr.EINVAL
	}

	var old linux.SignalSet
	if setAddr != 0 {
		var buf [8]byte
		if _, err := t.MemoryManager().CopyIn(setAddr, buf[:]); err != nil {
			return 0, nil, err
		}
		set := linux.SignalSet(binary.LittleEndian.Uint64(buf[:]))
		var err error
		old, err = t.SetSignalMask(how, set)
		if err != nil {
			return 0, nil, err
		}
	} else {
		old = t.SignalMask()
	}

	if oldSetAddr != 0 {
		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], uint64(old))
		if _, err := t.MemoryManager().CopyOut(oldSetAddr, buf[:]); err != nil {
			return 0, nil, err
		}
	}
	return 0, nil, nil
}

// Kill implements linux syscall kill(2).
func Kill(t *kernel.Task, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	pid := args[0].Int()
	sig := linux.Signal(args[1].Int())

	if sig != 0 && !sig.IsValid() {
		return 0, nil, linuxerr.EINVAL
	}

	ts := t.Kernel().TaskSet()
	switch {
	case pid > 0:
		target := ts.TaskWithID(kernel.ThreadID(pid))
		if target == nil || target.IsExited() {
			return 0, nil, linuxerr.ESRCH
		}
		if sig == 0 {
			return 0, nil, nil
		}
		return 0, nil, target.SendSignal(sig)

	case pid == 0, pid < -1:
		// Signal a whole process group.
		pgid := t.ProcessGroupID()
		if pid < -1 {
			pgid = kernel.ThreadID(-pid)
		}
		var targets []*kernel.Task
		for _, c := range ts.Tasks() {
			if c.ProcessGroupID() == pgid && !c.IsExited() {
				targets = append(targets, c)
			}
		}
		if len(targets) == 0 {
			return 0, nil, linuxerr.ESRCH
		}
		if sig == 0 {
			return 0, nil, nil
		}
		for _, c := range targets {
			if err := c.SendSignal(sig); err != nil {
				return 0, nil, err
			}
		}
		return 0, nil, nil

	default: // pid == -1
		// Everything except init and the caller.
		var targets []*kernel.Task
		for _, c := range ts.Tasks() {
			if c != t && c.ID() != kernel.InitTID && !c.IsExited() {
				targets = append(targets, c)
			}
		}
		if len(targets) == 0 {
			return 0, nil, linuxerr.ESRCH
		}
		if sig == 0 {
			return 0, nil, nil
		}
		for _, c := range targets {
			if err := c.SendSignal(sig); err != nil {
				return 0, nil, err
			}
		}
		return 0, nil, nil
	}
}
