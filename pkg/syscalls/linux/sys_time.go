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
	"time"

	"protonos.dev/protonos/pkg/abi/linux"
	"protonos.dev/protonos/pkg/arch"
	"protonos.dev/protonos/pkg/errors/linuxerr"
	"protonos.dev/protonos/pkg/hostarch"
	"protonos.dev/protonos/pkg/kernel"
)

// monotonicBase anchors CLOCK_MONOTONIC so it starts near zero at boot.
var monotonicBase = time.Now()

func copyOutTimespec(t *kernel.Task, addr hostarch.Addr, ts linux.Timespec) error {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, &ts); err != nil {
		return err
	}
	_, err := t.MemoryManager().CopyOut(addr, buf.Bytes())
	return err
}

// Gettimeofday implements linux syscall gettimeofday(2).
func Gettimeofday(t *kernel.Task, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	tvAddr := args[0].Pointer()
	tzAddr := args[1].Pointer()

	if tvAddr != 0 {
		tv := linux.NsecToTimeval(time.Now().UnixNano())
		var buf bytes.Buffer
		if err := binary.Write(&buf, binary.LittleEndian, &tv); err != nil {
			return 0, nil, err
		}
		if _, err := t.MemoryManager().CopyOut(tvAddr, buf.Bytes()); err != nil {
			return 0, nil, err
		}
	}
	if tzAddr != 0 {
		// The timezone argument is obsolete; report UTC.
		var tz struct {
			Minuteswest int32
			Dsttime     int32
		}
		var buf bytes.Buffer
		if err := binary.Write(&buf, binary.LittleEndian, &tz); err != nil {
			return 0, nil, err
		}
		if _, err := t.MemoryManager().CopyOut(tzAddr, buf.Bytes()); err != nil {
			return 0, nil, err
		}
	}
	return 0, nil, nil
}

// Time implements linux syscall time(2).
func Time(t *kernel.Task, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	addr := args[0].Pointer()

	now := time.Now().Unix()
	if addr != 0 {
		var buf bytes.Buffer
		if err := binary.Write(&buf, binary.LittleEndian, now); err != nil {
			return 0, nil, err
		}
		if _, err := t.MemoryManager().CopyOut(addr, buf.Bytes()); err != nil {
			return 0, nil, err
		}
	}
	return uintptr(now), nil, nil
}

// ClockGettime implements linux syscall clock_gettime(2).
func ClockGettime(t *kernel.Task, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	clockID := args[0].Int()
	addr := args[1].Pointer()

	var ts linux.Timespec
	switch clockID {
	case linux.CLOCK_REALTIME:
		ts = linux.NsecToTimespec(time.Now().UnixNano())
	case linux.CLOCK_MONOTONIC:
		ts = linux.NsecToTimespec(int64(time.Since(monotonicBase)))
	default:
		return 0, nil, linuxerr.EINVAL
	}
	return 0, nil, copyOutTimespec(t, addr, ts)
}
