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

// Package syscalls is the interface from the loadable syscall packages to
// the kernel's dispatch table, along with stubs for the parts of the
// surface that are intentionally not implemented.
package syscalls

import (
	"protonos.dev/protonos/pkg/arch"
	"protonos.dev/protonos/pkg/errors/linuxerr"
	"protonos.dev/protonos/pkg/kernel"
)

// Error returns a syscall implementation that always fails with the given
// error. It stands in for syscalls whose absence should be explicit
// rather than ENOSYS.
func Error(err error) kernel.SyscallFn {
	return func(*kernel.Task, arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
		return 0, nil, err
	}
}

// CapError returns a syscall implementation that fails with EPERM for
// unprivileged callers and with the given error otherwise, for calls
// guarded by superuser privilege.
func CapError(err error) kernel.SyscallFn {
	return func(t *kernel.Task, _ arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
		if !t.Credentials().HasCapability() {
			return 0, nil, linuxerr.EPERM
		}
		return 0, nil, err
	}
}
