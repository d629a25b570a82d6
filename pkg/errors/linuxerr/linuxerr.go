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

// Package linuxerr contains syscall error codes exported as error interface
// pointers. Errors from this package are compared by identity, which keeps
// the syscall return path free of allocations and type switches.
package linuxerr

import (
	"fmt"

	"protonos.dev/protonos/pkg/abi/linux/errno"
)

// Error is a syscall error: an errno paired with its strerror text. The
// sentinels below are the only instances this package ever mints, so
// callers compare them by identity.
type Error struct {
	errno errno.Errno
	text  string
}

// Error implements error.Error.
func (e *Error) Error() string { return e.text }

// Errno returns the numeric value for encoding into a syscall return
// register.
func (e *Error) Errno() errno.Errno { return e.errno }

// errnoMap maps errno values back to their canonical sentinel. It is
// populated by newError, which runs before the sentinel initializers
// below.
var errnoMap = map[errno.Errno]*Error{}

func newError(e errno.Errno, text string) *Error {
	err := &Error{errno: e, text: text}
	errnoMap[e] = err
	return err
}

// The errors below are semantically identical to errno values of type
// unix.Errno, but since the types are distinct (these are *Error) they
// are not directly comparable.
var (
	EPERM        = newError(errno.EPERM, "operation not permitted")
	ENOENT       = newError(errno.ENOENT, "no such file or directory")
	ESRCH        = newError(errno.ESRCH, "no such process")
	EINTR        = newError(errno.EINTR, "interrupted system call")
	EIO          = newError(errno.EIO, "I/O error")
	ENXIO        = newError(errno.ENXIO, "no such device or address")
	E2BIG        = newError(errno.E2BIG, "argument list too long")
	ENOEXEC      = newError(errno.ENOEXEC, "exec format error")
	EBADF        = newError(errno.EBADF, "bad file number")
	ECHILD       = newError(errno.ECHILD, "no child processes")
	EAGAIN       = newError(errno.EAGAIN, "try again")
	ENOMEM       = newError(errno.ENOMEM, "out of memory")
	EACCES       = newError(errno.EACCES, "permission denied")
	EFAULT       = newError(errno.EFAULT, "bad address")
	EBUSY        = newError(errno.EBUSY, "device or resource busy")
	EEXIST       = newError(errno.EEXIST, "file exists")
	ENODEV       = newError(errno.ENODEV, "no such device")
	ENOTDIR      = newError(errno.ENOTDIR, "not a directory")
	EISDIR       = newError(errno.EISDIR, "is a directory")
	EINVAL       = newError(errno.EINVAL, "invalid argument")
	ENFILE       = newError(errno.ENFILE, "file table overflow")
	EMFILE       = newError(errno.EMFILE, "too many open files")
	EFBIG        = newError(errno.EFBIG, "file too large")
	ENOSPC       = newError(errno.ENOSPC, "no space left on device")
	ESPIPE       = newError(errno.ESPIPE, "illegal seek")
	EPIPE        = newError(errno.EPIPE, "broken pipe")
	ERANGE       = newError(errno.ERANGE, "math result not representable")
	ENAMETOOLONG = newError(errno.ENAMETOOLONG, "file name too long")
	ENOSYS       = newError(errno.ENOSYS, "invalid system call number")
	ELOOP        = newError(errno.ELOOP, "too many symbolic links encountered")
	EOVERFLOW    = newError(errno.EOVERFLOW, "value too large for defined data type")
	EOPNOTSUPP   = newError(errno.EOPNOTSUPP, "operation not supported")
	ETIMEDOUT    = newError(errno.ETIMEDOUT, "connection timed out")
)

// ErrorFromErrno gets an error from the list and panics if an invalid entry
// is requested.
func ErrorFromErrno(e errno.Errno) *Error {
	if err, ok := errnoMap[e]; ok {
		return err
	}
	panic(fmt.Sprintf("invalid errno: %d", e))
}

// Equals compares a linuxerr to a given error.
func Equals(e *Error, err error) bool {
	if err == nil || e == nil {
		return err == nil && e == nil
	}
	if e2, ok := err.(*Error); ok {
		return e == e2 || e.errno == e2.errno
	}
	return false
}
