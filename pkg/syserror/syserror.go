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

// Package syserror contains internal sentinel errors used by blocking
// implementations, along with translation from generic errors to errno
// values suitable for a syscall return register.
package syserror

import (
	"errors"

	"golang.org/x/sys/unix"

	"protonos.dev/protonos/pkg/abi/linux/errno"
	"protonos.dev/protonos/pkg/errors/linuxerr"
)

var (
	// ErrWouldBlock is an internal error used to indicate that an operation
	// cannot be satisfied immediately, and should be retried at a later
	// time, possibly when the caller has received a notification that the
	// operation may be able to complete. It is used by implementations of
	// the fs.FileOperations interface.
	ErrWouldBlock = errors.New("request would block")

	// ErrInterrupted is returned if a request is interrupted before it can
	// complete.
	ErrInterrupted = errors.New("request was interrupted")
)

// errorMap is the map used to convert generic errors into errnos.
var errorMap = map[error]unix.Errno{
	ErrWouldBlock:  unix.EWOULDBLOCK,
	ErrInterrupted: unix.EINTR,
}

// AddErrorTranslation allows modules to populate the error map by adding
// their own translations during initialization. Returns if the error
// translation is accepted or not. A pre-existing translation will not be
// overwritten by the new translation.
func AddErrorTranslation(from error, to unix.Errno) bool {
	if _, ok := errorMap[from]; ok {
		return false
	}
	errorMap[from] = to
	return true
}

// TranslateError translates errors to errnos, it will return false if the
// error was not registered.
func TranslateError(from error) (unix.Errno, bool) {
	err, ok := errorMap[from]
	return err, ok
}

// ConvertIntr converts the provided error code (err) to another one (intr)
// if the first error corresponds to an interrupted operation.
func ConvertIntr(err, intr error) error {
	if err == ErrInterrupted {
		return intr
	}
	return err
}

// ExtractErrno extracts the errno value to encode into a syscall return
// register. It returns zero for a nil error.
func ExtractErrno(err error) errno.Errno {
	if err == nil {
		return 0
	}
	switch e := err.(type) {
	case *linuxerr.Error:
		return e.Errno()
	case unix.Errno:
		return errno.Errno(e)
	}
	if e, ok := TranslateError(err); ok {
		return errno.Errno(e)
	}
	// Default case: no specific translation registered.
	return errno.EINVAL
}
