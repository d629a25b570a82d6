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

package linuxerr

import (
	"testing"

	"protonos.dev/protonos/pkg/abi/linux/errno"
)

func TestSentinels(t *testing.T) {
	if got, want := EBADF.Errno(), errno.EBADF; got != want {
		t.Errorf("EBADF.Errno() = %d, want %d", got, want)
	}
	if got, want := EBADF.Error(), "bad file number"; got != want {
		t.Errorf("EBADF.Error() = %q, want %q", got, want)
	}

	// Every sentinel rounds back to itself through the errno value, so
	// identity comparison is sound across the translation.
	if got := ErrorFromErrno(errno.EBADF); got != EBADF {
		t.Errorf("ErrorFromErrno(EBADF) = %v, want the EBADF sentinel", got)
	}
	var err error = ENOENT
	if err != ENOENT {
		t.Error("sentinel lost identity through the error interface")
	}
}

func TestEquals(t *testing.T) {
	if !Equals(EINVAL, EINVAL) {
		t.Error("Equals(EINVAL, EINVAL) = false")
	}
	if Equals(EINVAL, ENOENT) {
		t.Error("Equals(EINVAL, ENOENT) = true")
	}
	if Equals(EINVAL, nil) {
		t.Error("Equals(EINVAL, nil) = true")
	}
	if !Equals(nil, nil) {
		t.Error("Equals(nil, nil) = false")
	}
}

func TestErrorFromErrnoPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("ErrorFromErrno(0) did not panic")
		}
	}()
	ErrorFromErrno(0)
}
