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

package mm

import (
	"bytes"

	"protonos.dev/protonos/pkg/errors/linuxerr"
	"protonos.dev/protonos/pkg/hostarch"
)

// maxStringLength caps CopyInString, matching PATH_MAX.
const maxStringLength = 4096

// access copies between b and user memory at addr, page by page. Any
// translation or protection failure surfaces as EFAULT, as the copy
// routines in a real kernel report it.
//
// Preconditions: mm.mu must be locked (reading suffices).
func (mm *MemoryManager) access(addr hostarch.Addr, b []byte, write bool) (int, error) {
	var done int
	for done < len(b) {
		cur := addr + hostarch.Addr(done)
		if _, ok := cur.AddLength(1); !ok {
			return done, linuxerr.EFAULT
		}
		if err := mm.as.Fault(cur, write); err != nil {
			return done, linuxerr.EFAULT
		}
		frame, _, ok := mm.as.Lookup(cur)
		if !ok {
			return done, linuxerr.EFAULT
		}
		pageOff := cur.PageOffset()
		n := hostarch.PageSize - int(pageOff)
		if rem := len(b) - done; n > rem {
			n = rem
		}
		slice := mm.mem.Slice(frame)[pageOff : int(pageOff)+n]
		if write {
			copy(slice, b[done:done+n])
		} else {
			copy(b[done:done+n], slice)
		}
		done += n
	}
	return done, nil
}

// CopyIn copies len(dst) bytes from user memory at addr into dst.
func (mm *MemoryManager) CopyIn(addr hostarch.Addr, dst []byte) (int, error) {
	mm.mu.RLock()
	defer mm.mu.RUnlock()
	return mm.access(addr, dst, false)
}

// CopyOut copies src into user memory at addr.
func (mm *MemoryManager) CopyOut(addr hostarch.Addr, src []byte) (int, error) {
	mm.mu.RLock()
	defer mm.mu.RUnlock()
	return mm.access(addr, src, true)
}

// CopyInString copies a NUL-terminated string of at most maxStringLength
// bytes from user memory at addr.
func (mm *MemoryManager) CopyInString(addr hostarch.Addr) (string, error) {
	mm.mu.RLock()
	defer mm.mu.RUnlock()

	var out []byte
	for len(out) < maxStringLength {
		chunk := hostarch.PageSize - int(addr.PageOffset())
		if rem := maxStringLength - len(out); chunk > rem {
			chunk = rem
		}
		buf := make([]byte, chunk)
		n, err := mm.access(addr, buf, false)
		if i := bytes.IndexByte(buf[:n], 0); i >= 0 {
			return string(append(out, buf[:i]...)), nil
		}
		if err != nil {
			return "", err
		}
		out = append(out, buf[:n]...)
		addr += hostarch.Addr(n)
	}
	return "", linuxerr.ENAMETOOLONG
}

// ZeroOut writes length zero bytes to user memory at addr.
func (mm *MemoryManager) ZeroOut(addr hostarch.Addr, length int) (int, error) {
	mm.mu.RLock()
	defer mm.mu.RUnlock()
	return mm.access(addr, make([]byte, length), true)
}
