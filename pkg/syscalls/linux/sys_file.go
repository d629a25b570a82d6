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
	"encoding/binary"

	"protonos.dev/protonos/pkg/abi/linux"
	"protonos.dev/protonos/pkg/arch"
	"protonos.dev/protonos/pkg/errors/linuxerr"
	"protonos.dev/protonos/pkg/fs"
	"protonos.dev/protonos/pkg/hostarch"
	"protonos.dev/protonos/pkg/kernel"
	"protonos.dev/protonos/pkg/kernel/pipe"
	"protonos.dev/protonos/pkg/syserror"
	"protonos.dev/protonos/pkg/waiter"
)

// maxRWSize caps a single read or write, the way MAX_RW_COUNT does.
const maxRWSize = 0x7ffff000

// Read implements linux syscall read(2).
func Read(t *kernel.Task, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	fd := args[0].Int()
	addr := args[1].Pointer()
	size := args[2].SizeT()

	file := t.FDTable().Get(fd)
	if file == nil {
		return 0, nil, linuxerr.EBADF
	}
	defer file.DecRef()

	if size > maxRWSize {
		size = maxRWSize
	}
	buf := make([]byte, size)
	n, err := blockingRead(t, file, buf)
	if n > 0 {
		if _, cerr := t.MemoryManager().CopyOut(addr, buf[:n]); cerr != nil {
			return 0, nil, cerr
		}
	}
	if n == 0 && err != nil {
		return 0, nil, err
	}
	return uintptr(n), nil, nil
}

// blockingRead retries a would-block read until data, end of file, an
// error, or an interrupt arrives.
func blockingRead(t *kernel.Task, file *fs.File, dst []byte) (int64, error) {
	n, err := file.Read(dst)
	if err != syserror.ErrWouldBlock || file.Flags().NonBlocking {
		return n, translateWouldBlock(err)
	}

	e, ch := waiter.NewChannelEntry(nil)
	file.EventRegister(&e, waiter.EventIn|waiter.EventHUp|waiter.EventErr)
	defer file.EventUnregister(&e)

	for {
		n, err := file.Read(dst)
		if err != syserror.ErrWouldBlock {
			return n, err
		}
		if err := t.Block(ch); err != nil {
			return 0, err
		}
	}
}

// Write implements linux syscall write(2).
func Write(t *kernel.Task, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	fd := args[0].Int()
	addr := args[1].Pointer()
	size := args[2].SizeT()

	file := t.FDTable().Get(fd)
	if file == nil {
		return 0, nil, linuxerr.EBADF
	}
	defer file.DecRef()

	if size > maxRWSize {
		size = maxRWSize
	}
	buf := make([]byte, size)
	if _, err := t.MemoryManager().CopyIn(addr, buf); err != nil {
		return 0, nil, err
	}
	n, err := blockingWrite(t, file, buf)
	if n == 0 && err != nil {
		return 0, nil, err
	}
	return uintptr(n), nil, nil
}

// blockingWrite writes all of src, sleeping for buffer space as needed.
// A partial count is returned if an error shows up mid-stream.
func blockingWrite(t *kernel.Task, file *fs.File, src []byte) (int64, error) {
	var done int64
	n, err := file.Write(src)
	done += n
	if err != syserror.ErrWouldBlock || file.Flags().NonBlocking {
		return done, translateWouldBlock(err)
	}

	e, ch := waiter.NewChannelEntry(nil)
	file.EventRegister(&e, waiter.EventOut|waiter.EventErr)
	defer file.EventUnregister(&e)

	for done < int64(len(src)) {
		n, err := file.Write(src[done:])
		done += n
		if err == syserror.ErrWouldBlock {
			if err := t.Block(ch); err != nil {
				return done, err
			}
			continue
		}
		if err != nil {
			return done, err
		}
	}
	return done, nil
}

// translateWouldBlock turns the internal sentinel into the errno
// non-blocking callers see.
func translateWouldBlock(err error) error {
	if err == syserror.ErrWouldBlock {
		return linuxerr.EAGAIN
	}
	return err
}

// Open implements linux syscall open(2).
func Open(t *kernel.Task, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	addr := args[0].Pointer()
	flags := args[1].Uint()

	path, err := t.MemoryManager().CopyInString(addr)
	if err != nil {
		return 0, nil, err
	}
	file, err := t.Kernel().RootFS().Open(path, flags)
	if err != nil {
		return 0, nil, err
	}
	defer file.DecRef()

	fd, err := t.FDTable().NewFDFrom(0, file, flags&linux.O_CLOEXEC != 0)
	if err != nil {
		return 0, nil, err
	}
	return uintptr(fd), nil, nil
}

// Close implements linux syscall close(2).
func Close(t *kernel.Task, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	fd := args[0].Int()

	file := t.FDTable().Remove(fd)
	if file == nil {
		return 0, nil, linuxerr.EBADF
	}
	file.DecRef()
	return 0, nil, nil
}

// Lseek implements linux syscall lseek(2).
func Lseek(t *kernel.Task, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	fd := args[0].Int()
	offset := args[1].Int64()
	whence := args[2].Int()

	file := t.FDTable().Get(fd)
	if file == nil {
		return 0, nil, linuxerr.EBADF
	}
	defer file.DecRef()

	cur, err := file.Seek(whence, offset)
	if err != nil {
		return 0, nil, err
	}
	return uintptr(cur), nil, nil
}

// Dup implements linux syscall dup(2).
func Dup(t *kernel.Task, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	fd := args[0].Int()

	file := t.FDTable().Get(fd)
	if file == nil {
		return 0, nil, linuxerr.EBADF
	}
	defer file.DecRef()

	nfd, err := t.FDTable().NewFDFrom(0, file, false)
	if err != nil {
		return 0, nil, err
	}
	return uintptr(nfd), nil, nil
}

// Dup2 implements linux syscall dup2(2).
func Dup2(t *kernel.Task, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	oldfd := args[0].Int()
	newfd := args[1].Int()

	file := t.FDTable().Get(oldfd)
	if file == nil {
		return 0, nil, linuxerr.EBADF
	}
	defer file.DecRef()

	if oldfd == newfd {
		return uintptr(newfd), nil, nil
	}
	if err := t.FDTable().NewFDAt(newfd, file, false); err != nil {
		return 0, nil, err
	}
	return uintptr(newfd), nil, nil
}

// Pipe implements linux syscall pipe(2).
func Pipe(t *kernel.Task, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	addr := args[0].Pointer()
	return 0, nil, pipe2(t, addr, 0)
}

// Pipe2 implements linux syscall pipe2(2).
func Pipe2(t *kernel.Task, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	addr := args[0].Pointer()
	flags := args[1].Uint()
	if flags&^(linux.O_CLOEXEC|linux.O_NONBLOCK) != 0 {
		return 0, nil, linuxerr.EINVAL
	}
	return 0, nil, pipe2(t, addr, flags)
}

func pipe2(t *kernel.Task, addr hostarch.Addr, flags uint32) error {
	r, w := pipe.NewConnectedPipeFlags(flags&linux.O_NONBLOCK != 0)
	defer r.DecRef()
	defer w.DecRef()

	cloexec := flags&linux.O_CLOEXEC != 0
	rfd, err := t.FDTable().NewFDFrom(0, r, cloexec)
	if err != nil {
		return err
	}
	wfd, err := t.FDTable().NewFDFrom(0, w, cloexec)
	if err != nil {
		if f := t.FDTable().Remove(rfd); f != nil {
			f.DecRef()
		}
		return err
	}

	var buf [8]byte
	binary.LittleEndian.PutUint32(buf[0:], uint32(rfd))
	binary.LittleEndian.PutUint32(buf[4:], uint32(wfd))
	if _, err := t.MemoryManager().CopyOut(addr, buf[:]); err != nil {
		if f := t.FDTable().Remove(rfd); f != nil {
			f.DecRef()
		}
		if f := t.FDTable().Remove(wfd); f != nil {
			f.DecRef()
		}
		return err
	}
	return nil
}

// Unlink implements linux syscall unlink(2).
func Unlink(t *kernel.Task, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	addr := args[0].Pointer()

	path, err := t.MemoryManager().CopyInString(addr)
	if err != nil {
		return 0, nil, err
	}
	return 0, nil, t.Kernel().RootFS().Unlink(path)
}
