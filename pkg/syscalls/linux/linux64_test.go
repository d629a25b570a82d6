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
	"testing"

	"golang.org/x/sys/unix"

	"protonos.dev/protonos/pkg/abi/linux"
	"protonos.dev/protonos/pkg/fs/memfs"
	"protonos.dev/protonos/pkg/hostarch"
	"protonos.dev/protonos/pkg/kernel"
	"protonos.dev/protonos/pkg/loader"
	"protonos.dev/protonos/pkg/mm"
	"protonos.dev/protonos/pkg/platform/emu"
)

// testEnv is a kernel with the full amd64 table and one task whose
// address space has a scratch page for staging user memory.
type testEnv struct {
	k       *kernel.Kernel
	task    *kernel.Task
	scratch hostarch.Addr
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	root := memfs.New()
	root.Create("/etc/motd", []byte("welcome to protonos\n"))
	k, err := kernel.New(kernel.Config{
		Platform: emu.New(4096),
		Table:    AMD64(),
		RootFS:   root,
		Loader:   loader.New(),
	})
	if err != nil {
		t.Fatalf("kernel.New: %v", err)
	}
	task, err := k.CreateProcess(kernel.CreateProcessArgs{})
	if err != nil {
		t.Fatalf("CreateProcess: %v", err)
	}
	scratch, err := task.MemoryManager().MMap(mm.MMapOpts{
		Length:  4 * hostarch.PageSize,
		Perms:   hostarch.ReadWrite,
		Private: true,
	})
	if err != nil {
		t.Fatalf("MMap scratch: %v", err)
	}
	return &testEnv{k: k, task: task, scratch: scratch}
}

// syscall stages a syscall in the task's registers and executes it,
// returning the raw result register.
func (e *testEnv) syscall(task *kernel.Task, nr uint64, args ...uint64) uint64 {
	var a [6]uint64
	copy(a[:], args)
	regs := &task.Arch().Regs
	regs.Orig_rax = nr
	regs.Rdi, regs.Rsi, regs.Rdx = a[0], a[1], a[2]
	regs.R10, regs.R8, regs.R9 = a[3], a[4], a[5]
	task.ExecuteSyscall()
	return regs.Rax
}

// errno interprets a result register as an errno, zero if none.
func errno(rax uint64) unix.Errno {
	if v := int64(rax); v < 0 && v > -4096 {
		return unix.Errno(-v)
	}
	return 0
}

// copyOutString places a NUL-terminated string at addr.
func (e *testEnv) copyOutString(t *testing.T, addr hostarch.Addr, s string) {
	t.Helper()
	if _, err := e.task.MemoryManager().CopyOut(addr, append([]byte(s), 0)); err != nil {
		t.Fatalf("CopyOut: %v", err)
	}
}

func TestSysGetpid(t *testing.T) {
	e := newTestEnv(t)
	if got, want := e.syscall(e.task, 39), uint64(e.task.ID()); got != want {
		t.Errorf("getpid() = %d, want %d", got, want)
	}
	// The root task has no parent.
	if got := e.syscall(e.task, 110); got != 0 {
		t.Errorf("getppid() = %d, want 0", got)
	}
	if got, want := e.syscall(e.task, 111), uint64(e.task.ProcessGroupID()); got != want {
		t.Errorf("getpgrp() = %d, want %d", got, want)
	}
}

func TestSysIdentity(t *testing.T) {
	e := newTestEnv(t)
	for _, tc := range []struct {
		nr   uint64
		name string
	}{
		{102, "getuid"},
		{104, "getgid"},
		{107, "geteuid"},
		{108, "getegid"},
	} {
		if got := e.syscall(e.task, tc.nr); got != 0 {
			t.Errorf("%s() = %d, want 0 for root", tc.name, got)
		}
	}
}

func TestSysFileIO(t *testing.T) {
	e := newTestEnv(t)
	pathAddr := e.scratch
	bufAddr := e.scratch + hostarch.PageSize
	e.copyOutString(t, pathAddr, "/etc/motd")

	fd := e.syscall(e.task, 2, uint64(pathAddr), linux.O_RDONLY)
	if errno(fd) != 0 {
		t.Fatalf("open: %v", errno(fd))
	}

	n := e.syscall(e.task, 0, fd, uint64(bufAddr), 64)
	if errno(n) != 0 {
		t.Fatalf("read: %v", errno(n))
	}
	buf := make([]byte, n)
	if _, err := e.task.MemoryManager().CopyIn(bufAddr, buf); err != nil {
		t.Fatalf("CopyIn: %v", err)
	}
	if got, want := string(buf), "welcome to protonos\n"; got != want {
		t.Errorf("read %q, want %q", got, want)
	}

	// Rewind and re-read a slice of the file.
	if off := e.syscall(e.task, 8, fd, 8, linux.SEEK_SET); off != 8 {
		t.Fatalf("lseek = %d (%v), want 8", off, errno(off))
	}
	n = e.syscall(e.task, 0, fd, uint64(bufAddr), 2)
	if n != 2 {
		t.Fatalf("read after seek = %d (%v), want 2", n, errno(n))
	}

	if ret := e.syscall(e.task, 3, fd); errno(ret) != 0 {
		t.Fatalf("close: %v", errno(ret))
	}
	if got := errno(e.syscall(e.task, 0, fd, uint64(bufAddr), 1)); got != unix.EBADF {
		t.Errorf("read on closed fd = %v, want EBADF", got)
	}
}

func TestSysCreateAndStat(t *testing.T) {
	e := newTestEnv(t)
	pathAddr := e.scratch
	bufAddr := e.scratch + hostarch.PageSize
	e.copyOutString(t, pathAddr, "/tmp/out")

	fd := e.syscall(e.task, 2, uint64(pathAddr), linux.O_CREAT|linux.O_WRONLY)
	if errno(fd) != 0 {
		t.Fatalf("open(O_CREAT): %v", errno(fd))
	}
	payload := "data"
	if _, err := e.task.MemoryManager().CopyOut(bufAddr, []byte(payload)); err != nil {
		t.Fatalf("CopyOut: %v", err)
	}
	if n := e.syscall(e.task, 1, fd, uint64(bufAddr), uint64(len(payload))); n != uint64(len(payload)) {
		t.Fatalf("write = %d (%v), want %d", n, errno(n), len(payload))
	}

	// fstat sees the new size.
	statAddr := e.scratch + 2*hostarch.PageSize
	if ret := e.syscall(e.task, 5, fd, uint64(statAddr)); errno(ret) != 0 {
		t.Fatalf("fstat: %v", errno(ret))
	}
	raw := make([]byte, linux.SizeOfStat)
	if _, err := e.task.MemoryManager().CopyIn(statAddr, raw); err != nil {
		t.Fatalf("CopyIn: %v", err)
	}
	var st linux.Stat
	if err := binary.Read(bytes.NewReader(raw), binary.LittleEndian, &st); err != nil {
		t.Fatalf("decode stat: %v", err)
	}
	if got, want := st.Size, int64(len(payload)); got != want {
		t.Errorf("fstat Size = %d, want %d", got, want)
	}

	e.syscall(e.task, 3, fd)

	// unlink removes it; a second stat fails.
	if ret := e.syscall(e.task, 87, uint64(pathAddr)); errno(ret) != 0 {
		t.Fatalf("unlink: %v", errno(ret))
	}
	if got := errno(e.syscall(e.task, 4, uint64(pathAddr), uint64(statAddr))); got != unix.ENOENT {
		t.Errorf("stat after unlink = %v, want ENOENT", got)
	}
}

func TestSysDup(t *testing.T) {
	e := newTestEnv(t)
	pathAddr := e.scratch
	e.copyOutString(t, pathAddr, "/etc/motd")

	fd := e.syscall(e.task, 2, uint64(pathAddr), linux.O_RDONLY)
	if errno(fd) != 0 {
		t.Fatalf("open: %v", errno(fd))
	}
	dup := e.syscall(e.task, 32, fd)
	if errno(dup) != 0 {
		t.Fatalf("dup: %v", errno(dup))
	}
	if dup == fd {
		t.Errorf("dup returned the same descriptor %d", dup)
	}
	// dup2 onto a specific slot.
	if got := e.syscall(e.task, 33, fd, 9); got != 9 {
		t.Fatalf("dup2 = %d (%v), want 9", got, errno(got))
	}
	// Both aliases share the offset with the original.
	bufAddr := e.scratch + hostarch.PageSize
	e.syscall(e.task, 0, fd, uint64(bufAddr), 8)
	if off := e.syscall(e.task, 8, 9, 0, linux.SEEK_CUR); off != 8 {
		t.Errorf("offset through dup2 alias = %d, want 8", off)
	}
	if got := errno(e.syscall(e.task, 32, 999)); got != unix.EBADF {
		t.Errorf("dup of bad fd = %v, want EBADF", got)
	}
}

func TestSysPipe(t *testing.T) {
	e := newTestEnv(t)
	fdsAddr := e.scratch
	bufAddr := e.scratch + hostarch.PageSize

	if ret := e.syscall(e.task, 22, uint64(fdsAddr)); errno(ret) != 0 {
		t.Fatalf("pipe: %v", errno(ret))
	}
	raw := make([]byte, 8)
	if _, err := e.task.MemoryManager().CopyIn(fdsAddr, raw); err != nil {
		t.Fatalf("CopyIn: %v", err)
	}
	rfd := uint64(binary.LittleEndian.Uint32(raw[0:]))
	wfd := uint64(binary.LittleEndian.Uint32(raw[4:]))

	payload := "through the pipe"
	if _, err := e.task.MemoryManager().CopyOut(bufAddr, []byte(payload)); err != nil {
		t.Fatalf("CopyOut: %v", err)
	}
	if n := e.syscall(e.task, 1, wfd, uint64(bufAddr), uint64(len(payload))); n != uint64(len(payload)) {
		t.Fatalf("write = %d (%v)", n, errno(n))
	}
	n := e.syscall(e.task, 0, rfd, uint64(bufAddr), 64)
	if n != uint64(len(payload)) {
		t.Fatalf("read = %d (%v), want %d", n, errno(n), len(payload))
	}

	// Close the write side; the read side sees end of file.
	e.syscall(e.task, 3, wfd)
	if n := e.syscall(e.task, 0, rfd, uint64(bufAddr), 64); n != 0 {
		t.Errorf("read after writer close = %d (%v), want 0", n, errno(n))
	}

	// Writing with no readers breaks the pipe.
	if ret := e.syscall(e.task, 22, uint64(fdsAddr)); errno(ret) != 0 {
		t.Fatalf("pipe: %v", errno(ret))
	}
	if _, err := e.task.MemoryManager().CopyIn(fdsAddr, raw); err != nil {
		t.Fatalf("CopyIn: %v", err)
	}
	rfd = uint64(binary.LittleEndian.Uint32(raw[0:]))
	wfd = uint64(binary.LittleEndian.Uint32(raw[4:]))
	e.syscall(e.task, 3, rfd)
	if got := errno(e.syscall(e.task, 1, wfd, uint64(bufAddr), 1)); got != unix.EPIPE {
		t.Errorf("write with no readers = %v, want EPIPE", got)
	}
}

func TestSysPipe2NonBlock(t *testing.T) {
	e := newTestEnv(t)
	fdsAddr := e.scratch

	if got := errno(e.syscall(e.task, 293, uint64(fdsAddr), 0x12345)); got != unix.EINVAL {
		t.Fatalf("pipe2 with junk flags = %v, want EINVAL", got)
	}
	if ret := e.syscall(e.task, 293, uint64(fdsAddr), linux.O_NONBLOCK); errno(ret) != 0 {
		t.Fatalf("pipe2: %v", errno(ret))
	}
	raw := make([]byte, 8)
	if _, err := e.task.MemoryManager().CopyIn(fdsAddr, raw); err != nil {
		t.Fatalf("CopyIn: %v", err)
	}
	rfd := uint64(binary.LittleEndian.Uint32(raw[0:]))

	// An empty nonblocking pipe fails immediately instead of sleeping.
	if got := errno(e.syscall(e.task, 0, rfd, uint64(e.scratch+hostarch.PageSize), 1)); got != unix.EAGAIN {
		t.Errorf("nonblocking read of empty pipe = %v, want EAGAIN", got)
	}
}

func TestSysForkExitWait(t *testing.T) {
	e := newTestEnv(t)

	childTID := e.syscall(e.task, 57)
	if errno(childTID) != 0 {
		t.Fatalf("fork: %v", errno(childTID))
	}
	child := e.k.TaskSet().TaskWithID(kernel.ThreadID(childTID))
	if child == nil {
		t.Fatalf("fork returned %d but no such task", childTID)
	}
	if got, want := child.Arch().Regs.Rax, uint64(0); got != want {
		t.Errorf("child's fork return = %d, want 0", got)
	}

	// The child exits 5; exit must not write a result register back.
	child.Arch().Regs.Orig_rax = 60
	child.Arch().Regs.Rdi = 5
	if child.ExecuteSyscall() {
		t.Error("exit(2) did not report task death")
	}

	statusAddr := e.scratch
	got := e.syscall(e.task, 61, childTID, uint64(statusAddr), 0, 0)
	if got != childTID {
		t.Fatalf("wait4 = %d (%v), want %d", got, errno(got), childTID)
	}
	raw := make([]byte, 4)
	if _, err := e.task.MemoryManager().CopyIn(statusAddr, raw); err != nil {
		t.Fatalf("CopyIn: %v", err)
	}
	status := linux.WaitStatus(binary.LittleEndian.Uint32(raw))
	if !status.Exited() || status.ExitStatus() != 5 {
		t.Errorf("wait status = %v, want exit status 5", status)
	}

	if got := errno(e.syscall(e.task, 61, uint64(0xffffffffffffffff), 0, 0, 0)); got != unix.ECHILD {
		t.Errorf("wait4(-1) with no children = %v, want ECHILD", got)
	}
}

func TestSysKill(t *testing.T) {
	e := newTestEnv(t)
	childTID := e.syscall(e.task, 57)
	if errno(childTID) != 0 {
		t.Fatalf("fork: %v", errno(childTID))
	}

	// Signal 0 probes for existence.
	if got := errno(e.syscall(e.task, 62, childTID, 0)); got != 0 {
		t.Errorf("kill(child, 0) = %v, want success", got)
	}
	if got := errno(e.syscall(e.task, 62, 12345, 0)); got != unix.ESRCH {
		t.Errorf("kill(bogus, 0) = %v, want ESRCH", got)
	}

	if got := errno(e.syscall(e.task, 62, childTID, uint64(linux.SIGKILL))); got != 0 {
		t.Fatalf("kill(child, SIGKILL) = %v", got)
	}
	statusAddr := e.scratch
	if got := e.syscall(e.task, 61, childTID, uint64(statusAddr), 0, 0); got != childTID {
		t.Fatalf("wait4 = %d (%v)", got, errno(got))
	}
	raw := make([]byte, 4)
	if _, err := e.task.MemoryManager().CopyIn(statusAddr, raw); err != nil {
		t.Fatalf("CopyIn: %v", err)
	}
	status := linux.WaitStatus(binary.LittleEndian.Uint32(raw))
	if !status.Signaled() || status.TerminationSignal() != linux.SIGKILL {
		t.Errorf("wait status = %v, want killed by SIGKILL", status)
	}
}

func TestSysMmapFamily(t *testing.T) {
	e := newTestEnv(t)

	// Anonymous private mapping.
	addr := e.syscall(e.task, 9, 0, 2*hostarch.PageSize,
		linux.PROT_READ|linux.PROT_WRITE,
		linux.MAP_PRIVATE|linux.MAP_ANONYMOUS, uint64(0xffffffffffffffff), 0)
	if errno(addr) != 0 {
		t.Fatalf("mmap: %v", errno(addr))
	}
	if _, err := e.task.MemoryManager().CopyOut(hostarch.Addr(addr), []byte("x")); err != nil {
		t.Fatalf("CopyOut to new mapping: %v", err)
	}

	// Flags must name exactly one sharing mode.
	if got := errno(e.syscall(e.task, 9, 0, hostarch.PageSize, linux.PROT_READ,
		linux.MAP_ANONYMOUS, 0, 0)); got != unix.EINVAL {
		t.Errorf("mmap without sharing mode = %v, want EINVAL", got)
	}

	// Drop write permission; stores fault.
	if ret := e.syscall(e.task, 10, addr, hostarch.PageSize, linux.PROT_READ); errno(ret) != 0 {
		t.Fatalf("mprotect: %v", errno(ret))
	}
	if _, err := e.task.MemoryManager().CopyOut(hostarch.Addr(addr), []byte("y")); err == nil {
		t.Error("store to read-only page succeeded")
	}

	if ret := e.syscall(e.task, 11, addr, 2*hostarch.PageSize); errno(ret) != 0 {
		t.Fatalf("munmap: %v", errno(ret))
	}
	if _, err := e.task.MemoryManager().CopyIn(hostarch.Addr(addr), make([]byte, 1)); err == nil {
		t.Error("load from unmapped page succeeded")
	}
}

func TestSysBrk(t *testing.T) {
	e := newTestEnv(t)
	e.task.MemoryManager().SetBrkStart(0x600000)

	base := e.syscall(e.task, 12, 0)
	if base != 0x600000 {
		t.Fatalf("brk(0) = %#x, want %#x", base, uint64(0x600000))
	}
	grown := e.syscall(e.task, 12, base+hostarch.PageSize)
	if grown != base+hostarch.PageSize {
		t.Fatalf("brk grow = %#x, want %#x", grown, base+hostarch.PageSize)
	}
	if _, err := e.task.MemoryManager().CopyOut(hostarch.Addr(base), []byte("heap")); err != nil {
		t.Fatalf("CopyOut to heap: %v", err)
	}
	// An absurd request is refused by returning the current break.
	if got := e.syscall(e.task, 12, ^uint64(0)); got != grown {
		t.Errorf("huge brk = %#x, want unchanged %#x", got, grown)
	}
}

func TestSysUname(t *testing.T) {
	e := newTestEnv(t)
	if ret := e.syscall(e.task, 63, uint64(e.scratch)); errno(ret) != 0 {
		t.Fatalf("uname: %v", errno(ret))
	}
	raw := make([]byte, linux.UTSLen+1)
	if _, err := e.task.MemoryManager().CopyIn(e.scratch, raw); err != nil {
		t.Fatalf("CopyIn: %v", err)
	}
	sysname := string(bytes.TrimRight(raw, "\x00"))
	if got, want := sysname, "ProtonOS"; got != want {
		t.Errorf("sysname = %q, want %q", got, want)
	}
}

func TestSysTime(t *testing.T) {
	e := newTestEnv(t)

	sec := e.syscall(e.task, 201, 0)
	if int64(sec) <= 0 {
		t.Errorf("time() = %d, want positive", int64(sec))
	}

	if got := errno(e.syscall(e.task, 228, 99, uint64(e.scratch))); got != unix.EINVAL {
		t.Errorf("clock_gettime(99) = %v, want EINVAL", got)
	}
	if ret := e.syscall(e.task, 228, linux.CLOCK_REALTIME, uint64(e.scratch)); errno(ret) != 0 {
		t.Fatalf("clock_gettime: %v", errno(ret))
	}
	raw := make([]byte, linux.SizeOfTimespec)
	if _, err := e.task.MemoryManager().CopyIn(e.scratch, raw); err != nil {
		t.Fatalf("CopyIn: %v", err)
	}
	var ts linux.Timespec
	if err := binary.Read(bytes.NewReader(raw), binary.LittleEndian, &ts); err != nil {
		t.Fatalf("decode timespec: %v", err)
	}
	if ts.Sec <= 0 {
		t.Errorf("CLOCK_REALTIME sec = %d, want positive", ts.Sec)
	}

	if ret := e.syscall(e.task, 96, uint64(e.scratch), 0); errno(ret) != 0 {
		t.Fatalf("gettimeofday: %v", errno(ret))
	}
}

func TestSysExecve(t *testing.T) {
	e := newTestEnv(t)
	e.k.RootFS().Create("/bin/next", []byte{0x90, 0xcc})

	pathAddr := e.scratch
	e.copyOutString(t, pathAddr, "/bin/next")

	// execve with a null argv runs with an empty argument list. The
	// result register must keep whatever the new program expects, so
	// noWriteback leaves it alone.
	regs := &e.task.Arch().Regs
	regs.Orig_rax = 59
	regs.Rdi = uint64(pathAddr)
	regs.Rsi = 0
	regs.Rdx = 0
	if !e.task.ExecuteSyscall() {
		t.Fatal("execve reported task death")
	}
	if got, want := e.task.Arch().IP(), uint64(loader.LoadAddr); got != want {
		t.Errorf("IP after execve = %#x, want %#x", got, want)
	}
	if got, want := e.task.Name(), "/bin/next"; got != want {
		t.Errorf("Name() = %q, want %q", got, want)
	}
}

func TestSysSchedYield(t *testing.T) {
	e := newTestEnv(t)
	if got := e.syscall(e.task, 24); got != 0 {
		t.Errorf("sched_yield() = %d, want 0", got)
	}
}

func TestSysUnimplemented(t *testing.T) {
	e := newTestEnv(t)
	if got := errno(e.syscall(e.task, 7)); got != unix.ENOSYS {
		t.Errorf("poll = %v, want ENOSYS", got)
	}
	// Gated stubs still check for privilege first.
	if got := errno(e.syscall(e.task, 169)); got != unix.ENOSYS {
		t.Errorf("reboot as root = %v, want ENOSYS", got)
	}
}
