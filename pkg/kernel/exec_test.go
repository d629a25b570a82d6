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

package kernel

import (
	"testing"

	"protonos.dev/protonos/pkg/abi/linux"
	"protonos.dev/protonos/pkg/errors/linuxerr"
	"protonos.dev/protonos/pkg/fs/memfs"
	"protonos.dev/protonos/pkg/hostarch"
	"protonos.dev/protonos/pkg/loader"
	"protonos.dev/protonos/pkg/mm"
)

func newExecKernel(t *testing.T) *Kernel {
	t.Helper()
	root := memfs.New()
	root.Create("/bin/a", []byte{0x90, 0x90, 0xcc})
	root.Create("/bin/b", []byte{0xcc})
	return newTestKernel(t, testKernelConfig{
		rootFS: root,
		loader: loader.New(),
	})
}

func TestExecve(t *testing.T) {
	k := newExecKernel(t)
	task, err := k.CreateProcess(CreateProcessArgs{Filename: "/bin/a", Argv: []string{"a"}})
	if err != nil {
		t.Fatalf("CreateProcess: %v", err)
	}

	oldSize := task.MemoryManager().VirtualMemorySize()
	if oldSize == 0 {
		t.Fatal("loaded task has an empty address space")
	}

	// Leave a stray mapping; exec must not carry it over.
	if _, err := task.MemoryManager().MMap(mm.MMapOpts{
		Length:  hostarch.PageSize,
		Perms:   hostarch.ReadWrite,
		Private: true,
	}); err != nil {
		t.Fatalf("MMap: %v", err)
	}

	// Mark a descriptor close-on-exec and keep another.
	f, err := k.RootFS().Open("/bin/b", linux.O_RDONLY)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.DecRef()
	keep, err := task.FDTable().NewFDFrom(0, f, false)
	if err != nil {
		t.Fatalf("NewFDFrom: %v", err)
	}
	drop, err := task.FDTable().NewFDFrom(0, f, true)
	if err != nil {
		t.Fatalf("NewFDFrom: %v", err)
	}

	// Register a handler and queue a signal for it; exec must reset the
	// handler and discard the queued signal.
	task.SignalHandlers().SetAction(linux.SIGUSR1, linux.SigAction{Handler: 0x1000})
	if err := task.SendSignal(linux.SIGUSR1); err != nil {
		t.Fatalf("SendSignal: %v", err)
	}
	if task.PendingSignals() == 0 {
		t.Fatal("SIGUSR1 did not queue before exec")
	}

	if err := task.Execve("/bin/b", []string{"b", "arg"}); err != nil {
		t.Fatalf("Execve: %v", err)
	}

	if got, want := task.Arch().IP(), uint64(loader.LoadAddr); got != want {
		t.Errorf("IP = %#x, want %#x", got, want)
	}
	if got := task.Arch().Stack(); got == 0 || got%16 != 0 {
		t.Errorf("stack pointer = %#x, want non-zero and 16-aligned", got)
	}
	if got, want := task.Name(), "/bin/b"; got != want {
		t.Errorf("Name() = %q, want %q", got, want)
	}

	if got := task.FDTable().Get(drop); got != nil {
		got.DecRef()
		t.Error("close-on-exec descriptor survived exec")
	}
	if got := task.FDTable().Get(keep); got == nil {
		t.Error("plain descriptor did not survive exec")
	} else {
		got.DecRef()
	}

	if got := task.SignalHandlers().GetAction(linux.SIGUSR1).Handler; got != linux.SIG_DFL {
		t.Errorf("SIGUSR1 handler after exec = %#x, want SIG_DFL", got)
	}
	if got := task.PendingSignals(); got != 0 {
		t.Errorf("PendingSignals after exec = %#x, want 0", got)
	}
	if got := task.TakePendingSignal(); got != 0 {
		t.Errorf("TakePendingSignal after exec = %v, want 0", got)
	}

	// The image starts with the new binary's bytes.
	buf := make([]byte, 1)
	if _, err := task.MemoryManager().CopyIn(loader.LoadAddr, buf); err != nil {
		t.Fatalf("CopyIn: %v", err)
	}
	if buf[0] != 0xcc {
		t.Errorf("image byte = %#x, want 0xcc", buf[0])
	}
}

func TestExecveFailureLeavesTaskIntact(t *testing.T) {
	k := newExecKernel(t)
	task, err := k.CreateProcess(CreateProcessArgs{Filename: "/bin/a", Argv: []string{"a"}})
	if err != nil {
		t.Fatalf("CreateProcess: %v", err)
	}
	size := task.MemoryManager().VirtualMemorySize()

	if err := task.Execve("/does/not/exist", nil); err != linuxerr.ENOENT {
		t.Fatalf("Execve of missing file = %v, want ENOENT", err)
	}
	if got := task.MemoryManager().VirtualMemorySize(); got != size {
		t.Errorf("address space changed on failed exec: %d -> %d", size, got)
	}
	if got, want := task.Name(), "/bin/a"; got != want {
		t.Errorf("Name() = %q, want %q", got, want)
	}
}
