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
)

func TestSignalKill(t *testing.T) {
	k := newTestKernel(t, testKernelConfig{})
	parent := newTestTask(t, k)
	child := forkTestTask(t, parent)

	if err := child.SendSignal(linux.SIGKILL); err != nil {
		t.Fatalf("SendSignal: %v", err)
	}
	if !child.IsExited() {
		t.Fatal("task survived SIGKILL")
	}
	res, err := parent.Wait4(int32(child.ID()), 0)
	if err != nil {
		t.Fatalf("Wait4: %v", err)
	}
	if !res.Status.Signaled() || res.Status.TerminationSignal() != linux.SIGKILL {
		t.Errorf("status = %v, want killed by SIGKILL", res.Status)
	}
}

func TestSignalInvalid(t *testing.T) {
	k := newTestKernel(t, testKernelConfig{})
	task := newTestTask(t, k)
	if err := task.SendSignal(linux.Signal(0)); err != linuxerr.EINVAL {
		t.Errorf("SendSignal(0) = %v, want EINVAL", err)
	}
	if err := task.SendSignal(linux.Signal(65)); err != linuxerr.EINVAL {
		t.Errorf("SendSignal(65) = %v, want EINVAL", err)
	}
}

func TestSignalStopContinue(t *testing.T) {
	k := newTestKernel(t, testKernelConfig{})
	parent := newTestTask(t, k)
	child := forkTestTask(t, parent)

	if err := child.SendSignal(linux.SIGSTOP); err != nil {
		t.Fatalf("SendSignal(SIGSTOP): %v", err)
	}
	if !child.IsStopped() {
		t.Fatal("task not stopped by SIGSTOP")
	}

	res, err := parent.Wait4(int32(child.ID()), linux.WUNTRACED)
	if err != nil {
		t.Fatalf("Wait4(WUNTRACED): %v", err)
	}
	if !res.Status.Stopped() || res.Status.StopSignal() != linux.SIGSTOP {
		t.Errorf("status = %v, want stopped by SIGSTOP", res.Status)
	}

	// The stop has been consumed; a second wait sees nothing.
	res, err = parent.Wait4(int32(child.ID()), linux.WUNTRACED|linux.WNOHANG)
	if err != nil {
		t.Fatalf("Wait4: %v", err)
	}
	if res.TID != 0 {
		t.Errorf("stop reported twice: %+v", res)
	}

	if err := child.SendSignal(linux.SIGCONT); err != nil {
		t.Fatalf("SendSignal(SIGCONT): %v", err)
	}
	if child.IsStopped() {
		t.Fatal("task still stopped after SIGCONT")
	}
	res, err = parent.Wait4(int32(child.ID()), linux.WCONTINUED)
	if err != nil {
		t.Fatalf("Wait4(WCONTINUED): %v", err)
	}
	if !res.Status.Continued() {
		t.Errorf("status = %v, want continued", res.Status)
	}
}

func TestSignalDefaultDispositions(t *testing.T) {
	k := newTestKernel(t, testKernelConfig{})
	task := newTestTask(t, k)

	// SIGCHLD is ignored by default.
	if err := task.SendSignal(linux.SIGCHLD); err != nil {
		t.Fatalf("SendSignal(SIGCHLD): %v", err)
	}
	if task.IsExited() {
		t.Fatal("SIGCHLD terminated the task")
	}

	// An explicitly ignored signal is discarded.
	task.SignalHandlers().SetAction(linux.SIGTERM, linux.SigAction{Handler: linux.SIG_IGN})
	if err := task.SendSignal(linux.SIGTERM); err != nil {
		t.Fatalf("SendSignal(SIGTERM): %v", err)
	}
	if task.IsExited() {
		t.Fatal("ignored SIGTERM terminated the task")
	}

	// SIG_DFL for SIGTERM terminates.
	task.SignalHandlers().SetAction(linux.SIGTERM, linux.SigAction{Handler: linux.SIG_DFL})
	if err := task.SendSignal(linux.SIGTERM); err != nil {
		t.Fatalf("SendSignal(SIGTERM): %v", err)
	}
	if !task.IsExited() {
		t.Fatal("default SIGTERM did not terminate the task")
	}
}

func TestSignalPendingAndMask(t *testing.T) {
	k := newTestKernel(t, testKernelConfig{})
	task := newTestTask(t, k)
	task.SignalHandlers().SetAction(linux.SIGUSR1, linux.SigAction{Handler: 0x1000})
	task.SignalHandlers().SetAction(linux.SIGUSR2, linux.SigAction{Handler: 0x1000})

	// Block SIGUSR1; it should queue without interrupting.
	if _, err := task.SetSignalMask(linux.SIG_BLOCK, linux.SignalSetOf(linux.SIGUSR1)); err != nil {
		t.Fatalf("SetSignalMask: %v", err)
	}
	if err := task.SendSignal(linux.SIGUSR1); err != nil {
		t.Fatalf("SendSignal: %v", err)
	}
	if got := task.PendingSignals(); got != 0 {
		t.Errorf("PendingSignals() = %#x while blocked, want 0", got)
	}
	if got := task.TakePendingSignal(); got != 0 {
		t.Errorf("TakePendingSignal() = %v while blocked, want 0", got)
	}

	// Unblocking makes it deliverable; lower-numbered signals first.
	if err := task.SendSignal(linux.SIGUSR2); err != nil {
		t.Fatalf("SendSignal: %v", err)
	}
	if _, err := task.SetSignalMask(linux.SIG_UNBLOCK, linux.SignalSetOf(linux.SIGUSR1)); err != nil {
		t.Fatalf("SetSignalMask: %v", err)
	}
	if got, want := task.TakePendingSignal(), linux.SIGUSR1; got != want {
		t.Errorf("TakePendingSignal() = %v, want %v", got, want)
	}
	if got, want := task.TakePendingSignal(), linux.SIGUSR2; got != want {
		t.Errorf("TakePendingSignal() = %v, want %v", got, want)
	}
	if got := task.TakePendingSignal(); got != 0 {
		t.Errorf("TakePendingSignal() = %v after drain, want 0", got)
	}
}

func TestSignalForkInheritance(t *testing.T) {
	k := newTestKernel(t, testKernelConfig{})
	parent := newTestTask(t, k)
	parent.SignalHandlers().SetAction(linux.SIGUSR1, linux.SigAction{Handler: 0x1000})

	// Queue a signal on the parent and block another; the child starts
	// with the parent's mask but an empty pending set.
	if _, err := parent.SetSignalMask(linux.SIG_BLOCK, linux.SignalSetOf(linux.SIGUSR2)); err != nil {
		t.Fatalf("SetSignalMask: %v", err)
	}
	if err := parent.SendSignal(linux.SIGUSR1); err != nil {
		t.Fatalf("SendSignal: %v", err)
	}
	if parent.PendingSignals() == 0 {
		t.Fatal("SIGUSR1 did not queue on the parent")
	}

	child := forkTestTask(t, parent)
	if got := child.PendingSignals(); got != 0 {
		t.Errorf("child PendingSignals() = %#x, want 0", got)
	}
	if got := child.TakePendingSignal(); got != 0 {
		t.Errorf("child TakePendingSignal() = %v, want 0", got)
	}
	if got, want := child.SignalMask(), parent.SignalMask(); got != want {
		t.Errorf("child SignalMask() = %#x, want parent's %#x", got, want)
	}

	// The parent's queued signal is untouched by the fork.
	if got, want := parent.TakePendingSignal(), linux.SIGUSR1; got != want {
		t.Errorf("parent TakePendingSignal() = %v, want %v", got, want)
	}
}

func TestSignalMaskUnblockable(t *testing.T) {
	k := newTestKernel(t, testKernelConfig{})
	task := newTestTask(t, k)

	old, err := task.SetSignalMask(linux.SIG_SETMASK, linux.MakeSignalSet(linux.SIGKILL, linux.SIGSTOP, linux.SIGUSR1))
	if err != nil {
		t.Fatalf("SetSignalMask: %v", err)
	}
	if old != 0 {
		t.Errorf("initial mask = %#x, want 0", old)
	}
	if got, want := task.SignalMask(), linux.SignalSetOf(linux.SIGUSR1); got != want {
		t.Errorf("mask = %#x, want %#x (SIGKILL/SIGSTOP stripped)", got, want)
	}

	if _, err := task.SetSignalMask(99, 0); err != linuxerr.EINVAL {
		t.Errorf("SetSignalMask(99) = %v, want EINVAL", err)
	}
}
