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
	"protonos.dev/protonos/pkg/abi/linux"
	"protonos.dev/protonos/pkg/errors/linuxerr"
	"protonos.dev/protonos/pkg/syserror"
	"protonos.dev/protonos/pkg/waiter"
)

// WaitOptions specifies what a wait call is looking for.
type WaitOptions struct {
	// SpecificTID, if non-zero, limits the wait to that child.
	SpecificTID ThreadID

	// SpecificPGID, if non-zero, limits the wait to children in that
	// process group.
	SpecificPGID ThreadID

	// Block makes the wait sleep until an event arrives. When unset a
	// wait with no event returns a nil result immediately (WNOHANG).
	Block bool

	// ReportStops and ReportContinues extend the wait to stop and
	// continue events (WUNTRACED, WCONTINUED).
	ReportStops     bool
	ReportContinues bool
}

// WaitResult is the outcome of a successful wait.
type WaitResult struct {
	// TID is the child the event happened to.
	TID ThreadID

	// Status is the wait status word.
	Status linux.WaitStatus
}

// parseWaitSelector converts a wait4 pid argument into WaitOptions
// selectors.
func parseWaitSelector(pid int32, opts *WaitOptions, waiter *Task) {
	switch {
	case pid < -1:
		opts.SpecificPGID = ThreadID(-pid)
	case pid == -1:
		// Any child.
	case pid == 0:
		opts.SpecificPGID = waiter.ProcessGroupID()
	default:
		opts.SpecificTID = ThreadID(pid)
	}
}

// Wait4 implements the semantics of wait4(2) for the calling task.
func (t *Task) Wait4(pid int32, options int32) (WaitResult, error) {
	opts := WaitOptions{
		Block:           options&linux.WNOHANG == 0,
		ReportStops:     options&linux.WUNTRACED != 0,
		ReportContinues: options&linux.WCONTINUED != 0,
	}
	parseWaitSelector(pid, &opts, t)
	return t.Wait(opts)
}

// Wait waits for a state change in a child selected by opts. Exit events
// reap the child. With Block unset and nothing to report, it returns a
// zero WaitResult and nil error.
func (t *Task) Wait(opts WaitOptions) (WaitResult, error) {
	if !opts.Block {
		return t.waitOnce(opts)
	}

	e, ch := waiter.NewChannelEntry(nil)
	t.childEvents.EventRegister(&e, waiter.EventChild)
	defer t.childEvents.EventUnregister(&e)

	for {
		res, err := t.waitOnce(opts)
		if err != syserror.ErrWouldBlock {
			return res, err
		}
		if err := t.Block(ch); err != nil {
			return WaitResult{}, err
		}
	}
}

// waitOnce scans the children once. It returns ErrWouldBlock when
// matching children exist but none has an event, so that only the
// blocking wrapper sees it.
func (t *Task) waitOnce(opts WaitOptions) (WaitResult, error) {
	ts := t.k.tasks
	ts.mu.Lock()
	defer ts.mu.Unlock()

	matched := false
	for _, c := range t.children {
		if opts.SpecificTID != 0 && c.id != opts.SpecificTID {
			continue
		}
		if opts.SpecificPGID != 0 && c.pgid != opts.SpecificPGID {
			continue
		}
		matched = true

		if opts.ReportContinues && c.contReportable {
			c.contReportable = false
			return WaitResult{TID: c.id, Status: linux.WaitStatusContinued()}, nil
		}
		if opts.ReportStops && c.stopReportable {
			c.stopReportable = false
			return WaitResult{TID: c.id, Status: linux.WaitStatusStopped(c.stopSignal)}, nil
		}
		if c.state == taskZombie {
			res := WaitResult{TID: c.id, Status: c.exitStatus}
			ts.removeLocked(c)
			return res, nil
		}
	}
	if !matched {
		return WaitResult{}, linuxerr.ECHILD
	}
	if !opts.Block {
		return WaitResult{}, nil
	}
	return WaitResult{}, syserror.ErrWouldBlock
}
