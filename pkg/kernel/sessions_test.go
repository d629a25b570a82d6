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

	"protonos.dev/protonos/pkg/errors/linuxerr"
)

func TestSetProcessGroupID(t *testing.T) {
	k := newTestKernel(t, testKernelConfig{})
	parent := newTestTask(t, k)
	a := forkTestTask(t, parent)
	b := forkTestTask(t, parent)

	// pgid 0 names the group after the target.
	if err := parent.SetProcessGroupID(a.ID(), 0); err != nil {
		t.Fatalf("SetProcessGroupID(a, 0): %v", err)
	}
	if got, want := a.ProcessGroupID(), a.ID(); got != want {
		t.Errorf("a pgid = %d, want %d", got, want)
	}

	// b can join a's group since it is in the same session.
	if err := parent.SetProcessGroupID(b.ID(), a.ID()); err != nil {
		t.Fatalf("SetProcessGroupID(b, a): %v", err)
	}
	if got, want := b.ProcessGroupID(), a.ID(); got != want {
		t.Errorf("b pgid = %d, want %d", got, want)
	}

	if err := parent.SetProcessGroupID(a.ID(), -1); err != linuxerr.EINVAL {
		t.Errorf("negative pgid = %v, want EINVAL", err)
	}
	// Joining a group nobody is in fails.
	if err := parent.SetProcessGroupID(0, 999); err != linuxerr.EPERM {
		t.Errorf("unknown group = %v, want EPERM", err)
	}
	// Only the caller and its children can be moved.
	if err := a.SetProcessGroupID(b.ID(), 0); err != linuxerr.ESRCH {
		t.Errorf("moving a sibling = %v, want ESRCH", err)
	}
}

func TestSetSession(t *testing.T) {
	k := newTestKernel(t, testKernelConfig{})
	parent := newTestTask(t, k)
	child := forkTestTask(t, parent)

	// The root task leads its own group and so cannot setsid.
	if _, err := parent.SetSession(); err != linuxerr.EPERM {
		t.Errorf("group leader SetSession = %v, want EPERM", err)
	}

	sid, err := child.SetSession()
	if err != nil {
		t.Fatalf("SetSession: %v", err)
	}
	if got, want := sid, child.ID(); got != want {
		t.Errorf("new sid = %d, want %d", got, want)
	}
	if got, want := child.ProcessGroupID(), child.ID(); got != want {
		t.Errorf("pgid after setsid = %d, want %d", got, want)
	}
	if got, want := child.SessionID(), child.ID(); got != want {
		t.Errorf("SessionID() = %d, want %d", got, want)
	}

	// The caller now leads a group in the new session; setpgid across
	// sessions is refused.
	if err := parent.SetProcessGroupID(child.ID(), parent.ID()); err != linuxerr.EPERM {
		t.Errorf("cross-session setpgid = %v, want EPERM", err)
	}
}
