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
	"protonos.dev/protonos/pkg/arch"
	"protonos.dev/protonos/pkg/errors/linuxerr"
	"protonos.dev/protonos/pkg/log"
	"protonos.dev/protonos/pkg/mm"
)

// Execve replaces the task's program image. On success the old address
// space is gone, caught signals are reset, pending signals are
// discarded, close-on-exec descriptors are closed, and the register
// file points at the new program's entry. Any
// failure before the point of no return leaves the caller fully intact.
func (t *Task) Execve(filename string, argv []string) error {
	if t.k.loader == nil {
		return linuxerr.ENOSYS
	}
	f, err := t.k.rootFS.Open(filename, 0)
	if err != nil {
		return err
	}
	defer f.DecRef()

	newMM, err := mm.New(t.k.platform)
	if err != nil {
		return err
	}
	entry, sp, err := t.k.loader.Load(newMM, f, argv)
	if err != nil {
		newMM.Release()
		return err
	}

	// Point of no return.
	oldMM := t.mm
	t.mm = newMM
	oldMM.Release()

	t.fds.CloseCloexec()
	t.sh.ResetForExec()
	t.k.tasks.mu.Lock()
	t.pendingSignals = 0
	t.k.tasks.mu.Unlock()
	t.name = filename

	t.archCtx = arch.NewContext()
	t.archCtx.SetIP(entry)
	t.archCtx.SetStack(sp)

	log.Infof("%v: exec %q", t, filename)
	return nil
}
