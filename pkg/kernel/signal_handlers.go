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
	"sync"

	"protonos.dev/protonos/pkg/abi/linux"
)

// SignalHandlers holds the registered signal actions of a task.
type SignalHandlers struct {
	mu      sync.Mutex
	actions map[linux.Signal]linux.SigAction
}

// NewSignalHandlers returns a table with every action at its default.
func NewSignalHandlers() *SignalHandlers {
	return &SignalHandlers{
		actions: make(map[linux.Signal]linux.SigAction),
	}
}

// Fork returns a copy sharing nothing, as fork requires.
func (sh *SignalHandlers) Fork() *SignalHandlers {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	nsh := NewSignalHandlers()
	for sig, act := range sh.actions {
		nsh.actions[sig] = act
	}
	return nsh
}

// GetAction returns the current action for sig.
func (sh *SignalHandlers) GetAction(sig linux.Signal) linux.SigAction {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	return sh.actions[sig]
}

// SetAction installs a new action for sig and returns the old one.
func (sh *SignalHandlers) SetAction(sig linux.Signal, act linux.SigAction) linux.SigAction {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	old := sh.actions[sig]
	sh.actions[sig] = act
	return old
}

// ResetForExec restores caught signals to the default action. Ignored
// dispositions survive exec.
func (sh *SignalHandlers) ResetForExec() {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	for sig, act := range sh.actions {
		if act.Handler == linux.SIG_IGN {
			continue
		}
		delete(sh.actions, sig)
	}
}
