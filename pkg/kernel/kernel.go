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

// Package kernel implements the core of the operating system: tasks, their
// lifecycle (fork, exec, exit, wait), file descriptor tables, signals, and
// the syscall dispatch table that ties the pieces together.
package kernel

import (
	"protonos.dev/protonos/pkg/cleanup"
	"protonos.dev/protonos/pkg/errors/linuxerr"
	"protonos.dev/protonos/pkg/fs"
	"protonos.dev/protonos/pkg/fs/memfs"
	"protonos.dev/protonos/pkg/kernel/auth"
	"protonos.dev/protonos/pkg/limits"
	"protonos.dev/protonos/pkg/log"
	"protonos.dev/protonos/pkg/mm"
	"protonos.dev/protonos/pkg/platform"
)

// Loader turns an executable file into a runnable address space. It
// returns the initial instruction pointer and stack pointer.
type Loader interface {
	Load(m *mm.MemoryManager, f *fs.File, argv []string) (entry, sp uint64, err error)
}

// Scheduler is notified as tasks become runnable and stop being so. The
// kernel itself is scheduler-agnostic; a cooperative round-robin
// implementation lives elsewhere.
type Scheduler interface {
	Enqueue(t *Task)
	Dequeue(t *Task)
	Yield(t *Task)

	// Next returns the task that currently owns the CPU, or nil when
	// nothing is runnable.
	Next() *Task
}

// Kernel is the central object, holding the task set and the subsystems
// syscalls operate on.
type Kernel struct {
	tasks *TaskSet

	platform  platform.Platform
	rootFS    *memfs.Filesystem
	table     *SyscallTable
	loader    Loader
	scheduler Scheduler

	// defaultLimits seeds new root tasks.
	defaultLimits *limits.LimitSet
}

// Config collects everything a Kernel needs at construction.
type Config struct {
	Platform  platform.Platform
	RootFS    *memfs.Filesystem
	Table     *SyscallTable
	Loader    Loader
	Scheduler Scheduler
	Limits    *limits.LimitSet
}

// New returns an initialized kernel.
func New(cfg Config) (*Kernel, error) {
	if cfg.Platform == nil || cfg.Table == nil {
		return nil, linuxerr.EINVAL
	}
	if cfg.RootFS == nil {
		cfg.RootFS = memfs.New()
	}
	if cfg.Limits == nil {
		cfg.Limits = limits.NewDefaultLimitSet()
	}
	if cfg.Scheduler == nil {
		cfg.Scheduler = nopScheduler{}
	}
	return &Kernel{
		tasks:         newTaskSet(),
		platform:      cfg.Platform,
		rootFS:        cfg.RootFS,
		table:         cfg.Table,
		loader:        cfg.Loader,
		scheduler:     cfg.Scheduler,
		defaultLimits: cfg.Limits,
	}, nil
}

// TaskSet returns the kernel's task set.
func (k *Kernel) TaskSet() *TaskSet {
	return k.tasks
}

// RootFS returns the root filesystem.
func (k *Kernel) RootFS() *memfs.Filesystem {
	return k.rootFS
}

// SyscallTable returns the dispatch table.
func (k *Kernel) SyscallTable() *SyscallTable {
	return k.table
}

// CreateProcessArgs describes a new root task.
type CreateProcessArgs struct {
	// Filename is the binary to load from the root filesystem. An empty
	// Filename creates the task with an empty address space, which tests
	// use to drive syscalls directly.
	Filename string

	// Argv are the program arguments.
	Argv []string

	// Credentials default to root when nil.
	Credentials *auth.Credentials

	// Files seeds the descriptor table; index n becomes descriptor n.
	// The task takes a reference on each.
	Files []*fs.File
}

// CreateProcess builds a new task from scratch. It is the kernel
// equivalent of spawning init: later tasks come from fork.
func (k *Kernel) CreateProcess(args CreateProcessArgs) (*Task, error) {
	var cu cleanup.Cleanup
	defer cu.Clean()

	m, err := mm.New(k.platform)
	if err != nil {
		return nil, err
	}
	cu.Add(func() { m.Release() })

	creds := args.Credentials
	if creds == nil {
		creds = auth.NewRootCredentials()
	}

	t := k.newTask(m, creds, k.defaultLimits.GetCopy())
	t.name = args.Filename
	cu.Add(func() { t.fds.destroy() })

	for i, f := range args.Files {
		f.IncRef()
		t.fds.set(int32(i), f, false)
	}

	if args.Filename != "" {
		f, err := k.rootFS.Open(args.Filename, 0)
		if err != nil {
			return nil, err
		}
		defer f.DecRef()
		entry, sp, err := k.loader.Load(m, f, args.Argv)
		if err != nil {
			return nil, err
		}
		t.Arch().SetIP(entry)
		t.Arch().SetStack(sp)
	}

	if err := k.tasks.assignID(t); err != nil {
		return nil, err
	}
	cu.Release()
	k.scheduler.Enqueue(t)
	log.Infof("created process %d (%q)", t.ID(), args.Filename)
	return t, nil
}

type nopScheduler struct{}

func (nopScheduler) Enqueue(*Task) {}
func (nopScheduler) Dequeue(*Task) {}
func (nopScheduler) Yield(*Task)   {}
func (nopScheduler) Next() *Task   { return nil }
