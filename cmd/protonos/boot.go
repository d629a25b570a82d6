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

package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"protonos.dev/protonos/pkg/fs/memfs"
	"protonos.dev/protonos/pkg/kernel"
	"protonos.dev/protonos/pkg/loader"
	"protonos.dev/protonos/pkg/log"
	"protonos.dev/protonos/pkg/platform/emu"
	"protonos.dev/protonos/pkg/ring0"
	"protonos.dev/protonos/pkg/sched"
	"protonos.dev/protonos/pkg/syscalls/linux"
)

// bootCmd assembles a machine from the configuration, programs the
// syscall entry MSRs, and loads init. On emulated hardware there are no
// instructions to run, so it reports the resulting machine state and
// exits; on real hardware this is where the first return-to-user would
// happen.
type bootCmd struct{}

// Name implements subcommands.Command.Name.
func (*bootCmd) Name() string {
	return "boot"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*bootCmd) Synopsis() string {
	return "assemble a machine and load the init program"
}

// Usage implements subcommands.Command.Usage.
func (*bootCmd) Usage() string {
	return "boot\n"
}

// SetFlags implements subcommands.Command.SetFlags.
func (*bootCmd) SetFlags(f *flag.FlagSet) {}

// Execute implements subcommands.Command.Execute.
func (*bootCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	conf := configFromContext(ctx)

	root := memfs.New()
	for guest, host := range conf.Files {
		data, err := os.ReadFile(host)
		if err != nil {
			fmt.Fprintf(os.Stderr, "reading %q: %v\n", host, err)
			return subcommands.ExitFailure
		}
		root.Create(guest, data)
	}

	k, err := kernel.New(kernel.Config{
		Platform:  emu.New(conf.MemoryFrames),
		Table:     linux.AMD64(),
		RootFS:    root,
		Loader:    loader.New(),
		Scheduler: sched.New(),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "building kernel: %v\n", err)
		return subcommands.ExitFailure
	}

	cpu := ring0.New(loggingMSRs{}, kernelStacks{})
	cpu.Init(syscallEntryAddr)

	argv := conf.Argv
	if len(argv) == 0 {
		argv = []string{conf.Init}
	}
	task, err := k.CreateProcess(kernel.CreateProcessArgs{
		Filename: conf.Init,
		Argv:     argv,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading init %q: %v\n", conf.Init, err)
		return subcommands.ExitFailure
	}

	fmt.Printf("machine ready: %d syscalls, trap stack %#x, init %v at ip=%#x sp=%#x, %d bytes mapped\n",
		k.SyscallTable().Registered(), cpu.StackTop(), task, task.Arch().IP(),
		task.Arch().Stack(), task.MemoryManager().VirtualMemorySize())
	return subcommands.ExitSuccess
}

// syscallEntryAddr is where LSTAR points. The emulated machine never
// jumps there; it exists so the MSR programming path is exercised end to
// end.
const syscallEntryAddr = 0xffffffff80000000

// loggingMSRs records MSR writes in the debug log.
type loggingMSRs struct{}

func (loggingMSRs) Write(reg uint64, value uint64) {
	log.Debugf("wrmsr %#x = %#x", reg, value)
}

// kernelStacks hands out trap stack tops from a fixed kernel window.
type kernelStacks struct{}

func (kernelStacks) AllocStack(size uint64) (uint64, error) {
	const base = 0xffffffffa0000000
	return base + size, nil
}
