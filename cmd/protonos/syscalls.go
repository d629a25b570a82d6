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

	"github.com/google/subcommands"

	"protonos.dev/protonos/pkg/abi/linux"
	sylinux "protonos.dev/protonos/pkg/syscalls/linux"
)

// syscallsCmd prints the implemented syscall surface.
type syscallsCmd struct{}

// Name implements subcommands.Command.Name.
func (*syscallsCmd) Name() string {
	return "syscalls"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*syscallsCmd) Synopsis() string {
	return "list the syscalls the kernel implements"
}

// Usage implements subcommands.Command.Usage.
func (*syscallsCmd) Usage() string {
	return "syscalls\n"
}

// SetFlags implements subcommands.Command.SetFlags.
func (*syscallsCmd) SetFlags(f *flag.FlagSet) {}

// Execute implements subcommands.Command.Execute.
func (*syscallsCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	table := sylinux.AMD64()
	for nr := uintptr(0); nr <= linux.MaxSyscallNum; nr++ {
		if table.Lookup(nr) != nil {
			fmt.Printf("%3d\t%s\n", nr, table.Name(nr))
		}
	}
	fmt.Printf("total: %d\n", table.Registered())
	return subcommands.ExitSuccess
}
