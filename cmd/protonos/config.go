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
	"fmt"

	"github.com/BurntSushi/toml"
)

// config is the TOML-decoded machine description.
type config struct {
	// MemoryFrames is the number of physical page frames the emulated
	// machine gets. Zero means unlimited.
	MemoryFrames int `toml:"memory_frames"`

	// Init is the path, inside the root filesystem, of the first
	// program.
	Init string `toml:"init"`

	// Argv is the argument vector handed to init. Argv[0] defaults to
	// Init.
	Argv []string `toml:"argv"`

	// Files maps root filesystem paths to host files whose contents
	// seed them.
	Files map[string]string `toml:"files"`
}

func defaultConfig() *config {
	return &config{
		MemoryFrames: 16384,
		Init:         "/sbin/init",
	}
}

func loadConfig(path string) (*config, error) {
	conf := defaultConfig()
	meta, err := toml.DecodeFile(path, conf)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown config keys: %v", undecoded)
	}
	if err := conf.validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

func (c *config) validate() error {
	if c.MemoryFrames < 0 {
		return fmt.Errorf("memory_frames must not be negative, got %d", c.MemoryFrames)
	}
	if c.Init == "" {
		return fmt.Errorf("init must not be empty")
	}
	for guest := range c.Files {
		if guest == "" || guest[0] != '/' {
			return fmt.Errorf("file destination %q is not an absolute path", guest)
		}
	}
	return nil
}
