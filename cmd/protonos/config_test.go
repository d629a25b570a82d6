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
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "machine.toml")
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
memory_frames = 512
init = "/bin/sh"
argv = ["sh", "-l"]

[files]
"/bin/sh" = "testdata/sh.bin"
`)
	conf, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	want := &config{
		MemoryFrames: 512,
		Init:         "/bin/sh",
		Argv:         []string{"sh", "-l"},
		Files:        map[string]string{"/bin/sh": "testdata/sh.bin"},
	}
	if diff := cmp.Diff(want, conf); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, ``)
	conf, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if got, want := conf.Init, "/sbin/init"; got != want {
		t.Errorf("Init = %q, want default %q", got, want)
	}
	if got, want := conf.MemoryFrames, 16384; got != want {
		t.Errorf("MemoryFrames = %d, want default %d", got, want)
	}
}

func TestLoadConfigRejectsBad(t *testing.T) {
	for _, tc := range []struct {
		name     string
		contents string
	}{
		{"unknown key", `memroy_frames = 1`},
		{"negative frames", `memory_frames = -1`},
		{"empty init", `init = ""`},
		{"relative file", "[files]\n\"bin/sh\" = \"x\""},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := loadConfig(writeConfig(t, tc.contents)); err == nil {
				t.Error("loadConfig accepted a bad config")
			}
		})
	}
}
