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

// Binary protonos builds and inspects ProtonOS machine images.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
	"github.com/sirupsen/logrus"

	"protonos.dev/protonos/pkg/log"
)

var (
	debug      = flag.Bool("debug", false, "enable debug logging.")
	useLogrus  = flag.Bool("log-json", false, "emit structured logs via logrus.")
	configPath = flag.String("config", "", "path to a TOML configuration file.")
)

func main() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(new(bootCmd), "")
	subcommands.Register(new(syscallsCmd), "")
	subcommands.Register(new(versionCmd), "")

	flag.Parse()

	if *useLogrus {
		l := logrus.New()
		l.SetFormatter(&logrus.JSONFormatter{})
		if *debug {
			l.SetLevel(logrus.DebugLevel)
		}
		log.SetTarget(log.LogrusEmitter{Logger: l})
	}
	if *debug {
		log.SetLevel(log.Debug)
	}

	conf := defaultConfig()
	if *configPath != "" {
		c, err := loadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "loading config %q: %v\n", *configPath, err)
			os.Exit(1)
		}
		conf = c
	}

	ctx := context.WithValue(context.Background(), configKey{}, conf)
	os.Exit(int(subcommands.Execute(ctx)))
}

type configKey struct{}

func configFromContext(ctx context.Context) *config {
	return ctx.Value(configKey{}).(*config)
}
