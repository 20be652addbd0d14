// Copyright 2024 Chromtools. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package main

import (
	"log"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"
)

// config holds extraction defaults, readable from a TOML file so recurring
// dump jobs do not have to repeat the flags. Flags set on the command line
// win over the file.
type config struct {
	Reduce    int    `toml:"reduce"`
	Injection int    `toml:"injection"`
	OutDir    string `toml:"outdir"`
}

func loadConfig(cmd *cobra.Command) config {
	cfg := config{Reduce: 1, Injection: -1}

	if configPath != "" {
		if _, err := toml.DecodeFile(configPath, &cfg); err != nil {
			log.Fatalf("Error reading config %s: %s", configPath, err)
		}
	}

	if cmd.Flags().Changed("reduce") {
		cfg.Reduce = reduce
	}
	if cmd.Flags().Changed("injection") {
		cfg.Injection = injection
	}
	if cmd.Flags().Changed("outdir") {
		cfg.OutDir = outDir
	}
	return cfg
}
