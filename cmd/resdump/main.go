// Copyright 2024 Chromtools. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	verbose    bool
	configPath string
	reduce     int
	injection  int
	outDir     string
)

func main() {

	var rootCmd = &cobra.Command{
		Use:   "resdump",
		Short: "A UNICORN chromatography result file parser",
		Long:  "Extracts run data from UNICORN .res and .zip result files",
		Run: func(cmd *cobra.Command, args []string) {
		},
	}

	var versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("resdump 0.1.0")
		},
	}

	var checkCmd = &cobra.Command{
		Use:   "check",
		Short: "Check whether a file is a supported RESv3 result file",
		Args:  cobra.MinimumNArgs(1),
		Run:   runCheck,
	}

	var infoCmd = &cobra.Command{
		Use:   "info",
		Short: "Show the block directory of a result file",
		Args:  cobra.MinimumNArgs(1),
		Run:   runInfo,
	}

	var userCmd = &cobra.Command{
		Use:   "user",
		Short: "Show the stored operator name",
		Args:  cobra.MinimumNArgs(1),
		Run:   runUser,
	}

	var pointsCmd = &cobra.Command{
		Use:   "points",
		Short: "Show the injection points of a run",
		Args:  cobra.MinimumNArgs(1),
		Run:   runPoints,
	}

	var extractCmd = &cobra.Command{
		Use:   "extract",
		Short: "Extract the supported data blocks",
		Long:  "Writes one CSV per series channel and one text file per meta channel",
		Args:  cobra.MinimumNArgs(1),
		Run:   runExtract,
	}

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(userCmd)
	rootCmd.AddCommand(pointsCmd)
	rootCmd.AddCommand(extractCmd)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "", "", "TOML file with extraction defaults")
	extractCmd.Flags().IntVarP(&reduce, "reduce", "r", 1, "Write only every n-th curve sample")
	extractCmd.Flags().IntVarP(&injection, "injection", "i", -1, "Injection point used as volume origin")
	extractCmd.Flags().StringVarP(&outDir, "outdir", "o", "", "Directory to write extracted files to")
	pointsCmd.Flags().IntVarP(&injection, "injection", "i", -1, "Injection point used as volume origin")

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
