// Copyright 2024 Chromtools. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package main

import (
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"
	"github.com/spf13/cobra"

	"github.com/chromtools/unicorn"
)

// newLogger routes parser diagnostics to stderr when --verbose is set.
func newLogger() logr.Logger {
	if !verbose {
		return logr.Discard()
	}
	return funcr.New(func(prefix, args string) {
		fmt.Fprintln(os.Stderr, args)
	}, funcr.Options{Verbosity: 1})
}

func open(name string, opts ...unicorn.Option) *unicorn.File {
	opts = append(opts, unicorn.WithLogger(newLogger()))
	file, err := unicorn.New(name, opts...)
	if err != nil {
		log.Fatalf("Error while opening file: %s, reason: %s", name, err)
	}
	return file
}

func parse(name string, opts ...unicorn.Option) *unicorn.File {
	file := open(name, opts...)
	if err := file.Parse(); err != nil {
		file.Close()
		log.Fatalf("Error while parsing file: %s, reason: %s", name, err)
	}
	return file
}

func runCheck(cmd *cobra.Command, args []string) {
	for _, name := range args {
		file := open(name)
		if file.InputCheck() {
			fmt.Printf("%s: supported (%s)\n", name, file.Format)
		} else {
			fmt.Printf("%s: not supported\n", name)
		}
		file.Close()
	}
}

func runInfo(cmd *cobra.Command, args []string) {
	for _, name := range args {
		file := parse(name)

		fmt.Printf("File: %s\nFormat: %s\nRun: %s\nChecksum: %016x\n",
			name, file.Format, file.RunName, file.Checksum())

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "MAGIC\tNAME\tTYPE\tSIZE\tADDRESS\tOFFSET")
		for _, c := range file.Channels() {
			fmt.Fprintf(w, "%x\t%s\t%s\t%d\t%d\t%d\n",
				c.MagicID, c.DataName, c.DataType, c.BlockSize,
				c.Address, c.OffData)
		}
		w.Flush()
		file.Close()
	}
}

func runUser(cmd *cobra.Command, args []string) {
	for _, name := range args {
		file := parse(name)
		fmt.Printf("%s: stored by user %q\n", name, file.User)
		file.Close()
	}
}

func runPoints(cmd *cobra.Command, args []string) {
	for _, name := range args {
		file := parse(name, unicorn.WithInjection(injection))
		fmt.Printf("Injection points of %s:\n #\tml\n", name)
		for i, p := range file.InjectionPoints {
			marker := ""
			if i == file.InjSel {
				marker = " (selected)"
			}
			fmt.Printf(" %d\t%g%s\n", i, p, marker)
		}
		file.Close()
	}
}

func runExtract(cmd *cobra.Command, args []string) {
	cfg := loadConfig(cmd)

	for _, name := range args {
		file := parse(name,
			unicorn.WithReduce(cfg.Reduce),
			unicorn.WithInjection(cfg.Injection))

		for _, warning := range file.Warnings {
			fmt.Fprintln(os.Stderr, "WARNING:", warning)
		}

		base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
		if cfg.OutDir != "" {
			if err := os.MkdirAll(cfg.OutDir, 0o755); err != nil {
				log.Fatalf("Error creating output directory: %s", err)
			}
			base = filepath.Join(cfg.OutDir, base)
		}

		for _, c := range file.Channels() {
			if err := writeChannel(base, c); err != nil {
				log.Fatalf("Error writing channel %s: %s", c.DataName, err)
			}
		}
		file.Close()
	}
}

// writeChannel emits one file per channel: text for meta blocks, CSV for
// annotation and curve series.
func writeChannel(base string, c *unicorn.Channel) error {
	safe := strings.Map(func(r rune) rune {
		if strings.ContainsRune(`/\:*?"<>|`, r) {
			return '_'
		}
		return r
	}, c.DataName)

	switch c.DataType {
	case unicorn.TypeMeta:
		return os.WriteFile(base+"_"+safe+".txt", []byte(c.Text), 0o644)

	case unicorn.TypeAnnotation:
		out, err := os.Create(base + "_" + safe + ".csv")
		if err != nil {
			return err
		}
		defer out.Close()

		w := csv.NewWriter(out)
		if err := w.Write([]string{"Volume(ml)", c.DataName}); err != nil {
			return err
		}
		for _, e := range c.Events {
			err := w.Write([]string{
				strconv.FormatFloat(e.Volume, 'f', -1, 64), e.Label})
			if err != nil {
				return err
			}
		}
		w.Flush()
		return w.Error()

	case unicorn.TypeCurve:
		out, err := os.Create(base + "_" + safe + ".csv")
		if err != nil {
			return err
		}
		defer out.Close()

		w := csv.NewWriter(out)
		header := fmt.Sprintf("%s(%s)", c.DataName, c.Unit)
		if err := w.Write([]string{"Volume(ml)", header}); err != nil {
			return err
		}
		for _, s := range c.Samples {
			err := w.Write([]string{
				strconv.FormatFloat(s.Volume, 'f', -1, 64),
				strconv.FormatFloat(s.Amplitude, 'f', -1, 64)})
			if err != nil {
				return err
			}
		}
		w.Flush()
		return w.Error()
	}
	return nil
}
