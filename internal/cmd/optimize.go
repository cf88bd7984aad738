// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dotandev/hesvm/internal/config"
	"github.com/dotandev/hesvm/internal/wasmvm/bytecode"
	"github.com/dotandev/hesvm/internal/wasmvm/dce"
	"github.com/dotandev/hesvm/internal/wasmvm/engine"
)

// optimizeCmd reports what the teacher's byte-level dce command did as a
// mutation, but over the typed tree: which internal functions are
// unreachable from any export or the start function, without producing a
// rewritten binary -- this core has no encoder, only a parser.
var optimizeCmd = &cobra.Command{
	Use:   "optimize <file>",
	Short: "Report dead-code elimination over a module's internal functions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		e, err := engine.New(cfg)
		if err != nil {
			return err
		}
		defer e.Close()

		ctx := cmd.Context()
		mod, err := e.Parse(ctx, raw)
		if err != nil {
			color.Red("parse error: %v", err)
			return err
		}

		info := bytecode.Build(mod)
		_, report, err := dce.Eliminate(mod, info)
		if err != nil {
			color.Red("dce error: %v", err)
			return err
		}

		fmt.Printf("Total internal functions: %d\n", report.TotalInternalFunctions)
		fmt.Printf("Reachable:                %d\n", report.ReachableInternalFuncs)
		fmt.Printf("Eliminated:               %d\n", report.EliminatedInternalFuncs)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(optimizeCmd)
}
