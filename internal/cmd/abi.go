// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dotandev/hesvm/internal/config"
	"github.com/dotandev/hesvm/internal/wasmvm/abi"
	"github.com/dotandev/hesvm/internal/wasmvm/engine"
)

var abiSection string

// abiCmd generalizes the teacher's Soroban-only "contractspecv0" dump into
// a lookup over any named custom section: the module's parser already
// carries every custom section as an opaque (name, payload) pair.
var abiCmd = &cobra.Command{
	Use:   "abi <file>",
	Short: "Dump a named custom section's raw payload",
	Long: `Dump a WebAssembly module's custom section.

With no --section, lists the names of every custom section present.

Examples:
  wasmrun abi ./module.wasm
  wasmrun abi ./module.wasm --section name`,
	Args: cobra.ExactArgs(1),
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

		mod, err := e.Parse(cmd.Context(), raw)
		if err != nil {
			color.Red("parse error: %v", err)
			return err
		}

		if abiSection == "" {
			names := abi.CustomSectionNames(mod)
			if len(names) == 0 {
				color.Yellow("%s: no custom sections", args[0])
				return nil
			}
			for _, n := range names {
				fmt.Println(n)
			}
			return nil
		}

		payload, ok := abi.ExtractCustomSection(mod, abiSection)
		if !ok {
			return fmt.Errorf("no custom section named %q", abiSection)
		}
		os.Stdout.Write(payload)
		return nil
	},
}

func init() {
	abiCmd.Flags().StringVar(&abiSection, "section", "", "custom section name to dump; lists section names if omitted")
	rootCmd.AddCommand(abiCmd)
}
