// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "wasmrun",
	Short: "A small WebAssembly execution engine",
	Long: `wasmrun parses, validates, and runs core WebAssembly modules.

Examples:
  wasmrun validate ./module.wasm             Parse and type-check a module
  wasmrun run ./module.wasm --func add       Run an exported function
  wasmrun disasm ./module.wasm --func add    Disassemble a function body
  wasmrun abi ./module.wasm --section name   Dump a custom section
  wasmrun optimize ./module.wasm             Report dead-code elimination`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main(). It only needs to happen
// once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}
