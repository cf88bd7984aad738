// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dotandev/hesvm/internal/config"
	"github.com/dotandev/hesvm/internal/wasmvm/engine"
)

var validateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Parse and type-check a WebAssembly module",
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
		vm, err := e.Validate(ctx, mod)
		if err != nil {
			color.Red("validation error: %v", err)
			return err
		}

		color.Green("%s: valid (%d functions, %d exports)",
			args[0], len(vm.Info.Functions), len(mod.Exports))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
