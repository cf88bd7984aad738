// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dotandev/hesvm/internal/config"
	"github.com/dotandev/hesvm/internal/wasmvm/ast"
	wasmdisasm "github.com/dotandev/hesvm/internal/wasmvm/disasm"
	"github.com/dotandev/hesvm/internal/wasmvm/engine"
)

var disasmFunc string

var disasmCmd = &cobra.Command{
	Use:   "disasm <file>",
	Short: "Disassemble a function body as WAT-style text",
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

		idx, ok := exportedFuncIdx(mod, disasmFunc)
		if !ok {
			return fmt.Errorf("no exported function named %q", disasmFunc)
		}
		if int(idx) >= len(vm.Info.Functions) {
			return fmt.Errorf("function %q has out-of-range index %d", disasmFunc, idx)
		}
		src := vm.Info.Functions[idx].Source
		if !src.Internal {
			return fmt.Errorf("function %q is an import, nothing to disassemble", disasmFunc)
		}

		fmt.Println(wasmdisasm.Function(mod.Code[src.CodeIdx]))
		return nil
	},
}

func exportedFuncIdx(mod *ast.Module, name string) (uint32, bool) {
	for _, exp := range mod.Exports {
		if exp.Kind == ast.ExportFunc && exp.Name == name {
			return exp.Idx, true
		}
	}
	return 0, false
}

func init() {
	disasmCmd.Flags().StringVar(&disasmFunc, "func", "", "exported function name to disassemble")
	_ = disasmCmd.MarkFlagRequired("func")
	rootCmd.AddCommand(disasmCmd)
}
