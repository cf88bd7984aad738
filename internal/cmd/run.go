// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dotandev/hesvm/internal/config"
	"github.com/dotandev/hesvm/internal/wasmvm/ast"
	"github.com/dotandev/hesvm/internal/wasmvm/engine"
	"github.com/dotandev/hesvm/internal/wasmvm/instance"
)

var (
	runFunc string
	runArgs []string
)

var runCmd = &cobra.Command{
	Use:   "run <file>",
	Short: "Run an exported function of a WebAssembly module",
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

		m, err := e.Instantiate(ctx, vm, instance.Environment{})
		if err != nil {
			color.Red("instantiate error: %v", err)
			return err
		}

		vals, err := parseArgs(runArgs)
		if err != nil {
			return err
		}

		results, err := e.RunFunc(ctx, m, mod, runFunc, vals)
		if err != nil {
			color.Yellow("trap: %v", err)
			return err
		}

		color.Green("%s -> %s", runFunc, formatResults(results))
		return nil
	},
}

// parseArgs converts "123" style CLI args into i32 Values. The core's
// Non-goals exclude richer ABI marshaling, so only bare integers are
// accepted here -- exactly what spec.md's own e2e scenarios pass.
func parseArgs(args []string) ([]instance.Value, error) {
	vals := make([]instance.Value, len(args))
	for i, a := range args {
		n, err := strconv.ParseInt(strings.TrimSpace(a), 10, 32)
		if err != nil {
			return nil, fmt.Errorf("argument %q is not an i32: %w", a, err)
		}
		vals[i] = instance.I32(int32(n))
	}
	return vals, nil
}

func formatResults(vals []instance.Value) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		switch v.Kind {
		case ast.I32:
			parts[i] = strconv.FormatInt(int64(v.AsI32()), 10)
		case ast.I64:
			parts[i] = strconv.FormatInt(v.AsI64(), 10)
		case ast.F32:
			parts[i] = strconv.FormatFloat(float64(v.AsF32()), 'g', -1, 32)
		case ast.F64:
			parts[i] = strconv.FormatFloat(v.AsF64(), 'g', -1, 64)
		}
	}
	return strings.Join(parts, ", ")
}

func init() {
	runCmd.Flags().StringVar(&runFunc, "func", "", "exported function name to run")
	runCmd.Flags().StringSliceVar(&runArgs, "arg", nil, "i32 argument, repeatable")
	_ = runCmd.MarkFlagRequired("func")
	rootCmd.AddCommand(runCmd)
}
