// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dotandev/hesvm/internal/inspectrpc"
)

var inspectAddr string

// inspectCmd starts the read-only inspector RPC service: the seam an
// out-of-scope desktop inspector UI would connect to, never the engine
// itself.
var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Serve the read-only inspector JSON-RPC service",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		color.Green("inspector RPC listening on %s", inspectAddr)
		return inspectrpc.Serve(ctx, inspectAddr)
	},
}

func init() {
	inspectCmd.Flags().StringVar(&inspectAddr, "addr", ":8089", "address to listen on")
	rootCmd.AddCommand(inspectCmd)
}
