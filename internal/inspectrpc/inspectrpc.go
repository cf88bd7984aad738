// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

// Package inspectrpc is the seam an out-of-scope desktop inspector UI
// would connect to: a JSON-RPC 1.0 service exposing read-only views over
// an already-parsed module -- its position tree and its flattened
// bytecode info. It never instantiates or runs anything, so it stays
// outside the engine's trust boundary; it only serves output the parser
// and bytecode builder already computed.
package inspectrpc

import (
	"context"
	"fmt"
	"net/http"
	"os"

	gorillarpc "github.com/gorilla/rpc"
	"github.com/gorilla/rpc/json"

	"github.com/dotandev/hesvm/internal/logger"
	"github.com/dotandev/hesvm/internal/telemetry"
	"github.com/dotandev/hesvm/internal/wasmvm/ast"
	"github.com/dotandev/hesvm/internal/wasmvm/bytecode"
	"github.com/dotandev/hesvm/internal/wasmvm/disasm"
	"github.com/dotandev/hesvm/internal/wasmvm/parser"
)

// Inspect is the RPC service, registered under the "Inspect" name so its
// methods are addressed as "Inspect.Parse" / "Inspect.BytecodeInfo".
type Inspect struct{}

// ParseArgs names the module on disk to inspect.
type ParseArgs struct {
	Path string `json:"path"`
}

// FunctionPositions is one function body's disassembled instruction list.
type FunctionPositions struct {
	Index int      `json:"index"`
	Lines []string `json:"lines"`
}

// PositionTree is the whole module's disassembly, one entry per internal
// function, in code-section order.
type PositionTree struct {
	Functions []FunctionPositions `json:"functions"`
}

// Parse decodes the module at args.Path and returns its position tree.
func (s *Inspect) Parse(r *http.Request, args *ParseArgs, reply *PositionTree) error {
	ctx, span := telemetry.GetNamedTracer("inspectrpc").Start(r.Context(), "inspectrpc.parse")
	defer span.End()

	raw, err := os.ReadFile(args.Path)
	if err != nil {
		span.RecordError(err)
		return err
	}
	mod, err := parser.Parse(raw)
	if err != nil {
		span.RecordError(err)
		return err
	}

	logger.Logger.DebugContext(ctx, "inspectrpc parse", "path", args.Path, "functions", len(mod.Code))

	reply.Functions = make([]FunctionPositions, len(mod.Code))
	for i, body := range mod.Code {
		reply.Functions[i] = FunctionPositions{
			Index: i,
			Lines: disasmLines(body),
		}
	}
	return nil
}

func disasmLines(body ast.FunctionBody) []string {
	if len(body.Ops) == 0 {
		return nil
	}
	lines := make([]string, len(body.Ops))
	for i, pos := range body.Ops {
		lines[i] = disasm.Line(pos)
	}
	return lines
}

// BytecodeInfoArgs names the module on disk to inspect.
type BytecodeInfoArgs struct {
	Path string `json:"path"`
}

// BytecodeInfoReply is a JSON-friendly view over bytecode.Info's flattened
// index spaces.
type BytecodeInfoReply struct {
	FunctionCount int     `json:"function_count"`
	GlobalCount   int     `json:"global_count"`
	MemoryCount   int     `json:"memory_count"`
	Start         *uint32 `json:"start,omitempty"`
}

// BytecodeInfo decodes the module at args.Path and returns its flattened
// function/global/memory index-space sizes.
func (s *Inspect) BytecodeInfo(r *http.Request, args *BytecodeInfoArgs, reply *BytecodeInfoReply) error {
	ctx, span := telemetry.GetNamedTracer("inspectrpc").Start(r.Context(), "inspectrpc.bytecode_info")
	defer span.End()

	raw, err := os.ReadFile(args.Path)
	if err != nil {
		span.RecordError(err)
		return err
	}
	mod, err := parser.Parse(raw)
	if err != nil {
		span.RecordError(err)
		return err
	}
	info := bytecode.Build(mod)

	logger.Logger.DebugContext(ctx, "inspectrpc bytecode_info", "path", args.Path)

	*reply = BytecodeInfoReply{
		FunctionCount: len(info.Functions),
		GlobalCount:   len(info.Globals),
		MemoryCount:   len(info.Memories),
		Start:         info.Start,
	}
	return nil
}

// NewHandler builds the JSON-RPC 1.0 HTTP handler, ready to mount at any
// path (e.g. "/rpc").
func NewHandler() (http.Handler, error) {
	server := gorillarpc.NewServer()
	server.RegisterCodec(json.NewCodec(), "application/json")
	server.RegisterCodec(json.NewCodec(), "application/json;charset=UTF-8")
	if err := server.RegisterService(new(Inspect), ""); err != nil {
		return nil, fmt.Errorf("register inspectrpc service: %w", err)
	}
	return server, nil
}

// Serve runs the inspector RPC service on addr until ctx is canceled.
func Serve(ctx context.Context, addr string) error {
	handler, err := NewHandler()
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/rpc", handler)

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		_ = srv.Shutdown(context.Background())
	}()

	logger.Logger.Info("starting inspector RPC service", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
