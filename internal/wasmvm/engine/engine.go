// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

// Package engine is the public façade gluing Parse -> Validate ->
// Instantiate -> Run into one pipeline, the composition point implied by
// this core's own pipeline: nothing downstream of here knows about bytes,
// and nothing upstream of here knows about activation frames.
package engine

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/dotandev/hesvm/internal/config"
	"github.com/dotandev/hesvm/internal/logger"
	"github.com/dotandev/hesvm/internal/modcache"
	"github.com/dotandev/hesvm/internal/telemetry"
	"github.com/dotandev/hesvm/internal/wasmvm/ast"
	"github.com/dotandev/hesvm/internal/wasmvm/bytecode"
	"github.com/dotandev/hesvm/internal/wasmvm/instance"
	"github.com/dotandev/hesvm/internal/wasmvm/interp"
	"github.com/dotandev/hesvm/internal/wasmvm/parser"
	"github.com/dotandev/hesvm/internal/wasmvm/validator"
	"github.com/dotandev/hesvm/internal/werrors"
)

var tracer = telemetry.GetNamedTracer("wasmvm")

// Engine holds the resolved configuration and (optionally) an open module
// cache; it is the caller-facing entry point for the whole pipeline.
type Engine struct {
	cfg   *config.Config
	cache *modcache.Cache
}

// New builds an Engine from cfg. When cfg.ModuleCacheEnabled, it opens the
// on-disk cache at cfg.ModuleCachePath; callers should Close the Engine
// when done.
func New(cfg *config.Config) (*Engine, error) {
	e := &Engine{cfg: cfg}
	if cfg.ModuleCacheEnabled {
		cache, err := modcache.Open(cfg.ModuleCachePath)
		if err != nil {
			return nil, err
		}
		e.cache = cache
	}
	return e, nil
}

// Close releases the module cache, if one was opened.
func (e *Engine) Close() error {
	if e.cache == nil {
		return nil
	}
	return e.cache.Close()
}

func (e *Engine) limits() instance.Limits {
	return instance.Limits{
		MaxMemoryPages: e.cfg.MaxMemoryPages,
		MaxCallDepth:   e.cfg.MaxCallDepth,
	}
}

// Parse decodes raw into an *ast.Module, emitting a wasmvm.parse span.
func (e *Engine) Parse(ctx context.Context, raw []byte) (*ast.Module, error) {
	ctx, span := tracer.Start(ctx, "wasmvm.parse", oteltrace.WithAttributes(
		attribute.Int("wasmvm.bytes", len(raw)),
	))
	defer span.End()

	mod, err := parser.Parse(raw)
	if err != nil {
		span.RecordError(err)
		logger.Logger.WarnContext(ctx, "parse failed", "error", err)
		return nil, err
	}
	logger.Logger.DebugContext(ctx, "parsed module",
		"types", len(mod.Types), "imports", len(mod.Imports), "funcs", len(mod.Code))
	return mod, nil
}

// Validate type-checks mod and builds its jump tables, emitting a
// wasmvm.validate span.
func (e *Engine) Validate(ctx context.Context, mod *ast.Module) (*validator.ValidatedModule, error) {
	ctx, span := tracer.Start(ctx, "wasmvm.validate")
	defer span.End()

	info := bytecode.Build(mod)
	vm, err := validator.Validate(mod, info)
	if err != nil {
		span.RecordError(err)
		logger.Logger.WarnContext(ctx, "validation failed", "error", err)
		return nil, err
	}
	logger.Logger.DebugContext(ctx, "validated module", "functions", len(info.Functions))
	return vm, nil
}

// Instantiate resolves vm's imports against env, applies the engine's
// configured resource limits, and runs the module's start function (if
// any), emitting a wasmvm.instantiate span.
func (e *Engine) Instantiate(ctx context.Context, vm *validator.ValidatedModule, env instance.Environment) (*interp.Machine, error) {
	ctx, span := tracer.Start(ctx, "wasmvm.instantiate")
	defer span.End()

	inst, err := instance.Build(vm, env, e.limits())
	if err != nil {
		span.RecordError(err)
		logger.Logger.WarnContext(ctx, "instantiate failed", "error", err)
		return nil, err
	}

	m := interp.New(inst)
	if inst.Start != nil {
		if err := m.RunStart(); err != nil {
			span.RecordError(err)
			logger.Logger.WarnContext(ctx, "start function trapped", "error", err)
			return nil, err
		}
	}
	return m, nil
}

// RunFunc invokes the exported function named name with args, emitting a
// wasmvm.run_func span.
func (e *Engine) RunFunc(ctx context.Context, m *interp.Machine, mod *ast.Module, name string, args []instance.Value) ([]instance.Value, error) {
	ctx, span := tracer.Start(ctx, "wasmvm.run_func", oteltrace.WithAttributes(
		attribute.String("wasmvm.func", name),
	))
	defer span.End()

	idx, ok := exportedFunc(mod, name)
	if !ok {
		err := werrors.Wrapf(werrors.ErrHostFuncNotFound, "no exported function named %q", name)
		span.RecordError(err)
		return nil, err
	}

	results, err := m.RunFunc(idx, args)
	if err != nil {
		span.RecordError(err)
		logger.Logger.WarnContext(ctx, "run trapped", "func", name, "error", err)
		return nil, err
	}
	return results, nil
}

// Run is the common-path convenience: Parse, Validate, Instantiate, then
// RunFunc name with args, against env.
func (e *Engine) Run(ctx context.Context, raw []byte, env instance.Environment, name string, args []instance.Value) ([]instance.Value, error) {
	mod, err := e.Parse(ctx, raw)
	if err != nil {
		return nil, err
	}
	vm, err := e.Validate(ctx, mod)
	if err != nil {
		return nil, err
	}
	m, err := e.Instantiate(ctx, vm, env)
	if err != nil {
		return nil, err
	}
	return e.RunFunc(ctx, m, mod, name, args)
}

// CompileCached behaves like Parse+Validate, but first consults the
// engine's module cache (keyed by a content hash of raw) and stores the
// result there on a miss, so re-running the same bytes skips re-parsing
// and re-validating entirely.
func (e *Engine) CompileCached(ctx context.Context, raw []byte) (*validator.ValidatedModule, error) {
	if e.cache == nil {
		mod, err := e.Parse(ctx, raw)
		if err != nil {
			return nil, err
		}
		return e.Validate(ctx, mod)
	}

	hash := modcache.Hash(raw)
	if vm, ok, err := e.cache.Lookup(hash); err != nil {
		return nil, err
	} else if ok {
		logger.Logger.Debug("module cache hit", "hash", hash)
		return vm, nil
	}

	mod, err := e.Parse(ctx, raw)
	if err != nil {
		return nil, err
	}
	vm, err := e.Validate(ctx, mod)
	if err != nil {
		return nil, err
	}
	if err := e.cache.Store(hash, vm); err != nil {
		return nil, err
	}
	logger.Logger.Debug("module cache store", "hash", hash)
	return vm, nil
}

func exportedFunc(mod *ast.Module, name string) (uint32, bool) {
	for _, exp := range mod.Exports {
		if exp.Kind == ast.ExportFunc && exp.Name == name {
			return exp.Idx, true
		}
	}
	return 0, false
}
