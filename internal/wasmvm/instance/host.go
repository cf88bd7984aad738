// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package instance

import "github.com/dotandev/hesvm/internal/wasmvm/ast"

// HostHandler is invoked synchronously by the interpreter's Call dispatch.
// params holds the pre-popped, typed arguments; results is pre-sized to
// the function's declared result count and must be filled in place.
// Returning a non-nil error traps the current run_func call with that same
// error, unwrapped; a handler reports a diagnostic code by returning
// werrors.NewNativeFuncCallError(code).
type HostHandler func(eng HostEngine, params []Value, results []Value) error

// HostEngine is the slice of the running machine a handler is allowed to
// touch: memory and the ability to re-enter by invoking another function
// by index. Keeping this as an interface (instead of handing out the
// concrete interpreter type directly, which would make this package
// depend on interp) keeps the host/interpreter layering one-directional:
// interp depends on instance, never the reverse.
type HostEngine interface {
	Memory() []byte
	Call(funcIdx uint32, params []Value) ([]Value, error)
}

// HostFunction is one entry of a module's host environment.
type HostFunction struct {
	Params  []ast.ValueKind
	Results []ast.ValueKind
	Handler HostHandler
}

// GlobalImport is the value a host supplies for an imported global.
type GlobalImport struct {
	Kind    ast.ValueKind
	Mutable bool
	Value   Value
}

// Environment is the full set of host-provided imports, keyed first by
// module name then by entry name, mirroring the import section's own
// (module, name) pairs.
type Environment struct {
	Funcs   map[string]map[string]HostFunction
	Globals map[string]map[string]GlobalImport
}

func (e Environment) lookupFunc(module, name string) (HostFunction, bool) {
	mod, ok := e.Funcs[module]
	if !ok {
		return HostFunction{}, false
	}
	fn, ok := mod[name]
	return fn, ok
}

func (e Environment) lookupGlobal(module, name string) (GlobalImport, bool) {
	mod, ok := e.Globals[module]
	if !ok {
		return GlobalImport{}, false
	}
	g, ok := mod[name]
	return g, ok
}
