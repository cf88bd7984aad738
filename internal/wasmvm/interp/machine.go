// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

// Package interp is the single-threaded, synchronous dispatch loop over
// an instance's flattened instruction buffer: the value stack, activation
// frames, and label stack all live here, on top of the static structure
// instance.Build already resolved.
package interp

import (
	"github.com/dotandev/hesvm/internal/wasmvm/ast"
	"github.com/dotandev/hesvm/internal/wasmvm/instance"
	"github.com/dotandev/hesvm/internal/werrors"
)

type frame struct {
	funcIdx           int
	localsBase        int
	arity             int
	returnIP          int // -1 marks the outermost call of a RunFunc invocation
	returnStackHeight int
	labelBase         int
}

// Machine owns the execution-only state (value stack, activation frames,
// label stack, locals) layered over one already-built instance.Instance.
// It is long-lived: a host handler that re-enters via Call sees the same
// Machine, so nested wasm->host->wasm calls share one activation stack,
// exactly as the spec's re-entrancy model requires.
type Machine struct {
	inst *instance.Instance

	stack    []uint64
	locals   []uint64
	frames   []frame
	numLabels int // count of open Block/Loop/If labels; see dispatchEnd
	ip       int
}

// New wraps an already-instantiated module for execution.
func New(inst *instance.Instance) *Machine {
	return &Machine{inst: inst}
}

// Memory implements instance.HostEngine.
func (m *Machine) Memory() []byte { return m.inst.Memory() }

// Call implements instance.HostEngine, letting a host handler re-enter the
// same machine (e.g. to call back into another exported function).
func (m *Machine) Call(funcIdx uint32, params []instance.Value) ([]instance.Value, error) {
	return m.RunFunc(funcIdx, params)
}

// RunStart invokes the module's start function, if declared.
func (m *Machine) RunStart() error {
	if m.inst.Start == nil {
		return nil
	}
	_, err := m.RunFunc(*m.inst.Start, nil)
	return err
}

// RunFunc invokes funcIdx with the given typed arguments and returns its
// typed results, per spec ??4.6.1: push an activation, run the dispatch
// loop until that activation's own End/Return completes, convert results
// back from untagged cells using the callee's declared result kinds.
func (m *Machine) RunFunc(funcIdx uint32, args []instance.Value) ([]instance.Value, error) {
	if int(funcIdx) >= len(m.inst.Functions) {
		return nil, werrors.ErrInvalidFuncIndex
	}
	fn := m.inst.Functions[funcIdx]

	if !fn.Internal {
		results := make([]instance.Value, len(fn.Sig.Results))
		if err := m.callHost(fn, args, results); err != nil {
			return nil, err
		}
		return results, nil
	}

	targetDepth := len(m.frames)
	if err := m.pushInternalFrame(fn, args, int(funcIdx), -1, len(m.stack)); err != nil {
		return nil, err
	}
	if err := m.run(targetDepth); err != nil {
		return nil, err
	}

	nres := len(fn.Sig.Results)
	results := make([]instance.Value, nres)
	for i := nres - 1; i >= 0; i-- {
		results[i] = cellToValue(m.popCell(), fn.Sig.Results[i])
	}
	return results, nil
}

func (m *Machine) pushInternalFrame(fn instance.FuncInstance, args []instance.Value, funcIdx, returnIP, returnStackHeight int) error {
	if max := m.inst.MaxCallDepth; max > 0 && len(m.frames) >= max {
		return werrors.ErrCallStackOverflow
	}

	base := len(m.locals)
	for i := range fn.LocalKinds {
		var cell uint64
		if i < len(args) {
			cell = args[i].Bits
		}
		m.locals = append(m.locals, cell)
	}
	m.frames = append(m.frames, frame{
		funcIdx:           funcIdx,
		localsBase:        base,
		arity:             len(fn.Sig.Results),
		returnIP:          returnIP,
		returnStackHeight: returnStackHeight,
		labelBase:         m.numLabels,
	})
	m.ip = fn.CodeOffset
	return nil
}

func (m *Machine) callHost(fn instance.FuncInstance, args []instance.Value, results []instance.Value) error {
	return fn.Handler(m, args, results)
}

// run executes instructions until the activation stack returns to
// targetDepth (i.e. the call that pushed frame targetDepth has returned).
func (m *Machine) run(targetDepth int) error {
	for len(m.frames) > targetDepth {
		op := &m.inst.Instructions[m.ip]
		if err := m.step(op); err != nil {
			return err
		}
	}
	return nil
}

func (m *Machine) curFrame() *frame        { return &m.frames[len(m.frames)-1] }
func (m *Machine) pushCell(v uint64)       { m.stack = append(m.stack, v) }
func (m *Machine) popCell() uint64 {
	v := m.stack[len(m.stack)-1]
	m.stack = m.stack[:len(m.stack)-1]
	return v
}

func cellToValue(cell uint64, kind ast.ValueKind) instance.Value {
	return instance.Value{Kind: kind, Bits: cell}
}
