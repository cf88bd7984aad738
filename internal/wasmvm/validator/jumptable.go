// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package validator

// JumpEntry is one resolved branch target: the ip that owns it, the
// relative ip delta to jump by, the operand-stack height at the target,
// and how many result values the branch carries across.
//
// ExitsFunction marks a Br/BrIf whose label targets the synthetic
// outermost frame (a bare top-level branch with no enclosing block):
// DeltaIP for such an entry points one past the function's own body,
// which is meaningless as an intra-function jump once bodies are
// flattened into a shared instruction buffer, so the interpreter must
// treat it as a return instead of following DeltaIP.
type JumpEntry struct {
	IP            int
	DeltaIP       int
	StackHeight   int
	OutCount      int
	ExitsFunction bool
}

// JumpTable is a function's ordered sequence of resolved branch targets,
// indexed by the Jmp field patched onto If/Br/BrIf ops.
type JumpTable []JumpEntry
