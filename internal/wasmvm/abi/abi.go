// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

// Package abi extracts named custom sections from an already-parsed
// module, generalizing the byte-level custom-section scan a binary-only
// tool needs into a lookup over the parser's typed tree.
package abi

import "github.com/dotandev/hesvm/internal/wasmvm/ast"

// ExtractCustomSection returns the payload of mod's custom section named
// name, and whether it was found. Custom sections carry embedder-defined
// metadata -- e.g. a component-model or interface-type description -- this
// core never interprets; it just hands the bytes back verbatim.
func ExtractCustomSection(mod *ast.Module, name string) ([]byte, bool) {
	for _, cs := range mod.Customs {
		if cs.Name == name {
			return cs.Payload, true
		}
	}
	return nil, false
}

// CustomSectionNames lists every custom section name present in mod, in
// declaration order, for tooling that wants to enumerate what's available
// before picking one.
func CustomSectionNames(mod *ast.Module) []string {
	names := make([]string, len(mod.Customs))
	for i, cs := range mod.Customs {
		names[i] = cs.Name
	}
	return names
}
