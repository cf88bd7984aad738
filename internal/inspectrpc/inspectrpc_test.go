// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package inspectrpc

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dotandev/hesvm/internal/wasmvm/wasmtest"
)

func writeTestModule(t *testing.T) string {
	t.Helper()
	b := wasmtest.New()
	b.Section(1, wasmtest.Vec(1, wasmtest.FuncType(nil, []byte{wasmtest.KindI32})))
	b.Section(3, wasmtest.Vec(1, wasmtest.AppendU32(nil, 0)))
	b.Section(10, wasmtest.Vec(1, wasmtest.CodeBody(nil, []byte{
		wasmtest.OpI32Const, 0x2a,
		wasmtest.OpEnd,
	})))

	path := filepath.Join(t.TempDir(), "module.wasm")
	require.NoError(t, os.WriteFile(path, b.Bytes(), 0644))
	return path
}

func jsonRPCCall(t *testing.T, srv *httptest.Server, method string, params any) map[string]any {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"method": method,
		"params": []any{params},
		"id":     1,
	})
	require.NoError(t, err)

	resp, err := http.Post(srv.URL+"/rpc", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestInspect_Parse_ReturnsPositionTree(t *testing.T) {
	path := writeTestModule(t)

	handler, err := NewHandler()
	require.NoError(t, err)
	srv := httptest.NewServer(handler)
	defer srv.Close()

	out := jsonRPCCall(t, srv, "Inspect.Parse", ParseArgs{Path: path})
	require.Nil(t, out["error"])

	result, ok := out["result"].(map[string]any)
	require.True(t, ok)
	funcs, ok := result["functions"].([]any)
	require.True(t, ok)
	require.Len(t, funcs, 1)
}

func TestInspect_BytecodeInfo_ReturnsCounts(t *testing.T) {
	path := writeTestModule(t)

	handler, err := NewHandler()
	require.NoError(t, err)
	srv := httptest.NewServer(handler)
	defer srv.Close()

	out := jsonRPCCall(t, srv, "Inspect.BytecodeInfo", BytecodeInfoArgs{Path: path})
	require.Nil(t, out["error"])

	result, ok := out["result"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, float64(1), result["function_count"])
}

func TestInspect_Parse_MissingFileErrors(t *testing.T) {
	handler, err := NewHandler()
	require.NoError(t, err)
	srv := httptest.NewServer(handler)
	defer srv.Close()

	out := jsonRPCCall(t, srv, "Inspect.Parse", ParseArgs{Path: "/does/not/exist.wasm"})
	require.NotNil(t, out["error"])
}
