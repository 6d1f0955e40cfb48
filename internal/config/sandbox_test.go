package config

import (
	"context"
	"strings"
	"testing"
	"time"

	lua "github.com/yuin/gopher-lua"
)

func TestSandboxLuaVM(t *testing.T) {
	tests := []struct {
		name    string
		code    string
		wantErr bool
		errMsg  string
	}{
		// Safe operations that should work
		{
			name: "string operations allowed",
			code: `x = string.upper("hello")`,
		},
		{
			name: "table operations allowed",
			code: `t = {1, 2, 3}; table.insert(t, 4)`,
		},
		{
			name: "math operations allowed",
			code: `x = math.max(1, 2)`,
		},
		{
			name: "basic functions allowed",
			code: `x = type("hello"); y = tostring(123); z = tonumber("456")`,
		},
		{
			name: "pairs allowed",
			code: `t = {a=1, b=2}; for k,v in pairs(t) do end`,
		},

		// Dangerous operations that should fail
		{
			name:    "os.execute blocked",
			code:    `os.execute("ls")`,
			wantErr: true,
			errMsg:  "attempt to index",
		},
		{
			name:    "os.getenv blocked",
			code:    `x = os.getenv("PAPERFETCH_DEST")`,
			wantErr: true,
			errMsg:  "attempt to index",
		},
		{
			name:    "io.open blocked",
			code:    `f = io.open("/etc/passwd")`,
			wantErr: true,
			errMsg:  "attempt to index",
		},
		{
			name:    "require blocked",
			code:    `socket = require("socket")`,
			wantErr: true,
			errMsg:  "attempt to call",
		},
		{
			name:    "dofile blocked",
			code:    `dofile("/tmp/evil.lua")`,
			wantErr: true,
			errMsg:  "attempt to call",
		},
		{
			name:    "load blocked",
			code:    `f = load("return 1+1")`,
			wantErr: true,
			errMsg:  "attempt to call",
		},
		{
			name:    "loadstring blocked",
			code:    `f = loadstring("return 1+1")`,
			wantErr: true,
			errMsg:  "attempt to call",
		},
		{
			name:    "debug blocked",
			code:    `debug.getinfo(1)`,
			wantErr: true,
			errMsg:  "attempt to index",
		},
		{
			name:    "collectgarbage blocked",
			code:    `collectgarbage("count")`,
			wantErr: true,
			errMsg:  "attempt to call",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			L := newSandboxedVM(context.Background())
			defer L.Close()

			err := L.DoString(tt.code)
			if (err != nil) != tt.wantErr {
				t.Errorf("sandboxLuaVM() with code %q: error = %v, wantErr %v", tt.code, err, tt.wantErr)
				return
			}

			if tt.wantErr && err != nil && tt.errMsg != "" {
				if !strings.Contains(err.Error(), tt.errMsg) {
					t.Errorf("sandboxLuaVM() with code %q: error = %v, want substring %q", tt.code, err, tt.errMsg)
				}
			}
		})
	}
}

func TestSandboxLuaVM_StringLibrary(t *testing.T) {
	L := newSandboxedVM(context.Background())
	defer L.Close()

	code := `
		result = {}
		result.upper = string.upper("paper")
		result.format = string.format("%s-%d.jar", "paper", 11)
		result.match = string.match("1.21.4", "^1%.21")
	`

	if err := L.DoString(code); err != nil {
		t.Fatalf("string library functions failed: %v", err)
	}

	result := L.GetGlobal("result").(*lua.LTable)
	if got := result.RawGetString("upper").String(); got != "PAPER" {
		t.Errorf("string.upper = %q, want PAPER", got)
	}
	if got := result.RawGetString("format").String(); got != "paper-11.jar" {
		t.Errorf("string.format = %q, want paper-11.jar", got)
	}
	if got := result.RawGetString("match").String(); got != "1.21" {
		t.Errorf("string.match = %q, want 1.21", got)
	}
}

func TestNewSandboxedVM(t *testing.T) {
	L := newSandboxedVM(context.Background())
	defer L.Close()

	if os := L.GetGlobal("os"); os.Type() != lua.LTNil {
		t.Errorf("newSandboxedVM() os = %v, want nil", os.Type())
	}

	if str := L.GetGlobal("string"); str.Type() != lua.LTTable {
		t.Errorf("newSandboxedVM() string = %v, want table", str.Type())
	}
}

func TestNewSandboxedVM_ContextCancelsEvaluation(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	L := newSandboxedVM(ctx)
	defer L.Close()

	done := make(chan error, 1)
	go func() {
		done <- L.DoString(`while true do end`)
	}()

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("infinite loop returned nil error, want context error")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("evaluation did not stop after context deadline")
	}
}
