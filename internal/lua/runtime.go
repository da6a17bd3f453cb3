package lua

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/mpataki/figwalk/internal/oracle"
)

// Runtime is an oracle driven by a Lua script in a sandboxed state. The
// script defines describe(req), returning the reply text for one screen,
// and optionally summarize(req) for the run narrative.
type Runtime struct {
	mu     sync.Mutex
	L      *lua.LState
	name   string
	logger *zap.Logger

	calls int
	logs  []string

	// stuckReason is set when stuck() is called
	stuckReason string
	isStuck     bool
}

// NewRuntime loads the script at scriptPath.
func NewRuntime(scriptPath string, logger *zap.Logger) (*Runtime, error) {
	script, err := os.ReadFile(scriptPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read script: %w", err)
	}
	return Load(filepath.Base(scriptPath), string(script), logger)
}

// Load runs source once so it can define its functions.
func Load(name, source string, logger *zap.Logger) (*Runtime, error) {
	r := &Runtime{name: name, logger: logger}

	L := lua.NewState(lua.Options{
		SkipOpenLibs: true, // Don't load any libraries by default
	})
	r.openSafeLibs(L)
	r.registerAPI(L)

	if err := L.DoString(source); err != nil {
		L.Close()
		return nil, fmt.Errorf("failed to load script: %w", err)
	}
	if L.GetGlobal("describe") == lua.LNil {
		L.Close()
		return nil, fmt.Errorf("script must define a 'describe' function")
	}

	r.L = L
	return r, nil
}

func (r *Runtime) Describe(ctx context.Context, req oracle.DescribeRequest) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls++
	tbl := r.L.NewTable()
	r.L.SetField(tbl, "screen", lua.LString(req.Screen))
	r.L.SetField(tbl, "step", lua.LNumber(req.Step))
	r.L.SetField(tbl, "instruction", lua.LString(req.Instruction))
	r.L.SetField(tbl, "mime_type", lua.LString(req.MimeType))
	r.L.SetField(tbl, "image_size", lua.LNumber(len(req.Image)))

	return r.call(ctx, "describe", tbl)
}

// Summarize returns an empty narrative when the script has no summarize.
func (r *Runtime) Summarize(ctx context.Context, req oracle.SummaryRequest) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.L.GetGlobal("summarize") == lua.LNil {
		return "", nil
	}

	r.calls++
	tbl := r.L.NewTable()
	r.L.SetField(tbl, "persona", lua.LString(req.Persona))
	r.L.SetField(tbl, "challenge", lua.LString(req.Challenge))
	r.L.SetField(tbl, "transcript", lua.LString(req.Transcript))

	return r.call(ctx, "summarize", tbl)
}

func (r *Runtime) call(ctx context.Context, fn string, arg lua.LValue) (string, error) {
	r.isStuck = false
	r.stuckReason = ""

	r.L.SetContext(ctx)
	defer r.L.RemoveContext()

	r.L.Push(r.L.GetGlobal(fn))
	r.L.Push(arg)
	if err := r.L.PCall(1, 1, nil); err != nil {
		if r.isStuck {
			return "", fmt.Errorf("script %s is stuck: %s", r.name, r.stuckReason)
		}
		return "", fmt.Errorf("%s failed: %w", fn, err)
	}

	ret := r.L.Get(-1)
	r.L.Pop(1)

	str, ok := ret.(lua.LString)
	if !ok {
		return "", fmt.Errorf("%s must return a string, got %s", fn, ret.Type())
	}
	return string(str), nil
}

// Close releases the Lua state.
func (r *Runtime) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.L != nil {
		r.L.Close()
		r.L = nil
	}
}

// openSafeLibs loads only the safe standard libraries
func (r *Runtime) openSafeLibs(L *lua.LState) {
	lua.OpenBase(L)

	// Remove dangerous base functions
	L.SetGlobal("loadfile", lua.LNil)
	L.SetGlobal("dofile", lua.LNil)
	L.SetGlobal("load", lua.LNil)
	L.SetGlobal("loadstring", lua.LNil)
	L.SetGlobal("print", lua.LNil) // Use log() instead

	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)

	// Replays must be deterministic
	math := L.GetGlobal("math")
	if tbl, ok := math.(*lua.LTable); ok {
		L.SetField(tbl, "random", lua.LNil)
		L.SetField(tbl, "randomseed", lua.LNil)
	}
}

// registerAPI registers the figwalk-specific API functions
func (r *Runtime) registerAPI(L *lua.LState) {
	L.SetGlobal("reply", L.NewFunction(r.luaReply))
	L.SetGlobal("stuck", L.NewFunction(r.luaStuck))
	L.SetGlobal("context", L.NewFunction(r.luaContext))
	L.SetGlobal("log", L.NewFunction(r.luaLog))
}

// luaReply implements reply(component?, location?, complete?), which formats
// the three labelled fields ParseReply reads. A nil component leaves the
// ACTION_COMPONENT line out.
func (r *Runtime) luaReply(L *lua.LState) int {
	component := L.OptString(1, "")
	location := L.OptString(2, "")
	complete := L.OptBool(3, false)

	var lines []string
	if component != "" {
		lines = append(lines, fmt.Sprintf("ACTION_COMPONENT: %q", component))
	}
	if location != "" {
		lines = append(lines, fmt.Sprintf("ACTION_LOCATION: %q", location))
	}
	verdict := "NO"
	if complete {
		verdict = "YES"
	}
	lines = append(lines, "TASK_COMPLETE: "+verdict)

	L.Push(lua.LString(strings.Join(lines, "\n")))
	return 1
}

// luaStuck implements the stuck(reason?) API
func (r *Runtime) luaStuck(L *lua.LState) int {
	reason := L.OptString(1, "script stuck")
	r.stuckReason = reason
	r.isStuck = true
	// Raise an error to stop execution
	L.RaiseError("stuck: %s", reason)
	return 0
}

// luaContext implements the context() API
func (r *Runtime) luaContext(L *lua.LState) int {
	tbl := L.NewTable()
	L.SetField(tbl, "script", lua.LString(r.name))
	L.SetField(tbl, "calls", lua.LNumber(r.calls))
	L.Push(tbl)
	return 1
}

// luaLog implements the log(message) API
func (r *Runtime) luaLog(L *lua.LState) int {
	message := L.CheckString(1)
	r.logs = append(r.logs, message)
	r.logger.Debug("Script log", zap.String("script", r.name), zap.String("message", message))
	return 0
}

// Logs returns the messages passed to log() so far.
func (r *Runtime) Logs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.logs...)
}

// IsLuaScript checks if a file is a Lua oracle script
func IsLuaScript(path string) bool {
	return filepath.Ext(path) == ".lua"
}
