package lua

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mpataki/figwalk/internal/oracle"
)

const walkScript = `
local route = {
  ["Home"] = {"Edit Profile", "bottom right"},
  ["Profile"] = {"Save", "bottom-center"},
}

function describe(req)
  log("screen " .. req.screen .. " step " .. req.step)
  if req.screen == "Done" then
    return reply(nil, nil, true)
  end
  local next = route[req.screen]
  if next == nil then
    return "I don't know what to do here.\n" .. reply()
  end
  return "Thinking about " .. req.screen .. "\n" .. reply(next[1], next[2], false)
end

function summarize(req)
  return "FINAL_SUS_SCORE: 65\n" .. req.persona .. " tried to " .. req.challenge
end
`

func TestRuntime_Describe(t *testing.T) {
	r, err := Load("walk.lua", walkScript, zap.NewNop())
	require.NoError(t, err)
	defer r.Close()

	ctx := context.Background()

	text, err := r.Describe(ctx, oracle.DescribeRequest{Screen: "Home", Step: 1, Image: []byte{1, 2, 3}})
	require.NoError(t, err)
	reply := oracle.ParseReply(text)
	assert.Equal(t, "Edit Profile", reply.Component)
	assert.Equal(t, "bottom-right", reply.Location)
	assert.False(t, reply.Complete)

	text, err = r.Describe(ctx, oracle.DescribeRequest{Screen: "Done", Step: 3})
	require.NoError(t, err)
	reply = oracle.ParseReply(text)
	assert.True(t, reply.Complete)
	assert.False(t, reply.HasComponent)

	text, err = r.Describe(ctx, oracle.DescribeRequest{Screen: "Elsewhere", Step: 4})
	require.NoError(t, err)
	assert.False(t, oracle.ParseReply(text).HasComponent)

	assert.Equal(t, []string{"screen Home step 1", "screen Done step 3", "screen Elsewhere step 4"}, r.Logs())
}

func TestRuntime_Summarize(t *testing.T) {
	r, err := Load("walk.lua", walkScript, zap.NewNop())
	require.NoError(t, err)
	defer r.Close()

	text, err := r.Summarize(context.Background(), oracle.SummaryRequest{Persona: "Linda", Challenge: "edit her name"})
	require.NoError(t, err)
	assert.Contains(t, text, "Linda tried to edit her name")

	score, ok := oracle.ParseSUSScore(text)
	require.True(t, ok)
	assert.Equal(t, 65.0, score)
}

func TestRuntime_SummarizeOptional(t *testing.T) {
	r, err := Load("min.lua", `function describe(req) return reply("Next") end`, zap.NewNop())
	require.NoError(t, err)
	defer r.Close()

	text, err := r.Summarize(context.Background(), oracle.SummaryRequest{})
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestRuntime_Stuck(t *testing.T) {
	r, err := Load("stuck.lua", `function describe(req) stuck("no route for " .. req.screen) end`, zap.NewNop())
	require.NoError(t, err)
	defer r.Close()

	_, err = r.Describe(context.Background(), oracle.DescribeRequest{Screen: "Home"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no route for Home")
}

func TestRuntime_ReturnTypeChecked(t *testing.T) {
	r, err := Load("bad.lua", `function describe(req) return 42 end`, zap.NewNop())
	require.NoError(t, err)
	defer r.Close()

	_, err = r.Describe(context.Background(), oracle.DescribeRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must return a string")
}

func TestRuntime_Sandbox(t *testing.T) {
	r, err := Load("sandbox.lua", `
function describe(req)
  local missing = {}
  for _, name in ipairs({"io", "os", "dofile", "loadstring", "print"}) do
    if _G[name] ~= nil then table.insert(missing, name) end
  end
  if math.random ~= nil then table.insert(missing, "math.random") end
  return table.concat(missing, ",")
end`, zap.NewNop())
	require.NoError(t, err)
	defer r.Close()

	text, err := r.Describe(context.Background(), oracle.DescribeRequest{})
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestRuntime_Context(t *testing.T) {
	r, err := Load("ctx.lua", `function describe(req) local c = context() return c.script .. ":" .. c.calls end`, zap.NewNop())
	require.NoError(t, err)
	defer r.Close()

	text, err := r.Describe(context.Background(), oracle.DescribeRequest{})
	require.NoError(t, err)
	assert.Equal(t, "ctx.lua:1", text)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load("syntax.lua", `function describe(`, zap.NewNop())
	assert.Error(t, err)

	_, err = Load("empty.lua", `x = 1`, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "describe")
}

func TestNewRuntime_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "oracle.lua")
	require.NoError(t, os.WriteFile(path, []byte(walkScript), 0644))

	r, err := NewRuntime(path, zap.NewNop())
	require.NoError(t, err)
	defer r.Close()

	assert.True(t, IsLuaScript(path))
	assert.False(t, IsLuaScript("challenge.yaml"))

	_, err = NewRuntime(filepath.Join(t.TempDir(), "missing.lua"), zap.NewNop())
	assert.Error(t, err)
}

func TestRuntime_ImplementsOracle(t *testing.T) {
	var _ oracle.Oracle = (*Runtime)(nil)
}
