package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const quizScript = `
function Main(state, answer, params)
    if state == nil then
        return {
            status = "question",
            props = { id = "q1", type = "simple", text = params.intro or "First question?" },
            state = { stage = 1 },
        }
    end
    return { status = "done", props = { answer = answer.text } }
end
`

func writeBundleDir(t *testing.T, manifest string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "form.yaml"), []byte(manifest), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "script.lua"), []byte(quizScript), 0o644))
	return dir
}

func TestResolveParams(t *testing.T) {
	params, err := resolveParams(RunOptions{Params: []string{"a=1", "b=two"}})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": "1", "b": "two"}, params)

	params, err = resolveParams(RunOptions{
		Params:    []string{"a=1"},
		ParamsRaw: `{"a": 2, "c": true}`,
	})
	require.NoError(t, err)
	assert.Equal(t, float64(2), params["a"])
	assert.Equal(t, true, params["c"])

	_, err = resolveParams(RunOptions{Params: []string{"broken"}})
	assert.Error(t, err)

	_, err = resolveParams(RunOptions{ParamsRaw: "not-json"})
	assert.Error(t, err)

	params, err = resolveParams(RunOptions{})
	require.NoError(t, err)
	assert.Nil(t, params)
}

func TestResolveScriptBundleDir(t *testing.T) {
	dir := writeBundleDir(t, "name: quiz\nscript: script.lua\nparams:\n  intro: Hello\n")

	script, name, projectDir, defaults, err := resolveScript(dir)
	require.NoError(t, err)
	assert.Contains(t, script, "function Main")
	assert.Equal(t, "quiz", name)
	assert.Equal(t, dir, projectDir)
	assert.Equal(t, map[string]any{"intro": "Hello"}, defaults)
}

func TestResolveScriptBareFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "survey.lua")
	require.NoError(t, os.WriteFile(path, []byte(quizScript), 0o644))

	script, name, projectDir, defaults, err := resolveScript(path)
	require.NoError(t, err)
	assert.Contains(t, script, "function Main")
	assert.Equal(t, "survey", name)
	assert.Equal(t, dir, projectDir)
	assert.Nil(t, defaults)

	_, _, _, _, err = resolveScript(filepath.Join(dir, "missing.lua"))
	assert.Error(t, err)
}

func TestMergeParams(t *testing.T) {
	defaults := map[string]any{"a": 1, "b": 2}
	merged := mergeParams(defaults, map[string]any{"b": 3})
	assert.Equal(t, 1, merged["a"])
	assert.Equal(t, 3, merged["b"])

	params := map[string]any{"x": 1}
	assert.Equal(t, params, mergeParams(nil, params))
}

func TestValidate(t *testing.T) {
	dir := writeBundleDir(t, "name: quiz\nscript: script.lua\n")
	require.NoError(t, Validate(context.Background(), dir))

	broken := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(broken, "form.yaml"),
		[]byte("name: broken\nscript: script.lua\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(broken, "script.lua"),
		[]byte("this is not lua"), 0o644))
	assert.Error(t, Validate(context.Background(), broken))
}
