package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fanin.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

const testConfig = `
policy: fail-fast
separator: ","
services:
  - id: A
    message: a
    delay: 2ms
  - id: B
    message: b
    delay: 1ms
`

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "fanin dev\n", out)
}

func TestValidateCmd(t *testing.T) {
	path := writeConfig(t, testConfig)

	out, err := execute(t, "validate", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "policy fail-fast, 2 services")

	bad := writeConfig(t, "policy: sometimes\n")
	_, err = execute(t, "validate", "--config", bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
}

func TestRunCmd(t *testing.T) {
	path := writeConfig(t, testConfig)

	out, err := execute(t, "run", "--config", path, "--log-level", "error")
	require.NoError(t, err)
	assert.Contains(t, out, `result:   "a,b"`)
}

func TestRunCmd_PolicyOverride(t *testing.T) {
	path := writeConfig(t, testConfig)

	out, err := execute(t, "run", "--config", path, "--policy", "fail_partial", "--log-level", "error")
	require.NoError(t, err)
	assert.Contains(t, out, "values:   [a, b]")
}

func TestRunCmd_Failure(t *testing.T) {
	path := writeConfig(t, testConfig+`  - id: C
    message: c
    fail: true
`)

	_, err := execute(t, "run", "--config", path, "--log-level", "error")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "operation 2 (C) failed")
}

func TestRunCmd_MissingConfig(t *testing.T) {
	_, err := execute(t, "run", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestValidateCmd_Example(t *testing.T) {
	out, err := execute(t, "validate", "--config", filepath.Join("..", "..", "examples", "fanin.yaml"))
	require.NoError(t, err)
	assert.Contains(t, out, "policy fail-soft, 4 services")
}
