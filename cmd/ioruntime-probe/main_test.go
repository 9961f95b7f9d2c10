//go:build linux || darwin

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_legacy(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"-driver", "legacy", "-log-level", "debug"}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())
	assert.Contains(t, stdout.String(), "backend=legacy ")
	assert.Contains(t, stdout.String(), "blocking=panic timer=false")
	assert.Contains(t, stderr.String(), `"msg":"legacy driver created"`)
}

func TestRun_configWithTimer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runtime.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
driver = "legacy"
entries = 16
timer = true

[blocking]
strategy = "execute_local"
`), 0o600))

	var stdout, stderr bytes.Buffer
	code := run([]string{"-config", path, "-sleep", "1ms"}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())
	assert.Contains(t, stdout.String(), "blocking=execute_local timer=true")
	assert.Contains(t, stdout.String(), "timer fired after ")
}

func TestRun_invalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runtime.toml")
	require.NoError(t, os.WriteFile(path, []byte(`driver = "nope"`), 0o600))

	var stdout, stderr bytes.Buffer
	assert.Equal(t, 1, run([]string{"-config", path}, &stdout, &stderr))
	assert.Contains(t, stderr.String(), `unknown driver "nope"`)
}

func TestRun_badFlag(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Equal(t, 2, run([]string{"-nope"}, &stdout, &stderr))
}
