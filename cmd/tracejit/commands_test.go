package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "tracejit "+version+"\n", out)
}

func TestInfo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tracejit.yaml")
	require.NoError(t, os.WriteFile(path, []byte("backend: cuda\ncalls:\n  allow_deferred: true\n"), 0o600))

	out, err := execute(t, "info", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "backend:   cuda")
	assert.Contains(t, out, "deferred:  true")
	assert.Contains(t, out, "kernels:   CPU")
}

func TestInfoRejectsBadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tracejit.yaml")
	require.NoError(t, os.WriteFile(path, []byte("backend: metal\n"), 0o600))

	_, err := execute(t, "info", "--config", path)
	assert.Error(t, err)
}

func TestDemo(t *testing.T) {
	out, err := execute(t, "demo")
	require.NoError(t, err)
	assert.Contains(t, out, "area:      [4 6.28318 0 0 20]")
	assert.Contains(t, out, "sides:     [4 0 0 0 4]")
	assert.Contains(t, out, "d/dscale:  [4 3.14159 0 0 4]")
	assert.Contains(t, out, "tracejit_jit_live_variables")
}
