package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestFormats(t *testing.T) {
	out, err := execute(t, "formats")
	require.NoError(t, err)
	assert.Equal(t, "cif\nnexus\n", out)
}

func TestBundlesWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "names")
	_, err := execute(t, "bundles", "write", path, "incident wavelength", "wavelength id")
	require.NoError(t, err)
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "incident wavelength\nwavelength id\n", string(raw))

	_, err = execute(t, "bundles", "write")
	assert.Error(t, err)
}

func TestRun_Flags(t *testing.T) {
	dir := t.TempDir()
	names := filepath.Join(dir, "names")
	_, err := execute(t, "bundles", "write", names, "incident wavelength", "wavelength id", "detector axis id")
	require.NoError(t, err)

	src, err := filepath.Abs("../../testfiles/multi-image-test.cif")
	require.NoError(t, err)
	dst := filepath.Join(dir, "out.nx")

	out, err := execute(t, "--log-level", "error", "run", "--bundles", names, "--from", "cif", "--in", src, "--to", "nexus", "--out", dst, "--codec", "xml")
	require.NoError(t, err)
	assert.Contains(t, out, "written:  3")
	assert.NotContains(t, out, "missing:")

	raw, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(raw), "<?xml"))
}

func TestRun_Job(t *testing.T) {
	dir := t.TempDir()
	src, err := filepath.Abs("../../testfiles/multi-image-test.cif")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "names"), []byte("incident wavelength\nsample colour\n"), 0o644))
	job := "bundles: names\nsource: {format: cif, path: " + src + "}\ntarget: {format: nexus, path: out.nx}\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "job.yml"), []byte(job), 0o644))

	_, err = execute(t, "--log-level", "error", "run", "--job", filepath.Join(dir, "job.yml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sample colour")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "names"), []byte("incident wavelength\n"), 0o644))
	out, err := execute(t, "--log-level", "error", "run", "--job", filepath.Join(dir, "job.yml"))
	require.NoError(t, err)
	assert.Contains(t, out, "written:  1")
	_, err = os.Stat(filepath.Join(dir, "out.nx"))
	assert.NoError(t, err)
}

func TestRun_IncompleteFlags(t *testing.T) {
	_, err := execute(t, "run", "--from", "cif")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--job")
}
