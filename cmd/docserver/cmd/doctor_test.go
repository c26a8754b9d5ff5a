package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoctorCmd_ReportsCoreChecks(t *testing.T) {
	// Given: a temp config dir with a store path of its own
	tmpDir := t.TempDir()
	writeTestConfig(t, tmpDir)

	root := NewRootCmd()
	buf := &bytes.Buffer{}
	root.SetOut(buf)
	root.SetArgs([]string{"doctor", "--config-dir", tmpDir})

	// When: running doctor
	_ = root.Execute() // disk/memory/fd thresholds vary by host, don't assert success

	// Then: it should report on disk, memory and file descriptor checks
	output := buf.String()
	assert.Contains(t, output, "disk_space")
	assert.Contains(t, output, "memory")
	assert.Contains(t, output, "file_descriptors")
}

func TestDoctorCmd_SkipsUpstreamAndOllamaWhenUnconfigured(t *testing.T) {
	// Given: a config with no upstream mirror and the default static embedder
	tmpDir := t.TempDir()
	writeTestConfig(t, tmpDir)

	root := NewRootCmd()
	buf := &bytes.Buffer{}
	root.SetOut(buf)
	root.SetArgs([]string{"doctor", "--config-dir", tmpDir})

	// When: running doctor
	_ = root.Execute()

	// Then: it should not run the upstream or ollama checks at all
	output := buf.String()
	assert.NotContains(t, output, "upstream_context7")
	assert.NotContains(t, output, "ollama")
}

func TestDoctorCmd_InvalidConfigDirFailsFast(t *testing.T) {
	// Given: a config dir with a malformed config file
	tmpDir := t.TempDir()
	require.NoError(t, writeRawFile(tmpDir, ".docserver.yaml", "store: [this is not a mapping"))

	root := NewRootCmd()
	buf := &bytes.Buffer{}
	root.SetOut(buf)
	root.SetArgs([]string{"doctor", "--config-dir", tmpDir})

	// When: running doctor
	err := root.Execute()

	// Then: it should fail on the config load, before any system check runs
	require.Error(t, err)
	assert.Contains(t, buf.String(), "config:")
}
