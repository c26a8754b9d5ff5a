package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCmd_ShowsHelp(t *testing.T) {
	// Given: a root command
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--help"})

	// When: executing with --help
	err := cmd.Execute()

	// Then: it should show usage information
	require.NoError(t, err)
	output := buf.String()
	assert.Contains(t, output, "docserver", "help should mention program name")
	assert.Contains(t, output, "Usage:", "help should show usage")
}

func TestRootCmd_ShowsVersion(t *testing.T) {
	// Given: a root command
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--version"})

	// When: executing with --version
	err := cmd.Execute()

	// Then: it should show version
	require.NoError(t, err)
	output := buf.String()
	assert.Contains(t, output, "docserver")
}

func TestRootCmd_HasSubcommands(t *testing.T) {
	// Given: a root command
	cmd := NewRootCmd()

	// When: listing subcommands
	var names []string
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}

	// Then: every CLI operation SPEC_FULL.md names should be registered
	assert.Contains(t, names, "serve")
	assert.Contains(t, names, "create-library")
	assert.Contains(t, names, "upload-doc")
	assert.Contains(t, names, "fetch-doc")
	assert.Contains(t, names, "doctor")
	assert.Contains(t, names, "version")
}

func TestRootCmd_HasConfigDirAndDebugFlags(t *testing.T) {
	// Given: a root command
	cmd := NewRootCmd()

	// Then: it should expose the persistent --config-dir and --debug flags
	configFlag := cmd.PersistentFlags().Lookup("config-dir")
	require.NotNil(t, configFlag)
	assert.Equal(t, ".", configFlag.DefValue)

	debugFlag := cmd.PersistentFlags().Lookup("debug")
	require.NotNil(t, debugFlag)
	assert.Equal(t, "false", debugFlag.DefValue)
}

func TestServeCmd_ShowsHelp(t *testing.T) {
	// Given: a root command
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"serve", "--help"})

	// When: executing serve --help
	err := cmd.Execute()

	// Then: it should mention the REST/MCP server and the cpu-profile flag
	require.NoError(t, err)
	output := buf.String()
	assert.True(t, strings.Contains(output, "MCP") || strings.Contains(output, "REST"))
	assert.Contains(t, output, "cpu-profile")
}

func TestDoctorCmd_ShowsHelp(t *testing.T) {
	// Given: a root command
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"doctor", "--help"})

	// When: executing doctor --help
	err := cmd.Execute()

	// Then: it should show doctor's usage
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "diagnostics")
}
