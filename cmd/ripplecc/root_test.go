package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetRootOpt() {
	rootOpt = rootOptions{threads: 1, bankSize: 4096, startBank: 0, maxImmediate: 32767}
}

func TestCurrentConfigCastsStartBankToInt16(t *testing.T) {
	resetRootOpt()
	rootOpt.startBank = 3
	cfg := currentConfig()
	assert.Equal(t, int16(3), cfg.StartBank)
}

func TestCurrentConfigCarriesEveryFlag(t *testing.T) {
	resetRootOpt()
	rootOpt.threads = 4
	rootOpt.bankSize = 8192
	rootOpt.memoryOffset = 16
	rootOpt.maxImmediate = 100

	cfg := currentConfig()
	assert.Equal(t, 4, cfg.Threads)
	assert.Equal(t, 8192, cfg.BankSize)
	assert.Equal(t, 16, cfg.MemoryOffset)
	assert.Equal(t, int64(100), cfg.MaxImmediate)
}

func TestNewRootCmdRegistersAllSubcommands(t *testing.T) {
	root := newRootCmd()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Contains(t, names, "build")
	assert.Contains(t, names, "dump-asm")
	assert.Contains(t, names, "version")
}

func TestRunBuildWritesAssemblyToOutputFile(t *testing.T) {
	resetRootOpt()
	dir := t.TempDir()
	inPath := filepath.Join(dir, "module.json")
	outPath := filepath.Join(dir, "out.asm")

	const module = `{"functions":[{"name":"main","blocks":[{"id":0,"insts":[
		{"op":"return","ret_val":{"kind":"constant","constant":0}}
	]}]}]}`
	require.NoError(t, os.WriteFile(inPath, []byte(module), 0644))

	err := runBuild(inPath, outPath)
	require.NoError(t, err)

	out, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(out), "ret"))
}

func TestRunBuildOnMissingInputFileErrors(t *testing.T) {
	resetRootOpt()
	err := runBuild("/no/such/file.json", "")
	assert.Error(t, err)
}

func TestRunBuildOnInvalidJSONErrors(t *testing.T) {
	resetRootOpt()
	dir := t.TempDir()
	inPath := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(inPath, []byte("not json"), 0644))

	err := runBuild(inPath, filepath.Join(dir, "out.asm"))
	assert.Error(t, err)
}
