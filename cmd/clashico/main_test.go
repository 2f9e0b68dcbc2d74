package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortiblox/clash-ico/internal/types"
	"github.com/fortiblox/clash-ico/pkg/runtime"
	"github.com/fortiblox/clash-ico/pkg/svm/programs/sale"
)

var payer = types.PubkeyFromSeed("clashico/payer").String()

// writeConfig writes a config file for a fresh data dir and returns its path.
func writeConfig(t *testing.T, extra string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "clashico.yaml")
	content := fmt.Sprintf("log_level: error\ndata_dir: %s\nsync_writes: false\ndecimals: 6\n%s",
		filepath.Join(dir, "data"), extra)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func clashico(t *testing.T, config string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := run(append([]string{"-config", config}, args...), &out)
	return out.String(), err
}

func mustRun(t *testing.T, config string, args ...string) string {
	t.Helper()
	out, err := clashico(t, config, args...)
	require.NoError(t, err, out)
	return out
}

func stateHash(t *testing.T, config string) string {
	out := mustRun(t, config, "state-hash")
	for _, line := range strings.Split(out, "\n") {
		if h, ok := strings.CutPrefix(line, "state hash: "); ok {
			return h
		}
	}
	t.Fatalf("no state hash in %q", out)
	return ""
}

func TestSaleSession(t *testing.T) {
	config := writeConfig(t, "")

	out := mustRun(t, config, "genesis", "-fund", payer+"=10000000000")
	assert.Contains(t, out, "decimals: 6")

	out = mustRun(t, config, "initialize", "-stock", "1000000000000")
	assert.Contains(t, out, "status: Ok")
	assert.Contains(t, out, "Program log: Instruction: Initialize Clash ICO")

	out = mustRun(t, config, "exchange", "-payer", payer, "2000000000")
	assert.Contains(t, out, "status: Ok")
	assert.Contains(t, out, "by 400 CLASH tokens")

	out = mustRun(t, config, "pay", "-payer", payer, "1500000")
	assert.Contains(t, out, "status: Ok")

	out = mustRun(t, config, "balance", payer)
	assert.Contains(t, out, "tokens: 401.5")

	out, err := clashico(t, config, "initialize")
	assert.ErrorIs(t, err, sale.ErrAlreadyCreatedPDAAccount)
	assert.Contains(t, out, "status: Custom(4)")

	out = mustRun(t, config, "journal", "-account", payer)
	assert.Equal(t, 1, strings.Count(out, " Ok "), out)

	out = mustRun(t, config, "journal", "-limit", "1")
	assert.Contains(t, out, "Custom(4)")

	out = mustRun(t, config, "terminate")
	assert.Contains(t, out, "Program log: ICO has been terminated.")

	initializer := defaultConfig.Initializer
	out = mustRun(t, config, "balance", initializer)
	assert.Contains(t, out, "tokens: 998598.5")
}

func TestSnapshotRestore(t *testing.T) {
	config := writeConfig(t, "")
	mustRun(t, config, "genesis")
	mustRun(t, config, "initialize", "-stock", "5000000")
	want := stateHash(t, config)

	file := filepath.Join(t.TempDir(), "ledger.snap")
	out := mustRun(t, config, "snapshot", file)
	assert.Contains(t, out, want)

	restored := writeConfig(t, "journal: false\n")
	mustRun(t, restored, "restore", file)
	assert.Equal(t, want, stateHash(t, restored))

	_, err := clashico(t, restored, "restore", file)
	assert.Error(t, err)

	_, err = clashico(t, restored, "journal")
	assert.Error(t, err)
}

func TestQuote(t *testing.T) {
	config := writeConfig(t, "")

	out := mustRun(t, config, "quote", "2000000000")
	assert.Contains(t, out, "USD: 50\n")
	assert.Contains(t, out, "tokens: 400\n")
	assert.Contains(t, out, "base units: 400000000\n")

	out = mustRun(t, config, "quote", "100000000")
	assert.Contains(t, out, "rejected: Custom(")
}

func TestUsageErrors(t *testing.T) {
	config := writeConfig(t, "")

	_, err := clashico(t, config)
	assert.Error(t, err)

	out, err := clashico(t, config, "mint-more")
	assert.Error(t, err)
	assert.Contains(t, out, "state-hash")

	_, err = clashico(t, config, "exchange", "100")
	assert.Error(t, err)

	_, err = clashico(t, config, "genesis", "-fund", "nope")
	assert.Error(t, err)

	_, err = clashico(t, config, "balance", "not-base58!")
	assert.Error(t, err)
}

func TestLoadConfig(t *testing.T) {
	config, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, defaultConfig, config)

	t.Setenv("CLASHICO_DECIMALS", "2")
	t.Setenv("CLASHICO_JOURNAL", "false")
	config, err = loadConfig(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Equal(t, uint8(2), config.Decimals)
	assert.False(t, config.Journal)
	assert.Equal(t, "error", config.LogLevel)

	t.Setenv("CLASHICO_INITIALIZER", "0OIl")
	_, err = loadConfig("")
	assert.Error(t, err)
}

func TestGenesisTwice(t *testing.T) {
	config := writeConfig(t, "")
	mustRun(t, config, "genesis", "-fund", payer+"=10000000000")
	mustRun(t, config, "initialize", "-stock", "5000000")
	before := stateHash(t, config)

	_, err := clashico(t, config, "genesis", "-fund", payer+"=10000000000")
	assert.ErrorIs(t, err, runtime.ErrGenesisApplied)
	assert.Equal(t, before, stateHash(t, config))
}
