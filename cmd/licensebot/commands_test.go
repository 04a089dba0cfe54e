package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"licensekeys-bot/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append(args,
		"--pool", filepath.Join(dir, "licenseKeys.json"),
		"--ledger", filepath.Join(dir, "keyauth_licenses.json"),
		"--db", filepath.Join(dir, "licensebot.db"),
		"--log-level", "error",
	))
	err := rootCmd.Execute()
	return out.String(), err
}

func TestCLI_SyncGiveStatus(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("LICENSEBOT_CONFIG", "")
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "keyauth_licenses.json"),
		[]byte(`{"keys":[{"key":"K1","status":"Not Used","expiry":"2592000"}],"tokens":["t"]}`), 0o600))

	out, err := execute(t, dir, "sync")
	require.NoError(t, err)
	assert.Contains(t, out, "Monthly keys: 1")
	assert.Contains(t, out, "Lifetime keys: 0")

	out, err = execute(t, dir, "give", "monthly", "--to", "erin")
	require.NoError(t, err)
	assert.Equal(t, "K1", strings.TrimSpace(out))

	_, err = execute(t, dir, "give", "monthly")
	assert.ErrorContains(t, err, "no license keys available")

	out, err = execute(t, dir, "status", "k1")
	require.NoError(t, err)
	assert.Contains(t, out, "Status: Used")
	assert.Contains(t, out, `to "erin"`)
	assert.Contains(t, out, "Used:   ")

	_, err = execute(t, dir, "give", "weekly")
	assert.Error(t, err)
}

func TestCLI_LogLevelFlagOverridesEnv(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("LICENSEBOT_CONFIG", "")
	t.Setenv("LOG_LEVEL", "loud")
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "keyauth_licenses.json"),
		[]byte(`[{"key":"K1","status":"Not Used","expiry":"2592000"}]`), 0o600))

	out, err := execute(t, dir, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "1. K1")
}

func TestCLI_ReadCommandsWhileJournalLocked(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("LICENSEBOT_CONFIG", "")
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "keyauth_licenses.json"),
		[]byte(`[{"key":"K1","status":"Not Used","expiry":"2592000"}]`), 0o600))

	held, err := store.OpenBBolt(filepath.Join(dir, "licensebot.db"))
	require.NoError(t, err)
	defer held.Close()

	out, err := execute(t, dir, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "1. K1")

	out, err = execute(t, dir, "status", "K1")
	require.NoError(t, err)
	assert.Contains(t, out, "Status: Not Used")
	assert.Contains(t, out, "journal unavailable")

	_, err = execute(t, dir, "history")
	assert.ErrorContains(t, err, "stop the running bot")
}

// chdir mirrors testing.T.Chdir (Go 1.24+) for older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatal(err)
		}
	})
}
