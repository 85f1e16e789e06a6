package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"yoroi/secret"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"--config", filepath.Join(t.TempDir(), "none.yaml")}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	require.Equal(t, version+"\n", out)
}

func TestSecretHash(t *testing.T) {
	out, err := execute(t, "secret", "hash", "hunter2")
	require.NoError(t, err)
	require.True(t, secret.Check("hunter2", strings.TrimSpace(out)))
}

func TestSecretEncryptDecrypt(t *testing.T) {
	t.Setenv("YOROI_SECRET_AES_KEY", strings.Repeat("k", 32))
	t.Setenv("YOROI_SECRET_AES_IV", strings.Repeat("i", 16))

	out, err := execute(t, "secret", "encrypt", "hello world")
	require.NoError(t, err)
	enc := strings.TrimSpace(out)

	out, err = execute(t, "secret", "decrypt", enc)
	require.NoError(t, err)
	require.Equal(t, "hello world\n", out)
}

func TestSecretEncryptNeedsKey(t *testing.T) {
	_, err := execute(t, "secret", "encrypt", "x")
	require.Error(t, err)
}
