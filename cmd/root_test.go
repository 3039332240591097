package cmd

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"

	"github.com/CodeMonkeyCybersecurity/anew/internal/config"
	"github.com/CodeMonkeyCybersecurity/anew/internal/dedup"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs a fresh root command against input and returns stdout.
func execute(t *testing.T, input string, args ...string) (string, error) {
	t.Helper()

	c := NewRootCmd()
	var out, errOut bytes.Buffer
	c.SetIn(strings.NewReader(input))
	c.SetOut(&out)
	c.SetErr(&errOut)
	c.SetArgs(args)

	err := c.Execute()
	return out.String(), err
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestRootAppendsNewLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seen.txt")

	out, err := execute(t, "a\nb\na\nc\n", path)
	require.NoError(t, err)

	assert.Equal(t, "a\nb\nc\n", out)
	assert.Equal(t, "a\nb\nc\n", readFile(t, path))
}

func TestRootCorrectsMissingTerminator(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seen.txt")
	require.NoError(t, os.WriteFile(path, []byte("x\ny"), 0o644))

	out, err := execute(t, "y\nz\n", path)
	require.NoError(t, err)

	assert.Equal(t, "z\n", out)
	assert.Equal(t, "x\ny\nz\n", readFile(t, path))
}

func TestRootFlags(t *testing.T) {
	tests := []struct {
		name     string
		seed     string
		input    string
		args     []string
		wantOut  string
		wantFile string
	}{
		{
			name:     "dry run short flag",
			seed:     "x\n",
			input:    "x\ny\n",
			args:     []string{"-n"},
			wantOut:  "y\n",
			wantFile: "x\n",
		},
		{
			name:     "dry run long flag",
			seed:     "x\n",
			input:    "x\ny\n",
			args:     []string{"--dry-run"},
			wantOut:  "y\n",
			wantFile: "x\n",
		},
		{
			name:     "quiet",
			seed:     "x\n",
			input:    "x\ny\n",
			args:     []string{"-q"},
			wantOut:  "",
			wantFile: "x\ny\n",
		},
		{
			name:     "murmur3 hashing",
			seed:     "x\n",
			input:    "x\ny\ny\n",
			args:     []string{"--hash", "murmur3"},
			wantOut:  "y\n",
			wantFile: "x\ny\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "seen.txt")
			require.NoError(t, os.WriteFile(path, []byte(tt.seed), 0o644))

			out, err := execute(t, tt.input, append(tt.args, path)...)
			require.NoError(t, err)
			assert.Equal(t, tt.wantOut, out)
			assert.Equal(t, tt.wantFile, readFile(t, path))
		})
	}
}

func TestRootWithoutFileFilters(t *testing.T) {
	out, err := execute(t, "b\na\nb\na\n")
	require.NoError(t, err)
	assert.Equal(t, "b\na\n", out)
}

func TestRootEnvironment(t *testing.T) {
	t.Setenv("ANEW_QUIET", "true")
	path := filepath.Join(t.TempDir(), "seen.txt")

	out, err := execute(t, "a\n", path)
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Equal(t, "a\n", readFile(t, path))
}

func TestRootRejectsExtraArgs(t *testing.T) {
	_, err := execute(t, "", "one.txt", "two.txt")
	assert.Error(t, err)
}

func TestRootRejectsUnknownHash(t *testing.T) {
	_, err := execute(t, "a\n", "--hash", "md5")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported hash mode")
}

func TestRootTargetOpenFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing-dir", "seen.txt")

	out, err := execute(t, "a\n", path)
	require.Error(t, err)
	assert.Empty(t, out)

	var ioErr *dedup.IOError
	require.True(t, errors.As(err, &ioErr))
	assert.Contains(t, err.Error(), path)
}

func TestLoadConfigDefaults(t *testing.T) {
	c := NewRootCmd()
	require.NoError(t, c.ParseFlags(nil))

	// flags are bound into a private viper instance; rebuild one the same way
	v := viper.New()
	require.NoError(t, bindConfig(v, c.Flags()))

	cfg, err := loadConfig(v, []string{"seen.txt"})
	require.NoError(t, err)
	assert.Equal(t, "seen.txt", cfg.Dedup.File)
	assert.Equal(t, config.HashExact, cfg.Dedup.Hash)
	assert.Equal(t, "error", cfg.Logger.Level)
	assert.Equal(t, []string{"stderr"}, cfg.Logger.OutputPaths)
	assert.False(t, cfg.Telemetry.Enabled)
}

// brokenPipeWriter behaves like a stdout whose reader has gone away.
type brokenPipeWriter struct {
	writes int
}

func (w *brokenPipeWriter) Write(p []byte) (int, error) {
	w.writes++
	return 0, syscall.EPIPE
}

func TestRootStdoutClosedExitsCleanly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seen.txt")

	c := NewRootCmd()
	out := &brokenPipeWriter{}
	var errOut bytes.Buffer
	c.SetIn(strings.NewReader("a\nb\nc\n"))
	c.SetOut(out)
	c.SetErr(&errOut)
	c.SetArgs([]string{path})

	require.NoError(t, c.Execute())
	assert.Equal(t, 1, out.writes)
	// the first line reached the file before the echo failed; nothing after it
	assert.Equal(t, "a\n", readFile(t, path))
	assert.Empty(t, errOut.String())
}

func TestBindConfigReportsMissingFlag(t *testing.T) {
	flags := pflag.NewFlagSet("anew", pflag.ContinueOnError)
	flags.BoolP("quiet", "q", false, "")

	err := bindConfig(viper.New(), flags)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `flag "dry-run"`)
	assert.Contains(t, err.Error(), `flag "telemetry-endpoint"`)
	assert.NotContains(t, err.Error(), `flag "quiet"`)
}

func TestBindConfigBindsEnvironment(t *testing.T) {
	t.Setenv("ANEW_HASH", config.HashMurmur3)

	c := NewRootCmd()
	v := viper.New()
	require.NoError(t, bindConfig(v, c.Flags()))
	assert.Equal(t, config.HashMurmur3, v.GetString("dedup.hash"))
}
