package main

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lorena-ssi/wallet-fs/internal/config"
	"github.com/lorena-ssi/wallet-fs/pkg/wallet"
)

// runCLI executes the root command with input fed to the password prompts.
func runCLI(t *testing.T, input string, args ...string) (string, error) {
	t.Helper()
	stdin = bufio.NewReader(strings.NewReader(input))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCLIWalletLifecycle(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("LORENA_STORAGE", "fs")

	origTerminal := isTerminal
	isTerminal = func(int) bool { return false }
	t.Cleanup(func() { isTerminal = origTerminal })

	root := filepath.Join(home, "wallets")
	global := []string{"--root", root, "--silent"}
	cli := func(input string, args ...string) (string, error) {
		return runCLI(t, input, append(args, global...)...)
	}

	out, err := cli("pw\npw\n", "init", "alice")
	require.NoError(t, err)
	assert.Contains(t, out, "Wallet 'alice' initialized")

	_, err = cli("pw\npw\n", "init", "alice")
	assert.Error(t, err)

	_, err = cli("pw\nother\n", "init", "bob")
	assert.Error(t, err)

	out, err = cli("", "exists", "alice")
	require.NoError(t, err)
	assert.Equal(t, "true\n", out)

	out, err = cli("", "exists", "bob")
	require.NoError(t, err)
	assert.Equal(t, "false\n", out)

	_, err = cli("pw\n", "add", "alice", "credentials", "name=a", "role=admin")
	require.NoError(t, err)
	_, err = cli("pw\n", "add", "alice", "credentials", "name=b", "role=user", "level=3")
	require.NoError(t, err)

	out, err = cli("pw\n", "get", "alice", "credentials", "--where", "role=user")
	require.NoError(t, err)
	assert.Contains(t, out, `"name": "b"`)
	assert.Contains(t, out, `"level": 3`)

	_, err = cli("wrong\n", "unlock", "alice")
	assert.Error(t, err)

	out, err = cli("pw\n", "list", "alice")
	require.NoError(t, err)
	assert.Equal(t, "credentials\nlinks\ntasks\n", out)

	exportFile := filepath.Join(home, "export.json")
	_, err = cli("", "export", "alice", "--output", exportFile)
	require.NoError(t, err)

	_, err = cli("", "delete", "alice", "--force")
	require.NoError(t, err)
	out, err = cli("", "exists", "alice")
	require.NoError(t, err)
	assert.Equal(t, "false\n", out)

	out, err = cli("", "import", exportFile)
	require.NoError(t, err)
	assert.Contains(t, out, "Wallet 'alice' imported")

	out, err = cli("pw\n", "info", "alice")
	require.NoError(t, err)
	assert.Contains(t, out, `"credentials": 2`)

	out, err = cli("", "audit", "verify")
	require.NoError(t, err)
	assert.Contains(t, out, "chain intact")

	_, err = os.Stat(filepath.Join(home, ".lorena", "audit"))
	assert.NoError(t, err)
}

// changedFlags reports the listed flags as set on the command line.
type changedFlags []string

func (c changedFlags) Changed(name string) bool {
	return slices.Contains(c, name)
}

func TestApplyFlagsExpandsRoot(t *testing.T) {
	origRoot := flagRoot
	t.Cleanup(func() { flagRoot = origRoot })

	c := config.Default("/home/u")
	flagRoot = "~/wallets"
	require.NoError(t, applyFlags(c, changedFlags{"root"}))
	assert.Equal(t, filepath.Join("/home/u", "wallets"), c.Root)

	flagRoot = "/srv/wallets"
	require.NoError(t, applyFlags(c, changedFlags{"root"}))
	assert.Equal(t, "/srv/wallets", c.Root)
}

func TestApplyFlagsRejectsMemStorage(t *testing.T) {
	origStorage := flagStorage
	t.Cleanup(func() { flagStorage = origStorage })

	c := config.Default("/home/u")
	flagStorage = "mem"
	assert.ErrorIs(t, applyFlags(c, changedFlags{"storage"}), config.ErrInvalidConfig)

	c = config.Default("/home/u")
	c.Storage = "MEM"
	assert.ErrorIs(t, applyFlags(c, changedFlags{}), config.ErrInvalidConfig)
}

func TestCLIRejectsMemStorage(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("LORENA_STORAGE", "fs")

	origStorage := flagStorage
	t.Cleanup(func() {
		flagStorage = origStorage
		_ = rootCmd.PersistentFlags().Set("storage", "")
		rootCmd.PersistentFlags().Lookup("storage").Changed = false
	})

	_, err := runCLI(t, "", "exists", "alice", "--storage", "mem", "--silent", "--root", home)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestParseAssignments(t *testing.T) {
	record, err := parseAssignments([]string{
		"name=alice",
		"age=42",
		"admin=true",
		"tags=[\"a\",\"b\"]",
		"note=has=equals",
		"empty=",
	})
	require.NoError(t, err)
	assert.Equal(t, wallet.Record{
		"name":  "alice",
		"age":   float64(42),
		"admin": true,
		"tags":  []any{"a", "b"},
		"note":  "has=equals",
		"empty": "",
	}, record)

	tests := []struct {
		name string
		args []string
	}{
		{"missing equals", []string{"name"}},
		{"empty name", []string{"=x"}},
		{"duplicate", []string{"a=1", "a=2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseAssignments(tt.args)
			assert.Error(t, err)
		})
	}
}

func TestParsePredicate(t *testing.T) {
	_, err := parsePredicate(nil)
	assert.Error(t, err)

	p, err := parsePredicate([]string{"role=user", "name=b"})
	require.NoError(t, err)
	assert.Equal(t, wallet.Where("name", "b").And("role", "user"), p)
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
		err  bool
	}{
		{"24h", 24 * time.Hour, false},
		{"7d", 7 * 24 * time.Hour, false},
		{"2w", 14 * 24 * time.Hour, false},
		{"1m", 30 * 24 * time.Hour, false},
		{"90s", 90 * time.Second, false},
		{"x", 0, true},
		{"abd", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseDuration(tt.in)
			if tt.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReadLine(t *testing.T) {
	r := bufio.NewReader(strings.NewReader("first\r\nsecond"))
	line, err := readLine(r)
	require.NoError(t, err)
	assert.Equal(t, "first", line)

	line, err = readLine(r)
	require.NoError(t, err)
	assert.Equal(t, "second", line)

	_, err = readLine(r)
	assert.Error(t, err)
}

func TestConfirmed(t *testing.T) {
	assert.True(t, confirmed("y"))
	assert.True(t, confirmed(" YES "))
	assert.False(t, confirmed(""))
	assert.False(t, confirmed("no"))
}
