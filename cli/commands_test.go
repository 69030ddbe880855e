package cli

import (
	"bytes"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fahmaliyi/passvault/config"
	"github.com/fahmaliyi/passvault/vault"
)

type fakeClipboard struct {
	writes []string
}

func (c *fakeClipboard) write(s string) error {
	c.writes = append(c.writes, s)
	return nil
}

func testConfig(path string) config.Config {
	var cfg config.Config
	cfg.Store.Path = path
	cfg.Clipboard.ClearAfter = time.Second
	cfg.Generator.Length = 16
	cfg.Generator.Special = true
	return cfg
}

func newTestApp(t *testing.T, stdin string) (*App, *bytes.Buffer, *fakeClipboard) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "passwords.json")
	out := &bytes.Buffer{}
	clip := &fakeClipboard{}
	v := vault.New(vault.WithRand(rand.NewChaCha8([32]byte{3})))
	a := NewApp(v, testConfig(path), zerolog.Nop(), strings.NewReader(stdin), out)
	a.copyText = clip.write
	return a, out, clip
}

func run(t *testing.T, a *App, out *bytes.Buffer, args ...string) (int, string) {
	t.Helper()
	out.Reset()
	code := a.Run(args)
	return code, out.String()
}

func TestRun_AddGetList(t *testing.T) {
	a, out, _ := newTestApp(t, "")

	code, text := run(t, a, out, "add", "github", "alice", "p@ss1", "mk")
	assert.Equal(t, ExitOK, code)
	assert.Contains(t, text, "Password added.")

	code, _ = run(t, a, out, "add", "gitlab", "alice", "p@ss2", "mk")
	assert.Equal(t, ExitOK, code)

	code, text = run(t, a, out, "get", "github", "mk")
	assert.Equal(t, ExitOK, code)
	assert.Contains(t, text, "Service: Github\n")
	assert.Contains(t, text, "Username: alice\n")
	assert.Contains(t, text, "Password: p@ss1\n")

	code, text = run(t, a, out, "list")
	assert.Equal(t, ExitOK, code)
	assert.Equal(t, "Services:\n1. Github\n2. Gitlab\n", text)
}

func TestRun_AddOutcomes(t *testing.T) {
	a, out, _ := newTestApp(t, "")

	_, _ = run(t, a, out, "add", "github", "alice", "p@ss1", "mk")

	code, text := run(t, a, out, "add", "github", "alice", "p@ss1", "mk")
	assert.Equal(t, ExitOK, code)
	assert.Contains(t, text, "The new password is the same as the old password.")

	code, text = run(t, a, out, "add", "github", "alice", "p@ss2", "mk")
	assert.Equal(t, ExitOK, code)
	assert.Contains(t, text, "Updating password")

	code, text = run(t, a, out, "add", "github", "bob", "p@ss2", "mk")
	assert.Equal(t, ExitRejected, code)
	assert.Contains(t, text, "Service already exists with a different username.")
}

func TestRun_AddPromptsForSecrets(t *testing.T) {
	a, out, _ := newTestApp(t, "hunter2\nmk\n")

	code, text := run(t, a, out, "add", "github", "alice")
	require.Equal(t, ExitOK, code, text)
	assert.Contains(t, text, "Password: ")
	assert.Contains(t, text, "Master key: ")

	cred, err := a.Vault.GetPassword(a.path(), "github", "mk")
	require.NoError(t, err)
	assert.Equal(t, "hunter2", cred.Password)
}

func TestRun_AddGeneratedPassword(t *testing.T) {
	a, out, _ := newTestApp(t, "")

	code, text := run(t, a, out, "add", "github", "alice", "-", "mk")
	require.Equal(t, ExitOK, code)

	cred, err := a.Vault.GetPassword(a.path(), "github", "mk")
	require.NoError(t, err)
	assert.Len(t, cred.Password, 16)
	assert.Contains(t, text, "Generated password: "+cred.Password)
}

func TestRun_GetNotFound(t *testing.T) {
	a, out, _ := newTestApp(t, "")
	_, _ = run(t, a, out, "add", "github", "alice", "p@ss1", "mk")

	for _, args := range [][]string{
		{"get", "github", "wrong-mk"},
		{"get", "nope", "mk"},
	} {
		code, text := run(t, a, out, args...)
		assert.Equal(t, ExitRejected, code)
		assert.Equal(t, "Service not found or invalid master key.\n", text)
	}
}

func TestRun_GetPromptsForMasterKey(t *testing.T) {
	a, out, _ := newTestApp(t, "mk\n")
	_, err := a.Vault.AddPassword(a.path(), "github", "alice", "p@ss1", "mk")
	require.NoError(t, err)

	code, text := run(t, a, out, "get", "github")
	assert.Equal(t, ExitOK, code)
	assert.Contains(t, text, "Password: p@ss1")
}

func TestRun_GetCopy(t *testing.T) {
	a, out, clip := newTestApp(t, "")
	_, _ = run(t, a, out, "add", "github", "alice", "p@ss1", "mk")

	code, text := run(t, a, out, "get", "-copy", "github", "mk")
	assert.Equal(t, ExitOK, code)
	assert.NotContains(t, text, "p@ss1")
	assert.Contains(t, text, "Clipboard cleared.")
	assert.Equal(t, []string{"p@ss1", ""}, clip.writes)
}

func TestRun_ListEmpty(t *testing.T) {
	a, out, _ := newTestApp(t, "")

	code, text := run(t, a, out, "list")
	assert.Equal(t, ExitOK, code)
	assert.Equal(t, "No services found.\n", text)
}

func TestRun_Drop(t *testing.T) {
	a, out, _ := newTestApp(t, "wrong\nmk\n")
	_, err := a.Vault.AddPassword(a.path(), "github", "alice", "p@ss1", "mk")
	require.NoError(t, err)

	code, text := run(t, a, out, "drop")
	assert.Equal(t, ExitRejected, code)
	assert.Contains(t, text, "Invalid master key.")

	code, text = run(t, a, out, "drop")
	assert.Equal(t, ExitOK, code)
	assert.Contains(t, text, "All passwords have been deleted.")

	services, err := a.Vault.ListServices(a.path())
	require.NoError(t, err)
	assert.Empty(t, services)
}

func TestRun_Gen(t *testing.T) {
	a, out, _ := newTestApp(t, "")

	code, text := run(t, a, out, "gen", "-length", "10", "-special=false")
	require.Equal(t, ExitOK, code)
	lines := strings.Split(text, "\n")
	require.True(t, strings.HasPrefix(lines[0], "Password: "))
	pw := strings.TrimPrefix(lines[0], "Password: ")
	assert.Len(t, pw, 10)
	for _, c := range pw {
		assert.True(t, ('0' <= c && c <= '9') || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z'), "%q", c)
	}
	assert.Contains(t, text, "(classical)")
	assert.Contains(t, text, "(quantum)")

	code, text = run(t, a, out, "gen", "-words", "4")
	require.Equal(t, ExitOK, code)
	assert.GreaterOrEqual(t, strings.Count(strings.SplitN(text, "\n", 2)[0], "-"), 3)

	code, _ = run(t, a, out, "gen", "-length", "0")
	assert.Equal(t, ExitError, code)
}

func TestRun_InvalidArguments(t *testing.T) {
	a, out, _ := newTestApp(t, "")

	for _, args := range [][]string{
		{},
		{"frobnicate"},
		{"add", "github"},
		{"get"},
		{"get", "a", "b", "c"},
		{"list", "extra"},
		{"drop", "extra"},
	} {
		code, text := run(t, a, out, args...)
		assert.Equal(t, ExitError, code, "args %v", args)
		assert.Contains(t, text, "Usage:", "args %v", args)
	}
}

func TestRun_StoreReadError(t *testing.T) {
	a, out, _ := newTestApp(t, "")
	a.Config.Store.Path = t.TempDir()

	code, text := run(t, a, out, "list")
	assert.Equal(t, ExitError, code)
	assert.Contains(t, text, "Error:")
}

func TestRun_UpdatesGitignore(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	a, out, _ := newTestApp(t, "")
	a.Config.Store.Path = "passwords.json"
	a.Config.Store.GitIgnore = true

	code, _ := run(t, a, out, "list")
	require.Equal(t, ExitOK, code)

	data, err := os.ReadFile(filepath.Join(dir, ".gitignore"))
	require.NoError(t, err)
	assert.Equal(t, "passwords.json\n", string(data))
}

func TestRun_TUIDispatch(t *testing.T) {
	a, out, _ := newTestApp(t, "")
	called := false
	a.runTUI = func(*App) error {
		called = true
		return nil
	}

	code, _ := run(t, a, out, "tui")
	assert.Equal(t, ExitOK, code)
	assert.True(t, called)
}

func TestMain_FileFlag(t *testing.T) {
	for _, key := range []string{"PASSVAULT_CONFIG", "PASSVAULT_FILE", "PASSVAULT_LOG_LEVEL", "PASSVAULT_LOG_PRETTY", "PASSVAULT_CLIPBOARD_CLEAR"} {
		t.Setenv(key, "")
	}
	t.Setenv("PASSVAULT_GITIGNORE", "false")
	path := filepath.Join(t.TempDir(), "store.json")
	out := &bytes.Buffer{}

	code := Main([]string{"-file", path, "add", "github", "alice", "p@ss1", "mk"}, strings.NewReader(""), out)
	require.Equal(t, ExitOK, code, out.String())

	_, err := os.Stat(path)
	assert.NoError(t, err)

	out.Reset()
	code = Main([]string{"-file", path, "list"}, strings.NewReader(""), out)
	assert.Equal(t, ExitOK, code)
	assert.Equal(t, "Services:\n1. Github\n", out.String())
}

func TestMain_BadConfig(t *testing.T) {
	out := &bytes.Buffer{}
	code := Main([]string{"-config", filepath.Join(t.TempDir(), "missing.yaml"), "list"}, strings.NewReader(""), out)
	assert.Equal(t, ExitError, code)
	assert.Contains(t, out.String(), "Error loading configuration")
}

func TestCapitalize(t *testing.T) {
	assert.Equal(t, "Github", capitalize("gitHub"))
	assert.Equal(t, "Ébay", capitalize("éBAY"))
	assert.Equal(t, "", capitalize(""))
}
