package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/seafile-filelink/internal/config"
	"github.com/tonimelisma/seafile-filelink/internal/seafiletest"
	"github.com/tonimelisma/seafile-filelink/internal/vault"
)

// cliFixture runs commands against a fake server, an in-memory credential
// store shared by every command of one test, and a temp config file.
type cliFixture struct {
	srv     *seafiletest.Server
	ring    keyring.Keyring
	cfgPath string
}

func newCLIFixture(t *testing.T) *cliFixture {
	t.Helper()

	f := &cliFixture{
		srv:     seafiletest.NewServer(t),
		ring:    keyring.NewArrayKeyring(nil),
		cfgPath: filepath.Join(t.TempDir(), "config.toml"),
	}

	saved := openVault
	openVault = func(_ vault.OpenOptions, logger *slog.Logger) (*vault.Vault, error) {
		return vault.New(f.ring, logger), nil
	}

	t.Cleanup(func() { openVault = saved })

	return f
}

// run executes one command line with stdin and returns its stdout.
func (f *cliFixture) run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer

	cmd := newRootCmd()
	cmd.SetArgs(append([]string{"--config", f.cfgPath, "--quiet"}, args...))
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)

	err := cmd.ExecuteContext(context.Background())

	return out.String(), err
}

func (f *cliFixture) configure(t *testing.T, accountID string, extra ...string) {
	t.Helper()

	args := append([]string{
		"configure", accountID,
		"--server", f.srv.URL,
		"--username", seafiletest.DefaultUsername,
		"--library", "lib1",
	}, extra...)

	_, err := f.run(t, seafiletest.DefaultPassword+"\n", args...)
	require.NoError(t, err)
}

func TestTestConnectionCmd_Table(t *testing.T) {
	f := newCLIFixture(t)

	out, err := f.run(t, seafiletest.DefaultPassword+"\n",
		"test-connection", "--server", f.srv.URL, "--username", seafiletest.DefaultUsername)
	require.NoError(t, err)

	assert.Contains(t, out, "Connected as "+seafiletest.DefaultUsername)
	assert.Contains(t, out, "lib1")
	assert.Contains(t, out, "Mail")
	assert.NotContains(t, out, "lib2", "encrypted library is not offered")
	assert.NotContains(t, out, "lib3", "read-only library is not offered")

	_, statErr := os.Stat(f.cfgPath)
	assert.True(t, os.IsNotExist(statErr), "test-connection stores nothing")
}

func TestTestConnectionCmd_JSON(t *testing.T) {
	f := newCLIFixture(t)

	out, err := f.run(t, seafiletest.DefaultPassword+"\n",
		"--json", "test-connection", "--server", f.srv.URL, "--username", seafiletest.DefaultUsername)
	require.NoError(t, err)

	var got testConnectionJSON
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, seafiletest.DefaultUsername, got.Email)
	require.Len(t, got.Libraries, 1)
	assert.Equal(t, "lib1", got.Libraries[0].ID)
	assert.NotContains(t, out, "token", "the session token is not printed")
}

func TestTestConnectionCmd_WrongPassword(t *testing.T) {
	f := newCLIFixture(t)

	_, err := f.run(t, "wrong\n",
		"test-connection", "--server", f.srv.URL, "--username", seafiletest.DefaultUsername)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection test failed")
}

func TestTestConnectionCmd_EmptyPassword(t *testing.T) {
	f := newCLIFixture(t)

	_, err := f.run(t, "\n",
		"test-connection", "--server", f.srv.URL, "--username", seafiletest.DefaultUsername)
	require.Error(t, err)
	assert.Zero(t, f.srv.Calls(seafiletest.EndpointAuth))
}

func TestConfigureCmd_SavesAccountAndSecrets(t *testing.T) {
	f := newCLIFixture(t)

	f.configure(t, "a1", "--expire-days", "7")

	cfg, err := config.Load(f.cfgPath)
	require.NoError(t, err)

	acct, ok := cfg.Accounts["a1"]
	require.True(t, ok)
	assert.Equal(t, seafiletest.DefaultUsername, acct.Username)
	assert.Equal(t, "lib1", acct.RepoID)
	assert.Equal(t, "Mail", acct.RepoName, "library name looked up during verification")
	assert.Equal(t, 7, acct.ShareExpireDays)

	keys, err := f.ring.Keys()
	require.NoError(t, err)
	assert.Len(t, keys, 2, "password and token stored")

	raw, err := os.ReadFile(f.cfgPath)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), seafiletest.DefaultPassword)
}

func TestConfigureCmd_RejectsUnwritableLibrary(t *testing.T) {
	f := newCLIFixture(t)

	_, err := f.run(t, seafiletest.DefaultPassword+"\n",
		"configure", "a1", "--server", f.srv.URL, "--username", seafiletest.DefaultUsername, "--library", "lib3")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a writable library")

	_, statErr := os.Stat(f.cfgPath)
	assert.True(t, os.IsNotExist(statErr))
}

func TestConfigureCmd_NoVerifySkipsNetwork(t *testing.T) {
	f := newCLIFixture(t)

	f.configure(t, "a1", "--no-verify")

	assert.Zero(t, f.srv.TotalCalls())

	cfg, err := config.Load(f.cfgPath)
	require.NoError(t, err)
	assert.Contains(t, cfg.Accounts, "a1")
}

func TestConfigureCmd_SharePasswordReadAfterPassword(t *testing.T) {
	f := newCLIFixture(t)

	_, err := f.run(t, seafiletest.DefaultPassword+"\ns3cret-share\n",
		"configure", "a1", "--server", f.srv.URL, "--username", seafiletest.DefaultUsername,
		"--library", "lib1", "--share-password")
	require.NoError(t, err)

	local := filepath.Join(t.TempDir(), "report.pdf")
	require.NoError(t, os.WriteFile(local, []byte("pdf"), 0o600))

	_, err = f.run(t, "", "upload", "--account", "a1", local)
	require.NoError(t, err)
	assert.Equal(t, "s3cret-share", f.srv.LastShare().Password)
}

func TestAccountsCmd(t *testing.T) {
	f := newCLIFixture(t)

	out, err := f.run(t, "", "accounts")
	require.NoError(t, err)
	assert.Contains(t, out, "No accounts configured")

	f.configure(t, "a1")

	out, err = f.run(t, "", "accounts")
	require.NoError(t, err)
	assert.Contains(t, out, "ACCOUNT")
	assert.Contains(t, out, "a1")
	assert.Contains(t, out, "Mail")
	assert.Contains(t, out, "password, token")

	out, err = f.run(t, "", "--json", "accounts")
	require.NoError(t, err)

	var got []accountJSON
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "a1", got[0].ID)
	assert.Equal(t, "lib1", got[0].LibraryID)
	assert.True(t, got[0].Password)
	assert.True(t, got[0].Token)
}

func TestUploadCmd_PrintsLinks(t *testing.T) {
	f := newCLIFixture(t)
	f.configure(t, "a1", "--expire-days", "7")

	dir := t.TempDir()
	first := filepath.Join(dir, "report.pdf")
	second := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(first, []byte("%PDF-1.7"), 0o600))
	require.NoError(t, os.WriteFile(second, []byte("notes"), 0o600))

	out, err := f.run(t, "", "--json", "upload", "--account", "a1", first, second)
	require.NoError(t, err)

	var got []uploadJSON
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "report.pdf", got[0].Name)
	assert.NotEmpty(t, got[0].URL)
	assert.NotEmpty(t, got[0].ExpiresAt)
	assert.Equal(t, "notes.txt", got[1].Name)

	data, ok := f.srv.File("lib1", "/Thunderbird-Attachments/report.pdf")
	require.True(t, ok)
	assert.Equal(t, []byte("%PDF-1.7"), data)
	assert.Equal(t, 2, f.srv.FileCount())
}

func TestUploadCmd_RemoteName(t *testing.T) {
	f := newCLIFixture(t)
	f.configure(t, "a1")

	local := filepath.Join(t.TempDir(), "scan0001.pdf")
	require.NoError(t, os.WriteFile(local, []byte("pdf"), 0o600))

	out, err := f.run(t, "", "upload", "--account", "a1", "--name", "Invoice.pdf", local)
	require.NoError(t, err)
	assert.Contains(t, out, "Invoice.pdf")
	assert.Contains(t, out, "expires: never")

	_, ok := f.srv.File("lib1", "/Thunderbird-Attachments/Invoice.pdf")
	assert.True(t, ok)
}

func TestUploadCmd_UnknownAccount(t *testing.T) {
	f := newCLIFixture(t)

	local := filepath.Join(t.TempDir(), "a.txt")
	require.NoError(t, os.WriteFile(local, []byte("x"), 0o600))

	_, err := f.run(t, "", "upload", "--account", "nope", local)
	require.Error(t, err)
	assert.Zero(t, f.srv.TotalCalls())
}

func TestUploadCmd_NameWithSeveralFiles(t *testing.T) {
	f := newCLIFixture(t)

	_, err := f.run(t, "", "upload", "--account", "a1", "--name", "x", "a", "b")
	require.Error(t, err)
}

func TestForgetCmd(t *testing.T) {
	f := newCLIFixture(t)
	f.configure(t, "a1")

	_, err := f.run(t, "", "forget", "a1")
	require.NoError(t, err)

	cfg, err := config.Load(f.cfgPath)
	require.NoError(t, err)
	assert.NotContains(t, cfg.Accounts, "a1")

	keys, err := f.ring.Keys()
	require.NoError(t, err)
	assert.Empty(t, keys)

	// Forgetting again is not an error.
	_, err = f.run(t, "", "forget", "a1")
	require.NoError(t, err)
}

func TestServeCmd_RoundTrip(t *testing.T) {
	f := newCLIFixture(t)
	f.configure(t, "a1")

	input := strings.Join([]string{
		`{"id":"1","type":"load-config","accountId":"a1"}`,
		`{"id":"2","type":"upload","accountId":"a1","fileId":"f1","fileName":"hello.txt","data":"aGVsbG8="}`,
		`{"id":"3","type":"load-config","accountId":"missing"}`,
	}, "\n") + "\n"

	out, err := f.run(t, input, "serve")
	require.NoError(t, err)

	byID := map[string]map[string]any{}

	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		var resp map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &resp), line)
		byID[resp["id"].(string)] = resp
	}

	require.Len(t, byID, 3)
	assert.Equal(t, true, byID["1"]["ok"])
	assert.Equal(t, true, byID["2"]["ok"])
	assert.Equal(t, true, byID["3"]["ok"])

	data, ok := f.srv.File("lib1", "/Thunderbird-Attachments/hello.txt")
	require.True(t, ok)
	assert.Equal(t, []byte("hello"), data)
}
