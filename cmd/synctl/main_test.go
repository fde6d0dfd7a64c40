package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Dan9191/bank-sync/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_CONN", filepath.Join(dir, "sync.db"))
	t.Setenv("ENCRYPTION_KEY", "cli-test-key")
	t.Setenv("JWT_SECRET", "cli-test-secret")
	t.Setenv("LOG_LEVEL", "error")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/client-info") {
			fmt.Fprint(w, `{"clientId":"c1","accounts":[{"id":"acc1","currencyCode":980,"balance":1000}]}`)
			return
		}
		fmt.Fprint(w, `[]`)
	}))
	t.Cleanup(srv.Close)
	t.Setenv("PROVIDER_URL", srv.URL+"/personal")
	t.Setenv("PROVIDER_COOLDOWN", "0s")
	return dir
}

func runCmd(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), args, strings.NewReader(stdin), &stdout, &stderr)
	return stdout.String(), err
}

func TestCreateUser(t *testing.T) {
	setupEnv(t)

	out, err := runCmd(t, "", "create-user", "-username", "alice", "-email", "alice@example.com")
	require.NoError(t, err)
	assert.Contains(t, out, "User alice created successfully with ID 1")

	_, err = runCmd(t, "", "create-user", "-username", "alice")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	_, err = runCmd(t, "", "create-user")
	assert.ErrorContains(t, err, "missing required flags: username")
}

func TestSetCredential(t *testing.T) {
	dir := setupEnv(t)
	_, err := runCmd(t, "", "create-user", "-username", "bob")
	require.NoError(t, err)

	out, err := runCmd(t, "tok-secret\n", "set-credential", "-user", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Bank token: ")
	assert.Contains(t, out, "Credential stored for user 1")
	assert.NotContains(t, out, "tok-secret")

	db, err := repository.Open(repository.DriverSQLite, filepath.Join(dir, "sync.db"))
	require.NoError(t, err)
	accounts, err := repository.NewRepository(db, repository.DriverSQLite).ListAccounts(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, "acc1", accounts[0].AccountID)
	require.NoError(t, db.Close())

	_, err = runCmd(t, "another\n", "set-credential", "-user", "1")
	assert.ErrorContains(t, err, "credential already set")

	_, err = runCmd(t, "\n", "set-credential", "-user", "1")
	assert.Error(t, err)

	_, err = runCmd(t, "", "set-credential")
	assert.ErrorContains(t, err, "missing required flags: user")
}

func TestIngestAndSummary(t *testing.T) {
	dir := setupEnv(t)
	_, err := runCmd(t, "", "create-user", "-username", "carol")
	require.NoError(t, err)

	statements := filepath.Join(dir, "statements")
	require.NoError(t, os.MkdirAll(statements, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(statements, "may.json"),
		[]byte(`[{"time": 1700000000, "description": "Silpo", "mcc": 5411, "amount": -15000, "currencyCode": 980}]`), 0o644))

	out, err := runCmd(t, "", "ingest", "-user", "1", "-dir", statements)
	require.NoError(t, err)
	assert.Contains(t, out, `"imported": 1`)
	assert.Contains(t, out, `"files": 1`)

	out, err = runCmd(t, "", "summary", "-user", "1", "-period", "year")
	require.NoError(t, err)
	assert.Contains(t, out, `"categories"`)
}

func TestToken(t *testing.T) {
	setupEnv(t)

	out, err := runCmd(t, "", "token", "-user", "5")
	require.NoError(t, err)
	assert.Equal(t, 3, len(strings.Split(strings.TrimSpace(out), ".")))

	_, err = runCmd(t, "", "token")
	assert.ErrorContains(t, err, "missing required flags: user")
}

func TestUnknownCommand(t *testing.T) {
	setupEnv(t)

	out, err := runCmd(t, "", "explode")
	assert.ErrorContains(t, err, "unknown command")
	assert.Contains(t, out, "Usage:")

	_, err = runCmd(t, "")
	assert.ErrorContains(t, err, "missing command")

	_, err = runCmd(t, "", "sync", "-bogus")
	assert.ErrorContains(t, err, "flag provided but not defined")
}
