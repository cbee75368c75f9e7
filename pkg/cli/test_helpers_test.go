package cli

import (
	"bytes"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"dbadmin/internal/db"
	"dbadmin/internal/sandbox"
)

// isolateHome points HOME at a temp dir and clears the environment
// variables the CLI reads, so no real config leaks into a test.
func isolateHome(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	for _, key := range []string{envHost, envUsername, envPassword, envToken, envOutput, envDatabase, "OTEL_EXPORTER_OTLP_ENDPOINT"} {
		t.Setenv(key, "")
	}
	t.Setenv("HTTP_MAX_RETRIES", "0")
	return dir
}

// runCLI executes a fresh root command and returns what it printed.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return runCLIWithInput(t, "", args...)
}

func runCLIWithInput(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	rootCmd := newRootCmd()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(t.Context())
	return out.String(), err
}

// startSandbox serves a fresh sandbox database over HTTP.
func startSandbox(t *testing.T, opts sandbox.Options) *httptest.Server {
	t.Helper()
	writeDB, readDB := db.OpenTestSQLite(t)
	srv, err := sandbox.New(sandbox.NewStore(writeDB, readDB), opts)
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler(t.Context()))
	t.Cleanup(ts.Close)
	return ts
}
