package cli

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dbadmin/internal/domain"
	"dbadmin/internal/httpx"
	"dbadmin/internal/middleware"
	"dbadmin/internal/sandbox"
	"dbadmin/pkg/tables"
)

func decodeJSON[T any](t *testing.T, s string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(s), &v), s)
	return v
}

func TestCLI_DatabasesAndSchemas(t *testing.T) {
	isolateHome(t)
	srv := startSandbox(t, sandbox.Options{})

	out, err := runCLI(t, "--host", srv.URL, "databases", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "sandbox")

	out, err = runCLI(t, "--host", srv.URL, "-o", "json", "schemas", "create", "Sales", "--description", "q3")
	require.NoError(t, err)
	created := decodeJSON[[]domain.Schema](t, out)
	require.Len(t, created, 1)
	oid := created[0].OID

	out, err = runCLI(t, "--host", srv.URL, "-o", "json", "schemas", "list")
	require.NoError(t, err)
	list := decodeJSON[[]domain.Schema](t, out)
	names := make([]string, len(list))
	for i, s := range list {
		names[i] = s.Name
	}
	assert.Equal(t, []string{"public", "Sales"}, names)

	_, err = runCLI(t, "--host", srv.URL, "schemas", "rename", jsonInt(oid), "marketing")
	require.NoError(t, err)
	out, err = runCLI(t, "--host", srv.URL, "schemas", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "marketing")

	_, err = runCLI(t, "--host", srv.URL, "schemas", "delete", jsonInt(oid))
	require.NoError(t, err)
	out, err = runCLI(t, "--host", srv.URL, "schemas", "list")
	require.NoError(t, err)
	assert.NotContains(t, out, "marketing")
}

func jsonInt(v int64) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func TestCLI_TablesLifecycle(t *testing.T) {
	isolateHome(t)
	srv := startSandbox(t, sandbox.Options{})
	host := []string{"--host", srv.URL, "-o", "json"}

	out, err := runCLI(t, append(host, "tables", "create", "-s", "2200", "--name", "authors", "--column", "first", "--column", "born:integer")...)
	require.NoError(t, err)
	authors := decodeJSON[[]domain.Table](t, out)[0]
	assert.Equal(t, "authors", authors.Name)

	out, err = runCLI(t, append(host, "tables", "create", "-s", "2200")...)
	require.NoError(t, err)
	defaulted := decodeJSON[[]domain.Table](t, out)[0]
	assert.NotEmpty(t, defaulted.Name)

	out, err = runCLI(t, append(host, "columns", "list", jsonInt(authors.OID))...)
	require.NoError(t, err)
	cols := decodeJSON[[]domain.Column](t, out)
	require.Len(t, cols, 3)
	assert.True(t, cols[0].PrimaryKey)
	assert.Equal(t, "integer", cols[2].Type)

	_, err = runCLI(t, append(host, "tables", "rename", jsonInt(defaulted.OID), "authors")...)
	require.Error(t, err)
	assert.Contains(t, err.Error(), tables.MsgTableNameExists)

	out, err = runCLI(t, append(host, "tables", "rename", jsonInt(defaulted.OID), "books")...)
	require.NoError(t, err)
	assert.Equal(t, "books", decodeJSON[[]domain.Table](t, out)[0].Name)

	out, err = runCLI(t, append(host, "tables", "list", "-s", "2200")...)
	require.NoError(t, err)
	listed := decodeJSON[[]domain.Table](t, out)
	require.Len(t, listed, 2)
	assert.Equal(t, "authors", listed[0].Name)
	assert.Equal(t, "books", listed[1].Name)

	_, err = runCLI(t, "--host", srv.URL, "tables", "delete", jsonInt(defaulted.OID))
	require.NoError(t, err)
	out, err = runCLI(t, "--host", srv.URL, "tables", "list", "-s", "2200")
	require.NoError(t, err)
	assert.NotContains(t, out, "books")
}

func TestCLI_TablesImport(t *testing.T) {
	isolateHome(t)
	srv := startSandbox(t, sandbox.Options{})

	path := filepath.Join(t.TempDir(), "scores.tsv")
	require.NoError(t, os.WriteFile(path, []byte("player\tscore\nann\t10\nbob\t12\n"), 0o600))

	out, err := runCLI(t, "--host", srv.URL, "tables", "import", "-s", "2200", path, "--delimiter", "tab")
	require.NoError(t, err)
	assert.Contains(t, out, "scores")
	assert.Contains(t, out, "pending")

	path2 := filepath.Join(t.TempDir(), "more.csv")
	require.NoError(t, os.WriteFile(path2, []byte("name,age\ncy,31\n"), 0o600))
	out, err = runCLI(t, "--host", srv.URL, "-o", "json", "tables", "import", "-s", "2200", path2,
		"--name", "people", "--suggest-types", "--verify")
	require.NoError(t, err)
	people := decodeJSON[[]domain.Table](t, out)[0]
	assert.Equal(t, "people", people.Name)
	assert.False(t, tables.RequiresImportConfirmation(people))

	out, err = runCLI(t, "--host", srv.URL, "-o", "json", "columns", "list", "--rest", jsonInt(people.OID))
	require.NoError(t, err)
	cols := decodeJSON[[]domain.Column](t, out)
	require.Len(t, cols, 3)
	assert.Equal(t, "text", cols[1].Type)
	assert.Equal(t, "integer", cols[2].Type)

	out, err = runCLI(t, "--host", srv.URL, "tables", "list", "-s", "2200", "--verified-only")
	require.NoError(t, err)
	assert.Contains(t, out, "people")
	assert.NotContains(t, out, "scores")
}

func TestCLI_Records(t *testing.T) {
	isolateHome(t)
	srv := startSandbox(t, sandbox.Options{})

	out, err := runCLI(t, "--host", srv.URL, "-o", "json", "tables", "create", "-s", "2200", "--name", "authors", "--column", "first", "--column", "last")
	require.NoError(t, err)
	table := jsonInt(decodeJSON[[]domain.Table](t, out)[0].OID)

	out, err = runCLI(t, "--host", srv.URL, "-o", "json", "records", "create", table, "2=Ursula", "3=Le Guin")
	require.NoError(t, err)
	view := decodeJSON[recordView](t, out)
	assert.Equal(t, "1", view.PK)
	assert.Equal(t, "Ursula", view.Summary)
	assert.Equal(t, "Le Guin", view.Fields["3"])

	out, err = runCLI(t, "--host", srv.URL, "records", "patch", table, "1", "2=U.")
	require.NoError(t, err)
	assert.Contains(t, out, "authors #1: U.")

	out, err = runCLI(t, "--host", srv.URL, "records", "get", table, "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Le Guin")

	_, err = runCLI(t, "--host", srv.URL, "records", "get", table, "99")
	var httpErr *httpx.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, 404, httpErr.StatusCode)
}

func TestCLI_AuthLoginFlow(t *testing.T) {
	isolateHome(t)
	srv := startSandbox(t, sandbox.Options{
		Credentials: middleware.Credentials{Username: "admin", Password: "pw"},
		JWTSecret:   "cli-test-secret",
	})

	_, err := runCLI(t, "--host", srv.URL, "databases", "list")
	require.Error(t, err)
	obj := errorObject(err)
	assert.Equal(t, 401, obj["http_status"])

	_, err = runCLIWithInput(t, "wrong\n", "--host", srv.URL, "auth", "login", "admin", "--password-stdin")
	require.Error(t, err)

	_, err = runCLIWithInput(t, "pw\n", "--host", srv.URL, "auth", "login", "admin", "--password-stdin")
	require.NoError(t, err)

	cfg, err := LoadUserConfig()
	require.NoError(t, err)
	p := cfg.ActiveProfile("")
	assert.Equal(t, srv.URL, p.Host)
	assert.Equal(t, "admin", p.Username)
	require.NotEmpty(t, p.Token)

	// The saved profile supplies host and token.
	out, err := runCLI(t, "databases", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "sandbox")

	out, err = runCLI(t, "-o", "json", "auth", "status")
	require.NoError(t, err)
	status := decodeJSON[map[string]any](t, out)
	assert.Equal(t, "token", status["method"])
	tok, ok := status["token"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "admin", tok["subject"])
	assert.Equal(t, false, tok["expired"])

	_, err = runCLI(t, "auth", "logout")
	require.NoError(t, err)
	out, err = runCLI(t, "auth", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Not logged in")
}

func TestCLI_UsernameWithoutPassword(t *testing.T) {
	isolateHome(t)
	_, err := runCLI(t, "--username", "admin", "databases", "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), envPassword)
}

func TestCLI_SchemaFlagRequired(t *testing.T) {
	isolateHome(t)
	_, err := runCLI(t, "tables", "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--schema is required")

	_, err = runCLI(t, "tables", "watch", "-s", "2200", "--schedule", "every now and then")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid schedule")
}

func TestCLI_InvalidOutput(t *testing.T) {
	isolateHome(t)
	_, err := runCLI(t, "-o", "yaml", "version")
	require.Error(t, err)
}

func TestCLI_Version(t *testing.T) {
	isolateHome(t)
	out, err := runCLI(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "dba version dev (commit: none)\n", out)
}

func TestCLI_Completion(t *testing.T) {
	isolateHome(t)
	out, err := runCLI(t, "completion", "bash")
	require.NoError(t, err)
	assert.Contains(t, out, "dba")

	_, err = runCLI(t, "completion", "tcsh")
	require.Error(t, err)
}

func TestCLI_Commands(t *testing.T) {
	isolateHome(t)

	out, err := runCLI(t, "commands", "-o", "json")
	require.NoError(t, err)
	entries := decodeJSON[[]commandEntry](t, out)

	byPath := make(map[string]commandEntry, len(entries))
	for _, e := range entries {
		byPath[e.Path] = e
	}
	for _, path := range []string{"tables import", "tables watch", "records patch", "auth login", "version"} {
		assert.Contains(t, byPath, path)
	}
	assert.NotContains(t, byPath, "tables", "groups are not leaves")

	setProfile := byPath["config set-profile"]
	assert.Equal(t, "config", setProfile.Group)
	var required []string
	for _, f := range setProfile.Flags {
		if f.Required {
			required = append(required, f.Name)
		}
	}
	assert.Equal(t, []string{"name"}, required)

	out, err = runCLI(t, "commands", "--group", "records", "--filter", "PATCH")
	require.NoError(t, err)
	assert.Contains(t, out, "records patch")
	assert.NotContains(t, out, "records get")
}

func TestResolvePrecedence(t *testing.T) {
	isolateHome(t)
	require.NoError(t, SaveUserConfig(&UserConfig{
		CurrentProfile: "default",
		Profiles: map[string]Profile{
			"default": {Host: "http://profile:8000"},
			"other":   {Host: "http://other:8000"},
		},
	}))

	hostOf := func(args ...string) string {
		out, err := runCLI(t, append([]string{"-o", "json"}, append(args, "auth", "status")...)...)
		require.NoError(t, err)
		return decodeJSON[map[string]any](t, out)["host"].(string)
	}

	assert.Equal(t, "http://profile:8000", hostOf())
	assert.Equal(t, "http://other:8000", hostOf("--profile", "other"))

	t.Setenv(envHost, "http://env:8000/")
	assert.Equal(t, "http://env:8000", hostOf())
	assert.Equal(t, "http://flag:8000", hostOf("--host", "http://flag:8000"))
}

func TestPick(t *testing.T) {
	assert.Equal(t, "flag", pick(true, "flag", "env", "profile"))
	assert.Equal(t, "env", pick(false, "default", "env", "profile"))
	assert.Equal(t, "profile", pick(false, "default", "", "profile"))
	assert.Equal(t, "default", pick(false, "default", "", ""))
}

func TestErrorObject(t *testing.T) {
	obj := errorObject(errors.New("boom"))
	assert.Equal(t, map[string]any{"error": "boom"}, obj)
}

func TestInspectToken(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "admin",
		Issuer:    middleware.TokenIssuer,
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	info, err := inspectToken(signed, now)
	require.NoError(t, err)
	assert.Equal(t, "admin", info.Subject)
	assert.Equal(t, middleware.TokenIssuer, info.Issuer)
	assert.False(t, info.Expired)

	info, err = inspectToken(signed, now.Add(2*time.Hour))
	require.NoError(t, err)
	assert.True(t, info.Expired)

	_, err = inspectToken("not-a-jwt", now)
	assert.Error(t, err)
}

func TestParseAssignments(t *testing.T) {
	got, err := parseAssignments([]string{"2=Ursula", "3=42", "4=null", "5=true", `6="7"`})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"2": "Ursula", "3": float64(42), "4": nil, "5": true, "6": "7"}, got)

	_, err = parseAssignments([]string{"name=x"})
	assert.Error(t, err)
	_, err = parseAssignments([]string{"2"})
	assert.Error(t, err)
}

func TestParseDelimiter(t *testing.T) {
	for in, want := range map[string]string{"": "", ",": ",", ";": ";", "tab": "\t", `\t`: "\t"} {
		got, err := parseDelimiter(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := parseDelimiter("::")
	assert.Error(t, err)
}

func TestParseColumnSpec(t *testing.T) {
	col, err := parseColumnSpec("born:integer")
	require.NoError(t, err)
	assert.Equal(t, domain.CreatableColumn{Name: "born", Type: "integer"}, col)

	col, err = parseColumnSpec(" first ")
	require.NoError(t, err)
	assert.Equal(t, domain.CreatableColumn{Name: "first"}, col)

	_, err = parseColumnSpec(":text")
	assert.Error(t, err)
}

func TestTypeChanges(t *testing.T) {
	specs := typeChanges(map[string]string{"4": "boolean", "2": "text", "3": "integer", "x": "numeric"})
	require.Len(t, specs, 2)
	assert.Equal(t, 3, specs[0].ID)
	assert.Equal(t, "integer", *specs[0].Type)
	assert.Equal(t, 4, specs[1].ID)
}

func TestDiffTables(t *testing.T) {
	prev := tables.NewTablesMap([]domain.Table{
		{OID: 1, Name: "a"}, {OID: 2, Name: "b"}, {OID: 3, Name: "c"},
	})
	next := tables.NewTablesMap([]domain.Table{
		{OID: 1, Name: "a"}, {OID: 3, Name: "see"}, {OID: 4, Name: "d"},
	})

	changes := diffTables(prev, next)
	assert.Equal(t, []tableChange{
		{Kind: "removed", OID: 2, Name: "b"},
		{Kind: "renamed", OID: 3, Name: "see", OldName: "c"},
		{Kind: "added", OID: 4, Name: "d"},
	}, changes)
	assert.Empty(t, diffTables(next, next))
}

func TestTableWatcher(t *testing.T) {
	var buf strings.Builder
	w := &tableWatcher{w: &buf}

	w.observe(tables.TablesData{RequestStatus: domain.Processing()})
	assert.Empty(t, buf.String())

	w.observe(tables.TablesData{Tables: tables.NewTablesMap([]domain.Table{{OID: 1, Name: "a"}}), RequestStatus: domain.Success()})
	assert.Equal(t, "watching 1 tables\n", buf.String())

	buf.Reset()
	w.observe(tables.TablesData{Tables: tables.NewTablesMap([]domain.Table{{OID: 1, Name: "b"}}), RequestStatus: domain.Success()})
	assert.Contains(t, buf.String(), "renamed  1  a -> b")
}
