package preload

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dbadmin/internal/httpx"
)

const page = `<!doctype html>
<html><head>
<script id="common-data" type="application/json">
{"databases":[{"id":1,"name":"app","server_id":1}],
 "schemas":[{"oid":2200,"name":"public","description":null,"table_count":1}],
 "tables":[{"oid":10,"name":"orders","schema":2200,"description":null,"metadata":null}],
 "current_database":1,"current_schema":2200,
 "user":{"id":1,"username":"admin","is_superuser":true},
 "is_authenticated":true,"routing_context":"normal",
 "supported_languages":{"en":"English"},"current_release_tag_name":"0.2.0"}
</script>
<script id="record-page" type="application/json">{"table_id":3,"pk":"5"}</script>
<script id="broken" type="application/json">{not json</script>
<script id="empty" type="application/json"></script>
</head><body></body></html>`

func parsePage(t *testing.T) *Document {
	t.Helper()
	d, err := Parse(strings.NewReader(page))
	require.NoError(t, err)
	return d
}

func TestCommonData(t *testing.T) {
	cd, err := CommonData(parsePage(t))
	require.NoError(t, err)

	require.NotNil(t, cd.CurrentDatabase)
	assert.Equal(t, int64(1), *cd.CurrentDatabase)
	assert.Equal(t, int64(2200), *cd.CurrentSchema)
	assert.Equal(t, "orders", cd.Tables[0].Name)
	assert.Equal(t, "admin", cd.User.Username)
	assert.True(t, cd.IsAuthenticated)
	assert.Equal(t, "English", cd.SupportedLanguages["en"])
}

func TestCommonData_Missing(t *testing.T) {
	d, err := Parse(strings.NewReader(`<html><body>hello</body></html>`))
	require.NoError(t, err)
	_, err = CommonData(d)
	require.ErrorIs(t, err, ErrMissingCommonData)
}

func TestRouteData(t *testing.T) {
	type recordPage struct {
		TableID int64  `json:"table_id"`
		PK      string `json:"pk"`
	}
	d := parsePage(t)

	got, ok := RouteData[recordPage](d, "record-page")
	require.True(t, ok)
	assert.Equal(t, recordPage{TableID: 3, PK: "5"}, got)

	for _, id := range []string{"absent", "broken", "empty"} {
		t.Run(id, func(t *testing.T) {
			got, ok := RouteData[recordPage](d, id)
			assert.False(t, ok)
			assert.Zero(t, got)
		})
	}
}

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/db/1/", r.URL.Path)
		w.Header().Set("Content-Type", "text/html")
		_, _ = io.WriteString(w, page)
	}))
	defer srv.Close()
	client, err := httpx.NewClient(srv.URL)
	require.NoError(t, err)

	d, err := Fetch(t.Context(), client, "/db/1/")
	require.NoError(t, err)
	cd, err := CommonData(d)
	require.NoError(t, err)
	assert.Len(t, cd.Databases, 1)
}
