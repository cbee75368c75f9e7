// Package preload reads the JSON payloads the application server embeds in
// its HTML pages as <script id="..."> elements.
package preload

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/net/html"

	"dbadmin/internal/domain"
	"dbadmin/internal/httpx"
)

// CommonDataID is the element id of the payload present on every page.
const CommonDataID = "common-data"

// ErrMissingCommonData is returned when a page has no usable common data.
var ErrMissingCommonData = errors.New("preload: common data is missing")

// Document is a parsed page.
type Document struct {
	root *html.Node
}

// Parse reads an HTML document.
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("preload: parse html: %w", err)
	}
	return &Document{root: root}, nil
}

// Text returns the text content of the element with the given id.
func (d *Document) Text(id string) (string, bool) {
	n := findByID(d.root, id)
	if n == nil {
		return "", false
	}
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	}
	return b.String(), true
}

func findByID(n *html.Node, id string) *html.Node {
	if n.Type == html.ElementNode {
		for _, a := range n.Attr {
			if a.Key == "id" && a.Val == id {
				return n
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findByID(c, id); found != nil {
			return found
		}
	}
	return nil
}

// Data decodes the JSON payload of the element with the given id. It
// reports false when the element is absent or empty; a payload that is
// present but not valid JSON is logged and also reported as absent.
func Data[T any](d *Document, id string) (T, bool) {
	var out T
	text, ok := d.Text(id)
	if !ok || strings.TrimSpace(text) == "" {
		return out, false
	}
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		slog.Error("invalid preload payload", "id", id, "error", err)
		var zero T
		return zero, false
	}
	return out, true
}

// RouteData decodes the payload a page carries for a route.
func RouteData[T any](d *Document, routeName string) (T, bool) {
	return Data[T](d, routeName)
}

// CommonData decodes the common payload. Every page rendered by the
// application carries one, so a missing payload is an error.
func CommonData(d *Document) (*domain.CommonData, error) {
	cd, ok := Data[domain.CommonData](d, CommonDataID)
	if !ok {
		return nil, ErrMissingCommonData
	}
	return &cd, nil
}

// ParseCommonData is Parse followed by CommonData.
func ParseCommonData(r io.Reader) (*domain.CommonData, error) {
	d, err := Parse(r)
	if err != nil {
		return nil, err
	}
	return CommonData(d)
}

// Fetch downloads a page from the application server and parses it.
func Fetch(ctx context.Context, client *httpx.Client, path string) (*Document, error) {
	if path == "" {
		path = "/"
	}
	resp, err := client.Do(ctx, &httpx.Request{
		Method: http.MethodGet,
		Path:   path,
		Header: http.Header{"Accept": []string{"text/html"}},
	})
	if err != nil {
		return nil, fmt.Errorf("preload: fetch %s: %w", path, err)
	}
	body, err := httpx.ReadAllAndClose(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("preload: read %s: %w", path, err)
	}
	return Parse(bytes.NewReader(body))
}
