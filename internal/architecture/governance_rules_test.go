package architecture_test

import (
	"go/parser"
	"go/token"
	"io/fs"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const modulePath = "dbadmin"

type layerRule struct {
	sourcePrefix string
	forbidden    []string
	hint         string
}

// architectureRules is matched first-prefix-wins, so narrower prefixes
// come before the wider ones they nest under.
var architectureRules = []layerRule{
	{
		sourcePrefix: modulePath + "/internal/domain",
		forbidden: []string{
			modulePath + "/internal/config",
			modulePath + "/internal/db",
			modulePath + "/internal/ddl",
			modulePath + "/internal/httpx",
			modulePath + "/internal/middleware",
			modulePath + "/internal/sandbox",
			modulePath + "/internal/telemetry",
			modulePath + "/pkg",
			modulePath + "/cmd",
		},
		hint: "domain may only import domain",
	},
	{
		sourcePrefix: modulePath + "/internal/httpx",
		forbidden: []string{
			modulePath + "/internal",
			modulePath + "/pkg",
			modulePath + "/cmd",
		},
		hint: "httpx is a leaf transport package",
	},
	{
		sourcePrefix: modulePath + "/internal/db",
		forbidden: []string{
			modulePath + "/internal/sandbox",
			modulePath + "/internal/middleware",
			modulePath + "/pkg",
			modulePath + "/cmd",
		},
		hint: "db should depend on db-local packages only",
	},
	{
		sourcePrefix: modulePath + "/internal/middleware",
		forbidden: []string{
			modulePath + "/internal/sandbox",
			modulePath + "/internal/db",
			modulePath + "/pkg",
			modulePath + "/cmd",
		},
		hint: "middleware should depend on middleware-local packages",
	},
	{
		sourcePrefix: modulePath + "/pkg/store",
		forbidden: []string{
			modulePath + "/internal",
			modulePath + "/pkg",
			modulePath + "/cmd",
		},
		hint: "store has no module dependencies",
	},
	{
		sourcePrefix: modulePath + "/pkg/tables",
		forbidden:    storeLayerForbidden,
		hint:         "tables should reach the API through domain ports",
	},
	{
		sourcePrefix: modulePath + "/pkg/schemas",
		forbidden:    storeLayerForbidden,
		hint:         "schemas should reach the API through domain ports",
	},
	{
		sourcePrefix: modulePath + "/pkg/records",
		forbidden:    storeLayerForbidden,
		hint:         "records should reach the API through domain ports",
	},
	{
		sourcePrefix: modulePath + "/pkg",
		forbidden: []string{
			modulePath + "/internal/sandbox",
			modulePath + "/internal/db",
			modulePath + "/internal/middleware",
			modulePath + "/cmd",
		},
		hint: "client packages must not depend on the sandbox server",
	},
}

var storeLayerForbidden = []string{
	modulePath + "/pkg/api",
	modulePath + "/pkg/rpc",
	modulePath + "/pkg/rest",
	modulePath + "/pkg/cli",
	modulePath + "/internal/httpx",
	modulePath + "/internal/sandbox",
	modulePath + "/internal/db",
	modulePath + "/cmd",
}

func collectGoFiles(roots ...string) ([]string, error) {
	files := make([]string, 0)
	for _, root := range roots {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if strings.HasPrefix(d.Name(), "_") || d.Name() == "testdata" {
					return filepath.SkipDir
				}
				return nil
			}
			if strings.HasSuffix(path, ".go") {
				files = append(files, filepath.ToSlash(path))
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return files, nil
}

func repoRootDir() string {
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		return "."
	}
	return filepath.Clean(filepath.Join(filepath.Dir(file), "..", ".."))
}

func sourceRoots() []string {
	root := repoRootDir()
	return []string{filepath.Join(root, "internal"), filepath.Join(root, "pkg")}
}

func findRule(sourcePkg string) (layerRule, bool) {
	for _, rule := range architectureRules {
		if hasPathPrefix(sourcePkg, rule.sourcePrefix) {
			return rule, true
		}
	}
	return layerRule{}, false
}

func matchingForbiddenPrefix(importPath string, forbidden []string) string {
	for _, prefix := range forbidden {
		if hasPathPrefix(importPath, prefix) {
			return prefix
		}
	}
	return ""
}

func hasPathPrefix(value string, prefix string) bool {
	return value == prefix || strings.HasPrefix(value, prefix+"/")
}

func packageImportPath(file string) string {
	return modulePath + "/" + filepath.Dir(relToRepoRoot(file))
}

func isTestFile(path string) bool {
	return strings.HasSuffix(filepath.Base(path), "_test.go")
}

func parseImports(t *testing.T, file string) []string {
	t.Helper()

	fset := token.NewFileSet()
	parsed, err := parser.ParseFile(fset, file, nil, parser.ImportsOnly)
	require.NoErrorf(t, err, "parse imports for %s", file)

	imports := make([]string, 0, len(parsed.Imports))
	for _, imp := range parsed.Imports {
		imports = append(imports, strings.Trim(imp.Path.Value, "\""))
	}
	return imports
}

func relToRepoRoot(path string) string {
	rel, err := filepath.Rel(repoRootDir(), path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}
