package architecture_test

import (
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImportBoundaries(t *testing.T) {
	files, err := collectGoFiles(sourceRoots()...)
	require.NoError(t, err)
	require.NotEmpty(t, files)

	violations := make([]string, 0)
	for _, file := range files {
		if isTestFile(file) {
			continue
		}
		violations = append(violations, fileViolations(t, file, "")...)
	}

	if len(violations) > 0 {
		sort.Strings(violations)
		t.Fatalf("%s", strings.Join(violations, "\n"))
	}
}

// Tests of the client stores run against fakes, never the sandbox.
func TestTestImportBoundaries(t *testing.T) {
	files, err := collectGoFiles(sourceRoots()...)
	require.NoError(t, err)

	violations := make([]string, 0)
	for _, file := range files {
		if !isTestFile(file) {
			continue
		}
		sourcePkg := packageImportPath(file)
		if !hasPathPrefix(sourcePkg, modulePath+"/internal/domain") &&
			!hasPathPrefix(sourcePkg, modulePath+"/pkg/store") {
			continue
		}
		violations = append(violations, fileViolations(t, file, "test ")...)
	}

	if len(violations) > 0 {
		sort.Strings(violations)
		t.Fatalf("%s", strings.Join(violations, "\n"))
	}
}

func fileViolations(t *testing.T, file, label string) []string {
	t.Helper()

	sourcePkg := packageImportPath(file)
	rule, ok := findRule(sourcePkg)
	if !ok {
		return nil
	}
	var out []string
	for _, importPath := range parseImports(t, file) {
		if !strings.HasPrefix(importPath, modulePath+"/") {
			continue
		}
		if hasPathPrefix(importPath, sourcePkg) {
			continue
		}
		if matchingForbiddenPrefix(importPath, rule.forbidden) == "" {
			continue
		}
		out = append(out,
			"governance: "+label+sourcePkg+" imports "+importPath+" via "+relToRepoRoot(file)+"; allowed direction: "+rule.hint,
		)
	}
	return out
}

func TestFindRulePrefersNarrowPrefix(t *testing.T) {
	rule, ok := findRule(modulePath + "/pkg/tables")
	require.True(t, ok)
	assert.Contains(t, rule.forbidden, modulePath+"/pkg/rpc")

	rule, ok = findRule(modulePath + "/pkg/api")
	require.True(t, ok)
	assert.Equal(t, modulePath+"/pkg", rule.sourcePrefix)

	_, ok = findRule(modulePath + "/internal/sandbox")
	assert.False(t, ok)
}

func TestHasPathPrefix(t *testing.T) {
	assert.True(t, hasPathPrefix("dbadmin/pkg/store", "dbadmin/pkg/store"))
	assert.True(t, hasPathPrefix("dbadmin/pkg/store/sub", "dbadmin/pkg/store"))
	assert.False(t, hasPathPrefix("dbadmin/pkg/storex", "dbadmin/pkg/store"))
}
