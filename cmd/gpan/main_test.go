package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xplshn/gpan/pkg/config"
	"github.com/xplshn/gpan/pkg/issue"
	"github.com/xplshn/gpan/pkg/util"
)

const badReturn = `{"kind": "File", "children": {"stmts": [
  {"kind": "Function", "line": 1, "attrs": {"name": "f", "returnType": "int"}, "children": {"body": [
    {"kind": "Return", "line": 2, "children": {"expr": {"kind": "StringLit", "line": 2, "attrs": {"value": "x"}}}}
  ]}}
]}}`

const arrayReturn = `{"kind": "File", "children": {"stmts": [
  {"kind": "Function", "line": 1, "attrs": {"name": "h", "returnType": "int"}, "children": {"body": [
    {"kind": "Return", "line": 2, "children": {"expr": {"kind": "ArrayLit", "line": 2}}}
  ]}}
]}}`

const undefinedEcho = `{"kind": "File", "children": {"stmts": [
  {"kind": "Function", "line": 1, "attrs": {"name": "g"}, "children": {"body": [
    {"kind": "Echo", "line": 2, "children": {"exprs": [{"kind": "Variable", "line": 2, "attrs": {"name": "nope"}}]}}
  ]}}
]}}`

func writeFiles(t *testing.T, contents map[string]string) []string {
	t.Helper()
	dir := t.TempDir()
	var paths []string
	for _, name := range []string{"a.json", "b.json", "c.json", "d.json"} {
		content, ok := contents[name]
		if !ok {
			continue
		}
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		paths = append(paths, path)
	}
	return paths
}

func TestLoadFiles(t *testing.T) {
	var log bytes.Buffer
	util.SetOutput(&log)
	util.SetColor(false)
	defer util.SetOutput(os.Stderr)

	paths := writeFiles(t, map[string]string{
		"a.json": badReturn,
		"b.json": badReturn,
		"c.json": `{"kind": `,
		"d.json": undefinedEcho,
	})
	files := loadFiles(append(paths, filepath.Join(t.TempDir(), "missing.json")))

	require.Len(t, files, 2)
	assert.Equal(t, paths[0], files[0].path)
	assert.Equal(t, paths[3], files[1].path)
	assert.Equal(t, 1, files[1].index)
	assert.Contains(t, log.String(), "identical to")
	assert.Contains(t, log.String(), "could not read file")
}

func TestAnalyze(t *testing.T) {
	paths := writeFiles(t, map[string]string{"a.json": badReturn, "b.json": arrayReturn, "d.json": undefinedEcho})
	files := loadFiles(paths)
	require.Len(t, files, 3)

	testCases := []struct {
		name  string
		level string
		jobs  int
		files []string
		kinds []issue.Kind
	}{
		{"Normal", "normal", 1, []string{"a.json", "b.json", "d.json"}, []issue.Kind{issue.TypeMismatchReturn, issue.TypeMismatchReturn, issue.UndeclaredVariable}},
		{"Parallel", "normal", 4, []string{"a.json", "b.json", "d.json"}, []issue.Kind{issue.TypeMismatchReturn, issue.TypeMismatchReturn, issue.UndeclaredVariable}},
		// string to int is accepted once scalars cast implicitly, array to int is not
		{"Lax", "lax", 2, []string{"b.json", "d.json"}, []issue.Kind{issue.TypeMismatchReturn, issue.UndeclaredVariable}},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			cfg := config.NewConfig()
			require.NoError(t, cfg.ApplyLevel(testCase.level))
			var dump bytes.Buffer
			issues := analyze(files, cfg, testCase.jobs, &dump)

			var (
				kinds []issue.Kind
				names []string
			)
			for _, is := range issues {
				kinds = append(kinds, is.Kind)
				names = append(names, filepath.Base(is.File))
			}
			assert.Equal(t, testCase.kinds, kinds)
			assert.Equal(t, testCase.files, names)
			assert.Contains(t, dump.String(), `\f:`)
			assert.Contains(t, dump.String(), `\g:`)
			assert.Contains(t, dump.String(), `\h:`)
		})
	}
}

func TestAnalyze_Filtered(t *testing.T) {
	var log bytes.Buffer
	util.SetOutput(&log)
	util.SetColor(false)
	defer util.SetOutput(os.Stderr)

	files := loadFiles(writeFiles(t, map[string]string{"a.json": badReturn, "d.json": undefinedEcho}))
	cfg := config.NewConfig()
	cfg.SetIssue(issue.UndeclaredVariable, false)

	issues := analyze(files, cfg, 2, nil)
	require.Len(t, issues, 1)
	assert.Equal(t, issue.TypeMismatchReturn, issues[0].Kind)
	assert.Equal(t, 2, issues[0].Line)

	assert.Regexp(t, `codebase has \d+ class\(es\), \d+ function\(s\) and \d+ constant\(s\)`, log.String())

	baseline := issue.NewBaseline(issues)
	assert.Empty(t, baseline.Filter(analyze(files, cfg, 1, nil)))
}
