package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xplshn/gpan/pkg/cli"
	"github.com/xplshn/gpan/pkg/issue"
)

func visit(flags ...string) func(fn func(string)) {
	return func(fn func(string)) {
		for _, f := range flags {
			fn(f)
		}
	}
}

func TestProcessFlags(t *testing.T) {
	testCases := []struct {
		flags   []string
		check   func(*Config) bool
		message string
	}{
		{[]string{"Wno-UndeclaredVariable"}, func(c *Config) bool { return !c.IsIssueEnabled(issue.UndeclaredVariable) }, "disable one issue"},
		{[]string{"Wno-undeclaredvariable"}, func(c *Config) bool { return !c.IsIssueEnabled(issue.UndeclaredVariable) }, "issue names are case-insensitive"},
		{[]string{"UndeclaredMethod", "Wno-all"}, func(c *Config) bool { return c.IsIssueEnabled(issue.UndeclaredMethod) }, "specific flags win over -Wno-all"},
		{[]string{"Wno-all"}, func(c *Config) bool { return !c.IsIssueEnabled(issue.UndeclaredClass) }, "disable everything"},
		{[]string{"Fnull-casting"}, func(c *Config) bool { return c.IsFeatureEnabled(FeatNullCasting) }, "enable a feature"},
		{[]string{"Fno-global-fallback"}, func(c *Config) bool { return !c.IsFeatureEnabled(FeatGlobalFallback) }, "disable a feature"},
		{[]string{"Fno-such-thing"}, func(c *Config) bool { return c.IsFeatureEnabled(FeatGlobalFallback) }, "unknown flags are ignored"},
	}
	for _, tc := range testCases {
		t.Run(tc.message, func(t *testing.T) {
			cfg := NewConfig()
			cfg.ProcessFlags(visit(tc.flags...))
			assert.True(t, tc.check(cfg))
		})
	}
}

func TestApplyLevel(t *testing.T) {
	cfg := NewConfig()
	require.NoError(t, cfg.ApplyLevel("lax"))
	assert.True(t, cfg.CastOptions().NullCasting)
	assert.True(t, cfg.IsFeatureEnabled(FeatDynamicProperties))
	assert.Equal(t, issue.SeverityNormal, cfg.MinSeverity)

	require.NoError(t, cfg.ApplyLevel("strict"))
	assert.False(t, cfg.CastOptions().NullCasting)
	assert.True(t, cfg.IsIssueEnabled(issue.RedundantCondition))

	assert.Error(t, cfg.ApplyLevel("paranoid"))
	assert.Equal(t, "strict", cfg.Level)
}

func TestIssueFilter(t *testing.T) {
	cfg := NewConfig()
	cfg.SetIssue(issue.UndeclaredConstant, false)
	cfg.MinSeverity = issue.SeverityNormal
	keep := cfg.IssueFilter()

	assert.True(t, keep(issue.New(issue.UndeclaredClass, "a.php", 1, `\C`)))
	assert.False(t, keep(issue.New(issue.UndeclaredConstant, "a.php", 1, "X")))
	assert.False(t, keep(issue.New(issue.PossiblyUndefinedVariable, "a.php", 1, "x")))
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFile)
	content := `level: lax
features:
  dynamic-properties: false
issues:
  PossiblyUndefinedVariable: true
suppress:
  - UndeclaredConstant
minimum_severity: low
jobs: 3
baseline: .gpan-baseline.yaml
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg := NewConfig()
	require.NoError(t, cfg.LoadFile(path))
	assert.Equal(t, "lax", cfg.Level)
	assert.True(t, cfg.IsFeatureEnabled(FeatNullCasting))
	assert.False(t, cfg.IsFeatureEnabled(FeatDynamicProperties))
	assert.True(t, cfg.IsIssueEnabled(issue.PossiblyUndefinedVariable))
	assert.False(t, cfg.IsIssueEnabled(issue.UndeclaredConstant))
	assert.Equal(t, issue.SeverityLow, cfg.MinSeverity)
	assert.Equal(t, 3, cfg.Jobs)
	assert.Equal(t, ".gpan-baseline.yaml", cfg.Baseline)
}

func TestApplyFile_Unknown(t *testing.T) {
	cfg := NewConfig()
	assert.Error(t, cfg.ApplyFile(File{Features: map[string]bool{"bogus": true}}))
	assert.Error(t, cfg.ApplyFile(File{Suppress: []string{"NoSuchIssue"}}))
	assert.Error(t, cfg.ApplyFile(File{MinimumSeverity: "extreme"}))
}

func TestSetupFlagGroups(t *testing.T) {
	cfg := NewConfig()
	fs := cli.NewFlagSet("gpan")
	cfg.SetupFlagGroups(fs)
	require.NoError(t, fs.Parse([]string{"-Wno-all", "-WUndeclaredMethod", "-Fnull-casting", "a.json"}))

	cfg.ProcessFlags(func(fn func(string)) {
		fs.Visit(func(f *cli.Flag) { fn(f.Name) })
	})
	assert.True(t, cfg.IsIssueEnabled(issue.UndeclaredMethod))
	assert.False(t, cfg.IsIssueEnabled(issue.UndeclaredClass))
	assert.True(t, cfg.IsFeatureEnabled(FeatNullCasting))
	assert.Equal(t, []string{"a.json"}, fs.Args())
	assert.NotNil(t, fs.Lookup("Fno-magic-methods"))

	err := fs.Parse([]string{"-Wno-NoSuchIssue"})
	require.Error(t, err)
	assert.Equal(t, "unknown issue 'NoSuchIssue' in -Wno-NoSuchIssue", err.Error())
	err = fs.Parse([]string{"-Fstrict-types"})
	require.Error(t, err)
	assert.Equal(t, "unknown feature 'strict-types' in -Fstrict-types", err.Error())
}
