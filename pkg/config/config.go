package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/xplshn/gpan/pkg/cli"
	"github.com/xplshn/gpan/pkg/issue"
	"github.com/xplshn/gpan/pkg/types"
)

type Feature int

const (
	FeatNullCasting Feature = iota
	FeatDynamicProperties
	FeatGlobalFallback
	FeatScalarImplicitCast
	FeatMagicMethods
	FeatTraitRealReturn
	FeatCount
)

type Info struct {
	Name        string
	Enabled     bool
	Description string
}

type Config struct {
	Features    map[Feature]Info
	Issues      map[issue.Kind]Info
	FeatureMap  map[string]Feature
	IssueMap    map[string]issue.Kind
	Level       string
	MinSeverity issue.Severity
	Jobs        int
	Baseline    string
}

// DefaultFile is looked up in the working directory when no -c flag is given.
const DefaultFile = ".gpan.yaml"

func NewConfig() *Config {
	cfg := &Config{
		Features:   make(map[Feature]Info),
		Issues:     make(map[issue.Kind]Info),
		FeatureMap: make(map[string]Feature),
		IssueMap:   make(map[string]issue.Kind),
		Level:      "normal",
	}

	features := map[Feature]Info{
		FeatNullCasting:        {"null-casting", false, "Let null cast to and from any type."},
		FeatDynamicProperties:  {"dynamic-properties", false, "Allow writes to undeclared properties, creating them."},
		FeatGlobalFallback:     {"global-fallback", true, "Resolve unqualified functions and constants in the global namespace when not declared locally."},
		FeatScalarImplicitCast: {"scalar-implicit-cast", false, "Let scalar types cast to each other implicitly."},
		FeatMagicMethods:       {"magic-methods", true, "Resolve undeclared members through __call, __callStatic, __get and __set."},
		FeatTraitRealReturn:    {"trait-real-return", true, "For trait methods, trust the declared return type over the doc comment."},
	}

	cfg.Features = features
	for ft, info := range features {
		cfg.FeatureMap[info.Name] = ft
	}
	for k := issue.Kind(0); k < issue.KindCount; k++ {
		info := k.Info()
		cfg.Issues[k] = Info{info.Name, true, info.Template}
		cfg.IssueMap[strings.ToLower(info.Name)] = k
	}
	return cfg
}

func (c *Config) SetFeature(ft Feature, enabled bool) {
	if info, ok := c.Features[ft]; ok {
		info.Enabled = enabled
		c.Features[ft] = info
	}
}

func (c *Config) IsFeatureEnabled(ft Feature) bool { return c.Features[ft].Enabled }

func (c *Config) SetIssue(k issue.Kind, enabled bool) {
	if info, ok := c.Issues[k]; ok {
		info.Enabled = enabled
		c.Issues[k] = info
	}
}

func (c *Config) IsIssueEnabled(k issue.Kind) bool { return c.Issues[k].Enabled }

// CastOptions returns the cast rules the enabled features ask for.
func (c *Config) CastOptions() types.CastOptions {
	return types.CastOptions{
		NullCasting:        c.IsFeatureEnabled(FeatNullCasting),
		ScalarImplicitCast: c.IsFeatureEnabled(FeatScalarImplicitCast),
	}
}

// IssueFilter keeps issues that are enabled and at least MinSeverity.
func (c *Config) IssueFilter() func(issue.Issue) bool {
	return func(is issue.Issue) bool {
		return c.IsIssueEnabled(is.Kind) && is.Severity() >= c.MinSeverity
	}
}

func (c *Config) ApplyLevel(level string) error {
	type levelSettings struct {
		feature Feature
		strict  bool
		normal  bool
		lax     bool
	}

	settings := []levelSettings{
		{FeatNullCasting, false, false, true},
		{FeatDynamicProperties, false, false, true},
		{FeatScalarImplicitCast, false, false, true},
		{FeatMagicMethods, true, true, true},
		{FeatGlobalFallback, true, true, true},
	}

	switch level {
	case "strict":
		for _, s := range settings {
			c.SetFeature(s.feature, s.strict)
		}
		c.MinSeverity = issue.SeverityLow
		c.SetIssue(issue.PossiblyUndefinedVariable, true)
		c.SetIssue(issue.RedundantCondition, true)
		c.SetIssue(issue.ImpossibleCondition, true)
	case "normal":
		for _, s := range settings {
			c.SetFeature(s.feature, s.normal)
		}
		c.MinSeverity = issue.SeverityLow
		c.SetIssue(issue.PossiblyUndefinedVariable, true)
		c.SetIssue(issue.RedundantCondition, false)
		c.SetIssue(issue.ImpossibleCondition, false)
	case "lax":
		for _, s := range settings {
			c.SetFeature(s.feature, s.lax)
		}
		c.MinSeverity = issue.SeverityNormal
		c.SetIssue(issue.PossiblyUndefinedVariable, false)
		c.SetIssue(issue.RedundantCondition, false)
		c.SetIssue(issue.ImpossibleCondition, false)
	default:
		return fmt.Errorf("unsupported level '%s'. Supported: 'strict', 'normal', 'lax'", level)
	}
	c.Level = level
	return nil
}

func (c *Config) applyFlag(flag string) {
	trimmed := strings.TrimPrefix(flag, "-")
	isNo := strings.HasPrefix(trimmed, "Wno-") || strings.HasPrefix(trimmed, "Fno-")
	enable := !isNo

	var name string
	var isIssue bool

	switch {
	case strings.HasPrefix(trimmed, "W"):
		name = strings.TrimPrefix(trimmed, "W")
		if isNo {
			name = strings.TrimPrefix(name, "no-")
		}
		isIssue = true
	case strings.HasPrefix(trimmed, "F"):
		name = strings.TrimPrefix(trimmed, "F")
		if isNo {
			name = strings.TrimPrefix(name, "no-")
		}
	default:
		name = trimmed
		isIssue = true
	}

	if name == "all" && isIssue {
		for k := issue.Kind(0); k < issue.KindCount; k++ {
			c.SetIssue(k, enable)
		}
		return
	}

	if isIssue {
		if k, ok := c.IssueMap[strings.ToLower(name)]; ok {
			c.SetIssue(k, enable)
		}
	} else {
		if f, ok := c.FeatureMap[name]; ok {
			c.SetFeature(f, enable)
		}
	}
}

// ProcessFlags applies -W/-F flags, with -Wall and -Wno-all first so specific flags win.
func (c *Config) ProcessFlags(visitFlag func(fn func(name string))) {
	visitFlag(func(name string) {
		if name == "Wall" || name == "Wno-all" {
			c.applyFlag("-" + name)
		}
	})
	visitFlag(func(name string) {
		if name != "Wall" && name != "Wno-all" {
			c.applyFlag("-" + name)
		}
	})
}

// SetupFlagGroups defines -W<issue>, -F<feature> and their -no- forms on fs, plus
// -Wall and -Wno-all. The help page marks what is enabled when it is called.
func (c *Config) SetupFlagGroups(fs *cli.FlagSet) {
	issues := make([]cli.Toggle, 0, len(c.Issues))
	for k := issue.Kind(0); k < issue.KindCount; k++ {
		info := c.Issues[k]
		issues = append(issues, cli.Toggle{
			Name:    info.Name,
			Usage:   fmt.Sprintf("%s (%s)", info.Description, k.Info().Severity),
			Default: info.Enabled,
		})
	}
	fs.AddToggles(cli.ToggleGroup{Title: "Issues", Prefix: "W", Noun: "issue", All: true, Toggles: issues})

	features := make([]cli.Toggle, 0, len(c.Features))
	for ft := Feature(0); ft < FeatCount; ft++ {
		info := c.Features[ft]
		features = append(features, cli.Toggle{Name: info.Name, Usage: info.Description, Default: info.Enabled})
	}
	fs.AddToggles(cli.ToggleGroup{Title: "Features", Prefix: "F", Noun: "feature", Toggles: features})
}

// File is the on-disk form of a configuration.
type File struct {
	Level           string          `yaml:"level"`
	Features        map[string]bool `yaml:"features"`
	Issues          map[string]bool `yaml:"issues"`
	Suppress        []string        `yaml:"suppress"`
	MinimumSeverity string          `yaml:"minimum_severity"`
	Jobs            int             `yaml:"jobs"`
	Baseline        string          `yaml:"baseline"`
}

// LoadFile reads a YAML configuration and applies it.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "reading config")
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return errors.Wrapf(err, "parsing %s", path)
	}
	return errors.Wrap(c.ApplyFile(f), path)
}

// ApplyFile applies f: the level first, then individual features and issues.
func (c *Config) ApplyFile(f File) error {
	if f.Level != "" {
		if err := c.ApplyLevel(f.Level); err != nil {
			return err
		}
	}
	for _, name := range sortedKeys(f.Features) {
		ft, ok := c.FeatureMap[name]
		if !ok {
			return errors.Errorf("unknown feature %q", name)
		}
		c.SetFeature(ft, f.Features[name])
	}
	for _, name := range sortedKeys(f.Issues) {
		k, ok := c.IssueMap[strings.ToLower(name)]
		if !ok {
			return errors.Errorf("unknown issue %q", name)
		}
		c.SetIssue(k, f.Issues[name])
	}
	for _, name := range f.Suppress {
		k, ok := c.IssueMap[strings.ToLower(name)]
		if !ok {
			return errors.Errorf("unknown issue %q", name)
		}
		c.SetIssue(k, false)
	}
	if f.MinimumSeverity != "" {
		sev, ok := issue.ParseSeverity(f.MinimumSeverity)
		if !ok {
			return errors.Errorf("unknown severity %q", f.MinimumSeverity)
		}
		c.MinSeverity = sev
	}
	if f.Jobs > 0 {
		c.Jobs = f.Jobs
	}
	if f.Baseline != "" {
		c.Baseline = f.Baseline
	}
	return nil
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
