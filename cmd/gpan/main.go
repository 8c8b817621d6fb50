package main

import (
	"io"
	"os"
	"runtime"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/pkg/errors"
	"golang.org/x/term"

	"github.com/xplshn/gpan/pkg/ast"
	"github.com/xplshn/gpan/pkg/cli"
	"github.com/xplshn/gpan/pkg/codebase"
	"github.com/xplshn/gpan/pkg/config"
	"github.com/xplshn/gpan/pkg/issue"
	"github.com/xplshn/gpan/pkg/typeChecker"
	"github.com/xplshn/gpan/pkg/util"
)

var errIssuesFound = errors.New("issues found")

func main() {
	app := cli.NewApp("gpan")
	app.Synopsis = "[options] <file.json> ..."
	app.Description = "A type checker for PHP-like code that reads syntax trees serialized as JSON. It infers variable types across branches and reports references that do not resolve and values that do not fit their declared types."
	app.Authors = []string{"xplshn"}
	app.Repository = "<https://github.com/xplshn/gpan>"
	app.Since = 2025

	var (
		outFile      string
		configFile   string
		level        string
		format       string
		baseline     string
		saveBaseline string
		jobs         int
		dumpTypes    bool
		noColor      bool
	)

	fs := app.FlagSet
	fs.Section("Analysis")
	fs.String(&configFile, "config", "c", "", "Read configuration from <file>. Defaults to "+config.DefaultFile+" when present.", "file")
	fs.Choice(&level, "level", "", "", []string{"strict", "normal", "lax"}, "Set the analysis level.")
	fs.Int(&jobs, "jobs", "j", 0, "Analyze with <n> parallel workers. Defaults to the number of CPUs.", "n")
	fs.Bool(&dumpTypes, "dump-types", "d", false, "Print the inferred variable types of every function body.")

	fs.Section("Output")
	fs.String(&outFile, "output", "o", "", "Write issues to <file> instead of stdout.", "file")
	fs.Choice(&format, "format", "f", issue.FormatText, []string{issue.FormatText, issue.FormatJSON}, "Set the output format.")
	fs.Bool(&noColor, "no-color", "", false, "Disable colored output.")

	fs.Section("Baseline")
	fs.String(&baseline, "baseline", "b", "", "Suppress the issues recorded in <file>.", "file")
	fs.String(&saveBaseline, "save-baseline", "", "", "Record every issue found to <file> and exit.", "file")

	cfg := config.NewConfig()
	cfg.SetupFlagGroups(fs)

	app.Action = func(inputFiles []string) error {
		util.SetColor(!noColor && term.IsTerminal(int(os.Stderr.Fd())))

		// Configuration file first, then the level, then individual -W/-F flags
		if err := loadConfig(cfg, configFile); err != nil {
			util.Fatal("%v", err)
		}
		if level != "" {
			if err := cfg.ApplyLevel(level); err != nil {
				util.Fatal("%v", err)
			}
		}
		cfg.ProcessFlags(func(fn func(name string)) {
			fs.Visit(func(f *cli.Flag) {
				if strings.HasPrefix(f.Name, "W") || strings.HasPrefix(f.Name, "F") {
					fn(f.Name)
				}
			})
		})

		if len(inputFiles) == 0 {
			util.Fatal("no input files specified.")
		}
		if jobs <= 0 {
			jobs = cfg.Jobs
		}
		if jobs <= 0 {
			jobs = runtime.NumCPU()
		}
		if baseline == "" {
			baseline = cfg.Baseline
		}

		files := loadFiles(inputFiles)
		if len(files) == 0 {
			util.Fatal("none of the input files could be loaded.")
		}

		var w io.Writer = os.Stdout
		color := !noColor && term.IsTerminal(int(os.Stdout.Fd()))
		if outFile != "" {
			f, err := os.Create(outFile)
			if err != nil {
				util.Fatal("could not create '%s': %v", outFile, err)
			}
			defer f.Close()
			w, color = f, false
		}

		util.Info("analyzing %d file(s) with %d worker(s) at level '%s'", len(files), jobs, cfg.Level)
		var dump io.Writer
		if dumpTypes {
			dump = w
		}
		issues := analyze(files, cfg, jobs, dump)

		if saveBaseline != "" {
			if err := issue.NewBaseline(issues).Save(saveBaseline); err != nil {
				util.Fatal("%v", err)
			}
			util.Info("recorded %d issue(s) in '%s'", len(issues), saveBaseline)
			return nil
		}
		if baseline != "" {
			b, err := issue.LoadBaseline(baseline)
			if err != nil {
				util.Fatal("%v", err)
			}
			issues = b.Filter(issues)
		}

		if err := issue.Print(w, issues, format, color); err != nil {
			util.Fatal("%v", err)
		}
		if len(issues) > 0 {
			util.Info("%d issue(s) found", len(issues))
			return errIssuesFound
		}
		return nil
	}

	if err := app.Run(os.Args[1:]); err != nil {
		os.Exit(1)
	}
}

func loadConfig(cfg *config.Config, path string) error {
	if path == "" {
		if _, err := os.Stat(config.DefaultFile); err != nil {
			return nil
		}
		path = config.DefaultFile
	}
	return cfg.LoadFile(path)
}

type sourceFile struct {
	index int
	path  string
	root  *ast.Node
}

// loadFiles decodes every input, skipping files that fail to load and files whose
// content is identical to one already loaded.
func loadFiles(paths []string) []sourceFile {
	var files []sourceFile
	seen := make(map[uint64]string)
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			util.Error(path, "could not read file: %v", err)
			continue
		}
		sum := xxhash.Sum64(data)
		if first, ok := seen[sum]; ok {
			util.Warn(path, "identical to '%s', skipping", first)
			continue
		}
		seen[sum] = path
		root, err := ast.Decode(data)
		if err != nil {
			util.Error(path, "%v", err)
			continue
		}
		files = append(files, sourceFile{index: len(files), path: path, root: root})
	}
	return files
}

// analyze collects every file into one CodeBase, then analyzes the files with jobs
// workers. Each worker has its own TypeChecker; the CodeBase is only read once
// Finalize has returned.
func analyze(files []sourceFile, cfg *config.Config, jobs int, dump io.Writer) []issue.Issue {
	builtins, err := codebase.LoadBuiltins()
	if err != nil {
		util.Fatal("loading builtins: %v", err)
	}
	cb := codebase.New()
	builtins.Install(cb)
	sink := issue.NewCollector(cfg.IssueFilter())

	collector := typeChecker.NewTypeChecker(cb, builtins, cfg, sink)
	for _, f := range files {
		collector.Collect(f.path, f.root)
	}
	collector.Finalize()
	classes, functions, constants := cb.Stats()
	util.Info("codebase has %d class(es), %d function(s) and %d constant(s)", classes, functions, constants)

	dumps := make([]string, len(files))
	work := make(chan sourceFile)
	var wg sync.WaitGroup
	for i := 0; i < jobs; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tc := typeChecker.NewTypeChecker(cb, builtins, cfg, sink)
			for f := range work {
				var buf strings.Builder
				if dump != nil {
					tc.SetDumpTypes(&buf)
				}
				if err := tc.Analyze(f.path, f.root); err != nil {
					util.Warn(f.path, "analysis aborted: %v", err)
				}
				dumps[f.index] = buf.String()
			}
		}()
	}
	for _, f := range files {
		work <- f
	}
	close(work)
	wg.Wait()

	if dump != nil {
		for _, d := range dumps {
			io.WriteString(dump, d)
		}
	}
	return sink.Issues()
}
