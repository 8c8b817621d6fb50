// gtest runs the analyzer over a directory of serialized syntax trees and compares
// what it reports with golden files recorded earlier.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"

	"github.com/xplshn/gpan/pkg/cli"
	"github.com/xplshn/gpan/pkg/util"
)

type Execution struct {
	Stdout   string        `json:"stdout"`
	Stderr   string        `json:"stderr,omitempty"`
	ExitCode int           `json:"exitCode"`
	Duration time.Duration `json:"duration"`
	TimedOut bool          `json:"timed_out,omitempty"`
}

type FileTestResult struct {
	File    string     `json:"file"`
	Hash    string     `json:"hash,omitempty"`
	Status  string     `json:"status"` // PASS, FAIL, SKIP, ERROR
	Message string     `json:"message,omitempty"`
	Diff    string     `json:"diff,omitempty"`
	Golden  *Execution `json:"golden,omitempty"`
	Target  *Execution `json:"target,omitempty"`
}

type TestSuiteResults map[string]*FileTestResult

type options struct {
	target      string
	targetArgs  string
	testFiles   string
	skipFiles   string
	jsonDir     string
	output      string
	ignoreLines string
	timeout     time.Duration
	jobs        int
	generate    bool
	verbose     bool
}

const (
	cRed    = "\x1b[91m"
	cYellow = "\x1b[93m"
	cGreen  = "\x1b[92m"
	cCyan   = "\x1b[96m"
	cBold   = "\x1b[1m"
	cNone   = "\x1b[0m"
)

func main() {
	app := cli.NewApp("gtest")
	app.Synopsis = "[options]"
	app.Description = "Runs the analyzer on every matching syntax tree and compares its report with the golden file recorded next to it."
	app.Authors = []string{"xplshn"}
	app.Since = 2025

	var opts options
	fs := app.FlagSet
	fs.Section("Analyzer")
	fs.String(&opts.target, "target", "t", "./gpan", "Path to the analyzer to test.", "path")
	fs.String(&opts.targetArgs, "target-args", "", "-j1 --no-color", "Arguments for the analyzer (space-separated).", "args")
	fs.Duration(&opts.timeout, "timeout", "", 10*time.Second, "Timeout for each analyzer run.")

	fs.Section("Test files")
	fs.String(&opts.testFiles, "test-files", "", "tests/*.json", "Glob pattern(s) for files to test (space-separated).", "glob")
	fs.String(&opts.skipFiles, "skip-files", "", "", "Files to skip (space-separated).", "files")
	fs.String(&opts.jsonDir, "dir", "", "", "Directory to store/read golden files (defaults to the tested file's dir).", "dir")
	fs.Int(&opts.jobs, "jobs", "j", 4, "Number of parallel test jobs.", "n")

	fs.Section("Results")
	fs.Bool(&opts.generate, "generate-golden", "g", false, "Record golden files instead of comparing against them.")
	fs.String(&opts.ignoreLines, "ignore-lines", "", "", "Comma-separated substrings of output lines to ignore when comparing.", "list")
	fs.String(&opts.output, "output", "o", ".test_results.json", "Output file for the JSON test report.", "file")
	fs.Bool(&opts.verbose, "verbose", "v", false, "Print timings for passing tests.")

	app.Action = func(args []string) error {
		if opts.jobs < 1 {
			opts.jobs = 1
		}
		setupInterruptHandler()

		patterns := opts.testFiles
		if len(args) > 0 {
			patterns = strings.Join(args, " ")
		}
		files, err := expandGlobPatterns(patterns)
		if err != nil {
			util.Fatal("invalid glob pattern(s): %v", err)
		}
		if len(files) == 0 {
			util.Info("no test files found matching the pattern(s).")
			return nil
		}

		r := &runner{opts: opts, timeout: opts.timeout}
		results := r.run(files)
		printSummary(os.Stdout, results, opts.verbose)
		resultsMap := writeJSONReport(results, opts)
		if hasFailures(resultsMap) {
			return errors.New("test failures")
		}
		return nil
	}

	if err := app.Run(os.Args[1:]); err != nil {
		os.Exit(1)
	}
}

func setupInterruptHandler() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	go func() {
		<-c
		fmt.Printf("\n%s[INTERRUPT]%s Test run cancelled.\n", cYellow, cNone)
		os.Exit(1)
	}()
}

type runner struct {
	opts    options
	timeout time.Duration
}

func (r *runner) goldenPath(file string) string {
	name := "." + strings.TrimSuffix(filepath.Base(file), ".json") + ".json"
	if r.opts.jsonDir != "" {
		return filepath.Join(r.opts.jsonDir, name)
	}
	return filepath.Join(filepath.Dir(file), name)
}

// run tests files with a pool of workers. Files whose content is identical to an
// earlier one are skipped.
func (r *runner) run(files []string) []*FileTestResult {
	skipList := make(map[string]bool)
	for _, f := range strings.Fields(r.opts.skipFiles) {
		if abs, err := filepath.Abs(f); err == nil {
			skipList[abs] = true
		}
		skipList[f] = true
	}

	type task struct{ file, hash string }
	tasks := make(chan task, len(files))
	resultsChan := make(chan *FileTestResult, len(files))
	var wg sync.WaitGroup
	for i := 0; i < r.opts.jobs; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range tasks {
				res := r.testFile(t.file)
				res.Hash = t.hash
				resultsChan <- res
			}
		}()
	}

	seenHashes := make(map[uint64]string)
	for _, file := range files {
		if skipList[file] {
			resultsChan <- &FileTestResult{File: file, Status: "SKIP", Message: "Explicitly skipped"}
			continue
		}
		data, err := os.ReadFile(file)
		if err != nil {
			resultsChan <- &FileTestResult{File: file, Status: "ERROR", Message: fmt.Sprintf("Failed to read file: %v", err)}
			continue
		}
		sum := xxhash.Sum64(data)
		if originalFile, seen := seenHashes[sum]; seen {
			resultsChan <- &FileTestResult{File: file, Status: "SKIP", Message: fmt.Sprintf("Content is identical to %s", originalFile)}
			continue
		}
		seenHashes[sum] = file
		tasks <- task{file, fmt.Sprintf("%016x", sum)}
	}
	close(tasks)
	wg.Wait()
	close(resultsChan)

	var results []*FileTestResult
	for res := range resultsChan {
		results = append(results, res)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].File < results[j].File })
	return results
}

func (r *runner) testFile(file string) *FileTestResult {
	target := r.analyze(file)
	goldenFile := r.goldenPath(file)

	if r.opts.generate {
		if err := writeGolden(goldenFile, target); err != nil {
			return &FileTestResult{File: file, Status: "ERROR", Message: err.Error(), Target: &target}
		}
		return &FileTestResult{File: file, Status: "PASS", Message: "Golden file written to " + goldenFile, Target: &target}
	}

	golden, err := readGolden(goldenFile)
	if os.IsNotExist(errors.Cause(err)) {
		return &FileTestResult{File: file, Status: "SKIP", Message: "Cannot test without a corresponding golden file", Target: &target}
	}
	if err != nil {
		return &FileTestResult{File: file, Status: "ERROR", Message: err.Error()}
	}
	return compareResults(file, golden, &target, splitIgnored(r.opts.ignoreLines))
}

// analyze runs the target on file. Paths in the output are reduced to the file's
// base name so golden files do not depend on where the tests are checked out.
func (r *runner) analyze(file string) Execution {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	args := append(strings.Fields(r.opts.targetArgs), file)
	res := executeCommand(ctx, r.opts.target, args...)
	res.Stdout = strings.ReplaceAll(res.Stdout, file, filepath.Base(file))
	res.Stderr = strings.ReplaceAll(res.Stderr, file, filepath.Base(file))
	return res
}

func executeCommand(ctx context.Context, command string, args ...string) Execution {
	startTime := time.Now()
	cmd := exec.CommandContext(ctx, command, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Execution{Stdout: stdout.String(), Stderr: stderr.String(), Duration: time.Since(startTime)}

	switch {
	case ctx.Err() == context.DeadlineExceeded:
		res.TimedOut = true
		res.ExitCode = -1
	case err != nil:
		if exitErr, ok := err.(*exec.ExitError); ok {
			res.ExitCode = exitErr.ExitCode()
		} else {
			res.ExitCode = -2
			res.Stderr += "\nExecution error: " + err.Error()
		}
	}
	return res
}

func writeGolden(path string, res Execution) error {
	res.Duration = 0
	res.Stderr = ""
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encoding golden file")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "creating %s", filepath.Dir(path))
	}
	return errors.Wrapf(os.WriteFile(path, data, 0o644), "writing %s", path)
}

func readGolden(path string) (*Execution, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	var res Execution
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, errors.Wrapf(err, "could not parse golden file %s", path)
	}
	return &res, nil
}

func splitIgnored(list string) []string {
	if list == "" {
		return nil
	}
	return strings.Split(list, ",")
}

func compareResults(file string, golden, target *Execution, ignored []string) *FileTestResult {
	res := &FileTestResult{File: file, Golden: golden, Target: target}
	if target.TimedOut {
		res.Status, res.Message = "FAIL", "Analyzer timed out"
		return res
	}

	var diffs strings.Builder
	if golden.ExitCode != target.ExitCode {
		fmt.Fprintf(&diffs, "Exit code mismatch:\n  - Golden: %d\n  - Target: %d\n", golden.ExitCode, target.ExitCode)
	}
	want, got := filterOutput(golden.Stdout, ignored), filterOutput(target.Stdout, ignored)
	if d := cmp.Diff(strings.Split(want, "\n"), strings.Split(got, "\n")); d != "" {
		fmt.Fprintf(&diffs, "STDOUT mismatch:\n%s", d)
	}

	if diffs.Len() > 0 {
		res.Status, res.Message, res.Diff = "FAIL", "Report differs from the golden file", diffs.String()
		return res
	}
	res.Status, res.Message = "PASS", "Report matches the golden file"
	return res
}

func filterOutput(output string, ignoredSubstrings []string) string {
	if len(ignoredSubstrings) == 0 || output == "" {
		return output
	}
	lines := strings.Split(output, "\n")
	filtered := make([]string, 0, len(lines))
	for _, line := range lines {
		ignore := false
		for _, sub := range ignoredSubstrings {
			if sub != "" && strings.Contains(line, sub) {
				ignore = true
				break
			}
		}
		if !ignore {
			filtered = append(filtered, line)
		}
	}
	return strings.Join(filtered, "\n")
}

func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%6dµs", d.Microseconds())
	}
	return fmt.Sprintf("%6dms", d.Milliseconds())
}

func printSummary(w io.Writer, results []*FileTestResult, verbose bool) {
	var passed, failed, skipped, errored int
	var total time.Duration
	var timed int

	for _, result := range results {
		fmt.Fprintln(w, "----------------------------------------------------------------------")
		fmt.Fprintf(w, "Testing %s%s%s...\n", cCyan, result.File, cNone)

		switch result.Status {
		case "PASS":
			passed++
			fmt.Fprintf(w, "  [%sPASS%s] %s\n", cGreen, cNone, result.Message)
			if verbose && result.Target != nil {
				fmt.Fprintf(w, "  [analysis: %s]\n", formatDuration(result.Target.Duration))
			}
		case "FAIL":
			failed++
			fmt.Fprintf(w, "  [%sFAIL%s] %s\n", cRed, cNone, result.Message)
			fmt.Fprintln(w, formatDiff(result.Diff))
		case "SKIP":
			skipped++
			fmt.Fprintf(w, "  [%sSKIP%s] %s\n", cYellow, cNone, result.Message)
		case "ERROR":
			errored++
			fmt.Fprintf(w, "  [%sERROR%s] %s\n", cRed, cNone, result.Message)
		}
		if result.Target != nil {
			total += result.Target.Duration
			timed++
		}
	}

	fmt.Fprintln(w, "----------------------------------------------------------------------")
	fmt.Fprintf(w, "%sTest Summary:%s %s%d Passed%s, %s%d Failed%s, %s%d Skipped%s, %s%d Errored%s, %d Total\n",
		cBold, cNone, cGreen, passed, cNone, cRed, failed, cNone, cYellow, skipped, cNone, cRed, errored, cNone, len(results))
	if timed > 0 {
		fmt.Fprintf(w, "Average analysis time: %s\n", strings.TrimSpace(formatDuration(total/time.Duration(timed))))
	}
}

func formatDiff(diff string) string {
	if diff == "" {
		return ""
	}
	var builder strings.Builder
	builder.WriteString("    --- Diff ---\n")
	for _, line := range strings.Split(diff, "\n") {
		trimmedLine := strings.TrimSpace(line)
		if strings.HasPrefix(trimmedLine, "-") {
			builder.WriteString(cRed)
		} else if strings.HasPrefix(trimmedLine, "+") {
			builder.WriteString(cGreen)
		}
		builder.WriteString("    " + line)
		builder.WriteString(cNone)
		builder.WriteString("\n")
	}
	return builder.String()
}

func writeJSONReport(results []*FileTestResult, opts options) TestSuiteResults {
	resultsMap := make(TestSuiteResults, len(results))
	for _, r := range results {
		resultsMap[r.File] = r
	}

	jsonData, err := json.MarshalIndent(resultsMap, "", "  ")
	if err != nil {
		util.Error("", "failed to marshal results to JSON: %v", err)
		return resultsMap
	}

	outputFile := opts.output
	if opts.jsonDir != "" {
		if err := os.MkdirAll(opts.jsonDir, 0o755); err != nil {
			util.Error("", "failed to create dir %s: %v", opts.jsonDir, err)
		}
		outputFile = filepath.Join(opts.jsonDir, opts.output)
	}
	if err := os.WriteFile(outputFile, jsonData, 0o644); err != nil {
		util.Error(outputFile, "failed to write JSON report: %v", err)
	} else {
		fmt.Printf("Full test report saved to %s\n", outputFile)
	}
	return resultsMap
}

func hasFailures(results TestSuiteResults) bool {
	for _, result := range results {
		if result.Status == "FAIL" || result.Status == "ERROR" {
			return true
		}
	}
	return false
}

func expandGlobPatterns(patterns string) ([]string, error) {
	var allFiles []string
	seen := make(map[string]bool)
	for _, pattern := range strings.Fields(patterns) {
		files, err := filepath.Glob(pattern)
		if err != nil {
			return nil, errors.Wrapf(err, "bad pattern %s", pattern)
		}
		for _, file := range files {
			absFile, err := filepath.Abs(file)
			if err != nil {
				continue
			}
			if seen[absFile] || strings.HasPrefix(filepath.Base(absFile), ".") {
				continue
			}
			if info, err := os.Stat(absFile); err == nil && info.Mode().IsRegular() {
				allFiles = append(allFiles, absFile)
				seen[absFile] = true
			}
		}
	}
	return allFiles, nil
}
