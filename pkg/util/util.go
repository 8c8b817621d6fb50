package util

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
)

var (
	stderr   io.Writer = os.Stderr
	useColor           = true
)

// SetOutput redirects log output; the default is os.Stderr
func SetOutput(w io.Writer) { stderr = w }

// SetColor toggles ANSI colors in log output
func SetColor(enabled bool) { useColor = enabled }

func paint(code, s string) string {
	if !useColor {
		return s
	}
	return "\033[" + code + "m" + s + "\033[0m"
}

// Info prints a status message
func Info(format string, args ...interface{}) {
	fmt.Fprintf(stderr, "%s ", paint("36", "info:"))
	fmt.Fprintf(stderr, format, args...)
	fmt.Fprintln(stderr)
}

// Warn prints a warning about a file, or about the run when file is empty
func Warn(file string, format string, args ...interface{}) {
	if file != "" {
		fmt.Fprintf(stderr, "%s: ", file)
	}
	fmt.Fprintf(stderr, "%s ", paint("33", "warning:"))
	fmt.Fprintf(stderr, format, args...)
	fmt.Fprintln(stderr)
}

// Error prints an error about a file without stopping the run
func Error(file string, format string, args ...interface{}) {
	if file != "" {
		fmt.Fprintf(stderr, "%s: ", file)
	}
	fmt.Fprintf(stderr, "%s ", paint("31", "error:"))
	fmt.Fprintf(stderr, format, args...)
	fmt.Fprintln(stderr)
}

// Fatal prints a formatted error message and exits the program
func Fatal(format string, args ...interface{}) {
	Error("", format, args...)
	os.Exit(1)
}

// Suggest returns the candidate closest to name, ignoring case, when it is close
// enough to be a plausible typo. Ties go to the candidate that sorts first.
func Suggest(name string, candidates []string) (string, bool) {
	if name == "" || len(candidates) == 0 {
		return "", false
	}
	sorted := append([]string(nil), candidates...)
	sort.Strings(sorted)

	lower := strings.ToLower(name)
	limit := 1 + len(name)/4
	best, bestDist := "", limit+1
	for _, c := range sorted {
		if c == name {
			continue
		}
		d := levenshtein.ComputeDistance(lower, strings.ToLower(c))
		if d < bestDist {
			best, bestDist = c, d
		}
	}
	return best, best != ""
}
