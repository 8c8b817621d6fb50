package issue

import (
	"fmt"
	"io"

	"github.com/francoispqt/gojay"
	"github.com/pkg/errors"
)

const (
	FormatText = "text"
	FormatJSON = "json"
)

var severityColors = map[Severity]string{
	SeverityLow:      "\033[36m",
	SeverityNormal:   "\033[33m",
	SeverityCritical: "\033[31m",
}

// FormatLine renders one issue as `file:line: severity: message [Kind]`.
func FormatLine(is Issue, color bool) string {
	sev := is.Severity().String()
	if color {
		sev = severityColors[is.Severity()] + sev + "\033[0m"
	}
	return fmt.Sprintf("%s:%d: %s: %s [%s]", is.File, is.Line, sev, is.Message(), is.Kind)
}

// Print writes issues in the given format.
func Print(w io.Writer, issues []Issue, format string, color bool) error {
	switch format {
	case FormatText, "":
		for _, is := range issues {
			if _, err := fmt.Fprintln(w, FormatLine(is, color)); err != nil {
				return err
			}
		}
		return nil
	case FormatJSON:
		enc := gojay.NewEncoder(w)
		defer enc.Release()
		if err := enc.EncodeArray(jsonIssues(issues)); err != nil {
			return errors.Wrap(err, "encoding issues")
		}
		_, err := io.WriteString(w, "\n")
		return err
	}
	return errors.Errorf("unknown output format %q", format)
}

type jsonIssues []Issue

func (l jsonIssues) MarshalJSONArray(enc *gojay.Encoder) {
	for _, is := range l {
		enc.AddObject(jsonIssue(is))
	}
}

func (l jsonIssues) IsNil() bool { return l == nil }

type jsonIssue Issue

func (j jsonIssue) MarshalJSONObject(enc *gojay.Encoder) {
	is := Issue(j)
	enc.StringKey("type", is.Kind.String())
	enc.StringKey("severity", is.Severity().String())
	enc.StringKey("file", is.File)
	enc.IntKey("line", is.Line)
	enc.StringKey("message", is.Message())
	enc.ArrayKey("args", jsonStrings(is.Args))
	enc.StringKeyOmitEmpty("suggestion", is.Suggestion)
	enc.StringKey("fingerprint", fmt.Sprintf("%016x", Fingerprint(is)))
}

func (j jsonIssue) IsNil() bool { return false }

type jsonStrings []string

func (s jsonStrings) MarshalJSONArray(enc *gojay.Encoder) {
	for _, v := range s {
		enc.AddString(v)
	}
}

func (s jsonStrings) IsNil() bool { return false }
