package issue

import (
	"fmt"
	"os"
	"sort"

	"github.com/cespare/xxhash/v2"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Fingerprint identifies an issue independently of its line, so a baseline survives
// unrelated edits to the file.
func Fingerprint(is Issue) uint64 {
	d := xxhash.New()
	d.WriteString(is.Kind.String())
	d.WriteString("\x00")
	d.WriteString(is.File)
	for _, a := range is.Args {
		d.WriteString("\x00")
		d.WriteString(a)
	}
	return d.Sum64()
}

// Baseline is a multiset of accepted issue fingerprints.
type Baseline struct {
	counts map[uint64]int
	info   map[uint64]baselineEntry
}

type baselineFile struct {
	Version int             `yaml:"version"`
	Issues  []baselineEntry `yaml:"issues"`
}

type baselineEntry struct {
	Fingerprint string `yaml:"fingerprint"`
	Kind        string `yaml:"kind"`
	File        string `yaml:"file"`
	Count       int    `yaml:"count,omitempty"`
}

func NewBaseline(issues []Issue) *Baseline {
	b := &Baseline{counts: map[uint64]int{}, info: map[uint64]baselineEntry{}}
	for _, is := range issues {
		fp := Fingerprint(is)
		b.counts[fp]++
		b.info[fp] = baselineEntry{Kind: is.Kind.String(), File: is.File}
	}
	return b
}

func (b *Baseline) Len() int {
	n := 0
	for _, c := range b.counts {
		n += c
	}
	return n
}

// Filter returns the issues not covered by the baseline. Each baseline entry absorbs
// as many issues as it was recorded with.
func (b *Baseline) Filter(issues []Issue) []Issue {
	remaining := make(map[uint64]int, len(b.counts))
	for fp, c := range b.counts {
		remaining[fp] = c
	}
	var out []Issue
	for _, is := range issues {
		fp := Fingerprint(is)
		if remaining[fp] > 0 {
			remaining[fp]--
			continue
		}
		out = append(out, is)
	}
	return out
}

func LoadBaseline(path string) (*Baseline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading baseline")
	}
	var f baselineFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrapf(err, "parsing baseline %s", path)
	}
	b := &Baseline{counts: map[uint64]int{}, info: map[uint64]baselineEntry{}}
	for _, e := range f.Issues {
		var fp uint64
		if _, err := fmt.Sscanf(e.Fingerprint, "%016x", &fp); err != nil {
			return nil, errors.Errorf("%s: bad fingerprint %q", path, e.Fingerprint)
		}
		count := e.Count
		if count == 0 {
			count = 1
		}
		b.counts[fp] += count
		b.info[fp] = e
	}
	return b, nil
}

func (b *Baseline) Marshal() ([]byte, error) {
	f := baselineFile{Version: 1}
	for fp, c := range b.counts {
		e := b.info[fp]
		e.Fingerprint = fmt.Sprintf("%016x", fp)
		e.Count = 0
		if c > 1 {
			e.Count = c
		}
		f.Issues = append(f.Issues, e)
	}
	sort.Slice(f.Issues, func(i, j int) bool {
		x, y := f.Issues[i], f.Issues[j]
		if x.File != y.File {
			return x.File < y.File
		}
		if x.Kind != y.Kind {
			return x.Kind < y.Kind
		}
		return x.Fingerprint < y.Fingerprint
	})
	return yaml.Marshal(&f)
}

func (b *Baseline) Save(path string) error {
	data, err := b.Marshal()
	if err != nil {
		return err
	}
	return errors.Wrap(os.WriteFile(path, data, 0o644), "writing baseline")
}
