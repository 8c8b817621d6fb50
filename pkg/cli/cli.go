package cli

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/term"
)

// Value is the dynamic value behind a flag.
type Value interface {
	String() string
	Set(string) error
	Get() any
}

type stringValue struct{ p *string }

func (v *stringValue) Set(s string) error { *v.p = s; return nil }
func (v *stringValue) String() string     { return *v.p }
func (v *stringValue) Get() any           { return *v.p }

type boolValue struct{ p *bool }

// Set treats an empty string as a bare `--flag`.
func (v *boolValue) Set(s string) error {
	if s == "" {
		*v.p = true
		return nil
	}
	val, err := strconv.ParseBool(s)
	if err != nil {
		return fmt.Errorf("invalid boolean value '%s'", s)
	}
	*v.p = val
	return nil
}
func (v *boolValue) String() string { return strconv.FormatBool(*v.p) }
func (v *boolValue) Get() any       { return *v.p }

type intValue struct{ p *int }

func (v *intValue) Set(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("invalid integer value '%s'", s)
	}
	*v.p = n
	return nil
}
func (v *intValue) String() string { return strconv.Itoa(*v.p) }
func (v *intValue) Get() any       { return *v.p }

type listValue struct{ p *[]string }

func (v *listValue) Set(s string) error { *v.p = append(*v.p, s); return nil }
func (v *listValue) String() string     { return strings.Join(*v.p, ", ") }
func (v *listValue) Get() any           { return *v.p }

type durationValue struct{ p *time.Duration }

func (v *durationValue) Set(s string) error {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration '%s'", s)
	}
	*v.p = d
	return nil
}
func (v *durationValue) String() string { return v.p.String() }
func (v *durationValue) Get() any       { return *v.p }

// choiceValue only accepts one of a fixed set of words, such as an analysis level.
type choiceValue struct {
	p       *string
	choices []string
}

func (v *choiceValue) Set(s string) error {
	for _, c := range v.choices {
		if s == c {
			*v.p = s
			return nil
		}
	}
	return fmt.Errorf("invalid value '%s', expected one of: %s", s, strings.Join(v.choices, ", "))
}
func (v *choiceValue) String() string { return *v.p }
func (v *choiceValue) Get() any       { return *v.p }

// Flag is one defined option.
type Flag struct {
	Name        string
	Shorthand   string
	Usage       string
	Value       Value
	DefValue    string
	Placeholder string
	// Section is the help heading the flag is listed under.
	Section string

	toggle bool
}

func (fl *Flag) isBool() bool {
	_, ok := fl.Value.(*boolValue)
	return ok
}

// Toggle is one switch of a ToggleGroup.
type Toggle struct {
	Name    string
	Usage   string
	Default bool
}

// ToggleGroup is a family of switches given as -<Prefix><name> and -<Prefix>no-<name>,
// such as the -W issue flags.
type ToggleGroup struct {
	Title  string
	Prefix string
	// Noun names one toggle in help and errors ("issue", "feature").
	Noun string
	// All adds -<Prefix>all and -<Prefix>no-all.
	All     bool
	Toggles []Toggle
}

type FlagSet struct {
	name    string
	flags   map[string]*Flag
	short   map[string]*Flag
	order   []*Flag
	section string
	groups  []ToggleGroup
	actual  []*Flag
	args    []string
}

func NewFlagSet(name string) *FlagSet {
	return &FlagSet{
		name:  name,
		flags: make(map[string]*Flag),
		short: make(map[string]*Flag),
	}
}

// Section puts the flags defined after it under a help heading.
func (f *FlagSet) Section(title string) { f.section = title }

func (f *FlagSet) Args() []string { return f.args }

func (f *FlagSet) Lookup(name string) *Flag { return f.flags[name] }

func (f *FlagSet) String(p *string, name, shorthand, value, usage, placeholder string) {
	*p = value
	f.Var(&stringValue{p}, name, shorthand, usage, value, placeholder)
}

func (f *FlagSet) Bool(p *bool, name, shorthand string, value bool, usage string) {
	*p = value
	f.Var(&boolValue{p}, name, shorthand, usage, strconv.FormatBool(value), "")
}

func (f *FlagSet) Int(p *int, name, shorthand string, value int, usage, placeholder string) {
	*p = value
	f.Var(&intValue{p}, name, shorthand, usage, strconv.Itoa(value), placeholder)
}

func (f *FlagSet) List(p *[]string, name, shorthand string, value []string, usage, placeholder string) {
	*p = value
	f.Var(&listValue{p}, name, shorthand, usage, strings.Join(value, ","), placeholder)
}

func (f *FlagSet) Duration(p *time.Duration, name, shorthand string, value time.Duration, usage string) {
	*p = value
	f.Var(&durationValue{p}, name, shorthand, usage, value.String(), "duration")
}

// Choice defines a string flag restricted to choices. The default may be empty to
// tell "not given" apart from any choice.
func (f *FlagSet) Choice(p *string, name, shorthand, value string, choices []string, usage string) {
	*p = value
	f.Var(&choiceValue{p, choices}, name, shorthand, usage, value, strings.Join(choices, "|"))
}

func (f *FlagSet) Var(value Value, name, shorthand, usage, defValue, placeholder string) {
	if name == "" {
		panic("flag name cannot be empty")
	}
	if _, ok := f.flags[name]; ok {
		panic(fmt.Sprintf("flag redefined: %s", name))
	}
	flag := &Flag{Name: name, Shorthand: shorthand, Usage: usage, Value: value, DefValue: defValue, Placeholder: placeholder, Section: f.section}
	f.flags[name] = flag
	f.order = append(f.order, flag)
	if shorthand != "" {
		if _, ok := f.short[shorthand]; ok {
			panic(fmt.Sprintf("shorthand flag redefined: %s", shorthand))
		}
		f.short[shorthand] = flag
	}
}

// AddToggles defines the boolean flags of g. They are reported through Visit like any
// other flag and listed in help under g.Title.
func (f *FlagSet) AddToggles(g ToggleGroup) {
	define := func(name, usage string, value bool) {
		f.Bool(new(bool), name, "", value, usage)
		f.flags[name].toggle = true
	}
	if g.All {
		define(g.Prefix+"all", "Enable every "+g.Noun, false)
		define(g.Prefix+"no-all", "Disable every "+g.Noun, false)
	}
	for _, t := range g.Toggles {
		define(g.Prefix+t.Name, t.Usage, t.Default)
		define(g.Prefix+"no-"+t.Name, "Disable '"+t.Name+"'", !t.Default)
	}
	f.groups = append(f.groups, g)
}

// set assigns s to flag and records it for Visit.
func (f *FlagSet) set(flag *Flag, s string) error {
	if err := flag.Value.Set(s); err != nil {
		return err
	}
	f.actual = append(f.actual, flag)
	return nil
}

// Visit calls fn for each flag given on the command line, in the order given.
// A flag given more than once is visited more than once.
func (f *FlagSet) Visit(fn func(*Flag)) {
	for _, flag := range f.actual {
		fn(flag)
	}
}

// Parse reads flags up to the end of arguments or a `--`. Single-dash arguments are
// matched against full names first (-Wall, -Fno-null-casting) and then as a
// shorthand with an optional attached value (-j4).
func (f *FlagSet) Parse(arguments []string) error {
	f.args, f.actual = []string{}, nil
	for i := 0; i < len(arguments); i++ {
		arg := arguments[i]
		if arg == "--" {
			f.args = append(f.args, arguments[i+1:]...)
			break
		}
		if len(arg) < 2 || arg[0] != '-' {
			f.args = append(f.args, arg)
			continue
		}

		long := strings.HasPrefix(arg, "--")
		name, value, hasValue := strings.Cut(strings.TrimPrefix(arg[1:], "-"), "=")
		if name == "" {
			return fmt.Errorf("empty flag name")
		}
		label := "--" + name
		flag := f.flags[name]
		if !long {
			label = "-" + name
			if flag == nil {
				flag = f.short[name[:1]]
				label = "-" + name[:1]
				if flag != nil && len(name) > 1 {
					if flag.isBool() || hasValue {
						flag = nil
					} else {
						value, hasValue = name[1:], true
					}
				}
			}
		}
		if flag == nil {
			return f.unknown(long, name)
		}

		if !hasValue && !flag.isBool() {
			if i+1 >= len(arguments) {
				return fmt.Errorf("flag needs an argument: %s", label)
			}
			i++
			value = arguments[i]
		}
		if err := f.set(flag, value); err != nil {
			return fmt.Errorf("%s: %w", label, err)
		}
	}
	return nil
}

func (f *FlagSet) unknown(long bool, name string) error {
	if long {
		return fmt.Errorf("unknown flag: --%s", name)
	}
	for _, g := range f.groups {
		if strings.HasPrefix(name, g.Prefix) && len(name) > len(g.Prefix) {
			toggle := strings.TrimPrefix(strings.TrimPrefix(name, g.Prefix), "no-")
			return fmt.Errorf("unknown %s '%s' in -%s", g.Noun, toggle, name)
		}
	}
	return fmt.Errorf("unknown shorthand flag: -%s", name[:1])
}

type App struct {
	Name        string
	Synopsis    string
	Description string
	Authors     []string
	Repository  string
	Since       int
	FlagSet     *FlagSet
	Action      func(args []string) error

	Stdout io.Writer
	Stderr io.Writer
}

func NewApp(name string) *App {
	return &App{
		Name:    name,
		FlagSet: NewFlagSet(name),
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
	}
}

func (a *App) Run(arguments []string) error {
	help := false
	section := a.FlagSet.section
	a.FlagSet.Section("")
	a.FlagSet.Bool(&help, "help", "h", false, "Display this information")
	a.FlagSet.Section(section)

	if err := a.FlagSet.Parse(arguments); err != nil {
		fmt.Fprintf(a.Stderr, "%s: %v\n", a.Name, err)
		a.writeUsage(a.Stderr)
		return err
	}
	if help {
		a.writeHelp(a.Stdout)
		return nil
	}
	if a.Action != nil {
		return a.Action(a.FlagSet.Args())
	}
	return nil
}

const indent = "    "

// row is one line of a help table: a flag label, its usage and a right-hand note.
type row struct{ left, usage, note string }

func (a *App) writeUsage(w io.Writer) {
	fmt.Fprintf(w, "Usage: %s %s\n", a.Name, a.Synopsis)
	fmt.Fprintf(w, "Run '%s --help' for all available options and flags.\n", a.Name)
}

func (a *App) writeHelp(w io.Writer) {
	var sb strings.Builder
	width := terminalWidth(w)

	fmt.Fprintf(&sb, "%s\n", a.Name)
	if a.Description != "" {
		for _, line := range wrapText(a.Description, width-len(indent)) {
			fmt.Fprintf(&sb, "%s%s\n", indent, line)
		}
	}
	if a.Synopsis != "" {
		fmt.Fprintf(&sb, "\nUsage\n%s%s %s\n", indent, a.Name, a.Synopsis)
	}

	sections, bySection := a.sections()
	tables := make([][]row, 0, len(sections)+len(a.FlagSet.groups))
	titles := make([]string, 0, cap(tables))
	for _, s := range sections {
		var rows []row
		for _, fl := range bySection[s] {
			rows = append(rows, row{flagLabel(fl), fl.Usage, defaultNote(fl)})
		}
		title := s
		if title == "" {
			title = "Options"
		}
		titles, tables = append(titles, title), append(tables, rows)
	}
	for _, g := range a.FlagSet.groups {
		rows := []row{{fmt.Sprintf("-%s<%s>, -%sno-<%s>", g.Prefix, g.Noun, g.Prefix, g.Noun), "Enable or disable one " + g.Noun, ""}}
		if g.All {
			rows = append(rows, row{fmt.Sprintf("-%sall, -%sno-all", g.Prefix, g.Prefix), "Enable or disable every " + g.Noun, ""})
		}
		for _, t := range g.Toggles {
			note := "|-|"
			if t.Default {
				note = "|x|"
			}
			rows = append(rows, row{indent + t.Name, t.Usage, note})
		}
		titles, tables = append(titles, g.Title), append(tables, rows)
	}

	leftWidth := 0
	for _, rows := range tables {
		for _, r := range rows {
			leftWidth = max(leftWidth, len(r.left))
		}
	}
	for i, rows := range tables {
		fmt.Fprintf(&sb, "\n%s\n", titles[i])
		writeRows(&sb, rows, leftWidth, width)
	}

	years := strconv.Itoa(time.Now().Year())
	if a.Since > 0 && strconv.Itoa(a.Since) != years {
		years = strconv.Itoa(a.Since) + "-" + years
	}
	if len(a.Authors) > 0 {
		fmt.Fprintf(&sb, "\nCopyright (c) %s: %s and contributors\n", years, strings.Join(a.Authors, ", "))
	}
	if a.Repository != "" {
		fmt.Fprintf(&sb, "For more details refer to %s\n", a.Repository)
	}
	io.WriteString(w, sb.String())
}

// sections groups the non-toggle flags by section, both in definition order.
func (a *App) sections() ([]string, map[string][]*Flag) {
	var order []string
	by := make(map[string][]*Flag)
	for _, fl := range a.FlagSet.order {
		if fl.toggle {
			continue
		}
		if _, seen := by[fl.Section]; !seen {
			order = append(order, fl.Section)
		}
		by[fl.Section] = append(by[fl.Section], fl)
	}
	return order, by
}

func flagLabel(fl *Flag) string {
	label := "--" + fl.Name
	if fl.Shorthand != "" {
		label = "-" + fl.Shorthand + ", " + label
	}
	if !fl.isBool() && fl.Placeholder != "" {
		label += " <" + fl.Placeholder + ">"
	}
	return label
}

func defaultNote(fl *Flag) string {
	switch fl.DefValue {
	case "", "0", "false":
		return ""
	}
	return "|" + fl.DefValue + "|"
}

func writeRows(sb *strings.Builder, rows []row, leftWidth, width int) {
	usageWidth := max(width-len(indent)-leftWidth-2, 20)
	pad := strings.Repeat(" ", len(indent)+leftWidth+2)
	for _, r := range rows {
		note := ""
		if r.note != "" {
			note = "  " + r.note
		}
		lines := wrapText(r.usage, usageWidth-len(note))
		if len(lines) == 0 {
			lines = []string{""}
		}
		fmt.Fprintf(sb, "%s%-*s  %s%s\n", indent, leftWidth, r.left, lines[0], note)
		for _, line := range lines[1:] {
			fmt.Fprintf(sb, "%s%s\n", pad, line)
		}
	}
}

func terminalWidth(w io.Writer) int {
	if f, ok := w.(*os.File); ok {
		if width, _, err := term.GetSize(int(f.Fd())); err == nil {
			return max(width, 40)
		}
	}
	return 80
}

func wrapText(text string, maxWidth int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	maxWidth = max(maxWidth, 10)
	var lines []string
	line := words[0]
	for _, word := range words[1:] {
		if len(line)+1+len(word) > maxWidth {
			lines = append(lines, line)
			line = word
			continue
		}
		line += " " + word
	}
	return append(lines, line)
}
