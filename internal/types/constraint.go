package types

import "strings"

type Constraint struct {
	Name    string
	Op      ConstraintOp
	Version string
	Source  string
}

func (c Constraint) String() string {
	if c.Op == ConstraintOpNone || c.Version == "" {
		return c.Name
	}
	return c.Name + " " + string(c.Op) + " " + c.Version
}

// DependencySpec is one requirement line. Alternatives holds every
// alternative in listed order; the first entry mirrors Name/Op/Version.
type DependencySpec struct {
	Name         string
	Op           ConstraintOp
	Version      string
	Alternatives []Constraint
}

func (d DependencySpec) IsAlternation() bool {
	return len(d.Alternatives) > 1
}

// Key identifies the requirement for deduplication: the package name for a
// single spec, the joined alternative names for an alternation.
func (d DependencySpec) Key() string {
	if !d.IsAlternation() {
		return d.Name
	}
	names := make([]string, 0, len(d.Alternatives))
	for _, alt := range d.Alternatives {
		names = append(names, alt.Name)
	}
	return strings.Join(names, "|")
}

// Names returns the package names of every alternative.
func (d DependencySpec) Names() []string {
	if len(d.Alternatives) == 0 {
		return []string{d.Name}
	}
	names := make([]string, 0, len(d.Alternatives))
	for _, alt := range d.Alternatives {
		names = append(names, alt.Name)
	}
	return names
}

func (d DependencySpec) String() string {
	if len(d.Alternatives) == 0 {
		return Constraint{Name: d.Name, Op: d.Op, Version: d.Version}.String()
	}
	parts := make([]string, 0, len(d.Alternatives))
	for _, alt := range d.Alternatives {
		parts = append(parts, alt.String())
	}
	return strings.Join(parts, " | ")
}

type RequiredDependencySet struct {
	Group   string
	Entries []DependencySpec
}

// Lines renders the entries one per line in their stored order.
func (s RequiredDependencySet) Lines() []string {
	lines := make([]string, 0, len(s.Entries))
	for _, entry := range s.Entries {
		lines = append(lines, entry.String())
	}
	return lines
}
