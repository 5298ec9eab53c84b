package core

import (
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"rocm-installer/internal/types"
)

// opTokens is the ordered list of constraint operators tried during
// parsing. Longer tokens must precede shorter ones to avoid false matches
// (e.g. ">=" before ">").
var opTokens = []types.ConstraintOp{
	types.ConstraintOpGtStrict,
	types.ConstraintOpLtStrict,
	types.ConstraintOpGte,
	types.ConstraintOpLte,
	types.ConstraintOpNe,
	types.ConstraintOpEq2,
	types.ConstraintOpEq,
	types.ConstraintOpGt,
	types.ConstraintOpLt,
}

var (
	archQualifier  = regexp.MustCompile(`\((?:x86-64|x86_64|aarch-64|aarch64|amd64|arm64)\)`)
	debArchSuffix  = regexp.MustCompile(`:(?:amd64|arm64|i386|any|native)\b`)
	debVersionExpr = regexp.MustCompile(`\(\s*(<<|>>|<=|>=|=|<|>)\s*([^)]*)\)`)
	sonamePattern  = regexp.MustCompile(`^(lib[^\s()]*?)\.so`)
	gfxPattern     = regexp.MustCompile(`-gfx([0-9a-z]+)[-_]`)
	versionSuffix  = regexp.MustCompile(`[-_][0-9]`)
)

// ParseDependencySpec parses one requirement line. Alternatives may be
// separated by "|" or " or "; architecture qualifiers are dropped.
func ParseDependencySpec(raw string) (types.DependencySpec, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return types.DependencySpec{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("empty dependency spec")
	}
	raw = strings.ReplaceAll(raw, " or ", " | ")
	var alts []types.Constraint
	for _, part := range strings.Split(raw, "|") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		alt, err := parseAlternative(part)
		if err != nil {
			return types.DependencySpec{}, err
		}
		alts = append(alts, alt)
	}
	if len(alts) == 0 {
		return types.DependencySpec{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("invalid dependency spec: %s", raw))
	}
	return types.DependencySpec{
		Name:         alts[0].Name,
		Op:           alts[0].Op,
		Version:      alts[0].Version,
		Alternatives: alts,
	}, nil
}

// ParseDependencySpecs parses lines, skipping blanks.
func ParseDependencySpecs(lines []string) ([]types.DependencySpec, error) {
	var out []types.DependencySpec
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		spec, err := ParseDependencySpec(line)
		if err != nil {
			return nil, err
		}
		out = append(out, spec)
	}
	return out, nil
}

func parseAlternative(raw string) (types.Constraint, error) {
	raw = archQualifier.ReplaceAllString(raw, "")
	raw = debArchSuffix.ReplaceAllString(raw, "")
	raw = debVersionExpr.ReplaceAllString(raw, " $1 $2")
	raw = strings.TrimSpace(raw)
	for _, op := range opTokens {
		if !strings.Contains(raw, string(op)) {
			continue
		}
		parts := strings.SplitN(raw, string(op), 2)
		name := strings.TrimSpace(parts[0])
		version := strings.TrimSpace(parts[1])
		if name == "" || version == "" {
			return types.Constraint{}, errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg(fmt.Sprintf("invalid dependency spec: %s", raw))
		}
		if op == types.ConstraintOpEq2 {
			op = types.ConstraintOpEq
		}
		return types.Constraint{Name: name, Op: op, Version: version}, nil
	}
	if strings.ContainsAny(raw, " \t") {
		return types.Constraint{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("invalid dependency spec: %s", raw))
	}
	return types.Constraint{Name: raw, Op: types.ConstraintOpNone}, nil
}

// NormalizeRequirements splits archive requirements into dependency
// lines and bare library names. rpmlib and loader markers are dropped,
// shared-library sonames are reduced to their library name, and any
// reference to libatomic injects the libatomic package.
func NormalizeRequirements(reqs []types.Requirement) (deps []string, libs []string) {
	seenDeps := map[string]bool{}
	seenLibs := map[string]bool{}
	addDep := func(value string) {
		if !seenDeps[value] {
			seenDeps[value] = true
			deps = append(deps, value)
		}
	}
	atomic := false
	for _, req := range reqs {
		text := strings.TrimSpace(req.Text)
		if text == "" || strings.HasPrefix(text, "rpmlib(") || strings.HasPrefix(text, "rtld(") {
			continue
		}
		if strings.Contains(text, "libatomic.so") {
			atomic = true
		}
		if m := sonamePattern.FindStringSubmatch(text); m != nil {
			if !seenLibs[m[1]] {
				seenLibs[m[1]] = true
				libs = append(libs, m[1])
			}
			continue
		}
		if req.Auto && !strings.HasPrefix(text, "/") {
			continue
		}
		addDep(text)
	}
	if atomic {
		addDep("libatomic")
	}
	return deps, libs
}

// PackageDirName strips the extension and the version suffix, which
// starts at the first "-" or "_" followed by a digit.
func PackageDirName(filename string) string {
	base := filepath.Base(filename)
	base = strings.TrimSuffix(strings.TrimSuffix(base, ".rpm"), ".deb")
	if loc := versionSuffix.FindStringIndex(base); loc != nil {
		return base[:loc[0]]
	}
	return base
}

// GfxTag returns the gfx architecture encoded in an archive filename, or
// types.ArchBase when none is present.
func GfxTag(filename string) string {
	m := gfxPattern.FindStringSubmatch(filepath.Base(filename))
	if m == nil {
		return types.ArchBase
	}
	return "gfx" + m[1]
}

// SortSpecs orders specs by key, then by rendered constraint.
func SortSpecs(specs []types.DependencySpec) {
	sort.SliceStable(specs, func(i, j int) bool {
		if specs[i].Key() != specs[j].Key() {
			return specs[i].Key() < specs[j].Key()
		}
		return specs[i].String() < specs[j].String()
	})
}
