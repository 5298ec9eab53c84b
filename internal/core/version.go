package core

import (
	"strconv"
	"strings"
	"unicode"

	debversion "github.com/knqyf263/go-deb-version"
	rpmutils "github.com/sassoftware/go-rpmutils"

	"rocm-installer/internal/types"
)

// VersionComparator returns -1, 0, or 1 comparing two version strings.
type VersionComparator func(a, b string) int

// versionCache memoizes parsed Debian versions to avoid repeated parsing
// during sorting and deduplication.
type versionCache struct {
	format types.PackageFormat
	deb    map[string]debversion.Version
}

func newVersionCache(format types.PackageFormat) *versionCache {
	return &versionCache{
		format: format,
		deb:    map[string]debversion.Version{},
	}
}

// debVersion returns a parsed Debian version, caching the result.
func (c *versionCache) debVersion(value string) (debversion.Version, error) {
	if parsed, ok := c.deb[value]; ok {
		return parsed, nil
	}
	parsed, err := debversion.NewVersion(value)
	if err != nil {
		return debversion.Version{}, err
	}
	c.deb[value] = parsed
	return parsed, nil
}

// compare uses the format's native ordering and falls back to a numeric
// per-component comparison when a version does not parse.
func (c *versionCache) compare(a string, b string) int {
	switch c.format {
	case types.PackageFormatDeb:
		v1, err := c.debVersion(a)
		if err != nil {
			return CompareNumeric(a, b)
		}
		v2, err := c.debVersion(b)
		if err != nil {
			return CompareNumeric(a, b)
		}
		return v1.Compare(v2)
	case types.PackageFormatRPM:
		return rpmutils.Vercmp(a, b)
	default:
		return CompareNumeric(a, b)
	}
}

// NewVersionComparator returns the comparator for a package format.
func NewVersionComparator(format types.PackageFormat) VersionComparator {
	return newVersionCache(format).compare
}

// CompareNumeric compares versions component by component, where a
// component is a maximal run of digits. Missing components count as zero.
func CompareNumeric(a string, b string) int {
	left := numericComponents(a)
	right := numericComponents(b)
	for i := 0; i < len(left) || i < len(right); i++ {
		var l, r int
		if i < len(left) {
			l = left[i]
		}
		if i < len(right) {
			r = right[i]
		}
		switch {
		case l < r:
			return -1
		case l > r:
			return 1
		}
	}
	return 0
}

func numericComponents(value string) []int {
	fields := strings.FieldsFunc(value, func(r rune) bool {
		return !unicode.IsDigit(r)
	})
	out := make([]int, 0, len(fields))
	for _, field := range fields {
		n, err := strconv.Atoi(field)
		if err != nil {
			continue
		}
		out = append(out, n)
	}
	return out
}

// CompareInstalledVersion reports whether an installed version meets the
// required minimum. An installed version strictly lower than the required
// one is not satisfied.
func CompareInstalledVersion(installed string, required string) bool {
	return CompareNumeric(installed, required) >= 0
}

// SatisfiesConstraint checks a concrete version against one constraint.
func SatisfiesConstraint(cmp VersionComparator, version string, constraint types.Constraint) bool {
	if constraint.Op == types.ConstraintOpNone || constraint.Version == "" {
		return true
	}
	if version == "" {
		return false
	}
	result := cmp(version, constraint.Version)
	switch constraint.Op {
	case types.ConstraintOpEq, types.ConstraintOpEq2:
		return result == 0
	case types.ConstraintOpNe:
		return result != 0
	case types.ConstraintOpGte:
		return result >= 0
	case types.ConstraintOpLte:
		return result <= 0
	case types.ConstraintOpGt, types.ConstraintOpGtStrict:
		return result > 0
	case types.ConstraintOpLt, types.ConstraintOpLtStrict:
		return result < 0
	default:
		return false
	}
}
