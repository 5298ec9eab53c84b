package policies

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
)

// ArchPolicy validates GPU architecture selection against the
// architectures present in the payload.
type ArchPolicy struct {
	Available []string
}

func NewArchPolicy(available []string) ArchPolicy {
	archs := append([]string(nil), available...)
	sort.Strings(archs)
	return ArchPolicy{Available: archs}
}

// Select returns the single validated architecture. An empty request is
// accepted only when no architecture-specific component is involved;
// lists and unknown tags are rejected naming the valid choices.
func (p ArchPolicy) Select(requested string, required bool) (string, error) {
	requested = strings.TrimSpace(requested)
	if requested == "" {
		if !required {
			return "", nil
		}
		if len(p.Available) == 1 {
			return "", errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg(fmt.Sprintf("gfx architecture is required (available: %s)", p.available()))
		}
		return "", errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("gfx architecture is required, choose one of: %s", p.available()))
	}
	if strings.ContainsAny(requested, ", \t;") {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("exactly one gfx architecture must be given, got %q (available: %s)", requested, p.available()))
	}
	requested = strings.ToLower(requested)
	if !strings.HasPrefix(requested, "gfx") {
		requested = "gfx" + requested
	}
	for _, arch := range p.Available {
		if arch == requested {
			return arch, nil
		}
	}
	return "", errbuilder.New().
		WithCode(errbuilder.CodeInvalidArgument).
		WithMsg(fmt.Sprintf("unknown gfx architecture %s (available: %s)", requested, p.available()))
}

func (p ArchPolicy) available() string {
	if len(p.Available) == 0 {
		return "none"
	}
	return strings.Join(p.Available, ", ")
}
