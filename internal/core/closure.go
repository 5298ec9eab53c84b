package core

import (
	"context"
	"sort"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"rocm-installer/internal/ports"
	"rocm-installer/internal/types"
)

// DefaultFirstPartyPrefix marks packages that belong to the payload.
const DefaultFirstPartyPrefix = "amdrocm"

// SearchRoots tells the closure walk where deps files live. Lookups try
// Arch first, then the base group, then every other arch group.
type SearchRoots struct {
	Root  string
	Arch  string
	Archs []string
}

func (r SearchRoots) groups() []string {
	var out []string
	seen := map[string]bool{}
	add := func(group string) {
		if group == "" || seen[group] {
			return
		}
		seen[group] = true
		out = append(out, group)
	}
	if r.Arch != types.ArchBase {
		add(r.Arch)
	}
	add(types.ArchBase)
	for _, arch := range r.Archs {
		add(arch)
	}
	return out
}

// ResolveMetaClosure walks first-party dependencies breadth first from a
// meta-package and returns every package reached, start included, sorted.
// Packages without a deps file are logged and skipped.
func ResolveMetaClosure(ctx context.Context, start string, roots SearchRoots, reader ports.LayoutReaderPort, prefix string) ([]string, error) {
	if strings.TrimSpace(prefix) == "" {
		prefix = DefaultFirstPartyPrefix
	}
	visited := map[string]bool{start: true}
	queue := []string{start}
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		deps, found, err := lookupDeps(reader, roots, name)
		if err != nil {
			return nil, err
		}
		if !found {
			log.Ctx(ctx).Warn().Str("package", name).Msg("deps file not found, skipping")
			continue
		}
		for _, line := range deps {
			spec, err := ParseDependencySpec(line)
			if err != nil {
				log.Ctx(ctx).Debug().Str("package", name).Str("line", line).Msg("skipping unparsable dependency")
				continue
			}
			for _, dep := range spec.Names() {
				if !strings.HasPrefix(dep, prefix) {
					continue
				}
				if !visited[dep] {
					visited[dep] = true
					queue = append(queue, dep)
				}
				break
			}
		}
	}
	out := make([]string, 0, len(visited))
	for name := range visited {
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

func lookupDeps(reader ports.LayoutReaderPort, roots SearchRoots, name string) ([]string, bool, error) {
	for _, group := range roots.groups() {
		deps, err := reader.ReadDeps(roots.Root, group, name)
		if err == nil {
			return deps, true, nil
		}
		if errbuilder.CodeOf(err) != errbuilder.CodeNotFound {
			return nil, false, err
		}
	}
	return nil, false, nil
}
