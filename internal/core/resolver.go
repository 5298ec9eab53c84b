package core

import (
	"context"
	"sort"

	"github.com/rs/zerolog/log"

	"rocm-installer/internal/types"
)

// Resolve computes the required external dependency set of one group.
// Specs are flattened across packages, stably sorted, deduplicated
// keeping the numerically highest version per key, and filtered against
// the names the group provides itself.
func Resolve(ctx context.Context, group string, packages []types.Package, cmp VersionComparator) (types.RequiredDependencySet, error) {
	provided := map[string]bool{}
	var specs []types.DependencySpec
	for _, pkg := range packages {
		provided[pkg.Name] = true
		parsed, err := ParseDependencySpecs(pkg.Dependencies)
		if err != nil {
			return types.RequiredDependencySet{}, err
		}
		specs = append(specs, parsed...)
	}
	return types.RequiredDependencySet{
		Group:   group,
		Entries: mergeSpecs(ctx, specs, provided, cmp),
	}, nil
}

// ResolveUnion resolves the union of several groups into one set.
func ResolveUnion(ctx context.Context, groups map[string][]types.Package, cmp VersionComparator) (types.RequiredDependencySet, error) {
	var all []types.Package
	for _, name := range sortedKeys(groups) {
		all = append(all, groups[name]...)
	}
	return Resolve(ctx, "all", all, cmp)
}

func mergeSpecs(ctx context.Context, specs []types.DependencySpec, provided map[string]bool, cmp VersionComparator) []types.DependencySpec {
	SortSpecs(specs)
	var out []types.DependencySpec
	flush := func(spec types.DependencySpec) {
		if selfProvided(spec, provided) {
			log.Ctx(ctx).Debug().Str("dependency", spec.String()).Msg("dependency provided by payload")
			return
		}
		out = append(out, spec)
	}
	for i := 0; i < len(specs); i++ {
		current := specs[i]
		for i+1 < len(specs) && specs[i+1].Key() == current.Key() {
			current = higherSpec(current, specs[i+1], cmp)
			i++
		}
		flush(current)
	}
	return out
}

// higherSpec keeps the dependency whose primary version is higher. A versioned
// entry wins over an unversioned one; ties keep the earlier one.
func higherSpec(a types.DependencySpec, b types.DependencySpec, cmp VersionComparator) types.DependencySpec {
	switch {
	case a.Version == "" && b.Version != "":
		return b
	case b.Version == "":
		return a
	case cmp(b.Version, a.Version) > 0:
		return b
	default:
		return a
	}
}

func selfProvided(spec types.DependencySpec, provided map[string]bool) bool {
	for _, name := range spec.Names() {
		if provided[name] {
			return true
		}
	}
	return false
}

func sortedKeys[V any](input map[string]V) []string {
	keys := make([]string, 0, len(input))
	for key := range input {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
