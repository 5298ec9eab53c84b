package core

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"rocm-installer/internal/ports"
	"rocm-installer/internal/types"
)

// DefaultComponentBases maps logical component names to meta-package
// base names.
var DefaultComponentBases = map[string]string{
	"core":      "amdrocm-core",
	"core-dev":  "amdrocm-core-dev",
	"dev-tools": "amdrocm-developer-tools",
	"core-sdk":  "amdrocm-core-sdk",
}

// MetaPackageName builds "<base><major.minor>[-<gfx>]".
func MetaPackageName(base string, rocmVersion string, gfx string) string {
	name := base + MajorMinor(rocmVersion)
	if gfx != "" && gfx != types.ArchBase {
		name += "-" + gfx
	}
	return name
}

// MetaConfigName builds "<component>[-<gfx>]" as used for meta config files.
func MetaConfigName(component string, gfx string) string {
	if gfx == "" || gfx == types.ArchBase {
		return component
	}
	return component + "-" + gfx
}

// MajorMinor returns the first two dot-separated components of a version.
func MajorMinor(version string) string {
	parts := strings.SplitN(version, ".", 3)
	if len(parts) < 2 {
		return version
	}
	return parts[0] + "." + parts[1]
}

// VersionDir returns "rocm-<major.minor.patch>".
func VersionDir(version string) string {
	parts := strings.SplitN(version, ".", 4)
	if len(parts) > 3 {
		parts = parts[:3]
	}
	return "rocm-" + strings.Join(parts, ".")
}

// ComponentRegistry maps logical component names to concrete package
// lists read from the extraction root.
type ComponentRegistry struct {
	Layout ports.LayoutReaderPort
	Root   string
}

func NewComponentRegistry(layout ports.LayoutReaderPort, root string) ComponentRegistry {
	return ComponentRegistry{Layout: layout, Root: root}
}

// LoadComponent reads the meta config of a component/arch pair and splits
// it into base and gfx packages. Names in neither listing are skipped.
func (r ComponentRegistry) LoadComponent(ctx context.Context, name string, gfx string) (types.MetaComponent, error) {
	configName := MetaConfigName(name, gfx)
	packages, err := r.Layout.ReadMetaConfig(r.Root, configName)
	if err != nil {
		if errbuilder.CodeOf(err) != errbuilder.CodeNotFound {
			return types.MetaComponent{}, err
		}
		available, _ := r.Components()
		requested := name
		if gfx != "" && gfx != types.ArchBase {
			requested += "/" + gfx
		}
		return types.MetaComponent{}, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("unknown component/architecture: %s (available: %s)", requested, strings.Join(available, ", "))).
			WithCause(err)
	}
	baseList, err := r.Layout.ReadPackageList(r.Root, types.ArchBase)
	if err != nil {
		return types.MetaComponent{}, err
	}
	var gfxList []string
	if gfx != "" && gfx != types.ArchBase {
		gfxList, err = r.Layout.ReadPackageList(r.Root, gfx)
		if err != nil {
			return types.MetaComponent{}, err
		}
	}
	inBase := toSet(baseList)
	inGfx := toSet(gfxList)
	component := types.MetaComponent{Name: name, Arch: gfx}
	for _, pkg := range packages {
		switch {
		case inGfx[pkg]:
			component.GfxPackages = append(component.GfxPackages, pkg)
		case inBase[pkg]:
			component.BasePackages = append(component.BasePackages, pkg)
		default:
			log.Ctx(ctx).Warn().Str("component", name).Str("package", pkg).Msg("package not in payload listings, skipping")
		}
	}
	return component, nil
}

// Components lists the logical component names with a meta config.
func (r ComponentRegistry) Components() ([]string, error) {
	configs, err := r.Layout.ListMetaConfigs(r.Root)
	if err != nil {
		return nil, err
	}
	archs, err := r.Archs()
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	for _, config := range configs {
		name := config
		for _, arch := range archs {
			if trimmed, ok := strings.CutSuffix(config, "-"+arch); ok {
				name = trimmed
				break
			}
		}
		seen[name] = true
	}
	return sortedKeys(seen), nil
}

// Archs lists the gfx groups present in the extraction root.
func (r ComponentRegistry) Archs() ([]string, error) {
	groups, err := r.Layout.ListGroups(r.Root)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, group := range groups {
		if strings.HasPrefix(group, "gfx") {
			out = append(out, group)
		}
	}
	sort.Strings(out)
	return out, nil
}

func toSet(values []string) map[string]bool {
	out := make(map[string]bool, len(values))
	for _, value := range values {
		out[value] = true
	}
	return out
}

// HasArchVariants reports whether a component ships per-architecture
// meta configs.
func (r ComponentRegistry) HasArchVariants(name string) (bool, error) {
	configs, err := r.Layout.ListMetaConfigs(r.Root)
	if err != nil {
		return false, err
	}
	archs, err := r.Archs()
	if err != nil {
		return false, err
	}
	for _, config := range configs {
		for _, arch := range archs {
			if config == MetaConfigName(name, arch) {
				return true, nil
			}
		}
	}
	return false, nil
}
