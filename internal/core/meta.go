package core

import (
	"context"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"rocm-installer/internal/ports"
	"rocm-installer/internal/types"
)

// MetaGenerator writes one meta config per logical component and
// architecture from the first-party dependency closure of its
// meta-package.
type MetaGenerator struct {
	Reader ports.LayoutReaderPort
	Writer ports.LayoutWriterPort
	Root   string
	Prefix string
}

// Generate returns the meta config names written. Components whose
// meta-package is absent from the payload for an architecture are skipped.
func (g MetaGenerator) Generate(ctx context.Context, components map[string]string, rocmVersion string) ([]string, error) {
	if len(components) == 0 {
		components = DefaultComponentBases
	}
	groups, err := g.Reader.ListGroups(g.Root)
	if err != nil {
		return nil, err
	}
	var archs []string
	for _, group := range groups {
		if group != types.ArchBase && group != "meta" {
			archs = append(archs, group)
		}
	}
	var written []string
	for _, component := range sortedKeys(components) {
		base := components[component]
		for _, arch := range append([]string{types.ArchBase}, archs...) {
			meta := MetaPackageName(base, rocmVersion, arch)
			roots := SearchRoots{Root: g.Root, Arch: arch, Archs: archs}
			if _, found, err := lookupDeps(g.Reader, roots, meta); err != nil {
				return nil, err
			} else if !found {
				log.Ctx(ctx).Debug().Str("component", component).Str("meta", meta).Msg("meta-package not in payload")
				continue
			}
			closure, err := ResolveMetaClosure(ctx, meta, roots, g.Reader, g.Prefix)
			if err != nil {
				return nil, err
			}
			name := MetaConfigName(component, arch)
			if err := g.Writer.WriteMetaConfig(g.Root, name, closure); err != nil {
				return nil, err
			}
			written = append(written, name)
		}
	}
	if len(written) == 0 {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg("no component meta-packages found in payload for ROCm " + rocmVersion)
	}
	return written, nil
}
