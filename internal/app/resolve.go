package app

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"rocm-installer/internal/core"
	"rocm-installer/internal/types"
)

// Resolve generates the meta configs of every logical component and the
// combined required dependency file across all groups.
func (s Service) Resolve(ctx context.Context, req ResolveRequest) (ResolveResult, error) {
	root := strings.TrimSpace(req.ExtractDir)
	if root == "" {
		return ResolveResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("extraction directory is required")
	}
	version := strings.TrimSpace(req.RocmVersion)
	if version == "" {
		info, err := s.VersionFile.Read(versionPathFor(root))
		if err != nil {
			return ResolveResult{}, err
		}
		version = info.RocmVersion
	}
	prefix := req.Prefix
	if strings.TrimSpace(prefix) == "" {
		prefix = core.DefaultFirstPartyPrefix
	}

	generator := core.MetaGenerator{
		Reader: s.LayoutReader,
		Writer: s.LayoutWriter,
		Root:   root,
		Prefix: prefix,
	}
	metas, err := generator.Generate(ctx, req.Components, version)
	if err != nil {
		return ResolveResult{}, err
	}

	all, err := s.payloadPackages(root)
	if err != nil {
		return ResolveResult{}, err
	}
	packages := map[string][]types.Package{}
	var format types.PackageFormat
	for _, pkg := range all {
		if format == "" {
			format = pkg.Format
		}
		packages[pkg.Arch] = append(packages[pkg.Arch], pkg)
	}
	if format == "" {
		format = types.PackageFormatRPM
	}
	set, err := core.ResolveUnion(ctx, packages, core.NewVersionComparator(format))
	if err != nil {
		return ResolveResult{}, err
	}
	combined := filepath.Join(root, CombinedDepsFile(format))
	if err := s.LayoutWriter.WriteRequiredDeps(combined, set); err != nil {
		return ResolveResult{}, err
	}
	log.Ctx(ctx).Info().
		Str("rocm_version", version).
		Int("meta_configs", len(metas)).
		Int("required_deps", len(set.Entries)).
		Msg("resolution complete")
	return ResolveResult{
		MetaConfigs:  metas,
		CombinedPath: combined,
		CombinedDeps: len(set.Entries),
	}, nil
}
