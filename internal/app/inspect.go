package app

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"rocm-installer/internal/core"
	"rocm-installer/internal/types"
)

// Inspect summarizes the payload's components and architectures and,
// given a target, the ROCm installs found there.
func (s Service) Inspect(ctx context.Context, req InspectRequest) (InspectResult, error) {
	payload, err := newPayload(req.PayloadDir)
	if err != nil {
		return InspectResult{}, err
	}
	info, err := s.VersionFile.Read(payload.VersionPath())
	if err != nil {
		return InspectResult{}, err
	}
	root := payload.RocmRoot()
	registry := core.NewComponentRegistry(s.LayoutReader, root)
	archs, err := registry.Archs()
	if err != nil {
		return InspectResult{}, err
	}
	names, err := registry.Components()
	if err != nil {
		return InspectResult{}, err
	}
	configs, err := s.LayoutReader.ListMetaConfigs(root)
	if err != nil {
		return InspectResult{}, err
	}
	present := map[string]bool{}
	for _, config := range configs {
		present[config] = true
	}
	result := InspectResult{Version: info, Archs: archs}
	for _, name := range names {
		component := InspectComponent{Name: name}
		for _, arch := range archs {
			if present[core.MetaConfigName(name, arch)] {
				component.Archs = append(component.Archs, arch)
			}
		}
		result.Components = append(result.Components, component)
	}

	target := strings.TrimSpace(req.Target)
	if target == "" {
		return result, nil
	}
	target = filepath.Clean(target)
	scanRoot := target
	if target == "/" {
		scanRoot = core.DefaultPrefix
	}
	if result.Existing, err = core.FindExistingInstalls(s.OpenFS(scanRoot)); err != nil {
		log.Ctx(ctx).Debug().Err(err).Str("root", scanRoot).Msg("existing install scan failed")
	}
	packages, err := s.payloadPackages(root)
	if err != nil {
		return result, err
	}
	result.Detected = core.DetectInstalled(s.OpenFS(target), packages, core.DetectionSampleLimit)
	return result, nil
}

func (s Service) payloadPackages(root string) ([]types.Package, error) {
	groups, err := s.LayoutReader.ListGroups(root)
	if err != nil {
		return nil, err
	}
	var packages []types.Package
	for _, group := range groups {
		names, err := s.LayoutReader.ReadPackageList(root, group)
		if err != nil {
			return nil, err
		}
		for _, name := range names {
			pkg, err := s.LayoutReader.ReadPackage(root, group, name)
			if err != nil {
				return nil, err
			}
			packages = append(packages, pkg)
		}
	}
	return packages, nil
}
