package app

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"rocm-installer/internal/core"
	"rocm-installer/internal/policies"
	"rocm-installer/internal/types"
)

// ParseDepsMode accepts the deps= values; empty means no dependency step.
func ParseDepsMode(value string) (types.DepsMode, error) {
	mode := types.DepsMode(strings.ToLower(strings.TrimSpace(value)))
	switch mode {
	case types.DepsModeNone, types.DepsModeList, types.DepsModeValidate, types.DepsModeInstall, types.DepsModeInstallOnly:
		return mode, nil
	default:
		return "", errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("unknown deps mode %q (valid: list, validate, install, install-only)", value))
	}
}

// Deps lists, validates or installs the payload's external dependencies.
// Validation reports unsatisfied lines without failing; installation fails
// with "dependencies unsatisfiable" before touching the host.
func (s Service) Deps(ctx context.Context, req DepsRequest) (DepsResult, error) {
	payload, err := newPayload(req.PayloadDir)
	if err != nil {
		return DepsResult{}, err
	}
	mode, err := ParseDepsMode(string(req.Mode))
	if err != nil {
		return DepsResult{}, err
	}
	if mode == types.DepsModeNone {
		mode = types.DepsModeList
	}
	manager, family, err := s.PackageManager(req.RepoIndex)
	if err != nil {
		return DepsResult{}, err
	}
	format := family.Format()
	lines, err := s.dependencyLines(payload, req.Target, req.Gfx, format)
	if err != nil {
		return DepsResult{}, err
	}
	result := DepsResult{Mode: mode, Lines: lines}
	if mode == types.DepsModeList {
		return result, nil
	}

	specs, err := core.ParseDependencySpecs(lines)
	if err != nil {
		return result, err
	}
	installer := core.NewDependencyInstaller(manager, format)
	switch mode {
	case types.DepsModeValidate:
		report, err := installer.Check(ctx, specs)
		if err != nil {
			return result, err
		}
		result.Report = report
		if unsatisfied := report.Unsatisfied(); len(unsatisfied) > 0 {
			log.Ctx(ctx).Warn().Int("unsatisfied", len(unsatisfied)).Msg(core.UnsatisfiableMessage)
			return result, nil
		}
		log.Ctx(ctx).Info().Int("dependencies", len(specs)).Msg("all dependencies can be met")
	default:
		report, err := installer.Install(ctx, specs)
		result.Report = report
		if err != nil {
			return result, err
		}
		result.Installed = report.ToInstall()
	}
	return result, nil
}

// dependencyLines reads the resolver output for the requested payload. A
// gfx selection reads the base and gfx group files instead of the
// combined one.
func (s Service) dependencyLines(payload Payload, target DepsTarget, gfx string, format types.PackageFormat) ([]string, error) {
	if target == DepsTargetAmdgpu {
		return s.RequiredDeps.ReadRequiredDeps(filepath.Join(payload.AmdgpuRoot(), types.ArchBase, RequiredDepsFile))
	}
	root := payload.RocmRoot()
	if strings.TrimSpace(gfx) == "" {
		return s.RequiredDeps.ReadRequiredDeps(filepath.Join(root, CombinedDepsFile(format)))
	}
	archs, err := core.NewComponentRegistry(s.LayoutReader, root).Archs()
	if err != nil {
		return nil, err
	}
	arch, err := policies.NewArchPolicy(archs).Select(gfx, true)
	if err != nil {
		return nil, err
	}
	var lines []string
	seen := map[string]bool{}
	for _, group := range []string{types.ArchBase, arch} {
		groupLines, err := s.RequiredDeps.ReadRequiredDeps(filepath.Join(root, group, RequiredDepsFile))
		if err != nil {
			return nil, err
		}
		for _, line := range groupLines {
			if !seen[line] {
				seen[line] = true
				lines = append(lines, line)
			}
		}
	}
	return lines, nil
}
