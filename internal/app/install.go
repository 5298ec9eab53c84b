package app

import (
	"context"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"rocm-installer/internal/core"
	"rocm-installer/internal/ports"
	"rocm-installer/internal/types"
)

const amdgpuOwnerPattern = "amdgpu-dkms*"

// InstallRocm runs the optional dependency step, then installs the
// requested components of the ROCm payload under Target.
func (s Service) InstallRocm(ctx context.Context, req InstallRocmRequest) (InstallResult, error) {
	payload, err := newPayload(req.PayloadDir)
	if err != nil {
		return InstallResult{}, err
	}
	info, err := s.VersionFile.Read(payload.VersionPath())
	if err != nil {
		return InstallResult{}, err
	}
	result := InstallResult{}
	stop, err := s.dependencyStep(ctx, &result, DepsRequest{
		PayloadDir: payload.Dir,
		Target:     DepsTargetRocm,
		Mode:       req.DepsMode,
		Gfx:        req.Gfx,
		RepoIndex:  req.RepoIndex,
	})
	if err != nil || stop {
		return result, err
	}

	manager, format := s.packageDatabase(ctx, req.RepoIndex)
	report, err := s.installer(payload.RocmRoot(), manager).Install(ctx, core.InstallRequest{
		Root:          req.Target,
		Components:    req.Components,
		Gfx:           req.Gfx,
		RocmVersion:   info.RocmVersion,
		Format:        format,
		Force:         req.Force,
		AssumeYes:     req.AssumeYes,
		PostRocm:      req.PostRocm,
		GPUAccess:     req.GPUAccess,
		RequiredTools: req.RequiredTools,
	})
	result.Report = report
	return result, err
}

// InstallAmdgpu installs every package of the driver payload onto the
// system root. Driver scriptlets always run.
func (s Service) InstallAmdgpu(ctx context.Context, req InstallAmdgpuRequest) (InstallResult, error) {
	payload, err := newPayload(req.PayloadDir)
	if err != nil {
		return InstallResult{}, err
	}
	result := InstallResult{}
	stop, err := s.dependencyStep(ctx, &result, DepsRequest{
		PayloadDir: payload.Dir,
		Target:     DepsTargetAmdgpu,
		Mode:       req.DepsMode,
		RepoIndex:  req.RepoIndex,
	})
	if err != nil || stop {
		return result, err
	}

	manager, format := s.packageDatabase(ctx, req.RepoIndex)
	report, err := s.installer(payload.AmdgpuRoot(), manager).Install(ctx, core.InstallRequest{
		Root:         "/",
		Format:       format,
		Force:        req.Force,
		AssumeYes:    req.AssumeYes,
		GPUAccess:    req.GPUAccess,
		AllPackages:  true,
		OwnerPattern: amdgpuOwnerPattern,
	})
	result.Report = report
	if err != nil || !req.Start {
		return result, err
	}
	if _, err := s.Host.Run(ctx, "modprobe", "amdgpu"); err != nil {
		return result, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to load the amdgpu module").
			WithCause(err)
	}
	log.Ctx(ctx).Info().Msg("amdgpu module loaded")
	return result, nil
}

// dependencyStep runs the deps= mode ahead of an install and reports
// whether the install itself should be skipped.
func (s Service) dependencyStep(ctx context.Context, result *InstallResult, req DepsRequest) (bool, error) {
	mode, err := ParseDepsMode(string(req.Mode))
	if err != nil {
		return true, err
	}
	if mode == types.DepsModeNone {
		return false, nil
	}
	deps, err := s.Deps(ctx, req)
	result.Deps = &deps
	if err != nil {
		return true, err
	}
	if mode == types.DepsModeInstall {
		return false, nil
	}
	result.Report.Skipped = true
	result.Report.SkipReason = "deps=" + string(mode)
	log.Ctx(ctx).Info().Str("deps", string(mode)).Msg("component install skipped")
	return true, nil
}

// packageDatabase opens the package manager for ownership queries and
// scriptlet argument conventions. Without one, ownership checks are
// skipped and each package's own format decides scriptlet arguments.
func (s Service) packageDatabase(ctx context.Context, repoIndex string) (ports.PackageManagerPort, types.PackageFormat) {
	manager, family, err := s.PackageManager(repoIndex)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("package manager unavailable, skipping ownership checks")
		return nil, ""
	}
	return manager, family.Format()
}

func (s Service) installer(root string, manager ports.PackageManagerPort) core.Installer {
	return core.Installer{
		Layout:   s.LayoutReader,
		Registry: core.NewComponentRegistry(s.LayoutReader, root),
		Content:  s.Content,
		Scripts:  s.Scripts,
		Packages: manager,
		Confirm:  s.Confirm,
		Host:     s.Host,
		OpenFS:   s.OpenFS,
	}
}
