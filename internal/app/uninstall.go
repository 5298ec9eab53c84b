package app

import (
	"context"

	"rocm-installer/internal/core"
	"rocm-installer/internal/types"
)

// UninstallRocm removes ROCm components from Target. Without explicit
// components the installed set is detected from the target contents.
func (s Service) UninstallRocm(ctx context.Context, req UninstallRocmRequest) (types.UninstallReport, error) {
	payload, err := newPayload(req.PayloadDir)
	if err != nil {
		return types.UninstallReport{}, err
	}
	_, format := s.packageDatabase(ctx, req.RepoIndex)
	return s.uninstaller(payload.RocmRoot()).Uninstall(ctx, core.UninstallRequest{
		Root:       req.Target,
		Components: req.Components,
		Gfx:        req.Gfx,
		Format:     format,
	})
}

// UninstallAmdgpu removes the driver payload from the system root. When
// the installed DKMS module differs from the payload build the removal
// is refused unless forced.
func (s Service) UninstallAmdgpu(ctx context.Context, req UninstallAmdgpuRequest) (types.UninstallReport, error) {
	payload, err := newPayload(req.PayloadDir)
	if err != nil {
		return types.UninstallReport{}, err
	}
	info, err := s.VersionFile.Read(payload.VersionPath())
	if err != nil {
		return types.UninstallReport{}, err
	}
	_, format := s.packageDatabase(ctx, req.RepoIndex)
	return s.uninstaller(payload.AmdgpuRoot()).Uninstall(ctx, core.UninstallRequest{
		Root:                 "/",
		Format:               format,
		Force:                req.Force,
		PayloadDriverVersion: info.AmdgpuDKMSBuild,
		AllPackages:          true,
	})
}

func (s Service) uninstaller(root string) core.Uninstaller {
	return core.Uninstaller{
		Layout:   s.LayoutReader,
		Registry: core.NewComponentRegistry(s.LayoutReader, root),
		Content:  s.Content,
		Scripts:  s.Scripts,
		Driver:   s.Driver,
		OpenFS:   s.OpenFS,
	}
}
