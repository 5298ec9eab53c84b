package app

import "rocm-installer/internal/types"

type ExtractRequest struct {
	PackagesDir string
	OutputDir   string
}

type ExtractGroupSummary struct {
	Group        string
	Packages     int
	Components   int
	RequiredDeps int
}

type ExtractResult struct {
	OutputDir string
	Archives  int
	Groups    []ExtractGroupSummary
}

type ResolveRequest struct {
	ExtractDir string
	// RocmVersion falls back to the VERSION file next to ExtractDir.
	RocmVersion string
	Prefix      string
	// Components maps logical component names to meta-package bases.
	Components map[string]string
}

type ResolveResult struct {
	MetaConfigs  []string
	CombinedPath string
	CombinedDeps int
}

// DepsTarget selects which payload's dependencies are examined.
type DepsTarget string

const (
	DepsTargetRocm   DepsTarget = "rocm"
	DepsTargetAmdgpu DepsTarget = "amdgpu"
)

type DepsRequest struct {
	PayloadDir string
	Target     DepsTarget
	Mode       types.DepsMode
	// Gfx narrows ROCm dependencies to the base and one gfx group.
	Gfx       string
	RepoIndex string
}

type DepsResult struct {
	Mode      types.DepsMode
	Lines     []string
	Report    types.DependencyReport
	Installed []string
}

type InstallRocmRequest struct {
	PayloadDir    string
	Target        string
	Gfx           string
	Components    []string
	Force         bool
	AssumeYes     bool
	PostRocm      bool
	GPUAccess     types.GPUAccessMode
	DepsMode      types.DepsMode
	RepoIndex     string
	RequiredTools []string
}

type InstallAmdgpuRequest struct {
	PayloadDir string
	Force      bool
	AssumeYes  bool
	GPUAccess  types.GPUAccessMode
	DepsMode   types.DepsMode
	RepoIndex  string
	// Start loads the kernel module once the driver is installed.
	Start bool
}

type InstallResult struct {
	Deps   *DepsResult
	Report types.InstallReport
}

type UninstallRocmRequest struct {
	PayloadDir string
	Target     string
	Gfx        string
	Components []string
	RepoIndex  string
}

type UninstallAmdgpuRequest struct {
	PayloadDir string
	Force      bool
	RepoIndex  string
}

type InspectRequest struct {
	PayloadDir string
	Target     string
}

type InspectComponent struct {
	Name  string
	Archs []string
}

type InspectResult struct {
	Version    types.VersionInfo
	Components []InspectComponent
	Archs      []string
	Existing   []types.ExistingInstall
	Detected   types.InstalledState
}
