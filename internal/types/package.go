package types

// ArchBase tags packages without a GPU architecture suffix.
const ArchBase = "base"

// Package is one extracted archive. Name is the archive basename without
// its version suffix and doubles as the extraction directory name.
type Package struct {
	Name    string
	Version string
	Release string
	Vendor  string
	// Arch is ArchBase or a gfx tag such as "gfx942".
	Arch         string
	Format       PackageFormat
	Dependencies []string
	LibraryDeps  []string
	Scriptlets   map[ScriptletStage]string
	// RelocatableStages holds stages whose body references /opt.
	RelocatableStages []ScriptletStage
	// Content lists payload files relative to the install root.
	Content []string
}

// HasRemovalScriptletsOnly reports whether the package ships no content
// but carries prerm or postrm logic (typical for meta-packages).
func (p Package) HasRemovalScriptletsOnly() bool {
	if len(p.Content) > 0 {
		return false
	}
	return p.Scriptlets[ScriptletPrerm] != "" || p.Scriptlets[ScriptletPostrm] != ""
}

func (p Package) IsRelocatable(stage ScriptletStage) bool {
	for _, s := range p.RelocatableStages {
		if s == stage {
			return true
		}
	}
	return false
}

// ArchiveMetadata is the raw header view of a package archive, before
// normalization into a Package.
type ArchiveMetadata struct {
	Name     string
	Version  string
	Release  string
	Vendor   string
	Format   PackageFormat
	Requires []Requirement
	// Scriptlets maps canonical stages to bodies. Interpreter-only
	// entries are reported through Programs.
	Scriptlets map[ScriptletStage]string
	Programs   map[ScriptletStage]string
}

// Requirement is one dependency entry as stored in the archive header.
type Requirement struct {
	Text string
	// Auto marks requirements generated by the build system, such as
	// shared-library sonames.
	Auto bool
}

type MetaComponent struct {
	Name         string
	Arch         string
	MetaPackage  string
	BasePackages []string
	GfxPackages  []string
}

// Packages returns base packages followed by gfx packages.
func (m MetaComponent) Packages() []string {
	out := make([]string, 0, len(m.BasePackages)+len(m.GfxPackages))
	out = append(out, m.BasePackages...)
	return append(out, m.GfxPackages...)
}

type InstallTarget struct {
	Root        string
	Arch        string
	Components  []string
	RocmVersion string
	// VersionDir is "rocm-<major.minor.patch>".
	VersionDir string
}

type InstalledState struct {
	Base []string
	Gfx  []string
	// ScriptletOnly holds content-less packages added for their removal
	// scriptlets.
	ScriptletOnly []string
	Archs         []string
}

func (s InstalledState) Empty() bool {
	return len(s.Base) == 0 && len(s.Gfx) == 0
}

// All returns every detected package name, base first.
func (s InstalledState) All() []string {
	out := make([]string, 0, len(s.Base)+len(s.Gfx)+len(s.ScriptletOnly))
	out = append(out, s.Base...)
	out = append(out, s.Gfx...)
	return append(out, s.ScriptletOnly...)
}

// VersionInfo mirrors the positional VERSION file shipped with the payload.
type VersionInfo struct {
	InstallerVersion string
	RocmVersion      string
	BuildTag         string
	BuildRunID       string
	PullTag          string
	AmdgpuDKMSBuild  string
}

type ExistingInstall struct {
	Path    string
	Version string
}
