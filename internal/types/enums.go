package types

type PackageFormat string

const (
	PackageFormatRPM PackageFormat = "rpm"
	PackageFormatDeb PackageFormat = "deb"
)

type DistroFamily string

const (
	DistroFamilyEL     DistroFamily = "el"
	DistroFamilySLE    DistroFamily = "sle"
	DistroFamilyDebian DistroFamily = "debian"
	DistroFamilyAmazon DistroFamily = "amazon"
)

// Format returns the native package format of the distro family.
func (f DistroFamily) Format() PackageFormat {
	if f == DistroFamilyDebian {
		return PackageFormatDeb
	}
	return PackageFormatRPM
}

type ScriptletStage string

const (
	ScriptletPreinst  ScriptletStage = "preinst"
	ScriptletPostinst ScriptletStage = "postinst"
	ScriptletPrerm    ScriptletStage = "prerm"
	ScriptletPostrm   ScriptletStage = "postrm"
)

// ScriptletStages lists the canonical stages in lifecycle order.
var ScriptletStages = []ScriptletStage{
	ScriptletPreinst,
	ScriptletPostinst,
	ScriptletPrerm,
	ScriptletPostrm,
}

type ConstraintOp string

const (
	ConstraintOpNone ConstraintOp = ""
	ConstraintOpEq   ConstraintOp = "="
	ConstraintOpEq2  ConstraintOp = "=="
	ConstraintOpNe   ConstraintOp = "!="
	ConstraintOpGte  ConstraintOp = ">="
	ConstraintOpLte  ConstraintOp = "<="
	ConstraintOpGt   ConstraintOp = ">"
	ConstraintOpLt   ConstraintOp = "<"
	// Debian strict forms.
	ConstraintOpGtStrict ConstraintOp = ">>"
	ConstraintOpLtStrict ConstraintOp = "<<"
)

type DepsMode string

const (
	DepsModeNone        DepsMode = ""
	DepsModeList        DepsMode = "list"
	DepsModeValidate    DepsMode = "validate"
	DepsModeInstall     DepsMode = "install"
	DepsModeInstallOnly DepsMode = "install-only"
)

type GPUAccessMode string

const (
	GPUAccessNone GPUAccessMode = ""
	GPUAccessUser GPUAccessMode = "user"
	GPUAccessAll  GPUAccessMode = "all"
)

type InstallPhase string

const (
	PhaseIdle              InstallPhase = "idle"
	PhasePreinstallCheck   InstallPhase = "preinstall-check"
	PhaseComponentResolved InstallPhase = "component-resolved"
	PhaseContentCopied     InstallPhase = "content-copied"
	PhaseScriptletsRun     InstallPhase = "scriptlets-run"
	PhasePostInstallDone   InstallPhase = "post-install-done"
)

type UninstallPhase string

const (
	UninstallIdle               UninstallPhase = "idle"
	UninstallTargetDiscovered   UninstallPhase = "target-discovered"
	UninstallComponentsDetected UninstallPhase = "components-detected"
	UninstallPrermRun           UninstallPhase = "prerm-run"
	UninstallContentRemoved     UninstallPhase = "content-removed"
	UninstallPostrmRun          UninstallPhase = "postrm-run"
)
