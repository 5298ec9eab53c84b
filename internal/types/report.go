package types

type Installability struct {
	Spec             DependencySpec
	Package          string
	Installable      bool
	Installed        bool
	InstalledVersion string
	AvailableVersion string
	// Satisfied is true when the installed version meets the constraint.
	Satisfied bool
}

type DependencyReport struct {
	Entries []Installability
}

func (r DependencyReport) Unsatisfied() []Installability {
	var out []Installability
	for _, entry := range r.Entries {
		if !entry.Satisfied && !entry.Installable {
			out = append(out, entry)
		}
	}
	return out
}

// ToInstall returns the package names that need installing or upgrading.
func (r DependencyReport) ToInstall() []string {
	var out []string
	seen := map[string]bool{}
	for _, entry := range r.Entries {
		if entry.Satisfied || !entry.Installable || seen[entry.Package] {
			continue
		}
		seen[entry.Package] = true
		out = append(out, entry.Package)
	}
	return out
}

type ScriptletFailure struct {
	Package string
	Stage   ScriptletStage
	Err     string
}

type InstallReport struct {
	Target     InstallTarget
	Phases     []InstallPhase
	Packages   []string
	Failures   []ScriptletFailure
	Overwrote  bool
	PostRocm   bool
	Skipped    bool
	SkipReason string
}

type UninstallReport struct {
	Root         string
	Phases       []UninstallPhase
	Packages     []string
	RemovedFiles int
	PrunedDirs   int
	Failures     []ScriptletFailure
	Warnings     []string
}
