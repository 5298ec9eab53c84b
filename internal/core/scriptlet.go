package core

import "rocm-installer/internal/types"

// ScriptletArgs returns the lifecycle argument a package manager passes to
// a scriptlet stage: "configure"/"remove" for deb, "1"/"0" for rpm.
func ScriptletArgs(format types.PackageFormat, stage types.ScriptletStage) []string {
	install := stage == types.ScriptletPreinst || stage == types.ScriptletPostinst
	switch format {
	case types.PackageFormatDeb:
		if stage == types.ScriptletPreinst {
			return []string{"install"}
		}
		if install {
			return []string{"configure"}
		}
		return []string{"remove"}
	default:
		if install {
			return []string{"1"}
		}
		return []string{"0"}
	}
}

// PrepareScriptlet returns the body to execute for a stage, relocated from
// /opt to the target prefix when the package was tagged relocatable.
func PrepareScriptlet(pkg types.Package, stage types.ScriptletStage, root string) (string, bool) {
	body := pkg.Scriptlets[stage]
	if body == "" {
		return "", false
	}
	if to := RelocationTarget(root); to != "" && pkg.IsRelocatable(stage) {
		body = Relocate(body, DefaultPrefix, to)
	}
	return body, true
}
