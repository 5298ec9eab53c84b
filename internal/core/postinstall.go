package core

import (
	"path"
	"path/filepath"
	"sort"
	"strings"

	"rocm-installer/internal/types"
)

const (
	openCLLibrary = "libamdocl64.so"
	udevRulePath  = "/etc/udev/rules.d/70-amdgpu.rules"
)

// udevRule grants every user read/write access to the compute and render
// device nodes.
const udevRule = `KERNEL=="kfd", GROUP="render", MODE="0666"
SUBSYSTEM=="drm", KERNEL=="renderD*", GROUP="render", MODE="0666"
`

// GPUAccessGroups are the device groups granting access to /dev/kfd and
// /dev/dri render nodes.
var GPUAccessGroups = []string{"render", "video"}

// Fixup is a generated file placed after content and scriptlets.
type Fixup struct {
	Path string
	Data []byte
}

// PlanFixups computes the post-install files for a system install: a
// loader config listing the installed library directories and an OpenCL
// ICD entry when the AMD OpenCL runtime is present. Non-system roots get
// no fixups.
func PlanFixups(target types.InstallTarget, packages []types.Package) []Fixup {
	if filepath.Clean(target.Root) != "/" {
		return nil
	}
	libDirs := map[string]bool{}
	var icd string
	for _, pkg := range packages {
		for _, rel := range pkg.Content {
			name := "/" + fsPath(rel)
			dir := path.Dir(name)
			if !strings.HasPrefix(name, DefaultPrefix+"/") || !strings.Contains(path.Base(name), ".so") {
				continue
			}
			if base := path.Base(dir); base == "lib" || base == "lib64" {
				libDirs[dir] = true
			}
			if strings.HasPrefix(path.Base(name), openCLLibrary) && icd == "" {
				icd = name
			}
		}
	}
	var fixups []Fixup
	if len(libDirs) > 0 {
		dirs := sortedKeys(libDirs)
		fixups = append(fixups, Fixup{
			Path: filepath.Join("/etc/ld.so.conf.d", target.VersionDir+".conf"),
			Data: []byte(strings.Join(dirs, "\n") + "\n"),
		})
	}
	if icd != "" {
		fixups = append(fixups, Fixup{
			Path: "/etc/OpenCL/vendors/amdocl64_" + strings.TrimPrefix(target.VersionDir, "rocm-") + ".icd",
			Data: []byte(icd + "\n"),
		})
	}
	sort.Slice(fixups, func(i, j int) bool { return fixups[i].Path < fixups[j].Path })
	return fixups
}
