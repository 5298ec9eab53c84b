package core

import (
	"io/fs"
	"path"
	"sort"
	"strings"

	"rocm-installer/internal/types"
)

// DetectionSampleLimit bounds how many content files are probed per
// package. Detection can miss a package whose sampled files were removed.
const DetectionSampleLimit = 20

// DetectInstalled reconstructs which payload packages are present under
// the filesystem rooted at the install target. A package counts as
// installed on the first sampled content file found. Content-less
// packages carrying removal scriptlets are always included.
func DetectInstalled(fsys fs.FS, packages []types.Package, limit int) types.InstalledState {
	if limit <= 0 {
		limit = DetectionSampleLimit
	}
	state := types.InstalledState{}
	archs := map[string]bool{}
	for _, pkg := range packages {
		if pkg.HasRemovalScriptletsOnly() {
			state.ScriptletOnly = append(state.ScriptletOnly, pkg.Name)
			continue
		}
		if !samplePresent(fsys, pkg.Content, limit) {
			continue
		}
		if pkg.Arch == "" || pkg.Arch == types.ArchBase {
			state.Base = append(state.Base, pkg.Name)
			continue
		}
		state.Gfx = append(state.Gfx, pkg.Name)
		archs[pkg.Arch] = true
	}
	for arch := range archs {
		state.Archs = append(state.Archs, arch)
	}
	sort.Strings(state.Archs)
	return state
}

func samplePresent(fsys fs.FS, content []string, limit int) bool {
	for i, rel := range content {
		if i >= limit {
			return false
		}
		name := fsPath(rel)
		if name == "" {
			continue
		}
		if _, err := fs.Lstat(fsys, name); err == nil {
			return true
		}
	}
	return false
}

func fsPath(rel string) string {
	cleaned := path.Clean("/" + strings.TrimSpace(rel))
	cleaned = strings.TrimPrefix(cleaned, "/")
	if cleaned == "" || cleaned == "." {
		return ""
	}
	return cleaned
}

// existingInstallMaxDepth limits the scan for prior installs.
const existingInstallMaxDepth = 4

// FindExistingInstalls scans the target for prior installs: directories
// matching */rocm/core-* and */rocm-*/.info/version files. Paths under the
// installer's own component-rocm tree are ignored.
func FindExistingInstalls(fsys fs.FS) ([]types.ExistingInstall, error) {
	var out []types.ExistingInstall
	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == "." {
				return err
			}
			return nil
		}
		if p == "." {
			return nil
		}
		depth := strings.Count(p, "/") + 1
		if d.IsDir() {
			if d.Name() == "component-rocm" {
				return fs.SkipDir
			}
			if path.Base(path.Dir(p)) == "rocm" && strings.HasPrefix(d.Name(), "core-") {
				out = append(out, types.ExistingInstall{
					Path:    p,
					Version: strings.TrimPrefix(d.Name(), "core-"),
				})
				return fs.SkipDir
			}
			if depth >= existingInstallMaxDepth {
				return fs.SkipDir
			}
			return nil
		}
		if d.Name() == "version" && path.Base(path.Dir(p)) == ".info" {
			install := path.Dir(path.Dir(p))
			base := path.Base(install)
			if strings.HasPrefix(base, "rocm-") {
				out = append(out, types.ExistingInstall{
					Path:    install,
					Version: strings.TrimPrefix(base, "rocm-"),
				})
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SameVersionInstall returns the first existing install matching the
// given ROCm version, comparing on the shortest common component count.
func SameVersionInstall(installs []types.ExistingInstall, version string) (types.ExistingInstall, bool) {
	for _, install := range installs {
		if versionsMatch(install.Version, version) {
			return install, true
		}
	}
	return types.ExistingInstall{}, false
}

func versionsMatch(a string, b string) bool {
	left := strings.Split(a, ".")
	right := strings.Split(b, ".")
	n := min(len(left), len(right))
	if n == 0 || a == "" || b == "" {
		return false
	}
	for i := 0; i < n; i++ {
		if left[i] != right[i] {
			return false
		}
	}
	return true
}
