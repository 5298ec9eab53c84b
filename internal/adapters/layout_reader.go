package adapters

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"rocm-installer/internal/types"
)

// ListGroups returns the group directories holding a package list.
func (a ExtractLayoutAdapter) ListGroups(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("extraction root not found: %s", root)).
			WithCause(err)
	}
	var groups []string
	for _, entry := range entries {
		if !entry.IsDir() || entry.Name() == metaDir {
			continue
		}
		if _, err := os.Stat(filepath.Join(root, entry.Name(), packageListFile)); err == nil {
			groups = append(groups, entry.Name())
		}
	}
	return groups, nil
}

func (a ExtractLayoutAdapter) ReadPackageList(root string, group string) ([]string, error) {
	return readLines(filepath.Join(root, group, packageListFile))
}

func (a ExtractLayoutAdapter) ReadComponents(root string, group string) (map[string]string, error) {
	lines, err := readLines(filepath.Join(root, group, componentsFile))
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(lines))
	for _, line := range lines {
		name, version, ok := strings.Cut(line, "=")
		if !ok {
			return nil, errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg(fmt.Sprintf("invalid %s entry: %s", componentsFile, line))
		}
		out[strings.TrimSpace(name)] = strings.TrimSpace(version)
	}
	return out, nil
}

func (a ExtractLayoutAdapter) ReadDeps(root string, group string, pkg string) ([]string, error) {
	return readLines(filepath.Join(root, group, pkg, depsDir, depsFile))
}

// ReadRequiredDeps reads a required_deps.txt or combined
// rocm_required_deps_<fmt>.txt file.
func (a ExtractLayoutAdapter) ReadRequiredDeps(path string) ([]string, error) {
	return readLines(path)
}

func (a ExtractLayoutAdapter) ReadMetaConfig(root string, name string) ([]string, error) {
	return readLines(filepath.Join(root, metaDir, name+metaConfigSuffix))
}

func (a ExtractLayoutAdapter) ListMetaConfigs(root string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(root, metaDir))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to list meta configs").
			WithCause(err)
	}
	var names []string
	for _, entry := range entries {
		if name, ok := strings.CutSuffix(entry.Name(), metaConfigSuffix); ok && !entry.IsDir() {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (a ExtractLayoutAdapter) ReadPackage(root string, group string, pkg string) (types.Package, error) {
	dir, err := a.packageDir(root, group, pkg)
	if err != nil {
		return types.Package{}, err
	}
	out, err := readPackageInfo(filepath.Join(dir, packageInfoFile))
	if err != nil {
		return types.Package{}, err
	}
	out.Arch = group
	if out.Content, err = readLines(filepath.Join(dir, contentManifestFile)); err != nil {
		return types.Package{}, err
	}
	if out.Dependencies, err = readOptionalLines(filepath.Join(dir, depsDir, depsFile)); err != nil {
		return types.Package{}, err
	}
	if out.LibraryDeps, err = readOptionalLines(filepath.Join(dir, depsDir, libsFile)); err != nil {
		return types.Package{}, err
	}
	out.Scriptlets = map[types.ScriptletStage]string{}
	for _, stage := range types.ScriptletStages {
		body, err := os.ReadFile(filepath.Join(dir, scriptletsDir, string(stage)))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return types.Package{}, errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg(fmt.Sprintf("failed to read %s scriptlet of %s", stage, pkg)).
				WithCause(err)
		}
		out.Scriptlets[stage] = string(body)
	}
	return out, nil
}

func (a ExtractLayoutAdapter) ContentDir(root string, group string, pkg string) string {
	return filepath.Join(root, group, pkg, contentDir)
}

func readPackageInfo(path string) (types.Package, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return types.Package{}, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("%s not found", path)).
			WithCause(err)
	}
	pkg := types.Package{}
	for _, line := range strings.Split(string(content), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return types.Package{}, errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg(fmt.Sprintf("invalid %s format", packageInfoFile))
		}
		value = strings.TrimSpace(value)
		switch strings.TrimSpace(key) {
		case "name":
			pkg.Name = value
		case "version":
			pkg.Version = value
		case "release":
			pkg.Release = value
		case "vendor":
			pkg.Vendor = value
		case "format":
			pkg.Format = types.PackageFormat(value)
		case "relocatable":
			for _, stage := range strings.Split(value, ",") {
				if stage = strings.TrimSpace(stage); stage != "" {
					pkg.RelocatableStages = append(pkg.RelocatableStages, types.ScriptletStage(stage))
				}
			}
		}
	}
	if pkg.Name == "" {
		return types.Package{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("%s missing name", path))
	}
	return pkg, nil
}

// readLines returns the non-blank lines of a file, or a NotFound error.
func readLines(path string) ([]string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("%s not found", path)).
			WithCause(err)
	}
	var lines []string
	for _, line := range strings.Split(string(content), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines, nil
}

func readOptionalLines(path string) ([]string, error) {
	lines, err := readLines(path)
	if err != nil && errbuilder.CodeOf(err) == errbuilder.CodeNotFound {
		return nil, nil
	}
	return lines, err
}
