package adapters

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"rocm-installer/internal/ports"
	"rocm-installer/internal/types"
)

const (
	packageListFile     = "packages.txt"
	componentsFile      = "components.txt"
	packagesConfigFile  = "rocm-packages.config"
	packageInfoFile     = "package.info"
	contentManifestFile = "files.txt"
	depsDir             = "deps"
	depsFile            = "deps.txt"
	libsFile            = "libs.txt"
	scriptletsDir       = "scriptlets"
	contentDir          = "content"
	metaDir             = "meta"
	metaConfigSuffix    = "-meta.config"
)

// ExtractLayoutAdapter stores extraction results as plain files:
//
//	<root>/<group>/packages.txt
//	<root>/<group>/components.txt
//	<root>/<group>/<pkg>/{package.info,files.txt,content/,deps/,scriptlets/}
//	<root>/meta/<name>-meta.config
//	<root>/rocm-packages.config
type ExtractLayoutAdapter struct{}

func NewExtractLayoutAdapter() ExtractLayoutAdapter {
	return ExtractLayoutAdapter{}
}

func (a ExtractLayoutAdapter) ResetPackage(root string, group string, pkg string) (string, error) {
	dir, err := a.packageDir(root, group, pkg)
	if err != nil {
		return "", err
	}
	if err := os.RemoveAll(dir); err != nil {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("failed to clear %s", dir)).
			WithCause(err)
	}
	content := filepath.Join(dir, contentDir)
	if err := ensureDir(content); err != nil {
		return "", err
	}
	return content, nil
}

func (a ExtractLayoutAdapter) WritePackage(root string, pkg types.Package) error {
	dir, err := a.packageDir(root, pkg.Arch, pkg.Name)
	if err != nil {
		return err
	}
	stages := make([]string, 0, len(pkg.RelocatableStages))
	for _, stage := range pkg.RelocatableStages {
		stages = append(stages, string(stage))
	}
	info := fmt.Sprintf(
		"name=%s\nversion=%s\nrelease=%s\nvendor=%s\nformat=%s\nrelocatable=%s\n",
		pkg.Name,
		pkg.Version,
		pkg.Release,
		pkg.Vendor,
		pkg.Format,
		strings.Join(stages, ","),
	)
	if err := writeFile(filepath.Join(dir, packageInfoFile), []byte(info), 0o644); err != nil {
		return err
	}
	if err := writeLines(filepath.Join(dir, contentManifestFile), pkg.Content); err != nil {
		return err
	}
	if err := writeLines(filepath.Join(dir, depsDir, depsFile), pkg.Dependencies); err != nil {
		return err
	}
	if err := writeLines(filepath.Join(dir, depsDir, libsFile), pkg.LibraryDeps); err != nil {
		return err
	}
	for _, stage := range types.ScriptletStages {
		body := pkg.Scriptlets[stage]
		if body == "" {
			continue
		}
		if err := writeFile(filepath.Join(dir, scriptletsDir, string(stage)), []byte(body), 0o755); err != nil {
			return err
		}
	}
	return nil
}

func (a ExtractLayoutAdapter) WritePackageList(root string, group string, names []string) error {
	return writeLines(filepath.Join(root, group, packageListFile), names)
}

func (a ExtractLayoutAdapter) WriteComponents(root string, group string, packages []types.Package) error {
	lines := make([]string, 0, len(packages))
	for _, pkg := range packages {
		lines = append(lines, fmt.Sprintf("%s=%s", pkg.Name, pkg.Version))
	}
	return writeLines(filepath.Join(root, group, componentsFile), lines)
}

func (a ExtractLayoutAdapter) WriteRequiredDeps(path string, set types.RequiredDependencySet) error {
	return writeLines(path, set.Lines())
}

func (a ExtractLayoutAdapter) WriteMetaConfig(root string, name string, packages []string) error {
	return writeLines(filepath.Join(root, metaDir, name+metaConfigSuffix), packages)
}

func (a ExtractLayoutAdapter) WritePackagesConfig(root string, archives []string) error {
	return writeLines(filepath.Join(root, packagesConfigFile), archives)
}

func (a ExtractLayoutAdapter) packageDir(root string, group string, pkg string) (string, error) {
	if root == "" || group == "" || pkg == "" {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("extraction root, group and package are required")
	}
	return filepath.Join(root, group, pkg), nil
}

func ensureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("failed to create %s", dir)).
			WithCause(err)
	}
	return nil
}

func writeFile(path string, data []byte, mode os.FileMode) error {
	if err := ensureDir(filepath.Dir(path)); err != nil {
		return err
	}
	if err := os.WriteFile(path, data, mode); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("failed to write %s", path)).
			WithCause(err)
	}
	// WriteFile keeps the mode of an existing file.
	if err := os.Chmod(path, mode); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("failed to chmod %s", path)).
			WithCause(err)
	}
	return nil
}

// writeLines writes one entry per line. An empty list produces an empty
// file so readers can tell "no entries" from "never written".
func writeLines(path string, lines []string) error {
	content := strings.Join(lines, "\n")
	if content != "" {
		content += "\n"
	}
	return writeFile(path, []byte(content), 0o644)
}

var (
	_ ports.LayoutWriterPort       = ExtractLayoutAdapter{}
	_ ports.LayoutReaderPort       = ExtractLayoutAdapter{}
	_ ports.RequiredDepsReaderPort = ExtractLayoutAdapter{}
)
