package ports

import "rocm-installer/internal/types"

// LayoutWriterPort persists extraction results under an extraction root:
// one directory per group, one directory per package inside it.
type LayoutWriterPort interface {
	// ResetPackage clears any previous extraction of the package and
	// returns its empty content directory.
	ResetPackage(root string, group string, pkg string) (string, error)
	WritePackage(root string, pkg types.Package) error
	WritePackageList(root string, group string, names []string) error
	WriteComponents(root string, group string, packages []types.Package) error
	WriteRequiredDeps(path string, set types.RequiredDependencySet) error
	WriteMetaConfig(root string, name string, packages []string) error
	WritePackagesConfig(root string, archives []string) error
}

// LayoutReaderPort reads an extraction root back.
type LayoutReaderPort interface {
	ListGroups(root string) ([]string, error)
	ReadPackageList(root string, group string) ([]string, error)
	ReadComponents(root string, group string) (map[string]string, error)
	// ReadDeps returns a NotFound error when the package has no deps file.
	ReadDeps(root string, group string, pkg string) ([]string, error)
	ReadMetaConfig(root string, name string) ([]string, error)
	ListMetaConfigs(root string) ([]string, error)
	// ReadPackage loads scriptlets and the content manifest of one package.
	ReadPackage(root string, group string, pkg string) (types.Package, error)
	ContentDir(root string, group string, pkg string) string
}

// VersionFilePort reads and writes the positional VERSION file.
type VersionFilePort interface {
	Read(path string) (types.VersionInfo, error)
	Write(path string, info types.VersionInfo) error
}

// RequiredDepsReaderPort reads a resolver output file, one spec per line.
type RequiredDepsReaderPort interface {
	ReadRequiredDeps(path string) ([]string, error)
}
