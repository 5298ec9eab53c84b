package types

// PackageIndexFile is an offline snapshot of a distro repository used
// when no package manager is reachable.
type PackageIndexFile struct {
	Family    DistroFamily        `yaml:"family"`
	Available map[string]string   `yaml:"available"`
	Provides  map[string][]string `yaml:"provides,omitempty"`
	Installed map[string]string   `yaml:"installed,omitempty"`
}
