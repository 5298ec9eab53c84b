package app

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"rocm-installer/internal/types"
)

const (
	RocmComponentDir   = "component-rocm"
	AmdgpuComponentDir = "component-amdgpu"
	VersionFileName    = "VERSION"
	RequiredDepsFile   = "required_deps.txt"
)

// Payload locates the pieces of an unpacked runfile payload.
type Payload struct {
	Dir string
}

func newPayload(dir string) (Payload, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return Payload{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("payload directory is required")
	}
	return Payload{Dir: filepath.Clean(dir)}, nil
}

func (p Payload) RocmRoot() string {
	return filepath.Join(p.Dir, RocmComponentDir)
}

func (p Payload) AmdgpuRoot() string {
	return filepath.Join(p.Dir, AmdgpuComponentDir)
}

func (p Payload) VersionPath() string {
	return filepath.Join(p.Dir, VersionFileName)
}

// versionPathFor locates the VERSION file of the payload an extraction
// root belongs to.
func versionPathFor(extractDir string) string {
	return filepath.Join(filepath.Dir(filepath.Clean(extractDir)), VersionFileName)
}

// CombinedDepsFile names the cross-group resolver output for a format.
func CombinedDepsFile(format types.PackageFormat) string {
	return fmt.Sprintf("rocm_required_deps_%s.txt", format)
}
