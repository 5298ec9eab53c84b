package adapters

import (
	"os"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"rocm-installer/internal/ports"
	"rocm-installer/internal/types"
)

// VersionFileAdapter reads the payload VERSION file. Fields are
// positional, one per line; missing trailing lines read as empty.
type VersionFileAdapter struct{}

func NewVersionFileAdapter() VersionFileAdapter {
	return VersionFileAdapter{}
}

func (a VersionFileAdapter) Read(path string) (types.VersionInfo, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return types.VersionInfo{}, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg("VERSION file not found").
			WithCause(err)
	}
	lines := strings.Split(strings.TrimRight(string(content), "\n"), "\n")
	field := func(i int) string {
		if i < len(lines) {
			return strings.TrimSpace(lines[i])
		}
		return ""
	}
	info := types.VersionInfo{
		InstallerVersion: field(0),
		RocmVersion:      field(1),
		BuildTag:         field(2),
		BuildRunID:       field(3),
		PullTag:          field(4),
		AmdgpuDKMSBuild:  field(5),
	}
	if info.RocmVersion == "" {
		return types.VersionInfo{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("VERSION file missing ROCm version")
	}
	return info, nil
}

func (a VersionFileAdapter) Write(path string, info types.VersionInfo) error {
	lines := []string{
		info.InstallerVersion,
		info.RocmVersion,
		info.BuildTag,
		info.BuildRunID,
		info.PullTag,
		info.AmdgpuDKMSBuild,
	}
	for len(lines) > 3 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return writeLinesKeepBlank(path, lines)
}

func writeLinesKeepBlank(path string, lines []string) error {
	return writeFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644)
}

var _ ports.VersionFilePort = VersionFileAdapter{}
