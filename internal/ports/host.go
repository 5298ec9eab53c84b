package ports

import (
	"context"

	"rocm-installer/internal/types"
)

// ScriptletRunnerPort executes one scriptlet body with bash.
type ScriptletRunnerPort interface {
	Run(ctx context.Context, body string, args []string) error
}

// ContentPort moves payload files between the extraction tree and the
// install root.
type ContentPort interface {
	// CopyTree copies every file under src into dest, preserving modes
	// and symlinks, and returns the number of files copied.
	CopyTree(ctx context.Context, src string, dest string) (int, error)
	// RemoveFiles deletes the given paths relative to root and prunes
	// parent directories left empty, never removing root itself.
	RemoveFiles(root string, relPaths []string) (removed int, pruned int, err error)
	// WriteFile places a generated file, creating parent directories.
	WriteFile(path string, data []byte) error
}

type ConfirmPort interface {
	Confirm(prompt string) (bool, error)
}

// HostPort covers host probes and privileged host mutations.
type HostPort interface {
	LookPath(tool string) error
	DetectDistro() (types.DistroFamily, error)
	// Run executes a command and returns its combined output.
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
	InvokingUser() string
}

// DriverStatusPort reports the installed amdgpu DKMS module version.
type DriverStatusPort interface {
	InstalledDriverVersion(ctx context.Context) (string, error)
}
