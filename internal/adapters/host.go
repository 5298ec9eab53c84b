package adapters

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/spf13/viper"

	"rocm-installer/internal/ports"
	"rocm-installer/internal/shared"
	"rocm-installer/internal/types"
)

const DefaultOSReleasePath = "/etc/os-release"

// HostAdapter probes and mutates the local machine through os/exec.
type HostAdapter struct {
	OSReleasePath string
}

func NewHostAdapter() HostAdapter {
	return HostAdapter{OSReleasePath: DefaultOSReleasePath}
}

func (a HostAdapter) LookPath(tool string) error {
	_, err := exec.LookPath(tool)
	return err
}

// DetectDistro maps os-release ID and ID_LIKE onto a distro family.
func (a HostAdapter) DetectDistro() (types.DistroFamily, error) {
	path := a.OSReleasePath
	if path == "" {
		path = DefaultOSReleasePath
	}
	release := viper.New()
	release.SetConfigFile(path)
	release.SetConfigType("env")
	if err := release.ReadInConfig(); err != nil {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg(fmt.Sprintf("cannot read %s", path)).
			WithCause(err)
	}
	ids := append([]string{release.GetString("id")}, strings.Fields(release.GetString("id_like"))...)
	for _, id := range ids {
		if family, ok := distroFamilies[strings.Trim(strings.ToLower(id), `"`)]; ok {
			return family, nil
		}
	}
	return "", errbuilder.New().
		WithCode(errbuilder.CodeFailedPrecondition).
		WithMsg(fmt.Sprintf("unsupported distribution: %s", strings.Join(ids, " ")))
}

var distroFamilies = map[string]types.DistroFamily{
	"rhel":          types.DistroFamilyEL,
	"centos":        types.DistroFamilyEL,
	"fedora":        types.DistroFamilyEL,
	"rocky":         types.DistroFamilyEL,
	"almalinux":     types.DistroFamilyEL,
	"ol":            types.DistroFamilyEL,
	"sles":          types.DistroFamilySLE,
	"suse":          types.DistroFamilySLE,
	"opensuse":      types.DistroFamilySLE,
	"opensuse-leap": types.DistroFamilySLE,
	"debian":        types.DistroFamilyDebian,
	"ubuntu":        types.DistroFamilyDebian,
	"amzn":          types.DistroFamilyAmazon,
}

func (a HostAdapter) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = append(os.Environ(), "DEBIAN_FRONTEND=noninteractive", "LC_ALL=C")
	output, err := cmd.CombinedOutput()
	if err != nil {
		return output, shared.CommandError(output, err)
	}
	return output, nil
}

// InvokingUser returns the user behind sudo, falling back to $USER.
func (a HostAdapter) InvokingUser() string {
	if user := os.Getenv("SUDO_USER"); user != "" {
		return user
	}
	return os.Getenv("USER")
}

// DKMSStatusAdapter reads the installed amdgpu module version from
// "dkms status".
type DKMSStatusAdapter struct {
	Runner CommandRunner
}

func NewDKMSStatusAdapter(runner CommandRunner) DKMSStatusAdapter {
	return DKMSStatusAdapter{Runner: runner}
}

func (a DKMSStatusAdapter) InstalledDriverVersion(ctx context.Context) (string, error) {
	output, err := a.Runner.Run(ctx, "dkms", "status", "amdgpu")
	if err != nil {
		// No dkms on the host means no driver installed through it.
		return "", nil
	}
	return parseDKMSStatus(string(output)), nil
}

// parseDKMSStatus accepts both "amdgpu/<ver>, <kernel>, <arch>: installed"
// and the older "amdgpu, <ver>, <kernel>, <arch>: installed".
func parseDKMSStatus(output string) string {
	for _, line := range strings.Split(output, "\n") {
		if !strings.HasSuffix(strings.TrimSpace(line), "installed") {
			continue
		}
		fields := strings.Split(line, ",")
		head := strings.TrimSpace(fields[0])
		if module, version, ok := strings.Cut(head, "/"); ok && module == "amdgpu" {
			return version
		}
		if head == "amdgpu" && len(fields) > 1 {
			return strings.TrimSpace(fields[1])
		}
	}
	return ""
}

var (
	_ ports.HostPort         = HostAdapter{}
	_ ports.DriverStatusPort = DKMSStatusAdapter{}
	_ CommandRunner          = HostAdapter{}
)
