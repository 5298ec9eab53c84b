package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"rocm-installer/internal/app"
)

type inspectOptions struct {
	Target string
}

func newInspectCommand() *cobra.Command {
	opts := inspectOptions{}
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Show payload components, architectures and existing installs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInspect(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.Target, "target", "", "Install root to scan for existing installs")
	return cmd
}

func runInspect(cmd *cobra.Command, opts inspectOptions) error {
	service := newAppService(cmd)
	result, err := service.Inspect(cmd.Context(), app.InspectRequest{
		PayloadDir: payloadDir(cmd),
		Target:     opts.Target,
	})
	if err != nil {
		return err
	}

	fmt.Printf("installer %s, ROCm %s (%s)\n", result.Version.InstallerVersion, result.Version.RocmVersion, result.Version.BuildTag)
	if result.Version.AmdgpuDKMSBuild != "" {
		fmt.Printf("amdgpu dkms: %s\n", result.Version.AmdgpuDKMSBuild)
	}
	fmt.Printf("architectures: %s\n", strings.Join(result.Archs, ", "))
	fmt.Println("components:")
	for _, component := range result.Components {
		if len(component.Archs) > 0 {
			fmt.Printf("- %s (%s)\n", component.Name, strings.Join(component.Archs, ", "))
			continue
		}
		fmt.Printf("- %s\n", component.Name)
	}
	if opts.Target == "" {
		return nil
	}
	fmt.Printf("existing installs under %s: %d\n", opts.Target, len(result.Existing))
	for _, install := range result.Existing {
		fmt.Printf("- %s (%s)\n", filepath.Join(opts.Target, install.Path), install.Version)
	}
	detected := result.Detected
	fmt.Printf("detected packages: %d base, %d gfx", len(detected.Base), len(detected.Gfx))
	if len(detected.Archs) > 0 {
		fmt.Printf(" (%s)", strings.Join(detected.Archs, ", "))
	}
	fmt.Println()
	return nil
}
