package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"rocm-installer/internal/app"
	"rocm-installer/internal/types"
)

type installRocmOptions struct {
	Target     string
	Gfx        string
	Components []string
	Force      bool
	Deps       string
	PostRocm   bool
	NoPostRocm bool
	GPUAccess  string
	RepoIndex  string
}

type installAmdgpuOptions struct {
	Force     bool
	Deps      string
	GPUAccess string
	RepoIndex string
	Start     bool
}

func newInstallCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "install",
		Short: "Install ROCm components or the amdgpu driver from the payload",
	}
	cmd.AddCommand(newInstallRocmCommand())
	cmd.AddCommand(newInstallAmdgpuCommand())
	return cmd
}

func newInstallRocmCommand() *cobra.Command {
	opts := installRocmOptions{}
	cmd := &cobra.Command{
		Use:   "rocm",
		Short: "Install ROCm components under a target directory",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInstallRocm(cmd.Context(), cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.Target, "target", "/", "Install root; content lands under <target>/opt")
	cmd.Flags().StringVar(&opts.Gfx, "gfx", "", "GPU architecture, e.g. gfx942")
	cmd.Flags().StringSliceVar(&opts.Components, "compo", nil, "Components to install, e.g. core,dev-tools")
	cmd.Flags().BoolVar(&opts.Force, "force", false, "Install over an existing install of the same version")
	cmd.Flags().StringVar(&opts.Deps, "deps", "", "Dependency step: list, validate, install or install-only")
	cmd.Flags().BoolVar(&opts.PostRocm, "postrocm", false, "Write loader and OpenCL fixups after install")
	cmd.Flags().BoolVar(&opts.NoPostRocm, "no-postrocm", false, "Skip loader and OpenCL fixups even when --postrocm is set")
	cmd.Flags().StringVar(&opts.GPUAccess, "gpu-access", "", "Grant GPU access: user or all")
	cmd.Flags().StringVar(&opts.RepoIndex, "repo-index", "", "Offline package index used instead of the host package manager")
	_ = viper.BindPFlag("target", cmd.Flags().Lookup("target"))
	_ = viper.BindPFlag("gfx", cmd.Flags().Lookup("gfx"))
	_ = viper.BindPFlag("compo", cmd.Flags().Lookup("compo"))
	_ = viper.BindPFlag("repo_index", cmd.Flags().Lookup("repo-index"))
	return cmd
}

func runInstallRocm(ctx context.Context, cmd *cobra.Command, opts installRocmOptions) error {
	req, err := installRocmRequest(cmd, opts)
	if err != nil {
		return err
	}
	result, err := newAppService(cmd).InstallRocm(ctx, req)
	printDeps(result.Deps)
	if err != nil {
		return err
	}
	printInstallReport(result.Report)
	return nil
}

func installRocmRequest(cmd *cobra.Command, opts installRocmOptions) (app.InstallRocmRequest, error) {
	mode, err := app.ParseDepsMode(opts.Deps)
	if err != nil {
		return app.InstallRocmRequest{}, err
	}
	access, err := parseGPUAccess(opts.GPUAccess)
	if err != nil {
		return app.InstallRocmRequest{}, err
	}
	return app.InstallRocmRequest{
		PayloadDir:    payloadDir(cmd),
		Target:        resolveString(cmd, opts.Target, "target", "target"),
		Gfx:           resolveString(cmd, opts.Gfx, "gfx", "gfx"),
		Components:    resolveStrings(cmd, opts.Components, "compo", "compo"),
		Force:         opts.Force,
		AssumeYes:     assumeYes(cmd),
		PostRocm:      opts.PostRocm && !opts.NoPostRocm,
		GPUAccess:     access,
		DepsMode:      mode,
		RepoIndex:     resolveString(cmd, opts.RepoIndex, "repo_index", "repo-index"),
		RequiredTools: viper.GetStringSlice("required_tools"),
	}, nil
}

func newInstallAmdgpuCommand() *cobra.Command {
	opts := installAmdgpuOptions{}
	cmd := &cobra.Command{
		Use:   "amdgpu",
		Short: "Install the amdgpu DKMS driver onto the system root",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInstallAmdgpu(cmd.Context(), cmd, opts)
		},
	}
	cmd.Flags().BoolVar(&opts.Force, "force", false, "Overwrite package-manager owned driver files without asking")
	cmd.Flags().StringVar(&opts.Deps, "deps", "", "Dependency step: list, validate, install or install-only")
	cmd.Flags().StringVar(&opts.GPUAccess, "gpu-access", "", "Grant GPU access: user or all")
	cmd.Flags().StringVar(&opts.RepoIndex, "repo-index", "", "Offline package index used instead of the host package manager")
	cmd.Flags().BoolVar(&opts.Start, "start", false, "Load the amdgpu module after install")
	return cmd
}

func runInstallAmdgpu(ctx context.Context, cmd *cobra.Command, opts installAmdgpuOptions) error {
	mode, err := app.ParseDepsMode(opts.Deps)
	if err != nil {
		return err
	}
	access, err := parseGPUAccess(opts.GPUAccess)
	if err != nil {
		return err
	}
	result, err := newAppService(cmd).InstallAmdgpu(ctx, app.InstallAmdgpuRequest{
		PayloadDir: payloadDir(cmd),
		Force:      opts.Force,
		AssumeYes:  assumeYes(cmd),
		GPUAccess:  access,
		DepsMode:   mode,
		RepoIndex:  resolveString(cmd, opts.RepoIndex, "repo_index", "repo-index"),
		Start:      opts.Start,
	})
	printDeps(result.Deps)
	if err != nil {
		return err
	}
	printInstallReport(result.Report)
	return nil
}

func parseGPUAccess(value string) (types.GPUAccessMode, error) {
	mode := types.GPUAccessMode(strings.ToLower(strings.TrimSpace(value)))
	switch mode {
	case types.GPUAccessNone, types.GPUAccessUser, types.GPUAccessAll:
		return mode, nil
	default:
		return "", errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("unknown gpu-access mode %q (valid: user, all)", value))
	}
}

func printInstallReport(report types.InstallReport) {
	if report.Skipped {
		fmt.Printf("install skipped (%s)\n", report.SkipReason)
		return
	}
	target := report.Target
	fmt.Printf("installed %d packages into %s\n", len(report.Packages), target.Root)
	if target.Arch != "" {
		fmt.Printf("gfx: %s\n", target.Arch)
	}
	for _, failure := range report.Failures {
		fmt.Printf("! %s %s scriptlet failed: %s\n", failure.Package, failure.Stage, failure.Err)
	}
}
