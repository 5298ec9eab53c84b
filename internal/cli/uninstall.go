package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"rocm-installer/internal/app"
	"rocm-installer/internal/types"
)

type uninstallRocmOptions struct {
	Target     string
	Gfx        string
	Components []string
}

type uninstallAmdgpuOptions struct {
	Force bool
}

func newUninstallCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "uninstall",
		Short: "Remove installed ROCm components or the amdgpu driver",
	}
	cmd.AddCommand(newUninstallRocmCommand())
	cmd.AddCommand(newUninstallAmdgpuCommand())
	return cmd
}

func newUninstallRocmCommand() *cobra.Command {
	opts := uninstallRocmOptions{}
	cmd := &cobra.Command{
		Use:   "rocm",
		Short: "Remove ROCm components from a target directory",
		Long:  "Without --compo the installed components are detected from the files present under the target.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runUninstallRocm(cmd.Context(), cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.Target, "target", "/", "Install root used at install time")
	cmd.Flags().StringVar(&opts.Gfx, "gfx", "", "GPU architecture to remove")
	cmd.Flags().StringSliceVar(&opts.Components, "compo", nil, "Components to remove")
	_ = viper.BindPFlag("target", cmd.Flags().Lookup("target"))
	return cmd
}

func runUninstallRocm(ctx context.Context, cmd *cobra.Command, opts uninstallRocmOptions) error {
	report, err := newAppService(cmd).UninstallRocm(ctx, app.UninstallRocmRequest{
		PayloadDir: payloadDir(cmd),
		Target:     resolveString(cmd, opts.Target, "target", "target"),
		Gfx:        opts.Gfx,
		Components: splitAll(opts.Components),
		RepoIndex:  viper.GetString("repo_index"),
	})
	if err != nil {
		return err
	}
	printUninstallReport(report)
	return nil
}

func newUninstallAmdgpuCommand() *cobra.Command {
	opts := uninstallAmdgpuOptions{}
	cmd := &cobra.Command{
		Use:   "amdgpu",
		Short: "Remove the amdgpu DKMS driver from the system root",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runUninstallAmdgpu(cmd.Context(), cmd, opts)
		},
	}
	cmd.Flags().BoolVar(&opts.Force, "force", false, "Remove even when the installed driver version differs")
	return cmd
}

func runUninstallAmdgpu(ctx context.Context, cmd *cobra.Command, opts uninstallAmdgpuOptions) error {
	report, err := newAppService(cmd).UninstallAmdgpu(ctx, app.UninstallAmdgpuRequest{
		PayloadDir: payloadDir(cmd),
		Force:      opts.Force,
		RepoIndex:  viper.GetString("repo_index"),
	})
	if err != nil {
		return err
	}
	printUninstallReport(report)
	return nil
}

func printUninstallReport(report types.UninstallReport) {
	for _, warning := range report.Warnings {
		fmt.Printf("warning: %s\n", warning)
	}
	if len(report.Packages) == 0 {
		return
	}
	fmt.Printf("removed %d packages from %s (%d files, %d directories)\n", len(report.Packages), report.Root, report.RemovedFiles, report.PrunedDirs)
	for _, failure := range report.Failures {
		fmt.Printf("! %s %s scriptlet failed: %s\n", failure.Package, failure.Stage, failure.Err)
	}
}
