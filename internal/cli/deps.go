package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"rocm-installer/internal/app"
	"rocm-installer/internal/core"
)

type depsOptions struct {
	Mode      string
	Amdgpu    bool
	Gfx       string
	RepoIndex string
}

func newDepsCommand() *cobra.Command {
	opts := depsOptions{}
	cmd := &cobra.Command{
		Use:   "deps",
		Short: "List, validate or install the payload's system dependencies",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDeps(cmd.Context(), cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.Mode, "mode", "list", "list, validate, install or install-only")
	cmd.Flags().BoolVar(&opts.Amdgpu, "amdgpu", false, "Examine the amdgpu driver payload instead of ROCm")
	cmd.Flags().StringVar(&opts.Gfx, "gfx", "", "Limit ROCm dependencies to one GPU architecture")
	cmd.Flags().StringVar(&opts.RepoIndex, "repo-index", "", "Offline package index used instead of the host package manager")
	_ = viper.BindPFlag("repo_index", cmd.Flags().Lookup("repo-index"))
	return cmd
}

func runDeps(ctx context.Context, cmd *cobra.Command, opts depsOptions) error {
	mode, err := app.ParseDepsMode(opts.Mode)
	if err != nil {
		return err
	}
	target := app.DepsTargetRocm
	if opts.Amdgpu {
		target = app.DepsTargetAmdgpu
	}
	result, err := newAppService(cmd).Deps(ctx, app.DepsRequest{
		PayloadDir: payloadDir(cmd),
		Target:     target,
		Mode:       mode,
		Gfx:        resolveString(cmd, opts.Gfx, "gfx", "gfx"),
		RepoIndex:  resolveString(cmd, opts.RepoIndex, "repo_index", "repo-index"),
	})
	printDeps(&result)
	return err
}

func printDeps(result *app.DepsResult) {
	if result == nil || result.Mode == "" {
		return
	}
	if len(result.Report.Entries) == 0 {
		for _, line := range result.Lines {
			fmt.Println(line)
		}
		return
	}
	for _, entry := range result.Report.Entries {
		status := "missing"
		switch {
		case entry.Satisfied:
			status = "installed " + entry.InstalledVersion
		case entry.Installable:
			status = "available " + entry.AvailableVersion
		}
		fmt.Printf("%-40s %-24s %s\n", entry.Spec.String(), entry.Package, status)
	}
	if unsatisfied := result.Report.Unsatisfied(); len(unsatisfied) > 0 {
		fmt.Printf("%s: %d line(s)\n", core.UnsatisfiableMessage, len(unsatisfied))
		for _, entry := range unsatisfied {
			fmt.Printf("  %s\n", entry.Spec.String())
		}
	}
	if len(result.Installed) > 0 {
		fmt.Printf("installed: %v\n", result.Installed)
	}
}
