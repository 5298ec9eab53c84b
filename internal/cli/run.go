package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"rocm-installer/internal/app"
	"rocm-installer/internal/shared"
	"rocm-installer/internal/types"
)

// legacyPlan is the parsed form of the installer's positional token
// surface used by the TUI and the self-extracting wrapper.
type legacyPlan struct {
	Rocm            bool
	Amdgpu          bool
	AmdgpuStart     bool
	UninstallRocm   bool
	UninstallAmdgpu bool
	Force           bool
	PostRocm        bool
	Target          string
	Gfx             string
	Components      []string
	Deps            types.DepsMode
	GPUAccess       types.GPUAccessMode
}

func (p legacyPlan) hasAction() bool {
	return p.Rocm || p.Amdgpu || p.UninstallRocm || p.UninstallAmdgpu || p.Deps != types.DepsModeNone
}

func newRunCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run [tokens...]",
		Short: "Run the legacy token interface, e.g. rocm target=/ gfx=gfx942 compo=core",
		RunE: func(cmd *cobra.Command, args []string) error {
			plan, err := parseLegacyArgs(args)
			if err != nil {
				return err
			}
			return runLegacy(cmd.Context(), cmd, plan)
		},
	}
}

func parseLegacyArgs(args []string) (legacyPlan, error) {
	plan := legacyPlan{Target: "/"}
	for _, arg := range args {
		token := strings.TrimSpace(arg)
		if token == "" {
			continue
		}
		key, value, hasValue := strings.Cut(token, "=")
		var err error
		switch {
		case !hasValue && key == "rocm":
			plan.Rocm = true
		case !hasValue && key == "amdgpu":
			plan.Amdgpu = true
		case !hasValue && key == "amdgpu-start":
			plan.Amdgpu = true
			plan.AmdgpuStart = true
		case !hasValue && key == "uninstall-rocm":
			plan.UninstallRocm = true
		case !hasValue && key == "uninstall-amdgpu":
			plan.UninstallAmdgpu = true
		case !hasValue && key == "force":
			plan.Force = true
		case !hasValue && key == "postrocm":
			plan.PostRocm = true
		case !hasValue && key == "nopostrocm":
			plan.PostRocm = false
		case hasValue && key == "target":
			plan.Target = value
		case hasValue && key == "gfx":
			plan.Gfx = value
		case hasValue && key == "compo":
			plan.Components = shared.SplitList(value)
		case hasValue && key == "deps":
			plan.Deps, err = app.ParseDepsMode(value)
		case hasValue && key == "gpu-access":
			plan.GPUAccess, err = parseGPUAccess(value)
		default:
			err = errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg(fmt.Sprintf("unknown argument %q", token))
		}
		if err != nil {
			return legacyPlan{}, err
		}
	}
	if !plan.hasAction() {
		return legacyPlan{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("nothing to do: expected rocm, amdgpu, uninstall-rocm, uninstall-amdgpu or deps=")
	}
	if strings.TrimSpace(plan.Target) == "" {
		return legacyPlan{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("target= requires a directory")
	}
	return plan, nil
}

// runLegacy removes before it installs, and installs the driver before
// ROCm. deps= alone runs the dependency step for the ROCm payload.
func runLegacy(ctx context.Context, cmd *cobra.Command, plan legacyPlan) error {
	service := newAppService(cmd)
	payload := payloadDir(cmd)
	yes := assumeYes(cmd)
	repoIndex := viper.GetString("repo_index")

	if plan.UninstallRocm {
		report, err := service.UninstallRocm(ctx, app.UninstallRocmRequest{
			PayloadDir: payload,
			Target:     plan.Target,
			Gfx:        plan.Gfx,
			Components: plan.Components,
			RepoIndex:  repoIndex,
		})
		if err != nil {
			return err
		}
		printUninstallReport(report)
	}
	if plan.UninstallAmdgpu {
		report, err := service.UninstallAmdgpu(ctx, app.UninstallAmdgpuRequest{
			PayloadDir: payload,
			Force:      plan.Force,
			RepoIndex:  repoIndex,
		})
		if err != nil {
			return err
		}
		printUninstallReport(report)
	}
	if plan.Amdgpu {
		result, err := service.InstallAmdgpu(ctx, app.InstallAmdgpuRequest{
			PayloadDir: payload,
			Force:      plan.Force,
			AssumeYes:  yes,
			GPUAccess:  plan.GPUAccess,
			DepsMode:   plan.Deps,
			RepoIndex:  repoIndex,
			Start:      plan.AmdgpuStart,
		})
		printDeps(result.Deps)
		if err != nil {
			return err
		}
		printInstallReport(result.Report)
	}
	if plan.Rocm {
		result, err := service.InstallRocm(ctx, app.InstallRocmRequest{
			PayloadDir: payload,
			Target:     plan.Target,
			Gfx:        plan.Gfx,
			Components: plan.Components,
			Force:      plan.Force,
			AssumeYes:  yes,
			PostRocm:   plan.PostRocm,
			// GPU access is granted once, by the driver install when both run.
			GPUAccess: rocmGPUAccess(plan),
			DepsMode:  plan.Deps,
			RepoIndex: repoIndex,
		})
		printDeps(result.Deps)
		if err != nil {
			return err
		}
		printInstallReport(result.Report)
	}
	if plan.Deps != types.DepsModeNone && !plan.Rocm && !plan.Amdgpu {
		result, err := service.Deps(ctx, app.DepsRequest{
			PayloadDir: payload,
			Target:     app.DepsTargetRocm,
			Mode:       plan.Deps,
			Gfx:        plan.Gfx,
			RepoIndex:  repoIndex,
		})
		printDeps(&result)
		return err
	}
	return nil
}

func rocmGPUAccess(plan legacyPlan) types.GPUAccessMode {
	if plan.Amdgpu {
		return types.GPUAccessNone
	}
	return plan.GPUAccess
}
