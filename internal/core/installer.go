package core

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	assert "github.com/ZanzyTHEbar/assert-lib"
	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"rocm-installer/internal/policies"
	"rocm-installer/internal/ports"
	"rocm-installer/internal/types"
)

// FSOpener opens the filesystem rooted at an install target.
type FSOpener func(root string) fs.FS

type InstallRequest struct {
	Root          string
	Components    []string
	Gfx           string
	RocmVersion   string
	Format        types.PackageFormat
	Force         bool
	AssumeYes     bool
	PostRocm      bool
	GPUAccess     types.GPUAccessMode
	RequiredTools []string
	// AllPackages installs every package of the payload's base group
	// instead of resolving components (driver payloads).
	AllPackages bool
	// OwnerPattern selects package-manager packages guarding overwrite.
	OwnerPattern string
}

// Installer drives Idle → PreinstallCheck → ComponentResolved →
// ContentCopied → ScriptletsRun → PostInstallDone.
type Installer struct {
	Layout   ports.LayoutReaderPort
	Registry ComponentRegistry
	Content  ports.ContentPort
	Scripts  ports.ScriptletRunnerPort
	Packages ports.PackageManagerPort
	Confirm  ports.ConfirmPort
	Host     ports.HostPort
	OpenFS   FSOpener
}

type resolvedPackage struct {
	group string
	pkg   types.Package
}

func (in Installer) Install(ctx context.Context, req InstallRequest) (types.InstallReport, error) {
	report := types.InstallReport{Phases: []types.InstallPhase{types.PhaseIdle}}

	target, err := in.preinstallCheck(ctx, req)
	if err != nil {
		return report, err
	}
	report.Target = target
	report.Phases = append(report.Phases, types.PhasePreinstallCheck)

	resolved, err := in.resolveComponents(ctx, req, &target)
	if err != nil {
		return report, err
	}
	report.Target = target
	report.Phases = append(report.Phases, types.PhaseComponentResolved)

	if err := in.copyContent(ctx, req, target, resolved, &report); err != nil {
		return report, err
	}
	report.Phases = append(report.Phases, types.PhaseContentCopied)

	in.runScriptlets(ctx, req.Format, target.Root, resolved, types.ScriptletPostinst, &report.Failures)
	report.Phases = append(report.Phases, types.PhaseScriptletsRun)

	if err := in.postInstall(ctx, req, target, resolved, &report); err != nil {
		return report, err
	}
	report.Phases = append(report.Phases, types.PhasePostInstallDone)
	return report, nil
}

func (in Installer) preinstallCheck(ctx context.Context, req InstallRequest) (types.InstallTarget, error) {
	root := strings.TrimSpace(req.Root)
	if root == "" {
		return types.InstallTarget{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("install target is required")
	}
	root = filepath.Clean(root)
	tools := append([]string{"bash"}, req.RequiredTools...)
	for _, tool := range tools {
		if err := in.Host.LookPath(tool); err != nil {
			return types.InstallTarget{}, errbuilder.New().
				WithCode(errbuilder.CodeFailedPrecondition).
				WithMsg(fmt.Sprintf("required tool not found: %s", tool)).
				WithCause(err)
		}
	}
	fsys := in.OpenFS(root)
	if info, err := fs.Stat(fsys, "."); err != nil || !info.IsDir() {
		return types.InstallTarget{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("install target does not exist: %s", root)).
			WithCause(err)
	}

	scanRoot := root
	if root == "/" {
		scanRoot = DefaultPrefix
	}
	installs, err := FindExistingInstalls(in.OpenFS(scanRoot))
	if err != nil {
		log.Ctx(ctx).Debug().Err(err).Str("root", scanRoot).Msg("existing install scan failed")
	}
	for _, install := range installs {
		log.Ctx(ctx).Info().Str("path", filepath.Join(scanRoot, install.Path)).Str("version", install.Version).Msg("existing ROCm install found")
	}
	if existing, ok := SameVersionInstall(installs, req.RocmVersion); ok && !req.Force {
		path := filepath.Join(scanRoot, existing.Path)
		confirmed := req.AssumeYes
		if !confirmed {
			confirmed, err = in.Confirm.Confirm(fmt.Sprintf("ROCm %s is already installed at %s. Install over it?", existing.Version, path))
			if err != nil {
				return types.InstallTarget{}, err
			}
		}
		if !confirmed {
			return types.InstallTarget{}, errbuilder.New().
				WithCode(errbuilder.CodeAlreadyExists).
				WithMsg(fmt.Sprintf("ROCm %s already installed at %s; use force to reinstall", existing.Version, path))
		}
	}
	return types.InstallTarget{
		Root:        root,
		Components:  req.Components,
		RocmVersion: req.RocmVersion,
		VersionDir:  VersionDir(req.RocmVersion),
	}, nil
}

func (in Installer) resolveComponents(ctx context.Context, req InstallRequest, target *types.InstallTarget) ([]resolvedPackage, error) {
	if req.AllPackages {
		return loadGroup(in.Layout, in.Registry.Root, types.ArchBase)
	}
	if len(req.Components) == 0 {
		available, _ := in.Registry.Components()
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("at least one component is required (available: %s)", strings.Join(available, ", ")))
	}
	gfx, err := selectArch(in.Registry, req.Components, req.Gfx)
	if err != nil {
		return nil, err
	}
	target.Arch = gfx
	var out []resolvedPackage
	seen := map[string]bool{}
	for _, name := range req.Components {
		// Components without per-arch metas load from their base config.
		variants, err := in.Registry.HasArchVariants(name)
		if err != nil {
			return nil, err
		}
		componentGfx := gfx
		if !variants {
			componentGfx = ""
		}
		component, err := in.Registry.LoadComponent(ctx, name, componentGfx)
		if err != nil {
			return nil, err
		}
		for _, entry := range []struct {
			group string
			names []string
		}{{types.ArchBase, component.BasePackages}, {componentGfx, component.GfxPackages}} {
			for _, pkgName := range entry.names {
				if seen[pkgName] {
					continue
				}
				seen[pkgName] = true
				pkg, err := in.Layout.ReadPackage(in.Registry.Root, entry.group, pkgName)
				if err != nil {
					return nil, err
				}
				out = append(out, resolvedPackage{group: entry.group, pkg: pkg})
			}
		}
		log.Ctx(ctx).Info().
			Str("component", name).
			Str("gfx", componentGfx).
			Int("base", len(component.BasePackages)).
			Int("gfx_packages", len(component.GfxPackages)).
			Msg("component resolved")
	}
	return out, nil
}

// selectArch validates the gfx request; it is required when any requested
// component has architecture-specific variants.
func selectArch(registry ComponentRegistry, components []string, requested string) (string, error) {
	archs, err := registry.Archs()
	if err != nil {
		return "", err
	}
	required := false
	for _, name := range components {
		variants, err := registry.HasArchVariants(name)
		if err != nil {
			return "", err
		}
		required = required || variants
	}
	return policies.NewArchPolicy(archs).Select(requested, required)
}

func (in Installer) copyContent(ctx context.Context, req InstallRequest, target types.InstallTarget, resolved []resolvedPackage, report *types.InstallReport) error {
	assert.NotEmpty(ctx, target.Root, "install root must be resolved before copying")
	if in.Packages != nil {
		pattern := req.OwnerPattern
		if pattern == "" {
			pattern = DefaultFirstPartyPrefix + "*"
		}
		owned, err := in.Packages.InstalledMatching(ctx, pattern)
		if err != nil {
			log.Ctx(ctx).Warn().Err(err).Msg("package ownership query failed")
		}
		decision := policies.DecideOverwrite(owned, req.Force)
		if decision.Action == policies.ActionPrompt {
			confirmed := req.AssumeYes
			if !confirmed {
				confirmed, err = in.Confirm.Confirm(decision.Prompt)
				if err != nil {
					return err
				}
			}
			if !confirmed {
				return errbuilder.New().
					WithCode(errbuilder.CodeAlreadyExists).
					WithMsg("install aborted: package-manager owned ROCm files would be overwritten")
			}
			report.Overwrote = true
		}
	}

	in.runScriptlets(ctx, req.Format, target.Root, resolved, types.ScriptletPreinst, &report.Failures)

	for _, entry := range resolved {
		src := in.Layout.ContentDir(in.Registry.Root, entry.group, entry.pkg.Name)
		copied, err := in.Content.CopyTree(ctx, src, target.Root)
		if err != nil {
			return errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg(fmt.Sprintf("failed to copy content of %s to %s", entry.pkg.Name, target.Root)).
				WithCause(err)
		}
		report.Packages = append(report.Packages, entry.pkg.Name)
		log.Ctx(ctx).Debug().Str("package", entry.pkg.Name).Int("files", copied).Msg("content copied")
	}
	return nil
}

// runScriptlets executes one stage for every package. Failures are
// recorded and do not stop the remaining packages.
func (in Installer) runScriptlets(ctx context.Context, format types.PackageFormat, root string, resolved []resolvedPackage, stage types.ScriptletStage, failures *[]types.ScriptletFailure) {
	for _, entry := range resolved {
		body, ok := PrepareScriptlet(entry.pkg, stage, root)
		if !ok {
			continue
		}
		pkgFormat := entry.pkg.Format
		if pkgFormat == "" {
			pkgFormat = format
		}
		if err := in.Scripts.Run(ctx, body, ScriptletArgs(pkgFormat, stage)); err != nil {
			log.Ctx(ctx).Warn().Err(err).Str("package", entry.pkg.Name).Str("stage", string(stage)).Msg("scriptlet failed")
			*failures = append(*failures, types.ScriptletFailure{
				Package: entry.pkg.Name,
				Stage:   stage,
				Err:     err.Error(),
			})
		}
	}
}

// postInstall writes the loader and OpenCL fixups when PostRocm is set,
// then applies the requested GPU access.
func (in Installer) postInstall(ctx context.Context, req InstallRequest, target types.InstallTarget, resolved []resolvedPackage, report *types.InstallReport) error {
	if req.PostRocm {
		packages := make([]types.Package, 0, len(resolved))
		for _, entry := range resolved {
			packages = append(packages, entry.pkg)
		}
		fixups := PlanFixups(target, packages)
		for _, fixup := range fixups {
			if err := in.Content.WriteFile(fixup.Path, fixup.Data); err != nil {
				return errbuilder.New().
					WithCode(errbuilder.CodeInternal).
					WithMsg(fmt.Sprintf("failed to write %s", fixup.Path)).
					WithCause(err)
			}
		}
		if len(fixups) > 0 {
			if _, err := in.Host.Run(ctx, "ldconfig"); err != nil {
				log.Ctx(ctx).Warn().Err(err).Msg("ldconfig failed")
			}
		}
		report.PostRocm = true
	}
	return ApplyGPUAccess(ctx, in.Host, in.Content, req.GPUAccess)
}

// ApplyGPUAccess grants device access: "user" adds the invoking user to
// the render and video groups, "all" installs a permissive udev rule.
func ApplyGPUAccess(ctx context.Context, host ports.HostPort, content ports.ContentPort, mode types.GPUAccessMode) error {
	switch mode {
	case types.GPUAccessNone:
		return nil
	case types.GPUAccessUser:
		user := host.InvokingUser()
		if user == "" || user == "root" {
			log.Ctx(ctx).Warn().Msg("no non-root invoking user found, skipping group membership")
			return nil
		}
		if _, err := host.Run(ctx, "usermod", "-a", "-G", strings.Join(GPUAccessGroups, ","), user); err != nil {
			return errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg(fmt.Sprintf("failed to add %s to %s", user, strings.Join(GPUAccessGroups, ","))).
				WithCause(err)
		}
		log.Ctx(ctx).Info().Str("user", user).Msg("GPU access granted; log in again to apply group membership")
		return nil
	case types.GPUAccessAll:
		if err := content.WriteFile(udevRulePath, []byte(udevRule)); err != nil {
			return errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg("failed to write udev rule").
				WithCause(err)
		}
		for _, args := range [][]string{{"control", "--reload-rules"}, {"trigger"}} {
			if _, err := host.Run(ctx, "udevadm", args...); err != nil {
				return errbuilder.New().
					WithCode(errbuilder.CodeInternal).
					WithMsg("udevadm " + args[0] + " failed").
					WithCause(err)
			}
		}
		return nil
	default:
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("unknown gpu-access mode %q (valid: user, all)", mode))
	}
}

func loadGroup(layout ports.LayoutReaderPort, root string, group string) ([]resolvedPackage, error) {
	names, err := layout.ReadPackageList(root, group)
	if err != nil {
		return nil, err
	}
	out := make([]resolvedPackage, 0, len(names))
	for _, name := range names {
		pkg, err := layout.ReadPackage(root, group, name)
		if err != nil {
			return nil, err
		}
		out = append(out, resolvedPackage{group: group, pkg: pkg})
	}
	return out, nil
}
