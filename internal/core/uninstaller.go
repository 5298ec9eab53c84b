package core

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"rocm-installer/internal/ports"
	"rocm-installer/internal/types"
)

type UninstallRequest struct {
	Root       string
	Components []string
	Gfx        string
	Format     types.PackageFormat
	Force      bool
	// PayloadDriverVersion enables the driver version check: removal is
	// retargeted to the installed driver version when they differ.
	PayloadDriverVersion string
	// AllPackages considers only the payload base group (driver payloads).
	AllPackages bool
}

// Uninstaller drives Idle → TargetDiscovered → ComponentsDetected →
// PrermRun → ContentRemoved → PostrmRun.
type Uninstaller struct {
	Layout   ports.LayoutReaderPort
	Registry ComponentRegistry
	Content  ports.ContentPort
	Scripts  ports.ScriptletRunnerPort
	Driver   ports.DriverStatusPort
	OpenFS   FSOpener
}

func (u Uninstaller) Uninstall(ctx context.Context, req UninstallRequest) (types.UninstallReport, error) {
	report := types.UninstallReport{Phases: []types.UninstallPhase{types.UninstallIdle}}

	root, rewrite, err := u.discoverTarget(ctx, req)
	if err != nil {
		return report, err
	}
	report.Root = root
	report.Phases = append(report.Phases, types.UninstallTargetDiscovered)

	resolved, warnings, err := u.detectComponents(ctx, req, root, rewrite)
	if err != nil {
		return report, err
	}
	report.Warnings = append(report.Warnings, warnings...)
	report.Phases = append(report.Phases, types.UninstallComponentsDetected)
	if len(resolved) == 0 {
		return report, nil
	}
	for _, entry := range resolved {
		report.Packages = append(report.Packages, entry.pkg.Name)
	}

	runner := Installer{Scripts: u.Scripts}
	ordered := reversed(resolved)
	runner.runScriptlets(ctx, req.Format, root, ordered, types.ScriptletPrerm, &report.Failures)
	report.Phases = append(report.Phases, types.UninstallPrermRun)

	for _, entry := range ordered {
		removed, pruned, err := u.Content.RemoveFiles(root, entry.pkg.Content)
		if err != nil {
			return report, errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg(fmt.Sprintf("failed to remove content of %s from %s", entry.pkg.Name, root)).
				WithCause(err)
		}
		report.RemovedFiles += removed
		report.PrunedDirs += pruned
	}
	report.Phases = append(report.Phases, types.UninstallContentRemoved)

	runner.runScriptlets(ctx, req.Format, root, ordered, types.ScriptletPostrm, &report.Failures)
	report.Phases = append(report.Phases, types.UninstallPostrmRun)
	log.Ctx(ctx).Info().
		Str("root", root).
		Int("packages", len(resolved)).
		Int("files", report.RemovedFiles).
		Msg("uninstall complete")
	return report, nil
}

// discoverTarget validates the target and, for driver payloads, compares
// the payload driver version with the installed one. The returned rewrite
// maps payload version strings to the installed version.
func (u Uninstaller) discoverTarget(ctx context.Context, req UninstallRequest) (string, func(string) string, error) {
	identity := func(s string) string { return s }
	root := strings.TrimSpace(req.Root)
	if root == "" {
		return "", nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("uninstall target is required")
	}
	root = filepath.Clean(root)
	if info, err := fs.Stat(u.OpenFS(root), "."); err != nil || !info.IsDir() {
		return "", nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("uninstall target does not exist: %s", root)).
			WithCause(err)
	}
	if req.PayloadDriverVersion == "" || u.Driver == nil {
		return root, identity, nil
	}
	installed, err := u.Driver.InstalledDriverVersion(ctx)
	if err != nil {
		return "", nil, err
	}
	if installed == "" || installed == req.PayloadDriverVersion {
		return root, identity, nil
	}
	if !req.Force {
		return "", nil, errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg(fmt.Sprintf("installed amdgpu version %s differs from installer version %s; use force to uninstall", installed, req.PayloadDriverVersion))
	}
	log.Ctx(ctx).Warn().
		Str("installed", installed).
		Str("payload", req.PayloadDriverVersion).
		Msg("driver version mismatch, retargeting removal to installed version")
	return root, func(s string) string {
		return strings.ReplaceAll(s, req.PayloadDriverVersion, installed)
	}, nil
}

func (u Uninstaller) detectComponents(ctx context.Context, req UninstallRequest, root string, rewrite func(string) string) ([]resolvedPackage, []string, error) {
	var (
		resolved []resolvedPackage
		warnings []string
		err      error
	)
	switch {
	case len(req.Components) > 0:
		resolved, err = u.explicitComponents(ctx, req)
		if err != nil {
			return nil, nil, err
		}
		for i := range resolved {
			resolved[i].pkg = retarget(resolved[i].pkg, rewrite)
		}
	default:
		resolved, warnings, err = u.autoDetect(ctx, req, root, rewrite)
		if err != nil {
			return nil, nil, err
		}
	}
	for _, warning := range warnings {
		log.Ctx(ctx).Warn().Msg(warning)
	}
	return resolved, warnings, nil
}

func (u Uninstaller) explicitComponents(ctx context.Context, req UninstallRequest) ([]resolvedPackage, error) {
	installer := Installer{Layout: u.Layout, Registry: u.Registry}
	target := types.InstallTarget{}
	return installer.resolveComponents(ctx, InstallRequest{Components: req.Components, Gfx: req.Gfx}, &target)
}

func (u Uninstaller) autoDetect(ctx context.Context, req UninstallRequest, root string, rewrite func(string) string) ([]resolvedPackage, []string, error) {
	groups := []string{types.ArchBase}
	if !req.AllPackages {
		listed, err := u.Layout.ListGroups(u.Registry.Root)
		if err != nil {
			return nil, nil, err
		}
		groups = listed
	}
	var all []resolvedPackage
	for _, group := range groups {
		entries, err := loadGroup(u.Layout, u.Registry.Root, group)
		if err != nil {
			return nil, nil, err
		}
		for _, entry := range entries {
			entry.pkg = retarget(entry.pkg, rewrite)
			all = append(all, entry)
		}
	}
	packages := make([]types.Package, 0, len(all))
	for _, entry := range all {
		packages = append(packages, entry.pkg)
	}
	state := DetectInstalled(u.OpenFS(root), packages, DetectionSampleLimit)
	if state.Empty() {
		return nil, []string{fmt.Sprintf("no installed components detected at %s; select them explicitly with compo= and gfx= if this is unexpected", root)}, nil
	}
	var warnings []string
	if len(state.Archs) > 1 {
		warnings = append(warnings, fmt.Sprintf("files of several gfx architectures detected (%s); use gfx= to remove only one", strings.Join(state.Archs, ", ")))
	}
	selected := toSet(state.All())
	var out []resolvedPackage
	for _, entry := range all {
		if selected[entry.pkg.Name] {
			out = append(out, entry)
		}
	}
	return out, warnings, nil
}

// retarget rewrites scriptlets and content paths of a package.
func retarget(pkg types.Package, rewrite func(string) string) types.Package {
	if rewrite == nil {
		return pkg
	}
	out := pkg
	out.Scriptlets = make(map[types.ScriptletStage]string, len(pkg.Scriptlets))
	for stage, body := range pkg.Scriptlets {
		out.Scriptlets[stage] = rewrite(body)
	}
	out.Content = make([]string, 0, len(pkg.Content))
	for _, rel := range pkg.Content {
		out.Content = append(out.Content, rewrite(rel))
	}
	return out
}

func reversed(in []resolvedPackage) []resolvedPackage {
	out := make([]resolvedPackage, len(in))
	for i, entry := range in {
		out[len(in)-1-i] = entry
	}
	return out
}
