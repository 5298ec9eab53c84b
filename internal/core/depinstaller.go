package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"rocm-installer/internal/ports"
	"rocm-installer/internal/types"
)

// UnsatisfiableMessage prefixes the error returned when required
// dependencies cannot be installed on the host.
const UnsatisfiableMessage = "dependencies unsatisfiable"

type availability struct {
	version string
	found   bool
}

// DependencyInstaller decides how each required dependency can be met on
// the host and installs what is missing.
type DependencyInstaller struct {
	Packages ports.PackageManagerPort
	Compare  VersionComparator
	cache    map[string]availability
}

func NewDependencyInstaller(packages ports.PackageManagerPort, format types.PackageFormat) *DependencyInstaller {
	return &DependencyInstaller{
		Packages: packages,
		Compare:  NewVersionComparator(format),
	}
}

// Prefetch bulk-queries every name referenced by specs once and caches
// the results. Resolution is identical with or without it.
func (d *DependencyInstaller) Prefetch(ctx context.Context, specs []types.DependencySpec) error {
	var names []string
	seen := map[string]bool{}
	for _, spec := range specs {
		for _, name := range spec.Names() {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	if len(names) == 0 {
		return nil
	}
	versions, err := d.Packages.AvailableVersions(ctx, names)
	if err != nil {
		return err
	}
	if d.cache == nil {
		d.cache = map[string]availability{}
	}
	for _, name := range names {
		version, ok := versions[name]
		d.cache[name] = availability{version: version, found: ok}
	}
	log.Ctx(ctx).Debug().Int("names", len(names)).Int("found", len(versions)).Msg("dependency index prefetched")
	return nil
}

func (d *DependencyInstaller) available(ctx context.Context, name string) (availability, error) {
	if cached, ok := d.cache[name]; ok {
		return cached, nil
	}
	version, found, err := d.Packages.AvailableVersion(ctx, name)
	if err != nil {
		return availability{}, err
	}
	return availability{version: version, found: found}, nil
}

// ResolveInstallable finds the package that satisfies a spec. Each
// alternative is tried in listed order: exact package name first, then
// the first provider of the name as a capability.
func (d *DependencyInstaller) ResolveInstallable(ctx context.Context, spec types.DependencySpec) (types.Installability, error) {
	alts := spec.Alternatives
	if len(alts) == 0 {
		alts = []types.Constraint{{Name: spec.Name, Op: spec.Op, Version: spec.Version}}
	}
	for _, alt := range alts {
		result, err := d.resolveAlternative(ctx, alt)
		if err != nil {
			return types.Installability{}, err
		}
		if result.Installable || result.Satisfied {
			result.Spec = spec
			return result, nil
		}
	}
	return types.Installability{Spec: spec, Package: spec.Name}, nil
}

func (d *DependencyInstaller) resolveAlternative(ctx context.Context, alt types.Constraint) (types.Installability, error) {
	result := types.Installability{Package: alt.Name}
	avail, err := d.available(ctx, alt.Name)
	if err != nil {
		return result, err
	}
	name := alt.Name
	if !avail.found {
		providers, err := d.Packages.WhatProvides(ctx, alt.Name)
		if err != nil {
			return result, err
		}
		if len(providers) > 0 {
			name = providers[0]
			avail, err = d.available(ctx, name)
			if err != nil {
				return result, err
			}
			// A provider listed by the index is installable even when its
			// own name query has no candidate line.
			avail.found = true
		}
	}
	result.Package = name
	installed, err := d.Packages.InstalledVersion(ctx, name)
	if err != nil {
		return result, err
	}
	result.InstalledVersion = installed
	result.Installed = installed != ""
	result.AvailableVersion = avail.version
	if result.Installed {
		result.Satisfied = d.installedSatisfies(installed, alt)
	}
	if avail.found {
		result.Installable = avail.version == "" || SatisfiesConstraint(d.Compare, avail.version, alt)
	}
	return result, nil
}

func (d *DependencyInstaller) installedSatisfies(installed string, alt types.Constraint) bool {
	switch alt.Op {
	case types.ConstraintOpGte:
		return CompareInstalledVersion(installed, alt.Version)
	default:
		return SatisfiesConstraint(d.Compare, installed, alt)
	}
}

// Check resolves every spec and reports the outcome without mutating the
// host.
func (d *DependencyInstaller) Check(ctx context.Context, specs []types.DependencySpec) (types.DependencyReport, error) {
	if err := d.Prefetch(ctx, specs); err != nil {
		log.Ctx(ctx).Debug().Err(err).Msg("bulk dependency query failed, falling back to per-name queries")
		d.cache = nil
	}
	report := types.DependencyReport{}
	for _, spec := range specs {
		entry, err := d.ResolveInstallable(ctx, spec)
		if err != nil {
			return types.DependencyReport{}, err
		}
		report.Entries = append(report.Entries, entry)
	}
	return report, nil
}

// Install fails before any mutation when a dependency cannot be met, then
// installs every missing or outdated package in one transaction.
func (d *DependencyInstaller) Install(ctx context.Context, specs []types.DependencySpec) (types.DependencyReport, error) {
	report, err := d.Check(ctx, specs)
	if err != nil {
		return report, err
	}
	if unsatisfied := report.Unsatisfied(); len(unsatisfied) > 0 {
		return report, UnsatisfiableError(unsatisfied)
	}
	names := report.ToInstall()
	if len(names) == 0 {
		log.Ctx(ctx).Info().Msg("all dependencies already satisfied")
		return report, nil
	}
	log.Ctx(ctx).Info().Strs("packages", names).Msg("installing dependencies")
	if err := d.Packages.Install(ctx, names); err != nil {
		return report, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to install dependencies").
			WithCause(err)
	}
	return report, nil
}

// UnsatisfiableError lists every unsatisfied dependency line.
func UnsatisfiableError(unsatisfied []types.Installability) error {
	lines := make([]string, 0, len(unsatisfied))
	for _, entry := range unsatisfied {
		lines = append(lines, entry.Spec.String())
	}
	return errbuilder.New().
		WithCode(errbuilder.CodeFailedPrecondition).
		WithMsg(fmt.Sprintf("%s: %s", UnsatisfiableMessage, strings.Join(lines, "; ")))
}
