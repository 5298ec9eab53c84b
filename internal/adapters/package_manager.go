package adapters

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"rocm-installer/internal/ports"
	"rocm-installer/internal/shared"
	"rocm-installer/internal/types"
)

// CommandRunner executes a host command and returns its combined output.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// pmCommands is the per-distro capability table: argv builders for each
// query plus the parser of its output. available and provides run tool;
// the others return a full argv.
type pmCommands struct {
	tool       string
	available  func(names []string) []string
	parseAvail func(output string) map[string]string
	provides   func(capability string) []string
	parseProv  func(output string) []string
	installed  func(name string) []string
	parseInst  func(output string) string
	matching   func(pattern string) []string
	parseMatch func(output string) []string
	install    func(names []string) []string
}

var dnfCommands = pmCommands{
	tool: "dnf",
	available: func(names []string) []string {
		return append([]string{"repoquery", "--quiet", "--latest-limit", "1", "--qf", "%{name} %{version}-%{release}\\n"}, names...)
	},
	parseAvail: parseNameVersionLines,
	provides: func(capability string) []string {
		return []string{"repoquery", "--quiet", "--latest-limit", "1", "--whatprovides", capability, "--qf", "%{name}\\n"}
	},
	parseProv:  parseNameLines,
	installed:  rpmQueryInstalled,
	parseInst:  parseRPMInstalled,
	matching:   rpmQueryMatching,
	parseMatch: parseNameLines,
	install: func(names []string) []string {
		return append([]string{"dnf", "install", "-y"}, names...)
	},
}

var zypperCommands = pmCommands{
	tool: "zypper",
	available: func(names []string) []string {
		return append([]string{"--non-interactive", "--no-refresh", "search", "--details", "--match-exact", "--type", "package"}, names...)
	},
	parseAvail: parseZypperSearch,
	provides: func(capability string) []string {
		return []string{"--non-interactive", "--no-refresh", "search", "--details", "--provides", "--match-exact", "--type", "package", capability}
	},
	parseProv: func(output string) []string {
		return sortedNames(parseZypperSearch(output))
	},
	installed:  rpmQueryInstalled,
	parseInst:  parseRPMInstalled,
	matching:   rpmQueryMatching,
	parseMatch: parseNameLines,
	install: func(names []string) []string {
		return append([]string{"zypper", "--non-interactive", "install", "--auto-agree-with-licenses"}, names...)
	},
}

var aptCommands = pmCommands{
	tool: "apt-cache",
	available: func(names []string) []string {
		return append([]string{"policy"}, names...)
	},
	parseAvail: parseAptPolicy,
	provides: func(capability string) []string {
		return []string{"showpkg", capability}
	},
	parseProv: parseAptReverseProvides,
	installed: func(name string) []string {
		return []string{"dpkg-query", "-W", "-f=${db:Status-Abbrev} ${Version}", name}
	},
	parseInst: func(output string) string {
		fields := strings.Fields(output)
		if len(fields) < 2 || fields[0] != "ii" {
			return ""
		}
		return fields[1]
	},
	matching: func(pattern string) []string {
		return []string{"dpkg-query", "-W", "-f=${db:Status-Abbrev} ${Package}\\n", pattern}
	},
	parseMatch: func(output string) []string {
		var out []string
		for _, line := range strings.Split(output, "\n") {
			fields := strings.Fields(line)
			if len(fields) == 2 && fields[0] == "ii" {
				out = append(out, fields[1])
			}
		}
		return out
	},
	install: func(names []string) []string {
		return append([]string{"apt-get", "install", "-y"}, names...)
	},
}

func commandsFor(family types.DistroFamily) (pmCommands, error) {
	switch family {
	case types.DistroFamilyEL, types.DistroFamilyAmazon:
		return dnfCommands, nil
	case types.DistroFamilySLE:
		return zypperCommands, nil
	case types.DistroFamilyDebian:
		return aptCommands, nil
	default:
		return pmCommands{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("unsupported distro family: %q", family))
	}
}

// SystemPackageManagerAdapter queries and drives the host package manager
// of one distro family.
type SystemPackageManagerAdapter struct {
	Family   types.DistroFamily
	Runner   CommandRunner
	commands pmCommands
}

func NewSystemPackageManagerAdapter(family types.DistroFamily, runner CommandRunner) (SystemPackageManagerAdapter, error) {
	commands, err := commandsFor(family)
	if err != nil {
		return SystemPackageManagerAdapter{}, err
	}
	return SystemPackageManagerAdapter{Family: family, Runner: runner, commands: commands}, nil
}

func (a SystemPackageManagerAdapter) AvailableVersion(ctx context.Context, name string) (string, bool, error) {
	versions, err := a.AvailableVersions(ctx, []string{name})
	if err != nil {
		return "", false, err
	}
	version, ok := versions[name]
	return version, ok, nil
}

func (a SystemPackageManagerAdapter) AvailableVersions(ctx context.Context, names []string) (map[string]string, error) {
	if len(names) == 0 {
		return map[string]string{}, nil
	}
	output, err := a.Runner.Run(ctx, a.commands.tool, a.commands.available(names)...)
	if err != nil && len(output) == 0 {
		return nil, a.queryError("availability query", output, err)
	}
	// Query tools exit non-zero when some names are unknown; the output
	// still lists the known ones.
	return a.commands.parseAvail(string(output)), nil
}

func (a SystemPackageManagerAdapter) WhatProvides(ctx context.Context, capability string) ([]string, error) {
	output, err := a.Runner.Run(ctx, a.commands.tool, a.commands.provides(capability)...)
	if err != nil {
		log.Ctx(ctx).Debug().Err(err).Str("capability", capability).Msg("provides query failed")
		return nil, nil
	}
	return a.commands.parseProv(string(output)), nil
}

func (a SystemPackageManagerAdapter) InstalledVersion(ctx context.Context, name string) (string, error) {
	argv := a.commands.installed(name)
	output, err := a.Runner.Run(ctx, argv[0], argv[1:]...)
	if err != nil {
		// Both rpm and dpkg-query exit 1 for unknown packages.
		return "", nil
	}
	return a.commands.parseInst(string(output)), nil
}

func (a SystemPackageManagerAdapter) InstalledMatching(ctx context.Context, pattern string) ([]string, error) {
	argv := a.commands.matching(pattern)
	output, err := a.Runner.Run(ctx, argv[0], argv[1:]...)
	if err != nil {
		return nil, nil
	}
	names := a.commands.parseMatch(string(output))
	sort.Strings(names)
	return names, nil
}

func (a SystemPackageManagerAdapter) Install(ctx context.Context, names []string) error {
	if len(names) == 0 {
		return nil
	}
	argv := a.commands.install(names)
	output, err := a.Runner.Run(ctx, argv[0], argv[1:]...)
	if err != nil {
		return a.queryError("package install", output, err)
	}
	return nil
}

func (a SystemPackageManagerAdapter) queryError(what string, output []byte, err error) error {
	return errbuilder.New().
		WithCode(errbuilder.CodeInternal).
		WithMsg(fmt.Sprintf("%s %s failed", a.commands.tool, what)).
		WithCause(shared.CommandError(output, err))
}

func rpmQueryInstalled(name string) []string {
	return []string{"rpm", "-q", "--qf", "%{VERSION}-%{RELEASE}\\n", name}
}

func rpmQueryMatching(pattern string) []string {
	return []string{"rpm", "-qa", "--qf", "%{NAME}\\n", pattern}
}

func parseRPMInstalled(output string) string {
	lines := strings.Fields(output)
	if len(lines) == 0 || strings.Contains(output, "not installed") {
		return ""
	}
	return lines[0]
}

// parseNameVersionLines reads "name version" lines; the first version
// seen per name wins.
func parseNameVersionLines(output string) map[string]string {
	out := map[string]string{}
	for _, line := range strings.Split(output, "\n") {
		fields := strings.Fields(line)
		if len(fields) != 2 {
			continue
		}
		if _, seen := out[fields[0]]; !seen {
			out[fields[0]] = fields[1]
		}
	}
	return out
}

func parseNameLines(output string) []string {
	var out []string
	seen := map[string]bool{}
	for _, line := range strings.Split(output, "\n") {
		name := strings.TrimSpace(line)
		if name == "" || strings.ContainsAny(name, " \t:") || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}

// parseZypperSearch reads the table printed by "zypper search --details":
// S | Name | Type | Version | Arch | Repository.
func parseZypperSearch(output string) map[string]string {
	out := map[string]string{}
	for _, line := range strings.Split(output, "\n") {
		cols := strings.Split(line, "|")
		if len(cols) < 6 {
			continue
		}
		name := strings.TrimSpace(cols[1])
		version := strings.TrimSpace(cols[3])
		if name == "" || name == "Name" || strings.TrimSpace(cols[2]) != "package" {
			continue
		}
		if _, seen := out[name]; !seen {
			out[name] = version
		}
	}
	return out
}

// parseAptPolicy reads "apt-cache policy" blocks: "<name>:" followed by
// an indented "Candidate:" line. "(none)" means no installable version.
func parseAptPolicy(output string) map[string]string {
	out := map[string]string{}
	var current string
	for _, line := range strings.Split(output, "\n") {
		if line == "" {
			continue
		}
		if line[0] != ' ' && strings.HasSuffix(line, ":") {
			current = strings.TrimSuffix(line, ":")
			continue
		}
		key, value, ok := strings.Cut(strings.TrimSpace(line), ":")
		if !ok || key != "Candidate" || current == "" {
			continue
		}
		if value = strings.TrimSpace(value); value != "(none)" && value != "" {
			out[current] = value
		}
	}
	return out
}

// parseAptReverseProvides reads the "Reverse Provides:" section of
// "apt-cache showpkg".
func parseAptReverseProvides(output string) []string {
	var out []string
	seen := map[string]bool{}
	inSection := false
	for _, line := range strings.Split(output, "\n") {
		if strings.HasPrefix(line, "Reverse Provides:") {
			inSection = true
			continue
		}
		if !inSection {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if strings.HasSuffix(fields[0], ":") {
			break
		}
		if !seen[fields[0]] {
			seen[fields[0]] = true
			out = append(out, fields[0])
		}
	}
	return out
}

func sortedNames(values map[string]string) []string {
	out := make([]string, 0, len(values))
	for name := range values {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

var _ ports.PackageManagerPort = SystemPackageManagerAdapter{}
