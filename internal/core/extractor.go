package core

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"rocm-installer/internal/ports"
	"rocm-installer/internal/types"
)

// ExtractionSession accumulates the state of one group's extraction run.
// A fresh session is created per group so counters never leak across
// groups.
type ExtractionSession struct {
	Group          string
	Packages       []types.Package
	Archives       []string
	Dependencies   []string
	PackageCount   int
	ComponentCount int
}

func NewExtractionSession(group string) *ExtractionSession {
	return &ExtractionSession{Group: group}
}

type Extractor struct {
	Archives map[types.PackageFormat]ports.ArchivePort
	Layout   ports.LayoutWriterPort
	Root     string
}

func NewExtractor(archives map[types.PackageFormat]ports.ArchivePort, layout ports.LayoutWriterPort, root string) Extractor {
	return Extractor{Archives: archives, Layout: layout, Root: root}
}

// Extract reads one archive, expands its payload and persists its deps
// and scriptlets under the session's group. Any archive failure is fatal.
func (e Extractor) Extract(ctx context.Context, session *ExtractionSession, archivePath string) (types.Package, error) {
	format, err := ArchiveFormat(archivePath)
	if err != nil {
		return types.Package{}, err
	}
	archive, ok := e.Archives[format]
	if !ok {
		return types.Package{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("no reader for %s archives", format))
	}
	group := GfxTag(archivePath)
	if session.Group != group {
		return types.Package{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("archive %s belongs to group %s, not %s", filepath.Base(archivePath), group, session.Group))
	}
	meta, err := archive.ReadMetadata(archivePath)
	if err != nil {
		return types.Package{}, extractionError(archivePath, err)
	}
	name := PackageDirName(archivePath)
	contentDir, err := e.Layout.ResetPackage(e.Root, group, name)
	if err != nil {
		return types.Package{}, err
	}
	files, err := archive.ExpandPayload(archivePath, contentDir)
	if err != nil {
		return types.Package{}, extractionError(archivePath, err)
	}
	deps, libs := NormalizeRequirements(meta.Requires)
	pkg := types.Package{
		Name:         name,
		Version:      meta.Version,
		Release:      meta.Release,
		Vendor:       meta.Vendor,
		Arch:         group,
		Format:       format,
		Dependencies: deps,
		LibraryDeps:  libs,
		Scriptlets:   map[types.ScriptletStage]string{},
		Content:      files,
	}
	for _, stage := range types.ScriptletStages {
		body := CleanScriptlet(meta.Scriptlets[stage])
		if body == "" {
			continue
		}
		if program := meta.Programs[stage]; !shellProgram(program) {
			log.Ctx(ctx).Warn().
				Str("package", name).
				Str("stage", string(stage)).
				Str("interpreter", program).
				Msg("scriptlet needs a non-shell interpreter, skipping")
			continue
		}
		pkg.Scriptlets[stage] = body
		if ReferencesPrefix(body) {
			pkg.RelocatableStages = append(pkg.RelocatableStages, stage)
		}
	}
	if err := e.Layout.WritePackage(e.Root, pkg); err != nil {
		return types.Package{}, err
	}

	session.Packages = append(session.Packages, pkg)
	session.Archives = append(session.Archives, filepath.Base(archivePath))
	session.Dependencies = append(session.Dependencies, deps...)
	session.PackageCount++
	if len(files) > 0 {
		session.ComponentCount++
	}
	log.Ctx(ctx).Debug().
		Str("package", name).
		Str("group", group).
		Int("files", len(files)).
		Int("deps", len(deps)).
		Msg("extracted package")
	return pkg, nil
}

// Finish writes the group manifests and its required dependency set.
func (e Extractor) Finish(ctx context.Context, session *ExtractionSession) (types.RequiredDependencySet, error) {
	names := make([]string, 0, len(session.Packages))
	for _, pkg := range session.Packages {
		names = append(names, pkg.Name)
	}
	if err := e.Layout.WritePackageList(e.Root, session.Group, names); err != nil {
		return types.RequiredDependencySet{}, err
	}
	if err := e.Layout.WriteComponents(e.Root, session.Group, session.Packages); err != nil {
		return types.RequiredDependencySet{}, err
	}
	format := types.PackageFormatRPM
	if len(session.Packages) > 0 {
		format = session.Packages[0].Format
	}
	set, err := Resolve(ctx, session.Group, session.Packages, NewVersionComparator(format))
	if err != nil {
		return types.RequiredDependencySet{}, err
	}
	path := filepath.Join(e.Root, session.Group, "required_deps.txt")
	if err := e.Layout.WriteRequiredDeps(path, set); err != nil {
		return types.RequiredDependencySet{}, err
	}
	log.Ctx(ctx).Info().
		Str("group", session.Group).
		Int("packages", session.PackageCount).
		Int("components", session.ComponentCount).
		Int("required_deps", len(set.Entries)).
		Msg("group extracted")
	return set, nil
}

// ArchiveFormat derives the package format from the file extension.
func ArchiveFormat(path string) (types.PackageFormat, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".rpm":
		return types.PackageFormatRPM, nil
	case ".deb":
		return types.PackageFormatDeb, nil
	default:
		return "", errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("unsupported archive: %s", filepath.Base(path)))
	}
}

var programLine = regexp.MustCompile(`^\s*(?:pre|post)?(?:install|uninstall|inst|rm)?\s*program:`)

// shellProgram reports whether a scriptlet interpreter is a POSIX shell.
// An empty program means the default shell.
func shellProgram(program string) bool {
	fields := strings.Fields(program)
	if len(fields) == 0 {
		return true
	}
	switch path.Base(fields[0]) {
	case "sh", "bash":
		return true
	}
	return false
}

// CleanScriptlet drops interpreter-only "program:" lines and returns ""
// for bodies left without content.
func CleanScriptlet(body string) string {
	var kept []string
	for _, line := range strings.Split(body, "\n") {
		if programLine.MatchString(line) {
			continue
		}
		kept = append(kept, line)
	}
	cleaned := strings.Join(kept, "\n")
	if strings.TrimSpace(cleaned) == "" {
		return ""
	}
	if !strings.HasSuffix(cleaned, "\n") {
		cleaned += "\n"
	}
	return cleaned
}

func extractionError(path string, err error) error {
	return errbuilder.New().
		WithCode(errbuilder.CodeInternal).
		WithMsg(fmt.Sprintf("failed to extract %s", filepath.Base(path))).
		WithCause(err)
}
