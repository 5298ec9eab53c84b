package adapters

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	rpmutils "github.com/sassoftware/go-rpmutils"

	"rocm-installer/internal/ports"
	"rocm-installer/internal/types"
)

const (
	// RPMSENSE_FIND_REQUIRES: requirement generated by the dependency
	// generator at build time.
	rpmSenseFindRequires = 1 << 14
	rpmFileGhost         = 1 << 6
	rpmModeTypeMask      = 0o170000
	rpmModeDir           = 0o040000
)

var rpmScriptletTags = map[types.ScriptletStage][2]int{
	types.ScriptletPreinst:  {rpmutils.PREIN, rpmutils.PREINPROG},
	types.ScriptletPostinst: {rpmutils.POSTIN, rpmutils.POSTINPROG},
	types.ScriptletPrerm:    {rpmutils.PREUN, rpmutils.PREUNPROG},
	types.ScriptletPostrm:   {rpmutils.POSTUN, rpmutils.POSTUNPROG},
}

// RPMArchiveAdapter reads RPM headers and cpio payloads natively.
type RPMArchiveAdapter struct{}

func NewRPMArchiveAdapter() RPMArchiveAdapter {
	return RPMArchiveAdapter{}
}

func (a RPMArchiveAdapter) ReadMetadata(path string) (types.ArchiveMetadata, error) {
	rpm, closeFn, err := openRPM(path)
	if err != nil {
		return types.ArchiveMetadata{}, err
	}
	defer closeFn()

	header := rpm.Header
	meta := types.ArchiveMetadata{
		Format:     types.PackageFormatRPM,
		Scriptlets: map[types.ScriptletStage]string{},
		Programs:   map[types.ScriptletStage]string{},
	}
	if meta.Name, err = header.GetString(rpmutils.NAME); err != nil {
		return types.ArchiveMetadata{}, rpmHeaderError(path, err)
	}
	if meta.Version, err = header.GetString(rpmutils.VERSION); err != nil {
		return types.ArchiveMetadata{}, rpmHeaderError(path, err)
	}
	meta.Release, _ = header.GetString(rpmutils.RELEASE)
	meta.Vendor, _ = header.GetString(rpmutils.VENDOR)

	names, _ := header.GetStrings(rpmutils.REQUIRENAME)
	flags, _ := header.GetInts(rpmutils.REQUIREFLAGS)
	versions, _ := header.GetStrings(rpmutils.REQUIREVERSION)
	meta.Requires = rpmRequirements(names, flags, versions)

	for stage, tags := range rpmScriptletTags {
		if body, err := header.GetString(tags[0]); err == nil && strings.TrimSpace(body) != "" {
			meta.Scriptlets[stage] = body
		}
		if prog, err := header.GetStrings(tags[1]); err == nil && len(prog) > 0 {
			meta.Programs[stage] = strings.Join(prog, " ")
		}
	}
	return meta, nil
}

func (a RPMArchiveAdapter) ExpandPayload(path string, dest string) ([]string, error) {
	rpm, closeFn, err := openRPM(path)
	if err != nil {
		return nil, err
	}
	defer closeFn()

	files, err := rpm.Header.GetFiles()
	if err != nil {
		return nil, rpmHeaderError(path, err)
	}
	if err := rpm.ExpandPayload(dest); err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("failed to expand payload of %s", filepath.Base(path))).
			WithCause(err)
	}
	var out []string
	for _, file := range files {
		if file.Flags()&rpmFileGhost != 0 || file.Mode()&rpmModeTypeMask == rpmModeDir {
			continue
		}
		out = append(out, strings.TrimPrefix(filepath.Clean(file.Name()), "/"))
	}
	return out, nil
}

func openRPM(path string) (*rpmutils.Rpm, func(), error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("archive not found: %s", path)).
			WithCause(err)
	}
	rpm, err := rpmutils.ReadRpm(f)
	if err != nil {
		f.Close()
		return nil, nil, rpmHeaderError(path, err)
	}
	return rpm, func() { f.Close() }, nil
}

// rpmRequirements joins the parallel REQUIRE* header arrays.
func rpmRequirements(names []string, flags []int, versions []string) []types.Requirement {
	out := make([]types.Requirement, 0, len(names))
	for i, name := range names {
		var flag int
		if i < len(flags) {
			flag = flags[i]
		}
		text := name
		if i < len(versions) && versions[i] != "" {
			if op := rpmSenseOp(flag); op != "" {
				text = fmt.Sprintf("%s %s %s", name, op, versions[i])
			}
		}
		out = append(out, types.Requirement{Text: text, Auto: flag&rpmSenseFindRequires != 0})
	}
	return out
}

func rpmSenseOp(flag int) string {
	less := flag&rpmutils.RPMSENSE_LESS != 0
	greater := flag&rpmutils.RPMSENSE_GREATER != 0
	equal := flag&rpmutils.RPMSENSE_EQUAL != 0
	switch {
	case less && equal:
		return "<="
	case greater && equal:
		return ">="
	case less:
		return "<"
	case greater:
		return ">"
	case equal:
		return "="
	default:
		return ""
	}
}

func rpmHeaderError(path string, err error) error {
	return errbuilder.New().
		WithCode(errbuilder.CodeInvalidArgument).
		WithMsg(fmt.Sprintf("invalid rpm header in %s", filepath.Base(path))).
		WithCause(err)
}

var _ ports.ArchivePort = RPMArchiveAdapter{}
