package adapters

import (
	"archive/tar"
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/blakesmith/ar"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"

	"rocm-installer/internal/ports"
	"rocm-installer/internal/types"
)

var debScriptletNames = map[string]types.ScriptletStage{
	"preinst":  types.ScriptletPreinst,
	"postinst": types.ScriptletPostinst,
	"prerm":    types.ScriptletPrerm,
	"postrm":   types.ScriptletPostrm,
}

// DebArchiveAdapter reads .deb archives: an ar container holding a
// control tarball and a data tarball, each optionally compressed.
type DebArchiveAdapter struct{}

func NewDebArchiveAdapter() DebArchiveAdapter {
	return DebArchiveAdapter{}
}

func (a DebArchiveAdapter) ReadMetadata(archivePath string) (types.ArchiveMetadata, error) {
	meta := types.ArchiveMetadata{
		Format:     types.PackageFormatDeb,
		Scriptlets: map[types.ScriptletStage]string{},
		Programs:   map[types.ScriptletStage]string{},
	}
	var control []byte
	err := walkDebMember(archivePath, "control.tar", func(tr *tar.Reader) error {
		for {
			header, err := tr.Next()
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return err
			}
			if header.Typeflag != tar.TypeReg {
				continue
			}
			name := path.Base(header.Name)
			stage, isScript := debScriptletNames[name]
			if name != "control" && !isScript {
				continue
			}
			data, err := io.ReadAll(tr)
			if err != nil {
				return err
			}
			if name == "control" {
				control = data
				continue
			}
			meta.Scriptlets[stage] = string(data)
		}
	})
	if err != nil {
		return types.ArchiveMetadata{}, err
	}
	if control == nil {
		return types.ArchiveMetadata{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("%s has no control file", filepath.Base(archivePath)))
	}
	fields := parseControl(control)
	meta.Name = fields["Package"]
	meta.Version, meta.Release = splitDebVersion(fields["Version"])
	meta.Vendor = fields["Maintainer"]
	for _, key := range []string{"Pre-Depends", "Depends"} {
		for _, dep := range strings.Split(fields[key], ",") {
			if dep = strings.TrimSpace(dep); dep != "" {
				meta.Requires = append(meta.Requires, types.Requirement{Text: dep})
			}
		}
	}
	return meta, nil
}

func (a DebArchiveAdapter) ExpandPayload(archivePath string, dest string) ([]string, error) {
	var files []string
	err := walkDebMember(archivePath, "data.tar", func(tr *tar.Reader) error {
		var err error
		files, err = extractTar(tr, dest)
		return err
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// walkDebMember finds the ar member whose name starts with prefix and
// hands its decompressed tar stream to fn.
func walkDebMember(archivePath string, prefix string, fn func(*tar.Reader) error) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("archive not found: %s", archivePath)).
			WithCause(err)
	}
	defer f.Close()

	reader := ar.NewReader(bufio.NewReader(f))
	for {
		header, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg(fmt.Sprintf("%s has no %s member", filepath.Base(archivePath), prefix))
		}
		if err != nil {
			return debError(archivePath, err)
		}
		name := strings.TrimSuffix(strings.TrimSpace(header.Name), "/")
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		stream, closeFn, err := decompress(name, reader)
		if err != nil {
			return debError(archivePath, err)
		}
		err = fn(tar.NewReader(stream))
		closeFn()
		if err != nil {
			return debError(archivePath, err)
		}
		return nil
	}
}

// decompress picks the codec from the member name suffix.
func decompress(name string, r io.Reader) (io.Reader, func(), error) {
	noop := func() {}
	switch path.Ext(name) {
	case ".gz":
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, noop, err
		}
		return gz, func() { gz.Close() }, nil
	case ".xz":
		xzr, err := xz.NewReader(r)
		if err != nil {
			return nil, noop, err
		}
		return xzr, noop, nil
	case ".zst":
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, noop, err
		}
		return zr, zr.Close, nil
	case ".tar":
		return r, noop, nil
	default:
		return nil, noop, fmt.Errorf("unsupported member compression: %s", name)
	}
}

// parseControl reads deb822 fields; continuation lines are folded into
// the previous field.
func parseControl(data []byte) map[string]string {
	fields := map[string]string{}
	var last string
	for _, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if (line[0] == ' ' || line[0] == '\t') && last != "" {
			fields[last] += "\n" + strings.TrimSpace(line)
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		last = strings.TrimSpace(key)
		fields[last] = strings.TrimSpace(value)
	}
	return fields
}

// splitDebVersion separates "[epoch:]upstream[-revision]" into the
// upstream part (epoch kept) and the revision.
func splitDebVersion(version string) (string, string) {
	idx := strings.LastIndex(version, "-")
	if idx < 0 {
		return version, ""
	}
	return version[:idx], version[idx+1:]
}

func debError(archivePath string, err error) error {
	return errbuilder.New().
		WithCode(errbuilder.CodeInvalidArgument).
		WithMsg(fmt.Sprintf("invalid deb archive %s", filepath.Base(archivePath))).
		WithCause(err)
}

// extractTar writes a tar stream under dest and returns the regular files
// and symlinks written, relative to dest. Entries escaping dest are
// rejected.
func extractTar(tr *tar.Reader, dest string) ([]string, error) {
	var files []string
	for {
		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return files, nil
		}
		if err != nil {
			return nil, err
		}
		rel := path.Clean(strings.TrimPrefix(header.Name, "./"))
		rel = strings.TrimPrefix(rel, "/")
		if rel == "." || rel == "" {
			continue
		}
		if rel == ".." || strings.HasPrefix(rel, "../") {
			return nil, fmt.Errorf("archive entry escapes destination: %s", header.Name)
		}
		target := filepath.Join(dest, filepath.FromSlash(rel))
		mode := os.FileMode(header.Mode).Perm()
		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return nil, err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return nil, err
			}
			out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
			if err != nil {
				return nil, err
			}
			_, copyErr := io.Copy(out, tr)
			closeErr := out.Close()
			if copyErr != nil {
				return nil, copyErr
			}
			if closeErr != nil {
				return nil, closeErr
			}
			files = append(files, rel)
		case tar.TypeSymlink:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return nil, err
			}
			_ = os.Remove(target)
			if err := os.Symlink(header.Linkname, target); err != nil {
				return nil, err
			}
			files = append(files, rel)
		case tar.TypeLink:
			linkRel := strings.TrimPrefix(path.Clean(strings.TrimPrefix(header.Linkname, "./")), "/")
			if linkRel == ".." || strings.HasPrefix(linkRel, "../") {
				return nil, fmt.Errorf("archive link escapes destination: %s", header.Linkname)
			}
			_ = os.Remove(target)
			if err := os.Link(filepath.Join(dest, filepath.FromSlash(linkRel)), target); err != nil {
				return nil, err
			}
			files = append(files, rel)
		}
	}
}

var _ ports.ArchivePort = DebArchiveAdapter{}
