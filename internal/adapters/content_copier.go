package adapters

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/schollz/progressbar/v3"

	"rocm-installer/internal/ports"
)

// ContentCopier copies extracted payload trees onto the install root and
// removes installed files again.
type ContentCopier struct {
	// Progress receives the progress bar; nil disables it.
	Progress io.Writer
}

func NewContentCopier(progress io.Writer) ContentCopier {
	return ContentCopier{Progress: progress}
}

func (c ContentCopier) CopyTree(ctx context.Context, src string, dest string) (int, error) {
	var entries []string
	err := filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path != src {
			entries = append(entries, path)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	bar := c.newBar(len(entries), filepath.Base(filepath.Dir(src)))
	copied := 0
	for _, path := range entries {
		if err := ctx.Err(); err != nil {
			return copied, err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return copied, err
		}
		ok, err := copyEntry(path, filepath.Join(dest, rel))
		if err != nil {
			return copied, err
		}
		if ok {
			copied++
		}
		if bar != nil {
			_ = bar.Add(1)
		}
	}
	if bar != nil {
		_ = bar.Finish()
	}
	return copied, nil
}

func (c ContentCopier) newBar(total int, description string) *progressbar.ProgressBar {
	if c.Progress == nil || total == 0 {
		return nil
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(c.Progress),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionThrottle(100*time.Millisecond),
	)
}

// copyEntry mirrors one source entry and reports whether a file or link
// was written.
func copyEntry(src string, dst string) (bool, error) {
	info, err := os.Lstat(src)
	if err != nil {
		return false, err
	}
	switch {
	case info.IsDir():
		return false, os.MkdirAll(dst, info.Mode().Perm()|0o700)
	case info.Mode()&os.ModeSymlink != 0:
		target, err := os.Readlink(src)
		if err != nil {
			return false, err
		}
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return false, err
		}
		if err := os.Remove(dst); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return false, err
		}
		return true, os.Symlink(target, dst)
	case info.Mode().IsRegular():
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return false, err
		}
		return true, copyFile(src, dst, info.Mode().Perm())
	default:
		return false, nil
	}
}

func copyFile(src string, dst string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	// Replace rather than truncate so running binaries are not corrupted.
	if err := os.Remove(dst); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Chmod(dst, mode)
}

// systemDirs are shared with other packages and never pruned, even when a
// removal leaves them empty.
var systemDirs = map[string]bool{
	"etc":                      true,
	"etc/ld.so.conf.d":         true,
	"etc/modprobe.d":           true,
	"etc/udev/rules.d":         true,
	"lib":                      true,
	"lib/firmware":             true,
	"lib/firmware/updates":     true,
	"lib/modules":              true,
	"opt":                      true,
	"usr":                      true,
	"usr/bin":                  true,
	"usr/lib":                  true,
	"usr/lib/firmware":         true,
	"usr/lib/firmware/updates": true,
	"usr/lib/modules":          true,
	"usr/lib64":                true,
	"usr/share":                true,
	"usr/share/doc":            true,
	"usr/src":                  true,
	"var":                      true,
	"var/lib":                  true,
}

// RemoveFiles deletes paths relative to root, then prunes directories
// left empty, deepest first, stopping at root and at system directories.
func (c ContentCopier) RemoveFiles(root string, relPaths []string) (int, int, error) {
	root = filepath.Clean(root)
	removed := 0
	parents := map[string]bool{}
	for _, rel := range relPaths {
		rel = strings.TrimPrefix(filepath.Clean("/"+rel), "/")
		if rel == "" {
			continue
		}
		path := filepath.Join(root, rel)
		if _, err := os.Lstat(path); err != nil {
			continue
		}
		if err := os.Remove(path); err != nil {
			return removed, 0, errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg(fmt.Sprintf("failed to remove %s", path)).
				WithCause(err)
		}
		removed++
		for dir := filepath.Dir(path); dir != root && strings.HasPrefix(dir, root); dir = filepath.Dir(dir) {
			parents[dir] = true
		}
	}
	dirs := make([]string, 0, len(parents))
	for dir := range parents {
		dirs = append(dirs, dir)
	}
	sort.Slice(dirs, func(i, j int) bool { return len(dirs[i]) > len(dirs[j]) })
	pruned := 0
	for _, dir := range dirs {
		if rel, err := filepath.Rel(root, dir); err == nil && systemDirs[filepath.ToSlash(rel)] {
			continue
		}
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			continue
		}
		if err := os.Remove(dir); err == nil {
			pruned++
		}
	}
	return removed, pruned, nil
}

func (c ContentCopier) WriteFile(path string, data []byte) error {
	return writeFile(path, data, 0o644)
}

var _ ports.ContentPort = ContentCopier{}
