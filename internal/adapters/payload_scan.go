package adapters

import (
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"rocm-installer/internal/ports"
)

type PayloadScanAdapter struct{}

func NewPayloadScanAdapter() PayloadScanAdapter {
	return PayloadScanAdapter{}
}

// FindArchives returns every .rpm and .deb under root in lexical order.
func (a PayloadScanAdapter) FindArchives(root string) ([]string, error) {
	var paths []string
	if root == "" {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("packages directory is empty")
	}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && shouldSkipPayloadDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".rpm", ".deb":
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg("failed to scan packages directory").
			WithCause(err)
	}
	return paths, nil
}

// shouldSkipPayloadDir skips hidden directories and previous extraction
// output placed next to the archives.
func shouldSkipPayloadDir(name string) bool {
	switch {
	case strings.HasPrefix(name, "."):
		return true
	case name == "component-rocm", name == "component-amdgpu":
		return true
	default:
		return false
	}
}

var _ ports.PayloadScanPort = PayloadScanAdapter{}
