package app

import (
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"rocm-installer/internal/adapters"
	"rocm-installer/internal/core"
	"rocm-installer/internal/ports"
	"rocm-installer/internal/types"
)

// PackageManagerFactory opens the package database used for dependency
// checks and ownership queries. A non-empty repoIndex selects the offline
// index file instead of the host package manager.
type PackageManagerFactory func(repoIndex string) (ports.PackageManagerPort, types.DistroFamily, error)

type Service struct {
	Archives       map[types.PackageFormat]ports.ArchivePort
	Scanner        ports.PayloadScanPort
	LayoutWriter   ports.LayoutWriterPort
	LayoutReader   ports.LayoutReaderPort
	RequiredDeps   ports.RequiredDepsReaderPort
	VersionFile    ports.VersionFilePort
	Content        ports.ContentPort
	Scripts        ports.ScriptletRunnerPort
	Host           ports.HostPort
	Driver         ports.DriverStatusPort
	Confirm        ports.ConfirmPort
	OpenFS         core.FSOpener
	PackageManager PackageManagerFactory
}

// Options configure the terminal-facing adapters.
type Options struct {
	// Progress receives the copy progress bar; nil disables it.
	Progress  io.Writer
	In        io.Reader
	Out       io.Writer
	AssumeYes bool
}

func NewService(opts Options) Service {
	layout := adapters.NewExtractLayoutAdapter()
	host := adapters.NewHostAdapter()
	return Service{
		Archives: map[types.PackageFormat]ports.ArchivePort{
			types.PackageFormatRPM: adapters.NewRPMArchiveAdapter(),
			types.PackageFormatDeb: adapters.NewDebArchiveAdapter(),
		},
		Scanner:        adapters.NewPayloadScanAdapter(),
		LayoutWriter:   layout,
		LayoutReader:   layout,
		RequiredDeps:   layout,
		VersionFile:    adapters.NewVersionFileAdapter(),
		Content:        adapters.NewContentCopier(opts.Progress),
		Scripts:        adapters.NewBashScriptletRunner(),
		Host:           host,
		Driver:         adapters.NewDKMSStatusAdapter(host),
		Confirm:        adapters.PromptConfirm{In: opts.In, Out: opts.Out, AssumeYes: opts.AssumeYes},
		OpenFS:         func(root string) fs.FS { return os.DirFS(root) },
		PackageManager: hostPackageManager(host),
	}
}

func hostPackageManager(host adapters.HostAdapter) PackageManagerFactory {
	return func(repoIndex string) (ports.PackageManagerPort, types.DistroFamily, error) {
		if strings.TrimSpace(repoIndex) != "" {
			index := adapters.NewPackageIndexFileAdapter(repoIndex)
			family, err := index.Family()
			if err != nil {
				return nil, "", err
			}
			return index, family, nil
		}
		family, err := host.DetectDistro()
		if err != nil {
			return nil, "", err
		}
		manager, err := adapters.NewSystemPackageManagerAdapter(family, host)
		if err != nil {
			return nil, "", errbuilder.New().
				WithCode(errbuilder.CodeFailedPrecondition).
				WithMsg("no package manager for " + string(family)).
				WithCause(err)
		}
		return manager, family, nil
	}
}
