package adapters

import (
	"context"
	"os"
	"os/exec"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"rocm-installer/internal/ports"
	"rocm-installer/internal/shared"
)

// BashScriptletRunner writes a scriptlet body to a temporary file and
// runs it with bash, passing the lifecycle arguments.
type BashScriptletRunner struct {
	Shell  string
	TmpDir string
}

func NewBashScriptletRunner() BashScriptletRunner {
	return BashScriptletRunner{Shell: "bash"}
}

func (r BashScriptletRunner) Run(ctx context.Context, body string, args []string) error {
	file, err := os.CreateTemp(r.TmpDir, "rocm-scriptlet-*.sh")
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to create scriptlet file").
			WithCause(err)
	}
	defer os.Remove(file.Name())
	if _, err := file.WriteString(body); err != nil {
		file.Close()
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to write scriptlet file").
			WithCause(err)
	}
	if err := file.Close(); err != nil {
		return err
	}

	shell := r.Shell
	if shell == "" {
		shell = "bash"
	}
	cmd := exec.CommandContext(ctx, shell, append([]string{file.Name()}, args...)...)
	output, err := cmd.CombinedOutput()
	log.Ctx(ctx).Debug().Str("output", string(output)).Strs("args", args).Msg("scriptlet finished")
	if err != nil {
		return shared.CommandError(output, err)
	}
	return nil
}

var _ ports.ScriptletRunnerPort = BashScriptletRunner{}
