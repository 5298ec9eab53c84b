package adapters

import (
	"errors"
	"io"

	"github.com/manifoldco/promptui"

	"rocm-installer/internal/ports"
)

// PromptConfirm asks a yes/no question with promptui. AssumeYes answers
// every prompt without reading.
type PromptConfirm struct {
	In        io.Reader
	Out       io.Writer
	AssumeYes bool
}

func (c PromptConfirm) Confirm(prompt string) (bool, error) {
	if c.AssumeYes {
		return true, nil
	}
	p := promptui.Prompt{
		Label:     prompt,
		IsConfirm: true,
	}
	if c.In != nil {
		p.Stdin = io.NopCloser(c.In)
	}
	if c.Out != nil {
		p.Stdout = nopWriteCloser{c.Out}
	}
	if _, err := p.Run(); err != nil {
		if errors.Is(err, promptui.ErrAbort) || errors.Is(err, promptui.ErrEOF) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

var _ ports.ConfirmPort = PromptConfirm{}
