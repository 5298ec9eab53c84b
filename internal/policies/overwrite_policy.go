package policies

import (
	"fmt"
	"sort"
	"strings"
)

const (
	ActionProceed = "proceed"
	ActionPrompt  = "prompt"
)

// OverwriteDecision tells the installer whether copying content needs
// confirmation first.
type OverwriteDecision struct {
	Action string
	Prompt string
}

// DecideOverwrite asks for confirmation when packages installed through
// the package manager already own the ROCm namespace, unless forced.
func DecideOverwrite(owned []string, force bool) OverwriteDecision {
	if len(owned) == 0 || force {
		return OverwriteDecision{Action: ActionProceed}
	}
	names := append([]string(nil), owned...)
	sort.Strings(names)
	const shown = 5
	list := names
	suffix := ""
	if len(list) > shown {
		list = list[:shown]
		suffix = fmt.Sprintf(" and %d more", len(names)-shown)
	}
	return OverwriteDecision{
		Action: ActionPrompt,
		Prompt: fmt.Sprintf("ROCm packages installed by the package manager were found (%s%s). Overwrite their files?", strings.Join(list, ", "), suffix),
	}
}
