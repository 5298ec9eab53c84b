package cli

import (
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"rocm-installer/internal/app"
	"rocm-installer/internal/shared"
)

// newAppService wires the service to the terminal. The copy progress bar
// is only drawn when stderr is a terminal.
func newAppService(cmd *cobra.Command) app.Service {
	opts := app.Options{
		In:        os.Stdin,
		Out:       os.Stdout,
		AssumeYes: assumeYes(cmd),
	}
	if isatty.IsTerminal(os.Stderr.Fd()) {
		opts.Progress = os.Stderr
	}
	return app.NewService(opts)
}

func payloadDir(cmd *cobra.Command) string {
	value, _ := cmd.Flags().GetString("payload")
	return resolveString(cmd, value, "payload", "payload")
}

func assumeYes(cmd *cobra.Command) bool {
	if cmd == nil {
		return viper.GetBool("assume_yes")
	}
	value, _ := cmd.Flags().GetBool("yes")
	return resolveBool(cmd, value, "assume_yes", "yes")
}

func resolveString(cmd *cobra.Command, value string, key string, flagName string) string {
	if cmd == nil {
		if value != "" {
			return value
		}
		return viper.GetString(key)
	}
	if flagChanged(cmd, flagName) {
		return value
	}
	if configured := viper.GetString(key); configured != "" {
		return configured
	}
	return value
}

// resolveStrings accepts repeated flags as well as comma separated values.
func resolveStrings(cmd *cobra.Command, values []string, key string, flagName string) []string {
	if cmd == nil {
		if len(values) > 0 {
			return splitAll(values)
		}
		return splitAll(viper.GetStringSlice(key))
	}
	if flagChanged(cmd, flagName) {
		return splitAll(values)
	}
	return splitAll(viper.GetStringSlice(key))
}

func resolveBool(cmd *cobra.Command, value bool, key string, flagName string) bool {
	if cmd == nil {
		return value
	}
	if flagChanged(cmd, flagName) {
		return value
	}
	return viper.GetBool(key)
}

func resolveStringMap(cmd *cobra.Command, values map[string]string, key string, flagName string) map[string]string {
	if cmd != nil && flagChanged(cmd, flagName) {
		return values
	}
	if configured := viper.GetStringMapString(key); len(configured) > 0 {
		return configured
	}
	return values
}

func flagChanged(cmd *cobra.Command, name string) bool {
	if cmd == nil || strings.TrimSpace(name) == "" {
		return false
	}
	if flag := cmd.Flags().Lookup(name); flag != nil {
		return flag.Changed
	}
	if flag := cmd.PersistentFlags().Lookup(name); flag != nil {
		return flag.Changed
	}
	return false
}

func splitAll(values []string) []string {
	var out []string
	for _, value := range values {
		out = append(out, shared.SplitList(value)...)
	}
	return out
}
