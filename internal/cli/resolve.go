package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"rocm-installer/internal/app"
)

type resolveOptions struct {
	ExtractDir  string
	RocmVersion string
	Prefix      string
	Components  map[string]string
}

func newResolveCommand() *cobra.Command {
	opts := resolveOptions{}
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Write meta-package configs and the combined dependency list",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runResolve(cmd.Context(), cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.ExtractDir, "extract-dir", "", "Extraction root written by extract")
	cmd.Flags().StringVar(&opts.RocmVersion, "rocm-version", "", "ROCm version (default: read from VERSION)")
	cmd.Flags().StringVar(&opts.Prefix, "first-party-prefix", "", "Name prefix of first-party packages")
	cmd.Flags().StringToStringVar(&opts.Components, "components", nil, "Component to meta-package base name, e.g. core=amdrocm-core")
	_ = viper.BindPFlag("extract_dir", cmd.Flags().Lookup("extract-dir"))
	_ = viper.BindPFlag("rocm_version", cmd.Flags().Lookup("rocm-version"))
	_ = viper.BindPFlag("first_party_prefix", cmd.Flags().Lookup("first-party-prefix"))
	return cmd
}

func runResolve(ctx context.Context, cmd *cobra.Command, opts resolveOptions) error {
	service := newAppService(cmd)
	result, err := service.Resolve(ctx, app.ResolveRequest{
		ExtractDir:  resolveString(cmd, opts.ExtractDir, "extract_dir", "extract-dir"),
		RocmVersion: resolveString(cmd, opts.RocmVersion, "rocm_version", "rocm-version"),
		Prefix:      resolveString(cmd, opts.Prefix, "first_party_prefix", "first-party-prefix"),
		Components:  resolveStringMap(cmd, opts.Components, "components", "components"),
	})
	if err != nil {
		return err
	}
	fmt.Printf("meta configs: %d\n", len(result.MetaConfigs))
	for _, name := range result.MetaConfigs {
		fmt.Printf("- %s\n", name)
	}
	fmt.Printf("combined dependencies: %d (%s)\n", result.CombinedDeps, result.CombinedPath)
	return nil
}
