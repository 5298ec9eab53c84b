package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"rocm-installer/internal/app"
)

type extractOptions struct {
	PackagesDir string
	OutputDir   string
}

func newExtractCommand() *cobra.Command {
	opts := extractOptions{}
	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Unpack package archives into the installer payload layout",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runExtract(cmd.Context(), cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.PackagesDir, "packages-dir", "", "Directory holding .rpm or .deb archives")
	cmd.Flags().StringVar(&opts.OutputDir, "output", "", "Extraction root, e.g. <payload>/component-rocm")
	_ = viper.BindPFlag("packages_dir", cmd.Flags().Lookup("packages-dir"))
	_ = viper.BindPFlag("extract_output", cmd.Flags().Lookup("output"))
	return cmd
}

func runExtract(ctx context.Context, cmd *cobra.Command, opts extractOptions) error {
	service := newAppService(cmd)
	result, err := service.Extract(ctx, app.ExtractRequest{
		PackagesDir: resolveString(cmd, opts.PackagesDir, "packages_dir", "packages-dir"),
		OutputDir:   resolveString(cmd, opts.OutputDir, "extract_output", "output"),
	})
	if err != nil {
		return err
	}
	fmt.Printf("extracted %d archives into %s\n", result.Archives, result.OutputDir)
	for _, group := range result.Groups {
		fmt.Printf("- %s: %d packages, %d with content, %d required deps\n", group.Group, group.Packages, group.Components, group.RequiredDeps)
	}
	return nil
}
