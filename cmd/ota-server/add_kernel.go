package main

import (
	"fmt"
	"io"

	"github.com/onkernel/kernel-ota/cmd/ota-server/config"
	"github.com/onkernel/kernel-ota/lib/catalog"
	"github.com/onkernel/kernel-ota/lib/logger"
	"github.com/onkernel/kernel-ota/lib/providers"
	"github.com/spf13/cobra"
)

func newAddKernelCmd(configPath func() string) *cobra.Command {
	var version, file, description string

	cmd := &cobra.Command{
		Use:   "add-kernel",
		Short: "Publish an image from the kernels directory as a new version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath())
			if err != nil {
				return err
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return err
			}

			mgr, err := newCatalogManager(cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			if _, err := mgr.AddKernel(cmd.Context(), catalog.AddKernelRequest{
				Version:     version,
				KernelFile:  file,
				Description: description,
			}); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Successfully added kernel version: %s\n", version)
			return nil
		},
	}

	cmd.Flags().StringVarP(&version, "version", "v", "", "version identifier, e.g. 1.0.0")
	cmd.Flags().StringVarP(&file, "file", "f", "", "image filename inside the kernels directory")
	cmd.Flags().StringVarP(&description, "description", "d", "", "human-readable release notes")
	cmd.MarkFlagRequired("version")
	cmd.MarkFlagRequired("file")
	return cmd
}

// newCatalogManager builds a catalog manager for the offline commands, which
// log to w and export no telemetry.
func newCatalogManager(cfg *config.Config, w io.Writer) (catalog.Manager, error) {
	logCfg, err := providers.ProvideLogConfig(cfg)
	if err != nil {
		return nil, err
	}
	logCfg.Format = logger.FormatText
	logCfg.Output = w

	log := logger.NewSubsystemLogger(logger.SubsystemCatalog, logCfg, nil)
	return catalog.NewManager(providers.ProvidePaths(cfg), log, nil)
}
