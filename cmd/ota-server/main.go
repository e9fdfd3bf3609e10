package main

import (
	"fmt"
	"os"

	"github.com/onkernel/kernel-ota/cmd/ota-server/config"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgFile string

	root := &cobra.Command{
		Use:   "ota-server",
		Short: "Kernel OTA update server",
		Long: `ota-server publishes versioned kernel images, serves them over HTTP with
a per-response checksum, and advertises itself on the local network over mDNS.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&cfgFile, "config", "c", config.DefaultPath, "path to the TOML config file")

	configPath := func() string { return cfgFile }
	root.AddCommand(
		newStartCmd(configPath),
		newAddKernelCmd(configPath),
		newListCmd(configPath),
		newDiscoverCmd(),
	)
	return root
}
