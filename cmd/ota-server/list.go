package main

import (
	"fmt"
	"io"

	"github.com/c2h5oh/datasize"
	"github.com/fatih/color"
	"github.com/onkernel/kernel-ota/cmd/ota-server/config"
	"github.com/onkernel/kernel-ota/lib/catalog"
	"github.com/spf13/cobra"
)

const listDateFormat = "2006-01-02 15:04:05 UTC"

func newListCmd(configPath func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List published kernel versions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath())
			if err != nil {
				return err
			}

			mgr, err := newCatalogManager(cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			history, err := mgr.ListVersions(cmd.Context())
			if err != nil {
				return err
			}

			printHistory(cmd.OutOrStdout(), history)
			return nil
		},
	}
}

func printHistory(w io.Writer, history *catalog.VersionHistory) {
	latest := color.New(color.FgGreen, color.Bold)

	fmt.Fprintln(w, "Available kernel versions:")
	fmt.Fprintf(w, "Latest: %s\n", history.Latest)
	fmt.Fprintln(w)

	for _, k := range history.Versions {
		if k.Version == history.Latest {
			latest.Fprintf(w, "Version: %s (latest)\n", k.Version)
		} else {
			fmt.Fprintf(w, "Version: %s\n", k.Version)
		}
		fmt.Fprintf(w, "  File: %s\n", k.KernelFile)
		fmt.Fprintf(w, "  Size: %d bytes (%s)\n", k.FileSize, datasize.ByteSize(k.FileSize).HumanReadable())
		fmt.Fprintf(w, "  Date: %s\n", k.ReleaseDate.UTC().Format(listDateFormat))
		fmt.Fprintf(w, "  Description: %s\n", k.Description)
		fmt.Fprintln(w)
	}
}
