package main

import (
	"fmt"
	"slices"
	"time"

	"github.com/fatih/color"
	"github.com/onkernel/kernel-ota/lib/discovery"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

func newDiscoverCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Find OTA servers advertised on the local network",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			servers, err := discovery.Browse(cmd.Context(), timeout)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if len(servers) == 0 {
				fmt.Fprintf(w, "No OTA servers found within %s\n", timeout)
				return nil
			}

			name := color.New(color.FgCyan, color.Bold)
			for _, s := range servers {
				name.Fprintf(w, "%s", s.Instance)
				fmt.Fprintf(w, " at http://%s\n", s.Address())

				keys := lo.Keys(s.TXT)
				slices.Sort(keys)
				for _, k := range keys {
					fmt.Fprintf(w, "  %s: %s\n", k, s.TXT[k])
				}
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 3*time.Second, "how long to wait for answers")
	return cmd
}
