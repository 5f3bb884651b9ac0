package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/wachiwi/kcamera/pkg/camera"
)

func newModesCmd() *cobra.Command {
	return &cobra.Command{
		Use:               "modes",
		Short:             "List the supported sensor modes",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "MODE\tWIDTH\tHEIGHT\tFPS")
			for _, m := range camera.Modes() {
				fmt.Fprintf(w, "%s\t%d\t%d\t%d-%d\n", m.Name, m.Width, m.Height, m.MinFPS, m.MaxFPS)
			}
			return w.Flush()
		},
	}
}
