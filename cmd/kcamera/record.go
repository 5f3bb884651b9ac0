package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/wachiwi/kcamera/pkg/archive"
	"github.com/wachiwi/kcamera/pkg/catalog"
)

func newRecordCmd(a *app) *cobra.Command {
	var (
		driver   string
		duration time.Duration
		shift    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record one clip into the catalog",
		Long: "Record one clip into the catalog. Without --duration the camera\n" +
			"records until interrupted or until the memory reserve is reached.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if cmd.Flags().Changed("shift") {
				a.cfg.Camera.StartShift = shift
			}
			session, err := a.openSession(driver)
			if err != nil {
				return err
			}
			defer session.Close()

			arch := archive.New(session, catalog.New(a.cfg.Clips.Dir), nil)
			entry, err := arch.Capture(ctx, "cli", duration)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d frames\t%s\t%s\n",
				entry.ID, entry.Frames, time.Duration(entry.ElapsedMicros)*time.Microsecond, entry.Path)
			return nil
		},
	}
	cmd.Flags().StringVar(&driver, "driver", "", "sensor driver (pattern or pipe)")
	cmd.Flags().DurationVarP(&duration, "duration", "d", 0, "clip length")
	cmd.Flags().DurationVar(&shift, "shift", 0, "delay before recording starts")
	return cmd
}
