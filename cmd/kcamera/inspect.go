package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/wachiwi/kcamera/pkg/camera"
	"github.com/wachiwi/kcamera/pkg/clip"
)

func newInspectCmd() *cobra.Command {
	var (
		frames bool
		from   int
	)
	cmd := &cobra.Command{
		Use:   "inspect FILE",
		Short: "Print a summary of a clip file",
		Args:  cobra.ExactArgs(1),
		// Inspecting a file needs no configuration.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if frames {
				if err := listFrames(cmd, args[0], from); err != nil {
					return err
				}
			}

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			info, err := clip.Inspect(f, nil)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "frames:   %d\n", info.Frames)
			if info.Frames > 0 {
				fmt.Fprintf(out, "size:     %dx%d %s\n", info.Width, info.Height, info.Format)
				fmt.Fprintf(out, "duration: %s\n", time.Duration(info.ElapsedMicros)*time.Microsecond)
			}
			fmt.Fprintf(out, "bytes:    %d\n", info.Bytes)
			return nil
		},
	}
	cmd.Flags().BoolVar(&frames, "frames", false, "list every frame")
	cmd.Flags().IntVar(&from, "from", 0, "start the frame listing at this index")
	return cmd
}

// listFrames plays the clip back from frame index from.
func listFrames(cmd *cobra.Command, path string, from int) error {
	rec, err := clip.LoadFile(cmd.Context(), path, clip.LoadOptions{})
	if err != nil {
		return err
	}
	st := camera.Playback(nil, rec)
	if from > 0 {
		if err := st.Seek(from); err != nil {
			return fmt.Errorf("seek to frame %d of %d: %w", from, st.Len(), err)
		}
	}

	out := cmd.OutOrStdout()
	for {
		fr, i, err := st.Frame()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%6d  pts=%-12d %dx%d %s\n", i, fr.Pts, fr.Width, fr.Height, fr.Format)
	}
}
