package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yok-tottii/voicememo/internal/timefmt"
	"github.com/yok-tottii/voicememo/internal/wav"
)

var infoCmd = &cobra.Command{
	Use:   "info FILE",
	Short: "Show the format of a WAV file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := readInput(cmd, args[0])
		if err != nil {
			return err
		}

		h, err := wav.Info(data)
		if err != nil {
			return fmt.Errorf("%s: %w", args[0], err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "file:        %s\n", args[0])
		fmt.Fprintf(out, "encoding:    %s\n", encodingName(h))
		fmt.Fprintf(out, "channels:    %d\n", h.NumChannels)
		fmt.Fprintf(out, "sample_rate: %d Hz\n", h.SampleRate)
		fmt.Fprintf(out, "frames:      %d\n", h.FrameCount())
		fmt.Fprintf(out, "duration:    %s\n", timefmt.Format(h.Duration()))
		fmt.Fprintf(out, "data_size:   %d bytes\n", h.DataSize)
		return nil
	},
}

func encodingName(h wav.Header) string {
	switch h.AudioFormat {
	case wav.FormatFloat:
		return fmt.Sprintf("%d-bit float", h.BitsPerSample)
	default:
		return fmt.Sprintf("%d-bit PCM", h.BitsPerSample)
	}
}
