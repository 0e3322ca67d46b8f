package main

import (
	"fmt"
	"io"
	"os"

	"github.com/google/renameio/v2"
	"github.com/spf13/cobra"

	"github.com/yok-tottii/voicememo/internal/reversal"
	"github.com/yok-tottii/voicememo/internal/timefmt"
	"github.com/yok-tottii/voicememo/internal/wav"
)

var reverseCmd = &cobra.Command{
	Use:   "reverse IN OUT",
	Short: "Write a time-reversed copy of a WAV file",
	Long: `Decode IN, reverse every channel and write the result to OUT as
16-bit PCM WAV with the same sample rate and channel count.
Use - for stdin or stdout.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := readInput(cmd, args[0])
		if err != nil {
			return err
		}

		codec := reversal.New(nil, log.With("reversal"))
		out, err := codec.Reverse(cmd.Context(), data)
		if err != nil {
			return fmt.Errorf("%s: %w", args[0], err)
		}

		if err := writeOutput(cmd, args[1], out); err != nil {
			return err
		}

		if args[1] != "-" {
			h, _ := wav.Info(out)
			fmt.Fprintf(cmd.ErrOrStderr(), "Reversed %s -> %s (%s)\n", args[0], args[1], timefmt.Format(h.Duration()))
		}
		return nil
	},
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		return data, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	return data, nil
}

func writeOutput(cmd *cobra.Command, path string, data []byte) error {
	if path == "-" {
		if _, err := cmd.OutOrStdout().Write(data); err != nil {
			return fmt.Errorf("failed to write stdout: %w", err)
		}
		return nil
	}

	if err := renameio.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
