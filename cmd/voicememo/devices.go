package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/yok-tottii/voicememo/internal/audio"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List audio input devices",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		driver, err := audio.NewPortAudioDriver()
		if err != nil {
			return err
		}
		defer driver.Close()

		devices, err := driver.ListDevices()
		if err != nil {
			return err
		}
		printDevices(cmd, devices, cfg.AudioDeviceID)
		return nil
	},
}

// printDevices marks the default device with * and the configured one with >
func printDevices(cmd *cobra.Command, devices []audio.Device, selected int) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "\tID\tNAME\tCHANNELS\tRATE")
	for _, d := range devices {
		mark := ""
		if d.ID == selected || (selected == -1 && d.IsDefault) {
			mark = ">"
		}
		if d.IsDefault {
			mark += "*"
		}
		fmt.Fprintf(w, "%s\t%d\t%s\t%d\t%.0f\n", mark, d.ID, d.Name, d.MaxInputChannels, d.DefaultSampleRate)
	}
	w.Flush()

	if len(devices) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No input devices found")
	}
}
