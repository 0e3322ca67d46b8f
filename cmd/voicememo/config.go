package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or change settings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := json.MarshalIndent(cfg.Clone(), "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "# %s\n%s\n", cfgFile, data)
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file path",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), cfgFile)
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set KEY VALUE",
	Short: "Change one setting and save the config file",
	Example: `  voicememo config set sample_rate 48000
  voicememo config set latency low
  voicememo config set output_dir ~/Music/memos`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Update(map[string]interface{}{args[0]: parseValue(args[1])}); err != nil {
			return err
		}
		if err := cfg.Save(cfgFile); err != nil {
			return err
		}
		log.Info("Config %s set to %s", args[0], args[1])
		fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", args[0], args[1])
		return nil
	},
}

func init() {
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configSetCmd)
}

// parseValue reads a command line value the way it would arrive in JSON:
// numbers become float64, anything else stays a string
func parseValue(s string) interface{} {
	var v float64
	if err := json.Unmarshal([]byte(s), &v); err == nil {
		return v
	}
	return s
}
