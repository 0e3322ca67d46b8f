package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/yok-tottii/voicememo/internal/config"
	"github.com/yok-tottii/voicememo/internal/logger"
)

var (
	cfg     *config.Config
	cfgFile string
	verbose bool
	log     = logger.Nop()
)

var rootCmd = &cobra.Command{
	Use:           "voicememo",
	Short:         "Record voice memos and play them backwards",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	Long: `voicememo records audio from a microphone with pause and resume,
saves it as a 16-bit PCM WAV file, and can reverse any WAV file.

It also runs a localhost HTTP API exposing the same operations.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cfgFile == "" {
			cfgFile = config.GetConfigPath()
		}

		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config %s: %w", cfgFile, err)
		}

		setupLogging()
		log.Debug("Loaded config from %s", cfgFile)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		log.Close()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is <user config dir>/voicememo/config.json)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log debug output to stderr")

	rootCmd.AddCommand(recordCmd)
	rootCmd.AddCommand(reverseCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(devicesCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(configCmd)
}

// setupLogging opens the log file; verbose mode mirrors it to stderr
func setupLogging() {
	logConfig := logger.DefaultConfig()
	logConfig.Level = cfg.Level()
	if verbose {
		logConfig.Level = logger.DEBUG
		logConfig.Console = os.Stderr
	}

	l, err := logger.New(logConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: logging disabled: %v\n", err)
		return
	}
	log = l
}
