package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yok-tottii/voicememo/internal/api"
	"github.com/yok-tottii/voicememo/internal/audio"
	"github.com/yok-tottii/voicememo/internal/server"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the localhost HTTP API",
	Long: `Serve the recorder over HTTP on 127.0.0.1.

Routes:
  GET/PUT /api/settings
  GET     /api/devices
  POST    /api/recordings                 create and start
  GET     /api/recordings/{id}            state, level, duration
  POST    /api/recordings/{id}/pause|resume|stop|discard
  GET     /api/recordings/{id}/audio      finished WAV
  POST    /api/reverse                    body: audio, response: reversed WAV
  GET     /metrics`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		serverConfig := server.DefaultConfig()
		serverConfig.Port = cfg.ServerPort
		if cmd.Flags().Changed("port") {
			serverConfig.Port = servePort
		}

		srv := server.New(serverConfig, log.With("server"))
		handler := api.New(cfg, cfgFile, log.With("api"), srv.Registry())
		defer handler.Close()

		driver, err := audio.NewPortAudioDriver()
		if err != nil {
			log.Warn("Audio capture disabled: %v", err)
			fmt.Fprintf(cmd.ErrOrStderr(), "Warning: audio capture disabled: %v\n", err)
		} else {
			defer driver.Close()
			if err := driver.Initialize(cfg.AudioConfig()); err != nil {
				return fmt.Errorf("invalid audio settings: %w", err)
			}
			handler.SetCaptureDevice(driver)
			handler.SetDeviceLister(driver)
		}

		handler.RegisterRoutes(srv.Router())

		if err := srv.Start(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Listening on %s (Ctrl+C to stop)\n", srv.URL())

		<-cmd.Context().Done()
		log.Info("Shutdown requested")
		return srv.Stop()
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "port to listen on (overrides server_port, 0 = random)")
}
