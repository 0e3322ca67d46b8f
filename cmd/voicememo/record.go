package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/renameio/v2"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/yok-tottii/voicememo/internal/audio"
	"github.com/yok-tottii/voicememo/internal/recording"
	"github.com/yok-tottii/voicememo/internal/timefmt"
	"github.com/yok-tottii/voicememo/internal/wav"
)

var recordOutput string

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record a voice memo from the microphone",
	Long: `Record from the configured input device until stopped.

While recording, type a command and press Enter:
  (empty)  pause or resume
  s        stop and save
  d        discard
Ctrl+C stops and saves.`,
	Args: cobra.NoArgs,
	RunE: runRecord,
}

func init() {
	recordCmd.Flags().StringVarP(&recordOutput, "output", "o", "", "output WAV file (default is a timestamped file in output_dir)")
}

// command is a keyboard command read while recording
type command int

const (
	cmdToggle command = iota
	cmdStop
	cmdDiscard
	cmdUnknown
)

func parseCommand(line string) command {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "", "p", "pause", "r", "resume":
		return cmdToggle
	case "s", "stop", "q":
		return cmdStop
	case "d", "discard":
		return cmdDiscard
	default:
		return cmdUnknown
	}
}

// readCommands forwards parsed lines until r is exhausted
func readCommands(r io.Reader, out chan<- command) {
	defer close(out)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		out <- parseCommand(scanner.Text())
	}
}

// levelBar renders level in [0, 1] as a fixed-width meter
func levelBar(level float64, width int) string {
	filled := int(level*float64(width) + 0.5)
	filled = max(0, min(filled, width))
	return "[" + strings.Repeat("#", filled) + strings.Repeat(" ", width-filled) + "]"
}

func defaultOutputPath(dir string, now time.Time) string {
	return filepath.Join(dir, "memo-"+now.Format("20060102-150405")+".wav")
}

func runRecord(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	path := recordOutput
	if path == "" {
		dir, err := cfg.GetOutputDir()
		if err != nil {
			return err
		}
		path = defaultOutputPath(dir, time.Now())
	}

	driver, err := audio.NewPortAudioDriver()
	if err != nil {
		return err
	}
	defer driver.Close()

	if err := driver.Initialize(cfg.AudioConfig()); err != nil {
		return fmt.Errorf("invalid audio settings: %w", err)
	}

	session := recording.New(driver,
		recording.WithConfig(cfg.RecordingConfig()),
		recording.WithFinalizer(wav.FramePCM16),
		recording.WithLogger(log.With("recording")),
	)
	finished := make(chan recording.Result, 1)
	session.OnFinish(func(r recording.Result) { finished <- r })

	if err := session.Start(ctx); err != nil {
		return err
	}
	format := session.Format()
	fmt.Fprintf(out, "Recording %d Hz, %d ch. Enter: pause/resume, s: stop, d: discard, Ctrl+C: stop\n",
		format.SampleRate, format.Channels)

	// a single meter goroutine draws every recording interval
	resumed := make(chan struct{}, 1)
	ended := make(chan struct{})
	var meter errgroup.Group
	meter.Go(func() error {
		return drawLevels(ctx, session, out, resumed, ended)
	})

	commands := make(chan command)
	go readCommands(cmd.InOrStdin(), commands)

	var stopErr error
	done := ctx.Done()
	for {
		select {
		case <-done:
			done = nil
			_, stopErr = session.Stop()

		case c, ok := <-commands:
			if !ok {
				// stdin closed: keep recording until Ctrl+C or max duration
				commands = nil
				continue
			}
			switch c {
			case cmdToggle:
				if session.State() == recording.Recording {
					if err := session.Pause(); err == nil {
						fmt.Fprintf(out, "\r⏸ %s paused\n", timefmt.Format(session.SampleDuration()))
					}
				} else if err := session.Resume(); err == nil {
					select {
					case resumed <- struct{}{}:
					default:
					}
				}
			case cmdStop:
				_, stopErr = session.Stop()
			case cmdDiscard:
				session.Discard()
			default:
				fmt.Fprintln(out, "\rUnknown command. Enter: pause/resume, s: stop, d: discard")
			}

		case result := <-finished:
			close(ended)
			if err := meter.Wait(); err != nil {
				log.Warn("Level monitor: %v", err)
			}
			fmt.Fprintln(out)
			return saveRecording(out, path, result, stopErr)
		}
	}
}

// drawLevels monitors session until it is finished, idling while paused
// until resumed or ended fires.
func drawLevels(ctx context.Context, session *recording.Session, out io.Writer, resumed, ended <-chan struct{}) error {
	for {
		err := session.Monitor(ctx, cfg.PollInterval(), func(s recording.Sample) {
			fmt.Fprintf(out, "\r● %s %s", timefmt.Format(s.Duration), levelBar(s.Level, 30))
		})
		if errors.Is(err, context.Canceled) {
			return nil
		}
		if err != nil {
			return err
		}
		if session.State().Terminal() {
			return nil
		}

		select {
		case <-resumed:
		case <-ended:
			return nil
		case <-ctx.Done():
			return nil
		}
	}
}

func saveRecording(out io.Writer, path string, result recording.Result, stopErr error) error {
	if stopErr != nil {
		return stopErr
	}
	if !result.Recorded {
		fmt.Fprintln(out, "Recording discarded")
		return nil
	}

	if err := renameio.WriteFile(path, result.Audio, 0644); err != nil {
		return fmt.Errorf("failed to save recording: %w", err)
	}

	log.Info("Saved recording %s (%d bytes, %v)", path, len(result.Audio), result.Duration)
	fmt.Fprintf(out, "Saved %s (%s, %d bytes)\n", path, timefmt.Format(result.Duration), len(result.Audio))
	return nil
}
