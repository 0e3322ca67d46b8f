package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/yok-tottii/voicememo/internal/audio"
	"github.com/yok-tottii/voicememo/internal/config"
	"github.com/yok-tottii/voicememo/internal/recording"
	"github.com/yok-tottii/voicememo/internal/wav"
)

// execute runs the root command against a private config dir
func execute(t *testing.T, stdin []byte, args ...string) (string, error) {
	t.Helper()

	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", dir)
	cfgFile = ""
	verbose = false

	var out bytes.Buffer
	rootCmd.SetIn(bytes.NewReader(stdin))
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"--config", filepath.Join(dir, "config.json")}, args...))

	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeWAV(t *testing.T, samples []float32, channels, rate int) string {
	t.Helper()
	data, err := wav.EncodeInterleaved(samples, channels, rate)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "in.wav")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		line     string
		expected command
	}{
		{"", cmdToggle},
		{"  ", cmdToggle},
		{"p", cmdToggle},
		{"s", cmdStop},
		{"STOP", cmdStop},
		{"d", cmdDiscard},
		{"discard\r", cmdDiscard},
		{"x", cmdUnknown},
	}

	for _, tt := range tests {
		if got := parseCommand(tt.line); got != tt.expected {
			t.Errorf("parseCommand(%q) = %v, want %v", tt.line, got, tt.expected)
		}
	}
}

func TestReadCommands(t *testing.T) {
	out := make(chan command)
	go readCommands(strings.NewReader("\ns\nd\n"), out)

	var got []command
	for c := range out {
		got = append(got, c)
	}

	if diff := cmp.Diff([]command{cmdToggle, cmdStop, cmdDiscard}, got); diff != "" {
		t.Errorf("commands mismatch (-want +got):\n%s", diff)
	}
}

func TestLevelBar(t *testing.T) {
	tests := []struct {
		level    float64
		expected string
	}{
		{0, "[          ]"},
		{0.5, "[#####     ]"},
		{1, "[##########]"},
		{1.5, "[##########]"},
		{-1, "[          ]"},
	}

	for _, tt := range tests {
		if got := levelBar(tt.level, 10); got != tt.expected {
			t.Errorf("levelBar(%v) = %q, want %q", tt.level, got, tt.expected)
		}
	}
}

func TestDefaultOutputPath(t *testing.T) {
	now := time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)
	got := defaultOutputPath("/tmp/memos", now)

	if got != filepath.Join("/tmp/memos", "memo-20240309-140507.wav") {
		t.Errorf("unexpected path %q", got)
	}
}

func TestSaveRecording(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memo.wav")
	var out bytes.Buffer

	if err := saveRecording(&out, path, recording.Result{}, nil); err != nil {
		t.Fatalf("discarded result: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("discarded recording must not be written")
	}

	audio := []byte("RIFF....")
	result := recording.Result{Audio: audio, Duration: 1500 * time.Millisecond, Recorded: true}
	if err := saveRecording(&out, path, result, nil); err != nil {
		t.Fatalf("saveRecording failed: %v", err)
	}
	saved, err := os.ReadFile(path)
	if err != nil || !bytes.Equal(saved, audio) {
		t.Errorf("saved file mismatch: %v", err)
	}
	if !strings.Contains(out.String(), "00:01.5") {
		t.Errorf("expected duration in output, got %q", out.String())
	}

	boom := errors.New("boom")
	if err := saveRecording(&out, path, result, boom); !errors.Is(err, boom) {
		t.Errorf("expected stop error, got %v", err)
	}
}

func TestParseValue(t *testing.T) {
	if got := parseValue("48000"); got != float64(48000) {
		t.Errorf("expected number, got %#v", got)
	}
	if got := parseValue("low"); got != "low" {
		t.Errorf("expected string, got %#v", got)
	}
	if got := parseValue("~/memos"); got != "~/memos" {
		t.Errorf("expected string, got %#v", got)
	}
}

func TestReverseCommand(t *testing.T) {
	in := writeWAV(t, []float32{0.5, 0, -0.5}, 1, 8000)
	outPath := filepath.Join(t.TempDir(), "out.wav")

	if _, err := execute(t, nil, "reverse", in, outPath); err != nil {
		t.Fatalf("reverse failed: %v", err)
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatal(err)
	}
	buf, err := wav.Decode(data)
	if err != nil {
		t.Fatalf("output is not WAV: %v", err)
	}
	if buf.FrameCount() != 3 || buf.Channels[0][0] >= 0 || buf.Channels[0][2] <= 0 {
		t.Errorf("unexpected samples %v", buf.Channels[0])
	}
}

func TestReverseCommandStdio(t *testing.T) {
	data, err := wav.EncodeInterleaved([]float32{0.25, -0.25}, 2, 8000)
	if err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, data, "reverse", "-", "-")
	if err != nil {
		t.Fatalf("reverse failed: %v", err)
	}
	if len(out) != len(data) {
		t.Errorf("expected %d bytes on stdout, got %d", len(data), len(out))
	}
}

func TestReverseCommandDecodeError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.wav")
	if err := os.WriteFile(path, []byte("not audio"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := execute(t, nil, "reverse", path, filepath.Join(t.TempDir(), "out.wav"))
	if !errors.Is(err, wav.ErrDecode) {
		t.Errorf("expected decode error, got %v", err)
	}
}

func TestInfoCommand(t *testing.T) {
	in := writeWAV(t, make([]float32, 16000), 2, 8000)

	out, err := execute(t, nil, "info", in)
	if err != nil {
		t.Fatalf("info failed: %v", err)
	}

	for _, want := range []string{"16-bit PCM", "channels:    2", "8000 Hz", "frames:      8000", "00:01.0"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestConfigSetCommand(t *testing.T) {
	out, err := execute(t, nil, "config", "set", "sample_rate", "48000")
	if err != nil {
		t.Fatalf("config set failed: %v", err)
	}
	if !strings.Contains(out, "sample_rate = 48000") {
		t.Errorf("unexpected output %q", out)
	}

	data, err := os.ReadFile(cfgFile)
	if err != nil {
		t.Fatalf("config file not written: %v", err)
	}
	if !strings.Contains(string(data), `"sample_rate": 48000`) {
		t.Errorf("saved config missing sample_rate:\n%s", data)
	}

	if _, err := execute(t, nil, "config", "set", "latency", "medium"); err == nil {
		t.Error("expected error for invalid latency")
	}
}

type nullStream struct{}

func (nullStream) Format() audio.Format { return audio.Format{SampleRate: 8000, Channels: 1} }
func (nullStream) Start() error         { return nil }
func (nullStream) Pause() error         { return nil }
func (nullStream) Resume() error        { return nil }
func (nullStream) Close() error         { return nil }

type nullDevice struct{}

func (nullDevice) Acquire(audio.Sink) (audio.Stream, error) { return nullStream{}, nil }

// lockedBuffer counts meter redraws from the drawing goroutine
type lockedBuffer struct {
	mu    sync.Mutex
	lines int
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lines++
	return len(p), nil
}

func (b *lockedBuffer) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lines
}

func TestDrawLevelsSpansPauses(t *testing.T) {
	cfg = config.DefaultConfig()
	cfg.PollIntervalMS = 10

	session := recording.New(nullDevice{}, recording.WithConfig(recording.Config{LevelWindow: 8}))
	if err := session.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	var out lockedBuffer
	resumed := make(chan struct{}, 1)
	ended := make(chan struct{})
	done := make(chan error, 1)
	go func() { done <- drawLevels(context.Background(), session, &out, resumed, ended) }()

	// a quick pause and resume keeps the same goroutine drawing
	for i := 0; i < 3; i++ {
		if err := session.Pause(); err != nil {
			t.Fatalf("Pause failed: %v", err)
		}
		if err := session.Resume(); err != nil {
			t.Fatalf("Resume failed: %v", err)
		}
		select {
		case resumed <- struct{}{}:
		default:
		}
	}

	if err := session.Pause(); err != nil {
		t.Fatalf("Pause failed: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	select {
	case err := <-done:
		t.Fatalf("drawLevels returned while paused: %v", err)
	default:
	}

	before := out.count()
	if err := session.Resume(); err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	select {
	case resumed <- struct{}{}:
	default:
	}

	deadline := time.Now().Add(5 * time.Second)
	for out.count() == before && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if out.count() == before {
		t.Error("meter did not redraw after resume")
	}

	if _, err := session.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("drawLevels returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("drawLevels did not return after Stop")
	}
}

func TestDrawLevelsEndedWhilePaused(t *testing.T) {
	cfg = config.DefaultConfig()
	cfg.PollIntervalMS = 10

	session := recording.New(nullDevice{}, recording.WithConfig(recording.Config{LevelWindow: 8}))
	if err := session.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := session.Pause(); err != nil {
		t.Fatalf("Pause failed: %v", err)
	}

	ended := make(chan struct{})
	done := make(chan error, 1)
	go func() { done <- drawLevels(context.Background(), session, io.Discard, make(chan struct{}), ended) }()

	close(ended)
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("drawLevels returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("drawLevels did not return after ended was closed")
	}
	session.Discard()
}
