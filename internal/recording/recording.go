package recording

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/yok-tottii/voicememo/internal/audio"
	"github.com/yok-tottii/voicememo/internal/logger"
)

// State represents the current recording state
type State int

const (
	// Idle means capture has not started
	Idle State = iota
	// Recording means chunks and levels are being captured
	Recording
	// Paused means the device is held but nothing is captured
	Paused
	// Stopped means the recording was finalized
	Stopped
	// Discarded means the recording was abandoned
	Discarded
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Recording:
		return "Recording"
	case Paused:
		return "Paused"
	case Stopped:
		return "Stopped"
	case Discarded:
		return "Discarded"
	default:
		return "Unknown"
	}
}

// Terminal reports whether no further operation is valid
func (s State) Terminal() bool {
	return s == Stopped || s == Discarded
}

// ErrInvalidTransition is returned when an operation is called in the wrong state
var ErrInvalidTransition = errors.New("invalid state transition")

// TransitionError describes a rejected operation
type TransitionError struct {
	Op    string
	State State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s while %s", e.Op, e.State)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// Finalizer turns the concatenated chunks into the finished audio
type Finalizer func(format audio.Format, data []byte) ([]byte, error)

// Result is the outcome of a finished session.
// Recorded is false when nothing was captured: Stop before Start, or Discard.
type Result struct {
	Audio    []byte
	Duration time.Duration
	Recorded bool
}

// Sample is one feedback reading
type Sample struct {
	State    State
	Level    float64
	Duration time.Duration
}

// Config holds configuration for a recording session
type Config struct {
	// MaxDuration stops the session automatically once that much active
	// recording time has accumulated; 0 disables
	MaxDuration time.Duration
	// LevelWindow is the number of most recent samples the level meter inspects
	LevelWindow int
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		MaxDuration: 10 * time.Minute,
		LevelWindow: 2048,
	}
}

// Option configures a Session
type Option func(*Session)

// WithConfig applies cfg
func WithConfig(cfg Config) Option {
	return func(s *Session) {
		s.maxDuration = cfg.MaxDuration
		if cfg.LevelWindow > 0 {
			s.level = make([]int16, cfg.LevelWindow)
		}
	}
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// WithFinalizer sets how chunks become the finished audio
func WithFinalizer(f Finalizer) Option {
	return func(s *Session) { s.finalizer = f }
}

// WithLogger sets the session logger
func WithLogger(l *logger.Logger) Option {
	return func(s *Session) { s.log = l }
}

// Session is one capture: Idle → Recording ⇄ Paused → Stopped, or → Discarded
// from any non-terminal state. A session cannot be reused.
type Session struct {
	mu     sync.Mutex
	device audio.CaptureDevice
	stream audio.Stream
	format audio.Format
	state  State

	accumulated   time.Duration
	intervalStart time.Time
	chunks        [][]byte

	// level is a ring of the most recent captured samples
	level     []int16
	levelPos  int
	levelFill int

	maxDuration time.Duration
	stopTimer   *time.Timer
	timerGen    int
	finalizer   Finalizer
	onFinish    []func(Result)
	now         func() time.Time
	log         *logger.Logger
}

// New creates a session that will capture from device
func New(device audio.CaptureDevice, opts ...Option) *Session {
	defaults := DefaultConfig()
	s := &Session{
		device:      device,
		state:       Idle,
		level:       make([]int16, defaults.LevelWindow),
		maxDuration: defaults.MaxDuration,
		now:         time.Now,
		log:         logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OnFinish registers fn to be called once when the session stops or is discarded
func (s *Session) OnFinish(fn func(Result)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onFinish = append(s.onFinish, fn)
}

// State returns the current recording state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Chunks returns the number of captured chunks
func (s *Session) Chunks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.chunks)
}

// Format returns the PCM format of the held stream
func (s *Session) Format() audio.Format {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.format
}

// Start acquires the device and begins the first interval. If the device
// cannot be acquired the session stays Idle and Start may be retried.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != Idle {
		state := s.state
		s.mu.Unlock()
		return &TransitionError{Op: "start", State: state}
	}
	s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if s.device == nil {
		return fmt.Errorf("%w: no capture device configured", audio.ErrCaptureUnavailable)
	}

	stream, err := s.device.Acquire(audio.Sink{
		OnChunk:  s.appendChunk,
		OnFrames: s.meter,
	})
	if err != nil {
		if !errors.Is(err, audio.ErrCaptureUnavailable) {
			err = fmt.Errorf("%w: %w", audio.ErrCaptureUnavailable, err)
		}
		s.log.Warn("Failed to acquire capture device: %v", err)
		return err
	}

	if err := ctx.Err(); err != nil {
		s.closeStream(stream)
		return err
	}

	s.mu.Lock()
	if s.state != Idle {
		// discarded while acquiring
		state := s.state
		s.mu.Unlock()
		s.closeStream(stream)
		return &TransitionError{Op: "start", State: state}
	}
	s.stream = stream
	s.format = stream.Format()
	s.accumulated = 0
	s.intervalStart = s.now()
	s.state = Recording
	s.mu.Unlock()

	if err := stream.Start(); err != nil {
		s.mu.Lock()
		if s.stream == stream {
			s.stream = nil
			s.state = Idle
			s.chunks = nil
		}
		s.mu.Unlock()
		s.closeStream(stream)
		return fmt.Errorf("%w: %w", audio.ErrCaptureUnavailable, err)
	}

	s.mu.Lock()
	if s.state == Recording {
		s.armTimer()
	}
	s.mu.Unlock()

	s.log.Info("Recording started (%d Hz, %d ch)", s.format.SampleRate, s.format.Channels)
	return nil
}

// armTimer schedules the auto stop for the active time left under
// maxDuration. Caller holds s.mu.
func (s *Session) armTimer() {
	s.cancelTimer()
	if s.maxDuration <= 0 {
		return
	}
	gen := s.timerGen
	s.stopTimer = time.AfterFunc(s.maxDuration-s.accumulated, func() { s.autoStop(gen) })
}

// autoStop is fired by the max-duration timer armed as generation gen
func (s *Session) autoStop(gen int) {
	s.mu.Lock()
	current := gen == s.timerGen && s.state == Recording
	s.mu.Unlock()
	if !current {
		return
	}

	if _, err := s.Stop(); err != nil && !errors.Is(err, ErrInvalidTransition) {
		s.log.Error("Auto-stop recording failed: %v", err)
		return
	}
	s.log.Info("Recording stopped after reaching max duration %v", s.maxDuration)
}

// closeInterval folds the current interval into the accumulated time.
// Caller holds s.mu.
func (s *Session) closeInterval() {
	elapsed := s.now().Sub(s.intervalStart)
	if elapsed > 0 {
		s.accumulated += elapsed
	}
}

// Pause closes the current interval; nothing is captured until Resume
func (s *Session) Pause() error {
	s.mu.Lock()
	if s.state != Recording {
		state := s.state
		s.mu.Unlock()
		return &TransitionError{Op: "pause", State: state}
	}
	s.closeInterval()
	s.state = Paused
	s.cancelTimer()
	stream := s.stream
	s.mu.Unlock()

	// Capture is already gated on state; a device that keeps running only wastes cycles
	if err := stream.Pause(); err != nil {
		s.log.Warn("Failed to pause capture stream: %v", err)
	}
	return nil
}

// Resume opens a new interval
func (s *Session) Resume() error {
	s.mu.Lock()
	if s.state != Paused {
		state := s.state
		s.mu.Unlock()
		return &TransitionError{Op: "resume", State: state}
	}
	stream := s.stream
	s.mu.Unlock()

	if err := stream.Resume(); err != nil {
		return fmt.Errorf("failed to resume capture stream: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Paused {
		// stopped or discarded while resuming
		return &TransitionError{Op: "resume", State: s.state}
	}
	s.intervalStart = s.now()
	s.levelFill = 0
	s.state = Recording
	// a remainder at or below zero fires at once
	s.armTimer()
	return nil
}

// Stop finalizes the recording and releases the device. Stop on an Idle
// session returns a Result with Recorded false and no duration.
func (s *Session) Stop() (Result, error) {
	s.mu.Lock()
	switch s.state {
	case Idle:
		s.state = Stopped
		callbacks := s.takeCallbacks()
		s.mu.Unlock()

		s.log.Warn("Stop called before capture started")
		notify(callbacks, Result{})
		return Result{}, nil

	case Recording, Paused:
	default:
		state := s.state
		s.mu.Unlock()
		return Result{}, &TransitionError{Op: "stop", State: state}
	}

	if s.state == Recording {
		s.closeInterval()
	}
	s.state = Stopped
	s.cancelTimer()

	stream := s.stream
	s.stream = nil
	chunks := s.chunks
	s.chunks = nil
	format := s.format
	duration := s.accumulated
	finalizer := s.finalizer
	callbacks := s.takeCallbacks()
	s.mu.Unlock()

	s.closeStream(stream)

	size := 0
	for _, c := range chunks {
		size += len(c)
	}
	data := make([]byte, 0, size)
	for _, c := range chunks {
		data = append(data, c...)
	}

	if finalizer != nil {
		finished, err := finalizer(format, data)
		if err != nil {
			result := Result{Duration: duration, Recorded: true}
			notify(callbacks, result)
			return result, fmt.Errorf("failed to finalize recording: %w", err)
		}
		data = finished
	}

	result := Result{Audio: data, Duration: duration, Recorded: true}
	s.log.Info("Recording stopped: %d chunks, %d bytes, %v", len(chunks), len(data), duration)
	notify(callbacks, result)
	return result, nil
}

// Discard abandons the recording and releases the device
func (s *Session) Discard() error {
	s.mu.Lock()
	if s.state.Terminal() {
		state := s.state
		s.mu.Unlock()
		return &TransitionError{Op: "discard", State: state}
	}

	if s.state == Recording {
		s.closeInterval()
	}
	s.state = Discarded
	s.cancelTimer()
	stream := s.stream
	s.stream = nil
	s.chunks = nil
	callbacks := s.takeCallbacks()
	s.mu.Unlock()

	s.closeStream(stream)
	s.log.Info("Recording discarded")
	notify(callbacks, Result{})
	return nil
}

// SampleLevel returns the peak amplitude of the most recent analysis window
// normalized to [0, 1]; 0 when not Recording.
func (s *Session) SampleLevel() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.levelLocked()
}

func (s *Session) levelLocked() float64 {
	if s.state != Recording {
		return 0
	}

	var peak int32
	for _, v := range s.level[:s.levelFill] {
		a := int32(v)
		if a < 0 {
			a = -a
		}
		if a > peak {
			peak = a
		}
	}
	return float64(peak) / 32768
}

// SampleDuration returns accumulated recording time including the interval
// in progress
func (s *Session) SampleDuration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.durationLocked()
}

func (s *Session) durationLocked() time.Duration {
	d := s.accumulated
	if s.state == Recording {
		if elapsed := s.now().Sub(s.intervalStart); elapsed > 0 {
			d += elapsed
		}
	}
	return d
}

// Monitor calls fn once per interval while the session is Recording. The
// state is checked before every call and Monitor returns as soon as it has
// left Recording, or with ctx.Err() when ctx is done. It runs on the
// caller's goroutine.
func (s *Session) Monitor(ctx context.Context, interval time.Duration, fn func(Sample)) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		s.mu.Lock()
		if s.state != Recording {
			s.mu.Unlock()
			return nil
		}
		sample := Sample{
			State:    s.state,
			Level:    s.levelLocked(),
			Duration: s.durationLocked(),
		}
		s.mu.Unlock()

		fn(sample)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// appendChunk is the stream's chunk sink
func (s *Session) appendChunk(chunk []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == Recording && len(chunk) > 0 {
		s.chunks = append(s.chunks, chunk)
	}
}

// meter copies frames into the level ring in place
func (s *Session) meter(frames []int16) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Recording || len(s.level) == 0 {
		return
	}

	if len(frames) >= len(s.level) {
		copy(s.level, frames[len(frames)-len(s.level):])
		s.levelPos = 0
		s.levelFill = len(s.level)
		return
	}

	for _, v := range frames {
		s.level[s.levelPos] = v
		s.levelPos = (s.levelPos + 1) % len(s.level)
	}
	s.levelFill = min(s.levelFill+len(frames), len(s.level))
}

// cancelTimer stops the max-duration timer and retires its generation.
// Caller holds s.mu.
func (s *Session) cancelTimer() {
	s.timerGen++
	if s.stopTimer != nil {
		s.stopTimer.Stop()
		s.stopTimer = nil
	}
}

// takeCallbacks hands out the finish callbacks exactly once. Caller holds s.mu.
func (s *Session) takeCallbacks() []func(Result) {
	callbacks := s.onFinish
	s.onFinish = nil
	return callbacks
}

func (s *Session) closeStream(stream audio.Stream) {
	if stream == nil {
		return
	}
	if err := stream.Close(); err != nil {
		s.log.Error("Failed to release capture device: %v", err)
	}
}

func notify(callbacks []func(Result), result Result) {
	for _, fn := range callbacks {
		fn(result)
	}
}
