package audio

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gordonklaus/portaudio"
)

// PortAudioDriver implements CaptureDevice and Lister using PortAudio.
// At most one stream can be held at a time.
type PortAudioDriver struct {
	config      Config
	mu          sync.Mutex
	active      *portAudioStream
	initialized bool
}

// NewPortAudioDriver creates a new PortAudio driver
func NewPortAudioDriver() (*PortAudioDriver, error) {
	// Initialize PortAudio
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("%w: failed to initialize PortAudio: %w", ErrCaptureUnavailable, err)
	}

	return &PortAudioDriver{config: DefaultConfig()}, nil
}

// ListDevices returns a list of available audio input devices
func (d *PortAudioDriver) ListDevices() ([]Device, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}

	defaultInput, err := portaudio.DefaultInputDevice()
	if err != nil {
		// If we can't get the default device, continue without marking any as default
		defaultInput = nil
	}

	var result []Device
	for i, dev := range devices {
		// Only include devices with input channels
		if dev.MaxInputChannels <= 0 {
			continue
		}

		result = append(result, Device{
			ID:                i,
			Name:              dev.Name,
			IsDefault:         defaultInput != nil && dev.Name == defaultInput.Name,
			MaxInputChannels:  dev.MaxInputChannels,
			DefaultSampleRate: dev.DefaultSampleRate,
		})
	}

	return result, nil
}

// Initialize stores the configuration used by subsequent Acquire calls
func (d *PortAudioDriver) Initialize(config Config) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.active != nil {
		return fmt.Errorf("cannot initialize while a stream is held")
	}

	if config.SampleRate <= 0 {
		return fmt.Errorf("invalid sample rate: %d", config.SampleRate)
	}
	if config.Channels <= 0 {
		return fmt.Errorf("invalid channel count: %d", config.Channels)
	}
	if config.FramesPerBuffer <= 0 {
		config.FramesPerBuffer = DefaultConfig().FramesPerBuffer
	}

	d.config = config
	d.initialized = true
	return nil
}

// resolveDevice looks up the configured input device
func resolveDevice(config Config) (*portaudio.DeviceInfo, error) {
	var device *portaudio.DeviceInfo

	if config.DeviceID == -1 {
		dev, err := portaudio.DefaultInputDevice()
		if err != nil {
			return nil, fmt.Errorf("failed to get default input device: %w", err)
		}
		device = dev
	} else {
		devices, err := portaudio.Devices()
		if err != nil {
			return nil, fmt.Errorf("failed to list devices: %w", err)
		}

		if config.DeviceID < 0 || config.DeviceID >= len(devices) {
			return nil, fmt.Errorf("invalid device ID: %d", config.DeviceID)
		}

		device = devices[config.DeviceID]
	}

	// Validate device has input channels
	if device.MaxInputChannels <= 0 {
		return nil, fmt.Errorf("selected device '%s' (ID: %d) has no input channels (output-only device)",
			device.Name, config.DeviceID)
	}
	if device.MaxInputChannels < config.Channels {
		return nil, fmt.Errorf("selected device '%s' supports %d input channels, %d requested",
			device.Name, device.MaxInputChannels, config.Channels)
	}

	return device, nil
}

// Acquire opens an input stream on the configured device
func (d *PortAudioDriver) Acquire(sink Sink) (Stream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.initialized {
		return nil, fmt.Errorf("%w: driver not initialized", ErrCaptureUnavailable)
	}

	if d.active != nil {
		return nil, fmt.Errorf("%w: device already in use", ErrCaptureUnavailable)
	}

	device, err := resolveDevice(d.config)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCaptureUnavailable, err)
	}

	// Set latency
	var latency time.Duration
	switch d.config.Latency {
	case LowLatency:
		latency = device.DefaultLowInputLatency
	default:
		latency = device.DefaultHighInputLatency
	}

	s := &portAudioStream{
		driver: d,
		sink:   sink,
		format: Format{SampleRate: d.config.SampleRate, Channels: d.config.Channels},
	}

	streamParams := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   device,
			Channels: d.config.Channels,
			Latency:  latency,
		},
		SampleRate:      float64(d.config.SampleRate),
		FramesPerBuffer: d.config.FramesPerBuffer,
	}

	stream, err := portaudio.OpenStream(streamParams, s.callback)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open stream: %w", ErrCaptureUnavailable, err)
	}

	s.stream = stream
	d.active = s
	return s, nil
}

// release drops the driver's reference to s
func (d *PortAudioDriver) release(s *portAudioStream) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.active == s {
		d.active = nil
	}
}

// InUse reports whether a stream is currently held
func (d *PortAudioDriver) InUse() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.active != nil
}

// Close releases all resources
func (d *PortAudioDriver) Close() error {
	d.mu.Lock()
	active := d.active
	d.mu.Unlock()

	if active != nil {
		if err := active.Close(); err != nil {
			return err
		}
	}

	// Terminate PortAudio
	if err := portaudio.Terminate(); err != nil {
		return fmt.Errorf("failed to terminate PortAudio: %w", err)
	}

	d.mu.Lock()
	d.initialized = false
	d.mu.Unlock()
	return nil
}

// portAudioStream is one acquired PortAudio input stream
type portAudioStream struct {
	driver  *PortAudioDriver
	stream  *portaudio.Stream
	format  Format
	sink    Sink
	mu      sync.Mutex
	running atomic.Bool
	closed  bool
}

// callback is called by PortAudio when audio data is available.
// Stop waits for a running callback, so nothing here may take s.mu.
func (s *portAudioStream) callback(in []int16) {
	if !s.running.Load() {
		return
	}

	if s.sink.OnChunk != nil {
		s.sink.OnChunk(PCM16Bytes(in))
	}
	if s.sink.OnFrames != nil {
		s.sink.OnFrames(in)
	}
}

func (s *portAudioStream) Format() Format {
	return s.format
}

func (s *portAudioStream) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("stream closed")
	}

	s.running.Store(true)
	if err := s.stream.Start(); err != nil {
		s.running.Store(false)
		return fmt.Errorf("failed to start stream: %w", err)
	}
	return nil
}

func (s *portAudioStream) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("stream closed")
	}

	s.running.Store(false)
	if err := s.stream.Stop(); err != nil {
		return fmt.Errorf("failed to stop stream: %w", err)
	}
	return nil
}

func (s *portAudioStream) Resume() error {
	return s.Start()
}

func (s *portAudioStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	defer s.driver.release(s)

	if s.running.Swap(false) {
		if err := s.stream.Stop(); err != nil {
			s.stream.Close()
			return fmt.Errorf("failed to stop stream: %w", err)
		}
	}

	if err := s.stream.Close(); err != nil {
		return fmt.Errorf("failed to close stream: %w", err)
	}
	return nil
}
