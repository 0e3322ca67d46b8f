package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/renameio/v2"

	"github.com/yok-tottii/voicememo/internal/audio"
	"github.com/yok-tottii/voicememo/internal/logger"
	"github.com/yok-tottii/voicememo/internal/recording"
)

// Config holds application configuration
type Config struct {
	AudioDeviceID   int    `json:"audio_device_id"`
	SampleRate      int    `json:"sample_rate"`
	Channels        int    `json:"channels"`
	Latency         string `json:"latency"` // "low" or "high"
	FramesPerBuffer int    `json:"frames_per_buffer"`
	MaxRecordTime   int    `json:"max_record_time"` // seconds, 0 = unlimited
	LevelWindow     int    `json:"level_window"`    // samples
	PollIntervalMS  int    `json:"poll_interval_ms"`
	OutputDir       string `json:"output_dir"`
	LogLevel        string `json:"log_level"`
	ServerPort      int    `json:"server_port"`
	mu              sync.RWMutex
}

// Limits enforced by Validate
const (
	MaxRecordTimeLimit = 3600
	maxLevelWindow     = 1 << 16
)

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		AudioDeviceID:   -1, // -1 means use system default device
		SampleRate:      44100,
		Channels:        1,
		Latency:         "high",
		FramesPerBuffer: 1024,
		MaxRecordTime:   600, // 10 minutes
		LevelWindow:     2048,
		PollIntervalMS:  50,
		OutputDir:       "~/voicememo",
		LogLevel:        "info",
		ServerPort:      18765,
	}
}

// Load loads configuration from the specified path
func Load(path string) (*Config, error) {
	// If file doesn't exist, return default config
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Fields missing from the file keep their defaults
	config := DefaultConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// Save saves configuration to the specified path
func (c *Config) Save(path string) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := renameio.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir, _ = os.UserHomeDir()
	}
	return filepath.Join(dir, "voicememo", "config.json")
}

// Update applies a partial update decoded from JSON. Numbers arrive as
// float64. The config is left unchanged if any value is invalid.
func (c *Config) Update(updates map[string]interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := c.cloneLocked()
	for key, value := range updates {
		switch key {
		case "audio_device_id":
			v, ok := value.(float64)
			if !ok {
				return fmt.Errorf("invalid audio_device_id: %v", value)
			}
			next.AudioDeviceID = int(v)
		case "sample_rate":
			v, ok := value.(float64)
			if !ok {
				return fmt.Errorf("invalid sample_rate: %v", value)
			}
			next.SampleRate = int(v)
		case "channels":
			v, ok := value.(float64)
			if !ok {
				return fmt.Errorf("invalid channels: %v", value)
			}
			next.Channels = int(v)
		case "latency":
			v, ok := value.(string)
			if !ok {
				return fmt.Errorf("invalid latency: %v", value)
			}
			next.Latency = v
		case "frames_per_buffer":
			v, ok := value.(float64)
			if !ok {
				return fmt.Errorf("invalid frames_per_buffer: %v", value)
			}
			next.FramesPerBuffer = int(v)
		case "max_record_time":
			v, ok := value.(float64)
			if !ok {
				return fmt.Errorf("invalid max_record_time: %v", value)
			}
			next.MaxRecordTime = int(v)
		case "level_window":
			v, ok := value.(float64)
			if !ok {
				return fmt.Errorf("invalid level_window: %v", value)
			}
			next.LevelWindow = int(v)
		case "poll_interval_ms":
			v, ok := value.(float64)
			if !ok {
				return fmt.Errorf("invalid poll_interval_ms: %v", value)
			}
			next.PollIntervalMS = int(v)
		case "output_dir":
			v, ok := value.(string)
			if !ok {
				return fmt.Errorf("invalid output_dir: %v", value)
			}
			next.OutputDir = v
		case "log_level":
			v, ok := value.(string)
			if !ok {
				return fmt.Errorf("invalid log_level: %v", value)
			}
			next.LogLevel = v
		case "server_port":
			v, ok := value.(float64)
			if !ok {
				return fmt.Errorf("invalid server_port: %v", value)
			}
			next.ServerPort = int(v)
		default:
			return fmt.Errorf("unknown setting: %s", key)
		}
	}

	if err := next.validateLocked(); err != nil {
		return err
	}

	c.AudioDeviceID = next.AudioDeviceID
	c.SampleRate = next.SampleRate
	c.Channels = next.Channels
	c.Latency = next.Latency
	c.FramesPerBuffer = next.FramesPerBuffer
	c.MaxRecordTime = next.MaxRecordTime
	c.LevelWindow = next.LevelWindow
	c.PollIntervalMS = next.PollIntervalMS
	c.OutputDir = next.OutputDir
	c.LogLevel = next.LogLevel
	c.ServerPort = next.ServerPort
	return nil
}

// Clone creates a deep copy of the configuration
func (c *Config) Clone() *Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cloneLocked()
}

func (c *Config) cloneLocked() *Config {
	return &Config{
		AudioDeviceID:   c.AudioDeviceID,
		SampleRate:      c.SampleRate,
		Channels:        c.Channels,
		Latency:         c.Latency,
		FramesPerBuffer: c.FramesPerBuffer,
		MaxRecordTime:   c.MaxRecordTime,
		LevelWindow:     c.LevelWindow,
		PollIntervalMS:  c.PollIntervalMS,
		OutputDir:       c.OutputDir,
		LogLevel:        c.LogLevel,
		ServerPort:      c.ServerPort,
	}
}

// ExpandPath expands ~ to home directory in file paths
func ExpandPath(path string) (string, error) {
	if path == "" {
		return "", nil
	}

	if path == "~" || strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		return filepath.Join(homeDir, strings.TrimPrefix(path[1:], "/")), nil
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}

	return absPath, nil
}

// GetOutputDir returns the expanded recordings directory, creating it if needed
func (c *Config) GetOutputDir() (string, error) {
	c.mu.RLock()
	dir := c.OutputDir
	c.mu.RUnlock()

	if dir == "" {
		dir = "."
	}
	expanded, err := ExpandPath(dir)
	if err != nil {
		return "", fmt.Errorf("failed to expand output dir: %w", err)
	}

	info, err := os.Stat(expanded)
	switch {
	case os.IsNotExist(err):
		if err := os.MkdirAll(expanded, 0755); err != nil {
			return "", fmt.Errorf("failed to create output dir: %w", err)
		}
	case err != nil:
		return "", fmt.Errorf("failed to check output dir: %w", err)
	case !info.IsDir():
		return "", fmt.Errorf("output path is a file, not a directory: %s", expanded)
	}

	return expanded, nil
}

// Validate validates all configuration fields
func (c *Config) Validate() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.validateLocked()
}

func (c *Config) validateLocked() error {
	if c.AudioDeviceID < -1 {
		return fmt.Errorf("invalid audio_device_id: %d (must be -1 for default or a device index)", c.AudioDeviceID)
	}

	if c.SampleRate < 8000 || c.SampleRate > 192000 {
		return fmt.Errorf("invalid sample_rate: %d (must be between 8000 and 192000)", c.SampleRate)
	}

	if c.Channels != 1 && c.Channels != 2 {
		return fmt.Errorf("invalid channels: %d (must be 1 or 2)", c.Channels)
	}

	if _, err := parseLatency(c.Latency); err != nil {
		return err
	}

	if c.FramesPerBuffer <= 0 || c.FramesPerBuffer > 8192 {
		return fmt.Errorf("invalid frames_per_buffer: %d (must be between 1 and 8192)", c.FramesPerBuffer)
	}

	if c.MaxRecordTime < 0 || c.MaxRecordTime > MaxRecordTimeLimit {
		return fmt.Errorf("invalid max_record_time: %d (must be between 0 and %d seconds)", c.MaxRecordTime, MaxRecordTimeLimit)
	}

	if c.LevelWindow <= 0 || c.LevelWindow > maxLevelWindow {
		return fmt.Errorf("invalid level_window: %d (must be between 1 and %d samples)", c.LevelWindow, maxLevelWindow)
	}

	if c.PollIntervalMS < 10 || c.PollIntervalMS > 1000 {
		return fmt.Errorf("invalid poll_interval_ms: %d (must be between 10 and 1000)", c.PollIntervalMS)
	}

	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log_level: %w", err)
	}

	if c.ServerPort < 0 || c.ServerPort > 65535 {
		return fmt.Errorf("invalid server_port: %d", c.ServerPort)
	}

	return nil
}

func parseLatency(s string) (audio.LatencyMode, error) {
	switch s {
	case "low":
		return audio.LowLatency, nil
	case "high", "":
		return audio.HighStability, nil
	default:
		return audio.HighStability, fmt.Errorf("invalid latency: %s (must be 'low' or 'high')", s)
	}
}

// AudioConfig returns the capture settings
func (c *Config) AudioConfig() audio.Config {
	c.mu.RLock()
	defer c.mu.RUnlock()

	latency, _ := parseLatency(c.Latency)
	return audio.Config{
		DeviceID:        c.AudioDeviceID,
		SampleRate:      c.SampleRate,
		Channels:        c.Channels,
		FramesPerBuffer: c.FramesPerBuffer,
		Latency:         latency,
	}
}

// RecordingConfig returns the session settings
func (c *Config) RecordingConfig() recording.Config {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return recording.Config{
		MaxDuration: time.Duration(c.MaxRecordTime) * time.Second,
		LevelWindow: c.LevelWindow,
	}
}

// PollInterval returns how often level and duration are sampled
func (c *Config) PollInterval() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

// Level returns the configured log level, INFO when unparsable
func (c *Config) Level() logger.Level {
	c.mu.RLock()
	defer c.mu.RUnlock()
	level, _ := logger.ParseLevel(c.LogLevel)
	return level
}
