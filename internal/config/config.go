// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type HTTPConfig struct {
	Port              int           `yaml:"port"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
	RequestTimeout    time.Duration `yaml:"request_timeout"`
	MaxUploadMB       int64         `yaml:"max_upload_mb"`
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
	Channel  string        `yaml:"channel"` // progress event fan-out channel
}

// Enabled reports whether a Redis endpoint is configured.
func (c RedisConfig) Enabled() bool { return c.URL != "" }

type EncoderConfig struct {
	FFmpegPath  string   `yaml:"ffmpeg_path"`
	FFprobePath string   `yaml:"ffprobe_path"`
	VideoCodec  string   `yaml:"video_codec"`
	AudioCodec  string   `yaml:"audio_codec"`
	Strict      string   `yaml:"strict"`
	Threads     int      `yaml:"threads"` // 0 lets ffmpeg decide
	ExtraArgs   []string `yaml:"extra_args"`
}

type StorageConfig struct {
	UploadDir  string `yaml:"upload_dir"`
	OutputDir  string `yaml:"output_dir"`
	ArchiveDir string `yaml:"archive_dir"`
}

type WorkerConfig struct {
	Concurrency        int           `yaml:"concurrency"`
	QueueSize          int           `yaml:"queue_size"`
	RequeueInterval    time.Duration `yaml:"requeue_interval"`
	FinalizeRetryDelay time.Duration `yaml:"finalize_retry_delay"`
	LockTTL            time.Duration `yaml:"lock_ttl"`
}

type HubConfig struct {
	WriteTimeout time.Duration `yaml:"write_timeout"`
	PingInterval time.Duration `yaml:"ping_interval"`
}

type Config struct {
	Log      LogConfig      `yaml:"log"`
	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Encoder  EncoderConfig  `yaml:"encoder"`
	Storage  StorageConfig  `yaml:"storage"`
	Worker   WorkerConfig   `yaml:"worker"`
	Hub      HubConfig      `yaml:"hub"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the YAML file at path, expands ${ENV} references, applies
// defaults and validates the result.
func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b, dev)
}

// Parse decodes raw YAML; it is split from LoadConfig for tests.
func Parse(raw []byte, dev bool) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(raw))), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.Runtime.Dev = dev
	applyDefaults(&cfg)

	if cfg.Database.URL == "" && !dev {
		return nil, errors.New("database.url is required (or run with --dev)")
	}
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return nil, fmt.Errorf("http.port %d out of range", cfg.HTTP.Port)
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 8000
	}
	if cfg.HTTP.ReadHeaderTimeout <= 0 {
		cfg.HTTP.ReadHeaderTimeout = 10 * time.Second
	}
	if cfg.HTTP.RequestTimeout <= 0 {
		cfg.HTTP.RequestTimeout = 30 * time.Second
	}
	if cfg.HTTP.MaxUploadMB <= 0 {
		cfg.HTTP.MaxUploadMB = 2048
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL)
	if cfg.Redis.Channel == "" {
		cfg.Redis.Channel = "transcode:progress"
	}

	if cfg.Encoder.FFmpegPath == "" {
		cfg.Encoder.FFmpegPath = "ffmpeg"
	}
	if cfg.Encoder.FFprobePath == "" {
		cfg.Encoder.FFprobePath = "ffprobe"
	}
	if cfg.Encoder.VideoCodec == "" {
		cfg.Encoder.VideoCodec = "libx264"
	}
	if cfg.Encoder.AudioCodec == "" {
		cfg.Encoder.AudioCodec = "aac"
	}
	if cfg.Encoder.Strict == "" {
		cfg.Encoder.Strict = "experimental"
	}

	if cfg.Storage.UploadDir == "" {
		cfg.Storage.UploadDir = "uploads"
	}
	if cfg.Storage.OutputDir == "" {
		cfg.Storage.OutputDir = "outputs"
	}
	if cfg.Storage.ArchiveDir == "" {
		cfg.Storage.ArchiveDir = "zips"
	}

	if cfg.Worker.Concurrency <= 0 {
		cfg.Worker.Concurrency = 2
	}
	if cfg.Worker.QueueSize <= 0 {
		cfg.Worker.QueueSize = cfg.Worker.Concurrency * 32
	}
	if cfg.Worker.RequeueInterval <= 0 {
		cfg.Worker.RequeueInterval = time.Minute
	}
	if cfg.Worker.FinalizeRetryDelay <= 0 {
		cfg.Worker.FinalizeRetryDelay = 500 * time.Millisecond
	}
	if cfg.Worker.LockTTL <= 0 {
		cfg.Worker.LockTTL = 6 * time.Hour
	}

	if cfg.Hub.WriteTimeout <= 0 {
		cfg.Hub.WriteTimeout = 5 * time.Second
	}
	if cfg.Hub.PingInterval <= 0 {
		cfg.Hub.PingInterval = 30 * time.Second
	}
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Hour
	}
	return d
}
