package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config captures the full runtime configuration for the clipflow bot.
type Config struct {
	App       AppConfig
	Discord   DiscordConfig
	Backend   BackendConfig
	Pipeline  PipelineConfig
	Normalize NormalizeConfig
	HTTP      HTTPConfig
	Kafka     KafkaConfig
	Storage   StorageConfig
	Tracing   TracingConfig
}

type AppConfig struct {
	Name        string `env:"APP_NAME" envDefault:"clipflow"`
	Environment string `env:"APP_ENV" envDefault:"development"`
	Version     string `env:"APP_VERSION" envDefault:"0.1.0"`
	LogLevel    string `env:"APP_LOG_LEVEL" envDefault:"info"`
}

type DiscordConfig struct {
	Token      string   `env:"DISCORD_BOT_TOKEN" validate:"required"`
	ChannelIDs []string `env:"DISCORD_CHANNEL_IDS" envSeparator:"," validate:"min=1,dive,required"`
	Status     string   `env:"DISCORD_STATUS" envDefault:"Fetching your clips..."`
	QueueSize  int      `env:"DISCORD_QUEUE_SIZE" envDefault:"64" validate:"gte=0"`
}

type BackendConfig struct {
	URL           string        `env:"BACKEND_URL" validate:"required,url"`
	Username      string        `env:"BACKEND_USERNAME" validate:"required"`
	Password      string        `env:"BACKEND_PASSWORD" validate:"required"`
	RefreshPeriod time.Duration `env:"BACKEND_REFRESH_PERIOD" envDefault:"170m" validate:"gt=0"`
	RefreshTick   time.Duration `env:"BACKEND_REFRESH_TICK" envDefault:"1s" validate:"gt=0"`
	LoginTimeout  time.Duration `env:"BACKEND_LOGIN_TIMEOUT" envDefault:"30s" validate:"gt=0"`
	UploadTimeout time.Duration `env:"BACKEND_UPLOAD_TIMEOUT" envDefault:"10m" validate:"gt=0"`
	MaxErrorBody  int64         `env:"BACKEND_MAX_ERROR_BODY" envDefault:"4096"`
}

type PipelineConfig struct {
	WorkDir         string        `env:"PIPELINE_WORK_DIR" envDefault:"downloads" validate:"required"`
	RateLimitBytes  int64         `env:"PIPELINE_RATE_LIMIT_BYTES" envDefault:"20971520" validate:"gt=0"`
	MediaHosts      []string      `env:"PIPELINE_MEDIA_HOSTS" envSeparator:"," envDefault:"youtube.com,youtu.be,twitch.tv,streamable.com" validate:"min=1"`
	CDNHosts        []string      `env:"PIPELINE_CDN_HOSTS" envSeparator:"," envDefault:"cdn.discordapp.com,media.discordapp.net" validate:"min=1"`
	Extensions      []string      `env:"PIPELINE_EXTENSIONS" envSeparator:"," envDefault:".mp4,.mov,.webm,.mkv" validate:"min=1"`
	YtDLPPath       string        `env:"PIPELINE_YTDLP_PATH" envDefault:"yt-dlp"`
	DownloadTimeout time.Duration `env:"PIPELINE_DOWNLOAD_TIMEOUT" envDefault:"10m" validate:"gt=0"`
}

type NormalizeConfig struct {
	Enabled    bool          `env:"NORMALIZE_ENABLED" envDefault:"true"`
	FfmpegPath string        `env:"NORMALIZE_FFMPEG_PATH" envDefault:"ffmpeg"`
	VideoCodec string        `env:"NORMALIZE_VIDEO_CODEC" envDefault:"libx264"`
	AudioCodec string        `env:"NORMALIZE_AUDIO_CODEC" envDefault:"aac"`
	Preset     string        `env:"NORMALIZE_PRESET" envDefault:"medium"`
	CRF        uint32        `env:"NORMALIZE_CRF" envDefault:"23" validate:"lte=51"`
	Timeout    time.Duration `env:"NORMALIZE_TIMEOUT" envDefault:"15m" validate:"gt=0"`
}

type HTTPConfig struct {
	Addr         string        `env:"HTTP_ADDR" envDefault:":8080"`
	ReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"60s"`
	IdleTimeout  time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
}

type KafkaConfig struct {
	Brokers          []string      `env:"KAFKA_BROKERS" envSeparator:","`
	OutcomeTopic     string        `env:"KAFKA_OUTCOME_TOPIC" envDefault:"clipflow.outcomes"`
	Retries          int           `env:"KAFKA_RETRIES" envDefault:"3"`
	CompressionCodec string        `env:"KAFKA_COMPRESSION_CODEC" envDefault:"snappy"`
	BatchSize        int           `env:"KAFKA_BATCH_SIZE" envDefault:"1"`
	BatchTimeout     time.Duration `env:"KAFKA_BATCH_TIMEOUT" envDefault:"1s"`
}

type StorageConfig struct {
	Provider  string `env:"STORAGE_PROVIDER"`
	Endpoint  string `env:"STORAGE_ENDPOINT" envDefault:"localhost:9000"`
	Region    string `env:"STORAGE_REGION" envDefault:"us-east-1"`
	Bucket    string `env:"STORAGE_BUCKET" envDefault:"clipflow-archive"`
	AccessKey string `env:"STORAGE_ACCESS_KEY" envDefault:"minioadmin"`
	SecretKey string `env:"STORAGE_SECRET_KEY" envDefault:"minioadmin"`
	UseSSL    bool   `env:"STORAGE_USE_SSL" envDefault:"false"`
}

type TracingConfig struct {
	Endpoint     string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	Insecure     bool    `env:"OTEL_EXPORTER_OTLP_INSECURE" envDefault:"true"`
	SampleRatio  float64 `env:"OTEL_TRACES_SAMPLER_RATIO" envDefault:"1.0"`
	ResourceAttr string  `env:"OTEL_RESOURCE_ATTRIBUTES" envDefault:"service.namespace=clipflow"`
}

// Load reads an optional .env file, parses environment variables into
// Config and validates the result.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}
