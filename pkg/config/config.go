package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// Config captures the full runtime configuration for the moderation service.
type Config struct {
	App        AppConfig
	HTTP       HTTPConfig
	Kafka      KafkaConfig
	Storage    StorageConfig
	AWS        AWSConfig
	Moderation ModerationConfig
	Tracing    TracingConfig
	Upload     UploadConfig
}

type AppConfig struct {
	Name        string `env:"APP_NAME" envDefault:"modflow-moderation"`
	Environment string `env:"APP_ENV" envDefault:"development"`
	Version     string `env:"APP_VERSION" envDefault:"0.1.0"`
	LogLevel    string `env:"APP_LOG_LEVEL" envDefault:"info"`
}

type HTTPConfig struct {
	Addr        string        `env:"HTTP_ADDR" envDefault:":8080"`
	ReadTimeout time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"15m"`
	// A session blocks until the remote job finishes; the write timeout has
	// to outlast the longest acceptable session.
	WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"45m"`
	IdleTimeout  time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
}

type KafkaConfig struct {
	Brokers          []string      `env:"KAFKA_BROKERS" envSeparator:"," envDefault:"localhost:9092"`
	ResultsTopic     string        `env:"KAFKA_RESULTS_TOPIC" envDefault:"modflow.moderation.results"`
	Retries          int           `env:"KAFKA_RETRIES" envDefault:"3"`
	RetryBackoff     time.Duration `env:"KAFKA_RETRY_BACKOFF" envDefault:"500ms"`
	CompressionCodec string        `env:"KAFKA_COMPRESSION_CODEC" envDefault:"snappy"`
	BatchSize        int           `env:"KAFKA_BATCH_SIZE" envDefault:"100"`
	BatchTimeout     time.Duration `env:"KAFKA_BATCH_TIMEOUT" envDefault:"1s"`
}

type StorageConfig struct {
	Provider  string `env:"STORAGE_PROVIDER" envDefault:"s3"`
	Endpoint  string `env:"STORAGE_ENDPOINT" envDefault:""`
	Region    string `env:"STORAGE_REGION" envDefault:"eu-central-1"`
	AccessKey string `env:"STORAGE_ACCESS_KEY" envDefault:""`
	SecretKey string `env:"STORAGE_SECRET_KEY" envDefault:""`
	UseSSL    bool   `env:"STORAGE_USE_SSL" envDefault:"true"`
}

// AWSConfig configures the SNS/SQS/IAM/Rekognition clients. Credentials are
// explicit config rather than ambient process environment so parallel
// sessions can carry different credentials.
type AWSConfig struct {
	Region    string `env:"AWS_REGION" envDefault:"eu-central-1"`
	AccessKey string `env:"AWS_ACCESS_KEY_ID" envDefault:""`
	SecretKey string `env:"AWS_SECRET_ACCESS_KEY" envDefault:""`
	Endpoint  string `env:"AWS_ENDPOINT_URL" envDefault:""`
}

type ModerationConfig struct {
	MinConfidence float32       `env:"MODERATION_MIN_CONFIDENCE" envDefault:"80"`
	PollInterval  time.Duration `env:"MODERATION_POLL_INTERVAL" envDefault:"10s"`
	// AwaitTimeout bounds the wait for a completion notification; zero means
	// poll until the job reports terminal.
	AwaitTimeout     time.Duration `env:"MODERATION_AWAIT_TIMEOUT" envDefault:"30m"`
	ChannelPrefix    string        `env:"MODERATION_CHANNEL_PREFIX" envDefault:"modflow-moderation"`
	StagingPrefix    string        `env:"MODERATION_STAGING_PREFIX" envDefault:"modflow-staging"`
	PublisherService string        `env:"MODERATION_PUBLISHER_SERVICE" envDefault:"rekognition.amazonaws.com"`
}

type TracingConfig struct {
	Endpoint     string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4317"`
	Insecure     bool    `env:"OTEL_EXPORTER_OTLP_INSECURE" envDefault:"true"`
	SampleRatio  float64 `env:"OTEL_TRACES_SAMPLER_RATIO" envDefault:"1.0"`
	ResourceAttr string  `env:"OTEL_RESOURCE_ATTRIBUTES" envDefault:"service.namespace=modflow"`
}

type UploadConfig struct {
	MaxSizeBytes      int64 `env:"UPLOAD_MAX_SIZE_BYTES" envDefault:"10737418240"`
	MultipartMemBytes int64 `env:"UPLOAD_MULTIPART_MEM_BYTES" envDefault:"52428800"`
}

// Load parses environment variables into Config.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
