package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

var singleConfig *Config = nil

type Config struct {
	Database *dbConfig
	Service  *svcConfig
}

type dbConfig struct {
	Type     string `envconfig:"DB_TYPE" default:"pgsql"`
	Hostname string `envconfig:"DB_HOST" default:"localhost"`
	Port     int    `envconfig:"DB_PORT" default:"5432"`
	Name     string `envconfig:"DB_NAME" default:"transcriber"`
	User     string `envconfig:"DB_USER" default:"admin"`
	Password string `envconfig:"DB_PASS" default:"adminpass"`
}

type svcConfig struct {
	Address         string `envconfig:"TRANSCRIBER_ADDRESS" default:":8080"`
	LogLevel        string `envconfig:"TRANSCRIBER_LOG_LEVEL" default:"info"`
	MigrationFolder string `envconfig:"TRANSCRIBER_MIGRATIONS_FOLDER" default:""`

	Redis   redisConfig
	Minio   minioConfig
	Kafka   kafkaConfig
	Worker  workerConfig
	Engines engineConfig
}

type redisConfig struct {
	Address  string        `envconfig:"TRANSCRIBER_REDIS_ADDRESS" default:"localhost:6379"`
	Password string        `envconfig:"TRANSCRIBER_REDIS_PASSWORD" default:""`
	DB       int           `envconfig:"TRANSCRIBER_REDIS_DB" default:"0"`
	JobTTL   time.Duration `envconfig:"TRANSCRIBER_REDIS_JOB_TTL" default:"1h"`
}

type minioConfig struct {
	Endpoint  string `envconfig:"TRANSCRIBER_MINIO_ENDPOINT" default:"localhost:9000"`
	Bucket    string `envconfig:"TRANSCRIBER_MINIO_BUCKET" default:"audio-uploads"`
	AccessKey string `envconfig:"TRANSCRIBER_MINIO_ACCESS_KEY" default:""`
	SecretKey string `envconfig:"TRANSCRIBER_MINIO_SECRET_KEY" default:""`
	UseSSL    bool   `envconfig:"TRANSCRIBER_MINIO_USE_SSL" default:"false"`
}

type kafkaConfig struct {
	Brokers       []string `envconfig:"TRANSCRIBER_KAFKA_BROKERS" default:""`
	ResultsTopic  string   `envconfig:"TRANSCRIBER_KAFKA_RESULTS_TOPIC" default:"transcription.results"`
	StatusTopic   string   `envconfig:"TRANSCRIBER_KAFKA_STATUS_TOPIC" default:"transcription.status"`
	ClientID      string   `envconfig:"TRANSCRIBER_KAFKA_CLIENT_ID" default:"transcriber"`
	ConsumerGroup string   `envconfig:"TRANSCRIBER_KAFKA_CONSUMER_GROUP" default:"transcriber-results"`
}

type workerConfig struct {
	MaxWorkers         int           `envconfig:"TRANSCRIBER_WORKER_MAX_WORKERS" default:"10"`
	JobTimeout         time.Duration `envconfig:"TRANSCRIBER_WORKER_JOB_TIMEOUT" default:"1h"`
	MaxRetries         int           `envconfig:"TRANSCRIBER_WORKER_MAX_RETRIES" default:"3"`
	DownloadRetries    int           `envconfig:"TRANSCRIBER_WORKER_DOWNLOAD_RETRIES" default:"10"`
	DownloadRetryDelay time.Duration `envconfig:"TRANSCRIBER_WORKER_DOWNLOAD_RETRY_DELAY" default:"2s"`
	RetentionAge       time.Duration `envconfig:"TRANSCRIBER_WORKER_RETENTION_AGE" default:"720h"`
	MaxUploadBytes     int64         `envconfig:"TRANSCRIBER_MAX_UPLOAD_BYTES" default:"524288000"`
}

type engineConfig struct {
	SpeechURL       string        `envconfig:"TRANSCRIBER_SPEECH_URL" default:"http://localhost:50051"`
	SpeechTimeout   time.Duration `envconfig:"TRANSCRIBER_SPEECH_TIMEOUT" default:"5m"`
	WhisperXURL     string        `envconfig:"TRANSCRIBER_WHISPERX_URL" default:"http://localhost:9090"`
	WhisperXTimeout time.Duration `envconfig:"TRANSCRIBER_WHISPERX_TIMEOUT" default:"5m"`
	WhisperXModels  string        `envconfig:"TRANSCRIBER_WHISPERX_MODELS" default:"tiny,base,small,medium,large-v2,large-v3"`
	DefaultLanguage string        `envconfig:"TRANSCRIBER_DEFAULT_LANGUAGE" default:"en-US"`
	FFmpegPath      string        `envconfig:"TRANSCRIBER_FFMPEG_PATH" default:"ffmpeg"`
}

func New() (*Config, error) {
	if singleConfig == nil {
		singleConfig = new(Config)
		if err := envconfig.Process("", singleConfig); err != nil {
			return nil, err
		}
	}
	return singleConfig, nil
}

// NewDefault returns a config backed by an in-memory SQLite database.
// Used by package test suites that need a store without a live Postgres.
func NewDefault() *Config {
	cfg := new(Config)
	if err := envconfig.Process("", cfg); err != nil {
		panic(err)
	}
	cfg.Database.Type = "sqlite"
	cfg.Database.Name = "file::memory:?cache=shared"
	return cfg
}
