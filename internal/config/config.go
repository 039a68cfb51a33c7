package config

import (
	"flag"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env        string     `yaml:"env" env:"ENV" env-default:"production"`
	HTTPServer HTTPServer `yaml:"http_server"`
	JWTSecret  string     `yaml:"jwt_secret" env:"JWT_SECRET" env-required:"true"`
	Log        Log        `yaml:"log"`
	Storage    Storage    `yaml:"storage"`
	Mongo      Mongo      `yaml:"mongodb"`
	PGSQL      PQSQL      `yaml:"pgsql"`
	Blob       Blob       `yaml:"blob"`
	MinIO      MinIO      `yaml:"minio"`
	S3         S3         `yaml:"s3"`
	Media      Media      `yaml:"media"`
	Redis      Redis      `yaml:"redis"`
	Cache      Cache      `yaml:"cache"`
	RateLimit  RateLimit  `yaml:"rate_limit"`
	Tasks      Tasks      `yaml:"tasks"`
	Kafka      Kafka      `yaml:"kafka"`
}

type HTTPServer struct {
	Address         string        `yaml:"address" env:"HTTP_ADDRESS" env-default:"localhost:8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env-default:"60s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env-default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env-default:"15s"`
}

type Log struct {
	Level string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
}

// Storage selects the catalog repository backend: mongo, postgres or memory.
type Storage struct {
	Backend string `yaml:"backend" env:"STORAGE_BACKEND" env-default:"mongo"`
}

type Mongo struct {
	URI      string `yaml:"uri" env:"MONGODB_URI" env-default:"mongodb://localhost:27017"`
	Database string `yaml:"database" env:"MONGODB_DATABASE" env-default:"catalog"`
}

type PQSQL struct {
	Host     string `yaml:"host" env-default:"localhost"`
	Port     string `yaml:"port" env-default:"5432"`
	User     string `yaml:"user" env-default:"postgres"`
	Password string `yaml:"password" env:"PGSQL_PASSWORD" env-default:"password"`
	DBName   string `yaml:"dbname" env-default:"catalog_db"`
	SSLMode  string `yaml:"sslmode" env-default:"disable"`
}

// Blob selects the external object store driver: minio or s3.
type Blob struct {
	Driver string `yaml:"driver" env:"BLOB_DRIVER" env-default:"minio"`
}

type MinIO struct {
	Endpoint        string `yaml:"endpoint" env:"MINIO_ENDPOINT" env-default:"localhost:9000"`
	AccessKeyID     string `yaml:"access_key_id" env:"MINIO_ACCESS_KEY"`
	SecretAccessKey string `yaml:"secret_access_key" env:"MINIO_SECRET_KEY"`
	BucketName      string `yaml:"bucket_name" env-default:"assets"`
	UseSSL          bool   `yaml:"use_ssl"`
}

type S3 struct {
	Region    string `yaml:"region" env:"AWS_REGION" env-default:"us-east-1"`
	Bucket    string `yaml:"bucket" env:"S3_BUCKET"`
	Endpoint  string `yaml:"endpoint" env:"S3_ENDPOINT"`
	PathStyle bool   `yaml:"path_style"`
}

type Media struct {
	MaxVideoSize       int64         `yaml:"max_video_size" env-default:"104857600"`
	MaxThumbnailSize   int64         `yaml:"max_thumbnail_size" env-default:"5242880"`
	AllowedVideoTypes  []string      `yaml:"allowed_video_types" env-default:"video/mp4,video/mpeg,video/webm,video/quicktime"`
	AllowedImageTypes  []string      `yaml:"allowed_image_types" env-default:"image/jpeg,image/png,image/webp"`
	ProbeTimeout       time.Duration `yaml:"probe_timeout" env-default:"30s"`
	CompensationBudget time.Duration `yaml:"compensation_budget" env-default:"30s"`
}

type Redis struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db"`
}

type Cache struct {
	ListTTL time.Duration `yaml:"list_ttl" env-default:"45s"`
}

type RateLimit struct {
	UploadsPerMinute   int64 `yaml:"uploads_per_minute" env-default:"20"`
	MutationsPerMinute int64 `yaml:"mutations_per_minute" env-default:"60"`
}

// Tasks selects how fire-and-forget side effects are executed: pool or kafka.
type Tasks struct {
	Driver    string `yaml:"driver" env:"TASKS_DRIVER" env-default:"pool"`
	Workers   int    `yaml:"workers" env-default:"4"`
	QueueSize int    `yaml:"queue_size" env-default:"1024"`
}

type Kafka struct {
	Brokers []string `yaml:"brokers" env:"KAFKA_BROKERS" env-default:"localhost:9092"`
	Topic   string   `yaml:"topic" env-default:"catalog.tasks"`
	GroupID string   `yaml:"group_id" env-default:"engagement-worker"`
}

// Development reports whether the logger and other helpers should run in
// their verbose local mode.
func (c *Config) Development() bool {
	return c.Env == "local" || c.Env == "dev" || c.Env == "development"
}

func MustLoad() *Config {
	var configPath string

	configPath = os.Getenv("CONFIG_PATH")

	if configPath == "" {
		flags := flag.String("config", "", "Path to config file")
		flag.Parse()
		configPath = *flags

		if configPath == "" {
			log.Fatal("config path must be provided")
		}
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Fatalf("config file does not exist at path: %s", configPath)
	}

	cfg, err := Load(configPath)
	if err != nil {
		log.Fatalf("failed to read config: %s", err)
	}

	return cfg
}

// Load reads the YAML file at path and applies env overrides and defaults.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
