package config

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	BackendLocal  = "local"
	BackendS3     = "s3"
	BackendGCS    = "gcs"
	BackendMemory = "memory"
)

type Config struct {
	Env         string            `yaml:"env" env-default:"local"`
	DSN         string            `yaml:"dsn" env:"DSN" env-required:"true"`
	HTTP        HTTPConfig        `yaml:"http"`
	FileStorage FileStorageConfig `yaml:"file_storage"`
	Redis       RedisConf         `yaml:"redis"`
	Ingestion   IngestionConfig   `yaml:"ingestion"`
}

type HTTPConfig struct {
	Host      string        `yaml:"host" env:"HTTP_HOST"`
	Port      string        `yaml:"port" env:"HTTP_PORT" env-default:"8080"`
	BodyLimit string        `yaml:"body_limit" env-default:"30M"`
	Timeout   time.Duration `yaml:"timeout" env-default:"10s"`
}

type FileStorageConfig struct {
	// Backend: local | s3 | gcs | memory
	Backend string    `yaml:"backend" env:"FILE_STORAGE_BACKEND" env-default:"local"`
	BaseDir string    `yaml:"base_dir" env-default:"./uploads"`
	BaseURL string    `yaml:"base_url" env-default:"http://localhost:8080/uploads"`
	S3      S3Config  `yaml:"s3"`
	GCS     GCSConfig `yaml:"gcs"`
}

type S3Config struct {
	Bucket    string `yaml:"bucket" env:"S3_BUCKET"`
	Region    string `yaml:"region" env:"S3_REGION"`
	Endpoint  string `yaml:"endpoint" env:"S3_ENDPOINT"`
	Prefix    string `yaml:"prefix"`
	PublicURL string `yaml:"public_url"`
	AccessKey string `yaml:"access_key" env:"S3_ACCESS_KEY"`
	SecretKey string `yaml:"secret_key" env:"S3_SECRET_KEY"`
}

type GCSConfig struct {
	Bucket          string `yaml:"bucket" env:"GCS_BUCKET"`
	Prefix          string `yaml:"prefix"`
	PublicURL       string `yaml:"public_url"`
	CredentialsFile string `yaml:"credentials_file" env:"GOOGLE_APPLICATION_CREDENTIALS"`
}

// RedisConf: пустой адрес означает блокировки внутри процесса
type RedisConf struct {
	RedisAddr     string        `yaml:"redis_addr" env:"REDIS_ADDR"`
	RedisPassword string        `yaml:"redispassword" env:"REDIS_PASSWORD"`
	RedisDB       int           `yaml:"redis_db"`
	LockTTL       time.Duration `yaml:"lock_ttl" env-default:"30s"`
}

type IngestionConfig struct {
	MaxFileSize       int64    `yaml:"max_file_size" env-default:"5242880"`
	MaxFilesCreate    int      `yaml:"max_files_create" env-default:"5"`
	MaxFilesPerEntity int      `yaml:"max_files_per_entity" env-default:"20"`
	AllowedTypes      []string `yaml:"allowed_types" env-default:"image/jpeg,image/png,image/webp"`
	SkipContentSniff  bool     `yaml:"skip_content_sniff"`
	// CoverPolicy: first - обложкой становится первое изображение, none - обложка не назначается
	CoverPolicy string `yaml:"cover_policy" env-default:"first"`
}

const (
	CoverPolicyFirst = "first"
	CoverPolicyNone  = "none"
)

func (c IngestionConfig) DefaultCover() bool {
	return c.CoverPolicy != CoverPolicyNone
}

func MustLoad() *Config {
	path := fetchConfigPath()
	if path == "" {
		panic("config path is empty")
	}

	return MustLoadPath(path)
}

func MustLoadPath(configPath string) *Config {
	// проверяем, что файл существует
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		panic("config file does not exist: " + configPath)
	}

	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		panic("cannot read config: " + err.Error())
	}

	if err := cfg.Validate(); err != nil {
		panic("invalid config: " + err.Error())
	}

	return &cfg
}

// Validate отклоняет значения, которые cleanenv не может проверить сам
func (c *Config) Validate() error {
	switch c.Ingestion.CoverPolicy {
	case CoverPolicyFirst, CoverPolicyNone:
	default:
		return fmt.Errorf("ingestion.cover_policy: unknown value %q, expected %q or %q",
			c.Ingestion.CoverPolicy, CoverPolicyFirst, CoverPolicyNone)
	}

	switch c.FileStorage.Backend {
	case BackendLocal, BackendS3, BackendGCS, BackendMemory:
	default:
		return fmt.Errorf("file_storage.backend: unknown value %q", c.FileStorage.Backend)
	}

	return nil
}

func fetchConfigPath() string {
	var res string

	// --config="path/to/config.yaml"
	flag.StringVar(&res, "config", "", "path to config file")
	flag.Parse()

	if res == "" {
		res = os.Getenv("CONFIG_PATH")
	}

	return res
}
