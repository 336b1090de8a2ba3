package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	Address           string `validate:"required"`
	Port              string `validate:"required,numeric"`
	BehindNginx       bool
	TlsCert           string
	TlsKey            string
	Cors              bool
	PrintHttpRequests bool
	LogToFile         bool
	LogLevel          string `validate:"oneof=debug info warn error"`
	JwtSecret         string `validate:"required,min=16"`
	SnowflakeWorkerID int64  `validate:"min=0,max=1023"`
	SelfContained     bool

	DbDriver    string `validate:"oneof=sqlite mysql postgres"`
	DbPath      string
	DbUser      string
	DbPassword  string
	DbAddress   string
	DbPort      string
	DbDatabase  string
	DatabaseURL string

	RedisURL string

	SmtpUsername string
	SmtpPassword string
	SmtpServer   string
	SmtpPort     int

	// EmailPageAddress serves the pending confirmation links when there is
	// no SMTP server, empty disables the page.
	EmailPageAddress string

	StorageDriver  string `validate:"oneof=local minio"`
	MinioEndpoint  string `validate:"required_if=StorageDriver minio"`
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string `validate:"required_if=StorageDriver minio"`
	MinioUseSSL    bool
	PublicURL      string

	MeiliURL string
	MeiliKey string

	LivekitURL       string
	LivekitApiKey    string
	LivekitApiSecret string
}

func (c *Config) IsHttps() bool {
	return c.TlsCert != "" && c.TlsKey != ""
}

func (c *Config) FullAddress() string {
	protocol := "http"
	if c.IsHttps() {
		protocol = "https"
	}
	return fmt.Sprintf("%s://%s:%s", protocol, c.Address, c.Port)
}

func defaults() Config {
	return Config{
		Address:          "localhost",
		Port:             "3000",
		LogLevel:         "info",
		SelfContained:    true,
		DbDriver:         "sqlite",
		DbPath:           "./database.db",
		RedisURL:         "redis://localhost:6379/0",
		SmtpPort:         587,
		EmailPageAddress: "127.0.0.1:3010",
		StorageDriver:    "local",
	}
}

// Load reads the json config file at path, then applies overrides from the
// environment (and a .env file next to the binary if there is one).
// A missing config file is not an error, the defaults are used instead.
func Load(path string) (*Config, error) {
	cfg := defaults()

	configFile, err := os.Open(path)
	if err == nil {
		defer configFile.Close()

		bytes, err := io.ReadAll(configFile)
		if err != nil {
			return nil, err
		}

		err = json.Unmarshal(bytes, &cfg)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	err = godotenv.Load()
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	applyEnv(&cfg)

	if cfg.SelfContained {
		cfg.DbDriver = "sqlite"
	}

	err = Validate(&cfg)
	if err != nil {
		return nil, err
	}

	return &cfg, nil
}

func Validate(cfg *Config) error {
	return validator.New().Struct(cfg)
}

func applyEnv(cfg *Config) {
	setString(&cfg.Address, "CONCORD_ADDRESS")
	setString(&cfg.Port, "CONCORD_PORT")
	setString(&cfg.LogLevel, "CONCORD_LOG_LEVEL")
	setString(&cfg.JwtSecret, "CONCORD_JWT_SECRET")
	setString(&cfg.DbDriver, "CONCORD_DB_DRIVER")
	setString(&cfg.DbPassword, "CONCORD_DB_PASSWORD")
	setString(&cfg.DatabaseURL, "DATABASE_URL")
	setString(&cfg.RedisURL, "REDIS_URL")
	setString(&cfg.SmtpPassword, "CONCORD_SMTP_PASSWORD")
	setString(&cfg.EmailPageAddress, "CONCORD_EMAIL_PAGE_ADDRESS")
	setString(&cfg.MinioAccessKey, "MINIO_ACCESS_KEY")
	setString(&cfg.MinioSecretKey, "MINIO_SECRET_KEY")
	setString(&cfg.MeiliURL, "MEILI_URL")
	setString(&cfg.MeiliKey, "MEILI_MASTER_KEY")
	setString(&cfg.LivekitURL, "LIVEKIT_URL")
	setString(&cfg.LivekitApiKey, "LIVEKIT_API_KEY")
	setString(&cfg.LivekitApiSecret, "LIVEKIT_API_SECRET")

	if value := os.Getenv("CONCORD_SELF_CONTAINED"); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err == nil {
			cfg.SelfContained = parsed
		}
	}
}

func setString(field *string, key string) {
	value := os.Getenv(key)
	if value != "" {
		*field = value
	}
}
