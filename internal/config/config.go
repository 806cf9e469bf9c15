package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	pkgconfig "github.com/avdeyev/identity-service/pkg/config"
)

type Config struct {
	ServerPort int

	DatabaseURL string

	// SecretKey signs every token the service issues. Startup must fail
	// when it is missing, never the first token call.
	SecretKey []byte

	UploadDir string

	KafkaBrokers []string

	ESURL      string
	ESUser     string
	ESPassword string

	SMTPAddr     string
	SMTPFrom     string
	SMTPUser     string
	SMTPPassword string
	ResetURLBase string

	LogLevel string
}

func Load() *Config {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Notice: .env file not found: %v. Using system environment variables", err)
	}

	return &Config{
		ServerPort: EnvIntDefault("SERVER_PORT", 8080),

		DatabaseURL: os.Getenv("DATABASE_URL"),

		SecretKey: []byte(os.Getenv("SECRET_KEY")),

		UploadDir: EnvDefault("UPLOAD_DIR", "./uploads"),

		KafkaBrokers: CSV(os.Getenv("KAFKA_BROKERS")),

		ESURL:      os.Getenv("ES_URL"),
		ESUser:     os.Getenv("ES_USER"),
		ESPassword: os.Getenv("ES_PASSWORD"),

		SMTPAddr:     os.Getenv("SMTP_ADDR"),
		SMTPFrom:     os.Getenv("SMTP_FROM"),
		SMTPUser:     os.Getenv("SMTP_USER"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),
		ResetURLBase: os.Getenv("RESET_URL_BASE"),

		LogLevel: EnvDefault("LOG_LEVEL", "info"),
	}
}

// MustValidate aborts the process when required configuration is absent.
func (c *Config) MustValidate() {
	pkgconfig.MustNonEmptyBytes(c.SecretKey, "SECRET_KEY")
	pkgconfig.MustNonEmpty(c.DatabaseURL, "DATABASE_URL")
}

func CSV(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func EnvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func EnvIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
