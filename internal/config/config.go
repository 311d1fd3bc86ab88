package config

import (
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Env         string
	Port        int
	DatabaseDSN string
	JWTSecret   string
	LogJSON     bool

	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	SMTPFrom     string

	KafkaBrokers []string
	KafkaTopic   string

	DispatchWorkers int
	DispatchQueue   int
	DispatchRetries int

	MigrationsDir string
}

func Default() Config {
	return Config{
		Env:             "dev",
		Port:            5000,
		DatabaseDSN:     "",
		JWTSecret:       "",
		LogJSON:         true,
		SMTPPort:        587,
		SMTPFrom:        "no-reply@storefront.local",
		KafkaTopic:      "storefront.orders",
		DispatchWorkers: 4,
		DispatchQueue:   256,
		DispatchRetries: 3,
		MigrationsDir:   "./migrations",
	}
}

func EnvDefaults() Config {
	return fromEnv(Default())
}

func fromEnv(c Config) Config {
	if v := os.Getenv("STOREFRONT_ENV"); v != "" {
		c.Env = v
	}
	if v := os.Getenv("STOREFRONT_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Port = p
		}
	}
	if v := os.Getenv("STOREFRONT_DATABASE_DSN"); v != "" {
		c.DatabaseDSN = v
	}
	if v := os.Getenv("STOREFRONT_JWT_SECRET"); v != "" {
		c.JWTSecret = v
	}
	if v := os.Getenv("STOREFRONT_LOG_JSON"); v != "" {
		switch v {
		case "1", "true", "TRUE":
			c.LogJSON = true
		case "0", "false", "FALSE":
			c.LogJSON = false
		}
	}
	if v := os.Getenv("STOREFRONT_SMTP_HOST"); v != "" {
		c.SMTPHost = v
	}
	if v := os.Getenv("STOREFRONT_SMTP_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.SMTPPort = p
		}
	}
	if v := os.Getenv("STOREFRONT_SMTP_USER"); v != "" {
		c.SMTPUser = v
	}
	if v := os.Getenv("STOREFRONT_SMTP_PASSWORD"); v != "" {
		c.SMTPPassword = v
	}
	if v := os.Getenv("STOREFRONT_SMTP_FROM"); v != "" {
		c.SMTPFrom = v
	}
	if v := os.Getenv("STOREFRONT_KAFKA_BROKERS"); v != "" {
		c.KafkaBrokers = SplitList(v)
	}
	if v := os.Getenv("STOREFRONT_KAFKA_TOPIC"); v != "" {
		c.KafkaTopic = v
	}
	if v := os.Getenv("STOREFRONT_DISPATCH_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.DispatchWorkers = n
		}
	}
	if v := os.Getenv("STOREFRONT_DISPATCH_QUEUE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.DispatchQueue = n
		}
	}
	if v := os.Getenv("STOREFRONT_DISPATCH_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			c.DispatchRetries = n
		}
	}
	if v := os.Getenv("STOREFRONT_MIGRATIONS_DIR"); v != "" {
		c.MigrationsDir = v
	}
	return c
}

// SplitList parses a comma separated list, dropping blanks.
func SplitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
