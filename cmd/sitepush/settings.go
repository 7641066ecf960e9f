package main

import (
	"strings"
	"time"
)

type Settings struct {
	Port              int           `env:"PORT,default=8000"`
	BasePath          string        `env:"BASE_PATH,default=/"`
	LogEncoding       string        `env:"LOG_ENCODING,default=console"`
	LogLevel          string        `env:"LOG_LEVEL,default=info"`
	JWTSecret         string        `env:"JWT_SECRET"`
	APIKeys           string        `env:"API_KEYS"`
	AllowedOrigins    string        `env:"ALLOWED_ORIGINS,default=*"`
	HeartbeatInterval time.Duration `env:"HEARTBEAT_INTERVAL,default=30s"`
	WriteTimeout      time.Duration `env:"WRITE_TIMEOUT,default=10s"`
	DuplicatePolicy   string        `env:"DUPLICATE_POLICY,default=replace"`
	MongoDBURI        string        `env:"MONGODB_URI"`
	MongoDBDatabase   string        `env:"MONGODB_DATABASE,default=sitepush"`
}

func (s Settings) APIKeyList() []string {
	return splitList(s.APIKeys)
}

func (s Settings) AllowedOriginList() []string {
	return splitList(s.AllowedOrigins)
}

func splitList(raw string) []string {
	var values []string
	for value := range strings.SplitSeq(raw, ",") {
		if value = strings.TrimSpace(value); value != "" {
			values = append(values, value)
		}
	}

	return values
}
