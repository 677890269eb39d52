package config

import (
	"encoding/base64"
	"fmt"
	"time"
)

const defaultHostGracePeriod = 30 * time.Second

type Config struct {
	ServerAddr      string
	DatabaseDSN     string
	RedisAddr       string
	SigningKey      []byte
	MediaSigningKey []byte
	AllowedOrigins  []string
	// HostGracePeriod is how long a live session survives a host disconnect
	// before it is force-ended.
	HostGracePeriod time.Duration
}

func decodeSigningSecret(base64Secret string) ([]byte, error) {
	if base64Secret == "" {
		return nil, fmt.Errorf("secret cannot be empty")
	}
	return base64.StdEncoding.DecodeString(base64Secret)
}

func NewConfig(serverAddr, databaseDSN, redisAddr, base64Secret, base64MediaSecret string, allowedOrigins []string, hostGracePeriod time.Duration) (*Config, error) {
	if serverAddr == "" {
		return nil, fmt.Errorf("server address cannot be empty")
	}
	if databaseDSN == "" {
		return nil, fmt.Errorf("database DSN cannot be empty")
	}
	if redisAddr == "" {
		return nil, fmt.Errorf("redis address cannot be empty")
	}

	signingKey, err := decodeSigningSecret(base64Secret)
	if err != nil {
		return nil, fmt.Errorf("decode signing secret: %w", err)
	}

	mediaKey, err := decodeSigningSecret(base64MediaSecret)
	if err != nil {
		return nil, fmt.Errorf("decode media signing secret: %w", err)
	}

	if hostGracePeriod <= 0 {
		hostGracePeriod = defaultHostGracePeriod
	}

	return &Config{
		ServerAddr:      serverAddr,
		DatabaseDSN:     databaseDSN,
		RedisAddr:       redisAddr,
		SigningKey:      signingKey,
		MediaSigningKey: mediaKey,
		AllowedOrigins:  allowedOrigins,
		HostGracePeriod: hostGracePeriod,
	}, nil
}
