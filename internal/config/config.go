package config

import (
	"encoding/base64"
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// LimitParams are the token-bucket parameters for one limit class.
// Capacity is the burst size, RefillInterval is the time to mint one
// token.
type LimitParams struct {
	Capacity       int
	RefillInterval time.Duration
}

type Config struct {
	ServerAddr     string
	DatabaseDSN    string
	SigningKey     []byte
	AllowedOrigins []string

	DefaultLimit  LimitParams
	MessageLimit  LimitParams
	ExternalLimit LimitParams
}

// envOverrides are optional environment overrides applied on top of the
// flag-provided values, prefixed LIVELINE_ (e.g. LIVELINE_SERVER_ADDR).
type envOverrides struct {
	ServerAddr  string `envconfig:"SERVER_ADDR"`
	DatabaseDSN string `envconfig:"DATABASE_DSN"`
	SigningKey  string `envconfig:"SIGNING_KEY"`

	DefaultLimitCapacity  int           `envconfig:"DEFAULT_LIMIT_CAPACITY" default:"20"`
	DefaultLimitInterval  time.Duration `envconfig:"DEFAULT_LIMIT_INTERVAL" default:"100ms"`
	MessageLimitCapacity  int           `envconfig:"MESSAGE_LIMIT_CAPACITY" default:"5"`
	MessageLimitInterval  time.Duration `envconfig:"MESSAGE_LIMIT_INTERVAL" default:"1s"`
	ExternalLimitCapacity int           `envconfig:"EXTERNAL_LIMIT_CAPACITY" default:"2"`
	ExternalLimitInterval time.Duration `envconfig:"EXTERNAL_LIMIT_INTERVAL" default:"5s"`
}

func decodeSigningSecret(base64Secret string) ([]byte, error) {
	if base64Secret == "" {
		return nil, fmt.Errorf("signing secret cannot be empty")
	}
	return base64.StdEncoding.DecodeString(base64Secret)
}

func NewConfig(serverAddr, databaseDSN, base64Secret string, allowedOrigins []string) (*Config, error) {
	var env envOverrides
	if err := envconfig.Process("liveline", &env); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}

	if env.ServerAddr != "" {
		serverAddr = env.ServerAddr
	}
	if env.DatabaseDSN != "" {
		databaseDSN = env.DatabaseDSN
	}
	if env.SigningKey != "" {
		base64Secret = env.SigningKey
	}

	if serverAddr == "" {
		return nil, fmt.Errorf("server address cannot be empty")
	}
	if databaseDSN == "" {
		return nil, fmt.Errorf("database DSN cannot be empty")
	}

	signingKey, err := decodeSigningSecret(base64Secret)
	if err != nil {
		return nil, fmt.Errorf("decode signing secret: %w", err)
	}

	return &Config{
		ServerAddr:     serverAddr,
		DatabaseDSN:    databaseDSN,
		SigningKey:     signingKey,
		AllowedOrigins: allowedOrigins,
		DefaultLimit: LimitParams{
			Capacity:       env.DefaultLimitCapacity,
			RefillInterval: env.DefaultLimitInterval,
		},
		MessageLimit: LimitParams{
			Capacity:       env.MessageLimitCapacity,
			RefillInterval: env.MessageLimitInterval,
		},
		ExternalLimit: LimitParams{
			Capacity:       env.ExternalLimitCapacity,
			RefillInterval: env.ExternalLimitInterval,
		},
	}, nil
}
