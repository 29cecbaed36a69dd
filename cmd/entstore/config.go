package main

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/codewandler/entstore/core/encoding"
)

const (
	backendMemory = "memory"
	backendNATS   = "nats"
)

type config struct {
	Addr         string        `env:"ENTSTORE_ADDR"          envDefault:":8080"`
	LogLevel     slog.Level    `env:"ENTSTORE_LOG_LEVEL"     envDefault:"info"`
	LogFormat    string        `env:"ENTSTORE_LOG_FORMAT"    envDefault:"text"`
	Backend      string        `env:"ENTSTORE_BACKEND"       envDefault:"memory"`
	Format       string        `env:"ENTSTORE_FORMAT"        envDefault:"JSON"`
	WriteTimeout time.Duration `env:"ENTSTORE_WRITE_TIMEOUT" envDefault:"10s"`
	// EntityTypes lists the served entity types, subtypes as type/subtype.
	EntityTypes []string `env:"ENTSTORE_ENTITY_TYPES" envSeparator:"," envDefault:"providers"`
	// Seed is a YAML file of events replayed into the memory backend.
	Seed string `env:"ENTSTORE_SEED"`

	NATSURL       string        `env:"NATS_URL"                envDefault:"nats://127.0.0.1:4222"`
	StreamName    string        `env:"ENTSTORE_STREAM"         envDefault:"ENTSTORE"`
	SubjectPrefix string        `env:"ENTSTORE_SUBJECT_PREFIX" envDefault:"entstore"`
	MaxAge        time.Duration `env:"ENTSTORE_MAX_AGE"`
}

func parseConfig(opts env.Options) (config, error) {
	var cfg config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	return cfg, cfg.validate()
}

func (c config) validate() error {
	switch c.Backend {
	case backendMemory, backendNATS:
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.LogFormat)
	}
	if _, err := c.format(); err != nil {
		return err
	}
	if len(c.entityTypes()) == 0 {
		return fmt.Errorf("no entity types configured")
	}
	if c.Seed != "" && c.Backend != backendMemory {
		return fmt.Errorf("seed is only supported by the %s backend", backendMemory)
	}
	return nil
}

func (c config) format() (encoding.Format, error) {
	f, err := encoding.ParseFormat(c.Format)
	if err != nil {
		return "", err
	}
	if f == encoding.UNKNOWN {
		return "", fmt.Errorf("%s is not a storage format", c.Format)
	}
	return f, nil
}

// entityTypes splits the configured types into their path segments.
func (c config) entityTypes() [][]string {
	var types [][]string
	for _, t := range c.EntityTypes {
		t = strings.Trim(strings.TrimSpace(t), "/")
		if t == "" {
			continue
		}
		types = append(types, strings.Split(t, "/"))
	}
	return types
}
